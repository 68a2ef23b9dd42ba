//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"net"
	"os"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"geopulse/internal/zonestream/core"
	"geopulse/internal/zonestream/persistence"
)

func kafkaBroker() string {
	if b := os.Getenv("GEOPULSE_BROKERS"); b != "" {
		return b
	}
	return "127.0.0.1:9092"
}

// TestKafkaAlertRoundTripE2E publishes an alert through the real egress
// writer and reads it back, checking the zone key and payload shape the
// downstream consumers depend on. Requires a broker with auto topic
// creation or a pre-created e2e topic.
func TestKafkaAlertRoundTripE2E(t *testing.T) {
	broker := kafkaBroker()
	conn, err := net.DialTimeout("tcp", broker, 2*time.Second)
	if err != nil {
		t.Skipf("Skipping: Kafka not reachable on %s: %v", broker, err)
	}
	_ = conn.Close()

	const topic = "zone.alerts.e2e"
	p := persistence.NewKafkaAlertPublisher([]string{broker}, topic)
	t.Cleanup(func() { _ = p.Close() })

	alert := core.Alert{
		ZoneID:        "e2e-zone-1",
		PreviousState: "NORMAL",
		CurrentState:  "STRESSED",
		Avg1m:         0.82,
		Avg5m:         0.77,
		Timestamp:     time.Now().UnixMilli(),
	}
	pctx, pcancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer pcancel()
	if err := p.Publish(pctx, alert.ZoneID, alert); err != nil {
		t.Fatalf("publish: %v", err)
	}

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       topic,
		StartOffset: kafka.FirstOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
	t.Cleanup(func() { _ = r.Close() })

	rctx, rcancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer rcancel()
	for {
		msg, err := r.ReadMessage(rctx)
		if err != nil {
			t.Fatalf("read back: %v", err)
		}
		var got core.Alert
		if err := json.Unmarshal(msg.Value, &got); err != nil {
			t.Fatalf("payload not an alert: %v", err)
		}
		if got.Timestamp != alert.Timestamp {
			continue // stale message from an earlier run
		}
		if string(msg.Key) != alert.ZoneID {
			t.Fatalf("key = %q, want zone id", msg.Key)
		}
		if got != alert {
			t.Fatalf("round trip = %+v, want %+v", got, alert)
		}
		return
	}
}
