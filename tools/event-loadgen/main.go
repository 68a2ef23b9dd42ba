// event-loadgen produces synthetic SampleEvent JSON onto the ingress topic
// so the processor can be exercised locally without a real sensor fleet.
// Events are keyed by zoneId, matching the partitioning contract of the
// ingress topic.
//
// Modes:
//   - steady: every zone emits a constant load
//   - ramp:   every zone ramps load linearly from -load_from to -load_to
//             over the run, which walks zones through
//             NORMAL -> STRESSED -> CRITICAL and back if you ramp down
//
// Usage examples:
//
//	event-loadgen -brokers=localhost:9092 -zones=4 -rate=1 -mode=steady -load=0.95 -duration=7m
//	event-loadgen -brokers=localhost:9092 -zones=2 -mode=ramp -load_from=0.2 -load_to=0.98 -duration=10m
//
// Event time is wall time at emission; one generator goroutine per zone.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"
)

func main() {
	var (
		brokers  = flag.String("brokers", "localhost:9092", "Kafka broker address")
		topic    = flag.String("topic", "raw.zone.events", "Ingress topic to produce to")
		zones    = flag.Int("zones", 4, "Number of synthetic zones (Z-1..Z-n)")
		rate     = flag.Float64("rate", 1.0, "Events per second per zone")
		mode     = flag.String("mode", "steady", "Load profile: steady|ramp")
		load     = flag.Float64("load", 0.95, "Constant load for steady mode")
		loadFrom = flag.Float64("load_from", 0.2, "Ramp start load")
		loadTo   = flag.Float64("load_to", 0.98, "Ramp end load")
		duration = flag.Duration("duration", 5*time.Minute, "How long to produce")
	)
	flag.Parse()

	if *zones <= 0 || *rate <= 0 {
		fmt.Fprintln(os.Stderr, "-zones and -rate must be > 0")
		os.Exit(2)
	}
	if *mode != "steady" && *mode != "ramp" {
		fmt.Fprintf(os.Stderr, "unknown -mode=%s (want steady|ramp)\n", *mode)
		os.Exit(2)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(*brokers),
		Topic:        *topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 20 * time.Millisecond,
	}
	defer writer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		cancel()
	}()

	var produced, failed atomic.Int64
	start := time.Now()
	interval := time.Duration(float64(time.Second) / *rate)

	var wg sync.WaitGroup
	for z := 1; z <= *zones; z++ {
		zoneID := fmt.Sprintf("Z-%d", z)
		// Spread zones across the globe so the geo index has something to show.
		lat := float64(z%90) - 45.0
		lon := float64((z*7)%360) - 180.0

		wg.Add(1)
		go func() {
			defer wg.Done()
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			seq := 0
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
				seq++
				now := time.Now().UnixMilli()
				l := *load
				if *mode == "ramp" {
					frac := float64(time.Since(start)) / float64(*duration)
					if frac > 1 {
						frac = 1
					}
					l = *loadFrom + (*loadTo-*loadFrom)*frac
				}
				if l < 0 {
					l = 0
				}
				if l > 1 {
					l = 1
				}
				payload, _ := json.Marshal(map[string]interface{}{
					"eventId":        fmt.Sprintf("%s-%d-%d", zoneID, now, seq),
					"zoneId":         zoneID,
					"latitude":       lat,
					"longitude":      lon,
					"load":           l,
					"eventTimestamp": now,
					"producedAt":     now,
				})
				err := writer.WriteMessages(ctx, kafka.Message{Key: []byte(zoneID), Value: payload})
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					failed.Add(1)
					continue
				}
				produced.Add(1)
			}
		}()
	}
	wg.Wait()

	elapsed := time.Since(start)
	fmt.Printf("produced=%d failed=%d elapsed=%s (~%.1f ev/s)\n",
		produced.Load(), failed.Load(), elapsed.Round(time.Millisecond),
		float64(produced.Load())/elapsed.Seconds())
}
