package main

import (
	"context"
	"flag"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	appkafka "example.com/openchat/internal/broker"
	"example.com/openchat/internal/models"
	"github.com/gocql/gocql"
	"github.com/segmentio/kafka-go"
)

// benchEvents builds one registration followed by total publications of the
// same author, numbered from baseSeq.
func benchEvents(authorID string, baseSeq uint64, total int, now time.Time) []models.Event {
	events := make([]models.Event, 0, total+1)
	events = append(events, models.Event{
		Seq:       baseSeq,
		Kind:      models.EventAccountRegistered,
		At:        now,
		AccountID: authorID,
		Username:  "kafka-bench-" + authorID,
		About:     "journal load generator",
	})
	for i := 1; i <= total; i++ {
		events = append(events, models.Event{
			Seq:       baseSeq + uint64(i),
			Kind:      models.EventPublished,
			At:        now.Add(time.Duration(i) * time.Microsecond),
			AccountID: authorID,
			Message:   fmt.Sprintf("kafka bench %d", i),
		})
	}
	return events
}

func main() {
	var (
		total       int
		batchSize   int
		numWorkers  int
		kafkaBroker string
		topic       string
		baseSeq     uint64
	)
	flag.IntVar(&total, "n", 100000, "number of publication events to send")
	flag.IntVar(&batchSize, "batch", 100, "batch size for sending messages")
	flag.IntVar(&numWorkers, "workers", 4, "number of parallel goroutines")
	flag.StringVar(&kafkaBroker, "broker", "localhost:29092", "Kafka broker address")
	flag.StringVar(&topic, "topic", "openchat-events", "chat event topic")
	flag.Uint64Var(&baseSeq, "seq", uint64(time.Now().UnixNano()), "first sequence number, must not clash with the live journal")
	flag.Parse()

	// Kafka writer with asynchronous sending enabled
	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers: []string{kafkaBroker},
		Topic:   topic,
		Async:   true,
	})
	defer w.Close()

	// Generate a unique author ID for this benchmark
	authorID := gocql.TimeUUID().String()
	events := benchEvents(authorID, baseSeq, total, time.Now().UTC())
	start := time.Now()

	var successCount uint64
	var failCount uint64

	// Channel for feeding events to worker goroutines
	jobs := make(chan models.Event, len(events))
	var wg sync.WaitGroup

	flush := func(batch []kafka.Message) {
		if err := w.WriteMessages(context.Background(), batch...); err != nil {
			atomic.AddUint64(&failCount, uint64(len(batch)))
			fmt.Printf("write error: %v\n", err)
			return
		}
		atomic.AddUint64(&successCount, uint64(len(batch)))
	}

	// --- Start worker goroutines ---
	for wID := 0; wID < numWorkers; wID++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			batch := make([]kafka.Message, 0, batchSize)

			for evt := range jobs {
				msg, err := appkafka.EncodeEvent(evt)
				if err != nil {
					atomic.AddUint64(&failCount, 1)
					fmt.Printf("encode error: %v\n", err)
					continue
				}

				batch = append(batch, msg)
				if len(batch) >= batchSize {
					flush(batch)
					batch = batch[:0]
				}
			}

			// Send any remaining messages after finishing loop
			if len(batch) > 0 {
				flush(batch)
			}
		}()
	}

	for _, evt := range events {
		jobs <- evt
	}
	close(jobs)

	// Wait for all worker goroutines to finish
	wg.Wait()

	// --- Benchmark results ---
	elapsed := time.Since(start)
	fmt.Printf("Total events: %d (seq %d..%d)\n", len(events), baseSeq, baseSeq+uint64(total))
	fmt.Printf("Successful: %d, Failed: %d\n", successCount, failCount)
	fmt.Printf("Elapsed time: %s\n", elapsed)
	fmt.Printf("Throughput: %.2f msg/s\n", float64(successCount)/elapsed.Seconds())
}
