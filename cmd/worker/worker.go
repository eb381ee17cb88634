package worker

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sync"
	"time"

	appkafka "example.com/openchat/internal/broker"
	"example.com/openchat/internal/logger"
	"example.com/openchat/internal/metrics"
	"example.com/openchat/internal/store"
)

var logg = logger.New()

const appendAttempts = 3

// Worker consumes chat events from Kafka and appends them to the Cassandra journal.
// Events are keyed by sequence, so appending them concurrently and out of order
// still yields an ordered journal.
type Worker struct {
	store        store.StoreInterface
	reader       appkafka.KafkaReader
	workerCount  int
	jobQueueSize int
}

// New creates a new concurrent Worker using pre-initialized dependencies.
func New(store store.StoreInterface, reader appkafka.KafkaReader, workerCount, jobQueueSize int) *Worker {
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}
	if jobQueueSize <= 0 {
		jobQueueSize = workerCount * 10
	}
	return &Worker{
		store:        store,
		reader:       reader,
		workerCount:  workerCount,
		jobQueueSize: jobQueueSize,
	}
}

// Run starts message reading and concurrent processing.
func (w *Worker) Run(ctx context.Context) {
	if w.workerCount <= 0 {
		w.workerCount = 1
	}
	if w.jobQueueSize <= 0 {
		w.jobQueueSize = 10
	}

	logg.Info("worker", "Starting "+fmt.Sprint(w.workerCount)+" workers with queue size "+fmt.Sprint(w.jobQueueSize))

	jobs := make(chan []byte, w.jobQueueSize)
	var wg sync.WaitGroup

	for i := 0; i < w.workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.processLoop(ctx, jobs)
		}()
	}

	w.readLoop(ctx, jobs)

	close(jobs)
	wg.Wait()
	logg.Info("worker", "All workers stopped gracefully")
}

// readLoop reads Kafka messages and pushes them into a job queue.
func (w *Worker) readLoop(ctx context.Context, jobs chan<- []byte) {
	var retry int
	for {
		select {
		case <-ctx.Done():
			return
		default:
			msg, err := w.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logg.Error("worker", "Kafka read error, backing off", err)
				if !waitWithContext(ctx, backoff(retry)) {
					return
				}
				retry++
				continue
			}
			retry = 0

			if len(msg.Value) == 0 {
				if !waitWithContext(ctx, 50*time.Millisecond) {
					return
				}
				continue
			}

			if !enqueue(ctx, jobs, msg.Value) {
				return
			}
		}
	}
}

// enqueue blocks until data is queued or ctx is done. A full queue is
// reported but the message is never dropped.
func enqueue(ctx context.Context, jobs chan<- []byte, data []byte) bool {
	for {
		select {
		case jobs <- data:
			return true
		case <-ctx.Done():
			return false
		case <-time.After(100 * time.Millisecond):
			logg.Info("worker", "Queue full, waiting to enqueue Kafka message")
		}
	}
}

// processLoop decodes events and appends them to the journal.
func (w *Worker) processLoop(ctx context.Context, jobs <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-jobs:
			if !ok {
				return
			}
			w.handle(ctx, data)
		}
	}
}

func (w *Worker) handle(ctx context.Context, data []byte) {
	evt, err := appkafka.DecodeEvent(data)
	if err != nil {
		metrics.JournalEvents.WithLabelValues("invalid").Inc()
		logg.Error("worker", "Invalid chat event in Kafka message", err)
		return
	}

	for attempt := 0; attempt < appendAttempts; attempt++ {
		if err = w.store.AppendEvent(evt); err == nil {
			metrics.JournalEvents.WithLabelValues("appended").Inc()
			logg.Debug("worker", fmt.Sprintf("Journal event %d (%s) appended", evt.Seq, evt.Kind))
			return
		}
		if !waitWithContext(ctx, backoff(attempt)) {
			break
		}
	}
	metrics.JournalEvents.WithLabelValues("append_failed").Inc()
	logg.Error("worker", fmt.Sprintf("Giving up on journal event %d", evt.Seq), err)
}

// backoff doubles from 1ms up to one second.
func backoff(retry int) time.Duration {
	return time.Duration(math.Min(1000, math.Pow(2, float64(retry)))) * time.Millisecond
}

// waitWithContext waits for duration or context cancellation.
func waitWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Close shuts down Kafka reader and Cassandra session.
func (w *Worker) Close() error {
	logg.Info("worker", "Closing Kafka reader")
	if err := w.reader.Close(); err != nil {
		logg.Error("worker", "Error closing Kafka reader", err)
		return err
	}

	logg.Info("worker", "Closing Cassandra session")
	w.store.Close()
	return nil
}
