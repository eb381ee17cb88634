package appkafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"example.com/openchat/internal/models"
	"github.com/segmentio/kafka-go"
)

var ErrInvalidEvent = errors.New("invalid chat event")

// KafkaWriter defines an interface for writing messages to Kafka.
type KafkaWriter interface {
	WriteMessages(messages ...kafka.Message) error
	Close() error
}

// KafkaReader defines an interface for reading messages from Kafka.
type KafkaReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// KafkaConfig holds configuration parameters for Kafka.
type KafkaConfig struct {
	Brokers      []string      // list of Kafka brokers
	Topic        string        // topic carrying chat events
	Partition    int           // partition the writer appends to
	WriteTimeout time.Duration // per-write deadline
	ReadTimeout  time.Duration // max wait for a fetch batch
	GroupID      string        // consumer group ID
}

func (c KafkaConfig) withDefaults() KafkaConfig {
	if len(c.Brokers) == 0 {
		c.Brokers = []string{"localhost:9092"}
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	return c
}

// EncodeEvent wraps a chat event into a Kafka message keyed by its kind.
func EncodeEvent(evt models.Event) (kafka.Message, error) {
	data, err := json.Marshal(evt)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal event %d: %w", evt.Seq, err)
	}
	return kafka.Message{
		Key:   []byte(evt.Kind),
		Value: data,
	}, nil
}

// DecodeEvent reads a chat event back from a Kafka message value.
func DecodeEvent(value []byte) (models.Event, error) {
	var evt models.Event
	if err := json.Unmarshal(value, &evt); err != nil {
		return models.Event{}, fmt.Errorf("unmarshal event: %w", err)
	}
	if !evt.Valid() {
		return models.Event{}, fmt.Errorf("%w: seq=%d kind=%q", ErrInvalidEvent, evt.Seq, evt.Kind)
	}
	return evt, nil
}

// RealKafkaWriter appends to a single partition through a leader connection,
// so every event lands in the order it was written.
type RealKafkaWriter struct {
	mu     sync.Mutex
	conn   *kafka.Conn
	config KafkaConfig
}

// NewKafkaWriter dials the partition leader for the configured topic.
func NewKafkaWriter(cfg KafkaConfig) (*RealKafkaWriter, error) {
	cfg = cfg.withDefaults()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.WriteTimeout)
	defer cancel()

	conn, err := kafka.DialLeader(ctx, "tcp", cfg.Brokers[0], cfg.Topic, cfg.Partition)
	if err != nil {
		return nil, fmt.Errorf("dial kafka leader for %s/%d: %w", cfg.Topic, cfg.Partition, err)
	}

	return &RealKafkaWriter{
		conn:   conn,
		config: cfg,
	}, nil
}

func (w *RealKafkaWriter) WriteMessages(messages ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn == nil {
		return errors.New("kafka connection is nil")
	}
	if err := w.conn.SetWriteDeadline(time.Now().Add(w.config.WriteTimeout)); err != nil {
		return err
	}
	_, err := w.conn.WriteMessages(messages...)
	return err
}

func (w *RealKafkaWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn == nil {
		return nil
	}
	err := w.conn.Close()
	w.conn = nil
	return err
}

// RealKafkaReader implements KafkaReader using kafka.Reader (consumer group).
type RealKafkaReader struct {
	reader *kafka.Reader
}

// NewKafkaReader creates a consumer group reader for the chat event topic.
func NewKafkaReader(cfg KafkaConfig) KafkaReader {
	cfg = cfg.withDefaults()

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        cfg.GroupID,
		Topic:          cfg.Topic,
		MinBytes:       1,    // events are small, do not wait for a batch to fill
		MaxBytes:       10e6, // 10MB
		MaxWait:        cfg.ReadTimeout,
		CommitInterval: time.Second,
	})
	return &RealKafkaReader{reader: r}
}

func (r *RealKafkaReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	return r.reader.ReadMessage(ctx)
}

func (r *RealKafkaReader) Close() error {
	return r.reader.Close()
}
