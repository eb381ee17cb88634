package appkafka

import (
	"context"
	"errors"
	"sync"

	"example.com/openchat/internal/store"
	"github.com/segmentio/kafka-go"
)

// MockKafka records written messages and, when Store is set, appends the
// decoded events to it straight away, standing in for broker plus worker.
type MockKafka struct {
	Store           *store.MockStore
	WrittenMessages []kafka.Message // stores messages written via WriteMessages
	ReadMessages    []kafka.Message // queue of messages to be read via ReadMessage
	ShouldFail      bool            // flag to simulate failures during write or read operations
	Closed          bool

	mu sync.Mutex
}

func (m *MockKafka) WriteMessages(messages ...kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ShouldFail {
		return errors.New("mock kafka write failed")
	}

	for _, msg := range messages {
		m.WrittenMessages = append(m.WrittenMessages, msg)
		if m.Store == nil {
			continue
		}
		evt, err := DecodeEvent(msg.Value)
		if err != nil {
			return err
		}
		if err := m.Store.AppendEvent(evt); err != nil {
			return err
		}
	}
	return nil
}

// Written returns a copy of the messages written so far.
func (m *MockKafka) Written() []kafka.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]kafka.Message(nil), m.WrittenMessages...)
}

// ReadMessage pops the next queued message.
func (m *MockKafka) ReadMessage(ctx context.Context) (kafka.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ShouldFail {
		return kafka.Message{}, errors.New("mock kafka read failed")
	}
	if err := ctx.Err(); err != nil {
		return kafka.Message{}, err
	}
	if len(m.ReadMessages) == 0 {
		return kafka.Message{}, errors.New("no messages")
	}
	msg := m.ReadMessages[0]
	m.ReadMessages = m.ReadMessages[1:]
	return msg, nil
}

func (m *MockKafka) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// MockKafkaFail always fails.
type MockKafkaFail struct{}

func (m *MockKafkaFail) WriteMessages(messages ...kafka.Message) error {
	return errors.New("mock kafka write failed")
}

func (m *MockKafkaFail) ReadMessage(ctx context.Context) (kafka.Message, error) {
	return kafka.Message{}, errors.New("mock kafka read failed")
}

func (m *MockKafkaFail) Close() error { return nil }
