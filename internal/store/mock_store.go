package store

import (
	"cmp"
	"errors"
	"slices"
	"sync"

	"example.com/openchat/internal/models"
)

// MockStore keeps the journal in memory for tests.
type MockStore struct {
	Events     map[uint64]models.Event
	ShouldFail bool // flag to simulate failures
	Closed     bool

	mu sync.Mutex
}

// NewMock initializes a new mock store
func NewMock() *MockStore {
	return &MockStore{
		Events: make(map[uint64]models.Event),
	}
}

func (m *MockStore) Close() {
	m.mu.Lock()
	m.Closed = true
	m.mu.Unlock()
}

// AppendEvent stores evt under its sequence, overwriting like the real table.
func (m *MockStore) AppendEvent(evt models.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return errors.New("mock: append event failed")
	}
	m.Events[evt.Seq] = evt
	return nil
}

// LoadEvents returns the events ordered by sequence.
func (m *MockStore) LoadEvents() ([]models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return nil, errors.New("mock: load events failed")
	}
	out := make([]models.Event, 0, len(m.Events))
	for _, evt := range m.Events {
		out = append(out, evt)
	}
	slices.SortFunc(out, func(a, b models.Event) int {
		return cmp.Compare(a.Seq, b.Seq)
	})
	return out, nil
}

// Len reports how many events are stored.
func (m *MockStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Events)
}

// ---------------------------------------------
// MockStoreFail always returns errors for negative tests
type MockStoreFail struct{}

func (m *MockStoreFail) Close() {}

func (m *MockStoreFail) AppendEvent(evt models.Event) error {
	return errors.New("mock store append event failed")
}

func (m *MockStoreFail) LoadEvents() ([]models.Event, error) {
	return nil, errors.New("mock store load events failed")
}
