package activity

import (
	"context"

	"github.com/dukerupert/tally/internal/store"
)

// StoreSink writes events to the logs table.
type StoreSink struct {
	logs *store.LogStore
}

func NewStoreSink(logs *store.LogStore) *StoreSink {
	return &StoreSink{logs: logs}
}

func (s *StoreSink) Write(_ context.Context, e Event) error {
	return s.logs.Create(e.UserID, e.Action, e.Meta, e.IP)
}

// Counter counts recorded actions, e.g. a metrics collector.
type Counter interface {
	RecordActivity(action string)
}

// CountingSink forwards each event's action to a Counter.
type CountingSink struct {
	counter Counter
}

func NewCountingSink(c Counter) *CountingSink {
	return &CountingSink{counter: c}
}

func (s *CountingSink) Write(_ context.Context, e Event) error {
	s.counter.RecordActivity(e.Action)
	return nil
}
