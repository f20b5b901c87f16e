package inmem

import (
	"context"
	"sync"

	"github.com/Gurpartap/pipeframe/pipeline"
)

// Sink captures engine events in memory and exposes deterministic snapshots.
type Sink struct {
	mu     sync.RWMutex
	events []pipeline.Event
}

var _ pipeline.EventSink = (*Sink)(nil)

func New() *Sink {
	return &Sink{events: make([]pipeline.Event, 0)}
}

func (s *Sink) Publish(ctx context.Context, event pipeline.Event) error {
	if ctx == nil {
		return pipeline.ErrContextNil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err := pipeline.ValidateEvent(event); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, event)
	return nil
}

func (s *Sink) Events() []pipeline.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]pipeline.Event, len(s.events))
	copy(out, s.events)
	return out
}

// EventsOfType filters the captured events by type, preserving order.
func (s *Sink) EventsOfType(eventType pipeline.EventType) []pipeline.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []pipeline.Event
	for _, event := range s.events {
		if event.Type == eventType {
			out = append(out, event)
		}
	}
	return out
}
