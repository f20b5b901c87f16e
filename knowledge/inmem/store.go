package inmem

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Gurpartap/pipeframe/pipeline"
)

// ErrMissingSegment is returned when a recorded entry lacks a segment field.
var ErrMissingSegment = errors.New("knowledge entry segment is missing")

// Store is an in-memory append-only knowledge store: one record per
// historical action, grouped by customer segment, plus per-segment aggregate
// counters. Later queries observe earlier records, which is the engine's sole
// cross-run learning mechanism.
type Store struct {
	mu      sync.RWMutex
	entries map[string][]map[string]any
	counts  map[string]int
}

var _ pipeline.KnowledgeStore = (*Store)(nil)

func New() *Store {
	return &Store{
		entries: map[string][]map[string]any{},
		counts:  map[string]int{},
	}
}

func (s *Store) Query(_ context.Context, segment string) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.entries[segment]
	actions := make([]any, 0, len(entries))
	for _, entry := range entries {
		actions = append(actions, cloneEntry(entry))
	}
	return map[string]any{
		"segment":       segment,
		"total_actions": s.counts[segment],
		"actions":       actions,
	}, nil
}

func (s *Store) Record(_ context.Context, entry map[string]any) error {
	segment, err := entrySegment(entry)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[segment] = append(s.entries[segment], cloneEntry(entry))
	s.counts[segment]++
	return nil
}

// Len reports the number of recorded entries for segment.
func (s *Store) Len(segment string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counts[segment]
}

func entrySegment(entry map[string]any) (string, error) {
	raw, ok := entry["segment"]
	if !ok {
		return "", ErrMissingSegment
	}
	segment, ok := raw.(string)
	if !ok || segment == "" {
		return "", fmt.Errorf("%w: got %T", ErrMissingSegment, raw)
	}
	return segment, nil
}

func cloneEntry(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = cloneEntryValue(value)
	}
	return out
}

func cloneEntryValue(in any) any {
	switch value := in.(type) {
	case map[string]any:
		return cloneEntry(value)
	case []any:
		out := make([]any, len(value))
		for i, item := range value {
			out[i] = cloneEntryValue(item)
		}
		return out
	default:
		return in
	}
}
