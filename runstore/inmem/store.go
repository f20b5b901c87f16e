package inmem

import (
	"context"
	"fmt"
	"sync"

	"github.com/Gurpartap/pipeframe/pipeline"
)

// Store persists run state in memory with optimistic version checks.
type Store struct {
	mu     sync.RWMutex
	states map[pipeline.RunID]pipeline.RunState
}

var _ pipeline.RunStore = (*Store)(nil)

func New() *Store {
	return &Store{states: map[pipeline.RunID]pipeline.RunState{}}
}

func (s *Store) Save(_ context.Context, state pipeline.RunState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.states[state.ID]
	switch {
	case !exists:
		if state.Version != 0 {
			return fmt.Errorf(
				"%w: run %q expected version 0 on create, got %d",
				pipeline.ErrRunVersionConflict,
				state.ID,
				state.Version,
			)
		}
		next := pipeline.CloneRunState(state)
		next.Version = 1
		s.states[state.ID] = next
		return nil
	case state.Version != current.Version:
		return fmt.Errorf(
			"%w: run %q expected version %d, got %d",
			pipeline.ErrRunVersionConflict,
			state.ID,
			current.Version,
			state.Version,
		)
	default:
		next := pipeline.CloneRunState(state)
		next.Version = current.Version + 1
		s.states[state.ID] = next
		return nil
	}
}

func (s *Store) Load(_ context.Context, runID pipeline.RunID) (pipeline.RunState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.states[runID]
	if !ok {
		return pipeline.RunState{}, pipeline.ErrRunNotFound
	}
	return pipeline.CloneRunState(state), nil
}
