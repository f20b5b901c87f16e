package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/Gurpartap/pipeframe/pipeline"
)

const runKeyPrefix = "pipeframe:run:"

// Store persists run state in Redis with the same optimistic version
// semantics as the in-memory store, for deployments that must survive a
// process restart between suspension and resume.
type Store struct {
	client redis.UniversalClient
}

var _ pipeline.RunStore = (*Store)(nil)

func New(client redis.UniversalClient) *Store {
	return &Store{client: client}
}

func runKey(runID pipeline.RunID) string {
	return runKeyPrefix + string(runID)
}

func (s *Store) Save(ctx context.Context, state pipeline.RunState) error {
	key := runKey(state.ID)
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Result()
		switch {
		case errors.Is(err, redis.Nil):
			if state.Version != 0 {
				return fmt.Errorf(
					"%w: run %q expected version 0 on create, got %d",
					pipeline.ErrRunVersionConflict,
					state.ID,
					state.Version,
				)
			}
		case err != nil:
			return err
		default:
			var current pipeline.RunState
			if err := json.Unmarshal([]byte(raw), &current); err != nil {
				return fmt.Errorf("decode run %q: %w", state.ID, err)
			}
			if state.Version != current.Version {
				return fmt.Errorf(
					"%w: run %q expected version %d, got %d",
					pipeline.ErrRunVersionConflict,
					state.ID,
					current.Version,
					state.Version,
				)
			}
		}

		next := pipeline.CloneRunState(state)
		next.Version = state.Version + 1
		encoded, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("encode run %q: %w", state.ID, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, 0)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("%w: run %q modified concurrently", pipeline.ErrRunVersionConflict, state.ID)
	}
	return err
}

func (s *Store) Load(ctx context.Context, runID pipeline.RunID) (pipeline.RunState, error) {
	raw, err := s.client.Get(ctx, runKey(runID)).Result()
	if errors.Is(err, redis.Nil) {
		return pipeline.RunState{}, pipeline.ErrRunNotFound
	}
	if err != nil {
		return pipeline.RunState{}, err
	}
	var state pipeline.RunState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return pipeline.RunState{}, fmt.Errorf("decode run %q: %w", runID, err)
	}
	return state, nil
}
