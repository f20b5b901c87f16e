package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/Gurpartap/pipeframe/pipeline"
)

const (
	entryKeyPrefix = "pipeframe:knowledge:segment:"
	countsKey      = "pipeframe:knowledge:counts"
)

// ErrMissingSegment is returned when a recorded entry lacks a segment field.
var ErrMissingSegment = errors.New("knowledge entry segment is missing")

// Store keeps the historical action log in Redis: one list of JSON entries
// per segment, appended never rewritten, plus a hash of per-segment counters.
type Store struct {
	client redis.UniversalClient
}

var _ pipeline.KnowledgeStore = (*Store)(nil)

func New(client redis.UniversalClient) *Store {
	return &Store{client: client}
}

func segmentKey(segment string) string {
	return entryKeyPrefix + segment
}

func (s *Store) Query(ctx context.Context, segment string) (any, error) {
	raw, err := s.client.LRange(ctx, segmentKey(segment), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	actions := make([]any, 0, len(raw))
	for _, item := range raw {
		var entry map[string]any
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			return nil, fmt.Errorf("decode knowledge entry for segment %q: %w", segment, err)
		}
		actions = append(actions, entry)
	}

	total, err := s.client.HGet(ctx, countsKey, segment).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	return map[string]any{
		"segment":       segment,
		"total_actions": total,
		"actions":       actions,
	}, nil
}

func (s *Store) Record(ctx context.Context, entry map[string]any) error {
	segment, err := entrySegment(entry)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode knowledge entry for segment %q: %w", segment, err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, segmentKey(segment), encoded)
		pipe.HIncrBy(ctx, countsKey, segment, 1)
		return nil
	})
	return err
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
