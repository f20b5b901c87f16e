package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/Gurpartap/pipeframe/pipeline"
)

// Config controls retry behavior for wrapped executor and tool calls.
// Intervals follow an exponential schedule; the default predicate retries
// only transient executor failures and never retries context cancellation.
type Config struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	ShouldRetry     func(error) bool
}

// WrapExecutor wraps a task executor with bounded, backoff-spaced retries.
func WrapExecutor(executor pipeline.TaskExecutor, cfg Config) pipeline.TaskExecutor {
	if executor == nil {
		return nil
	}
	return &executorWrapper{
		next: executor,
		cfg:  cfg,
	}
}

type executorWrapper struct {
	next pipeline.TaskExecutor
	cfg  Config
}

func (w *executorWrapper) Run(ctx context.Context, task pipeline.Task) (any, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	return retryWithData(ctx, w.cfg, func() (any, error) {
		return w.next.Run(ctx, task)
	})
}

// WrapTool wraps a tool with bounded, backoff-spaced retries.
func WrapTool(tool pipeline.Tool, cfg Config) pipeline.Tool {
	if tool == nil {
		return nil
	}
	return &toolWrapper{
		next: tool,
		cfg:  cfg,
	}
}

type toolWrapper struct {
	next pipeline.Tool
	cfg  Config
}

func (w *toolWrapper) Call(ctx context.Context, args map[string]any) (any, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	return retryWithData(ctx, w.cfg, func() (any, error) {
		return w.next.Call(ctx, args)
	})
}

func retryWithData(ctx context.Context, cfg Config, op func() (any, error)) (any, error) {
	attempts := normalizedAttempts(cfg.MaxAttempts)
	policy := backoff.WithContext(
		backoff.WithMaxRetries(newBackOff(cfg), uint64(attempts-1)),
		ctx,
	)
	return backoff.RetryWithData(func() (any, error) {
		value, err := op()
		if err == nil {
			return value, nil
		}
		if !shouldRetry(ctx, cfg, err) {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}, policy)
}

func newBackOff(cfg Config) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if cfg.InitialInterval > 0 {
		b.InitialInterval = cfg.InitialInterval
	}
	if cfg.MaxInterval > 0 {
		b.MaxInterval = cfg.MaxInterval
	}
	if cfg.Multiplier > 0 {
		b.Multiplier = cfg.Multiplier
	}
	b.Reset()
	return b
}

func normalizedAttempts(maxAttempts int) int {
	if maxAttempts < 1 {
		return 1
	}
	return maxAttempts
}

func shouldRetry(ctx context.Context, cfg Config, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if cfg.ShouldRetry == nil {
		return pipeline.IsTransient(err)
	}
	return cfg.ShouldRetry(err)
}
