package pipeline

import (
	"context"
	"time"
)

// Unit is one executable node of a pipeline: a step, a suspendable step, or a
// group of units. Units coordinate only through named context keys.
type Unit interface {
	Name() string
	// ReadKeys are the context keys the unit consumes that are not produced
	// inside it.
	ReadKeys() []string
	// OutputKeys are the context keys the unit (recursively) writes.
	OutputKeys() []string
	Execute(ctx context.Context, ec *ExecutionContext, scope *Scope) error
}

// Scope carries per-run state shared by every unit in one pipeline traversal.
type Scope struct {
	RunID  RunID
	Events EventSink
	// Cursor counts steps completed in flattened execution order, including
	// steps replayed as no-ops during resume.
	Cursor int
	// Pending is the run's approval record; suspendable steps create it and
	// read its resolution on resume.
	Pending *PendingApproval
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// publish is best-effort: unit-level events never fail an execution.
func (s *Scope) publish(ctx context.Context, event Event) {
	if s == nil || s.Events == nil {
		return
	}
	_ = s.Events.Publish(ctx, event)
}

func (s *Scope) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
