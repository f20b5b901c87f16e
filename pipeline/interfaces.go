package pipeline

import "context"

// Task is the unit of delegated work handed to a TaskExecutor: the step's
// identity, its resolved inputs, and the tool capabilities bound to it.
type Task struct {
	Step   string
	Inputs map[string]any
	Tools  map[string]Tool
}

// TaskExecutor produces a step's structured output. Implementations are
// opaque to the engine; failures should be classified with
// TransientExecutorError or PermanentExecutorError so the retry policy can
// distinguish them.
type TaskExecutor interface {
	Run(ctx context.Context, task Task) (any, error)
}

// TaskExecutorFunc adapts a function to the TaskExecutor interface.
type TaskExecutorFunc func(ctx context.Context, task Task) (any, error)

func (f TaskExecutorFunc) Run(ctx context.Context, task Task) (any, error) {
	return f(ctx, task)
}

// Tool is a side-effecting capability a step may invoke. Arguments are
// restricted to primitive values (strings, numbers, booleans); composite
// payloads must be serialized to a string and parsed inside the tool.
type Tool interface {
	Call(ctx context.Context, args map[string]any) (any, error)
}

// ToolFunc adapts a function to the Tool interface.
type ToolFunc func(ctx context.Context, args map[string]any) (any, error)

func (f ToolFunc) Call(ctx context.Context, args map[string]any) (any, error) {
	return f(ctx, args)
}

// KnowledgeStore is the cross-run learning channel: pattern and timing steps
// query it, the tracking step appends to it. Record must be durably applied
// before a run is reported completed.
type KnowledgeStore interface {
	Query(ctx context.Context, segment string) (any, error)
	Record(ctx context.Context, entry map[string]any) error
}

// RunStore persists and reloads run state for resumption and observability.
// Save uses optimistic concurrency based on RunState.Version and bumps it by
// one on success.
type RunStore interface {
	Save(ctx context.Context, state RunState) error
	Load(ctx context.Context, runID RunID) (RunState, error)
}

// EventSink receives normalized engine events.
type EventSink interface {
	Publish(ctx context.Context, event Event) error
}

// IDGenerator creates run IDs at the runner boundary.
type IDGenerator interface {
	NewRunID(ctx context.Context) (RunID, error)
}
