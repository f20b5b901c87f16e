package pipeline

import (
	"context"
	"errors"
	"fmt"
	"maps"
)

// StepSpec declares one pipeline step.
type StepSpec struct {
	Name      string
	Reads     []string
	OutputKey string
	Executor  TaskExecutor
	Tools     map[string]Tool
}

// Step is the atomic unit of work: it resolves its declared reads from a
// context snapshot, delegates generation to its bound TaskExecutor, and
// commits the result under its single output key.
type Step struct {
	name     string
	reads    []string
	output   string
	executor TaskExecutor
	tools    map[string]Tool
}

var _ Unit = (*Step)(nil)

func NewStep(spec StepSpec) (*Step, error) {
	if spec.Name == "" {
		return nil, errors.New("step name is required")
	}
	if spec.OutputKey == "" {
		return nil, fmt.Errorf("step %q: output key is required", spec.Name)
	}
	if spec.Executor == nil {
		return nil, fmt.Errorf("step %q: task executor is required", spec.Name)
	}
	reads := make([]string, len(spec.Reads))
	copy(reads, spec.Reads)
	tools := make(map[string]Tool, len(spec.Tools))
	maps.Copy(tools, spec.Tools)
	return &Step{
		name:     spec.Name,
		reads:    reads,
		output:   spec.OutputKey,
		executor: spec.Executor,
		tools:    tools,
	}, nil
}

func (s *Step) Name() string {
	return s.name
}

func (s *Step) ReadKeys() []string {
	out := make([]string, len(s.reads))
	copy(out, s.reads)
	return out
}

func (s *Step) OutputKeys() []string {
	return []string{s.output}
}

func (s *Step) Execute(ctx context.Context, ec *ExecutionContext, scope *Scope) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	if owner, ok := ec.Owner(s.output); ok {
		if owner != s.name {
			return &StepError{
				Step: s.name,
				Err:  fmt.Errorf("%w: key %q owned by %q", ErrDuplicateKey, s.output, owner),
			}
		}
		// Output already committed by a prior traversal of this run; the
		// executor is not re-invoked.
		scope.Cursor++
		return nil
	}

	inputs, err := resolveInputs(s.name, s.reads, ec.Snapshot())
	if err != nil {
		return err
	}

	value, err := s.executor.Run(ctx, Task{
		Step:   s.name,
		Inputs: inputs,
		Tools:  maps.Clone(s.tools),
	})
	if err != nil {
		if cancellationErr := contextCancellationError(ctx, err); cancellationErr != nil {
			return cancellationErr
		}
		return &StepError{Step: s.name, Err: err}
	}

	if err := ec.Set(s.name, s.output, value); err != nil {
		return &StepError{Step: s.name, Err: err}
	}
	scope.Cursor++
	scope.publish(ctx, Event{
		RunID: scope.RunID,
		Unit:  s.name,
		Type:  EventTypeStepCompleted,
		Key:   s.output,
	})
	return nil
}

// resolveInputs materializes a step's declared read-set from a snapshot. An
// absent key is a contract violation, not a nil input.
func resolveInputs(stepName string, reads []string, snapshot Snapshot) (map[string]any, error) {
	inputs := make(map[string]any, len(reads))
	for _, key := range reads {
		value, err := snapshot.Get(key)
		if err != nil {
			return nil, &StepError{
				Step: stepName,
				Err:  fmt.Errorf("read-set violation: %w", err),
			}
		}
		inputs[key] = value
	}
	return inputs, nil
}

func contextCancellationError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	switch {
	case errors.Is(err, context.Canceled):
		return context.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return context.DeadlineExceeded
	default:
		return nil
	}
}
