package pipeline_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/Gurpartap/pipeframe/pipeline"
)

type counterIDGen struct {
	counter atomic.Uint64
}

func (g *counterIDGen) NewRunID(_ context.Context) (pipeline.RunID, error) {
	return pipeline.RunID(fmt.Sprintf("run-%06d", g.counter.Add(1))), nil
}

func staticExecutor(value any) pipeline.TaskExecutorFunc {
	return func(_ context.Context, _ pipeline.Task) (any, error) {
		return value, nil
	}
}

func mustStep(t *testing.T, name, output string, reads []string, executor pipeline.TaskExecutor) *pipeline.Step {
	t.Helper()
	step, err := pipeline.NewStep(pipeline.StepSpec{
		Name:      name,
		Reads:     reads,
		OutputKey: output,
		Executor:  executor,
	})
	if err != nil {
		t.Fatalf("new step %q: %v", name, err)
	}
	return step
}

func mustSequential(t *testing.T, name string, children ...pipeline.Unit) *pipeline.SequentialGroup {
	t.Helper()
	group, err := pipeline.NewSequentialGroup(name, children...)
	if err != nil {
		t.Fatalf("new sequential group %q: %v", name, err)
	}
	return group
}

func mustParallel(t *testing.T, name string, children ...pipeline.Unit) *pipeline.ParallelGroup {
	t.Helper()
	group, err := pipeline.NewParallelGroup(name, children...)
	if err != nil {
		t.Fatalf("new parallel group %q: %v", name, err)
	}
	return group
}

func mustApprovalStep(t *testing.T, name, output string, reads []string) *pipeline.SuspendableStep {
	t.Helper()
	step, err := pipeline.NewSuspendableStep(pipeline.SuspendableStepSpec{
		Name:      name,
		Reads:     reads,
		OutputKey: output,
		Payload: func(snapshot pipeline.Snapshot) (map[string]any, error) {
			payload := map[string]any{}
			for _, key := range reads {
				value, err := snapshot.Get(key)
				if err != nil {
					return nil, err
				}
				payload[key] = value
			}
			return payload, nil
		},
	})
	if err != nil {
		t.Fatalf("new suspendable step %q: %v", name, err)
	}
	return step
}

func newTestRunner(t *testing.T, store pipeline.RunStore, events pipeline.EventSink, root pipeline.Unit) *pipeline.Runner {
	t.Helper()
	runner, err := pipeline.NewRunner(pipeline.Dependencies{
		IDGenerator: &counterIDGen{},
		RunStore:    store,
		Pipeline:    root,
		EventSink:   events,
	})
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	return runner
}
