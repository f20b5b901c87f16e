package pipeline_test

import (
	"context"
	"errors"
	"testing"

	"github.com/Gurpartap/pipeframe/pipeline"
)

func TestStep_ExecuteCommitsOutput(t *testing.T) {
	t.Parallel()

	var gotTask pipeline.Task
	step := mustStep(t, "profiler", "customer_analysis", []string{"generated_customer_profile"},
		pipeline.TaskExecutorFunc(func(_ context.Context, task pipeline.Task) (any, error) {
			gotTask = task
			return map[string]any{"urgency": "high"}, nil
		}))

	ec := pipeline.NewExecutionContext()
	if err := ec.Set("proxy_customer", "generated_customer_profile", map[string]any{"segment": "high_value"}); err != nil {
		t.Fatalf("seed set returned error: %v", err)
	}

	scope := &pipeline.Scope{RunID: "run-1"}
	if err := step.Execute(context.Background(), ec, scope); err != nil {
		t.Fatalf("execute returned error: %v", err)
	}

	if gotTask.Step != "profiler" {
		t.Fatalf("executor received unexpected step: %q", gotTask.Step)
	}
	profile, ok := gotTask.Inputs["generated_customer_profile"].(map[string]any)
	if !ok || profile["segment"] != "high_value" {
		t.Fatalf("executor received unexpected inputs: %+v", gotTask.Inputs)
	}
	value, err := ec.Get("customer_analysis")
	if err != nil {
		t.Fatalf("output missing: %v", err)
	}
	if value.(map[string]any)["urgency"] != "high" {
		t.Fatalf("unexpected output value: %+v", value)
	}
	owner, _ := ec.Owner("customer_analysis")
	if owner != "profiler" {
		t.Fatalf("unexpected output owner: %q", owner)
	}
	if scope.Cursor != 1 {
		t.Fatalf("unexpected cursor: %d", scope.Cursor)
	}
}

func TestStep_AbsentReadKeyIsDefinedError(t *testing.T) {
	t.Parallel()

	calls := 0
	step := mustStep(t, "profiler", "customer_analysis", []string{"generated_customer_profile"},
		pipeline.TaskExecutorFunc(func(_ context.Context, _ pipeline.Task) (any, error) {
			calls++
			return nil, nil
		}))

	err := step.Execute(context.Background(), pipeline.NewExecutionContext(), &pipeline.Scope{RunID: "run-1"})
	if !errors.Is(err, pipeline.ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
	var stepErr *pipeline.StepError
	if !errors.As(err, &stepErr) || stepErr.Step != "profiler" {
		t.Fatalf("expected StepError for profiler, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("executor invoked despite read-set violation: %d", calls)
	}
}

func TestStep_ExecutorFailureWrapsStepError(t *testing.T) {
	t.Parallel()

	cause := pipeline.PermanentExecutorError(errors.New("model unavailable"))
	step := mustStep(t, "scorer", "scored_actions", nil,
		pipeline.TaskExecutorFunc(func(_ context.Context, _ pipeline.Task) (any, error) {
			return nil, cause
		}))

	ec := pipeline.NewExecutionContext()
	err := step.Execute(context.Background(), ec, &pipeline.Scope{RunID: "run-1"})

	var stepErr *pipeline.StepError
	if !errors.As(err, &stepErr) {
		t.Fatalf("expected StepError, got %v", err)
	}
	if stepErr.Step != "scorer" {
		t.Fatalf("unexpected failing step: %q", stepErr.Step)
	}
	if stepErr.Retryable() {
		t.Fatal("permanent failure reported as retryable")
	}
	if _, ok := ec.Lookup("scored_actions"); ok {
		t.Fatal("failed step committed a partial output")
	}
}

func TestStep_TransientFailureIsRetryable(t *testing.T) {
	t.Parallel()

	step := mustStep(t, "scorer", "scored_actions", nil,
		pipeline.TaskExecutorFunc(func(_ context.Context, _ pipeline.Task) (any, error) {
			return nil, pipeline.TransientExecutorError(errors.New("rate limited"))
		}))

	err := step.Execute(context.Background(), pipeline.NewExecutionContext(), &pipeline.Scope{RunID: "run-1"})
	var stepErr *pipeline.StepError
	if !errors.As(err, &stepErr) {
		t.Fatalf("expected StepError, got %v", err)
	}
	if !stepErr.Retryable() {
		t.Fatal("transient failure not reported as retryable")
	}
}

func TestStep_ReplaySkipsExecutor(t *testing.T) {
	t.Parallel()

	calls := 0
	step := mustStep(t, "timing", "optimal_timing", nil,
		pipeline.TaskExecutorFunc(func(_ context.Context, _ pipeline.Task) (any, error) {
			calls++
			return "tuesday", nil
		}))

	ec := pipeline.NewExecutionContext()
	scope := &pipeline.Scope{RunID: "run-1"}
	if err := step.Execute(context.Background(), ec, scope); err != nil {
		t.Fatalf("first execute returned error: %v", err)
	}
	if err := step.Execute(context.Background(), ec, scope); err != nil {
		t.Fatalf("replay execute returned error: %v", err)
	}

	if calls != 1 {
		t.Fatalf("executor invoked %d times, want 1", calls)
	}
	if scope.Cursor != 2 {
		t.Fatalf("replay did not advance cursor: %d", scope.Cursor)
	}
}

func TestStep_ToolsArePassedToExecutor(t *testing.T) {
	t.Parallel()

	lookup := pipeline.ToolFunc(func(_ context.Context, args map[string]any) (any, error) {
		return map[string]any{"segment": args["segment"]}, nil
	})
	step, err := pipeline.NewStep(pipeline.StepSpec{
		Name:      "pattern_matcher",
		OutputKey: "historical_match",
		Executor: pipeline.TaskExecutorFunc(func(ctx context.Context, task pipeline.Task) (any, error) {
			tool, ok := task.Tools["query_historical_patterns"]
			if !ok {
				return nil, errors.New("tool not bound")
			}
			return tool.Call(ctx, map[string]any{"segment": "high_value"})
		}),
		Tools: map[string]pipeline.Tool{"query_historical_patterns": lookup},
	})
	if err != nil {
		t.Fatalf("new step: %v", err)
	}

	ec := pipeline.NewExecutionContext()
	if err := step.Execute(context.Background(), ec, &pipeline.Scope{RunID: "run-1"}); err != nil {
		t.Fatalf("execute returned error: %v", err)
	}
	value, err := ec.Get("historical_match")
	if err != nil {
		t.Fatalf("output missing: %v", err)
	}
	if value.(map[string]any)["segment"] != "high_value" {
		t.Fatalf("unexpected tool-backed output: %+v", value)
	}
}

func TestNewStep_Validation(t *testing.T) {
	t.Parallel()

	executor := staticExecutor(nil)
	if _, err := pipeline.NewStep(pipeline.StepSpec{OutputKey: "x", Executor: executor}); err == nil {
		t.Fatal("expected error for missing name")
	}
	if _, err := pipeline.NewStep(pipeline.StepSpec{Name: "s", Executor: executor}); err == nil {
		t.Fatal("expected error for missing output key")
	}
	if _, err := pipeline.NewStep(pipeline.StepSpec{Name: "s", OutputKey: "x"}); err == nil {
		t.Fatal("expected error for missing executor")
	}
}
