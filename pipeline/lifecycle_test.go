package pipeline_test

import (
	"errors"
	"testing"

	"github.com/Gurpartap/pipeframe/pipeline"
)

func TestTransitionRunStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		from    pipeline.RunStatus
		to      pipeline.RunStatus
		wantErr bool
	}{
		{"new to pending", "", pipeline.RunStatusPending, false},
		{"pending to running", pipeline.RunStatusPending, pipeline.RunStatusRunning, false},
		{"running to suspended", pipeline.RunStatusRunning, pipeline.RunStatusSuspended, false},
		{"suspended to running", pipeline.RunStatusSuspended, pipeline.RunStatusRunning, false},
		{"running to completed", pipeline.RunStatusRunning, pipeline.RunStatusCompleted, false},
		{"running to failed", pipeline.RunStatusRunning, pipeline.RunStatusFailed, false},
		{"suspended to cancelled", pipeline.RunStatusSuspended, pipeline.RunStatusCancelled, false},
		{"same status is no-op", pipeline.RunStatusRunning, pipeline.RunStatusRunning, false},
		{"pending to completed", pipeline.RunStatusPending, pipeline.RunStatusCompleted, true},
		{"completed to running", pipeline.RunStatusCompleted, pipeline.RunStatusRunning, true},
		{"failed to suspended", pipeline.RunStatusFailed, pipeline.RunStatusSuspended, true},
		{"cancelled to running", pipeline.RunStatusCancelled, pipeline.RunStatusRunning, true},
		{"unknown source", pipeline.RunStatus("paused"), pipeline.RunStatusRunning, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			state := pipeline.RunState{ID: "run-1", Status: tt.from}
			err := pipeline.TransitionRunStatus(&state, tt.to)
			if tt.wantErr {
				if !errors.Is(err, pipeline.ErrInvalidRunStateTransition) {
					t.Fatalf("expected ErrInvalidRunStateTransition, got %v", err)
				}
				if state.Status != tt.from {
					t.Fatalf("rejected transition mutated status to %q", state.Status)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if state.Status != tt.to {
				t.Fatalf("status is %q, want %q", state.Status, tt.to)
			}
		})
	}
}
