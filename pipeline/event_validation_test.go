package pipeline_test

import (
	"errors"
	"testing"

	"github.com/Gurpartap/pipeframe/pipeline"
)

func TestValidateEvent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		event   pipeline.Event
		wantErr bool
	}{
		{
			name:  "run started",
			event: pipeline.Event{RunID: "run-1", Type: pipeline.EventTypeRunStarted},
		},
		{
			name: "step completed",
			event: pipeline.Event{
				RunID: "run-1",
				Type:  pipeline.EventTypeStepCompleted,
				Unit:  "customer_profiler",
				Key:   "customer_analysis",
			},
		},
		{
			name: "command applied",
			event: pipeline.Event{
				RunID:       "run-1",
				Type:        pipeline.EventTypeCommandApplied,
				CommandKind: pipeline.CommandKindStart,
			},
		},
		{
			name:    "missing type",
			event:   pipeline.Event{RunID: "run-1"},
			wantErr: true,
		},
		{
			name:    "missing run id",
			event:   pipeline.Event{Type: pipeline.EventTypeRunCompleted},
			wantErr: true,
		},
		{
			name:    "command applied without kind",
			event:   pipeline.Event{RunID: "run-1", Type: pipeline.EventTypeCommandApplied},
			wantErr: true,
		},
		{
			name:    "step completed without unit",
			event:   pipeline.Event{RunID: "run-1", Type: pipeline.EventTypeStepCompleted, Key: "customer_analysis"},
			wantErr: true,
		},
		{
			name:    "step completed without key",
			event:   pipeline.Event{RunID: "run-1", Type: pipeline.EventTypeStepCompleted, Unit: "customer_profiler"},
			wantErr: true,
		},
		{
			name:    "suspension without unit",
			event:   pipeline.Event{RunID: "run-1", Type: pipeline.EventTypeRunSuspended},
			wantErr: true,
		},
		{
			name:    "decision without unit",
			event:   pipeline.Event{RunID: "run-1", Type: pipeline.EventTypeDecisionRecorded},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := pipeline.ValidateEvent(tt.event)
			if tt.wantErr {
				if !errors.Is(err, pipeline.ErrEventInvalid) {
					t.Fatalf("expected ErrEventInvalid, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
