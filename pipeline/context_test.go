package pipeline_test

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/Gurpartap/pipeframe/pipeline"
)

func TestExecutionContext_SetAndGet(t *testing.T) {
	t.Parallel()

	ec := pipeline.NewExecutionContext()
	if err := ec.Set("profiler", "customer_analysis", map[string]any{"urgency": "high"}); err != nil {
		t.Fatalf("set returned error: %v", err)
	}

	value, err := ec.Get("customer_analysis")
	if err != nil {
		t.Fatalf("get returned error: %v", err)
	}
	analysis, ok := value.(map[string]any)
	if !ok || analysis["urgency"] != "high" {
		t.Fatalf("unexpected value: %+v", value)
	}

	owner, ok := ec.Owner("customer_analysis")
	if !ok || owner != "profiler" {
		t.Fatalf("unexpected owner: %q", owner)
	}
}

func TestExecutionContext_GetAbsentKey(t *testing.T) {
	t.Parallel()

	ec := pipeline.NewExecutionContext()
	_, err := ec.Get("missing")
	if !errors.Is(err, pipeline.ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestExecutionContext_DuplicateKeyRejected(t *testing.T) {
	t.Parallel()

	ec := pipeline.NewExecutionContext()
	if err := ec.Set("validator", "validation_results", true); err != nil {
		t.Fatalf("first set returned error: %v", err)
	}

	err := ec.Set("scorer", "validation_results", false)
	if !errors.Is(err, pipeline.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}

	value, getErr := ec.Get("validation_results")
	if getErr != nil || value != true {
		t.Fatalf("original value clobbered: %v (%v)", value, getErr)
	}
}

func TestExecutionContext_SameOwnerOverwriteAllowed(t *testing.T) {
	t.Parallel()

	ec := pipeline.NewExecutionContext()
	if err := ec.Set("approval", "approval_status", "awaiting"); err != nil {
		t.Fatalf("first set returned error: %v", err)
	}
	if err := ec.Set("approval", "approval_status", "approved"); err != nil {
		t.Fatalf("overwrite by owner returned error: %v", err)
	}
	value, err := ec.Get("approval_status")
	if err != nil || value != "approved" {
		t.Fatalf("unexpected value after overwrite: %v (%v)", value, err)
	}
}

func TestExecutionContext_SnapshotIsolation(t *testing.T) {
	t.Parallel()

	ec := pipeline.NewExecutionContext()
	nested := map[string]any{"options": []any{"email_discount"}}
	if err := ec.Set("generator", "generated_actions", nested); err != nil {
		t.Fatalf("set returned error: %v", err)
	}

	snapshot := ec.Snapshot()

	// Mutating the original value must not leak into the snapshot.
	nested["options"] = []any{"sms_reminder"}
	if err := ec.Set("timing", "optimal_timing", "tuesday"); err != nil {
		t.Fatalf("set returned error: %v", err)
	}

	value, err := snapshot.Get("generated_actions")
	if err != nil {
		t.Fatalf("snapshot get returned error: %v", err)
	}
	options := value.(map[string]any)["options"].([]any)
	if len(options) != 1 || options[0] != "email_discount" {
		t.Fatalf("snapshot observed mutation: %+v", options)
	}
	if _, ok := snapshot.Lookup("optimal_timing"); ok {
		t.Fatal("snapshot observed a write made after it was taken")
	}
}

func TestExecutionContext_CloneIsDeep(t *testing.T) {
	t.Parallel()

	ec := pipeline.NewExecutionContext()
	if err := ec.Set("scorer", "scored_actions", map[string]any{"roi": 8.5}); err != nil {
		t.Fatalf("set returned error: %v", err)
	}

	clone := ec.Clone()
	if err := clone.Set("timing", "optimal_timing", "tuesday"); err != nil {
		t.Fatalf("clone set returned error: %v", err)
	}

	if _, ok := ec.Lookup("optimal_timing"); ok {
		t.Fatal("write to clone leaked into original")
	}
	owner, ok := clone.Owner("scored_actions")
	if !ok || owner != "scorer" {
		t.Fatalf("clone lost ownership: %q", owner)
	}
}

func TestExecutionContext_JSONRoundTrip(t *testing.T) {
	t.Parallel()

	ec := pipeline.NewExecutionContext()
	if err := ec.Set("input", "customer_description", "lapsed high spender"); err != nil {
		t.Fatalf("set returned error: %v", err)
	}
	if err := ec.Set("scorer", "scored_actions", map[string]any{"roi": 8.5}); err != nil {
		t.Fatalf("set returned error: %v", err)
	}

	encoded, err := json.Marshal(ec)
	if err != nil {
		t.Fatalf("marshal returned error: %v", err)
	}
	decoded := pipeline.NewExecutionContext()
	if err := json.Unmarshal(encoded, decoded); err != nil {
		t.Fatalf("unmarshal returned error: %v", err)
	}

	if !reflect.DeepEqual(decoded.Keys(), ec.Keys()) {
		t.Fatalf("keys differ after round trip: %v vs %v", decoded.Keys(), ec.Keys())
	}
	owner, ok := decoded.Owner("scored_actions")
	if !ok || owner != "scorer" {
		t.Fatalf("ownership lost after round trip: %q", owner)
	}
	err = decoded.Set("validator", "customer_description", "overwrite")
	if !errors.Is(err, pipeline.ErrDuplicateKey) {
		t.Fatalf("duplicate-key enforcement lost after round trip: %v", err)
	}
}
