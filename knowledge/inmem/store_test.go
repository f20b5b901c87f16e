package inmem_test

import (
	"context"
	"errors"
	"testing"

	"github.com/Gurpartap/pipeframe/knowledge/inmem"
)

func TestStore_RecordThenQuery(t *testing.T) {
	t.Parallel()

	store := inmem.New()
	ctx := context.Background()

	entry := map[string]any{
		"segment":     "high_value",
		"action_type": "win_back_email",
		"outcome":     "approved",
		"revenue":     420.0,
		"timestamp":   "2026-03-14T09:30:00Z",
	}
	if err := store.Record(ctx, entry); err != nil {
		t.Fatalf("record returned error: %v", err)
	}
	if err := store.Record(ctx, map[string]any{"segment": "high_value", "action_type": "upsell_push"}); err != nil {
		t.Fatalf("second record returned error: %v", err)
	}
	if err := store.Record(ctx, map[string]any{"segment": "casual", "action_type": "discount_sms"}); err != nil {
		t.Fatalf("third record returned error: %v", err)
	}

	result, err := store.Query(ctx, "high_value")
	if err != nil {
		t.Fatalf("query returned error: %v", err)
	}
	summary := result.(map[string]any)
	if summary["segment"] != "high_value" {
		t.Fatalf("unexpected segment: %v", summary["segment"])
	}
	if summary["total_actions"] != 2 {
		t.Fatalf("unexpected total: %v", summary["total_actions"])
	}
	actions := summary["actions"].([]any)
	if len(actions) != 2 {
		t.Fatalf("expected 2 actions, got %d", len(actions))
	}
	first := actions[0].(map[string]any)
	if first["action_type"] != "win_back_email" || first["revenue"] != 420.0 {
		t.Fatalf("unexpected first action: %+v", first)
	}
	if store.Len("casual") != 1 {
		t.Fatalf("unexpected casual count: %d", store.Len("casual"))
	}
}

func TestStore_QueryUnknownSegmentIsEmpty(t *testing.T) {
	t.Parallel()

	store := inmem.New()
	result, err := store.Query(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("query returned error: %v", err)
	}
	summary := result.(map[string]any)
	if summary["total_actions"] != 0 {
		t.Fatalf("unexpected total for unknown segment: %v", summary["total_actions"])
	}
	if len(summary["actions"].([]any)) != 0 {
		t.Fatalf("unexpected actions for unknown segment: %v", summary["actions"])
	}
}

func TestStore_RecordRequiresSegment(t *testing.T) {
	t.Parallel()

	store := inmem.New()
	ctx := context.Background()

	if err := store.Record(ctx, map[string]any{"action_type": "win_back_email"}); !errors.Is(err, inmem.ErrMissingSegment) {
		t.Fatalf("expected ErrMissingSegment, got %v", err)
	}
	if err := store.Record(ctx, map[string]any{"segment": 7}); !errors.Is(err, inmem.ErrMissingSegment) {
		t.Fatalf("expected ErrMissingSegment for non-string segment, got %v", err)
	}
	if err := store.Record(ctx, map[string]any{"segment": ""}); !errors.Is(err, inmem.ErrMissingSegment) {
		t.Fatalf("expected ErrMissingSegment for empty segment, got %v", err)
	}
}

func TestStore_RecordDetachesFromCaller(t *testing.T) {
	t.Parallel()

	store := inmem.New()
	ctx := context.Background()

	details := map[string]any{"channel": "email", "offers": []any{"40_percent_off"}}
	entry := map[string]any{
		"segment":     "high_value",
		"action_type": "win_back_email",
		"details":     details,
	}
	if err := store.Record(ctx, entry); err != nil {
		t.Fatalf("record returned error: %v", err)
	}
	entry["action_type"] = "mutated"
	details["channel"] = "mutated"
	details["offers"].([]any)[0] = "mutated"

	result, err := store.Query(ctx, "high_value")
	if err != nil {
		t.Fatalf("query returned error: %v", err)
	}
	stored := result.(map[string]any)["actions"].([]any)[0].(map[string]any)
	if stored["action_type"] != "win_back_email" {
		t.Fatalf("caller mutation leaked into the store: %+v", stored)
	}
	storedDetails := stored["details"].(map[string]any)
	if storedDetails["channel"] != "email" || storedDetails["offers"].([]any)[0] != "40_percent_off" {
		t.Fatalf("nested caller mutation leaked into the store: %+v", storedDetails)
	}

	// Mutating a query result must not rewrite history either.
	storedDetails["channel"] = "mutated"
	again, err := store.Query(ctx, "high_value")
	if err != nil {
		t.Fatalf("second query returned error: %v", err)
	}
	fresh := again.(map[string]any)["actions"].([]any)[0].(map[string]any)
	if fresh["details"].(map[string]any)["channel"] != "email" {
		t.Fatalf("query result mutation leaked into the store: %+v", fresh)
	}
}
