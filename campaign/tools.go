package campaign

import (
	"context"
	"fmt"
	"time"

	"github.com/Gurpartap/pipeframe/pipeline"
	"github.com/Gurpartap/pipeframe/tooling/registry"
)

// Tool names exposed to step executors.
const (
	ToolQueryHistoricalPatterns = "query_historical_patterns"
	ToolCheckBusinessRules      = "check_business_rules"
)

// channelCostLimits is the business-rule table for per-action spend by
// channel.
var channelCostLimits = map[string]float64{
	"email": 500,
	"sms":   300,
	"push":  100,
}

func newToolRegistry(knowledge pipeline.KnowledgeStore) (*registry.Registry, error) {
	tools := registry.New()

	err := tools.Register(registry.Definition{
		Name:        ToolQueryHistoricalPatterns,
		Description: "Look up historical action outcomes for a customer segment",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"segment": map[string]any{"type": "string"},
			},
			"required":             []any{"segment"},
			"additionalProperties": false,
		},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			segment, _ := args["segment"].(string)
			return knowledge.Query(ctx, segment)
		},
	})
	if err != nil {
		return nil, err
	}

	err = tools.Register(registry.Definition{
		Name:        ToolCheckBusinessRules,
		Description: "Validate a candidate action against spend and channel rules",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"action_type":    map[string]any{"type": "string"},
				"channel":        map[string]any{"type": "string"},
				"estimated_cost": map[string]any{"type": "number", "minimum": 0},
			},
			"required":             []any{"action_type", "channel", "estimated_cost"},
			"additionalProperties": false,
		},
		Handler: func(_ context.Context, args map[string]any) (any, error) {
			return checkBusinessRules(args)
		},
	})
	if err != nil {
		return nil, err
	}

	return tools, nil
}

func checkBusinessRules(args map[string]any) (map[string]any, error) {
	channel, _ := args["channel"].(string)
	cost := numericArg(args["estimated_cost"])

	var violations []any
	limit, known := channelCostLimits[channel]
	if !known {
		violations = append(violations, fmt.Sprintf("channel %q is not permitted", channel))
	} else if cost > limit {
		violations = append(violations, fmt.Sprintf(
			"estimated cost %.2f exceeds %s limit %.2f", cost, channel, limit))
	}

	return map[string]any{
		"permitted":  len(violations) == 0,
		"violations": violations,
	}, nil
}

func numericArg(raw any) float64 {
	switch value := raw.(type) {
	case float64:
		return value
	case float32:
		return float64(value)
	case int:
		return float64(value)
	case int64:
		return float64(value)
	default:
		return 0
	}
}

// recordingExecutor wraps the tracker step's executor so the outcome entry is
// durably appended to the knowledge store before the step commits its output.
// A run is therefore never reported completed without its record being
// visible to later runs' queries.
type recordingExecutor struct {
	next      pipeline.TaskExecutor
	knowledge pipeline.KnowledgeStore
	now       func() time.Time
}

func (e *recordingExecutor) Run(ctx context.Context, task pipeline.Task) (any, error) {
	value, err := e.next.Run(ctx, task)
	if err != nil {
		return nil, err
	}

	entry := outcomeEntry(task.Inputs, value, e.clock()())
	if err := e.knowledge.Record(ctx, entry); err != nil {
		return nil, pipeline.PermanentExecutorError(
			fmt.Errorf("record outcome: %w", err),
		)
	}
	return value, nil
}

func (e *recordingExecutor) clock() func() time.Time {
	if e.now != nil {
		return e.now
	}
	return time.Now
}

// outcomeEntry builds the historical action record: one row per run in the
// layout {segment, action_type, outcome, revenue, timestamp}.
func outcomeEntry(inputs map[string]any, output any, now time.Time) map[string]any {
	segment := stringOr(
		extract(inputs[KeyCustomerProfile], "segment"),
		"unknown",
	)
	actionType := stringOr(
		extract(inputs[KeyScoredActions], "recommended.action_type"),
		"unknown",
	)
	outcome := stringOr(
		extract(inputs[KeyApprovalStatus], "status"),
		"unknown",
	)
	revenue := extract(output, "revenue")
	if revenue == nil {
		revenue = extract(inputs[KeyScoredActions], "recommended.predicted_revenue")
	}

	return map[string]any{
		"segment":     segment,
		"action_type": actionType,
		"outcome":     outcome,
		"revenue":     revenue,
		"timestamp":   now.UTC().Format(time.RFC3339),
	}
}

func stringOr(raw any, fallback string) string {
	if value, ok := raw.(string); ok && value != "" {
		return value
	}
	return fallback
}
