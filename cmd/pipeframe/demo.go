package main

import (
	"context"
	"fmt"

	"github.com/Gurpartap/pipeframe/campaign"
	"github.com/Gurpartap/pipeframe/pipeline"
)

// demoExecutor stands in for the delegated generation service: it produces a
// plausible canned decision for each step so the engine can be exercised
// without credentials.
func demoExecutor() pipeline.TaskExecutor {
	return pipeline.TaskExecutorFunc(func(ctx context.Context, task pipeline.Task) (any, error) {
		switch task.Step {
		case "proxy_customer":
			return map[string]any{
				"customer_id": "CUST123",
				"segment":     "high_value",
				"scenario":    "cart_abandonment",
				"description": task.Inputs[campaign.SeedCustomerDescription],
			}, nil
		case "customer_profiler":
			return map[string]any{
				"urgency":      "high",
				"churn_risk":   0.34,
				"last_contact": "12d",
			}, nil
		case "pattern_matcher":
			tool := task.Tools[campaign.ToolQueryHistoricalPatterns]
			history, err := tool.Call(ctx, map[string]any{"segment": "high_value"})
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"segment": "high_value",
				"history": history,
			}, nil
		case "action_generator":
			return map[string]any{
				"options": []any{
					map[string]any{"action_type": "email_discount", "channel": "email", "estimated_cost": 120.0},
					map[string]any{"action_type": "sms_reminder", "channel": "sms", "estimated_cost": 45.0},
				},
			}, nil
		case "validator":
			tool := task.Tools[campaign.ToolCheckBusinessRules]
			return tool.Call(ctx, map[string]any{
				"action_type":    "email_discount",
				"channel":        "email",
				"estimated_cost": 120.0,
			})
		case "scorer":
			return map[string]any{
				"recommended": map[string]any{
					"action_type":       "email_discount",
					"estimated_cost":    120.0,
					"predicted_roi":     8.5,
					"predicted_revenue": 1020.0,
				},
			}, nil
		case "timing":
			return map[string]any{"send_day": "tuesday", "send_hour": 10}, nil
		case "content":
			return map[string]any{
				"summary": "10% off email for returning high-value customer",
				"subject": "We saved your cart",
				"body":    "Your items are waiting - here is 10% off to finish checkout.",
			}, nil
		case "tracker":
			return map[string]any{
				"recorded": true,
				"revenue":  1020.0,
			}, nil
		default:
			return nil, pipeline.PermanentExecutorError(
				fmt.Errorf("no demo output for step %q", task.Step),
			)
		}
	})
}
