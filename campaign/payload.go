package campaign

import (
	"github.com/jmespath/go-jmespath"

	"github.com/Gurpartap/pipeframe/pipeline"
)

// approvalPayload builds the decision summary shown to the reviewer: the
// proposed action, its estimated cost, and the projected return, extracted
// from the content and scoring outputs as of the suspension point.
func approvalPayload(snapshot pipeline.Snapshot) (map[string]any, error) {
	content, err := snapshot.Get(KeyMarketingContent)
	if err != nil {
		return nil, err
	}
	scored, err := snapshot.Get(KeyScoredActions)
	if err != nil {
		return nil, err
	}
	validation, err := snapshot.Get(KeyValidationResult)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"action": firstNonNil(
			extract(content, "summary"),
			extract(scored, "recommended.action_type"),
		),
		"cost":      extract(scored, "recommended.estimated_cost"),
		"roi":       extract(scored, "recommended.predicted_roi"),
		"permitted": extract(validation, "permitted"),
	}
	return payload, nil
}

// extract evaluates a JMESPath expression against a JSON-like document,
// returning nil when the path does not resolve.
func extract(doc any, expression string) any {
	if doc == nil {
		return nil
	}
	value, err := jmespath.Search(expression, doc)
	if err != nil {
		return nil
	}
	return value
}

func firstNonNil(values ...any) any {
	for _, value := range values {
		if value != nil {
			return value
		}
	}
	return nil
}
