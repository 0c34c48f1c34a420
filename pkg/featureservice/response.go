package featureservice

import (
	"encoding/json"
	"strings"
)

// normalizeEditResponse arbitrates the edit endpoints' response shapes into
// one outcome. The endpoints differ only in the key wrapping the results
// sequence (addResults, updateResults, deleteResults), so the logic is
// endpoint-agnostic: it takes the first sequence-valued key present. Every
// outbound edit wraps exactly one feature, so exactly one result element is
// expected; zero is a shape error, not partial success.
func normalizeEditResponse(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ErrUnparsableBody
	}

	var body map[string]any
	if err := json.Unmarshal([]byte(raw), &body); err != nil {
		return ErrUnparsableBody
	}

	var results []any
	for _, v := range body {
		if seq, ok := v.([]any); ok {
			results = seq
			break
		}
	}
	if len(results) == 0 {
		return ErrResultsNotFound
	}

	first, ok := results[0].(map[string]any)
	if !ok {
		return &UnexpectedResultError{Result: results[0]}
	}
	if success, ok := first["success"].(bool); ok && success {
		return nil
	}
	if errObj, ok := first["error"].(map[string]any); ok {
		return serviceErrorFrom(errObj, "description")
	}
	return &UnexpectedResultError{Result: first}
}
