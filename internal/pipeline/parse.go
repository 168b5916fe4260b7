package pipeline

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// cleanJSON extracts a JSON object from model output that may be wrapped
// in markdown code fences or surrounding prose.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}

// decodeModelJSON parses a model's JSON answer into out after cleaning.
func decodeModelJSON(text string, out any) error {
	cleaned := cleanJSON(text)
	if cleaned == "" {
		return eris.New("pipeline: empty model response")
	}
	if err := json.Unmarshal([]byte(cleaned), out); err != nil {
		return eris.Wrap(err, "pipeline: parse model response")
	}
	return nil
}
