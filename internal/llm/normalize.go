package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// NormalizeContent reduces a provider's raw content to plain text. Content
// is either a string or an ordered list of typed segments; text segments are
// concatenated in order and everything else is skipped.
func NormalizeContent(content any) (string, error) {
	switch v := content.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case []Segment:
		var b strings.Builder
		for _, seg := range v {
			if seg.Type == "text" {
				b.WriteString(seg.Text)
			}
		}
		return b.String(), nil
	case json.RawMessage:
		var decoded any
		if err := json.Unmarshal(v, &decoded); err != nil {
			return "", fmt.Errorf("content is not valid JSON: %w", err)
		}
		return NormalizeContent(decoded)
	case []any:
		var b strings.Builder
		for i, item := range v {
			seg, ok := item.(map[string]any)
			if !ok {
				return "", fmt.Errorf("content segment %d is %T, not an object", i, item)
			}
			kind, ok := seg["type"].(string)
			if !ok {
				return "", fmt.Errorf("content segment %d has no type", i)
			}
			if kind != "text" {
				continue
			}
			text, ok := seg["text"].(string)
			if !ok {
				return "", fmt.Errorf("text segment %d has no text", i)
			}
			b.WriteString(text)
		}
		return b.String(), nil
	}
	return "", fmt.Errorf("unsupported content shape %T", content)
}
