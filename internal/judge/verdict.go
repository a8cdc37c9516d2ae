package judge

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// Verdict is the judge model's answer for one criterion.
type Verdict struct {
	Reasoning string `json:"reasoning"`
	Score     bool   `json:"score"`
}

// ParseError means the judge's output could not be read as a Verdict.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unparseable judge response: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ParseVerdict reads a verdict out of free-form model output: code fences
// and any text around the JSON object are ignored, and malformed JSON is
// repaired where possible. Missing score or empty reasoning is an error.
func ParseVerdict(raw string) (*Verdict, error) {
	body := extractObject(raw)
	if body == "" {
		return nil, &ParseError{Raw: raw, Err: errors.New("no JSON object found")}
	}
	v, err := decodeVerdict(body)
	if err != nil {
		fixed, repairErr := jsonrepair.JSONRepair(body)
		if repairErr != nil {
			return nil, &ParseError{Raw: raw, Err: err}
		}
		if v, err = decodeVerdict(fixed); err != nil {
			return nil, &ParseError{Raw: raw, Err: err}
		}
	}
	return v, nil
}

func decodeVerdict(s string) (*Verdict, error) {
	var fields struct {
		Reasoning *string `json:"reasoning"`
		Score     *bool   `json:"score"`
	}
	if err := json.Unmarshal([]byte(s), &fields); err != nil {
		return nil, err
	}
	if fields.Score == nil {
		return nil, errors.New("missing score")
	}
	if fields.Reasoning == nil || strings.TrimSpace(*fields.Reasoning) == "" {
		return nil, errors.New("empty reasoning")
	}
	return &Verdict{Reasoning: strings.TrimSpace(*fields.Reasoning), Score: *fields.Score}, nil
}

// extractObject returns the span from the first '{' to the last '}', after
// dropping markdown code fences.
func extractObject(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			s = s[i+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	end := strings.LastIndexByte(s, '}')
	if end < start {
		// truncated object; let the repair pass close it
		return s[start:]
	}
	return s[start : end+1]
}
