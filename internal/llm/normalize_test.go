package llm_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalnine/worldbench/internal/llm"
)

func TestNormalizeContentShapesAreEquivalent(t *testing.T) {
	shapes := map[string]any{
		"string": "I deleted 1 spam email.",
		"segments": []llm.Segment{
			{Type: "text", Text: "I deleted "},
			{Type: "tool_use", ID: "tu_1", Name: "email_delete_email"},
			{Type: "text", Text: "1 spam email."},
		},
		"raw json": json.RawMessage(`[{"type":"text","text":"I deleted "},{"type":"thinking","thinking":"hm"},{"type":"text","text":"1 spam email."}]`),
		"decoded": []any{
			map[string]any{"type": "text", "text": "I deleted 1 spam"},
			map[string]any{"type": "text", "text": " email."},
		},
	}
	for name, content := range shapes {
		got, err := llm.NormalizeContent(content)
		require.NoError(t, err, name)
		assert.Equal(t, "I deleted 1 spam email.", got, name)
	}
}

func TestNormalizeContentRejectsUnknownShapes(t *testing.T) {
	for _, content := range []any{
		42,
		map[string]any{"text": "hi"},
		[]any{"just a string"},
		[]any{map[string]any{"type": "text"}},
		[]any{map[string]any{"text": "untyped"}},
		json.RawMessage(`[{"type":"text","text":"a"},{"text":"b"}]`),
		json.RawMessage(`{not json`),
	} {
		_, err := llm.NormalizeContent(content)
		assert.Error(t, err, "%#v", content)
	}
}

func TestNormalizeContentEmpty(t *testing.T) {
	got, err := llm.NormalizeContent(nil)
	require.NoError(t, err)
	assert.Equal(t, "", got)

	got, err = llm.NormalizeContent([]llm.Segment{})
	require.NoError(t, err)
	assert.Equal(t, "", got)
}
