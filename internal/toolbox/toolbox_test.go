package toolbox_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalnine/worldbench/internal/toolbox"
	"github.com/signalnine/worldbench/internal/world"
	"github.com/signalnine/worldbench/internal/world/apps"
)

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func emailServer(t *testing.T) *world.Server {
	t.Helper()
	spec := &world.Spec{Name: "test", Apps: []string{"email", "calculator"}}
	rt, err := apps.Compose(spec, func() time.Time { return fixedNow })
	require.NoError(t, err)
	return world.NewServer("test", rt, nil, zerolog.Nop())
}

func TestSessionOverHTTP(t *testing.T) {
	ts := httptest.NewServer(emailServer(t).Handler())
	defer ts.Close()

	ctx := context.Background()
	s, err := toolbox.Connect(ctx, &world.Transport{Kind: world.TransportHTTP, URL: ts.URL + world.MCPPath})
	require.NoError(t, err)
	defer s.Close()

	tools, err := s.Tools(ctx)
	require.NoError(t, err)
	names := map[string]bool{}
	for _, tool := range tools {
		names[tool.Name] = true
		assert.Equal(t, "object", tool.Parameters["type"], tool.Name)
	}
	assert.True(t, names["email_delete_email"])
	assert.True(t, names["calculator_calculate"])

	text, isErr, err := s.Call(ctx, "calculator_calculate", json.RawMessage(`{"expression":"2 ** 10"}`))
	require.NoError(t, err)
	assert.False(t, isErr)
	assert.Contains(t, text, "1024")
}

func TestSessionToolErrorsAreData(t *testing.T) {
	ct, st := mcp.NewInMemoryTransports()
	ctx := context.Background()
	ss, err := emailServer(t).MCP().Connect(ctx, st, nil)
	require.NoError(t, err)
	defer ss.Close()

	s, err := toolbox.ConnectTransport(ctx, ct)
	require.NoError(t, err)
	defer s.Close()

	text, isErr, err := s.Call(ctx, "email_get_email", json.RawMessage(`{"email_id":"nope"}`))
	require.NoError(t, err)
	assert.True(t, isErr)
	assert.Contains(t, text, "not found")

	_, isErr, err = s.Call(ctx, "email_get_folders", nil)
	require.NoError(t, err)
	assert.False(t, isErr)
}

func TestConnectRejectsBadTransport(t *testing.T) {
	ctx := context.Background()
	_, err := toolbox.Connect(ctx, nil)
	assert.Error(t, err)
	_, err = toolbox.Connect(ctx, &world.Transport{Kind: "carrier-pigeon"})
	assert.Error(t, err)
	_, err = toolbox.Connect(ctx, &world.Transport{Kind: world.TransportStdio})
	assert.Error(t, err)
}
