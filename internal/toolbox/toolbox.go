// Package toolbox is the agent side of a world: an MCP client session that
// lists the world's tools and invokes them.
package toolbox

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/signalnine/worldbench/internal/llm"
	"github.com/signalnine/worldbench/internal/world"
)

// Session is an open connection to one world.
type Session struct {
	cs *mcp.ClientSession
}

// Connect opens a session over the transport a launcher handed out.
func Connect(ctx context.Context, t *world.Transport) (*Session, error) {
	if t == nil {
		return nil, fmt.Errorf("no world transport")
	}
	var mt mcp.Transport
	switch t.Kind {
	case world.TransportHTTP:
		if t.URL == "" {
			return nil, fmt.Errorf("http transport without url")
		}
		mt = &mcp.StreamableClientTransport{
			Endpoint:             t.URL,
			MaxRetries:           2,
			DisableStandaloneSSE: true,
		}
	case world.TransportStdio:
		if len(t.Command) == 0 {
			return nil, fmt.Errorf("stdio transport without command")
		}
		cmd := exec.Command(t.Command[0], t.Command[1:]...)
		cmd.Env = append(os.Environ(), t.Env...)
		cmd.Stderr = os.Stderr
		mt = &mcp.CommandTransport{Command: cmd, TerminateDuration: 2 * time.Second}
	default:
		return nil, fmt.Errorf("unknown transport kind %q", t.Kind)
	}
	s, err := ConnectTransport(ctx, mt)
	if err != nil {
		return nil, fmt.Errorf("connecting to world at %s: %w", t, err)
	}
	return s, nil
}

// ConnectTransport opens a session over an arbitrary MCP transport, such as
// one half of mcp.NewInMemoryTransports.
func ConnectTransport(ctx context.Context, mt mcp.Transport) (*Session, error) {
	client := mcp.NewClient(&mcp.Implementation{Name: "worldbench-agent", Version: "1.0.0"}, nil)
	cs, err := client.Connect(ctx, mt, nil)
	if err != nil {
		return nil, err
	}
	return &Session{cs: cs}, nil
}

// Tools lists every tool the world advertises, in the order the server
// returns them.
func (s *Session) Tools(ctx context.Context) ([]llm.ToolDefinition, error) {
	var defs []llm.ToolDefinition
	for tool, err := range s.cs.Tools(ctx, nil) {
		if err != nil {
			return nil, fmt.Errorf("listing tools: %w", err)
		}
		schema, err := schemaMap(tool.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("tool %s: %w", tool.Name, err)
		}
		defs = append(defs, llm.ToolDefinition{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  schema,
		})
	}
	return defs, nil
}

// Call invokes a tool. A tool-level failure comes back as text with isError
// set; only transport failures are returned as err.
func (s *Session) Call(ctx context.Context, name string, args json.RawMessage) (text string, isError bool, err error) {
	params := &mcp.CallToolParams{Name: name}
	if len(args) > 0 {
		params.Arguments = args
	} else {
		params.Arguments = map[string]any{}
	}
	res, err := s.cs.CallTool(ctx, params)
	if err != nil {
		return "", false, fmt.Errorf("calling %s: %w", name, err)
	}
	return resultText(res), res.IsError, nil
}

func (s *Session) Close() error {
	return s.cs.Close()
}

func resultText(res *mcp.CallToolResult) string {
	var b strings.Builder
	for _, c := range res.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			b.WriteString(tc.Text)
		}
	}
	if b.Len() == 0 && res.StructuredContent != nil {
		if data, err := json.Marshal(res.StructuredContent); err == nil {
			return string(data)
		}
	}
	return b.String()
}

func schemaMap(schema any) (map[string]any, error) {
	switch v := schema.(type) {
	case nil:
		return map[string]any{"type": "object", "properties": map[string]any{}}, nil
	case map[string]any:
		return v, nil
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("input schema is not an object: %w", err)
	}
	return m, nil
}
