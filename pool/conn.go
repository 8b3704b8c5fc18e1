package pool

import (
	"context"
	"encoding/json"
	"fmt"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// ToolInfo describes a callable tool exposed by the tool service.
type ToolInfo struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Schema      map[string]any `json:"schema,omitempty"`
}

// Conn is a single live connection to the tool service. Implementations are
// not required to be safe for concurrent use; the pool hands a connection to
// one caller at a time.
type Conn interface {
	CallTool(ctx context.Context, tool string, args map[string]any) ([]byte, error)
	ListTools(ctx context.Context) ([]ToolInfo, error)
	Close() error
}

// Dialer establishes a new connection to the tool service. The pool dials
// lazily and redials after discarding a broken connection.
type Dialer func(ctx context.Context) (Conn, error)

// NewStdioDialer returns a Dialer that launches the tool service as a
// subprocess speaking MCP over stdio.
func NewStdioDialer(command string, env []string, args ...string) Dialer {
	return func(ctx context.Context) (Conn, error) {
		c, err := mcpclient.NewStdioMCPClient(command, env, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to start stdio mcp client: %w", err)
		}
		return initializeConn(ctx, c)
	}
}

// NewHTTPDialer returns a Dialer that connects to a streamable HTTP MCP
// endpoint.
func NewHTTPDialer(baseURL string) Dialer {
	return func(ctx context.Context) (Conn, error) {
		c, err := mcpclient.NewStreamableHttpClient(baseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create http mcp client: %w", err)
		}
		if err := c.Start(ctx); err != nil {
			return nil, fmt.Errorf("failed to start http mcp client: %w", err)
		}
		return initializeConn(ctx, c)
	}
}

func initializeConn(ctx context.Context, c *mcpclient.Client) (Conn, error) {
	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcp.Implementation{Name: "teamsmith", Version: "0.1.0"}

	if _, err := c.Initialize(ctx, req); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("mcp initialize failed: %w", err)
	}
	return &mcpConn{client: c}, nil
}

// mcpConn adapts a mark3labs/mcp-go client to the Conn interface.
type mcpConn struct {
	client *mcpclient.Client
}

// CallTool invokes the named tool and returns the concatenated text content
// of the result, which the tool service contract guarantees is JSON.
func (m *mcpConn) CallTool(ctx context.Context, tool string, args map[string]any) ([]byte, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = tool
	req.Params.Arguments = args

	res, err := m.client.CallTool(ctx, req)
	if err != nil {
		return nil, err
	}

	var text string
	for _, content := range res.Content {
		if tc, ok := mcp.AsTextContent(content); ok {
			text += tc.Text
		}
	}
	if res.IsError {
		return nil, fmt.Errorf("tool %s returned error: %s", tool, text)
	}
	return []byte(text), nil
}

// ListTools returns the tools advertised by the service.
func (m *mcpConn) ListTools(ctx context.Context) ([]ToolInfo, error) {
	res, err := m.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, err
	}

	infos := make([]ToolInfo, 0, len(res.Tools))
	for _, t := range res.Tools {
		info := ToolInfo{Name: t.Name, Description: t.Description}
		if raw, err := json.Marshal(t.InputSchema); err == nil {
			var schema map[string]any
			if json.Unmarshal(raw, &schema) == nil {
				info.Schema = schema
			}
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// Close terminates the underlying client.
func (m *mcpConn) Close() error { return m.client.Close() }
