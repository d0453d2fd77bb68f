package mcp

import (
	"context"
	"errors"
	"strings"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/devricklin/feishu-vault/internal/biz/domain"
)

// Server exposes the vault operator API as MCP tools
type Server struct {
	server *sdk.Server
	client *Client
}

// NewServer creates a new vault MCP server backed by client
func NewServer(client *Client, version string) *Server {
	s := &Server{
		server: sdk.NewServer(&sdk.Implementation{
			Name:    "vault-tools",
			Version: version,
		}, nil),
		client: client,
	}
	s.registerTools()
	return s
}

// registerTools registers all vault MCP tools
func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "vault_stats",
		Description: "Get the number of registered users, stored sessions and pending auto-deletions.",
	}, s.handleStats)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "vault_list_sessions",
		Description: "List the most recently created sessions with their deep links and item counts.",
	}, s.handleListSessions)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "vault_get_session",
		Description: "Get one session with its items in delivery order. Accepts a session id or a deep link.",
	}, s.handleGetSession)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "vault_set_message",
		Description: "Replace the start or help message shown to users.",
	}, s.handleSetMessage)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "vault_broadcast",
		Description: "Send a text message to every user who ever used the bot. Use sparingly.",
	}, s.handleBroadcast)
}

// Run starts the MCP server with stdio transport
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &sdk.StdioTransport{})
}

// ============ Tool inputs and outputs ============

// StatsInput takes no arguments
type StatsInput struct{}

// ListSessionsInput limits the listing
type ListSessionsInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum number of sessions to return, default 20"`
}

// ListSessionsOutput contains recent sessions
type ListSessionsOutput struct {
	Sessions []Session `json:"sessions"`
}

// GetSessionInput names the session
type GetSessionInput struct {
	ID string `json:"id" jsonschema:"session id or full deep link"`
}

// SetMessageInput is the input for vault_set_message
type SetMessageInput struct {
	Name    string `json:"name" jsonschema:"start or help"`
	Content string `json:"content" jsonschema:"the new message text"`
}

// BroadcastInput is the input for vault_broadcast
type BroadcastInput struct {
	Text string `json:"text" jsonschema:"the message to send to every user"`
}

// ============ Handlers ============

func (s *Server) handleStats(ctx context.Context, req *sdk.CallToolRequest, input StatsInput) (*sdk.CallToolResult, Stats, error) {
	stats, err := s.client.Stats(ctx)
	if err != nil {
		return nil, Stats{}, err
	}
	return nil, *stats, nil
}

func (s *Server) handleListSessions(ctx context.Context, req *sdk.CallToolRequest, input ListSessionsInput) (*sdk.CallToolResult, ListSessionsOutput, error) {
	sessions, err := s.client.ListSessions(ctx, input.Limit)
	if err != nil {
		return nil, ListSessionsOutput{}, err
	}
	if sessions == nil {
		sessions = []Session{}
	}
	return nil, ListSessionsOutput{Sessions: sessions}, nil
}

func (s *Server) handleGetSession(ctx context.Context, req *sdk.CallToolRequest, input GetSessionInput) (*sdk.CallToolResult, SessionDetail, error) {
	id := domain.SessionIDFromArg(input.ID)
	if id == "" {
		return nil, SessionDetail{}, errors.New("id is required")
	}
	detail, err := s.client.GetSession(ctx, id)
	if err != nil {
		return nil, SessionDetail{}, err
	}
	return nil, *detail, nil
}

func (s *Server) handleSetMessage(ctx context.Context, req *sdk.CallToolRequest, input SetMessageInput) (*sdk.CallToolResult, Message, error) {
	msg, err := s.client.SetMessage(ctx, input.Name, input.Content)
	if err != nil {
		return nil, Message{}, err
	}
	return nil, *msg, nil
}

func (s *Server) handleBroadcast(ctx context.Context, req *sdk.CallToolRequest, input BroadcastInput) (*sdk.CallToolResult, BroadcastReport, error) {
	if strings.TrimSpace(input.Text) == "" {
		return nil, BroadcastReport{}, errors.New("text is required")
	}
	report, err := s.client.Broadcast(ctx, input.Text)
	if err != nil {
		return nil, BroadcastReport{}, err
	}
	return nil, *report, nil
}
