package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI serves canned responses for the vault operator API
func fakeAPI(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/stats":
			_ = json.NewEncoder(w).Encode(Stats{Users: 12, Sessions: 3, PendingDeletions: 4})
		case r.Method == http.MethodGet && r.URL.Path == "/api/sessions":
			assert.Equal(t, "5", r.URL.Query().Get("limit"))
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"sessions": []Session{{ID: "a1b2c3d4e5", ItemCount: 2}},
			})
		case r.Method == http.MethodGet && r.URL.Path == "/api/sessions/a1b2c3d4e5":
			_ = json.NewEncoder(w).Encode(SessionDetail{
				Session: Session{ID: "a1b2c3d4e5", ItemCount: 1},
				Items:   []Item{{Position: 0, Kind: "photo"}},
			})
		case r.Method == http.MethodPut && r.URL.Path == "/api/messages/start":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			_ = json.NewEncoder(w).Encode(Message{Name: "start", Content: body["content"]})
		case r.Method == http.MethodPut && r.URL.Path == "/api/messages/about":
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "unknown message name"})
		case r.Method == http.MethodPost && r.URL.Path == "/api/broadcast":
			_ = json.NewEncoder(w).Encode(BroadcastReport{Recipients: 3, Delivered: 2, Failed: 1})
		default:
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "not found"})
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestHandlers(t *testing.T) {
	api := fakeAPI(t)
	s := NewServer(NewClient(api.URL), "test")
	ctx := context.Background()

	_, stats, err := s.handleStats(ctx, nil, StatsInput{})
	require.NoError(t, err)
	assert.Equal(t, Stats{Users: 12, Sessions: 3, PendingDeletions: 4}, stats)

	_, list, err := s.handleListSessions(ctx, nil, ListSessionsInput{Limit: 5})
	require.NoError(t, err)
	require.Len(t, list.Sessions, 1)
	assert.Equal(t, 2, list.Sessions[0].ItemCount)

	_, detail, err := s.handleGetSession(ctx, nil, GetSessionInput{ID: "https://vault.example.com/open?start=a1b2c3d4e5"})
	require.NoError(t, err)
	assert.Equal(t, "a1b2c3d4e5", detail.Session.ID)
	assert.Equal(t, "photo", detail.Items[0].Kind)

	_, msg, err := s.handleSetMessage(ctx, nil, SetMessageInput{Name: "start", Content: "hello"})
	require.NoError(t, err)
	assert.Equal(t, Message{Name: "start", Content: "hello"}, msg)

	_, report, err := s.handleBroadcast(ctx, nil, BroadcastInput{Text: "news"})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Delivered)
}

func TestHandlers_Errors(t *testing.T) {
	api := fakeAPI(t)
	s := NewServer(NewClient(api.URL), "test")
	ctx := context.Background()

	_, _, err := s.handleSetMessage(ctx, nil, SetMessageInput{Name: "about", Content: "x"})
	require.Error(t, err)
	assert.Equal(t, "HTTP 400: unknown message name", err.Error())

	_, _, err = s.handleGetSession(ctx, nil, GetSessionInput{ID: "zzzzzzzzzz"})
	assert.ErrorContains(t, err, "HTTP 404")

	_, _, err = s.handleGetSession(ctx, nil, GetSessionInput{ID: "  "})
	assert.ErrorContains(t, err, "id is required")

	_, _, err = s.handleBroadcast(ctx, nil, BroadcastInput{Text: ""})
	assert.ErrorContains(t, err, "text is required")
}

func TestServer_OverMCP(t *testing.T) {
	api := fakeAPI(t)
	s := NewServer(NewClient(api.URL), "test")
	ctx := context.Background()

	clientTransport, serverTransport := sdk.NewInMemoryTransports()
	serverSession, err := s.server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	defer serverSession.Close()

	client := sdk.NewClient(&sdk.Implementation{Name: "test-client", Version: "v0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer session.Close()

	tools, err := session.ListTools(ctx, nil)
	require.NoError(t, err)
	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{
		"vault_stats", "vault_list_sessions", "vault_get_session", "vault_set_message", "vault_broadcast",
	}, names)

	res, err := session.CallTool(ctx, &sdk.CallToolParams{Name: "vault_stats", Arguments: map[string]interface{}{}})
	require.NoError(t, err)
	require.False(t, res.IsError)
	structured, ok := res.StructuredContent.(map[string]interface{})
	require.True(t, ok)
	assert.EqualValues(t, 12, structured["users"])

	res, err = session.CallTool(ctx, &sdk.CallToolParams{Name: "vault_broadcast", Arguments: map[string]interface{}{"text": " "}})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}
