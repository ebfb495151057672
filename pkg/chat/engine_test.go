package chat

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mikeeai/adsdash/pkg/compose"
	"github.com/mikeeai/adsdash/pkg/model"
)

type scriptedClient struct {
	replies []string
	err     error
	calls   []model.ChatRequest
}

func (c *scriptedClient) ChatCompletion(_ context.Context, _ string, req model.ChatRequest) (*model.ChatResponse, error) {
	c.calls = append(c.calls, req)
	if c.err != nil {
		return nil, c.err
	}
	reply := c.replies[len(c.calls)-1]
	return &model.ChatResponse{
		Choices: []model.Choice{{Message: model.Message{Role: "assistant", Content: reply}}},
	}, nil
}

type fakeStatus struct {
	descs []compose.ServiceDescriptor
	err   error
}

func (f *fakeStatus) StatusOfAll(context.Context) ([]compose.ServiceDescriptor, error) {
	return f.descs, f.err
}

func newTestEngine(client CompletionClient, d *Dispatcher) *Engine {
	status := &fakeStatus{descs: []compose.ServiceDescriptor{
		{Name: "master", Status: compose.StatusRunning},
		{Name: "image-generator", Status: compose.StatusStopped},
	}}
	return NewEngine(client, status, d, "gpt-4o-mini", nil)
}

func TestHandleEmptyMessage(t *testing.T) {
	client := &scriptedClient{}
	e := newTestEngine(client, NewDispatcher(nil, nil))

	_, err := e.Handle(context.Background(), "   ", "sk-test", "")
	require.ErrorIs(t, err, ErrEmptyMessage)
	require.Empty(t, client.calls)
}

func TestHandleNoCredential(t *testing.T) {
	client := &scriptedClient{}
	e := newTestEngine(client, NewDispatcher(nil, nil))

	reply, err := e.Handle(context.Background(), "hello", "", "")
	require.NoError(t, err)
	require.Contains(t, reply, "Settings")
	require.Empty(t, client.calls)
}

func TestHandlePlainText(t *testing.T) {
	client := &scriptedClient{replies: []string{"All services look fine."}}
	e := newTestEngine(client, NewDispatcher(nil, nil))

	reply, err := e.Handle(context.Background(), "how are things?", "sk-test", "")
	require.NoError(t, err)
	require.Equal(t, "All services look fine.", reply)
	require.Len(t, client.calls, 1)

	// The system prompt carries the status snapshot and tool listing.
	system := client.calls[0].Messages[0].Content
	require.Contains(t, system, "master: running")
	require.Contains(t, system, "image-generator: stopped")
	require.Contains(t, system, ToolCreateAds)
	require.Equal(t, "gpt-4o-mini", client.calls[0].Model)
}

func TestHandleToolDispatch(t *testing.T) {
	var gotBody map[string]int
	master := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &gotBody))
		w.Write([]byte(`{"success":true,"ads_created":3,"total_cost":22.50,"errors":[]}`))
	}))
	defer master.Close()

	client := &scriptedClient{replies: []string{
		`{"tool": "create_ads", "args": {"ads_to_create": 3, "daily_budget": 2250}}`,
		"Started creating 3 ads with a $22.50 daily budget.",
	}}
	d := NewDispatcher(map[string]string{"master": master.URL}, nil)
	e := newTestEngine(client, d)

	reply, err := e.Handle(context.Background(), "create 3 ads at $22.50/day", "sk-test", "")
	require.NoError(t, err)
	require.Equal(t, "Started creating 3 ads with a $22.50 daily budget.", reply)
	require.Equal(t, 3, gotBody["ads_to_create"])
	require.Equal(t, 2250, gotBody["daily_budget"])

	// The second completion sees the tool result verbatim.
	require.Len(t, client.calls, 2)
	last := client.calls[1].Messages[len(client.calls[1].Messages)-1]
	require.Contains(t, last.Content, `"ads_created":3`)
	require.Contains(t, last.Content, "22.5")
}

func TestHandleMalformedToolJSON(t *testing.T) {
	client := &scriptedClient{replies: []string{`{"tool": "create_ads", broken`}}
	e := newTestEngine(client, NewDispatcher(nil, nil))

	reply, err := e.Handle(context.Background(), "go", "sk-test", "")
	require.NoError(t, err)
	require.Equal(t, `{"tool": "create_ads", broken`, reply)
	require.Len(t, client.calls, 1)
}

func TestHandleUnknownToolStaysInBand(t *testing.T) {
	client := &scriptedClient{replies: []string{
		`{"tool": "launch_rockets", "args": {}}`,
		"I can't do that, but here is what I can do.",
	}}
	e := newTestEngine(client, NewDispatcher(nil, nil))

	reply, err := e.Handle(context.Background(), "launch", "sk-test", "")
	require.NoError(t, err)
	require.Equal(t, "I can't do that, but here is what I can do.", reply)

	last := client.calls[1].Messages[len(client.calls[1].Messages)-1]
	require.Contains(t, last.Content, "Unknown tool: launch_rockets")
}

func TestHandleUpstreamErrorBecomesReply(t *testing.T) {
	client := &scriptedClient{err: &model.UpstreamError{Status: 429, Body: "quota exceeded"}}
	e := newTestEngine(client, NewDispatcher(nil, nil))

	reply, err := e.Handle(context.Background(), "hello", "sk-test", "")
	require.NoError(t, err)
	require.Contains(t, reply, "quota exceeded")
}

func TestHandleStatusFailureStillAnswers(t *testing.T) {
	client := &scriptedClient{replies: []string{"ok"}}
	e := NewEngine(client, &fakeStatus{err: context.DeadlineExceeded}, NewDispatcher(nil, nil), "m", nil)

	reply, err := e.Handle(context.Background(), "hi", "sk-test", "")
	require.NoError(t, err)
	require.Equal(t, "ok", reply)
	require.Contains(t, client.calls[0].Messages[0].Content, "status unavailable")
}

func TestParseToolCall(t *testing.T) {
	inv, ok := parseToolCall(` {"tool": "check_service_health", "args": {}} `)
	require.True(t, ok)
	require.Equal(t, ToolCheckServiceHealth, inv.Tool)

	_, ok = parseToolCall("plain text mentioning a tool")
	require.False(t, ok)

	_, ok = parseToolCall(`{"args": {}}`)
	require.False(t, ok)
}
