package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/staffmesh/agent"
	"github.com/hupe1980/staffmesh/conversation"
	"github.com/hupe1980/staffmesh/core"
	"github.com/hupe1980/staffmesh/gateway"
	"github.com/hupe1980/staffmesh/memory"
	"github.com/hupe1980/staffmesh/orchestrator"
	"github.com/hupe1980/staffmesh/rag"
	"github.com/hupe1980/staffmesh/tracker"
)

const testDimension = 32

func newTestServer(t *testing.T) (*httptest.Server, *Server) {
	t.Helper()

	mock := gateway.NewMock(testDimension)
	registry := orchestrator.NewRegistry()
	calendar := agent.NewFunc("calendar", func(_ context.Context, _ *core.Invocation) (*core.AgentOutput, error) {
		return &core.AgentOutput{Message: "Meeting scheduled.", Thoughts: []string{"Checked availability"}}, nil
	}, func(o *agent.FuncOptions) {
		o.DisplayName = "Calendar Agent"
		o.Capabilities = []core.Capability{{Tag: "scheduling", Keywords: []string{"schedule", "meeting"}}}
	})
	require.NoError(t, registry.Register(calendar))

	convs := conversation.NewInMemoryStore()
	mems := memory.NewInMemoryStore(testDimension)
	tr := tracker.New(tracker.NewInMemoryStore())
	docs := rag.NewInMemoryDocumentStore()
	pipeline := rag.NewPipeline(docs, rag.NewInMemoryIndex(), mock, rag.NewSplitter())
	orch := orchestrator.New(registry, convs, mems, tr, pipeline, mock)

	srv := New(orch, convs, docs, pipeline)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	buf, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(buf))
	require.NoError(t, err)
	return resp
}

func decodeJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestChatEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/chat/message", map[string]any{
		"message": "Schedule a meeting with marketing next week",
		"user_id": "user-1",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	chat := decodeJSON[orchestrator.Response](t, resp)
	assert.Equal(t, "calendar", chat.Agent)
	assert.True(t, chat.IsFinal)
	assert.False(t, chat.NeedsClarification)
	assert.Equal(t, "Meeting scheduled.", chat.Response)
	assert.NotEmpty(t, chat.ConversationID)
	assert.NotEmpty(t, chat.MessageID)
}

func TestChatEndpointValidation(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/chat/message", map[string]any{"message": ""})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestChatEndpointClarification(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/chat/message", map[string]any{"message": "do the thing"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	chat := decodeJSON[orchestrator.Response](t, resp)
	assert.True(t, chat.NeedsClarification)
	assert.NotEmpty(t, chat.ClarificationQuestion)
}

func TestConversationEndpoints(t *testing.T) {
	ts, _ := newTestServer(t)

	created := decodeJSON[core.Conversation](t,
		postJSON(t, ts.URL+"/api/conversations", map[string]string{"user_id": "user-1", "title": "Planning"}))
	assert.Equal(t, "Planning", created.Title)

	resp, err := http.Get(ts.URL + "/api/conversations?user_id=user-1")
	require.NoError(t, err)
	list := decodeJSON[[]core.Conversation](t, resp)
	require.Len(t, list, 1)

	resp, err = http.Get(ts.URL + "/api/conversations/" + created.ID)
	require.NoError(t, err)
	got := decodeJSON[core.Conversation](t, resp)
	assert.Equal(t, created.ID, got.ID)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/conversations/"+created.ID, nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/api/conversations/" + created.ID)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDocumentEndpoints(t *testing.T) {
	ts, _ := newTestServer(t)

	created := decodeJSON[core.Document](t, postJSON(t, ts.URL+"/api/documents", map[string]string{
		"user_id":  "user-1",
		"filename": "notes.txt",
		"content":  "The offsite is planned for October in Lisbon.",
	}))
	assert.Equal(t, core.ProcessingCompleted, created.Status)
	assert.Greater(t, created.ChunkCount, 0)

	resp, err := http.Get(ts.URL + "/api/documents?user_id=user-1")
	require.NoError(t, err)
	list := decodeJSON[[]core.Document](t, resp)
	require.Len(t, list, 1)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/documents/"+created.ID, nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestAgentsEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/agents")
	require.NoError(t, err)
	agents := decodeJSON[[]core.RegisteredAgent](t, resp)
	require.Len(t, agents, 1)
	assert.Equal(t, "calendar", agents[0].Name)
	assert.Equal(t, "Calendar Agent", agents[0].DisplayName)
}

func TestChatWebSocketStreaming(t *testing.T) {
	ts, _ := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/chat/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]any{
		"message": "Schedule a meeting tomorrow",
		"user_id": "user-1",
	}))

	var sawAck, sawAgentUpdate bool
	for {
		var event wsEvent
		require.NoError(t, conn.ReadJSON(&event))
		switch event.Type {
		case "ack":
			sawAck = true
		case "agent_update":
			sawAgentUpdate = true
			assert.Equal(t, "calendar", event.Agent)
			assert.Equal(t, "Meeting scheduled.", event.Message)
		case "response":
			require.NotNil(t, event.Response)
			assert.True(t, event.Response.IsFinal)
			assert.Equal(t, "calendar", event.Response.Agent)
			assert.True(t, sawAck)
			assert.True(t, sawAgentUpdate)
			return
		}
	}
}
