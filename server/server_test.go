package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danaruntime/dana/agent"
	"github.com/danaruntime/dana/config"
	"github.com/danaruntime/dana/events"
	"github.com/danaruntime/dana/llms"
	"github.com/danaruntime/dana/metrics"
	"github.com/danaruntime/dana/resources"
)

func newTestServer(t *testing.T, responses ...string) (*Server, *agent.Agent) {
	t.Helper()

	mock := llms.NewMockProvider()
	for _, r := range responses {
		mock.Enqueue(r)
	}
	reg := resources.NewRegistry()
	require.NoError(t, reg.AddResource(resources.NewLLMResourceWithProvider("llm", mock)))

	a, err := agent.New("tester", nil, reg)
	require.NoError(t, err)
	require.NoError(t, a.Acquire(context.Background()))
	t.Cleanup(func() { _ = a.Release() })

	agents := agent.NewAgentRegistry()
	require.NoError(t, agents.RegisterAgent(a))
	return New(config.ServerConfig{}, agents, metrics.NewCollectors()), a
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestListAgents(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/agents", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"agents":["tester"]}`, rec.Body.String())
}

func TestSolveEndpoint(t *testing.T) {
	s, _ := newTestServer(t, "plan: DIRECT\nsolution: \"4\"")

	body := strings.NewReader(`{"problem":"What is 2+2?"}`)
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/agents/tester/solve", body))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp solveResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "4", resp.Result)
}

func TestSolveEndpointRejectsEmptyProblem(t *testing.T) {
	s, _ := newTestServer(t)

	body := strings.NewReader(`{"problem":""}`)
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/agents/tester/solve", body))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSolveEndpointUnknownAgent(t *testing.T) {
	s, _ := newTestServer(t)

	body := strings.NewReader(`{"problem":"anything"}`)
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/agents/nobody/solve", body))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChatEndpoint(t *testing.T) {
	s, _ := newTestServer(t, "hello there")

	body := strings.NewReader(`{"message":"hi"}`)
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/agents/tester/chat", body))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "hello there", resp.Reply)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestEventsStream(t *testing.T) {
	s, a := newTestServer(t)

	srv := httptest.NewServer(s.routes())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/agents/tester/events", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	// Give the handler time to register its bus callback before emitting.
	require.Eventually(t, func() bool { return a.Bus().SubscriberCount() > 0 },
		2*time.Second, 10*time.Millisecond)
	a.Log("stream check", events.LevelInfo)

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(line, "data: "))

	var event events.Event
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(line), "data: ")), &event))
	assert.Equal(t, events.TypeLog, event.Type)
	assert.Equal(t, "stream check", event.Message)
	assert.Equal(t, "tester", event.AgentName)
}
