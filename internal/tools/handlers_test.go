// ABOUTME: Tests for the agent lifecycle tool handlers
// ABOUTME: Covers validation, envelope shapes, and registry side effects

package tools

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/cursor-agent-gateway/internal/cache"
	"github.com/2389/cursor-agent-gateway/internal/cursorapi"
	"github.com/2389/cursor-agent-gateway/internal/githubapi"
	"github.com/2389/cursor-agent-gateway/internal/registry"
)

func newTestHandlers(t *testing.T, apiHandler http.HandlerFunc) *Handlers {
	t.Helper()
	srv := httptest.NewServer(apiHandler)
	t.Cleanup(srv.Close)

	session := cursorapi.NewSession(cursorapi.Config{
		BaseURL: srv.URL,
		APIKey:  "test-key",
	})
	t.Cleanup(session.Close)

	exec := cursorapi.NewExecutor(session, nil)
	exec.SetSleep(func(context.Context, time.Duration) error { return nil })

	h := NewHandlers(Config{
		Executor: exec,
		Cache:    cache.New(cache.DefaultWindow),
		Registry: registry.NewRegistry(nil),
	})
	h.SetClock(func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) })
	return h
}

func writeJSON(w http.ResponseWriter, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestCreateAgentValidatesBeforeAnyRequest(t *testing.T) {
	called := false
	h := newTestHandlers(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	result := h.CreateAgent(context.Background(), Args{"prompt": "do things"})
	assert.Equal(t, false, result["success"])
	assert.Equal(t, "repository_url is required", result["error"])

	result = h.CreateAgent(context.Background(), Args{"repository_url": "https://github.com/acme/widgets"})
	assert.Equal(t, false, result["success"])
	assert.Equal(t, "prompt is required", result["error"])

	assert.False(t, called, "validation failures must not reach the API")
	assert.Equal(t, 0, h.Registry().Len())
}

func TestCreateAgentSendsPayloadAndTracksAgent(t *testing.T) {
	var captured map[string]any
	h := newTestHandlers(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v0/agents", r.URL.Path)
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &captured))
		writeJSON(w, http.StatusCreated, map[string]any{
			"id":        "bc-123",
			"status":    "RUNNING",
			"createdAt": "2025-06-01T11:59:00Z",
		})
	})

	result := h.CreateAgent(context.Background(), Args{
		"repository_url": "https://github.com/acme/widgets",
		"prompt":         "add dark mode",
	})

	require.Equal(t, true, result["success"])
	assert.Equal(t, "bc-123", result["agent_id"])
	assert.Equal(t, "RUNNING", result["status"])
	assert.Equal(t, DefaultBranch, result["branch"])
	assert.Equal(t, DefaultModel, result["model"])
	assert.Equal(t, "2025-06-01T11:59:00Z", result["created_at"])

	prompt, ok := captured["prompt"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "add dark mode", prompt["text"])
	source, ok := captured["source"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "https://github.com/acme/widgets", source["repository"])
	assert.Equal(t, "main", source["ref"])
	target, ok := captured["target"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, target["autoCreatePr"])
	assert.NotContains(t, captured, "webhook")

	agent, tracked := h.Registry().Get("bc-123")
	require.True(t, tracked)
	assert.Equal(t, "RUNNING", agent.Status)
	assert.Equal(t, "add dark mode", agent.Prompt)
}

func TestCreateAgentSynthesizesMissingResponseFields(t *testing.T) {
	h := newTestHandlers(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{})
	})

	result := h.CreateAgent(context.Background(), Args{
		"repository_url": "https://github.com/acme/widgets",
		"prompt":         "fix the flaky test",
	})

	require.Equal(t, true, result["success"])
	agentID, ok := result["agent_id"].(string)
	require.True(t, ok)
	assert.Contains(t, agentID, "agent-")
	assert.Equal(t, "CREATING", result["status"])
	assert.Equal(t, "2025-06-01T12:00:00Z", result["created_at"])

	_, tracked := h.Registry().Get(agentID)
	assert.True(t, tracked)
}

func TestCreateAgentFailureEnvelope(t *testing.T) {
	h := newTestHandlers(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	result := h.CreateAgent(context.Background(), Args{
		"repository_url": "https://github.com/acme/widgets",
		"prompt":         "do things",
	})

	assert.Equal(t, false, result["success"])
	assert.Contains(t, result["error"], "authentication failed")
	assert.Equal(t, 0, h.Registry().Len())
}

func TestGetAgentStatusMergesOnlyTrackedAgents(t *testing.T) {
	h := newTestHandlers(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v0/agents/bc-123", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]any{
			"status":   "completed",
			"progress": map[string]any{"steps": float64(4)},
		})
	})

	result := h.GetAgentStatus(context.Background(), Args{"agent_id": "bc-123"})
	require.Equal(t, true, result["success"])
	assert.Equal(t, "completed", result["status"])

	// Polling an unseen agent must not register it locally.
	assert.Equal(t, 0, h.Registry().Len())

	h.Registry().Upsert(registry.Agent{ID: "bc-123", Status: registry.StatusRunning})
	_ = h.GetAgentStatus(context.Background(), Args{"agent_id": "bc-123"})
	agent, ok := h.Registry().Get("bc-123")
	require.True(t, ok)
	assert.Equal(t, "completed", agent.Status)
	assert.Equal(t, "2025-06-01T12:00:00Z", agent.UpdatedAt)
}

func TestGetAgentStatusKeepsPriorStatusWhenResponseOmitsIt(t *testing.T) {
	h := newTestHandlers(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"progress": map[string]any{"steps": float64(2)},
		})
	})

	h.Registry().Upsert(registry.Agent{ID: "bc-7", Status: registry.StatusRunning})

	result := h.GetAgentStatus(context.Background(), Args{"agent_id": "bc-7"})
	require.Equal(t, true, result["success"])
	assert.Equal(t, registry.StatusUnknown, result["status"])

	// The synthesized envelope status must not overwrite the tracked one.
	agent, ok := h.Registry().Get("bc-7")
	require.True(t, ok)
	assert.Equal(t, registry.StatusRunning, agent.Status)
	assert.Equal(t, map[string]any{"steps": float64(2)}, agent.Progress)
}

func TestGetAgentStatusDefaultsMissingFields(t *testing.T) {
	h := newTestHandlers(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{})
	})

	result := h.GetAgentStatus(context.Background(), Args{"agent_id": "bc-9"})
	require.Equal(t, true, result["success"])
	assert.Equal(t, registry.StatusUnknown, result["status"])
	assert.Equal(t, map[string]any{}, result["progress"])
	assert.Equal(t, []any{}, result["logs"])
}

func TestAddFollowupRequiresBothArguments(t *testing.T) {
	h := newTestHandlers(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	result := h.AddFollowup(context.Background(), Args{"instruction": "use feature flags"})
	assert.Equal(t, "agent_id is required", result["error"])

	result = h.AddFollowup(context.Background(), Args{"agent_id": "bc-1"})
	assert.Equal(t, "instruction is required", result["error"])
}

func TestAddFollowupSendsInstruction(t *testing.T) {
	h := newTestHandlers(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v0/agents/bc-1/followup", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "also update the docs", body["instruction"])
		writeJSON(w, http.StatusOK, map[string]any{})
	})

	result := h.AddFollowup(context.Background(), Args{
		"agent_id":    "bc-1",
		"instruction": "also update the docs",
	})

	require.Equal(t, true, result["success"])
	assert.Equal(t, "also update the docs", result["instruction_added"])
	assert.Equal(t, "updated", result["status"])
}

func TestStopAgentFlipsLocalStatus(t *testing.T) {
	h := newTestHandlers(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		require.Equal(t, "/v0/agents/bc-1", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]any{})
	})

	h.Registry().Upsert(registry.Agent{ID: "bc-1", Status: registry.StatusRunning})

	result := h.StopAgent(context.Background(), Args{"agent_id": "bc-1"})
	require.Equal(t, true, result["success"])
	assert.Equal(t, registry.StatusStopped, result["status"])

	agent, ok := h.Registry().Get("bc-1")
	require.True(t, ok)
	assert.Equal(t, registry.StatusStopped, agent.Status)
}

func TestStopAgentFailureLeavesRegistryUntouched(t *testing.T) {
	h := newTestHandlers(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})

	h.Registry().Upsert(registry.Agent{ID: "bc-1", Status: registry.StatusRunning})

	result := h.StopAgent(context.Background(), Args{"agent_id": "bc-1"})
	assert.Equal(t, false, result["success"])

	agent, _ := h.Registry().Get("bc-1")
	assert.Equal(t, registry.StatusRunning, agent.Status)
}

func TestListAgentsForwardsFiltersAndMerges(t *testing.T) {
	h := newTestHandlers(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "running", r.URL.Query().Get("status"))
		assert.Equal(t, "https://github.com/acme/widgets", r.URL.Query().Get("repository"))
		assert.Equal(t, "25", r.URL.Query().Get("limit"))
		writeJSON(w, http.StatusOK, map[string]any{
			"agents": []any{
				map[string]any{"id": "bc-1", "status": "running", "repository_url": "https://github.com/acme/widgets"},
				map[string]any{"agent_id": "bc-2", "status": "completed"},
			},
		})
	})

	result := h.ListAgents(context.Background(), Args{
		"status_filter":     "running",
		"repository_filter": "https://github.com/acme/widgets",
		"limit":             float64(25),
	})

	require.Equal(t, true, result["success"])
	assert.Equal(t, 2, result["total_agents"])
	filters, ok := result["filters_applied"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "running", filters["status"])

	assert.Equal(t, 2, h.Registry().Len())
	agent, ok := h.Registry().Get("bc-1")
	require.True(t, ok)
	assert.Equal(t, "running", agent.Status)
}

func TestListAgentsEmptyResponse(t *testing.T) {
	h := newTestHandlers(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.RawQuery)
		writeJSON(w, http.StatusOK, map[string]any{})
	})

	result := h.ListAgents(context.Background(), Args{})
	require.Equal(t, true, result["success"])
	assert.Equal(t, 0, result["total_agents"])
	assert.Equal(t, []any{}, result["agents"])
}

func TestCallDispatchesByName(t *testing.T) {
	h := newTestHandlers(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"agents": []any{}})
	})

	result, err := h.Call(context.Background(), ToolListAgents, nil)
	require.NoError(t, err)
	assert.Equal(t, true, result["success"])

	_, err = h.Call(context.Background(), "cursor_no_such_tool", Args{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown tool")
}

func TestCreateAgentIncludesWebhookWhenConfigured(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		writeJSON(w, http.StatusOK, map[string]any{"id": "bc-1"})
	}))
	defer srv.Close()

	session := cursorapi.NewSession(cursorapi.Config{BaseURL: srv.URL, APIKey: "test-key"})
	defer session.Close()
	exec := cursorapi.NewExecutor(session, nil)

	h := NewHandlers(Config{
		Executor:   exec,
		Cache:      cache.New(cache.DefaultWindow),
		Registry:   registry.NewRegistry(nil),
		Branches:   githubapi.NewClient(githubapi.Config{}, nil),
		WebhookURL: "https://hooks.example.com/agents",
	})

	result := h.CreateAgent(context.Background(), Args{
		"repository_url": "https://github.com/acme/widgets",
		"prompt":         "ship it",
	})
	require.Equal(t, true, result["success"])

	webhook, ok := captured["webhook"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "https://hooks.example.com/agents", webhook["url"])
}
