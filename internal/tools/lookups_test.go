// ABOUTME: Tests for the cached lookup operations
// ABOUTME: Covers caching, stale fallback, and the hardcoded degradation lists

package tools

import (
	"context"
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

func newLookupHandlers(t *testing.T, apiHandler, ghHandler http.HandlerFunc) *Handlers {
	t.Helper()
	api := httptest.NewServer(apiHandler)
	t.Cleanup(api.Close)

	session := cursorapi.NewSession(cursorapi.Config{BaseURL: api.URL, APIKey: "test-key"})
	t.Cleanup(session.Close)
	exec := cursorapi.NewExecutor(session, nil)
	exec.SetSleep(func(context.Context, time.Duration) error { return nil })

	var branches *githubapi.Client
	if ghHandler != nil {
		gh := httptest.NewServer(ghHandler)
		t.Cleanup(gh.Close)
		branches = githubapi.NewClient(githubapi.Config{BaseURL: gh.URL}, nil)
	}

	return NewHandlers(Config{
		Executor: exec,
		Cache:    cache.New(cache.DefaultWindow),
		Registry: registry.NewRegistry(nil),
		Branches: branches,
	})
}

func TestGetAPIUsageSuccess(t *testing.T) {
	h := newLookupHandlers(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v0/api-key-info", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]any{
			"usage":           map[string]any{"requests": float64(12)},
			"limits":          map[string]any{"requests": float64(100)},
			"remaining_quota": float64(88),
		})
	}, nil)

	result := h.GetAPIUsage(context.Background())
	require.Equal(t, true, result["success"])
	assert.Equal(t, map[string]any{"requests": float64(12)}, result["usage"])
	assert.Equal(t, float64(88), result["remaining_quota"])
}

func TestGetAPIUsageFailureCarriesLocalCounts(t *testing.T) {
	h := newLookupHandlers(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}, nil)

	h.Registry().Upsert(registry.Agent{ID: "bc-1", Status: registry.StatusRunning})
	h.Registry().Upsert(registry.Agent{ID: "bc-2", Status: registry.StatusCompleted})

	result := h.GetAPIUsage(context.Background())
	assert.Equal(t, false, result["success"])
	usage, ok := result["usage"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 1, usage["active_agents"])
	assert.Equal(t, 2, usage["total_agents_created"])
}

func TestListModelsCachesResult(t *testing.T) {
	calls := 0
	h := newLookupHandlers(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		writeJSON(w, http.StatusOK, map[string]any{
			"models": []any{"claude-4-sonnet-thinking", "o3"},
		})
	}, nil)

	first := h.ListModels(context.Background())
	require.Equal(t, true, first["success"])
	assert.Equal(t, 2, first["total_models"])
	assert.Equal(t, "claude-4-sonnet-thinking", first["recommended"],
		"recommended is the first model the API returned")

	second := h.ListModels(context.Background())
	require.Equal(t, true, second["success"])
	assert.Equal(t, 1, calls, "second call must be served from cache")
}

func TestListModelsEmptyListHasNoRecommendation(t *testing.T) {
	h := newLookupHandlers(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"models": []any{}})
	}, nil)

	result := h.ListModels(context.Background())
	require.Equal(t, true, result["success"])
	assert.Equal(t, 0, result["total_models"])
	assert.Nil(t, result["recommended"])
}

func TestListModelsColdFailureUsesFallback(t *testing.T) {
	h := newLookupHandlers(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}, nil)

	result := h.ListModels(context.Background())
	assert.Equal(t, false, result["success"])
	assert.Equal(t, fallbackModels, result["models"])
	assert.Equal(t, "claude-4-sonnet-thinking", result["recommended"])
}

func TestListModelsServesStaleOnRefreshFailure(t *testing.T) {
	healthy := true
	h := newLookupHandlers(t, func(w http.ResponseWriter, r *http.Request) {
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"models": []any{"o3"},
		})
	}, nil)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base
	h.Cache().SetClock(func() time.Time { return now })

	first := h.ListModels(context.Background())
	require.Equal(t, true, first["success"])

	healthy = false
	now = base.Add(cache.DefaultWindow + time.Second)

	stale := h.ListModels(context.Background())
	assert.Equal(t, true, stale["success"], "stale payload is served unchanged")
	assert.Equal(t, []any{"o3"}, stale["models"])
}

func TestListRepositoriesColdFailureFallsBackToEmpty(t *testing.T) {
	h := newLookupHandlers(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}, nil)

	result := h.ListRepositories(context.Background())
	assert.Equal(t, false, result["success"])
	assert.Equal(t, []any{}, result["repositories"])
	assert.Equal(t, 0, result["total_repositories"])
}

func TestListBranchesSuccessAndCaching(t *testing.T) {
	calls := 0
	h := newLookupHandlers(t, nil, func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/repos/acme/widgets/branches", r.URL.Path)
		_, _ = w.Write([]byte(`[{"name":"main"},{"name":"release/v2"}]`))
	})

	args := Args{"repository_url": "https://github.com/acme/widgets"}
	first := h.ListBranches(context.Background(), args)
	require.Equal(t, true, first["success"])
	assert.Equal(t, []string{"main", "release/v2"}, first["branches"])
	assert.Equal(t, 2, first["total_branches"])
	assert.Equal(t, "acme", first["owner"])

	_ = h.ListBranches(context.Background(), args)
	assert.Equal(t, 1, calls)

	_ = h.ListBranches(context.Background(), Args{
		"repository_url": "https://github.com/acme/widgets",
		"force_refresh":  true,
	})
	assert.Equal(t, 2, calls, "force_refresh bypasses the freshness window")
}

func TestListBranchesRequiresRepositoryURL(t *testing.T) {
	h := newLookupHandlers(t, nil, nil)
	result := h.ListBranches(context.Background(), Args{})
	assert.Equal(t, false, result["success"])
	assert.Equal(t, "repository_url is required", result["error"])
}

func TestListBranchesInvalidURLFallsBack(t *testing.T) {
	h := newLookupHandlers(t, nil, nil)
	result := h.ListBranches(context.Background(), Args{"repository_url": "git@github.com:acme/widgets.git"})
	assert.Equal(t, false, result["success"])
	assert.Equal(t, fallbackBranches, result["branches"])
	assert.Equal(t, "git@github.com:acme/widgets.git", result["repository"])
}

func TestListBranchesFallbackClassification(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		wantBranches []string
	}{
		{
			name:         "not found gets common names",
			status:       http.StatusNotFound,
			wantBranches: []string{"main", "master", "develop"},
		},
		{
			name:         "private repo adds feature guess",
			status:       http.StatusUnauthorized,
			wantBranches: []string{"main", "master", "develop", "feature/new-feature"},
		},
		{
			name:         "server error adds feature guess",
			status:       http.StatusBadGateway,
			wantBranches: []string{"main", "master", "develop", "feature/new-feature"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newLookupHandlers(t, nil, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})

			result := h.ListBranches(context.Background(), Args{"repository_url": "https://github.com/acme/widgets"})
			assert.Equal(t, false, result["success"])
			assert.Equal(t, tt.wantBranches, result["branches"])
		})
	}
}

func TestListBranchesFailureIsNotCached(t *testing.T) {
	healthy := false
	h := newLookupHandlers(t, nil, func(w http.ResponseWriter, r *http.Request) {
		if !healthy {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`[{"name":"main"}]`))
	})

	args := Args{"repository_url": "https://github.com/acme/widgets"}
	first := h.ListBranches(context.Background(), args)
	assert.Equal(t, false, first["success"])

	healthy = true
	second := h.ListBranches(context.Background(), args)
	assert.Equal(t, true, second["success"], "recovery must not be masked by a cached failure")
}
