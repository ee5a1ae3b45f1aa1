// ABOUTME: Cached lookup operations for usage, models, repositories, branches
// ABOUTME: Degrades to hardcoded fallbacks when the upstream APIs are down

package tools

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/2389/cursor-agent-gateway/internal/githubapi"
)

// Cache keys for the lookup operations. Branch results are keyed per
// repository under the branchKeyPrefix.
const (
	modelsCacheKey  = "models"
	reposCacheKey   = "repositories"
	branchKeyPrefix = "branches:"
)

// Fallback values served when the upstream APIs cannot be reached.
// The recommended model is always the first fallback entry.
var (
	fallbackModels = []string{
		"claude-4-sonnet-thinking",
		"o3",
		"claude-4-opus-thinking",
	}
	fallbackBranches = []string{"main", "master", "develop"}
)

// GetAPIUsage reports key usage and limits. Never cached; on failure the
// envelope still carries local registry counts so callers see something.
func (h *Handlers) GetAPIUsage(ctx context.Context) map[string]any {
	resp, err := h.exec.Do(ctx, http.MethodGet, "/v0/api-key-info", nil)
	if err != nil {
		h.logger.Error("failed to get API usage", "error", err)
		env := failure(err, "Failed to retrieve API usage information")
		env["usage"] = map[string]any{
			"active_agents":        h.registry.CountByStatus("running"),
			"total_agents_created": h.registry.Len(),
		}
		return env
	}

	return map[string]any{
		"success":         true,
		"usage":           valueOr(resp["usage"], map[string]any{}),
		"limits":          valueOr(resp["limits"], map[string]any{}),
		"billing_period":  resp["billing_period"],
		"remaining_quota": resp["remaining_quota"],
		"reset_date":      resp["reset_date"],
	}
}

// ListModels returns the models available for agent creation. Results are
// cached; a stale entry is served unchanged when refresh fails, and the
// hardcoded fallback list covers the cold-failure case.
func (h *Handlers) ListModels(ctx context.Context) map[string]any {
	payload, degraded, err := h.cache.GetOrRefresh(modelsCacheKey, func() (map[string]any, error) {
		resp, err := h.exec.Do(ctx, http.MethodGet, "/v0/models", nil)
		if err != nil {
			return nil, err
		}
		models := valueOr(resp["models"], []any{})
		return map[string]any{
			"success":      true,
			"models":       models,
			"total_models": lengthOf(models),
			"recommended":  firstOf(models),
			"message":      "Use one of these models when creating a background agent",
		}, nil
	})
	if err != nil {
		h.logger.Warn("model listing failed, using fallback", "error", err)
		return map[string]any{
			"success":      false,
			"error":        err.Error(),
			"models":       fallbackModels,
			"total_models": len(fallbackModels),
			"recommended":  fallbackModels[0],
			"message":      "Failed to fetch models from API, showing common fallback models",
		}
	}
	if degraded {
		h.logger.Warn("serving stale model listing")
	}
	return payload
}

// ListRepositories returns the repositories accessible to the configured
// key. Cached the same way as models; the cold-failure fallback is an
// empty list.
func (h *Handlers) ListRepositories(ctx context.Context) map[string]any {
	payload, degraded, err := h.cache.GetOrRefresh(reposCacheKey, func() (map[string]any, error) {
		resp, err := h.exec.Do(ctx, http.MethodGet, "/v0/repositories", nil)
		if err != nil {
			return nil, err
		}
		repos := valueOr(resp["repositories"], []any{})
		return map[string]any{
			"success":            true,
			"repositories":       repos,
			"total_repositories": lengthOf(repos),
			"message":            "These are the repositories accessible with your API key",
		}, nil
	})
	if err != nil {
		h.logger.Warn("repository listing failed", "error", err)
		return map[string]any{
			"success":            false,
			"error":              err.Error(),
			"repositories":       []any{},
			"total_repositories": 0,
			"message":            "Failed to fetch repositories. Check your API key permissions.",
		}
	}
	if degraded {
		h.logger.Warn("serving stale repository listing")
	}
	return payload
}

// ListBranches returns branch names for a GitHub repository, cached per
// repository. force_refresh bypasses the freshness window. Failures
// degrade to common branch names so agent creation stays possible.
func (h *Handlers) ListBranches(ctx context.Context, args Args) map[string]any {
	repositoryURL := args.String("repository_url")
	if repositoryURL == "" {
		return failure(&ValidationError{Field: "repository_url"}, "Failed to fetch branches. Using common branch names.")
	}

	owner, repo, err := githubapi.ParseRepoURL(repositoryURL)
	if err != nil {
		env := failure(err, "Invalid repository URL. Using common branch names.")
		env["repository"] = repositoryURL
		env["branches"] = fallbackBranches
		return env
	}

	key := branchKeyPrefix + owner + "/" + repo
	refresh := func() (map[string]any, error) {
		branches, err := h.branches.ListBranches(ctx, owner, repo)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"success":        true,
			"repository":     repositoryURL,
			"owner":          owner,
			"repo":           repo,
			"branches":       branches,
			"total_branches": len(branches),
			"message":        fmt.Sprintf("Available branches for %s/%s", owner, repo),
		}, nil
	}

	var payload map[string]any
	var degraded bool
	if args.Bool("force_refresh") {
		payload, degraded, err = h.cache.ForceRefresh(key, refresh)
	} else {
		payload, degraded, err = h.cache.GetOrRefresh(key, refresh)
	}
	if err != nil {
		return h.branchFallback(repositoryURL, err)
	}
	if degraded {
		h.logger.Warn("serving stale branch listing", "repository", repositoryURL)
	}
	return payload
}

// branchFallback classifies a branch fetch failure and picks the branch
// guess list. Private or otherwise erroring repositories additionally get
// a feature-branch guess.
func (h *Handlers) branchFallback(repositoryURL string, err error) map[string]any {
	h.logger.Warn("branch listing failed, using fallback", "repository", repositoryURL, "error", err)

	branches := fallbackBranches
	message := "Failed to fetch branches. Using common branch names."

	var apiErr *githubapi.APIError
	switch {
	case errors.Is(err, githubapi.ErrRepoNotFound):
		message = "Repository not found or not accessible. Using common branch names."
	case errors.Is(err, githubapi.ErrPrivateRepo):
		branches = append(append([]string{}, fallbackBranches...), "feature/new-feature")
		message = "Authentication required for private repository. Using common branch names."
	case errors.As(err, &apiErr):
		branches = append(append([]string{}, fallbackBranches...), "feature/new-feature")
	}

	return map[string]any{
		"success":    false,
		"error":      err.Error(),
		"repository": repositoryURL,
		"branches":   branches,
		"message":    message,
	}
}

// valueOr returns v unless it is nil.
func valueOr(v, fallback any) any {
	if v == nil {
		return fallback
	}
	return v
}

// lengthOf counts list-shaped lookup payloads. Decoded JSON arrays arrive
// as []any; zero for anything else.
func lengthOf(v any) int {
	if list, ok := v.([]any); ok {
		return len(list)
	}
	return 0
}

// firstOf returns the first element of a list-shaped payload, nil when the
// list is empty or not a list. The recommended model is always the first
// one the API returns.
func firstOf(v any) any {
	if list, ok := v.([]any); ok && len(list) > 0 {
		return list[0]
	}
	return nil
}
