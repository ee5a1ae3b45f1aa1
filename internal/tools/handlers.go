// ABOUTME: Operation handlers for agent lifecycle tools
// ABOUTME: create, get-status, follow-up, stop, and list against /v0/agents

package tools

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/2389/cursor-agent-gateway/internal/cache"
	"github.com/2389/cursor-agent-gateway/internal/cursorapi"
	"github.com/2389/cursor-agent-gateway/internal/githubapi"
	"github.com/2389/cursor-agent-gateway/internal/registry"
)

// Defaults applied when the caller omits optional create arguments.
const (
	DefaultBranch = "main"
	DefaultModel  = "claude-3-5-sonnet"
)

// ValidationError indicates a missing or malformed caller argument.
// Raised before any network activity; never retried.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s is required", e.Field)
}

// Args is the named-argument mapping a tool call carries.
type Args map[string]any

// String returns the named string argument, or "" when absent.
func (a Args) String(key string) string {
	s, _ := a[key].(string)
	return s
}

// Bool returns the named boolean argument, or false when absent.
func (a Args) Bool(key string) bool {
	b, _ := a[key].(bool)
	return b
}

// Text returns the named argument as a string, also accepting the JSON
// number form. Decoded JSON integers arrive as float64.
func (a Args) Text(key string) string {
	switch v := a[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	}
	return ""
}

// Config wires a Handlers instance. Cache and Registry are constructed
// once at startup and injected explicitly; no ambient globals.
type Config struct {
	Executor   *cursorapi.Executor
	Cache      *cache.Cache
	Registry   *registry.Registry
	Branches   *githubapi.Client
	Logger     *slog.Logger
	WebhookURL string
}

// Handlers implements the nine cursor_* operations.
type Handlers struct {
	exec       *cursorapi.Executor
	cache      *cache.Cache
	registry   *registry.Registry
	branches   *githubapi.Client
	logger     *slog.Logger
	webhookURL string
	now        func() time.Time
}

// NewHandlers creates the operation handlers.
func NewHandlers(cfg Config) *Handlers {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		exec:       cfg.Executor,
		cache:      cfg.Cache,
		registry:   cfg.Registry,
		branches:   cfg.Branches,
		logger:     logger,
		webhookURL: cfg.WebhookURL,
		now:        time.Now,
	}
}

// SetClock replaces the time source. Test hook.
func (h *Handlers) SetClock(now func() time.Time) {
	h.now = now
}

// Registry exposes the agent mirror for resource reads.
func (h *Handlers) Registry() *registry.Registry {
	return h.registry
}

// Cache exposes the lookup cache for resource reads and admin clearing.
func (h *Handlers) Cache() *cache.Cache {
	return h.cache
}

// failure builds an unsuccessful envelope.
func failure(err error, message string) map[string]any {
	return map[string]any{
		"success": false,
		"error":   err.Error(),
		"message": message,
	}
}

// timestamp returns the current time in the wire format used for
// locally-assigned created_at/updated_at values.
func (h *Handlers) timestamp() string {
	return h.now().UTC().Format(time.RFC3339)
}

// CreateAgent launches a new background agent. On success the response is
// mirrored into the registry, synthesizing an id if the API omits one.
func (h *Handlers) CreateAgent(ctx context.Context, args Args) map[string]any {
	repositoryURL := args.String("repository_url")
	if repositoryURL == "" {
		return failure(&ValidationError{Field: "repository_url"}, "Failed to create background agent. Check your API key and repository access.")
	}
	prompt := args.String("prompt")
	if prompt == "" {
		return failure(&ValidationError{Field: "prompt"}, "Failed to create background agent. Check your API key and repository access.")
	}

	branch := args.String("branch")
	if branch == "" {
		branch = DefaultBranch
	}
	model := args.String("model")
	if model == "" {
		model = DefaultModel
	}

	payload := map[string]any{
		"prompt": map[string]any{"text": prompt},
		"source": map[string]any{
			"repository": repositoryURL,
			"ref":        branch,
		},
		"model": model,
		"target": map[string]any{
			"autoCreatePr": true,
		},
	}
	if h.webhookURL != "" {
		payload["webhook"] = map[string]any{"url": h.webhookURL}
	}

	resp, err := h.exec.Do(ctx, http.MethodPost, "/v0/agents", payload)
	if err != nil {
		h.logger.Error("failed to create background agent", "error", err)
		return failure(err, "Failed to create background agent. Check your API key and repository access.")
	}

	agentID, _ := resp["id"].(string)
	if agentID == "" {
		agentID = "agent-" + uuid.New().String()
	}
	status, _ := resp["status"].(string)
	if status == "" {
		status = "CREATING"
	}
	createdAt, _ := resp["createdAt"].(string)
	if createdAt == "" {
		createdAt = h.timestamp()
	}

	h.registry.Upsert(registry.Agent{
		ID:            agentID,
		Status:        status,
		RepositoryURL: repositoryURL,
		Prompt:        prompt,
		Branch:        branch,
		Model:         model,
		CreatedAt:     createdAt,
	})

	h.logger.Info("created background agent", "agent_id", agentID, "repository", repositoryURL)

	return map[string]any{
		"success":        true,
		"agent_id":       agentID,
		"status":         status,
		"repository_url": repositoryURL,
		"branch":         branch,
		"model":          model,
		"created_at":     createdAt,
		"message":        fmt.Sprintf("Background agent created successfully. Agent will work autonomously on '%s'", prompt),
	}
}

// GetAgentStatus fetches the remote status for one agent and merges the
// observed fields into the local record when one exists.
func (h *Handlers) GetAgentStatus(ctx context.Context, args Args) map[string]any {
	agentID := args.String("agent_id")
	if agentID == "" {
		return failure(&ValidationError{Field: "agent_id"}, "Failed to get status for agent")
	}

	resp, err := h.exec.Do(ctx, http.MethodGet, "/v0/agents/"+agentID, nil)
	if err != nil {
		h.logger.Error("failed to get agent status", "agent_id", agentID, "error", err)
		return failure(err, fmt.Sprintf("Failed to get status for agent %s", agentID))
	}

	status, _ := resp["status"].(string)
	progress, _ := resp["progress"].(map[string]any)

	// Only merge into an already-tracked record: a status poll for an
	// unseen id does not register it. An empty status is absent, so the
	// merge leaves the prior one in place.
	if _, tracked := h.registry.Get(agentID); tracked {
		h.registry.Upsert(registry.Agent{
			ID:        agentID,
			Status:    status,
			Progress:  progress,
			UpdatedAt: h.timestamp(),
		})
	}

	// The envelope still reports something when the response carried no
	// status; this synthesized value never reaches the registry.
	if status == "" {
		status = registry.StatusUnknown
	}
	if progress == nil {
		progress = map[string]any{}
	}
	logs, ok := resp["logs"]
	if !ok {
		logs = []any{}
	}

	return map[string]any{
		"success":        true,
		"agent_id":       agentID,
		"status":         status,
		"progress":       progress,
		"repository_url": resp["repository_url"],
		"branch":         resp["branch"],
		"created_at":     resp["created_at"],
		"updated_at":     resp["updated_at"],
		"logs":           logs,
	}
}

// AddFollowup sends an additional instruction to a running agent.
func (h *Handlers) AddFollowup(ctx context.Context, args Args) map[string]any {
	agentID := args.String("agent_id")
	if agentID == "" {
		return failure(&ValidationError{Field: "agent_id"}, "Failed to add instruction to agent")
	}
	instruction := args.String("instruction")
	if instruction == "" {
		return failure(&ValidationError{Field: "instruction"}, fmt.Sprintf("Failed to add instruction to agent %s", agentID))
	}

	resp, err := h.exec.Do(ctx, http.MethodPost, "/v0/agents/"+agentID+"/followup", map[string]any{
		"instruction": instruction,
	})
	if err != nil {
		h.logger.Error("failed to add follow-up instruction", "agent_id", agentID, "error", err)
		return failure(err, fmt.Sprintf("Failed to add instruction to agent %s", agentID))
	}

	status, _ := resp["status"].(string)
	if status == "" {
		status = "updated"
	}

	return map[string]any{
		"success":           true,
		"agent_id":          agentID,
		"instruction_added": instruction,
		"status":            status,
		"message":           "Follow-up instruction added successfully",
	}
}

// StopAgent requests remote termination and optimistically flips the
// local record to stopped. The record itself is never deleted; true
// deletion lives only in the remote system.
func (h *Handlers) StopAgent(ctx context.Context, args Args) map[string]any {
	agentID := args.String("agent_id")
	if agentID == "" {
		return failure(&ValidationError{Field: "agent_id"}, "Failed to stop agent")
	}

	if _, err := h.exec.Do(ctx, http.MethodDelete, "/v0/agents/"+agentID, nil); err != nil {
		h.logger.Error("failed to stop background agent", "agent_id", agentID, "error", err)
		return failure(err, fmt.Sprintf("Failed to stop agent %s", agentID))
	}

	if _, tracked := h.registry.Get(agentID); tracked {
		h.registry.Upsert(registry.Agent{
			ID:        agentID,
			Status:    registry.StatusStopped,
			UpdatedAt: h.timestamp(),
		})
	}

	return map[string]any{
		"success":  true,
		"agent_id": agentID,
		"status":   registry.StatusStopped,
		"message":  "Background agent stopped successfully",
	}
}

// ListAgents fetches the remote agent list and merges every returned
// record into the registry, inserting the unseen ones.
func (h *Handlers) ListAgents(ctx context.Context, args Args) map[string]any {
	statusFilter := args.String("status_filter")
	repoFilter := args.String("repository_filter")

	query := url.Values{}
	if statusFilter != "" {
		query.Set("status", statusFilter)
	}
	if repoFilter != "" {
		query.Set("repository", repoFilter)
	}
	if limit := args.Text("limit"); limit != "" {
		query.Set("limit", limit)
	}
	if cursor := args.String("cursor"); cursor != "" {
		query.Set("cursor", cursor)
	}

	endpoint := "/v0/agents"
	if encoded := query.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	resp, err := h.exec.Do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		h.logger.Error("failed to list background agents", "error", err)
		return failure(err, "Failed to list background agents")
	}

	agents, _ := resp["agents"].([]any)
	for _, item := range agents {
		data, ok := item.(map[string]any)
		if !ok {
			continue
		}
		agentID, _ := data["agent_id"].(string)
		if agentID == "" {
			agentID, _ = data["id"].(string)
		}
		if agentID == "" {
			continue
		}

		status, _ := data["status"].(string)
		repoURL, _ := data["repository_url"].(string)
		prompt, _ := data["prompt"].(string)
		branch, _ := data["branch"].(string)
		model, _ := data["model"].(string)
		createdAt, _ := data["created_at"].(string)

		h.registry.Upsert(registry.Agent{
			ID:            agentID,
			Status:        status,
			RepositoryURL: repoURL,
			Prompt:        prompt,
			Branch:        branch,
			Model:         model,
			CreatedAt:     createdAt,
			UpdatedAt:     h.timestamp(),
		})
	}

	if agents == nil {
		agents = []any{}
	}

	return map[string]any{
		"success":      true,
		"total_agents": len(agents),
		"agents":       agents,
		"filters_applied": map[string]any{
			"status":     statusFilter,
			"repository": repoFilter,
		},
	}
}
