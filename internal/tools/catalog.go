// ABOUTME: Tool catalog and name-based dispatch for the cursor_* surface
// ABOUTME: Definitions carry the JSON Schemas advertised over tools/list

package tools

import (
	"context"
	"fmt"
)

// Definition describes one tool as advertised to clients.
type Definition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// Tool names.
const (
	ToolCreateAgent      = "cursor_create_background_agent"
	ToolGetAgentStatus   = "cursor_get_agent_status"
	ToolAddFollowup      = "cursor_add_followup_instruction"
	ToolStopAgent        = "cursor_stop_background_agent"
	ToolListAgents       = "cursor_list_background_agents"
	ToolGetAPIUsage      = "cursor_get_api_usage"
	ToolListModels       = "cursor_list_available_models"
	ToolListRepositories = "cursor_list_repositories"
	ToolListRepoBranches = "cursor_list_repository_branches"
)

// Definitions returns the full tool catalog in stable order.
func Definitions() []Definition {
	return []Definition{
		{
			Name:        ToolCreateAgent,
			Description: "Create a new Cursor background agent for autonomous coding tasks",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"repository_url": map[string]any{
						"type":        "string",
						"description": "GitHub repository URL where the agent will work",
					},
					"prompt": map[string]any{
						"type":        "string",
						"description": "Detailed instructions for what the agent should accomplish",
					},
					"branch": map[string]any{
						"type":        "string",
						"description": "Git branch to work on (optional, defaults to main)",
						"default":     DefaultBranch,
					},
					"model": map[string]any{
						"type":        "string",
						"description": "AI model to use (optional, defaults to claude-3-5-sonnet)",
						"enum":        []string{"claude-3-5-sonnet", "gpt-4o", "claude-3-haiku"},
						"default":     DefaultModel,
					},
					"max_iterations": map[string]any{
						"type":        "integer",
						"description": "Maximum number of iterations (optional, defaults to 10)",
						"default":     10,
						"minimum":     1,
						"maximum":     50,
					},
				},
				"required": []string{"repository_url", "prompt"},
			},
		},
		{
			Name:        ToolGetAgentStatus,
			Description: "Get the current status and progress of a background agent",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"agent_id": map[string]any{
						"type":        "string",
						"description": "ID of the background agent to check",
					},
				},
				"required": []string{"agent_id"},
			},
		},
		{
			Name:        ToolAddFollowup,
			Description: "Add a follow-up instruction to a running background agent",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"agent_id": map[string]any{
						"type":        "string",
						"description": "ID of the background agent",
					},
					"instruction": map[string]any{
						"type":        "string",
						"description": "Additional instruction or clarification for the agent",
					},
				},
				"required": []string{"agent_id", "instruction"},
			},
		},
		{
			Name:        ToolStopAgent,
			Description: "Stop a running background agent",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"agent_id": map[string]any{
						"type":        "string",
						"description": "ID of the background agent to stop",
					},
				},
				"required": []string{"agent_id"},
			},
		},
		{
			Name:        ToolListAgents,
			Description: "List all background agents and their current status",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"status_filter": map[string]any{
						"type":        "string",
						"description": "Filter agents by status (optional)",
						"enum":        []string{"running", "completed", "failed", "stopped"},
					},
					"repository_filter": map[string]any{
						"type":        "string",
						"description": "Filter agents by repository URL (optional)",
					},
				},
			},
		},
		{
			Name:        ToolGetAPIUsage,
			Description: "Get current API usage and limits for Cursor Background Agents",
			InputSchema: map[string]any{
				"type":                 "object",
				"properties":           map[string]any{},
				"additionalProperties": false,
			},
		},
		{
			Name:        ToolListModels,
			Description: "Get list of available AI models for background agents",
			InputSchema: map[string]any{
				"type":                 "object",
				"properties":           map[string]any{},
				"additionalProperties": false,
			},
		},
		{
			Name:        ToolListRepositories,
			Description: "Get list of accessible GitHub repositories",
			InputSchema: map[string]any{
				"type":                 "object",
				"properties":           map[string]any{},
				"additionalProperties": false,
			},
		},
		{
			Name:        ToolListRepoBranches,
			Description: "Get list of branches for a specific GitHub repository",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"repository_url": map[string]any{
						"type":        "string",
						"description": "GitHub repository URL (e.g., https://github.com/owner/repo)",
					},
					"force_refresh": map[string]any{
						"type":        "boolean",
						"description": "Force refresh the branch list from GitHub API",
						"default":     false,
					},
				},
				"required":             []string{"repository_url"},
				"additionalProperties": false,
			},
		},
	}
}

// Call dispatches a tool invocation by name. The returned error means the
// tool does not exist; operational failures come back inside the envelope.
func (h *Handlers) Call(ctx context.Context, name string, args Args) (map[string]any, error) {
	if args == nil {
		args = Args{}
	}
	switch name {
	case ToolCreateAgent:
		return h.CreateAgent(ctx, args), nil
	case ToolGetAgentStatus:
		return h.GetAgentStatus(ctx, args), nil
	case ToolAddFollowup:
		return h.AddFollowup(ctx, args), nil
	case ToolStopAgent:
		return h.StopAgent(ctx, args), nil
	case ToolListAgents:
		return h.ListAgents(ctx, args), nil
	case ToolGetAPIUsage:
		return h.GetAPIUsage(ctx), nil
	case ToolListModels:
		return h.ListModels(ctx), nil
	case ToolListRepositories:
		return h.ListRepositories(ctx), nil
	case ToolListRepoBranches:
		return h.ListBranches(ctx, args), nil
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}
