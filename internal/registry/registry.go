// ABOUTME: In-memory agent record store with partial-merge upserts
// ABOUTME: Insertion-ordered listing with exact-match status and repository filters

package registry

import (
	"log/slog"
	"sync"
)

// Common agent status values. The remote API owns the status vocabulary,
// so these are documentation, not an exhaustive set: always treat status
// as an opaque string.
const (
	StatusCreating  = "creating"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusStopped   = "stopped"
	StatusUnknown   = "unknown"
)

// Agent is the last-known record for one remote background agent. String
// fields left empty in an upsert fragment are treated as absent and leave
// the stored value untouched.
type Agent struct {
	ID            string         `json:"agent_id"`
	Status        string         `json:"status"`
	RepositoryURL string         `json:"repository_url"`
	Prompt        string         `json:"prompt,omitempty"`
	Branch        string         `json:"branch,omitempty"`
	Model         string         `json:"model,omitempty"`
	CreatedAt     string         `json:"created_at,omitempty"`
	UpdatedAt     string         `json:"updated_at,omitempty"`
	Progress      map[string]any `json:"progress,omitempty"`
}

// Summary aggregates the registry for the agents-summary resource.
type Summary struct {
	TotalAgents    int              `json:"total_agents"`
	AgentsByStatus map[string]int   `json:"agents_by_status"`
	Agents         []map[string]any `json:"agents"`
}

// Registry owns every Agent record in the process. Handlers read and
// write through it and never hold independent copies. Updates land after
// the remote call returns, so a concurrent List may observe the
// pre-update record; that staleness is acceptable for an advisory mirror.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]*Agent
	order  []string
	logger *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		agents: make(map[string]*Agent),
		logger: logger,
	}
}

// Upsert merges a partial record into the stored record for fragment.ID,
// creating it if absent. Only fields present in the fragment overwrite.
func (r *Registry) Upsert(fragment Agent) {
	if fragment.ID == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.agents[fragment.ID]
	if !ok {
		stored := fragment
		if stored.Status == "" {
			stored.Status = StatusUnknown
		}
		r.agents[fragment.ID] = &stored
		r.order = append(r.order, fragment.ID)
		r.logger.Debug("agent registered", "agent_id", fragment.ID, "status", stored.Status)
		return
	}

	if fragment.Status != "" {
		existing.Status = fragment.Status
	}
	if fragment.RepositoryURL != "" {
		existing.RepositoryURL = fragment.RepositoryURL
	}
	if fragment.Prompt != "" {
		existing.Prompt = fragment.Prompt
	}
	if fragment.Branch != "" {
		existing.Branch = fragment.Branch
	}
	if fragment.Model != "" {
		existing.Model = fragment.Model
	}
	if fragment.CreatedAt != "" {
		existing.CreatedAt = fragment.CreatedAt
	}
	if fragment.UpdatedAt != "" {
		existing.UpdatedAt = fragment.UpdatedAt
	}
	if fragment.Progress != nil {
		existing.Progress = fragment.Progress
	}
}

// Get returns a copy of the record for id.
func (r *Registry) Get(id string) (Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.agents[id]
	if !ok {
		return Agent{}, false
	}
	return *a, true
}

// List returns records in insertion order. Non-empty filters are
// exact-match on status and repository URL.
func (r *Registry) List(statusFilter, repoFilter string) []Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Agent
	for _, id := range r.order {
		a := r.agents[id]
		if statusFilter != "" && a.Status != statusFilter {
			continue
		}
		if repoFilter != "" && a.RepositoryURL != repoFilter {
			continue
		}
		result = append(result, *a)
	}
	return result
}

// Len returns the total number of records.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}

// CountByStatus returns how many records carry the given status.
func (r *Registry) CountByStatus(status string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, a := range r.agents {
		if a.Status == status {
			count++
		}
	}
	return count
}

// Summary returns status counts and a per-agent digest, insertion-ordered.
func (r *Registry) Summary() Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Summary{
		TotalAgents:    len(r.agents),
		AgentsByStatus: make(map[string]int),
		Agents:         make([]map[string]any, 0, len(r.agents)),
	}
	for _, id := range r.order {
		a := r.agents[id]
		s.AgentsByStatus[a.Status]++
		s.Agents = append(s.Agents, map[string]any{
			"agent_id":       a.ID,
			"status":         a.Status,
			"repository_url": a.RepositoryURL,
			"created_at":     a.CreatedAt,
			"branch":         a.Branch,
		})
	}
	return s
}
