// ABOUTME: Launcher web UI and JSON API for creating background agents
// ABOUTME: Wraps the tool handlers behind browser-friendly REST endpoints

package webconfig

import (
	"bytes"
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/yuin/goldmark"

	"github.com/2389/cursor-agent-gateway/internal/tools"
)

// Config holds launcher UI configuration.
type Config struct {
	// BaseURL is the external URL for the launcher UI, shown on the page.
	BaseURL string
	// PresetsPath is where saved launch configurations are persisted.
	PresetsPath string
}

// Server handles the launcher page and its JSON API.
type Server struct {
	handlers *tools.Handlers
	presets  *PresetStore
	config   Config
	logger   *slog.Logger
	tmpl     *template.Template
	markdown goldmark.Markdown
}

// New creates the launcher server. The preset store is opened eagerly so
// a corrupt presets file fails startup instead of the first save.
func New(handlers *tools.Handlers, cfg Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default().With("component", "webconfig")
	}

	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	presetsPath := cfg.PresetsPath
	if presetsPath == "" {
		presetsPath = "presets.toml"
	}
	presets, err := NewPresetStore(presetsPath)
	if err != nil {
		return nil, err
	}

	return &Server{
		handlers: handlers,
		presets:  presets,
		config:   cfg,
		logger:   logger,
		tmpl:     tmpl,
		markdown: goldmark.New(),
	}, nil
}

// RegisterRoutes registers the launcher routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("OPTIONS /api/", s.handlePreflight)
	mux.HandleFunc("POST /api/create-agent", s.cors(s.handleCreateAgent))
	mux.HandleFunc("GET /api/agent-status/{id}", s.cors(s.handleAgentStatus))
	mux.HandleFunc("POST /api/agent/{id}/followup", s.cors(s.handleFollowup))
	mux.HandleFunc("POST /api/agent/{id}/stop", s.cors(s.handleStop))
	mux.HandleFunc("GET /api/list-agents", s.cors(s.handleListAgents))
	mux.HandleFunc("GET /api/models", s.cors(s.handleModels))
	mux.HandleFunc("GET /api/repositories", s.cors(s.handleRepositories))
	mux.HandleFunc("GET /api/branches", s.cors(s.handleBranches))
	mux.HandleFunc("GET /api/saved-configs", s.cors(s.handleSavedConfigs))
	mux.HandleFunc("POST /api/save-config", s.cors(s.handleSaveConfig))
	mux.HandleFunc("POST /api/preview-template", s.cors(s.handlePreviewTemplate))
}

// cors allows browser calls from any origin. The launcher is intended for
// trusted networks (localhost or a tailnet).
func (s *Server) cors(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)
		next(w, r)
	}
}

// handlePreflight answers CORS preflight requests for every API route.
func (s *Server) handlePreflight(w http.ResponseWriter, _ *http.Request) {
	setCORSHeaders(w)
	w.WriteHeader(http.StatusNoContent)
}

func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{
		"BaseURL": s.config.BaseURL,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.ExecuteTemplate(w, "index.html", data); err != nil {
		s.logger.Error("failed to render launcher page", "error", err)
	}
}

// writeJSON writes a JSON response body.
func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("failed to encode response", "error", err)
	}
}

// decodeBody parses a JSON request body into args for the tool handlers.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request) (tools.Args, bool) {
	var args tools.Args
	if err := json.NewDecoder(r.Body).Decode(&args); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   "invalid JSON body",
		})
		return nil, false
	}
	return args, true
}

func (s *Server) handleCreateAgent(w http.ResponseWriter, r *http.Request) {
	args, ok := s.decodeBody(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, s.handlers.CreateAgent(r.Context(), args))
}

func (s *Server) handleAgentStatus(w http.ResponseWriter, r *http.Request) {
	args := tools.Args{"agent_id": r.PathValue("id")}
	s.writeJSON(w, http.StatusOK, s.handlers.GetAgentStatus(r.Context(), args))
}

func (s *Server) handleFollowup(w http.ResponseWriter, r *http.Request) {
	args, ok := s.decodeBody(w, r)
	if !ok {
		return
	}
	args["agent_id"] = r.PathValue("id")
	s.writeJSON(w, http.StatusOK, s.handlers.AddFollowup(r.Context(), args))
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	args := tools.Args{"agent_id": r.PathValue("id")}
	s.writeJSON(w, http.StatusOK, s.handlers.StopAgent(r.Context(), args))
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	args := tools.Args{}
	if v := q.Get("status"); v != "" {
		args["status_filter"] = v
	}
	if v := q.Get("repository"); v != "" {
		args["repository_filter"] = v
	}
	if v := q.Get("limit"); v != "" {
		args["limit"] = v
	}
	if v := q.Get("cursor"); v != "" {
		args["cursor"] = v
	}
	s.writeJSON(w, http.StatusOK, s.handlers.ListAgents(r.Context(), args))
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.handlers.ListModels(r.Context()))
}

func (s *Server) handleRepositories(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.handlers.ListRepositories(r.Context()))
}

func (s *Server) handleBranches(w http.ResponseWriter, r *http.Request) {
	args := tools.Args{
		"repository_url": r.URL.Query().Get("repository_url"),
		"force_refresh":  r.URL.Query().Get("force_refresh") == "true",
	}
	s.writeJSON(w, http.StatusOK, s.handlers.ListBranches(r.Context(), args))
}

func (s *Server) handleSavedConfigs(w http.ResponseWriter, r *http.Request) {
	presets := s.presets.List()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"configs": presets,
		"total":   len(presets),
	})
}

func (s *Server) handleSaveConfig(w http.ResponseWriter, r *http.Request) {
	var preset Preset
	if err := json.NewDecoder(r.Body).Decode(&preset); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   "invalid JSON body",
		})
		return
	}
	if preset.Name == "" {
		s.writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"error":   "name is required",
		})
		return
	}

	if err := s.presets.Save(preset); err != nil {
		s.logger.Error("failed to save preset", "name", preset.Name, "error", err)
		s.writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Configuration saved",
	})
}

// handlePreviewTemplate renders a task template as HTML so the launcher
// can show a formatted preview before submission.
func (s *Server) handlePreviewTemplate(w http.ResponseWriter, r *http.Request) {
	args, ok := s.decodeBody(w, r)
	if !ok {
		return
	}

	source := tools.TaskTemplate(args.String("task_type"), args.String("complexity"))

	var buf bytes.Buffer
	if err := s.markdown.Convert([]byte(source), &buf); err != nil {
		s.writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"markdown": source,
		"html":     buf.String(),
	})
}
