// ABOUTME: Gateway orchestrator wiring the Cursor API session to the MCP surface
// ABOUTME: Manages HTTP/tsnet listeners, health endpoints, and graceful shutdown

package gateway

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"tailscale.com/ipn/ipnstate"
	"tailscale.com/tsnet"

	"github.com/2389/cursor-agent-gateway/internal/auth"
	"github.com/2389/cursor-agent-gateway/internal/cache"
	"github.com/2389/cursor-agent-gateway/internal/config"
	"github.com/2389/cursor-agent-gateway/internal/cursorapi"
	"github.com/2389/cursor-agent-gateway/internal/githubapi"
	"github.com/2389/cursor-agent-gateway/internal/mcp"
	"github.com/2389/cursor-agent-gateway/internal/registry"
	"github.com/2389/cursor-agent-gateway/internal/tools"
	"github.com/2389/cursor-agent-gateway/internal/webconfig"
)

// Gateway orchestrates the cursor-agent-gateway server components.
// It owns the upstream API session, the tool handlers, the MCP server,
// the optional launcher UI, and the HTTP listener lifecycle.
type Gateway struct {
	config      *config.Config
	session     *cursorapi.Session
	handlers    *tools.Handlers
	mcpServer   *mcp.Server
	launcher    *webconfig.Server
	httpServer  *http.Server
	tsnetServer *tsnet.Server
	logger      *slog.Logger
}

// determineLauncherBaseURL resolves the launcher base URL from config,
// environment, or deployment mode.
func determineLauncherBaseURL(cfg *config.Config) string {
	if cfg.WebConfig.BaseURL != "" {
		return cfg.WebConfig.BaseURL
	}
	if envURL := os.Getenv("CURSOR_GATEWAY_URL"); envURL != "" {
		return envURL
	}
	if !cfg.Tailscale.Enabled {
		return "http://" + cfg.Server.HTTPAddr
	}
	if cfg.Tailscale.Funnel || cfg.Tailscale.CertFile != "" {
		return "https://" + cfg.Tailscale.Hostname
	}
	return "http://" + cfg.Tailscale.Hostname
}

// buildVerifier returns a JWT verifier when a secret is configured, nil
// otherwise (anonymous mode).
func buildVerifier(cfg *config.Config, logger *slog.Logger) *auth.JWTVerifier {
	if cfg.Auth.JWTSecret == "" {
		logger.Warn("auth disabled - no jwt_secret configured")
		return nil
	}
	logger.Info("JWT auth enabled for MCP endpoint")
	return auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
}

// New creates a new Gateway instance with the given configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	session := cursorapi.NewSession(cursorapi.Config{
		BaseURL:    cfg.Cursor.BaseURL,
		APIKey:     cfg.Cursor.APIKey,
		Timeout:    cfg.Cursor.Timeout,
		MaxRetries: cfg.Cursor.MaxRetries,
	})
	executor := cursorapi.NewExecutor(session, logger.With("component", "cursorapi"))

	window := cfg.Cache.Window
	if window == 0 {
		window = cache.DefaultWindow
	}

	branches := githubapi.NewClient(githubapi.Config{
		BaseURL: cfg.GitHub.BaseURL,
		Token:   cfg.GitHub.Token,
	}, logger.With("component", "githubapi"))

	handlers := tools.NewHandlers(tools.Config{
		Executor:   executor,
		Cache:      cache.New(window),
		Registry:   registry.NewRegistry(logger.With("component", "registry")),
		Branches:   branches,
		Logger:     logger.With("component", "tools"),
		WebhookURL: cfg.Cursor.WebhookURL,
	})

	verifier := buildVerifier(cfg, logger)
	mcpCfg := mcp.Config{
		Handlers:    handlers,
		Logger:      logger.With("component", "mcp"),
		RequireAuth: verifier != nil,
		ConfigInfo: func() mcp.ConfigSummary {
			sc := session.Config()
			return mcp.ConfigSummary{
				BaseURL:          sc.BaseURL,
				Timeout:          sc.Timeout,
				MaxRetries:       sc.MaxRetries,
				APIKeyConfigured: sc.APIKey != "",
				SessionActive:    session.Active(),
			}
		},
	}
	if verifier != nil {
		mcpCfg.TokenVerifier = verifier
	}
	mcpServer, err := mcp.NewServer(mcpCfg)
	if err != nil {
		return nil, fmt.Errorf("creating MCP server: %w", err)
	}

	gw := &Gateway{
		config:    cfg,
		session:   session,
		handlers:  handlers,
		mcpServer: mcpServer,
		logger:    logger.With("component", "gateway"),
	}

	mux := http.NewServeMux()

	// Health endpoints - no auth required
	mux.HandleFunc("/health", gw.handleHealth)
	mux.HandleFunc("/health/ready", gw.handleReady)

	mcpServer.RegisterRoutes(mux)

	if cfg.WebConfig.Enabled {
		launcherBaseURL := determineLauncherBaseURL(cfg)
		launcher, err := webconfig.New(handlers, webconfig.Config{
			BaseURL:     launcherBaseURL,
			PresetsPath: cfg.WebConfig.PresetsPath,
		}, logger.With("component", "webconfig"))
		if err != nil {
			return nil, fmt.Errorf("creating launcher UI: %w", err)
		}
		gw.launcher = launcher
		launcher.RegisterRoutes(mux)
		logger.Info("launcher UI enabled at /", "base_url", launcherBaseURL)
	}

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return gw, nil
}

// Run starts the gateway server and blocks until the context is canceled.
// Returns nil on graceful shutdown (context canceled), or an error if the
// server fails.
func (g *Gateway) Run(ctx context.Context) error {
	listener, err := g.setupListener(ctx)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", listener.Addr().String())
		if err := g.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		g.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := g.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the original context is
// already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// Shutdown gracefully stops the HTTP server and releases the upstream session.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	if err := g.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("HTTP shutdown: %w", err))
	}
	if g.tsnetServer != nil {
		if err := g.tsnetServer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("tailscale shutdown: %w", err))
		}
	}
	g.session.Close()

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

// setupListener creates the listener based on configuration (Tailscale or TCP).
func (g *Gateway) setupListener(ctx context.Context) (net.Listener, error) {
	if g.config.Tailscale.Enabled {
		if g.config.Server.HTTPAddr != "" {
			g.logger.Warn("server.http_addr is ignored when tailscale is enabled",
				"http_addr", g.config.Server.HTTPAddr,
			)
		}
		return g.setupTailscaleListener(ctx)
	}

	g.logger.Info("starting gateway", "http_addr", g.config.Server.HTTPAddr)
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("listening on HTTP address: %w", err)
	}
	return ln, nil
}

// resolveTailscaleStateDir returns the state directory, using default if not configured.
func resolveTailscaleStateDir(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory for tailscale state (set tailscale.state_dir explicitly): %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "cursor-agent-gateway", "tailscale"), nil
}

// resolveTailscaleAuthKey returns the auth key from config or environment.
func resolveTailscaleAuthKey(configured string) (string, error) {
	authKey := configured
	if authKey == "" {
		authKey = os.Getenv("TS_AUTHKEY")
	}
	if authKey == "" {
		return "", errors.New("tailscale auth key required: set auth_key in config or TS_AUTHKEY environment variable (get one at https://login.tailscale.com/admin/settings/keys)")
	}
	return authKey, nil
}

// setupTailscaleListener creates a tsnet server and returns the HTTP listener.
func (g *Gateway) setupTailscaleListener(ctx context.Context) (net.Listener, error) {
	tsCfg := g.config.Tailscale

	stateDir, err := resolveTailscaleStateDir(tsCfg.StateDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return nil, fmt.Errorf("creating tailscale state dir: %w", err)
	}

	authKey, err := resolveTailscaleAuthKey(tsCfg.AuthKey)
	if err != nil {
		return nil, err
	}

	g.tsnetServer = &tsnet.Server{
		Hostname:  tsCfg.Hostname,
		Dir:       stateDir,
		Ephemeral: tsCfg.Ephemeral,
		AuthKey:   authKey,
	}

	g.logger.Info("starting tailscale node", "hostname", tsCfg.Hostname, "state_dir", stateDir, "ephemeral", tsCfg.Ephemeral)
	status, err := g.tsnetServer.Up(ctx)
	if err != nil {
		_ = g.tsnetServer.Close()
		return nil, fmt.Errorf("starting tailscale: %w", err)
	}
	g.logTailscaleStatus(tsCfg.Hostname, status)

	return g.createTailscaleHTTPListener(tsCfg)
}

// logTailscaleStatus logs info about the tailscale node status.
func (g *Gateway) logTailscaleStatus(hostname string, status *ipnstate.Status) {
	var tsAddr, dnsName string
	if len(status.TailscaleIPs) > 0 {
		tsAddr = status.TailscaleIPs[0].String()
	} else {
		g.logger.Warn("tailscale node has no IP addresses assigned")
	}
	if status.Self != nil {
		dnsName = status.Self.DNSName
	}
	g.logger.Info("tailscale node ready", "hostname", hostname, "tailscale_ip", tsAddr, "dns_name", dnsName)
}

// createTailscaleHTTPListener creates the appropriate HTTP listener based on config.
func (g *Gateway) createTailscaleHTTPListener(tsCfg config.TailscaleConfig) (net.Listener, error) {
	switch {
	case tsCfg.Funnel:
		g.logger.Info("enabling tailscale funnel (public HTTPS) on :443")
		ln, err := g.tsnetServer.ListenFunnel("tcp", ":443")
		if err != nil {
			_ = g.tsnetServer.Close()
			return nil, fmt.Errorf("listening on tailscale funnel port: %w", err)
		}
		return ln, nil
	case tsCfg.CertFile != "" && tsCfg.KeyFile != "":
		return g.createTailscaleTLSListener(tsCfg)
	default:
		ln, err := g.tsnetServer.Listen("tcp", ":80")
		if err != nil {
			_ = g.tsnetServer.Close()
			return nil, fmt.Errorf("listening on tailscale HTTP port: %w", err)
		}
		return ln, nil
	}
}

// createTailscaleTLSListener creates a TLS listener with the configured
// certificate files (generate via: tailscale cert <hostname>).
func (g *Gateway) createTailscaleTLSListener(tsCfg config.TailscaleConfig) (net.Listener, error) {
	g.logger.Info("enabling HTTPS with configured certs on :443")
	cert, err := tls.LoadX509KeyPair(tsCfg.CertFile, tsCfg.KeyFile)
	if err != nil {
		_ = g.tsnetServer.Close()
		return nil, fmt.Errorf("loading TLS certificate: %w", err)
	}
	ln, err := g.tsnetServer.Listen("tcp", ":443")
	if err != nil {
		_ = g.tsnetServer.Close()
		return nil, fmt.Errorf("listening on tailscale HTTPS port: %w", err)
	}
	return tls.NewListener(ln, &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}), nil
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady reports readiness once the gateway is serving. The tracked
// agent count is included for probes and debugging.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "ready (%d agents tracked)", g.handlers.Registry().Len())
}
