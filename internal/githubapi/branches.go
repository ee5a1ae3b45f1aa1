// ABOUTME: GitHub repository URL parsing and branch listing
// ABOUTME: Classifies 404/401 so callers can degrade to common branch names

package githubapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// DefaultBaseURL is the GitHub REST API root.
const DefaultBaseURL = "https://api.github.com"

// Branch listing errors. NotFound and PrivateRepo get distinct fallback
// treatment by the list-branches handler.
var (
	ErrRepoNotFound = errors.New("repository not found or not accessible")
	ErrPrivateRepo  = errors.New("authentication required for private repository")
)

// InvalidRepositoryURLError indicates a repository reference that is not
// an http(s) github.com owner/repo URL.
type InvalidRepositoryURLError struct {
	URL string
}

func (e *InvalidRepositoryURLError) Error() string {
	return fmt.Sprintf("invalid repository URL: %s", e.URL)
}

// APIError carries any other non-200 from the branches endpoint.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("GitHub API error: %d - %s", e.Status, e.Body)
}

// ParseRepoURL extracts the owner and repo name from a GitHub URL.
// Only http(s)://github.com/<owner>/<repo>[/...] is accepted: the scheme
// and host are stripped, trailing slashes removed, and the remainder
// split on the first slash.
func ParseRepoURL(repositoryURL string) (owner, repo string, err error) {
	rest := ""
	switch {
	case strings.HasPrefix(repositoryURL, "https://github.com/"):
		rest = strings.TrimPrefix(repositoryURL, "https://github.com/")
	case strings.HasPrefix(repositoryURL, "http://github.com/"):
		rest = strings.TrimPrefix(repositoryURL, "http://github.com/")
	default:
		return "", "", &InvalidRepositoryURLError{URL: repositoryURL}
	}

	rest = strings.TrimRight(rest, "/")
	owner, repo, found := strings.Cut(rest, "/")
	if !found || owner == "" || repo == "" {
		return "", "", &InvalidRepositoryURLError{URL: repositoryURL}
	}
	return owner, repo, nil
}

// Client fetches branch lists from the GitHub API.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
	logger  *slog.Logger
}

// Config holds client settings. Token is optional; it unlocks private
// repositories. BaseURL defaults to the public GitHub API.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// NewClient creates a branches client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		httpc:   &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}
}

// ListBranches returns the branch names for owner/repo. 404 maps to
// ErrRepoNotFound, 401 to ErrPrivateRepo, any other non-200 to *APIError.
func (c *Client) ListBranches(ctx context.Context, owner, repo string) ([]string, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/branches", c.baseURL, owner, repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", "cursor-agent-gateway")
	if c.token != "" {
		req.Header.Set("Authorization", "token "+c.token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching branches: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading branches response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrRepoNotFound
	case http.StatusUnauthorized:
		return nil, ErrPrivateRepo
	default:
		return nil, &APIError{Status: resp.StatusCode, Body: string(body)}
	}

	var entries []struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("decoding branches response: %w", err)
	}

	branches := make([]string, len(entries))
	for i, e := range entries {
		branches[i] = e.Name
	}
	c.logger.Debug("fetched branches", "owner", owner, "repo", repo, "count", len(branches))
	return branches, nil
}
