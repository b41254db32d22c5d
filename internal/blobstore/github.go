// Implements Store over the GitHub Contents API.

package blobstore

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultAPIBase = "https://api.github.com"
	apiVersion     = "2022-11-28"
)

// TokenSource supplies a bearer token for GitHub API requests.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource wrapping a personal access token.
type StaticToken string

// Token returns the token itself.
func (t StaticToken) Token(context.Context) (string, error) {
	return string(t), nil
}

// GitHub is a Store backed by a branch of a GitHub repository.
//
// Reads use conditional GET with If-None-Match; writes use the Contents API
// PUT with the last-known blob sha so concurrent modification surfaces as
// ErrConflict rather than a silent overwrite.
type GitHub struct {
	owner  string
	repo   string
	branch string
	tokens TokenSource

	// APIBase overrides the GitHub API endpoint, for tests.
	APIBase string
	// HTTPClient overrides the default HTTP client.
	HTTPClient *http.Client
}

// NewGitHub creates a Store addressing owner/repo on the given branch.
func NewGitHub(owner, repo, branch string, tokens TokenSource) *GitHub {
	if branch == "" {
		branch = "main"
	}
	return &GitHub{
		owner:      owner,
		repo:       repo,
		branch:     branch,
		tokens:     tokens,
		APIBase:    defaultAPIBase,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// contentsResponse is the subset of the Contents API response we consume.
type contentsResponse struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Content string `json:"content"`
	SHA     string `json:"sha"`
}

type putResponse struct {
	Content *contentsResponse `json:"content"`
}

type putRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	Branch  string `json:"branch"`
	SHA     string `json:"sha,omitempty"`
}

func (g *GitHub) contentsURL(path string) string {
	return fmt.Sprintf("%s/repos/%s/%s/contents/%s", g.APIBase, url.PathEscape(g.owner), url.PathEscape(g.repo), path)
}

func (g *GitHub) do(ctx context.Context, method, rawURL, etag string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, err
	}
	token, err := g.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	return g.HTTPClient.Do(req)
}

// Get implements Store.
func (g *GitHub) Get(ctx context.Context, path, etag string) (*Object, error) {
	resp, err := g.do(ctx, http.MethodGet, g.contentsURL(path)+"?ref="+url.QueryEscape(g.branch), etag, nil)
	if err != nil {
		return nil, fmt.Errorf("github get %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusNotModified:
		return nil, ErrNotModified
	case http.StatusNotFound:
		return nil, ErrNotFound
	case http.StatusOK:
	default:
		return nil, apiError("get", path, resp)
	}

	var cr contentsResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return nil, fmt.Errorf("github get %s: decode: %w", path, err)
	}
	// The API base64-encodes content with embedded newlines.
	content, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(cr.Content, "\n", ""))
	if err != nil {
		return nil, fmt.Errorf("github get %s: decode content: %w", path, err)
	}
	return &Object{
		Content: content,
		Version: cr.SHA,
		ETag:    resp.Header.Get("ETag"),
	}, nil
}

// Put implements Store.
func (g *GitHub) Put(ctx context.Context, path string, content []byte, expectedVersion string) (string, error) {
	body := putRequest{
		Message: fmt.Sprintf("Update %s - %s", path, time.Now().UTC().Format(time.RFC3339)),
		Content: base64.StdEncoding.EncodeToString(content),
		Branch:  g.branch,
		SHA:     expectedVersion,
	}
	resp, err := g.do(ctx, http.MethodPut, g.contentsURL(path), "", &body)
	if err != nil {
		return "", fmt.Errorf("github put %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
	case http.StatusConflict:
		return "", ErrConflict
	case http.StatusUnprocessableEntity:
		// The Contents API reports a stale or missing sha as 422.
		return "", ErrConflict
	default:
		return "", apiError("put", path, resp)
	}

	var pr putResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return "", fmt.Errorf("github put %s: decode: %w", path, err)
	}
	if pr.Content == nil {
		return "", fmt.Errorf("github put %s: response missing content", path)
	}
	return pr.Content.SHA, nil
}

// List implements Store.
func (g *GitHub) List(ctx context.Context, dir string) ([]string, error) {
	resp, err := g.do(ctx, http.MethodGet, g.contentsURL(dir)+"?ref="+url.QueryEscape(g.branch), "", nil)
	if err != nil {
		return nil, fmt.Errorf("github list %s: %w", dir, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusNotFound:
		return nil, nil
	case http.StatusOK:
	default:
		return nil, apiError("list", dir, resp)
	}

	var entries []contentsResponse
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("github list %s: decode: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type == "file" {
			names = append(names, e.Name)
		}
	}
	return names, nil
}

// apiError converts a non-success response into a transport error, keeping a
// bounded excerpt of the body for diagnostics.
func apiError(op, path string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("github %s %s: API error %d: %s", op, path, resp.StatusCode, string(body))
}
