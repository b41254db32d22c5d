// Manages GitHub App JWT generation and installation token caching.

package blobstore

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AppAuth is a TokenSource that authenticates as a GitHub App installation.
//
// It signs short-lived RS256 JWTs with the App's private key and exchanges
// them for installation access tokens, which are cached until close to
// expiry.
type AppAuth struct {
	appID          int64
	installationID int64
	privateKey     *rsa.PrivateKey
	httpClient     *http.Client

	// APIBase overrides the GitHub API endpoint, for tests.
	APIBase string

	mu     sync.Mutex
	cached string
	expiry time.Time
}

// NewAppAuth creates a TokenSource for the given App installation.
func NewAppAuth(appID, installationID int64, privateKey *rsa.PrivateKey) *AppAuth {
	return &AppAuth{
		appID:          appID,
		installationID: installationID,
		privateKey:     privateKey,
		httpClient:     &http.Client{Timeout: 30 * time.Second},
		APIBase:        defaultAPIBase,
	}
}

// generateJWT creates a signed JWT for GitHub App authentication.
// The JWT is valid for 10 minutes per GitHub's requirements.
func (a *AppAuth) generateJWT() (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now.Add(-60 * time.Second)), // 60s clock drift
		ExpiresAt: jwt.NewNumericDate(now.Add(10 * time.Minute)),
		Issuer:    strconv.FormatInt(a.appID, 10),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(a.privateKey)
}

// Token returns a valid installation access token, using the cache when the
// cached token expires more than 5 minutes from now.
func (a *AppAuth) Token(ctx context.Context) (string, error) {
	a.mu.Lock()
	if a.cached != "" && time.Until(a.expiry) > 5*time.Minute {
		token := a.cached
		a.mu.Unlock()
		return token, nil
	}
	a.mu.Unlock()

	jwtToken, err := a.generateJWT()
	if err != nil {
		return "", fmt.Errorf("generate JWT: %w", err)
	}

	url := fmt.Sprintf("%s/app/installations/%d/access_tokens", a.APIBase, a.installationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, http.NoBody)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+jwtToken)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request installation token: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("GitHub API error %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode installation token: %w", err)
	}

	a.mu.Lock()
	a.cached = result.Token
	a.expiry = result.ExpiresAt
	a.mu.Unlock()
	return result.Token, nil
}
