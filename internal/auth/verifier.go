// Package auth verifies bearer credentials against the identity provider
// and gates every agent request.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/barbarosson/advisory/internal/domain"
)

// Verifier resolves a bearer token to an authenticated principal.
type Verifier interface {
	GetUser(ctx context.Context, token string) (*domain.Principal, error)
}

// Client verifies tokens against the identity provider's user endpoint.
type Client struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
}

// NewClient creates a verifier for the identity provider at baseURL.
func NewClient(baseURL, anonKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		anonKey: anonKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// GetUser resolves token to a principal. Any non-200 answer from the
// provider maps to domain.ErrUnauthorized; transport failures are
// returned as-is so they surface as 500, not 401.
func (c *Client) GetUser(ctx context.Context, token string) (*domain.Principal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("apikey", c.anonKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity provider unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, domain.ErrUnauthorized
	}

	var principal domain.Principal
	if err := json.NewDecoder(resp.Body).Decode(&principal); err != nil {
		return nil, fmt.Errorf("failed to decode user: %w", err)
	}
	if principal.UserID == "" {
		return nil, domain.ErrUnauthorized
	}
	return &principal, nil
}
