package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// User is the account record returned by the external auth service.
type User struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	ClinicID     int64  `json:"clinicId"`
	Active       bool   `json:"active"`
	Superuser    bool   `json:"superuser"`
	ClinicMaster bool   `json:"clinicMaster"`
}

// TokenValidator is the subset of the external auth API the realtime hubs
// need for their connection handshake.
type TokenValidator interface {
	CheckToken(ctx context.Context, token string) error
	UserByToken(ctx context.Context, token string) (*User, error)
}

// Client calls the external auth service. Every request carries the service
// API key; the user token travels as a bearer header.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, path, token string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("auth service returned status %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode auth response: %w", err)
		}
	}
	return nil
}

// CheckToken asks the auth service whether the token is valid.
func (c *Client) CheckToken(ctx context.Context, token string) error {
	return c.do(ctx, "/check-token", token, nil)
}

// UserByToken resolves the token to its user record.
func (c *Client) UserByToken(ctx context.Context, token string) (*User, error) {
	var u User
	if err := c.do(ctx, "/user-by-token", token, &u); err != nil {
		return nil, err
	}
	return &u, nil
}
