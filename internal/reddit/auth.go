package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/FranksOps/dugout/internal/search"
)

type tokenResponse struct {
	AccessToken string  `json:"access_token"`
	TokenType   string  `json:"token_type"`
	ExpiresIn   float64 `json:"expires_in"`
	Error       string  `json:"error"`
}

// accessToken returns a cached application token, fetching a new one when
// none is held or it is about to expire.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.expires) {
		return c.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.AuthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, body, err := c.send(ctx, "token", req)
	if err != nil {
		return "", err
	}
	if err := classify(resp, body); err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	// the endpoint answers bad credentials with 200 and an error field
	if tr.AccessToken == "" {
		return "", fmt.Errorf("%w: token endpoint returned %q", search.ErrUnauthorized, tr.Error)
	}

	ttl := time.Duration(tr.ExpiresIn * float64(time.Second))
	if ttl > 2*tokenSlack {
		ttl -= tokenSlack
	}
	c.token = tr.AccessToken
	c.expires = time.Now().Add(ttl)
	c.logger.Debug("obtained access token", "expires_in", ttl.String())
	return c.token, nil
}

// invalidate drops token if it is still the cached one.
func (c *Client) invalidate(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == token {
		c.token = ""
		c.expires = time.Time{}
	}
}
