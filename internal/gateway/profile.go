package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// profileResponse is the profile endpoint's reply body.
type profileResponse struct {
	IdentityID  string `json:"identity_id"`
	DisplayName string `json:"display_name"`
}

// FetchDisplayName resolves an identity's display name through the
// gateway's profile endpoint. Used by the name resolver when a presence
// event arrives without one.
func (c *Client) FetchDisplayName(ctx context.Context, identityID string) (string, error) {
	if c.config.ProfileURL == "" {
		return "", fmt.Errorf("no profile URL configured")
	}

	url := c.config.ProfileURL + "/identities/" + identityID
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	if c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("profile lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("profile lookup: unexpected status %d", resp.StatusCode)
	}

	var profile profileResponse
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return "", fmt.Errorf("profile lookup: decode: %w", err)
	}
	if profile.DisplayName == "" {
		return "", fmt.Errorf("profile lookup: empty display name for %s", identityID)
	}
	return profile.DisplayName, nil
}
