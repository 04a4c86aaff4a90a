package api

import (
	"context"
	"errors"
	"fmt"
)

// SessionRefreshPath is the endpoint that exchanges a refresh token for a new pair.
const SessionRefreshPath = "/v2/account/session/refresh"

// ErrEmptyRefreshToken is returned when refreshing without a refresh token.
var ErrEmptyRefreshToken = errors.New("refresh token is empty")

// SessionTokens is the token pair returned by session endpoints.
type SessionTokens struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
	Created      bool   `json:"created,omitempty"`
}

type refreshRequest struct {
	Token string            `json:"token"`
	Vars  map[string]string `json:"vars,omitempty"`
}

// RefreshSession exchanges a refresh token for a new token pair.
// The backend may omit the refresh token when it is still valid; the
// caller's refresh token is carried over in that case.
func (c *Client) RefreshSession(ctx context.Context, refreshToken string, vars map[string]string) (*SessionTokens, error) {
	if refreshToken == "" {
		return nil, ErrEmptyRefreshToken
	}

	var tokens SessionTokens
	if err := c.post(ctx, SessionRefreshPath, refreshRequest{Token: refreshToken, Vars: vars}, &tokens); err != nil {
		return nil, fmt.Errorf("refresh session: %w", err)
	}
	if tokens.Token == "" {
		return nil, errors.New("refresh session: response has no token")
	}
	if tokens.RefreshToken == "" {
		tokens.RefreshToken = refreshToken
	}

	c.logger.Debug("session refreshed")
	return &tokens, nil
}
