package credentials

import (
	"encoding/json"
	"slices"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// expiryDelta matches the early-expiry window golang.org/x/oauth2 applies,
// so a credential we call valid is never refreshed by the transport.
const expiryDelta = 10 * time.Second

// State is the condition a stored credential was found in.
type State string

const (
	// StateNoFile means no readable credential is stored.
	StateNoFile State = "no_file"

	// StateValid means the credential is unexpired and covers the required scopes.
	StateValid State = "loaded_valid"

	// StateExpiredRefreshable means the credential expired but carries a refresh token.
	StateExpiredRefreshable State = "loaded_expired_refreshable"

	// StateExpiredUnrefreshable means the credential expired and has no refresh token.
	StateExpiredUnrefreshable State = "loaded_expired_unrefreshable"

	// StateInsufficientScopes means the credential lacks a required scope.
	StateInsufficientScopes State = "loaded_insufficient_scopes"
)

// NeedsAuthorization reports whether the state can only be resolved by
// interactive authorization.
func (s State) NeedsAuthorization() bool {
	switch s {
	case StateValid, StateExpiredRefreshable:
		return false
	default:
		return true
	}
}

// Credential is the persisted OAuth2 token pair together with the scopes it
// was granted for.
type Credential struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
	Scopes       []string  `json:"scopes,omitempty"`
}

// UnmarshalJSON implements json.Unmarshaler. Token files written by the
// Python google-auth library keep the access token under "token"; it is
// read when "access_token" is absent.
func (c *Credential) UnmarshalJSON(data []byte) error {
	type plain Credential
	var doc struct {
		plain
		Token string `json:"token"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	*c = Credential(doc.plain)
	if c.AccessToken == "" {
		c.AccessToken = doc.Token
	}
	return nil
}

// FromToken builds a Credential from a token returned by the token endpoint.
// The granted scopes are taken from the response when the provider reports
// them, otherwise the requested scopes are recorded.
func FromToken(tok *oauth2.Token, requested []string) *Credential {
	c := &Credential{Scopes: slices.Clone(requested)}
	c.apply(tok)
	return c
}

// apply copies a refreshed or freshly issued token into c. The refresh token
// is only replaced when the provider rotated it.
func (c *Credential) apply(tok *oauth2.Token) {
	c.AccessToken = tok.AccessToken
	c.TokenType = tok.TokenType
	c.Expiry = tok.Expiry
	if tok.RefreshToken != "" {
		c.RefreshToken = tok.RefreshToken
	}
	if granted, ok := tok.Extra("scope").(string); ok {
		if fields := strings.Fields(granted); len(fields) > 0 {
			c.Scopes = fields
		}
	}
}

// Token returns the credential as an oauth2.Token.
func (c *Credential) Token() *oauth2.Token {
	tokenType := c.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		TokenType:    tokenType,
		Expiry:       c.Expiry,
	}
}

// Expired reports whether the access token is expired at now. A zero expiry
// never expires, as in golang.org/x/oauth2.
func (c *Credential) Expired(now time.Time) bool {
	if c.AccessToken == "" {
		return true
	}
	if c.Expiry.IsZero() {
		return false
	}
	return c.Expiry.Round(0).Add(-expiryDelta).Before(now)
}

// Refreshable reports whether the credential carries a refresh token.
func (c *Credential) Refreshable() bool {
	return c.RefreshToken != ""
}

// HasScopes reports whether the granted scopes are a superset of required.
func (c *Credential) HasScopes(required []string) bool {
	for _, s := range required {
		if !slices.Contains(c.Scopes, s) {
			return false
		}
	}
	return true
}

// Classify determines the State of a stored credential. A nil credential is
// StateNoFile.
func Classify(c *Credential, required []string, now time.Time) State {
	switch {
	case c == nil:
		return StateNoFile
	case !c.HasScopes(required):
		return StateInsufficientScopes
	case !c.Expired(now):
		return StateValid
	case c.Refreshable():
		return StateExpiredRefreshable
	default:
		return StateExpiredUnrefreshable
	}
}
