package session

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/teslashibe/go-arvoice/internal/httpc"
)

// OAuth scopes requested for Application Default Credentials.
var DefaultScopes = []string{
	"https://www.googleapis.com/auth/cloud-platform",
	"https://www.googleapis.com/auth/generative-language",
}

// Authenticator decorates the handshake request.
type Authenticator interface {
	Authorize(ctx context.Context, u *url.URL, header http.Header) error
}

// APIKey authenticates with a key query parameter.
type APIKey string

// Authorize appends the key parameter.
func (k APIKey) Authorize(_ context.Context, u *url.URL, _ http.Header) error {
	if k == "" {
		return nil
	}
	q := u.Query()
	q.Set("key", string(k))
	u.RawQuery = q.Encode()
	return nil
}

// TokenAuth authenticates with an OAuth2 bearer token.
type TokenAuth struct {
	Source oauth2.TokenSource
}

// Authorize sets the Authorization header from a fresh token.
func (a *TokenAuth) Authorize(_ context.Context, _ *url.URL, header http.Header) error {
	tok, err := a.Source.Token()
	if err != nil {
		return fmt.Errorf("session: fetch token: %w", err)
	}
	header.Set("Authorization", tok.Type()+" "+tok.AccessToken)
	return nil
}

// DefaultCredentials builds a TokenAuth from Application Default Credentials.
// Token refreshes use the shared httpc client.
func DefaultCredentials(ctx context.Context, scopes ...string) (*TokenAuth, error) {
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, httpc.Client)
	ts, err := google.DefaultTokenSource(ctx, scopes...)
	if err != nil {
		return nil, fmt.Errorf("session: default credentials: %w", err)
	}
	return &TokenAuth{Source: ts}, nil
}

// StaticToken returns a TokenAuth for a fixed access token.
func StaticToken(token string) *TokenAuth {
	return &TokenAuth{Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})}
}
