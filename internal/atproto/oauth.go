package atproto

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/bluesky-social/indigo/atproto/auth/oauth"
)

// syncScopes grants write access to the coffee collection and nothing else.
var syncScopes = []string{"atproto", "repo:" + NSIDCoffee}

// OAuthConfig identifies this deployment to the account's authorization server.
type OAuthConfig struct {
	// ClientID is the URL the client metadata is published at. Empty, or an
	// http://localhost URL, selects the development client.
	ClientID    string
	RedirectURI string
}

func (c OAuthConfig) development() bool {
	return c.ClientID == "" || strings.HasPrefix(c.ClientID, "http://localhost")
}

// OAuthManager signs accounts in so the journal can sync with their repository.
// Sessions are held in memory; after a restart sync waits for the next sign-in
// and queued changes stay in the replica.
type OAuthManager struct {
	app *oauth.ClientApp
}

// NewOAuthManager builds the sign-in client for cfg.
func NewOAuthManager(cfg OAuthConfig) *OAuthManager {
	var clientCfg oauth.ClientConfig
	if cfg.development() {
		clientCfg = oauth.NewLocalhostConfig(cfg.RedirectURI, syncScopes)
	} else {
		clientCfg = oauth.NewPublicConfig(cfg.ClientID, cfg.RedirectURI, syncScopes)
	}
	return &OAuthManager{app: oauth.NewClientApp(&clientCfg, oauth.NewMemStore())}
}

// StartLogin returns the authorization URL to send the user to for handle.
func (m *OAuthManager) StartLogin(ctx context.Context, handle string) (string, error) {
	redirect, err := m.app.StartAuthFlow(ctx, handle)
	if err != nil {
		return "", fmt.Errorf("failed to start sign-in for %s: %w", handle, err)
	}
	return redirect, nil
}

// CompleteLogin exchanges the callback parameters for a session.
func (m *OAuthManager) CompleteLogin(ctx context.Context, params url.Values) (Account, error) {
	sess, err := m.app.ProcessCallback(ctx, params)
	if err != nil {
		return Account{}, fmt.Errorf("failed to complete sign-in: %w", err)
	}
	return Account{DID: sess.AccountDID, SessionID: sess.SessionID}, nil
}

// Client returns a record client acting as acct. The SDK refreshes tokens.
func (m *OAuthManager) Client(ctx context.Context, acct Account) (*Client, error) {
	sess, err := m.app.ResumeSession(ctx, acct.DID, acct.SessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to resume session for %s: %w", acct.DID, err)
	}
	return NewClient(sess.APIClient(), acct.DID), nil
}

// Logout forgets acct's session.
func (m *OAuthManager) Logout(ctx context.Context, acct Account) error {
	if err := m.app.Store.DeleteSession(ctx, acct.DID, acct.SessionID); err != nil {
		return fmt.Errorf("failed to delete session for %s: %w", acct.DID, err)
	}
	return nil
}

// ClientMetadata is served at the client id URL.
func (m *OAuthManager) ClientMetadata() oauth.ClientMetadata {
	return m.app.Config.ClientMetadata()
}

// AuthMiddleware puts the account on the request context when its cookies
// name a live session. Other requests pass through anonymous.
func (m *OAuthManager) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		acct, ok := AccountFromCookies(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		if _, err := m.app.Store.GetSession(r.Context(), acct.DID, acct.SessionID); err != nil {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithAccount(r.Context(), acct)))
	})
}
