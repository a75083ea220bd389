package atproto

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/bluesky-social/indigo/atproto/syntax"
)

// Cookies naming the signed-in account.
const (
	CookieAccountDID = "account_did"
	CookieSessionID  = "session_id"
)

// Account is the signed-in identity whose repository the journal syncs with.
type Account struct {
	DID       syntax.DID
	SessionID string
}

// AccountFromCookies reads the account cookies of r. It does not check that
// the session is still live.
func AccountFromCookies(r *http.Request) (Account, bool) {
	didCookie, err := r.Cookie(CookieAccountDID)
	if err != nil {
		return Account{}, false
	}
	sessionCookie, err := r.Cookie(CookieSessionID)
	if err != nil || sessionCookie.Value == "" {
		return Account{}, false
	}
	did, err := syntax.ParseDID(didCookie.Value)
	if err != nil {
		return Account{}, false
	}
	return Account{DID: did, SessionID: sessionCookie.Value}, true
}

type accountKey struct{}

// WithAccount returns ctx carrying acct.
func WithAccount(ctx context.Context, acct Account) context.Context {
	return context.WithValue(ctx, accountKey{}, acct)
}

// AccountFromContext returns the account stored by the auth middleware.
func AccountFromContext(ctx context.Context) (Account, bool) {
	acct, ok := ctx.Value(accountKey{}).(Account)
	return acct, ok && acct.DID != ""
}

// RequireAuth rejects requests without a signed-in account.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := AccountFromContext(r.Context()); !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "sign in to sync"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
