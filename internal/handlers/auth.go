package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"coffeetime/internal/atproto"

	"github.com/rs/zerolog/log"
)

const (
	cookieMaxAge = 86400 * 30 // 30 days

	initialSyncTimeout = 30 * time.Second
)

func (h *Handler) setSessionCookie(w http.ResponseWriter, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

// HandleLoginSubmit initiates the OAuth flow for the handle in the form or
// query string.
func (h *Handler) HandleLoginSubmit(w http.ResponseWriter, r *http.Request) {
	if h.oauth == nil {
		http.Error(w, "OAuth not configured", http.StatusServiceUnavailable)
		return
	}

	handle := r.FormValue("handle")
	if handle == "" {
		http.Error(w, "Handle is required", http.StatusBadRequest)
		return
	}

	authURL, err := h.oauth.StartLogin(r.Context(), handle)
	if err != nil {
		log.Error().Err(err).Str("handle", handle).Msg("Failed to initiate login")
		http.Error(w, "Failed to initiate login", http.StatusInternalServerError)
		return
	}

	// State and PKCE are handled by the OAuth client
	http.Redirect(w, r, authURL, http.StatusFound)
}

// HandleOAuthCallback completes the OAuth flow and, when the journal runs on
// the remote-sync store, attaches the account to the syncer.
func (h *Handler) HandleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	if h.oauth == nil {
		http.Error(w, "OAuth not configured", http.StatusServiceUnavailable)
		return
	}

	acct, err := h.oauth.CompleteLogin(r.Context(), r.URL.Query())
	if err != nil {
		log.Error().Err(err).Msg("Failed to complete OAuth flow")
		http.Error(w, "Failed to complete login", http.StatusInternalServerError)
		return
	}

	h.setSessionCookie(w, atproto.CookieAccountDID, acct.DID.String(), cookieMaxAge)
	h.setSessionCookie(w, atproto.CookieSessionID, acct.SessionID, cookieMaxAge)

	log.Info().
		Str("user_did", acct.DID.String()).
		Str("session_id", acct.SessionID).
		Msg("User logged in successfully")

	if h.syncer != nil {
		client, err := h.oauth.Client(r.Context(), acct)
		if err != nil {
			log.Error().Err(err).Str("user_did", acct.DID.String()).Msg("Failed to attach account for sync")
		} else {
			h.syncer.Attach(client)
			go h.initialSync()
		}
	}

	http.Redirect(w, r, "/", http.StatusFound)
}

// initialSync pulls the account's records right after login instead of
// waiting for the next tick.
func (h *Handler) initialSync() {
	ctx, cancel := context.WithTimeout(context.Background(), initialSyncTimeout)
	defer cancel()
	if err := h.syncer.SyncOnce(ctx); err != nil {
		log.Warn().Err(err).Msg("Initial sync failed, will retry on schedule")
	}
}

// HandleLogout ends the session and stops syncing. Queued changes stay in the
// replica until the next login.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if h.oauth == nil {
		http.Error(w, "OAuth not configured", http.StatusServiceUnavailable)
		return
	}

	if acct, ok := atproto.AccountFromCookies(r); ok {
		if err := h.oauth.Logout(r.Context(), acct); err != nil {
			log.Warn().Err(err).Str("user_did", acct.DID.String()).Msg("Failed to delete session during logout")
		}
	}

	if h.syncer != nil {
		h.syncer.Detach()
	}

	h.setSessionCookie(w, atproto.CookieAccountDID, "", -1)
	h.setSessionCookie(w, atproto.CookieSessionID, "", -1)

	http.Redirect(w, r, "/", http.StatusFound)
}

// HandleClientMetadata serves the OAuth client metadata
func (h *Handler) HandleClientMetadata(w http.ResponseWriter, r *http.Request) {
	if h.oauth == nil {
		http.Error(w, "OAuth not configured", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.oauth.ClientMetadata()); err != nil {
		log.Error().Err(err).Msg("Failed to encode client metadata")
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// ========== Sync ==========

type syncStatusResponse struct {
	Enabled bool `json:"enabled"`
	atproto.Status
}

// HandleSyncStatus reports the last sync pass
func (h *Handler) HandleSyncStatus(w http.ResponseWriter, r *http.Request) {
	if h.syncer == nil {
		writeJSON(w, http.StatusOK, syncStatusResponse{})
		return
	}
	writeJSON(w, http.StatusOK, syncStatusResponse{Enabled: true, Status: h.syncer.Status()})
}

// HandleSyncTrigger runs a sync pass now
func (h *Handler) HandleSyncTrigger(w http.ResponseWriter, r *http.Request) {
	if h.syncer == nil {
		http.Error(w, "Sync is not enabled", http.StatusConflict)
		return
	}

	err := h.syncer.SyncOnce(r.Context())
	switch {
	case errors.Is(err, atproto.ErrNotAttached):
		http.Error(w, "No account attached, log in first", http.StatusConflict)
	case err != nil:
		http.Error(w, "Sync failed, will retry", http.StatusBadGateway)
	default:
		writeJSON(w, http.StatusOK, syncStatusResponse{Enabled: true, Status: h.syncer.Status()})
	}
}
