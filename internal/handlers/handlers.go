package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"coffeetime/internal/atproto"
	"coffeetime/internal/backup"
	"coffeetime/internal/journal"
	"coffeetime/internal/models"
	"coffeetime/internal/settings"
	"coffeetime/internal/storage"

	"github.com/rs/zerolog/log"
)

// Config holds handler configuration options
type Config struct {
	// SecureCookies sets the Secure flag on authentication cookies
	// Should be true in production (HTTPS), false for local development (HTTP)
	SecureCookies bool
}

type Handler struct {
	journal  *journal.Manager
	oauth    *atproto.OAuthManager
	syncer   *atproto.Syncer
	backups  *backup.Service
	settings *settings.Settings
	storage  *storage.Handle
	config   Config
}

func NewHandler(manager *journal.Manager) *Handler {
	return &Handler{journal: manager}
}

// SetConfig sets the handler configuration
func (h *Handler) SetConfig(config Config) {
	h.config = config
}

// SetOAuthManager sets the OAuth manager for authentication
func (h *Handler) SetOAuthManager(oauth *atproto.OAuthManager) {
	h.oauth = oauth
}

// SetSyncer sets the remote sync facility. It is nil unless the journal runs
// on the remote-sync store.
func (h *Handler) SetSyncer(syncer *atproto.Syncer) {
	h.syncer = syncer
}

// SetBackupService sets the backup service
func (h *Handler) SetBackupService(svc *backup.Service) {
	h.backups = svc
}

// SetSettings sets the preferences store
func (h *Handler) SetSettings(s *settings.Settings) {
	h.settings = s
}

// SetStorage records which backend the journal was opened on
func (h *Handler) SetStorage(handle *storage.Handle) {
	h.storage = handle
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// decodeBody decodes a JSON request body, reporting a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return false
		}
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// commitFailed reports a write the store refused. The journal is unchanged
// and the client may retry.
func commitFailed(w http.ResponseWriter, err error) {
	log.Error().Err(err).Msg("Journal write failed")
	http.Error(w, "Failed to save changes, please retry", http.StatusInternalServerError)
}

// ========== Coffees ==========

// HandleCoffeeList returns every coffee, most recently added first
func (h *Handler) HandleCoffeeList(w http.ResponseWriter, r *http.Request) {
	coffees := h.journal.Coffees()
	out := make([]coffeeResponse, 0, len(coffees))
	for _, c := range coffees {
		out = append(out, newCoffeeResponse(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) HandleCoffeeGet(w http.ResponseWriter, r *http.Request) {
	coffee, ok := h.journal.Coffee(r.PathValue("id"))
	if !ok {
		http.Error(w, "Coffee not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, newCoffeeResponse(coffee))
}

func (h *Handler) HandleCoffeeCreate(w http.ResponseWriter, r *http.Request) {
	var req coffeeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == nil {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	coffee := models.NewCoffee("")
	if err := req.apply(coffee); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.journal.AddCoffee(r.Context(), coffee); err != nil {
		commitFailed(w, err)
		return
	}

	created, ok := h.journal.Coffee(coffee.ID)
	if !ok {
		created = coffee
	}
	writeJSON(w, http.StatusCreated, newCoffeeResponse(created))
}

func (h *Handler) HandleCoffeeUpdate(w http.ResponseWriter, r *http.Request) {
	coffee, ok := h.journal.Coffee(r.PathValue("id"))
	if !ok {
		http.Error(w, "Coffee not found", http.StatusNotFound)
		return
	}

	var req coffeeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := req.apply(coffee); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.journal.UpdateCoffee(r.Context(), coffee); err != nil {
		commitFailed(w, err)
		return
	}

	updated, ok := h.journal.Coffee(coffee.ID)
	if !ok {
		// Deleted concurrently.
		http.Error(w, "Coffee not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, newCoffeeResponse(updated))
}

func (h *Handler) HandleCoffeeDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.journal.DeleteCoffee(r.Context(), r.PathValue("id")); err != nil {
		commitFailed(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ========== Brewing sessions ==========

// HandleSessionList returns a coffee's sessions, most recent first
func (h *Handler) HandleSessionList(w http.ResponseWriter, r *http.Request) {
	coffeeID := r.PathValue("id")
	if _, ok := h.journal.Coffee(coffeeID); !ok {
		http.Error(w, "Coffee not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, h.journal.Sessions(coffeeID))
}

func (h *Handler) HandleSessionCreate(w http.ResponseWriter, r *http.Request) {
	coffeeID := r.PathValue("id")
	if _, ok := h.journal.Coffee(coffeeID); !ok {
		http.Error(w, "Coffee not found", http.StatusNotFound)
		return
	}

	var req sessionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	session := models.NewBrewingSession()
	if err := req.apply(session); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.journal.AddBrewingSession(r.Context(), session, coffeeID); err != nil {
		commitFailed(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.storedSession(coffeeID, session))
}

func (h *Handler) HandleSessionUpdate(w http.ResponseWriter, r *http.Request) {
	coffee, ok := h.journal.Coffee(r.PathValue("id"))
	if !ok {
		http.Error(w, "Coffee not found", http.StatusNotFound)
		return
	}
	session, ok := coffee.Session(r.PathValue("sid"))
	if !ok {
		http.Error(w, "Brewing session not found", http.StatusNotFound)
		return
	}

	var req sessionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := req.apply(session); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.journal.UpdateBrewingSession(r.Context(), session); err != nil {
		commitFailed(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.storedSession(coffee.ID, session))
}

// storedSession returns the cached copy of a session just written, falling
// back to the submitted value.
func (h *Handler) storedSession(coffeeID string, fallback *models.BrewingSession) *models.BrewingSession {
	if coffee, ok := h.journal.Coffee(coffeeID); ok {
		if s, ok := coffee.Session(fallback.ID); ok {
			return s
		}
	}
	return fallback
}

func (h *Handler) HandleSessionDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.journal.DeleteBrewingSession(r.Context(), r.PathValue("sid"), r.PathValue("id")); err != nil {
		commitFailed(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ========== Misc ==========

// HandleStorageInfo reports which backend the journal was opened on
func (h *Handler) HandleStorageInfo(w http.ResponseWriter, r *http.Request) {
	if h.storage == nil {
		http.Error(w, "Storage info unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"kind":     h.storage.Kind,
		"location": h.storage.Location,
		"durable":  h.storage.Durable(),
	})
}

// HandleNotFound is the catch-all for unmatched routes
func (h *Handler) HandleNotFound(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "Not found", http.StatusNotFound)
}
