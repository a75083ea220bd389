package handlers

import (
	"errors"
	"io"
	"net/http"

	"coffeetime/internal/backup"
	"coffeetime/internal/legacy"
	"coffeetime/internal/models"

	"github.com/rs/zerolog/log"
)

// HandleLegacyImport imports a journal exported by early app versions. The
// body is a JSON array of entries or a single entry.
func (h *Handler) HandleLegacyImport(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	entries, err := legacy.Decode(data)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	n, err := h.journal.ImportLegacyEntries(r.Context(), entries)
	if err != nil {
		log.Error().Err(err).Int("imported", n).Int("total", len(entries)).Msg("Legacy import stopped early")
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"imported": n,
			"error":    "Failed to save changes, please retry",
		})
		return
	}

	log.Info().Int("imported", n).Msg("Legacy entries imported")
	writeJSON(w, http.StatusOK, map[string]int{"imported": n})
}

// HandleLegacyExport writes the journal in the legacy interchange format
func (h *Handler) HandleLegacyExport(w http.ResponseWriter, r *http.Request) {
	data, err := legacy.Encode(legacy.Export(h.journal.Coffees()))
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode export")
		http.Error(w, "Failed to export journal", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", "attachment; filename=coffeetime-journal.json")
	w.Write(data)
}

// ========== Backups ==========

func (h *Handler) HandleBackupList(w http.ResponseWriter, r *http.Request) {
	if h.backups == nil {
		http.Error(w, "Backups not configured", http.StatusServiceUnavailable)
		return
	}
	objects, err := h.backups.List(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list backups")
		http.Error(w, "Failed to list backups", http.StatusBadGateway)
		return
	}
	if objects == nil {
		objects = []backup.Object{}
	}
	writeJSON(w, http.StatusOK, objects)
}

func (h *Handler) HandleBackupCreate(w http.ResponseWriter, r *http.Request) {
	if h.backups == nil {
		http.Error(w, "Backups not configured", http.StatusServiceUnavailable)
		return
	}
	obj, err := h.backups.Create(r.Context())
	if err != nil {
		http.Error(w, "Failed to create backup", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusCreated, obj)
}

func (h *Handler) HandleBackupRestore(w http.ResponseWriter, r *http.Request) {
	if h.backups == nil {
		http.Error(w, "Backups not configured", http.StatusServiceUnavailable)
		return
	}

	var req struct {
		Key string `json:"key"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Key == "" {
		http.Error(w, "key is required", http.StatusBadRequest)
		return
	}

	n, err := h.backups.Restore(r.Context(), req.Key)
	switch {
	case errors.Is(err, backup.ErrObjectNotFound):
		http.Error(w, "Backup not found", http.StatusNotFound)
	case errors.Is(err, backup.ErrUnsupportedBackup):
		http.Error(w, "Unsupported backup document", http.StatusUnprocessableEntity)
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"restored": n,
			"error":    "Failed to restore backup",
		})
	default:
		writeJSON(w, http.StatusOK, map[string]int{"restored": n})
	}
}

// ========== Preferences ==========

type preferencesResponse struct {
	Appearance models.Appearance `json:"appearance"`
}

func (h *Handler) HandlePreferencesGet(w http.ResponseWriter, r *http.Request) {
	if h.settings == nil {
		writeJSON(w, http.StatusOK, preferencesResponse{Appearance: models.AppearanceSystem})
		return
	}
	writeJSON(w, http.StatusOK, preferencesResponse{Appearance: h.settings.Appearance()})
}

func (h *Handler) HandlePreferencesUpdate(w http.ResponseWriter, r *http.Request) {
	if h.settings == nil {
		http.Error(w, "Preferences not configured", http.StatusServiceUnavailable)
		return
	}

	var req struct {
		Appearance string `json:"appearance"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	appearance, ok := models.ParseAppearance(req.Appearance)
	if !ok {
		http.Error(w, "appearance must be one of system, light, dark", http.StatusBadRequest)
		return
	}

	if err := h.settings.SetAppearance(appearance); err != nil {
		log.Error().Err(err).Msg("Failed to save preferences")
		http.Error(w, "Failed to save preferences", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, preferencesResponse{Appearance: appearance})
}
