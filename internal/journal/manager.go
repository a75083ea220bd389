// Package journal mediates every read and write between the API and the
// opened store. It owns the cached, recency-ordered view of the journal.
package journal

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"coffeetime/internal/database"
	"coffeetime/internal/legacy"
	"coffeetime/internal/metrics"
	"coffeetime/internal/models"

	"github.com/rs/zerolog"
)

// ErrMissingID is returned when a new record arrives without an id.
var ErrMissingID = errors.New("record id is required")

// Operation names used in logs and metrics.
const (
	opAddCoffee     = "add_coffee"
	opUpdateCoffee  = "update_coffee"
	opDeleteCoffee  = "delete_coffee"
	opAddSession    = "add_brewing_session"
	opUpdateSession = "update_brewing_session"
	opDeleteSession = "delete_brewing_session"
	opImportLegacy  = "import_legacy_entry"
	opRestoreCoffee = "restore_coffee"
	opReload        = "reload"
)

// snapshot is immutable once published. Writers build a new one and swap it in.
type snapshot struct {
	coffees []*models.Coffee
	byID    map[string]*models.Coffee
}

func newSnapshot(coffees []*models.Coffee) *snapshot {
	sorted := make([]*models.Coffee, len(coffees))
	copy(sorted, coffees)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !a.DateAdded.Equal(b.DateAdded) {
			return a.DateAdded.After(b.DateAdded)
		}
		return a.ID < b.ID
	})

	byID := make(map[string]*models.Coffee, len(sorted))
	for _, c := range sorted {
		byID[c.ID] = c
	}
	return &snapshot{coffees: sorted, byID: byID}
}

// Manager is the single gateway to the journal store. Each write commits one
// store transaction and then reloads the cache, so the cache reflects the
// committed state by the time the call returns.
type Manager struct {
	store  database.Store
	logger zerolog.Logger

	// writeMu serializes mutate-then-reload sequences.
	writeMu sync.Mutex

	mu   sync.RWMutex
	snap *snapshot
}

// NewManager wraps an opened store and performs the initial load.
func NewManager(ctx context.Context, store database.Store, logger zerolog.Logger) *Manager {
	m := &Manager{
		store:  store,
		logger: logger.With().Str("component", "journal").Logger(),
		snap:   newSnapshot(nil),
	}
	m.Reload(ctx)
	return m
}

// Store returns the underlying store.
func (m *Manager) Store() database.Store {
	return m.store
}

// ========== Queries ==========

// Coffees returns the cached coffees, most recently added first. The returned
// values are copies.
func (m *Manager) Coffees() []*models.Coffee {
	snap := m.current()
	out := make([]*models.Coffee, len(snap.coffees))
	for i, c := range snap.coffees {
		out[i] = c.Clone()
	}
	return out
}

// Coffee returns a copy of the cached coffee with the given id.
func (m *Manager) Coffee(id string) (*models.Coffee, bool) {
	c, ok := m.current().byID[id]
	if !ok {
		return nil, false
	}
	return c.Clone(), true
}

// Sessions returns a coffee's sessions ordered by date, most recent first.
func (m *Manager) Sessions(coffeeID string) []*models.BrewingSession {
	c, ok := m.current().byID[coffeeID]
	if !ok {
		return nil
	}
	sessions := c.SortedSessions()
	for i, s := range sessions {
		sessions[i] = s.Clone()
	}
	return sessions
}

// AverageRating is computed from the coffee's current sessions. Unknown coffees
// report 0.
func (m *Manager) AverageRating(coffeeID string) float64 {
	c, ok := m.current().byID[coffeeID]
	if !ok {
		return 0
	}
	return c.AverageRating()
}

func (m *Manager) current() *snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap
}

// ========== Coffee Operations ==========

// AddCoffee inserts a coffee, and any sessions already attached to it.
func (m *Manager) AddCoffee(ctx context.Context, coffee *models.Coffee) error {
	if coffee.ID == "" {
		return m.finish(opAddCoffee, ErrMissingID)
	}
	c := coffee.Clone()
	c.Normalize()
	for _, s := range c.BrewingSessions {
		if s.ID == "" {
			return m.finish(opAddCoffee, ErrMissingID)
		}
		s.CoffeeID = c.ID
	}

	return m.write(ctx, opAddCoffee, func() error {
		return m.store.InsertCoffee(ctx, c)
	})
}

// UpdateCoffee overwrites the stored fields of the coffee with the same id.
// The id and date added are kept. A coffee that no longer exists is ignored.
func (m *Manager) UpdateCoffee(ctx context.Context, coffee *models.Coffee) error {
	c := coffee.Clone()
	c.Normalize()
	return m.write(ctx, opUpdateCoffee, func() error {
		return m.store.UpdateCoffee(ctx, c)
	})
}

// DeleteCoffee removes a coffee and every session it owns.
func (m *Manager) DeleteCoffee(ctx context.Context, coffeeID string) error {
	return m.write(ctx, opDeleteCoffee, func() error {
		return m.store.DeleteCoffee(ctx, coffeeID)
	})
}

// ========== Brewing Session Operations ==========

// AddBrewingSession links a new session to a coffee and stores it.
func (m *Manager) AddBrewingSession(ctx context.Context, session *models.BrewingSession, coffeeID string) error {
	if session.ID == "" {
		return m.finish(opAddSession, ErrMissingID)
	}
	s := session.Clone()
	s.Normalize()
	s.CoffeeID = coffeeID
	return m.write(ctx, opAddSession, func() error {
		return m.store.InsertBrewingSession(ctx, coffeeID, s)
	})
}

// UpdateBrewingSession overwrites the stored fields of the session with the same id.
func (m *Manager) UpdateBrewingSession(ctx context.Context, session *models.BrewingSession) error {
	s := session.Clone()
	s.Normalize()
	return m.write(ctx, opUpdateSession, func() error {
		return m.store.UpdateBrewingSession(ctx, s)
	})
}

// DeleteBrewingSession removes a session from its owning coffee.
func (m *Manager) DeleteBrewingSession(ctx context.Context, sessionID, coffeeID string) error {
	return m.write(ctx, opDeleteSession, func() error {
		return m.store.DeleteBrewingSession(ctx, coffeeID, sessionID)
	})
}

// ========== Legacy Import ==========

// ImportLegacyEntry converts a legacy entry into a coffee with one session and
// adds it. The created coffee is returned.
func (m *Manager) ImportLegacyEntry(ctx context.Context, entry models.CoffeeEntry) (*models.Coffee, error) {
	coffee, _ := legacy.Convert(entry)
	coffee.Normalize()

	err := m.write(ctx, opImportLegacy, func() error {
		return m.store.InsertCoffee(ctx, coffee)
	})
	if err != nil {
		return nil, err
	}
	return coffee.Clone(), nil
}

// ImportLegacyEntries imports entries in order and stops at the first commit
// failure. It returns how many were imported.
func (m *Manager) ImportLegacyEntries(ctx context.Context, entries []models.CoffeeEntry) (int, error) {
	for i, entry := range entries {
		if _, err := m.ImportLegacyEntry(ctx, entry); err != nil {
			return i, fmt.Errorf("failed to import entry %d: %w", i, err)
		}
	}
	return len(entries), nil
}

// ========== Restore ==========

// RestoreCoffee stores coffee with its id and sessions unchanged. A coffee
// already in the journal under the same id is replaced.
func (m *Manager) RestoreCoffee(ctx context.Context, coffee *models.Coffee) error {
	if coffee.ID == "" {
		return m.finish(opRestoreCoffee, ErrMissingID)
	}
	c := coffee.Clone()
	c.Normalize()
	for _, s := range c.BrewingSessions {
		if s.ID == "" {
			return m.finish(opRestoreCoffee, ErrMissingID)
		}
		s.CoffeeID = c.ID
	}

	return m.write(ctx, opRestoreCoffee, func() error {
		if err := m.store.DeleteCoffee(ctx, c.ID); err != nil && !errors.Is(err, database.ErrNotFound) {
			return err
		}
		return m.store.InsertCoffee(ctx, c)
	})
}

// RestoreCoffees restores coffees in order and stops at the first failure.
// It returns how many were restored.
func (m *Manager) RestoreCoffees(ctx context.Context, coffees []*models.Coffee) (int, error) {
	for i, coffee := range coffees {
		if err := m.RestoreCoffee(ctx, coffee); err != nil {
			return i, fmt.Errorf("failed to restore coffee %d: %w", i, err)
		}
	}
	return len(coffees), nil
}

// ========== Cache ==========

// Reload replaces the cache with the store's current contents. On failure the
// error is logged and the previous cache is kept.
func (m *Manager) Reload(ctx context.Context) {
	coffees, err := m.store.ListCoffees(ctx)
	if err != nil {
		m.logger.Error().Err(err).Msg("Failed to reload journal, keeping previous cache")
		metrics.JournalOperations.WithLabelValues(opReload, metrics.StatusError).Inc()
		return
	}

	snap := newSnapshot(coffees)
	m.mu.Lock()
	m.snap = snap
	m.mu.Unlock()

	metrics.JournalOperations.WithLabelValues(opReload, metrics.StatusOK).Inc()
	metrics.JournalCoffees.Set(float64(len(snap.coffees)))
}

// StoreChanged is called when something other than the manager wrote to the
// store, such as the remote sync facility.
func (m *Manager) StoreChanged(ctx context.Context) {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	m.logger.Debug().Msg("Store changed externally, reloading")
	m.Reload(ctx)
}

// write commits fn and reloads the cache on success.
func (m *Manager) write(ctx context.Context, op string, fn func() error) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	if err := fn(); err != nil {
		return m.finish(op, err)
	}
	m.Reload(ctx)
	return m.finish(op, nil)
}

// finish logs and counts the outcome. A lookup miss is a silent no-op.
func (m *Manager) finish(op string, err error) error {
	switch {
	case err == nil:
		metrics.JournalOperations.WithLabelValues(op, metrics.StatusOK).Inc()
		return nil
	case errors.Is(err, database.ErrNotFound):
		m.logger.Debug().Str("operation", op).Err(err).Msg("Referenced record not found, ignoring")
		metrics.JournalOperations.WithLabelValues(op, metrics.StatusNoop).Inc()
		return nil
	default:
		m.logger.Error().Str("operation", op).Err(err).Msg("Failed to commit journal change")
		metrics.JournalOperations.WithLabelValues(op, metrics.StatusError).Inc()
		return fmt.Errorf("failed to %s: %w", op, err)
	}
}
