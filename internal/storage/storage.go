// Package storage picks the journal's backing store at startup. It walks an
// ordered list of configurations and keeps the first one that opens.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"coffeetime/internal/atproto"
	"coffeetime/internal/database"
	"coffeetime/internal/database/sqlite"
	"coffeetime/internal/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Schema identifiers. The remote replica and the local store never share a
// file, so toggling sync cannot clobber local-only data.
const (
	RemoteSchemaID = "CoffeeTimeModelV2"
	LocalSchemaID  = "CoffeeTimeLocalV2"
	FreshSchemaID  = "CoffeeTimeLocalFreshV2"
	MemorySchemaID = "CoffeeTimeMemory"

	freshPrefix = "CoffeeTimeLocalFresh-"
	fileExt     = ".sqlite"
	defaultApp  = "coffeetime"
)

var (
	// ErrSyncDisabled is returned by the remote step when sync is not configured.
	ErrSyncDisabled = errors.New("remote sync is not configured")

	// ErrUnrecoverable means not even the in-memory store could be opened.
	ErrUnrecoverable = errors.New("no storage backend could be opened")
)

// Kind names the configuration a handle was opened with.
type Kind string

const (
	KindRemoteSync Kind = "remote-sync"
	KindLocal      Kind = "local"
	KindFreshLocal Kind = "fresh-local"
	KindMemory     Kind = "memory"
)

// Preferences controls backend selection.
type Preferences struct {
	// InMemory skips every durable option.
	InMemory bool
	// DataDir holds the durable stores.
	DataDir string
	// AppID names the private directory fresh stores are created under.
	AppID string
	// SyncEnabled allows the remote-sync replica to be opened.
	SyncEnabled bool
	// FreshLocation reopens a previously created fresh store instead of
	// generating a new one.
	FreshLocation string
}

// Handle is the opened store together with how it was obtained.
type Handle struct {
	Kind     Kind
	Location string
	Store    database.Store
	// Syncer is set only for KindRemoteSync.
	Syncer *atproto.Syncer
}

// Close releases the store.
func (h *Handle) Close() error {
	return h.Store.Close()
}

// Durable reports whether the store survives a restart.
func (h *Handle) Durable() bool {
	return h.Kind != KindMemory
}

// Step is one configuration to try.
type Step struct {
	Name string
	Kind Kind
	Open func(ctx context.Context) (*Handle, error)
}

// Open runs the selection once at startup. It only fails with an error
// wrapping ErrUnrecoverable.
func Open(ctx context.Context, prefs Preferences, logger zerolog.Logger) (*Handle, error) {
	if prefs.InMemory {
		return Select(ctx, []Step{memoryStep()}, logger)
	}
	return Select(ctx, Steps(prefs, logger), logger)
}

// Steps returns the fallback order for prefs: remote-sync replica, versioned
// local store, fresh local store, in-memory store.
func Steps(prefs Preferences, logger zerolog.Logger) []Step {
	return []Step{
		{
			Name: "remote-sync",
			Kind: KindRemoteSync,
			Open: func(ctx context.Context) (*Handle, error) {
				if !prefs.SyncEnabled {
					return nil, ErrSyncDisabled
				}
				path := filepath.Join(prefs.DataDir, RemoteSchemaID+fileExt)
				store, err := openDurable(path, RemoteSchemaID, sqlite.WithChangeLog())
				if err != nil {
					return nil, err
				}
				return &Handle{
					Kind:     KindRemoteSync,
					Location: path,
					Store:    store,
					Syncer:   atproto.NewSyncer(store, logger),
				}, nil
			},
		},
		{
			Name: "versioned-local",
			Kind: KindLocal,
			Open: func(ctx context.Context) (*Handle, error) {
				path := filepath.Join(prefs.DataDir, LocalSchemaID+fileExt)
				store, err := openDurable(path, LocalSchemaID)
				if err != nil {
					return nil, err
				}
				return &Handle{Kind: KindLocal, Location: path, Store: store}, nil
			},
		},
		{
			Name: "fresh-local",
			Kind: KindFreshLocal,
			Open: func(ctx context.Context) (*Handle, error) {
				path := prefs.FreshLocation
				if path == "" {
					path = FreshLocation(prefs.DataDir, prefs.AppID)
				}
				store, err := openDurable(path, FreshSchemaID)
				if err != nil {
					return nil, err
				}
				return &Handle{Kind: KindFreshLocal, Location: path, Store: store}, nil
			},
		},
		memoryStep(),
	}
}

// FreshLocation generates a collision-free path for a new local store.
func FreshLocation(dataDir, appID string) string {
	if appID == "" {
		appID = defaultApp
	}
	return filepath.Join(dataDir, appID, freshPrefix+uuid.NewString()+fileExt)
}

func memoryStep() Step {
	return Step{
		Name: "in-memory",
		Kind: KindMemory,
		Open: func(ctx context.Context) (*Handle, error) {
			store, err := sqlite.NewSQLiteStore(sqlite.MemoryPath, MemorySchemaID)
			if err != nil {
				return nil, err
			}
			return &Handle{Kind: KindMemory, Location: sqlite.MemoryPath, Store: store}, nil
		},
	}
}

func openDurable(path, schemaID string, opts ...sqlite.Option) (*sqlite.SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return sqlite.NewSQLiteStore(path, schemaID, opts...)
}

// Select tries steps in order and returns the first handle that opens. Step
// failures are logged and swallowed. If every step fails the error wraps
// ErrUnrecoverable.
func Select(ctx context.Context, steps []Step, logger zerolog.Logger) (*Handle, error) {
	var lastErr error
	for _, step := range steps {
		handle, err := step.Open(ctx)
		if err != nil {
			logger.Warn().Err(err).Str("step", step.Name).Msg("Storage backend unavailable, falling back")
			metrics.StorageAttempts.WithLabelValues(step.Name, metrics.StatusFailed).Inc()
			lastErr = err
			continue
		}

		metrics.StorageAttempts.WithLabelValues(step.Name, metrics.StatusOK).Inc()
		metrics.StorageBackend.WithLabelValues(string(handle.Kind)).Set(1)
		logger.Info().
			Str("step", step.Name).
			Str("kind", string(handle.Kind)).
			Str("location", handle.Location).
			Msg("Storage backend opened")
		return handle, nil
	}

	if lastErr == nil {
		return nil, ErrUnrecoverable
	}
	return nil, fmt.Errorf("%w: %w", ErrUnrecoverable, lastErr)
}
