package database

import (
	"context"
	"errors"

	"coffeetime/internal/models"
)

var (
	// ErrNotFound is returned when a write references an id the store does not hold.
	ErrNotFound = errors.New("record not found")

	// ErrSchemaMismatch is returned when a durable store was created under a
	// different schema identifier than the one it is opened with.
	ErrSchemaMismatch = errors.New("schema identifier mismatch")
)

// Store defines the interface for all journal storage operations.
// Every write is a single transaction: it either commits fully or not at all.
type Store interface {
	// ListCoffees returns every coffee with its sessions loaded. Order is unspecified.
	ListCoffees(ctx context.Context) ([]*models.Coffee, error)

	// InsertCoffee stores a new coffee together with any sessions already attached to it.
	InsertCoffee(ctx context.Context, coffee *models.Coffee) error
	// UpdateCoffee overwrites the mutable fields of an existing coffee. The id and
	// date added are never changed.
	UpdateCoffee(ctx context.Context, coffee *models.Coffee) error
	// DeleteCoffee removes a coffee and all of its sessions.
	DeleteCoffee(ctx context.Context, coffeeID string) error

	InsertBrewingSession(ctx context.Context, coffeeID string, session *models.BrewingSession) error
	UpdateBrewingSession(ctx context.Context, session *models.BrewingSession) error
	DeleteBrewingSession(ctx context.Context, coffeeID, sessionID string) error

	// Close releases the underlying handle
	Close() error
}
