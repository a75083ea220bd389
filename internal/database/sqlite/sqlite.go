package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sort"
	"time"

	"coffeetime/internal/database"
	"coffeetime/internal/models"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// MemoryPath opens a database that lives only as long as the store.
const MemoryPath = ":memory:"

const schemaIDKey = "schema_id"

//go:embed migrations/*.sql
var migrationFS embed.FS

// Change operations recorded in the change log.
const (
	OpPut    = "put"
	OpDelete = "delete"
)

type SQLiteStore struct {
	db        *sql.DB
	path      string
	schemaID  string
	changeLog bool
}

var _ database.Store = (*SQLiteStore)(nil)

// Option configures a SQLiteStore.
type Option func(*SQLiteStore)

// WithChangeLog records every committed write in the pending_changes table,
// inside the same transaction, for a sync facility to pick up.
func WithChangeLog() Option {
	return func(s *SQLiteStore) {
		s.changeLog = true
	}
}

// NewSQLiteStore opens the database at dbPath, runs migrations and checks that
// the file belongs to schemaID. A file created under a different identifier is
// rejected with database.ErrSchemaMismatch.
func NewSQLiteStore(dbPath, schemaID string, opts ...Option) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: the journal has a single writer, and an in-memory
	// database only exists on the connection that created it.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db, path: dbPath, schemaID: schemaID}
	for _, opt := range opts {
		opt(store)
	}

	if err := store.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := store.checkSchemaID(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) runMigrations() error {
	// Create migrations table if it doesn't exist
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	migrations, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("failed to list migrations: %w", err)
	}
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Name() < migrations[j].Name() })

	for i, entry := range migrations {
		version := i + 1
		migrationPath := "migrations/" + entry.Name()

		var count int
		err := s.db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = ?", version).Scan(&count)
		if err != nil {
			return fmt.Errorf("failed to check migration status: %w", err)
		}
		if count > 0 {
			continue
		}

		migration, err := migrationFS.ReadFile(migrationPath)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", migrationPath, err)
		}

		if _, err := s.db.Exec(string(migration)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", migrationPath, err)
		}

		_, err = s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version)
		if err != nil {
			return fmt.Errorf("failed to record migration: %w", err)
		}

		log.Debug().Int("version", version).Str("path", s.path).Str("migration", migrationPath).Msg("Applied migration")
	}

	return nil
}

func (s *SQLiteStore) checkSchemaID() error {
	var existing string
	err := s.db.QueryRow("SELECT value FROM store_meta WHERE key = ?", schemaIDKey).Scan(&existing)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := s.db.Exec("INSERT INTO store_meta (key, value) VALUES (?, ?)", schemaIDKey, s.schemaID); err != nil {
			return fmt.Errorf("failed to record schema identifier: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("failed to read schema identifier: %w", err)
	case existing != s.schemaID:
		return fmt.Errorf("%w: store has %q, want %q", database.ErrSchemaMismatch, existing, s.schemaID)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Path is the location the store was opened from.
func (s *SQLiteStore) Path() string { return s.path }

// SchemaID is the identifier the store was opened under.
func (s *SQLiteStore) SchemaID() string { return s.schemaID }

// withTx runs fn in a transaction and commits it.
func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *SQLiteStore) recordChange(ctx context.Context, tx *sql.Tx, coffeeID, op string) error {
	if !s.changeLog {
		return nil
	}
	_, err := tx.ExecContext(ctx, "INSERT INTO pending_changes (coffee_id, op) VALUES (?, ?)", coffeeID, op)
	if err != nil {
		return fmt.Errorf("failed to record change: %w", err)
	}
	return nil
}

// Helpers for optional columns
func nullFloat(v *float64) any {
	if v = models.NormalizeOptional(v); v == nil {
		return nil
	}
	return *v
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid || v.Float64 <= 0 {
		return nil
	}
	return models.Float(v.Float64)
}

func nullString(v *string) any {
	if v == nil || *v == "" {
		return nil
	}
	return *v
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return models.String(v.String)
}

// ========== Coffee Operations ==========

func (s *SQLiteStore) ListCoffees(ctx context.Context) ([]*models.Coffee, error) {
	return s.loadCoffees(ctx, "", nil)
}

// GetCoffee loads a single coffee with its sessions.
func (s *SQLiteStore) GetCoffee(ctx context.Context, id string) (*models.Coffee, error) {
	coffees, err := s.loadCoffees(ctx, "WHERE id = ?", []any{id})
	if err != nil {
		return nil, err
	}
	if len(coffees) == 0 {
		return nil, fmt.Errorf("failed to get coffee %s: %w", id, database.ErrNotFound)
	}
	return coffees[0], nil
}

// loadCoffees reads coffees, then sessions, then notes. Each result set is fully
// consumed before the next query since the pool holds a single connection.
func (s *SQLiteStore) loadCoffees(ctx context.Context, where string, args []any) ([]*models.Coffee, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, origin, roaster, price, roast_level, description, date_added
		FROM coffees `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list coffees: %w", err)
	}
	defer rows.Close()

	var coffees []*models.Coffee
	byID := make(map[string]*models.Coffee)
	for rows.Next() {
		coffee := &models.Coffee{BrewingSessions: []*models.BrewingSession{}}
		var origin, roaster sql.NullString
		var price sql.NullFloat64
		var roastLevel string

		err := rows.Scan(&coffee.ID, &coffee.Name, &origin, &roaster, &price, &roastLevel, &coffee.Description, &coffee.DateAdded)
		if err != nil {
			return nil, fmt.Errorf("failed to scan coffee: %w", err)
		}

		coffee.Origin = stringPtr(origin)
		coffee.Roaster = stringPtr(roaster)
		coffee.Price = floatPtr(price)
		coffee.RoastLevel = models.RoastMedium
		if level, ok := models.ParseRoastLevel(roastLevel); ok {
			coffee.RoastLevel = level
		}

		coffees = append(coffees, coffee)
		byID[coffee.ID] = coffee
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating coffees: %w", err)
	}
	rows.Close()

	if len(coffees) == 0 {
		return coffees, nil
	}

	sessions, err := s.loadSessions(ctx, byID)
	if err != nil {
		return nil, err
	}
	if err := s.loadTastingNotes(ctx, sessions); err != nil {
		return nil, err
	}

	return coffees, nil
}

func (s *SQLiteStore) loadSessions(ctx context.Context, coffees map[string]*models.Coffee) (map[string]*models.BrewingSession, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, coffee_id, date, rating, grind_level, brew_method, grinder,
			water_temperature, brew_time, coffee_amount, water_amount, session_notes,
			aroma, acidity, body, flavor, aftertaste
		FROM brewing_sessions
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list brewing sessions: %w", err)
	}
	defer rows.Close()

	sessions := make(map[string]*models.BrewingSession)
	for rows.Next() {
		session := &models.BrewingSession{TastingNotes: []string{}}
		var grindLevel, brewMethod string
		var waterTemp, brewTime, coffeeAmount, waterAmount sql.NullFloat64

		err := rows.Scan(&session.ID, &session.CoffeeID, &session.Date, &session.Rating, &grindLevel, &brewMethod, &session.Grinder,
			&waterTemp, &brewTime, &coffeeAmount, &waterAmount, &session.SessionNotes,
			&session.Aroma, &session.Acidity, &session.Body, &session.Flavor, &session.Aftertaste)
		if err != nil {
			return nil, fmt.Errorf("failed to scan brewing session: %w", err)
		}

		coffee, ok := coffees[session.CoffeeID]
		if !ok {
			continue
		}

		session.GrindLevel = models.GrindMedium
		if level, ok := models.ParseGrindLevel(grindLevel); ok {
			session.GrindLevel = level
		}
		session.BrewMethod = models.MethodDrip
		if method, ok := models.ParseBrewMethod(brewMethod); ok {
			session.BrewMethod = method
		}
		session.WaterTemperature = floatPtr(waterTemp)
		session.BrewTime = floatPtr(brewTime)
		session.CoffeeAmount = floatPtr(coffeeAmount)
		session.WaterAmount = floatPtr(waterAmount)

		coffee.BrewingSessions = append(coffee.BrewingSessions, session)
		sessions[session.ID] = session
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating brewing sessions: %w", err)
	}

	return sessions, nil
}

func (s *SQLiteStore) loadTastingNotes(ctx context.Context, sessions map[string]*models.BrewingSession) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, note
		FROM tasting_notes
		ORDER BY session_id, position ASC
	`)
	if err != nil {
		return fmt.Errorf("failed to list tasting notes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sessionID, note string
		if err := rows.Scan(&sessionID, &note); err != nil {
			return fmt.Errorf("failed to scan tasting note: %w", err)
		}
		if session, ok := sessions[sessionID]; ok {
			session.TastingNotes = append(session.TastingNotes, note)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating tasting notes: %w", err)
	}
	return nil
}

func (s *SQLiteStore) InsertCoffee(ctx context.Context, coffee *models.Coffee) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := insertCoffee(ctx, tx, coffee); err != nil {
			return err
		}
		return s.recordChange(ctx, tx, coffee.ID, OpPut)
	})
}

func insertCoffee(ctx context.Context, tx *sql.Tx, coffee *models.Coffee) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO coffees (id, name, origin, roaster, price, roast_level, description, date_added)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, coffee.ID, coffee.Name, nullString(coffee.Origin), nullString(coffee.Roaster), nullFloat(coffee.Price),
		string(coffee.RoastLevel), coffee.Description, coffee.DateAdded.UTC())
	if err != nil {
		return fmt.Errorf("failed to create coffee: %w", err)
	}

	for _, session := range coffee.BrewingSessions {
		if err := insertSession(ctx, tx, coffee.ID, session); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) UpdateCoffee(ctx context.Context, coffee *models.Coffee) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE coffees
			SET name = ?, origin = ?, roaster = ?, price = ?, roast_level = ?, description = ?
			WHERE id = ?
		`, coffee.Name, nullString(coffee.Origin), nullString(coffee.Roaster), nullFloat(coffee.Price),
			string(coffee.RoastLevel), coffee.Description, coffee.ID)
		if err != nil {
			return fmt.Errorf("failed to update coffee: %w", err)
		}
		if err := requireRow(result, "coffee", coffee.ID); err != nil {
			return err
		}
		return s.recordChange(ctx, tx, coffee.ID, OpPut)
	})
}

func (s *SQLiteStore) DeleteCoffee(ctx context.Context, coffeeID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := deleteCoffee(ctx, tx, coffeeID); err != nil {
			return err
		}
		return s.recordChange(ctx, tx, coffeeID, OpDelete)
	})
}

// deleteCoffee removes children before the parent so the cascade does not
// depend on the foreign key pragma.
func deleteCoffee(ctx context.Context, tx *sql.Tx, coffeeID string) error {
	_, err := tx.ExecContext(ctx, `
		DELETE FROM tasting_notes
		WHERE session_id IN (SELECT id FROM brewing_sessions WHERE coffee_id = ?)
	`, coffeeID)
	if err != nil {
		return fmt.Errorf("failed to delete tasting notes: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM brewing_sessions WHERE coffee_id = ?", coffeeID); err != nil {
		return fmt.Errorf("failed to delete brewing sessions: %w", err)
	}

	result, err := tx.ExecContext(ctx, "DELETE FROM coffees WHERE id = ?", coffeeID)
	if err != nil {
		return fmt.Errorf("failed to delete coffee: %w", err)
	}
	return requireRow(result, "coffee", coffeeID)
}

// ========== Brewing Session Operations ==========

func (s *SQLiteStore) InsertBrewingSession(ctx context.Context, coffeeID string, session *models.BrewingSession) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM coffees WHERE id = ?", coffeeID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to look up coffee: %w", err)
		}
		if exists == 0 {
			return fmt.Errorf("coffee %s: %w", coffeeID, database.ErrNotFound)
		}

		if err := insertSession(ctx, tx, coffeeID, session); err != nil {
			return err
		}
		return s.recordChange(ctx, tx, coffeeID, OpPut)
	})
}

func insertSession(ctx context.Context, tx *sql.Tx, coffeeID string, session *models.BrewingSession) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO brewing_sessions (id, coffee_id, date, rating, grind_level, brew_method, grinder,
			water_temperature, brew_time, coffee_amount, water_amount, session_notes,
			aroma, acidity, body, flavor, aftertaste)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, session.ID, coffeeID, session.Date.UTC(), session.Rating, string(session.GrindLevel), string(session.BrewMethod), session.Grinder,
		nullFloat(session.WaterTemperature), nullFloat(session.BrewTime), nullFloat(session.CoffeeAmount), nullFloat(session.WaterAmount),
		session.SessionNotes, session.Aroma, session.Acidity, session.Body, session.Flavor, session.Aftertaste)
	if err != nil {
		return fmt.Errorf("failed to create brewing session: %w", err)
	}

	return insertTastingNotes(ctx, tx, session.ID, session.TastingNotes)
}

func (s *SQLiteStore) UpdateBrewingSession(ctx context.Context, session *models.BrewingSession) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var coffeeID string
		err := tx.QueryRowContext(ctx, "SELECT coffee_id FROM brewing_sessions WHERE id = ?", session.ID).Scan(&coffeeID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("brewing session %s: %w", session.ID, database.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to look up brewing session: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE brewing_sessions
			SET date = ?, rating = ?, grind_level = ?, brew_method = ?, grinder = ?,
				water_temperature = ?, brew_time = ?, coffee_amount = ?, water_amount = ?, session_notes = ?,
				aroma = ?, acidity = ?, body = ?, flavor = ?, aftertaste = ?
			WHERE id = ?
		`, session.Date.UTC(), session.Rating, string(session.GrindLevel), string(session.BrewMethod), session.Grinder,
			nullFloat(session.WaterTemperature), nullFloat(session.BrewTime), nullFloat(session.CoffeeAmount), nullFloat(session.WaterAmount),
			session.SessionNotes, session.Aroma, session.Acidity, session.Body, session.Flavor, session.Aftertaste, session.ID)
		if err != nil {
			return fmt.Errorf("failed to update brewing session: %w", err)
		}

		// Update tasting notes: delete existing and recreate
		if err := deleteTastingNotes(ctx, tx, session.ID); err != nil {
			return err
		}
		if err := insertTastingNotes(ctx, tx, session.ID, session.TastingNotes); err != nil {
			return err
		}

		session.CoffeeID = coffeeID
		return s.recordChange(ctx, tx, coffeeID, OpPut)
	})
}

func (s *SQLiteStore) DeleteBrewingSession(ctx context.Context, coffeeID, sessionID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var owned int
		err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM brewing_sessions WHERE id = ? AND coffee_id = ?", sessionID, coffeeID).Scan(&owned)
		if err != nil {
			return fmt.Errorf("failed to look up brewing session: %w", err)
		}
		if owned == 0 {
			return fmt.Errorf("brewing session %s on coffee %s: %w", sessionID, coffeeID, database.ErrNotFound)
		}

		// Delete notes first (foreign key)
		if err := deleteTastingNotes(ctx, tx, sessionID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM brewing_sessions WHERE id = ?", sessionID); err != nil {
			return fmt.Errorf("failed to delete brewing session: %w", err)
		}
		return s.recordChange(ctx, tx, coffeeID, OpPut)
	})
}

// ========== Tasting Note Operations ==========

// insertTastingNotes stores notes exactly as given, keyed by their position.
func insertTastingNotes(ctx context.Context, tx *sql.Tx, sessionID string, notes []string) error {
	if len(notes) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tasting_notes (session_id, position, note)
		VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for position, note := range notes {
		if _, err := stmt.ExecContext(ctx, sessionID, position, note); err != nil {
			return fmt.Errorf("failed to insert tasting note: %w", err)
		}
	}
	return nil
}

func deleteTastingNotes(ctx context.Context, tx *sql.Tx, sessionID string) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM tasting_notes WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("failed to delete tasting notes: %w", err)
	}
	return nil
}

func requireRow(result sql.Result, kind, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, database.ErrNotFound)
	}
	return nil
}

// ========== Sync Bookkeeping ==========

// Change is the latest pending operation for one coffee.
type Change struct {
	Seq      int64
	CoffeeID string
	Op       string
	QueuedAt time.Time
}

// PendingChanges returns one entry per coffee with its most recent operation,
// oldest first.
func (s *SQLiteStore) PendingChanges(ctx context.Context) ([]Change, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.seq, p.coffee_id, p.op, p.queued_at
		FROM pending_changes p
		JOIN (SELECT coffee_id, MAX(seq) AS seq FROM pending_changes GROUP BY coffee_id) latest
			ON latest.seq = p.seq
		ORDER BY p.seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending changes: %w", err)
	}
	defer rows.Close()

	var changes []Change
	for rows.Next() {
		var c Change
		if err := rows.Scan(&c.Seq, &c.CoffeeID, &c.Op, &c.QueuedAt); err != nil {
			return nil, fmt.Errorf("failed to scan pending change: %w", err)
		}
		changes = append(changes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pending changes: %w", err)
	}
	return changes, nil
}

// AckChanges drops every pending change for coffeeID up to and including seq.
func (s *SQLiteStore) AckChanges(ctx context.Context, coffeeID string, seq int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM pending_changes WHERE coffee_id = ? AND seq <= ?", coffeeID, seq)
	if err != nil {
		return fmt.Errorf("failed to acknowledge changes: %w", err)
	}
	return nil
}

// ErrLocalChangePending is returned when a remote write is skipped because the
// coffee has a local change still waiting to be pushed.
var ErrLocalChangePending = errors.New("coffee has a pending local change")

// ApplyRemoteCoffee replaces the local copy of a coffee with one received from
// the sync facility. It bypasses the change log, and leaves the coffee alone
// when a local change is queued for it.
func (s *SQLiteStore) ApplyRemoteCoffee(ctx context.Context, coffee *models.Coffee) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireNoPendingChange(ctx, tx, coffee.ID); err != nil {
			return err
		}
		if err := deleteCoffee(ctx, tx, coffee.ID); err != nil && !errors.Is(err, database.ErrNotFound) {
			return err
		}
		if err := insertCoffee(ctx, tx, coffee); err != nil {
			return err
		}
		return markSynced(ctx, tx, coffee.ID)
	})
}

// DeleteRemoteCoffee removes a coffee that no longer exists remotely. It
// bypasses the change log, and leaves the coffee alone when a local change is
// queued for it.
func (s *SQLiteStore) DeleteRemoteCoffee(ctx context.Context, coffeeID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireNoPendingChange(ctx, tx, coffeeID); err != nil {
			return err
		}
		if err := deleteCoffee(ctx, tx, coffeeID); err != nil && !errors.Is(err, database.ErrNotFound) {
			return err
		}
		return unmarkSynced(ctx, tx, coffeeID)
	})
}

// requireNoPendingChange runs inside the remote write's transaction, so a local
// write cannot land between the check and the write.
func requireNoPendingChange(ctx context.Context, tx *sql.Tx, coffeeID string) error {
	var n int
	err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM pending_changes WHERE coffee_id = ?", coffeeID).Scan(&n)
	if err != nil {
		return fmt.Errorf("failed to check pending changes: %w", err)
	}
	if n > 0 {
		return fmt.Errorf("coffee %s: %w", coffeeID, ErrLocalChangePending)
	}
	return nil
}

// MarkSynced records whether a coffee currently exists remotely.
func (s *SQLiteStore) MarkSynced(ctx context.Context, coffeeID string, synced bool) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if synced {
			return markSynced(ctx, tx, coffeeID)
		}
		return unmarkSynced(ctx, tx, coffeeID)
	})
}

func markSynced(ctx context.Context, tx *sql.Tx, coffeeID string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO synced_coffees (coffee_id, synced_at) VALUES (?, ?)
		ON CONFLICT(coffee_id) DO UPDATE SET synced_at = excluded.synced_at
	`, coffeeID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to mark coffee synced: %w", err)
	}
	return nil
}

func unmarkSynced(ctx context.Context, tx *sql.Tx, coffeeID string) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM synced_coffees WHERE coffee_id = ?", coffeeID); err != nil {
		return fmt.Errorf("failed to unmark coffee synced: %w", err)
	}
	return nil
}

// SyncedCoffeeIDs lists coffees known to exist remotely.
func (s *SQLiteStore) SyncedCoffeeIDs(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT coffee_id FROM synced_coffees")
	if err != nil {
		return nil, fmt.Errorf("failed to list synced coffees: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan synced coffee: %w", err)
		}
		ids[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating synced coffees: %w", err)
	}
	return ids, nil
}
