package atproto

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"coffeetime/internal/database"
	"coffeetime/internal/database/sqlite"
	"coffeetime/internal/metrics"
	"coffeetime/internal/models"

	"github.com/rs/zerolog"
)

// ErrNotAttached is returned by SyncOnce before an account is attached.
var ErrNotAttached = errors.New("no account attached for sync")

// Replica is the local store the syncer mirrors to and from the remote repo.
type Replica interface {
	GetCoffee(ctx context.Context, id string) (*models.Coffee, error)
	PendingChanges(ctx context.Context) ([]sqlite.Change, error)
	AckChanges(ctx context.Context, coffeeID string, seq int64) error
	ApplyRemoteCoffee(ctx context.Context, coffee *models.Coffee) error
	DeleteRemoteCoffee(ctx context.Context, coffeeID string) error
	MarkSynced(ctx context.Context, coffeeID string, synced bool) error
	SyncedCoffeeIDs(ctx context.Context) (map[string]bool, error)
}

var _ Replica = (*sqlite.SQLiteStore)(nil)

// Status describes the most recent sync pass.
type Status struct {
	Attached  bool      `json:"attached"`
	DID       string    `json:"did,omitempty"`
	LastRun   time.Time `json:"last_run,omitempty"`
	LastError string    `json:"last_error,omitempty"`
	Pushed    int       `json:"pushed"`
	Pulled    int       `json:"pulled"`
	Removed   int       `json:"removed"`
}

// Syncer mirrors the replica to one account's repository. Local writes are
// queued by the replica's change log and pushed first; remote records are
// then pulled in. Conflicts resolve as last writer wins per coffee.
type Syncer struct {
	replica Replica
	logger  zerolog.Logger

	// runMu allows one pass at a time.
	runMu sync.Mutex

	mu       sync.Mutex
	client   RecordClient
	onChange func(context.Context)
	status   Status
}

// NewSyncer creates a syncer for replica. It does nothing until Attach.
func NewSyncer(replica Replica, logger zerolog.Logger) *Syncer {
	return &Syncer{
		replica: replica,
		logger:  logger.With().Str("component", "sync").Logger(),
	}
}

// OnChange registers the callback fired after remote data was written to the replica.
func (s *Syncer) OnChange(fn func(context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// Attach sets the account to sync with.
func (s *Syncer) Attach(client RecordClient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client = client
	s.status.Attached = client != nil
	s.status.DID = ""
	if client != nil {
		s.status.DID = client.DID().String()
	}
}

// Detach stops syncing until the next Attach. Queued changes are kept.
func (s *Syncer) Detach() {
	s.Attach(nil)
}

// Status returns a copy of the current status.
func (s *Syncer) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Syncer) attached() (RecordClient, func(context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client, s.onChange
}

// SyncOnce pushes queued local changes, then pulls the remote collection.
func (s *Syncer) SyncOnce(ctx context.Context) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	client, onChange := s.attached()
	if client == nil {
		return ErrNotAttached
	}

	pushed, err := s.push(ctx, client)
	var pulled, removed int
	if err == nil {
		pulled, removed, err = s.pull(ctx, client)
	}

	s.mu.Lock()
	s.status.LastRun = time.Now()
	s.status.Pushed, s.status.Pulled, s.status.Removed = pushed, pulled, removed
	s.status.LastError = ""
	if err != nil {
		s.status.LastError = err.Error()
	}
	s.mu.Unlock()

	if err != nil {
		metrics.SyncRuns.WithLabelValues(metrics.StatusError).Inc()
		s.logger.Warn().Err(err).Int("pushed", pushed).Msg("Sync pass failed")
		return err
	}

	metrics.SyncRuns.WithLabelValues(metrics.StatusOK).Inc()
	s.logger.Debug().Int("pushed", pushed).Int("pulled", pulled).Int("removed", removed).Msg("Sync pass complete")

	if (pulled > 0 || removed > 0) && onChange != nil {
		onChange(ctx)
	}
	return nil
}

// push sends every queued change. It stops at the first remote failure so the
// rest stay queued for the next pass.
func (s *Syncer) push(ctx context.Context, client RecordClient) (int, error) {
	changes, err := s.replica.PendingChanges(ctx)
	if err != nil {
		return 0, err
	}

	pushed := 0
	for _, change := range changes {
		op := change.Op
		var coffee *models.Coffee
		if op == sqlite.OpPut {
			coffee, err = s.replica.GetCoffee(ctx, change.CoffeeID)
			if errors.Is(err, database.ErrNotFound) {
				op = sqlite.OpDelete
			} else if err != nil {
				return pushed, err
			}
		}

		switch op {
		case sqlite.OpPut:
			record, err := CoffeeToRecord(coffee)
			if err != nil {
				// Not representable remotely; drop it rather than retry forever.
				s.logger.Warn().Err(err).Str("coffee_id", change.CoffeeID).Msg("Skipping coffee that cannot be synced")
				break
			}
			err = client.PutRecord(ctx, &PutRecordInput{Collection: NSIDCoffee, RKey: coffee.ID, Record: record})
			if err != nil {
				return pushed, err
			}
			if err := s.replica.MarkSynced(ctx, coffee.ID, true); err != nil {
				return pushed, err
			}
		case sqlite.OpDelete:
			if ValidateRKey(change.CoffeeID) {
				err := client.DeleteRecord(ctx, &DeleteRecordInput{Collection: NSIDCoffee, RKey: change.CoffeeID})
				if err != nil {
					return pushed, err
				}
			}
			if err := s.replica.MarkSynced(ctx, change.CoffeeID, false); err != nil {
				return pushed, err
			}
		}

		if err := s.replica.AckChanges(ctx, change.CoffeeID, change.Seq); err != nil {
			return pushed, err
		}
		pushed++
		metrics.SyncRecords.WithLabelValues("push").Inc()
	}
	return pushed, nil
}

// pull applies every remote coffee without a queued local change, and removes
// previously synced coffees that are gone remotely. The replica re-checks the
// queue on each write, which covers local writes made during the pass.
func (s *Syncer) pull(ctx context.Context, client RecordClient) (int, int, error) {
	records, err := client.ListAllRecords(ctx, NSIDCoffee)
	if err != nil {
		return 0, 0, err
	}

	pending, err := s.replica.PendingChanges(ctx)
	if err != nil {
		return 0, 0, err
	}
	queued := make(map[string]bool, len(pending))
	for _, c := range pending {
		queued[c.CoffeeID] = true
	}

	remote := make(map[string]bool, len(records))
	pulled := 0
	for _, rec := range records {
		coffee, err := ResolveCoffeeRecord(rec, client.DID())
		if err != nil {
			s.logger.Warn().Err(err).Str("uri", rec.URI).Msg("Skipping unreadable record")
			continue
		}
		remote[coffee.ID] = true
		if queued[coffee.ID] {
			continue
		}
		coffee.Normalize()
		err = s.replica.ApplyRemoteCoffee(ctx, coffee)
		if errors.Is(err, sqlite.ErrLocalChangePending) {
			// Written locally since the snapshot; the next push wins.
			continue
		}
		if err != nil {
			return pulled, 0, fmt.Errorf("failed to apply remote coffee %s: %w", coffee.ID, err)
		}
		pulled++
		metrics.SyncRecords.WithLabelValues("pull").Inc()
	}

	synced, err := s.replica.SyncedCoffeeIDs(ctx)
	if err != nil {
		return pulled, 0, err
	}
	removed := 0
	for id := range synced {
		if remote[id] || queued[id] {
			continue
		}
		err := s.replica.DeleteRemoteCoffee(ctx, id)
		if errors.Is(err, sqlite.ErrLocalChangePending) {
			continue
		}
		if err != nil {
			return pulled, removed, fmt.Errorf("failed to remove coffee %s: %w", id, err)
		}
		removed++
		metrics.SyncRecords.WithLabelValues("remove").Inc()
	}

	return pulled, removed, nil
}

// Start runs a sync pass every interval in the background.
// Returns a stop function to gracefully shut down.
func (s *Syncer) Start(interval time.Duration) (stop func()) {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), interval)
				if err := s.SyncOnce(ctx); err != nil && !errors.Is(err, ErrNotAttached) {
					s.logger.Debug().Err(err).Msg("Background sync failed, will retry")
				}
				cancel()
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(done) })
	}
}
