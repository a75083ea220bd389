package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"coffeetime/internal/legacy"
	"coffeetime/internal/metrics"
	"coffeetime/internal/models"

	"github.com/rs/zerolog"
)

const (
	keyPrefix = "backups/"
	keyLayout = "20060102T150405Z"

	// maxBackupSize bounds what Restore will read.
	maxBackupSize = 32 << 20

	documentFormat  = "coffeetime-backup"
	documentVersion = 1
)

// ErrUnsupportedBackup is returned for backup documents this build cannot read.
var ErrUnsupportedBackup = errors.New("unsupported backup document")

// Journal is the part of the data manager backups need.
type Journal interface {
	Coffees() []*models.Coffee
	RestoreCoffees(ctx context.Context, coffees []*models.Coffee) (int, error)
	ImportLegacyEntries(ctx context.Context, entries []models.CoffeeEntry) (int, error)
}

// document is the stored form of a backup. It keeps every coffee with its
// sessions, ids and measurements.
type document struct {
	Format    string           `json:"format"`
	Version   int              `json:"version"`
	CreatedAt time.Time        `json:"created_at"`
	Coffees   []*models.Coffee `json:"coffees"`
}

// Service creates and restores journal backups.
type Service struct {
	target  Target
	journal Journal
	logger  zerolog.Logger
	now     func() time.Time
}

// NewService returns a backup service writing to target.
func NewService(target Target, journal Journal, logger zerolog.Logger) *Service {
	return &Service{
		target:  target,
		journal: journal,
		logger:  logger.With().Str("component", "backup").Str("driver", target.Driver()).Logger(),
		now:     time.Now,
	}
}

// Create writes the current journal to a new timestamped object.
func (s *Service) Create(ctx context.Context) (Object, error) {
	now := s.now().UTC()
	doc := document{
		Format:    documentFormat,
		Version:   documentVersion,
		CreatedAt: now,
		Coffees:   s.journal.Coffees(),
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		metrics.BackupOperations.WithLabelValues("create", metrics.StatusError).Inc()
		return Object{}, fmt.Errorf("failed to encode backup: %w", err)
	}

	key := keyPrefix + "coffeetime-" + now.Format(keyLayout) + ".json"
	obj, err := s.target.Put(ctx, key, bytes.NewReader(data))
	if err != nil {
		metrics.BackupOperations.WithLabelValues("create", metrics.StatusError).Inc()
		s.logger.Error().Err(err).Str("key", key).Msg("Failed to write backup")
		return Object{}, fmt.Errorf("failed to write backup: %w", err)
	}

	metrics.BackupOperations.WithLabelValues("create", metrics.StatusOK).Inc()
	s.logger.Info().Str("key", obj.Key).Int("coffees", len(doc.Coffees)).Msg("Backup created")
	return obj, nil
}

// List returns stored backups, newest first.
func (s *Service) List(ctx context.Context) ([]Object, error) {
	objects, err := s.target.List(ctx, keyPrefix)
	if err != nil {
		return nil, err
	}
	// Keys embed a sortable timestamp.
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key > objects[j].Key })
	return objects, nil
}

// Restore puts every coffee of the backup at key back into the journal with
// its original ids, replacing coffees that share an id. Older backups written
// in the legacy interchange format are imported as new coffees instead.
func (s *Service) Restore(ctx context.Context, key string) (int, error) {
	n, err := s.restore(ctx, key)
	if err != nil {
		metrics.BackupOperations.WithLabelValues("restore", metrics.StatusError).Inc()
		s.logger.Error().Err(err).Str("key", key).Int("restored", n).Msg("Backup restore failed")
		return n, err
	}
	metrics.BackupOperations.WithLabelValues("restore", metrics.StatusOK).Inc()
	s.logger.Info().Str("key", key).Int("restored", n).Msg("Backup restored")
	return n, nil
}

func (s *Service) restore(ctx context.Context, key string) (int, error) {
	rc, err := s.target.Get(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("failed to open backup %s: %w", key, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxBackupSize))
	if err != nil {
		return 0, fmt.Errorf("failed to read backup %s: %w", key, err)
	}

	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		entries, err := legacy.Decode(data)
		if err != nil {
			return 0, fmt.Errorf("failed to decode backup %s: %w", key, err)
		}
		return s.journal.ImportLegacyEntries(ctx, entries)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return 0, fmt.Errorf("failed to decode backup %s: %w", key, err)
	}
	if doc.Format != documentFormat || doc.Version < 1 || doc.Version > documentVersion {
		return 0, fmt.Errorf("%w: format %q version %d", ErrUnsupportedBackup, doc.Format, doc.Version)
	}
	return s.journal.RestoreCoffees(ctx, doc.Coffees)
}
