package journal

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"coffeetime/internal/database"
	"coffeetime/internal/database/sqlite"
	"coffeetime/internal/legacy"
	"coffeetime/internal/models"

	"github.com/rs/zerolog"
)

var errBoom = errors.New("disk full")

// flakyStore fails writes or reads on demand.
type flakyStore struct {
	database.Store
	failWrites bool
	failReads  bool
}

func (f *flakyStore) ListCoffees(ctx context.Context) ([]*models.Coffee, error) {
	if f.failReads {
		return nil, errBoom
	}
	return f.Store.ListCoffees(ctx)
}

func (f *flakyStore) InsertCoffee(ctx context.Context, c *models.Coffee) error {
	if f.failWrites {
		return errBoom
	}
	return f.Store.InsertCoffee(ctx, c)
}

func (f *flakyStore) UpdateCoffee(ctx context.Context, c *models.Coffee) error {
	if f.failWrites {
		return errBoom
	}
	return f.Store.UpdateCoffee(ctx, c)
}

func newTestStore(t *testing.T) *sqlite.SQLiteStore {
	t.Helper()
	store, err := sqlite.NewSQLiteStore(sqlite.MemoryPath, "CoffeeTimeTest")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(context.Background(), newTestStore(t), zerolog.Nop())
}

func TestYirgacheffeScenario(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	coffee := models.NewCoffee("Yirgacheffe")
	coffee.RoastLevel = models.RoastLight
	if err := m.AddCoffee(ctx, coffee); err != nil {
		t.Fatalf("AddCoffee failed: %v", err)
	}

	session := models.NewBrewingSession()
	session.BrewMethod = models.MethodPourOver
	session.Rating = 4.5
	session.CoffeeAmount = models.Float(18)
	session.WaterAmount = models.Float(300)
	if err := m.AddBrewingSession(ctx, session, coffee.ID); err != nil {
		t.Fatalf("AddBrewingSession failed: %v", err)
	}

	m.Reload(ctx)

	coffees := m.Coffees()
	if len(coffees) != 1 {
		t.Fatalf("coffees = %d, want 1", len(coffees))
	}
	got := coffees[0]
	if got.Name != "Yirgacheffe" {
		t.Errorf("name = %q, want Yirgacheffe", got.Name)
	}
	if avg := m.AverageRating(got.ID); avg != 4.5 {
		t.Errorf("AverageRating = %v, want 4.5", avg)
	}
	if len(got.BrewingSessions) != 1 {
		t.Fatalf("sessions = %d, want 1", len(got.BrewingSessions))
	}
	if amount := got.BrewingSessions[0].CoffeeAmount; amount == nil || *amount != 18.0 {
		t.Errorf("coffee amount = %v, want 18", amount)
	}
}

func TestAverageRating(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	coffee := models.NewCoffee("Kenya")
	m.AddCoffee(ctx, coffee)
	if avg := m.AverageRating(coffee.ID); avg != 0 {
		t.Errorf("AverageRating with no sessions = %v, want 0", avg)
	}

	ratings := []float64{3.2, 4.1, 4.9}
	for _, r := range ratings {
		s := models.NewBrewingSession()
		s.Rating = r
		m.AddBrewingSession(ctx, s, coffee.ID)
	}
	want := (3.2 + 4.1 + 4.9) / 3
	if avg := m.AverageRating(coffee.ID); math.Abs(avg-want) > 1e-9 {
		t.Errorf("AverageRating = %v, want %v", avg, want)
	}
}

func TestCoffeesOrderedByDateAdded(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range []string{"oldest", "newest", "middle"} {
		c := models.NewCoffee(name)
		c.DateAdded = base.Add(time.Duration([]int{0, 48, 24}[i]) * time.Hour)
		if err := m.AddCoffee(ctx, c); err != nil {
			t.Fatalf("AddCoffee failed: %v", err)
		}
	}

	coffees := m.Coffees()
	want := []string{"newest", "middle", "oldest"}
	for i, c := range coffees {
		if c.Name != want[i] {
			t.Errorf("coffees[%d] = %q, want %q", i, c.Name, want[i])
		}
	}
}

func TestDeleteCoffeeCascade(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	m := NewManager(ctx, store, zerolog.Nop())

	doomed := models.NewCoffee("Doomed")
	kept := models.NewCoffee("Kept")
	m.AddCoffee(ctx, doomed)
	m.AddCoffee(ctx, kept)
	for i := 0; i < 2; i++ {
		m.AddBrewingSession(ctx, models.NewBrewingSession(), doomed.ID)
	}
	m.AddBrewingSession(ctx, models.NewBrewingSession(), kept.ID)

	if err := m.DeleteCoffee(ctx, doomed.ID); err != nil {
		t.Fatalf("DeleteCoffee failed: %v", err)
	}

	if _, ok := m.Coffee(doomed.ID); ok {
		t.Error("deleted coffee still cached")
	}
	if sessions := m.Sessions(doomed.ID); len(sessions) != 0 {
		t.Errorf("sessions of deleted coffee = %d, want 0", len(sessions))
	}

	stored, err := store.ListCoffees(ctx)
	if err != nil {
		t.Fatalf("ListCoffees failed: %v", err)
	}
	for _, c := range stored {
		if c.ID == doomed.ID {
			t.Error("deleted coffee still stored")
		}
		for _, s := range c.BrewingSessions {
			if s.CoffeeID == doomed.ID {
				t.Error("session of deleted coffee still stored")
			}
		}
	}
}

func TestUpdateCoffeePreservesIdentity(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	original := models.NewCoffee("Huila")
	original.DateAdded = time.Date(2024, 5, 5, 5, 5, 5, 0, time.UTC)
	m.AddCoffee(ctx, original)

	changed := original.Clone()
	changed.Name = "Huila Pink Bourbon"
	changed.Roaster = models.String("Onyx")
	changed.Price = models.Float(22)
	changed.RoastLevel = models.RoastMediumLight
	changed.Description = "Tropical"
	changed.DateAdded = time.Now()
	if err := m.UpdateCoffee(ctx, changed); err != nil {
		t.Fatalf("UpdateCoffee failed: %v", err)
	}

	got, ok := m.Coffee(original.ID)
	if !ok {
		t.Fatal("coffee missing after update")
	}
	if got.Name != changed.Name || models.Deref(got.Roaster) != "Onyx" || *got.Price != 22 ||
		got.RoastLevel != models.RoastMediumLight || got.Description != "Tropical" {
		t.Errorf("mutable fields not updated: %+v", got)
	}
	if got.ID != original.ID {
		t.Errorf("id = %q, want %q", got.ID, original.ID)
	}
	if !got.DateAdded.Equal(original.DateAdded) {
		t.Errorf("date added = %v, want %v", got.DateAdded, original.DateAdded)
	}
}

func TestLookupMissIsNoop(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	ghost := models.NewCoffee("Ghost")
	tests := []struct {
		name string
		op   func() error
	}{
		{"update coffee", func() error { return m.UpdateCoffee(ctx, ghost) }},
		{"delete coffee", func() error { return m.DeleteCoffee(ctx, ghost.ID) }},
		{"add session", func() error { return m.AddBrewingSession(ctx, models.NewBrewingSession(), ghost.ID) }},
		{"update session", func() error { return m.UpdateBrewingSession(ctx, models.NewBrewingSession()) }},
		{"delete session", func() error { return m.DeleteBrewingSession(ctx, "missing", ghost.ID) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.op(); err != nil {
				t.Errorf("error = %v, want nil", err)
			}
		})
	}
	if len(m.Coffees()) != 0 {
		t.Error("no-op operations should not change the cache")
	}
}

func TestOptionalNormalization(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	coffee := models.NewCoffee("Normalized")
	coffee.Price = models.Float(0)
	m.AddCoffee(ctx, coffee)

	session := models.NewBrewingSession()
	session.WaterTemperature = models.Float(0)
	session.BrewTime = models.Float(-30)
	session.WaterAmount = models.Float(250)
	m.AddBrewingSession(ctx, session, coffee.ID)

	got, _ := m.Coffee(coffee.ID)
	if got.Price != nil {
		t.Errorf("price = %v, want absent", *got.Price)
	}
	s := got.BrewingSessions[0]
	if s.WaterTemperature != nil || s.BrewTime != nil {
		t.Errorf("non-positive measurements should be absent, got %v/%v", s.WaterTemperature, s.BrewTime)
	}
	if s.WaterAmount == nil || *s.WaterAmount != 250 {
		t.Errorf("water amount = %v, want 250", s.WaterAmount)
	}

	// Update to zero after a real value.
	s.WaterAmount = models.Float(0)
	m.UpdateBrewingSession(ctx, s)
	got, _ = m.Coffee(coffee.ID)
	if got.BrewingSessions[0].WaterAmount != nil {
		t.Error("updating to zero should store absent")
	}
}

func TestSessionOperations(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	coffee := models.NewCoffee("Bolivia")
	m.AddCoffee(ctx, coffee)

	base := time.Date(2025, 2, 1, 7, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < 3; i++ {
		s := models.NewBrewingSession()
		s.Date = base.Add(time.Duration(i) * time.Hour)
		m.AddBrewingSession(ctx, s, coffee.ID)
		ids = append(ids, s.ID)
	}

	sessions := m.Sessions(coffee.ID)
	if len(sessions) != 3 || sessions[0].ID != ids[2] || sessions[2].ID != ids[0] {
		t.Fatalf("sessions not ordered most recent first: %v", sessions)
	}

	update := sessions[1]
	update.Rating = 5
	update.TastingNotes = []string{"cocoa"}
	if err := m.UpdateBrewingSession(ctx, update); err != nil {
		t.Fatalf("UpdateBrewingSession failed: %v", err)
	}
	if err := m.DeleteBrewingSession(ctx, ids[0], coffee.ID); err != nil {
		t.Fatalf("DeleteBrewingSession failed: %v", err)
	}

	sessions = m.Sessions(coffee.ID)
	if len(sessions) != 2 {
		t.Fatalf("sessions = %d, want 2", len(sessions))
	}
	if sessions[1].Rating != 5 || len(sessions[1].TastingNotes) != 1 {
		t.Errorf("updated session = %+v", sessions[1])
	}
	if sessions[1].CoffeeID != coffee.ID {
		t.Errorf("coffee id = %q, want %q", sessions[1].CoffeeID, coffee.ID)
	}
}

func TestCommitFailure(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{Store: newTestStore(t)}
	m := NewManager(ctx, store, zerolog.Nop())

	existing := models.NewCoffee("Existing")
	m.AddCoffee(ctx, existing)

	store.failWrites = true
	err := m.AddCoffee(ctx, models.NewCoffee("Lost"))
	if !errors.Is(err, errBoom) {
		t.Errorf("AddCoffee error = %v, want %v", err, errBoom)
	}

	renamed := existing.Clone()
	renamed.Name = "Renamed"
	if err := m.UpdateCoffee(ctx, renamed); !errors.Is(err, errBoom) {
		t.Errorf("UpdateCoffee error = %v, want %v", err, errBoom)
	}

	coffees := m.Coffees()
	if len(coffees) != 1 || coffees[0].Name != "Existing" {
		t.Errorf("cache changed after failed commit: %+v", coffees)
	}
}

func TestReloadFailureKeepsCache(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{Store: newTestStore(t)}
	m := NewManager(ctx, store, zerolog.Nop())

	m.AddCoffee(ctx, models.NewCoffee("Cached"))

	store.failReads = true
	m.AddCoffee(ctx, models.NewCoffee("Committed"))
	if err := m.AddCoffee(ctx, models.NewCoffee("Also committed")); err != nil {
		t.Errorf("reload failure should not be returned, got %v", err)
	}
	if len(m.Coffees()) != 1 {
		t.Errorf("cache = %d coffees, want previous value of 1", len(m.Coffees()))
	}

	store.failReads = false
	m.StoreChanged(ctx)
	if len(m.Coffees()) != 3 {
		t.Errorf("after recovery cache = %d coffees, want 3", len(m.Coffees()))
	}
}

func TestImportLegacyEntries(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	entry := models.NewCoffeeEntry()
	entry.Name = "Legacy Mocha"
	entry.Date = time.Date(2023, 8, 28, 9, 0, 0, 0, time.UTC)
	entry.Rating = 4.0
	entry.OverallNotes = "From the old app"
	entry.TastingNotes = []string{"winey"}

	second := models.NewCoffeeEntry()
	second.Name = "Legacy Java"

	n, err := m.ImportLegacyEntries(ctx, []models.CoffeeEntry{entry, second})
	if err != nil {
		t.Fatalf("ImportLegacyEntries failed: %v", err)
	}
	if n != 2 {
		t.Errorf("imported = %d, want 2", n)
	}

	var imported *models.Coffee
	for _, c := range m.Coffees() {
		if c.Name == "Legacy Mocha" {
			imported = c
		}
	}
	if imported == nil {
		t.Fatal("imported coffee not cached")
	}
	if imported.Roaster != nil {
		t.Error("imported coffee should have no roaster")
	}
	if len(imported.BrewingSessions) != 1 {
		t.Fatalf("sessions = %d, want 1", len(imported.BrewingSessions))
	}
	s := imported.BrewingSessions[0]
	if s.SessionNotes != "From the old app" || s.Rating != 4.0 || s.TastingNotes[0] != "winey" {
		t.Errorf("session = %+v", s)
	}
	if m.AverageRating(imported.ID) != 4.0 {
		t.Errorf("AverageRating = %v, want 4", m.AverageRating(imported.ID))
	}
}

func TestImportLegacyEntryKeepsTastingNotes(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	entry := models.NewCoffeeEntry()
	entry.Name = "Spaced out"
	entry.TastingNotes = []string{" nutty ", "cocoa nibs  ", "", "berry"}

	imported, err := m.ImportLegacyEntry(ctx, entry)
	if err != nil {
		t.Fatalf("ImportLegacyEntry failed: %v", err)
	}
	cached, ok := m.Coffee(imported.ID)
	if !ok || len(cached.BrewingSessions) != 1 {
		t.Fatalf("cached coffee = %+v", cached)
	}

	out := legacy.ToEntry(cached, cached.BrewingSessions[0])
	if !reflect.DeepEqual(out.TastingNotes, entry.TastingNotes) {
		t.Errorf("tasting notes = %q, want %q", out.TastingNotes, entry.TastingNotes)
	}
}

func TestRestoreCoffee(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	coffee := models.NewCoffee("Backed up")
	coffee.Roaster = models.String("Onyx")
	session := models.NewBrewingSession()
	session.SessionNotes = "kept"
	session.CoffeeAmount = models.Float(18)
	coffee.Attach(session)

	n, err := m.RestoreCoffees(ctx, []*models.Coffee{coffee})
	if err != nil || n != 1 {
		t.Fatalf("RestoreCoffees = %d, %v", n, err)
	}

	// Restoring a changed copy replaces the stored one.
	changed := coffee.Clone()
	changed.Name = "Backed up again"
	changed.BrewingSessions = nil
	if err := m.RestoreCoffee(ctx, changed); err != nil {
		t.Fatalf("RestoreCoffee failed: %v", err)
	}

	coffees := m.Coffees()
	if len(coffees) != 1 {
		t.Fatalf("coffees = %d, want 1", len(coffees))
	}
	if coffees[0].ID != coffee.ID || coffees[0].Name != "Backed up again" || len(coffees[0].BrewingSessions) != 0 {
		t.Errorf("restored coffee = %+v", coffees[0])
	}

	anonymous := models.NewCoffee("No id")
	anonymous.ID = ""
	if _, err := m.RestoreCoffees(ctx, []*models.Coffee{anonymous}); !errors.Is(err, ErrMissingID) {
		t.Errorf("RestoreCoffees without id error = %v, want ErrMissingID", err)
	}
}

func TestAddRequiresID(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	c := models.NewCoffee("Anonymous")
	c.ID = ""
	if err := m.AddCoffee(ctx, c); !errors.Is(err, ErrMissingID) {
		t.Errorf("AddCoffee error = %v, want ErrMissingID", err)
	}
}

func TestReadersGetCopies(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	c := models.NewCoffee("Original")
	m.AddCoffee(ctx, c)

	got, _ := m.Coffee(c.ID)
	got.Name = "Mutated"

	again, _ := m.Coffee(c.ID)
	if again.Name != "Original" {
		t.Errorf("cache mutated through returned value: %q", again.Name)
	}
}
