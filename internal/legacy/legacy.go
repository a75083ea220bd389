// Package legacy reads and writes the flat coffee entry records exported by
// early versions of CoffeeTime and maps them onto the coffee/session graph.
package legacy

import (
	"coffeetime/internal/models"

	"github.com/google/uuid"
)

// Convert maps a legacy entry to a coffee owning a single brewing session.
// Both receive fresh ids; the legacy shape never persisted a stable one.
// Conversion is total: every field has a defined fallback.
func Convert(entry models.CoffeeEntry) (*models.Coffee, *models.BrewingSession) {
	coffee := &models.Coffee{
		ID:              uuid.NewString(),
		Name:            entry.Name,
		Origin:          models.String(models.Deref(entry.Origin)),
		Price:           models.NormalizeOptional(entry.Price),
		RoastLevel:      entry.RoastLevel,
		Description:     entry.OverallNotes,
		DateAdded:       entry.Date,
		BrewingSessions: []*models.BrewingSession{},
	}
	if _, ok := models.ParseRoastLevel(string(coffee.RoastLevel)); !ok {
		coffee.RoastLevel = models.RoastMedium
	}

	session := &models.BrewingSession{
		ID:           uuid.NewString(),
		Date:         entry.Date,
		Rating:       entry.Rating,
		GrindLevel:   entry.GrindLevel,
		BrewMethod:   entry.BrewMethod,
		Grinder:      entry.Grinder,
		TastingNotes: append([]string{}, entry.TastingNotes...),
		SessionNotes: entry.OverallNotes,
		Aroma:        entry.Aroma,
		Acidity:      entry.Acidity,
		Body:         entry.Body,
		Flavor:       entry.Flavor,
		Aftertaste:   entry.Aftertaste,
	}
	if _, ok := models.ParseGrindLevel(string(session.GrindLevel)); !ok {
		session.GrindLevel = models.GrindMedium
	}
	if _, ok := models.ParseBrewMethod(string(session.BrewMethod)); !ok {
		session.BrewMethod = models.MethodDrip
	}

	coffee.Attach(session)
	return coffee, session
}

// ToEntry derives the legacy view of a coffee and one of its sessions. The
// coffee's description supplies the overall notes, which is what Convert reads
// them into.
func ToEntry(coffee *models.Coffee, session *models.BrewingSession) models.CoffeeEntry {
	entry := models.NewCoffeeEntry()
	entry.ID = coffee.ID
	entry.Name = coffee.Name
	entry.Date = coffee.DateAdded
	entry.Price = models.NormalizeOptional(coffee.Price)
	entry.Origin = models.String(models.Deref(coffee.Origin))
	entry.RoastLevel = coffee.RoastLevel
	entry.OverallNotes = coffee.Description

	if session == nil {
		return entry
	}

	entry.Date = session.Date
	entry.Rating = session.Rating
	entry.GrindLevel = session.GrindLevel
	entry.Grinder = session.Grinder
	entry.BrewMethod = session.BrewMethod
	entry.TastingNotes = append([]string{}, session.TastingNotes...)
	if entry.OverallNotes == "" {
		entry.OverallNotes = session.SessionNotes
	}
	entry.Aroma = session.Aroma
	entry.Acidity = session.Acidity
	entry.Body = session.Body
	entry.Flavor = session.Flavor
	entry.Aftertaste = session.Aftertaste
	return entry
}

// Export flattens a journal into legacy entries: one per session, or one per
// coffee without sessions. Sessions are taken most recent first.
func Export(coffees []*models.Coffee) []models.CoffeeEntry {
	var entries []models.CoffeeEntry
	for _, c := range coffees {
		sessions := c.SortedSessions()
		if len(sessions) == 0 {
			entries = append(entries, ToEntry(c, nil))
			continue
		}
		for _, s := range sessions {
			entries = append(entries, ToEntry(c, s))
		}
	}
	return entries
}
