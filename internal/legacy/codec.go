package legacy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"coffeetime/internal/models"
)

// referenceDate is the epoch legacy exports count dates from.
var referenceDate = time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)

// Numeric dates outside years 1 to 9999 are rejected.
var (
	referenceUnix  = referenceDate.Unix()
	minDateSeconds = float64(time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC).Unix() - referenceUnix)
	maxDateSeconds = float64(time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC).Unix() - referenceUnix)
)

// Raw enum values as early app versions wrote them.
var (
	roastRaw = map[models.RoastLevel]string{
		models.RoastLight:       "Hell",
		models.RoastMediumLight: "Mittel-Hell",
		models.RoastMedium:      "Mittel",
		models.RoastMediumDark:  "Mittel-Dunkel",
		models.RoastDark:        "Dunkel",
	}
	grindRaw = map[models.GrindLevel]string{
		models.GrindExtraCoarse:  "Extra Grob",
		models.GrindCoarse:       "Grob",
		models.GrindMediumCoarse: "Mittel-Grob",
		models.GrindMedium:       "Mittel",
		models.GrindMediumFine:   "Mittel-Fein",
		models.GrindFine:         "Fein",
		models.GrindExtraFine:    "Extra Fein",
	}
	brewRaw = map[models.BrewMethod]string{
		models.MethodDrip:        "Filterkaffee",
		models.MethodEspresso:    "Espresso",
		models.MethodFrenchPress: "French Press",
		models.MethodPourOver:    "Pour Over",
		models.MethodAeropress:   "AeroPress",
		models.MethodChemex:      "Chemex",
		models.MethodV60:         "V60",
		models.MethodColdBrew:    "Cold Brew",
		models.MethodMoka:        "Moka",
		models.MethodTurkish:     "Türkischer Kaffee",
	}
)

// wireEntry mirrors the exported JSON object. Every field is optional on read.
type wireEntry struct {
	ID           string          `json:"id,omitempty"`
	Name         *string         `json:"name,omitempty"`
	Date         json.RawMessage `json:"date,omitempty"`
	Rating       *float64        `json:"rating,omitempty"`
	Price        *float64        `json:"price,omitempty"`
	GrindLevel   *string         `json:"grindLevel,omitempty"`
	Grinder      *string         `json:"grinder,omitempty"`
	BrewMethod   *string         `json:"brewMethod,omitempty"`
	Origin       *string         `json:"origin,omitempty"`
	RoastLevel   *string         `json:"roastLevel,omitempty"`
	TastingNotes []string        `json:"tastingNotes"`
	OverallNotes *string         `json:"overallNotes,omitempty"`
	Aroma        *float64        `json:"aroma,omitempty"`
	Acidity      *float64        `json:"acidity,omitempty"`
	Body         *float64        `json:"body,omitempty"`
	Flavor       *float64        `json:"flavor,omitempty"`
	Aftertaste   *float64        `json:"aftertaste,omitempty"`
}

// Decode parses an exported journal. The input is either a JSON array of entries
// or a single entry object. Only malformed JSON is an error; unknown or missing
// field values fall back to the entry defaults.
func Decode(data []byte) ([]models.CoffeeEntry, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("failed to decode legacy entries: empty input")
	}

	var wires []wireEntry
	if trimmed[0] == '{' {
		var w wireEntry
		if err := json.Unmarshal(trimmed, &w); err != nil {
			return nil, fmt.Errorf("failed to decode legacy entry: %w", err)
		}
		wires = []wireEntry{w}
	} else if err := json.Unmarshal(trimmed, &wires); err != nil {
		return nil, fmt.Errorf("failed to decode legacy entries: %w", err)
	}

	entries := make([]models.CoffeeEntry, 0, len(wires))
	for _, w := range wires {
		entries = append(entries, w.entry())
	}
	return entries, nil
}

func (w wireEntry) entry() models.CoffeeEntry {
	e := models.NewCoffeeEntry()
	if w.ID != "" {
		e.ID = w.ID
	}
	if w.Name != nil {
		e.Name = *w.Name
	}
	if d, ok := decodeDate(w.Date); ok {
		e.Date = d
	}
	setFloat(&e.Rating, w.Rating)
	e.Price = models.NormalizeOptional(w.Price)
	if w.GrindLevel != nil {
		e.GrindLevel = parseRaw(*w.GrindLevel, grindRaw, e.GrindLevel)
	}
	if w.Grinder != nil {
		e.Grinder = *w.Grinder
	}
	if w.BrewMethod != nil {
		e.BrewMethod = parseRaw(*w.BrewMethod, brewRaw, e.BrewMethod)
	}
	if w.Origin != nil {
		e.Origin = models.String(*w.Origin)
	}
	if w.RoastLevel != nil {
		e.RoastLevel = parseRaw(*w.RoastLevel, roastRaw, e.RoastLevel)
	}
	if w.TastingNotes != nil {
		e.TastingNotes = w.TastingNotes
	}
	if w.OverallNotes != nil {
		e.OverallNotes = *w.OverallNotes
	}
	setFloat(&e.Aroma, w.Aroma)
	setFloat(&e.Acidity, w.Acidity)
	setFloat(&e.Body, w.Body)
	setFloat(&e.Flavor, w.Flavor)
	setFloat(&e.Aftertaste, w.Aftertaste)
	return e
}

// Encode writes entries the way early app versions exported them: raw enum
// values and dates as seconds since the reference date.
func Encode(entries []models.CoffeeEntry) ([]byte, error) {
	wires := make([]wireEntry, 0, len(entries))
	for _, e := range entries {
		date, err := json.Marshal(secondsSinceReference(e.Date))
		if err != nil {
			return nil, fmt.Errorf("failed to encode date: %w", err)
		}
		grind := rawValue(e.GrindLevel, grindRaw, models.GrindMedium)
		brew := rawValue(e.BrewMethod, brewRaw, models.MethodDrip)
		roast := rawValue(e.RoastLevel, roastRaw, models.RoastMedium)
		notes := e.TastingNotes
		if notes == nil {
			notes = []string{}
		}

		wires = append(wires, wireEntry{
			ID:           e.ID,
			Name:         &e.Name,
			Date:         date,
			Rating:       &e.Rating,
			Price:        models.NormalizeOptional(e.Price),
			GrindLevel:   &grind,
			Grinder:      &e.Grinder,
			BrewMethod:   &brew,
			Origin:       e.Origin,
			RoastLevel:   &roast,
			TastingNotes: notes,
			OverallNotes: &e.OverallNotes,
			Aroma:        &e.Aroma,
			Acidity:      &e.Acidity,
			Body:         &e.Body,
			Flavor:       &e.Flavor,
			Aftertaste:   &e.Aftertaste,
		})
	}

	data, err := json.MarshalIndent(wires, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode legacy entries: %w", err)
	}
	return data, nil
}

// decodeDate accepts a reference-date number or an RFC 3339 string.
func decodeDate(raw json.RawMessage) (time.Time, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}, false
	}

	var seconds float64
	if err := json.Unmarshal(raw, &seconds); err == nil {
		if math.IsNaN(seconds) || seconds < minDateSeconds || seconds > maxDateSeconds {
			return time.Time{}, false
		}
		whole, frac := math.Modf(seconds)
		return time.Unix(referenceUnix+int64(whole), 0).UTC().
			Add(time.Duration(math.Round(frac*1e6)) * time.Microsecond), true
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// secondsSinceReference works from Unix seconds so dates far from the
// reference date do not overflow a time.Duration.
func secondsSinceReference(t time.Time) float64 {
	return float64(t.Unix()-referenceUnix) + float64(t.Nanosecond())/1e9
}

func setFloat(dst *float64, v *float64) {
	if v != nil && !math.IsNaN(*v) {
		*dst = *v
	}
}

// parseRaw maps a legacy raw value or a canonical key to T, or returns def.
func parseRaw[T ~string](s string, raw map[T]string, def T) T {
	s = strings.TrimSpace(s)
	for k, v := range raw {
		if s == v || s == string(k) {
			return k
		}
	}
	// Exports that passed through a Latin-1 round trip.
	if s == "TÃ¼rkischer Kaffee" {
		if k, ok := any(models.MethodTurkish).(T); ok {
			return k
		}
	}
	return def
}

func rawValue[T ~string](v T, raw map[T]string, def T) string {
	if s, ok := raw[v]; ok {
		return s
	}
	return raw[def]
}
