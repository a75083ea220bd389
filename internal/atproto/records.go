package atproto

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"coffeetime/internal/models"

	"github.com/bluesky-social/indigo/atproto/syntax"
)

// Record numbers are integers: ratings, measurements and temperature are
// stored in tenths (93.5 -> 935) and price in cents.
const (
	tenths = 10.0
	cents  = 100.0
)

// ========== Coffee Conversions ==========

// CoffeeToRecord converts a coffee and its sessions to an atproto record map.
// The coffee id is the record key, so it is not repeated in the record.
func CoffeeToRecord(coffee *models.Coffee) (map[string]interface{}, error) {
	if !ValidateRKey(coffee.ID) {
		return nil, fmt.Errorf("coffee id %q is not a valid record key", coffee.ID)
	}

	record := map[string]interface{}{
		"$type":      NSIDCoffee,
		"name":       coffee.Name,
		"roastLevel": string(coffee.RoastLevel),
		"createdAt":  coffee.DateAdded.UTC().Format(time.RFC3339Nano),
	}

	// Optional fields
	if coffee.Origin != nil {
		record["origin"] = *coffee.Origin
	}
	if coffee.Roaster != nil {
		record["roaster"] = *coffee.Roaster
	}
	if coffee.Price != nil && *coffee.Price > 0 {
		record["priceCents"] = scaled(*coffee.Price, cents)
	}
	if coffee.Description != "" {
		record["description"] = coffee.Description
	}

	// Sessions are embedded
	if len(coffee.BrewingSessions) > 0 {
		sessions := make([]map[string]interface{}, len(coffee.BrewingSessions))
		for i, s := range coffee.BrewingSessions {
			sessions[i] = sessionToRecord(s)
		}
		record["sessions"] = sessions
	}

	return record, nil
}

func sessionToRecord(s *models.BrewingSession) map[string]interface{} {
	session := map[string]interface{}{
		"id":         s.ID,
		"date":       s.Date.UTC().Format(time.RFC3339Nano),
		"rating":     scaled(s.Rating, tenths),
		"grindLevel": string(s.GrindLevel),
		"brewMethod": string(s.BrewMethod),
		"aroma":      scaled(s.Aroma, tenths),
		"acidity":    scaled(s.Acidity, tenths),
		"body":       scaled(s.Body, tenths),
		"flavor":     scaled(s.Flavor, tenths),
		"aftertaste": scaled(s.Aftertaste, tenths),
	}

	if s.Grinder != "" {
		session["grinder"] = s.Grinder
	}
	if v := models.NormalizeOptional(s.WaterTemperature); v != nil {
		session["temperature"] = scaled(*v, tenths)
	}
	if v := models.NormalizeOptional(s.BrewTime); v != nil {
		session["brewTime"] = scaled(*v, tenths)
	}
	if v := models.NormalizeOptional(s.CoffeeAmount); v != nil {
		session["coffeeAmount"] = scaled(*v, tenths)
	}
	if v := models.NormalizeOptional(s.WaterAmount); v != nil {
		session["waterAmount"] = scaled(*v, tenths)
	}
	if len(s.TastingNotes) > 0 {
		session["tastingNotes"] = append([]string{}, s.TastingNotes...)
	}
	if s.SessionNotes != "" {
		session["notes"] = s.SessionNotes
	}
	return session
}

// RecordToCoffee converts an atproto record map to a coffee. The atURI must
// name the record; its key becomes the coffee id.
func RecordToCoffee(record map[string]interface{}, atURI string) (*models.Coffee, error) {
	parsedURI, err := syntax.ParseATURI(atURI)
	if err != nil {
		return nil, fmt.Errorf("invalid AT-URI: %w", err)
	}

	coffee := &models.Coffee{
		ID:              parsedURI.RecordKey().String(),
		RoastLevel:      models.RoastMedium,
		BrewingSessions: []*models.BrewingSession{},
	}
	if coffee.ID == "" {
		return nil, fmt.Errorf("record key is required")
	}

	// Required field: name
	name, ok := record["name"].(string)
	if !ok {
		return nil, fmt.Errorf("name is required")
	}
	coffee.Name = name

	// Required field: createdAt
	createdAt, err := timeField(record, "createdAt")
	if err != nil {
		return nil, err
	}
	coffee.DateAdded = createdAt

	// Optional fields
	if roastLevel, ok := record["roastLevel"].(string); ok {
		if level, ok := models.ParseRoastLevel(roastLevel); ok {
			coffee.RoastLevel = level
		}
	}
	if origin, ok := record["origin"].(string); ok {
		coffee.Origin = models.String(origin)
	}
	if roaster, ok := record["roaster"].(string); ok {
		coffee.Roaster = models.String(roaster)
	}
	if price, ok := numberField(record, "priceCents"); ok {
		coffee.Price = models.NormalizeOptional(models.Float(price / cents))
	}
	if description, ok := record["description"].(string); ok {
		coffee.Description = description
	}

	for i, raw := range sliceField(record, "sessions") {
		sessionMap, ok := raw.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("session %d is not an object", i)
		}
		session, err := recordToSession(sessionMap)
		if err != nil {
			return nil, fmt.Errorf("session %d: %w", i, err)
		}
		coffee.Attach(session)
	}

	return coffee, nil
}

func recordToSession(record map[string]interface{}) (*models.BrewingSession, error) {
	session := models.NewBrewingSession()

	id, ok := record["id"].(string)
	if !ok || id == "" {
		return nil, fmt.Errorf("id is required")
	}
	session.ID = id

	date, err := timeField(record, "date")
	if err != nil {
		return nil, err
	}
	session.Date = date

	if v, ok := numberField(record, "rating"); ok {
		session.Rating = v / tenths
	}
	if grind, ok := record["grindLevel"].(string); ok {
		if level, ok := models.ParseGrindLevel(grind); ok {
			session.GrindLevel = level
		}
	}
	if method, ok := record["brewMethod"].(string); ok {
		if m, ok := models.ParseBrewMethod(method); ok {
			session.BrewMethod = m
		}
	}
	if grinder, ok := record["grinder"].(string); ok {
		session.Grinder = grinder
	}
	session.WaterTemperature = optionalTenths(record, "temperature")
	session.BrewTime = optionalTenths(record, "brewTime")
	session.CoffeeAmount = optionalTenths(record, "coffeeAmount")
	session.WaterAmount = optionalTenths(record, "waterAmount")
	for _, raw := range sliceField(record, "tastingNotes") {
		if note, ok := raw.(string); ok {
			session.TastingNotes = append(session.TastingNotes, note)
		}
	}
	if notes, ok := record["notes"].(string); ok {
		session.SessionNotes = notes
	}

	for key, dst := range map[string]*float64{
		"aroma":      &session.Aroma,
		"acidity":    &session.Acidity,
		"body":       &session.Body,
		"flavor":     &session.Flavor,
		"aftertaste": &session.Aftertaste,
	} {
		if v, ok := numberField(record, key); ok {
			*dst = v / tenths
		}
	}

	return session, nil
}

// ========== Field Helpers ==========

func scaled(v, factor float64) int64 {
	return int64(math.Round(v * factor))
}

// numberField reads a number that may be an int (built locally) or a float64
// or json.Number (decoded from the wire).
func numberField(record map[string]interface{}, key string) (float64, bool) {
	switch v := record[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}

func optionalTenths(record map[string]interface{}, key string) *float64 {
	v, ok := numberField(record, key)
	if !ok {
		return nil
	}
	return models.NormalizeOptional(models.Float(v / tenths))
}

func timeField(record map[string]interface{}, key string) (time.Time, error) {
	s, ok := record[key].(string)
	if !ok {
		return time.Time{}, fmt.Errorf("%s is required", key)
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s format: %w", key, err)
	}
	return t, nil
}

// sliceField accepts []interface{} from the wire and the typed slices
// CoffeeToRecord builds.
func sliceField(record map[string]interface{}, key string) []interface{} {
	switch v := record[key].(type) {
	case []interface{}:
		return v
	case []map[string]interface{}:
		out := make([]interface{}, len(v))
		for i, m := range v {
			out[i] = m
		}
		return out
	case []string:
		out := make([]interface{}, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out
	}
	return nil
}
