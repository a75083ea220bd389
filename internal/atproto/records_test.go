package atproto

import (
	"encoding/json"
	"testing"
	"time"

	"coffeetime/internal/models"
)

const testCoffeeID = "0b9e1f6a-4c3d-4f1e-8a2b-9c7d6e5f4a3b"

func testCoffee() *models.Coffee {
	coffee := &models.Coffee{
		ID:              testCoffeeID,
		Name:            "Ethiopia Guji",
		Origin:          models.String("Ethiopia"),
		Roaster:         models.String("Tim Wendelboe"),
		Price:           models.Float(17.5),
		RoastLevel:      models.RoastLight,
		Description:     "Peach and bergamot",
		DateAdded:       time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC),
		BrewingSessions: []*models.BrewingSession{},
	}
	session := models.NewBrewingSession()
	session.ID = "5e2a1c3b-7d6f-4e8a-9b0c-1d2e3f4a5b6c"
	session.Date = time.Date(2025, 1, 11, 7, 30, 0, 0, time.UTC)
	session.Rating = 4.3
	session.BrewMethod = models.MethodV60
	session.GrindLevel = models.GrindMediumFine
	session.Grinder = "Comandante"
	session.WaterTemperature = models.Float(93.5)
	session.BrewTime = models.Float(165)
	session.CoffeeAmount = models.Float(15)
	session.WaterAmount = models.Float(250)
	session.TastingNotes = []string{"peach", "bergamot"}
	session.SessionNotes = "Slightly under-extracted"
	session.Aroma = 4.6
	coffee.Attach(session)
	return coffee
}

func TestCoffeeToRecord(t *testing.T) {
	t.Run("full coffee with all fields", func(t *testing.T) {
		record, err := CoffeeToRecord(testCoffee())
		if err != nil {
			t.Fatalf("CoffeeToRecord() error = %v", err)
		}

		// Check required fields
		if record["$type"] != NSIDCoffee {
			t.Errorf("$type = %v, want %v", record["$type"], NSIDCoffee)
		}
		if record["name"] != "Ethiopia Guji" {
			t.Errorf("name = %v, want %v", record["name"], "Ethiopia Guji")
		}
		if record["createdAt"] != "2025-01-10T12:00:00Z" {
			t.Errorf("createdAt = %v, want %v", record["createdAt"], "2025-01-10T12:00:00Z")
		}
		if record["priceCents"] != int64(1750) {
			t.Errorf("priceCents = %v, want %v", record["priceCents"], 1750)
		}

		sessions, ok := record["sessions"].([]map[string]interface{})
		if !ok {
			t.Fatalf("sessions is not []map[string]interface{}")
		}
		if len(sessions) != 1 {
			t.Fatalf("len(sessions) = %v, want 1", len(sessions))
		}
		// Temperature should be converted to tenths (93.5 -> 935)
		if sessions[0]["temperature"] != int64(935) {
			t.Errorf("temperature = %v, want %v", sessions[0]["temperature"], 935)
		}
		if sessions[0]["rating"] != int64(43) {
			t.Errorf("rating = %v, want %v", sessions[0]["rating"], 43)
		}
		if sessions[0]["brewMethod"] != "v60" {
			t.Errorf("brewMethod = %v, want v60", sessions[0]["brewMethod"])
		}
	})

	t.Run("minimal coffee", func(t *testing.T) {
		coffee := models.NewCoffee("Plain")
		record, err := CoffeeToRecord(coffee)
		if err != nil {
			t.Fatalf("CoffeeToRecord() error = %v", err)
		}

		// Optional fields should be omitted
		for _, key := range []string{"origin", "roaster", "priceCents", "description", "sessions"} {
			if _, ok := record[key]; ok {
				t.Errorf("%s should be omitted when empty", key)
			}
		}
	})

	t.Run("absent measurements omitted", func(t *testing.T) {
		coffee := models.NewCoffee("Sparse")
		session := models.NewBrewingSession()
		session.WaterTemperature = models.Float(0)
		coffee.Attach(session)

		record, _ := CoffeeToRecord(coffee)
		sessions := record["sessions"].([]map[string]interface{})
		for _, key := range []string{"temperature", "brewTime", "coffeeAmount", "waterAmount", "tastingNotes", "notes", "grinder"} {
			if _, ok := sessions[0][key]; ok {
				t.Errorf("%s should be omitted when absent", key)
			}
		}
	})

	t.Run("invalid id", func(t *testing.T) {
		coffee := models.NewCoffee("Bad")
		coffee.ID = "has space"
		if _, err := CoffeeToRecord(coffee); err == nil {
			t.Error("CoffeeToRecord() should reject an id that is not a record key")
		}
	})
}

func TestRecordToCoffee(t *testing.T) {
	uri := BuildATURI("did:plc:test", NSIDCoffee, testCoffeeID)

	t.Run("round trip through JSON", func(t *testing.T) {
		want := testCoffee()
		record, err := CoffeeToRecord(want)
		if err != nil {
			t.Fatalf("CoffeeToRecord() error = %v", err)
		}

		// Records come back from the PDS as decoded JSON.
		data, _ := json.Marshal(record)
		var decoded map[string]interface{}
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}

		got, err := RecordToCoffee(decoded, uri)
		if err != nil {
			t.Fatalf("RecordToCoffee() error = %v", err)
		}

		if got.ID != want.ID || got.Name != want.Name || got.Description != want.Description {
			t.Errorf("coffee = %+v", got)
		}
		if !got.DateAdded.Equal(want.DateAdded) {
			t.Errorf("DateAdded = %v, want %v", got.DateAdded, want.DateAdded)
		}
		if got.Price == nil || *got.Price != 17.5 {
			t.Errorf("Price = %v, want 17.5", got.Price)
		}
		if models.Deref(got.Roaster) != "Tim Wendelboe" {
			t.Errorf("Roaster = %v", got.Roaster)
		}
		if len(got.BrewingSessions) != 1 {
			t.Fatalf("sessions = %d, want 1", len(got.BrewingSessions))
		}

		s, ws := got.BrewingSessions[0], want.BrewingSessions[0]
		if s.ID != ws.ID || s.CoffeeID != want.ID {
			t.Errorf("session ids = %q/%q", s.ID, s.CoffeeID)
		}
		if s.Rating != 4.3 || s.Aroma != 4.6 || s.Body != models.DefaultSubRating {
			t.Errorf("ratings = %v/%v/%v", s.Rating, s.Aroma, s.Body)
		}
		if s.WaterTemperature == nil || *s.WaterTemperature != 93.5 {
			t.Errorf("WaterTemperature = %v, want 93.5", s.WaterTemperature)
		}
		if s.BrewMethod != models.MethodV60 || s.GrindLevel != models.GrindMediumFine {
			t.Errorf("method/grind = %q/%q", s.BrewMethod, s.GrindLevel)
		}
		if len(s.TastingNotes) != 2 || s.TastingNotes[1] != "bergamot" {
			t.Errorf("TastingNotes = %v", s.TastingNotes)
		}
		if !s.Date.Equal(ws.Date) {
			t.Errorf("Date = %v, want %v", s.Date, ws.Date)
		}
	})

	t.Run("direct map without JSON", func(t *testing.T) {
		record, _ := CoffeeToRecord(testCoffee())
		got, err := RecordToCoffee(record, uri)
		if err != nil {
			t.Fatalf("RecordToCoffee() error = %v", err)
		}
		if len(got.BrewingSessions) != 1 || len(got.BrewingSessions[0].TastingNotes) != 2 {
			t.Errorf("sessions = %+v", got.BrewingSessions)
		}
	})

	tests := []struct {
		name   string
		record map[string]interface{}
		uri    string
	}{
		{"missing name", map[string]interface{}{"createdAt": "2025-01-10T12:00:00Z"}, uri},
		{"missing createdAt", map[string]interface{}{"name": "x"}, uri},
		{"bad createdAt", map[string]interface{}{"name": "x", "createdAt": "yesterday"}, uri},
		{"bad uri", map[string]interface{}{"name": "x", "createdAt": "2025-01-10T12:00:00Z"}, "nope"},
		{"session without id", map[string]interface{}{
			"name":      "x",
			"createdAt": "2025-01-10T12:00:00Z",
			"sessions":  []interface{}{map[string]interface{}{"date": "2025-01-10T12:00:00Z"}},
		}, uri},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := RecordToCoffee(tt.record, tt.uri); err == nil {
				t.Error("RecordToCoffee() should fail")
			}
		})
	}

	t.Run("unknown enums fall back", func(t *testing.T) {
		record := map[string]interface{}{
			"name":       "x",
			"createdAt":  "2025-01-10T12:00:00Z",
			"roastLevel": "nuclear",
		}
		got, err := RecordToCoffee(record, uri)
		if err != nil {
			t.Fatalf("RecordToCoffee() error = %v", err)
		}
		if got.RoastLevel != models.RoastMedium {
			t.Errorf("RoastLevel = %q, want medium", got.RoastLevel)
		}
	})
}
