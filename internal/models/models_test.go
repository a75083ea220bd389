package models

import (
	"math"
	"testing"
	"time"
)

func TestAverageRating(t *testing.T) {
	t.Run("no sessions is zero", func(t *testing.T) {
		c := NewCoffee("Empty")
		if got := c.AverageRating(); got != 0.0 {
			t.Errorf("AverageRating() = %v, want 0", got)
		}
		if math.IsNaN(c.AverageRating()) {
			t.Error("AverageRating() should never be NaN")
		}
	})

	tests := []struct {
		name    string
		ratings []float64
		want    float64
	}{
		{"single", []float64{4.5}, 4.5},
		{"two", []float64{3.0, 4.0}, 3.5},
		{"three", []float64{1.0, 2.5, 5.0}, 8.5 / 3},
		{"fractional", []float64{4.1, 4.2, 4.3, 4.4}, 4.25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCoffee("Coffee")
			for _, r := range tt.ratings {
				s := NewBrewingSession()
				s.Rating = r
				c.Attach(s)
			}
			if got := c.AverageRating(); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("AverageRating() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewDefaults(t *testing.T) {
	c := NewCoffee("Yirgacheffe")
	if c.ID == "" {
		t.Error("NewCoffee should assign an id")
	}
	if c.RoastLevel != RoastMedium {
		t.Errorf("RoastLevel = %v, want %v", c.RoastLevel, RoastMedium)
	}
	if c.Description != "" {
		t.Errorf("Description = %q, want empty", c.Description)
	}

	s := NewBrewingSession()
	if s.Rating != 3.0 || s.Aroma != 3.0 || s.Aftertaste != 3.0 {
		t.Errorf("default ratings = %v/%v/%v, want 3.0", s.Rating, s.Aroma, s.Aftertaste)
	}
	if s.GrindLevel != GrindMedium {
		t.Errorf("GrindLevel = %v, want %v", s.GrindLevel, GrindMedium)
	}
	if s.BrewMethod != MethodDrip {
		t.Errorf("BrewMethod = %v, want %v", s.BrewMethod, MethodDrip)
	}
	if s.WaterTemperature != nil || s.BrewTime != nil || s.CoffeeAmount != nil || s.WaterAmount != nil {
		t.Error("optional measurements should default to absent")
	}
	if NewBrewingSession().ID == s.ID {
		t.Error("session ids should be unique")
	}
}

func TestAttach(t *testing.T) {
	c := NewCoffee("Kenya AA")
	s := NewBrewingSession()
	c.Attach(s)

	if s.CoffeeID != c.ID {
		t.Errorf("CoffeeID = %q, want %q", s.CoffeeID, c.ID)
	}
	if got, ok := c.Session(s.ID); !ok || got != s {
		t.Error("Session() should find the attached session")
	}
	if _, ok := c.Session("missing"); ok {
		t.Error("Session() should not find an unknown id")
	}
}

func TestSortedSessions(t *testing.T) {
	base := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	c := NewCoffee("Colombia")
	for _, offset := range []int{0, 48, 24} {
		s := NewBrewingSession()
		s.Date = base.Add(time.Duration(offset) * time.Hour)
		c.Attach(s)
	}

	sorted := c.SortedSessions()
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Date.After(sorted[i-1].Date) {
			t.Fatalf("sessions not sorted descending at %d", i)
		}
	}
	if c.BrewingSessions[0].Date != base {
		t.Error("SortedSessions should not reorder the coffee's slice")
	}
}

func TestNormalizeOptional(t *testing.T) {
	tests := []struct {
		name    string
		in      *float64
		wantNil bool
	}{
		{"nil", nil, true},
		{"zero", Float(0), true},
		{"negative", Float(-4), true},
		{"positive", Float(93.5), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeOptional(tt.in)
			if (got == nil) != tt.wantNil {
				t.Errorf("NormalizeOptional(%v) nil = %v, want %v", tt.in, got == nil, tt.wantNil)
			}
			if got != nil && *got != *tt.in {
				t.Errorf("NormalizeOptional() = %v, want %v", *got, *tt.in)
			}
		})
	}

	s := NewBrewingSession()
	s.WaterTemperature = Float(0)
	s.BrewTime = Float(-1)
	s.CoffeeAmount = Float(18)
	s.TastingNotes = nil
	s.Normalize()
	if s.WaterTemperature != nil || s.BrewTime != nil {
		t.Error("non-positive measurements should normalize to absent")
	}
	if s.CoffeeAmount == nil || *s.CoffeeAmount != 18 {
		t.Error("positive measurements should be kept")
	}
	if s.TastingNotes == nil {
		t.Error("tasting notes should normalize to an empty slice")
	}
}

func TestClone(t *testing.T) {
	c := NewCoffee("Sumatra")
	c.Origin = String("Indonesia")
	c.Price = Float(14.5)
	s := NewBrewingSession()
	s.TastingNotes = []string{"earthy"}
	s.WaterAmount = Float(250)
	c.Attach(s)

	cp := c.Clone()
	*cp.Origin = "Elsewhere"
	*cp.Price = 1
	cp.BrewingSessions[0].TastingNotes[0] = "changed"
	*cp.BrewingSessions[0].WaterAmount = 1

	if *c.Origin != "Indonesia" || *c.Price != 14.5 {
		t.Error("Clone should not alias coffee fields")
	}
	if s.TastingNotes[0] != "earthy" || *s.WaterAmount != 250 {
		t.Error("Clone should not alias session fields")
	}
}

func TestParseEnums(t *testing.T) {
	if got, ok := ParseRoastLevel("medium-dark"); !ok || got != RoastMediumDark {
		t.Errorf("ParseRoastLevel() = %v, %v", got, ok)
	}
	if _, ok := ParseRoastLevel("burnt"); ok {
		t.Error("ParseRoastLevel should reject unknown values")
	}
	if got, ok := ParseGrindLevel("extra-fine"); !ok || got != GrindExtraFine {
		t.Errorf("ParseGrindLevel() = %v, %v", got, ok)
	}
	if got, ok := ParseBrewMethod("pour-over"); !ok || got != MethodPourOver {
		t.Errorf("ParseBrewMethod() = %v, %v", got, ok)
	}
	if got, ok := ParseAppearance("dark"); !ok || got != AppearanceDark {
		t.Errorf("ParseAppearance() = %v, %v", got, ok)
	}

	if len(RoastLevels()) != 5 {
		t.Errorf("len(RoastLevels()) = %d, want 5", len(RoastLevels()))
	}
	if len(GrindLevels()) != 7 {
		t.Errorf("len(GrindLevels()) = %d, want 7", len(GrindLevels()))
	}
	if len(BrewMethods()) != 10 {
		t.Errorf("len(BrewMethods()) = %d, want 10", len(BrewMethods()))
	}
	for _, m := range BrewMethods() {
		if m.Label() == "" {
			t.Errorf("BrewMethod %q has no label", m)
		}
	}
}
