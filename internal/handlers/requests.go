package handlers

import (
	"fmt"
	"strings"
	"time"

	"coffeetime/internal/models"
)

// coffeeRequest is the body of coffee create and update calls. Absent fields
// keep their current value.
type coffeeRequest struct {
	Name        *string  `json:"name"`
	Origin      *string  `json:"origin"`
	Roaster     *string  `json:"roaster"`
	Price       *float64 `json:"price"`
	RoastLevel  *string  `json:"roast_level"`
	Description *string  `json:"description"`
}

func (req *coffeeRequest) apply(c *models.Coffee) error {
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return fmt.Errorf("name must not be empty")
		}
		c.Name = name
	}
	if req.Origin != nil {
		c.Origin = models.String(strings.TrimSpace(*req.Origin))
	}
	if req.Roaster != nil {
		c.Roaster = models.String(strings.TrimSpace(*req.Roaster))
	}
	if req.Price != nil {
		c.Price = models.Float(*req.Price)
	}
	if req.RoastLevel != nil {
		level, ok := models.ParseRoastLevel(*req.RoastLevel)
		if !ok {
			return fmt.Errorf("unknown roast level %q", *req.RoastLevel)
		}
		c.RoastLevel = level
	}
	if req.Description != nil {
		c.Description = *req.Description
	}
	return nil
}

// sessionRequest is the body of session create and update calls. Absent
// fields keep their current value.
type sessionRequest struct {
	Date             *time.Time `json:"date"`
	Rating           *float64   `json:"rating"`
	GrindLevel       *string    `json:"grind_level"`
	BrewMethod       *string    `json:"brew_method"`
	Grinder          *string    `json:"grinder"`
	WaterTemperature *float64   `json:"water_temperature"`
	BrewTime         *float64   `json:"brew_time"`
	CoffeeAmount     *float64   `json:"coffee_amount"`
	WaterAmount      *float64   `json:"water_amount"`
	TastingNotes     []string   `json:"tasting_notes"`
	SessionNotes     *string    `json:"session_notes"`
	Aroma            *float64   `json:"aroma"`
	Acidity          *float64   `json:"acidity"`
	Body             *float64   `json:"body"`
	Flavor           *float64   `json:"flavor"`
	Aftertaste       *float64   `json:"aftertaste"`
}

func (req *sessionRequest) apply(s *models.BrewingSession) error {
	if req.Date != nil {
		s.Date = *req.Date
	}
	if req.GrindLevel != nil {
		level, ok := models.ParseGrindLevel(*req.GrindLevel)
		if !ok {
			return fmt.Errorf("unknown grind level %q", *req.GrindLevel)
		}
		s.GrindLevel = level
	}
	if req.BrewMethod != nil {
		method, ok := models.ParseBrewMethod(*req.BrewMethod)
		if !ok {
			return fmt.Errorf("unknown brew method %q", *req.BrewMethod)
		}
		s.BrewMethod = method
	}
	if req.Grinder != nil {
		s.Grinder = strings.TrimSpace(*req.Grinder)
	}
	if req.WaterTemperature != nil {
		s.WaterTemperature = models.Float(*req.WaterTemperature)
	}
	if req.BrewTime != nil {
		s.BrewTime = models.Float(*req.BrewTime)
	}
	if req.CoffeeAmount != nil {
		s.CoffeeAmount = models.Float(*req.CoffeeAmount)
	}
	if req.WaterAmount != nil {
		s.WaterAmount = models.Float(*req.WaterAmount)
	}
	if req.TastingNotes != nil {
		notes := make([]string, 0, len(req.TastingNotes))
		for _, n := range req.TastingNotes {
			if strings.TrimSpace(n) != "" {
				notes = append(notes, n)
			}
		}
		s.TastingNotes = notes
	}
	if req.SessionNotes != nil {
		s.SessionNotes = *req.SessionNotes
	}

	ratings := []struct {
		name string
		src  *float64
		dst  *float64
	}{
		{"rating", req.Rating, &s.Rating},
		{"aroma", req.Aroma, &s.Aroma},
		{"acidity", req.Acidity, &s.Acidity},
		{"body", req.Body, &s.Body},
		{"flavor", req.Flavor, &s.Flavor},
		{"aftertaste", req.Aftertaste, &s.Aftertaste},
	}
	for _, r := range ratings {
		if r.src == nil {
			continue
		}
		if *r.src < models.MinRating || *r.src > models.MaxRating {
			return fmt.Errorf("%s must be between %.0f and %.0f", r.name, models.MinRating, models.MaxRating)
		}
		*r.dst = *r.src
	}
	return nil
}

// coffeeResponse adds the derived average rating to a coffee.
type coffeeResponse struct {
	*models.Coffee
	AverageRating float64 `json:"average_rating"`
}

func newCoffeeResponse(c *models.Coffee) coffeeResponse {
	return coffeeResponse{Coffee: c, AverageRating: c.AverageRating()}
}
