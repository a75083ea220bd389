package models

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Default values for a new brewing session.
const (
	DefaultRating    = 3.0
	MinRating        = 1.0
	MaxRating        = 5.0
	RatingStep       = 0.1
	DefaultSubRating = 3.0
)

// Coffee is a purchased or tried coffee variety. It owns its brewing sessions:
// deleting a coffee deletes every session attached to it.
type Coffee struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	Origin          *string           `json:"origin,omitempty"`
	Roaster         *string           `json:"roaster,omitempty"`
	Price           *float64          `json:"price,omitempty"`
	RoastLevel      RoastLevel        `json:"roast_level"`
	Description     string            `json:"description"`
	DateAdded       time.Time         `json:"date_added"`
	BrewingSessions []*BrewingSession `json:"brewing_sessions"`
}

// BrewingSession is one dated attempt to brew a coffee.
type BrewingSession struct {
	ID string `json:"id"`
	// CoffeeID points back at the owning coffee. It is used for lookups only.
	CoffeeID         string     `json:"coffee_id"`
	Date             time.Time  `json:"date"`
	Rating           float64    `json:"rating"`
	GrindLevel       GrindLevel `json:"grind_level"`
	BrewMethod       BrewMethod `json:"brew_method"`
	Grinder          string     `json:"grinder"`
	WaterTemperature *float64   `json:"water_temperature,omitempty"` // °C
	BrewTime         *float64   `json:"brew_time,omitempty"`         // seconds
	CoffeeAmount     *float64   `json:"coffee_amount,omitempty"`     // grams
	WaterAmount      *float64   `json:"water_amount,omitempty"`      // ml
	TastingNotes     []string   `json:"tasting_notes"`
	SessionNotes     string     `json:"session_notes"`
	Aroma            float64    `json:"aroma"`
	Acidity          float64    `json:"acidity"`
	Body             float64    `json:"body"`
	Flavor           float64    `json:"flavor"`
	Aftertaste       float64    `json:"aftertaste"`
}

// NewCoffee returns a coffee with a fresh id and the default field values.
func NewCoffee(name string) *Coffee {
	return &Coffee{
		ID:              uuid.NewString(),
		Name:            name,
		RoastLevel:      RoastMedium,
		DateAdded:       time.Now(),
		BrewingSessions: []*BrewingSession{},
	}
}

// NewBrewingSession returns a session dated now with the default ratings.
func NewBrewingSession() *BrewingSession {
	return &BrewingSession{
		ID:           uuid.NewString(),
		Date:         time.Now(),
		Rating:       DefaultRating,
		GrindLevel:   GrindMedium,
		BrewMethod:   MethodDrip,
		TastingNotes: []string{},
		Aroma:        DefaultSubRating,
		Acidity:      DefaultSubRating,
		Body:         DefaultSubRating,
		Flavor:       DefaultSubRating,
		Aftertaste:   DefaultSubRating,
	}
}

// AverageRating is the mean rating of all sessions, or 0 when there are none.
func (c *Coffee) AverageRating() float64 {
	if len(c.BrewingSessions) == 0 {
		return 0.0
	}
	var sum float64
	for _, s := range c.BrewingSessions {
		sum += s.Rating
	}
	return sum / float64(len(c.BrewingSessions))
}

// SortedSessions returns the sessions ordered by date, most recent first.
// The coffee's own slice is left untouched.
func (c *Coffee) SortedSessions() []*BrewingSession {
	sessions := make([]*BrewingSession, len(c.BrewingSessions))
	copy(sessions, c.BrewingSessions)
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].Date.After(sessions[j].Date)
	})
	return sessions
}

// Session finds a session by id.
func (c *Coffee) Session(id string) (*BrewingSession, bool) {
	for _, s := range c.BrewingSessions {
		if s.ID == id {
			return s, true
		}
	}
	return nil, false
}

// Attach links a session to this coffee and sets its back-reference.
func (c *Coffee) Attach(s *BrewingSession) {
	s.CoffeeID = c.ID
	c.BrewingSessions = append(c.BrewingSessions, s)
}

// Clone returns a deep copy.
func (c *Coffee) Clone() *Coffee {
	if c == nil {
		return nil
	}
	out := *c
	out.Origin = cloneString(c.Origin)
	out.Roaster = cloneString(c.Roaster)
	out.Price = cloneFloat(c.Price)
	out.BrewingSessions = make([]*BrewingSession, len(c.BrewingSessions))
	for i, s := range c.BrewingSessions {
		out.BrewingSessions[i] = s.Clone()
	}
	return &out
}

// Clone returns a deep copy.
func (s *BrewingSession) Clone() *BrewingSession {
	if s == nil {
		return nil
	}
	out := *s
	out.WaterTemperature = cloneFloat(s.WaterTemperature)
	out.BrewTime = cloneFloat(s.BrewTime)
	out.CoffeeAmount = cloneFloat(s.CoffeeAmount)
	out.WaterAmount = cloneFloat(s.WaterAmount)
	out.TastingNotes = append([]string{}, s.TastingNotes...)
	return &out
}

// Normalize applies the zero-as-absent convention to the optional measurements.
// A legitimate zero reading cannot be told apart from "unset"; that loss is accepted.
func (s *BrewingSession) Normalize() {
	s.WaterTemperature = NormalizeOptional(s.WaterTemperature)
	s.BrewTime = NormalizeOptional(s.BrewTime)
	s.CoffeeAmount = NormalizeOptional(s.CoffeeAmount)
	s.WaterAmount = NormalizeOptional(s.WaterAmount)
	if s.TastingNotes == nil {
		s.TastingNotes = []string{}
	}
}

// Normalize applies the zero-as-absent convention to the coffee and its sessions.
func (c *Coffee) Normalize() {
	c.Price = NormalizeOptional(c.Price)
	if c.RoastLevel == "" {
		c.RoastLevel = RoastMedium
	}
	if c.BrewingSessions == nil {
		c.BrewingSessions = []*BrewingSession{}
	}
	for _, s := range c.BrewingSessions {
		s.Normalize()
	}
}

// NormalizeOptional maps nil and non-positive values to nil.
func NormalizeOptional(v *float64) *float64 {
	if v == nil || *v <= 0 {
		return nil
	}
	return Float(*v)
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

// String returns a pointer to s, or nil for the empty string.
func String(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

// CoffeeEntry is the flat record written by early versions of the app: one coffee
// and one brew folded into a single object. It is only read for import and written
// for export; it is never persisted.
type CoffeeEntry struct {
	ID           string
	Name         string
	Date         time.Time
	Rating       float64
	Price        *float64
	GrindLevel   GrindLevel
	Grinder      string
	BrewMethod   BrewMethod
	Origin       *string
	RoastLevel   RoastLevel
	TastingNotes []string
	OverallNotes string
	Aroma        float64
	Acidity      float64
	Body         float64
	Flavor       float64
	Aftertaste   float64
}

// NewCoffeeEntry returns an entry carrying the legacy defaults.
func NewCoffeeEntry() CoffeeEntry {
	return CoffeeEntry{
		ID:           uuid.NewString(),
		Date:         time.Now(),
		Rating:       DefaultRating,
		GrindLevel:   GrindMedium,
		BrewMethod:   MethodDrip,
		RoastLevel:   RoastMedium,
		TastingNotes: []string{},
		Aroma:        DefaultSubRating,
		Acidity:      DefaultSubRating,
		Body:         DefaultSubRating,
		Flavor:       DefaultSubRating,
		Aftertaste:   DefaultSubRating,
	}
}
