package models

// RoastLevel is the roast degree of a coffee, lightest first.
type RoastLevel string

const (
	RoastLight       RoastLevel = "light"
	RoastMediumLight RoastLevel = "medium-light"
	RoastMedium      RoastLevel = "medium"
	RoastMediumDark  RoastLevel = "medium-dark"
	RoastDark        RoastLevel = "dark"
)

var roastLevels = []RoastLevel{RoastLight, RoastMediumLight, RoastMedium, RoastMediumDark, RoastDark}

var roastLabels = map[RoastLevel]string{
	RoastLight:       "Light",
	RoastMediumLight: "Medium-Light",
	RoastMedium:      "Medium",
	RoastMediumDark:  "Medium-Dark",
	RoastDark:        "Dark",
}

// RoastLevels lists every roast level in order.
func RoastLevels() []RoastLevel {
	return append([]RoastLevel(nil), roastLevels...)
}

// ParseRoastLevel accepts a canonical key.
func ParseRoastLevel(s string) (RoastLevel, bool) {
	return parseEnum(s, roastLevels)
}

// Label returns the display label.
func (r RoastLevel) Label() string { return roastLabels[r] }

// GrindLevel is the grind size, coarsest first.
type GrindLevel string

const (
	GrindExtraCoarse  GrindLevel = "extra-coarse"
	GrindCoarse       GrindLevel = "coarse"
	GrindMediumCoarse GrindLevel = "medium-coarse"
	GrindMedium       GrindLevel = "medium"
	GrindMediumFine   GrindLevel = "medium-fine"
	GrindFine         GrindLevel = "fine"
	GrindExtraFine    GrindLevel = "extra-fine"
)

var grindLevels = []GrindLevel{
	GrindExtraCoarse, GrindCoarse, GrindMediumCoarse, GrindMedium, GrindMediumFine, GrindFine, GrindExtraFine,
}

var grindLabels = map[GrindLevel]string{
	GrindExtraCoarse:  "Extra Coarse",
	GrindCoarse:       "Coarse",
	GrindMediumCoarse: "Medium-Coarse",
	GrindMedium:       "Medium",
	GrindMediumFine:   "Medium-Fine",
	GrindFine:         "Fine",
	GrindExtraFine:    "Extra Fine",
}

// GrindLevels lists every grind level in order.
func GrindLevels() []GrindLevel {
	return append([]GrindLevel(nil), grindLevels...)
}

// ParseGrindLevel accepts a canonical key.
func ParseGrindLevel(s string) (GrindLevel, bool) {
	return parseEnum(s, grindLevels)
}

// Label returns the display label.
func (g GrindLevel) Label() string { return grindLabels[g] }

// BrewMethod is the preparation method of a session.
type BrewMethod string

const (
	MethodDrip        BrewMethod = "drip"
	MethodEspresso    BrewMethod = "espresso"
	MethodFrenchPress BrewMethod = "french-press"
	MethodPourOver    BrewMethod = "pour-over"
	MethodAeropress   BrewMethod = "aeropress"
	MethodChemex      BrewMethod = "chemex"
	MethodV60         BrewMethod = "v60"
	MethodColdBrew    BrewMethod = "cold-brew"
	MethodMoka        BrewMethod = "moka"
	MethodTurkish     BrewMethod = "turkish"
)

var brewMethods = []BrewMethod{
	MethodDrip, MethodEspresso, MethodFrenchPress, MethodPourOver, MethodAeropress,
	MethodChemex, MethodV60, MethodColdBrew, MethodMoka, MethodTurkish,
}

var brewMethodLabels = map[BrewMethod]string{
	MethodDrip:        "Drip",
	MethodEspresso:    "Espresso",
	MethodFrenchPress: "French Press",
	MethodPourOver:    "Pour Over",
	MethodAeropress:   "AeroPress",
	MethodChemex:      "Chemex",
	MethodV60:         "V60",
	MethodColdBrew:    "Cold Brew",
	MethodMoka:        "Moka",
	MethodTurkish:     "Turkish",
}

// BrewMethods lists every brew method.
func BrewMethods() []BrewMethod {
	return append([]BrewMethod(nil), brewMethods...)
}

// ParseBrewMethod accepts a canonical key.
func ParseBrewMethod(s string) (BrewMethod, bool) {
	return parseEnum(s, brewMethods)
}

// Label returns the display label.
func (m BrewMethod) Label() string { return brewMethodLabels[m] }

// Appearance is the user's theme preference.
type Appearance string

const (
	AppearanceSystem Appearance = "system"
	AppearanceLight  Appearance = "light"
	AppearanceDark   Appearance = "dark"
)

var appearances = []Appearance{AppearanceSystem, AppearanceLight, AppearanceDark}

// ParseAppearance accepts a canonical key.
func ParseAppearance(s string) (Appearance, bool) {
	return parseEnum(s, appearances)
}

func parseEnum[T ~string](s string, values []T) (T, bool) {
	for _, v := range values {
		if string(v) == s {
			return v, true
		}
	}
	var zero T
	return zero, false
}
