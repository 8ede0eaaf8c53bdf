package agronomy

import (
	"fmt"
	"strings"
)

// SoilTexture selects the threshold and dose-cap tables
type SoilTexture string

const (
	TextureLight  SoilTexture = "light"
	TextureMedium SoilTexture = "medium"
	TextureHeavy  SoilTexture = "heavy"
)

// Textures lists every supported texture class, lightest first
var Textures = []SoilTexture{TextureLight, TextureMedium, TextureHeavy}

// Valid reports whether t is a known texture class
func (t SoilTexture) Valid() bool {
	switch t {
	case TextureLight, TextureMedium, TextureHeavy:
		return true
	}
	return false
}

// ParseSoilTexture accepts the canonical names plus the lab-report aliases
func ParseSoilTexture(s string) (SoilTexture, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "light", "l", "lehka", "sandy":
		return TextureLight, nil
	case "medium", "m", "stredni", "loam":
		return TextureMedium, nil
	case "heavy", "h", "tezka", "clay":
		return TextureHeavy, nil
	}
	return "", &FieldError{Field: "soil_texture", Reason: fmt.Sprintf("unknown texture %q", s)}
}

// LandUse selects target pH and the annual CaO normative
type LandUse string

const (
	LandUseArable    LandUse = "arable"
	LandUseGrassland LandUse = "grassland"
)

// Valid reports whether u is a known land use
func (u LandUse) Valid() bool {
	return u == LandUseArable || u == LandUseGrassland
}

// ParseLandUse parses a land use, defaulting an empty string to arable
func ParseLandUse(s string) (LandUse, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "arable", "orna":
		return LandUseArable, nil
	case "grassland", "ttp", "pasture":
		return LandUseGrassland, nil
	}
	return "", &FieldError{Field: "land_use", Reason: fmt.Sprintf("unknown land use %q", s)}
}

// Nutrient identifies a soil-test quantity
type Nutrient string

const (
	NutrientPH Nutrient = "pH"
	NutrientP  Nutrient = "P"
	NutrientK  Nutrient = "K"
	NutrientMg Nutrient = "Mg"
	NutrientCa Nutrient = "Ca"
	NutrientS  Nutrient = "S"
)

// Nutrients lists every classified quantity in report order
var Nutrients = []Nutrient{NutrientPH, NutrientP, NutrientK, NutrientMg, NutrientCa, NutrientS}

// Category is the ordinal sufficiency class of a reading value.
// The same five ordinals are used for pH with acidity labels.
type Category int

const (
	CategoryLow Category = iota
	CategoryMarginal
	CategoryGood
	CategoryHigh
	CategoryVeryHigh
)

// pH band aliases
const (
	PHExtremelyAcidic   = CategoryLow
	PHStronglyAcidic    = CategoryMarginal
	PHNeutral           = CategoryGood
	PHWeaklyAlkaline    = CategoryHigh
	PHExtremelyAlkaline = CategoryVeryHigh
)

var categoryNames = [...]string{"low", "marginal", "good", "high", "very_high"}

var phCategoryNames = [...]string{
	"extremely_acidic", "strongly_acidic", "neutral", "weakly_alkaline", "extremely_alkaline",
}

func (c Category) String() string {
	if c < CategoryLow || c > CategoryVeryHigh {
		return fmt.Sprintf("category(%d)", int(c))
	}
	return categoryNames[c]
}

// Label returns the display name of c for the given nutrient
func (c Category) Label(n Nutrient) string {
	if n == NutrientPH && c >= CategoryLow && c <= CategoryVeryHigh {
		return phCategoryNames[c]
	}
	return c.String()
}

// Deficient reports whether c is Low or Marginal
func (c Category) Deficient() bool {
	return c <= CategoryMarginal
}

// ParseCategory parses a nutrient category name
func ParseCategory(s string) (Category, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range categoryNames {
		if n == name {
			return Category(i), nil
		}
	}
	return 0, &FieldError{Field: "category", Reason: fmt.Sprintf("unknown category %q", s)}
}

// Reading holds the values of one soil sample (Mehlich 3, mg/kg; pH in CaCl2)
type Reading struct {
	PH float64 `json:"ph"`
	P  float64 `json:"p"`
	K  float64 `json:"k"`
	Mg float64 `json:"mg"`
	Ca float64 `json:"ca"`
	S  float64 `json:"s"`
}

// Value returns the reading value for n
func (r Reading) Value(n Nutrient) float64 {
	switch n {
	case NutrientPH:
		return r.PH
	case NutrientP:
		return r.P
	case NutrientK:
		return r.K
	case NutrientMg:
		return r.Mg
	case NutrientCa:
		return r.Ca
	case NutrientS:
		return r.S
	}
	return 0
}
