package agronomy

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// SeverityTier grades how far a pH is below target
type SeverityTier string

const (
	TierCriticalUrgent SeverityTier = "critical_urgent"
	TierUrgent         SeverityTier = "urgent"
	TierIntensive      SeverityTier = "intensive"
	TierStandard       SeverityTier = "standard"
	TierMaintenance    SeverityTier = "maintenance"
	TierPreventive     SeverityTier = "preventive"
)

// Intensive reports whether the tier is intensive or more severe
func (t SeverityTier) Intensive() bool {
	return t == TierCriticalUrgent || t == TierUrgent || t == TierIntensive
}

// Breakpoints are four ascending upper bounds; a value at or below
// Breakpoints[i] falls in category i, above the last in VeryHigh.
type Breakpoints []float64

// DoseCap bounds a single application in t CaO/ha
type DoseCap struct {
	Floor   float64 `yaml:"floor" json:"floor"`
	Ceiling float64 `yaml:"ceiling" json:"ceiling"`
}

// Methodology is the regional table set the engine is calibrated against.
// Engines copy it on construction; callers never share mutable tables.
type Methodology struct {
	Name string `yaml:"name" json:"name"`

	// P, K and Mg breakpoints per texture
	TextureThresholds map[Nutrient]map[SoilTexture]Breakpoints `yaml:"texture_thresholds" json:"texture_thresholds"`
	// Ca and S breakpoints shared by all textures
	SharedThresholds map[Nutrient]Breakpoints `yaml:"shared_thresholds" json:"shared_thresholds"`
	// strict upper bounds of the first four pH bands
	PHBands Breakpoints `yaml:"ph_bands" json:"ph_bands"`
	// strict upper pH bounds of critical-urgent, urgent, intensive and standard;
	// above the last the tier depends on the target
	SeverityBands Breakpoints `yaml:"severity_bands" json:"severity_bands"`

	TargetPH           map[LandUse]map[SoilTexture]float64 `yaml:"target_ph" json:"target_ph"`
	AnnualNormative    map[LandUse]map[SoilTexture]float64 `yaml:"annual_normative" json:"annual_normative"`
	SeverityMultiplier map[SeverityTier]float64            `yaml:"severity_multiplier" json:"severity_multiplier"`
	DoseCaps           map[SoilTexture]DoseCap             `yaml:"dose_caps" json:"dose_caps"`
	AcidificationRate  map[SoilTexture]float64             `yaml:"acidification_rate" json:"acidification_rate"`
	// t effective CaO/ha that closes ~63% of the headroom to the pH ceiling
	BufferCapacity map[SoilTexture]float64 `yaml:"buffer_capacity" json:"buffer_capacity"`

	MgOFactor          float64    `yaml:"mgo_factor" json:"mgo_factor"`
	CycleYears         float64    `yaml:"cycle_years" json:"cycle_years"`
	PHFloor            float64    `yaml:"ph_floor" json:"ph_floor"`
	PHCeiling          float64    `yaml:"ph_ceiling" json:"ph_ceiling"`
	CriticalDoseFactor float64    `yaml:"critical_dose_factor" json:"critical_dose_factor"`
	PHAfterWarning     float64    `yaml:"ph_after_warning" json:"ph_after_warning"`
	PHAfterCritical    float64    `yaml:"ph_after_critical" json:"ph_after_critical"`
	NearOptimum        [2]float64 `yaml:"near_optimum" json:"near_optimum"`
	// plausible lab pH range; anything outside is rejected
	PlausiblePH [2]float64 `yaml:"plausible_ph" json:"plausible_ph"`
}

// DefaultMethodology returns the Mehlich 3 tables for Central European arable
// and grassland soils.
func DefaultMethodology() Methodology {
	return Methodology{
		Name: "mehlich3-default",
		TextureThresholds: map[Nutrient]map[SoilTexture]Breakpoints{
			NutrientP: {
				TextureLight:  {50, 80, 115, 185},
				TextureMedium: {50, 80, 115, 185},
				TextureHeavy:  {50, 80, 115, 185},
			},
			NutrientK: {
				TextureLight:  {100, 160, 250, 380},
				TextureMedium: {105, 170, 260, 420},
				TextureHeavy:  {170, 260, 350, 540},
			},
			NutrientMg: {
				TextureLight:  {80, 135, 200, 325},
				TextureMedium: {105, 160, 250, 380},
				TextureHeavy:  {120, 220, 330, 400},
			},
		},
		SharedThresholds: map[Nutrient]Breakpoints{
			NutrientCa: {1000, 1700, 2600, 3500},
			NutrientS:  {10, 20, 30, 40},
		},
		PHBands:       Breakpoints{5.0, 5.5, 7.5, 8.0},
		SeverityBands: Breakpoints{4.5, 5.0, 5.5, 6.0},
		TargetPH: map[LandUse]map[SoilTexture]float64{
			LandUseArable:    {TextureLight: 6.0, TextureMedium: 6.5, TextureHeavy: 6.8},
			LandUseGrassland: {TextureLight: 5.5, TextureMedium: 6.0, TextureHeavy: 6.2},
		},
		AnnualNormative: map[LandUse]map[SoilTexture]float64{
			LandUseArable:    {TextureLight: 0.25, TextureMedium: 0.35, TextureHeavy: 0.45},
			LandUseGrassland: {TextureLight: 0.15, TextureMedium: 0.20, TextureHeavy: 0.25},
		},
		SeverityMultiplier: map[SeverityTier]float64{
			TierCriticalUrgent: 2.0,
			TierUrgent:         1.6,
			TierIntensive:      1.3,
			TierStandard:       1.0,
			TierMaintenance:    0.6,
			TierPreventive:     0,
		},
		DoseCaps: map[SoilTexture]DoseCap{
			TextureLight:  {Floor: 1.4, Ceiling: 1.5},
			TextureMedium: {Floor: 2.5, Ceiling: 3.0},
			TextureHeavy:  {Floor: 4.2, Ceiling: 5.0},
		},
		AcidificationRate: map[SoilTexture]float64{
			TextureLight:  0.09,
			TextureMedium: 0.07,
			TextureHeavy:  0.04,
		},
		BufferCapacity: map[SoilTexture]float64{
			TextureLight:  3.5,
			TextureMedium: 5.7,
			TextureHeavy:  9.0,
		},
		MgOFactor:          1.39,
		CycleYears:         6,
		PHFloor:            3.5,
		PHCeiling:          8.0,
		CriticalDoseFactor: 1.2,
		PHAfterWarning:     7.2,
		PHAfterCritical:    7.5,
		NearOptimum:        [2]float64{6.5, 7.0},
		PlausiblePH:        [2]float64{2.0, 11.0},
	}
}

// LoadMethodology reads a YAML override on top of the defaults
func LoadMethodology(r io.Reader) (Methodology, error) {
	m := DefaultMethodology()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil && !errors.Is(err, io.EOF) {
		return Methodology{}, fmt.Errorf("failed to parse methodology: %w", err)
	}
	if err := m.Validate(); err != nil {
		return Methodology{}, err
	}
	return m, nil
}

// LoadMethodologyFile is LoadMethodology for a path; an empty path yields the defaults
func LoadMethodologyFile(path string) (Methodology, error) {
	if path == "" {
		return DefaultMethodology(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return Methodology{}, fmt.Errorf("failed to open methodology file: %w", err)
	}
	defer f.Close()
	return LoadMethodology(f)
}

// Validate checks that every table is complete and ascending
func (m Methodology) Validate() error {
	for _, n := range []Nutrient{NutrientP, NutrientK, NutrientMg} {
		for _, t := range Textures {
			if err := checkBreakpoints(fmt.Sprintf("texture_thresholds.%s.%s", n, t), m.TextureThresholds[n][t]); err != nil {
				return err
			}
		}
	}
	for _, n := range []Nutrient{NutrientCa, NutrientS} {
		if err := checkBreakpoints(fmt.Sprintf("shared_thresholds.%s", n), m.SharedThresholds[n]); err != nil {
			return err
		}
	}
	if err := checkBreakpoints("ph_bands", m.PHBands); err != nil {
		return err
	}
	if err := checkBreakpoints("severity_bands", m.SeverityBands); err != nil {
		return err
	}
	for _, u := range []LandUse{LandUseArable, LandUseGrassland} {
		for _, t := range Textures {
			if m.TargetPH[u][t] <= 0 {
				return fmt.Errorf("methodology: target_ph.%s.%s missing", u, t)
			}
			if m.AnnualNormative[u][t] <= 0 {
				return fmt.Errorf("methodology: annual_normative.%s.%s missing", u, t)
			}
		}
	}
	for _, t := range Textures {
		c, ok := m.DoseCaps[t]
		if !ok || c.Floor <= 0 || c.Ceiling < c.Floor {
			return fmt.Errorf("methodology: dose_caps.%s invalid", t)
		}
		if m.AcidificationRate[t] < 0 {
			return fmt.Errorf("methodology: acidification_rate.%s negative", t)
		}
		if m.BufferCapacity[t] <= 0 {
			return fmt.Errorf("methodology: buffer_capacity.%s missing", t)
		}
	}
	if m.MgOFactor <= 0 || m.CycleYears <= 0 {
		return errors.New("methodology: mgo_factor and cycle_years must be positive")
	}
	if m.PHFloor >= m.PHCeiling {
		return errors.New("methodology: ph_floor must be below ph_ceiling")
	}
	return nil
}

func checkBreakpoints(name string, b Breakpoints) error {
	if len(b) != 4 {
		return fmt.Errorf("methodology: %s needs 4 breakpoints, got %d", name, len(b))
	}
	if !slices.IsSorted(b) {
		return fmt.Errorf("methodology: %s must be ascending", name)
	}
	return nil
}

// clone deep-copies every table so the engine owns its configuration
func (m Methodology) clone() Methodology {
	out := m
	out.TextureThresholds = make(map[Nutrient]map[SoilTexture]Breakpoints, len(m.TextureThresholds))
	for n, byTexture := range m.TextureThresholds {
		inner := make(map[SoilTexture]Breakpoints, len(byTexture))
		for t, b := range byTexture {
			inner[t] = slices.Clone(b)
		}
		out.TextureThresholds[n] = inner
	}
	out.SharedThresholds = make(map[Nutrient]Breakpoints, len(m.SharedThresholds))
	for n, b := range m.SharedThresholds {
		out.SharedThresholds[n] = slices.Clone(b)
	}
	out.PHBands = slices.Clone(m.PHBands)
	out.SeverityBands = slices.Clone(m.SeverityBands)
	out.TargetPH = cloneNested(m.TargetPH)
	out.AnnualNormative = cloneNested(m.AnnualNormative)
	out.SeverityMultiplier = maps.Clone(m.SeverityMultiplier)
	out.DoseCaps = maps.Clone(m.DoseCaps)
	out.AcidificationRate = maps.Clone(m.AcidificationRate)
	out.BufferCapacity = maps.Clone(m.BufferCapacity)
	return out
}

func cloneNested(in map[LandUse]map[SoilTexture]float64) map[LandUse]map[SoilTexture]float64 {
	out := make(map[LandUse]map[SoilTexture]float64, len(in))
	for k, v := range in {
		out[k] = maps.Clone(v)
	}
	return out
}
