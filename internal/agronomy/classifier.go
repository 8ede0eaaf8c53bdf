package agronomy

import "fmt"

// Classification is one categorized reading value
type Classification struct {
	Nutrient Nutrient `json:"nutrient"`
	Value    float64  `json:"value"`
	Category Category `json:"category"`
	Label    string   `json:"label"`
}

// Classify maps a raw value to its ordinal category. Physical plausibility
// of value is the caller's concern.
func (e *Engine) Classify(n Nutrient, value float64, texture SoilTexture) (Category, error) {
	switch n {
	case NutrientPH:
		// pH bands are strict upper bounds
		for i, bound := range e.m.PHBands {
			if value < bound {
				return Category(i), nil
			}
		}
		return PHExtremelyAlkaline, nil
	case NutrientP, NutrientK, NutrientMg:
		if err := checkTexture(texture); err != nil {
			return 0, err
		}
		return bandOf(value, e.m.TextureThresholds[n][texture]), nil
	case NutrientCa, NutrientS:
		return bandOf(value, e.m.SharedThresholds[n]), nil
	}
	return 0, &FieldError{Field: "nutrient", Reason: fmt.Sprintf("unknown nutrient %q", n)}
}

// ClassifyReading categorizes every quantity of a reading
func (e *Engine) ClassifyReading(r Reading, texture SoilTexture) ([]Classification, error) {
	out := make([]Classification, 0, len(Nutrients))
	for _, n := range Nutrients {
		v := r.Value(n)
		c, err := e.Classify(n, v, texture)
		if err != nil {
			return nil, err
		}
		out = append(out, Classification{Nutrient: n, Value: v, Category: c, Label: c.Label(n)})
	}
	return out, nil
}

func bandOf(value float64, b Breakpoints) Category {
	for i, bound := range b {
		if value <= bound {
			return Category(i)
		}
	}
	return CategoryVeryHigh
}
