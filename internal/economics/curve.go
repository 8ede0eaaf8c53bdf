package economics

import (
	"fmt"
	"sort"

	"agrolime/liming-portal-backend/internal/agronomy"
)

// Anchor is one published point of a pH response curve
type Anchor struct {
	PH    float64 `json:"ph" yaml:"ph"`
	Value float64 `json:"value" yaml:"value"`
}

// Curve interpolates linearly between anchors sorted by pH and holds the
// end values outside them. Results are clamped to [0,1].
type Curve []Anchor

// DefaultEfficiencyCurve is nutrient uptake efficiency against soil pH
func DefaultEfficiencyCurve() Curve {
	return Curve{
		{PH: 4.0, Value: 0.40},
		{PH: 4.5, Value: 0.53},
		{PH: 5.0, Value: 0.65},
		{PH: 5.5, Value: 0.77},
		{PH: 6.0, Value: 0.89},
		{PH: 6.5, Value: 0.97},
		{PH: 7.0, Value: 1.00},
	}
}

// DefaultYieldLossCurve is the share of revenue lost to acidity
func DefaultYieldLossCurve() Curve {
	return Curve{
		{PH: 4.5, Value: 0.30},
		{PH: 5.0, Value: 0.22},
		{PH: 5.5, Value: 0.12},
		{PH: 6.0, Value: 0.06},
		{PH: 6.5, Value: 0.01},
		{PH: 7.0, Value: 0},
	}
}

// At evaluates the curve
func (c Curve) At(pH float64) float64 {
	if len(c) == 0 {
		return 0
	}
	i := sort.Search(len(c), func(i int) bool { return c[i].PH >= pH })
	var v float64
	switch {
	case i == 0:
		v = c[0].Value
	case i == len(c):
		v = c[len(c)-1].Value
	default:
		lo, hi := c[i-1], c[i]
		v = lo.Value + (hi.Value-lo.Value)*(pH-lo.PH)/(hi.PH-lo.PH)
	}
	return clamp01(v)
}

// Validate requires two or more anchors with strictly ascending pH
func (c Curve) Validate(name string) error {
	if len(c) < 2 {
		return &agronomy.FieldError{Field: name, Reason: "needs at least two anchors"}
	}
	for i, a := range c {
		if a.Value < 0 || a.Value > 1 {
			return &agronomy.FieldError{Field: fmt.Sprintf("%s[%d].value", name, i), Reason: "must be between 0 and 1"}
		}
		if i > 0 && a.PH <= c[i-1].PH {
			return &agronomy.FieldError{Field: fmt.Sprintf("%s[%d].ph", name, i), Reason: "anchors must ascend by pH"}
		}
	}
	return nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
