// Package estimate turns abstract effort ("energy" 1-8) and uncertainty
// ("mystery factor") into minute figures used for planning and billing.
//
// All functions are pure. Arithmetic goes through decimal so that rounding
// is exact and always half away from zero.
package estimate

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// --- Mystery factor enum ---

// MysteryFactor expresses how much unknown work a task may hide.
type MysteryFactor string

const (
	MysteryNone        MysteryFactor = "none"
	MysteryAverage     MysteryFactor = "average"
	MysterySignificant MysteryFactor = "significant"
	MysteryNoIdea      MysteryFactor = "no_idea"
)

// multipliers holds the padding applied on top of base minutes.
var multipliers = map[MysteryFactor]decimal.Decimal{
	MysteryNone:        decimal.NewFromInt(1),
	MysteryAverage:     decimal.RequireFromString("1.4"),
	MysterySignificant: decimal.RequireFromString("1.75"),
	MysteryNoIdea:      decimal.RequireFromString("2.5"),
}

var mysteryLabels = map[MysteryFactor]string{
	MysteryNone:        "None",
	MysteryAverage:     "Average",
	MysterySignificant: "Significant",
	MysteryNoIdea:      "No Idea",
}

// ParseMysteryFactor validates a raw value. The empty string maps to none.
func ParseMysteryFactor(s string) (MysteryFactor, error) {
	if s == "" {
		return MysteryNone, nil
	}
	m := MysteryFactor(s)
	if _, ok := multipliers[m]; !ok {
		return "", fmt.Errorf("invalid mystery factor %q: must be one of: none, average, significant, no_idea", s)
	}
	return m, nil
}

// Label returns the human label for the factor.
func (m MysteryFactor) Label() string {
	if l, ok := mysteryLabels[m]; ok {
		return l
	}
	return mysteryLabels[MysteryNone]
}

// Multiplier returns the padding for m. Unknown factors behave as none.
func Multiplier(m MysteryFactor) decimal.Decimal {
	if v, ok := multipliers[m]; ok {
		return v
	}
	return multipliers[MysteryNone]
}

// --- Energy ---

const (
	MinEnergy = 1
	MaxEnergy = 8
)

var energyMinutes = map[int]int{
	1: 15,
	2: 30,
	3: 60,
	4: 120,
	5: 240,
	6: 480,
	7: 960,
	8: 1920,
}

var energyLabels = map[int]string{
	1: "15 min",
	2: "30 min",
	3: "1 hour",
	4: "2 hours",
	5: "Half day",
	6: "Full day",
	7: "2 days",
	8: "4 days",
}

// BaseMinutes maps an energy level to minutes. The level is rounded half
// away from zero and clamped into 1..8 first.
func BaseMinutes(energy float64) int {
	level := int(math.Round(energy))
	level = max(MinEnergy, min(MaxEnergy, level))
	if m, ok := energyMinutes[level]; ok {
		return m
	}
	return energyMinutes[3]
}

// EnergyLabel returns a short description of an energy level.
func EnergyLabel(energy int) string {
	if l, ok := energyLabels[energy]; ok {
		return l
	}
	return "Unknown"
}

// ValidateEnergy rejects energy levels outside 1..8.
func ValidateEnergy(energy int) error {
	if energy < MinEnergy || energy > MaxEnergy {
		return fmt.Errorf("invalid energy estimate %d: must be between %d and %d", energy, MinEnergy, MaxEnergy)
	}
	return nil
}

// hasEnergy treats both nil and zero as "not estimated".
func hasEnergy(energy *int) bool {
	return energy != nil && *energy != 0
}

// roundInt rounds d half away from zero and returns it as an int.
func roundInt(d decimal.Decimal) int {
	return int(d.Round(0).IntPart())
}

// weighted returns round(base × multiplier).
func weighted(base int, m MysteryFactor) int {
	return roundInt(decimal.NewFromInt(int64(base)).Mul(Multiplier(m)))
}

// EstimatedMinutes returns round(base × multiplier), or nil when no energy
// estimate is present.
func EstimatedMinutes(energy *int, m MysteryFactor) *int {
	if !hasEnergy(energy) {
		return nil
	}
	v := weighted(BaseMinutes(float64(*energy)), m)
	return &v
}

// --- Billing estimates ---

// Kind selects one of the four billing figures.
type Kind string

const (
	KindActual Kind = "actual"
	KindLow    Kind = "low"
	KindMid    Kind = "mid"
	KindHigh   Kind = "high"
)

// ParseKind validates a raw estimate kind. The empty string maps to mid.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case "":
		return KindMid, nil
	case KindActual, KindLow, KindMid, KindHigh:
		return k, nil
	default:
		return "", fmt.Errorf("invalid estimate type %q: must be one of: actual, low, mid, high", s)
	}
}

// Estimates holds the four billing figures, all in minutes.
type Estimates struct {
	Low    int `json:"low"`
	Mid    int `json:"mid"`
	High   int `json:"high"`
	Actual int `json:"actual"`
}

// Pick returns the figure for k (mid when k is unknown).
func (e Estimates) Pick(k Kind) int {
	switch k {
	case KindActual:
		return e.Actual
	case KindLow:
		return e.Low
	case KindHigh:
		return e.High
	default:
		return e.Mid
	}
}

// BillingEstimates computes low/mid/high from energy and mystery, with
// actual passed through. Without an energy estimate every figure collapses
// to actual.
func BillingEstimates(energy *int, m MysteryFactor, actual int) Estimates {
	if !hasEnergy(energy) {
		return Estimates{Low: actual, Mid: actual, High: actual, Actual: actual}
	}
	low := BaseMinutes(float64(*energy))
	high := weighted(low, m)
	mid := roundInt(decimal.NewFromInt(int64(low + high)).Div(decimal.NewFromInt(2)))
	return Estimates{Low: low, Mid: mid, High: high, Actual: actual}
}

// FormatDuration renders minutes as "45m", "2h" or "2h 30m".
func FormatDuration(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	h, m := minutes/60, minutes%60
	if m == 0 {
		return fmt.Sprintf("%dh", h)
	}
	return fmt.Sprintf("%dh %dm", h, m)
}
