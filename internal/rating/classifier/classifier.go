// Package classifier maps 0-100 scores onto the four rating tiers shared by
// the company rating, every category rating and personal ratings.
package classifier

import "math"

type Tier string

const (
	TierExcellent Tier = "excellent"
	TierGood      Tier = "good"
	TierWarning   Tier = "warning"
	TierCritical  Tier = "critical"
	// TierUnrated is returned when there is no score to classify.
	TierUnrated Tier = "unrated"
)

const (
	LabelInsufficientData = "Insufficient Data"
	ColorUnrated          = "gray"
)

// Classification is the label and color band for one score.
type Classification struct {
	Tier  Tier   `json:"tier"`
	Label string `json:"label"`
	Color string `json:"color"`
}

type band struct {
	min float64
	Classification
}

// bands is ordered from the highest cut point down.
var bands = []band{
	{min: 90, Classification: Classification{Tier: TierExcellent, Label: "Excellent", Color: "green"}},
	{min: 70, Classification: Classification{Tier: TierGood, Label: "Good", Color: "amber"}},
	{min: 50, Classification: Classification{Tier: TierWarning, Label: "Warning", Color: "orange"}},
	{min: math.Inf(-1), Classification: Classification{Tier: TierCritical, Label: "Critical", Color: "red"}},
}

var unrated = Classification{Tier: TierUnrated, Label: LabelInsufficientData, Color: ColorUnrated}

// Classify returns the band for score. NaN is treated as unrated.
func Classify(score float64) Classification {
	if math.IsNaN(score) {
		return unrated
	}
	for _, b := range bands {
		if score >= b.min {
			return b.Classification
		}
	}
	return unrated
}

// ClassifyPtr classifies an optional score; nil means insufficient data.
func ClassifyPtr(score *float64) Classification {
	if score == nil {
		return unrated
	}
	return Classify(*score)
}

// Rank orders tiers from unrated (0) to excellent (4).
func (t Tier) Rank() int {
	switch t {
	case TierExcellent:
		return 4
	case TierGood:
		return 3
	case TierWarning:
		return 2
	case TierCritical:
		return 1
	default:
		return 0
	}
}

// IsDowngrade reports whether moving from prev to next lands in a worse rated
// tier. Transitions to or from unrated are not downgrades.
func IsDowngrade(prev, next Tier) bool {
	if prev == TierUnrated || next == TierUnrated {
		return false
	}
	return next.Rank() < prev.Rank()
}
