// Package recommend derives prioritized improvement tips from a company
// safety rating.
package recommend

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"safety-rating/internal/rating/aggregator"
)

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

func (p Priority) rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	default:
		return 2
	}
}

type Tip struct {
	Category string   `json:"category"`
	Tip      string   `json:"tip"`
	Priority Priority `json:"priority"`
}

const projectDocumentsExplanation = "Elevation projects require a Rope Access Plan, Anchor Inspection, " +
	"Toolbox Meeting and FLHA; all other projects require a Toolbox Meeting and FLHA."

// GenerateTips evaluates every rule independently and returns the tips
// ordered high, medium, low. Ties keep rule order.
func GenerateTips(csr aggregator.CompanySafetyRating) []Tip {
	bd := csr.Breakdown
	d := csr.Details
	tips := []Tip{}

	uploaded := 0
	if d.CompanyDocsUploaded != nil {
		uploaded = *d.CompanyDocsUploaded
	}
	if uploaded < len(aggregator.RequiredCompanyDocuments) {
		missing := d.MissingCompanyDocuments
		if len(missing) == 0 {
			missing = aggregator.RequiredCompanyDocuments
		}
		gain := 1 - bd.CompanyDocumentationPoints
		priority := PriorityMedium
		if bd.CompanyDocumentationPoints < 0.5 {
			priority = PriorityHigh
		}
		tips = append(tips, Tip{
			Category: aggregator.CategoryCompanyDocumentation,
			Tip: fmt.Sprintf("Upload the missing company documents (%s) to gain up to %s.",
				strings.Join(missing, ", "), pointsPhrase(gain)),
			Priority: priority,
		})
	}

	projects := float64(d.ActiveProjectCount)
	if d.ActiveProjectCount > 0 && bd.HarnessInspectionPoints < projects {
		gain := projects - bd.HarnessInspectionPoints
		tips = append(tips, Tip{
			Category: aggregator.CategoryHarnessInspection,
			Tip: fmt.Sprintf("Log a harness inspection for every work session on %s of your %d active projects to gain up to %s.",
				FormatPoints(gain), d.ActiveProjectCount, pointsPhrase(gain)),
			Priority: highIfAbove(gain),
		})
	}

	if d.ActiveProjectCount > 0 && bd.ProjectDocumentationPoints < projects {
		gain := projects - bd.ProjectDocumentationPoints
		tips = append(tips, Tip{
			Category: aggregator.CategoryProjectDocumentation,
			Tip: fmt.Sprintf("Upload all required safety documents for %s of your %d active projects to gain up to %s. %s",
				FormatPoints(gain), d.ActiveProjectCount, pointsPhrase(gain), projectDocumentsExplanation),
			Priority: highIfAbove(gain),
		})
	}

	employees := float64(d.DocumentReviewsTotalEmployees)
	if d.DocumentReviewsTotalEmployees > 0 && bd.EmployeeDocReviewPoints < employees {
		gain := employees - bd.EmployeeDocReviewPoints
		priority := PriorityLow
		if gain > 0.5 {
			priority = PriorityMedium
		}
		tips = append(tips, Tip{
			Category: aggregator.CategoryEmployeeDocReview,
			Tip: fmt.Sprintf("Remind employees to sign company documents: %d %s pending. Gain up to %s.",
				d.DocumentReviewsPending, plural(d.DocumentReviewsPending, "signature is", "signatures are"), pointsPhrase(gain)),
			Priority: priority,
		})
	}

	sort.SliceStable(tips, func(i, j int) bool {
		return tips[i].Priority.rank() < tips[j].Priority.rank()
	})
	return tips
}

func highIfAbove(gain float64) Priority {
	if gain > 0.5 {
		return PriorityHigh
	}
	return PriorityMedium
}

// FormatPoints renders v with at most two decimals and no trailing zeros.
func FormatPoints(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "-0" {
		return "0"
	}
	return s
}

func pointsPhrase(v float64) string {
	s := FormatPoints(v)
	if s == "1" {
		return "1 point"
	}
	return s + " points"
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
