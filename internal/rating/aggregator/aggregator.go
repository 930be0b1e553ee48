// Package aggregator turns collaborator snapshots into the company safety
// rating, personal safety ratings and the workforce safety score. Every
// method is a pure function of its input.
package aggregator

import (
	"math"
	"strings"
	"time"
)

type Aggregator struct {
	config *Config
	now    func() time.Time
}

func New(cfg *Config) *Aggregator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Aggregator{config: cfg, now: time.Now}
}

// NewWithClock fixes the reference time used for certification expiry.
func NewWithClock(cfg *Config, now func() time.Time) *Aggregator {
	a := New(cfg)
	a.now = now
	return a
}

func clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

func ratio(part, whole float64) float64 {
	if whole <= 0 {
		return 0
	}
	return part / whole * 100
}

func float64Ptr(v float64) *float64 {
	return &v
}

// Round2 rounds to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func normalizeDocType(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// missingDocuments returns the entries of required not present in have,
// compared case-insensitively.
func missingDocuments(required, have []string) []string {
	present := make(map[string]struct{}, len(have))
	for _, d := range have {
		present[normalizeDocType(d)] = struct{}{}
	}
	missing := []string{}
	for _, r := range required {
		if _, ok := present[normalizeDocType(r)]; !ok {
			missing = append(missing, r)
		}
	}
	return missing
}
