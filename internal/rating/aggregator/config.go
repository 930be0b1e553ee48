// internal/rating/aggregator/config.go
package aggregator

import (
	"fmt"
	"time"

	"safety-rating/internal/common/config"
)

type Config struct {
	Weights map[string]float64

	SafetyDocsTarget   int
	WorkSessionsTarget int
	IncidentPenalty    float64
	ExpiringWindow     time.Duration
}

// DefaultConfig weights every category equally.
func DefaultConfig() *Config {
	return &Config{
		Weights: map[string]float64{
			CategoryHarnessInspection:    1,
			CategoryProjectDocumentation: 1,
			CategoryCompanyDocumentation: 1,
			CategoryEmployeeDocReview:    1,
		},
		SafetyDocsTarget:   10,
		WorkSessionsTarget: 20,
		IncidentPenalty:    50,
		ExpiringWindow:     30 * 24 * time.Hour,
	}
}

// ConfigFromApp maps the rating section of the application config.
func ConfigFromApp(cfg config.RatingConfig) *Config {
	c := DefaultConfig()
	c.Weights = map[string]float64{
		CategoryHarnessInspection:    cfg.Weights.HarnessInspection,
		CategoryProjectDocumentation: cfg.Weights.ProjectDocumentation,
		CategoryCompanyDocumentation: cfg.Weights.CompanyDocumentation,
		CategoryEmployeeDocReview:    cfg.Weights.EmployeeDocReview,
	}
	if cfg.PSR.SafetyDocsTarget > 0 {
		c.SafetyDocsTarget = cfg.PSR.SafetyDocsTarget
	}
	if cfg.PSR.WorkSessionsTarget > 0 {
		c.WorkSessionsTarget = cfg.PSR.WorkSessionsTarget
	}
	if cfg.PSR.IncidentPenalty >= 0 {
		c.IncidentPenalty = cfg.PSR.IncidentPenalty
	}
	if cfg.PSR.ExpiringWindowDays > 0 {
		c.ExpiringWindow = time.Duration(cfg.PSR.ExpiringWindowDays) * 24 * time.Hour
	}
	return c
}

func (c *Config) Validate() error {
	total := 0.0
	for _, category := range Categories {
		w := c.Weights[category]
		if w < 0 {
			return fmt.Errorf("weight for %s must not be negative", category)
		}
		total += w
	}
	if total == 0 {
		return fmt.Errorf("at least one category weight must be positive")
	}
	if c.SafetyDocsTarget <= 0 || c.WorkSessionsTarget <= 0 {
		return fmt.Errorf("psr targets must be positive")
	}
	return nil
}
