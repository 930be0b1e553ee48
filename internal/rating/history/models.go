// internal/rating/history/models.go
package history

import (
	"context"
	"time"

	"safety-rating/internal/rating/aggregator"
)

// Company-level categories in addition to the breakdown keys.
const (
	CategoryOverall     = "overall"
	CategoryImprovement = "improvement"
	CategoryInitial     = "initial"
)

// ScoreCategories are the categories whose entries track the overall CSR.
var ScoreCategories = []string{CategoryOverall, CategoryImprovement, CategoryInitial}

// Entry is one immutable CSR change.
type Entry struct {
	ID            string    `json:"id"`
	CompanyID     string    `json:"companyId"`
	PreviousScore float64   `json:"previousScore"`
	NewScore      float64   `json:"newScore"`
	Delta         float64   `json:"delta"`
	Category      string    `json:"category"`
	Reason        string    `json:"reason"`
	CreatedAt     time.Time `json:"createdAt"`
}

// DuplicateScope returns the categories whose newest entry a change in
// category must be compared against. The score categories share one chain
// since each of them continues from the latest of the three.
func DuplicateScope(category string) []string {
	for _, c := range ScoreCategories {
		if c == category {
			return ScoreCategories
		}
	}
	return []string{category}
}

// AllCategories returns every recordable category.
func AllCategories() []string {
	out := make([]string, 0, len(ScoreCategories)+len(aggregator.Categories))
	out = append(out, ScoreCategories...)
	return append(out, aggregator.Categories...)
}

// ValidCategory reports whether category may be recorded.
func ValidCategory(category string) bool {
	for _, c := range AllCategories() {
		if c == category {
			return true
		}
	}
	return false
}

// Store is the append-only persistence for history entries.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	// Latest returns the newest entry for the company in any of categories,
	// or nil when there is none.
	Latest(ctx context.Context, companyID string, categories ...string) (*Entry, error)
	// List returns up to limit entries, newest first.
	List(ctx context.Context, companyID string, limit int) ([]Entry, error)
	// WithCompanyLock runs fn with the company's history serialized against
	// every other locked section for the same company. Reads and appends made
	// through the Store passed to fn commit together.
	WithCompanyLock(ctx context.Context, companyID string, fn func(Store) error) error
}

// Deduper claims request ids so a retried recompute appends at most once.
type Deduper interface {
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}
