// internal/workers/rating/generate-safety-tips/models.go
package generatesafetytips

import "safety-rating/internal/rating/recommend"

type Input struct {
	CompanyID string `json:"companyId"`
	// MaxTips caps the returned list; 0 returns every tip.
	MaxTips int `json:"maxTips,omitempty"`
}

type Output struct {
	Tips              []recommend.Tip `json:"tips"`
	TipCount          int             `json:"tipCount"`
	HighPriorityCount int             `json:"highPriorityCount"`
	TopTip            string          `json:"topTip,omitempty"`
}
