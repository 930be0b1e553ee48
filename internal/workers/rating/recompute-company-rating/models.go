// internal/workers/rating/recompute-company-rating/models.go
package recomputecompanyrating

type Input struct {
	CompanyID string `json:"companyId"`
	Reason    string `json:"reason"`
	Category  string `json:"category,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

type Output struct {
	CSRRating      *float64 `json:"csrRating"`
	CSRLabel       string   `json:"csrLabel"`
	CSRTier        string   `json:"csrTier"`
	PreviousScore  *float64 `json:"previousScore"`
	HistoryEntries int      `json:"historyEntries"`
	Downgraded     bool     `json:"downgraded"`
	AlertSent      bool     `json:"alertSent"`
	TipCount       int      `json:"tipCount"`
}
