package api

import (
	"net/http"
	"strconv"
	"time"

	apperrors "safety-rating/internal/common/errors"
	"safety-rating/internal/rating/aggregator"
	"safety-rating/internal/rating/history"
	"safety-rating/internal/rating/recommend"
)

// UnknownDate is shown in place of a missing history timestamp.
const UnknownDate = "unknown date"

const displayLayout = "Jan 2, 2006 3:04 PM MST"

// HistoryEntryView is a history entry as presented to the caller. The stored
// entry is never modified.
type HistoryEntryView struct {
	ID               string     `json:"id"`
	PreviousScore    float64    `json:"previousScore"`
	NewScore         float64    `json:"newScore"`
	Delta            float64    `json:"delta"`
	Category         string     `json:"category"`
	Reason           string     `json:"reason"`
	CreatedAt        *time.Time `json:"createdAt"`
	CreatedAtDisplay string     `json:"createdAtDisplay"`
}

type historyResponse struct {
	History []HistoryEntryView `json:"history"`
}

type tipsResponse struct {
	Tips []recommend.Tip `json:"tips"`
}

type workforceDetailsResponse struct {
	Employees []aggregator.EmployeePSR `json:"employees"`
}

func (s *Server) getCompanySafetyRating(w http.ResponseWriter, r *http.Request) {
	rating, err := s.ratings.CompanySafetyRating(r.Context(), CompanyIDFromContext(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rating)
}

func (s *Server) getHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, apperrors.NewBusinessRuleError("limit must be a positive integer", "limit: "+raw))
			return
		}
		limit = n
	}

	entries, err := s.ratings.History(r.Context(), CompanyIDFromContext(r.Context()), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	views := make([]HistoryEntryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, newHistoryEntryView(e))
	}
	writeJSON(w, http.StatusOK, historyResponse{History: views})
}

func (s *Server) getTips(w http.ResponseWriter, r *http.Request) {
	tips, err := s.ratings.Tips(r.Context(), CompanyIDFromContext(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tipsResponse{Tips: tips})
}

func (s *Server) getWorkforceSafetyScore(w http.ResponseWriter, r *http.Request) {
	wss, err := s.ratings.WorkforceSafetyScore(r.Context(), CompanyIDFromContext(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wss)
}

func (s *Server) getWorkforceDetails(w http.ResponseWriter, r *http.Request) {
	employees, err := s.ratings.WorkforceDetails(r.Context(), CompanyIDFromContext(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if employees == nil {
		employees = []aggregator.EmployeePSR{}
	}
	writeJSON(w, http.StatusOK, workforceDetailsResponse{Employees: employees})
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	std := apperrors.Normalize(err)
	s.logger.Error("request failed", map[string]interface{}{
		"path":      r.URL.Path,
		"companyId": CompanyIDFromContext(r.Context()),
		"errorCode": string(std.Code),
		"details":   std.Details,
	})
	writeError(w, std)
}

func newHistoryEntryView(e history.Entry) HistoryEntryView {
	view := HistoryEntryView{
		ID:               e.ID,
		PreviousScore:    e.PreviousScore,
		NewScore:         e.NewScore,
		Delta:            e.Delta,
		Category:         e.Category,
		Reason:           e.Reason,
		CreatedAtDisplay: UnknownDate,
	}
	if !e.CreatedAt.IsZero() {
		ts := e.CreatedAt.UTC()
		view.CreatedAt = &ts
		view.CreatedAtDisplay = ts.Format(displayLayout)
	}
	return view
}
