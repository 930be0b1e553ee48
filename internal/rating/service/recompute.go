// internal/rating/service/recompute.go
package service

import (
	"context"
	"fmt"

	apperrors "safety-rating/internal/common/errors"
	"safety-rating/internal/rating/aggregator"
	"safety-rating/internal/rating/classifier"
	"safety-rating/internal/rating/history"
	"safety-rating/internal/rating/recommend"
)

// RecomputeRequest is raised after an upstream write that may change the
// rating, e.g. an inspection logged or a document uploaded.
type RecomputeRequest struct {
	CompanyID string
	Reason    string
	// Category optionally names a breakdown key whose rating change is
	// logged as its own entry.
	Category  string
	RequestID string
}

type RecomputeResult struct {
	Rating        *aggregator.CompanySafetyRating `json:"rating"`
	Entries       []history.Entry                 `json:"entries"`
	PreviousScore *float64                        `json:"previousScore"`
	PreviousTier  classifier.Tier                 `json:"previousTier"`
	Downgraded    bool                            `json:"downgraded"`
	AlertSent     bool                            `json:"alertSent"`
	Tips          []recommend.Tip                 `json:"tips"`
}

// TierAlert is the SNS payload published on a tier downgrade.
type TierAlert struct {
	CompanyID     string  `json:"companyId"`
	PreviousScore float64 `json:"previousScore"`
	NewScore      float64 `json:"newScore"`
	PreviousLabel string  `json:"previousLabel"`
	NewLabel      string  `json:"newLabel"`
	Reason        string  `json:"reason"`
}

// Recompute recalculates the rating and records the change with the
// caller's reason. Retries carrying the same RequestID append nothing new.
func (s *Service) Recompute(ctx context.Context, req RecomputeRequest) (*RecomputeResult, error) {
	if req.Category != "" && !history.ValidCategory(req.Category) {
		return nil, apperrors.NewInvalidCategoryError(req.Category)
	}
	reason := req.Reason
	if reason == "" {
		reason = s.config.DefaultReason
	}

	rating, err := s.computeCSR(ctx, req.CompanyID)
	if err != nil {
		return nil, err
	}

	result := &RecomputeResult{
		Rating:  rating,
		Entries: []history.Entry{},
		Tips:    recommend.GenerateTips(*rating),
	}

	overall := history.CategoryOverall
	if req.Category == history.CategoryImprovement {
		overall = history.CategoryImprovement
	}
	entry, previous, err := s.trackOverall(ctx, rating, overall, reason, req.RequestID)
	if err != nil {
		return nil, err
	}
	result.PreviousScore = previous
	result.PreviousTier = tierOf(previous)
	if entry != nil {
		result.Entries = append(result.Entries, *entry)
	}

	if isBreakdownCategory(req.Category) {
		catEntry, err := s.trackCategory(ctx, rating, req.Category, reason, req.RequestID)
		if err != nil {
			return nil, err
		}
		if catEntry != nil {
			result.Entries = append(result.Entries, *catEntry)
		}
	}

	// Only a newly recorded change can alert, so retries do not re-notify.
	if entry != nil && classifier.IsDowngrade(result.PreviousTier, rating.CSRTier) {
		result.Downgraded = true
		result.AlertSent = s.publishDowngrade(ctx, rating, *previous, reason)
	}

	s.logger.Info("company rating recomputed", map[string]interface{}{
		"companyId":  rating.CompanyID,
		"csrRating":  rating.CSRRating,
		"entries":    len(result.Entries),
		"downgraded": result.Downgraded,
		"requestId":  req.RequestID,
	})
	return result, nil
}

func (s *Service) trackCategory(ctx context.Context, rating *aggregator.CompanySafetyRating, category, reason, requestID string) (*history.Entry, error) {
	var current *float64
	for _, c := range rating.Breakdown.Categories {
		if c.Category == category {
			current = c.Rating
		}
	}
	if current == nil {
		return nil, nil
	}

	latest, err := s.history.Latest(ctx, rating.CompanyID, category)
	if err != nil {
		return nil, apperrors.NewHistoryQueryFailedError(err)
	}
	prev := 0.0
	if latest != nil {
		prev = latest.NewScore
	}

	return s.recorder.RecordIfChanged(ctx, history.RecordRequest{
		CompanyID:     rating.CompanyID,
		PreviousScore: prev,
		NewScore:      *current,
		Category:      category,
		Reason:        reason,
		RequestID:     requestID,
	})
}

func (s *Service) publishDowngrade(ctx context.Context, rating *aggregator.CompanySafetyRating, previous float64, reason string) bool {
	if s.alerts == nil {
		return false
	}

	alert := TierAlert{
		CompanyID:     rating.CompanyID,
		PreviousScore: aggregator.Round2(previous),
		NewScore:      aggregator.Round2(*rating.CSRRating),
		PreviousLabel: classifier.Classify(previous).Label,
		NewLabel:      rating.CSRLabel,
		Reason:        reason,
	}
	subject := fmt.Sprintf("Safety rating dropped to %s", rating.CSRLabel)

	messageID, err := s.alerts.PublishJSON(ctx, subject, alert, map[string]string{
		"companyId": rating.CompanyID,
		"tier":      string(rating.CSRTier),
	})
	if err != nil {
		std := apperrors.NewAlertPublishFailedError(err)
		s.logger.Error("failed to publish rating alert", map[string]interface{}{
			"companyId": rating.CompanyID,
			"errorCode": string(std.Code),
			"error":     err,
		})
		return false
	}

	s.logger.Info("rating downgrade alert published", map[string]interface{}{
		"companyId": rating.CompanyID,
		"messageId": messageID,
	})
	return true
}

func isBreakdownCategory(category string) bool {
	for _, c := range aggregator.Categories {
		if c == category {
			return true
		}
	}
	return false
}
