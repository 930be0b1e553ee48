// internal/rating/history/recorder.go
package history

import (
	"context"
	"errors"
	"strings"
	"time"

	apperrors "safety-rating/internal/common/errors"
	"safety-rating/internal/common/logger"
	"safety-rating/internal/common/metrics"
	"safety-rating/internal/rating/aggregator"

	"github.com/google/uuid"
)

// RecordRequest describes one observed score transition. Reason is always
// supplied by the caller.
type RecordRequest struct {
	CompanyID     string
	PreviousScore float64
	NewScore      float64
	Category      string
	Reason        string
	// RequestID, when set, makes retries of the same trigger a no-op.
	RequestID string
}

type Recorder struct {
	store   Store
	deduper Deduper
	logger  logger.Logger
	now     func() time.Time
	newID   func() string
}

// NewRecorder builds a recorder. deduper may be nil, in which case only
// content-based deduplication applies.
func NewRecorder(store Store, deduper Deduper, log logger.Logger) *Recorder {
	return &Recorder{
		store:   store,
		deduper: deduper,
		logger:  log.WithFields(map[string]interface{}{"component": "history-recorder"}),
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// RecordIfChanged appends an entry when the rounded scores differ. It returns
// nil without error for unchanged scores and for duplicates of the latest
// entry or of an already claimed request id.
func (r *Recorder) RecordIfChanged(ctx context.Context, req RecordRequest) (*Entry, error) {
	if strings.TrimSpace(req.CompanyID) == "" {
		return nil, apperrors.NewInvalidCompanyIDError("company id is required to record history")
	}
	if !ValidCategory(req.Category) {
		return nil, apperrors.NewInvalidCategoryError(req.Category)
	}
	if strings.TrimSpace(req.Reason) == "" {
		return nil, apperrors.NewBusinessRuleError("History reason is required", "category: "+req.Category)
	}

	prev := aggregator.Round2(req.PreviousScore)
	next := aggregator.Round2(req.NewScore)
	if prev == next {
		return nil, nil
	}

	claimKey := ""
	if req.RequestID != "" && r.deduper != nil {
		claimKey = req.CompanyID + ":" + req.Category + ":" + req.RequestID
		claimed, err := r.deduper.Claim(ctx, claimKey)
		if err != nil {
			return nil, apperrors.NewDedupeCheckFailedError(err)
		}
		if !claimed {
			metrics.HistoryDuplicatesSkipped.WithLabelValues("request_id").Inc()
			r.logger.Info("skipping already recorded request", map[string]interface{}{
				"companyId": req.CompanyID,
				"category":  req.Category,
				"requestId": req.RequestID,
			})
			return nil, nil
		}
	}

	entry, err := r.append(ctx, req, prev, next)
	if err != nil && claimKey != "" {
		if relErr := r.deduper.Release(ctx, claimKey); relErr != nil {
			r.logger.Warn("failed to release request claim", map[string]interface{}{
				"companyId": req.CompanyID,
				"requestId": req.RequestID,
				"error":     relErr,
			})
		}
	}
	return entry, err
}

func (r *Recorder) append(ctx context.Context, req RecordRequest, prev, next float64) (*Entry, error) {
	var entry *Entry
	err := r.store.WithCompanyLock(ctx, req.CompanyID, func(tx Store) error {
		var err error
		entry, err = r.appendLocked(ctx, tx, req, prev, next)
		return err
	})
	if err != nil {
		var stdErr *apperrors.StandardError
		if errors.As(err, &stdErr) {
			return nil, stdErr
		}
		return nil, apperrors.NewHistoryAppendFailedError(err)
	}
	if entry == nil {
		return nil, nil
	}

	metrics.HistoryEntriesAppended.WithLabelValues(entry.Category).Inc()
	r.logger.Info("csr history entry appended", map[string]interface{}{
		"companyId":     entry.CompanyID,
		"entryId":       entry.ID,
		"category":      entry.Category,
		"previousScore": entry.PreviousScore,
		"newScore":      entry.NewScore,
	})
	return entry, nil
}

// appendLocked compares against the newest entry in the change's duplicate
// scope, then appends. It must run under the company lock.
func (r *Recorder) appendLocked(ctx context.Context, tx Store, req RecordRequest, prev, next float64) (*Entry, error) {
	latest, err := tx.Latest(ctx, req.CompanyID, DuplicateScope(req.Category)...)
	if err != nil {
		return nil, apperrors.NewHistoryQueryFailedError(err)
	}
	if latest != nil && latest.PreviousScore == prev && latest.NewScore == next {
		metrics.HistoryDuplicatesSkipped.WithLabelValues("content").Inc()
		r.logger.Debug("latest entry already records this change", map[string]interface{}{
			"companyId": req.CompanyID,
			"category":  req.Category,
			"entryId":   latest.ID,
		})
		return nil, nil
	}

	newest, err := tx.Latest(ctx, req.CompanyID, AllCategories()...)
	if err != nil {
		return nil, apperrors.NewHistoryQueryFailedError(err)
	}
	createdAt := r.now().UTC()
	if newest != nil && newest.CreatedAt.After(createdAt) {
		createdAt = newest.CreatedAt
	}

	entry := Entry{
		ID:            r.newID(),
		CompanyID:     req.CompanyID,
		PreviousScore: prev,
		NewScore:      next,
		Delta:         next - prev,
		Category:      req.Category,
		Reason:        req.Reason,
		CreatedAt:     createdAt,
	}
	if err := tx.Append(ctx, entry); err != nil {
		return nil, apperrors.NewHistoryAppendFailedError(err)
	}
	return &entry, nil
}
