// Package service orchestrates snapshot reads, rating computation, tips and
// history tracking for one company-scoped caller.
package service

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"safety-rating/internal/common/config"
	apperrors "safety-rating/internal/common/errors"
	"safety-rating/internal/common/logger"
	"safety-rating/internal/common/metrics"
	"safety-rating/internal/rating/aggregator"
	"safety-rating/internal/rating/classifier"
	"safety-rating/internal/rating/history"
	"safety-rating/internal/rating/recommend"
)

// SnapshotSource supplies one consistent read of the collaborator stores.
type SnapshotSource interface {
	CompanySnapshot(ctx context.Context, companyID string) (aggregator.CompanySnapshot, error)
	EmployeeSnapshots(ctx context.Context, companyID string) ([]aggregator.EmployeeSnapshot, error)
}

// AlertPublisher sends tier-downgrade notifications.
type AlertPublisher interface {
	PublishJSON(ctx context.Context, subject string, payload interface{}, attributes map[string]string) (string, error)
}

type Config struct {
	DefaultReason  string
	DefaultLimit   int
	MaxLimit       int
	RequestTimeout time.Duration
}

func ConfigFromApp(cfg *config.Config) Config {
	return Config{
		DefaultReason:  cfg.Rating.History.DefaultReason,
		DefaultLimit:   cfg.Rating.History.DefaultLimit,
		MaxLimit:       cfg.Rating.History.MaxLimit,
		RequestTimeout: config.GetDuration(cfg.Server.RequestTimeout),
	}
}

type Dependencies struct {
	Source     SnapshotSource
	Aggregator *aggregator.Aggregator
	Recorder   *history.Recorder
	History    history.Store
	// Alerts is optional.
	Alerts AlertPublisher
	Logger logger.Logger
}

type Service struct {
	source     SnapshotSource
	aggregator *aggregator.Aggregator
	recorder   *history.Recorder
	history    history.Store
	alerts     AlertPublisher
	config     Config
	logger     logger.Logger
}

func New(deps Dependencies, cfg Config) *Service {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 50
	}
	if cfg.MaxLimit < cfg.DefaultLimit {
		cfg.MaxLimit = cfg.DefaultLimit
	}
	return &Service{
		source:     deps.Source,
		aggregator: deps.Aggregator,
		recorder:   deps.Recorder,
		history:    deps.History,
		alerts:     deps.Alerts,
		config:     cfg,
		logger:     deps.Logger.WithFields(map[string]interface{}{"component": "rating-service"}),
	}
}

// CompanySafetyRating computes the current rating and records an overall
// history entry when it differs from the last recorded score. A failure to
// record is logged and does not fail the read.
func (s *Service) CompanySafetyRating(ctx context.Context, companyID string) (*aggregator.CompanySafetyRating, error) {
	rating, err := s.computeCSR(ctx, companyID)
	if err != nil {
		return nil, err
	}

	if _, _, err := s.trackOverall(ctx, rating, history.CategoryOverall, s.config.DefaultReason, ""); err != nil {
		s.logger.Warn("failed to record rating change", map[string]interface{}{
			"companyId": companyID,
			"error":     err,
		})
	}
	return rating, nil
}

// History returns up to limit entries newest first; limit <= 0 selects the
// configured default and larger values are capped.
func (s *Service) History(ctx context.Context, companyID string, limit int) ([]history.Entry, error) {
	if err := validateCompanyID(companyID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = s.config.DefaultLimit
	}
	if limit > s.config.MaxLimit {
		limit = s.config.MaxLimit
	}

	entries, err := s.history.List(ctx, companyID, limit)
	if err != nil {
		return nil, apperrors.NewHistoryQueryFailedError(err)
	}
	return entries, nil
}

func (s *Service) WorkforceSafetyScore(ctx context.Context, companyID string) (*aggregator.WorkforceSafetyScore, error) {
	psrs, err := s.workforce(ctx, companyID, "wss")
	if err != nil {
		return nil, err
	}
	wss := aggregator.SummarizeWorkforce(psrs)
	return &wss, nil
}

func (s *Service) WorkforceDetails(ctx context.Context, companyID string) ([]aggregator.EmployeePSR, error) {
	return s.workforce(ctx, companyID, "psr_details")
}

func (s *Service) Tips(ctx context.Context, companyID string) ([]recommend.Tip, error) {
	rating, err := s.computeCSR(ctx, companyID)
	if err != nil {
		return nil, err
	}
	defer observe("tips", time.Now())
	return recommend.GenerateTips(*rating), nil
}

func (s *Service) computeCSR(ctx context.Context, companyID string) (*aggregator.CompanySafetyRating, error) {
	if err := validateCompanyID(companyID); err != nil {
		return nil, err
	}
	defer observe("csr", time.Now())

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	snap, err := s.source.CompanySnapshot(ctx, companyID)
	if err != nil {
		return nil, snapshotError(err)
	}
	rating := s.aggregator.ComputeCSR(snap)
	return &rating, nil
}

func (s *Service) workforce(ctx context.Context, companyID, kind string) ([]aggregator.EmployeePSR, error) {
	if err := validateCompanyID(companyID); err != nil {
		return nil, err
	}
	defer observe(kind, time.Now())

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	employees, err := s.source.EmployeeSnapshots(ctx, companyID)
	if err != nil {
		return nil, snapshotError(err)
	}
	return s.aggregator.ComputeWorkforce(employees), nil
}

// trackOverall records the company score against the last recorded one. The
// first score for a company is recorded as "initial" from 0 regardless of
// category. It returns the
// entry, if any, and the previously recorded score.
func (s *Service) trackOverall(ctx context.Context, rating *aggregator.CompanySafetyRating, category, reason, requestID string) (*history.Entry, *float64, error) {
	if rating.CSRRating == nil {
		return nil, nil, nil
	}

	latest, err := s.history.Latest(ctx, rating.CompanyID, history.ScoreCategories...)
	if err != nil {
		return nil, nil, apperrors.NewHistoryQueryFailedError(err)
	}

	req := history.RecordRequest{
		CompanyID: rating.CompanyID,
		NewScore:  *rating.CSRRating,
		Category:  history.CategoryInitial,
		Reason:    reason,
		RequestID: requestID,
	}
	var previous *float64
	if latest != nil {
		prev := latest.NewScore
		previous = &prev
		req.PreviousScore = prev
		req.Category = category
	}

	entry, err := s.recorder.RecordIfChanged(ctx, req)
	return entry, previous, err
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.config.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.config.RequestTimeout)
}

func validateCompanyID(companyID string) error {
	if strings.TrimSpace(companyID) == "" {
		return apperrors.NewInvalidCompanyIDError("company id is required")
	}
	return nil
}

// snapshotError passes classified errors through and reports anything else
// as unavailable data.
func snapshotError(err error) error {
	var std *apperrors.StandardError
	if stderrors.As(err, &std) {
		return std
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewSnapshotTimeoutError("snapshot")
	}
	return apperrors.NewSnapshotUnavailableError("snapshot", err)
}

func observe(kind string, start time.Time) {
	metrics.RatingComputations.WithLabelValues(kind).Inc()
	metrics.RatingComputationDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}

func tierOf(score *float64) classifier.Tier {
	return classifier.ClassifyPtr(score).Tier
}
