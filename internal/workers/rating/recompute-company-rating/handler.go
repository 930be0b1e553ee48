// internal/workers/rating/recompute-company-rating/handler.go
package recomputecompanyrating

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"safety-rating/internal/common/errors"
	"safety-rating/internal/common/logger"
	"safety-rating/internal/common/metrics"
	"safety-rating/internal/common/observability"
	"safety-rating/internal/rating/service"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "recompute-company-rating"

// Recomputer is satisfied by *service.Service.
type Recomputer interface {
	Recompute(ctx context.Context, req service.RecomputeRequest) (*service.RecomputeResult, error)
}

type Handler struct {
	config     *Config
	service    Recomputer
	errHandler *errors.ErrorHandler
	obs        *observability.Observability
	logger     logger.Logger
}

func NewHandler(config *Config, svc Recomputer, obs *observability.Observability, log logger.Logger) *Handler {
	if config == nil {
		config = DefaultConfig()
	}
	scoped := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		service:    svc,
		errHandler: errors.NewErrorHandler(scoped),
		obs:        obs,
		logger:     scoped,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

	input, err := h.parseInput(job)
	if err == nil {
		var output *Output
		output, err = h.Execute(ctx, input)
		if err == nil {
			h.completeJob(ctx, client, job, output)
			metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
			metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
			h.obs.RecordJobProcessed(ctx, TaskType, "completed")
			h.obs.RecordJobDuration(ctx, TaskType, time.Since(startTime), "completed")
			return
		}
	}

	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.Normalize(err).Code)).Inc()
	h.obs.RecordJobProcessed(ctx, TaskType, "failed")
	h.obs.RecordJobDuration(ctx, TaskType, time.Since(startTime), "failed")
	h.errHandler.HandleJobError(ctx, client, job, err)
}

// parseInput validates the job variables against the input schema. A job
// without requestId is keyed by its job key so Zeebe retries stay idempotent.
func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, errors.NewInvalidJobInputError(fmt.Sprintf("parse variables: %v", err))
	}
	input, err := decodeInput(variables)
	if err != nil {
		return nil, err
	}
	if input.RequestID == "" {
		input.RequestID = fmt.Sprintf("job-%d", job.GetKey())
	}
	return input, nil
}

func decodeInput(variables map[string]interface{}) (*Input, error) {
	result := inputSchema.Validate(variables)
	if !result.Valid {
		return nil, errors.NewInvalidJobInputError(strings.Join(result.GetErrorMessages(), "; "))
	}

	raw, err := json.Marshal(variables)
	if err != nil {
		return nil, errors.NewInvalidJobInputError(err.Error())
	}
	var input Input
	if err := json.Unmarshal(raw, &input); err != nil {
		return nil, errors.NewInvalidJobInputError(err.Error())
	}
	return &input, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	result, err := h.service.Recompute(ctx, service.RecomputeRequest{
		CompanyID: input.CompanyID,
		Reason:    input.Reason,
		Category:  input.Category,
		RequestID: input.RequestID,
	})
	if err != nil {
		return nil, err
	}

	return &Output{
		CSRRating:      result.Rating.CSRRating,
		CSRLabel:       result.Rating.CSRLabel,
		CSRTier:        string(result.Rating.CSRTier),
		PreviousScore:  result.PreviousScore,
		HistoryEntries: len(result.Entries),
		Downgraded:     result.Downgraded,
		AlertSent:      result.AlertSent,
		TipCount:       len(result.Tips),
	}, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.GetKey()).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err,
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err,
		})
		return
	}

	h.logger.Info("company rating recompute completed", map[string]interface{}{
		"jobKey":         job.GetKey(),
		"csrRating":      output.CSRRating,
		"historyEntries": output.HistoryEntries,
		"downgraded":     output.Downgraded,
	})
}
