// internal/workers/rating/generate-safety-tips/handler.go
package generatesafetytips

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
	"safety-rating/internal/common/validation"
	"safety-rating/internal/rating/recommend"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "generate-safety-tips"

var inputSchema = validation.MustCompile(`{
  "type": "object",
  "required": ["companyId"],
  "properties": {
    "companyId": {"type": "string", "minLength": 1, "maxLength": 128},
    "maxTips": {"type": "integer", "minimum": 0, "maximum": 20}
  }
}`)

type TipsProvider interface {
	Tips(ctx context.Context, companyID string) ([]recommend.Tip, error)
}

type Handler struct {
	config     *Config
	tips       TipsProvider
	errHandler *errors.ErrorHandler
	obs        *observability.Observability
	logger     logger.Logger
}

func NewHandler(config *Config, tips TipsProvider, obs *observability.Observability, log logger.Logger) *Handler {
	if config == nil {
		config = DefaultConfig()
	}
	scoped := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		tips:       tips,
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

	output, err := h.process(ctx, job)
	if err != nil {
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.Normalize(err).Code)).Inc()
		h.obs.RecordJobProcessed(ctx, TaskType, "failed")
		h.errHandler.HandleJobError(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
	h.obs.RecordJobProcessed(ctx, TaskType, "completed")
	h.obs.RecordJobDuration(ctx, TaskType, time.Since(startTime), "completed")
}

func (h *Handler) process(ctx context.Context, job entities.Job) (*Output, error) {
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, errors.NewInvalidJobInputError(fmt.Sprintf("parse variables: %v", err))
	}
	input, err := parseInput(variables)
	if err != nil {
		return nil, err
	}
	return h.Execute(ctx, input)
}

func parseInput(variables map[string]interface{}) (*Input, error) {
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
	tips, err := h.tips.Tips(ctx, input.CompanyID)
	if err != nil {
		return nil, err
	}

	high := 0
	for _, t := range tips {
		if t.Priority == recommend.PriorityHigh {
			high++
		}
	}
	total := len(tips)
	if input.MaxTips > 0 && len(tips) > input.MaxTips {
		tips = tips[:input.MaxTips]
	}

	output := &Output{
		Tips:              tips,
		TipCount:          total,
		HighPriorityCount: high,
	}
	if len(tips) > 0 {
		output.TopTip = tips[0].Tip
	}

	h.logger.Debug("safety tips generated", map[string]interface{}{
		"companyId":         input.CompanyID,
		"tipCount":          total,
		"highPriorityCount": high,
	})
	return output, nil
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
	}
}
