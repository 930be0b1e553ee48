package recomputecompanyrating

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"safety-rating/internal/common/config"
	"safety-rating/internal/common/errors"
	"safety-rating/internal/common/logger"
	"safety-rating/internal/common/observability"
	"safety-rating/internal/rating/aggregator"
	"safety-rating/internal/rating/classifier"
	"safety-rating/internal/rating/history"
	"safety-rating/internal/rating/history/historytest"
	"safety-rating/internal/rating/recommend"
	"safety-rating/internal/rating/service"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRecomputer struct {
	got    service.RecomputeRequest
	result *service.RecomputeResult
	err    error
}

func (f *fakeRecomputer) Recompute(_ context.Context, req service.RecomputeRequest) (*service.RecomputeResult, error) {
	f.got = req
	return f.result, f.err
}

func createMockJob(key int64, variables map[string]interface{}) entities.Job {
	variablesJSON, _ := json.Marshal(variables)

	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:                key,
		Type:               TaskType,
		ProcessInstanceKey: key * 10,
		BpmnProcessId:      "company-rating-process",
		ElementId:          "Activity_RecomputeRating",
		CustomHeaders:      "{}",
		Worker:             "test-worker",
		Retries:            3,
		Variables:          string(variablesJSON),
	}}
}

func createTestConfig() *Config {
	return &Config{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       5 * time.Second,
		MaxRetries:    3,
	}
}

func newTestHandler(t *testing.T, svc Recomputer) *Handler {
	t.Helper()
	return NewHandler(createTestConfig(), svc, observability.Noop(), logger.NewTestLogger(t))
}

func TestParseInput(t *testing.T) {
	h := newTestHandler(t, &fakeRecomputer{})

	tests := []struct {
		name          string
		variables     map[string]interface{}
		wantErr       bool
		wantRequestID string
	}{
		{
			name:          "valid with request id",
			variables:     map[string]interface{}{"companyId": "company-1", "reason": "Harness inspection logged", "requestId": "insp-42"},
			wantRequestID: "insp-42",
		},
		{
			name:          "request id defaults to job key",
			variables:     map[string]interface{}{"companyId": "company-1", "reason": "Document uploaded", "category": "companyDocumentation"},
			wantRequestID: "job-7",
		},
		{
			name:      "missing reason",
			variables: map[string]interface{}{"companyId": "company-1"},
			wantErr:   true,
		},
		{
			name:      "empty company",
			variables: map[string]interface{}{"companyId": "", "reason": "x"},
			wantErr:   true,
		},
		{
			name:      "unknown category",
			variables: map[string]interface{}{"companyId": "company-1", "reason": "x", "category": "bogus"},
			wantErr:   true,
		},
		{
			name:      "initial is not a trigger category",
			variables: map[string]interface{}{"companyId": "company-1", "reason": "x", "category": "initial"},
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input, err := h.parseInput(createMockJob(7, tt.variables))
			if tt.wantErr {
				require.Error(t, err)
				std := errors.Normalize(err)
				assert.Equal(t, errors.ErrCodeInvalidJobInput, std.Code)
				assert.Zero(t, errors.ConvertToBPMNError(std).Retries)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "company-1", input.CompanyID)
			assert.Equal(t, tt.wantRequestID, input.RequestID)
		})
	}
}

func TestExecute(t *testing.T) {
	score := 45.0
	prev := 92.0
	fake := &fakeRecomputer{result: &service.RecomputeResult{
		Rating: &aggregator.CompanySafetyRating{
			CompanyID: "company-1",
			CSRRating: &score,
			CSRLabel:  "Critical",
			CSRTier:   classifier.TierCritical,
		},
		Entries:       []history.Entry{{ID: "e1"}, {ID: "e2"}},
		PreviousScore: &prev,
		Downgraded:    true,
		AlertSent:     true,
		Tips:          []recommend.Tip{{Category: aggregator.CategoryHarnessInspection}},
	}}
	h := newTestHandler(t, fake)

	output, err := h.Execute(context.Background(), &Input{
		CompanyID: "company-1",
		Reason:    "Harness inspection missed",
		Category:  aggregator.CategoryHarnessInspection,
		RequestID: "insp-1",
	})

	require.NoError(t, err)
	assert.Equal(t, service.RecomputeRequest{
		CompanyID: "company-1",
		Reason:    "Harness inspection missed",
		Category:  aggregator.CategoryHarnessInspection,
		RequestID: "insp-1",
	}, fake.got)
	assert.Equal(t, &score, output.CSRRating)
	assert.Equal(t, "critical", output.CSRTier)
	assert.Equal(t, 92.0, *output.PreviousScore)
	assert.Equal(t, 2, output.HistoryEntries)
	assert.True(t, output.Downgraded)
	assert.True(t, output.AlertSent)
	assert.Equal(t, 1, output.TipCount)
}

func TestExecute_ServiceError(t *testing.T) {
	fake := &fakeRecomputer{err: errors.NewSnapshotUnavailableError("postgres", fmt.Errorf("refused"))}
	h := newTestHandler(t, fake)

	output, err := h.Execute(context.Background(), &Input{CompanyID: "company-1", Reason: "x"})

	require.Error(t, err)
	assert.Nil(t, output)
	bpmn := errors.ConvertToBPMNError(errors.Normalize(err))
	assert.Equal(t, string(errors.ErrCodeSnapshotUnavailable), bpmn.Code)
	assert.Equal(t, 3, bpmn.Retries)
}

func TestExecute_WithRatingService(t *testing.T) {
	log := logger.NewTestLogger(t)
	store := historytest.NewMemoryStore()
	svc := service.New(service.Dependencies{
		Source:     staticSource{docs: []string{aggregator.DocHealthSafetyManual}},
		Aggregator: aggregator.New(nil),
		Recorder:   history.NewRecorder(store, nil, log),
		History:    store,
		Logger:     log,
	}, service.Config{DefaultReason: "recalculated", DefaultLimit: 10, MaxLimit: 10})
	h := newTestHandler(t, svc)

	output, err := h.Execute(context.Background(), &Input{CompanyID: "company-1", Reason: "Policy uploaded", RequestID: "doc-1"})
	require.NoError(t, err)
	assert.InDelta(t, 33.33, *output.CSRRating, 0.01)
	assert.Equal(t, 1, output.HistoryEntries)
	assert.Nil(t, output.PreviousScore)

	entries, err := store.List(context.Background(), "company-1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, history.CategoryInitial, entries[0].Category)
	assert.Equal(t, "Policy uploaded", entries[0].Reason)
}

type staticSource struct {
	docs []string
}

func (s staticSource) CompanySnapshot(_ context.Context, companyID string) (aggregator.CompanySnapshot, error) {
	return aggregator.CompanySnapshot{CompanyID: companyID, CompanyDocuments: s.docs}, nil
}

func (s staticSource) EmployeeSnapshots(context.Context, string) ([]aggregator.EmployeeSnapshot, error) {
	return nil, nil
}

func TestConfigFromApp(t *testing.T) {
	cfg := &config.Config{Workers: map[string]config.WorkerConfig{
		TaskType: {Enabled: false, MaxJobsActive: 2, Timeout: 1500, MaxRetries: 1},
	}}

	wc := ConfigFromApp(cfg)
	assert.False(t, wc.Enabled)
	assert.Equal(t, 2, wc.MaxJobsActive)
	assert.Equal(t, 1500*time.Millisecond, wc.Timeout)
	require.NoError(t, wc.Validate())

	defaults := ConfigFromApp(&config.Config{})
	assert.True(t, defaults.Enabled)
	assert.Equal(t, 30*time.Second, defaults.Timeout)

	assert.Error(t, (&Config{MaxJobsActive: 1}).Validate())
}
