package aggregator

import (
	"testing"
	"time"

	"safety-rating/internal/rating/classifier"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func timePtr(t time.Time) *time.Time {
	return &t
}

func perfectEmployee(id string) EmployeeSnapshot {
	return EmployeeSnapshot{
		EmployeeID:        id,
		Active:            true,
		Certifications:    []Certification{{Name: "IRATA L1"}},
		RecentInspections: 10,
		QuizzesPassed:     5,
		QuizzesTotal:      5,
		WorkSessions:      20,
	}
}

func halfEmployee(id string) EmployeeSnapshot {
	return EmployeeSnapshot{
		EmployeeID:        id,
		Active:            true,
		Certifications:    []Certification{{Name: "Fall Arrest", ExpiresAt: timePtr(fixedNow.Add(10 * 24 * time.Hour))}},
		RecentInspections: 5,
		QuizzesPassed:     1,
		QuizzesTotal:      2,
		WorkSessions:      10,
	}
}

func TestComputePSR(t *testing.T) {
	agg := newTestAggregator(nil)

	tests := []struct {
		name     string
		employee EmployeeSnapshot
		expected float64
		label    string
	}{
		{"all components full", perfectEmployee("e1"), 100, "Excellent"},
		{"all components half", halfEmployee("e2"), 50, "Warning"},
		{"no data", EmployeeSnapshot{EmployeeID: "e3", Active: true}, 0, "Critical"},
		{
			name: "targets exceeded are capped",
			employee: EmployeeSnapshot{
				Certifications:    []Certification{{Name: "a"}},
				RecentInspections: 40,
				QuizzesPassed:     9,
				QuizzesTotal:      3,
				WorkSessions:      300,
			},
			expected: 100,
			label:    "Excellent",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			psr := agg.ComputePSR(tt.employee)
			assert.Equal(t, tt.expected, psr.OverallPSR)
			assert.Equal(t, tt.label, psr.PSRLabel)
			assert.Equal(t, (psr.Certifications.Score+psr.SafetyDocs.Score+psr.Quizzes.Score+psr.WorkHistory.Score)/4, psr.OverallPSR)
		})
	}
}

func TestCertificationsComponent(t *testing.T) {
	agg := newTestAggregator(nil)

	c := agg.certificationsComponent([]Certification{
		{Name: "valid", ExpiresAt: timePtr(fixedNow.Add(90 * 24 * time.Hour))},
		{Name: "expiring", ExpiresAt: timePtr(fixedNow.Add(5 * 24 * time.Hour))},
		{Name: "expired", ExpiresAt: timePtr(fixedNow.Add(-24 * time.Hour))},
		{Name: "lifetime"},
	})

	assert.Equal(t, 62.5, c.Score)
	assert.Equal(t, "2 valid, 1 expiring soon, 1 expired", c.Detail)
	assert.Equal(t, 0.0, agg.certificationsComponent(nil).Score)
}

func TestWorkHistoryComponent_IncidentPenalty(t *testing.T) {
	agg := newTestAggregator(nil)

	assert.Equal(t, 100.0, agg.workHistoryComponent(20, 0).Score)
	assert.Equal(t, 50.0, agg.workHistoryComponent(20, 1).Score)
	assert.Equal(t, 50.0, agg.workHistoryComponent(20, 4).Score)
	assert.Equal(t, 0.0, agg.workHistoryComponent(5, 2).Score)
}

func TestComputeWSS(t *testing.T) {
	agg := newTestAggregator(nil)

	inactive := perfectEmployee("gone")
	inactive.Active = false

	wss := agg.ComputeWSS([]EmployeeSnapshot{
		perfectEmployee("e1"),
		halfEmployee("e2"),
		{EmployeeID: "e3", Active: true},
		inactive,
	})

	require.NotNil(t, wss.WSSScore)
	assert.Equal(t, 50.0, *wss.WSSScore)
	assert.Equal(t, 3, wss.EmployeeCount)
	assert.Equal(t, "Warning", wss.WSSLabel)
	assert.Equal(t, WSSDescription, wss.Description)
}

func TestComputeWSS_NoEmployees(t *testing.T) {
	agg := newTestAggregator(nil)

	wss := agg.ComputeWSS(nil)

	assert.Nil(t, wss.WSSScore)
	assert.Equal(t, 0, wss.EmployeeCount)
	assert.Equal(t, classifier.LabelInsufficientData, wss.WSSLabel)
}

func TestComputeWorkforce_SkipsInactive(t *testing.T) {
	agg := newTestAggregator(nil)

	inactive := halfEmployee("e2")
	inactive.Active = false

	psrs := agg.ComputeWorkforce([]EmployeeSnapshot{perfectEmployee("e1"), inactive})
	require.Len(t, psrs, 1)
	assert.Equal(t, "e1", psrs[0].EmployeeID)
}
