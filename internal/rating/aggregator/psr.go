// internal/rating/aggregator/psr.go
package aggregator

import (
	"fmt"

	"safety-rating/internal/rating/classifier"
)

// ComputePSR rates one employee as the unweighted mean of four components.
// Components without data score 0 rather than being left out.
func (a *Aggregator) ComputePSR(employee EmployeeSnapshot) EmployeePSR {
	certs := a.certificationsComponent(employee.Certifications)
	docs := a.safetyDocsComponent(employee.RecentInspections)
	quizzes := a.quizzesComponent(employee.QuizzesPassed, employee.QuizzesTotal)
	work := a.workHistoryComponent(employee.WorkSessions, employee.Incidents)

	overall := clamp((certs.Score+docs.Score+quizzes.Score+work.Score)/4, 0, 100)
	c := classifier.Classify(overall)

	return EmployeePSR{
		EmployeeID:     employee.EmployeeID,
		Name:           employee.Name,
		OverallPSR:     overall,
		PSRLabel:       c.Label,
		PSRColor:       c.Color,
		PSRTier:        c.Tier,
		Certifications: certs,
		SafetyDocs:     docs,
		Quizzes:        quizzes,
		WorkHistory:    work,
	}
}

// ComputeWorkforce returns personal ratings for active employees, in input order.
func (a *Aggregator) ComputeWorkforce(employees []EmployeeSnapshot) []EmployeePSR {
	out := make([]EmployeePSR, 0, len(employees))
	for _, e := range employees {
		if !e.Active {
			continue
		}
		out = append(out, a.ComputePSR(e))
	}
	return out
}

// ComputeWSS averages the personal ratings of active employees. The score is
// nil only when there are no active employees.
func (a *Aggregator) ComputeWSS(employees []EmployeeSnapshot) WorkforceSafetyScore {
	return SummarizeWorkforce(a.ComputeWorkforce(employees))
}

// SummarizeWorkforce builds the workforce score from already computed ratings.
func SummarizeWorkforce(psrs []EmployeePSR) WorkforceSafetyScore {
	wss := WorkforceSafetyScore{
		EmployeeCount: len(psrs),
		Description:   WSSDescription,
	}
	if len(psrs) > 0 {
		sum := 0.0
		for _, p := range psrs {
			sum += p.OverallPSR
		}
		wss.WSSScore = float64Ptr(clamp(sum/float64(len(psrs)), 0, 100))
	}

	c := classifier.ClassifyPtr(wss.WSSScore)
	wss.WSSLabel = c.Label
	wss.WSSColor = c.Color
	wss.WSSTier = c.Tier
	return wss
}

// certificationsComponent gives full credit per valid certification and half
// credit per certification expiring inside the configured window.
func (a *Aggregator) certificationsComponent(certs []Certification) Component {
	if len(certs) == 0 {
		return Component{Score: 0, Detail: "No certifications on file"}
	}

	now := a.now()
	soon := now.Add(a.config.ExpiringWindow)
	var valid, expiring, expired int
	for _, c := range certs {
		switch {
		case c.ExpiresAt == nil || c.ExpiresAt.After(soon):
			valid++
		case c.ExpiresAt.After(now):
			expiring++
		default:
			expired++
		}
	}

	score := (float64(valid)*100 + float64(expiring)*50) / float64(len(certs))
	return Component{
		Score:  clamp(score, 0, 100),
		Detail: fmt.Sprintf("%d valid, %d expiring soon, %d expired", valid, expiring, expired),
	}
}

func (a *Aggregator) safetyDocsComponent(recentInspections int) Component {
	target := a.config.SafetyDocsTarget
	n := max(recentInspections, 0)
	return Component{
		Score:  clamp(ratio(float64(min(n, target)), float64(target)), 0, 100),
		Detail: fmt.Sprintf("%d of %d recent inspections", n, target),
	}
}

func (a *Aggregator) quizzesComponent(passed, total int) Component {
	if total <= 0 {
		return Component{Score: 0, Detail: "No quizzes taken"}
	}
	passed = min(max(passed, 0), total)
	return Component{
		Score:  ratio(float64(passed), float64(total)),
		Detail: fmt.Sprintf("%d of %d quizzes passed", passed, total),
	}
}

// workHistoryComponent scales logged sessions against the target and applies a
// flat penalty when any incident was recorded.
func (a *Aggregator) workHistoryComponent(sessions, incidents int) Component {
	target := a.config.WorkSessionsTarget
	n := max(sessions, 0)
	score := ratio(float64(min(n, target)), float64(target))
	if incidents > 0 {
		score -= a.config.IncidentPenalty
	}
	return Component{
		Score:  clamp(score, 0, 100),
		Detail: fmt.Sprintf("%d work sessions, %d incidents", n, max(incidents, 0)),
	}
}
