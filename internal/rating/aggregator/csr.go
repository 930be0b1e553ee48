// internal/rating/aggregator/csr.go
package aggregator

import (
	"safety-rating/internal/rating/classifier"
)

// ComputeCSR builds the company safety rating from one snapshot. Categories
// with a zero denominator get a nil rating and are skipped in the weighted
// mean; with no included category the overall score is nil.
func (a *Aggregator) ComputeCSR(snapshot CompanySnapshot) CompanySafetyRating {
	details := Details{
		ActiveProjectCount:            len(snapshot.Projects),
		DocumentReviewsTotalEmployees: len(snapshot.Employees),
		HarnessProjects:               make([]HarnessProject, 0, len(snapshot.Projects)),
		DocumentationProjects:         make([]DocumentationProject, 0, len(snapshot.Projects)),
	}
	var bd Breakdown

	bd.HarnessInspectionPoints = a.harnessPoints(snapshot.Projects, &details)
	bd.ProjectDocumentationPoints = a.projectDocumentationPoints(snapshot.Projects, &details)
	bd.CompanyDocumentationPoints = a.companyDocumentationPoints(snapshot.CompanyDocuments, &details)
	bd.EmployeeDocReviewPoints = a.employeeDocReviewPoints(snapshot.Employees, &details)

	projects := float64(details.ActiveProjectCount)
	employees := float64(details.DocumentReviewsTotalEmployees)

	bd.Categories = []CategoryRating{
		a.categoryRating(CategoryHarnessInspection, bd.HarnessInspectionPoints, projects),
		a.categoryRating(CategoryProjectDocumentation, bd.ProjectDocumentationPoints, projects),
		a.categoryRating(CategoryCompanyDocumentation, bd.CompanyDocumentationPoints, 1),
		a.categoryRating(CategoryEmployeeDocReview, bd.EmployeeDocReviewPoints, employees),
	}
	bd.HarnessInspectionRating = bd.Categories[0].Rating
	bd.ProjectDocumentationRating = bd.Categories[1].Rating
	bd.CompanyDocumentationRating = bd.Categories[2].Rating
	bd.EmployeeDocReviewRating = bd.Categories[3].Rating

	rating := CompanySafetyRating{
		CompanyID:  snapshot.CompanyID,
		Breakdown:  bd,
		Details:    details,
		ComputedAt: a.now().UTC(),
	}

	if overall, ok := weightedMean(bd.Categories); ok {
		rating.OverallCSR = float64Ptr(overall)
		rating.CSRRating = float64Ptr(clamp(overall, 0, 100))
	}

	c := classifier.ClassifyPtr(rating.CSRRating)
	rating.CSRLabel = c.Label
	rating.CSRColor = c.Color
	rating.CSRTier = c.Tier
	return rating
}

// harnessPoints counts projects where every work session has an inspection.
// A project with no sessions yet has nothing outstanding and counts as compliant.
func (a *Aggregator) harnessPoints(projects []Project, details *Details) float64 {
	points := 0
	for _, p := range projects {
		sessions := max(p.WorkSessions, 0)
		inspected := min(max(p.InspectedSessions, 0), sessions)

		compliant := inspected >= sessions
		if compliant {
			points++
		}
		details.HarnessRequiredInspections += sessions
		details.HarnessCompletedInspections += inspected
		details.HarnessProjects = append(details.HarnessProjects, HarnessProject{
			ProjectID:         p.ID,
			ProjectName:       p.Name,
			WorkSessions:      sessions,
			InspectedSessions: inspected,
			Compliant:         compliant,
		})
	}
	return float64(points)
}

func (a *Aggregator) projectDocumentationPoints(projects []Project, details *Details) float64 {
	points := 0
	for _, p := range projects {
		required := p.RequiredDocuments()
		missing := missingDocuments(required, p.Documents)
		complete := len(missing) == 0
		if complete {
			points++
		}
		if p.IsElevation() {
			details.ElevationProjectCount++
		}
		details.DocumentationProjects = append(details.DocumentationProjects, DocumentationProject{
			ProjectID:         p.ID,
			ProjectName:       p.Name,
			JobType:           p.JobType,
			Elevation:         p.IsElevation(),
			RequiredDocuments: required,
			MissingDocuments:  missing,
			Complete:          complete,
		})
	}
	return float64(points)
}

// companyDocumentationPoints is uploaded/3 over the three required documents.
func (a *Aggregator) companyDocumentationPoints(documents []string, details *Details) float64 {
	missing := missingDocuments(RequiredCompanyDocuments, documents)
	uploaded := len(RequiredCompanyDocuments) - len(missing)

	details.CompanyDocsUploaded = &uploaded
	details.MissingCompanyDocuments = missing
	return float64(uploaded) / float64(len(RequiredCompanyDocuments))
}

// employeeDocReviewPoints counts employees who signed every required company
// document. An employee with nothing to sign has nothing pending.
func (a *Aggregator) employeeDocReviewPoints(employees []EmployeeSignatures, details *Details) float64 {
	points := 0
	for _, e := range employees {
		required := max(e.RequiredDocuments, 0)
		signed := min(max(e.SignedDocuments, 0), required)

		details.DocumentReviewsTotal += required
		details.DocumentReviewsSigned += signed
		if signed >= required {
			points++
		}
	}
	details.DocumentReviewsPending = details.DocumentReviewsTotal - details.DocumentReviewsSigned
	return float64(points)
}

func (a *Aggregator) categoryRating(category string, points, maxPoints float64) CategoryRating {
	cr := CategoryRating{
		Category:  category,
		Points:    points,
		MaxPoints: maxPoints,
		Weight:    a.config.Weights[category],
	}
	if maxPoints > 0 {
		cr.Rating = float64Ptr(clamp(ratio(points, maxPoints), 0, 100))
		cr.Included = cr.Weight > 0
	}
	c := classifier.ClassifyPtr(cr.Rating)
	cr.Label = c.Label
	cr.Color = c.Color
	return cr
}

func weightedMean(categories []CategoryRating) (float64, bool) {
	var sum, weights float64
	for _, c := range categories {
		if !c.Included {
			continue
		}
		sum += *c.Rating * c.Weight
		weights += c.Weight
	}
	if weights == 0 {
		return 0, false
	}
	return sum / weights, true
}
