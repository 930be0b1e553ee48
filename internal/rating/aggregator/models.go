// internal/rating/aggregator/models.go
package aggregator

import (
	"strings"
	"time"

	"safety-rating/internal/rating/classifier"
)

// Breakdown category keys. History entries use these too.
const (
	CategoryHarnessInspection    = "harnessInspection"
	CategoryProjectDocumentation = "projectDocumentation"
	CategoryCompanyDocumentation = "companyDocumentation"
	CategoryEmployeeDocReview    = "employeeDocReview"
)

// Categories lists the breakdown keys in display order.
var Categories = []string{
	CategoryHarnessInspection,
	CategoryProjectDocumentation,
	CategoryCompanyDocumentation,
	CategoryEmployeeDocReview,
}

// Project document types.
const (
	DocRopeAccessPlan   = "Rope Access Plan"
	DocAnchorInspection = "Anchor Inspection"
	DocToolboxMeeting   = "Toolbox Meeting"
	DocFLHA             = "FLHA"
)

var (
	ElevationProjectDocuments = []string{DocRopeAccessPlan, DocAnchorInspection, DocToolboxMeeting, DocFLHA}
	StandardProjectDocuments  = []string{DocToolboxMeeting, DocFLHA}
)

// Company document types.
const (
	DocHealthSafetyManual     = "Health & Safety Manual"
	DocCompanyPolicy          = "Company Policy"
	DocCertificateOfInsurance = "Certificate of Insurance"
)

var RequiredCompanyDocuments = []string{DocHealthSafetyManual, DocCompanyPolicy, DocCertificateOfInsurance}

const JobTypeElevation = "elevation"

// ==========================
// Snapshot (input)
// ==========================

// CompanySnapshot is one point-in-time read of every collaborator store the
// company rating depends on.
type CompanySnapshot struct {
	CompanyID        string
	Projects         []Project
	CompanyDocuments []string
	Employees        []EmployeeSignatures
	CapturedAt       time.Time
}

// Project is an active project with its session and document state.
type Project struct {
	ID                string
	Name              string
	JobType           string
	WorkSessions      int
	InspectedSessions int
	Documents         []string
}

// IsElevation reports whether the job type requires the expanded document set.
func (p Project) IsElevation() bool {
	return strings.Contains(strings.ToLower(p.JobType), JobTypeElevation)
}

// RequiredDocuments returns the document set for the project's job type.
func (p Project) RequiredDocuments() []string {
	if p.IsElevation() {
		return ElevationProjectDocuments
	}
	return StandardProjectDocuments
}

// EmployeeSignatures is an employee's acknowledgement state for the company
// documents currently marked as requiring a signature.
type EmployeeSignatures struct {
	EmployeeID        string
	Name              string
	RequiredDocuments int
	SignedDocuments   int
}

// EmployeeSnapshot carries the raw counts a personal rating is built from.
type EmployeeSnapshot struct {
	EmployeeID        string
	Name              string
	Active            bool
	Certifications    []Certification
	RecentInspections int
	QuizzesPassed     int
	QuizzesTotal      int
	WorkSessions      int
	Incidents         int
}

// Certification with a nil ExpiresAt never expires.
type Certification struct {
	Name      string
	ExpiresAt *time.Time
}

// ==========================
// Company Safety Rating (output)
// ==========================

type CompanySafetyRating struct {
	CompanyID  string          `json:"companyId"`
	OverallCSR *float64        `json:"overallCSR"`
	CSRRating  *float64        `json:"csrRating"`
	CSRLabel   string          `json:"csrLabel"`
	CSRColor   string          `json:"csrColor"`
	CSRTier    classifier.Tier `json:"csrTier"`
	Breakdown  Breakdown       `json:"breakdown"`
	Details    Details         `json:"details"`
	ComputedAt time.Time       `json:"computedAt"`
}

// Breakdown holds category points and their 0-100 ratings. A nil rating means
// the category had no denominator and was left out of the overall score.
type Breakdown struct {
	HarnessInspectionPoints    float64 `json:"harnessInspectionPoints"`
	ProjectDocumentationPoints float64 `json:"projectDocumentationPoints"`
	CompanyDocumentationPoints float64 `json:"companyDocumentationPoints"`
	EmployeeDocReviewPoints    float64 `json:"employeeDocReviewPoints"`

	HarnessInspectionRating    *float64 `json:"harnessInspectionRating"`
	ProjectDocumentationRating *float64 `json:"projectDocumentationRating"`
	CompanyDocumentationRating *float64 `json:"companyDocumentationRating"`
	EmployeeDocReviewRating    *float64 `json:"employeeDocReviewRating"`

	Categories []CategoryRating `json:"categories"`
}

type CategoryRating struct {
	Category  string   `json:"category"`
	Points    float64  `json:"points"`
	MaxPoints float64  `json:"maxPoints"`
	Rating    *float64 `json:"rating"`
	Weight    float64  `json:"weight"`
	Included  bool     `json:"included"`
	Label     string   `json:"label"`
	Color     string   `json:"color"`
}

// Details carries the raw counters behind each category.
type Details struct {
	HarnessCompletedInspections int `json:"harnessCompletedInspections"`
	HarnessRequiredInspections  int `json:"harnessRequiredInspections"`

	DocumentReviewsSigned         int `json:"documentReviewsSigned"`
	DocumentReviewsTotal          int `json:"documentReviewsTotal"`
	DocumentReviewsPending        int `json:"documentReviewsPending"`
	DocumentReviewsTotalEmployees int `json:"documentReviewsTotalEmployees"`

	ActiveProjectCount    int `json:"activeProjectCount"`
	ElevationProjectCount int `json:"elevationProjectCount"`

	// CompanyDocsUploaded is nil when the count is unknown, as opposed to 0 of 3.
	CompanyDocsUploaded     *int     `json:"companyDocsUploaded"`
	MissingCompanyDocuments []string `json:"missingCompanyDocuments"`

	HarnessProjects       []HarnessProject       `json:"harnessProjects"`
	DocumentationProjects []DocumentationProject `json:"documentationProjects"`
}

type HarnessProject struct {
	ProjectID         string `json:"projectId"`
	ProjectName       string `json:"projectName"`
	WorkSessions      int    `json:"workSessions"`
	InspectedSessions int    `json:"inspectedSessions"`
	Compliant         bool   `json:"compliant"`
}

type DocumentationProject struct {
	ProjectID         string   `json:"projectId"`
	ProjectName       string   `json:"projectName"`
	JobType           string   `json:"jobType"`
	Elevation         bool     `json:"elevation"`
	RequiredDocuments []string `json:"requiredDocuments"`
	MissingDocuments  []string `json:"missingDocuments"`
	Complete          bool     `json:"complete"`
}

// ==========================
// Personal / Workforce ratings (output)
// ==========================

// Component is one 0-100 personal rating input.
type Component struct {
	Score  float64 `json:"score"`
	Detail string  `json:"detail"`
}

type EmployeePSR struct {
	EmployeeID     string          `json:"employeeId"`
	Name           string          `json:"name"`
	OverallPSR     float64         `json:"overallPSR"`
	PSRLabel       string          `json:"psrLabel"`
	PSRColor       string          `json:"psrColor"`
	PSRTier        classifier.Tier `json:"psrTier"`
	Certifications Component       `json:"certifications"`
	SafetyDocs     Component       `json:"safetyDocs"`
	Quizzes        Component       `json:"quizzes"`
	WorkHistory    Component       `json:"workHistory"`
}

// WSSDescription is returned with every workforce score.
const WSSDescription = "The Workforce Safety Score is an educational average of your active employees' " +
	"Personal Safety Ratings. It is not contractual and does not affect your Company Safety Rating."

type WorkforceSafetyScore struct {
	WSSScore      *float64        `json:"wssScore"`
	WSSLabel      string          `json:"wssLabel"`
	WSSColor      string          `json:"wssColor"`
	WSSTier       classifier.Tier `json:"wssTier"`
	EmployeeCount int             `json:"employeeCount"`
	Description   string          `json:"description"`
}
