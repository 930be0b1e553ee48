// Package snapshot reads point-in-time rating inputs from the collaborator
// tables (projects, documents, employees, inspections).
package snapshot

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	apperrors "safety-rating/internal/common/errors"
	"safety-rating/internal/common/logger"
	"safety-rating/internal/rating/aggregator"
)

const sourceName = "postgres"

// TxBeginner opens the read-only transaction every snapshot is read in.
type TxBeginner interface {
	BeginSnapshot(ctx context.Context) (*sql.Tx, error)
}

type PostgresSource struct {
	db           TxBeginner
	recentWindow time.Duration
	now          func() time.Time
	logger       logger.Logger
}

func NewPostgresSource(db TxBeginner, recentInspectionsDays int, log logger.Logger) *PostgresSource {
	if recentInspectionsDays <= 0 {
		recentInspectionsDays = 90
	}
	return &PostgresSource{
		db:           db,
		recentWindow: time.Duration(recentInspectionsDays) * 24 * time.Hour,
		now:          time.Now,
		logger:       log.WithFields(map[string]interface{}{"component": "snapshot-source"}),
	}
}

// CompanySnapshot reads the company rating inputs in a single transaction.
func (s *PostgresSource) CompanySnapshot(ctx context.Context, companyID string) (aggregator.CompanySnapshot, error) {
	snap := aggregator.CompanySnapshot{CompanyID: companyID}

	err := s.withSnapshot(ctx, func(tx *sql.Tx) error {
		var err error
		if snap.Projects, err = s.activeProjects(ctx, tx, companyID); err != nil {
			return err
		}
		if snap.CompanyDocuments, err = s.companyDocuments(ctx, tx, companyID); err != nil {
			return err
		}
		if snap.Employees, err = s.employeeSignatures(ctx, tx, companyID); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return aggregator.CompanySnapshot{}, s.wrap(ctx, companyID, err)
	}

	snap.CapturedAt = s.now().UTC()
	return snap, nil
}

// EmployeeSnapshots reads personal rating inputs for every employee of the
// company, active or not.
func (s *PostgresSource) EmployeeSnapshots(ctx context.Context, companyID string) ([]aggregator.EmployeeSnapshot, error) {
	var employees []aggregator.EmployeeSnapshot

	err := s.withSnapshot(ctx, func(tx *sql.Tx) error {
		var err error
		if employees, err = s.employeeCounts(ctx, tx, companyID); err != nil {
			return err
		}
		return s.attachCertifications(ctx, tx, companyID, employees)
	})
	if err != nil {
		return nil, s.wrap(ctx, companyID, err)
	}
	return employees, nil
}

func (s *PostgresSource) withSnapshot(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("begin snapshot: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *PostgresSource) wrap(ctx context.Context, companyID string, err error) error {
	s.logger.Error("snapshot read failed", map[string]interface{}{
		"companyId": companyID,
		"error":     err,
	})
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperrors.NewSnapshotTimeoutError(sourceName)
	}
	return apperrors.NewSnapshotUnavailableError(sourceName, err)
}

func (s *PostgresSource) activeProjects(ctx context.Context, tx *sql.Tx, companyID string) ([]aggregator.Project, error) {
	query := `
		SELECT p.id, p.name, p.job_type,
			COUNT(ws.id) AS work_sessions,
			COUNT(ws.id) FILTER (
				WHERE EXISTS (SELECT 1 FROM harness_inspections hi WHERE hi.work_session_id = ws.id)
			) AS inspected_sessions
		FROM projects p
		LEFT JOIN work_sessions ws ON ws.project_id = p.id
		WHERE p.company_id = $1 AND p.status = 'active'
		GROUP BY p.id, p.name, p.job_type
		ORDER BY p.name, p.id
	`
	rows, err := tx.QueryContext(ctx, query, companyID)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer rows.Close()

	projects := []aggregator.Project{}
	index := map[string]int{}
	for rows.Next() {
		var p aggregator.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.JobType, &p.WorkSessions, &p.InspectedSessions); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		index[p.ID] = len(projects)
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}

	docQuery := `
		SELECT pd.project_id, pd.document_type
		FROM project_documents pd
		JOIN projects p ON p.id = pd.project_id
		WHERE p.company_id = $1 AND p.status = 'active'
	`
	docRows, err := tx.QueryContext(ctx, docQuery, companyID)
	if err != nil {
		return nil, fmt.Errorf("query project documents: %w", err)
	}
	defer docRows.Close()

	for docRows.Next() {
		var projectID, docType string
		if err := docRows.Scan(&projectID, &docType); err != nil {
			return nil, fmt.Errorf("scan project document: %w", err)
		}
		if i, ok := index[projectID]; ok {
			projects[i].Documents = append(projects[i].Documents, docType)
		}
	}
	if err := docRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate project documents: %w", err)
	}
	return projects, nil
}

func (s *PostgresSource) companyDocuments(ctx context.Context, tx *sql.Tx, companyID string) ([]string, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT DISTINCT document_type FROM company_documents WHERE company_id = $1`, companyID)
	if err != nil {
		return nil, fmt.Errorf("query company documents: %w", err)
	}
	defer rows.Close()

	docs := []string{}
	for rows.Next() {
		var docType string
		if err := rows.Scan(&docType); err != nil {
			return nil, fmt.Errorf("scan company document: %w", err)
		}
		docs = append(docs, docType)
	}
	return docs, rows.Err()
}

func (s *PostgresSource) employeeSignatures(ctx context.Context, tx *sql.Tx, companyID string) ([]aggregator.EmployeeSignatures, error) {
	query := `
		SELECT e.id, e.name,
			(SELECT COUNT(*) FROM company_documents cd
				WHERE cd.company_id = e.company_id AND cd.requires_signature) AS required_documents,
			(SELECT COUNT(DISTINCT ds.document_id) FROM document_signatures ds
				JOIN company_documents cd ON cd.id = ds.document_id
				WHERE ds.employee_id = e.id AND cd.requires_signature) AS signed_documents
		FROM employees e
		WHERE e.company_id = $1 AND e.status = 'active'
		ORDER BY e.name, e.id
	`
	rows, err := tx.QueryContext(ctx, query, companyID)
	if err != nil {
		return nil, fmt.Errorf("query employee signatures: %w", err)
	}
	defer rows.Close()

	employees := []aggregator.EmployeeSignatures{}
	for rows.Next() {
		var e aggregator.EmployeeSignatures
		if err := rows.Scan(&e.EmployeeID, &e.Name, &e.RequiredDocuments, &e.SignedDocuments); err != nil {
			return nil, fmt.Errorf("scan employee signatures: %w", err)
		}
		employees = append(employees, e)
	}
	return employees, rows.Err()
}

func (s *PostgresSource) employeeCounts(ctx context.Context, tx *sql.Tx, companyID string) ([]aggregator.EmployeeSnapshot, error) {
	query := `
		SELECT e.id, e.name, e.status = 'active' AS active,
			(SELECT COUNT(*) FROM harness_inspections hi
				WHERE hi.inspector_id = e.id AND hi.inspected_at >= $2) AS recent_inspections,
			(SELECT COUNT(*) FROM quiz_attempts qa WHERE qa.employee_id = e.id AND qa.passed) AS quizzes_passed,
			(SELECT COUNT(*) FROM quiz_attempts qa WHERE qa.employee_id = e.id) AS quizzes_total,
			(SELECT COUNT(*) FROM work_sessions ws WHERE ws.employee_id = e.id) AS work_sessions,
			(SELECT COUNT(*) FROM incidents i WHERE i.employee_id = e.id) AS incidents
		FROM employees e
		WHERE e.company_id = $1
		ORDER BY e.name, e.id
	`
	since := s.now().UTC().Add(-s.recentWindow)
	rows, err := tx.QueryContext(ctx, query, companyID, since)
	if err != nil {
		return nil, fmt.Errorf("query employee counts: %w", err)
	}
	defer rows.Close()

	employees := []aggregator.EmployeeSnapshot{}
	for rows.Next() {
		var e aggregator.EmployeeSnapshot
		if err := rows.Scan(&e.EmployeeID, &e.Name, &e.Active, &e.RecentInspections,
			&e.QuizzesPassed, &e.QuizzesTotal, &e.WorkSessions, &e.Incidents); err != nil {
			return nil, fmt.Errorf("scan employee counts: %w", err)
		}
		employees = append(employees, e)
	}
	return employees, rows.Err()
}

func (s *PostgresSource) attachCertifications(ctx context.Context, tx *sql.Tx, companyID string, employees []aggregator.EmployeeSnapshot) error {
	query := `
		SELECT c.employee_id, c.name, c.expires_at
		FROM certifications c
		JOIN employees e ON e.id = c.employee_id
		WHERE e.company_id = $1
	`
	rows, err := tx.QueryContext(ctx, query, companyID)
	if err != nil {
		return fmt.Errorf("query certifications: %w", err)
	}
	defer rows.Close()

	index := make(map[string]int, len(employees))
	for i, e := range employees {
		index[e.EmployeeID] = i
	}

	for rows.Next() {
		var (
			employeeID string
			cert       aggregator.Certification
			expiresAt  sql.NullTime
		)
		if err := rows.Scan(&employeeID, &cert.Name, &expiresAt); err != nil {
			return fmt.Errorf("scan certification: %w", err)
		}
		if expiresAt.Valid {
			t := expiresAt.Time
			cert.ExpiresAt = &t
		}
		if i, ok := index[employeeID]; ok {
			employees[i].Certifications = append(employees[i].Certifications, cert)
		}
	}
	return rows.Err()
}
