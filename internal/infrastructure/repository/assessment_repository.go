package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vitalpath/health-analytics-backend/internal/domain/assessment"
	"github.com/vitalpath/health-analytics-backend/internal/domain/errors"
	"github.com/vitalpath/health-analytics-backend/internal/domain/trend"
)

// assessmentRepository implements the assessment store on PostgreSQL.
type assessmentRepository struct {
	db executor
}

// NewAssessmentRepository creates a PostgreSQL-backed assessment repository.
func NewAssessmentRepository(db *sql.DB) *assessmentRepository {
	return &assessmentRepository{db: db}
}

func (r *assessmentRepository) Save(ctx context.Context, a *assessment.RiskAssessment) error {
	scoresJSON, alertsJSON, err := marshalAssessmentDocs(a)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO risk_assessments (
			id, subject_id, assessment_type, overall_risk_score, risk_level,
			category_scores, alerts, confidence, next_assessment_due, notes, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = r.db.ExecContext(ctx, query,
		a.ID, a.SubjectID, string(a.Type), a.OverallRiskScore, int(a.RiskLevel),
		scoresJSON, alertsJSON, a.Confidence, a.NextDue, a.Notes, a.CreatedAt,
	)
	if err != nil {
		return errors.NewInternalError("failed to save assessment").WithCause(err)
	}
	return nil
}

func (r *assessmentRepository) Update(ctx context.Context, a *assessment.RiskAssessment) error {
	query := `
		UPDATE risk_assessments
		SET next_assessment_due = $2, notes = $3
		WHERE id = $1
	`

	res, err := r.db.ExecContext(ctx, query, a.ID, a.NextDue, a.Notes)
	if err != nil {
		return errors.NewInternalError("failed to update assessment").WithCause(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.ErrAssessmentNotFound
	}
	return nil
}

func (r *assessmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*assessment.RiskAssessment, error) {
	query := assessmentSelect + `
		WHERE id = $1
	`

	a, err := scanAssessment(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.ErrAssessmentNotFound
		}
		return nil, errors.NewInternalError("failed to get assessment").WithCause(err)
	}
	return a, nil
}

func (r *assessmentRepository) LatestByType(ctx context.Context, subjectID uuid.UUID, typ assessment.Type) (*assessment.RiskAssessment, error) {
	query := assessmentSelect + `
		WHERE subject_id = $1 AND assessment_type = $2
		ORDER BY created_at DESC
		LIMIT 1
	`

	a, err := scanAssessment(r.db.QueryRowContext(ctx, query, subjectID, string(typ)))
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.ErrAssessmentNotFound
		}
		return nil, errors.NewInternalError("failed to get latest assessment").WithCause(err)
	}
	return a, nil
}

func (r *assessmentRepository) ListBySubject(ctx context.Context, subjectID uuid.UUID, since time.Time) ([]*assessment.RiskAssessment, error) {
	query := assessmentSelect + `
		WHERE subject_id = $1 AND created_at >= $2
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, subjectID, since)
	if err != nil {
		return nil, errors.NewInternalError("failed to list assessments").WithCause(err)
	}
	defer rows.Close()

	var out []*assessment.RiskAssessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, errors.NewInternalError("failed to scan assessment").WithCause(err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternalError("failed to iterate assessments").WithCause(err)
	}
	return out, nil
}

const assessmentSelect = `
	SELECT id, subject_id, assessment_type, overall_risk_score, risk_level,
	       category_scores, alerts, confidence, next_assessment_due, notes, created_at
	FROM risk_assessments
`

func marshalAssessmentDocs(a *assessment.RiskAssessment) ([]byte, []byte, error) {
	scoresJSON, err := json.Marshal(a.CategoryScores)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal category scores: %w", err)
	}
	alertsJSON, err := json.Marshal(a.Alerts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal alerts: %w", err)
	}
	return scoresJSON, alertsJSON, nil
}

func scanAssessment(row rowScanner) (*assessment.RiskAssessment, error) {
	var (
		a          assessment.RiskAssessment
		typeStr    string
		level      int
		scoresJSON []byte
		alertsJSON []byte
	)

	err := row.Scan(
		&a.ID, &a.SubjectID, &typeStr, &a.OverallRiskScore, &level,
		&scoresJSON, &alertsJSON, &a.Confidence, &a.NextDue, &a.Notes, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.Type = assessment.Type(typeStr)
	a.RiskLevel = assessment.RiskLevel(level)
	a.CategoryScores = make(map[trend.Category]float64)
	if err := json.Unmarshal(scoresJSON, &a.CategoryScores); err != nil {
		return nil, fmt.Errorf("failed to unmarshal category scores: %w", err)
	}
	if err := json.Unmarshal(alertsJSON, &a.Alerts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal alerts: %w", err)
	}
	return &a, nil
}
