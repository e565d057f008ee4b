package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/vitalpath/health-analytics-backend/internal/domain/errors"
	"github.com/vitalpath/health-analytics-backend/internal/domain/prediction"
)

// predictionRepository implements the prediction store on PostgreSQL.
type predictionRepository struct {
	db executor
}

// NewPredictionRepository creates a PostgreSQL-backed prediction repository.
func NewPredictionRepository(db *sql.DB) *predictionRepository {
	return &predictionRepository{db: db}
}

func (r *predictionRepository) Save(ctx context.Context, p *prediction.HealthPrediction) error {
	factorsJSON, dataJSON, err := marshalPredictionDocs(p)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO health_predictions (
			id, subject_id, prediction_type, confidence, risk_score,
			prediction_data, factors, timeframe, actual_outcome, outcome_notes,
			valid_until, is_active, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err = r.db.ExecContext(ctx, query,
		p.ID, p.SubjectID, string(p.Type), p.Confidence, p.RiskScore,
		dataJSON, factorsJSON, string(p.Timeframe), string(p.Outcome), p.OutcomeNotes,
		p.ValidUntil, p.IsActive, p.CreatedAt,
	)
	if err != nil {
		return errors.NewInternalError("failed to save prediction").WithCause(err)
	}
	return nil
}

func (r *predictionRepository) Update(ctx context.Context, p *prediction.HealthPrediction) error {
	query := `
		UPDATE health_predictions
		SET actual_outcome = $2, outcome_notes = $3, is_active = $4
		WHERE id = $1
	`

	res, err := r.db.ExecContext(ctx, query, p.ID, string(p.Outcome), p.OutcomeNotes, p.IsActive)
	if err != nil {
		return errors.NewInternalError("failed to update prediction").WithCause(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.ErrPredictionNotFound
	}
	return nil
}

func (r *predictionRepository) GetByID(ctx context.Context, id uuid.UUID) (*prediction.HealthPrediction, error) {
	query := predictionSelect + ` WHERE id = $1`

	p, err := scanPrediction(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.ErrPredictionNotFound
		}
		return nil, errors.NewInternalError("failed to get prediction").WithCause(err)
	}
	return p, nil
}

func (r *predictionRepository) ListActiveBySubject(ctx context.Context, subjectID uuid.UUID) ([]*prediction.HealthPrediction, error) {
	query := predictionSelect + `
		WHERE subject_id = $1 AND is_active = true
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, subjectID)
	if err != nil {
		return nil, errors.NewInternalError("failed to list predictions").WithCause(err)
	}
	defer rows.Close()

	var out []*prediction.HealthPrediction
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, errors.NewInternalError("failed to scan prediction").WithCause(err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternalError("failed to iterate predictions").WithCause(err)
	}
	return out, nil
}

const predictionSelect = `
	SELECT id, subject_id, prediction_type, confidence, risk_score,
	       prediction_data, factors, timeframe, actual_outcome, outcome_notes,
	       valid_until, is_active, created_at
	FROM health_predictions
`

func marshalPredictionDocs(p *prediction.HealthPrediction) ([]byte, []byte, error) {
	factorsJSON, err := json.Marshal(p.Factors)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal factors: %w", err)
	}
	dataJSON, err := json.Marshal(p.Data)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal prediction data: %w", err)
	}
	return factorsJSON, dataJSON, nil
}

func scanPrediction(row rowScanner) (*prediction.HealthPrediction, error) {
	var (
		p            prediction.HealthPrediction
		typeStr      string
		timeframeStr string
		outcomeStr   string
		dataJSON     []byte
		factorsJSON  []byte
	)

	err := row.Scan(
		&p.ID, &p.SubjectID, &typeStr, &p.Confidence, &p.RiskScore,
		&dataJSON, &factorsJSON, &timeframeStr, &outcomeStr, &p.OutcomeNotes,
		&p.ValidUntil, &p.IsActive, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Type = prediction.Type(typeStr)
	p.Timeframe = prediction.Timeframe(timeframeStr)
	p.Outcome = prediction.Outcome(outcomeStr)
	if err := json.Unmarshal(dataJSON, &p.Data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal prediction data: %w", err)
	}
	if err := json.Unmarshal(factorsJSON, &p.Factors); err != nil {
		return nil, fmt.Errorf("failed to unmarshal factors: %w", err)
	}
	return &p, nil
}
