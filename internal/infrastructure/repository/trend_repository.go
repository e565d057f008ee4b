package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/vitalpath/health-analytics-backend/internal/domain/errors"
	"github.com/vitalpath/health-analytics-backend/internal/domain/trend"
)

// trendRepository implements the trend store on PostgreSQL. The value series
// and derived artifacts live in JSONB columns; the queryable identity
// (subject, metric, category, active flag) is relational.
type trendRepository struct {
	db executor
}

type executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// NewTrendRepository creates a PostgreSQL-backed trend repository.
func NewTrendRepository(db *sql.DB) *trendRepository {
	return &trendRepository{db: db}
}

type trendDoc struct {
	DataPoints    []trend.DataPoint       `json:"data_points"`
	Analytics     trend.Analytics         `json:"analytics"`
	PredictionIDs []uuid.UUID             `json:"prediction_ids,omitempty"`
	Correlations  []trend.CorrelationEntry `json:"correlations,omitempty"`
	Patterns      []trend.PatternEntry    `json:"patterns,omitempty"`
	Targets       *trend.Targets          `json:"targets,omitempty"`
	Quality       trend.DataQuality       `json:"quality"`
}

func (r *trendRepository) Save(ctx context.Context, t *trend.Trend) error {
	doc, err := json.Marshal(trendDoc{
		DataPoints:    t.DataPoints,
		Analytics:     t.Analytics,
		PredictionIDs: t.PredictionIDs,
		Correlations:  t.Correlations,
		Patterns:      t.Patterns,
		Targets:       t.Targets,
		Quality:       t.Quality,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal trend document: %w", err)
	}

	query := `
		INSERT INTO metric_trends (
			id, subject_id, metric_name, category, timeframe,
			document, is_active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (subject_id, metric_name) DO UPDATE SET
			timeframe = EXCLUDED.timeframe,
			document = EXCLUDED.document,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		t.ID, t.SubjectID, metricKey(t.MetricName), string(t.Category), string(t.Timeframe),
		doc, t.IsActive, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return errors.NewInternalError("failed to save trend").WithCause(err)
	}
	return nil
}

func (r *trendRepository) GetBySubjectAndMetric(ctx context.Context, subjectID uuid.UUID, metricName string) (*trend.Trend, error) {
	query := `
		SELECT id, subject_id, metric_name, category, timeframe,
		       document, is_active, created_at, updated_at
		FROM metric_trends
		WHERE subject_id = $1 AND metric_name = $2
	`

	t, err := scanTrend(r.db.QueryRowContext(ctx, query, subjectID, metricKey(metricName)))
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.ErrTrendNotFound
		}
		return nil, errors.NewInternalError("failed to get trend").WithCause(err)
	}
	return t, nil
}

func (r *trendRepository) ListBySubject(ctx context.Context, subjectID uuid.UUID, activeOnly bool) ([]*trend.Trend, error) {
	query := `
		SELECT id, subject_id, metric_name, category, timeframe,
		       document, is_active, created_at, updated_at
		FROM metric_trends
		WHERE subject_id = $1 AND ($2 = false OR is_active = true)
		ORDER BY metric_name
	`

	rows, err := r.db.QueryContext(ctx, query, subjectID, activeOnly)
	if err != nil {
		return nil, errors.NewInternalError("failed to list trends").WithCause(err)
	}
	defer rows.Close()

	var out []*trend.Trend
	for rows.Next() {
		t, err := scanTrend(rows)
		if err != nil {
			return nil, errors.NewInternalError("failed to scan trend").WithCause(err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternalError("failed to iterate trends").WithCause(err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTrend(row rowScanner) (*trend.Trend, error) {
	var (
		t            trend.Trend
		categoryStr  string
		timeframeStr string
		docBytes     []byte
	)

	err := row.Scan(
		&t.ID, &t.SubjectID, &t.MetricName, &categoryStr, &timeframeStr,
		&docBytes, &t.IsActive, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	var doc trendDoc
	if err := json.Unmarshal(docBytes, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trend document: %w", err)
	}

	t.Category = trend.Category(categoryStr)
	t.Timeframe = trend.Timeframe(timeframeStr)
	t.DataPoints = doc.DataPoints
	t.Analytics = doc.Analytics
	t.PredictionIDs = doc.PredictionIDs
	t.Correlations = doc.Correlations
	t.Patterns = doc.Patterns
	t.Targets = doc.Targets
	t.Quality = doc.Quality
	return &t, nil
}
