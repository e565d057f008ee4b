package rest

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vitalpath/health-analytics-backend/internal/domain/assessment"
	"github.com/vitalpath/health-analytics-backend/internal/domain/prediction"
	"github.com/vitalpath/health-analytics-backend/internal/domain/trend"
	"github.com/vitalpath/health-analytics-backend/internal/service/insights"
	"github.com/vitalpath/health-analytics-backend/internal/service/predictor"
	"github.com/vitalpath/health-analytics-backend/internal/service/risk"
	"github.com/vitalpath/health-analytics-backend/internal/service/trends"
)

const maxBodyBytes = 1 << 20

// Handler exposes the analytics services over HTTP.
type Handler struct {
	trends    trends.Service
	risk      risk.Service
	predictor predictor.Service
	insights  insights.Service
	validate  *validator.Validate
	logger    *zap.Logger
}

func NewHandler(ts trends.Service, rs risk.Service, ps predictor.Service, is insights.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		trends:    ts,
		risk:      rs,
		predictor: ps,
		insights:  is,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		logger:    logger,
	}
}

// Register mounts all API routes on the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/observations", h.addObservation)
	mux.HandleFunc("GET /api/v1/subjects/{subjectID}/trends", h.listTrends)
	mux.HandleFunc("GET /api/v1/subjects/{subjectID}/trends/{metric}", h.getTrend)
	mux.HandleFunc("DELETE /api/v1/subjects/{subjectID}/trends/{metric}", h.deactivateTrend)
	mux.HandleFunc("GET /api/v1/subjects/{subjectID}/insights", h.getInsights)
	mux.HandleFunc("POST /api/v1/subjects/{subjectID}/assessments", h.generateAssessment)
	mux.HandleFunc("GET /api/v1/subjects/{subjectID}/assessments/latest", h.latestAssessment)
	mux.HandleFunc("POST /api/v1/assessments/{assessmentID}/reschedule", h.rescheduleAssessment)
	mux.HandleFunc("GET /api/v1/subjects/{subjectID}/risk-trend", h.riskTrend)
	mux.HandleFunc("POST /api/v1/subjects/{subjectID}/predictions", h.generatePredictions)
	mux.HandleFunc("GET /api/v1/subjects/{subjectID}/predictions", h.listPredictions)
	mux.HandleFunc("POST /api/v1/predictions/{predictionID}/outcome", h.markOutcome)
}

type observationDTO struct {
	SubjectID  string                 `json:"subject_id" validate:"required,uuid"`
	MetricName string                 `json:"metric_name" validate:"required,max=100"`
	Category   string                 `json:"category" validate:"required"`
	Value      float64                `json:"value"`
	Timestamp  *time.Time             `json:"timestamp,omitempty"`
	Source     string                 `json:"source,omitempty"`
	Context    map[string]interface{} `json:"context,omitempty"`
}

type assessmentRequestDTO struct {
	Type  string `json:"type" validate:"required,oneof=comprehensive mental_health physical_health medication"`
	Force bool   `json:"force"`
}

type rescheduleDTO struct {
	NextDue time.Time `json:"next_assessment_due" validate:"required"`
	Notes   string    `json:"notes" validate:"max=2000"`
}

type predictionRequestDTO struct {
	Timeframe string `json:"timeframe" validate:"omitempty,oneof=1_day 3_days 1_week 2_weeks 1_month 3_months"`
	Force     bool   `json:"force"`
}

type outcomeDTO struct {
	Outcome string `json:"outcome" validate:"required,oneof=accurate partially_accurate inaccurate"`
	Notes   string `json:"notes" validate:"max=2000"`
}

func (h *Handler) addObservation(w http.ResponseWriter, r *http.Request) {
	var dto observationDTO
	if !h.decode(w, r, &dto) {
		return
	}

	subjectID, _ := uuid.Parse(dto.SubjectID)
	req := trends.ObservationRequest{
		SubjectID:  subjectID,
		MetricName: dto.MetricName,
		Category:   trend.Category(dto.Category),
		Value:      dto.Value,
		Source:     trend.Source(dto.Source),
		Context:    dto.Context,
	}
	if dto.Timestamp != nil {
		req.Timestamp = *dto.Timestamp
	}

	t, err := h.trends.AddObservation(r.Context(), req)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *Handler) listTrends(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := h.subjectID(w, r)
	if !ok {
		return
	}

	filter := trends.TrendFilter{ActiveOnly: r.URL.Query().Get("include_inactive") != "true"}
	if raw := r.URL.Query().Get("category"); raw != "" {
		cat := trend.Category(raw)
		if !cat.Valid() {
			writeError(w, http.StatusBadRequest, "INVALID_CATEGORY", "unknown category")
			return
		}
		filter.Category = &cat
	}

	list, err := h.trends.GetTrends(r.Context(), subjectID, filter)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"trends": list, "count": len(list)})
}

func (h *Handler) getTrend(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := h.subjectID(w, r)
	if !ok {
		return
	}
	t, err := h.trends.GetTrend(r.Context(), subjectID, r.PathValue("metric"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handler) deactivateTrend(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := h.subjectID(w, r)
	if !ok {
		return
	}
	if err := h.trends.DeactivateTrend(r.Context(), subjectID, r.PathValue("metric")); err != nil {
		writeAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getInsights(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := h.subjectID(w, r)
	if !ok {
		return
	}

	var windowDays int
	if raw := r.URL.Query().Get("window_days"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil || days <= 0 {
			writeError(w, http.StatusBadRequest, "INVALID_WINDOW", "window_days must be a positive integer")
			return
		}
		windowDays = days
	}
	writeJSON(w, http.StatusOK, h.insights.Summarize(r.Context(), subjectID, windowDays))
}

func (h *Handler) generateAssessment(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := h.subjectID(w, r)
	if !ok {
		return
	}
	var dto assessmentRequestDTO
	if !h.decode(w, r, &dto) {
		return
	}

	a, err := h.risk.GenerateAssessment(r.Context(), subjectID, assessment.Type(dto.Type), dto.Force)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (h *Handler) latestAssessment(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := h.subjectID(w, r)
	if !ok {
		return
	}
	typ := assessment.Type(r.URL.Query().Get("type"))
	if typ == "" {
		typ = assessment.TypeComprehensive
	}
	if !typ.Valid() {
		writeError(w, http.StatusBadRequest, "INVALID_TYPE", "unknown assessment type")
		return
	}

	a, err := h.risk.GetLatestAssessment(r.Context(), subjectID, typ)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) rescheduleAssessment(w http.ResponseWriter, r *http.Request) {
	assessmentID, err := uuid.Parse(r.PathValue("assessmentID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "assessment id must be a uuid")
		return
	}
	var dto rescheduleDTO
	if !h.decode(w, r, &dto) {
		return
	}

	a, err := h.risk.RescheduleAssessment(r.Context(), assessmentID, dto.NextDue, dto.Notes)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) riskTrend(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := h.subjectID(w, r)
	if !ok {
		return
	}

	var lookback time.Duration
	if raw := r.URL.Query().Get("lookback_days"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil || days <= 0 {
			writeError(w, http.StatusBadRequest, "INVALID_LOOKBACK", "lookback_days must be a positive integer")
			return
		}
		lookback = time.Duration(days) * 24 * time.Hour
	}

	rt, err := h.risk.GetRiskTrend(r.Context(), subjectID, lookback)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rt)
}

func (h *Handler) generatePredictions(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := h.subjectID(w, r)
	if !ok {
		return
	}

	// The body is optional; an empty one means force=false.
	var dto predictionRequestDTO
	if r.ContentLength != 0 {
		if !h.decode(w, r, &dto) {
			return
		}
	}

	preds, err := h.predictor.GeneratePredictions(r.Context(), subjectID, prediction.Timeframe(dto.Timeframe), dto.Force)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"predictions": preds, "count": len(preds)})
}

func (h *Handler) listPredictions(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := h.subjectID(w, r)
	if !ok {
		return
	}
	preds, err := h.predictor.GetActivePredictions(r.Context(), subjectID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"predictions": preds, "count": len(preds)})
}

func (h *Handler) markOutcome(w http.ResponseWriter, r *http.Request) {
	predictionID, err := uuid.Parse(r.PathValue("predictionID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "prediction id must be a uuid")
		return
	}
	var dto outcomeDTO
	if !h.decode(w, r, &dto) {
		return
	}

	p, err := h.predictor.MarkOutcome(r.Context(), predictionID, prediction.Outcome(dto.Outcome), dto.Notes)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) subjectID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("subjectID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "subject id must be a uuid")
		return uuid.Nil, false
	}
	return id, true
}

// decode reads, unmarshals and validates a JSON body. It writes the error
// response itself and reports success to the caller.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "failed to read request body")
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "malformed JSON body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		h.logger.Debug("request validation failed", zap.Error(err))
		writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
		return false
	}
	return true
}
