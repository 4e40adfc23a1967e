// Package handler exposes the MVR exchange over HTTP: single and batch
// ingestion plus consent-gated retrieval, all behind member-company JWTs.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"mvrgate/internal/mvr"
	"mvrgate/internal/platform/metrics"
	"mvrgate/internal/platform/middleware"
	"mvrgate/internal/transport/http/shared"
	"mvrgate/internal/validation"
	dErrors "mvrgate/pkg/domain-errors"
)

// Service defines the MVR exchange operations the handler dispatches to.
type Service interface {
	Ingest(ctx context.Context, sub mvr.Submission) (mvr.IngestResult, error)
	BatchIngest(ctx context.Context, subs []mvr.Submission) ([]mvr.IngestResult, mvr.BatchSummary, error)
	Retrieve(ctx context.Context, license, companyID string, days int) (*mvr.Aggregate, error)
}

// Handler handles MVR exchange endpoints.
type Handler struct {
	service      Service
	logger       *slog.Logger
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator

	// restrictedPurposes narrows ingestion purposes to the stricter set.
	restrictedPurposes bool
}

func New(service Service, logger *slog.Logger, m *metrics.Metrics, jwtValidator middleware.JWTValidator, restrictedPurposes bool) *Handler {
	return &Handler{
		service:            service,
		logger:             logger,
		metrics:            m,
		jwtValidator:       jwtValidator,
		restrictedPurposes: restrictedPurposes,
	}
}

// Register mounts the MVR routes with the full middleware chain.
func (h *Handler) Register(r chi.Router) {
	mvrRouter := chi.NewRouter()
	mvrRouter.Use(middleware.Recovery(h.logger))
	mvrRouter.Use(middleware.RequestID)
	mvrRouter.Use(middleware.RequestTime)
	mvrRouter.Use(middleware.Logger(h.logger))
	mvrRouter.Use(middleware.Timeout(30 * time.Second))
	mvrRouter.Use(middleware.ContentTypeJSON)
	mvrRouter.Use(middleware.Latency(h.metrics))
	mvrRouter.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
	mvrRouter.Post("/mvr", h.handleIngest)
	mvrRouter.Post("/mvr/batch", h.handleBatchIngest)
	mvrRouter.Post("/mvr/retrieve", h.handleRetrieve)

	r.Mount("/", mvrRouter)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.logger.WarnContext(r.Context(), "undecodable request body", "error", err)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return nil, false
	}
	return body, true
}

func (h *Handler) rejectValidation(w http.ResponseWriter, ctx context.Context, errs []string) {
	if h.metrics != nil {
		h.metrics.ValidationFailures.Inc()
	}
	h.logger.WarnContext(ctx, "request failed validation", "violations", len(errs))
	shared.WriteValidationError(w, validation.JoinErrors(errs))
}

// handleIngest accepts one MVR submission.
func (h *Handler) handleIngest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body, ok := h.decode(w, r)
	if !ok {
		return
	}

	errs := validation.Validate(body, validation.IngestionSchema(h.restrictedPurposes))
	payload, _ := body["mvr"].(map[string]any)
	if payload != nil {
		errs = append(errs, validation.Validate(payload, validation.MVRPayloadSchema())...)
	}
	if len(errs) > 0 {
		h.rejectValidation(w, ctx, errs)
		return
	}

	res, err := h.service.Ingest(ctx, submissionFrom(body, payload))
	if err != nil {
		h.logger.ErrorContext(ctx, "ingestion failed", "error", err)
		shared.WriteError(w, err)
		return
	}

	status := http.StatusOK
	if res.Outcome == mvr.OutcomeNew {
		status = http.StatusCreated
	}
	shared.WriteJSON(w, status, toIngestResponse(res))
}

// handleBatchIngest accepts a batch of MVR submissions sharing one
// purchase context. Validation and persistence are all-or-nothing.
func (h *Handler) handleBatchIngest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body, ok := h.decode(w, r)
	if !ok {
		return
	}

	errs := validation.Validate(body, validation.BatchSchema(h.restrictedPurposes))
	payloads, _ := body["mvrs"].([]any)
	if payloads != nil {
		errs = append(errs, validation.ValidateBatchPayloads(payloads)...)
	}
	if len(errs) > 0 {
		h.rejectValidation(w, ctx, errs)
		return
	}

	subs := make([]mvr.Submission, 0, len(payloads))
	for _, raw := range payloads {
		payload := raw.(map[string]any) // element shape enforced by validation
		subs = append(subs, submissionFrom(body, payload))
	}

	results, summary, err := h.service.BatchIngest(ctx, subs)
	if err != nil {
		h.logger.ErrorContext(ctx, "batch ingestion failed", "error", err, "batch_size", len(subs))
		// The batch rolled back, but the per-element outcomes still ship
		// so the caller can see which element failed.
		shared.WriteJSON(w, dErrors.ToHTTPStatus(err), toBatchFailureResponse(err, results, summary))
		return
	}
	shared.WriteJSON(w, http.StatusOK, toBatchResponse(results, summary))
}

// handleRetrieve returns the subject's current record when consent was
// given and the record is inside the caller's freshness window.
func (h *Handler) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body, ok := h.decode(w, r)
	if !ok {
		return
	}

	if errs := validation.Validate(body, validation.RetrievalSchema()); len(errs) > 0 {
		h.rejectValidation(w, ctx, errs)
		return
	}

	agg, err := h.service.Retrieve(ctx,
		getString(body, "drivers_license_number"),
		getString(body, "company_id"),
		int(getFloat(body, "days")),
	)
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			h.logger.ErrorContext(ctx, "retrieval failed", "error", err)
		}
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toAggregateResponse(agg))
}
