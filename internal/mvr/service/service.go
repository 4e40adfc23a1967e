// Package service implements the MVR exchange use cases: single and batch
// ingestion under the deduplication window, and freshness-filtered
// retrieval. Every outcome is audited best-effort.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"mvrgate/internal/audit"
	"mvrgate/internal/mvr"
	"mvrgate/internal/mvr/store"
	"mvrgate/internal/platform/config"
	"mvrgate/internal/platform/metrics"
	dErrors "mvrgate/pkg/domain-errors"
	"mvrgate/pkg/platform/sentinel"
	"mvrgate/pkg/requestcontext"
)

// NotFoundMessage is returned when a subject has no current record visible
// to the caller, whether missing or outside the freshness window.
const NotFoundMessage = "MVR not found"

// Service is the MVR exchange application service.
type Service struct {
	store   store.Store
	cache   *Cache
	audit   *audit.Emitter
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer

	dedupWindow        time.Duration
	defaultStorageDays int
}

func New(st store.Store, cache *Cache, emitter *audit.Emitter, logger *slog.Logger, m *metrics.Metrics, dedupWindow time.Duration) *Service {
	if dedupWindow <= 0 {
		dedupWindow = config.DefaultDedupWindow
	}
	return &Service{
		store:              st,
		cache:              cache,
		audit:              emitter,
		logger:             logger,
		metrics:            m,
		tracer:             otel.Tracer("mvrgate/mvr"),
		dedupWindow:        dedupWindow,
		defaultStorageDays: config.DefaultStorageLimitationDays,
	}
}

// operationFor maps an ingestion outcome to its audit operation.
func operationFor(outcome mvr.Outcome) audit.Operation {
	switch outcome {
	case mvr.OutcomeNew:
		return audit.OpCreate
	case mvr.OutcomeUpdated:
		return audit.OpUpdate
	default:
		return audit.OpDuplicateAttempt
	}
}

// Ingest persists one validated submission. A submission for a license
// whose current record is younger than the dedup window is suppressed and
// reported as skipped, which is still a success to the caller.
func (s *Service) Ingest(ctx context.Context, sub mvr.Submission) (mvr.IngestResult, error) {
	ctx, span := s.tracer.Start(ctx, "mvr.Ingest",
		trace.WithAttributes(attribute.String("company_id", sub.CompanyID)))
	defer span.End()

	sub = s.applyDefaults(ctx, sub)

	res, err := s.store.Ingest(ctx, sub, s.dedupWindow)
	if err != nil {
		s.recordIngestFailure(ctx, audit.OpCreate, sub, err)
		return mvr.IngestResult{}, mapStoreError(err, "failed to ingest MVR")
	}

	s.afterIngest(ctx, sub, res)
	return res, nil
}

// BatchIngest persists a batch atomically. Any persistence failure
// discards the whole batch; duplicate suppression of individual elements
// does not.
func (s *Service) BatchIngest(ctx context.Context, subs []mvr.Submission) ([]mvr.IngestResult, mvr.BatchSummary, error) {
	ctx, span := s.tracer.Start(ctx, "mvr.BatchIngest",
		trace.WithAttributes(attribute.Int("batch_size", len(subs))))
	defer span.End()

	companyID := batchCompany(subs)
	for i := range subs {
		subs[i] = s.applyDefaults(ctx, subs[i])
	}

	results, err := s.store.BatchIngest(ctx, subs, s.dedupWindow)
	summary := summarize(len(subs), results, err)

	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordsIngested.WithLabelValues("failed").Add(float64(summary.Failed))
		}
		s.audit.Emit(ctx, audit.FailureEvent(audit.OpBatchCreate, companyID, "", err.Error()))
		s.audit.Emit(ctx, audit.BatchSummaryEvent(companyID, batchCounts(summary)))
		// The store's index-qualified cause and the partial outcome list
		// both ride along so the caller can tell which element failed.
		return results, summary, mapStoreError(err, "failed to ingest MVR batch: "+err.Error())
	}

	for i, res := range results {
		s.afterIngest(ctx, subs[i], res)
	}
	s.audit.Emit(ctx, audit.BatchSummaryEvent(companyID, batchCounts(summary)))
	return results, summary, nil
}

// Retrieve returns the subject's current record when its report date is
// at most days*24h old. Stale and missing records are indistinguishable
// to the caller.
func (s *Service) Retrieve(ctx context.Context, license, companyID string, days int) (*mvr.Aggregate, error) {
	ctx, span := s.tracer.Start(ctx, "mvr.Retrieve",
		trace.WithAttributes(attribute.String("company_id", companyID)))
	defer span.End()

	agg := s.cache.Get(ctx, license)
	if agg == nil {
		var err error
		agg, err = s.store.GetAggregate(ctx, license)
		if errors.Is(err, sentinel.ErrNotFound) {
			s.countRetrieval("not_found")
			return nil, dErrors.New(dErrors.CodeNotFound, NotFoundMessage)
		}
		if err != nil {
			s.countRetrieval("failed")
			s.audit.Emit(ctx, audit.FailureEvent(audit.OpRetrieve, companyID, license, err.Error()))
			return nil, mapStoreError(err, "failed to retrieve MVR")
		}
		s.cache.Set(ctx, license, agg)
	}

	age := requestcontext.Now(ctx).Sub(agg.Record.ReportDate)
	if age > time.Duration(days)*24*time.Hour {
		s.countRetrieval("not_found")
		return nil, dErrors.New(dErrors.CodeNotFound, NotFoundMessage)
	}

	seller := ""
	if agg.Transaction != nil {
		seller = agg.Transaction.SellerCompanyID
	}
	s.audit.Emit(ctx, audit.ReadEvent(companyID, seller, license))
	s.countRetrieval("ok")
	return agg, nil
}

// applyDefaults fills submitter-optional record fields before persistence.
func (s *Service) applyDefaults(ctx context.Context, sub mvr.Submission) mvr.Submission {
	now := requestcontext.Now(ctx)

	sub.Record.DriversLicenseNumber = sub.Subject.DriversLicenseNumber
	sub.Record.CompanyID = sub.CompanyID
	sub.Record.Purpose = sub.Purpose
	sub.Record.PricePaid = sub.PricePaid
	sub.Record.RedisclosureAuthorized = sub.RedisclosureAuthorized

	if sub.Record.OrderDate.IsZero() {
		sub.Record.OrderDate = now
	}
	if sub.Record.ReportDate.IsZero() {
		sub.Record.ReportDate = now
	}
	if sub.StorageLimitationDays <= 0 {
		sub.StorageLimitationDays = s.defaultStorageDays
	}
	sub.Record.StorageLimitationDays = sub.StorageLimitationDays

	return sub
}

// afterIngest records metrics, drops stale cache entries, and emits the
// write event for one accepted or suppressed submission.
func (s *Service) afterIngest(ctx context.Context, sub mvr.Submission, res mvr.IngestResult) {
	license := sub.Subject.DriversLicenseNumber
	if s.metrics != nil {
		s.metrics.RecordsIngested.WithLabelValues(strings.ToLower(string(res.Outcome))).Inc()
	}
	if res.Outcome != mvr.OutcomeSkipped {
		s.cache.Invalidate(ctx, license)
	}

	// The write event describes the committed state, re-read outside the
	// ingest transaction. The submission is the fallback when that read
	// fails; the business result already stands either way.
	if snap, err := s.store.GetAuditSnapshot(ctx, license); err != nil {
		s.logger.WarnContext(ctx, "audit snapshot read failed",
			"error", err,
			"outcome", string(res.Outcome),
		)
	} else {
		license = snap.Subject.DriversLicenseNumber
	}
	s.audit.Emit(ctx, audit.WriteEvent(operationFor(res.Outcome), sub.CompanyID, license, 1))
}

func (s *Service) recordIngestFailure(ctx context.Context, op audit.Operation, sub mvr.Submission, err error) {
	if s.metrics != nil {
		s.metrics.RecordsIngested.WithLabelValues("failed").Inc()
	}
	s.audit.Emit(ctx, audit.FailureEvent(op, sub.CompanyID, sub.Subject.DriversLicenseNumber, err.Error()))
}

func (s *Service) countRetrieval(result string) {
	if s.metrics != nil {
		s.metrics.Retrievals.WithLabelValues(result).Inc()
	}
}

func mapStoreError(err error, msg string) error {
	if errors.Is(err, sentinel.ErrConflict) {
		return dErrors.Wrap(err, dErrors.CodeConflict, msg)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}

func batchCompany(subs []mvr.Submission) string {
	if len(subs) == 0 {
		return ""
	}
	return subs[0].CompanyID
}

func summarize(total int, results []mvr.IngestResult, err error) mvr.BatchSummary {
	summary := mvr.BatchSummary{Total: total}
	for _, res := range results {
		switch res.Outcome {
		case mvr.OutcomeNew:
			summary.New++
		case mvr.OutcomeUpdated:
			summary.Updated++
		case mvr.OutcomeSkipped:
			summary.Skipped++
		}
	}
	if err != nil {
		summary.Failed = total - len(results)
	}
	return summary
}

func batchCounts(s mvr.BatchSummary) audit.BatchCounts {
	return audit.BatchCounts{
		Total:   s.Total,
		New:     s.New,
		Updated: s.Updated,
		Skipped: s.Skipped,
		Failed:  s.Failed,
	}
}
