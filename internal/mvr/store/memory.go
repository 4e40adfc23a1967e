package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"mvrgate/internal/mvr"
	"mvrgate/pkg/platform/sentinel"
	"mvrgate/pkg/requestcontext"
)

// bundle groups a record with its cascade so atomic commit/discard is a
// single map insert.
type bundle struct {
	record      mvr.MVRRecord
	license     *mvr.LicenseInfo
	violations  []mvr.ViolationEntry
	withdrawals []mvr.WithdrawalEntry
	accidents   []mvr.AccidentEntry
	crimes      []mvr.CrimeEntry
	transaction *mvr.Transaction
}

// MemoryStore is the in-memory Store used by unit tests and local runs.
// A single mutex serializes the check-then-act duplicate test, giving the
// same guarantee the Postgres store gets from its row lock.
type MemoryStore struct {
	mu       sync.Mutex
	subjects map[string]mvr.Subject
	bundles  map[uuid.UUID]*bundle

	// ChildInsertHook, when set, runs before each child-entity insert and
	// can return an error to simulate a mid-cascade persistence failure.
	// Tests use it to verify rollback leaves no partial state.
	ChildInsertHook func(kind string, index int) error
}

func NewMemory() *MemoryStore {
	return &MemoryStore{
		subjects: make(map[string]mvr.Subject),
		bundles:  make(map[uuid.UUID]*bundle),
	}
}

func (s *MemoryStore) Ingest(ctx context.Context, sub mvr.Submission, window time.Duration) (mvr.IngestResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ingestLocked(ctx, sub, window)
}

func (s *MemoryStore) BatchIngest(ctx context.Context, subs []mvr.Submission, window time.Duration) ([]mvr.IngestResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Stage against copies so a failure anywhere discards the whole batch.
	savedSubjects := make(map[string]mvr.Subject, len(s.subjects))
	for k, v := range s.subjects {
		savedSubjects[k] = v
	}
	savedBundles := make(map[uuid.UUID]*bundle, len(s.bundles))
	for k, v := range s.bundles {
		savedBundles[k] = v
	}

	results := make([]mvr.IngestResult, 0, len(subs))
	for i, sub := range subs {
		res, err := s.ingestLocked(ctx, sub, window)
		if err != nil {
			s.subjects = savedSubjects
			s.bundles = savedBundles
			return results, fmt.Errorf("batch element %d: %w", i, err)
		}
		results = append(results, res)
	}
	return results, nil
}

func (s *MemoryStore) ingestLocked(ctx context.Context, sub mvr.Submission, window time.Duration) (mvr.IngestResult, error) {
	now := requestcontext.Now(ctx)

	subject, exists := s.subjects[sub.Subject.DriversLicenseNumber]
	if exists {
		if current, ok := s.bundles[subject.CurrentRecordID]; ok {
			if now.Sub(current.record.UploadedAt) < window {
				return mvr.IngestResult{
					Outcome:  mvr.OutcomeSkipped,
					RecordID: current.record.ID,
					Message:  mvr.SkippedMessage,
				}, nil
			}
		}
	}

	record := sub.Record
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	record.UploadedAt = now

	b := &bundle{record: record}
	if sub.License != nil {
		lic := *sub.License
		lic.RecordID = record.ID
		b.license = &lic
	}
	for i, v := range sub.Violations {
		if err := s.childHook("violation", i); err != nil {
			return mvr.IngestResult{}, err
		}
		v.RecordID = record.ID
		b.violations = append(b.violations, v)
	}
	for i, w := range sub.Withdrawals {
		if err := s.childHook("withdrawal", i); err != nil {
			return mvr.IngestResult{}, err
		}
		w.RecordID = record.ID
		b.withdrawals = append(b.withdrawals, w)
	}
	for i, a := range sub.Accidents {
		if err := s.childHook("accident", i); err != nil {
			return mvr.IngestResult{}, err
		}
		a.RecordID = record.ID
		b.accidents = append(b.accidents, a)
	}
	for i, c := range sub.Crimes {
		if err := s.childHook("crime", i); err != nil {
			return mvr.IngestResult{}, err
		}
		c.RecordID = record.ID
		b.crimes = append(b.crimes, c)
	}
	b.transaction = &mvr.Transaction{
		RecordID:        record.ID,
		SellerCompanyID: sub.CompanyID,
		StateCode:       record.StateCode,
	}

	outcome := mvr.OutcomeUpdated
	if !exists {
		outcome = mvr.OutcomeNew
		subject = sub.Subject
		subject.CreatedAt = now
	} else {
		refreshed := sub.Subject
		refreshed.CreatedAt = subject.CreatedAt
		subject = refreshed
	}
	subject.CurrentRecordID = record.ID
	subject.UpdatedAt = now

	s.bundles[record.ID] = b
	s.subjects[subject.DriversLicenseNumber] = subject

	return mvr.IngestResult{Outcome: outcome, RecordID: record.ID}, nil
}

func (s *MemoryStore) childHook(kind string, index int) error {
	if s.ChildInsertHook != nil {
		return s.ChildInsertHook(kind, index)
	}
	return nil
}

func (s *MemoryStore) GetAggregate(ctx context.Context, license string) (*mvr.Aggregate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	subject, ok := s.subjects[license]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	b, ok := s.bundles[subject.CurrentRecordID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}

	agg := &mvr.Aggregate{
		Subject:     subject,
		Record:      b.record,
		Violations:  append([]mvr.ViolationEntry(nil), b.violations...),
		Withdrawals: append([]mvr.WithdrawalEntry(nil), b.withdrawals...),
		Accidents:   append([]mvr.AccidentEntry(nil), b.accidents...),
		Crimes:      append([]mvr.CrimeEntry(nil), b.crimes...),
	}
	if b.license != nil {
		lic := *b.license
		agg.License = &lic
	}
	if b.transaction != nil {
		tx := *b.transaction
		agg.Transaction = &tx
	}

	sort.SliceStable(agg.Violations, func(i, j int) bool { return agg.Violations[i].Date > agg.Violations[j].Date })
	sort.SliceStable(agg.Withdrawals, func(i, j int) bool { return agg.Withdrawals[i].Date > agg.Withdrawals[j].Date })
	sort.SliceStable(agg.Accidents, func(i, j int) bool { return agg.Accidents[i].Date > agg.Accidents[j].Date })
	sort.SliceStable(agg.Crimes, func(i, j int) bool { return agg.Crimes[i].Date > agg.Crimes[j].Date })

	return agg, nil
}

func (s *MemoryStore) GetAuditSnapshot(_ context.Context, license string) (*mvr.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	subject, ok := s.subjects[license]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	b, ok := s.bundles[subject.CurrentRecordID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &mvr.Snapshot{Subject: subject, Record: b.record}, nil
}
