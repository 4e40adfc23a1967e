//go:build integration

package store_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"mvrgate/internal/mvr"
	"mvrgate/internal/mvr/store"
	"mvrgate/pkg/platform/sentinel"
	platformtx "mvrgate/pkg/platform/tx"
	"mvrgate/pkg/requestcontext"
	"mvrgate/pkg/testutil/containers"
)

const window = 30 * 24 * time.Hour

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	// Truncate in dependency order
	err := s.postgres.TruncateTables(ctx,
		"transactions", "crimes", "accidents", "withdrawals", "violations",
		"license_info", "subjects", "mvr_records")
	s.Require().NoError(err)
}

func ctxAt(t time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), t)
}

func newSubmission(license, company string) mvr.Submission {
	return mvr.Submission{
		CompanyID:             company,
		Purpose:               "INSURANCE",
		PricePaid:             12.5,
		StorageLimitationDays: 1825,
		Subject: mvr.Subject{
			DriversLicenseNumber: license,
			FullLegalName:        "Jordan Q Driver",
			Birthdate:            "1990-05-04",
			Weight:               "180",
			Sex:                  "M",
			Height:               "5'11\"",
			HairColor:            "BRN",
			EyeColor:             "BLU",
			IssuedStateCode:      "OH",
		},
		Record: mvr.MVRRecord{
			StateCode:  "OH",
			OrderDate:  time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
			ReportDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		},
	}
}

func (s *PostgresStoreSuite) TestIngestAndAggregateRoundTrip() {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	sub := newSubmission("D100", "acme")
	sub.License = &mvr.LicenseInfo{Class: "D", Status: "VALID"}
	sub.Violations = []mvr.ViolationEntry{
		{Date: "2024-06-01", Code: "SP55"},
		{Date: "2025-01-15", Code: "RL20"},
	}
	sub.Accidents = []mvr.AccidentEntry{{Date: "2023-09-09", Description: "rear-end"}}

	res, err := s.store.Ingest(ctxAt(now), sub, window)
	s.Require().NoError(err)
	s.Equal(mvr.OutcomeNew, res.Outcome)

	agg, err := s.store.GetAggregate(context.Background(), "D100")
	s.Require().NoError(err)
	s.Equal(res.RecordID, agg.Record.ID)
	s.Equal("Jordan Q Driver", agg.Subject.FullLegalName)
	s.Equal("INSURANCE", agg.Record.Purpose.String())
	s.Equal(12.5, agg.Record.PricePaid)
	s.Require().NotNil(agg.License)
	s.Equal("D", agg.License.Class)
	s.Require().Len(agg.Violations, 2)
	s.Equal("RL20", agg.Violations[0].Code, "children ordered date descending")
	s.Equal("SP55", agg.Violations[1].Code)
	s.Require().Len(agg.Accidents, 1)
	s.Require().NotNil(agg.Transaction)
	s.Equal("acme", agg.Transaction.SellerCompanyID)
}

func (s *PostgresStoreSuite) TestDedupWindow() {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first, err := s.store.Ingest(ctxAt(base), newSubmission("D100", "acme"), window)
	s.Require().NoError(err)

	res, err := s.store.Ingest(ctxAt(base.Add(window-time.Second)), newSubmission("D100", "zenith"), window)
	s.Require().NoError(err)
	s.Equal(mvr.OutcomeSkipped, res.Outcome)
	s.Equal(first.RecordID, res.RecordID)
	s.Equal("MVR uploaded less than 30 days ago", res.Message)

	res, err = s.store.Ingest(ctxAt(base.Add(window)), newSubmission("D100", "zenith"), window)
	s.Require().NoError(err)
	s.Equal(mvr.OutcomeUpdated, res.Outcome)
	s.NotEqual(first.RecordID, res.RecordID)

	agg, err := s.store.GetAggregate(context.Background(), "D100")
	s.Require().NoError(err)
	s.Equal(res.RecordID, agg.Record.ID)
	s.Equal("zenith", agg.Transaction.SellerCompanyID)
}

func (s *PostgresStoreSuite) TestSupersededRecordsRetained() {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first, err := s.store.Ingest(ctxAt(base), newSubmission("D100", "acme"), window)
	s.Require().NoError(err)
	_, err = s.store.Ingest(ctxAt(base.Add(window+time.Hour)), newSubmission("D100", "acme"), window)
	s.Require().NoError(err)

	var count int
	err = s.postgres.DB.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM mvr_records WHERE drivers_license_number = $1", "D100").Scan(&count)
	s.Require().NoError(err)
	s.Equal(2, count, "superseding is append-only")

	var exists bool
	err = s.postgres.DB.QueryRowContext(context.Background(),
		"SELECT EXISTS(SELECT 1 FROM mvr_records WHERE id = $1)", first.RecordID).Scan(&exists)
	s.Require().NoError(err)
	s.True(exists)
}

func (s *PostgresStoreSuite) TestBatchRollsBackOnFailure() {
	// Second element carries a duplicate record ID to force a failure
	// after the first element succeeded.
	first := newSubmission("D100", "acme")
	second := newSubmission("D200", "acme")

	res, err := s.store.Ingest(ctxAt(time.Now()), newSubmission("D300", "acme"), window)
	s.Require().NoError(err)
	second.Record.ID = res.RecordID

	_, err = s.store.BatchIngest(ctxAt(time.Now()), []mvr.Submission{first, second}, window)
	s.Require().Error(err)

	_, err = s.store.GetAggregate(context.Background(), "D100")
	s.ErrorIs(err, sentinel.ErrNotFound, "whole batch discarded")
}

func (s *PostgresStoreSuite) TestConcurrentIngestSameLicense() {
	// The row lock serializes the recency check: exactly one of the
	// concurrent submissions for an existing subject may be accepted.
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	_, err := s.store.Ingest(ctxAt(base), newSubmission("D100", "acme"), window)
	s.Require().NoError(err)

	const goroutines = 20
	later := base.Add(window + time.Hour)

	var wg sync.WaitGroup
	var accepted, skipped atomic.Int32
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := s.store.Ingest(ctxAt(later), newSubmission("D100", "zenith"), window)
			if err != nil {
				return
			}
			switch res.Outcome {
			case mvr.OutcomeUpdated:
				accepted.Add(1)
			case mvr.OutcomeSkipped:
				skipped.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), accepted.Load(), "exactly one concurrent submission accepted")
	s.Equal(int32(goroutines-1), skipped.Load())
}

func (s *PostgresStoreSuite) TestAmbientTransactionOwnsCommit() {
	ctx := context.Background()
	dbtx, err := s.postgres.DB.BeginTx(ctx, nil)
	s.Require().NoError(err)

	res, err := s.store.Ingest(platformtx.WithTx(ctxAt(time.Now()), dbtx), newSubmission("D100", "acme"), window)
	s.Require().NoError(err)
	s.Equal(mvr.OutcomeNew, res.Outcome)

	// The caller's rollback discards the ingest: the store must not have
	// committed behind its back.
	s.Require().NoError(dbtx.Rollback())
	_, err = s.store.GetAggregate(ctx, "D100")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestGetAuditSnapshot() {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	res, err := s.store.Ingest(ctxAt(now), newSubmission("D100", "acme"), window)
	s.Require().NoError(err)

	snap, err := s.store.GetAuditSnapshot(context.Background(), "D100")
	s.Require().NoError(err)
	s.Equal(res.RecordID, snap.Record.ID)
	s.Equal("D100", snap.Subject.DriversLicenseNumber)
	s.Equal("acme", snap.Record.CompanyID)

	_, err = s.store.GetAuditSnapshot(context.Background(), "NOPE")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestGetAggregateUnknownLicense() {
	_, err := s.store.GetAggregate(context.Background(), "NOPE")
	s.ErrorIs(err, sentinel.ErrNotFound)
}
