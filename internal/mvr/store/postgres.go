package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"mvrgate/internal/mvr"
	"mvrgate/pkg/domain"
	"mvrgate/pkg/platform/sentinel"
	platformtx "mvrgate/pkg/platform/tx"
	"mvrgate/pkg/requestcontext"
)

const uniqueViolation = "23505"

// PostgresStore persists subjects and records in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed record store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Ingest(ctx context.Context, sub mvr.Submission, window time.Duration) (mvr.IngestResult, error) {
	// An ambient transaction (migration backfills, tests) owns its own
	// commit; only a locally opened one is committed here.
	if ambient, ok := platformtx.From(ctx); ok {
		return s.ingestInTx(ctx, ambient, sub, window)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mvr.IngestResult{}, fmt.Errorf("begin ingest tx: %w", err)
	}

	result, err := s.ingestInTx(ctx, tx, sub, window)
	if err != nil {
		_ = tx.Rollback()
		return mvr.IngestResult{}, err
	}

	// The SKIPPED fast path still commits so the dedup read and the
	// eventual aggregate read stay consistent.
	if err := tx.Commit(); err != nil {
		return mvr.IngestResult{}, fmt.Errorf("commit ingest tx: %w", err)
	}
	return result, nil
}

func (s *PostgresStore) BatchIngest(ctx context.Context, subs []mvr.Submission, window time.Duration) ([]mvr.IngestResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin batch tx: %w", err)
	}

	results := make([]mvr.IngestResult, 0, len(subs))
	for i, sub := range subs {
		result, err := s.ingestInTx(ctx, tx, sub, window)
		if err != nil {
			_ = tx.Rollback()
			return results, fmt.Errorf("batch element %d: %w", i, err)
		}
		results = append(results, result)
	}

	if err := tx.Commit(); err != nil {
		return results, fmt.Errorf("commit batch tx: %w", err)
	}
	return results, nil
}

// ingestInTx runs the upsert workflow on an open transaction. The subject
// row is locked before the recency check so two concurrent ingestions for
// the same license cannot both pass it.
func (s *PostgresStore) ingestInTx(ctx context.Context, tx *sql.Tx, sub mvr.Submission, window time.Duration) (mvr.IngestResult, error) {
	now := requestcontext.Now(ctx)
	license := sub.Subject.DriversLicenseNumber

	var currentRecordID uuid.UUID
	subjectExists := true
	err := tx.QueryRowContext(ctx, `
		SELECT current_record_id FROM subjects
		WHERE drivers_license_number = $1
		FOR UPDATE
	`, license).Scan(&currentRecordID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		subjectExists = false
	case err != nil:
		return mvr.IngestResult{}, fmt.Errorf("lock subject: %w", err)
	}

	if subjectExists {
		var uploadedAt time.Time
		err := tx.QueryRowContext(ctx, `
			SELECT uploaded_at FROM mvr_records WHERE id = $1
		`, currentRecordID).Scan(&uploadedAt)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return mvr.IngestResult{}, fmt.Errorf("read current record: %w", err)
		}
		if err == nil && now.Sub(uploadedAt) < window {
			return mvr.IngestResult{
				Outcome:  mvr.OutcomeSkipped,
				RecordID: currentRecordID,
				Message:  mvr.SkippedMessage,
			}, nil
		}
	}

	record := sub.Record
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	record.UploadedAt = now

	_, err = tx.ExecContext(ctx, `
		INSERT INTO mvr_records (
			id, drivers_license_number, claim_number, order_number,
			reference_number, state_code, purpose, is_certified,
			total_points, order_date, report_date, uploaded_at,
			company_id, price_paid, redisclosure_authorized,
			storage_limitation_days
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`,
		record.ID, license, record.ClaimNumber, record.OrderNumber,
		record.ReferenceNumber, record.StateCode, record.Purpose.String(), record.IsCertified,
		record.TotalPoints, record.OrderDate, record.ReportDate, record.UploadedAt,
		sub.CompanyID, sub.PricePaid, sub.RedisclosureAuthorized,
		sub.StorageLimitationDays,
	)
	if err != nil {
		return mvr.IngestResult{}, fmt.Errorf("insert record: %w", err)
	}

	if sub.License != nil {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO license_info (record_id, class, issue_date, expiration_date, status, restrictions)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, record.ID, sub.License.Class, sub.License.IssueDate, sub.License.ExpirationDate, sub.License.Status, sub.License.Restrictions)
		if err != nil {
			return mvr.IngestResult{}, fmt.Errorf("insert license info: %w", err)
		}
	}

	for i, v := range sub.Violations {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO violations (record_id, seq, date, conviction_date, location, description, code)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, record.ID, i, v.Date, v.ConvictionDate, v.Location, v.Description, v.Code)
		if err != nil {
			return mvr.IngestResult{}, fmt.Errorf("insert violation %d: %w", i, err)
		}
	}
	for i, w := range sub.Withdrawals {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO withdrawals (record_id, seq, date, reinstated_date, location, description, code)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, record.ID, i, w.Date, w.ReinstatedDate, w.Location, w.Description, w.Code)
		if err != nil {
			return mvr.IngestResult{}, fmt.Errorf("insert withdrawal %d: %w", i, err)
		}
	}
	for i, a := range sub.Accidents {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO accidents (record_id, seq, date, location, description, code)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, record.ID, i, a.Date, a.Location, a.Description, a.Code)
		if err != nil {
			return mvr.IngestResult{}, fmt.Errorf("insert accident %d: %w", i, err)
		}
	}
	for i, c := range sub.Crimes {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO crimes (record_id, seq, date, conviction_date, location, description, code)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, record.ID, i, c.Date, c.ConvictionDate, c.Location, c.Description, c.Code)
		if err != nil {
			return mvr.IngestResult{}, fmt.Errorf("insert crime %d: %w", i, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO transactions (record_id, seller_company_id, buyer_company_id, state_code)
		VALUES ($1, $2, $3, $4)
	`, record.ID, sub.CompanyID, "", record.StateCode)
	if err != nil {
		return mvr.IngestResult{}, fmt.Errorf("insert transaction: %w", err)
	}

	outcome := mvr.OutcomeUpdated
	if subjectExists {
		_, err = tx.ExecContext(ctx, `
			UPDATE subjects SET
				full_legal_name = $2, birthdate = $3, weight = $4, sex = $5,
				height = $6, hair_color = $7, eye_color = $8, address = $9,
				city = $10, state = $11, zip_code = $12, phone = $13,
				issued_state_code = $14, current_record_id = $15, updated_at = $16
			WHERE drivers_license_number = $1
		`,
			license, sub.Subject.FullLegalName, sub.Subject.Birthdate, sub.Subject.Weight, sub.Subject.Sex,
			sub.Subject.Height, sub.Subject.HairColor, sub.Subject.EyeColor, sub.Subject.Address,
			sub.Subject.City, sub.Subject.State, sub.Subject.ZipCode, sub.Subject.Phone,
			sub.Subject.IssuedStateCode, record.ID, now,
		)
		if err != nil {
			return mvr.IngestResult{}, fmt.Errorf("update subject: %w", err)
		}
	} else {
		outcome = mvr.OutcomeNew
		_, err = tx.ExecContext(ctx, `
			INSERT INTO subjects (
				drivers_license_number, full_legal_name, birthdate, weight, sex,
				height, hair_color, eye_color, address, city, state, zip_code,
				phone, issued_state_code, current_record_id, created_at, updated_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		`,
			license, sub.Subject.FullLegalName, sub.Subject.Birthdate, sub.Subject.Weight, sub.Subject.Sex,
			sub.Subject.Height, sub.Subject.HairColor, sub.Subject.EyeColor, sub.Subject.Address,
			sub.Subject.City, sub.Subject.State, sub.Subject.ZipCode, sub.Subject.Phone,
			sub.Subject.IssuedStateCode, record.ID, now, now,
		)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
				return mvr.IngestResult{}, fmt.Errorf("concurrent subject creation for %s: %w", license, sentinel.ErrConflict)
			}
			return mvr.IngestResult{}, fmt.Errorf("insert subject: %w", err)
		}
	}

	return mvr.IngestResult{Outcome: outcome, RecordID: record.ID}, nil
}

func (s *PostgresStore) GetAggregate(ctx context.Context, license string) (*mvr.Aggregate, error) {
	subject, record, err := s.readSubjectRecord(ctx, license)
	if err != nil {
		return nil, err
	}
	agg := mvr.Aggregate{Subject: subject, Record: record}

	if err := s.loadLicense(ctx, &agg); err != nil {
		return nil, err
	}
	if err := s.loadChildren(ctx, &agg); err != nil {
		return nil, err
	}
	if err := s.loadTransaction(ctx, &agg); err != nil {
		return nil, err
	}

	return &agg, nil
}

// GetAuditSnapshot runs on the pool, never inside an ingest transaction:
// it reads whatever the last commit made visible.
func (s *PostgresStore) GetAuditSnapshot(ctx context.Context, license string) (*mvr.Snapshot, error) {
	subject, record, err := s.readSubjectRecord(ctx, license)
	if err != nil {
		return nil, err
	}
	return &mvr.Snapshot{Subject: subject, Record: record}, nil
}

func (s *PostgresStore) readSubjectRecord(ctx context.Context, license string) (mvr.Subject, mvr.MVRRecord, error) {
	var subject mvr.Subject
	var record mvr.MVRRecord

	err := s.db.QueryRowContext(ctx, `
		SELECT drivers_license_number, full_legal_name, birthdate, weight, sex,
		       height, hair_color, eye_color, address, city, state, zip_code,
		       phone, issued_state_code, current_record_id, created_at, updated_at
		FROM subjects
		WHERE drivers_license_number = $1
	`, license).Scan(
		&subject.DriversLicenseNumber, &subject.FullLegalName, &subject.Birthdate,
		&subject.Weight, &subject.Sex, &subject.Height, &subject.HairColor,
		&subject.EyeColor, &subject.Address, &subject.City, &subject.State,
		&subject.ZipCode, &subject.Phone, &subject.IssuedStateCode,
		&subject.CurrentRecordID, &subject.CreatedAt, &subject.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return subject, record, sentinel.ErrNotFound
	}
	if err != nil {
		return subject, record, fmt.Errorf("query subject: %w", err)
	}

	var purpose string
	err = s.db.QueryRowContext(ctx, `
		SELECT id, drivers_license_number, claim_number, order_number,
		       reference_number, state_code, purpose, is_certified,
		       total_points, order_date, report_date, uploaded_at,
		       company_id, price_paid, redisclosure_authorized,
		       storage_limitation_days
		FROM mvr_records
		WHERE id = $1
	`, subject.CurrentRecordID).Scan(
		&record.ID, &record.DriversLicenseNumber, &record.ClaimNumber,
		&record.OrderNumber, &record.ReferenceNumber, &record.StateCode,
		&purpose, &record.IsCertified, &record.TotalPoints,
		&record.OrderDate, &record.ReportDate, &record.UploadedAt,
		&record.CompanyID, &record.PricePaid, &record.RedisclosureAuthorized,
		&record.StorageLimitationDays,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return subject, record, sentinel.ErrNotFound
	}
	if err != nil {
		return subject, record, fmt.Errorf("query record: %w", err)
	}
	record.Purpose = domain.PermissiblePurpose(purpose)

	return subject, record, nil
}

func (s *PostgresStore) loadLicense(ctx context.Context, agg *mvr.Aggregate) error {
	var lic mvr.LicenseInfo
	err := s.db.QueryRowContext(ctx, `
		SELECT record_id, class, issue_date, expiration_date, status, restrictions
		FROM license_info WHERE record_id = $1
	`, agg.Record.ID).Scan(&lic.RecordID, &lic.Class, &lic.IssueDate, &lic.ExpirationDate, &lic.Status, &lic.Restrictions)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("query license info: %w", err)
	}
	agg.License = &lic
	return nil
}

func (s *PostgresStore) loadChildren(ctx context.Context, agg *mvr.Aggregate) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT record_id, date, conviction_date, location, description, code
		FROM violations WHERE record_id = $1 ORDER BY date DESC, seq
	`, agg.Record.ID)
	if err != nil {
		return fmt.Errorf("query violations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var v mvr.ViolationEntry
		if err := rows.Scan(&v.RecordID, &v.Date, &v.ConvictionDate, &v.Location, &v.Description, &v.Code); err != nil {
			return fmt.Errorf("scan violation: %w", err)
		}
		agg.Violations = append(agg.Violations, v)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate violations: %w", err)
	}

	wrows, err := s.db.QueryContext(ctx, `
		SELECT record_id, date, reinstated_date, location, description, code
		FROM withdrawals WHERE record_id = $1 ORDER BY date DESC, seq
	`, agg.Record.ID)
	if err != nil {
		return fmt.Errorf("query withdrawals: %w", err)
	}
	defer wrows.Close()
	for wrows.Next() {
		var w mvr.WithdrawalEntry
		if err := wrows.Scan(&w.RecordID, &w.Date, &w.ReinstatedDate, &w.Location, &w.Description, &w.Code); err != nil {
			return fmt.Errorf("scan withdrawal: %w", err)
		}
		agg.Withdrawals = append(agg.Withdrawals, w)
	}
	if err := wrows.Err(); err != nil {
		return fmt.Errorf("iterate withdrawals: %w", err)
	}

	arows, err := s.db.QueryContext(ctx, `
		SELECT record_id, date, location, description, code
		FROM accidents WHERE record_id = $1 ORDER BY date DESC, seq
	`, agg.Record.ID)
	if err != nil {
		return fmt.Errorf("query accidents: %w", err)
	}
	defer arows.Close()
	for arows.Next() {
		var a mvr.AccidentEntry
		if err := arows.Scan(&a.RecordID, &a.Date, &a.Location, &a.Description, &a.Code); err != nil {
			return fmt.Errorf("scan accident: %w", err)
		}
		agg.Accidents = append(agg.Accidents, a)
	}
	if err := arows.Err(); err != nil {
		return fmt.Errorf("iterate accidents: %w", err)
	}

	crows, err := s.db.QueryContext(ctx, `
		SELECT record_id, date, conviction_date, location, description, code
		FROM crimes WHERE record_id = $1 ORDER BY date DESC, seq
	`, agg.Record.ID)
	if err != nil {
		return fmt.Errorf("query crimes: %w", err)
	}
	defer crows.Close()
	for crows.Next() {
		var c mvr.CrimeEntry
		if err := crows.Scan(&c.RecordID, &c.Date, &c.ConvictionDate, &c.Location, &c.Description, &c.Code); err != nil {
			return fmt.Errorf("scan crime: %w", err)
		}
		agg.Crimes = append(agg.Crimes, c)
	}
	if err := crows.Err(); err != nil {
		return fmt.Errorf("iterate crimes: %w", err)
	}

	return nil
}

func (s *PostgresStore) loadTransaction(ctx context.Context, agg *mvr.Aggregate) error {
	var txn mvr.Transaction
	err := s.db.QueryRowContext(ctx, `
		SELECT record_id, seller_company_id, buyer_company_id, state_code
		FROM transactions WHERE record_id = $1
	`, agg.Record.ID).Scan(&txn.RecordID, &txn.SellerCompanyID, &txn.BuyerCompanyID, &txn.StateCode)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("query transaction: %w", err)
	}
	agg.Transaction = &txn
	return nil
}
