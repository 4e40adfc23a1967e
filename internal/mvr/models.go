// Package mvr holds the domain model for motor vehicle record exchange:
// subjects keyed by driver's-license number, the records supplied for them,
// and the per-record child collections.
package mvr

import (
	"time"

	"github.com/google/uuid"

	"mvrgate/pkg/domain"
)

// Subject is one row per driver's-license number. Created on first accepted
// ingestion, never deleted; CurrentRecordID is repointed on every accepted
// re-ingestion and always references the most recent accepted record.
type Subject struct {
	DriversLicenseNumber string
	FullLegalName        string
	Birthdate            string
	Weight               string
	Sex                  string
	Height               string
	HairColor            string
	EyeColor             string
	Address              string
	City                 string
	State                string
	ZipCode              string
	Phone                string
	IssuedStateCode      string
	CurrentRecordID      uuid.UUID
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// MVRRecord is one row per accepted ingestion. Immutable once created;
// superseded records are retained, superseding is append-only.
type MVRRecord struct {
	ID                     uuid.UUID
	DriversLicenseNumber   string
	ClaimNumber            string
	OrderNumber            string
	ReferenceNumber        string
	StateCode              string
	Purpose                domain.PermissiblePurpose
	IsCertified            bool
	TotalPoints            int
	OrderDate              time.Time
	ReportDate             time.Time
	UploadedAt             time.Time
	CompanyID              string
	PricePaid              float64
	RedisclosureAuthorized bool
	// StorageLimitationDays caps retention conceptually; deletion
	// enforcement happens elsewhere, the value is only persisted here.
	StorageLimitationDays int
}

// LicenseInfo is zero-or-one per record. Omitted entirely when the
// submission carried no license fields.
type LicenseInfo struct {
	RecordID       uuid.UUID
	Class          string
	IssueDate      string
	ExpirationDate string
	Status         string
	Restrictions   string
}

// ViolationEntry is a moving violation on the record.
type ViolationEntry struct {
	RecordID       uuid.UUID
	Date           string
	ConvictionDate string
	Location       string
	Description    string
	Code           string
}

// WithdrawalEntry is a license suspension or revocation on the record.
type WithdrawalEntry struct {
	RecordID        uuid.UUID
	Date            string
	ReinstatedDate  string
	Location        string
	Description     string
	Code            string
}

// AccidentEntry is a reported accident on the record.
type AccidentEntry struct {
	RecordID    uuid.UUID
	Date        string
	Location    string
	Description string
	Code        string
}

// CrimeEntry is a vehicle-related criminal conviction on the record.
type CrimeEntry struct {
	RecordID       uuid.UUID
	Date           string
	ConvictionDate string
	Location       string
	Description    string
	Code           string
}

// Transaction links a record to the company that supplied it. SellerCompanyID
// answers "who supplied this record" for audit mirroring.
type Transaction struct {
	RecordID        uuid.UUID
	SellerCompanyID string
	BuyerCompanyID  string
	StateCode       string
}

// Aggregate is the full read view of a subject's current record. Child
// collections are ordered by their primary date, descending.
type Aggregate struct {
	Subject     Subject
	Record      MVRRecord
	License     *LicenseInfo
	Violations  []ViolationEntry
	Withdrawals []WithdrawalEntry
	Accidents   []AccidentEntry
	Crimes      []CrimeEntry
	Transaction *Transaction
}

// Snapshot is the post-commit re-read handed to audit emission: the
// subject and its current record as actually stored, without the child
// cascade.
type Snapshot struct {
	Subject Subject
	Record  MVRRecord
}

// Submission is a normalized, validated ingestion payload ready for the
// store. Defaults (dates, certification, points, storage limitation) are
// applied by the service before the store sees it.
type Submission struct {
	CompanyID string
	Purpose   domain.PermissiblePurpose

	PricePaid              float64
	RedisclosureAuthorized bool
	StorageLimitationDays  int

	Subject     Subject
	Record      MVRRecord
	License     *LicenseInfo
	Violations  []ViolationEntry
	Withdrawals []WithdrawalEntry
	Accidents   []AccidentEntry
	Crimes      []CrimeEntry
}

// Outcome tags the result of one ingestion.
type Outcome string

const (
	// OutcomeNew means the subject was created alongside the record.
	OutcomeNew Outcome = "NEW"
	// OutcomeUpdated means an existing subject was repointed to the record.
	OutcomeUpdated Outcome = "UPDATED"
	// OutcomeSkipped means the submission was suppressed as a duplicate
	// within the deduplication window; nothing was written.
	OutcomeSkipped Outcome = "SKIPPED"
)

// SkippedMessage is returned to callers when an ingestion is suppressed.
const SkippedMessage = "MVR uploaded less than 30 days ago"

// IngestResult reports one ingestion outcome.
type IngestResult struct {
	Outcome  Outcome
	RecordID uuid.UUID
	Message  string
}

// BatchItemResult is the per-element diagnostic for a batch ingestion.
type BatchItemResult struct {
	Index   int
	Outcome Outcome
	Error   string
}

// BatchSummary aggregates a batch's outcomes for the summary audit event.
type BatchSummary struct {
	Total   int
	New     int
	Updated int
	Skipped int
	Failed  int
}
