// Package audit defines the immutable audit event emitted for every record
// access and mutation, and the best-effort emission path that hands events
// to the outbound pipeline without ever affecting the business transaction.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Kind is the event envelope variant. Pipeline stages switch on it
// exhaustively instead of sniffing loosely-typed payloads.
type Kind string

const (
	KindWrite        Kind = "WRITE"
	KindRead         Kind = "READ"
	KindBatchSummary Kind = "BATCH_SUMMARY"
	KindFailure      Kind = "FAILURE"
)

// Category classifies the operation direction for partitioning and
// retention policy.
type Category string

const (
	CategoryRead   Category = "READ"
	CategoryWrite  Category = "WRITE"
	CategoryDelete Category = "DELETE"
)

// Operation names the business action that produced the event.
type Operation string

const (
	OpCreate           Operation = "create_mvr"
	OpUpdate           Operation = "update_mvr"
	OpDuplicateAttempt Operation = "duplicate_mvr_attempt"
	OpRetrieve         Operation = "get_mvr"
	OpBatchCreate      Operation = "batch_create_mvr"
)

// operationCategories maps each operation to its category.
var operationCategories = map[Operation]Category{
	OpCreate:           CategoryWrite,
	OpUpdate:           CategoryWrite,
	OpDuplicateAttempt: CategoryWrite,
	OpBatchCreate:      CategoryWrite,
	OpRetrieve:         CategoryRead,
}

// Category returns the Category for this operation. Unknown operations
// default to CategoryWrite, the conservative choice for retention.
func (o Operation) Category() Category {
	if cat, ok := operationCategories[o]; ok {
		return cat
	}
	return CategoryWrite
}

// Party identifies a company acting on a record.
type Party struct {
	CompanyID string `json:"company_id"`
	UserID    string `json:"user_id,omitempty"`
}

// SellerInfo is attached to READ events when the supplying company is
// known. The mirror stage compares the two fields to decide fan-out.
type SellerInfo struct {
	SellerCompanyID   string `json:"seller_company_id"`
	AccessorCompanyID string `json:"accessor_company_id"`
}

// BatchCounts summarizes a batch ingestion for its summary event.
type BatchCounts struct {
	Total   int `json:"total"`
	New     int `json:"new"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Event is one immutable audit fact, serialized as one NDJSON line on the
// wire. Creator and Accessor are mutually exclusive: writes carry a
// creator, reads an accessor.
type Event struct {
	ID                   string       `json:"id"`
	Kind                 Kind         `json:"kind"`
	Timestamp            time.Time    `json:"timestamp"`
	Operation            Operation    `json:"operation"`
	Category             Category     `json:"category"`
	Success              bool         `json:"success"`
	RecordCount          int          `json:"record_count"`
	CompanyID            string       `json:"company_id"`
	UserID               string       `json:"user_id,omitempty"`
	DriversLicenseNumber string       `json:"drivers_license_number,omitempty"`
	RequestID            string       `json:"request_id,omitempty"`
	Creator              *Party       `json:"creator,omitempty"`
	Accessor             *Party       `json:"accessor,omitempty"`
	Seller               *SellerInfo  `json:"seller,omitempty"`
	Batch                *BatchCounts `json:"batch,omitempty"`
	ErrorMessage         string       `json:"error_message,omitempty"`
}

// WriteEvent builds the event for an accepted or suppressed ingestion.
func WriteEvent(op Operation, companyID, license string, recordCount int) Event {
	return Event{
		Kind:                 KindWrite,
		Operation:            op,
		Category:             op.Category(),
		Success:              true,
		RecordCount:          recordCount,
		CompanyID:            companyID,
		DriversLicenseNumber: license,
		Creator:              &Party{CompanyID: companyID},
	}
}

// ReadEvent builds the event for a successful retrieval. sellerCompanyID
// may be empty when the supplying company is unknown.
func ReadEvent(accessorCompanyID, sellerCompanyID, license string) Event {
	e := Event{
		Kind:                 KindRead,
		Operation:            OpRetrieve,
		Category:             CategoryRead,
		Success:              true,
		RecordCount:          1,
		CompanyID:            accessorCompanyID,
		DriversLicenseNumber: license,
		Accessor:             &Party{CompanyID: accessorCompanyID},
	}
	if sellerCompanyID != "" {
		e.Seller = &SellerInfo{
			SellerCompanyID:   sellerCompanyID,
			AccessorCompanyID: accessorCompanyID,
		}
	}
	return e
}

// BatchSummaryEvent builds the per-batch summary event.
func BatchSummaryEvent(companyID string, counts BatchCounts) Event {
	c := counts
	return Event{
		Kind:        KindBatchSummary,
		Operation:   OpBatchCreate,
		Category:    CategoryWrite,
		Success:     counts.Failed == 0,
		RecordCount: counts.Total,
		CompanyID:   companyID,
		Creator:     &Party{CompanyID: companyID},
		Batch:       &c,
	}
}

// FailureEvent builds the event recorded when an operation fails after
// validation. Entity detail is omitted.
func FailureEvent(op Operation, companyID, license, errMsg string) Event {
	return Event{
		Kind:                 KindFailure,
		Operation:            op,
		Category:             op.Category(),
		Success:              false,
		CompanyID:            companyID,
		DriversLicenseNumber: license,
		ErrorMessage:         errMsg,
	}
}

// normalize stamps identity and time on events that lack them.
func normalize(e Event, now time.Time) Event {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = now
	}
	return e
}
