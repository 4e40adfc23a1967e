package pipeline

import (
	"errors"

	"mvrgate/internal/audit"
	"mvrgate/internal/platform/metrics"
)

var (
	// ErrNoPartitionKey means stage one could not derive a company
	// partition for the event.
	ErrNoPartitionKey = errors.New("audit event has no derivable partition key")
	// ErrNotPartitioned means an event reached the subject router
	// without passing through the partitioner first.
	ErrNotPartitioned = errors.New("audit event missing company partition")
)

// Entry is an audit event annotated with the partition keys it will be
// written under. Mirror copies additionally carry the seller the copy is
// for and the accessor that triggered it.
type Entry struct {
	Event                audit.Event `json:"event"`
	CompanyPartition     string      `json:"company_partition"`
	SubjectPartition     string      `json:"subject_partition,omitempty"`
	Mirrored             bool        `json:"mirrored,omitempty"`
	TargetCompanyID      string      `json:"target_company_id,omitempty"`
	RetrievedByCompanyID string      `json:"retrieved_by_company_id,omitempty"`
}

// Partitioner assigns each event its company-centric partition key. An
// event whose timestamp or operation is missing cannot be placed in the
// trail and is a hard failure for that record.
type Partitioner struct{}

func (Partitioner) Process(event audit.Event) (Entry, error) {
	if event.Timestamp.IsZero() || event.Operation == "" {
		return Entry{}, ErrNoPartitionKey
	}
	return Entry{
		Event:            event,
		CompanyPartition: companyKey(companyFor(event), event.Operation, event.Timestamp),
	}, nil
}

// SubjectRouter re-keys partitioned entries by the record subject. It
// refuses entries that skipped the partitioner. Entries without a subject
// (batch summaries) pass through with no subject partition.
type SubjectRouter struct{}

func (SubjectRouter) Process(entry Entry) (Entry, error) {
	if entry.CompanyPartition == "" {
		return Entry{}, ErrNotPartitioned
	}
	if entry.Event.DriversLicenseNumber == "" {
		return entry, nil
	}
	entry.SubjectPartition = subjectKey(
		entry.Event.DriversLicenseNumber,
		companyFor(entry.Event),
		entry.Event.Operation,
		entry.Event.Timestamp,
	)
	return entry, nil
}

// MirrorRouter fans a READ entry out to the company that supplied the
// record, so sellers see accesses to records they sold. The copy is
// emitted only when the seller is known and is not the accessor itself.
type MirrorRouter struct {
	Metrics *metrics.Metrics
}

func (m MirrorRouter) Process(entry Entry) ([]Entry, error) {
	out := []Entry{entry}

	if entry.Event.Category != audit.CategoryRead || entry.Event.Seller == nil {
		return out, nil
	}
	seller := entry.Event.Seller.SellerCompanyID
	accessor := entry.Event.Seller.AccessorCompanyID
	if accessor == "" {
		accessor = companyFor(entry.Event)
	}
	if seller == "" || seller == accessor {
		return out, nil
	}

	mirror := entry
	mirror.Mirrored = true
	mirror.TargetCompanyID = seller
	mirror.RetrievedByCompanyID = accessor
	mirror.CompanyPartition = companyKey(seller, entry.Event.Operation, entry.Event.Timestamp)
	if entry.Event.DriversLicenseNumber != "" {
		mirror.SubjectPartition = subjectKey(
			entry.Event.DriversLicenseNumber,
			seller,
			entry.Event.Operation,
			entry.Event.Timestamp,
		)
	}
	if m.Metrics != nil {
		m.Metrics.AuditMirrored.Inc()
	}
	return append(out, mirror), nil
}
