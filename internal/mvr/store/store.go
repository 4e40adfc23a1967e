// Package store persists subjects, records, and their child collections.
// Implementations own the transaction boundary: every Ingest and BatchIngest
// call is atomic, including the duplicate-window check.
package store

import (
	"context"
	"time"

	"mvrgate/internal/mvr"
)

// Store is the record persistence contract. Interface-driven so the service
// layer can be tested against the in-memory implementation.
type Store interface {
	// Ingest runs the upsert workflow for one submission inside a single
	// transaction. The subject row is locked across the duplicate check so
	// concurrent ingestions for the same license serialize. A submission
	// whose current record is younger than window commits as SKIPPED
	// without writing anything.
	Ingest(ctx context.Context, sub mvr.Submission, window time.Duration) (mvr.IngestResult, error)

	// BatchIngest runs the same workflow for every submission inside one
	// transaction. Any persistence failure rolls back the whole batch;
	// the partial result slice is still returned for diagnostics.
	BatchIngest(ctx context.Context, subs []mvr.Submission, window time.Duration) ([]mvr.IngestResult, error)

	// GetAggregate assembles the subject's current record with all child
	// collections (primary date descending) and seller information.
	// Returns sentinel.ErrNotFound when the subject or its current record
	// is absent.
	GetAggregate(ctx context.Context, license string) (*mvr.Aggregate, error)

	// GetAuditSnapshot re-reads the subject and its current record after
	// an ingest commits, outside any transaction, so audit events reflect
	// the stored state rather than the inbound submission.
	GetAuditSnapshot(ctx context.Context, license string) (*mvr.Snapshot, error)
}
