// Package pipeline implements the three-stage enrichment chain that turns
// raw audit events into partitioned, cross-company-mirrored trail entries:
// company partitioner, subject router, mirror router.
package pipeline

import (
	"fmt"
	"strings"
	"time"

	"mvrgate/internal/audit"
)

const maxKeySegment = 64

// sanitizeSegment restricts a partition key segment to [A-Za-z0-9._-],
// replacing anything else with '_', and caps it at 64 bytes. Partition
// keys become object store prefixes, so they must be path-safe.
func sanitizeSegment(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
		if b.Len() >= maxKeySegment {
			break
		}
	}
	return b.String()
}

// companyFor resolves the partition company with the fallback chain
// company id, then user id, then the literal "unknown".
func companyFor(e audit.Event) string {
	if e.CompanyID != "" {
		return e.CompanyID
	}
	if e.UserID != "" {
		return e.UserID
	}
	return "unknown"
}

// companyKey builds the company-centric partition key.
func companyKey(company string, op audit.Operation, ts time.Time) string {
	ts = ts.UTC()
	return fmt.Sprintf("company=%s/action=%s/year=%04d/month=%02d/day=%02d",
		sanitizeSegment(company), sanitizeSegment(string(op)),
		ts.Year(), int(ts.Month()), ts.Day())
}

// subjectKey builds the subject-centric partition key.
func subjectKey(license, company string, op audit.Operation, ts time.Time) string {
	ts = ts.UTC()
	return fmt.Sprintf("drivers_id=%s/year=%04d/month=%02d/day=%02d/action=%s/company=%s",
		sanitizeSegment(license),
		ts.Year(), int(ts.Month()), ts.Day(),
		sanitizeSegment(string(op)), sanitizeSegment(company))
}
