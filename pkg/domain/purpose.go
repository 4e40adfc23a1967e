package domain

import dErrors "mvrgate/pkg/domain-errors"

// PermissiblePurpose identifies why a member company processes MVR data.
// Invariant: the value must be one of the supported purposes.
//
// Usage: construct via ParsePurpose at trust boundaries to enforce the
// allowlist; direct casting bypasses validation.
type PermissiblePurpose string

// Supported permissible purposes.
const (
	PurposeEmployment   PermissiblePurpose = "EMPLOYMENT"
	PurposeInsurance    PermissiblePurpose = "INSURANCE"
	PurposeLegal        PermissiblePurpose = "LEGAL"
	PurposeGovernment   PermissiblePurpose = "GOVERNMENT"
	PurposeUnderwriting PermissiblePurpose = "UNDERWRITING"
	PurposeFraud        PermissiblePurpose = "FRAUD"
)

// validPurposes is the single source of truth for valid purposes.
var validPurposes = map[PermissiblePurpose]bool{
	PurposeEmployment:   true,
	PurposeInsurance:    true,
	PurposeLegal:        true,
	PurposeGovernment:   true,
	PurposeUnderwriting: true,
	PurposeFraud:        true,
}

// restrictedPurposes is the allowlist applied to ingestion when the
// deployment runs in restricted mode.
var restrictedPurposes = map[PermissiblePurpose]bool{
	PurposeUnderwriting: true,
	PurposeFraud:        true,
}

// ParsePurpose constructs a PermissiblePurpose from external input.
//
// Errors: returns CodeBadRequest when the value is empty or unsupported.
func ParsePurpose(s string) (PermissiblePurpose, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeBadRequest, "permissible_purpose cannot be empty")
	}
	p := PermissiblePurpose(s)
	if !p.IsValid() {
		return "", dErrors.New(dErrors.CodeBadRequest, "invalid permissible_purpose")
	}
	return p, nil
}

// IsValid checks if the purpose is one of the supported enum values.
func (p PermissiblePurpose) IsValid() bool {
	return validPurposes[p]
}

// AllowedForIngestion reports whether the purpose may be used to submit
// records. Restricted deployments only accept UNDERWRITING and FRAUD.
func (p PermissiblePurpose) AllowedForIngestion(restricted bool) bool {
	if !p.IsValid() {
		return false
	}
	if restricted {
		return restrictedPurposes[p]
	}
	return true
}

// String returns the string representation of the purpose.
func (p PermissiblePurpose) String() string { return string(p) }

// Purposes returns the full set of supported purposes in declaration order.
func Purposes() []PermissiblePurpose {
	return []PermissiblePurpose{
		PurposeEmployment,
		PurposeInsurance,
		PurposeLegal,
		PurposeGovernment,
		PurposeUnderwriting,
		PurposeFraud,
	}
}
