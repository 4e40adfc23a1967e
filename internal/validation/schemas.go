package validation

import (
	"fmt"
	"strings"

	"mvrgate/pkg/domain"
)

// requiredMVRStringFields are the payload fields every submission must carry.
// Order here is response order.
var requiredMVRStringFields = []string{
	"drivers_license_number",
	"full_legal_name",
	"birthdate",
	"weight",
	"sex",
	"height",
	"hair_color",
	"eye_color",
	"issued_state_code",
	"state_code",
}

// childEntityFields are the optional per-record collections.
var childEntityFields = []string{"violations", "withdrawals", "accidents", "crimes"}

// IngestionSchema validates the top level of a single-record submission.
// The nested mvr payload is validated separately with MVRPayloadSchema.
func IngestionSchema(restrictedPurposes bool) []Rule {
	return []Rule{
		{Field: "company_id", Required: true, Kind: KindString, NonEmpty: true, ForbidOther: true},
		{Field: "permissible_purpose", Required: true, Kind: KindString, Check: purposeCheck(ingestionPurposes(restrictedPurposes))},
		{Field: "price_paid", Required: true, Kind: KindNumber, Check: nonNegative("price_paid must be a non-negative number")},
		{Field: "redisclosure_authorization", Required: true, Kind: KindBool, Check: mustBeTrue("redisclosure_authorization must be true")},
		{Field: "storage_limitations", Kind: KindNumber, Check: nonNegative("storage_limitations must be a non-negative number")},
		{Field: "mvr", Required: true, Kind: KindObject},
	}
}

// MVRPayloadSchema validates one MVR payload object.
func MVRPayloadSchema() []Rule {
	rules := make([]Rule, 0, len(requiredMVRStringFields)+len(childEntityFields))
	for _, field := range requiredMVRStringFields {
		rules = append(rules, Rule{Field: field, Required: true, Kind: KindString, NonEmpty: true, ForbidOther: true})
	}
	for _, field := range childEntityFields {
		rules = append(rules, Rule{Field: field, Kind: KindArray})
	}
	return rules
}

// RetrievalSchema validates a retrieval request. Consent must be the boolean
// true before the store is ever touched.
func RetrievalSchema() []Rule {
	return []Rule{
		{Field: "drivers_license_number", Required: true, Kind: KindString, NonEmpty: true, ForbidOther: true},
		{Field: "company_id", Required: true, Kind: KindString, NonEmpty: true},
		{Field: "permissible_purpose", Required: true, Kind: KindString, Check: purposeCheck(domain.Purposes())},
		{Field: "days", Required: true, Kind: KindInteger, Check: nonNegative("days must be a non-negative integer")},
		{Field: "consent", Required: true, Kind: KindBool, Check: mustBeTrue("consent must be true")},
	}
}

// BatchSchema validates the top level of a batch submission. Each element of
// mvrs is then validated with MVRPayloadSchema and errors are prefixed with
// the element index.
func BatchSchema(restrictedPurposes bool) []Rule {
	return []Rule{
		{Field: "company_id", Required: true, Kind: KindString, NonEmpty: true, ForbidOther: true},
		{Field: "permissible_purpose", Required: true, Kind: KindString, Check: purposeCheck(ingestionPurposes(restrictedPurposes))},
		{Field: "price_paid", Required: true, Kind: KindNumber, Check: nonNegative("price_paid must be a non-negative number")},
		{Field: "redisclosure_authorization", Required: true, Kind: KindBool, Check: mustBeTrue("redisclosure_authorization must be true")},
		{Field: "storage_limitations", Kind: KindNumber, Check: nonNegative("storage_limitations must be a non-negative number")},
		{Field: "mvrs", Required: true, Kind: KindArray, Check: nonEmptyArray("mvrs must be a non-empty array")},
	}
}

// ValidateBatchPayloads validates every element of the mvrs array, prefixing
// each violation with its index: "Validation failed for MVR at index i: ...".
func ValidateBatchPayloads(mvrs []any) []string {
	var errs []string
	schema := MVRPayloadSchema()
	for i, raw := range mvrs {
		payload, ok := raw.(map[string]any)
		if !ok {
			errs = append(errs, fmt.Sprintf("Validation failed for MVR at index %d: mvr must be an object", i))
			continue
		}
		for _, msg := range Validate(payload, schema) {
			errs = append(errs, fmt.Sprintf("Validation failed for MVR at index %d: %s", i, msg))
		}
	}
	return errs
}

func ingestionPurposes(restricted bool) []domain.PermissiblePurpose {
	if restricted {
		return []domain.PermissiblePurpose{domain.PurposeUnderwriting, domain.PurposeFraud}
	}
	return domain.Purposes()
}

func purposeCheck(allowed []domain.PermissiblePurpose) func(any) string {
	names := make([]string, len(allowed))
	set := make(map[string]bool, len(allowed))
	for i, p := range allowed {
		names[i] = p.String()
		set[p.String()] = true
	}
	msg := "permissible_purpose must be one of: " + strings.Join(names, ", ")
	return func(value any) string {
		s, _ := value.(string)
		if !set[s] {
			return msg
		}
		return ""
	}
}

func nonNegative(msg string) func(any) string {
	return func(value any) string {
		if f, ok := value.(float64); !ok || f < 0 {
			return msg
		}
		return ""
	}
}

func mustBeTrue(msg string) func(any) string {
	return func(value any) string {
		if b, ok := value.(bool); !ok || !b {
			return msg
		}
		return ""
	}
}

func nonEmptyArray(msg string) func(any) string {
	return func(value any) string {
		if arr, ok := value.([]any); !ok || len(arr) == 0 {
			return msg
		}
		return ""
	}
}
