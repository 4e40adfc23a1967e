package validation

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_RequiredField(t *testing.T) {
	schema := []Rule{{Field: "name", Required: true, Kind: KindString}}

	errs := Validate(map[string]any{}, schema)
	require.Len(t, errs, 1)
	assert.Equal(t, "name is required and cannot be null or undefined", errs[0])

	errs = Validate(map[string]any{"name": nil}, schema)
	require.Len(t, errs, 1)
	assert.Equal(t, "name is required and cannot be null or undefined", errs[0])
}

func TestValidate_OptionalFieldAbsent(t *testing.T) {
	schema := []Rule{{Field: "notes", Kind: KindString}}
	assert.Empty(t, Validate(map[string]any{}, schema))
}

func TestValidate_TypeMismatch(t *testing.T) {
	tests := []struct {
		name  string
		rule  Rule
		value any
		want  string
	}{
		{"string", Rule{Field: "f", Required: true, Kind: KindString}, 42.0, "f must be a string"},
		{"number", Rule{Field: "f", Required: true, Kind: KindNumber}, "x", "f must be a number"},
		{"integer", Rule{Field: "f", Required: true, Kind: KindInteger}, 1.5, "f must be an integer"},
		{"bool", Rule{Field: "f", Required: true, Kind: KindBool}, "true", "f must be a boolean"},
		{"array", Rule{Field: "f", Required: true, Kind: KindArray}, map[string]any{}, "f must be an array"},
		{"object", Rule{Field: "f", Required: true, Kind: KindObject}, []any{}, "f must be an object"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := Validate(map[string]any{"f": tt.value}, []Rule{tt.rule})
			require.Len(t, errs, 1)
			assert.Equal(t, tt.want, errs[0])
		})
	}
}

func TestValidate_IntegerAcceptsWholeFloat(t *testing.T) {
	schema := []Rule{{Field: "days", Required: true, Kind: KindInteger}}
	assert.Empty(t, Validate(map[string]any{"days": 30.0}, schema))
}

func TestValidate_EmptyAndSentinel(t *testing.T) {
	schema := []Rule{{Field: "sex", Required: true, Kind: KindString, NonEmpty: true, ForbidOther: true}}

	errs := Validate(map[string]any{"sex": ""}, schema)
	require.Len(t, errs, 1)
	assert.Equal(t, "sex cannot be empty", errs[0])

	errs = Validate(map[string]any{"sex": "Other"}, schema)
	require.Len(t, errs, 1)
	assert.Equal(t, "sex cannot be 'Other'", errs[0])
}

func TestValidate_OneErrorPerField(t *testing.T) {
	// A missing field must yield exactly the presence error, not the
	// type/empty errors too.
	schema := []Rule{{Field: "f", Required: true, Kind: KindString, NonEmpty: true, ForbidOther: true}}
	errs := Validate(map[string]any{}, schema)
	assert.Len(t, errs, 1)
}

func TestValidate_ErrorsInSchemaOrder(t *testing.T) {
	schema := []Rule{
		{Field: "a", Required: true, Kind: KindString},
		{Field: "b", Required: true, Kind: KindString},
		{Field: "c", Required: true, Kind: KindString},
	}
	errs := Validate(map[string]any{"b": "ok"}, schema)
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "a ")
	assert.Contains(t, errs[1], "c ")
}

func TestJoinErrors(t *testing.T) {
	joined := JoinErrors([]string{"a is bad", "b is worse"})
	assert.Equal(t, "a is bad; b is worse", joined)
}

func validMVRPayload() map[string]any {
	return map[string]any{
		"drivers_license_number": "D1234567",
		"full_legal_name":        "Jordan Q Driver",
		"birthdate":              "1990-05-04",
		"weight":                 "180",
		"sex":                    "M",
		"height":                 "5'11\"",
		"hair_color":             "BRN",
		"eye_color":              "BLU",
		"issued_state_code":      "OH",
		"state_code":             "OH",
	}
}

func TestMVRPayloadSchema_Valid(t *testing.T) {
	assert.Empty(t, Validate(validMVRPayload(), MVRPayloadSchema()))
}

func TestMVRPayloadSchema_EveryRequiredField(t *testing.T) {
	for _, field := range requiredMVRStringFields {
		t.Run(field, func(t *testing.T) {
			payload := validMVRPayload()
			delete(payload, field)
			errs := Validate(payload, MVRPayloadSchema())
			require.Len(t, errs, 1)
			assert.Equal(t, field+" is required and cannot be null or undefined", errs[0])
		})
	}
}

func TestMVRPayloadSchema_ChildArraysOptionalButTyped(t *testing.T) {
	payload := validMVRPayload()
	payload["violations"] = []any{map[string]any{"date": "2024-01-01"}}
	assert.Empty(t, Validate(payload, MVRPayloadSchema()))

	payload["violations"] = "not-an-array"
	errs := Validate(payload, MVRPayloadSchema())
	require.Len(t, errs, 1)
	assert.Equal(t, "violations must be an array", errs[0])
}

func validIngestionTop() map[string]any {
	return map[string]any{
		"company_id":                 "acme-insurance",
		"permissible_purpose":        "INSURANCE",
		"price_paid":                 12.5,
		"redisclosure_authorization": true,
		"mvr":                        validMVRPayload(),
	}
}

func TestIngestionSchema_Valid(t *testing.T) {
	assert.Empty(t, Validate(validIngestionTop(), IngestionSchema(false)))
}

func TestIngestionSchema_RestrictedPurposes(t *testing.T) {
	top := validIngestionTop()

	errs := Validate(top, IngestionSchema(true))
	require.Len(t, errs, 1)
	assert.Equal(t, "permissible_purpose must be one of: UNDERWRITING, FRAUD", errs[0])

	top["permissible_purpose"] = "FRAUD"
	assert.Empty(t, Validate(top, IngestionSchema(true)))
}

func TestIngestionSchema_UnrestrictedListsAllPurposes(t *testing.T) {
	top := validIngestionTop()
	top["permissible_purpose"] = "BOGUS"
	errs := Validate(top, IngestionSchema(false))
	require.Len(t, errs, 1)
	assert.Equal(t,
		"permissible_purpose must be one of: EMPLOYMENT, INSURANCE, LEGAL, GOVERNMENT, UNDERWRITING, FRAUD",
		errs[0])
}

func TestIngestionSchema_RedisclosureMustBeTrue(t *testing.T) {
	top := validIngestionTop()
	top["redisclosure_authorization"] = false
	errs := Validate(top, IngestionSchema(false))
	require.Len(t, errs, 1)
	assert.Equal(t, "redisclosure_authorization must be true", errs[0])
}

func TestIngestionSchema_NegativePrice(t *testing.T) {
	top := validIngestionTop()
	top["price_paid"] = -1.0
	errs := Validate(top, IngestionSchema(false))
	require.Len(t, errs, 1)
	assert.Equal(t, "price_paid must be a non-negative number", errs[0])
}

func TestRetrievalSchema(t *testing.T) {
	body := map[string]any{
		"drivers_license_number": "D1234567",
		"company_id":             "acme-insurance",
		"permissible_purpose":    "EMPLOYMENT",
		"days":                   30.0,
		"consent":                true,
	}
	assert.Empty(t, Validate(body, RetrievalSchema()))

	body["consent"] = false
	errs := Validate(body, RetrievalSchema())
	require.Len(t, errs, 1)
	assert.Equal(t, "consent must be true", errs[0])

	body["consent"] = true
	body["days"] = -1.0
	errs = Validate(body, RetrievalSchema())
	require.Len(t, errs, 1)
	assert.Equal(t, "days must be a non-negative integer", errs[0])
}

func TestBatchSchema_EmptyArray(t *testing.T) {
	body := map[string]any{
		"company_id":                 "acme-insurance",
		"permissible_purpose":        "INSURANCE",
		"price_paid":                 10.0,
		"redisclosure_authorization": true,
		"mvrs":                       []any{},
	}
	errs := Validate(body, BatchSchema(false))
	require.Len(t, errs, 1)
	assert.Equal(t, "mvrs must be a non-empty array", errs[0])
}

func TestValidateBatchPayloads_IndexedMessages(t *testing.T) {
	bad := validMVRPayload()
	delete(bad, "eye_color")

	errs := ValidateBatchPayloads([]any{validMVRPayload(), bad, "junk"})
	require.Len(t, errs, 2)
	assert.Equal(t,
		"Validation failed for MVR at index 1: eye_color is required and cannot be null or undefined",
		errs[0])
	assert.Equal(t, "Validation failed for MVR at index 2: mvr must be an object", errs[1])
}

func TestValidateBatchPayloads_AllElementsReported(t *testing.T) {
	var elems []any
	for i := 0; i < 3; i++ {
		bad := validMVRPayload()
		delete(bad, "sex")
		elems = append(elems, bad)
	}
	errs := ValidateBatchPayloads(elems)
	require.Len(t, errs, 3)
	for i, msg := range errs {
		assert.Equal(t, fmt.Sprintf("Validation failed for MVR at index %d: sex is required and cannot be null or undefined", i), msg)
	}
}
