package handler

import (
	"time"

	"mvrgate/internal/mvr"
	"mvrgate/pkg/domain"
)

// Request bodies are decoded into maps so the schema validator sees the
// raw JSON shape; conversion to typed submissions happens only after
// validation passed.

func getString(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func getFloat(m map[string]any, key string) float64 {
	f, _ := m[key].(float64)
	return f
}

func getObjects(m map[string]any, key string) []map[string]any {
	arr, _ := m[key].([]any)
	out := make([]map[string]any, 0, len(arr))
	for _, raw := range arr {
		if obj, ok := raw.(map[string]any); ok {
			out = append(out, obj)
		}
	}
	return out
}

// parseDate accepts YYYY-MM-DD; anything else leaves the zero value so the
// service applies its default.
func parseDate(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// submissionFrom builds a typed submission from a validated top-level
// request and one validated mvr payload.
func submissionFrom(top, payload map[string]any) mvr.Submission {
	purpose, _ := domain.ParsePurpose(getString(top, "permissible_purpose"))

	sub := mvr.Submission{
		CompanyID:              getString(top, "company_id"),
		Purpose:                purpose,
		PricePaid:              getFloat(top, "price_paid"),
		RedisclosureAuthorized: true, // schema rejects anything else
		StorageLimitationDays:  int(getFloat(top, "storage_limitations")),
	}

	sub.Subject = mvr.Subject{
		DriversLicenseNumber: getString(payload, "drivers_license_number"),
		FullLegalName:        getString(payload, "full_legal_name"),
		Birthdate:            getString(payload, "birthdate"),
		Weight:               getString(payload, "weight"),
		Sex:                  getString(payload, "sex"),
		Height:               getString(payload, "height"),
		HairColor:            getString(payload, "hair_color"),
		EyeColor:             getString(payload, "eye_color"),
		Address:              getString(payload, "address"),
		City:                 getString(payload, "city"),
		State:                getString(payload, "state"),
		ZipCode:              getString(payload, "zip_code"),
		Phone:                getString(payload, "phone"),
		IssuedStateCode:      getString(payload, "issued_state_code"),
	}

	sub.Record = mvr.MVRRecord{
		ClaimNumber:     getString(payload, "claim_number"),
		OrderNumber:     getString(payload, "order_number"),
		ReferenceNumber: getString(payload, "reference_number"),
		StateCode:       getString(payload, "state_code"),
		IsCertified:     payload["is_certified"] == true,
		TotalPoints:     int(getFloat(payload, "total_points")),
		OrderDate:       parseDate(getString(payload, "order_date")),
		ReportDate:      parseDate(getString(payload, "report_date")),
	}

	if lic, ok := payload["license"].(map[string]any); ok {
		sub.License = &mvr.LicenseInfo{
			Class:          getString(lic, "class"),
			IssueDate:      getString(lic, "issue_date"),
			ExpirationDate: getString(lic, "expiration_date"),
			Status:         getString(lic, "status"),
			Restrictions:   getString(lic, "restrictions"),
		}
	}

	for _, v := range getObjects(payload, "violations") {
		sub.Violations = append(sub.Violations, mvr.ViolationEntry{
			Date:           getString(v, "date"),
			ConvictionDate: getString(v, "conviction_date"),
			Location:       getString(v, "location"),
			Description:    getString(v, "description"),
			Code:           getString(v, "code"),
		})
	}
	for _, w := range getObjects(payload, "withdrawals") {
		sub.Withdrawals = append(sub.Withdrawals, mvr.WithdrawalEntry{
			Date:           getString(w, "date"),
			ReinstatedDate: getString(w, "reinstated_date"),
			Location:       getString(w, "location"),
			Description:    getString(w, "description"),
			Code:           getString(w, "code"),
		})
	}
	for _, a := range getObjects(payload, "accidents") {
		sub.Accidents = append(sub.Accidents, mvr.AccidentEntry{
			Date:        getString(a, "date"),
			Location:    getString(a, "location"),
			Description: getString(a, "description"),
			Code:        getString(a, "code"),
		})
	}
	for _, c := range getObjects(payload, "crimes") {
		sub.Crimes = append(sub.Crimes, mvr.CrimeEntry{
			Date:           getString(c, "date"),
			ConvictionDate: getString(c, "conviction_date"),
			Location:       getString(c, "location"),
			Description:    getString(c, "description"),
			Code:           getString(c, "code"),
		})
	}

	return sub
}
