package handler

import (
	"mvrgate/internal/mvr"
	dErrors "mvrgate/pkg/domain-errors"
)

type ingestResponse struct {
	Outcome  mvr.Outcome `json:"outcome"`
	RecordID string      `json:"record_id"`
	Message  string      `json:"message,omitempty"`
}

func toIngestResponse(res mvr.IngestResult) ingestResponse {
	return ingestResponse{
		Outcome:  res.Outcome,
		RecordID: res.RecordID.String(),
		Message:  res.Message,
	}
}

type batchSummaryResponse struct {
	Total   int `json:"total"`
	New     int `json:"new"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

type batchResponse struct {
	Summary batchSummaryResponse `json:"summary"`
	Results []ingestResponse     `json:"results"`
}

func toBatchResponse(results []mvr.IngestResult, summary mvr.BatchSummary) batchResponse {
	resp := batchResponse{
		Summary: batchSummaryResponse{
			Total:   summary.Total,
			New:     summary.New,
			Updated: summary.Updated,
			Skipped: summary.Skipped,
			Failed:  summary.Failed,
		},
		Results: make([]ingestResponse, 0, len(results)),
	}
	for _, res := range results {
		resp.Results = append(resp.Results, toIngestResponse(res))
	}
	return resp
}

type batchFailureResponse struct {
	Error   string               `json:"error"`
	Summary batchSummaryResponse `json:"summary"`
	Results []ingestResponse     `json:"results"`
}

func toBatchFailureResponse(err error, results []mvr.IngestResult, summary mvr.BatchSummary) batchFailureResponse {
	ok := toBatchResponse(results, summary)
	return batchFailureResponse{
		Error:   dErrors.MessageOf(err),
		Summary: ok.Summary,
		Results: ok.Results,
	}
}

type licenseResponse struct {
	Class          string `json:"class,omitempty"`
	IssueDate      string `json:"issue_date,omitempty"`
	ExpirationDate string `json:"expiration_date,omitempty"`
	Status         string `json:"status,omitempty"`
	Restrictions   string `json:"restrictions,omitempty"`
}

type violationResponse struct {
	Date           string `json:"date"`
	ConvictionDate string `json:"conviction_date,omitempty"`
	Location       string `json:"location,omitempty"`
	Description    string `json:"description,omitempty"`
	Code           string `json:"code,omitempty"`
}

type withdrawalResponse struct {
	Date           string `json:"date"`
	ReinstatedDate string `json:"reinstated_date,omitempty"`
	Location       string `json:"location,omitempty"`
	Description    string `json:"description,omitempty"`
	Code           string `json:"code,omitempty"`
}

type accidentResponse struct {
	Date        string `json:"date"`
	Location    string `json:"location,omitempty"`
	Description string `json:"description,omitempty"`
	Code        string `json:"code,omitempty"`
}

type crimeResponse struct {
	Date           string `json:"date"`
	ConvictionDate string `json:"conviction_date,omitempty"`
	Location       string `json:"location,omitempty"`
	Description    string `json:"description,omitempty"`
	Code           string `json:"code,omitempty"`
}

type aggregateResponse struct {
	DriversLicenseNumber string `json:"drivers_license_number"`
	FullLegalName        string `json:"full_legal_name"`
	Birthdate            string `json:"birthdate"`
	Weight               string `json:"weight"`
	Sex                  string `json:"sex"`
	Height               string `json:"height"`
	HairColor            string `json:"hair_color"`
	EyeColor             string `json:"eye_color"`
	Address              string `json:"address,omitempty"`
	City                 string `json:"city,omitempty"`
	State                string `json:"state,omitempty"`
	ZipCode              string `json:"zip_code,omitempty"`
	Phone                string `json:"phone,omitempty"`
	IssuedStateCode      string `json:"issued_state_code"`

	RecordID        string  `json:"record_id"`
	StateCode       string  `json:"state_code"`
	ClaimNumber     string  `json:"claim_number,omitempty"`
	OrderNumber     string  `json:"order_number,omitempty"`
	ReferenceNumber string  `json:"reference_number,omitempty"`
	Purpose         string  `json:"permissible_purpose"`
	IsCertified     bool    `json:"is_certified"`
	TotalPoints     int     `json:"total_points"`
	OrderDate       string  `json:"order_date"`
	ReportDate      string  `json:"report_date"`
	UploadedAt      string  `json:"uploaded_at"`
	PricePaid       float64 `json:"price_paid"`

	License     *licenseResponse     `json:"license,omitempty"`
	Violations  []violationResponse  `json:"violations"`
	Withdrawals []withdrawalResponse `json:"withdrawals"`
	Accidents   []accidentResponse   `json:"accidents"`
	Crimes      []crimeResponse      `json:"crimes"`
}

func toAggregateResponse(agg *mvr.Aggregate) aggregateResponse {
	resp := aggregateResponse{
		DriversLicenseNumber: agg.Subject.DriversLicenseNumber,
		FullLegalName:        agg.Subject.FullLegalName,
		Birthdate:            agg.Subject.Birthdate,
		Weight:               agg.Subject.Weight,
		Sex:                  agg.Subject.Sex,
		Height:               agg.Subject.Height,
		HairColor:            agg.Subject.HairColor,
		EyeColor:             agg.Subject.EyeColor,
		Address:              agg.Subject.Address,
		City:                 agg.Subject.City,
		State:                agg.Subject.State,
		ZipCode:              agg.Subject.ZipCode,
		Phone:                agg.Subject.Phone,
		IssuedStateCode:      agg.Subject.IssuedStateCode,

		RecordID:        agg.Record.ID.String(),
		StateCode:       agg.Record.StateCode,
		ClaimNumber:     agg.Record.ClaimNumber,
		OrderNumber:     agg.Record.OrderNumber,
		ReferenceNumber: agg.Record.ReferenceNumber,
		Purpose:         agg.Record.Purpose.String(),
		IsCertified:     agg.Record.IsCertified,
		TotalPoints:     agg.Record.TotalPoints,
		OrderDate:       agg.Record.OrderDate.Format("2006-01-02"),
		ReportDate:      agg.Record.ReportDate.Format("2006-01-02"),
		UploadedAt:      agg.Record.UploadedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		PricePaid:       agg.Record.PricePaid,

		Violations:  make([]violationResponse, 0, len(agg.Violations)),
		Withdrawals: make([]withdrawalResponse, 0, len(agg.Withdrawals)),
		Accidents:   make([]accidentResponse, 0, len(agg.Accidents)),
		Crimes:      make([]crimeResponse, 0, len(agg.Crimes)),
	}

	if agg.License != nil {
		resp.License = &licenseResponse{
			Class:          agg.License.Class,
			IssueDate:      agg.License.IssueDate,
			ExpirationDate: agg.License.ExpirationDate,
			Status:         agg.License.Status,
			Restrictions:   agg.License.Restrictions,
		}
	}
	for _, v := range agg.Violations {
		resp.Violations = append(resp.Violations, violationResponse{
			Date: v.Date, ConvictionDate: v.ConvictionDate,
			Location: v.Location, Description: v.Description, Code: v.Code,
		})
	}
	for _, w := range agg.Withdrawals {
		resp.Withdrawals = append(resp.Withdrawals, withdrawalResponse{
			Date: w.Date, ReinstatedDate: w.ReinstatedDate,
			Location: w.Location, Description: w.Description, Code: w.Code,
		})
	}
	for _, a := range agg.Accidents {
		resp.Accidents = append(resp.Accidents, accidentResponse{
			Date: a.Date, Location: a.Location, Description: a.Description, Code: a.Code,
		})
	}
	for _, c := range agg.Crimes {
		resp.Crimes = append(resp.Crimes, crimeResponse{
			Date: c.Date, ConvictionDate: c.ConvictionDate,
			Location: c.Location, Description: c.Description, Code: c.Code,
		})
	}
	return resp
}
