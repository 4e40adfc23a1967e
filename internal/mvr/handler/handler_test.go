package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"mvrgate/internal/mvr"
	"mvrgate/internal/mvr/handler/mocks"
	dErrors "mvrgate/pkg/domain-errors"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHandler(t *testing.T) (*Handler, *mocks.MockService) {
	t.Helper()
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockService(ctrl)
	return New(svc, discardLogger(), nil, nil, false), svc
}

func postJSON(t *testing.T, h http.HandlerFunc, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(raw))
	w := httptest.NewRecorder()
	h(w, req)
	return w
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Error
}

func validPayload() map[string]any {
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

func validIngestBody() map[string]any {
	return map[string]any{
		"company_id":                 "acme-insurance",
		"permissible_purpose":        "INSURANCE",
		"price_paid":                 12.5,
		"redisclosure_authorization": true,
		"mvr":                        validPayload(),
	}
}

func TestHandleIngest_Created(t *testing.T) {
	h, svc := newHandler(t)
	recordID := uuid.New()

	svc.EXPECT().
		Ingest(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ any, sub mvr.Submission) (mvr.IngestResult, error) {
			assert.Equal(t, "acme-insurance", sub.CompanyID)
			assert.Equal(t, "D1234567", sub.Subject.DriversLicenseNumber)
			assert.Equal(t, 12.5, sub.PricePaid)
			return mvr.IngestResult{Outcome: mvr.OutcomeNew, RecordID: recordID}, nil
		})

	w := postJSON(t, h.handleIngest, "/mvr", validIngestBody())
	assert.Equal(t, http.StatusCreated, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "NEW", resp["outcome"])
	assert.Equal(t, recordID.String(), resp["record_id"])
}

func TestHandleIngest_SkippedIsOK(t *testing.T) {
	h, svc := newHandler(t)
	svc.EXPECT().
		Ingest(gomock.Any(), gomock.Any()).
		Return(mvr.IngestResult{Outcome: mvr.OutcomeSkipped, RecordID: uuid.New(), Message: mvr.SkippedMessage}, nil)

	w := postJSON(t, h.handleIngest, "/mvr", validIngestBody())
	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "SKIPPED", resp["outcome"])
	assert.Equal(t, "MVR uploaded less than 30 days ago", resp["message"])
}

func TestHandleIngest_ValidationErrorsJoined(t *testing.T) {
	h, _ := newHandler(t)

	body := validIngestBody()
	delete(body, "company_id")
	payload := body["mvr"].(map[string]any)
	delete(payload, "sex")

	w := postJSON(t, h.handleIngest, "/mvr", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t,
		"company_id is required and cannot be null or undefined; sex is required and cannot be null or undefined",
		errorBody(t, w))
}

func TestHandleIngest_InvalidJSON(t *testing.T) {
	h, _ := newHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/mvr", bytes.NewReader([]byte("{not json")))
	w := httptest.NewRecorder()
	h.handleIngest(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid request body", errorBody(t, w))
}

func TestHandleIngest_ServiceError(t *testing.T) {
	h, svc := newHandler(t)
	svc.EXPECT().
		Ingest(gomock.Any(), gomock.Any()).
		Return(mvr.IngestResult{}, dErrors.New(dErrors.CodeInternal, "failed to ingest MVR"))

	w := postJSON(t, h.handleIngest, "/mvr", validIngestBody())
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "failed to ingest MVR", errorBody(t, w))
}

func validBatchBody(n int) map[string]any {
	payloads := make([]any, 0, n)
	for i := 0; i < n; i++ {
		payloads = append(payloads, validPayload())
	}
	return map[string]any{
		"company_id":                 "acme-insurance",
		"permissible_purpose":        "INSURANCE",
		"price_paid":                 12.5,
		"redisclosure_authorization": true,
		"mvrs":                       payloads,
	}
}

func TestHandleBatchIngest_OK(t *testing.T) {
	h, svc := newHandler(t)
	svc.EXPECT().
		BatchIngest(gomock.Any(), gomock.Len(2)).
		Return(
			[]mvr.IngestResult{
				{Outcome: mvr.OutcomeNew, RecordID: uuid.New()},
				{Outcome: mvr.OutcomeSkipped, RecordID: uuid.New(), Message: mvr.SkippedMessage},
			},
			mvr.BatchSummary{Total: 2, New: 1, Skipped: 1},
			nil,
		)

	w := postJSON(t, h.handleBatchIngest, "/mvr/batch", validBatchBody(2))
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Summary struct {
			Total   int `json:"total"`
			New     int `json:"new"`
			Skipped int `json:"skipped"`
		} `json:"summary"`
		Results []map[string]any `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Summary.Total)
	assert.Equal(t, 1, resp.Summary.New)
	assert.Equal(t, 1, resp.Summary.Skipped)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "NEW", resp.Results[0]["outcome"])
	assert.Equal(t, "SKIPPED", resp.Results[1]["outcome"])
}

func TestHandleBatchIngest_PersistenceFailureReturnsDiagnostics(t *testing.T) {
	h, svc := newHandler(t)
	partial := []mvr.IngestResult{{Outcome: mvr.OutcomeNew, RecordID: uuid.New()}}
	svc.EXPECT().
		BatchIngest(gomock.Any(), gomock.Len(2)).
		Return(
			partial,
			mvr.BatchSummary{Total: 2, New: 1, Failed: 1},
			dErrors.New(dErrors.CodeInternal, "failed to ingest MVR batch: batch element 1: insert record: connection reset"),
		)

	w := postJSON(t, h.handleBatchIngest, "/mvr/batch", validBatchBody(2))
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var resp struct {
		Error   string `json:"error"`
		Summary struct {
			Total  int `json:"total"`
			Failed int `json:"failed"`
		} `json:"summary"`
		Results []map[string]any `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "batch element 1")
	assert.Equal(t, 2, resp.Summary.Total)
	assert.Equal(t, 1, resp.Summary.Failed)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "NEW", resp.Results[0]["outcome"])
}

func TestHandleBatchIngest_IndexedValidationMessage(t *testing.T) {
	h, _ := newHandler(t)

	body := validBatchBody(3)
	payloads := body["mvrs"].([]any)
	bad := payloads[1].(map[string]any)
	delete(bad, "hair_color")

	w := postJSON(t, h.handleBatchIngest, "/mvr/batch", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t,
		"Validation failed for MVR at index 1: hair_color is required and cannot be null or undefined",
		errorBody(t, w))
}

func TestHandleBatchIngest_ValidationIsAllOrNothing(t *testing.T) {
	// Service must never be called when any element fails validation; the
	// mock controller fails the test on an unexpected call.
	h, _ := newHandler(t)

	body := validBatchBody(2)
	payloads := body["mvrs"].([]any)
	delete(payloads[0].(map[string]any), "weight")

	w := postJSON(t, h.handleBatchIngest, "/mvr/batch", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func validRetrieveBody() map[string]any {
	return map[string]any{
		"drivers_license_number": "D1234567",
		"company_id":             "zenith-underwriters",
		"permissible_purpose":    "UNDERWRITING",
		"days":                   30.0,
		"consent":                true,
	}
}

func TestHandleRetrieve_OK(t *testing.T) {
	h, svc := newHandler(t)
	recordID := uuid.New()
	agg := &mvr.Aggregate{
		Subject: mvr.Subject{DriversLicenseNumber: "D1234567", FullLegalName: "Jordan Q Driver"},
		Record: mvr.MVRRecord{
			ID:         recordID,
			StateCode:  "OH",
			Purpose:    "INSURANCE",
			OrderDate:  time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
			ReportDate: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
			UploadedAt: time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC),
		},
		Violations: []mvr.ViolationEntry{{Date: "2025-06-01", Code: "SP55"}},
	}

	svc.EXPECT().
		Retrieve(gomock.Any(), "D1234567", "zenith-underwriters", 30).
		Return(agg, nil)

	w := postJSON(t, h.handleRetrieve, "/mvr/retrieve", validRetrieveBody())
	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "D1234567", resp["drivers_license_number"])
	assert.Equal(t, recordID.String(), resp["record_id"])
	violations := resp["violations"].([]any)
	require.Len(t, violations, 1)
	assert.Equal(t, "SP55", violations[0].(map[string]any)["code"])
}

func TestHandleRetrieve_NotFound(t *testing.T) {
	h, svc := newHandler(t)
	svc.EXPECT().
		Retrieve(gomock.Any(), "D1234567", "zenith-underwriters", 30).
		Return(nil, dErrors.New(dErrors.CodeNotFound, "MVR not found"))

	w := postJSON(t, h.handleRetrieve, "/mvr/retrieve", validRetrieveBody())
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "MVR not found", errorBody(t, w))
}

func TestHandleRetrieve_ConsentRequired(t *testing.T) {
	h, _ := newHandler(t)
	body := validRetrieveBody()
	body["consent"] = false

	w := postJSON(t, h.handleRetrieve, "/mvr/retrieve", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "consent must be true", errorBody(t, w))
}

func TestHandleRetrieve_DaysMustBeInteger(t *testing.T) {
	h, _ := newHandler(t)
	body := validRetrieveBody()
	body["days"] = 1.5

	w := postJSON(t, h.handleRetrieve, "/mvr/retrieve", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "days must be an integer", errorBody(t, w))
}
