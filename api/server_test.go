package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"income-tax/decision/tax"
	"income-tax/report"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := NewServer(nil, nil)
	require.NoError(t, err)
	return s.WithLogger(zerolog.Nop())
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndReady(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s.Handler(), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())

	rec = do(t, s.Handler(), http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	s.WithStore(failingStore{})
	rec = do(t, s.Handler(), http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

type failingStore struct{}

func (failingStore) Ping(context.Context) error { return errors.New("connection refused") }

func TestCompute(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantTax   string
		wantLines int
		wantRev   string
	}{
		{"old regime", `{"income": 1000000, "regime": "old"}`, "112500.00", 3, "fy2024-25"},
		{"new regime salaried rebate", `{"income": "775000", "regime": "new", "salaried": true}`, "0.00", 1, "fy2024-25"},
		{"budget 2025", `{"income": 2500000, "regime": "new", "use_alternate_slabs": true}`, "330000.00", 7, "budget-2025"},
	}

	s := newTestServer(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s.Handler(), http.MethodPost, "/api/v1/tax/compute", tt.body)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var doc report.Document
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
			assert.Equal(t, tt.wantTax, doc.TotalTax)
			assert.Equal(t, tt.wantRev, doc.Revision)
			assert.Len(t, doc.Breakdown, tt.wantLines)
			assert.Len(t, doc.BreakdownText, tt.wantLines)
			assert.NotEmpty(t, doc.PolicyResult)
		})
	}
}

func TestComputeInvalidInput(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{"negative income", `{"income": -1, "regime": "new"}`, "INVALID_INPUT"},
		{"unknown regime", `{"income": 1, "regime": "flat"}`, "UNKNOWN_REGIME"},
		{"malformed body", `{"income": `, "INVALID_INPUT"},
	}

	s := newTestServer(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s.Handler(), http.MethodPost, "/api/v1/tax/compute", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode, body["code"])
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestComputeBodyTooLarge(t *testing.T) {
	s, err := NewServer(nil, &Config{MaxRequestSize: 32})
	require.NoError(t, err)
	s = s.WithLogger(zerolog.Nop())

	body := `{"income": 1000000, "regime": "old", "itemized_deductions": 150000}`
	for _, path := range []string{"/api/v1/tax/compute", "/api/v1/tax/compare"} {
		t.Run(path, func(t *testing.T) {
			rec := do(t, s.Handler(), http.MethodPost, path, body)
			assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

			var resp map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, "request body exceeds 32 bytes", resp["error"])
			assert.Empty(t, resp["code"])
		})
	}
}

func TestCompare(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s.Handler(), http.MethodPost, "/api/v1/tax/compare", `{"income": 1500000, "regime": "old"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp CompareResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "262500.00", resp.Requested.TotalTax)
	require.NotNil(t, resp.Comparison)
	assert.Equal(t, "New (fy2024-25)", resp.Comparison.Recommended)
	assert.Equal(t, "122500.00", resp.Comparison.Savings)
	assert.Len(t, resp.Comparison.Options, 2)
}

func TestRegimes(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s.Handler(), http.MethodGet, "/api/v1/regimes", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp []ScheduleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 3)
	assert.Equal(t, "budget-2025", resp[1].Revision)
	assert.True(t, resp[1].Alternate)
	last := resp[1].Slabs[len(resp[1].Slabs)-1]
	assert.Nil(t, last.UpTo)
	assert.Equal(t, "0.3", last.Rate)
	require.NotNil(t, resp[2].RebateThreshold)
	assert.Equal(t, "500000.00", *resp[2].RebateThreshold)
}

func TestFormPage(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s.Handler(), http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "Standard Deduction: ₹75,000")
	assert.Contains(t, rec.Body.String(), "Use budget-2025 slabs?")

	rec = do(t, s.Handler(), http.MethodGet, "/?regime=old", "")
	assert.Contains(t, rec.Body.String(), "Itemized deductions")
	assert.NotContains(t, rec.Body.String(), "budget-2025")
}

func TestFormSubmit(t *testing.T) {
	s := newTestServer(t)

	form := url.Values{"income": {"1000000"}, "regime": {"old"}}
	req := httptest.NewRequest(http.MethodPost, "/form", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Total Tax Payable: ₹112,500.00")
	assert.Contains(t, body, "₹500,001 - ₹1,000,000 @ 20% = ₹100,000.00")

	form = url.Values{"income": {"-5"}, "regime": {"new"}}
	req = httptest.NewRequest(http.MethodPost, "/form", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "must not be negative")
}

func TestMetrics(t *testing.T) {
	s := newTestServer(t)
	do(t, s.Handler(), http.MethodPost, "/api/v1/tax/compute", `{"income": 1000000, "regime": "old"}`)
	do(t, s.Handler(), http.MethodPost, "/api/v1/tax/compute", `{"income": -1, "regime": "new"}`)

	rec := do(t, s.Handler(), http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	out := string(body)
	assert.Contains(t, out, `taxcalc_computations_total{outcome="ok",regime="old"} 1`)
	assert.Contains(t, out, `taxcalc_computations_total{outcome="invalid",regime="unknown"} 1`)
	assert.Contains(t, out, `taxcalc_http_requests_total{code="200",route="/api/v1/tax/compute"} 1`)
	assert.Contains(t, out, `taxcalc_http_requests_total{code="400",route="/api/v1/tax/compute"} 1`)
	assert.Contains(t, out, "taxcalc_compute_duration_seconds_bucket")
}

func TestCORS(t *testing.T) {
	s, err := NewServer(tax.NewCalculator(nil), &Config{CORSOrigins: []string{"https://tax.example"}, MaxRequestSize: 1024})
	require.NoError(t, err)
	s.WithLogger(zerolog.Nop())

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/tax/compute", nil)
	req.Header.Set("Origin", "https://tax.example")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://tax.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://other.example")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
