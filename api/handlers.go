package api

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"income-tax/decision/compare"
	"income-tax/decision/policy"
	"income-tax/decision/tax"
	"income-tax/input"
	"income-tax/report"
)

// =============================================================================
// TAX ENDPOINTS
// =============================================================================

func (s *Server) readInput(w http.ResponseWriter, r *http.Request) (tax.TaxInput, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.config.MaxRequestSize))
	if err != nil {
		return tax.TaxInput{}, err
	}
	return input.JSONSource{Reader: bytes.NewReader(body)}.ReadInput(r.Context())
}

// compute runs the calculator and records metrics for the attempt
func (s *Server) compute(in tax.TaxInput) (*tax.TaxResult, error) {
	start := time.Now()
	result, err := s.calc.Compute(in)
	outcome := "ok"
	if err != nil {
		outcome = "invalid"
	}
	s.metrics.ObserveComputation(string(in.Regime), outcome, time.Since(start))
	return result, err
}

func (s *Server) handleCompute(w http.ResponseWriter, r *http.Request) {
	in, err := s.readInput(w, r)
	if err != nil {
		s.metrics.ObserveComputation("", "invalid", 0)
		s.writeError(w, r, err)
		return
	}

	result, err := s.compute(in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	cmp, err := compare.Compare(s.calc, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	eval, err := s.policyEngine.Evaluate(r.Context(), policy.EvaluationRequest{Result: result, Comparison: cmp})
	if err != nil {
		// Policy evaluation is non-fatal
		eval = &policy.EvaluationResult{
			Decision: policy.DecisionPass,
			Warnings: []policy.Warning{{Message: "policy evaluation failed: " + err.Error()}},
		}
	}

	rep := report.New(in, result).WithPolicy(eval)
	s.jsonResponse(w, http.StatusOK, report.NewDocument(rep, s.reportOptions()))
}

// CompareResponse is the API response for a regime comparison
type CompareResponse struct {
	Requested  report.Document            `json:"requested"`
	Comparison *report.ComparisonDocument `json:"comparison"`
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	in, err := s.readInput(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	start := time.Now()
	cmp, err := compare.Compare(s.calc, in)
	if err != nil {
		s.metrics.ObserveComputation(string(in.Regime), "invalid", time.Since(start))
		s.writeError(w, r, err)
		return
	}
	s.metrics.ObserveComputation(string(in.Regime), "ok", time.Since(start))

	rep := report.New(in, cmp.Requested.Result).WithComparison(cmp)
	s.jsonResponse(w, http.StatusOK, CompareResponse{
		Requested:  report.NewDocument(rep, s.reportOptions()),
		Comparison: report.NewComparisonDocument(cmp),
	})
}

// =============================================================================
// REGIME ENDPOINT
// =============================================================================

// ScheduleResponse describes one configured schedule
type ScheduleResponse struct {
	Regime             string         `json:"regime"`
	Title              string         `json:"title"`
	Revision           string         `json:"revision"`
	Alternate          bool           `json:"alternate"`
	StandardDeduction  string         `json:"standard_deduction"`
	RebateThreshold    *string        `json:"rebate_threshold,omitempty"`
	ItemizedDeductions bool           `json:"itemized_deductions"`
	Slabs              []SlabResponse `json:"slabs"`
}

// SlabResponse is one slab; an absent up_to is the unbounded top slab
type SlabResponse struct {
	UpTo *string `json:"up_to,omitempty"`
	Rate string  `json:"rate"`
}

func (s *Server) handleRegimes(w http.ResponseWriter, r *http.Request) {
	schedules := s.calc.Registry().Schedules()
	resp := make([]ScheduleResponse, len(schedules))
	for i, sched := range schedules {
		resp[i] = ScheduleResponse{
			Regime:             string(sched.Regime),
			Title:              sched.Regime.Title(),
			Revision:           sched.Revision,
			Alternate:          sched.Alternate,
			StandardDeduction:  sched.StandardDeduction.StringFixed(2),
			ItemizedDeductions: sched.ItemizedDeductions,
		}
		if sched.RebateThreshold != nil {
			v := sched.RebateThreshold.StringFixed(2)
			resp[i].RebateThreshold = &v
		}
		for _, slab := range sched.Table.Slabs() {
			sr := SlabResponse{Rate: slab.Rate.String()}
			if slab.UpTo != nil {
				v := slab.UpTo.StringFixed(2)
				sr.UpTo = &v
			}
			resp[i].Slabs = append(resp[i].Slabs, sr)
		}
	}

	s.jsonResponse(w, http.StatusOK, resp)
}

func (s *Server) reportOptions() report.Options {
	return report.Options{CurrencySymbol: s.config.CurrencySymbol}
}
