package api

import (
	"embed"
	"html/template"
	"net/http"
	"strings"

	"income-tax/decision/tax"
	"income-tax/input"
)

//go:embed templates/form.html
var templateFS embed.FS

var formTemplate = template.Must(template.ParseFS(templateFS, "templates/form.html"))

type formPage struct {
	Symbol    string
	Income    string
	Salaried  bool
	Alternate bool
	Itemized  string
	Regimes   []regimeOption
	Error     string
	Result    *formResult
}

type regimeOption struct {
	Value             string
	Title             string
	Selected          bool
	StandardDeduction string
	AlternateRevision string
	Itemized          bool
}

type formResult struct {
	Schedule      string
	Total         string
	Taxable       string
	EffectiveRate string
	Lines         []string
	Notes         []string
}

func (s *Server) newFormPage(selected tax.Regime) *formPage {
	reg := s.calc.Registry()
	page := &formPage{
		Symbol:   s.config.CurrencySymbol,
		Income:   input.DefaultPromptIncome.String(),
		Itemized: "0",
	}
	if page.Symbol == "" {
		page.Symbol = tax.DefaultCurrencySymbol
	}

	for i, regime := range reg.Regimes() {
		sched, err := reg.Lookup(regime, false)
		if err != nil {
			continue
		}
		opt := regimeOption{
			Value:             string(regime),
			Title:             regime.Title(),
			Selected:          regime == selected || (selected == "" && i == 0),
			StandardDeduction: tax.FormatQuantity(sched.StandardDeduction),
			Itemized:          sched.ItemizedDeductions,
		}
		if reg.HasAlternate(regime) {
			alt, _ := reg.Lookup(regime, true)
			opt.AlternateRevision = alt.Revision
		}
		page.Regimes = append(page.Regimes, opt)
	}
	return page
}

func (s *Server) handleFormPage(w http.ResponseWriter, r *http.Request) {
	regime, _ := tax.ParseRegime(r.URL.Query().Get("regime"))
	s.renderForm(w, http.StatusOK, s.newFormPage(regime))
}

func (s *Server) handleFormSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxRequestSize)
	if err := r.ParseForm(); err != nil {
		page := s.newFormPage("")
		page.Error = "Could not read the form."
		s.renderForm(w, http.StatusBadRequest, page)
		return
	}

	regime, _ := tax.ParseRegime(r.PostForm.Get("regime"))
	page := s.newFormPage(regime)
	page.Income = strings.TrimSpace(r.PostForm.Get("income"))
	page.Salaried = r.PostForm.Get("salaried") != ""
	page.Alternate = r.PostForm.Get("alternate") != ""
	if v := strings.TrimSpace(r.PostForm.Get("itemized")); v != "" {
		page.Itemized = v
	}

	in, err := formInput(page, regime)
	if err == nil {
		var result *tax.TaxResult
		result, err = s.compute(in)
		if err == nil {
			page.Result = &formResult{
				Schedule:      result.Regime.Title() + " regime (" + result.Revision + ")",
				Total:         tax.FormatAmount(result.TotalTax),
				Taxable:       tax.FormatAmount(result.TaxableIncome),
				EffectiveRate: tax.FormatRate(result.EffectiveRate.Round(4)),
				Lines:         result.FormatBreakdown(page.Symbol),
				Notes:         result.Notes,
			}
			s.renderForm(w, http.StatusOK, page)
			return
		}
	}

	page.Error = err.Error()
	s.renderForm(w, http.StatusBadRequest, page)
}

func formInput(page *formPage, regime tax.Regime) (tax.TaxInput, error) {
	if regime == "" && len(page.Regimes) > 0 {
		regime = tax.Regime(page.Regimes[0].Value)
	}
	income, err := input.ParseAmount(page.Income)
	if err != nil {
		return tax.TaxInput{}, err
	}
	itemized, err := input.ParseAmount(page.Itemized)
	if err != nil {
		return tax.TaxInput{}, err
	}
	return tax.TaxInput{
		Income:             income,
		Salaried:           page.Salaried,
		Regime:             regime,
		UseAlternateSlabs:  page.Alternate,
		ItemizedDeductions: itemized,
	}, nil
}

func (s *Server) renderForm(w http.ResponseWriter, status int, page *formPage) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := formTemplate.Execute(w, page); err != nil {
		s.logger.Error().Err(err).Msg("failed to render form")
	}
}
