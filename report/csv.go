package report

import (
	"context"
	"encoding/csv"
	"io"
)

// CSVSink writes the breakdown as CSV rows followed by a total row
type CSVSink struct {
	W       io.Writer
	Options Options
}

// Write renders the report
func (s *CSVSink) Write(ctx context.Context, r *Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	res := r.Result
	w := csv.NewWriter(s.W)

	rows := [][]string{{"regime", "revision", "from", "to", "rate", "tax", "note"}}
	for _, line := range res.Breakdown {
		rows = append(rows, []string{
			string(res.Regime), res.Revision,
			fixed(line.From), fixed(line.To), line.Rate.String(), fixed(line.Tax),
			line.Note,
		})
	}
	rows = append(rows, []string{string(res.Regime), res.Revision, "", fixed(res.TaxableIncome), "", fixed(res.TotalTax), "total"})

	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return w.Error()
}
