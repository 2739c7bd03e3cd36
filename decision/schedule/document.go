// Package schedule loads regime schedules from the built-in table, YAML documents
// and storage backends, and builds the registry the calculator selects from
package schedule

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"income-tax/decision/tax"
	taxerrors "income-tax/pkg/errors"
)

// Document is the YAML layout of a schedule file
type Document struct {
	Schedules []Entry `yaml:"schedules"`
}

// Entry is one regime revision in a document
type Entry struct {
	Regime             string  `yaml:"regime"`
	Revision           string  `yaml:"revision"`
	Alternate          bool    `yaml:"alternate,omitempty"`
	StandardDeduction  *Amount `yaml:"standard_deduction,omitempty"`
	RebateThreshold    *Amount `yaml:"rebate_threshold,omitempty"`
	ItemizedDeductions bool    `yaml:"itemized_deductions,omitempty"`
	Slabs              []Slab  `yaml:"slabs"`
}

// Slab is a document slab; a missing upto is the unbounded top slab
type Slab struct {
	UpTo *Amount `yaml:"upto,omitempty"`
	Rate Amount  `yaml:"rate"`
}

// Amount is a decimal written as a YAML scalar. Encoded as a string so no
// float conversion happens on the way out.
type Amount struct {
	decimal.Decimal
}

// UnmarshalYAML accepts plain and quoted numbers
func (a *Amount) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a number", node.Line)
	}
	v, err := decimal.NewFromString(strings.TrimSpace(node.Value))
	if err != nil {
		return fmt.Errorf("line %d: invalid number %q", node.Line, node.Value)
	}
	a.Decimal = v
	return nil
}

// MarshalYAML writes the amount as a string
func (a Amount) MarshalYAML() (interface{}, error) {
	return a.Decimal.String(), nil
}

func newAmount(d decimal.Decimal) *Amount {
	return &Amount{Decimal: d}
}

// Decode reads a YAML document and returns its validated schedules
func Decode(r io.Reader) ([]tax.Schedule, error) {
	var doc Document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, taxerrors.NewMalformedScheduleError("schedule document is empty")
		}
		return nil, taxerrors.NewMalformedScheduleError("failed to parse schedule document: %v", err)
	}
	return doc.ToSchedules()
}

// ToSchedules converts every entry, failing on the first invalid one
func (d Document) ToSchedules() ([]tax.Schedule, error) {
	if len(d.Schedules) == 0 {
		return nil, taxerrors.NewMalformedScheduleError("schedule document lists no schedules")
	}

	out := make([]tax.Schedule, 0, len(d.Schedules))
	for i, e := range d.Schedules {
		s, err := e.ToSchedule()
		if err != nil {
			return nil, fmt.Errorf("schedule %d: %w", i+1, err)
		}
		out = append(out, s)
	}
	return out, nil
}

// ToSchedule converts one entry into a validated schedule
func (e Entry) ToSchedule() (tax.Schedule, error) {
	regime, err := tax.ParseRegime(e.Regime)
	if err != nil {
		return tax.Schedule{}, err
	}

	slabs := make([]tax.Slab, len(e.Slabs))
	for i, s := range e.Slabs {
		if s.UpTo == nil {
			slabs[i] = tax.UnboundedSlab(s.Rate.Decimal)
		} else {
			slabs[i] = tax.BoundedSlab(s.UpTo.Decimal, s.Rate.Decimal)
		}
	}
	table, err := tax.NewSlabTable(slabs)
	if err != nil {
		return tax.Schedule{}, fmt.Errorf("regime %q revision %q: %w", regime, e.Revision, err)
	}

	s := tax.Schedule{
		Regime:             regime,
		Revision:           e.Revision,
		Alternate:          e.Alternate,
		Table:              table,
		StandardDeduction:  decimal.Zero,
		ItemizedDeductions: e.ItemizedDeductions,
	}
	if e.StandardDeduction != nil {
		s.StandardDeduction = e.StandardDeduction.Decimal
	}
	if e.RebateThreshold != nil {
		threshold := e.RebateThreshold.Decimal
		s.RebateThreshold = &threshold
	}

	if err := s.Validate(); err != nil {
		return tax.Schedule{}, err
	}
	return s, nil
}

// FromSchedule builds the document entry for a schedule
func FromSchedule(s tax.Schedule) Entry {
	e := Entry{
		Regime:             string(s.Regime),
		Revision:           s.Revision,
		Alternate:          s.Alternate,
		StandardDeduction:  newAmount(s.StandardDeduction),
		ItemizedDeductions: s.ItemizedDeductions,
	}
	if s.RebateThreshold != nil {
		e.RebateThreshold = newAmount(*s.RebateThreshold)
	}
	for _, slab := range s.Table.Slabs() {
		ds := Slab{Rate: Amount{Decimal: slab.Rate}}
		if slab.UpTo != nil {
			ds.UpTo = newAmount(*slab.UpTo)
		}
		e.Slabs = append(e.Slabs, ds)
	}
	return e
}

// Encode writes schedules as a YAML document
func Encode(w io.Writer, schedules []tax.Schedule) error {
	doc := Document{Schedules: make([]Entry, 0, len(schedules))}
	for _, s := range schedules {
		doc.Schedules = append(doc.Schedules, FromSchedule(s))
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode schedules: %w", err)
	}
	return enc.Close()
}

// Fingerprint returns a content hash of the schedule. Two schedules with equal
// numbers hash the same regardless of how the amounts were written.
func Fingerprint(s tax.Schedule) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "regime=%s;revision=%s;alternate=%t;", s.Regime, s.Revision, s.Alternate)
	fmt.Fprintf(&sb, "standard_deduction=%s;itemized=%t;", canonical(s.StandardDeduction), s.ItemizedDeductions)
	if s.RebateThreshold != nil {
		fmt.Fprintf(&sb, "rebate=%s;", canonical(*s.RebateThreshold))
	}
	for _, slab := range s.Table.Slabs() {
		upTo := "inf"
		if slab.UpTo != nil {
			upTo = canonical(*slab.UpTo)
		}
		fmt.Fprintf(&sb, "slab=%s@%s;", upTo, canonical(slab.Rate))
	}

	h := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(h[:])
}

// canonical strips trailing zeros so 0.30 and 0.3 hash alike
func canonical(d decimal.Decimal) string {
	return d.String()
}
