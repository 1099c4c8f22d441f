// Package simples computes the Simples Nacional DAS using the progressive
// bracket tables of annexes I to V.
//
// For a trailing-twelve-month gross revenue r falling in band b, the
// effective rate is (r × b.aliquota_nominal − b.deducao) / r. The monthly DAS
// is the month's revenue times the effective rate.
package simples

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/leadtunic/maxtabil-app-sub001/internal/engine"
	"github.com/leadtunic/maxtabil-app-sub001/internal/ruleset"
	"github.com/leadtunic/maxtabil-app-sub001/pkg/constants"
	"github.com/leadtunic/maxtabil-app-sub001/pkg/format"
	"github.com/leadtunic/maxtabil-app-sub001/pkg/mathutil"
)

var (
	// ErrBracketNotFound means no band of the table covers the revenue,
	// i.e. the table itself has a coverage gap or the revenue exceeds the
	// Simples ceiling.
	ErrBracketNotFound = errors.New("no bracket covers revenue")

	// ErrUnknownAnnex means the requested annex has no table.
	ErrUnknownAnnex = errors.New("unknown annex")
)

// Annex names a Simples Nacional annex table.
type Annex string

const (
	AnnexI   Annex = "I"
	AnnexII  Annex = "II"
	AnnexIII Annex = "III"
	AnnexIV  Annex = "IV"
	AnnexV   Annex = "V"
)

// Annexes lists the annexes in order.
func Annexes() []Annex {
	return []Annex{AnnexI, AnnexII, AnnexIII, AnnexIV, AnnexV}
}

// ParseAnnex normalizes user input ("iii", " III ") to an Annex.
func ParseAnnex(raw string) Annex {
	return Annex(strings.ToUpper(strings.TrimSpace(raw)))
}

// Band is one bracket of an annex table.
type Band struct {
	Min             float64 `json:"min" yaml:"min"`
	Max             float64 `json:"max" yaml:"max"`
	AliquotaNominal float64 `json:"aliquota_nominal" yaml:"aliquota_nominal"`
	Deducao         float64 `json:"deducao" yaml:"deducao"`
}

// Contains reports whether revenue falls within the band, inclusive.
func (b Band) Contains(revenue float64) bool {
	return b.Min <= revenue && revenue <= b.Max
}

// Table is the ordered list of bands of one annex.
type Table []Band

// Find returns the first band containing revenue and its zero-based index.
func (t Table) Find(revenue float64) (int, Band, bool) {
	for i, band := range t {
		if band.Contains(revenue) {
			return i, band, true
		}
	}
	return -1, Band{}, false
}

// Problem is a coverage defect of a table, tied to a band index.
type Problem struct {
	Band    int
	Message string
}

// CoverageProblems checks that the bands are ordered, contiguous at cent
// granularity, non-overlapping and cover [0, SimplesRevenueCeiling].
func (t Table) CoverageProblems() []Problem {
	if len(t) == 0 {
		return []Problem{{Band: -1, Message: "table has no bands"}}
	}

	var problems []Problem
	for i, band := range t {
		if band.Min > band.Max {
			problems = append(problems, Problem{Band: i, Message: fmt.Sprintf("min %.2f is greater than max %.2f", band.Min, band.Max)})
		}
		if i == 0 {
			if band.Min != 0 {
				problems = append(problems, Problem{Band: i, Message: fmt.Sprintf("first band must start at 0, starts at %.2f", band.Min)})
			}
			continue
		}
		gap := band.Min - t[i-1].Max
		switch {
		case gap <= 0:
			problems = append(problems, Problem{Band: i, Message: fmt.Sprintf("overlaps previous band (min %.2f <= previous max %.2f)", band.Min, t[i-1].Max)})
		case gap > constants.BandGapTolerance:
			problems = append(problems, Problem{Band: i, Message: fmt.Sprintf("leaves a gap after previous band (%.2f to %.2f)", t[i-1].Max, band.Min)})
		}
	}

	last := t[len(t)-1]
	if !mathutil.WithinTolerance(last.Max, constants.SimplesRevenueCeiling, constants.CurrencyTolerance/2) {
		problems = append(problems, Problem{Band: len(t) - 1, Message: fmt.Sprintf("last band must end at %.2f, ends at %.2f", constants.SimplesRevenueCeiling, last.Max)})
	}
	return problems
}

// Config is the typed SIMPLES_DAS rule set.
type Config struct {
	Tables map[Annex]Table `json:"tables"`
}

// Decode reads a SIMPLES_DAS payload. Malformed bands read as zero values;
// structure is checked when the rule set is published, not here.
func Decode(p ruleset.Payload) Config {
	cfg := Config{Tables: make(map[Annex]Table)}
	tables := engine.Fields(p).Map("tables")
	for name := range tables {
		rows := tables.List(name)
		table := make(Table, 0, len(rows))
		for _, row := range rows {
			f := engine.AsFields(row)
			table = append(table, Band{
				Min:             f.Number("min"),
				Max:             f.Number("max"),
				AliquotaNominal: f.Number("aliquota_nominal"),
				Deducao:         f.Number("deducao"),
			})
		}
		cfg.Tables[ParseAnnex(name)] = table
	}
	return cfg
}

// AnnexNames returns the configured annexes sorted.
func (c Config) AnnexNames() []string {
	names := make([]string, 0, len(c.Tables))
	for annex := range c.Tables {
		names = append(names, string(annex))
	}
	sort.Strings(names)
	return names
}

// Input is what the DAS form collects. ReceitaMes defaults to one twelfth
// of ReceitaBruta12m when zero.
type Input struct {
	Annex           string  `json:"annex" yaml:"annex"`
	ReceitaBruta12m float64 `json:"receitaBruta12m" yaml:"receitaBruta12m"`
	ReceitaMes      float64 `json:"receitaMes" yaml:"receitaMes"`
}

// DecodeInput reads an Input from a loosely typed form submission.
func DecodeInput(raw map[string]interface{}) Input {
	f := engine.Fields(raw)
	return Input{
		Annex:           f.String("annex"),
		ReceitaBruta12m: f.Number("receitaBruta12m"),
		ReceitaMes:      f.Number("receitaMes"),
	}
}

// Output carries the located bracket alongside the breakdown.
type Output struct {
	Annex         Annex         `json:"annex"`
	Faixa         int           `json:"faixa"`
	Band          Band          `json:"band"`
	Revenue       float64       `json:"revenue"`
	EffectiveRate float64       `json:"effectiveRate"`
	Result        engine.Result `json:"result"`
}

// EffectiveRate returns (revenue × aliquota − deducao) / revenue, or 0 for
// zero revenue.
func EffectiveRate(revenue float64, band Band) float64 {
	if revenue <= 0 {
		return 0
	}
	return (revenue*band.AliquotaNominal - band.Deducao) / revenue
}

// Lookup finds the band for an annex and annual revenue. Revenue is
// sanitized and rounded to cents before matching.
func Lookup(cfg Config, annex Annex, revenue float64) (int, Band, float64, error) {
	table, ok := cfg.Tables[annex]
	if !ok || len(table) == 0 {
		return -1, Band{}, 0, fmt.Errorf("%w: %q", ErrUnknownAnnex, annex)
	}
	r := mathutil.Round(mathutil.NonNegative(revenue))
	idx, band, found := table.Find(r)
	if !found {
		return -1, Band{}, r, fmt.Errorf("%w: annex %s, revenue %.2f", ErrBracketNotFound, annex, r)
	}
	return idx, band, r, nil
}

// Calculate decodes payload and runs Compute.
func Calculate(in Input, payload ruleset.Payload) (Output, error) {
	return Compute(in, Decode(payload))
}

// Compute locates the bracket and itemizes the month's DAS.
func Compute(in Input, cfg Config) (Output, error) {
	annex := ParseAnnex(in.Annex)
	idx, band, revenue, err := Lookup(cfg, annex, in.ReceitaBruta12m)
	if err != nil {
		return Output{}, err
	}

	rate := EffectiveRate(revenue, band)
	month := mathutil.NonNegative(in.ReceitaMes)
	if month == 0 {
		month = revenue / constants.MonthsPerYear
	}

	var b engine.Builder
	b.Credit(fmt.Sprintf("Receita do mês × alíquota nominal (anexo %s, faixa %d)", annex, idx+1), month,
		fmt.Sprintf("%s × %s", format.NumericCurrency(month), format.ExactPercent(band.AliquotaNominal)),
		month*band.AliquotaNominal)

	if band.Deducao > 0 && revenue > 0 {
		b.Debit("Parcela a deduzir proporcional", band.Deducao,
			fmt.Sprintf("%s × %s / %s", format.NumericCurrency(band.Deducao), format.NumericCurrency(month), format.NumericCurrency(revenue)),
			band.Deducao*month/revenue)
	}

	return Output{
		Annex:         annex,
		Faixa:         idx + 1,
		Band:          band,
		Revenue:       revenue,
		EffectiveRate: rate,
		Result:        b.Result(),
	}, nil
}
