// Package fatorr decides between the Simples Nacional annexes for service
// companies by the payroll-to-revenue ratio (Fator R).
package fatorr

import (
	"fmt"

	"github.com/leadtunic/maxtabil-app-sub001/internal/engine"
	"github.com/leadtunic/maxtabil-app-sub001/internal/engine/simples"
	"github.com/leadtunic/maxtabil-app-sub001/internal/ruleset"
	"github.com/leadtunic/maxtabil-app-sub001/pkg/format"
	"github.com/leadtunic/maxtabil-app-sub001/pkg/mathutil"
)

// Config is the typed FATOR_R rule set.
type Config struct {
	Threshold float64       `json:"threshold"`
	AnnexIfGE simples.Annex `json:"annex_if_ge"`
	AnnexIfLT simples.Annex `json:"annex_if_lt"`
}

// Decode reads a FATOR_R payload.
func Decode(p ruleset.Payload) Config {
	f := engine.Fields(p)
	return Config{
		Threshold: f.Number("threshold"),
		AnnexIfGE: simples.ParseAnnex(f.String("annex_if_ge")),
		AnnexIfLT: simples.ParseAnnex(f.String("annex_if_lt")),
	}
}

// Input holds the trailing-twelve-month payroll and gross revenue.
// ReceitaMes is only used by Compare.
type Input struct {
	Folha12m   float64 `json:"folha12m" yaml:"folha12m"`
	Receita12m float64 `json:"receita12m" yaml:"receita12m"`
	ReceitaMes float64 `json:"receitaMes" yaml:"receitaMes"`
}

// DecodeInput reads an Input from a loosely typed form submission.
func DecodeInput(raw map[string]interface{}) Input {
	f := engine.Fields(raw)
	return Input{
		Folha12m:   f.Number("folha12m"),
		Receita12m: f.Number("receita12m"),
		ReceitaMes: f.Number("receitaMes"),
	}
}

// Output is the annex decision.
type Output struct {
	Ratio     float64       `json:"ratio"`
	Threshold float64       `json:"threshold"`
	Annex     simples.Annex `json:"annex"`
	AtOrAbove bool          `json:"atOrAbove"`
	Result    engine.Result `json:"result"`
}

// Ratio returns payroll / revenue, or 0 when revenue is not positive.
func Ratio(folha, receita float64) float64 {
	folha = mathutil.NonNegative(folha)
	receita = mathutil.NonNegative(receita)
	if receita == 0 {
		return 0
	}
	return folha / receita
}

// Calculate decodes payload and runs Compute. It never fails.
func Calculate(in Input, payload ruleset.Payload) (Output, error) {
	return Compute(in, Decode(payload)), nil
}

// Compute selects AnnexIfGE when ratio >= threshold, else AnnexIfLT. The
// breakdown has the single ratio line, so Result.Total is the ratio.
func Compute(in Input, cfg Config) Output {
	folha := mathutil.NonNegative(in.Folha12m)
	receita := mathutil.NonNegative(in.Receita12m)
	ratio := Ratio(folha, receita)

	atOrAbove := ratio >= cfg.Threshold
	annex := cfg.AnnexIfLT
	if atOrAbove {
		annex = cfg.AnnexIfGE
	}

	var b engine.Builder
	b.Credit("Fator R (folha 12m / receita 12m)", receita,
		fmt.Sprintf("%s / %s", format.NumericCurrency(folha), format.NumericCurrency(receita)),
		ratio)

	return Output{
		Ratio:     ratio,
		Threshold: cfg.Threshold,
		Annex:     annex,
		AtOrAbove: atOrAbove,
		Result:    b.Result(),
	}
}

// Comparison puts the DAS of the selected annex next to the other candidate.
type Comparison struct {
	Decision Output         `json:"decision"`
	Selected simples.Output `json:"selected"`
	Other    simples.Output `json:"other"`
	// Saving is the other annex's DAS minus the selected one's; negative
	// when the selected annex costs more.
	Saving float64 `json:"saving"`
}

// Compare runs the Fator R decision and computes the monthly DAS under both
// candidate annexes with the given Simples tables.
func Compare(in Input, cfg Config, tables simples.Config) (Comparison, error) {
	decision := Compute(in, cfg)

	other := cfg.AnnexIfLT
	if !decision.AtOrAbove {
		other = cfg.AnnexIfGE
	}

	selectedOut, err := simples.Compute(simples.Input{
		Annex:           string(decision.Annex),
		ReceitaBruta12m: in.Receita12m,
		ReceitaMes:      in.ReceitaMes,
	}, tables)
	if err != nil {
		return Comparison{}, fmt.Errorf("failed to compute DAS for annex %s: %w", decision.Annex, err)
	}

	otherOut, err := simples.Compute(simples.Input{
		Annex:           string(other),
		ReceitaBruta12m: in.Receita12m,
		ReceitaMes:      in.ReceitaMes,
	}, tables)
	if err != nil {
		return Comparison{}, fmt.Errorf("failed to compute DAS for annex %s: %w", other, err)
	}

	return Comparison{
		Decision: decision,
		Selected: selectedOut,
		Other:    otherOut,
		Saving:   otherOut.Result.Total - selectedOut.Result.Total,
	}, nil
}
