// Package ferias computes vacation pay: the month of vacation, the
// constitutional one-third bonus and the optional sale of vacation days
// (abono pecuniario).
package ferias

import (
	"fmt"

	"github.com/leadtunic/maxtabil-app-sub001/internal/engine"
	"github.com/leadtunic/maxtabil-app-sub001/internal/ruleset"
	"github.com/leadtunic/maxtabil-app-sub001/pkg/constants"
	"github.com/leadtunic/maxtabil-app-sub001/pkg/format"
	"github.com/leadtunic/maxtabil-app-sub001/pkg/mathutil"
)

// Config is the typed FERIAS rule set.
type Config struct {
	TercoConstitucional bool    `json:"tercoConstitucional"`
	LimiteDiasAbono     float64 `json:"limiteDiasAbono"`
}

// Decode reads a FERIAS payload. Missing fields stay at their zero value.
func Decode(p ruleset.Payload) Config {
	f := engine.Fields(p)
	return Config{
		TercoConstitucional: f.Bool("tercoConstitucional"),
		LimiteDiasAbono:     mathutil.WholeDays(f.Number("limiteDiasAbono")),
	}
}

// Input is what the vacation form collects.
type Input struct {
	SalarioBase float64 `json:"salarioBase" yaml:"salarioBase"`
	DiasAbono   float64 `json:"diasAbono" yaml:"diasAbono"`
}

// DecodeInput reads an Input from a loosely typed form submission.
func DecodeInput(raw map[string]interface{}) Input {
	f := engine.Fields(raw)
	return Input{
		SalarioBase: f.Number("salarioBase"),
		DiasAbono:   f.Number("diasAbono"),
	}
}

// Calculate decodes payload and runs Compute. It never fails.
func Calculate(in Input, payload ruleset.Payload) (engine.Result, error) {
	return Compute(in, Decode(payload)), nil
}

// Compute returns the vacation breakdown. All items are additive.
func Compute(in Input, cfg Config) engine.Result {
	salario := mathutil.NonNegative(in.SalarioBase)
	limite := mathutil.WholeDays(cfg.LimiteDiasAbono)
	dias := mathutil.Min(mathutil.WholeDays(in.DiasAbono), limite)

	var b engine.Builder
	b.Credit("Férias (30 dias)", salario, format.NumericCurrency(salario), salario)

	if cfg.TercoConstitucional {
		b.Credit("1/3 constitucional", salario,
			fmt.Sprintf("%s / 3", format.NumericCurrency(salario)),
			salario/3)
	}

	if dias > 0 {
		diaria := salario / constants.DaysPerMonth
		b.Credit(fmt.Sprintf("Abono pecuniário (%.0f dias)", dias), diaria,
			fmt.Sprintf("%s / %d × %.0f", format.NumericCurrency(salario), constants.DaysPerMonth, dias),
			diaria*dias)
	}

	return b.Result()
}
