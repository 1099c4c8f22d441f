// Package honorarios prices the monthly accounting fee for a client.
//
// Composition order, each step itemized against the running subtotal:
//  1. base fee, floored at baseMin
//  2. tax-regime multiplier
//  3. business-segment factor
//  4. per-employee surcharge
//  5. financial-system discount (when the client uses it)
//  6. time-clock discount (when the client uses it)
package honorarios

import (
	"fmt"
	"strings"

	"github.com/leadtunic/maxtabil-app-sub001/internal/engine"
	"github.com/leadtunic/maxtabil-app-sub001/internal/ruleset"
	"github.com/leadtunic/maxtabil-app-sub001/pkg/format"
	"github.com/leadtunic/maxtabil-app-sub001/pkg/mathutil"
)

// Tax regimes.
const (
	RegimeSimples   = "SIMPLES"
	RegimePresumido = "PRESUMIDO"
	RegimeReal      = "REAL"
)

// Business segments.
const (
	SegmentoServicos  = "SERVICOS"
	SegmentoComercio  = "COMERCIO"
	SegmentoIndustria = "INDUSTRIA"
)

// Config is the typed HONORARIOS rule set.
type Config struct {
	BaseMin                   float64            `json:"baseMin"`
	RegimePercentual          map[string]float64 `json:"regimePercentual"`
	FatorSegmento             map[string]float64 `json:"fatorSegmento"`
	AdicionalPorFuncionario   float64            `json:"adicionalPorFuncionario"`
	DescontoSistemaFinanceiro float64            `json:"descontoSistemaFinanceiro"`
	DescontoPontoEletronico   float64            `json:"descontoPontoEletronico"`
}

// Decode reads a HONORARIOS payload.
func Decode(p ruleset.Payload) Config {
	f := engine.Fields(p)
	return Config{
		BaseMin:                   f.Number("baseMin"),
		RegimePercentual:          numberMap(f.Map("regimePercentual")),
		FatorSegmento:             numberMap(f.Map("fatorSegmento")),
		AdicionalPorFuncionario:   f.Number("adicionalPorFuncionario"),
		DescontoSistemaFinanceiro: f.Number("descontoSistemaFinanceiro"),
		DescontoPontoEletronico:   f.Number("descontoPontoEletronico"),
	}
}

func numberMap(f engine.Fields) map[string]float64 {
	out := make(map[string]float64, len(f))
	for name := range f {
		out[strings.ToUpper(name)] = f.Number(name)
	}
	return out
}

// Input is what the fee form collects.
type Input struct {
	ValorBase            float64 `json:"valorBase" yaml:"valorBase"`
	Regime               string  `json:"regime" yaml:"regime"`
	Segmento             string  `json:"segmento" yaml:"segmento"`
	Funcionarios         float64 `json:"funcionarios" yaml:"funcionarios"`
	UsaSistemaFinanceiro bool    `json:"usaSistemaFinanceiro" yaml:"usaSistemaFinanceiro"`
	UsaPontoEletronico   bool    `json:"usaPontoEletronico" yaml:"usaPontoEletronico"`
}

// DecodeInput reads an Input from a loosely typed form submission.
func DecodeInput(raw map[string]interface{}) Input {
	f := engine.Fields(raw)
	return Input{
		ValorBase:            f.Number("valorBase"),
		Regime:               f.String("regime"),
		Segmento:             f.String("segmento"),
		Funcionarios:         f.Number("funcionarios"),
		UsaSistemaFinanceiro: f.Bool("usaSistemaFinanceiro"),
		UsaPontoEletronico:   f.Bool("usaPontoEletronico"),
	}
}

// Calculate decodes payload and runs Compute. It never fails.
func Calculate(in Input, payload ruleset.Payload) (engine.Result, error) {
	return Compute(in, Decode(payload)), nil
}

// multiplier looks up key, defaulting to 1 for unknown or missing entries.
func multiplier(table map[string]float64, key string) float64 {
	if v, ok := table[strings.ToUpper(strings.TrimSpace(key))]; ok {
		return mathutil.NonNegative(v)
	}
	return 1
}

// Compute itemizes the fee in the order documented on the package.
func Compute(in Input, cfg Config) engine.Result {
	var b engine.Builder

	base := mathutil.Max(mathutil.NonNegative(in.ValorBase), mathutil.NonNegative(cfg.BaseMin))
	baseFormula := fmt.Sprintf("máx(%s; mínimo %s)",
		format.NumericCurrency(mathutil.NonNegative(in.ValorBase)), format.NumericCurrency(cfg.BaseMin))
	b.Credit("Honorário base", base, baseFormula, base)

	regime := multiplier(cfg.RegimePercentual, in.Regime)
	if regime != 1 {
		subtotal := b.Subtotal()
		b.Adjust(fmt.Sprintf("Ajuste regime tributário (%s)", strings.ToUpper(in.Regime)), subtotal,
			fmt.Sprintf("%s × (%s - 1)", format.NumericCurrency(subtotal), format.Decimal(regime)),
			subtotal*(regime-1))
	}

	segmento := multiplier(cfg.FatorSegmento, in.Segmento)
	if segmento != 1 {
		subtotal := b.Subtotal()
		b.Adjust(fmt.Sprintf("Ajuste segmento (%s)", strings.ToUpper(in.Segmento)), subtotal,
			fmt.Sprintf("%s × (%s - 1)", format.NumericCurrency(subtotal), format.Decimal(segmento)),
			subtotal*(segmento-1))
	}

	funcionarios := mathutil.WholeDays(in.Funcionarios)
	adicional := mathutil.NonNegative(cfg.AdicionalPorFuncionario)
	if funcionarios > 0 && adicional > 0 {
		b.Credit(fmt.Sprintf("Adicional por funcionário (%.0f)", funcionarios), adicional,
			fmt.Sprintf("%s × %.0f", format.NumericCurrency(adicional), funcionarios),
			adicional*funcionarios)
	}

	if in.UsaSistemaFinanceiro {
		ratio := mathutil.Clamp(mathutil.Finite(cfg.DescontoSistemaFinanceiro), 0, 1)
		if ratio > 0 {
			subtotal := b.Subtotal()
			b.Debit("Desconto sistema financeiro", subtotal,
				fmt.Sprintf("%s × %s", format.NumericCurrency(subtotal), format.ExactPercent(ratio)),
				subtotal*ratio)
		}
	}

	if in.UsaPontoEletronico {
		ratio := mathutil.Clamp(mathutil.Finite(cfg.DescontoPontoEletronico), 0, 1)
		if ratio > 0 {
			subtotal := b.Subtotal()
			b.Debit("Desconto ponto eletrônico", subtotal,
				fmt.Sprintf("%s × %s", format.NumericCurrency(subtotal), format.ExactPercent(ratio)),
				subtotal*ratio)
		}
	}

	return b.Result()
}
