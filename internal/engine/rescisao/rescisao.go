// Package rescisao estimates severance amounts for the usual termination
// types under the CLT.
package rescisao

import (
	"fmt"
	"strings"

	"github.com/leadtunic/maxtabil-app-sub001/internal/engine"
	"github.com/leadtunic/maxtabil-app-sub001/internal/ruleset"
	"github.com/leadtunic/maxtabil-app-sub001/pkg/constants"
	"github.com/leadtunic/maxtabil-app-sub001/pkg/format"
	"github.com/leadtunic/maxtabil-app-sub001/pkg/mathutil"
)

// Tipo is the termination type.
type Tipo string

const (
	SemJustaCausa  Tipo = "SEM_JUSTA_CAUSA"
	Acordo         Tipo = "ACORDO"
	PedidoDemissao Tipo = "PEDIDO_DEMISSAO"
	JustaCausa     Tipo = "JUSTA_CAUSA"
)

// ParseTipo normalizes a termination type. Empty or unknown values fall back
// to SemJustaCausa, the most common case on the form.
func ParseTipo(raw string) Tipo {
	switch t := Tipo(strings.ToUpper(strings.TrimSpace(raw))); t {
	case SemJustaCausa, Acordo, PedidoDemissao, JustaCausa:
		return t
	}
	return SemJustaCausa
}

// Config is the typed RESCISAO rule set.
type Config struct {
	MultaFgts             float64 `json:"multaFgts"`
	MultaAcordo           float64 `json:"multaAcordo"`
	DiasAvisoPrevioBase   float64 `json:"diasAvisoPrevioBase"`
	DiasAvisoPrevioPorAno float64 `json:"diasAvisoPrevioPorAno"`
}

// Decode reads a RESCISAO payload.
func Decode(p ruleset.Payload) Config {
	f := engine.Fields(p)
	return Config{
		MultaFgts:             f.Number("multaFgts"),
		MultaAcordo:           f.Number("multaAcordo"),
		DiasAvisoPrevioBase:   f.Number("diasAvisoPrevioBase"),
		DiasAvisoPrevioPorAno: f.Number("diasAvisoPrevioPorAno"),
	}
}

// Input is what the severance form collects. AvisoIndenizado means the
// notice period is not worked: paid by the employer on dismissal, or
// discounted from the employee on resignation.
type Input struct {
	Tipo                     string  `json:"tipo" yaml:"tipo"`
	SalarioBase              float64 `json:"salarioBase" yaml:"salarioBase"`
	AnosServico              float64 `json:"anosServico" yaml:"anosServico"`
	SaldoFgts                float64 `json:"saldoFgts" yaml:"saldoFgts"`
	DiasTrabalhadosMes       float64 `json:"diasTrabalhadosMes" yaml:"diasTrabalhadosMes"`
	MesesDecimoTerceiro      float64 `json:"mesesDecimoTerceiro" yaml:"mesesDecimoTerceiro"`
	MesesFeriasProporcionais float64 `json:"mesesFeriasProporcionais" yaml:"mesesFeriasProporcionais"`
	AvisoIndenizado          bool    `json:"avisoIndenizado" yaml:"avisoIndenizado"`
}

// DecodeInput reads an Input from a loosely typed form submission.
func DecodeInput(raw map[string]interface{}) Input {
	f := engine.Fields(raw)
	return Input{
		Tipo:                     f.String("tipo"),
		SalarioBase:              f.Number("salarioBase"),
		AnosServico:              f.Number("anosServico"),
		SaldoFgts:                f.Number("saldoFgts"),
		DiasTrabalhadosMes:       f.Number("diasTrabalhadosMes"),
		MesesDecimoTerceiro:      f.Number("mesesDecimoTerceiro"),
		MesesFeriasProporcionais: f.Number("mesesFeriasProporcionais"),
		AvisoIndenizado:          f.Bool("avisoIndenizado"),
	}
}

// NoticeDays returns diasAvisoPrevioBase + diasAvisoPrevioPorAno × whole years.
func NoticeDays(cfg Config, anosServico float64) float64 {
	return mathutil.WholeDays(cfg.DiasAvisoPrevioBase) +
		mathutil.NonNegative(cfg.DiasAvisoPrevioPorAno)*mathutil.WholeDays(anosServico)
}

// Calculate decodes payload and runs Compute. It never fails.
func Calculate(in Input, payload ruleset.Payload) (engine.Result, error) {
	return Compute(in, Decode(payload)), nil
}

// Compute itemizes the severance. Credits come first; the notice discount
// on resignation is last and capped so the total never goes negative.
func Compute(in Input, cfg Config) engine.Result {
	tipo := ParseTipo(in.Tipo)
	salario := mathutil.NonNegative(in.SalarioBase)
	diaria := salario / constants.DaysPerMonth
	mensal := salario / constants.MonthsPerYear
	salarioText := format.NumericCurrency(salario)

	var b engine.Builder

	if dias := mathutil.Min(mathutil.WholeDays(in.DiasTrabalhadosMes), constants.DaysPerMonth); dias > 0 {
		b.Credit(fmt.Sprintf("Saldo de salário (%.0f dias)", dias), diaria,
			fmt.Sprintf("%s / %d × %.0f", salarioText, constants.DaysPerMonth, dias),
			diaria*dias)
	}

	if in.AvisoIndenizado && (tipo == SemJustaCausa || tipo == Acordo) {
		dias := NoticeDays(cfg, in.AnosServico)
		if dias > 0 {
			anos := mathutil.WholeDays(in.AnosServico)
			formula := fmt.Sprintf("%s / %d × (%.0f + %s × %.0f)", salarioText, constants.DaysPerMonth,
				mathutil.WholeDays(cfg.DiasAvisoPrevioBase), format.Decimal(mathutil.NonNegative(cfg.DiasAvisoPrevioPorAno)), anos)
			amount := diaria * dias
			label := fmt.Sprintf("Aviso prévio indenizado (%.0f dias)", dias)
			if tipo == Acordo {
				formula += " × 50%"
				amount /= 2
				label += " - metade por acordo"
			}
			b.Credit(label, diaria, formula, amount)
		}
	}

	if tipo != JustaCausa {
		if meses := mathutil.Min(mathutil.WholeDays(in.MesesDecimoTerceiro), constants.MonthsPerYear); meses > 0 {
			b.Credit(fmt.Sprintf("13º salário proporcional (%.0f/12)", meses), mensal,
				fmt.Sprintf("%s / 12 × %.0f", salarioText, meses),
				mensal*meses)
		}
		if meses := mathutil.Min(mathutil.WholeDays(in.MesesFeriasProporcionais), constants.MonthsPerYear); meses > 0 {
			b.Credit(fmt.Sprintf("Férias proporcionais + 1/3 (%.0f/12)", meses), mensal,
				fmt.Sprintf("%s / 12 × %.0f × 4/3", salarioText, meses),
				mensal*meses*4/3)
		}
	}

	saldoFgts := mathutil.NonNegative(in.SaldoFgts)
	switch tipo {
	case SemJustaCausa:
		ratio := mathutil.Clamp(mathutil.Finite(cfg.MultaFgts), 0, 1)
		if ratio > 0 && saldoFgts > 0 {
			b.Credit("Multa FGTS", saldoFgts,
				fmt.Sprintf("%s × %s", format.NumericCurrency(saldoFgts), format.ExactPercent(ratio)),
				saldoFgts*ratio)
		}
	case Acordo:
		ratio := mathutil.Clamp(mathutil.Finite(cfg.MultaAcordo), 0, 1)
		if ratio > 0 && saldoFgts > 0 {
			b.Credit("Multa FGTS (acordo)", saldoFgts,
				fmt.Sprintf("%s × %s", format.NumericCurrency(saldoFgts), format.ExactPercent(ratio)),
				saldoFgts*ratio)
		}
	}

	if tipo == PedidoDemissao && in.AvisoIndenizado {
		dias := mathutil.WholeDays(cfg.DiasAvisoPrevioBase)
		desconto := diaria * dias
		formula := fmt.Sprintf("%s / %d × %.0f", salarioText, constants.DaysPerMonth, dias)
		if credits := b.Subtotal(); desconto > credits {
			desconto = credits
			formula += fmt.Sprintf(" (limitado a %s)", format.NumericCurrency(credits))
		}
		if desconto > 0 {
			b.Debit("Desconto aviso prévio não cumprido", diaria, formula, desconto)
		}
	}

	return b.Result()
}
