package rescisao

import (
	"math"
	"testing"

	"github.com/leadtunic/maxtabil-app-sub001/internal/engine"
	"github.com/leadtunic/maxtabil-app-sub001/internal/ruleset"
	"github.com/leadtunic/maxtabil-app-sub001/internal/ruleset/defaults"
)

var cfg = Config{MultaFgts: 0.40, MultaAcordo: 0.20, DiasAvisoPrevioBase: 30, DiasAvisoPrevioPorAno: 3}

func TestNoticeDays(t *testing.T) {
	tests := []struct {
		anos     float64
		expected float64
	}{
		{0, 30},
		{1, 33},
		{5.9, 45},
		{-2, 30},
	}

	for _, tt := range tests {
		if got := NoticeDays(cfg, tt.anos); got != tt.expected {
			t.Errorf("NoticeDays(%v) = %v, expected %v", tt.anos, got, tt.expected)
		}
	}
}

func TestCompute(t *testing.T) {
	base := Input{
		SalarioBase:              3000,
		AnosServico:              2,
		SaldoFgts:                10000,
		DiasTrabalhadosMes:       10,
		MesesDecimoTerceiro:      6,
		MesesFeriasProporcionais: 6,
		AvisoIndenizado:          true,
	}

	saldo := 100.0 * 10 // 3000/30 × 10
	aviso := 100.0 * 36 // 3000/30 × (30 + 3×2)
	decimo := 250.0 * 6
	ferias := 250.0 * 6 * 4 / 3
	desconto := 100.0 * 30

	tests := []struct {
		name          string
		tipo          Tipo
		avisoIndeniz  bool
		expectedTotal float64
	}{
		{"Dismissal without cause", SemJustaCausa, true, saldo + aviso + decimo + ferias + 4000},
		{"Dismissal with worked notice", SemJustaCausa, false, saldo + decimo + ferias + 4000},
		{"Mutual agreement halves notice", Acordo, true, saldo + aviso/2 + decimo + ferias + 2000},
		{"Resignation without notice", PedidoDemissao, true, saldo + decimo + ferias - desconto},
		{"Resignation with worked notice", PedidoDemissao, false, saldo + decimo + ferias},
		{"Dismissal for cause", JustaCausa, true, saldo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := base
			in.Tipo = string(tt.tipo)
			in.AvisoIndenizado = tt.avisoIndeniz

			result := Compute(in, cfg)
			if math.Abs(result.Total-tt.expectedTotal) > 1e-6 {
				t.Errorf("Compute() total = %.4f, expected %.4f: %+v", result.Total, tt.expectedTotal, result.Breakdown)
			}
			if !result.Consistent() {
				t.Errorf("total %.6f does not match signed sum %.6f", result.Total, result.SignedSum())
			}
		})
	}
}

func TestComputeResignationDiscountIsSubtractive(t *testing.T) {
	result := Compute(Input{Tipo: "pedido_demissao", SalarioBase: 3000, DiasTrabalhadosMes: 30, AvisoIndenizado: true}, cfg)

	last := result.Breakdown[len(result.Breakdown)-1]
	if last.Sign != engine.Minus {
		t.Fatalf("expected last item to be a discount, got %+v", last)
	}
	if last.Amount != 3000 {
		t.Errorf("discount = %.2f, expected 3000", last.Amount)
	}
	if result.Total != 0 {
		t.Errorf("total = %.2f, expected 0", result.Total)
	}
}

func TestComputeDiscountNeverDrivesTotalNegative(t *testing.T) {
	result := Compute(Input{Tipo: string(PedidoDemissao), SalarioBase: 3000, DiasTrabalhadosMes: 5, AvisoIndenizado: true}, cfg)

	if result.Total < 0 {
		t.Fatalf("total went negative: %.2f", result.Total)
	}
	if math.Abs(result.Total) > 1e-9 {
		t.Errorf("discount should be capped at credits, total = %.6f", result.Total)
	}
	if !result.Consistent() {
		t.Errorf("total %.6f does not match signed sum %.6f", result.Total, result.SignedSum())
	}
}

func TestComputeSanitizesInput(t *testing.T) {
	result := Compute(Input{
		SalarioBase:              math.Inf(1),
		AnosServico:              math.NaN(),
		SaldoFgts:                -500,
		DiasTrabalhadosMes:       45,
		MesesDecimoTerceiro:      20,
		MesesFeriasProporcionais: -1,
		AvisoIndenizado:          true,
	}, cfg)

	if math.IsNaN(result.Total) || math.IsInf(result.Total, 0) {
		t.Fatalf("total is not finite: %v", result.Total)
	}
	for _, item := range result.Breakdown {
		if item.Amount < 0 || math.IsNaN(item.Amount) {
			t.Errorf("item %q has invalid amount %v", item.Label, item.Amount)
		}
	}
}

func TestParseTipo(t *testing.T) {
	tests := map[string]Tipo{
		"":                SemJustaCausa,
		"acordo":          Acordo,
		" JUSTA_CAUSA ":   JustaCausa,
		"pedido_demissao": PedidoDemissao,
		"something else":  SemJustaCausa,
	}
	for raw, want := range tests {
		if got := ParseTipo(raw); got != want {
			t.Errorf("ParseTipo(%q) = %s, expected %s", raw, got, want)
		}
	}
}

func TestCalculateWithDefaultPayload(t *testing.T) {
	result, err := Calculate(DecodeInput(map[string]interface{}{
		"tipo":            "SEM_JUSTA_CAUSA",
		"salarioBase":     "3000",
		"anosServico":     1,
		"saldoFgts":       "5.000,00",
		"avisoIndenizado": true,
	}), defaults.MustDefault(ruleset.Rescisao))
	if err != nil {
		t.Fatalf("Calculate() error = %v", err)
	}

	expected := 100.0*33 + 2000
	if math.Abs(result.Total-expected) > 1e-6 {
		t.Errorf("Calculate() total = %.2f, expected %.2f", result.Total, expected)
	}
}

func TestComputeFormulaTextKeepsFullPrecision(t *testing.T) {
	config := Config{MultaFgts: 0.375, DiasAvisoPrevioBase: 30, DiasAvisoPrevioPorAno: 1.5}
	result := Compute(Input{
		Tipo:            string(SemJustaCausa),
		SalarioBase:     3000,
		AnosServico:     2,
		SaldoFgts:       10000,
		AvisoIndenizado: true,
	}, config)

	if len(result.Breakdown) != 2 {
		t.Fatalf("expected notice and FGTS fine, got %d items", len(result.Breakdown))
	}

	aviso := result.Breakdown[0]
	if aviso.FormulaText != "3.000,00 / 30 × (30 + 1,5 × 2)" {
		t.Errorf("notice formula = %q", aviso.FormulaText)
	}
	if math.Abs(aviso.Amount-3300) > 1e-9 {
		t.Errorf("notice amount = %v, expected 3300", aviso.Amount)
	}

	multa := result.Breakdown[1]
	if multa.FormulaText != "10.000,00 × 37,5%" {
		t.Errorf("FGTS fine formula = %q", multa.FormulaText)
	}
	if math.Abs(multa.Amount-3750) > 1e-9 {
		t.Errorf("FGTS fine amount = %v, expected 3750", multa.Amount)
	}
}
