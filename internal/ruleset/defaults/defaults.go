// Package defaults holds the built-in rule sets used when a tenant has no
// active configuration for a simulator.
package defaults

import (
	"fmt"

	"github.com/leadtunic/maxtabil-app-sub001/internal/ruleset"
)

// Version identifies the catalog contents. Bump it whenever a value changes.
const Version = "2024.1"

type band = map[string]interface{}

// Simples Nacional tables from Lei Complementar 155/2016, in force since 2018.
var simplesTables = map[string]interface{}{
	"I": []interface{}{
		band{"min": 0.0, "max": 180000.0, "aliquota_nominal": 0.04, "deducao": 0.0},
		band{"min": 180000.01, "max": 360000.0, "aliquota_nominal": 0.073, "deducao": 5940.0},
		band{"min": 360000.01, "max": 720000.0, "aliquota_nominal": 0.095, "deducao": 13860.0},
		band{"min": 720000.01, "max": 1800000.0, "aliquota_nominal": 0.107, "deducao": 22500.0},
		band{"min": 1800000.01, "max": 3600000.0, "aliquota_nominal": 0.143, "deducao": 87300.0},
		band{"min": 3600000.01, "max": 4800000.0, "aliquota_nominal": 0.19, "deducao": 378000.0},
	},
	"II": []interface{}{
		band{"min": 0.0, "max": 180000.0, "aliquota_nominal": 0.045, "deducao": 0.0},
		band{"min": 180000.01, "max": 360000.0, "aliquota_nominal": 0.078, "deducao": 5940.0},
		band{"min": 360000.01, "max": 720000.0, "aliquota_nominal": 0.10, "deducao": 13860.0},
		band{"min": 720000.01, "max": 1800000.0, "aliquota_nominal": 0.112, "deducao": 22500.0},
		band{"min": 1800000.01, "max": 3600000.0, "aliquota_nominal": 0.147, "deducao": 85500.0},
		band{"min": 3600000.01, "max": 4800000.0, "aliquota_nominal": 0.30, "deducao": 720000.0},
	},
	"III": []interface{}{
		band{"min": 0.0, "max": 180000.0, "aliquota_nominal": 0.06, "deducao": 0.0},
		band{"min": 180000.01, "max": 360000.0, "aliquota_nominal": 0.112, "deducao": 9360.0},
		band{"min": 360000.01, "max": 720000.0, "aliquota_nominal": 0.135, "deducao": 17640.0},
		band{"min": 720000.01, "max": 1800000.0, "aliquota_nominal": 0.16, "deducao": 35640.0},
		band{"min": 1800000.01, "max": 3600000.0, "aliquota_nominal": 0.21, "deducao": 125640.0},
		band{"min": 3600000.01, "max": 4800000.0, "aliquota_nominal": 0.33, "deducao": 648000.0},
	},
	"IV": []interface{}{
		band{"min": 0.0, "max": 180000.0, "aliquota_nominal": 0.045, "deducao": 0.0},
		band{"min": 180000.01, "max": 360000.0, "aliquota_nominal": 0.09, "deducao": 8100.0},
		band{"min": 360000.01, "max": 720000.0, "aliquota_nominal": 0.102, "deducao": 12420.0},
		band{"min": 720000.01, "max": 1800000.0, "aliquota_nominal": 0.14, "deducao": 39780.0},
		band{"min": 1800000.01, "max": 3600000.0, "aliquota_nominal": 0.22, "deducao": 183780.0},
		band{"min": 3600000.01, "max": 4800000.0, "aliquota_nominal": 0.33, "deducao": 828000.0},
	},
	"V": []interface{}{
		band{"min": 0.0, "max": 180000.0, "aliquota_nominal": 0.155, "deducao": 0.0},
		band{"min": 180000.01, "max": 360000.0, "aliquota_nominal": 0.18, "deducao": 4500.0},
		band{"min": 360000.01, "max": 720000.0, "aliquota_nominal": 0.195, "deducao": 9900.0},
		band{"min": 720000.01, "max": 1800000.0, "aliquota_nominal": 0.205, "deducao": 17100.0},
		band{"min": 1800000.01, "max": 3600000.0, "aliquota_nominal": 0.23, "deducao": 62100.0},
		band{"min": 3600000.01, "max": 4800000.0, "aliquota_nominal": 0.305, "deducao": 540000.0},
	},
}

var catalog = map[ruleset.Key]ruleset.Payload{
	ruleset.Honorarios: {
		"baseMin": 600.0,
		"regimePercentual": map[string]interface{}{
			"SIMPLES":   1.0,
			"PRESUMIDO": 1.3,
			"REAL":      1.6,
		},
		"fatorSegmento": map[string]interface{}{
			"SERVICOS":  1.0,
			"COMERCIO":  1.1,
			"INDUSTRIA": 1.25,
		},
		"adicionalPorFuncionario":   50.0,
		"descontoSistemaFinanceiro": 0.10,
		"descontoPontoEletronico":   0.05,
	},
	ruleset.Rescisao: {
		"multaFgts":             0.40,
		"multaAcordo":           0.20,
		"diasAvisoPrevioBase":   30.0,
		"diasAvisoPrevioPorAno": 3.0,
	},
	ruleset.Ferias: {
		"tercoConstitucional": true,
		"limiteDiasAbono":     10.0,
	},
	ruleset.FatorR: {
		"threshold":   0.28,
		"annex_if_ge": "III",
		"annex_if_lt": "V",
	},
	ruleset.SimplesDAS: {
		"tables": simplesTables,
	},
}

// Default returns a copy of the built-in payload for key. Callers may mutate
// the copy freely.
func Default(key ruleset.Key) (ruleset.Payload, error) {
	payload, ok := catalog[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ruleset.ErrUnknownKey, key)
	}
	return payload.Clone()
}

// MustDefault is Default for keys known to be valid.
func MustDefault(key ruleset.Key) ruleset.Payload {
	payload, err := Default(key)
	if err != nil {
		panic(err)
	}
	return payload
}
