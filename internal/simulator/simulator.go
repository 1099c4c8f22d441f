// Package simulator runs a simulation end to end: it resolves the tenant's
// configuration for the requested kind and feeds it, with the decoded form
// input, to the matching engine.
package simulator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/leadtunic/maxtabil-app-sub001/internal/engine"
	"github.com/leadtunic/maxtabil-app-sub001/internal/engine/fatorr"
	"github.com/leadtunic/maxtabil-app-sub001/internal/engine/ferias"
	"github.com/leadtunic/maxtabil-app-sub001/internal/engine/honorarios"
	"github.com/leadtunic/maxtabil-app-sub001/internal/engine/rescisao"
	"github.com/leadtunic/maxtabil-app-sub001/internal/engine/simples"
	"github.com/leadtunic/maxtabil-app-sub001/internal/metrics"
	"github.com/leadtunic/maxtabil-app-sub001/internal/resolver"
	"github.com/leadtunic/maxtabil-app-sub001/internal/ruleset"
)

// Simulation is the answer returned to callers. Extra carries the
// kind-specific findings that are not breakdown lines, such as the Simples
// bracket or the Fator R annex.
type Simulation struct {
	Kind       ruleset.Key            `json:"kind"`
	Result     engine.Result          `json:"result"`
	Unit       engine.Unit            `json:"unit"`
	IsFallback bool                   `json:"isFallback"`
	Version    int                    `json:"version,omitempty"`
	Extra      map[string]interface{} `json:"extra,omitempty"`
}

// Calculate dispatches to the engine of kind. It is pure: the payload is
// supplied by the caller.
func Calculate(kind ruleset.Key, input map[string]interface{}, payload ruleset.Payload) (engine.Result, map[string]interface{}, error) {
	switch kind {
	case ruleset.Ferias:
		r, err := ferias.Calculate(ferias.DecodeInput(input), payload)
		return r, nil, err
	case ruleset.Rescisao:
		r, err := rescisao.Calculate(rescisao.DecodeInput(input), payload)
		return r, nil, err
	case ruleset.Honorarios:
		r, err := honorarios.Calculate(honorarios.DecodeInput(input), payload)
		return r, nil, err
	case ruleset.SimplesDAS:
		out, err := simples.Calculate(simples.DecodeInput(input), payload)
		if err != nil {
			return engine.Result{}, nil, err
		}
		return out.Result, map[string]interface{}{
			"annex":         out.Annex,
			"faixa":         out.Faixa,
			"band":          out.Band,
			"revenue":       out.Revenue,
			"effectiveRate": out.EffectiveRate,
		}, nil
	case ruleset.FatorR:
		out, err := fatorr.Calculate(fatorr.DecodeInput(input), payload)
		if err != nil {
			return engine.Result{}, nil, err
		}
		return out.Result, map[string]interface{}{
			"ratio":     out.Ratio,
			"threshold": out.Threshold,
			"annex":     out.Annex,
			"atOrAbove": out.AtOrAbove,
		}, nil
	}
	return engine.Result{}, nil, fmt.Errorf("%w: %q", ruleset.ErrUnknownKey, kind)
}

// UnitOf returns the unit of the amounts kind produces. FATOR_R yields a
// ratio; every other kind yields reais.
func UnitOf(kind ruleset.Key) engine.Unit {
	if kind == ruleset.FatorR {
		return engine.UnitRatio
	}
	return engine.UnitCurrency
}

// Simulator resolves configuration and runs engines.
type Simulator struct {
	resolver *resolver.Resolver
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// New creates a Simulator. m and logger may be nil.
func New(r *resolver.Resolver, m *metrics.Metrics, logger *zap.Logger) *Simulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Simulator{resolver: r, metrics: m, logger: logger}
}

// Run simulates kind for tenant with the raw form input.
func (s *Simulator) Run(ctx context.Context, kind ruleset.Key, tenant string, input map[string]interface{}) (sim Simulation, err error) {
	started := time.Now()
	defer func() { s.metrics.ObserveCalculation(string(kind), started, err) }()

	res, err := s.resolver.ResolveActive(ctx, kind, tenant)
	if err != nil {
		return Simulation{}, err
	}

	result, extra, err := Calculate(kind, input, res.Config)
	if err != nil {
		s.logger.Warn("Simulation failed",
			zap.String("op", "simulator.Run"),
			zap.String("kind", string(kind)),
			zap.String("tenant", tenant),
			zap.Bool("fallback", res.IsFallback),
			zap.Error(err))
		return Simulation{}, err
	}

	return Simulation{
		Kind:       kind,
		Result:     result,
		Unit:       UnitOf(kind),
		IsFallback: res.IsFallback,
		Version:    res.Version,
		Extra:      extra,
	}, nil
}

// Comparison is a Fator R decision with the DAS under both candidate annexes.
type Comparison struct {
	fatorr.Comparison
	FatorRFallback  bool `json:"fatorRFallback"`
	SimplesFallback bool `json:"simplesFallback"`
}

// CompareFatorR resolves both the FATOR_R and SIMPLES_DAS configurations of
// tenant and compares the candidate annexes.
func (s *Simulator) CompareFatorR(ctx context.Context, tenant string, input map[string]interface{}) (cmp Comparison, err error) {
	started := time.Now()
	defer func() { s.metrics.ObserveCalculation(string(ruleset.FatorR)+"_compare", started, err) }()

	rule, err := s.resolver.ResolveActive(ctx, ruleset.FatorR, tenant)
	if err != nil {
		return Comparison{}, err
	}
	tables, err := s.resolver.ResolveActive(ctx, ruleset.SimplesDAS, tenant)
	if err != nil {
		return Comparison{}, err
	}

	c, err := fatorr.Compare(fatorr.DecodeInput(input), fatorr.Decode(rule.Config), simples.Decode(tables.Config))
	if err != nil {
		return Comparison{}, err
	}
	return Comparison{Comparison: c, FatorRFallback: rule.IsFallback, SimplesFallback: tables.IsFallback}, nil
}
