package server

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/leadtunic/maxtabil-app-sub001/internal/metrics"
	"github.com/leadtunic/maxtabil-app-sub001/internal/resolver"
	"github.com/leadtunic/maxtabil-app-sub001/internal/ruleset"
	"github.com/leadtunic/maxtabil-app-sub001/internal/ruleset/admin"
	"github.com/leadtunic/maxtabil-app-sub001/internal/simulator"
	"github.com/leadtunic/maxtabil-app-sub001/internal/store/memory"
	"github.com/leadtunic/maxtabil-app-sub001/pkg/constants"
)

func newTestHandler(t *testing.T, maxBodySize int64) http.Handler {
	t.Helper()
	logger := zap.NewNop()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	st := memory.New()

	deps := Dependencies{
		Simulator: simulator.New(resolver.New(resolver.NewStoreSource(st, logger), m, logger), m, logger),
		Admin:     admin.New(st, nil, m, logger),
		Gatherer:  reg,
		Tenant:    "escritorio-1",
	}
	return NewHandler(logger, deps, maxBodySize, "1.2.3")
}

func perform(t *testing.T, handler http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), dst); err != nil {
		t.Fatalf("failed to decode response %q: %v", rr.Body.String(), err)
	}
}

type simulationResponse struct {
	Kind       string                 `json:"kind"`
	IsFallback bool                   `json:"isFallback"`
	Version    int                    `json:"version"`
	Extra      map[string]interface{} `json:"extra"`
	Result     struct {
		Total     float64 `json:"total"`
		Breakdown []struct {
			Label  string  `json:"label"`
			Amount float64 `json:"amount"`
			Sign   int     `json:"sign"`
		} `json:"breakdown"`
	} `json:"result"`
}

func TestHandleSimulateFallback(t *testing.T) {
	handler := newTestHandler(t, 0)

	rr := perform(t, handler, http.MethodPost, "/api/simulations/ferias", map[string]interface{}{
		"input": map[string]interface{}{"salarioBase": 3000},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp simulationResponse
	decodeJSON(t, rr, &resp)
	if resp.Kind != string(ruleset.Ferias) {
		t.Errorf("expected kind FERIAS, got %s", resp.Kind)
	}
	if !resp.IsFallback {
		t.Error("expected fallback configuration")
	}
	if math.Abs(resp.Result.Total-4000) > 1e-6 {
		t.Errorf("expected total 4000, got %.2f", resp.Result.Total)
	}
	if len(resp.Result.Breakdown) != 2 {
		t.Errorf("expected 2 breakdown items, got %d", len(resp.Result.Breakdown))
	}
}

func TestHandleSimulateSimplesExtra(t *testing.T) {
	handler := newTestHandler(t, 0)

	rr := perform(t, handler, http.MethodPost, "/api/simulations/SIMPLES_DAS", map[string]interface{}{
		"input": map[string]interface{}{"annex": "I", "receitaBruta12m": 200000},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp simulationResponse
	decodeJSON(t, rr, &resp)
	if resp.Extra["faixa"] != 2.0 {
		t.Errorf("expected faixa 2, got %v", resp.Extra["faixa"])
	}
	if rate, _ := resp.Extra["effectiveRate"].(float64); math.Abs(rate-0.0433) > 1e-9 {
		t.Errorf("expected effective rate 0.0433, got %v", resp.Extra["effectiveRate"])
	}
}

func TestHandleSimulateBracketNotFound(t *testing.T) {
	handler := newTestHandler(t, 0)

	rr := perform(t, handler, http.MethodPost, "/api/simulations/SIMPLES_DAS", map[string]interface{}{
		"input": map[string]interface{}{"annex": "III", "receitaBruta12m": 5000000},
	})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = perform(t, handler, http.MethodPost, "/api/simulations/SIMPLES_DAS", map[string]interface{}{
		"input": map[string]interface{}{"annex": "VI", "receitaBruta12m": 1000},
	})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422 for unknown annex, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestHandleSimulateUnknownKind(t *testing.T) {
	handler := newTestHandler(t, 0)

	rr := perform(t, handler, http.MethodPost, "/api/simulations/INSS", map[string]interface{}{})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}

	var resp map[string]string
	decodeJSON(t, rr, &resp)
	if resp["error"] == "" {
		t.Error("expected error message")
	}
}

func TestHandleSimulateInvalidTenant(t *testing.T) {
	handler := newTestHandler(t, 0)

	rr := perform(t, handler, http.MethodPost, "/api/simulations/FERIAS", map[string]interface{}{
		"tenant": "a:b",
		"input":  map[string]interface{}{"salarioBase": 3000},
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}

	rr = perform(t, handler, http.MethodGet, "/api/rulesets/FERIAS?tenant=x%20y", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestHandleSimulateMethodNotAllowed(t *testing.T) {
	handler := newTestHandler(t, 0)

	rr := perform(t, handler, http.MethodGet, "/api/simulations/FERIAS", nil)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status 405, got %d", rr.Code)
	}
}

func TestHandleSimulateInvalidBody(t *testing.T) {
	handler := newTestHandler(t, 0)

	req := httptest.NewRequest(http.MethodPost, "/api/simulations/FERIAS", strings.NewReader("{not json"))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestHandleSimulateBodyTooLarge(t *testing.T) {
	handler := newTestHandler(t, 64)

	rr := perform(t, handler, http.MethodPost, "/api/simulations/FERIAS", map[string]interface{}{
		"input": map[string]interface{}{"salarioBase": 3000, "observacao": strings.Repeat("x", 256)},
	})
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected status 413, got %d", rr.Code)
	}
}

func TestHandleSimulateYAMLBody(t *testing.T) {
	handler := newTestHandler(t, 0)

	body := "input:\n  salarioBase: 3000\n  diasAbono: 5\n"
	req := httptest.NewRequest(http.MethodPost, "/api/simulations/FERIAS", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/yaml")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp simulationResponse
	decodeJSON(t, rr, &resp)
	if math.Abs(resp.Result.Total-4500) > 1e-6 {
		t.Errorf("expected total 4500, got %.2f", resp.Result.Total)
	}
}

func TestPublishActivateAndSimulate(t *testing.T) {
	handler := newTestHandler(t, 0)

	rr := perform(t, handler, http.MethodPost, "/api/rulesets/FERIAS", map[string]interface{}{
		"payload": map[string]interface{}{"tercoConstitucional": false, "limiteDiasAbono": 10},
		"author":  "ana",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var created ruleset.RuleSet
	decodeJSON(t, rr, &created)
	if created.Version != 1 || !created.IsActive || created.TenantID != "escritorio-1" {
		t.Fatalf("unexpected created rule set %+v", created)
	}

	rr = perform(t, handler, http.MethodPost, "/api/simulations/FERIAS", map[string]interface{}{
		"input": map[string]interface{}{"salarioBase": 3000},
	})
	var resp simulationResponse
	decodeJSON(t, rr, &resp)
	if resp.IsFallback || resp.Version != 1 || math.Abs(resp.Result.Total-3000) > 1e-6 {
		t.Fatalf("expected stored configuration to run, got %+v", resp)
	}

	// A draft does not replace the active version.
	rr = perform(t, handler, http.MethodPost, "/api/rulesets/FERIAS?activate=false", map[string]interface{}{
		"payload": map[string]interface{}{"tercoConstitucional": true, "limiteDiasAbono": 10},
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = perform(t, handler, http.MethodGet, "/api/rulesets/FERIAS", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var history []ruleset.RuleSet
	decodeJSON(t, rr, &history)
	if len(history) != 2 || history[0].Version != 2 || history[0].IsActive {
		t.Fatalf("unexpected history %+v", history)
	}

	rr = perform(t, handler, http.MethodPost, "/api/rulesets/FERIAS/versions/2/activate", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = perform(t, handler, http.MethodPost, "/api/simulations/FERIAS", map[string]interface{}{
		"input": map[string]interface{}{"salarioBase": 3000},
	})
	decodeJSON(t, rr, &resp)
	if resp.Version != 2 || math.Abs(resp.Result.Total-4000) > 1e-6 {
		t.Fatalf("expected version 2 to run, got %+v", resp)
	}
}

func TestPublishInvalidPayload(t *testing.T) {
	handler := newTestHandler(t, 0)

	rr := perform(t, handler, http.MethodPost, "/api/rulesets/HONORARIOS", map[string]interface{}{
		"payload": map[string]interface{}{"baseMin": -1, "descontoSistemaFinanceiro": 2},
	})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp validationResponse
	decodeJSON(t, rr, &resp)
	if len(resp.Violations) < 2 {
		t.Errorf("expected every violation to be listed, got %+v", resp.Violations)
	}

	rr = perform(t, handler, http.MethodGet, "/api/rulesets/HONORARIOS", nil)
	var history []ruleset.RuleSet
	decodeJSON(t, rr, &history)
	if len(history) != 0 {
		t.Errorf("invalid payload must not be stored, got %d versions", len(history))
	}
}

func TestHandleValidate(t *testing.T) {
	handler := newTestHandler(t, 0)

	rr := perform(t, handler, http.MethodPost, "/api/rulesets/FATOR_R/validate", map[string]interface{}{
		"threshold": 0.28, "annex_if_ge": "III", "annex_if_lt": "V",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var ok struct {
		OK bool `json:"ok"`
	}
	decodeJSON(t, rr, &ok)
	if !ok.OK {
		t.Errorf("expected payload to validate: %s", rr.Body.String())
	}

	rr = perform(t, handler, http.MethodPost, "/api/rulesets/FATOR_R/validate", map[string]interface{}{
		"threshold": 1.5, "annex_if_ge": "III", "annex_if_lt": "V",
	})
	decodeJSON(t, rr, &ok)
	if ok.OK {
		t.Error("expected threshold above 1 to be rejected")
	}
}

func TestHandleActivateUnknownVersion(t *testing.T) {
	handler := newTestHandler(t, 0)

	rr := perform(t, handler, http.MethodPost, "/api/rulesets/FATOR_R/versions/7/activate?tenant=outro", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}

	rr = perform(t, handler, http.MethodPost, "/api/rulesets/FATOR_R/versions/abc/activate", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestHandleCompare(t *testing.T) {
	handler := newTestHandler(t, 0)

	rr := perform(t, handler, http.MethodPost, "/api/simulations/FATOR_R/compare", map[string]interface{}{
		"input": map[string]interface{}{"folha12m": 84000, "receita12m": 300000, "receitaMes": 25000},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		Selected struct {
			Annex string `json:"annex"`
		} `json:"selected"`
		FatorRFallback bool `json:"fatorRFallback"`
	}
	decodeJSON(t, rr, &resp)
	if resp.Selected.Annex != "III" {
		t.Errorf("expected annex III, got %s", resp.Selected.Annex)
	}
	if !resp.FatorRFallback {
		t.Error("expected default Fator R configuration")
	}
}

func TestHandleDefaultsAndSchema(t *testing.T) {
	handler := newTestHandler(t, 0)

	rr := perform(t, handler, http.MethodGet, "/api/defaults/rescisao", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var resp struct {
		Key     string                 `json:"key"`
		Payload map[string]interface{} `json:"payload"`
	}
	decodeJSON(t, rr, &resp)
	if resp.Key != "RESCISAO" || resp.Payload["multaFgts"] != 0.4 {
		t.Errorf("unexpected defaults response %+v", resp)
	}

	rr = perform(t, handler, http.MethodGet, "/api/schemas/RESCISAO", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "multaFgts") {
		t.Error("expected schema document to describe multaFgts")
	}

	rr = perform(t, handler, http.MethodGet, "/api/defaults/INSS", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestHandleVersionAndMetrics(t *testing.T) {
	handler := newTestHandler(t, constants.DefaultMaxBodySizeBytes)

	rr := perform(t, handler, http.MethodGet, "/api/version", nil)
	var version map[string]string
	decodeJSON(t, rr, &version)
	if version["version"] != "1.2.3" {
		t.Errorf("expected version 1.2.3, got %s", version["version"])
	}

	rr = perform(t, handler, http.MethodGet, "/health", nil)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "healthy") {
		t.Errorf("unexpected health response %d: %s", rr.Code, rr.Body.String())
	}

	perform(t, handler, http.MethodPost, "/api/simulations/FERIAS", map[string]interface{}{"input": map[string]interface{}{}})

	rr = perform(t, handler, http.MethodGet, "/metrics", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "maxtabil_calculations_total") {
		t.Error("expected calculation counter in metrics output")
	}
}
