package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/leadtunic/maxtabil-app-sub001/internal/engine/simples"
	"github.com/leadtunic/maxtabil-app-sub001/internal/ruleset"
	"github.com/leadtunic/maxtabil-app-sub001/internal/ruleset/admin"
	"github.com/leadtunic/maxtabil-app-sub001/internal/ruleset/defaults"
	"github.com/leadtunic/maxtabil-app-sub001/internal/ruleset/schema"
	"github.com/leadtunic/maxtabil-app-sub001/internal/simulator"
	"github.com/leadtunic/maxtabil-app-sub001/internal/store"
	"github.com/leadtunic/maxtabil-app-sub001/pkg/constants"
	"github.com/leadtunic/maxtabil-app-sub001/pkg/mathutil"
	"github.com/leadtunic/maxtabil-app-sub001/pkg/validation"
)

// Dependencies are the services the API exposes.
type Dependencies struct {
	Simulator *simulator.Simulator
	Admin     *admin.Service
	// Gatherer backs /metrics. Nil uses the default registry.
	Gatherer prometheus.Gatherer
	// Tenant is used when a request does not name one.
	Tenant string
}

type handler struct {
	logger      *zap.Logger
	maxBodySize int64
	version     string
	simulator   *simulator.Simulator
	admin       *admin.Service
	tenant      string
}

// NewHandler constructs the HTTP handler that serves the simulation and
// rule set API.
func NewHandler(logger *zap.Logger, deps Dependencies, maxBodySize int64, version string) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	if maxBodySize <= 0 {
		maxBodySize = constants.DefaultMaxBodySizeBytes
	}

	trimmedVersion := strings.TrimSpace(version)
	if trimmedVersion == "" {
		trimmedVersion = "dev"
	}

	tenant := strings.TrimSpace(deps.Tenant)
	if tenant == "" {
		tenant = constants.DefaultTenant
	}

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	h := &handler{
		logger:      logger,
		maxBodySize: maxBodySize,
		version:     trimmedVersion,
		simulator:   deps.Simulator,
		admin:       deps.Admin,
		tenant:      tenant,
	}

	r := mux.NewRouter()
	r.Use(h.logRequests)

	api := r.PathPrefix("/api").Subrouter()

	// Simulations
	api.HandleFunc("/simulations/FATOR_R/compare", h.handleCompare).Methods(http.MethodPost)
	api.HandleFunc("/simulations/{kind}", h.handleSimulate).Methods(http.MethodPost)

	// Rule set administration
	api.HandleFunc("/rulesets/{key}/validate", h.handleValidate).Methods(http.MethodPost)
	api.HandleFunc("/rulesets/{key}/versions/{version}/activate", h.handleActivate).Methods(http.MethodPost)
	api.HandleFunc("/rulesets/{key}", h.handlePublish).Methods(http.MethodPost)
	api.HandleFunc("/rulesets/{key}", h.handleHistory).Methods(http.MethodGet)

	// Catalog and schemas
	api.HandleFunc("/defaults/{key}", h.handleDefaults).Methods(http.MethodGet)
	api.HandleFunc("/schemas/{key}", h.handleSchema).Methods(http.MethodGet)

	api.HandleFunc("/version", h.handleVersion).Methods(http.MethodGet)

	r.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	return r
}

type simulationRequest struct {
	Tenant string                 `json:"tenant" yaml:"tenant"`
	Input  map[string]interface{} `json:"input" yaml:"input"`
}

type publishRequest struct {
	Tenant   string                 `json:"tenant" yaml:"tenant"`
	Payload  map[string]interface{} `json:"payload" yaml:"payload"`
	Author   string                 `json:"author" yaml:"author"`
	Activate *bool                  `json:"activate" yaml:"activate"`
}

type validationResponse struct {
	Error      string             `json:"error"`
	Violations []schema.Violation `json:"violations"`
}

func (h *handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		h.logger.Debug("request served",
			zap.String("op", "server.logRequests"),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (h *handler) handleSimulate(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleSimulate"

	kind, err := ruleset.ParseKey(mux.Vars(r)["kind"])
	if err != nil {
		h.respondErrorWithOp(w, http.StatusNotFound, err.Error(), op)
		return
	}

	var req simulationRequest
	if !h.decodeBody(w, r, &req, op) {
		return
	}

	tenant, ok := h.tenantOr(w, req.Tenant, op)
	if !ok {
		return
	}

	sim, err := h.simulator.Run(r.Context(), kind, tenant, req.Input)
	if err != nil {
		h.respondErrorWithOp(w, simulationStatus(err), err.Error(), op)
		return
	}
	h.writeJSON(w, http.StatusOK, sim)
}

func (h *handler) handleCompare(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleCompare"

	var req simulationRequest
	if !h.decodeBody(w, r, &req, op) {
		return
	}

	tenant, ok := h.tenantOr(w, req.Tenant, op)
	if !ok {
		return
	}

	cmp, err := h.simulator.CompareFatorR(r.Context(), tenant, req.Input)
	if err != nil {
		h.respondErrorWithOp(w, simulationStatus(err), err.Error(), op)
		return
	}
	h.writeJSON(w, http.StatusOK, cmp)
}

func (h *handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleValidate"

	key, ok := h.routeKey(w, r, op)
	if !ok {
		return
	}

	var payload map[string]interface{}
	if !h.decodeBody(w, r, &payload, op) {
		return
	}

	h.writeJSON(w, http.StatusOK, h.admin.Validate(key, payload))
}

func (h *handler) handlePublish(w http.ResponseWriter, r *http.Request) {
	const op = "server.handlePublish"

	key, ok := h.routeKey(w, r, op)
	if !ok {
		return
	}

	var req publishRequest
	if !h.decodeBody(w, r, &req, op) {
		return
	}
	tenant, ok := h.tenantOr(w, req.Tenant, op)
	if !ok {
		return
	}
	activate := boolQuery(r, "activate", true)
	if req.Activate != nil {
		activate = *req.Activate
	}

	rs, err := h.admin.Publish(r.Context(), tenant, key, req.Payload, req.Author, activate)
	if err != nil {
		var invalid *schema.ValidationError
		if errors.As(err, &invalid) {
			h.logger.Info("rejected invalid rule set",
				zap.String("op", op),
				zap.String("key", string(key)),
				zap.Int("violations", len(invalid.Violations)),
			)
			h.writeJSON(w, http.StatusUnprocessableEntity, validationResponse{
				Error:      invalid.Error(),
				Violations: invalid.Violations,
			})
			return
		}
		h.respondErrorWithOp(w, http.StatusInternalServerError, err.Error(), op)
		return
	}
	h.writeJSON(w, http.StatusCreated, rs)
}

func (h *handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleHistory"

	key, ok := h.routeKey(w, r, op)
	if !ok {
		return
	}

	tenant, ok := h.tenantOr(w, r.URL.Query().Get("tenant"), op)
	if !ok {
		return
	}

	history, err := h.admin.History(r.Context(), tenant, key)
	if err != nil {
		h.respondErrorWithOp(w, http.StatusInternalServerError, err.Error(), op)
		return
	}
	if history == nil {
		history = []*ruleset.RuleSet{}
	}
	h.writeJSON(w, http.StatusOK, history)
}

func (h *handler) handleActivate(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleActivate"

	key, ok := h.routeKey(w, r, op)
	if !ok {
		return
	}

	version, err := strconv.Atoi(mux.Vars(r)["version"])
	if err != nil || version <= 0 {
		h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("invalid version %q", mux.Vars(r)["version"]), op)
		return
	}

	tenant, ok := h.tenantOr(w, r.URL.Query().Get("tenant"), op)
	if !ok {
		return
	}

	rs, err := h.admin.Activate(r.Context(), tenant, key, version)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, store.ErrNotFound) {
			status = http.StatusNotFound
		}
		h.respondErrorWithOp(w, status, err.Error(), op)
		return
	}
	h.writeJSON(w, http.StatusOK, rs)
}

func (h *handler) handleDefaults(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleDefaults"

	key, ok := h.routeKey(w, r, op)
	if !ok {
		return
	}

	payload, err := defaults.Default(key)
	if err != nil {
		h.respondErrorWithOp(w, http.StatusInternalServerError, err.Error(), op)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"key":     key,
		"version": defaults.Version,
		"payload": payload,
	})
}

func (h *handler) handleSchema(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleSchema"

	key, ok := h.routeKey(w, r, op)
	if !ok {
		return
	}

	doc, err := schema.Source(key)
	if err != nil {
		h.respondErrorWithOp(w, http.StatusInternalServerError, err.Error(), op)
		return
	}
	w.Header().Set("Content-Type", "application/schema+json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(doc); err != nil {
		h.logger.Error("failed to write schema", zap.String("op", op), zap.Error(err))
	}
}

func (h *handler) handleVersion(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"version": h.version,
	})
}

func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "maxtabil",
	})
}

func (h *handler) routeKey(w http.ResponseWriter, r *http.Request, op string) (ruleset.Key, bool) {
	key, err := ruleset.ParseKey(mux.Vars(r)["key"])
	if err != nil {
		h.respondErrorWithOp(w, http.StatusNotFound, err.Error(), op)
		return "", false
	}
	return key, true
}

// tenantOr returns the requested tenant, or the configured one when the
// request names none. Malformed ids are rejected with 400.
func (h *handler) tenantOr(w http.ResponseWriter, tenant string, op string) (string, bool) {
	trimmed := strings.TrimSpace(tenant)
	if trimmed == "" {
		return h.tenant, true
	}
	if err := validation.ValidateTenant(trimmed); err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, err.Error(), op)
		return "", false
	}
	return trimmed, true
}

// decodeBody reads a JSON body, or a YAML one when the Content-Type says so,
// into dst. It writes the error response itself and reports whether the
// handler may continue.
func (h *handler) decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}, op string) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	data, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.respondErrorWithOp(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request body exceeds limit of %d bytes", h.maxBodySize), op)
			return false
		}
		h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("failed to read request: %v", err), op)
		return false
	}

	if strings.Contains(r.Header.Get("Content-Type"), "yaml") {
		decoded, err := decodeYAMLToMap(data)
		if err != nil {
			h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("error reading request data, %v", err), op)
			return false
		}
		if data, err = json.Marshal(decoded); err != nil {
			h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("failed to encode request: %v", err), op)
			return false
		}
	}

	if len(bytes.TrimSpace(data)) == 0 {
		data = []byte("{}")
	}
	if err := json.Unmarshal(data, dst); err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("failed to decode request: %v", err), op)
		return false
	}
	return true
}

func decodeYAMLToMap(data []byte) (map[string]interface{}, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return make(map[string]interface{}), nil
	}

	var result map[string]interface{}
	if err := yaml.Unmarshal(trimmed, &result); err != nil {
		return nil, err
	}
	if result == nil {
		result = make(map[string]interface{})
	}
	return result, nil
}

// simulationStatus maps engine failures caused by the tenant's configuration
// or the form input to 422; anything else is a server error.
func simulationStatus(err error) int {
	switch {
	case errors.Is(err, simples.ErrBracketNotFound), errors.Is(err, simples.ErrUnknownAnnex):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ruleset.ErrUnknownKey):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func (h *handler) respondErrorWithOp(w http.ResponseWriter, status int, msg string, op string) {
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("op", op),
			zap.Int("status", status),
			zap.String("error", msg),
		)
	} else {
		h.logger.Warn("request rejected",
			zap.String("op", op),
			zap.Int("status", status),
			zap.String("error", msg),
		)
	}

	h.writeJSON(w, status, map[string]string{"error": msg})
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", zap.String("op", "server.writeJSON"), zap.Error(err))
	}
}

// boolQuery reads a boolean query parameter such as ?activate=false.
func boolQuery(r *http.Request, name string, fallback bool) bool {
	raw, ok := r.URL.Query()[name]
	if !ok || len(raw) == 0 {
		return fallback
	}
	return mathutil.CoerceBool(raw[0])
}
