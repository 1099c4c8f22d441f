// Package schema validates rule set payloads against the per-key JSON
// Schemas embedded in the binary. Schemas are compiled once at package init.
package schema

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/leadtunic/maxtabil-app-sub001/internal/engine/simples"
	"github.com/leadtunic/maxtabil-app-sub001/internal/ruleset"
)

//go:embed schemas/*.json
var files embed.FS

const baseURL = "https://maxtabil.local/schemas/"

var compiled = mustCompile()

func mustCompile() map[ruleset.Key]*jsonschema.Schema {
	out := make(map[ruleset.Key]*jsonschema.Schema, len(ruleset.Keys()))
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	for _, key := range ruleset.Keys() {
		data, err := files.ReadFile("schemas/" + string(key) + ".json")
		if err != nil {
			panic(fmt.Sprintf("schema for %s is not embedded: %v", key, err))
		}
		url := baseURL + string(key) + ".json"
		if err := c.AddResource(url, bytes.NewReader(data)); err != nil {
			panic(fmt.Sprintf("schema for %s failed to load: %v", key, err))
		}
		schema, err := c.Compile(url)
		if err != nil {
			panic(fmt.Sprintf("schema for %s failed to compile: %v", key, err))
		}
		out[key] = schema
	}
	return out
}

// Violation is one rule broken by a payload. Field is a dotted path into the
// payload ("tables.I.0.max"); it is empty when the problem is at the root.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	if v.Field == "" {
		return v.Message
	}
	return v.Field + ": " + v.Message
}

// Result is the outcome of Validate.
type Result struct {
	OK         bool        `json:"ok"`
	Violations []Violation `json:"violations,omitempty"`
}

// Err returns nil when the payload is valid, and a *ValidationError otherwise.
func (r Result) Err(key ruleset.Key) error {
	if r.OK {
		return nil
	}
	return &ValidationError{Key: key, Violations: r.Violations}
}

// ValidationError carries every violation of a rejected payload.
type ValidationError struct {
	Key        ruleset.Key
	Violations []Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return fmt.Sprintf("invalid %s payload: %s", e.Key, strings.Join(parts, "; "))
}

// Source returns the raw JSON Schema document for key.
func Source(key ruleset.Key) ([]byte, error) {
	if !key.Valid() {
		return nil, fmt.Errorf("%w: %q", ruleset.ErrUnknownKey, key)
	}
	return files.ReadFile("schemas/" + string(key) + ".json")
}

// Validate checks payload against the schema registered for key. It never
// fails: unknown keys and unencodable payloads are reported as violations.
// Every SIMPLES_DAS table whose bands decoded is also checked for coverage,
// so one answer lists both structural and coverage problems.
func Validate(key ruleset.Key, payload ruleset.Payload) Result {
	schema, ok := compiled[key]
	if !ok {
		return invalid(Violation{Field: "key", Message: fmt.Sprintf("unknown simulator key %q", key)})
	}
	if payload == nil {
		return invalid(Violation{Message: "payload is required"})
	}

	normalized, err := payload.Clone()
	if err != nil {
		return invalid(Violation{Message: err.Error()})
	}

	var violations []Violation
	if err := schema.Validate(map[string]interface{}(normalized)); err != nil {
		var verr *jsonschema.ValidationError
		if !errors.As(err, &verr) {
			return invalid(Violation{Message: err.Error()})
		}
		violations = leaves(verr)
	}

	if key == ruleset.SimplesDAS {
		violations = append(violations, coverage(normalized)...)
	}
	if len(violations) > 0 {
		return invalid(violations...)
	}
	return Result{OK: true}
}

func invalid(violations ...Violation) Result {
	return Result{OK: false, Violations: violations}
}

// leaves flattens the error tree to its most specific causes, sorted by field.
// A missing "required" list becomes one violation per absent property.
func leaves(root *jsonschema.ValidationError) []Violation {
	var out []Violation
	seen := make(map[Violation]bool)
	add := func(v Violation) {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			parent := fieldPath(e.InstanceLocation)
			if names, ok := missingProperties(e); ok {
				for _, name := range names {
					add(Violation{Field: joinField(parent, name), Message: "is required"})
				}
				return
			}
			add(Violation{Field: parent, Message: e.Message})
			return
		}
		for _, cause := range e.Causes {
			walk(cause)
		}
	}
	walk(root)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out
}

const missingPrefix = "missing properties: "

// missingProperties extracts the names of a "required" failure, which the
// validator reports as "missing properties: 'a', 'b'".
func missingProperties(e *jsonschema.ValidationError) ([]string, bool) {
	if !strings.HasSuffix(e.KeywordLocation, "/required") || !strings.HasPrefix(e.Message, missingPrefix) {
		return nil, false
	}
	var names []string
	for _, quoted := range strings.Split(strings.TrimPrefix(e.Message, missingPrefix), ", ") {
		name := strings.TrimSuffix(strings.TrimPrefix(quoted, "'"), "'")
		name = strings.ReplaceAll(name, `\'`, "'")
		if name != "" {
			names = append(names, name)
		}
	}
	return names, len(names) > 0
}

func joinField(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "." + name
}

// fieldPath turns a JSON pointer ("/tables/I/0") into "tables.I.0".
func fieldPath(pointer string) string {
	pointer = strings.TrimPrefix(pointer, "/")
	if pointer == "" {
		return ""
	}
	parts := strings.Split(pointer, "/")
	for i, p := range parts {
		p = strings.ReplaceAll(p, "~1", "/")
		parts[i] = strings.ReplaceAll(p, "~0", "~")
	}
	return strings.Join(parts, ".")
}

// coverage runs the band checks on each annex table that is a non-empty
// list of bands with numeric bounds. Missing or malformed tables are left
// to the structural violations.
func coverage(payload ruleset.Payload) []Violation {
	tables, _ := payload["tables"].(map[string]interface{})
	var out []Violation
	for _, annex := range simples.Annexes() {
		rows, ok := tables[string(annex)].([]interface{})
		if !ok || !decodableBands(rows) {
			continue
		}
		table := simples.Decode(ruleset.Payload{"tables": map[string]interface{}{string(annex): rows}}).Tables[annex]
		for _, p := range table.CoverageProblems() {
			field := fmt.Sprintf("tables.%s", annex)
			if p.Band >= 0 {
				field = fmt.Sprintf("%s.%d", field, p.Band)
			}
			out = append(out, Violation{Field: field, Message: p.Message})
		}
	}
	return out
}

func decodableBands(rows []interface{}) bool {
	if len(rows) == 0 {
		return false
	}
	for _, row := range rows {
		band, ok := row.(map[string]interface{})
		if !ok {
			return false
		}
		if _, ok := band["min"].(float64); !ok {
			return false
		}
		if _, ok := band["max"].(float64); !ok {
			return false
		}
	}
	return true
}
