package engine

import (
	"fmt"
	"strings"

	"github.com/leadtunic/maxtabil-app-sub001/pkg/mathutil"
)

// Fields reads loosely typed values out of decoded JSON or YAML maps. Missing
// or malformed numbers read as 0, so a form submitted with blanks never
// produces NaN downstream.
type Fields map[string]interface{}

// Number returns the named value as a finite float64.
func (f Fields) Number(name string) float64 {
	return mathutil.Coerce(f[name])
}

// Bool returns the named value as a boolean.
func (f Fields) Bool(name string) bool {
	return mathutil.CoerceBool(f[name])
}

// String returns the named value trimmed, or "" when absent.
func (f Fields) String(name string) string {
	switch v := f[name].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// Map returns a nested object, or nil when absent or of another type.
func (f Fields) Map(name string) Fields {
	switch v := f[name].(type) {
	case map[string]interface{}:
		return Fields(v)
	case Fields:
		return v
	case map[interface{}]interface{}:
		out := make(Fields, len(v))
		for k, val := range v {
			out[fmt.Sprint(k)] = val
		}
		return out
	}
	return nil
}

// List returns a nested array, or nil when absent or of another type.
func (f Fields) List(name string) []interface{} {
	if v, ok := f[name].([]interface{}); ok {
		return v
	}
	return nil
}

// AsFields converts an element of a decoded array to Fields.
func AsFields(v interface{}) Fields {
	return Fields{"v": v}.Map("v")
}
