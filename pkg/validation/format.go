// Package validation provides common validation utilities.
package validation

import (
	"fmt"
	"regexp"

	"github.com/leadtunic/maxtabil-app-sub001/pkg/constants"
)

// ValidateOutputFormat checks if the output format is one of the supported formats.
func ValidateOutputFormat(format string) error {
	switch format {
	case constants.OutputFormatPretty, constants.OutputFormatCSV, constants.OutputFormatJSON:
		return nil
	}
	return fmt.Errorf("expected output format of %s, %s or %s, got %s",
		constants.OutputFormatPretty, constants.OutputFormatCSV, constants.OutputFormatJSON, format)
}

var tenantPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,63}$`)

// ValidateTenant checks that a tenant id is safe to use in storage filters
// and cache keys: 1 to 64 letters, digits, '.', '_' or '-', not starting
// with a separator.
func ValidateTenant(tenant string) error {
	if !tenantPattern.MatchString(tenant) {
		return fmt.Errorf("invalid tenant %q: expected 1-64 letters, digits, '.', '_' or '-'", tenant)
	}
	return nil
}
