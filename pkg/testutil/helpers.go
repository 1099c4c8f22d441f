// Package testutil provides common utility functions for testing.
package testutil

import (
	"strings"

	"github.com/leadtunic/maxtabil-app-sub001/internal/engine"
	"github.com/leadtunic/maxtabil-app-sub001/pkg/constants"
	"github.com/leadtunic/maxtabil-app-sub001/pkg/mathutil"
)

// FindItem finds the first breakdown item whose label starts with prefix.
// Returns a pointer to the item if found, nil otherwise.
func FindItem(result engine.Result, prefix string) *engine.Item {
	for i := range result.Breakdown {
		if strings.HasPrefix(result.Breakdown[i].Label, prefix) {
			return &result.Breakdown[i]
		}
	}
	return nil
}

// Labels returns the breakdown labels in order.
func Labels(result engine.Result) []string {
	labels := make([]string, len(result.Breakdown))
	for i, item := range result.Breakdown {
		labels[i] = item.Label
	}
	return labels
}

// CurrencyEqual reports whether two amounts agree to the cent.
func CurrencyEqual(a, b float64) bool {
	return mathutil.WithinTolerance(a, b, constants.CurrencyTolerance)
}
