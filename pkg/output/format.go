// Package output provides utilities for formatting and displaying simulation results.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/leadtunic/maxtabil-app-sub001/internal/engine"
	"github.com/leadtunic/maxtabil-app-sub001/pkg/constants"
	"github.com/leadtunic/maxtabil-app-sub001/pkg/format"
)

// Report is what the formatters render: one simulation result plus the
// kind-specific findings.
type Report struct {
	Title      string                 `json:"title"`
	Result     engine.Result          `json:"result"`
	Unit       engine.Unit            `json:"unit,omitempty"` // empty reads as currency
	IsFallback bool                   `json:"isFallback"`
	Version    int                    `json:"version,omitempty"`
	Extra      map[string]interface{} `json:"extra,omitempty"`
}

// ratioKeys are extra fields rendered as percentages.
var ratioKeys = map[string]bool{
	"effectiveRate": true,
	"ratio":         true,
	"threshold":     true,
}

// Write renders report in the named format.
func Write(w io.Writer, outputFormat string, report Report) error {
	switch outputFormat {
	case constants.OutputFormatPretty:
		PrettyFormat(w, report)
	case constants.OutputFormatCSV:
		CsvFormat(w, report)
	case constants.OutputFormatJSON:
		return JSONFormat(w, report)
	default:
		return fmt.Errorf("unsupported output format %q", outputFormat)
	}
	return nil
}

// PrettyFormat outputs a human-readable rather than machine-readable table.
func PrettyFormat(w io.Writer, report Report) {
	p := message.NewPrinter(language.BrazilianPortuguese)

	source := "configuração padrão"
	if !report.IsFallback {
		source = fmt.Sprintf("versão %d", report.Version)
	}
	fmt.Fprintf(w, "--- %s (%s) ---\n", report.Title, source)
	fmt.Fprintf(w, "  | Item                                     | Valor\n")
	fmt.Fprintf(w, "_ | ________________________________________ | _______________\n")
	for _, item := range report.Result.Breakdown {
		fmt.Fprintf(w, "%s | %-40s | %15s\n", item.Sign, item.Label, report.amountText(item.Amount))
		if item.FormulaText != "" {
			fmt.Fprintf(w, "  |   %-38s |\n", item.FormulaText)
		}
	}
	fmt.Fprintf(w, "= | %-40s | %15s\n", "Total", report.amountText(report.Result.Total))

	if len(report.Extra) > 0 {
		fmt.Fprintf(w, "\n")
		for _, key := range sortedKeys(report.Extra) {
			_, _ = p.Fprintf(w, "%s: %s\n", key, extraValue(p, key, report.Extra[key]))
		}
	}
}

// CsvFormat outputs in comma-separated value format.
func CsvFormat(w io.Writer, report Report) {
	fmt.Fprintf(w, `"sign","label","base","formula","amount"`)
	fmt.Fprintf(w, "\n")
	for _, item := range report.Result.Breakdown {
		fmt.Fprintf(w, `"%s","%s","%.2f","%s","%s"`,
			item.Sign, quote(item.Label), item.Base, quote(item.FormulaText), report.amountField(item.Amount))
		fmt.Fprintf(w, "\n")
	}
	fmt.Fprintf(w, `"=","Total","","","%s"`, report.amountField(report.Result.Total))
	fmt.Fprintf(w, "\n")
}

// JSONFormat outputs the report as indented JSON.
func JSONFormat(w io.Writer, report Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}

// amountText renders an amount for people: reais, or a percentage for ratios.
func (r Report) amountText(v float64) string {
	if r.Unit == engine.UnitRatio {
		return format.Percent(v, 2)
	}
	return format.Currency(v)
}

// amountField renders an amount for machines. Ratios keep every digit.
func (r Report) amountField(v float64) string {
	if r.Unit == engine.UnitRatio {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func extraValue(p *message.Printer, key string, value interface{}) string {
	switch v := value.(type) {
	case float64:
		if ratioKeys[key] {
			return format.Percent(v, 2)
		}
		return format.Currency(v)
	case fmt.Stringer:
		return v.String()
	default:
		return p.Sprint(v)
	}
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func quote(s string) string {
	return strings.ReplaceAll(s, `"`, `""`)
}
