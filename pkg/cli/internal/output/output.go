// Package output provides common output formatting utilities.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// JSON writes indented JSON to w.
func JSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Table creates an aligned table writer.
// Remember to call Flush() when done writing.
func Table(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// Warn prints a warning message to w.
func Warn(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "Warning: "+format+"\n", args...)
}

// Printer formats numbers and labels for a locale. Not safe for
// concurrent use.
type Printer struct {
	p      *message.Printer
	title  cases.Caser
	symbol string
}

// NewPrinter creates a Printer. symbol prefixes money amounts.
func NewPrinter(tag language.Tag, symbol string) *Printer {
	return &Printer{
		p:      message.NewPrinter(tag),
		title:  cases.Title(tag, cases.NoLower),
		symbol: symbol,
	}
}

// Money renders an amount with two decimals and digit grouping.
func (p *Printer) Money(v float64) string {
	return p.symbol + p.p.Sprintf("%.2f", v)
}

// Count renders an integer with digit grouping.
func (p *Printer) Count(n int64) string {
	return p.p.Sprintf("%d", n)
}

// Title upper-cases the first letter of each word, keeping the rest.
func (p *Printer) Title(s string) string {
	return p.title.String(s)
}
