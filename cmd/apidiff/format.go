package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/pflag"

	"github.com/jward/apicheck"
	"github.com/jward/apicheck/internal/report"
)

// validFormats lists accepted values for --format.
var validFormats = []string{"text", "json"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}

// formatValue is a pflag.Value that rejects unknown formats while the
// command line is parsed.
type formatValue string

var _ pflag.Value = (*formatValue)(nil)

func (f *formatValue) String() string { return string(*f) }

func (f *formatValue) Set(s string) error {
	if err := validateFormat(s); err != nil {
		return err
	}
	*f = formatValue(s)
	return nil
}

func (f *formatValue) Type() string { return "format" }

// writeReport writes r in the selected format.
func writeReport(w io.Writer, format string, r *apicheck.Report, verbose bool) error {
	if format == "json" {
		return report.WriteJSON(w, r)
	}
	return report.WriteText(w, r, verbose)
}
