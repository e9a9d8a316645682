// Package report renders a diff report and maps it to a process exit code.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/jward/apicheck/internal/diff"
)

// Exit codes of the diff tool.
const (
	ExitClean   = 0
	ExitChanged = 1
	ExitError   = 2
)

// ExitCode returns ExitChanged when the report has any change.
func ExitCode(r *diff.Report) int {
	if r.HasChanges() {
		return ExitChanged
	}
	return ExitClean
}

// WriteText writes the summary block. With verbose set, one line per
// recorded change comes first.
func WriteText(w io.Writer, r *diff.Report, verbose bool) error {
	if verbose && len(r.Changes) > 0 {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "CHANGE\tSCOPE\tNAME\tKEY")
		for _, c := range r.Changes {
			name := c.Item
			if c.Field != "" {
				name = c.Field
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.Kind, c.Module, name, c.Key)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "Summary:")
	fmt.Fprintf(w, "    Modules added: %d\n", r.ModulesAdded)
	fmt.Fprintf(w, "    Modules removed: %d\n", r.ModulesRemoved)
	fmt.Fprintf(w, "    Modules changed: %d\n", r.ModulesChanged)
	fmt.Fprintf(w, "    Items added: %d\n", r.ItemsAdded)
	fmt.Fprintf(w, "    Items removed: %d\n", r.ItemsRemoved)
	_, err := fmt.Fprintf(w, "    Items changed: %d\n", r.ItemsChanged)
	return err
}

// jsonReport is the --format json shape: the counters, has_changes and
// the ordered change list.
type jsonReport struct {
	*diff.Report
	HasChanges bool `json:"has_changes"`
}

// WriteJSON writes the report as indented JSON.
func WriteJSON(w io.Writer, r *diff.Report) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(jsonReport{Report: r, HasChanges: r.HasChanges()}); err != nil {
		return fmt.Errorf("report: encode: %w", err)
	}
	return nil
}
