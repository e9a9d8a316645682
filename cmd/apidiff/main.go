package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jward/apicheck"
	"github.com/jward/apicheck/internal/diff"
	"github.com/jward/apicheck/internal/logging"
	"github.com/jward/apicheck/internal/policy"
	"github.com/jward/apicheck/internal/report"
	"github.com/jward/apicheck/scripts"
)

var (
	flagVerbose int
	flagStrip   int
	flagFormat  = formatValue("text")
	flagPolicy  string
	flagDB      string
)

// exitCode is set by run when the comparison itself succeeded.
var exitCode = report.ExitClean

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(report.ExitError)
	}
	os.Exit(exitCode)
}

var rootCmd = &cobra.Command{
	Use:   "apidiff FILE1 FILE2",
	Short: "Compare two apicheck documents",
	Long: "Matches the modules and items of two apicheck documents, prints how many were " +
		"added, removed or changed, and exits 1 when the public API changed.",
	SilenceErrors: true,
	SilenceUsage:  true,
	Args:          cobra.ExactArgs(2),
	RunE:          run,
}

func init() {
	f := rootCmd.Flags()
	f.CountVarP(&flagVerbose, "verbose", "v", "list every change and log more detail (repeatable)")
	f.IntVarP(&flagStrip, "strip", "p", 0, "drop N leading module path segments before matching")
	f.VarP(&flagFormat, "format", "f", "output format: text|json")
	f.StringVar(&flagPolicy, "policy", "", "Risor script, or built-in policy name (strict, additive), deciding whether the change set fails")
	f.StringVar(&flagDB, "db", "", "read FILE1 and FILE2 as snapshot names from this database")
}

func run(cmd *cobra.Command, args []string) error {
	if flagStrip < 0 {
		return fmt.Errorf("invalid strip %d: must not be negative", flagStrip)
	}
	log := logging.New(os.Stderr, "apidiff", logging.FromVerbosity(logging.LevelWarn, flagVerbose))

	opts := []apicheck.Option{apicheck.WithLogger(log)}
	if flagDB != "" {
		opts = append(opts, apicheck.WithDB(flagDB))
	}
	c, err := apicheck.New(opts...)
	if err != nil {
		return err
	}
	defer c.Close()

	before, err := loadTree(c, args[0])
	if err != nil {
		return err
	}
	after, err := loadTree(c, args[1])
	if err != nil {
		return err
	}

	r := c.DiffTrees(before, after, apicheck.DiffOptions{Strip: flagStrip})
	if err := writeReport(cmd.OutOrStdout(), string(flagFormat), r, flagVerbose > 0); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	gate := policy.Default()
	if flagPolicy != "" {
		plog := logging.New(os.Stderr, "policy", logging.FromVerbosity(logging.LevelInfo, flagVerbose))
		gate, err = loadPolicy(flagPolicy, plog)
		if err != nil {
			return err
		}
	}
	fail, err := gate.Evaluate(context.Background(), r)
	if err != nil {
		return err
	}
	if fail {
		exitCode = report.ExitChanged
	}
	return nil
}

// loadPolicy reads a policy file, or a built-in policy by name when no
// such file exists.
func loadPolicy(arg string, log *logging.Logger) (*policy.Policy, error) {
	if _, err := os.Stat(arg); err == nil {
		return policy.Load(arg, policy.WithLogger(log))
	}
	return policy.LoadFS(scripts.FS, arg, policy.WithLogger(log))
}

// loadTree reads a document file, or a stored snapshot with --db.
func loadTree(c *apicheck.Checker, arg string) (*apicheck.Tree, error) {
	if flagDB != "" {
		return c.LoadTree(arg)
	}
	return diff.ReadFile(arg)
}
