package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jward/apicheck"
	"github.com/jward/apicheck/internal/report"
)

var (
	flagDebug   int
	flagOutput  string
	flagIgnore  []string
	flagDB      string
	flagSave    string
	flagList    bool
	flagDelete  string
	flagNoCache bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(report.ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "apicheck FILE",
	Short: "Describe the public API of a Rust crate",
	Long: "Parses a crate root with tree-sitter, follows its module declarations and " +
		"writes every public item as a JSON descriptor document for apidiff.",
	SilenceErrors: true,
	SilenceUsage:  true,
	Args:          checkArgs,
	RunE:          run,
}

func init() {
	f := rootCmd.Flags()
	f.CountVarP(&flagDebug, "debug", "d", "raise diagnostic verbosity (repeatable)")
	f.StringVarP(&flagOutput, "output", "o", "-", "write the document to FILE (- for standard output)")
	f.StringArrayVar(&flagIgnore, "ignore", nil, "skip module files matching a gitignore-style pattern (repeatable)")
	f.StringVar(&flagDB, "db", "", "snapshot database path")
	f.StringVar(&flagSave, "save", "", "also store the document in --db under this name")
	f.BoolVar(&flagList, "list", false, "list the snapshots stored in --db and exit")
	f.StringVar(&flagDelete, "delete", "", "remove the named snapshot from --db and exit")
	f.BoolVar(&flagNoCache, "no-cache", false, "parse every file even when its content was seen before")
}

// checkArgs requires FILE unless --list or --delete is given.
func checkArgs(cmd *cobra.Command, args []string) error {
	if flagList && flagDelete != "" {
		return errors.New("--list and --delete are mutually exclusive")
	}
	if flagList || flagDelete != "" {
		if flagDB == "" {
			if flagList {
				return errors.New("--list requires --db")
			}
			return errors.New("--delete requires --db")
		}
		return cobra.NoArgs(cmd, args)
	}
	if flagSave != "" && flagDB == "" {
		return errors.New("--save requires --db")
	}
	return cobra.ExactArgs(1)(cmd, args)
}

func run(cmd *cobra.Command, args []string) error {
	opts := []apicheck.Option{apicheck.WithDebug(flagDebug), apicheck.WithIgnore(flagIgnore...)}
	if flagDB != "" {
		opts = append(opts, apicheck.WithDB(flagDB))
	}
	if flagNoCache {
		opts = append(opts, apicheck.WithCacheSize(0))
	}
	c, err := apicheck.New(opts...)
	if err != nil {
		return err
	}
	defer c.Close()

	if flagList {
		infos, err := c.Store().ListSnapshots()
		if err != nil {
			return err
		}
		return formatSnapshotsText(cmd.OutOrStdout(), infos)
	}
	if flagDelete != "" {
		deleted, err := c.Delete(flagDelete)
		if err != nil {
			return err
		}
		if !deleted {
			return fmt.Errorf("snapshot %s not found", flagDelete)
		}
		fmt.Fprintf(os.Stderr, "Deleted snapshot %s\n", flagDelete)
		return nil
	}

	file := args[0]
	doc, err := c.Extract(context.Background(), file)
	if err != nil {
		return err
	}
	data, err := apicheck.Encode(doc)
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}

	if flagSave != "" {
		saved, err := c.Save(flagSave, file, doc)
		if err != nil {
			return fmt.Errorf("saving snapshot %s: %w", flagSave, err)
		}
		if saved {
			fmt.Fprintf(os.Stderr, "Saved snapshot %s\n", flagSave)
		} else {
			fmt.Fprintf(os.Stderr, "Snapshot %s is unchanged\n", flagSave)
		}
	}

	return writeOutput(cmd.OutOrStdout(), flagOutput, data)
}

// writeOutput writes data to path, or to stdout when path is "-" or empty.
func writeOutput(stdout io.Writer, path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := stdout.Write(data)
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}
