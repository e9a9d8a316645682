package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/jward/apicheck"
)

// formatSnapshotsText formats stored snapshots as aligned columns.
func formatSnapshotsText(w io.Writer, infos []*apicheck.SnapshotInfo) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tMODULES\tITEMS\tCREATED\tSOURCE")
	for _, s := range infos {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\n",
			s.Name, s.ModuleCount, s.ItemCount, s.CreatedAt.UTC().Format(time.RFC3339), s.Source)
	}
	return tw.Flush()
}
