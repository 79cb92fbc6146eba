package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/pagewatch/snapshot"
)

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "List the snapshots held by a running monitor's SQLite store.",
	Args:  cobra.NoArgs,
	RunE:  runSnapshots,
}

func init() {
	rootCmd.AddCommand(snapshotsCmd)
}

func runSnapshots(cmd *cobra.Command, _ []string) error {
	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	if e.cfg.Store != snapshot.KindSQLite {
		return fmt.Errorf("store %q is not persisted", e.cfg.Store)
	}
	store, err := snapshot.OpenSQLite(e.cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.List(cmd.Context())
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PAGE\tOBSERVED\tCHANGED\tCONTENT")
	for _, en := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", en.PageID,
			en.ObservedAt.Format(time.DateTime), en.ChangedAt.Format(time.DateTime), en.Content)
	}
	return tw.Flush()
}
