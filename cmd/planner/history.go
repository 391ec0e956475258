package main

import (
	"context"
	"fmt"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"fgoplanner.app/internal/persistence/accountdb"
	"fgoplanner.app/internal/persistence/statslog"
)

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().String("id", "", "only show runs of this account")
	historyCmd.Flags().Bool("index", false, "read the run index in the account database instead of the archive")
	historyCmd.Flags().Int("limit", 20, "maximum number of runs to show")
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past stats computations",
	RunE:  runHistory,
}

type historyRow struct {
	RunID      string
	AccountID  string
	ComputedAt time.Time
	Digest     string
	ElapsedMS  float64
	Warnings   int
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	id, _ := cmd.Flags().GetString("id")
	useIndex, _ := cmd.Flags().GetBool("index")
	limit, _ := cmd.Flags().GetInt("limit")

	var rows []historyRow
	if useIndex {
		if id == "" {
			return fmt.Errorf("--index requires --id")
		}
		db, err := accountdb.OpenSQLite(filepath.Join(cfg.DataDir, "planner.sqlite"))
		if err != nil {
			return err
		}
		defer db.Close()
		runs, err := db.ListRuns(context.Background(), id, limit)
		if err != nil {
			return err
		}
		for _, r := range runs {
			rows = append(rows, historyRow{r.RunID, r.AccountID, r.ComputedAt, r.Digest, r.ElapsedMS, r.Warnings})
		}
	} else {
		recs, err := statslog.ReadRuns(cfg.DataDir, id)
		if err != nil {
			return err
		}
		// Newest first, like the index.
		for i := len(recs) - 1; i >= 0 && (limit <= 0 || len(rows) < limit); i-- {
			r := recs[i]
			rows = append(rows, historyRow{r.RunID, r.AccountID, r.ComputedAt, r.Digest, r.ElapsedMS, len(r.Warnings)})
		}
	}

	out := cmd.OutOrStdout()
	if len(rows) == 0 {
		fmt.Fprintln(out, "no runs")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tACCOUNT\tWHEN\tDIGEST\tTOOK\tWARNINGS")
	for _, r := range rows {
		digest := r.Digest
		if len(digest) > 12 {
			digest = digest[:12]
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.2fms\t%d\n",
			r.RunID, r.AccountID, humanize.Time(r.ComputedAt), digest, r.ElapsedMS, r.Warnings)
	}
	return tw.Flush()
}
