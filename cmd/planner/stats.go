package main

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"fgoplanner.app/internal/account"
	"fgoplanner.app/internal/gamedata"
	"fgoplanner.app/internal/itemstats"
	"fgoplanner.app/internal/persistence/accountdb"
	"fgoplanner.app/internal/persistence/statslog"
	"fgoplanner.app/internal/planner"
)

func init() {
	rootCmd.AddCommand(statsCmd)

	f := statsCmd.Flags()
	f.StringP("account", "a", "", "account JSON file")
	f.String("db", "", "account database (default: <data>/planner.sqlite when --id is set)")
	f.String("id", "", "account id in the database")
	f.Bool("unowned", false, "include servants the account does not own")
	f.Bool("append", false, "include append skills")
	f.Bool("costumes", false, "include costumes")
	f.Bool("soundtracks", false, "include soundtracks")
	f.String("format", "table", "output format: table or json")
	f.Bool("archive", false, "append the run to <data>/runs (and the run index with --id)")
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Compute the item stats table of an account",
	Long: `Compute how many of each item an account has spent, still needs and is
missing. The account comes from a JSON file (--account) or from the account
database (--id). Filter flags default to default_filter in planner.yaml.`,
	RunE: runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	format, _ := cmd.Flags().GetString("format")
	if format != "table" && format != "json" {
		return fmt.Errorf("unknown --format %q", format)
	}

	cats, err := gamedata.Load(cfg.CatalogDir)
	if err != nil {
		return fmt.Errorf("load catalogs: %w", err)
	}

	opts := []planner.Option{
		planner.WithLogger(newLogger(cmd)),
		planner.WithItemOrder(cfg.RowOrder()),
	}
	archive, _ := cmd.Flags().GetBool("archive")

	var acct *account.Account
	file, _ := cmd.Flags().GetString("account")
	id, _ := cmd.Flags().GetString("id")
	switch {
	case file != "" && id != "":
		return fmt.Errorf("use either --account or --id")
	case file != "":
		if acct, err = account.LoadFile(file); err != nil {
			return err
		}
	case id != "":
		dbPath, _ := cmd.Flags().GetString("db")
		if dbPath == "" {
			dbPath = filepath.Join(cfg.DataDir, "planner.sqlite")
		}
		db, err := accountdb.OpenSQLite(dbPath)
		if err != nil {
			return err
		}
		defer db.Close()
		if acct, err = db.GetAccount(context.Background(), id); err != nil {
			return err
		}
		if archive {
			opts = append(opts, planner.WithRecorder(db))
		}
	default:
		return fmt.Errorf("an account is required: --account FILE or --id ID")
	}

	if archive {
		runLog := statslog.NewRunLogger(cfg.DataDir)
		defer runLog.Close()
		opts = append(opts, planner.WithArchive(runLog))
	}
	svc := planner.NewService(cats, nil, opts...)

	rep := svc.ComputeAccount(acct, statsFilter(cmd, cfg.DefaultFilter.Stats()), "cli")

	out := cmd.OutOrStdout()
	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
	return renderStats(out, cats.Items, rep)
}

// statsFilter overrides def with the filter flags the user actually set.
func statsFilter(cmd *cobra.Command, def itemstats.Filter) itemstats.Filter {
	f := def
	flags := cmd.Flags()
	set := func(name string, dst *bool) {
		if flags.Changed(name) {
			*dst, _ = flags.GetBool(name)
		}
	}
	set("unowned", &f.IncludeUnownedServants)
	set("append", &f.IncludeAppendSkills)
	set("costumes", &f.IncludeCostumes)
	set("soundtracks", &f.IncludeSoundtracks)
	return f
}
