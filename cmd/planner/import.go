package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"fgoplanner.app/internal/account"
	"fgoplanner.app/internal/persistence/accountdb"
)

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().String("db", "", "account database (default: <data>/planner.sqlite)")
}

var importCmd = &cobra.Command{
	Use:   "import FILE...",
	Short: "Store account JSON files in the account database",
	Long: `Store account JSON files in the account database. An account without an
_id takes the file name (without extension) as its id.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runImport,
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	dbPath, _ := cmd.Flags().GetString("db")
	if dbPath == "" {
		dbPath = filepath.Join(cfg.DataDir, "planner.sqlite")
	}
	db, err := accountdb.OpenSQLite(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	out := cmd.OutOrStdout()
	for _, path := range args {
		a, err := account.LoadFile(path)
		if err != nil {
			return err
		}
		if a.ID == "" {
			a.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}
		if err := db.PutAccount(ctx, a); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		fmt.Fprintf(out, "imported %s (%d servants)\n", a.ID, len(a.Servants))
	}
	return nil
}
