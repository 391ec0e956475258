// Command planner computes item stats for master accounts from the command
// line and manages the local account store.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"fgoplanner.app/internal/config"
)

var rootCmd = &cobra.Command{
	Use:           "planner",
	Short:         "Material requirement planner for FGO master accounts",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "./configs/planner.yaml", "path to planner.yaml (defaults apply if missing)")
	rootCmd.PersistentFlags().String("catalogs", "", "game data directory (overrides catalog_dir)")
	rootCmd.PersistentFlags().String("data", "", "runtime data directory (overrides data_dir)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadConfig applies the persistent flag overrides on top of planner.yaml.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	if s, _ := cmd.Flags().GetString("catalogs"); s != "" {
		cfg.CatalogDir = s
	}
	if s, _ := cmd.Flags().GetString("data"); s != "" {
		cfg.DataDir = s
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command) *log.Logger {
	return log.New(cmd.ErrOrStderr(), "[planner] ", log.LstdFlags|log.Lmicroseconds)
}
