package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"fgoplanner.app/internal/gamedata"
)

func init() {
	rootCmd.AddCommand(validateCmd)
}

var validateCmd = &cobra.Command{
	Use:   "validate [DIR]",
	Short: "Check a game data directory against its schemas",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	dir := cfg.CatalogDir
	if len(args) == 1 {
		dir = args[0]
	}

	if err := gamedata.Validate(dir); err != nil {
		return err
	}
	cats, err := gamedata.Load(dir)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "items        %4d  %s\n", len(cats.Items.ByID), cats.Items.Digest)
	fmt.Fprintf(out, "servants     %4d  %s\n", len(cats.Servants.ByID), cats.Servants.Digest)
	fmt.Fprintf(out, "soundtracks  %4d  %s\n", len(cats.Soundtracks.List), cats.Soundtracks.Digest)
	fmt.Fprintln(out, "ok")
	return nil
}
