package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lewtec/roteiro/roteiro"
)

var importLegacyCmd = &cobra.Command{
	Use:   "import-legacy <old.db>",
	Short: "Import scripts and image hashes from a database of the desktop app",
	Args: func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(1)(cmd, args); err != nil {
			return err
		}
		if _, err := os.Stat(args[0]); err != nil {
			return fmt.Errorf("on 1th argument: %w", err)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		e := envFrom(cmd)
		app, err := e.openApp()
		if err != nil {
			return err
		}
		defer app.Close()

		stats, err := roteiro.ImportLegacy(cmd.Context(), app.Database, args[0], e.logger)
		if err != nil {
			return fmt.Errorf("failed to import %s: %w", args[0], err)
		}
		e.logger.Info("legacy import finished",
			zap.Int("scripts", stats.Scripts),
			zap.Int("fingerprints", stats.Fingerprints),
			zap.Int("known", stats.Known))
		fmt.Fprintf(cmd.OutOrStdout(), "%d scripts, %d fingerprints imported (%d already known)\n",
			stats.Scripts, stats.Fingerprints, stats.Known)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importLegacyCmd)
}
