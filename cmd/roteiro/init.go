package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lewtec/roteiro/roteiro"
)

var initCmd = &cobra.Command{
	Use:   "init [config]",
	Short: "Create a sample config file and an empty library",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e := envFrom(cmd)
		configFile := e.configFile
		if len(args) > 0 {
			configFile = args[0]
		}
		created, err := roteiro.WriteSampleConfig(configFile)
		if err != nil {
			return fmt.Errorf("failed to create config file: %w", err)
		}
		if created {
			e.logger.Info("Creating default config", zap.String("file", configFile))
		} else {
			e.logger.Info("Config file already exists", zap.String("file", configFile))
		}

		cfg, err := roteiro.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		db, path, err := roteiro.GetDatabase(cfg.Database, e.logger)
		if err != nil {
			return fmt.Errorf("failed to create database: %w", err)
		}
		defer db.Close()

		fmt.Fprintf(cmd.OutOrStdout(), "config: %s\ndatabase: %s\n", configFile, path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
