package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lewtec/roteiro/internal/logger"
	"github.com/lewtec/roteiro/internal/metrics"
	"github.com/lewtec/roteiro/roteiro"
)

type envKey struct{}

// env is what every subcommand gets from the root command
type env struct {
	configFile string
	config     *roteiro.Config
	logger     *zap.Logger
	registry   *prometheus.Registry
}

func envFrom(cmd *cobra.Command) *env {
	e, _ := cmd.Context().Value(envKey{}).(*env)
	return e
}

// openApp opens the database and builds the application
func (e *env) openApp() (*roteiro.App, error) {
	app, err := roteiro.NewApp(e.config, e.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	e.logger.Debug("database ready", zap.String("path", app.DatabasePath))
	return app, nil
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "roteiro",
	Short: "Generate narrative scripts and collect images for them",
	Long: strings.TrimSpace(`
Generate themed narrative scripts with Gemini, keep them in a local library and
download de-duplicated images for any topic.
	`),
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configFile, _ := cmd.Flags().GetString("config")
		cfg, err := roteiro.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if v, _ := cmd.Flags().GetString("log-level"); v != "" {
			cfg.Log.Level = v
		}
		if v, _ := cmd.Flags().GetString("log-format"); v != "" {
			cfg.Log.Format = v
		}
		if v, _ := cmd.Flags().GetString("lang"); v != "" {
			cfg.Language = v
		}

		l, err := logger.New(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		registry := prometheus.NewRegistry()
		if err := metrics.Register(registry); err != nil {
			return fmt.Errorf("failed to register metrics: %w", err)
		}

		e := &env{configFile: configFile, config: cfg, logger: l, registry: registry}
		// cobra only hands the execution context to a subcommand that has
		// none, so a reused command tree would keep the previous run's one
		ctx := cmd.Root().Context()
		if ctx == nil {
			ctx = context.Background()
		}
		cmd.SetContext(logger.WithLogger(context.WithValue(ctx, envKey{}, e), l))
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		e := envFrom(cmd)
		if e == nil {
			return nil
		}
		defer e.logger.Sync()
		return e.writeMetrics(cmd)
	},
}

// writeMetrics writes the registry to --metrics-file when it is set. Commands
// that can fail after doing work call it themselves, since cobra skips the
// post-run hooks on error.
func (e *env) writeMetrics(cmd *cobra.Command) error {
	metricsFile, _ := cmd.Flags().GetString("metrics-file")
	if metricsFile == "" {
		return nil
	}
	if err := metrics.WriteFile(metricsFile, e.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	e.logger.Debug("metrics written", zap.String("file", metricsFile))
	return nil
}

func main() {
	err := rootCmd.Execute()
	if err != nil {
		if errors.Is(err, errAcquisitionFailed) {
			os.Exit(2)
		}
		log.Fatalf("Error executing command: %v", err)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "roteiro.yaml", "Config file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format (console, json)")
	rootCmd.PersistentFlags().String("lang", "", "Language of messages (en, pt-BR)")
	rootCmd.PersistentFlags().String("metrics-file", "", "Write Prometheus metrics to this file on exit")
}
