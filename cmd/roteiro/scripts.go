package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lewtec/roteiro/internal/generator"
	"github.com/lewtec/roteiro/roteiro"
)

var scriptsCmd = &cobra.Command{
	Use:   "scripts",
	Short: "Browse the saved scripts",
}

var scriptsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved scripts, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := envFrom(cmd).openApp()
		if err != nil {
			return err
		}
		defer app.Close()

		scripts, err := app.Scripts.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list scripts: %w", err)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, strings.Join([]string{"id", "created_at", "title"}, "\t"))
		for _, s := range scripts {
			fmt.Fprintln(out, strings.Join([]string{
				strconv.FormatInt(s.ID, 10),
				s.CreatedAt.Format(time.DateTime),
				s.Title,
			}, "\t"))
		}
		return nil
	},
}

func scriptID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid script id %q", arg)
	}
	return id, nil
}

var scriptsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a saved script",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := scriptID(args[0])
		if err != nil {
			return err
		}
		mode, err := generator.ParseMode(mustString(cmd, "format"))
		if err != nil {
			return err
		}
		app, err := envFrom(cmd).openApp()
		if err != nil {
			return err
		}
		defer app.Close()

		s, err := app.Script(cmd.Context(), id)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "# %s\n\n", s.Title)
		fmt.Fprintln(out, app.Formatter().Format(s.Content, mode))
		return nil
	},
}

var scriptsExportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Export a saved script as text, markdown or HTML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e := envFrom(cmd)
		id, err := scriptID(args[0])
		if err != nil {
			return err
		}
		mode, err := generator.ParseMode(mustString(cmd, "format"))
		if err != nil {
			return err
		}
		format, err := roteiro.ParseExportFormat(mustString(cmd, "to"))
		if err != nil {
			return err
		}
		app, err := e.openApp()
		if err != nil {
			return err
		}
		defer app.Close()

		s, err := app.Script(cmd.Context(), id)
		if err != nil {
			return err
		}

		output := mustString(cmd, "output")
		switch output {
		case "":
			path, err := app.ExportToDir(s, mode, format)
			if err != nil {
				return err
			}
			e.logger.Info("script exported", zap.Int64("id", s.ID), zap.String("path", path))
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		case "-":
			return roteiro.ExportScript(cmd.OutOrStdout(), s, app.Formatter().Format(s.Content, mode), format)
		}

		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", output, err)
		}
		if err := roteiro.ExportScript(f, s, app.Formatter().Format(s.Content, mode), format); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		e.logger.Info("script exported", zap.Int64("id", s.ID), zap.String("path", output))
		return nil
	},
}

var scriptsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a saved script",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e := envFrom(cmd)
		id, err := scriptID(args[0])
		if err != nil {
			return err
		}
		app, err := e.openApp()
		if err != nil {
			return err
		}
		defer app.Close()

		// surface a proper not found error instead of a silent no-op
		if _, err := app.Script(cmd.Context(), id); err != nil {
			return err
		}
		if err := app.Scripts.Delete(cmd.Context(), id); err != nil {
			return fmt.Errorf("failed to delete script: %w", err)
		}
		e.logger.Info("script deleted", zap.Int64("id", id))
		return nil
	},
}

var scriptsCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Print how many scripts are saved",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := envFrom(cmd).openApp()
		if err != nil {
			return err
		}
		defer app.Close()
		n, err := app.Scripts.Count(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d scripts\n", n)
		return nil
	},
}

func init() {
	scriptsShowCmd.Flags().StringP("format", "f", "raw", "How to print the script: raw, clean or timed")
	scriptsExportCmd.Flags().StringP("format", "f", "raw", "How to render the script: raw, clean or timed")
	scriptsExportCmd.Flags().StringP("to", "t", "md", "Export format: txt, md or html")
	scriptsExportCmd.Flags().StringP("output", "o", "", "Output file, - for stdout (default: export folder)")

	scriptsCmd.AddCommand(scriptsListCmd, scriptsShowCmd, scriptsExportCmd, scriptsDeleteCmd, scriptsCountCmd)
	rootCmd.AddCommand(scriptsCmd)
}
