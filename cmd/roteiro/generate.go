package main

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lewtec/roteiro/internal/generator"
	"github.com/lewtec/roteiro/internal/task"
	"github.com/lewtec/roteiro/roteiro"
)

var generateCmd = &cobra.Command{
	Use:   "generate [prompt...]",
	Short: "Generate a script and save it to the library",
	Long: strings.TrimSpace(`
Generate a script for the given theme. Without a prompt one of the built-in
suggestions is used. The script is saved to the library automatically.
	`),
	RunE: func(cmd *cobra.Command, args []string) error {
		e := envFrom(cmd)
		mode, err := generator.ParseMode(mustString(cmd, "format"))
		if err != nil {
			return err
		}
		prompt := strings.TrimSpace(strings.Join(args, " "))
		if random, _ := cmd.Flags().GetBool("random"); random {
			prompt = ""
		}

		app, err := e.openApp()
		if err != nil {
			return err
		}
		defer app.Close()

		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		e.logger.Info("generating script", zap.String("prompt", prompt))
		t := task.Go(cmd.Context(), func(ctx context.Context) (*roteiro.Generated, error) {
			return app.GenerateScript(ctx, prompt, rng)
		})
		out, err := t.Wait(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to generate script: %w", err)
		}
		if out.SaveErr != nil {
			e.logger.Warn("script generated but not saved", zap.Error(out.SaveErr))
		} else {
			e.logger.Info("script saved",
				zap.Int64("id", out.Script.ID),
				zap.String("title", out.Script.Title),
				zap.String("model", out.Model))
		}
		fmt.Fprintln(cmd.OutOrStdout(), app.Formatter().Format(out.Script.Content, mode))
		return nil
	},
}

func mustString(cmd *cobra.Command, name string) string {
	v, _ := cmd.Flags().GetString(name)
	return v
}

func init() {
	generateCmd.Flags().StringP("format", "f", "raw", "How to print the script: raw, clean or timed")
	generateCmd.Flags().BoolP("random", "r", false, "Ignore the prompt and use a random suggestion")
	rootCmd.AddCommand(generateCmd)
}
