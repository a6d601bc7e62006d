package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lewtec/roteiro/internal/acquire"
	"github.com/lewtec/roteiro/internal/domain"
)

var fingerprintsCmd = &cobra.Command{
	Use:     "fingerprints",
	Aliases: []string{"hashes"},
	Short:   "Inspect the ledger of images already acquired",
}

var fingerprintsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known fingerprints, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := envFrom(cmd).openApp()
		if err != nil {
			return err
		}
		defer app.Close()

		var fps []*domain.Fingerprint
		if term := mustString(cmd, "term"); term != "" {
			fps, err = app.Fingerprints.ListByTerm(cmd.Context(), term)
		} else {
			fps, err = app.Fingerprints.List(cmd.Context())
		}
		if err != nil {
			return fmt.Errorf("failed to list fingerprints: %w", err)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, strings.Join([]string{"hash", "term", "acquired_at"}, "\t"))
		for _, fp := range fps {
			fmt.Fprintln(out, strings.Join([]string{fp.Hash, fp.Term, fp.AcquiredAt.Format(time.DateTime)}, "\t"))
		}
		return nil
	},
}

var fingerprintsCheckCmd = &cobra.Command{
	Use:   "check <file...>",
	Short: "Tell whether files were already acquired",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := envFrom(cmd).openApp()
		if err != nil {
			return err
		}
		defer app.Close()

		out := cmd.OutOrStdout()
		for _, file := range args {
			hash, err := acquire.FingerprintFile(file)
			if err != nil {
				return fmt.Errorf("while hashing %s: %w", file, err)
			}
			known, err := app.Fingerprints.Contains(cmd.Context(), hash)
			if err != nil {
				return err
			}
			state := "new"
			if known {
				state = "known"
			}
			fmt.Fprintln(out, strings.Join([]string{hash, state, file}, "\t"))
		}
		return nil
	},
}

var fingerprintsCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Print how many images are in the ledger",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := envFrom(cmd).openApp()
		if err != nil {
			return err
		}
		defer app.Close()
		n, err := app.Fingerprints.Count(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d fingerprints\n", n)
		return nil
	},
}

func init() {
	fingerprintsListCmd.Flags().StringP("term", "t", "", "Only show fingerprints acquired for this term")
	fingerprintsCmd.AddCommand(fingerprintsListCmd, fingerprintsCheckCmd, fingerprintsCountCmd)
	rootCmd.AddCommand(fingerprintsCmd)
}
