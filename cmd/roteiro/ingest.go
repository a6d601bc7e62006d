package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lewtec/roteiro/internal/acquire"
	"github.com/lewtec/roteiro/internal/crawler"
)

// ingestCmd copies new images from local folders into the image folder
var ingestCmd = &cobra.Command{
	Use:   "ingest <folder...>",
	Short: "Ingest folders of images, skipping the ones already known",
	Long: strings.TrimSpace(`
Ingest images that were collected somewhere else. Every file goes through the
same duplicate and quality checks as downloaded images and is recorded in the
fingerprint ledger.
	`),
	Args: func(cmd *cobra.Command, args []string) error {
		if err := cobra.MinimumNArgs(1)(cmd, args); err != nil {
			return err
		}
		for i, input := range args {
			fileInfo, err := os.Stat(input)
			if err != nil {
				return fmt.Errorf("on %dth argument: %w", i+1, err)
			}
			if !fileInfo.IsDir() {
				return fmt.Errorf("on %dth argument: must be a directory", i+1)
			}
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		e := envFrom(cmd)
		term, _ := cmd.Flags().GetString("term")
		if term == "" {
			term = filepath.Base(filepath.Clean(args[0]))
		}
		quality, _ := cmd.Flags().GetString("quality")
		tier, err := acquire.ParseTier(quality)
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("max")
		if limit < 1 {
			return fmt.Errorf("--max must be positive")
		}
		recursive, _ := cmd.Flags().GetBool("recursive")
		dir, _ := cmd.Flags().GetString("dir")
		if dir == "" {
			dir = e.config.Images.Dir
		}

		app, err := e.openApp()
		if err != nil {
			return err
		}
		defer app.Close()

		source := &crawler.DirSource{
			Roots:     args,
			Recursive: recursive,
			Logger:    e.logger.Named("ingest"),

			MaxBytes:      e.config.Crawler.MaxDownloadBytes(),
			MaxTotalBytes: e.config.Crawler.MaxTotalBytes(),
		}
		// every file is a candidate, so no over-fetch
		a := acquire.New(acquire.Config{
			Source:      source,
			Store:       app.Fingerprints,
			Filter:      e.config.Acquire.Filter(),
			Messages:    app.Messages,
			FallbackDir: e.config.Images.FallbackDir,
			Multiplier:  1,
			HardCap:     limit,
		})
		verbose, _ := cmd.Flags().GetBool("verbose")
		res, progress := runAcquisition(cmd, a, acquire.Request{Term: term, Target: limit, Tier: tier, Destination: dir}, verbose)
		return finishAcquisition(cmd, e, res, progress, true)
	},
}

func init() {
	ingestCmd.Flags().StringP("term", "t", "", "Term recorded for the images (default: name of the first folder)")
	ingestCmd.Flags().StringP("quality", "q", "normal", "Minimum quality: normal or high")
	ingestCmd.Flags().StringP("dir", "d", "", "Destination folder (default from config)")
	ingestCmd.Flags().IntP("max", "m", 1000, "Maximum number of images to ingest")
	ingestCmd.Flags().BoolP("recursive", "r", false, "Descend into subfolders")
	ingestCmd.Flags().BoolP("verbose", "v", false, "Show every file being processed")
	rootCmd.AddCommand(ingestCmd)
}
