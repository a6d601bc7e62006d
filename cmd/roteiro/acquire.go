package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lewtec/roteiro/internal/acquire"
	"github.com/lewtec/roteiro/internal/logger"
	"github.com/lewtec/roteiro/internal/task"
)

var errAcquisitionFailed = errors.New("no image was acquired")

// maxAcquireCount bounds --count like the spin box of the desktop app did
const maxAcquireCount = 100

var acquireCmd = &cobra.Command{
	Use:   "acquire <term...>",
	Short: "Download new images for a search term",
	Long: strings.TrimSpace(`
Searches the web for images of a term and saves the ones that were never
downloaded before and are large enough for the chosen quality.
	`),
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e := envFrom(cmd)
		count, _ := cmd.Flags().GetInt("count")
		if count < 1 || count > maxAcquireCount {
			return fmt.Errorf("--count must be between 1 and %d", maxAcquireCount)
		}
		quality, _ := cmd.Flags().GetString("quality")
		tier, err := acquire.ParseTier(quality)
		if err != nil {
			return err
		}
		dir, _ := cmd.Flags().GetString("dir")
		if dir == "" {
			dir = e.config.Images.Dir
		}

		app, err := e.openApp()
		if err != nil {
			return err
		}
		defer app.Close()

		req := acquire.Request{Term: strings.Join(args, " "), Target: count, Tier: tier, Destination: dir}
		verbose, _ := cmd.Flags().GetBool("verbose")
		res, progress := runAcquisition(cmd, app.Acquirer(app.BingSource()), req, verbose)
		return finishAcquisition(cmd, e, res, progress, false)
	},
}

// runAcquisition runs the acquisition in a task so an interrupt can cancel it
// between candidates, printing events as they arrive. It also returns the last
// progress reported, which is 100 once the run has finished.
func runAcquisition(cmd *cobra.Command, a *acquire.Acquirer, req acquire.Request, verbose bool) (acquire.Result, int) {
	log := logger.FromContext(cmd.Context())
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	out := cmd.OutOrStdout()
	progress := 0
	onProgress := func(p int) { progress = p }
	onLog := func(ev acquire.Event) {
		logEvent(log, ev)
		if ev.Level == acquire.LevelDebug && !verbose {
			return
		}
		fmt.Fprintf(out, "[%3d%%] %s\n", progress, ev.Message)
	}

	t := task.Go(ctx, func(ctx context.Context) (acquire.Result, error) {
		res := a.Acquire(ctx, req, onProgress, onLog)
		return res, nil
	})
	res, err := t.Wait(context.Background())
	if err != nil {
		return acquire.Result{Outcome: acquire.OutcomeFailure, Err: err}, progress
	}
	return res, progress
}

// logEvent mirrors events into the structured log; they are already on stdout
func logEvent(log *zap.Logger, ev acquire.Event) {
	log.Debug("acquisition event",
		zap.String("level", ev.Level.String()),
		zap.String("kind", string(ev.Kind)),
		zap.Any("fields", ev.Fields))
}

// finishAcquisition prints the summary and turns a failed run into an error.
// allowEmpty accepts runs that saved nothing without any error, which is
// normal when every candidate was already known.
func finishAcquisition(cmd *cobra.Command, e *env, res acquire.Result, progress int, allowEmpty bool) error {
	printSummary(cmd.OutOrStdout(), res, progress)
	e.logger.Info("acquisition finished",
		zap.String("term", res.Term),
		zap.String("outcome", res.Outcome.String()),
		zap.Int("accepted", res.Accepted),
		zap.Int("target", res.Target),
		zap.Int("candidates", res.Candidates),
		zap.Int("duplicates", res.Duplicates),
		zap.Int("rejected", res.Rejected),
		zap.Int("failed", res.Failed),
		zap.Bool("cancelled", res.Cancelled))
	if res.Outcome != acquire.OutcomeFailure || (allowEmpty && res.Err == nil) {
		return nil
	}
	if err := e.writeMetrics(cmd); err != nil {
		e.logger.Warn("failed to write metrics", zap.Error(err))
	}
	if res.Err != nil {
		return fmt.Errorf("%w: %w", errAcquisitionFailed, res.Err)
	}
	return errAcquisitionFailed
}

func printSummary(w io.Writer, res acquire.Result, progress int) {
	fmt.Fprintf(w, "\n[%3d%%] %s: %d/%d saved, %d duplicates, %d rejected, %d failed (of %d candidates)\n",
		progress, res.Outcome, res.Accepted, res.Target, res.Duplicates, res.Rejected, res.Failed, res.Candidates)
	for _, f := range res.Files {
		fmt.Fprintf(w, "  %s\n", f)
	}
}

func init() {
	acquireCmd.Flags().IntP("count", "n", 10, "Number of new images to save")
	acquireCmd.Flags().StringP("quality", "q", "normal", "Minimum quality: normal (480px) or high (1080px)")
	acquireCmd.Flags().StringP("dir", "d", "", "Destination folder (default from config)")
	acquireCmd.Flags().BoolP("verbose", "v", false, "Show every candidate being processed")
	rootCmd.AddCommand(acquireCmd)
}
