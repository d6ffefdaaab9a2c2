package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"screensolve/internal/bus"
	"screensolve/internal/imagedata"
	"screensolve/internal/logging"
	"screensolve/internal/pipeline"
	"screensolve/internal/renderer"
	"screensolve/internal/solver"
)

func newSolveCommand(ctx *commandContext) *cobra.Command {
	var endpoint string
	var raw bool
	var asJSON bool
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "solve <image>",
		Short: "Send an image file to the solver without the daemon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read image: %w", err)
			}
			img := imagedata.New(data, "")
			if !img.IsImage() {
				return fmt.Errorf("%s is %s, not an image", args[0], img.MediaType)
			}

			logger, err := logging.New(logging.Options{
				Level:       ctx.resolvedLogLevel(cfg),
				Format:      "console",
				OutputPaths: []string{"stderr"},
			})
			if err != nil {
				return err
			}

			if !raw {
				b := bus.New()
				workers := renderer.NewWorkerHost(cmd.Context(), b, logger, cfg.WorkerIdle())
				defer workers.Close()
				transcoder := renderer.NewController(workers, b, logger, renderer.WithReadyTimeout(cfg.WorkerReadyTimeout()))
				defer transcoder.Close()
				img, err = transcoder.Transcode(cmd.Context(), img, pipeline.MaxWidth, pipeline.Quality)
				if err != nil {
					return fmt.Errorf("transcode: %w", err)
				}
			}

			url := strings.TrimSpace(endpoint)
			if url == "" {
				url = cfg.Solver.URL
			}
			opts := []solver.Option{solver.WithLogger(logger)}
			if timeout > 0 {
				opts = append(opts, solver.WithTimeout(timeout))
			}
			answer, err := solver.New(url, opts...).Solve(cmd.Context(), img)
			if err != nil {
				return errors.New(pipeline.FailureMessage(err))
			}
			if asJSON {
				return writeJSON(cmd, answer)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Answer: %s\n", answer.Answer)
			fmt.Fprintf(out, "Confidence: %d%%\n", int(answer.Confidence*100+0.5))
			if answer.Rationale != "" {
				fmt.Fprintf(out, "Rationale: %s\n", answer.Rationale)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&endpoint, "url", "", "Solver endpoint (defaults to [solver] url)")
	cmd.Flags().BoolVar(&raw, "raw", false, "Send the file as-is instead of downscaling to JPEG")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the answer as JSON")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Request timeout override")
	return cmd
}
