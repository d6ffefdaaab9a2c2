package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"screensolve/internal/logging"
	"screensolve/internal/solveapi"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string
	var provider string
	var model string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the solve API in the foreground",
		Long: "Serves POST /screen-solve and GET /health backed by Ollama or Gemini,\n" +
			"as configured in the [server] section.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if provider = strings.TrimSpace(provider); provider != "" {
				cfg.Server.Provider = strings.ToLower(provider)
			}
			if model = strings.TrimSpace(model); model != "" {
				cfg.Server.Model = model
			}
			if bind = strings.TrimSpace(bind); bind != "" {
				cfg.Server.Bind = bind
			}
			if err := cfg.ServerReady(); err != nil {
				return err
			}

			logger, err := logging.New(logging.Options{
				Level:  ctx.resolvedLogLevel(cfg),
				Format: cfg.Logging.Format,
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			m, err := solveapi.NewModel(runCtx, cfg)
			if err != nil {
				return err
			}
			srv, err := solveapi.NewServer(m, cfg.Server.CacheSize,
				solveapi.WithLogger(logger),
				solveapi.WithRequestTimeout(time.Duration(cfg.Server.RequestTimeoutSeconds)*time.Second))
			if err != nil {
				return err
			}
			if err := srv.Start(runCtx, cfg.Server.Bind); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Solve API listening on http://%s (%s)\n", srv.Addr(), m.Name())

			<-runCtx.Done()
			srv.Stop()
			return nil
		},
	}
	cmd.Flags().StringVar(&bind, "bind", "", "Listen address (defaults to [server] bind)")
	cmd.Flags().StringVar(&provider, "provider", "", "Model provider: ollama or gemini")
	cmd.Flags().StringVar(&model, "model", "", "Model name override")
	return cmd
}
