package commands

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/deltascope/internal/deltalog"
	"github.com/Sumatoshi-tech/deltascope/internal/mcp"
	"github.com/Sumatoshi-tech/deltascope/pkg/observability"
)

func newMCPCommand(a *app) *cobra.Command {
	var (
		debug       bool
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for AI agent integration",
		Long: `Start a Model Context Protocol (MCP) server on stdio transport.

The server exposes table inspection as tools that AI agents can discover and invoke:
  - delta_statistics: Aggregate statistics, optionally with the file list
  - delta_history: Paginated commit history
  - delta_insights: Health findings by severity
  - delta_configuration: Table properties and protocol features
  - delta_timeline: Operations by type and by day

With --metrics-addr a diagnostics listener serves /healthz, /readyz and /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			if debug {
				a.cfg.Log.Level = "debug"
			}

			if metricsAddr == "" {
				metricsAddr = a.cfg.Observability.MetricsAddr
			}

			err = a.initObservability(observability.ModeMCP, metricsAddr)
			if err != nil {
				return err
			}

			defer func() { _ = a.shutdown() }()

			ctx := cmd.Context()

			if metricsAddr != "" {
				diag, diagErr := observability.NewDiagnosticsServer(metricsAddr, a.providers.Tracer, a.providers.MetricsHandler)
				if diagErr != nil {
					return diagErr
				}

				a.logger.InfoContext(ctx, "diagnostics listening", "addr", diag.Addr())

				defer func() {
					err = errors.Join(err, diag.Close(context.Background()))
				}()
			}

			if a.cfg.Storage.CacheMaxBytes > 0 {
				a.cache = deltalog.NewObjectCache(a.cfg.Storage.CacheMaxBytes)
			}

			loc, err := a.cfg.Location()
			if err != nil {
				return err
			}

			srv := mcp.NewServer(mcp.ServerDeps{
				Logger:    a.logger,
				Metrics:   a.red,
				Tracer:    a.providers.Tracer,
				Opener:    a.open,
				Inspector: a.newInspector(),
				PageSize:  a.cfg.History.PageSize,
				Location:  loc,
				Now:       a.now,
			})

			return srv.Run(ctx)
		},
	}

	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging to stderr")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Diagnostics listen address (default from observability.metrics_addr)")

	return cmd
}
