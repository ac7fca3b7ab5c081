package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/deltascope/internal/render"
)

func newConfigCommand(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "config <table>",
		Short: "Show table properties, protocol features and log accounting",
		Args:  cobra.ExactArgs(1),
	}

	cmd.RunE = a.instrument("config", func(ctx context.Context, _ *cobra.Command, args []string) error {
		report, err := a.inspect(ctx, args[0], latestVersion)
		if err != nil {
			return err
		}

		cfg := report.Configuration()
		for _, warning := range cfg.Warnings {
			a.logger.WarnContext(ctx, "malformed table property", "key", warning.Key, "value", warning.Value)
		}

		return a.emit(a.format(format), cfg, func(r *render.Renderer) {
			r.Configuration(cfg)
		})
	})

	formatFlag(cmd, &format)

	return cmd
}
