package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/deltascope/internal/render"
)

func newInsightsCommand(a *app) *cobra.Command {
	var (
		format  string
		version int64
	)

	cmd := &cobra.Command{
		Use:   "insights <table>",
		Short: "Evaluate health rules and list findings by severity",
		Args:  cobra.ExactArgs(1),
	}

	cmd.RunE = a.instrument("insights", func(ctx context.Context, _ *cobra.Command, args []string) error {
		report, err := a.inspect(ctx, args[0], version)
		if err != nil {
			return err
		}

		found := report.Insights(a.now())

		return a.emit(a.format(format), found, func(r *render.Renderer) {
			r.Insights(found)
		})
	})

	formatFlag(cmd, &format)
	versionFlag(cmd, &version)

	return cmd
}
