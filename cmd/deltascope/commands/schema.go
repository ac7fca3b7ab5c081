package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/deltascope/internal/render"
)

func newSchemaCommand(a *app) *cobra.Command {
	var (
		format  string
		version int64
	)

	cmd := &cobra.Command{
		Use:   "schema <table>",
		Short: "Show the table schema",
		Args:  cobra.ExactArgs(1),
	}

	cmd.RunE = a.instrument("schema", func(ctx context.Context, _ *cobra.Command, args []string) error {
		report, err := a.inspect(ctx, args[0], version)
		if err != nil {
			return err
		}

		summary := report.SchemaSummary()

		return a.emit(a.format(format), summary, func(r *render.Renderer) {
			r.Schema(summary.Columns)
		})
	})

	formatFlag(cmd, &format)
	versionFlag(cmd, &version)

	return cmd
}
