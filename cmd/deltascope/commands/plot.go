package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/deltascope/internal/plot"
)

func newPlotCommand(a *app) *cobra.Command {
	var (
		output  string
		version int64
	)

	cmd := &cobra.Command{
		Use:   "plot <table>",
		Short: "Write an HTML page with activity and file size charts",
		Args:  cobra.ExactArgs(1),
	}

	cmd.RunE = a.instrument("plot", func(ctx context.Context, _ *cobra.Command, args []string) (err error) {
		report, err := a.inspect(ctx, args[0], version)
		if err != nil {
			return err
		}

		loc, err := a.cfg.Location()
		if err != nil {
			return err
		}

		file, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("create %s: %w", output, err)
		}

		defer func() {
			err = errors.Join(err, file.Close())
		}()

		err = plot.Render(file, plot.Input{
			Location: report.Location(),
			Version:  report.Statistics().Version,
			Timeline: report.Timeline(loc),
			Files:    report.Statistics().Files,
		})
		if err != nil {
			return err
		}

		a.logger.InfoContext(ctx, "plot written", "path", output)

		return nil
	})

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output HTML file")
	versionFlag(cmd, &version)

	_ = cmd.MarkFlagRequired("output")

	return cmd
}
