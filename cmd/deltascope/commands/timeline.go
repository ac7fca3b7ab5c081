package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/deltascope/internal/render"
)

func newTimelineCommand(a *app) *cobra.Command {
	var (
		format   string
		timezone string
	)

	cmd := &cobra.Command{
		Use:   "timeline <table>",
		Short: "Group the commit history by operation and by day",
		Args:  cobra.ExactArgs(1),
	}

	cmd.RunE = a.instrument("timeline", func(ctx context.Context, _ *cobra.Command, args []string) error {
		loc, err := a.cfg.Location()
		if err != nil {
			return err
		}

		if timezone != "" {
			loc, err = time.LoadLocation(timezone)
			if err != nil {
				return fmt.Errorf("load timezone %q: %w", timezone, err)
			}
		}

		report, err := a.inspect(ctx, args[0], latestVersion)
		if err != nil {
			return err
		}

		line := report.Timeline(loc)

		return a.emit(a.format(format), line, func(r *render.Renderer) {
			r.Timeline(line)
		})
	})

	formatFlag(cmd, &format)
	cmd.Flags().StringVar(&timezone, "timezone", "", "IANA zone for day buckets (default from output.timezone)")

	return cmd
}
