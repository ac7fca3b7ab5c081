package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/deltascope/internal/insights"
	"github.com/Sumatoshi-tech/deltascope/internal/inspector"
	"github.com/Sumatoshi-tech/deltascope/internal/render"
	"github.com/Sumatoshi-tech/deltascope/internal/stats"
)

// inspectOutput is the structured form of the inspect command.
type inspectOutput struct {
	Statistics            *stats.TableStatistics  `json:"statistics"              yaml:"statistics"`
	Schema                inspector.SchemaSummary `json:"schema"                  yaml:"schema"`
	OldestRetainedVersion int64                   `json:"oldest_retained_version" yaml:"oldest_retained_version"`
	LatestVersion         int64                   `json:"latest_version"          yaml:"latest_version"`
	FromCheckpoint        bool                    `json:"from_checkpoint"         yaml:"from_checkpoint"`
	ReplayedCommits       int                     `json:"replayed_commits"        yaml:"replayed_commits"`
	Insights              []insights.Insight      `json:"insights"                yaml:"insights"`
}

func newInspectCommand(a *app) *cobra.Command {
	var (
		format  string
		version int64
	)

	cmd := &cobra.Command{
		Use:   "inspect <table>",
		Short: "Show the table overview, protocol and health insights",
		Args:  cobra.ExactArgs(1),
	}

	cmd.RunE = a.instrument("inspect", func(ctx context.Context, _ *cobra.Command, args []string) error {
		report, err := a.inspect(ctx, args[0], version)
		if err != nil {
			return err
		}

		found := report.Insights(a.now())
		oldest, latest := report.VersionRange()

		statistics := *report.Statistics()
		statistics.Files = nil

		out := inspectOutput{
			Statistics:            &statistics,
			Schema:                report.SchemaSummary(),
			OldestRetainedVersion: oldest,
			LatestVersion:         latest,
			FromCheckpoint:        report.FromCheckpoint(),
			ReplayedCommits:       report.ReplayedCommits(),
			Insights:              found,
		}

		return a.emit(a.format(format), out, func(r *render.Renderer) {
			r.Overview(report.Statistics(), oldest, latest)
			r.Protocol(report.Statistics())
			r.Insights(found)
		})
	})

	formatFlag(cmd, &format)
	versionFlag(cmd, &version)

	return cmd
}
