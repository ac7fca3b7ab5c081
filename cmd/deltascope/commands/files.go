package commands

import (
	"cmp"
	"context"
	"slices"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/deltascope/internal/render"
	"github.com/Sumatoshi-tech/deltascope/pkg/delta"
)

// filesOutput is the structured form of the files command.
type filesOutput struct {
	Version        int64            `json:"version"          yaml:"version"`
	NumFiles       int              `json:"num_files"        yaml:"num_files"`
	TotalSizeBytes int64            `json:"total_size_bytes" yaml:"total_size_bytes"`
	Files          []delta.FileInfo `json:"files"            yaml:"files"`
}

func newFilesCommand(a *app) *cobra.Command {
	var (
		format  string
		version int64
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "files <table>",
		Short: "List the largest active data files",
		Long: `List the active data files of a table version, largest first.

--limit defaults to output.files_limit; 0 lists every file.`,
		Args: cobra.ExactArgs(1),
	}

	cmd.RunE = a.instrument("files", func(ctx context.Context, cmd *cobra.Command, args []string) error {
		report, err := a.inspect(ctx, args[0], version)
		if err != nil {
			return err
		}

		if !cmd.Flags().Changed("limit") {
			limit = a.cfg.Output.FilesLimit
		}

		statistics := report.Statistics()

		largest := slices.Clone(statistics.Files)
		slices.SortStableFunc(largest, func(x, y delta.FileInfo) int {
			if c := cmp.Compare(y.SizeBytes, x.SizeBytes); c != 0 {
				return c
			}

			return cmp.Compare(x.Path, y.Path)
		})

		if limit > 0 && len(largest) > limit {
			largest = largest[:limit]
		}

		out := filesOutput{
			Version:        statistics.Version,
			NumFiles:       statistics.NumFiles,
			TotalSizeBytes: statistics.TotalSizeBytes,
			Files:          largest,
		}

		return a.emit(a.format(format), out, func(r *render.Renderer) {
			r.Files(statistics.Files, limit)
		})
	})

	formatFlag(cmd, &format)
	versionFlag(cmd, &version)
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum files to list (default from output.files_limit)")

	return cmd
}
