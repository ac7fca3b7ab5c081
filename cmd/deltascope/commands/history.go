package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/deltascope/internal/render"
)

func newHistoryCommand(a *app) *cobra.Command {
	var (
		format      string
		page        int
		pageSize    int
		oldestFirst bool
	)

	cmd := &cobra.Command{
		Use:   "history <table>",
		Short: "Page through the commit history",
		Long: `Page through the retained commit history, newest first by default.

Page size defaults to history.page_size; --oldest-first and history.oldest_first
switch to ascending versions.`,
		Args: cobra.ExactArgs(1),
	}

	cmd.RunE = a.instrument("history", func(ctx context.Context, cmd *cobra.Command, args []string) error {
		report, err := a.inspect(ctx, args[0], latestVersion)
		if err != nil {
			return err
		}

		size := pageSize
		if !cmd.Flags().Changed("page-size") {
			size = a.cfg.History.PageSize
		}

		reverse := oldestFirst || (!cmd.Flags().Changed("oldest-first") && a.cfg.History.OldestFirst)

		result, err := render.Paginate(report.History(reverse), page, size)
		if err != nil {
			return err
		}

		return a.emit(a.format(format), result, func(r *render.Renderer) {
			r.History(result)
		})
	})

	formatFlag(cmd, &format)
	cmd.Flags().IntVar(&page, "page", 1, "Page number, starting at 1")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "Commits per page (default from history.page_size)")
	cmd.Flags().BoolVar(&oldestFirst, "oldest-first", false, "Show the oldest commits first")

	return cmd
}
