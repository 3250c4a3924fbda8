package cli

import (
	"github.com/spf13/cobra"

	"github.com/dyike/twpbr/config"
	"github.com/dyike/twpbr/internal/display"
	"github.com/dyike/twpbr/internal/storage"
)

func newHistoryCmd(cfg *config.Config) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded indicator runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			return withHistory(cfg, func(store *storage.Store) error {
				runs, err := store.ListRuns(cmd.Context(), limit)
				if err != nil {
					return err
				}
				display.NewResultsDisplay(cmd.OutOrStdout()).ShowRuns(runs)
				return nil
			})
		},
	}
	historyCmd.Flags().IntP("limit", "l", 20, "Maximum number of runs to list")

	historyCmd.AddCommand(&cobra.Command{
		Use:   "show ID",
		Short: "Print the rows of a recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(cfg, func(store *storage.Store) error {
				run, points, err := store.Run(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				display.NewResultsDisplay(cmd.OutOrStdout()).ShowPoints(run, points)
				return nil
			})
		},
	})

	historyCmd.AddCommand(&cobra.Command{
		Use:   "delete ID",
		Short: "Remove a recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(cfg, func(store *storage.Store) error {
				return store.DeleteRun(cmd.Context(), args[0])
			})
		},
	})

	return historyCmd
}

func withHistory(cfg *config.Config, fn func(*storage.Store) error) error {
	store, err := storage.Open(cfg.HistoryDB)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}
