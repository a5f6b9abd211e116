package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/scoutbase/curator/internal/directory"
	"github.com/scoutbase/curator/internal/model"
	"github.com/scoutbase/curator/internal/store"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List curated startups",
	Long:  "Show one page of the startup directory, filtered by status and name substring.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		statusStr, _ := cmd.Flags().GetString("status")
		search, _ := cmd.Flags().GetString("search")
		page, _ := cmd.Flags().GetInt("page")
		pageSize, _ := cmd.Flags().GetInt("page-size")
		if pageSize <= 0 {
			pageSize = cfg.Directory.PageSize
		}

		filter := store.DirectoryFilter{Search: search, Page: page, PageSize: pageSize}
		if statusStr != "" {
			status := model.Status(statusStr)
			if !status.Valid() {
				return eris.Errorf("invalid status %q", statusStr)
			}
			filter.Status = &status
		}

		result, err := directory.New(st).List(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "list startups")
		}

		for _, s := range result.Rows {
			score := "-"
			if s.Score != nil {
				score = fmt.Sprintf("%.2f", *s.Score)
			}
			fmt.Printf("%s  %-10s %6s  %s\n", s.ID, s.Status, score, s.Name)
		}
		fmt.Printf("\npage %d/%d, %d total\n", result.Page+1, max(result.TotalPages, 1), result.TotalCount)

		return nil
	},
}

func init() {
	listCmd.Flags().String("status", "", "filter by status (pending|approved|rejected)")
	listCmd.Flags().String("search", "", "case-insensitive name substring")
	listCmd.Flags().Int("page", 0, "zero-based page index")
	listCmd.Flags().Int("page-size", 0, "rows per page (default from config)")
	rootCmd.AddCommand(listCmd)
}
