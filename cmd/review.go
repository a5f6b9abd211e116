package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/scoutbase/curator/internal/directory"
	"github.com/scoutbase/curator/internal/model"
	"github.com/scoutbase/curator/internal/review"
	"github.com/scoutbase/curator/internal/selection"
	"github.com/scoutbase/curator/internal/store"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Interactively curate pending startups",
	Long: "Walk the pending directory page by page, mark startups and bulk " +
		"approve or reject the marked set. Commands: t <row> toggle, a select " +
		"all (again to clear), c clear, n/p page, approve, reject, q quit.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		actor, _ := cmd.Flags().GetString("actor")
		if actor == "" {
			return eris.New("--actor is required")
		}
		pageSize, _ := cmd.Flags().GetInt("page-size")
		if pageSize <= 0 {
			pageSize = cfg.Directory.PageSize
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		sess := &reviewSession{
			store:    st,
			actor:    actor,
			pageSize: pageSize,
			in:       cmd.InOrStdin(),
			out:      cmd.OutOrStdout(),
		}
		return sess.run(ctx)
	},
}

// reviewSession holds the state of one interactive curation session. The
// selection is scoped to the currently displayed page and cleared whenever
// the page data changes.
type reviewSession struct {
	store    store.Store
	actor    string
	pageSize int
	page     int
	in       io.Reader
	out      io.Writer
}

func (s *reviewSession) run(ctx context.Context) error {
	dir := directory.New(s.store)
	rev := review.New(s.store)
	sel := selection.New[string]()

	pending := model.StatusPending
	var rows []model.Startup

	load := func() error {
		result, err := dir.List(ctx, store.DirectoryFilter{
			Status:   &pending,
			Page:     s.page,
			PageSize: s.pageSize,
		})
		if err != nil {
			return eris.Wrap(err, "load directory page")
		}
		rows = result.Rows

		ids := make([]string, len(rows))
		for i, row := range rows {
			ids[i] = row.ID
		}
		sel.Reload(ids)

		fmt.Fprintf(s.out, "\npage %d/%d, %d pending\n", result.Page+1, max(result.TotalPages, 1), result.TotalCount)
		for i, row := range rows {
			mark := " "
			if sel.Has(row.ID) {
				mark = "x"
			}
			fmt.Fprintf(s.out, "[%s] %2d  %s  %s\n", mark, i+1, row.ID, row.Name)
		}
		return nil
	}

	redraw := func() {
		for i, row := range rows {
			mark := " "
			if sel.Has(row.ID) {
				mark = "x"
			}
			fmt.Fprintf(s.out, "[%s] %2d  %s  %s\n", mark, i+1, row.ID, row.Name)
		}
	}

	commit := func(target model.Status) error {
		ids := sel.IDs()
		if len(ids) == 0 {
			fmt.Fprintln(s.out, "nothing selected")
			return nil
		}
		count, err := rev.Transition(ctx, ids, target, s.actor)
		if err != nil {
			var nf *model.NotFoundError
			if eris.As(err, &nf) {
				fmt.Fprintf(s.out, "no startups were changed; not pending or not found: %v\n", nf.IDs)
				return load()
			}
			return err
		}
		fmt.Fprintf(s.out, "%d startup(s) %s\n", count, target)
		return load()
	}

	if err := load(); err != nil {
		return err
	}

	scanner := bufio.NewScanner(s.in)
	for {
		fmt.Fprintf(s.out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "q", "quit":
			return nil
		case "n", "next":
			s.page++
			if err := load(); err != nil {
				return err
			}
		case "p", "prev":
			if s.page > 0 {
				s.page--
			}
			if err := load(); err != nil {
				return err
			}
		case "t", "toggle":
			if len(fields) < 2 {
				fmt.Fprintln(s.out, "usage: t <row>")
				continue
			}
			idx, err := strconv.Atoi(fields[1])
			if err != nil || idx < 1 || idx > len(rows) {
				fmt.Fprintf(s.out, "no row %s on this page\n", fields[1])
				continue
			}
			sel.Toggle(rows[idx-1].ID)
			redraw()
		case "a", "all":
			sel.SelectAll()
			redraw()
		case "c", "clear":
			sel.Clear()
			redraw()
		case "approve":
			if err := commit(model.StatusApproved); err != nil {
				return err
			}
		case "reject":
			if err := commit(model.StatusRejected); err != nil {
				return err
			}
		default:
			fmt.Fprintf(s.out, "unknown command %q\n", fields[0])
		}
	}
}

func init() {
	reviewCmd.Flags().String("actor", "", "reviewer identity recorded in the audit trail (required)")
	reviewCmd.Flags().Int("page-size", 0, "rows per page (default from config)")
	rootCmd.AddCommand(reviewCmd)
}
