package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/scoutbase/curator/internal/model"
	"github.com/scoutbase/curator/internal/review"
)

var approveCmd = &cobra.Command{
	Use:   "approve <id>...",
	Short: "Approve pending startups",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTransition(cmd, args, model.StatusApproved)
	},
}

var rejectCmd = &cobra.Command{
	Use:   "reject <id>...",
	Short: "Reject pending startups",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTransition(cmd, args, model.StatusRejected)
	},
}

// runTransition executes the all-or-nothing bulk transition, optionally
// showing a dry-run preview instead of committing.
func runTransition(cmd *cobra.Command, ids []string, target model.Status) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	actor, _ := cmd.Flags().GetString("actor")
	if actor == "" {
		return eris.New("--actor is required")
	}
	preview, _ := cmd.Flags().GetBool("preview")

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	svc := review.New(st)

	if preview {
		items, err := svc.Preview(ctx, ids, target)
		if err != nil {
			return eris.Wrap(err, "preview transition")
		}
		for _, item := range items {
			mark := "ok"
			if !item.Eligible {
				mark = "BLOCKED"
			}
			fmt.Printf("%-8s %s  %-10s %s\n", mark, item.ID, item.Status, item.Name)
		}
		return nil
	}

	count, err := svc.Transition(ctx, ids, target, actor)
	if err != nil {
		var nf *model.NotFoundError
		if eris.As(err, &nf) {
			return eris.Errorf("no startups were changed; not pending or not found: %v", nf.IDs)
		}
		return eris.Wrapf(err, "%s startups", target)
	}

	zap.L().Info("bulk transition complete",
		zap.String("target", string(target)),
		zap.Int("count", count),
	)
	fmt.Printf("%d startup(s) %s\n", count, target)

	return nil
}

func init() {
	for _, c := range []*cobra.Command{approveCmd, rejectCmd} {
		c.Flags().String("actor", "", "reviewer identity recorded in the audit trail (required)")
		c.Flags().Bool("preview", false, "show affected startups without committing")
		rootCmd.AddCommand(c)
	}
}
