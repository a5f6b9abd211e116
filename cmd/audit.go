package main

import (
	"fmt"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/scoutbase/curator/internal/model"
)

var auditCmd = &cobra.Command{
	Use:   "audit <entity-id>",
	Short: "Show the audit trail for an entity",
	Long:  "Print every recorded transition and import attempt for a startup (UUID) or, with --candidate, a discovered candidate (numeric ID).",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		byCandidate, _ := cmd.Flags().GetBool("candidate")

		var records []model.AuditRecord
		if byCandidate {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return eris.Errorf("invalid candidate id %q", args[0])
			}
			records, err = st.ListAuditByCandidate(ctx, id)
			if err != nil {
				return eris.Wrap(err, "list audit")
			}
		} else {
			records, err = st.ListAudit(ctx, args[0])
			if err != nil {
				return eris.Wrap(err, "list audit")
			}
		}

		if len(records) == 0 {
			fmt.Println("no audit records")
			return nil
		}

		for _, rec := range records {
			line := fmt.Sprintf("%s  %-7s %s -> %s  by %s",
				rec.CreatedAt.Format("2006-01-02 15:04:05"),
				rec.Outcome, rec.PrevStatus, orDash(rec.NewStatus), rec.Actor)
			if rec.Reason != "" {
				line += "  (" + rec.Reason + ")"
			}
			fmt.Println(line)
		}

		return nil
	},
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	auditCmd.Flags().Bool("candidate", false, "look up by candidate ID instead of startup UUID")
	rootCmd.AddCommand(auditCmd)
}
