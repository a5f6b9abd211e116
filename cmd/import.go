package main

import (
	"fmt"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/scoutbase/curator/internal/importer"
)

var importCmd = &cobra.Command{
	Use:   "import <candidate-id>...",
	Short: "Import discovered candidates through enrichment",
	Long:  "Enrich each candidate and add it to the curated directory as pending. Items fail independently; each attempt is audited and no candidate is ever imported twice.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("import"); err != nil {
			return err
		}

		actor, _ := cmd.Flags().GetString("actor")
		if actor == "" {
			return eris.New("--actor is required")
		}

		ids := make([]int64, 0, len(args))
		for _, arg := range args {
			id, err := strconv.ParseInt(arg, 10, 64)
			if err != nil {
				return eris.Errorf("invalid candidate id %q", arg)
			}
			ids = append(ids, id)
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		workers, _ := cmd.Flags().GetInt("workers")
		if workers <= 0 {
			workers = cfg.Import.Workers
		}

		pipeline := importer.New(st, enrichClient(), workers)
		outcomes, err := pipeline.Import(ctx, ids, actor)
		if err != nil {
			return eris.Wrap(err, "import candidates")
		}

		ok := 0
		for _, o := range outcomes {
			if o.OK {
				ok++
				fmt.Printf("ok      %d -> %s\n", o.CandidateID, o.StartupID)
			} else {
				fmt.Printf("failed  %d: %s\n", o.CandidateID, o.Reason)
			}
		}
		fmt.Printf("\n%d imported, %d failed\n", ok, len(outcomes)-ok)

		return nil
	},
}

func init() {
	importCmd.Flags().String("actor", "", "identity recorded in the audit trail (required)")
	importCmd.Flags().Int("workers", 0, "concurrent items (default from config)")
	rootCmd.AddCommand(importCmd)
}
