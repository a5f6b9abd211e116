package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/scoutbase/curator/internal/model"
)

// feedRow is one discovered startup in a feed file.
type feedRow struct {
	Name        string `json:"name" yaml:"name"`
	Website     string `json:"website" yaml:"website"`
	Description string `json:"description" yaml:"description"`
	Funding     string `json:"funding" yaml:"funding"`
	Source      string `json:"source" yaml:"source"`
	ArticleURL  string `json:"article_url" yaml:"article_url"`
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <feed-file>",
	Short: "Load discovered candidates from a feed file",
	Long:  "Bulk-insert candidates from a JSON or YAML feed export. Rows whose (source, name) pair already exists are skipped.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		source, _ := cmd.Flags().GetString("source")

		candidates, err := parseFeed(args[0], source)
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		inserted, err := st.BulkInsertCandidates(ctx, candidates)
		if err != nil {
			return eris.Wrap(err, "ingest candidates")
		}

		zap.L().Info("feed ingested",
			zap.String("file", args[0]),
			zap.Int("rows", len(candidates)),
			zap.Int64("inserted", inserted),
		)
		fmt.Printf("%d of %d candidates inserted (%d duplicates skipped)\n",
			inserted, len(candidates), int64(len(candidates))-inserted)

		return nil
	},
}

// parseFeed reads a JSON or YAML feed file into candidates. fallbackSource
// fills in rows that carry no source of their own.
func parseFeed(path, fallbackSource string) ([]model.Candidate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read feed file %s", path)
	}

	var feed []feedRow
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &feed); err != nil {
			return nil, eris.Wrap(err, "parse YAML feed")
		}
	case ".json":
		if err := json.Unmarshal(data, &feed); err != nil {
			return nil, eris.Wrap(err, "parse JSON feed")
		}
	default:
		return nil, eris.Errorf("unsupported feed format %q (want .json, .yaml or .yml)", ext)
	}

	candidates := make([]model.Candidate, 0, len(feed))
	for i, row := range feed {
		if row.Name == "" {
			return nil, eris.Errorf("feed row %d: missing name", i)
		}
		source := row.Source
		if source == "" {
			source = fallbackSource
		}
		if source == "" {
			return nil, eris.Errorf("feed row %d (%s): missing source and no --source given", i, row.Name)
		}
		candidates = append(candidates, model.Candidate{
			Name:        row.Name,
			Website:     row.Website,
			Description: row.Description,
			Funding:     row.Funding,
			Source:      source,
			ArticleURL:  row.ArticleURL,
		})
	}
	return candidates, nil
}

func init() {
	ingestCmd.Flags().String("source", "", "fallback source identifier for rows without one")
	rootCmd.AddCommand(ingestCmd)
}
