package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"docsearch/internal/models"
	"docsearch/internal/retrieval"
	"docsearch/internal/util"

	"github.com/spf13/cobra"
)

var (
	searchWorkspace string
	searchLimit     int
	searchJSON      bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search a workspace",
	Long: `Runs vector and keyword retrieval over one workspace, merges the hits
and reranks them when a reranker is configured.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVarP(&searchWorkspace, "workspace", "w", "main", "workspace id to search")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "maximum number of results (0 uses the configured default)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.Service.Get(ctx, searchWorkspace); err != nil {
		return err
	}
	res, err := a.Retriever.Search(ctx, query, searchWorkspace, searchLimit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	if searchJSON {
		data, err := json.MarshalIndent(res.Candidates, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	printStageWarnings(cmd, res)
	if len(res.Candidates) == 0 {
		outcome, err := a.Retriever.Describe(ctx, searchWorkspace, res)
		if err != nil {
			return err
		}
		if outcome == retrieval.OutcomeNoDocuments {
			cmd.Printf("Workspace %s has no documents yet.\n", searchWorkspace)
		} else {
			cmd.Println("No results found.")
		}
		return nil
	}
	for i, c := range res.Candidates {
		name := c.DocumentName
		if name == "" {
			name = c.DocumentID
		}
		cmd.Printf("[%d] %s #%d (%s)\n", i+1, name, c.ChunkIndex, formatScore(c))
		cmd.Printf("    %s\n\n", util.Snippet(c.Content, query, util.DefaultSnippetRunes))
	}
	return nil
}

func formatScore(c models.Candidate) string {
	if c.ScoreKind == models.ScorePlaceholder {
		return c.Source
	}
	return fmt.Sprintf("%s %.3f", c.ScoreKind, c.Score)
}

func printStageWarnings(cmd *cobra.Command, res retrieval.Result) {
	for name, st := range map[string]retrieval.StageStatus{"vector": res.Vector, "keyword": res.Keyword, "rerank": res.Rerank} {
		if st.Failed() {
			cmd.PrintErrf("warning: %s stage failed: %v\n", name, st.Err)
		}
	}
}
