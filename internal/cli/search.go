package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"notesim/internal/domain"
)

var (
	searchText string
	searchTopK int
	searchJSON bool
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search notes by free text",
	Long: `Embed a free-text query and rank every cached note by cosine similarity.

Examples:
  notesim search -q "lucid dreaming techniques"
  notesim search -q "sleep hygiene" -k 5 --json`,
	Args: cobra.NoArgs,
	RunE: runSearch,
}

var (
	relatedTopK int
	relatedJSON bool
)

var relatedCmd = &cobra.Command{
	Use:   "related <note>",
	Short: "List notes similar to a note",
	Long: `Rank cached notes by similarity to an existing note. The note may be
named by path, by path without the .md extension, or by a unique file name.
Its embedding is refreshed first if the note changed.

Examples:
  notesim related "journal/2024-03-01"
  notesim related ideas.md -k 3 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runRelated,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringVarP(&searchText, "query", "q", "", "search query (required)")
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "k", 0, "number of results (default from config)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output as JSON")
	searchCmd.MarkFlagRequired("query")

	rootCmd.AddCommand(relatedCmd)
	relatedCmd.Flags().IntVarP(&relatedTopK, "top-k", "k", 0, "number of results (default from config)")
	relatedCmd.Flags().BoolVar(&relatedJSON, "json", false, "output as JSON")
}

func runSearch(cmd *cobra.Command, args []string) error {
	a, err := openApp(GetConfig(), GetRootDir())
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.query.SearchByText(cmd.Context(), searchText, searchTopK)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return printJSON(res)
	}
	fmt.Printf("Found %d results for: %s\n\n", len(res.Results), res.Query)
	printHits(res.Results, res.MissingPaths)
	return nil
}

func runRelated(cmd *cobra.Command, args []string) error {
	a, err := openApp(GetConfig(), GetRootDir())
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.query.SearchByDocument(cmd.Context(), args[0], relatedTopK)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if relatedJSON {
		return printJSON(res)
	}
	fmt.Printf("Found %d notes related to: %s\n\n", len(res.Results), res.Note)
	printHits(res.Results, res.MissingPaths)
	return nil
}

func printHits(hits []domain.SearchHit, missing []string) {
	if len(hits) == 0 {
		fmt.Println("No results found.")
	}
	for i, h := range hits {
		fmt.Printf("--- [%d] %s (score: %.3f) ---\n", i+1, h.Path, h.Score)
		// Keep the terminal readable; --json carries the full content.
		text := []rune(strings.TrimSpace(h.Content))
		if len(text) > 500 {
			text = append(text[:500], []rune("...")...)
		}
		fmt.Println(string(text))
		fmt.Println()
	}
	if len(missing) > 0 {
		fmt.Printf("Removed %d stale cache entries: %s\n", len(missing), strings.Join(missing, ", "))
	}
}

func printJSON(v interface{}) error {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(output))
	return nil
}
