package cli

import (
	"fmt"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"notesim/internal/tui"
	"notesim/internal/usecase"
)

var similarPlain bool

var similarCmd = &cobra.Command{
	Use:   "similar <note>",
	Short: "Show notes similar to a note",
	Long: `Open the similar-notes panel for a note. Cached results show at once;
if the note changed since it was embedded, its embedding is refreshed and the
list is replaced.

Press a to pick the note itself, b-y to pick a result, z to refresh, q to quit.
The picked note's absolute path is printed on exit.

Examples:
  notesim similar "Project ideas"
  notesim similar journal/today.md --plain`,
	Args: cobra.ExactArgs(1),
	RunE: runSimilar,
}

func init() {
	rootCmd.AddCommand(similarCmd)
	similarCmd.Flags().BoolVar(&similarPlain, "plain", false, "print both phases without the interactive panel")
}

func runSimilar(cmd *cobra.Command, args []string) error {
	a, err := openApp(GetConfig(), GetRootDir())
	if err != nil {
		return err
	}
	defer a.Close()

	if similarPlain {
		return runSimilarPlain(cmd, a, args[0])
	}

	final, err := tea.NewProgram(tui.New(cmd.Context(), a.query, args[0])).Run()
	if err != nil {
		return err
	}
	m, ok := final.(tui.Model)
	if !ok {
		return nil
	}
	if m.Err() != nil {
		return m.Err()
	}
	if m.Selected() != "" {
		fmt.Println(filepath.Join(a.vault.Root(), filepath.FromSlash(m.Selected())))
	}
	return nil
}

func runSimilarPlain(cmd *cobra.Command, a *app, note string) error {
	view, err := a.query.SimilarCached(cmd.Context(), note)
	if err != nil {
		return err
	}
	printSimilarView(view)

	updated, err := a.query.SimilarRefreshed(cmd.Context(), note)
	if err != nil {
		return err
	}
	if updated != nil {
		fmt.Println()
		printSimilarView(updated)
	}
	return nil
}

func printSimilarView(view *usecase.SimilarView) {
	fmt.Println(view.Header)
	if len(view.Results) == 0 {
		if view.Message == "" {
			fmt.Println("  No similar notes.")
		}
		return
	}
	for _, r := range view.Results {
		fmt.Printf("  %3.0f%%  %s\n", r.DisplayPercent()*100, r.DisplayName)
	}
}
