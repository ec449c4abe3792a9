package cli

import (
	"fmt"
	"sort"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"notesim/internal/domain"
)

var refreshOnlyNew bool

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Embed new and modified notes",
	Long: `Embed every note whose cached embedding is missing, stale, or stored in
the old format. The cache is saved after every batch, so an interrupted run
resumes where it stopped.

Examples:
  notesim refresh             # Refresh new, modified and old-format notes
  notesim refresh --only-new  # Only embed notes with no cache entry`,
	Args: cobra.NoArgs,
	RunE: runRefresh,
}

func init() {
	rootCmd.AddCommand(refreshCmd)
	refreshCmd.Flags().BoolVar(&refreshOnlyNew, "only-new", false, "only embed notes without a cache entry")
}

func runRefresh(cmd *cobra.Command, args []string) error {
	a, err := openApp(GetConfig(), GetRootDir())
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Printf("Scanning %s...\n", a.vault.Root())

	var bar *progressbar.ProgressBar
	var startTime time.Time

	progress := func(done, total int) {
		if bar == nil {
			startTime = time.Now()
			bar = progressbar.NewOptions(total,
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Embedding[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Println()
				}),
			)
		}

		bar.Set(done)

		elapsed := time.Since(startTime)
		if done > 0 && elapsed > 0 {
			rate := float64(done) / elapsed.Seconds()
			if rate > 0 {
				eta := time.Duration(float64(total-done)/rate) * time.Second
				bar.Describe(fmt.Sprintf("[cyan]Embedding[reset] ETA: %s", formatDuration(eta)))
			}
		}
	}

	report, err := a.refresh.RefreshAll(cmd.Context(), refreshOnlyNew, progress)
	if err != nil {
		if report != nil && report.Batches > 0 {
			fmt.Printf("\n%d batch(es) were saved before the failure.\n", report.Batches)
		}
		return fmt.Errorf("refresh failed: %w", err)
	}

	if report.UpToDate {
		fmt.Println("All notes are up to date.")
		return nil
	}

	fmt.Printf("\nRefresh complete:\n")
	fmt.Printf("  Notes queued:  %d\n", report.Queued)
	fmt.Printf("  Added:         %d\n", report.Added)
	fmt.Printf("  Updated:       %d\n", report.Updated)
	fmt.Printf("  Skipped:       %d (empty)\n", report.Skipped)
	fmt.Printf("  Batches:       %d\n", report.Batches)
	printReasons(report.Reasons)

	fmt.Printf("\nCache stored at: %s\n", a.store.Location())
	return nil
}

func printReasons(reasons map[domain.Reason]int) {
	if len(reasons) == 0 {
		return
	}
	keys := make([]string, 0, len(reasons))
	for r := range reasons {
		keys = append(keys, string(r))
	}
	sort.Strings(keys)

	fmt.Printf("\nReasons:\n")
	for _, k := range keys {
		fmt.Printf("  - %-18s %d\n", k, reasons[domain.Reason(k)])
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
