package cli

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show embedding cache statistics",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := openApp(GetConfig(), GetRootDir())
	if err != nil {
		return err
	}
	defer a.Close()

	st, err := a.refresh.Status(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Printf("Cache:      %s\n", st.Location)
	if a.bolt != nil {
		at, ok, err := a.bolt.WrittenAt()
		if err != nil {
			return err
		}
		if ok {
			fmt.Printf("Last write: %s\n", at.Local().Format(time.RFC1123))
		}
	}
	fmt.Printf("Notes:      %d\n", st.Notes)
	fmt.Printf("Entries:    %d\n", st.Format.Total)
	fmt.Printf("  structured: %d\n", st.Format.Structured)
	fmt.Printf("  legacy:     %d\n", st.Format.Legacy)
	fmt.Printf("  no vector:  %d\n", st.Format.NoVector)

	if len(st.Format.Dimensions) > 0 {
		dims := make([]int, 0, len(st.Format.Dimensions))
		for d := range st.Format.Dimensions {
			dims = append(dims, d)
		}
		sort.Ints(dims)
		fmt.Printf("Dimensions:")
		for _, d := range dims {
			fmt.Printf(" %d (%d)", d, st.Format.Dimensions[d])
		}
		fmt.Println()
	}

	if st.Format.NeedsMigration() {
		fmt.Println("\nOld-format entries are migrated by the next refresh.")
	}

	pending := 0
	for _, n := range st.Pending {
		pending += n
	}
	if pending == 0 {
		fmt.Println("\nAll notes are up to date.")
		return nil
	}
	fmt.Printf("\nPending refresh: %d\n", pending)
	printReasons(st.Pending)
	return nil
}
