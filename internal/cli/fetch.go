package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <path>",
	Short: "Print the full content of a note",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(GetConfig(), GetRootDir())
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.query.FetchDocument(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Print(res.Content)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)
}
