package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var lsIncludeDots bool

var lsCmd = &cobra.Command{
	Use:   "ls <path>",
	Short: "List a directory's contents",
	Args:  cobra.ExactArgs(1),
	RunE:  runLs,
}

func init() {
	lsCmd.Flags().BoolVar(&lsIncludeDots, "all", false, "include . and .. entries")
}

func runLs(cmd *cobra.Command, args []string) error {
	c, err := requireClient()
	if err != nil {
		return err
	}

	entries, err := c.ListDir(opContext(), args[0], lsIncludeDots)
	if err != nil {
		return fmt.Errorf("ls %s: %w", args[0], err)
	}

	for _, e := range entries {
		if e.IsDir {
			fmt.Fprintf(cmd.OutOrStdout(), "%s/\n", e.Name)
			continue
		}
		fmt.Fprintln(cmd.OutOrStdout(), e.Name)
	}
	return nil
}
