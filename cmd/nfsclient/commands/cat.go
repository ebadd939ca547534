package commands

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

const catChunkSize = 64 * 1024

var catCmd = &cobra.Command{
	Use:   "cat <path>",
	Short: "Print a file's contents to stdout",
	Args:  cobra.ExactArgs(1),
	RunE:  runCat,
}

func runCat(cmd *cobra.Command, args []string) error {
	c, err := requireClient()
	if err != nil {
		return err
	}

	path := args[0]
	ctx := opContext()
	out := cmd.OutOrStdout()

	var offset uint64
	buf := make([]byte, catChunkSize)
	for {
		n, err := c.Read(ctx, path, offset, buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				return werr
			}
			offset += uint64(n)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("cat %s: %w", path, err)
		}
	}
}
