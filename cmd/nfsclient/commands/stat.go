package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/nfsclient/pkg/client/engine"
)

var statCmd = &cobra.Command{
	Use:   "stat <path>",
	Short: "Print a path's attributes",
	Args:  cobra.ExactArgs(1),
	RunE:  runStat,
}

func runStat(cmd *cobra.Command, args []string) error {
	c, err := requireClient()
	if err != nil {
		return err
	}

	path := args[0]
	attrs, err := c.GetAttributes(opContext(), path, true)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "path:   %s\n", path)
	fmt.Fprintf(out, "type:   %s\n", typeName(attrs.Type))
	fmt.Fprintf(out, "mode:   %#o\n", attrs.Mode)
	fmt.Fprintf(out, "nlink:  %d\n", attrs.Nlink)
	fmt.Fprintf(out, "uid:    %d\n", attrs.UID)
	fmt.Fprintf(out, "gid:    %d\n", attrs.GID)
	fmt.Fprintf(out, "size:   %d\n", attrs.Size)
	fmt.Fprintf(out, "used:   %d\n", attrs.Used)
	fmt.Fprintf(out, "fileid: %d\n", attrs.Fileid)
	fmt.Fprintf(out, "atime:  %s\n", attrs.Atime)
	fmt.Fprintf(out, "mtime:  %s\n", attrs.Mtime)
	fmt.Fprintf(out, "ctime:  %s\n", attrs.Ctime)
	return nil
}

func typeName(t engine.FileType) string {
	switch t {
	case engine.FileTypeRegular:
		return "file"
	case engine.FileTypeDirectory:
		return "directory"
	case engine.FileTypeSymlink:
		return "symlink"
	default:
		return "other"
	}
}
