package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marmos91/nfsclient/pkg/client"
)

const cpChunkSize = 64 * 1024

var cpCmd = &cobra.Command{
	Use:   "cp <src> <dst>",
	Short: "Copy a file between the local filesystem and the mounted export",
	Long: `Copy a file between the local filesystem and the mounted export.
Prefix the remote side with "nfs:" to disambiguate, e.g.:

  nfsclient cp ./report.txt nfs:\reports\report.txt
  nfsclient cp nfs:\reports\report.txt ./report.txt`,
	Args: cobra.ExactArgs(2),
	RunE: runCp,
}

func runCp(cmd *cobra.Command, args []string) error {
	c, err := requireClient()
	if err != nil {
		return err
	}

	srcRemote, src := splitRemote(args[0])
	dstRemote, dst := splitRemote(args[1])
	if srcRemote == dstRemote {
		return fmt.Errorf("cp: exactly one of src or dst must be prefixed with nfs:")
	}

	ctx := opContext()
	if srcRemote {
		return copyFromRemote(ctx, c, src, dst)
	}
	return copyToRemote(ctx, c, src, dst)
}

func splitRemote(path string) (bool, string) {
	if rest, ok := strings.CutPrefix(path, "nfs:"); ok {
		return true, rest
	}
	return false, path
}

// copyFromRemote reads remotePath off the mounted export in chunks and
// writes it to a local file, creating or truncating localPath.
func copyFromRemote(ctx context.Context, c *client.Client, remotePath, localPath string) error {
	f, err := os.OpenFile(localPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("create %s: %w", localPath, err)
	}
	defer f.Close()

	var offset uint64
	buf := make([]byte, cpChunkSize)
	for {
		n, err := c.Read(ctx, remotePath, offset, buf)
		if n > 0 {
			if _, werr := f.Write(buf[:n]); werr != nil {
				return fmt.Errorf("write %s: %w", localPath, werr)
			}
			offset += uint64(n)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read %s: %w", remotePath, err)
		}
	}
}

// copyToRemote reads localPath in chunks and writes it to remotePath on
// the mounted export, creating the remote file first.
func copyToRemote(ctx context.Context, c *client.Client, localPath, remotePath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	if err := c.CreateFile(ctx, remotePath, 0644); err != nil {
		return fmt.Errorf("create %s: %w", remotePath, err)
	}

	var offset uint64
	buf := make([]byte, cpChunkSize)
	for {
		n, rerr := f.Read(buf)
		if n > 0 {
			if _, err := c.Write(ctx, remotePath, offset, buf[:n]); err != nil {
				return fmt.Errorf("write %s: %w", remotePath, err)
			}
			offset += uint64(n)
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				return nil
			}
			return fmt.Errorf("read %s: %w", localPath, rerr)
		}
	}
}
