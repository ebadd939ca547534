// Command nfsclient is a small CLI test driver over pkg/client: ls, cat,
// stat, and cp against a live NFS server, for exercising the library by
// hand the way a unit test can't.
package main

import (
	"fmt"
	"os"

	"github.com/marmos91/nfsclient/cmd/nfsclient/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
