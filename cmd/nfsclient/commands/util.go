package commands

import (
	"context"
	"fmt"

	"github.com/marmos91/nfsclient/pkg/client"
)

// requireClient returns the Client built by the root command's
// PersistentPreRunE, or an error if somehow called before it ran.
func requireClient() (*client.Client, error) {
	if activeClient == nil {
		return nil, fmt.Errorf("no active connection")
	}
	return activeClient, nil
}

// opContext is the context a subcommand's single operation runs under.
// Connect/MountDevice already applied the configured command timeout
// during setup; a one-shot CLI operation runs unbounded beyond that.
func opContext() context.Context {
	return context.Background()
}
