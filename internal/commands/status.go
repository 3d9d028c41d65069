package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"projectdesk/internal/config"
	"projectdesk/internal/exitcode"
	"projectdesk/internal/output"
	"projectdesk/internal/service"
)

func init() {
	Register(&StatusCmd{})
}

// StatusCmd reports the store in use and who is signed in.
type StatusCmd struct{}

func (c *StatusCmd) Name() string       { return "status" }
func (c *StatusCmd) Aliases() []string  { return []string{"whoami"} }
func (c *StatusCmd) Synopsis() string   { return "Show the signed-in user" }
func (c *StatusCmd) Usage() string      { return "projectdesk status" }
func (c *StatusCmd) NeedsBackend() bool { return true }

func (c *StatusCmd) RegisterFlags(fs *pflag.FlagSet) {}

func (c *StatusCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	client, err := startClient(ctx, svc, false)
	if err != nil {
		return reportError(errOut, err)
	}
	defer client.Close()

	fmt.Fprintf(out, "store: %s\n", cfg.Settings.Store.URL)
	output.FormatSession(out, client.Session.Session())
	return exitcode.Success
}
