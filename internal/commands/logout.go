package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"projectdesk/internal/config"
	"projectdesk/internal/exitcode"
	"projectdesk/internal/service"
	"projectdesk/internal/session"
)

func init() {
	Register(&LogoutCmd{})
}

// LogoutCmd implements the logout command.
type LogoutCmd struct {
	everywhere bool
}

func (c *LogoutCmd) Name() string       { return "logout" }
func (c *LogoutCmd) Aliases() []string  { return []string{"signout"} }
func (c *LogoutCmd) Synopsis() string   { return "Sign out" }
func (c *LogoutCmd) Usage() string      { return "projectdesk logout [--everywhere]" }
func (c *LogoutCmd) NeedsBackend() bool { return true }

func (c *LogoutCmd) RegisterFlags(fs *pflag.FlagSet) {
	fs.BoolVar(&c.everywhere, "everywhere", false, "")
}

func (c *LogoutCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	client, err := startClient(ctx, svc, false)
	if err != nil {
		return reportError(errOut, err)
	}
	defer client.Close()

	if client.SessionState().Status != session.Authenticated {
		if !cfg.Quiet {
			fmt.Fprintln(out, "not logged in")
		}
		return exitcode.Success
	}

	if err := client.SignOut(ctx, c.everywhere); err != nil {
		return reportError(errOut, err)
	}
	if _, err := waitForStatus(ctx, client, session.Anonymous); err != nil {
		fmt.Fprintf(errOut, "error: sign out was not confirmed: %v\n", err)
		return exitcode.BackendError
	}

	if !cfg.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}
