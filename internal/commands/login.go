package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"projectdesk/internal/config"
	"projectdesk/internal/exitcode"
	"projectdesk/internal/logging"
	"projectdesk/internal/service"
	"projectdesk/internal/session"
)

func init() {
	Register(&LoginCmd{})
}

// LoginCmd implements the login command.
type LoginCmd struct {
	email    string
	password string

	// In supplies prompted answers. Nil means stdin.
	In io.Reader
}

func (c *LoginCmd) Name() string       { return "login" }
func (c *LoginCmd) Aliases() []string  { return []string{"signin"} }
func (c *LoginCmd) Synopsis() string   { return "Sign in with email and password" }
func (c *LoginCmd) Usage() string      { return "projectdesk login [--email <email>] [--password <password>]" }
func (c *LoginCmd) NeedsBackend() bool { return true }

func (c *LoginCmd) RegisterFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&c.email, "email", "e", "", "")
	fs.StringVarP(&c.password, "password", "p", "", "")
}

func (c *LoginCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		fmt.Fprintf(errOut, "error: unexpected argument: %s\n", args[0])
		return exitcode.UserError
	}

	client, err := startClient(ctx, svc, false)
	if err != nil {
		return reportError(errOut, err)
	}
	defer client.Close()

	if st := client.SessionState(); st.Status == session.Authenticated {
		if !cfg.Quiet {
			fmt.Fprintf(out, "already logged in as %s\n", st.Session.Email)
		}
		return exitcode.Success
	}

	email, password, err := newPrompter(c.In, errOut).credentials(c.email, c.password)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}
	logging.FromContext(ctx).Debug("signing in", zap.String("email", email), logging.Redacted("password", password))

	if err := client.SignIn(ctx, email, password); err != nil {
		return reportError(errOut, err)
	}
	if _, err := waitForStatus(ctx, client, session.Authenticated); err != nil {
		fmt.Fprintf(errOut, "error: sign in was not confirmed: %v\n", err)
		return exitcode.BackendError
	}

	if !cfg.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}
