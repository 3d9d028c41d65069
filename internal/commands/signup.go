package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"projectdesk/internal/config"
	"projectdesk/internal/exitcode"
	"projectdesk/internal/service"
)

func init() {
	Register(&SignupCmd{})
}

// SignupCmd implements the signup command. Depending on the store's
// policy the new account is signed in at once or waits for email
// confirmation.
type SignupCmd struct {
	email    string
	password string

	// In supplies prompted answers. Nil means stdin.
	In io.Reader
}

func (c *SignupCmd) Name() string       { return "signup" }
func (c *SignupCmd) Aliases() []string  { return nil }
func (c *SignupCmd) Synopsis() string   { return "Create an account" }
func (c *SignupCmd) Usage() string      { return "projectdesk signup [--email <email>] [--password <password>]" }
func (c *SignupCmd) NeedsBackend() bool { return true }

func (c *SignupCmd) RegisterFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&c.email, "email", "e", "", "")
	fs.StringVarP(&c.password, "password", "p", "", "")
}

func (c *SignupCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		fmt.Fprintf(errOut, "error: unexpected argument: %s\n", args[0])
		return exitcode.UserError
	}

	email, password, err := newPrompter(c.In, errOut).credentials(c.email, c.password)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}

	client, err := startClient(ctx, svc, false)
	if err != nil {
		return reportError(errOut, err)
	}
	defer client.Close()

	if err := client.SignUp(ctx, email, password); err != nil {
		return reportError(errOut, err)
	}

	// The store only pushes a sign-in when it confirmed the account itself.
	if !awaitSignUp(ctx, client, email) {
		if !cfg.Quiet {
			fmt.Fprintf(out, "check %s to confirm your account, then run: projectdesk login\n", email)
		}
		return exitcode.Success
	}

	if !cfg.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}
