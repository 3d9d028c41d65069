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
	Register(&ListCmd{})
}

// ListCmd implements the list command.
// Handles both `projectdesk` (no args) and `projectdesk list`.
type ListCmd struct {
	status string
}

func (c *ListCmd) Name() string       { return "list" }
func (c *ListCmd) Aliases() []string  { return []string{"ls"} }
func (c *ListCmd) Synopsis() string   { return "List projects" }
func (c *ListCmd) Usage() string      { return "projectdesk list [--status <status>]" }
func (c *ListCmd) NeedsBackend() bool { return true }

func (c *ListCmd) RegisterFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&c.status, "status", "s", "", "")
}

func (c *ListCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		fmt.Fprintf(errOut, "error: unexpected argument: %s\n", args[0])
		return exitcode.UserError
	}

	var only service.Status
	if c.status != "" {
		st, err := service.ParseStatus(c.status)
		if err != nil {
			fmt.Fprintf(errOut, "error: %v\n", err)
			return exitcode.UserError
		}
		only = st
	}

	client, err := startClient(ctx, svc, false)
	if err != nil {
		return reportError(errOut, err)
	}
	defer client.Close()

	if !requireLogin(client, errOut) {
		return exitcode.AuthError
	}
	if err := client.LoadProjects(ctx); err != nil {
		return reportError(errOut, err)
	}

	// Numbers stay those of the full list so they can be passed to rm.
	all := client.ProjectsState().Projects
	shown := 0
	for i, p := range all {
		if only != "" && p.Status != only {
			continue
		}
		if shown == 0 {
			output.FormatHeader(out)
		}
		output.FormatProject(out, i+1, p)
		shown++
	}

	if shown == 0 && !cfg.Quiet {
		fmt.Fprintln(out, "no projects found")
	}
	return exitcode.Success
}
