package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"projectdesk/internal/config"
	"projectdesk/internal/exitcode"
	"projectdesk/internal/service"
)

func init() {
	Register(&RmCmd{})
}

// RmCmd implements the rm command.
type RmCmd struct{}

func (c *RmCmd) Name() string       { return "rm" }
func (c *RmCmd) Aliases() []string  { return []string{"delete"} }
func (c *RmCmd) Synopsis() string   { return "Delete a project" }
func (c *RmCmd) Usage() string      { return "projectdesk rm <number|id>" }
func (c *RmCmd) NeedsBackend() bool { return true }

func (c *RmCmd) RegisterFlags(fs *pflag.FlagSet) {}

func (c *RmCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	ref, err := ParseProjectRef(args)
	if err != nil {
		if errors.Is(err, ErrProjectRefRequired) {
			fmt.Fprintln(errOut, "error: project reference required")
		} else {
			fmt.Fprintf(errOut, "error: %v\n", err)
		}
		return exitcode.UserError
	}

	client, err := startClient(ctx, svc, false)
	if err != nil {
		return reportError(errOut, err)
	}
	defer client.Close()

	if !requireLogin(client, errOut) {
		return exitcode.AuthError
	}
	// Deletes are checked against the loaded collection.
	if err := client.LoadProjects(ctx); err != nil {
		return reportError(errOut, err)
	}

	project, err := ref.Resolve(client.ProjectsState().Projects)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}

	if err := client.DeleteProject(ctx, project.ID); err != nil {
		return reportError(errOut, err)
	}

	if !cfg.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}
