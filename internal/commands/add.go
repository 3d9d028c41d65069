package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"projectdesk/internal/config"
	"projectdesk/internal/exitcode"
	"projectdesk/internal/logging"
	"projectdesk/internal/service"
)

func init() {
	Register(&AddCmd{})
}

// AddCmd implements the add command.
type AddCmd struct {
	area     string
	status   string
	next     string
	due      string
	priority string
	notes    string
}

func (c *AddCmd) Name() string      { return "add" }
func (c *AddCmd) Aliases() []string { return []string{"create"} }
func (c *AddCmd) Synopsis() string  { return "Create a project" }
func (c *AddCmd) Usage() string {
	return "projectdesk add [--area <area>] [--status <status>] [--priority <priority>] [--due <YYYY-MM-DD>] [--next <action>] [--notes <text>] <name...>"
}
func (c *AddCmd) NeedsBackend() bool { return true }

func (c *AddCmd) RegisterFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&c.area, "area", "a", "", "")
	fs.StringVarP(&c.status, "status", "s", "", "")
	fs.StringVarP(&c.next, "next", "n", "", "")
	fs.StringVarP(&c.due, "due", "d", "", "")
	fs.StringVarP(&c.priority, "priority", "p", "", "")
	fs.StringVar(&c.notes, "notes", "", "")
}

// draft builds the form from the flags and the joined name arguments.
func (c *AddCmd) draft(args []string) (service.Draft, error) {
	d := service.DefaultDraft()
	d.Project = strings.Join(args, " ")
	d.Area = c.area
	d.NextAction = c.next
	d.DueDate = c.due
	d.Notes = c.notes

	if c.status != "" {
		st, err := service.ParseStatus(c.status)
		if err != nil {
			return d, err
		}
		d.Status = st
	}
	if c.priority != "" {
		pr, err := service.ParsePriority(c.priority)
		if err != nil {
			return d, err
		}
		d.Priority = pr
	}
	return d, nil
}

func (c *AddCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	if strings.TrimSpace(strings.Join(args, " ")) == "" {
		fmt.Fprintln(errOut, "error: project name required")
		return exitcode.UserError
	}

	d, err := c.draft(args)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
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

	created, err := client.AddProject(ctx, d)
	if err != nil {
		if created.ID == "" {
			return reportError(errOut, err)
		}
		// Stored, but the follow-up reload failed.
		logging.FromContext(ctx).Warn("reload after add failed", zap.Error(err))
	}

	if !cfg.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}
