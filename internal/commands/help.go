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
	Register(&HelpCmd{})
}

// HelpCmd implements the help command.
type HelpCmd struct{}

func (c *HelpCmd) Name() string       { return "help" }
func (c *HelpCmd) Aliases() []string  { return nil }
func (c *HelpCmd) Synopsis() string   { return "Print usage" }
func (c *HelpCmd) Usage() string      { return "projectdesk help" }
func (c *HelpCmd) NeedsBackend() bool { return false }

func (c *HelpCmd) RegisterFlags(fs *pflag.FlagSet) {}

func (c *HelpCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	fmt.Fprint(out, helpText)
	return exitcode.Success
}

const helpText = `Usage:
  projectdesk                                   List projects
  projectdesk list [common flags] [--status <status>]
  projectdesk add [common flags] [--area <area>] [--status <status>] [--priority <priority>]
                  [--due <YYYY-MM-DD>] [--next <action>] [--notes <text>] <name...>
  projectdesk rm [common flags] <number|id>
  projectdesk signup [common flags] [--email <email>] [--password <password>]
  projectdesk login [common flags] [--email <email>] [--password <password>]
  projectdesk logout [common flags] [--everywhere]
  projectdesk status [common flags]
  projectdesk shell [common flags]
  projectdesk serve [common flags] [--addr <host:port>] [--db <path>] [--nats <url>]
                    [--autoconfirm=<bool>]
  projectdesk help
  projectdesk version

Statuses: Not Started, In Progress, Blocked, Done
Priorities: High, Medium, Low

Common flags:
  --config <dir>   Override config directory
  --url <url>      Override the store URL
  --quiet          Suppress informational output
  --debug          Print debug logs to stderr
`
