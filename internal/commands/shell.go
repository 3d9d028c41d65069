package commands

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/spf13/pflag"

	"projectdesk/internal/app"
	"projectdesk/internal/config"
	"projectdesk/internal/exitcode"
	"projectdesk/internal/logging"
	"projectdesk/internal/output"
	"projectdesk/internal/projects"
	"projectdesk/internal/service"
	"projectdesk/internal/session"
)

func init() {
	Register(&ShellCmd{})
}

// ShellCmd runs an interactive session. The project table is re-rendered
// whenever the collection reloads, including reloads caused by signing in
// or by a revocation pushed from another client.
type ShellCmd struct {
	// In supplies commands and prompted answers. Nil means stdin.
	In io.Reader
}

func (c *ShellCmd) Name() string       { return "shell" }
func (c *ShellCmd) Aliases() []string  { return []string{"sh"} }
func (c *ShellCmd) Synopsis() string   { return "Interactive project desk" }
func (c *ShellCmd) Usage() string      { return "projectdesk shell" }
func (c *ShellCmd) NeedsBackend() bool { return true }

func (c *ShellCmd) RegisterFlags(fs *pflag.FlagSet) {}

const shellHelp = `Commands:
  ls                                   Show projects
  add [flags] <name...>                Create a project (flags as in: projectdesk add)
  rm <number|id>                       Delete a project
  login [--email e] [--password p]     Sign in
  signup [--email e] [--password p]    Create an account
  logout [--everywhere]                Sign out
  status                               Show the signed-in user
  help                                 Show this help
  quit                                 Leave the shell
`

// screen serializes writes from the command loop and the render callbacks.
type screen struct {
	mu     sync.Mutex
	w      io.Writer
	closed bool
}

func (s *screen) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return len(p), nil
	}
	return s.w.Write(p)
}

// close drops every later write.
func (s *screen) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

type shell struct {
	client *app.Client
	prompt *prompter
	out    *screen
	errOut io.Writer

	// busy is set while a command runs; the command prints its own result.
	busy atomic.Bool
}

func (c *ShellCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		fmt.Fprintf(errOut, "error: unexpected argument: %s\n", args[0])
		return exitcode.UserError
	}

	scr := &screen{w: out}
	sh := &shell{
		client: app.New(svc, app.Options{Logger: logging.FromContext(ctx), AutoLoad: true}),
		prompt: newPrompter(c.In, scr),
		out:    scr,
		errOut: scr,
	}
	defer func() {
		sh.client.Close()
		scr.close()
	}()

	cancelSession := sh.client.SubscribeSession(sh.sessionChanged())
	defer cancelSession()
	cancelProjects := sh.client.SubscribeProjects(sh.projectsChanged())
	defer cancelProjects()

	if err := sh.client.Start(ctx); err != nil {
		return reportError(errOut, err)
	}

	for {
		if ctx.Err() != nil {
			return exitcode.Success
		}
		line, err := sh.prompt.line("projectdesk")
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(scr)
				return exitcode.Success
			}
			fmt.Fprintf(errOut, "error: %v\n", err)
			return exitcode.UserError
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "quit" || fields[0] == "exit" {
			return exitcode.Success
		}
		sh.busy.Store(true)
		sh.exec(ctx, fields[0], fields[1:])
		sh.busy.Store(false)
	}
}

// sessionChanged prints sign-in and sign-out transitions.
func (sh *shell) sessionChanged() func(session.State) {
	prev := session.Unknown
	return func(st session.State) {
		if st.Status == prev {
			return
		}
		prev = st.Status
		switch st.Status {
		case session.Authenticated:
			fmt.Fprintf(sh.out, "signed in as %s\n", st.Session.Email)
		case session.Anonymous:
			fmt.Fprintln(sh.out, "signed out")
		}
	}
}

// projectsChanged renders the table each time a load finishes.
func (sh *shell) projectsChanged() func(projects.State) {
	loading := false
	return func(st projects.State) {
		finished := loading && !st.Loading
		loading = st.Loading
		if !finished || sh.busy.Load() {
			return
		}
		var buf bytes.Buffer
		if st.LastError != nil {
			fmt.Fprintf(&buf, "error: %s\n", describe(st.LastError))
		} else {
			renderProjects(&buf, st.Projects)
		}
		sh.out.Write(buf.Bytes())
	}
}

func renderProjects(w io.Writer, list []service.Project) {
	if len(list) == 0 {
		fmt.Fprintln(w, "no projects found")
		return
	}
	output.FormatProjects(w, list)
}

func (sh *shell) exec(ctx context.Context, name string, args []string) {
	switch name {
	case "ls", "list":
		sh.list(ctx)
	case "add", "create":
		sh.add(ctx, args)
	case "rm", "delete":
		sh.rm(ctx, args)
	case "login", "signin":
		sh.login(ctx, args, false)
	case "signup":
		sh.login(ctx, args, true)
	case "logout", "signout":
		sh.logout(ctx, args)
	case "status", "whoami":
		output.FormatSession(sh.out, sh.client.Session.Session())
	case "help", "?":
		fmt.Fprint(sh.out, shellHelp)
	default:
		fmt.Fprintf(sh.errOut, "error: unknown command: %s (type: help)\n", name)
	}
}

// parse applies a command's flags to args and returns the positional rest.
func (sh *shell) parse(cmd Command, args []string) ([]string, bool) {
	fs := pflag.NewFlagSet(cmd.Name(), pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	cmd.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(sh.errOut, "error: %v\n", err)
		return nil, false
	}
	return fs.Args(), true
}

func (sh *shell) signedIn() bool {
	if sh.client.SessionState().Status == session.Authenticated {
		return true
	}
	fmt.Fprintln(sh.errOut, "error: not logged in (type: login)")
	return false
}

func (sh *shell) list(ctx context.Context) {
	if !sh.signedIn() {
		return
	}
	if err := sh.client.LoadProjects(ctx); err != nil {
		reportError(sh.errOut, err)
		return
	}
	var buf bytes.Buffer
	renderProjects(&buf, sh.client.ProjectsState().Projects)
	sh.out.Write(buf.Bytes())
}

func (sh *shell) add(ctx context.Context, args []string) {
	cmd := &AddCmd{}
	rest, ok := sh.parse(cmd, args)
	if !ok || !sh.signedIn() {
		return
	}
	if strings.TrimSpace(strings.Join(rest, " ")) == "" {
		fmt.Fprintln(sh.errOut, "error: project name required")
		return
	}
	d, err := cmd.draft(rest)
	if err != nil {
		fmt.Fprintf(sh.errOut, "error: %v\n", err)
		return
	}
	if _, err := sh.client.AddProject(ctx, d); err != nil {
		reportError(sh.errOut, err)
		return
	}
	sh.showResult()
}

func (sh *shell) rm(ctx context.Context, args []string) {
	ref, err := ParseProjectRef(args)
	if err != nil {
		fmt.Fprintf(sh.errOut, "error: %v\n", err)
		return
	}
	if !sh.signedIn() {
		return
	}
	project, err := ref.Resolve(sh.client.ProjectsState().Projects)
	if err != nil {
		fmt.Fprintf(sh.errOut, "error: %v\n", err)
		return
	}
	if err := sh.client.DeleteProject(ctx, project.ID); err != nil {
		reportError(sh.errOut, err)
		return
	}
	sh.showResult()
}

// showResult prints "ok" and the reloaded table in one write.
func (sh *shell) showResult() {
	var buf bytes.Buffer
	fmt.Fprintln(&buf, "ok")
	renderProjects(&buf, sh.client.ProjectsState().Projects)
	sh.out.Write(buf.Bytes())
}

func (sh *shell) login(ctx context.Context, args []string, register bool) {
	cmd := &LoginCmd{}
	rest, ok := sh.parse(cmd, args)
	if !ok {
		return
	}
	if len(rest) > 0 {
		fmt.Fprintf(sh.errOut, "error: unexpected argument: %s\n", rest[0])
		return
	}
	if st := sh.client.SessionState(); st.Status == session.Authenticated {
		fmt.Fprintf(sh.out, "already logged in as %s\n", st.Session.Email)
		return
	}
	email, password, err := sh.prompt.credentials(cmd.email, cmd.password)
	if err != nil {
		fmt.Fprintf(sh.errOut, "error: %v\n", err)
		return
	}

	if register {
		if err := sh.client.SignUp(ctx, email, password); err != nil {
			reportError(sh.errOut, err)
			return
		}
		if !awaitSignUp(ctx, sh.client, email) {
			fmt.Fprintf(sh.out, "check %s to confirm your account, then type: login\n", email)
			return
		}
		fmt.Fprintln(sh.out, "ok")
		return
	}
	if err := sh.client.SignIn(ctx, email, password); err != nil {
		reportError(sh.errOut, err)
		return
	}

	if _, err := waitForStatus(ctx, sh.client, session.Authenticated); err != nil {
		fmt.Fprintf(sh.errOut, "error: sign in was not confirmed: %v\n", err)
		return
	}
	fmt.Fprintln(sh.out, "ok")
}

func (sh *shell) logout(ctx context.Context, args []string) {
	cmd := &LogoutCmd{}
	if _, ok := sh.parse(cmd, args); !ok {
		return
	}
	if sh.client.SessionState().Status != session.Authenticated {
		fmt.Fprintln(sh.out, "not logged in")
		return
	}
	if err := sh.client.SignOut(ctx, cmd.everywhere); err != nil {
		reportError(sh.errOut, err)
		return
	}
	if _, err := waitForStatus(ctx, sh.client, session.Anonymous); err != nil {
		fmt.Fprintf(sh.errOut, "error: sign out was not confirmed: %v\n", err)
		return
	}
	fmt.Fprintln(sh.out, "ok")
}
