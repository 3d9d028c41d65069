package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"projectdesk/internal/config"
	"projectdesk/internal/devserver"
	"projectdesk/internal/exitcode"
	"projectdesk/internal/logging"
	"projectdesk/internal/notify"
	"projectdesk/internal/service"
	"projectdesk/internal/sqlite"
)

const shutdownTimeout = 5 * time.Second

func init() {
	Register(&ServeCmd{})
}

// ServeCmd runs the local dev store until interrupted.
type ServeCmd struct {
	addr        string
	dbPath      string
	natsURL     string
	autoconfirm bool
	flags       *pflag.FlagSet

	// ready, when set, receives the server once it is about to listen.
	ready func(*devserver.Server)
}

func (c *ServeCmd) Name() string      { return "serve" }
func (c *ServeCmd) Aliases() []string { return nil }
func (c *ServeCmd) Synopsis() string  { return "Run the local dev store" }
func (c *ServeCmd) Usage() string {
	return "projectdesk serve [--addr <host:port>] [--db <path>] [--nats <url>] [--autoconfirm=<bool>]"
}
func (c *ServeCmd) NeedsBackend() bool { return false }

func (c *ServeCmd) RegisterFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.addr, "addr", "", "")
	fs.StringVar(&c.dbPath, "db", "", "")
	fs.StringVar(&c.natsURL, "nats", "", "")
	fs.BoolVar(&c.autoconfirm, "autoconfirm", true, "")
	c.flags = fs
}

func (c *ServeCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	logger := logging.FromContext(ctx)
	settings := cfg.Settings.Server

	addr := settings.Addr
	if c.addr != "" {
		addr = c.addr
	}
	dbPath := c.dbPath
	if dbPath == "" {
		if err := cfg.EnsureDir(); err != nil {
			fmt.Fprintf(errOut, "error: %v\n", err)
			return exitcode.BackendError
		}
		dbPath = cfg.DevStorePath()
	}
	autoconfirm := settings.Autoconfirm
	if c.flags != nil && c.flags.Changed("autoconfirm") {
		autoconfirm = c.autoconfirm
	}
	natsURL := cfg.Settings.Notify.NATSURL
	if c.natsURL != "" {
		natsURL = c.natsURL
	}

	db, err := sqlite.Open(dbPath)
	if err != nil {
		fmt.Fprintf(errOut, "error: open dev store: %v\n", err)
		return exitcode.BackendError
	}
	defer db.Close()

	var relay notify.Relay = notify.Nop{}
	if natsURL != "" {
		nr, err := notify.Connect(natsURL, logger)
		if err != nil {
			fmt.Fprintf(errOut, "error: %v\n", err)
			return exitcode.BackendError
		}
		defer nr.Close()
		relay = nr
	}

	srv, err := devserver.NewServer(db, relay, logger, devserver.Config{
		AnonKey:        settings.AnonKey,
		Autoconfirm:    autoconfirm,
		AccessTokenTTL: settings.AccessTokenTTL,
	})
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}
	if c.ready != nil {
		c.ready(srv)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(addr)
	}()
	if !cfg.Quiet {
		fmt.Fprintf(out, "dev store listening on http://%s (db: %s)\n", addr, dbPath)
	}

	select {
	case err := <-errCh:
		if err != nil {
			fmt.Fprintf(errOut, "error: %v\n", err)
			return exitcode.BackendError
		}
		return exitcode.Success
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("dev store shutdown", zap.Error(err))
	}
	<-errCh
	return exitcode.Success
}
