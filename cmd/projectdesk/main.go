// Package main is the entry point for the projectdesk CLI.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"projectdesk/internal/backend/supabase"
	"projectdesk/internal/cli"
	"projectdesk/internal/commands"
	"projectdesk/internal/config"
	"projectdesk/internal/logging"
	"projectdesk/internal/notify"
	"projectdesk/internal/service"
)

// backend is the Supabase client plus the revocation relay it listens on.
type backend struct {
	*supabase.Client
	relay notify.Relay
}

func (b *backend) Close() {
	b.Client.Close()
	b.relay.Close()
}

func newBackend(ctx context.Context, cfg *config.Config) (service.Service, error) {
	logger := logging.FromContext(ctx)

	var relay notify.Relay = notify.Nop{}
	if url := cfg.Settings.Notify.NATSURL; url != "" {
		nr, err := notify.Connect(url, logger)
		if err != nil {
			return nil, &service.AuthError{Op: "connect relay", Kind: service.AuthTransient, Err: err}
		}
		relay = nr
	}

	client, err := supabase.NewFromConfig(cfg, relay, logger)
	if err != nil {
		relay.Close()
		return nil, err
	}
	return &backend{Client: client, relay: relay}, nil
}

func main() {
	// Create context that cancels on interrupt
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, newBackend)

	code := dispatcher.Run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}
