// Package notify carries session revocations from the store to running clients.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const flushTimeout = 2 * time.Second

// Revocation announces that sessions of a user were revoked.
type Revocation struct {
	UserID string    `json:"user_id"`
	Scope  string    `json:"scope"`
	At     time.Time `json:"at"`
}

// Relay publishes and delivers revocations.
type Relay interface {
	// PublishRevocation announces r to every subscriber of r.UserID.
	PublishRevocation(ctx context.Context, r Revocation) error

	// SubscribeRevocations delivers revocations for userID until cancel is called.
	SubscribeRevocations(userID string, fn func(Revocation)) (cancel func(), err error)

	// Close releases the relay's connection.
	Close()
}

// Subject returns the NATS subject carrying revocations of userID.
func Subject(userID string) string {
	return "projectdesk.auth." + subjectToken(userID) + ".revoked"
}

// subjectToken makes s safe as a single NATS subject token.
func subjectToken(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, s)
}

// NATSRelay is a Relay over a NATS connection.
type NATSRelay struct {
	nc     *nats.Conn
	owned  bool
	logger *zap.Logger
}

// Connect dials url and returns a relay owning the connection.
func Connect(url string, logger *zap.Logger) (*NATSRelay, error) {
	nc, err := nats.Connect(url, nats.Name("projectdesk"))
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	r := NewNATSRelay(nc, logger)
	r.owned = true
	return r, nil
}

// NewNATSRelay wraps an existing connection. Close leaves nc open.
func NewNATSRelay(nc *nats.Conn, logger *zap.Logger) *NATSRelay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NATSRelay{nc: nc, logger: logger.Named("notify")}
}

// PublishRevocation implements Relay.
func (r *NATSRelay) PublishRevocation(ctx context.Context, rev Revocation) error {
	data, err := json.Marshal(rev)
	if err != nil {
		return fmt.Errorf("marshal revocation: %w", err)
	}
	subject := Subject(rev.UserID)
	if err := r.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	// Flush so the notice is on the wire before the caller responds.
	// FlushWithContext rejects contexts without a deadline.
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, flushTimeout)
		defer cancel()
	}
	if err := r.nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush %s: %w", subject, err)
	}
	r.logger.Debug("published revocation", zap.String("subject", subject), zap.String("scope", rev.Scope))
	return nil
}

// SubscribeRevocations implements Relay.
func (r *NATSRelay) SubscribeRevocations(userID string, fn func(Revocation)) (func(), error) {
	subject := Subject(userID)
	sub, err := r.nc.Subscribe(subject, func(msg *nats.Msg) {
		var rev Revocation
		if err := json.Unmarshal(msg.Data, &rev); err != nil {
			r.logger.Warn("dropping malformed revocation", zap.String("subject", msg.Subject), zap.Error(err))
			return
		}
		fn(rev)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}
	// Make sure the server knows about the interest before returning.
	if err := r.nc.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("flush subscription %s: %w", subject, err)
	}
	return func() {
		_ = sub.Unsubscribe()
	}, nil
}

// Close implements Relay.
func (r *NATSRelay) Close() {
	if r.owned {
		r.nc.Close()
	}
}

// Nop is a Relay that drops every revocation.
type Nop struct{}

func (Nop) PublishRevocation(context.Context, Revocation) error { return nil }

func (Nop) SubscribeRevocations(string, func(Revocation)) (func(), error) {
	return func() {}, nil
}

func (Nop) Close() {}
