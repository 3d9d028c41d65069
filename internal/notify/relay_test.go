package notify

import (
	"context"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startTestNATSServer starts an embedded NATS server for testing.
func startTestNATSServer(t *testing.T) *natsserver.Server {
	opts := &natsserver.Options{
		Host:   "127.0.0.1",
		Port:   -1, // Random port
		NoLog:  true,
		NoSigs: true,
	}

	server, err := natsserver.NewServer(opts)
	require.NoError(t, err)

	go server.Start()

	if !server.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready")
	}

	t.Cleanup(func() {
		server.Shutdown()
		server.WaitForShutdown()
	})

	return server
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "projectdesk.auth.abc-123.revoked", Subject("abc-123"))
	assert.Equal(t, "projectdesk.auth.a_b_c.revoked", Subject("a.b*c"))
}

func TestNATSRelayDeliversToUser(t *testing.T) {
	server := startTestNATSServer(t)

	publisher, err := Connect(server.ClientURL(), nil)
	require.NoError(t, err)
	defer publisher.Close()

	nc, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	defer nc.Close()
	subscriber := NewNATSRelay(nc, nil)

	got := make(chan Revocation, 4)
	cancel, err := subscriber.SubscribeRevocations("user-1", func(r Revocation) { got <- r })
	require.NoError(t, err)

	other := make(chan Revocation, 4)
	cancelOther, err := subscriber.SubscribeRevocations("user-2", func(r Revocation) { other <- r })
	require.NoError(t, err)
	defer cancelOther()

	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, publisher.PublishRevocation(context.Background(), Revocation{UserID: "user-1", Scope: "global", At: at}))

	select {
	case r := <-got:
		assert.Equal(t, "user-1", r.UserID)
		assert.Equal(t, "global", r.Scope)
		assert.True(t, at.Equal(r.At))
	case <-time.After(2 * time.Second):
		t.Fatal("revocation not delivered")
	}
	assert.Empty(t, other)

	cancel()
	require.NoError(t, publisher.PublishRevocation(context.Background(), Revocation{UserID: "user-1", Scope: "global"}))
	select {
	case <-got:
		t.Fatal("delivered after cancel")
	case <-time.After(50 * time.Millisecond):
	}

	subscriber.Close()
	assert.False(t, nc.IsClosed())
}

func TestNop(t *testing.T) {
	var r Relay = Nop{}
	require.NoError(t, r.PublishRevocation(context.Background(), Revocation{UserID: "u"}))
	cancel, err := r.SubscribeRevocations("u", func(Revocation) { t.Fatal("unexpected delivery") })
	require.NoError(t, err)
	cancel()
	r.Close()
}
