package supabase

import (
	"context"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"projectdesk/internal/app"
	"projectdesk/internal/devserver"
	"projectdesk/internal/notify"
	"projectdesk/internal/service"
	"projectdesk/internal/session"
)

func startTestNATSServer(t *testing.T) *natsserver.Server {
	t.Helper()
	server, err := natsserver.NewServer(&natsserver.Options{
		Host:   "127.0.0.1",
		Port:   -1,
		NoLog:  true,
		NoSigs: true,
	})
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

func connectRelay(t *testing.T, url string) *notify.NATSRelay {
	t.Helper()
	r, err := notify.Connect(url, nil)
	require.NoError(t, err)
	t.Cleanup(r.Close)
	return r
}

func TestGlobalSignOutReachesOtherClients(t *testing.T) {
	nats := startTestNATSServer(t)
	store := startDevStore(t, devserver.Config{Autoconfirm: true}, connectRelay(t, nats.ClientURL()))
	ctx := context.Background()

	laptop := newTestClient(t, store.URL, Options{Relay: connectRelay(t, nats.ClientURL())})
	laptopEvents := events(t, laptop)
	require.NoError(t, laptop.SignUp(ctx, "ada@example.com", testPassword))
	waitForEvent(t, laptopEvents, service.SignedIn)

	phone := newTestClient(t, store.URL, Options{Relay: connectRelay(t, nats.ClientURL())})
	require.NoError(t, phone.SignInWithPassword(ctx, "ada@example.com", testPassword))

	bystander := newTestClient(t, store.URL, Options{Relay: connectRelay(t, nats.ClientURL())})
	bystanderEvents := events(t, bystander)
	require.NoError(t, bystander.SignUp(ctx, "bob@example.com", testPassword))
	waitForEvent(t, bystanderEvents, service.SignedIn)

	require.NoError(t, phone.SignOut(ctx, service.ScopeGlobal))

	waitForEvent(t, laptopEvents, service.SignedOut)
	sess, err := laptop.CurrentSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, sess)

	assertNoEvent(t, bystanderEvents)
	sess, err = bystander.CurrentSession(ctx)
	require.NoError(t, err)
	assert.NotNil(t, sess)
}

func TestClientRoundTripAgainstDevStore(t *testing.T) {
	store := startDevStore(t, devserver.Config{Autoconfirm: true}, nil)
	ctx := context.Background()

	svc := newTestClient(t, store.URL, Options{})
	c := app.New(svc, app.Options{AutoLoad: true})
	defer c.Close()

	require.NoError(t, c.Start(ctx))
	assert.Equal(t, session.Anonymous, c.SessionState().Status)

	require.NoError(t, c.SignUp(ctx, "ada@example.com", testPassword))
	st, err := c.Session.WaitFor(ctx, func(s session.State) bool { return s.Status == session.Authenticated })
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", st.Session.Email)

	draft := service.DefaultDraft()
	draft.Project = "Write thesis"
	draft.DueDate = "2025-06-01"
	created, err := c.AddProject(ctx, draft)
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, service.DefaultDraft(), c.Projects.Draft())

	draft = service.DefaultDraft()
	draft.Project = "Someday"
	_, err = c.AddProject(ctx, draft)
	require.NoError(t, err)

	draft = service.DefaultDraft()
	draft.Project = "Taxes"
	draft.DueDate = "2025-04-15"
	draft.Priority = service.PriorityHigh
	_, err = c.AddProject(ctx, draft)
	require.NoError(t, err)

	state := c.ProjectsState()
	require.Len(t, state.Projects, 3)
	assert.Equal(t, []string{"Taxes", "Write thesis", "Someday"}, []string{
		state.Projects[0].Project, state.Projects[1].Project, state.Projects[2].Project,
	})
	assert.NoError(t, state.LastError)

	require.NoError(t, c.DeleteProject(ctx, created.ID))
	assert.Len(t, c.ProjectsState().Projects, 2)

	require.NoError(t, c.SignOut(ctx, false))
	require.Eventually(t, func() bool {
		return c.SessionState().Status == session.Anonymous && len(c.ProjectsState().Projects) == 0
	}, eventTimeout, 5*time.Millisecond)
}
