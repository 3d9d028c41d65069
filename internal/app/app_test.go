package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"projectdesk/internal/app"
	"projectdesk/internal/service"
	"projectdesk/internal/session"
	"projectdesk/internal/testutil"
)

func TestAutoLoadFollowsSession(t *testing.T) {
	svc := testutil.NewFakeService()
	uid := svc.AddUser("a@example.com", "pw")
	svc.AddProject(service.Project{OwnerID: uid, Project: "Garden"})

	c := app.New(svc, app.Options{AutoLoad: true})
	defer c.Close()
	require.NoError(t, c.Start(context.Background()))
	assert.Equal(t, session.Anonymous, c.SessionState().Status)

	require.NoError(t, c.SignIn(context.Background(), "a@example.com", "pw"))
	require.Eventually(t, func() bool {
		return len(c.ProjectsState().Projects) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "Garden", c.ProjectsState().Projects[0].Project)

	require.NoError(t, c.SignOut(context.Background(), false))
	require.Eventually(t, func() bool {
		return c.SessionState().Status == session.Anonymous && len(c.ProjectsState().Projects) == 0
	}, 2*time.Second, 5*time.Millisecond)
}

func TestWithoutAutoLoadNothingIsFetched(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.AddUser("a@example.com", "pw")

	c := app.New(svc, app.Options{})
	defer c.Close()

	require.NoError(t, c.SignIn(context.Background(), "a@example.com", "pw"))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, svc.Calls("QueryProjects"))

	require.NoError(t, c.LoadProjects(context.Background()))
	assert.Equal(t, 1, svc.Calls("QueryProjects"))
}

func TestIntentsRoundTrip(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.AddUser("a@example.com", "pw")

	c := app.New(svc, app.Options{})
	defer c.Close()
	require.NoError(t, c.SignIn(context.Background(), "a@example.com", "pw"))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := c.Session.WaitFor(ctx, func(s session.State) bool { return s.Status == session.Authenticated })
	require.NoError(t, err)

	created, err := c.AddProject(context.Background(), service.Draft{Project: "Taxes", DueDate: "2025-04-15"})
	require.NoError(t, err)
	require.Len(t, c.ProjectsState().Projects, 1)

	require.NoError(t, c.DeleteProject(context.Background(), created.ID))
	assert.Empty(t, c.ProjectsState().Projects)
}

func TestCloseReleasesSubscriptions(t *testing.T) {
	svc := testutil.NewFakeService()
	c := app.New(svc, app.Options{AutoLoad: true})
	assert.Equal(t, 1, svc.Subscribers())

	c.Close()
	c.Close()
	assert.Equal(t, 0, svc.Subscribers())

	svc.Emit(service.AuthEvent{Kind: service.SignedIn, Session: &service.Session{UserID: "u"}})
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, svc.Calls("QueryProjects"))
}
