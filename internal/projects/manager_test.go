package projects_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"projectdesk/internal/projects"
	"projectdesk/internal/service"
	"projectdesk/internal/testutil"
)

const userID = "user-1"

type fixedSession struct {
	id string
}

func (s fixedSession) UserID() (string, bool) { return s.id, s.id != "" }

func date(s string) *service.Date {
	d, err := service.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return &d
}

func newManager(t *testing.T) (*projects.Manager, *testutil.FakeService) {
	t.Helper()
	svc := testutil.NewFakeService()
	svc.SetSession(&service.Session{UserID: userID})
	m := projects.New(svc, fixedSession{id: userID}, nil)
	t.Cleanup(m.Close)
	return m, svc
}

func names(ps []service.Project) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Project
	}
	return out
}

func TestLoadOrdersByDueDateNullsLast(t *testing.T) {
	m, svc := newManager(t)
	svc.AddProject(service.Project{OwnerID: userID, Project: "undated A"})
	svc.AddProject(service.Project{OwnerID: userID, Project: "june", DueDate: date("2025-06-01")})
	svc.AddProject(service.Project{OwnerID: userID, Project: "undated B"})
	svc.AddProject(service.Project{OwnerID: userID, Project: "jan", DueDate: date("2025-01-15")})
	svc.AddProject(service.Project{OwnerID: userID, Project: "june again", DueDate: date("2025-06-01")})
	svc.AddProject(service.Project{OwnerID: "someone-else", Project: "hidden"})

	require.NoError(t, m.Load(context.Background()))

	s := m.State()
	assert.False(t, s.Loading)
	assert.NoError(t, s.LastError)
	assert.Equal(t, []string{"jan", "june", "june again", "undated A", "undated B"}, names(s.Projects))

	for i := 1; i < len(s.Projects); i++ {
		assert.LessOrEqual(t, service.CompareDue(s.Projects[i-1].DueDate, s.Projects[i].DueDate), 0)
	}
}

func TestLoadRequiresSession(t *testing.T) {
	svc := testutil.NewFakeService()
	m := projects.New(svc, fixedSession{}, nil)
	defer m.Close()

	err := m.Load(context.Background())
	require.Error(t, err)
	assert.True(t, service.IsAuthKind(err, service.AuthNotAuthenticated))
	assert.Equal(t, err, m.State().LastError)
	assert.Equal(t, 0, svc.Calls("QueryProjects"))
}

func TestLoadFailureKeepsPreviousCollection(t *testing.T) {
	m, svc := newManager(t)
	svc.AddProject(service.Project{OwnerID: userID, Project: "keep me"})
	require.NoError(t, m.Load(context.Background()))

	svc.QueryErr = &service.StoreError{Op: "query projects", Kind: service.StoreTransient}
	err := m.Load(context.Background())
	require.Error(t, err)

	s := m.State()
	assert.Equal(t, []string{"keep me"}, names(s.Projects))
	assert.False(t, s.Loading)
	assert.True(t, service.IsTransient(s.LastError))

	svc.QueryErr = nil
	require.NoError(t, m.Load(context.Background()))
	assert.NoError(t, m.State().LastError)
}

func TestStaleLoadIsDiscarded(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	svc := testutil.NewFakeService()
	m := projects.New(svc, fixedSession{id: userID}, zap.New(core))
	defer m.Close()

	held := svc.HoldQueries()

	errA := make(chan error, 1)
	go func() { errA <- m.Load(context.Background()) }()
	queryA := <-held

	errB := make(chan error, 1)
	go func() { errB <- m.Load(context.Background()) }()
	queryB := <-held

	assert.True(t, m.State().Loading)

	queryB.Resolve([]service.Project{{ID: "b", OwnerID: userID, Project: "from B"}}, nil)
	require.NoError(t, <-errB)
	assert.False(t, m.State().Loading)
	assert.Equal(t, []string{"from B"}, names(m.State().Projects))

	queryA.Resolve([]service.Project{{ID: "a", OwnerID: userID, Project: "from A"}}, nil)
	require.NoError(t, <-errA)

	s := m.State()
	assert.Equal(t, []string{"from B"}, names(s.Projects))
	assert.False(t, s.Loading)
	assert.NoError(t, s.LastError)
	assert.Equal(t, 1, logs.FilterMessage("discarding stale load").Len())
}

func TestStaleFailureIsSilent(t *testing.T) {
	m, svc := newManager(t)
	held := svc.HoldQueries()

	errA := make(chan error, 1)
	go func() { errA <- m.Load(context.Background()) }()
	queryA := <-held

	errB := make(chan error, 1)
	go func() { errB <- m.Load(context.Background()) }()
	queryB := <-held

	queryB.Resolve(nil, nil)
	require.NoError(t, <-errB)

	queryA.Resolve(nil, &service.StoreError{Op: "query projects", Kind: service.StoreTransient})
	require.NoError(t, <-errA)
	assert.NoError(t, m.State().LastError)
}

func TestLoadingStaysTrueUntilLatestCompletes(t *testing.T) {
	m, svc := newManager(t)
	held := svc.HoldQueries()

	errA := make(chan error, 1)
	go func() { errA <- m.Load(context.Background()) }()
	queryA := <-held

	errB := make(chan error, 1)
	go func() { errB <- m.Load(context.Background()) }()
	queryB := <-held

	queryA.Resolve(nil, nil)
	require.NoError(t, <-errA)
	assert.True(t, m.State().Loading)

	queryB.Resolve(nil, nil)
	require.NoError(t, <-errB)
	assert.False(t, m.State().Loading)
}

func TestAddReloadsAndResetsDraft(t *testing.T) {
	m, svc := newManager(t)

	draft := service.Draft{
		Project:  "Garden",
		Area:     "Home",
		Status:   service.StatusInProgress,
		DueDate:  "2025-05-01",
		Priority: service.PriorityHigh,
	}
	created, err := m.Add(context.Background(), draft)
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, userID, created.OwnerID)

	assert.Equal(t, service.DefaultDraft(), m.Draft())
	assert.Equal(t, 1, svc.Calls("InsertProject"))
	assert.Equal(t, 1, svc.Calls("QueryProjects"))

	s := m.State()
	require.Len(t, s.Projects, 1)
	assert.Equal(t, created.ID, s.Projects[0].ID)
	assert.Equal(t, "Garden", s.Projects[0].Project)
	assert.Equal(t, "2025-05-01", s.Projects[0].DueDate.String())

	p, ok := m.Find(created.ID)
	assert.True(t, ok)
	assert.Equal(t, "Home", p.Area)
}

func TestAddRejectsEmptyProject(t *testing.T) {
	m, svc := newManager(t)

	draft := service.Draft{Project: "  ", Area: "Work"}
	_, err := m.Add(context.Background(), draft)
	require.Error(t, err)
	assert.True(t, service.IsStoreKind(err, service.StoreValidation))
	assert.Equal(t, 0, svc.TotalCalls())
	assert.Equal(t, draft, m.Draft())
	assert.Equal(t, err, m.State().LastError)
}

func TestAddRejectsUnknownEnumsLocally(t *testing.T) {
	m, svc := newManager(t)

	for _, draft := range []service.Draft{
		{Project: "Taxes", Status: "Someday"},
		{Project: "Taxes", Priority: "Urgent"},
	} {
		_, err := m.Add(context.Background(), draft)
		require.Error(t, err)
		assert.True(t, service.IsStoreKind(err, service.StoreValidation), "got %v", err)
	}
	assert.Equal(t, 0, svc.TotalCalls())
}

func TestAddFailureKeepsDraft(t *testing.T) {
	m, svc := newManager(t)
	svc.InsertErr = &service.StoreError{Op: "insert project", Kind: service.StorePermissionDenied}

	draft := service.Draft{Project: "Taxes", Status: service.StatusNotStarted, Priority: service.PriorityLow}
	_, err := m.Add(context.Background(), draft)
	require.Error(t, err)
	assert.True(t, service.IsStoreKind(err, service.StorePermissionDenied))
	assert.Equal(t, draft, m.Draft())
	assert.Equal(t, 0, svc.Calls("QueryProjects"))
	assert.Empty(t, m.State().Projects)
}

func TestAddReloadFailureReturnsCreated(t *testing.T) {
	m, svc := newManager(t)
	svc.QueryErr = &service.StoreError{Op: "query projects", Kind: service.StoreTransient}

	created, err := m.Add(context.Background(), service.Draft{Project: "Taxes"})
	require.Error(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, service.DefaultDraft(), m.Draft())
	assert.Empty(t, m.State().Projects)
}

func TestSubmitDraft(t *testing.T) {
	m, _ := newManager(t)
	m.SetDraft(service.Draft{Project: "Write report", Status: service.StatusBlocked, Priority: service.PriorityHigh})

	created, err := m.SubmitDraft(context.Background())
	require.NoError(t, err)
	assert.Equal(t, service.StatusBlocked, created.Status)
	assert.Equal(t, service.DefaultDraft(), m.Draft())
}

func TestDeleteUnknownIDIsRejectedLocally(t *testing.T) {
	m, svc := newManager(t)
	svc.AddProject(service.Project{ID: "p-stored", OwnerID: userID, Project: "stored"})
	require.NoError(t, m.Load(context.Background()))
	before := svc.TotalCalls()

	err := m.Delete(context.Background(), "does-not-exist")
	require.Error(t, err)
	assert.True(t, service.IsStoreKind(err, service.StoreValidation))
	assert.Equal(t, before, svc.TotalCalls())
	assert.Len(t, m.State().Projects, 1)
}

func TestDeleteReloads(t *testing.T) {
	m, svc := newManager(t)
	a := svc.AddProject(service.Project{OwnerID: userID, Project: "a"})
	svc.AddProject(service.Project{OwnerID: userID, Project: "b"})
	require.NoError(t, m.Load(context.Background()))

	require.NoError(t, m.Delete(context.Background(), a.ID))
	assert.Equal(t, 1, svc.Calls("DeleteProject"))
	assert.Equal(t, 2, svc.Calls("QueryProjects"))
	assert.Equal(t, []string{"b"}, names(m.State().Projects))
}

func TestDeleteFailureKeepsCollection(t *testing.T) {
	m, svc := newManager(t)
	a := svc.AddProject(service.Project{OwnerID: userID, Project: "a"})
	require.NoError(t, m.Load(context.Background()))

	svc.DeleteErr = &service.StoreError{Op: "delete project", Kind: service.StorePermissionDenied}
	err := m.Delete(context.Background(), a.ID)
	require.Error(t, err)

	s := m.State()
	assert.Equal(t, []string{"a"}, names(s.Projects))
	assert.Equal(t, err, s.LastError)
	assert.Equal(t, 1, svc.Calls("QueryProjects"))
}

func TestClearDropsInFlightLoad(t *testing.T) {
	m, svc := newManager(t)
	held := svc.HoldQueries()

	done := make(chan error, 1)
	go func() { done <- m.Load(context.Background()) }()
	q := <-held

	m.Clear()
	q.Resolve([]service.Project{{ID: "x", OwnerID: userID, Project: "late"}}, nil)
	require.NoError(t, <-done)
	assert.Empty(t, m.State().Projects)
	assert.False(t, m.State().Loading)
}

func TestLoadResolvedAfterCloseIsIgnored(t *testing.T) {
	m, svc := newManager(t)
	held := svc.HoldQueries()

	done := make(chan error, 1)
	go func() { done <- m.Load(context.Background()) }()
	q := <-held

	before := m.State()
	got := make(chan projects.State, 1)
	m.Subscribe(func(s projects.State) { got <- s })
	m.Close()

	q.Resolve([]service.Project{{ID: "x", OwnerID: userID, Project: "late"}}, nil)
	require.NoError(t, <-done)
	assert.Equal(t, before, m.State())
	assert.Empty(t, m.State().Projects)
	select {
	case s := <-got:
		t.Fatalf("unexpected notification after close: %+v", s)
	default:
	}
}

func TestAddReloadResolvedAfterClose(t *testing.T) {
	m, svc := newManager(t)
	held := svc.HoldQueries()

	type result struct {
		created service.Project
		err     error
	}
	done := make(chan result, 1)
	go func() {
		created, err := m.Add(context.Background(), service.Draft{Project: "Garden"})
		done <- result{created, err}
	}()
	q := <-held

	before := m.State()
	m.Close()
	q.ResolveCurrent()

	r := <-done
	require.NoError(t, r.err)
	assert.NotEmpty(t, r.created.ID)
	assert.Equal(t, 1, svc.Calls("InsertProject"))
	assert.Equal(t, before, m.State())
	assert.Empty(t, m.State().Projects)
}

func TestDeleteReloadResolvedAfterClose(t *testing.T) {
	m, svc := newManager(t)
	a := svc.AddProject(service.Project{OwnerID: userID, Project: "a"})
	require.NoError(t, m.Load(context.Background()))
	held := svc.HoldQueries()

	done := make(chan error, 1)
	go func() { done <- m.Delete(context.Background(), a.ID) }()
	q := <-held

	m.Close()
	q.Resolve(nil, nil)

	require.NoError(t, <-done)
	assert.Equal(t, 1, svc.Calls("DeleteProject"))
	assert.Equal(t, []string{"a"}, names(m.State().Projects))
}

func TestSubscribeAndClose(t *testing.T) {
	m, svc := newManager(t)
	svc.AddProject(service.Project{OwnerID: userID, Project: "a"})

	got := make(chan projects.State, 8)
	cancel := m.Subscribe(func(s projects.State) { got <- s })
	defer cancel()

	require.NoError(t, m.Load(context.Background()))

	select {
	case s := <-got:
		assert.True(t, s.Loading)
	case <-time.After(time.Second):
		t.Fatal("no loading notification")
	}
	select {
	case s := <-got:
		assert.False(t, s.Loading)
		assert.Len(t, s.Projects, 1)
	case <-time.After(time.Second):
		t.Fatal("no loaded notification")
	}

	m.Close()
	m.Close()
	assert.ErrorIs(t, m.Load(context.Background()), projects.ErrClosed)
	_, err := m.Add(context.Background(), service.Draft{Project: "x"})
	assert.ErrorIs(t, err, projects.ErrClosed)
}
