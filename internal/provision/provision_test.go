package provision

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dmitrijs2005/lazyboy/internal/common"
	"github.com/dmitrijs2005/lazyboy/internal/handles"
	"github.com/dmitrijs2005/lazyboy/internal/logging"
	"github.com/dmitrijs2005/lazyboy/internal/models"
	"github.com/dmitrijs2005/lazyboy/internal/status"
	"github.com/dmitrijs2005/lazyboy/internal/store"
	"github.com/dmitrijs2005/lazyboy/internal/store/memory"
	"github.com/dmitrijs2005/lazyboy/internal/views"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUnreachable = &store.Error{StatusCode: 503, Code: "unavailable", Reason: "connection reset"}

// flakyConn wraps a real connection and fails chosen databases.
type flakyConn struct {
	store.Connection
	existsErr map[string]bool
	createErr map[string]bool
}

func (f *flakyConn) Database(name string) store.Database {
	return &flakyDB{Database: f.Connection.Database(name), conn: f}
}

type flakyDB struct {
	store.Database
	conn *flakyConn
}

func (d *flakyDB) Exists(ctx context.Context) (bool, error) {
	if d.conn.existsErr[d.Name()] {
		return false, errUnreachable
	}
	return d.Database.Exists(ctx)
}

func (d *flakyDB) Create(ctx context.Context) error {
	if d.conn.createErr[d.Name()] {
		return errUnreachable
	}
	return d.Database.Create(ctx)
}

type countingRecorder struct {
	mu   sync.Mutex
	seen map[status.CreateStatus]int
}

func (c *countingRecorder) ObserveProvision(s status.CreateStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seen == nil {
		c.seen = make(map[status.CreateStatus]int)
	}
	c.seen[s]++
}

func setup(t *testing.T, desired map[string]models.DesignViews) (*Provisioner, *handles.Cache, *flakyConn) {
	t.Helper()
	conn := &flakyConn{
		Connection: memory.NewConnection(nil),
		existsErr:  map[string]bool{},
		createErr:  map[string]bool{},
	}
	cache := handles.New("lazy")
	cache.Connect(conn)
	p := New(cache, views.NewReconciler(desired, nil), logging.NewNop())
	return p, cache, conn
}

func widgetViews(version int) map[string]models.DesignViews {
	return map[string]models.DesignViews{
		"lazy_widgets": {
			Version: version,
			Type:    "javascript",
			Views:   map[string]models.View{"by_name": {Map: "function(doc){ emit(doc.name, null); }"}},
		},
	}
}

func TestInitializeDatabase_WidgetsLifecycle(t *testing.T) {
	ctx := context.Background()
	p, cache, _ := setup(t, widgetViews(1))

	s, err := p.InitializeDatabase(ctx, "widgets")
	require.NoError(t, err)
	assert.Equal(t, status.Created, s)

	s, err = p.InitializeDatabase(ctx, "widgets")
	require.NoError(t, err)
	assert.Equal(t, status.UpToDate, s)

	bumped := New(cache, views.NewReconciler(widgetViews(2), nil), nil)
	s, err = bumped.InitializeDatabase(ctx, "widgets")
	require.NoError(t, err)
	assert.Equal(t, status.Created, s)
}

func TestInitializeDatabase_ExistingWithoutViews(t *testing.T) {
	ctx := context.Background()
	p, cache, _ := setup(t, nil)

	db, err := cache.Resolve("gadgets")
	require.NoError(t, err)
	require.NoError(t, db.Create(ctx))

	s, err := p.InitializeDatabase(ctx, "gadgets")
	require.NoError(t, err)
	assert.Equal(t, status.CreatedWithoutViews, s)
}

func TestInitializeDatabase_Failures(t *testing.T) {
	ctx := context.Background()
	p, _, conn := setup(t, nil)
	conn.existsErr["lazy_a"] = true
	conn.createErr["lazy_b"] = true

	s, err := p.InitializeDatabase(ctx, "a")
	assert.Equal(t, status.Error, s)
	require.ErrorIs(t, err, common.ErrTransport)

	s, err = p.InitializeDatabase(ctx, "b")
	assert.Equal(t, status.Error, s)
	require.ErrorContains(t, err, "create lazy_b")

	s, err = p.InitializeDatabase(ctx, "")
	assert.Equal(t, status.Error, s)
	require.ErrorIs(t, err, common.ErrInvalidName)
}

func TestInitializeDatabase_NotConnected(t *testing.T) {
	p := New(handles.New("lazy"), views.NewReconciler(nil, nil), nil)

	s, err := p.InitializeDatabase(context.Background(), "widgets")
	assert.Equal(t, status.NotConnected, s)
	require.ErrorIs(t, err, common.ErrNotConnected)
}

func TestInitializeAll_NWithKFailures(t *testing.T) {
	p, _, conn := setup(t, nil)
	conn.existsErr["lazy_b"] = true
	conn.existsErr["lazy_d"] = true

	names := []string{"a", "b", "c", "d", "e"}
	report, err := p.InitializeAll(context.Background(), names)
	require.ErrorIs(t, err, common.ErrSomeDatabasesFailed)

	assert.Equal(t, len(names), len(report.Success)+len(report.Fail))
	require.Len(t, report.Fail, 2)
	assert.Equal(t, "lazy_b", report.Fail[0].Name)
	assert.Equal(t, "lazy_d", report.Fail[1].Name)
	assert.NotEmpty(t, report.Fail[0].Error)
	for _, o := range report.Success {
		assert.Equal(t, status.CreatedWithoutViews, o.Status)
		assert.Empty(t, o.Error)
	}
}

func TestInitializeAll_Duplicates(t *testing.T) {
	p, _, _ := setup(t, widgetViews(1))

	report, err := p.InitializeAll(context.Background(), []string{"widgets", "widgets"})
	require.NoError(t, err)
	require.Len(t, report.Success, 2)
	assert.Equal(t, status.Created, report.Success[0].Status)
	assert.Equal(t, status.UpToDate, report.Success[1].Status)
	assert.Empty(t, report.Fail)
}

func TestInitializeAll_NotConnected(t *testing.T) {
	rec := &countingRecorder{}
	p := New(handles.New("lazy"), views.NewReconciler(nil, nil), nil, WithRecorder(rec))

	report, err := p.InitializeAll(context.Background(), []string{"a", "b"})
	require.ErrorIs(t, err, common.ErrSomeDatabasesFailed)
	assert.Empty(t, report.Success)
	require.Len(t, report.Fail, 2)
	assert.Equal(t, status.NotConnected, report.Fail[0].Status)
	assert.Equal(t, 2, rec.seen[status.NotConnected])
}

func TestInitializeAll_Empty(t *testing.T) {
	p, _, _ := setup(t, nil)

	report, err := p.InitializeAll(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, report.Len())
}

func TestInitializeAllConcurrent_MatchesSequential(t *testing.T) {
	names := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	fail := []string{"lazy_c", "lazy_f", "lazy_h"}

	seq, _, seqConn := setup(t, nil)
	con, _, conConn := setup(t, nil)
	for _, n := range fail {
		seqConn.existsErr[n] = true
		conConn.existsErr[n] = true
	}

	want, wantErr := seq.InitializeAll(context.Background(), names)
	got, gotErr := con.InitializeAllConcurrent(context.Background(), names, 4)

	require.ErrorIs(t, wantErr, common.ErrSomeDatabasesFailed)
	require.ErrorIs(t, gotErr, common.ErrSomeDatabasesFailed)
	assert.Equal(t, want, got)
	assert.Len(t, got.Fail, len(fail))
}

func TestInitializeAllConcurrent_LimitOneIsSequential(t *testing.T) {
	rec := &countingRecorder{}
	p, cache, _ := setup(t, nil)
	p = New(cache, views.NewReconciler(nil, nil), nil, WithRecorder(rec))

	report, err := p.InitializeAllConcurrent(context.Background(), []string{"a", "b"}, 1)
	require.NoError(t, err)
	assert.Len(t, report.Success, 2)
	assert.Equal(t, 2, rec.seen[status.CreatedWithoutViews])
}

func TestDatabaseMachine_Transitions(t *testing.T) {
	ctx := context.Background()
	m := newDatabaseMachine(logging.NewNop())
	assert.Equal(t, StatePending, m.Current())

	require.Error(t, m.Event(ctx, eventCreate))
	require.NoError(t, m.Event(ctx, eventCheck))
	require.NoError(t, m.Event(ctx, eventReconcile))
	assert.Equal(t, StateReconciling, m.Current())
	require.NoError(t, m.Event(ctx, eventResolve))
	assert.Equal(t, StateResolved, m.Current())
	require.Error(t, m.Event(ctx, eventCheck))
}

func TestRunMachine_Transitions(t *testing.T) {
	ctx := context.Background()
	m := newRunMachine(logging.NewNop())

	require.Error(t, m.Event(ctx, eventFinish))
	require.NoError(t, m.Event(ctx, eventStart))
	assert.Equal(t, StateDraining, m.Current())
	require.NoError(t, m.Event(ctx, eventFinish))
	assert.Equal(t, StateDone, m.Current())
}

func TestReportErr(t *testing.T) {
	require.NoError(t, reportErr(models.Report{}))
	err := reportErr(models.Report{Fail: []models.Outcome{{Name: "x", Status: status.Error}}})
	assert.True(t, errors.Is(err, common.ErrSomeDatabasesFailed))
}
