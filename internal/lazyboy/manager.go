// Package lazyboy is the entry point for callers: it registers logical
// databases, provisions them with their view sets and runs entry operations
// against them.
package lazyboy

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/dmitrijs2005/lazyboy/internal/common"
	"github.com/dmitrijs2005/lazyboy/internal/config"
	"github.com/dmitrijs2005/lazyboy/internal/entries"
	"github.com/dmitrijs2005/lazyboy/internal/handles"
	"github.com/dmitrijs2005/lazyboy/internal/logging"
	"github.com/dmitrijs2005/lazyboy/internal/metrics"
	"github.com/dmitrijs2005/lazyboy/internal/models"
	"github.com/dmitrijs2005/lazyboy/internal/provision"
	"github.com/dmitrijs2005/lazyboy/internal/status"
	"github.com/dmitrijs2005/lazyboy/internal/store"
	"github.com/dmitrijs2005/lazyboy/internal/views"
	"github.com/hashicorp/go-multierror"
)

// Manager owns the store connection and the handles of the databases it
// manages.
type Manager struct {
	cfg         config.Config
	dial        Dialer
	handles     *handles.Cache
	views       *views.Reconciler
	provisioner *provision.Provisioner
	entries     *entries.Service
	logger      logging.Logger

	mu    sync.Mutex
	names []string
}

type Option func(*managerOptions)

type managerOptions struct {
	metrics *metrics.Metrics
}

// WithMetrics records provisioning and entry operations in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *managerOptions) {
		o.metrics = m
	}
}

// New builds a Manager and registers cfg.Databases. With cfg.AutoConnect it
// also connects and opens a handle for every registered database.
func New(ctx context.Context, cfg config.Config, dial Dialer, logger logging.Logger, opts ...Option) (*Manager, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	var o managerOptions
	for _, opt := range opts {
		opt(&o)
	}

	cache := handles.New(cfg.Prefix)
	reconciler := views.NewReconciler(cfg.Views, logger)

	var (
		provOpts    []provision.Option
		entryRecord entries.Recorder
	)
	if o.metrics != nil {
		provOpts = append(provOpts, provision.WithRecorder(o.metrics))
		entryRecord = o.metrics
	}

	m := &Manager{
		cfg:         cfg,
		dial:        dial,
		handles:     cache,
		views:       reconciler,
		provisioner: provision.New(cache, reconciler, logger, provOpts...),
		entries:     entries.NewService(cache, entryRecord, logger),
		logger:      logger.With("module", "lazyboy"),
	}

	if err := m.Databases(cfg.Databases...); err != nil {
		return nil, err
	}
	if cfg.AutoConnect {
		if err := m.Connect(ctx); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Connect opens the store connection and a handle for every registered
// database. A previous connection is closed and replaced.
func (m *Manager) Connect(ctx context.Context) error {
	conn, err := m.dial(ctx, m.cfg)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	if err := m.handles.Connect(conn); err != nil {
		m.logger.Warn(ctx, "previous connection not closed cleanly", "error", err)
	}
	m.logger.Info(ctx, "connected", "backend", m.cfg.Backend)

	for _, name := range m.Registered() {
		if _, err := m.handles.Resolve(name); err != nil {
			return err
		}
	}
	return nil
}

// HasConnection reports whether a store connection is open.
func (m *Manager) HasConnection() bool {
	return m.handles.Connected()
}

// Databases registers logical names for InitializeAllDatabases. Duplicates
// are kept. When connected, their handles are opened right away.
func (m *Manager) Databases(names ...string) error {
	formatted := make([]string, 0, len(names))
	for _, name := range names {
		full, err := m.handles.Format(name)
		if err != nil {
			return err
		}
		formatted = append(formatted, full)
	}

	m.mu.Lock()
	m.names = append(m.names, formatted...)
	m.mu.Unlock()

	if !m.HasConnection() {
		return nil
	}
	for _, name := range formatted {
		if _, err := m.handles.Resolve(name); err != nil {
			return err
		}
	}
	return nil
}

// Registered returns the registered database names.
func (m *Manager) Registered() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.names)
}

// InitializeAllDatabases provisions every registered database and returns
// the report of this run. With Concurrency > 1 databases are provisioned in
// parallel; the report keeps registration order either way.
func (m *Manager) InitializeAllDatabases(ctx context.Context) (models.Report, error) {
	names := m.Registered()
	if m.cfg.Concurrency > 1 {
		return m.provisioner.InitializeAllConcurrent(ctx, names, m.cfg.Concurrency)
	}
	return m.provisioner.InitializeAll(ctx, names)
}

// InitializeDatabase provisions a single database.
func (m *Manager) InitializeDatabase(ctx context.Context, name string) (status.CreateStatus, error) {
	return m.provisioner.InitializeDatabase(ctx, name)
}

func (m *Manager) AddEntry(ctx context.Context, db string, e *models.Entry) (status.EntryStatus, *models.Entry, error) {
	return m.entries.Create(ctx, db, e)
}

func (m *Manager) GetEntry(ctx context.Context, db, id string) (*models.Entry, error) {
	return m.entries.Get(ctx, db, id)
}

func (m *Manager) UpdateEntry(ctx context.Context, db string, e *models.Entry) (*models.Entry, error) {
	return m.entries.Update(ctx, db, e)
}

// DeleteEntry flags the entry deleted, or removes it for good when hard is
// set.
func (m *Manager) DeleteEntry(ctx context.Context, db string, e *models.Entry, hard bool) error {
	return m.entries.Delete(ctx, db, e, hard)
}

// GetViewResult queries view viewName of db.
func (m *Manager) GetViewResult(ctx context.Context, db, viewName string, q store.ViewQuery) (*store.ViewResult, error) {
	return m.entries.Query(ctx, db, viewName, q)
}

// managed returns the open handle of db.
func (m *Manager) managed(db string) (store.Database, error) {
	if !m.HasConnection() {
		return nil, common.ErrNotConnected
	}
	h, ok := m.handles.Lookup(db)
	if !ok {
		return nil, fmt.Errorf("%w: %s", common.ErrNotManaged, db)
	}
	return h, nil
}

// AddView adds a view to the desired set of a managed database and
// reconciles it. It reports whether the persisted set was rewritten.
func (m *Manager) AddView(ctx context.Context, db, viewName string, view models.View) (bool, error) {
	h, err := m.managed(db)
	if err != nil {
		return false, err
	}
	return m.views.AddView(ctx, h, viewName, view)
}

// DropDatabase destroys a managed database and forgets its handle.
func (m *Manager) DropDatabase(ctx context.Context, db string) (status.DropStatus, error) {
	h, err := m.managed(db)
	if err != nil {
		return status.DropError, err
	}
	if err := h.Destroy(ctx); err != nil {
		if errors.Is(err, common.ErrVersionConflict) {
			return status.DropConflict, err
		}
		return status.DropError, err
	}
	m.handles.Forget(db)
	m.logger.Info(ctx, "dropped", "db", h.Name())
	return status.Dropped, nil
}

// DropDatabases destroys every database with an open handle, one at a time.
// Failures are listed in the report and combined into the returned error.
func (m *Manager) DropDatabases(ctx context.Context) (models.DropReport, error) {
	report := models.DropReport{Dropped: []string{}, Fail: []string{}}
	var result *multierror.Error
	for _, name := range m.handles.Names() {
		if _, err := m.DropDatabase(ctx, name); err != nil {
			report.Fail = append(report.Fail, name)
			result = multierror.Append(result, fmt.Errorf("%s: %w", name, err))
			continue
		}
		report.Dropped = append(report.Dropped, name)
	}
	return report, result.ErrorOrNil()
}

// Close releases the store connection.
func (m *Manager) Close() error {
	return m.handles.Close()
}
