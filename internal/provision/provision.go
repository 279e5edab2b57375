// Package provision makes sure managed databases exist and carry their
// desired views.
//
// Names are drained from a queue one at a time and every outcome is filed
// into a report that is returned when the queue is empty. A failing
// database never stops the others from being attempted, and nothing is
// retried.
package provision

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/dmitrijs2005/lazyboy/internal/common"
	"github.com/dmitrijs2005/lazyboy/internal/logging"
	"github.com/dmitrijs2005/lazyboy/internal/models"
	"github.com/dmitrijs2005/lazyboy/internal/status"
	"github.com/dmitrijs2005/lazyboy/internal/store"
	"golang.org/x/sync/errgroup"
)

// Resolver vends database handles by logical name.
type Resolver interface {
	Format(name string) (string, error)
	Resolve(name string) (store.Database, error)
}

// Reconciler brings the views of a database up to date.
type Reconciler interface {
	Reconcile(ctx context.Context, db store.Database) (status.CreateStatus, error)
}

// Recorder observes provisioning outcomes.
type Recorder interface {
	ObserveProvision(s status.CreateStatus)
}

type nopRecorder struct{}

func (nopRecorder) ObserveProvision(status.CreateStatus) {}

// Option configures a Provisioner.
type Option func(*Provisioner)

// WithRecorder reports every resolved database to r.
func WithRecorder(r Recorder) Option {
	return func(p *Provisioner) {
		p.recorder = r
	}
}

// Provisioner initializes databases through a Resolver and a Reconciler.
type Provisioner struct {
	handles  Resolver
	views    Reconciler
	recorder Recorder
	logger   logging.Logger
}

// New builds a Provisioner.
func New(handles Resolver, views Reconciler, logger logging.Logger, opts ...Option) *Provisioner {
	if logger == nil {
		logger = logging.NewNop()
	}
	p := &Provisioner{
		handles:  handles,
		views:    views,
		recorder: nopRecorder{},
		logger:   logger.With("module", "provision"),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// InitializeDatabase ensures the database exists and reconciles its views.
// Without a store connection it resolves to NotConnected.
func (p *Provisioner) InitializeDatabase(ctx context.Context, name string) (status.CreateStatus, error) {
	s, err := p.initialize(ctx, name)
	p.recorder.ObserveProvision(s)
	if err != nil {
		p.logger.Error(ctx, "initialization failed", "db", name, "status", s.String(), "error", err)
	}
	return s, err
}

func (p *Provisioner) initialize(ctx context.Context, name string) (status.CreateStatus, error) {
	logger := p.logger.With("db", name)
	m := newDatabaseMachine(logger)
	resolve := func(s status.CreateStatus, err error) (status.CreateStatus, error) {
		if ferr := m.Event(ctx, eventResolve); ferr != nil {
			return status.Error, errors.Join(err, ferr)
		}
		return s, err
	}

	logger.Info(ctx, "initializing")
	db, err := p.handles.Resolve(name)
	if errors.Is(err, common.ErrNotConnected) {
		return resolve(status.NotConnected, err)
	}
	if err != nil {
		return resolve(status.Error, err)
	}

	if err := m.Event(ctx, eventCheck); err != nil {
		return status.Error, err
	}
	exists, err := db.Exists(ctx)
	if err != nil {
		return resolve(status.Error, fmt.Errorf("check %s: %w", db.Name(), err))
	}

	if exists {
		logger.Info(ctx, "db exists")
	} else {
		if err := m.Event(ctx, eventCreate); err != nil {
			return status.Error, err
		}
		logger.Info(ctx, "creating")
		if err := db.Create(ctx); err != nil {
			return resolve(status.Error, fmt.Errorf("create %s: %w", db.Name(), err))
		}
	}

	if err := m.Event(ctx, eventReconcile); err != nil {
		return status.Error, err
	}
	return resolve(p.views.Reconcile(ctx, db))
}

// InitializeAll drains names in order, one database at a time. Duplicates
// are processed again. The report is complete even when some databases
// fail, in which case common.ErrSomeDatabasesFailed is returned with it.
func (p *Provisioner) InitializeAll(ctx context.Context, names []string) (models.Report, error) {
	run := newRunMachine(p.logger)
	if err := run.Event(ctx, eventStart); err != nil {
		return models.Report{}, err
	}

	var report models.Report
	queue := slices.Clone(names)
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		report.Add(p.outcome(ctx, name))
	}

	if err := run.Event(ctx, eventFinish); err != nil {
		return report, err
	}
	return report, reportErr(report)
}

// InitializeAllConcurrent initializes up to limit databases at a time. The
// report lists outcomes in input order, exactly as InitializeAll would.
func (p *Provisioner) InitializeAllConcurrent(ctx context.Context, names []string, limit int) (models.Report, error) {
	if limit <= 1 {
		return p.InitializeAll(ctx, names)
	}

	run := newRunMachine(p.logger)
	if err := run.Event(ctx, eventStart); err != nil {
		return models.Report{}, err
	}

	outcomes := make([]models.Outcome, len(names))
	var g errgroup.Group
	g.SetLimit(limit)
	for i, name := range names {
		g.Go(func() error {
			outcomes[i] = p.outcome(ctx, name)
			return nil
		})
	}
	_ = g.Wait()

	var report models.Report
	for _, o := range outcomes {
		report.Add(o)
	}
	if err := run.Event(ctx, eventFinish); err != nil {
		return report, err
	}
	return report, reportErr(report)
}

func (p *Provisioner) outcome(ctx context.Context, name string) models.Outcome {
	s, err := p.InitializeDatabase(ctx, name)
	o := models.Outcome{Name: name, Status: s}
	if full, ferr := p.handles.Format(name); ferr == nil {
		o.Name = full
	}
	if err != nil {
		o.Error = err.Error()
	}
	return o
}

func reportErr(r models.Report) error {
	if len(r.Fail) > 0 {
		return fmt.Errorf("%w: %d of %d", common.ErrSomeDatabasesFailed, len(r.Fail), r.Len())
	}
	return nil
}
