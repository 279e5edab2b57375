// Package views keeps the desired view set of every managed database and
// brings the persisted copy up to date.
//
// The comparison is by version number only: a persisted set is rewritten
// when its version is lower than the desired one, whatever its content.
package views

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/dmitrijs2005/lazyboy/internal/common"
	"github.com/dmitrijs2005/lazyboy/internal/logging"
	"github.com/dmitrijs2005/lazyboy/internal/models"
	"github.com/dmitrijs2005/lazyboy/internal/status"
	"github.com/dmitrijs2005/lazyboy/internal/store"
)

// Reconciler holds desired view sets keyed by formatted database name.
type Reconciler struct {
	mu      sync.RWMutex
	desired map[string]models.DesignViews
	logger  logging.Logger
}

// NewReconciler copies desired so later changes by the caller have no
// effect.
func NewReconciler(desired map[string]models.DesignViews, logger logging.Logger) *Reconciler {
	if logger == nil {
		logger = logging.NewNop()
	}
	d := make(map[string]models.DesignViews, len(desired))
	for name, dv := range desired {
		d[name] = dv.Clone()
	}
	return &Reconciler{desired: d, logger: logger.With("module", "views")}
}

// Desired returns a copy of the view set configured for db.
func (r *Reconciler) Desired(db string) (models.DesignViews, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	dv, ok := r.desired[db]
	if !ok {
		return models.DesignViews{}, false
	}
	return dv.Clone(), true
}

// Reconcile compares the persisted view set of db with the desired one and
// writes it when missing or older.
func (r *Reconciler) Reconcile(ctx context.Context, db store.Database) (status.CreateStatus, error) {
	desired, ok := r.Desired(db.Name())
	if !ok {
		return status.CreatedWithoutViews, nil
	}

	var persisted models.DesignViews
	err := db.Get(ctx, common.DesignViewsID, &persisted)
	if err != nil {
		reason, notFound := store.NotFoundReason(err)
		if notFound && (reason == store.ReasonMissing || reason == store.ReasonDeleted) {
			r.logger.Debug(ctx, "no persisted views", "db", db.Name(), "reason", reason)
			return r.save(ctx, db, desired, "")
		}
		return status.Error, err
	}

	if persisted.Version < desired.Version {
		r.logger.Debug(ctx, "views outdated", "db", db.Name(),
			"persisted", persisted.Version, "desired", desired.Version)
		return r.save(ctx, db, desired, persisted.Rev)
	}
	return status.UpToDate, nil
}

func (r *Reconciler) save(ctx context.Context, db store.Database, dv models.DesignViews, rev string) (status.CreateStatus, error) {
	if _, err := db.Save(ctx, common.DesignViewsID, rev, dv); err != nil {
		r.logger.Error(ctx, "saving views failed", "db", db.Name(), "error", err)
		return status.Error, fmt.Errorf("save views: %w", err)
	}
	r.logger.Info(ctx, "views saved", "db", db.Name(), "version", dv.Version)
	return status.Created, nil
}

// AddView adds or replaces viewName in the desired set of db and reconciles
// it. A database without a configured set gets a new one at version 1; an
// existing set is bumped one version when the view changes. It reports
// whether the persisted set was written.
func (r *Reconciler) AddView(ctx context.Context, db store.Database, viewName string, view models.View) (bool, error) {
	r.mu.Lock()
	dv, ok := r.desired[db.Name()]
	switch {
	case !ok:
		dv = models.DesignViews{
			Version: 1,
			Type:    common.DesignViewsType,
			Views:   map[string]models.View{viewName: view},
		}
	case !hasView(dv, viewName) || dv.Views[viewName] != view:
		dv.Views = maps.Clone(dv.Views)
		if dv.Views == nil {
			dv.Views = make(map[string]models.View, 1)
		}
		dv.Views[viewName] = view
		dv.Version++
	}
	r.desired[db.Name()] = dv
	r.mu.Unlock()

	s, err := r.Reconcile(ctx, db)
	return s == status.Created, err
}

func hasView(dv models.DesignViews, name string) bool {
	_, ok := dv.Views[name]
	return ok
}
