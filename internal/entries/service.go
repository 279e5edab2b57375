// Package entries implements create, read, update, soft/hard delete and
// view queries for entries stored in managed databases.
//
// Every operation resolves the database handle first, opening it when
// needed; only a missing store connection makes that step fail.
package entries

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/lazyboy/internal/common"
	"github.com/dmitrijs2005/lazyboy/internal/logging"
	"github.com/dmitrijs2005/lazyboy/internal/models"
	"github.com/dmitrijs2005/lazyboy/internal/status"
	"github.com/dmitrijs2005/lazyboy/internal/store"
	"github.com/google/uuid"
)

var (
	newID = uuid.NewString
	now   = time.Now
)

// Operation names passed to the Recorder.
const (
	OpCreate = "create"
	OpGet    = "get"
	OpUpdate = "update"
	OpDelete = "delete"
	OpQuery  = "query"
)

// Resolver vends database handles by logical name.
type Resolver interface {
	Resolve(name string) (store.Database, error)
}

// Recorder observes entry operations.
type Recorder interface {
	ObserveEntry(op string, err error)
}

type nopRecorder struct{}

func (nopRecorder) ObserveEntry(string, error) {}

// Service runs entry operations against resolved handles.
type Service struct {
	handles  Resolver
	recorder Recorder
	logger   logging.Logger
}

// NewService builds a Service. recorder may be nil.
func NewService(handles Resolver, recorder Recorder, logger logging.Logger) *Service {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{handles: handles, recorder: recorder, logger: logger.With("module", "entries")}
}

// Create stores a copy of e under a fresh id ("<type>_<uuid>" when e.Type is
// set) with both timestamps set to now. The returned entry carries the
// store-assigned id and revision.
func (s *Service) Create(ctx context.Context, dbName string, e *models.Entry) (status.EntryStatus, *models.Entry, error) {
	st, out, err := s.create(ctx, dbName, e)
	s.recorder.ObserveEntry(OpCreate, err)
	if err != nil {
		s.logger.Error(ctx, "create entry failed", "db", dbName, "error", err)
	}
	return st, out, err
}

func (s *Service) create(ctx context.Context, dbName string, e *models.Entry) (status.EntryStatus, *models.Entry, error) {
	if e == nil {
		return status.EntryError, nil, fmt.Errorf("%w: nil entry", common.ErrInvalidEntry)
	}
	db, err := s.handles.Resolve(dbName)
	if err != nil {
		return status.EntryError, nil, err
	}

	out := *e
	out.ID = newID()
	if out.Type != "" {
		out.ID = out.Type + common.NameSeparator + out.ID
	}
	out.Rev = ""
	out.IsDeleted = false
	out.Created = models.NowMillis(now())
	out.Modified = out.Created

	res, err := db.Save(ctx, out.ID, "", &out)
	if errors.Is(err, common.ErrVersionConflict) {
		return status.EntryConflict, nil, err
	}
	if err != nil {
		return status.EntryError, nil, err
	}
	out.ID, out.Rev = res.ID, res.Rev
	return status.EntryCreated, &out, nil
}

// Get fetches an entry. Store errors are returned unchanged.
func (s *Service) Get(ctx context.Context, dbName, id string) (*models.Entry, error) {
	e, err := s.get(ctx, dbName, id)
	s.recorder.ObserveEntry(OpGet, err)
	return e, err
}

func (s *Service) get(ctx context.Context, dbName, id string) (*models.Entry, error) {
	db, err := s.handles.Resolve(dbName)
	if err != nil {
		return nil, err
	}
	var e models.Entry
	if err := db.Get(ctx, id, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// Update writes e over the stored entry. e must carry its id and the
// current revision; a stale revision fails with common.ErrVersionConflict.
// The returned copy has the new revision and modification time.
func (s *Service) Update(ctx context.Context, dbName string, e *models.Entry) (*models.Entry, error) {
	out, err := s.update(ctx, dbName, e)
	s.recorder.ObserveEntry(OpUpdate, err)
	return out, err
}

func (s *Service) update(ctx context.Context, dbName string, e *models.Entry) (*models.Entry, error) {
	if e == nil || e.ID == "" || e.Rev == "" {
		return nil, common.ErrInvalidEntry
	}
	db, err := s.handles.Resolve(dbName)
	if err != nil {
		return nil, err
	}
	out := *e
	out.Modified = models.NowMillis(now())
	res, err := db.Save(ctx, out.ID, out.Rev, &out)
	if err != nil {
		return nil, err
	}
	out.Rev = res.Rev
	return &out, nil
}

// Delete removes an entry. A soft delete re-reads the entry, flags it
// deleted and updates it, so it stays readable. A hard delete removes the
// document with e's id and revision.
func (s *Service) Delete(ctx context.Context, dbName string, e *models.Entry, hard bool) error {
	var err error
	if hard {
		err = s.remove(ctx, dbName, e)
	} else {
		err = s.softDelete(ctx, dbName, e)
	}
	s.recorder.ObserveEntry(OpDelete, err)
	return err
}

func (s *Service) remove(ctx context.Context, dbName string, e *models.Entry) error {
	if e == nil || e.ID == "" || e.Rev == "" {
		return common.ErrInvalidEntry
	}
	db, err := s.handles.Resolve(dbName)
	if err != nil {
		return err
	}
	_, err = db.Remove(ctx, e.ID, e.Rev)
	return err
}

func (s *Service) softDelete(ctx context.Context, dbName string, e *models.Entry) error {
	if e == nil || e.ID == "" {
		return common.ErrInvalidEntry
	}
	current, err := s.get(ctx, dbName, e.ID)
	if err != nil {
		return err
	}
	current.IsDeleted = true
	_, err = s.update(ctx, dbName, current)
	return err
}

// Query runs the named view of the database's view set and returns its
// result as is.
func (s *Service) Query(ctx context.Context, dbName, viewName string, q store.ViewQuery) (*store.ViewResult, error) {
	res, err := s.query(ctx, dbName, viewName, q)
	s.recorder.ObserveEntry(OpQuery, err)
	return res, err
}

func (s *Service) query(ctx context.Context, dbName, viewName string, q store.ViewQuery) (*store.ViewResult, error) {
	db, err := s.handles.Resolve(dbName)
	if err != nil {
		return nil, err
	}
	return db.View(ctx, common.DesignViewsName+"/"+viewName, q)
}
