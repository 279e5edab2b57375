package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/lazyboy/internal/dbx"
	"github.com/dmitrijs2005/lazyboy/internal/store"
)

// designPattern matches design document ids in LIKE; "\_" is a literal
// underscore.
const designPattern = `\_design/%`

// Database is a handle onto one logical database.
type Database struct {
	conn *Connection
	name string
}

func (d *Database) Name() string {
	return d.name
}

func (d *Database) Exists(ctx context.Context) (bool, error) {
	return exists(ctx, d.conn.db, d.name)
}

func exists(ctx context.Context, db dbx.DBTX, name string) (bool, error) {
	var ok bool
	err := db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM databases WHERE name = $1)`, name).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return ok, nil
}

func (d *Database) Create(ctx context.Context) error {
	res, err := d.conn.db.ExecContext(ctx,
		`INSERT INTO databases (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, d.name)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return &store.Error{StatusCode: http.StatusPreconditionFailed, Code: "file_exists", Reason: "The database could not be created, the file already exists."}
	}
	return nil
}

func (d *Database) Destroy(ctx context.Context) error {
	res, err := d.conn.db.ExecContext(ctx, `DELETE FROM databases WHERE name = $1`, d.name)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return store.NotFound(store.ReasonMissing)
	}
	return nil
}

func (d *Database) Get(ctx context.Context, id string, out any) error {
	var (
		rev     string
		deleted bool
		raw     []byte
	)
	err := d.conn.db.QueryRowContext(ctx,
		`SELECT rev, deleted, body FROM documents WHERE db_name = $1 AND id = $2`, d.name, id).
		Scan(&rev, &deleted, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return store.NotFound(store.ReasonMissing)
	}
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if deleted {
		return store.NotFound(store.ReasonDeleted)
	}
	body, err := decodeBody(raw)
	if err != nil {
		return err
	}
	b, err := json.Marshal(store.WithMeta(body, id, rev))
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

// current locks the document row and reports its state.
func current(ctx context.Context, tx dbx.DBTX, dbName, id string) (found, deleted bool, rev string, err error) {
	err = tx.QueryRowContext(ctx,
		`SELECT rev, deleted FROM documents WHERE db_name = $1 AND id = $2 FOR UPDATE`, dbName, id).
		Scan(&rev, &deleted)
	if errors.Is(err, sql.ErrNoRows) {
		return false, false, "", nil
	}
	if err != nil {
		return false, false, "", fmt.Errorf("db error: %w", err)
	}
	return true, deleted, rev, nil
}

func (d *Database) Save(ctx context.Context, id, rev string, doc any) (store.Result, error) {
	body, err := store.EncodeBody(doc)
	if err != nil {
		return store.Result{}, err
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return store.Result{}, err
	}

	var next string
	err = dbx.WithTx(ctx, d.conn.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		ok, err := exists(ctx, tx, d.name)
		if err != nil {
			return err
		}
		if !ok {
			return store.NotFound("Database does not exist.")
		}
		found, deleted, cur, err := current(ctx, tx, d.name, id)
		if err != nil {
			return err
		}
		prev, err := store.CheckRev(found, deleted, cur, rev)
		if err != nil {
			return err
		}
		next, err = store.NextRev(prev)
		if err != nil {
			return err
		}
		// A row inserted by a concurrent writer after the lock above found
		// nothing carries a revision other than cur, so the update is skipped.
		res, err := tx.ExecContext(ctx, `
			INSERT INTO documents (db_name, id, rev, deleted, body)
			VALUES ($1, $2, $3, FALSE, $4::jsonb)
			ON CONFLICT (db_name, id)
			DO UPDATE SET rev = EXCLUDED.rev, deleted = FALSE, body = EXCLUDED.body
			WHERE documents.rev = $5`,
			d.name, id, next, string(raw), cur)
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		if n == 0 {
			return store.Conflict()
		}
		return nil
	})
	if err != nil {
		return store.Result{}, err
	}
	return store.Result{OK: true, ID: id, Rev: next}, nil
}

func (d *Database) Remove(ctx context.Context, id, rev string) (store.Result, error) {
	var next string
	err := dbx.WithTx(ctx, d.conn.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		found, deleted, cur, err := current(ctx, tx, d.name, id)
		if err != nil {
			return err
		}
		switch {
		case !found:
			return store.NotFound(store.ReasonMissing)
		case deleted:
			return store.NotFound(store.ReasonDeleted)
		case cur != rev:
			return store.Conflict()
		}
		next, err = store.NextRev(cur)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE documents SET rev = $3, deleted = TRUE, body = NULL WHERE db_name = $1 AND id = $2`,
			d.name, id, next)
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		return nil
	})
	if err != nil {
		return store.Result{}, err
	}
	return store.Result{OK: true, ID: id, Rev: next}, nil
}

func (d *Database) View(ctx context.Context, path string, q store.ViewQuery) (*store.ViewResult, error) {
	fn, ok := d.conn.views[path]
	if !ok {
		return nil, store.NotFound("missing_named_view")
	}
	ok, err := d.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, store.NotFound("Database does not exist.")
	}

	rows, err := d.conn.db.QueryContext(ctx,
		`SELECT id, rev, body FROM documents WHERE db_name = $1 AND NOT deleted AND id NOT LIKE $2 ORDER BY id`,
		d.name, designPattern)
	if err != nil {
		return nil, fmt.Errorf("failed to select documents: %w", err)
	}
	defer rows.Close()

	var docs []store.Document
	for rows.Next() {
		var (
			id, rev string
			raw     []byte
		)
		if err := rows.Scan(&id, &rev, &raw); err != nil {
			return nil, err
		}
		body, err := decodeBody(raw)
		if err != nil {
			return nil, err
		}
		doc, err := store.NewDocument(id, rev, body)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return store.EvaluateView(docs, fn, q)
}

func decodeBody(raw []byte) (map[string]any, error) {
	body := map[string]any{}
	if len(raw) == 0 {
		return body, nil
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return body, nil
}
