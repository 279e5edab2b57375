package store

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// EmitFunc adds one row to a view index.
type EmitFunc func(key, value any)

// MapFunc is the Go counterpart of a view's map function. Backends that
// cannot execute the stored JavaScript (memory, postgres) evaluate these
// instead.
type MapFunc func(doc map[string]any, emit EmitFunc)

// ViewFunc is an in-process view. Reduce names a built-in reduce: "_count",
// "_sum" or "" for none.
type ViewFunc struct {
	Map    MapFunc
	Reduce string
}

// ViewFuncs maps view paths ("views/<name>") to their in-process views.
type ViewFuncs map[string]ViewFunc

// DesignPrefix starts the id of every design document.
const DesignPrefix = "_design/"

// IsDesignID reports whether id names a design document. Views never index
// design documents.
func IsDesignID(id string) bool {
	return strings.HasPrefix(id, DesignPrefix)
}

// Document is a stored document as seen by a map function.
type Document struct {
	ID   string
	Body map[string]any
	Raw  json.RawMessage
}

// EvaluateView runs fn over docs and applies q the way CouchDB does: rows
// are ordered by key collation (then id), filtered by key or key range,
// optionally reduced and grouped, and finally limited.
func EvaluateView(docs []Document, fn ViewFunc, q ViewQuery) (*ViewResult, error) {
	if fn.Map == nil {
		return nil, fmt.Errorf("view has no map function")
	}

	raw := make(map[string]json.RawMessage, len(docs))
	var rows []ViewRow
	var emitErr error
	for _, d := range docs {
		raw[d.ID] = d.Raw
		id := d.ID
		fn.Map(d.Body, func(key, value any) {
			k, err := normalize(key)
			if err != nil {
				emitErr = err
				return
			}
			v, err := normalize(value)
			if err != nil {
				emitErr = err
				return
			}
			rows = append(rows, ViewRow{ID: id, Key: k, Value: v})
		})
		if emitErr != nil {
			return nil, fmt.Errorf("emit in %s: %w", d.ID, emitErr)
		}
	}
	total := len(rows)

	slices.SortStableFunc(rows, func(a, b ViewRow) int {
		if c := collate(a.Key, b.Key); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	if q.Descending {
		slices.Reverse(rows)
	}

	rows, err := filterRows(rows, q)
	if err != nil {
		return nil, err
	}

	if fn.Reduce != "" && (q.Reduce == nil || *q.Reduce) {
		rows, err = reduceRows(rows, fn.Reduce, q.Group)
		if err != nil {
			return nil, err
		}
	} else if q.IncludeDocs {
		for i := range rows {
			rows[i].Doc = raw[rows[i].ID]
		}
	}

	if q.Limit > 0 && len(rows) > q.Limit {
		rows = rows[:q.Limit]
	}
	if rows == nil {
		rows = []ViewRow{}
	}
	return &ViewResult{TotalRows: total, Rows: rows}, nil
}

func filterRows(rows []ViewRow, q ViewQuery) ([]ViewRow, error) {
	key, err := normalize(q.Key)
	if err != nil {
		return nil, err
	}
	start, err := normalize(q.StartKey)
	if err != nil {
		return nil, err
	}
	end, err := normalize(q.EndKey)
	if err != nil {
		return nil, err
	}

	// with descending order the range runs from high to low
	dir := 1
	if q.Descending {
		dir = -1
	}

	out := rows[:0:0]
	for _, r := range rows {
		if key != nil && collate(r.Key, key) != 0 {
			continue
		}
		if start != nil && dir*collate(r.Key, start) < 0 {
			continue
		}
		if end != nil && dir*collate(r.Key, end) > 0 {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func reduceRows(rows []ViewRow, reduce string, group bool) ([]ViewRow, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	if !group {
		v, err := applyReduce(reduce, rows)
		if err != nil {
			return nil, err
		}
		return []ViewRow{{Key: nil, Value: v}}, nil
	}

	var out []ViewRow
	for i := 0; i < len(rows); {
		j := i + 1
		for j < len(rows) && collate(rows[i].Key, rows[j].Key) == 0 {
			j++
		}
		v, err := applyReduce(reduce, rows[i:j])
		if err != nil {
			return nil, err
		}
		out = append(out, ViewRow{Key: rows[i].Key, Value: v})
		i = j
	}
	return out, nil
}

func applyReduce(reduce string, rows []ViewRow) (any, error) {
	switch reduce {
	case "_count":
		return float64(len(rows)), nil
	case "_sum":
		var sum float64
		for _, r := range rows {
			n, ok := r.Value.(float64)
			if !ok {
				return nil, fmt.Errorf("_sum over non-numeric value %v", r.Value)
			}
			sum += n
		}
		return sum, nil
	default:
		return nil, fmt.Errorf("unsupported reduce %q", reduce)
	}
}

// normalize round-trips v through JSON so Go values compare the same way the
// decoded documents do (all numbers become float64).
func normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func rank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case float64:
		return 2
	case string:
		return 3
	case []any:
		return 4
	default:
		return 5
	}
}

// collate orders normalized JSON values: null < false < true < numbers <
// strings < arrays < objects.
func collate(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}
	switch x := a.(type) {
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		default:
			return 1
		}
	case float64:
		return cmp.Compare(x, b.(float64))
	case string:
		return strings.Compare(x, b.(string))
	case []any:
		y := b.([]any)
		for i := 0; i < len(x) && i < len(y); i++ {
			if c := collate(x[i], y[i]); c != 0 {
				return c
			}
		}
		return cmp.Compare(len(x), len(y))
	}
	return 0
}
