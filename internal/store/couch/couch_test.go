package couch

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/dmitrijs2005/lazyboy/internal/common"
	"github.com/dmitrijs2005/lazyboy/internal/models"
	"github.com/dmitrijs2005/lazyboy/internal/store"
	"github.com/h2non/gock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const server = "http://127.0.0.1:5984"

func newConn(t *testing.T, opts ...Option) *Connection {
	t.Helper()
	c, err := NewConnection("127.0.0.1", 5984, opts...)
	require.NoError(t, err)
	gock.InterceptClient(c.client)
	t.Cleanup(func() {
		gock.RestoreClient(c.client)
		gock.Off()
	})
	return c
}

func TestNewConnection(t *testing.T) {
	c, err := NewConnection("127.0.0.1", 5984)
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:5984", c.URL())

	c, err = NewConnection("https://couch.example.com/", 6984, WithTimeout(time.Second))
	require.NoError(t, err)
	assert.Equal(t, "https://couch.example.com:6984", c.URL())
	assert.Equal(t, time.Second, c.client.Timeout)

	c, err = NewConnection("http://couch:1234", 5984)
	require.NoError(t, err)
	assert.Equal(t, "http://couch:1234", c.URL())

	_, err = NewConnection("http://", 5984)
	require.Error(t, err)

	hc := &http.Client{}
	c, err = NewConnection("127.0.0.1", 5984, WithHTTPClient(hc))
	require.NoError(t, err)
	assert.Same(t, hc, c.client)
	require.NoError(t, c.Close())
}

func TestExists(t *testing.T) {
	c := newConn(t)
	db := c.Database("lazy_widgets")
	assert.Equal(t, "lazy_widgets", db.Name())

	gock.New(server).Head("/lazy_widgets").Reply(200)
	ok, err := db.Exists(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	gock.New(server).Head("/lazy_widgets").Reply(404)
	ok, err = db.Exists(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	gock.New(server).Head("/lazy_widgets").Reply(500)
	_, err = db.Exists(context.Background())
	require.ErrorIs(t, err, common.ErrTransport)

	gock.New(server).Head("/lazy_widgets").ReplyError(errors.New("connection refused"))
	_, err = db.Exists(context.Background())
	require.ErrorIs(t, err, common.ErrTransport)

	assert.True(t, gock.IsDone())
}

func TestCreateDestroy(t *testing.T) {
	c := newConn(t, WithCredentials("admin", "secret"))
	db := c.Database("lazy_widgets")

	gock.New(server).Put("/lazy_widgets").
		MatchHeader("Authorization", "^Basic ").
		Reply(201).JSON(map[string]any{"ok": true})
	require.NoError(t, db.Create(context.Background()))

	gock.New(server).Put("/lazy_widgets").
		Reply(412).JSON(map[string]any{"error": "file_exists", "reason": "The database could not be created, the file already exists."})
	err := db.Create(context.Background())
	var se *store.Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "file_exists", se.Code)

	gock.New(server).Delete("/lazy_widgets").Reply(200).JSON(map[string]any{"ok": true})
	require.NoError(t, db.Destroy(context.Background()))

	assert.True(t, gock.IsDone())
}

func TestGet(t *testing.T) {
	c := newConn(t)
	db := c.Database("lazy_widgets")

	gock.New(server).Get("/lazy_widgets/_design/views").
		Reply(200).JSON(map[string]any{"_id": "_design/views", "_rev": "2-b", "version": 3, "type": "javascript",
		"views": map[string]any{"by_name": map[string]any{"map": "function(doc){}"}}})

	var dv models.DesignViews
	require.NoError(t, db.Get(context.Background(), common.DesignViewsID, &dv))
	assert.Equal(t, 3, dv.Version)
	assert.Equal(t, "2-b", dv.Rev)
	assert.Contains(t, dv.Views, "by_name")

	gock.New(server).Get("/lazy_widgets/user_1").
		Reply(404).JSON(map[string]any{"error": "not_found", "reason": "deleted"})
	var e models.Entry
	err := db.Get(context.Background(), "user_1", &e)
	require.ErrorIs(t, err, common.ErrorNotFound)
	reason, ok := store.NotFoundReason(err)
	require.True(t, ok)
	assert.Equal(t, store.ReasonDeleted, reason)

	gock.New(server).Get("/lazy_widgets/user_2").Reply(200).BodyString("not json")
	require.Error(t, db.Get(context.Background(), "user_2", &e))

	assert.True(t, gock.IsDone())
}

func TestSaveAndRemove(t *testing.T) {
	c := newConn(t)
	db := c.Database("lazy_widgets")

	gock.New(server).Put("/lazy_widgets/user_1").
		MatchType("json").
		JSON(map[string]any{"created": 1, "modified": 1, "isDeleted": false, "type": "user", "instance": map[string]any{"name": "Ada"}}).
		Reply(201).JSON(map[string]any{"ok": true, "id": "user_1", "rev": "1-a"})

	res, err := db.Save(context.Background(), "user_1", "", &models.Entry{Created: 1, Modified: 1, Type: "user", Instance: []byte(`{"name":"Ada"}`)})
	require.NoError(t, err)
	assert.Equal(t, store.Result{OK: true, ID: "user_1", Rev: "1-a"}, res)

	gock.New(server).Put("/lazy_widgets/user_1").
		MatchParam("rev", "1-a").
		Reply(409).JSON(map[string]any{"error": "conflict", "reason": "Document update conflict."})
	_, err = db.Save(context.Background(), "user_1", "1-a", map[string]any{"x": 1})
	require.ErrorIs(t, err, common.ErrVersionConflict)

	gock.New(server).Delete("/lazy_widgets/user_1").
		MatchParam("rev", "2-b").
		Reply(200).JSON(map[string]any{"ok": true, "id": "user_1", "rev": "3-c"})
	res, err = db.Remove(context.Background(), "user_1", "2-b")
	require.NoError(t, err)
	assert.Equal(t, "3-c", res.Rev)

	assert.True(t, gock.IsDone())
}

func TestView(t *testing.T) {
	c := newConn(t)
	db := c.Database("lazy_widgets")

	gock.New(server).Get("/lazy_widgets/_design/views/_view/by_type").
		MatchParam("key", `"user"`).
		MatchParam("limit", "10").
		MatchParam("descending", "true").
		MatchParam("reduce", "false").
		MatchParam("include_docs", "true").
		Reply(200).JSON(map[string]any{"total_rows": 2, "offset": 0, "rows": []any{
		map[string]any{"id": "user_1", "key": "user", "value": 1, "doc": map[string]any{"_id": "user_1"}},
	}})

	reduce := false
	res, err := db.View(context.Background(), "views/by_type", store.ViewQuery{
		Key: "user", Limit: 10, Descending: true, Reduce: &reduce, IncludeDocs: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalRows)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "user_1", res.Rows[0].ID)
	assert.JSONEq(t, `{"_id":"user_1"}`, string(res.Rows[0].Doc))

	_, err = db.View(context.Background(), "no-slash", store.ViewQuery{})
	require.Error(t, err)

	assert.True(t, gock.IsDone())
}

func TestEncodeQuery(t *testing.T) {
	v, err := encodeQuery(store.ViewQuery{StartKey: []any{"a", 1}, EndKey: "z", Group: true})
	require.NoError(t, err)
	assert.Equal(t, `["a",1]`, v.Get("startkey"))
	assert.Equal(t, `"z"`, v.Get("endkey"))
	assert.Equal(t, "true", v.Get("group"))
	assert.Empty(t, v.Get("key"))
	assert.Empty(t, v.Get("limit"))

	_, err = encodeQuery(store.ViewQuery{Key: make(chan int)})
	require.Error(t, err)
}

func TestDocPath(t *testing.T) {
	db := &Database{name: "lazy_a/b"}
	assert.Equal(t, "/lazy_a%2Fb", db.path())
	assert.Equal(t, "/lazy_a%2Fb/_design/views", db.docPath("_design/views"))
	assert.Equal(t, "/lazy_a%2Fb/user%2F1", db.docPath("user/1"))
}
