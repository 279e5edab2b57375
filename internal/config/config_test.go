package config

import (
	"os"
	"testing"
	"time"

	"github.com/dmitrijs2005/lazyboy/internal/models"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool { return &b }

func TestLoadDefaults(t *testing.T) {
	var o Options
	o.LoadDefaults()

	assert.Equal(t, "127.0.0.1", o.Host)
	assert.Equal(t, 5984, o.Port)
	assert.Equal(t, "lazy", o.Prefix)
	require.NotNil(t, o.AutoConnect)
	assert.True(t, *o.AutoConnect)
	assert.Equal(t, BackendCouchDB, o.Backend)
	assert.Equal(t, 30*time.Second, o.RequestTimeout)
	assert.Equal(t, 1, o.Concurrency)
	assert.Equal(t, "info", o.LogLevel)
}

func TestResolve_Defaults(t *testing.T) {
	c, err := Resolve(Options{})
	require.NoError(t, err)

	want := Config{
		Host:           "127.0.0.1",
		Port:           5984,
		Prefix:         "lazy",
		AutoConnect:    true,
		Views:          map[string]models.DesignViews{},
		Backend:        BackendCouchDB,
		RequestTimeout: 30 * time.Second,
		Concurrency:    1,
		LogLevel:       "info",
	}
	if diff := cmp.Diff(want, c); diff != "" {
		t.Fatalf("Resolve mismatch (-want +got):\n%s", diff)
	}
}

func TestResolve_PrefixAndViews(t *testing.T) {
	views := map[string]models.DesignViews{
		"widgets":     {Version: 1, Type: "javascript", Views: map[string]models.View{"by_name": {Map: "m"}}},
		"app_gadgets": {Version: 2, Type: "javascript"},
	}
	o := Options{Prefix: "app_", AutoConnect: boolPtr(false), Views: views, Databases: []string{"widgets"}}

	c, err := Resolve(o)
	require.NoError(t, err)
	assert.Equal(t, "app", c.Prefix)
	assert.False(t, c.AutoConnect)
	require.Contains(t, c.Views, "app_widgets")
	require.Contains(t, c.Views, "app_gadgets")
	assert.Len(t, c.Views, 2)

	// no aliasing of caller data
	views["widgets"].Views["later"] = models.View{Map: "x"}
	o.Databases[0] = "changed"
	assert.NotContains(t, c.Views["app_widgets"].Views, "later")
	assert.Equal(t, []string{"widgets"}, c.Databases)
}

func TestResolve_Errors(t *testing.T) {
	_, err := Resolve(Options{Backend: "mongo"})
	require.ErrorContains(t, err, "unknown backend")

	_, err = Resolve(Options{Backend: BackendPostgres})
	require.ErrorContains(t, err, "DSN")

	_, err = Resolve(Options{Views: map[string]models.DesignViews{"": {Version: 1}}})
	require.Error(t, err)

	_, err = Resolve(Options{LogLevel: "verbose"})
	require.ErrorContains(t, err, "log level")

	c, err := Resolve(Options{Backend: BackendPostgres, DatabaseDSN: "postgres://localhost/lazy"})
	require.NoError(t, err)
	assert.Equal(t, BackendPostgres, c.Backend)
}

func TestLoadConfig_UsesDefaultsBeforeParsing(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"lazyboy"}

	c, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", c.Host)
	assert.Equal(t, 5984, c.Port)
	assert.Equal(t, "lazy", c.Prefix)
	assert.True(t, c.AutoConnect)
	assert.Equal(t, BackendCouchDB, c.Backend)
	assert.Equal(t, 30*time.Second, c.RequestTimeout)
}

func TestLoadConfig_JsonThenFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	path := writeTempJSON(t, "", "", map[string]any{
		"host":      "couch.local",
		"port":      6984,
		"databases": []string{"widgets"},
	})
	os.Args = []string{"lazyboy", "-c", path, "-p", "7000", "-b", "memory"}

	c, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "couch.local", c.Host)
	assert.Equal(t, 7000, c.Port)
	assert.Equal(t, BackendMemory, c.Backend)
	assert.Equal(t, []string{"widgets"}, c.Databases)
}

func TestLoadConfig_Invalid(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	os.Args = []string{"lazyboy", "-b", "mongo"}
	_, err := LoadConfig()
	require.Error(t, err)

	os.Args = []string{"lazyboy", "-c", "/does/not/exist.json"}
	_, err = LoadConfig()
	require.Error(t, err)

	os.Args = []string{"lazyboy", "-p", "notaport"}
	_, err = LoadConfig()
	require.Error(t, err)
}
