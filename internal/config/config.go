// Package config builds lazyboy's runtime configuration from defaults, an
// optional JSON file and command-line flags.
package config

import (
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/dmitrijs2005/lazyboy/internal/common"
	"github.com/dmitrijs2005/lazyboy/internal/models"
	"github.com/dmitrijs2005/lazyboy/internal/naming"
)

// Store backends.
const (
	BackendCouchDB  = "couchdb"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

const (
	DefaultRequestTimeout = 30 * time.Second
	DefaultConcurrency    = 1
	DefaultLogLevel       = "info"
)

// Options is what a caller supplies. Zero values mean "use the default".
//
// Fields:
//   - Host, Port: CouchDB server.
//   - Prefix: prepended to every logical database name ("lazy" by default).
//     A single trailing "_" is ignored.
//   - AutoConnect: connect and open handles at construction (default true).
//   - Views: desired view sets keyed by logical or formatted database name.
//   - Backend: couchdb, postgres or memory.
//   - Username, Password: CouchDB credentials.
//   - RequestTimeout: per-request timeout of the CouchDB client.
//   - DatabaseDSN: PostgreSQL DSN (pgx) for the postgres backend.
//   - Databases: logical names provisioned by the CLI.
//   - Concurrency: databases provisioned at once; 1 keeps it sequential.
//   - MetricsAddr: when set, the CLI serves /metrics there.
//   - LogLevel: debug, info, warn or error.
type Options struct {
	Host           string
	Port           int
	Prefix         string
	AutoConnect    *bool
	Views          map[string]models.DesignViews
	Backend        string
	Username       string
	Password       string
	RequestTimeout time.Duration
	DatabaseDSN    string
	Databases      []string
	Concurrency    int
	MetricsAddr    string
	LogLevel       string
}

// LoadDefaults fills o with the defaults.
func (o *Options) LoadDefaults() {
	autoConnect := true
	o.Host = common.DefaultHost
	o.Port = common.DefaultPort
	o.Prefix = common.DefaultPrefix
	o.AutoConnect = &autoConnect
	o.Backend = BackendCouchDB
	o.RequestTimeout = DefaultRequestTimeout
	o.Concurrency = DefaultConcurrency
	o.LogLevel = DefaultLogLevel
}

// Config is a resolved configuration. Resolve never lets it share maps or
// slices with the Options it came from.
type Config struct {
	Host           string
	Port           int
	Prefix         string
	AutoConnect    bool
	Views          map[string]models.DesignViews
	Backend        string
	Username       string
	Password       string
	RequestTimeout time.Duration
	DatabaseDSN    string
	Databases      []string
	Concurrency    int
	MetricsAddr    string
	LogLevel       string
}

// Resolve applies defaults to o and returns a new Config. View sets are
// re-keyed by formatted database name.
func Resolve(o Options) (Config, error) {
	c := Config{
		Host:           o.Host,
		Port:           o.Port,
		Prefix:         naming.TrimPrefix(o.Prefix),
		AutoConnect:    true,
		Backend:        o.Backend,
		Username:       o.Username,
		Password:       o.Password,
		RequestTimeout: o.RequestTimeout,
		DatabaseDSN:    o.DatabaseDSN,
		Databases:      slices.Clone(o.Databases),
		Concurrency:    o.Concurrency,
		MetricsAddr:    o.MetricsAddr,
		LogLevel:       o.LogLevel,
	}
	if o.AutoConnect != nil {
		c.AutoConnect = *o.AutoConnect
	}
	if c.Host == "" {
		c.Host = common.DefaultHost
	}
	if c.Port <= 0 {
		c.Port = common.DefaultPort
	}
	if c.Prefix == "" {
		c.Prefix = common.DefaultPrefix
	}
	if c.Backend == "" {
		c.Backend = BackendCouchDB
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return Config{}, fmt.Errorf("log level: %w", err)
	}

	switch c.Backend {
	case BackendCouchDB, BackendMemory:
	case BackendPostgres:
		if c.DatabaseDSN == "" {
			return Config{}, fmt.Errorf("backend %q requires a database DSN", c.Backend)
		}
	default:
		return Config{}, fmt.Errorf("unknown backend %q", c.Backend)
	}

	c.Views = make(map[string]models.DesignViews, len(o.Views))
	for name, dv := range o.Views {
		full, err := naming.Format(c.Prefix, name)
		if err != nil {
			return Config{}, fmt.Errorf("views: %w", err)
		}
		c.Views[full] = dv.Clone()
	}
	return c, nil
}

// LoadConfig applies defaults, then the JSON file given with -c/-config,
// then command-line flags, and resolves the result.
func LoadConfig() (*Config, error) {
	o := &Options{}
	o.LoadDefaults()
	if err := parseJson(o); err != nil {
		return nil, err
	}
	if err := parseFlags(o); err != nil {
		return nil, err
	}
	c, err := Resolve(*o)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
