package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/lazyboy/internal/flagx"
	"github.com/dmitrijs2005/lazyboy/internal/models"
	"github.com/dmitrijs2005/lazyboy/internal/timex"
)

// JsonConfig mirrors Options for JSON files. Durations accept "30s" or
// integer nanoseconds.
type JsonConfig struct {
	Host           string                        `json:"host"`
	Port           int                           `json:"port"`
	Prefix         string                        `json:"prefix"`
	AutoConnect    *bool                         `json:"auto_connect"`
	Views          map[string]models.DesignViews `json:"views"`
	Backend        string                        `json:"backend"`
	Username       string                        `json:"username"`
	Password       string                        `json:"password"`
	RequestTimeout *timex.Duration               `json:"request_timeout"`
	DatabaseDSN    string                        `json:"database_dsn"`
	Databases      []string                      `json:"databases"`
	Concurrency    int                           `json:"concurrency"`
	MetricsAddr    string                        `json:"metrics_addr"`
	LogLevel       string                        `json:"log_level"`
}

// parseJson overlays the file named by -c/-config onto o. Only keys present
// in the file replace what o already holds.
func parseJson(o *Options) error {
	path := flagx.ConfigPath(os.Args[1:])
	if path == "" {
		return nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	c := &JsonConfig{}
	if err := json.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setString(&o.Host, c.Host)
	setString(&o.Prefix, c.Prefix)
	setString(&o.Backend, c.Backend)
	setString(&o.Username, c.Username)
	setString(&o.Password, c.Password)
	setString(&o.DatabaseDSN, c.DatabaseDSN)
	setString(&o.MetricsAddr, c.MetricsAddr)
	setString(&o.LogLevel, c.LogLevel)
	if c.Port != 0 {
		o.Port = c.Port
	}
	if c.Concurrency != 0 {
		o.Concurrency = c.Concurrency
	}
	if c.AutoConnect != nil {
		o.AutoConnect = c.AutoConnect
	}
	if c.RequestTimeout != nil {
		o.RequestTimeout = c.RequestTimeout.Duration
	}
	if c.Views != nil {
		o.Views = c.Views
	}
	if c.Databases != nil {
		o.Databases = c.Databases
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
