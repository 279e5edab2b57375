package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/lazyboy/internal/flagx"
)

// parseFlags overlays command-line flags onto o.
//
// Supported flags:
//
//	-a string   CouchDB host
//	-p int      CouchDB port
//	-x string   database name prefix
//	-b string   backend: couchdb, postgres or memory
//	-u string   CouchDB user
//	-w string   CouchDB password
//	-t int      request timeout, seconds
//	-d string   PostgreSQL DSN
//	-n string   databases to provision, comma separated; may repeat
//	-j int      databases provisioned concurrently
//	-m string   address to serve /metrics on
//	-l string   log level: debug, info, warn, error
//	-auto-connect=bool
//
// Arguments are filtered with flagx.FilterArgs first, so -c/-config and
// positional arguments do not disturb parsing.
func parseFlags(o *Options) error {
	args := flagx.FilterArgs(os.Args[1:], []string{
		"-a", "-p", "-x", "-b", "-u", "-w", "-t", "-d", "-n", "-j", "-m", "-l", "-auto-connect",
	})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&o.Host, "a", o.Host, "CouchDB host")
	fs.IntVar(&o.Port, "p", o.Port, "CouchDB port")
	fs.StringVar(&o.Prefix, "x", o.Prefix, "database name prefix")
	fs.StringVar(&o.Backend, "b", o.Backend, "store backend (couchdb, postgres, memory)")
	fs.StringVar(&o.Username, "u", o.Username, "CouchDB user")
	fs.StringVar(&o.Password, "w", o.Password, "CouchDB password")
	timeout := fs.Int("t", int(o.RequestTimeout.Seconds()), "request timeout (in seconds)")
	fs.StringVar(&o.DatabaseDSN, "d", o.DatabaseDSN, "PostgreSQL DSN")
	var databases flagx.StringList
	fs.Var(&databases, "n", "databases to provision (comma separated)")
	fs.IntVar(&o.Concurrency, "j", o.Concurrency, "databases provisioned concurrently")
	fs.StringVar(&o.MetricsAddr, "m", o.MetricsAddr, "address to serve metrics on")
	fs.StringVar(&o.LogLevel, "l", o.LogLevel, "log level (debug, info, warn, error)")
	autoConnect := true
	if o.AutoConnect != nil {
		autoConnect = *o.AutoConnect
	}
	fs.BoolVar(&autoConnect, "auto-connect", autoConnect, "connect on start")

	if err := fs.Parse(args); err != nil {
		return err
	}

	o.RequestTimeout = time.Duration(*timeout) * time.Second
	o.AutoConnect = &autoConnect
	if len(databases) > 0 {
		o.Databases = databases
	}
	return nil
}
