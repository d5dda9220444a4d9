package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/alnah/go-reportpdf/internal/config"
)

// ErrUsage marks invalid command lines.
var ErrUsage = errors.New("usage error")

// commonFlags holds flags shared by every command.
type commonFlags struct {
	config    string
	verbose   bool
	quiet     bool
	logFormat string
}

// renderFlags override the render section of the config.
type renderFlags struct {
	workers     int
	timeout     time.Duration
	style       string
	assets      string
	pageSize    string
	orientation string
	margin      float64
}

// storageFlags override the storage section of the config.
type storageFlags struct {
	dir string
	dsn string
}

type assembleFlags struct {
	common  commonFlags
	render  renderFlags
	storage storageFlags
	output  string
	bundle  bool
}

type doctorFlags struct {
	common  commonFlags
	storage storageFlags
	json    bool
}

type serveFlags struct {
	common  commonFlags
	render  renderFlags
	storage storageFlags
	addr    string
}

func addCommonFlags(fs *flag.FlagSet, f *commonFlags) {
	fs.StringVarP(&f.config, "config", "c", "", "config file name or path")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "debug logging")
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "log errors only")
	fs.StringVar(&f.logFormat, "log-format", "", "log format: console, json")
}

func addRenderFlags(fs *flag.FlagSet, f *renderFlags) {
	fs.IntVarP(&f.workers, "workers", "w", 0, "browser instances (0 = auto)")
	fs.DurationVar(&f.timeout, "timeout", 0, "page load timeout, e.g. 30s")
	fs.StringVar(&f.style, "style", "", "CSS style name")
	fs.StringVar(&f.assets, "assets", "", "directory with styles/ and templates/ overrides")
	fs.StringVarP(&f.pageSize, "page-size", "p", "", "page size: letter, a4, legal")
	fs.StringVar(&f.orientation, "orientation", "", "orientation: portrait, landscape")
	fs.Float64Var(&f.margin, "margin", 0, "margin in inches (0.25-3.0)")
}

func addStorageFlags(fs *flag.FlagSet, f *storageFlags) {
	fs.StringVar(&f.dir, "storage-dir", "", "read attachments from this directory")
	fs.StringVar(&f.dsn, "dsn", "", "read attachments from this Postgres database")
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.SortFlags = false
	return fs
}

// parseAssembleFlags parses "assemble [flags] <job.yaml>".
func parseAssembleFlags(args []string, stderr io.Writer) (*assembleFlags, string, error) {
	f := &assembleFlags{}
	fs := newFlagSet("assemble", stderr)
	addCommonFlags(fs, &f.common)
	addRenderFlags(fs, &f.render)
	addStorageFlags(fs, &f.storage)
	fs.StringVarP(&f.output, "output", "o", "", "output file or directory")
	fs.BoolVarP(&f.bundle, "bundle", "b", false, "one PDF per work item, zipped")

	if err := fs.Parse(args); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if fs.NArg() != 1 {
		return nil, "", fmt.Errorf("%w: assemble takes exactly one job file, got %d arguments", ErrUsage, fs.NArg())
	}
	if f.common.verbose && f.common.quiet {
		return nil, "", fmt.Errorf("%w: --verbose and --quiet are exclusive", ErrUsage)
	}
	return f, fs.Arg(0), nil
}

// parseServeFlags parses "serve [flags]".
func parseServeFlags(args []string, stderr io.Writer) (*serveFlags, error) {
	f := &serveFlags{}
	fs := newFlagSet("serve", stderr)
	addCommonFlags(fs, &f.common)
	addRenderFlags(fs, &f.render)
	addStorageFlags(fs, &f.storage)
	fs.StringVar(&f.addr, "addr", "", "listen address, e.g. :8080")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if fs.NArg() != 0 {
		return nil, fmt.Errorf("%w: serve takes no arguments", ErrUsage)
	}
	if f.common.verbose && f.common.quiet {
		return nil, fmt.Errorf("%w: --verbose and --quiet are exclusive", ErrUsage)
	}
	return f, nil
}

// loadConfig loads the config named by --config, or the defaults, and
// applies the flags on top. Flags win.
func loadConfig(common commonFlags, render renderFlags, storage storageFlags) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if common.config != "" {
		var err error
		if cfg, err = config.LoadConfig(common.config); err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
	}

	switch {
	case common.verbose:
		cfg.Logging.Level = "debug"
	case common.quiet:
		cfg.Logging.Level = "error"
	}
	if common.logFormat != "" {
		cfg.Logging.Format = common.logFormat
	}

	if render.workers != 0 {
		cfg.Render.Workers = render.workers
	}
	if render.timeout != 0 {
		cfg.Render.Timeout = render.timeout
	}
	if render.style != "" {
		cfg.Render.Style = render.style
	}
	if render.assets != "" {
		cfg.Render.AssetsPath = render.assets
	}
	if render.pageSize != "" {
		cfg.Render.PageSize = render.pageSize
	}
	if render.orientation != "" {
		cfg.Render.Orientation = render.orientation
	}
	if render.margin != 0 {
		cfg.Render.Margin = render.margin
	}

	switch {
	case storage.dsn != "":
		cfg.Storage = config.StorageConfig{Driver: config.StoragePostgres, DSN: storage.dsn}
	case storage.dir != "":
		cfg.Storage = config.StorageConfig{Driver: config.StorageDir, Dir: storage.dir}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseDoctorFlags parses "doctor [flags]".
func parseDoctorFlags(args []string, stderr io.Writer) (*doctorFlags, error) {
	f := &doctorFlags{}
	fs := newFlagSet("doctor", stderr)
	addCommonFlags(fs, &f.common)
	addStorageFlags(fs, &f.storage)
	fs.BoolVar(&f.json, "json", false, "print results as JSON")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if fs.NArg() != 0 {
		return nil, fmt.Errorf("%w: doctor takes no arguments", ErrUsage)
	}
	return f, nil
}
