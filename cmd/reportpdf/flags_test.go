package main

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alnah/go-reportpdf/internal/config"
)

// ---------------------------------------------------------------------------
// parseAssembleFlags
// ---------------------------------------------------------------------------

func TestParseAssembleFlags(t *testing.T) {
	t.Parallel()

	flags, job, err := parseAssembleFlags([]string{
		"job.yaml", "-o", "out/", "-b", "-w", "3", "--timeout", "1m",
		"-p", "letter", "--orientation", "landscape", "--margin", "1",
		"--storage-dir", "files", "--log-format", "json",
	}, io.Discard)
	if err != nil {
		t.Fatalf("parseAssembleFlags() error = %v", err)
	}
	if job != "job.yaml" {
		t.Errorf("job = %q, want job.yaml", job)
	}
	if flags.output != "out/" || !flags.bundle {
		t.Errorf("output = %q, bundle = %v", flags.output, flags.bundle)
	}
	if flags.render.workers != 3 || flags.render.timeout != time.Minute {
		t.Errorf("render = %+v", flags.render)
	}
	if flags.render.pageSize != "letter" || flags.render.orientation != "landscape" || flags.render.margin != 1 {
		t.Errorf("page flags = %+v", flags.render)
	}
	if flags.storage.dir != "files" || flags.common.logFormat != "json" {
		t.Errorf("storage = %+v, common = %+v", flags.storage, flags.common)
	}
}

func TestParseAssembleFlags_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
	}{
		{"no job", nil},
		{"two jobs", []string{"a.yaml", "b.yaml"}},
		{"unknown flag", []string{"job.yaml", "--colour"}},
		{"bad duration", []string{"job.yaml", "--timeout", "soon"}},
		{"verbose and quiet", []string{"job.yaml", "-v", "-q"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, _, err := parseAssembleFlags(tt.args, io.Discard)
			if !errors.Is(err, ErrUsage) {
				t.Errorf("parseAssembleFlags() error = %v, want ErrUsage", err)
			}
		})
	}
}

func TestParseServeFlags(t *testing.T) {
	t.Parallel()

	flags, err := parseServeFlags([]string{"--addr", "127.0.0.1:9000", "--dsn", "postgres://x"}, io.Discard)
	if err != nil {
		t.Fatalf("parseServeFlags() error = %v", err)
	}
	if flags.addr != "127.0.0.1:9000" || flags.storage.dsn != "postgres://x" {
		t.Errorf("flags = %+v", flags)
	}

	if _, err := parseServeFlags([]string{"extra"}, io.Discard); !errors.Is(err, ErrUsage) {
		t.Errorf("parseServeFlags(extra) error = %v, want ErrUsage", err)
	}
}

// ---------------------------------------------------------------------------
// loadConfig
// ---------------------------------------------------------------------------

func TestLoadConfig_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := loadConfig(commonFlags{}, renderFlags{}, storageFlags{})
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	want := config.DefaultConfig()
	if cfg.Render != want.Render || cfg.Storage != want.Storage || cfg.Logging != want.Logging {
		t.Errorf("loadConfig() = %+v, want defaults", cfg)
	}
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "custom.yaml")
	content := `
render:
  pageSize: legal
  style: report
  workers: 2
storage:
  driver: dir
  dir: /srv/files
logging:
  level: warn
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(
		commonFlags{config: path, verbose: true},
		renderFlags{workers: 5, orientation: "landscape"},
		storageFlags{dsn: "postgres://db/reports"},
	)
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}

	if cfg.Render.PageSize != "legal" {
		t.Errorf("PageSize = %q, want legal from the file", cfg.Render.PageSize)
	}
	if cfg.Render.Workers != 5 || cfg.Render.Orientation != "landscape" {
		t.Errorf("Render = %+v, want flag overrides", cfg.Render)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Storage.Driver != config.StoragePostgres || cfg.Storage.DSN != "postgres://db/reports" {
		t.Errorf("Storage = %+v, want the dsn flag", cfg.Storage)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		common  commonFlags
		render  renderFlags
		wantErr error
	}{
		{"missing file", commonFlags{config: "/nonexistent/reportpdf.yaml"}, renderFlags{}, config.ErrConfigNotFound},
		{"bad page size", commonFlags{}, renderFlags{pageSize: "a3"}, config.ErrInvalidConfig},
		{"bad margin", commonFlags{}, renderFlags{margin: 9}, config.ErrInvalidConfig},
		{"too many workers", commonFlags{}, renderFlags{workers: 99}, config.ErrInvalidConfig},
		{"bad log format", commonFlags{logFormat: "xml"}, renderFlags{}, config.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := loadConfig(tt.common, tt.render, storageFlags{})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("loadConfig() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
