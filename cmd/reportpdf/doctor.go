package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/go-rod/rod/lib/launcher"

	"github.com/alnah/go-reportpdf/internal/config"
	"github.com/alnah/go-reportpdf/internal/hints"
)

var errDoctorFailed = errors.New("environment not ready")

// storageCheckTimeout bounds the attachment store probe.
const storageCheckTimeout = 10 * time.Second

// Doctor statuses.
const (
	statusReady    = "ready"
	statusWarnings = "warnings"
	statusErrors   = "errors"
)

// doctorResult holds all diagnostic information.
type doctorResult struct {
	Status   string      `json:"status"`
	Chrome   chromeInfo  `json:"chrome"`
	Env      envInfo     `json:"environment"`
	Storage  storageInfo `json:"storage"`
	TempDir  bool        `json:"temp_writable"`
	Warnings []string    `json:"warnings,omitempty"`
	Errors   []string    `json:"errors,omitempty"`
}

type chromeInfo struct {
	Found   bool   `json:"found"`
	Path    string `json:"path,omitempty"`
	Version string `json:"version,omitempty"`
}

type envInfo struct {
	OS        string `json:"os"`
	Arch      string `json:"arch"`
	Container bool   `json:"container"`
	CI        bool   `json:"ci"`
}

type storageInfo struct {
	Driver    string `json:"driver"`
	Reachable bool   `json:"reachable"`
}

func (r *doctorResult) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

func (r *doctorResult) fail(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// runDoctor checks that assembly can run here: a browser, a writable temp
// directory and a reachable attachment store. Errors fail the command;
// warnings do not.
func runDoctor(ctx context.Context, args []string, env *Environment) error {
	flags, err := parseDoctorFlags(args, env.Stderr)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(flags.common, renderFlags{}, flags.storage)
	if err != nil {
		return err
	}

	result := &doctorResult{
		Env: envInfo{
			OS:        runtime.GOOS,
			Arch:      runtime.GOARCH,
			Container: hints.IsInContainer(),
			CI:        os.Getenv("CI") != "",
		},
	}
	checkChrome(result)
	checkTempDir(result)
	checkStorage(ctx, result, cfg.Storage, env)

	switch {
	case len(result.Errors) > 0:
		result.Status = statusErrors
	case len(result.Warnings) > 0:
		result.Status = statusWarnings
	default:
		result.Status = statusReady
	}

	if flags.json {
		enc := json.NewEncoder(env.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}
	} else {
		printDoctorResult(env.Stdout, result)
	}

	if result.Status == statusErrors {
		return errDoctorFailed
	}
	return nil
}

func checkChrome(r *doctorResult) {
	path := os.Getenv("ROD_BROWSER_BIN")
	if path == "" {
		var found bool
		if path, found = launcher.LookPath(); !found {
			r.fail("Chrome/Chromium not found; install it or set ROD_BROWSER_BIN")
			return
		}
	}
	if _, err := os.Stat(path); err != nil {
		r.fail("Chrome not found at %s", path)
		return
	}
	r.Chrome.Found = true
	r.Chrome.Path = path

	out, err := exec.Command(path, "--version").Output() // #nosec G204 -- browser path from env or launcher lookup
	if err != nil {
		r.warn("could not read Chrome version: %v", err)
	} else {
		r.Chrome.Version = strings.TrimSpace(string(out))
	}

	if (r.Env.Container || r.Env.CI) && os.Getenv("CI") != "true" {
		r.warn("container or CI detected; set CI=true to run Chrome without its sandbox")
	}
}

func checkTempDir(r *doctorResult) {
	f, err := os.CreateTemp("", "reportpdf-doctor-*")
	if err != nil {
		r.fail("temp directory not writable: %s", os.TempDir())
		return
	}
	_ = f.Close()
	_ = os.Remove(f.Name())
	r.TempDir = true
}

func checkStorage(ctx context.Context, r *doctorResult, cfg config.StorageConfig, env *Environment) {
	r.Storage.Driver = cfg.Driver
	ctx, cancel := context.WithTimeout(ctx, storageCheckTimeout)
	defer cancel()

	_, closeStore, err := env.OpenStore(ctx, cfg)
	if err != nil {
		r.fail("%v", err)
		return
	}
	closeStore()
	r.Storage.Reachable = true
}

func printDoctorResult(w io.Writer, r *doctorResult) {
	fmt.Fprintln(w, "reportpdf doctor")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Chrome/Chromium")
	if r.Chrome.Found {
		fmt.Fprintf(w, "  [OK] Found at %s\n", r.Chrome.Path)
		if r.Chrome.Version != "" {
			fmt.Fprintf(w, "  [OK] Version: %s\n", r.Chrome.Version)
		}
	} else {
		fmt.Fprintln(w, "  [ERROR] Not found")
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Environment")
	fmt.Fprintf(w, "  [OK] Platform: %s/%s\n", r.Env.OS, r.Env.Arch)
	if r.Env.Container {
		fmt.Fprintln(w, "  [OK] Container: detected")
	}
	if r.Env.CI {
		fmt.Fprintln(w, "  [OK] CI: detected")
	}
	if r.TempDir {
		fmt.Fprintln(w, "  [OK] Temp directory: writable")
	} else {
		fmt.Fprintln(w, "  [ERROR] Temp directory: not writable")
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Attachments")
	if r.Storage.Reachable {
		fmt.Fprintf(w, "  [OK] Store (%s): reachable\n", r.Storage.Driver)
	} else {
		fmt.Fprintf(w, "  [ERROR] Store (%s): unreachable\n", r.Storage.Driver)
	}
	fmt.Fprintln(w)

	if len(r.Warnings) > 0 {
		fmt.Fprintln(w, "Warnings:")
		for _, warn := range r.Warnings {
			fmt.Fprintf(w, "  [WARN] %s\n", warn)
		}
		fmt.Fprintln(w)
	}
	if len(r.Errors) > 0 {
		fmt.Fprintln(w, "Errors:")
		for _, err := range r.Errors {
			fmt.Fprintf(w, "  [ERROR] %s\n", err)
		}
		fmt.Fprintln(w)
	}

	switch r.Status {
	case statusReady:
		fmt.Fprintln(w, "Status: Ready to assemble")
	case statusWarnings:
		fmt.Fprintln(w, "Status: Ready with warnings")
	case statusErrors:
		fmt.Fprintln(w, "Status: Not ready (see errors above)")
	}
}
