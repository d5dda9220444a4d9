// Package hints appends actionable advice to CLI error messages.
// Every hint is formatted as "\n  hint: <text>".
package hints

import (
	"os"
	"strings"

	"github.com/alnah/go-reportpdf/internal/fileutil"
)

// IsInContainer reports whether the process runs inside a container.
var IsInContainer = func() bool {
	return fileutil.FileExists("/.dockerenv") || fileutil.FileExists("/run/.containerenv")
}

// inCI reports whether a known CI runner is driving the process.
func inCI() bool {
	for _, env := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL"} {
		if os.Getenv(env) != "" {
			return true
		}
	}
	return false
}

// ForBrowserConnect returns hints for browser launch failures.
func ForBrowserConnect() string {
	var hints []string
	if (inCI() || IsInContainer()) && os.Getenv("CI") != "true" {
		hints = append(hints, "set CI=true to disable the Chrome sandbox in containers")
	}
	if os.Getenv("ROD_BROWSER_BIN") == "" {
		hints = append(hints, "set ROD_BROWSER_BIN to an installed Chrome or Chromium")
	}
	return formatHints(hints)
}

// ForTimeout returns a hint for fragments that take too long to load.
func ForTimeout() string {
	return format("raise render.timeout in the config or pass --timeout")
}

// ForConfigNotFound suggests --config and the first user config location
// that was searched.
func ForConfigNotFound(searched []string) string {
	hint := "use --config /path/to/file.yaml"
	for _, p := range searched {
		if strings.Contains(p, "go-reportpdf") {
			hint += " or create " + p
			break
		}
	}
	return format(hint)
}

// ForStorage returns hints for attachment store failures.
func ForStorage(driver string) string {
	switch driver {
	case "postgres":
		return format("check storage.dsn and that the files table exists")
	case "dir":
		return format("check storage.dir exists and holds the referenced files")
	default:
		return ""
	}
}

// ForStyleNotFound lists the available styles.
func ForStyleNotFound(available []string) string {
	if len(available) == 0 {
		return ""
	}
	return format("available: " + strings.Join(available, ", "))
}

// ForOutput returns a hint for output write failures.
func ForOutput() string {
	return format("check the parent directory exists and is writable")
}

func format(hint string) string {
	if hint == "" {
		return ""
	}
	return "\n  hint: " + hint
}

func formatHints(hints []string) string {
	if len(hints) == 0 {
		return ""
	}
	return format(strings.Join(hints, "; "))
}
