package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/automaxprocs/maxprocs"

	reportpdf "github.com/alnah/go-reportpdf"
	"github.com/alnah/go-reportpdf/internal/config"
	"github.com/alnah/go-reportpdf/internal/hints"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	// maxprocs.Set only fails on an invalid GOMAXPROCS env, where the
	// runtime default applies.
	_, _ = maxprocs.Set(maxprocs.Logger(func(string, ...any) {}))

	ctx, stop := notifyContext(context.Background())
	code := runMain(ctx, os.Args[1:], DefaultEnv())
	stop()
	os.Exit(code)
}

// runMain dispatches args to a command and returns the exit code.
func runMain(ctx context.Context, args []string, env *Environment) int {
	if len(args) == 0 {
		printUsage(env.Stderr)
		return ExitUsage
	}

	var err error
	switch args[0] {
	case "assemble":
		err = runAssemble(ctx, args[1:], env)
	case "serve":
		err = runServe(ctx, args[1:], env, nil)
	case "doctor":
		err = runDoctor(ctx, args[1:], env)
	case "version", "--version":
		fmt.Fprintf(env.Stdout, "reportpdf %s\n", Version)
		return ExitSuccess
	case "help", "-h", "--help":
		runHelp(args[1:], env.Stdout)
		return ExitSuccess
	default:
		fmt.Fprintf(env.Stderr, "unknown command %q\n", args[0])
		printUsage(env.Stderr)
		return ExitUsage
	}

	if err != nil {
		if errors.Is(err, reportpdf.ErrAborted) {
			fmt.Fprintln(env.Stderr, "interrupted")
			return ExitGeneral
		}
		fmt.Fprintln(env.Stderr, err.Error()+hintFor(err))
	}
	return exitCodeFor(err)
}

// hintFor returns an actionable hint for err, or "".
func hintFor(err error) string {
	switch {
	case errors.Is(err, reportpdf.ErrBrowserConnect):
		return hints.ForBrowserConnect()
	case errors.Is(err, reportpdf.ErrPageLoad):
		return hints.ForTimeout()
	case errors.Is(err, config.ErrConfigNotFound):
		return hints.ForConfigNotFound(nil)
	case errors.Is(err, reportpdf.ErrStyleNotFound):
		return hints.ForStyleNotFound(reportpdf.Styles())
	case errors.Is(err, ErrStorage):
		var se *storageError
		if errors.As(err, &se) {
			return hints.ForStorage(se.driver)
		}
	case errors.Is(err, ErrWriteOutput):
		return hints.ForOutput()
	}
	return ""
}
