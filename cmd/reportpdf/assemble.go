package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	reportpdf "github.com/alnah/go-reportpdf"
	"github.com/alnah/go-reportpdf/internal/config"
)

// ErrWriteOutput wraps failures to write the assembled file.
var ErrWriteOutput = errors.New("failed to write output")

// File permission constants.
const (
	dirPermissions  = 0o750
	filePermissions = 0o644
)

// jobFile is the YAML document listing the work items of one run.
type jobFile struct {
	Bundle bool                 `yaml:"bundle"`
	Output string               `yaml:"output"`
	Items  []reportpdf.WorkItem `yaml:"items"`
}

// runAssemble assembles the job file named in args and writes the result.
func runAssemble(ctx context.Context, args []string, env *Environment) error {
	flags, jobPath, err := parseAssembleFlags(args, env.Stderr)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(flags.common, flags.render, flags.storage)
	if err != nil {
		return err
	}

	var job jobFile
	if err := config.LoadJob(jobPath, &job); err != nil {
		return err
	}
	bundle := job.Bundle || flags.bundle

	a, err := newApp(ctx, cfg, env)
	if err != nil {
		return err
	}
	defer a.close()

	start := env.Now()
	out, err := a.run(ctx, job.Items, bundle)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	target := flags.output
	if target == "" {
		target = job.Output
	}
	if target == "" {
		target = filepath.Dir(jobPath)
	}
	path, err := outputPath(target, out.Filename)
	if err != nil {
		return err
	}
	if err := writeOutput(out, path); err != nil {
		return err
	}

	a.logger.Info().
		Str("path", path).
		Int("items", len(job.Items)).
		Dur("elapsed", env.Now().Sub(start).Round(time.Millisecond)).
		Msg("report written")
	fmt.Fprintln(env.Stdout, path)
	return nil
}

// outputPath resolves target against the suggested file name: an existing
// directory or a path ending in a separator receives the suggested name.
func outputPath(target, suggested string) (string, error) {
	if target == "" {
		return suggested, nil
	}
	if info, err := os.Stat(target); err == nil && info.IsDir() {
		return filepath.Join(target, suggested), nil
	}
	if os.IsPathSeparator(target[len(target)-1]) {
		if err := os.MkdirAll(target, dirPermissions); err != nil {
			return "", fmt.Errorf("%w: %v", ErrWriteOutput, err)
		}
		return filepath.Join(target, suggested), nil
	}
	if err := os.MkdirAll(filepath.Dir(target), dirPermissions); err != nil {
		return "", fmt.Errorf("%w: %v", ErrWriteOutput, err)
	}
	return target, nil
}

// writeOutput copies r to path through a temp file in the same directory,
// so a failed or interrupted run never leaves a partial file behind.
func writeOutput(r io.Reader, path string) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWriteOutput, err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = io.Copy(tmp, r); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteOutput, err)
	}
	if err = tmp.Chmod(filePermissions); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteOutput, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteOutput, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteOutput, err)
	}
	return nil
}
