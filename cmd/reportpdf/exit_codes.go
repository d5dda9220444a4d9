package main

import (
	"errors"
	"os"

	reportpdf "github.com/alnah/go-reportpdf"
	"github.com/alnah/go-reportpdf/internal/config"
)

// Exit codes for the reportpdf CLI.
// Follows Unix conventions: 0=success, 1=general, 2=usage, and custom codes < 126.
const (
	ExitSuccess = 0 // Successful run
	ExitGeneral = 1 // General/unexpected error
	ExitUsage   = 2 // Invalid flags, config, job file or work items
	ExitIO      = 3 // File not found, permission denied, storage unreachable
	ExitBrowser = 4 // Browser/Chrome errors
)

// exitCodeFor returns the exit code for err, matching wrapped errors.
func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}

	if errors.Is(err, reportpdf.ErrBrowserConnect) ||
		errors.Is(err, reportpdf.ErrPageCreate) ||
		errors.Is(err, reportpdf.ErrPageLoad) ||
		errors.Is(err, reportpdf.ErrPDFGeneration) {
		return ExitBrowser
	}

	if errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, os.ErrPermission) ||
		errors.Is(err, ErrWriteOutput) ||
		errors.Is(err, ErrStorage) ||
		errors.Is(err, reportpdf.ErrAttachment) {
		return ExitIO
	}

	if errors.Is(err, ErrUsage) ||
		errors.Is(err, config.ErrConfigNotFound) ||
		errors.Is(err, config.ErrConfigParse) ||
		errors.Is(err, config.ErrInvalidConfig) ||
		errors.Is(err, config.ErrJobParse) ||
		errors.Is(err, reportpdf.ErrNoWorkItems) ||
		errors.Is(err, reportpdf.ErrInvalidWorkItem) ||
		errors.Is(err, reportpdf.ErrStyleNotFound) ||
		errors.Is(err, reportpdf.ErrTemplateNotFound) ||
		errors.Is(err, reportpdf.ErrInvalidAssetPath) ||
		errors.Is(err, reportpdf.ErrInvalidPageSize) ||
		errors.Is(err, reportpdf.ErrInvalidOrientation) ||
		errors.Is(err, reportpdf.ErrInvalidMargin) {
		return ExitUsage
	}

	return ExitGeneral
}
