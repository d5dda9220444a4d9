package reportpdf

import (
	"errors"
	"fmt"
)

// Sentinel errors for library operations.
var (
	ErrNoWorkItems     = errors.New("at least one work item is required")
	ErrInvalidWorkItem = errors.New("invalid work item")
	ErrAlreadyStarted  = errors.New("already started")
	ErrAborted         = errors.New("aborted")
	ErrMissingResult   = errors.New("aggregate result missing at finalization")
	ErrUnknownTask     = errors.New("task is not pending")
	ErrPageMismatch    = errors.New("merged page count does not match counted pages")
	ErrTOCOrder        = errors.New("table of contents pages are not monotonic")

	// Fragment production errors.
	ErrRender     = errors.New("fragment rendering failed")
	ErrPageCount  = errors.New("page count failed")
	ErrAttachment = errors.New("attachment retrieval failed")

	// Chrome renderer errors.
	ErrTemplate       = errors.New("fragment template failed")
	ErrPDFGeneration  = errors.New("PDF generation failed")
	ErrBrowserConnect = errors.New("failed to connect to browser")
	ErrPageCreate     = errors.New("failed to create browser page")
	ErrPageLoad       = errors.New("failed to load page")
	ErrTOCExtract     = errors.New("heading extraction failed")

	// Asset errors.
	ErrStyleNotFound    = errors.New("style not found")
	ErrTemplateNotFound = errors.New("template not found")
	ErrInvalidAssetPath = errors.New("invalid asset path")
	ErrInvalidAssetName = errors.New("invalid asset name")

	// Page settings validation errors.
	ErrInvalidPageSize    = errors.New("invalid page size")
	ErrInvalidOrientation = errors.New("invalid orientation")
	ErrInvalidMargin      = errors.New("invalid margin")
)

// TaskError is the terminal error of a Factory or a WorkflowManager.
// It names the task that failed and the work item it belonged to.
type TaskError struct {
	EntityID string
	Task     TaskName
	Err      error
}

func (e *TaskError) Error() string {
	if e.EntityID == "" {
		return fmt.Sprintf("%s: %v", e.Task, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.EntityID, e.Task, e.Err)
}

func (e *TaskError) Unwrap() error { return e.Err }
