package reportpdf

import "fmt"

// TaskName identifies one unit of work a Factory must complete.
type TaskName string

// Task names. The count tasks are derived from the group with CountTask.
const (
	TaskRenderBody       TaskName = "render body"
	TaskDownloadBody     TaskName = "download body"
	TaskRenderSteps      TaskName = "render steps"
	TaskRenderSamples    TaskName = "render samples"
	TaskRenderReview     TaskName = "render review"
	TaskFetchMetadata    TaskName = "fetch attachments metadata"
	TaskFetchAttachments TaskName = "fetch attachments"

	TaskCountBody        TaskName = "count pages: body"
	TaskCountSteps       TaskName = "count pages: steps"
	TaskCountSamples     TaskName = "count pages: samples"
	TaskCountAttachments TaskName = "count pages: attachments"
	TaskCountReview      TaskName = "count pages: review"

	// Finalization tasks of the WorkflowManager.
	TaskMerge        TaskName = "merge"
	TaskWriteOutline TaskName = "write outline"
	TaskArchive      TaskName = "archive"
)

// Group is the role of a fragment inside its document.
type Group string

// Fragment groups.
const (
	GroupBody        Group = "body"
	GroupSteps       Group = "steps"
	GroupSamples     Group = "samples"
	GroupAttachments Group = "attachments"
	GroupReview      Group = "review"
)

// Groups lists the fragment groups in merge order.
var Groups = []Group{GroupBody, GroupSteps, GroupSamples, GroupAttachments, GroupReview}

// CountTask returns the "count pages" task of g.
func CountTask(g Group) TaskName {
	return TaskName("count pages: " + string(g))
}

// Checklist is the set of tasks a work item requires.
// It is not safe for concurrent use; the Factory guards it.
type Checklist struct {
	tasks   []TaskName
	pending map[TaskName]bool
}

// NewChecklist derives the checklist from the shape of item.
// Empty collections contribute no tasks.
func NewChecklist(item *WorkItem) *Checklist {
	var tasks []TaskName
	if item.Pregenerated != "" {
		tasks = append(tasks, TaskDownloadBody)
	} else {
		tasks = append(tasks, TaskRenderBody)
	}
	tasks = append(tasks, TaskCountBody)

	if len(item.Attachments) > 0 {
		tasks = append(tasks, TaskFetchMetadata)
	}
	if len(item.Steps) > 0 {
		tasks = append(tasks, TaskRenderSteps, TaskCountSteps)
	}
	if len(item.Samples) > 0 {
		tasks = append(tasks, TaskRenderSamples, TaskCountSamples)
	}
	if len(item.Attachments) > 0 {
		tasks = append(tasks, TaskFetchAttachments, TaskCountAttachments)
	}
	if item.Review != nil {
		tasks = append(tasks, TaskRenderReview, TaskCountReview)
	}

	c := &Checklist{tasks: tasks, pending: make(map[TaskName]bool, len(tasks))}
	for _, t := range tasks {
		c.pending[t] = true
	}
	return c
}

// Tasks returns every required task in derivation order.
func (c *Checklist) Tasks() []TaskName {
	return append([]TaskName(nil), c.tasks...)
}

// Pending returns the tasks not yet completed, in derivation order.
func (c *Checklist) Pending() []TaskName {
	var out []TaskName
	for _, t := range c.tasks {
		if c.pending[t] {
			out = append(out, t)
		}
	}
	return out
}

// Has reports whether t is part of the checklist.
func (c *Checklist) Has(t TaskName) bool {
	_, ok := c.pending[t]
	return ok
}

// Complete marks t done. Completing an unknown or finished task is an error.
func (c *Checklist) Complete(t TaskName) error {
	if !c.pending[t] {
		return fmt.Errorf("%w: %q", ErrUnknownTask, t)
	}
	c.pending[t] = false
	return nil
}

// Done reports whether every task is complete.
func (c *Checklist) Done() bool {
	for _, p := range c.pending {
		if p {
			return false
		}
	}
	return true
}
