package reportpdf

import (
	"context"
	"fmt"
)

// Run assembles items and blocks until the output is ready or the run
// fails. Cancelling ctx aborts the run, deletes its temp files and returns
// ErrAborted. The caller must Close the returned output.
func Run(ctx context.Context, items []WorkItem, deps ManagerDeps, opts ...ManagerOption) (*Output, error) {
	m, err := NewWorkflowManager(items, nil, deps, opts...)
	if err != nil {
		return nil, err
	}
	return RunManager(ctx, m)
}

// RunManager starts m and waits for its single terminal event.
func RunManager(ctx context.Context, m *WorkflowManager) (*Output, error) {
	type outcome struct {
		out *Output
		err error
	}
	ch := make(chan outcome, 1)
	m.OnTaskFinished(func(out *Output) { ch <- outcome{out: out} })
	m.OnError(func(err error) { ch <- outcome{err: err} })

	if err := m.Start(ctx); err != nil {
		return nil, err
	}

	select {
	case o := <-ch:
		return o.out, o.err
	case <-ctx.Done():
		m.Abort()
		return nil, fmt.Errorf("%w: %w", ErrAborted, context.Cause(ctx))
	}
}
