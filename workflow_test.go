package reportpdf

import (
	"context"
	"errors"
	"io"
	"os"
	"testing"
	"time"
)

// newTestManagerDeps returns fake collaborators for a WorkflowManager.
func newTestManagerDeps(t *testing.T) (ManagerDeps, *fakeRenderer, *fakeTools) {
	t.Helper()

	deps, r, _, _ := newTestDeps(t)
	tools := &fakeTools{}
	return ManagerDeps{FactoryDeps: deps, Tools: tools}, r, tools
}

// runManager starts m and waits for its terminal event.
func runManager(t *testing.T, m *WorkflowManager) (*Output, error) {
	t.Helper()

	outs := make(chan *Output, 2)
	errs := make(chan error, 2)
	m.OnTaskFinished(func(out *Output) { outs <- out })
	m.OnError(func(err error) { errs <- err })

	if err := m.Start(context.Background()); err != nil {
		return nil, err
	}
	select {
	case out := <-outs:
		assertNoEvent(t, errs, 20*time.Millisecond, "error after finish")
		return out, nil
	case err := <-errs:
		assertNoEvent(t, outs, 20*time.Millisecond, "finish after error")
		return nil, err
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the run")
		return nil, nil
	}
}

// ---------------------------------------------------------------------------
// Combined output
// ---------------------------------------------------------------------------

func TestWorkflowManager_Combined(t *testing.T) {
	t.Parallel()

	deps, r, tools := newTestManagerDeps(t)
	r.pages = func(d *FragmentData) int {
		if d.EntityID == "A" && d.Group == GroupBody {
			return 3
		}
		return 1
	}
	r.toc = func(d *FragmentData) []*TocNode {
		if d.Group == GroupBody {
			return []*TocNode{NewTocNode("Summary", 0), NewTocNode("Details", 1)}
		}
		return nil
	}

	items := []WorkItem{
		{ID: "A", Steps: []Section{{Title: "Mix"}}},
		{ID: "B", Samples: []Section{{}}, Review: &Section{}},
	}
	m, err := NewWorkflowManager(items, nil, deps)
	if err != nil {
		t.Fatalf("NewWorkflowManager() error = %v", err)
	}

	out, err := runManager(t, m)
	if err != nil {
		t.Fatalf("run error = %v", err)
	}
	defer out.Close()

	if out.ContentType != ContentTypePDF || out.Filename != "reports.pdf" {
		t.Errorf("output = %q %q, want %q reports.pdf", out.ContentType, out.Filename, ContentTypePDF)
	}
	body, err := io.ReadAll(out)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	// A: body 3 + step 1; B: body 1 + sample 1 + review 1
	if string(body) != "7" {
		t.Errorf("merged pages = %s, want 7", body)
	}

	if len(tools.merged) != 1 || len(tools.merged[0]) != 5 {
		t.Fatalf("merged = %v, want one merge of 5 fragments", tools.merged)
	}
	want := "" +
		"A@0\n" +
		"  Summary@0\n" +
		"  Details@1\n" +
		"  Steps@3\n" +
		"    Mix@3\n" +
		"B@4\n" +
		"  Summary@4\n" +
		"  Details@4\n" +
		"  Samples@5\n" +
		"    Sample 1@5\n" +
		"  Review@6\n"
	if got := outlineString(tools.outlines[0].roots); got != want {
		t.Errorf("outline =\n%s\nwant\n%s", got, want)
	}

	m.Wait()
	if len(m.Results()) != 2 || m.Results()[0].EntityID != "A" {
		t.Errorf("Results() = %+v", m.Results())
	}
}

func TestWorkflowManager_SingleItemFilename(t *testing.T) {
	t.Parallel()

	deps, _, _ := newTestManagerDeps(t)
	m, err := NewWorkflowManager([]WorkItem{{ID: "lot 42"}}, nil, deps)
	if err != nil {
		t.Fatalf("NewWorkflowManager() error = %v", err)
	}

	out, err := runManager(t, m)
	if err != nil {
		t.Fatalf("run error = %v", err)
	}
	defer out.Close()

	if out.Filename != "lot_42.pdf" {
		t.Errorf("Filename = %q, want lot_42.pdf", out.Filename)
	}
}

func TestWorkflowManager_CloseDeletesTempFiles(t *testing.T) {
	t.Parallel()

	deps, r, tools := newTestManagerDeps(t)
	m, err := NewWorkflowManager([]WorkItem{{ID: "x", Steps: []Section{{}}}}, nil, deps)
	if err != nil {
		t.Fatalf("NewWorkflowManager() error = %v", err)
	}

	out, err := runManager(t, m)
	if err != nil {
		t.Fatalf("run error = %v", err)
	}
	merged := tools.merged[0]
	if len(fragmentFiles(t, r.dir)) == 0 {
		t.Fatal("fragments deleted before the output was closed")
	}

	if err := out.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := out.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if left := fragmentFiles(t, r.dir); len(left) != 0 {
		t.Errorf("fragments left after Close: %v", left)
	}
	for _, p := range merged {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("%s still exists", p)
		}
	}
}

// ---------------------------------------------------------------------------
// Bundle output
// ---------------------------------------------------------------------------

func TestWorkflowManager_Bundle(t *testing.T) {
	t.Parallel()

	deps, _, tools := newTestManagerDeps(t)
	items := []WorkItem{
		{ID: "A", Steps: []Section{{}, {}}},
		{ID: "a"},
		{ID: "B"},
	}
	m, err := NewWorkflowManager(items, nil, deps, WithBundle(nil))
	if err != nil {
		t.Fatalf("NewWorkflowManager() error = %v", err)
	}

	out, err := runManager(t, m)
	if err != nil {
		t.Fatalf("run error = %v", err)
	}
	defer out.Close()

	if out.ContentType != ContentTypeZip || out.Filename != "reports.zip" {
		t.Errorf("output = %q %q", out.ContentType, out.Filename)
	}
	if len(tools.merged) != 3 {
		t.Fatalf("merges = %d, want one per item", len(tools.merged))
	}

	var names []string
	for _, f := range tools.archived {
		names = append(names, f.Name)
	}
	want := []string{"A.pdf", "a-2.pdf", "B.pdf"}
	if len(names) != len(want) {
		t.Fatalf("archived = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("archived = %v, want %v", names, want)
			break
		}
	}

	// Every bundled document starts at page 0.
	for _, o := range tools.outlines {
		if len(o.roots) != 1 || o.roots[0].Page != 0 {
			t.Errorf("outline roots = %s", outlineString(o.roots))
		}
	}
}

func TestWorkflowManager_BundleNamesFromEntityIDs(t *testing.T) {
	t.Parallel()

	deps, _, tools := newTestManagerDeps(t)
	items := []WorkItem{{ID: "internal-1", Title: "P-100"}, {ID: "internal-2", Title: "P-200"}}
	byTitle := func(w WorkItem) string { return w.Title }

	m, err := NewWorkflowManager(items, byTitle, deps, WithBundle(nil))
	if err != nil {
		t.Fatalf("NewWorkflowManager() error = %v", err)
	}
	out, err := runManager(t, m)
	if err != nil {
		t.Fatalf("run error = %v", err)
	}
	defer out.Close()

	tools.mu.Lock()
	defer tools.mu.Unlock()
	want := []string{"P-100.pdf", "P-200.pdf"}
	if len(tools.archived) != len(want) {
		t.Fatalf("archived %d files, want %d", len(tools.archived), len(want))
	}
	for i, f := range tools.archived {
		if f.Name != want[i] {
			t.Errorf("archived[%d] = %q, want %q", i, f.Name, want[i])
		}
	}
	for i, o := range tools.outlines {
		if len(o.roots) != 1 || o.roots[0].Title+".pdf" != want[i] {
			t.Errorf("outline %d = %s, want root titled after %s", i, outlineString(o.roots), want[i])
		}
	}
}

// ---------------------------------------------------------------------------
// Failures
// ---------------------------------------------------------------------------

func TestWorkflowManager_FactoryFailure(t *testing.T) {
	t.Parallel()

	deps, r, tools := newTestManagerDeps(t)
	r.fail = func(d *FragmentData) error {
		if d.EntityID == "bad" {
			return errBoom
		}
		return nil
	}

	m, err := NewWorkflowManager([]WorkItem{{ID: "good", Steps: []Section{{}}}, {ID: "bad"}}, nil, deps)
	if err != nil {
		t.Fatalf("NewWorkflowManager() error = %v", err)
	}

	_, err = runManager(t, m)
	var te *TaskError
	if !errors.As(err, &te) || te.EntityID != "bad" || !errors.Is(err, errBoom) {
		t.Fatalf("run error = %v, want TaskError of bad wrapping boom", err)
	}

	m.Wait()
	if len(tools.merged) != 0 {
		t.Error("merge ran after a failure")
	}
	if left := fragmentFiles(t, r.dir); len(left) != 0 {
		t.Errorf("files left after failure: %v", left)
	}
}

func TestWorkflowManager_PageMismatch(t *testing.T) {
	t.Parallel()

	deps, r, tools := newTestManagerDeps(t)
	tools.extraPages = 1

	m, err := NewWorkflowManager([]WorkItem{{ID: "x"}}, nil, deps)
	if err != nil {
		t.Fatalf("NewWorkflowManager() error = %v", err)
	}

	_, err = runManager(t, m)
	if !errors.Is(err, ErrPageMismatch) {
		t.Fatalf("run error = %v, want ErrPageMismatch", err)
	}
	m.Wait()
	if left := fragmentFiles(t, r.dir); len(left) != 0 {
		t.Errorf("files left after failure: %v", left)
	}
}

func TestWorkflowManager_MergeFailure(t *testing.T) {
	t.Parallel()

	deps, _, tools := newTestManagerDeps(t)
	tools.mergeErr = errBoom

	m, err := NewWorkflowManager([]WorkItem{{ID: "x"}}, nil, deps)
	if err != nil {
		t.Fatalf("NewWorkflowManager() error = %v", err)
	}

	_, err = runManager(t, m)
	var te *TaskError
	if !errors.As(err, &te) || te.Task != TaskMerge {
		t.Fatalf("run error = %v, want a merge TaskError", err)
	}
}

func TestWorkflowManager_InitFailureReturnedOnce(t *testing.T) {
	t.Parallel()

	deps, _, tools := newTestManagerDeps(t)
	deps.Renderer = nil

	m, err := NewWorkflowManager([]WorkItem{{ID: "x"}}, nil, deps)
	if err != nil {
		t.Fatalf("NewWorkflowManager() error = %v", err)
	}
	errs := make(chan error, 1)
	m.OnError(func(err error) { errs <- err })

	err = m.Start(context.Background())
	var te *TaskError
	if !errors.As(err, &te) || te.EntityID != "x" || !errors.Is(err, ErrInvalidWorkItem) {
		t.Fatalf("Start() error = %v, want init TaskError wrapping ErrInvalidWorkItem", err)
	}
	assertNoEvent(t, errs, 20*time.Millisecond, "OnError after a failed Start")
	if len(tools.merged) != 0 {
		t.Error("merge ran after a failed Start")
	}
}

func TestWorkflowManager_DeliveryReleasesRunContext(t *testing.T) {
	t.Parallel()

	deps, _, _ := newTestManagerDeps(t)
	m, err := NewWorkflowManager([]WorkItem{{ID: "x"}, {ID: "y"}}, nil, deps)
	if err != nil {
		t.Fatalf("NewWorkflowManager() error = %v", err)
	}
	out, err := runManager(t, m)
	if err != nil {
		t.Fatalf("run error = %v", err)
	}
	defer out.Close()

	for _, f := range m.factories {
		f.mu.Lock()
		ctxErr := f.ctx.Err()
		f.mu.Unlock()
		if !errors.Is(ctxErr, context.Canceled) {
			t.Errorf("factory %s context error = %v, want context.Canceled", f.EntityID(), ctxErr)
		}
	}
}

func TestNewWorkflowManager_Validation(t *testing.T) {
	t.Parallel()

	deps, _, _ := newTestManagerDeps(t)

	if _, err := NewWorkflowManager(nil, nil, deps); !errors.Is(err, ErrNoWorkItems) {
		t.Errorf("no items error = %v, want ErrNoWorkItems", err)
	}
	if _, err := NewWorkflowManager([]WorkItem{{ID: "ok"}, {ID: " "}}, nil, deps); !errors.Is(err, ErrInvalidWorkItem) {
		t.Errorf("blank id error = %v, want ErrInvalidWorkItem", err)
	}
}

func TestWorkflowManager_StartTwice(t *testing.T) {
	t.Parallel()

	deps, _, _ := newTestManagerDeps(t)
	m, err := NewWorkflowManager([]WorkItem{{ID: "x"}}, nil, deps)
	if err != nil {
		t.Fatalf("NewWorkflowManager() error = %v", err)
	}

	out, err := runManager(t, m)
	if err != nil {
		t.Fatalf("run error = %v", err)
	}
	defer out.Close()

	if err := m.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start() error = %v, want ErrAlreadyStarted", err)
	}
}

// ---------------------------------------------------------------------------
// Abort
// ---------------------------------------------------------------------------

func TestRun_ContextCancelAborts(t *testing.T) {
	t.Parallel()

	deps, r, tools := newTestManagerDeps(t)
	r.delay = time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := Run(ctx, []WorkItem{{ID: "slow", Steps: []Section{{}, {}}}}, deps)
	if !errors.Is(err, ErrAborted) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run() error = %v, want ErrAborted and DeadlineExceeded", err)
	}
	time.Sleep(50 * time.Millisecond)
	if left := fragmentFiles(t, r.dir); len(left) != 0 {
		t.Errorf("files left after abort: %v", left)
	}
	if len(tools.merged) != 0 {
		t.Error("merge ran after abort")
	}
}

func TestWorkflowManager_AbortAfterSomeItemsDone(t *testing.T) {
	t.Parallel()

	deps, r, tools := newTestManagerDeps(t)
	r.delayFor = func(d *FragmentData) time.Duration {
		if d.EntityID == "slow" {
			return time.Second
		}
		return 0
	}

	m, err := NewWorkflowManager([]WorkItem{
		{ID: "fast", Steps: []Section{{}}},
		{ID: "slow", Steps: []Section{{}}},
	}, nil, deps)
	if err != nil {
		t.Fatalf("NewWorkflowManager() error = %v", err)
	}
	outs := make(chan *Output, 1)
	errs := make(chan error, 1)
	m.OnTaskFinished(func(out *Output) { outs <- out })
	m.OnError(func(err error) { errs <- err })

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for m.Results()[0] == nil {
		if time.Now().After(deadline) {
			t.Fatal("fast item never finished")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if m.Results()[1] != nil {
		t.Fatal("slow item finished before abort")
	}
	if len(fragmentFiles(t, r.dir)) == 0 {
		t.Fatal("fast item produced no fragments")
	}

	m.Abort()
	m.Wait()

	assertNoEvent(t, outs, 50*time.Millisecond, "finish after abort")
	assertNoEvent(t, errs, 0, "error after abort")
	if len(tools.merged) != 0 {
		t.Error("merge ran after abort")
	}
	if left := fragmentFiles(t, r.dir); len(left) != 0 {
		t.Errorf("files left after abort: %v", left)
	}
}

func TestRun_Success(t *testing.T) {
	t.Parallel()

	deps, _, _ := newTestManagerDeps(t)

	out, err := Run(context.Background(), []WorkItem{{ID: "r1"}, {ID: "r2"}}, deps)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	defer out.Close()

	body, _ := io.ReadAll(out)
	if string(body) != "2" {
		t.Errorf("merged pages = %s, want 2", body)
	}
}

func TestWorkflowManager_AbortAfterDeliveryClosesOutput(t *testing.T) {
	t.Parallel()

	deps, r, _ := newTestManagerDeps(t)
	m, err := NewWorkflowManager([]WorkItem{{ID: "x"}}, nil, deps)
	if err != nil {
		t.Fatalf("NewWorkflowManager() error = %v", err)
	}

	if _, err := runManager(t, m); err != nil {
		t.Fatalf("run error = %v", err)
	}
	m.Abort()

	if left := fragmentFiles(t, r.dir); len(left) != 0 {
		t.Errorf("files left after abort: %v", left)
	}
}
