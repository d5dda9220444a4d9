package reportpdf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/alnah/go-reportpdf/internal/fileutil"
	"github.com/alnah/go-reportpdf/internal/metrics"
)

// Content types of a finished run.
const (
	ContentTypePDF = "application/pdf"
	ContentTypeZip = "application/zip"
)

// ManagerDeps are the collaborators of a WorkflowManager.
type ManagerDeps struct {
	FactoryDeps
	Tools DocumentTools // nil uses PDFTools
}

// ManagerOption configures a WorkflowManager.
type ManagerOption func(*WorkflowManager)

// WithBundle produces one document per work item, archived together.
// A nil naming rule names each entry "<entity id>.pdf".
func WithBundle(naming NamingRule) ManagerOption {
	return func(m *WorkflowManager) {
		m.bundle = true
		m.naming = naming
	}
}

// WithManagerLogger sets the logger of the manager and its factories.
func WithManagerLogger(l zerolog.Logger) ManagerOption {
	return func(m *WorkflowManager) { m.logger = l }
}

// WithManagerMetrics records run outcomes, and factory metrics.
func WithManagerMetrics(mt *metrics.Metrics) ManagerOption {
	return func(m *WorkflowManager) { m.metrics = mt }
}

// Output is the finished document or archive. Close deletes every temp
// file of the run; it is safe to call more than once.
type Output struct {
	io.ReadCloser
	ContentType string
	Filename    string
}

type resultStream struct {
	f       *os.File
	once    sync.Once
	cleanup func()
	err     error
}

func (s *resultStream) Read(p []byte) (int, error) { return s.f.Read(p) }

func (s *resultStream) Close() error {
	s.once.Do(func() {
		s.err = s.f.Close()
		s.cleanup()
	})
	return s.err
}

type managerState int

const (
	managerNew managerState = iota
	managerRunning
	managerFinalizing
	managerFinished
	managerFailed
	managerAborted
)

func (s managerState) terminal() bool {
	return s == managerFinished || s == managerFailed || s == managerAborted
}

// WorkflowManager runs one Factory per work item and, once every Factory
// is done, merges their fragments into one outlined document, or into one
// document per item archived together when bundling.
type WorkflowManager struct {
	items   []WorkItem
	ids     []string
	deps    ManagerDeps
	bundle  bool
	naming  NamingRule
	logger  zerolog.Logger
	metrics *metrics.Metrics

	mu         sync.Mutex
	state      managerState
	cancel     context.CancelFunc
	stopCancel func() bool
	factories  []*Factory
	results    []*AggregateResult
	remaining  int
	temps      []string
	output     *Output
	onError    []func(error)
	onFinished []func(*Output)
	started    time.Time
	finalizing sync.WaitGroup
}

// NewWorkflowManager validates items and creates their factories.
// entityID extracts the id used for titles, file names and logs; nil uses EntityID.
func NewWorkflowManager(items []WorkItem, entityID func(WorkItem) string, deps ManagerDeps, opts ...ManagerOption) (*WorkflowManager, error) {
	if len(items) == 0 {
		return nil, ErrNoWorkItems
	}
	if entityID == nil {
		entityID = EntityID
	}

	m := &WorkflowManager{
		items:  append([]WorkItem(nil), items...),
		deps:   deps,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.deps.Tools == nil {
		m.deps.Tools = PDFTools()
	}

	m.ids = make([]string, len(items))
	m.factories = make([]*Factory, len(items))
	m.results = make([]*AggregateResult, len(items))
	m.remaining = len(items)

	for i := range m.items {
		if err := m.items[i].Validate(); err != nil {
			return nil, fmt.Errorf("item %d: %w", i+1, err)
		}
		m.ids[i] = entityID(m.items[i])

		f := NewFactory(m.ids[i], m.deps.FactoryDeps, WithLogger(m.logger), WithMetrics(m.metrics))
		f.OnceDone(func(res *AggregateResult) { m.factoryDone(i, res) })
		f.OnceError(func(err *TaskError) { m.fail(err) })
		m.factories[i] = f
	}
	return m, nil
}

// OnError registers cb for the error event, emitted at most once.
func (m *WorkflowManager) OnError(cb func(error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onError = append(m.onError, cb)
}

// OnTaskFinished registers cb for the finished event, emitted at most once
// with the output. The receiver must Close it.
func (m *WorkflowManager) OnTaskFinished(cb func(*Output)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onFinished = append(m.onFinished, cb)
}

// Start initializes every Factory. Cancelling ctx before the output is
// delivered aborts the run.
func (m *WorkflowManager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.state != managerNew {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.state = managerRunning
	m.started = time.Now()
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.stopCancel = context.AfterFunc(ctx, m.Abort)
	m.mu.Unlock()

	m.metrics.RunStarted()
	m.logger.Info().Int("items", len(m.items)).Bool("bundle", m.bundle).Msg("run started")

	for i, f := range m.factories {
		if err := f.Init(runCtx, m.items[i]); err != nil {
			te := &TaskError{EntityID: m.ids[i], Task: "init", Err: err}
			m.failStart(te)
			return te
		}
	}
	return nil
}

// failStart tears down a run whose Start failed. The error is returned to
// the caller of Start only, so OnError is not emitted.
func (m *WorkflowManager) failStart(err error) {
	m.mu.Lock()
	if m.state.terminal() {
		m.mu.Unlock()
		return
	}
	m.state = managerFailed
	m.mu.Unlock()

	m.teardown()
	m.metrics.RunFinished(metrics.OutcomeError, time.Since(m.started))
	m.logger.Error().Err(err).Msg("run failed to start")
}

// Abort stops every Factory and deletes all temp files. Nothing is
// emitted. After delivery it closes the output.
func (m *WorkflowManager) Abort() {
	m.mu.Lock()
	prev := m.state
	if prev == managerFailed || prev == managerAborted {
		m.mu.Unlock()
		return
	}
	m.state = managerAborted
	out := m.output
	m.mu.Unlock()

	if prev == managerFinished && out != nil {
		_ = out.Close()
		return
	}
	m.teardown()
	if prev != managerNew {
		m.metrics.RunFinished(metrics.OutcomeAborted, time.Since(m.started))
		m.logger.Info().Msg("run aborted")
	}
}

// Wait blocks until every Factory and the finalization have returned.
func (m *WorkflowManager) Wait() {
	for _, f := range m.factories {
		f.Wait()
	}
	m.finalizing.Wait()
}

// Results returns the aggregate results received so far, by item.
func (m *WorkflowManager) Results() []*AggregateResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*AggregateResult(nil), m.results...)
}

func (m *WorkflowManager) factoryDone(i int, res *AggregateResult) {
	m.mu.Lock()
	if m.state != managerRunning || m.results[i] != nil {
		m.mu.Unlock()
		return
	}
	m.results[i] = res
	m.remaining--
	last := m.remaining == 0
	if last {
		m.state = managerFinalizing
		m.finalizing.Add(1)
	}
	m.mu.Unlock()

	m.logger.Debug().Str("entity_id", m.ids[i]).Int("pages", res.TotalPages()).Msg("item ready")
	if last {
		go m.finalize()
	}
}

// fail moves the manager to its error state and emits the error once.
func (m *WorkflowManager) fail(err error) {
	m.mu.Lock()
	if m.state.terminal() {
		m.mu.Unlock()
		m.logger.Debug().Err(err).Msg("aborted")
		return
	}
	m.state = managerFailed
	callbacks := m.onError
	m.mu.Unlock()

	m.teardown()
	m.metrics.RunFinished(metrics.OutcomeError, time.Since(m.started))
	m.logger.Error().Err(err).Msg("run failed")
	for _, cb := range callbacks {
		cb(err)
	}
}

// teardown cancels all work and deletes every temp file of the run.
func (m *WorkflowManager) teardown() {
	m.mu.Lock()
	cancel, stop := m.cancel, m.stopCancel
	m.mu.Unlock()

	if stop != nil {
		stop()
	}
	if cancel != nil {
		cancel()
	}
	for _, f := range m.factories {
		f.Abort()
	}
	m.cleanup()
}

// cleanup deletes fragment files and finalization temp files.
func (m *WorkflowManager) cleanup() {
	m.mu.Lock()
	temps := m.temps
	m.temps = nil
	m.mu.Unlock()

	for _, f := range m.factories {
		f.Cleanup()
	}
	fileutil.FailSafeDelete(m.logger, temps...)
}

func (m *WorkflowManager) finalizingNow() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == managerFinalizing
}

func (m *WorkflowManager) finalize() {
	defer m.finalizing.Done()

	var temps []string
	tempPath := func(label, ext string) (string, error) {
		p, err := fileutil.TempPath(label, ext)
		if err == nil {
			temps = append(temps, p)
		}
		return p, err
	}

	m.mu.Lock()
	results := append([]*AggregateResult(nil), m.results...)
	m.mu.Unlock()

	var (
		out         string
		contentType string
		filename    string
		err         error
	)
	if m.bundle {
		out, err = m.produceBundle(results, tempPath)
		contentType, filename = ContentTypeZip, "reports.zip"
	} else {
		out, err = m.produceCombined(results, tempPath)
		contentType, filename = ContentTypePDF, m.combinedName()
	}

	if err != nil {
		fileutil.FailSafeDelete(m.logger, temps...)
		if errors.Is(err, errStopped) {
			return
		}
		m.fail(err)
		return
	}

	f, err := os.Open(out) // #nosec G304 -- path is a temp file produced by this process
	if err != nil {
		fileutil.FailSafeDelete(m.logger, temps...)
		m.fail(&TaskError{Task: TaskMerge, Err: err})
		return
	}

	m.mu.Lock()
	if m.state != managerFinalizing {
		m.mu.Unlock()
		_ = f.Close()
		fileutil.FailSafeDelete(m.logger, temps...)
		m.logger.Debug().Msg("aborted: output discarded")
		return
	}
	m.state = managerFinished
	m.temps = temps
	m.output = &Output{
		ReadCloser:  &resultStream{f: f, cleanup: m.cleanup},
		ContentType: contentType,
		Filename:    filename,
	}
	output, callbacks, stop, cancel := m.output, m.onFinished, m.stopCancel, m.cancel
	m.mu.Unlock()

	if stop != nil {
		stop()
	}
	// Every factory is done; release the run context.
	if cancel != nil {
		cancel()
	}
	m.metrics.RunFinished(metrics.OutcomeDone, time.Since(m.started))
	m.logger.Info().Str("content_type", contentType).Dur("elapsed", time.Since(m.started)).Msg("run finished")
	for _, cb := range callbacks {
		cb(output)
	}
}

func (m *WorkflowManager) produceCombined(results []*AggregateResult, tempPath func(string, string) (string, error)) (string, error) {
	l, err := layoutAll(results, m.ids)
	if err != nil {
		return "", &TaskError{Task: TaskMerge, Err: err}
	}
	return m.assemble("combined", l, tempPath)
}

func (m *WorkflowManager) produceBundle(results []*AggregateResult, tempPath func(string, string) (string, error)) (string, error) {
	names := uniqueNames(m.items, m.ids, m.naming)
	entries := make([]ArchiveFile, 0, len(results))

	for i, res := range results {
		l, err := layoutItem(res, m.ids[i], 0)
		if err != nil {
			return "", &TaskError{EntityID: m.ids[i], Task: TaskMerge, Err: err}
		}
		out, err := m.assemble(m.ids[i], l, tempPath)
		if err != nil {
			var te *TaskError
			if errors.As(err, &te) {
				te.EntityID = m.ids[i]
			}
			return "", err
		}
		entries = append(entries, ArchiveFile{Name: names[i], Path: out})
	}

	if !m.finalizingNow() {
		return "", errStopped
	}
	zip, err := tempPath("bundle", "zip")
	if err != nil {
		return "", &TaskError{Task: TaskArchive, Err: err}
	}
	if err := m.deps.Tools.Archive(entries, zip); err != nil {
		return "", &TaskError{Task: TaskArchive, Err: err}
	}
	return zip, nil
}

// assemble merges the files of l and writes its table of contents as the
// document outline.
func (m *WorkflowManager) assemble(label string, l *layout, tempPath func(string, string) (string, error)) (string, error) {
	if err := CheckMonotonic(l.toc); err != nil {
		return "", &TaskError{Task: TaskWriteOutline, Err: err}
	}
	if !m.finalizingNow() {
		return "", errStopped
	}

	merged, err := tempPath(label+"-merged", "pdf")
	if err != nil {
		return "", &TaskError{Task: TaskMerge, Err: err}
	}
	if err := m.deps.Tools.Merge(l.files, merged); err != nil {
		return "", &TaskError{Task: TaskMerge, Err: err}
	}
	if !m.finalizingNow() {
		return "", errStopped
	}

	w, err := m.deps.Tools.OpenOutline(merged)
	if err != nil {
		return "", &TaskError{Task: TaskWriteOutline, Err: err}
	}
	if w.Pages() != l.pages {
		return "", &TaskError{Task: TaskMerge, Err: fmt.Errorf("%w: merged %d, counted %d", ErrPageMismatch, w.Pages(), l.pages)}
	}
	if err := WriteOutline(w, l.toc); err != nil {
		return "", &TaskError{Task: TaskWriteOutline, Err: err}
	}

	out, err := tempPath(label, "pdf")
	if err != nil {
		return "", &TaskError{Task: TaskWriteOutline, Err: err}
	}
	if err := w.Commit(out); err != nil {
		return "", &TaskError{Task: TaskWriteOutline, Err: err}
	}

	m.metrics.Pages(l.pages)
	m.logger.Debug().Str("path", out).Int("pages", l.pages).Int("fragments", len(l.files)).Msg("document assembled")
	return out, nil
}

func (m *WorkflowManager) combinedName() string {
	if len(m.items) == 1 {
		return sanitizeName(m.ids[0], 0)
	}
	return "reports.pdf"
}
