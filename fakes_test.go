package mdpreview

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alnah/go-mdpreview/internal/dom"
	"github.com/alnah/go-mdpreview/internal/engine"
	"github.com/alnah/go-mdpreview/internal/paginate"
)

// ---------------------------------------------------------------------------
// Call Log
// ---------------------------------------------------------------------------

// callLog records engine calls in order across goroutines.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(call string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func (l *callLog) count(call string) int {
	n := 0
	for _, c := range l.list() {
		if c == call {
			n++
		}
	}
	return n
}

// ---------------------------------------------------------------------------
// Fake Engines
// ---------------------------------------------------------------------------

// stubMarkup wraps the text in a paragraph.
type stubMarkup struct {
	id       engine.ID
	log      *callLog
	notReady atomic.Bool
	fail     atomic.Pointer[error]
	panics   atomic.Bool
}

func (m *stubMarkup) ID() engine.ID { return m.id }
func (m *stubMarkup) Ready() bool   { return !m.notReady.Load() }

func (m *stubMarkup) Render(text string) (string, error) {
	m.log.add("markup:" + string(m.id))
	if m.panics.Load() {
		panic("renderer exploded")
	}
	if err := m.fail.Load(); err != nil {
		return "", *err
	}
	return "<p>" + text + "</p>", nil
}

func (m *stubMarkup) failWith(err error) {
	m.fail.Store(&err)
}

// stubInPlace records the display content it was handed.
type stubInPlace struct {
	id   engine.ID
	log  *callLog
	fail error
	// onTypeset runs inside Typeset, which then reports ctx.Err().
	onTypeset func()

	mu   sync.Mutex
	seen []string
}

func (m *stubInPlace) ID() engine.ID { return m.id }
func (m *stubInPlace) Ready() bool   { return true }

func (m *stubInPlace) Typeset(ctx context.Context, c *dom.Container) error {
	m.log.add("typeset:" + string(m.id))
	html, _ := c.InnerHTML()
	m.mu.Lock()
	m.seen = append(m.seen, html)
	m.mu.Unlock()
	if m.onTypeset != nil {
		m.onTypeset()
		return ctx.Err()
	}
	return m.fail
}

func (m *stubInPlace) lastSeen() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.seen) == 0 {
		return ""
	}
	return m.seen[len(m.seen)-1]
}

// stubQueue typesets offscreen by echoing its input. While held, jobs wait
// for release.
type stubQueue struct {
	id      engine.ID
	log     *callLog
	started chan string

	mu   sync.Mutex
	gate chan struct{}
}

func newStubQueue(id engine.ID, log *callLog) *stubQueue {
	return &stubQueue{id: id, log: log, started: make(chan string, 16)}
}

func (q *stubQueue) ID() engine.ID { return q.id }
func (q *stubQueue) Ready() bool   { return true }

func (q *stubQueue) TypesetOffscreen(ctx context.Context, escaped string) *engine.Future[string] {
	q.log.add("offscreen:" + string(q.id))
	select {
	case q.started <- escaped:
	default:
	}

	q.mu.Lock()
	gate := q.gate
	q.mu.Unlock()

	f := engine.NewFuture[string]()
	if gate == nil {
		f.Resolve(escaped)
		return f
	}
	go func() {
		select {
		case <-gate:
			f.Resolve(escaped)
		case <-ctx.Done():
			f.Reject(ctx.Err())
		}
	}()
	return f
}

func (q *stubQueue) hold() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.gate = make(chan struct{})
}

func (q *stubQueue) release() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.gate != nil {
		close(q.gate)
		q.gate = nil
	}
}

// stubDiagrams reports a fixed set of failures.
type stubDiagrams struct {
	log  *callLog
	errs []engine.DiagramError
}

func (d *stubDiagrams) ID() engine.ID { return engine.Mermaid }
func (d *stubDiagrams) Ready() bool   { return true }

func (d *stubDiagrams) FindAndRender(*dom.Container) []engine.DiagramError {
	d.log.add("diagrams")
	return d.errs
}

// testEngines is a full fake engine set sharing one call log.
type testEngines struct {
	log        *callLog
	goldmark   *stubMarkup
	gomarkdown *stubMarkup
	katex      *stubInPlace
	mathjax    *stubQueue
	diagrams   *stubDiagrams
}

func newTestEngines() *testEngines {
	log := &callLog{}
	return &testEngines{
		log:        log,
		goldmark:   &stubMarkup{id: MarkupGoldmark, log: log},
		gomarkdown: &stubMarkup{id: MarkupGoMarkdown, log: log},
		katex:      &stubInPlace{id: MathKaTeX, log: log},
		mathjax:    newStubQueue(MathMathJax, log),
		diagrams:   &stubDiagrams{log: log},
	}
}

func (e *testEngines) registry(t *testing.T) *engine.Registry {
	t.Helper()
	r := engine.NewRegistry()
	r.AddMarkup(e.goldmark)
	r.AddMarkup(e.gomarkdown)
	if err := r.AddMath(e.katex); err != nil {
		t.Fatalf("AddMath(katex) error = %v", err)
	}
	if err := r.AddMath(e.mathjax); err != nil {
		t.Fatalf("AddMath(mathjax) error = %v", err)
	}
	r.SetDiagrams(e.diagrams)
	return r
}

// ---------------------------------------------------------------------------
// Fake Surface
// ---------------------------------------------------------------------------

// fakeSurface records what the pipeline shows. onShow runs after each frame
// is recorded, e.g. to report a layout.
type fakeSurface struct {
	mu      sync.Mutex
	frames  []Frame
	scrolls []float64
	notices []Notice
	onShow  func(Frame)
}

func (s *fakeSurface) Show(_ context.Context, f Frame) error {
	s.mu.Lock()
	s.frames = append(s.frames, f)
	hook := s.onShow
	s.mu.Unlock()
	if hook != nil {
		hook(f)
	}
	return nil
}

func (s *fakeSurface) ScrollTo(_ context.Context, offset float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scrolls = append(s.scrolls, offset)
	return nil
}

func (s *fakeSurface) Notify(_ context.Context, n Notice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices = append(s.notices, n)
	return nil
}

func (s *fakeSurface) lastFrame() (Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) == 0 {
		return Frame{}, false
	}
	return s.frames[len(s.frames)-1], true
}

func (s *fakeSurface) scrollOffsets() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]float64(nil), s.scrolls...)
}

func (s *fakeSurface) noticeList() []Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Notice(nil), s.notices...)
}

// ---------------------------------------------------------------------------
// Fake Rasterizer
// ---------------------------------------------------------------------------

var errRasterBoom = errors.New("raster boom")

// fakeRasterizer returns a small PNG instead of driving a browser.
type fakeRasterizer struct {
	fail bool

	mu     sync.Mutex
	pages  []PrintPage
	closed bool
}

func (f *fakeRasterizer) Rasterize(_ context.Context, p PrintPage) (paginate.Image, error) {
	f.mu.Lock()
	f.pages = append(f.pages, p)
	f.mu.Unlock()
	if f.fail {
		return paginate.Image{}, errRasterBoom
	}

	img := image.NewRGBA(image.Rect(0, 0, 40, 120))
	for y := 0; y < 120; y++ {
		for x := 0; x < 40; x++ {
			img.Set(x, y, color.RGBA{R: 0x20, G: uint8(y), B: 0xa0, A: 0xff})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return paginate.Image{}, err
	}
	return paginate.Image{Data: buf.Bytes(), Format: "PNG", Width: 40, Height: 120}, nil
}

func (f *fakeRasterizer) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeRasterizer) capturedPages() []PrintPage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]PrintPage(nil), f.pages...)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

var fixedNow = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

// newTestSession builds a session over the fake engines. It renders on
// every edit and waits briefly for layouts.
func newTestSession(t *testing.T, e *testEngines, opts ...Option) *Session {
	t.Helper()
	base := []Option{
		withRegistry(e.registry(t)),
		WithDebounce(0),
		WithReadiness(time.Millisecond, 5),
		WithLayoutWait(20 * time.Millisecond),
		WithClock(func() time.Time { return fixedNow }),
	}
	s, err := NewSession(append(base, opts...)...)
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// newTestPipeline builds a pipeline over the fake engines.
func newTestPipeline(t *testing.T, e *testEngines, surface Surface, observer Observer) *pipeline {
	t.Helper()
	cfg := defaultSessionConfig()
	cfg.surface = surface
	cfg.observer = observer
	cfg.layoutWait = 20 * time.Millisecond
	cfg.now = func() time.Time { return fixedNow }
	return newPipeline(e.registry(t), newLayoutTracker(), cfg)
}

// recorder collects transitions.
type recorder struct {
	mu  sync.Mutex
	all []Transition
}

func (r *recorder) observe(tr Transition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.all = append(r.all, tr)
}

// states returns the states cycle id went through.
func (r *recorder) states(id uint64) []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []State
	for _, tr := range r.all {
		if tr.CycleID == id {
			out = append(out, tr.To)
		}
	}
	return out
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
