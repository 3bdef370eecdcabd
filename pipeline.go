package mdpreview

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zeebo/blake3"

	"github.com/alnah/go-mdpreview/internal/dom"
	"github.com/alnah/go-mdpreview/internal/engine"
	"github.com/alnah/go-mdpreview/internal/escape"
)

// pipeline runs render cycles against one display.
//
// Two orderings exist. With an in-place math engine the markup is parsed
// and committed first, then math and diagrams are processed inside the
// display. With the queue engine under the gomarkdown markup engine, the
// escaped source is typeset offscreen first and the result is parsed; only
// one such job may be in flight and triggers arriving meanwhile are dropped.
type pipeline struct {
	registry   *engine.Registry
	surface    Surface
	layouts    *layoutTracker
	logger     *slog.Logger
	observer   Observer
	layoutWait time.Duration
	now        func() time.Time

	queueBusy atomic.Bool

	// mu is held from commit to publish.
	mu        sync.Mutex
	display   *dom.Container
	shown     string // HTML of the last published frame
	lastID    uint64
	committed *Snapshot
}

func newPipeline(registry *engine.Registry, layouts *layoutTracker, cfg sessionConfig) *pipeline {
	return &pipeline{
		registry:   registry,
		surface:    cfg.surface,
		layouts:    layouts,
		logger:     cfg.logger,
		observer:   cfg.observer,
		layoutWait: cfg.layoutWait,
		now:        cfg.now,
		display:    dom.NewContainer(),
	}
}

// run executes one cycle. The error is non-nil when the cycle ended in
// Error or was cancelled; the result is always set.
func (p *pipeline) run(ctx context.Context, c Cycle) (*CycleResult, error) {
	res := &CycleResult{CycleID: c.ID, State: Idle}
	tr := &tracker{p: p, id: c.ID}

	markup, err := p.registry.Markup(c.Config.Markup)
	if err != nil {
		return res, err
	}
	if !markup.Ready() {
		return res, fmt.Errorf("%w: %s", ErrEngineUnavailable, c.Config.Markup)
	}

	if pre, ok := p.preMarkupMath(c.Config); ok {
		return p.runPreMarkup(ctx, tr, res, c, markup, pre)
	}
	return p.runInPlace(ctx, tr, res, c, markup)
}

// preMarkupMath reports whether the cycle takes the offscreen ordering.
func (p *pipeline) preMarkupMath(cfg RenderConfig) (engine.PreMarkupMath, bool) {
	if cfg.Markup != MarkupGoMarkdown {
		return nil, false
	}
	return p.registry.PreMarkupMath(cfg.Math)
}

func (p *pipeline) runInPlace(ctx context.Context, tr *tracker, res *CycleResult, c Cycle, markup engine.Markup) (*CycleResult, error) {
	tr.to(Parsing, nil)
	out, err := renderMarkup(markup.Render, c.Source)
	if err != nil {
		return p.fail(ctx, tr, res, c, err)
	}

	m, ok := p.registry.InPlaceMath(c.Config.Math)
	return p.commit(ctx, tr, res, c, out, func() error {
		tr.to(MathProcessing, nil)
		if !ok || !m.Ready() {
			return nil
		}
		if err := typesetInPlace(ctx, m, p.display); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.logger.Warn("math post-pass failed", "cycle", c.ID, "engine", c.Config.Math, "error", err)
			res.MathErr = err
			p.display.Prepend(mathBanner(c.Config.Math))
		}
		return nil
	})
}

func (p *pipeline) runPreMarkup(ctx context.Context, tr *tracker, res *CycleResult, c Cycle, markup engine.Markup, m engine.PreMarkupMath) (*CycleResult, error) {
	if !p.queueBusy.CompareAndSwap(false, true) {
		p.logger.Debug("cycle dropped, math job in flight", "cycle", c.ID)
		res.Dropped = true
		tr.to(Idle, nil)
		return res, nil
	}
	defer p.queueBusy.Store(false)

	tr.to(MathProcessing, nil)
	if !m.Ready() {
		return p.fail(ctx, tr, res, c, fmt.Errorf("%w: %s", ErrEngineUnavailable, c.Config.Math))
	}
	processed, err := m.TypesetOffscreen(ctx, escape.Escape(c.Source)).Await(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return p.cancel(tr, res, ctx.Err())
		}
		return p.fail(ctx, tr, res, c, fmt.Errorf("%w: %v", ErrMathTypeset, err))
	}

	tr.to(Parsing, nil)
	render := markup.Render
	if tm, ok := markup.(engine.TrustedMarkup); ok {
		render = tm.RenderTrusted
	}
	out, err := renderMarkup(render, processed)
	if err != nil {
		return p.fail(ctx, tr, res, c, err)
	}
	return p.commit(ctx, tr, res, c, out, nil)
}

// commit writes out to the display, runs the post-passes, publishes the
// frame and restores scroll. mathPass runs between commit and diagrams.
func (p *pipeline) commit(ctx context.Context, tr *tracker, res *CycleResult, c Cycle, out string, mathPass func() error) (*CycleResult, error) {
	p.mu.Lock()
	if p.stale(c.ID) {
		defer p.mu.Unlock()
		return p.supersede(tr, res)
	}
	if err := p.display.SetInnerHTML(out); err != nil {
		p.mu.Unlock()
		return p.fail(ctx, tr, res, c, fmt.Errorf("%w: %v", ErrParseFailure, err))
	}

	if mathPass != nil {
		if err := mathPass(); err != nil {
			p.rollback()
			p.mu.Unlock()
			return p.cancel(tr, res, err)
		}
	}

	tr.to(DiagramProcessing, nil)
	if d := p.registry.Diagrams(); d != nil && d.Ready() {
		errs, err := renderDiagrams(d, p.display)
		if err != nil {
			p.mu.Unlock()
			return p.fail(ctx, tr, res, c, err)
		}
		for _, de := range errs {
			p.logger.Warn("diagram failed", "cycle", c.ID, "index", de.Index, "error", de.Err)
		}
		res.DiagramErrs = errs
	}

	html, err := p.display.InnerHTML()
	if err != nil {
		p.mu.Unlock()
		return p.fail(ctx, tr, res, c, fmt.Errorf("%w: %v", ErrParseFailure, err))
	}
	snap := &Snapshot{
		CycleID:   c.ID,
		Source:    c.Source,
		HTML:      html,
		Config:    c.Config,
		Digest:    digest(html),
		Committed: p.now(),
	}
	p.committed = snap
	p.lastID = c.ID
	res.Snapshot = snap

	p.shown = html
	p.publish(ctx, Frame{CycleID: c.ID, State: Committed, HTML: html, Digest: snap.Digest})
	p.mu.Unlock()

	tr.to(ScrollRestoring, nil)
	res.ScrollOffset = p.restoreScroll(ctx, c)

	tr.to(Committed, nil)
	res.State = Committed
	return res, nil
}

// fail shows the error panel and ends the cycle in Error. The last
// committed snapshot is kept for export.
func (p *pipeline) fail(ctx context.Context, tr *tracker, res *CycleResult, c Cycle, cause error) (*CycleResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stale(c.ID) {
		return p.supersede(tr, res)
	}

	p.logger.Error("render failed", "cycle", c.ID, "markup", c.Config.Markup, "math", c.Config.Math, "error", cause)
	p.display.Clear()
	for _, n := range errorPanel(cause.Error()) {
		p.display.Root().AppendChild(n)
	}
	p.lastID = c.ID

	html, err := p.display.InnerHTML()
	if err == nil {
		p.shown = html
		p.publish(ctx, Frame{CycleID: c.ID, State: Error, HTML: html, Digest: digest(html)})
	}
	tr.to(Error, cause)
	res.State = Error
	return res, cause
}

// stale reports whether a newer cycle already reached the display.
// Callers hold mu.
func (p *pipeline) stale(id uint64) bool {
	return id < p.lastID
}

// supersede ends a stale cycle in Idle. Callers hold mu.
func (p *pipeline) supersede(tr *tracker, res *CycleResult) (*CycleResult, error) {
	p.logger.Debug("cycle superseded", "cycle", res.CycleID, "last", p.lastID)
	res.Superseded = true
	tr.to(Idle, nil)
	return res, nil
}

// cancel ends a cycle whose context was cancelled in Idle.
func (p *pipeline) cancel(tr *tracker, res *CycleResult, err error) (*CycleResult, error) {
	p.logger.Debug("cycle cancelled", "cycle", res.CycleID, "error", err)
	tr.to(Idle, err)
	res.State = Idle
	return res, err
}

// rollback puts the last published frame back after a cancelled pass, so
// the display matches what the surface shows. Callers hold mu.
func (p *pipeline) rollback() {
	if err := p.display.SetInnerHTML(p.shown); err != nil {
		p.display.Clear()
	}
}

func (p *pipeline) publish(ctx context.Context, f Frame) {
	if p.surface == nil {
		return
	}
	if err := p.surface.Show(ctx, f); err != nil {
		p.logger.Warn("surface rejected frame", "cycle", f.CycleID, "error", err)
	}
}

// restoreScroll waits for a layout measured on the published frame and
// scrolls to the captured fraction of it. Without one the surface is left
// alone.
func (p *pipeline) restoreScroll(ctx context.Context, c Cycle) float64 {
	if p.surface == nil {
		return 0
	}
	wait, cancel := context.WithTimeout(ctx, p.layoutWait)
	defer cancel()

	v, err := p.layouts.next(wait, c.ID)
	if err != nil {
		p.logger.Debug("no layout reported, scroll left as is", "cycle", c.ID)
		return 0
	}
	offset := RestoreScroll(c.Scroll, v)
	if err := p.surface.ScrollTo(ctx, offset); err != nil {
		p.logger.Warn("surface rejected scroll", "cycle", c.ID, "error", err)
	}
	return offset
}

// lastCommitted returns the last committed snapshot, or nil.
func (p *pipeline) lastCommitted() *Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.committed
}

// busy reports whether a queue-based math job is in flight.
func (p *pipeline) busy() bool {
	return p.queueBusy.Load()
}

func renderMarkup(render func(string) (string, error), text string) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v\n%s", ErrParseFailure, r, debug.Stack())
		}
	}()
	out, err = render(text)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrParseFailure, err)
	}
	return out, nil
}

func typesetInPlace(ctx context.Context, m engine.InPlaceMath, c *dom.Container) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrMathTypeset, r)
		}
	}()
	if err := m.Typeset(ctx, c); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrMathTypeset, err)
	}
	return nil
}

func renderDiagrams(d engine.Diagrams, c *dom.Container) (errs []engine.DiagramError, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrDiagramRender, r)
		}
	}()
	return d.FindAndRender(c), nil
}

func digest(html string) string {
	sum := blake3.Sum256([]byte(html))
	return hex.EncodeToString(sum[:])
}

// tracker walks one cycle through its states.
type tracker struct {
	p     *pipeline
	id    uint64
	state State
}

func (t *tracker) to(s State, err error) {
	tr := Transition{CycleID: t.id, From: t.state, To: s, Err: err}
	t.state = s
	t.p.logger.Debug("cycle state", "cycle", t.id, "from", tr.From.String(), "to", s.String())
	if t.p.observer != nil {
		t.p.observer(tr)
	}
}
