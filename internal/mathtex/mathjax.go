package mathtex

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/alnah/go-mdpreview/internal/dom"
	"github.com/alnah/go-mdpreview/internal/engine"
)

// ErrQueueClosed indicates a job was submitted after Close.
var ErrQueueClosed = errors.New("math queue closed")

var mathjaxStyle = style{
	inlineClass:  "MathJax",
	displayClass: "MathJax_Display",
	errorClass:   "MathJax_Error",
	numbered:     true,
}

// MathJax typesets math through a single worker queue. It supports both
// in-place typesetting and offscreen typesetting of escaped source text.
type MathJax struct {
	jobs    chan func()
	quit    chan struct{}
	stopped chan struct{}
	ready   atomic.Bool
	once    sync.Once

	// escapeText keeps source HTML inert when reading the scratch back.
	escapeText bool

	// owned by the worker goroutine
	scratch *dom.Container
	t       typesetter
}

// NewMathJax starts the queue worker. Close stops it. Without
// allowRawHTML, offscreen results carry source text re-escaped, so only the
// MathML the engine produced is markup.
func NewMathJax(allowRawHTML bool) *MathJax {
	m := &MathJax{
		jobs:       make(chan func()),
		quit:       make(chan struct{}),
		stopped:    make(chan struct{}),
		scratch:    dom.NewContainer(),
		t:          typesetter{style: mathjaxStyle, delims: DefaultDelimiters},
		escapeText: !allowRawHTML,
	}
	m.ready.Store(true)
	go m.loop()
	return m
}

func (m *MathJax) loop() {
	defer close(m.stopped)
	for {
		select {
		case job := <-m.jobs:
			job()
		case <-m.quit:
			m.ready.Store(false)
			return
		}
	}
}

// Close stops the worker after the running job, if any.
func (m *MathJax) Close() {
	m.once.Do(func() { close(m.quit) })
	<-m.stopped
}

// ID implements engine.Engine.
func (m *MathJax) ID() engine.ID { return engine.MathJax }

// Ready implements engine.Engine. It holds while the worker runs.
func (m *MathJax) Ready() bool { return m.ready.Load() }

// TypesetOffscreen implements engine.PreMarkupMath. The escaped text is
// parsed into the scratch container, typeset, and read back so a markup
// parser sees the original source around the MathML. Formula failures stay
// inline; only parse and cancellation errors reject.
func (m *MathJax) TypesetOffscreen(ctx context.Context, escaped string) *engine.Future[string] {
	f := engine.NewFuture[string]()
	err := m.submit(ctx, func() {
		m.t.equation = 0
		defer m.scratch.Clear()
		defer func() {
			if r := recover(); r != nil {
				f.Reject(fmt.Errorf("%w: panic: %v", ErrTypeset, r))
			}
		}()

		if err := m.scratch.SetInnerHTML(escaped); err != nil {
			f.Reject(err)
			return
		}
		if err := m.t.typeset(ctx, m.scratch.Root()); err != nil {
			f.Reject(err)
			return
		}
		out, err := readBack(m.scratch.Root(), m.escapeText)
		if err != nil {
			f.Reject(fmt.Errorf("reading scratch buffer: %w", err))
			return
		}
		f.Resolve(out)
	})
	if err != nil {
		return engine.Rejected[string](err)
	}
	return f
}

// Typeset implements engine.InPlaceMath by running the container through
// the queue. It returns once the job finished, even when ctx is cancelled
// midway, so the caller never shares c with the worker.
func (m *MathJax) Typeset(ctx context.Context, c *dom.Container) error {
	done := make(chan error, 1)
	err := m.submit(ctx, func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("%w: panic: %v", ErrTypeset, r)
			}
		}()
		m.t.equation = 0
		done <- m.t.typeset(ctx, c.Root())
	})
	if err != nil {
		return err
	}
	return <-done
}

func (m *MathJax) submit(ctx context.Context, job func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case m.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-m.quit:
		return ErrQueueClosed
	}
}
