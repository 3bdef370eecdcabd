package mdpreview

import (
	"context"
	"fmt"
	"time"

	"github.com/alnah/go-mdpreview/internal/engine"
)

// Engine IDs accepted by RenderConfig.
const (
	MarkupGoldmark   = engine.Goldmark
	MarkupGoMarkdown = engine.GoMarkdown
	MathKaTeX        = engine.KaTeX
	MathMathJax      = engine.MathJax
	MathNone         = engine.NoMath
)

// RenderConfig selects the engines of a cycle.
type RenderConfig struct {
	Markup engine.ID
	Math   engine.ID
}

// DefaultRenderConfig is goldmark with in-place KaTeX math.
var DefaultRenderConfig = RenderConfig{Markup: MarkupGoldmark, Math: MathKaTeX}

// Validate checks that both IDs name known engines.
func (c RenderConfig) Validate() error {
	switch c.Markup {
	case MarkupGoldmark, MarkupGoMarkdown:
	default:
		return fmt.Errorf("%w: markup %q", ErrUnknownEngine, c.Markup)
	}
	switch c.Math {
	case MathKaTeX, MathMathJax, MathNone:
	default:
		return fmt.Errorf("%w: math %q", ErrUnknownEngine, c.Math)
	}
	return nil
}

// Cycle is the snapshot one render cycle works on. It is taken when the
// cycle starts and never changes afterwards.
type Cycle struct {
	ID     uint64
	Source string
	Config RenderConfig
	Scroll ScrollPosition
}

// CycleResult describes how a cycle ended.
type CycleResult struct {
	CycleID uint64
	State   State // Committed, Error, or Idle when dropped or superseded

	Dropped    bool // a queue-based math job was already in flight
	Superseded bool // a newer cycle committed first

	Snapshot     *Snapshot
	MathErr      error
	DiagramErrs  []engine.DiagramError
	ScrollOffset float64
}

// Snapshot is the output of the last committed cycle.
type Snapshot struct {
	CycleID   uint64
	Source    string
	HTML      string
	Config    RenderConfig
	Digest    string // blake3 of HTML, hex
	Committed time.Time
}

// Frame is what a surface shows after a cycle.
type Frame struct {
	CycleID uint64
	State   State
	HTML    string
	Digest  string
}

// NoticeLevel grades a Notice.
type NoticeLevel string

// Notice levels.
const (
	NoticeInfo    NoticeLevel = "info"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

// Notice is a message for the user outside the preview content.
type Notice struct {
	Level   NoticeLevel
	Message string
}

// Surface is where the preview is shown: a browser tab behind a websocket,
// or a test double. Layout metrics flow back through Session.ReportLayout.
type Surface interface {
	Show(ctx context.Context, f Frame) error
	ScrollTo(ctx context.Context, offset float64) error
	Notify(ctx context.Context, n Notice) error
}
