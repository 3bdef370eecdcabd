package mdpreview

import (
	"context"
	"math"
	"sync"
)

// Viewport is the scroll geometry of the preview pane, in CSS pixels.
type Viewport struct {
	ScrollTop    float64 `json:"scrollTop"`
	ScrollHeight float64 `json:"scrollHeight"`
	ClientHeight float64 `json:"clientHeight"`
}

// ScrollPosition is a scroll offset captured as a fraction of the
// scrollable range.
type ScrollPosition struct {
	Percent float64
	OK      bool // false when there was nothing to scroll
}

// CaptureScroll returns ScrollTop / (ScrollHeight - ClientHeight). The
// position is not OK when that range is empty or the ratio is not finite.
func CaptureScroll(v Viewport) ScrollPosition {
	scrollable := v.ScrollHeight - v.ClientHeight
	if scrollable <= 0 {
		return ScrollPosition{}
	}
	pct := v.ScrollTop / scrollable
	if math.IsNaN(pct) || math.IsInf(pct, 0) {
		return ScrollPosition{}
	}
	return ScrollPosition{Percent: pct, OK: true}
}

// RestoreScroll maps a captured position onto fresh layout metrics. It
// returns 0 (the top) when the position is not OK or the new content fits
// in the viewport.
func RestoreScroll(p ScrollPosition, v Viewport) float64 {
	scrollable := v.ScrollHeight - v.ClientHeight
	if !p.OK || scrollable <= 0 {
		return 0
	}
	return p.Percent * scrollable
}

// layoutTracker holds the viewports reported by the surface. Each report
// names the cycle whose frame was on screen when it was measured, so a cycle
// can wait for metrics of its own content and ignore reports that were in
// flight when its frame was published.
type layoutTracker struct {
	mu      sync.Mutex
	current Viewport // latest report, for capturing
	fresh   Viewport // latest report of the newest frame
	shown   uint64   // cycle of fresh
	changed chan struct{}
}

func newLayoutTracker() *layoutTracker {
	return &layoutTracker{changed: make(chan struct{})}
}

// report records v as measured on the frame of cycle. Cycle 0 means no
// frame was shown yet.
func (t *layoutTracker) report(cycle uint64, v Viewport) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = v
	if cycle < t.shown {
		return
	}
	t.fresh, t.shown = v, cycle
	close(t.changed)
	t.changed = make(chan struct{})
}

// latest returns the most recent viewport, whatever frame it was measured on.
func (t *layoutTracker) latest() Viewport {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// next waits for a viewport measured on the frame of cycle or a newer one.
func (t *layoutTracker) next(ctx context.Context, cycle uint64) (Viewport, error) {
	for {
		t.mu.Lock()
		v, shown, changed := t.fresh, t.shown, t.changed
		t.mu.Unlock()
		if cycle > 0 && shown >= cycle {
			return v, nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return Viewport{}, ctx.Err()
		}
	}
}
