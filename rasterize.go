package mdpreview

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg" // register decoder for DecodeConfig
	_ "image/png"  // register decoder for DecodeConfig
	"os"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/alnah/go-mdpreview/internal/fileutil"
	"github.com/alnah/go-mdpreview/internal/hints"
	"github.com/alnah/go-mdpreview/internal/paginate"
	"github.com/alnah/go-mdpreview/internal/process"
)

// Print capture defaults.
const (
	PrintWidth       = 650 // CSS pixels, padding excluded
	PrintPadding     = 40
	PrintScale       = 2
	PrintJPEGQuality = 95

	printViewportHeight = 1000
	printRootSelector   = "#print-root"
	defaultLoadTimeout  = 30 * time.Second
)

// PrintPage is a standalone HTML document to capture. The element matching
// #print-root is captured at its full height.
type PrintPage struct {
	HTML    string
	Width   int     // viewport width in CSS pixels
	Scale   float64 // device pixels per CSS pixel
	Quality int     // JPEG quality, 0 captures PNG
	Settle  time.Duration
}

// Rasterizer captures a print page as one tall image.
type Rasterizer interface {
	Rasterize(ctx context.Context, page PrintPage) (paginate.Image, error)
	Close() error
}

var _ Rasterizer = (*RodRasterizer)(nil)

// RodRasterizer captures pages with headless Chrome via go-rod. The browser
// is launched on first use; Rod downloads Chromium when none is found.
type RodRasterizer struct {
	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
	timeout  time.Duration
}

// NewRodRasterizer returns a rasterizer whose page loads time out after
// timeout. Non-positive values use 30s.
func NewRodRasterizer(timeout time.Duration) *RodRasterizer {
	if timeout <= 0 {
		timeout = defaultLoadTimeout
	}
	return &RodRasterizer{timeout: timeout}
}

// ensureBrowser lazily launches and connects to the browser. Callers hold mu.
func (r *RodRasterizer) ensureBrowser() error {
	if r.browser != nil {
		return nil
	}

	l := launcher.New()

	// Use pre-installed browser if specified (Docker/containerized environments)
	if bin := os.Getenv("ROD_BROWSER_BIN"); bin != "" {
		l = l.Bin(bin)
	}
	if hints.InCI() || os.Getenv("ROD_BROWSER_BIN") != "" || hints.EnvEnabled("ROD_NO_SANDBOX") {
		l = l.NoSandbox(true)
	}
	u, err := l.Launch()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBrowserConnect, err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return fmt.Errorf("%w: %v", ErrBrowserConnect, err)
	}
	r.launcher = l
	r.browser = browser
	return nil
}

// Close shuts the browser down and kills whatever it left behind.
func (r *RodRasterizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.browser == nil {
		return nil
	}
	err := r.browser.Close()
	r.browser = nil
	if r.launcher != nil {
		// Best effort; launcher.Kill covers the leader.
		_ = process.KillProcessGroup(r.launcher.PID())
		r.launcher.Kill()
		r.launcher = nil
	}
	return err
}

// Rasterize loads the page from a temp file, waits for it to settle and
// captures the print root.
func (r *RodRasterizer) Rasterize(ctx context.Context, p PrintPage) (paginate.Image, error) {
	if err := ctx.Err(); err != nil {
		return paginate.Image{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ensureBrowser(); err != nil {
		return paginate.Image{}, err
	}

	path, cleanup, err := fileutil.WriteTempFile(p.HTML, "html")
	if err != nil {
		return paginate.Image{}, err
	}
	defer cleanup()

	page, err := r.browser.Page(proto.TargetCreateTarget{URL: "file://" + path})
	if err != nil {
		return paginate.Image{}, fmt.Errorf("%w: %v", ErrPageCreate, err)
	}
	defer page.Close()

	timeout := r.timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
		if timeout <= 0 {
			return paginate.Image{}, context.DeadlineExceeded
		}
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             p.Width,
		Height:            printViewportHeight,
		DeviceScaleFactor: p.Scale,
	}); err != nil {
		return paginate.Image{}, fmt.Errorf("%w: viewport: %v", ErrRasterize, err)
	}
	if err := page.Timeout(timeout).WaitLoad(); err != nil {
		return paginate.Image{}, fmt.Errorf("%w: %v", ErrPageLoad, err)
	}

	if err := sleepCtx(ctx, p.Settle); err != nil {
		return paginate.Image{}, err
	}

	el, err := page.Timeout(timeout).Element(printRootSelector)
	if err != nil {
		return paginate.Image{}, fmt.Errorf("%w: %s: %v", ErrRasterize, printRootSelector, err)
	}

	format, name := proto.PageCaptureScreenshotFormatJpeg, "JPEG"
	if p.Quality <= 0 {
		format, name = proto.PageCaptureScreenshotFormatPng, "PNG"
	}
	data, err := el.Screenshot(format, p.Quality)
	if err != nil {
		return paginate.Image{}, fmt.Errorf("%w: %v", ErrRasterize, err)
	}
	return decodeImage(data, name)
}

// decodeImage reads the pixel size of an encoded capture.
func decodeImage(data []byte, format string) (paginate.Image, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return paginate.Image{}, fmt.Errorf("%w: decoding capture: %v", ErrRasterize, err)
	}
	return paginate.Image{Data: data, Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
