package mdpreview

import (
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/alnah/go-mdpreview/internal/paginate"
)

func TestOptions_PanicOnInvalidValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		build   func()
		wantMsg string
	}{
		{"negative debounce", func() { WithDebounce(-time.Millisecond) }, "WithDebounce"},
		{"unknown markup", func() { WithMarkupEngine("asciidoc") }, "WithMarkupEngine"},
		{"unknown math", func() { WithMathEngine("eqn") }, "WithMathEngine"},
		{"nil logger", func() { WithLogger(nil) }, "WithLogger"},
		{"zero poll interval", func() { WithReadiness(0, 3) }, "WithReadiness"},
		{"zero poll attempts", func() { WithReadiness(time.Millisecond, 0) }, "WithReadiness"},
		{"margin too large", func() { WithPageGeometry(paginate.Geometry{PageWidth: 100, PageHeight: 100, Margin: 60}) }, "WithPageGeometry"},
		{"zero layout wait", func() { WithLayoutWait(0) }, "WithLayoutWait"},
		{"negative settle", func() { WithSettleDelay(-time.Second) }, "WithSettleDelay"},
		{"nil clock", func() { WithClock(nil) }, "WithClock"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			defer func() {
				r := recover()
				if r == nil {
					t.Fatal("expected panic")
				}
				msg, ok := r.(string)
				if !ok || !strings.Contains(msg, tt.wantMsg) {
					t.Errorf("panic = %v, want message naming %s", r, tt.wantMsg)
				}
			}()
			tt.build()
		})
	}
}

func TestOptions_Apply(t *testing.T) {
	t.Parallel()

	now := func() time.Time { return fixedNow }
	letter := paginate.Geometry{PageWidth: 612, PageHeight: 792, Margin: 36}
	s := newTestSession(t, newTestEngines(),
		WithDebounce(150*time.Millisecond),
		WithMarkupEngine(MarkupGoMarkdown),
		WithMathEngine(MathNone),
		WithCoalesceDropped(true),
		WithRawHTML(false),
		WithPageGeometry(letter),
		WithSettleDelay(0),
		WithSourceDir("/docs"),
		WithCustomCSS("p{}"),
		WithSource("text"),
		WithClock(now),
	)

	cfg := s.cfg
	if cfg.debounce != 150*time.Millisecond {
		t.Errorf("debounce = %v", cfg.debounce)
	}
	if s.Config() != (RenderConfig{Markup: MarkupGoMarkdown, Math: MathNone}) {
		t.Errorf("Config() = %+v", s.Config())
	}
	if !cfg.coalesce || cfg.rawHTML {
		t.Errorf("coalesce = %v, rawHTML = %v", cfg.coalesce, cfg.rawHTML)
	}
	if cfg.geometry != letter || cfg.settle != 0 {
		t.Errorf("geometry = %+v, settle = %v", cfg.geometry, cfg.settle)
	}
	if cfg.sourceDir != "/docs" || cfg.customCSS != "p{}" {
		t.Errorf("sourceDir = %q, customCSS = %q", cfg.sourceDir, cfg.customCSS)
	}
	if s.Source() != "text" {
		t.Errorf("Source() = %q", s.Source())
	}
	if s.debounce == nil || s.debounce.Delay() != 150*time.Millisecond {
		t.Error("debouncer not built with the configured delay")
	}
}

// Notes:
// - Sessions built without WithLogger log through the shared discard logger.
func TestOptions_DefaultLoggerDiscards(t *testing.T) {
	t.Parallel()

	cfg := defaultSessionConfig()
	if cfg.logger == nil {
		t.Fatal("default logger is nil")
	}
	if _, ok := cfg.logger.Handler().(*slog.TextHandler); !ok {
		t.Errorf("default handler = %T, want *slog.TextHandler", cfg.logger.Handler())
	}
	cfg.logger.Info("dropped")
}

func TestOptions_ZeroDebounceRendersEveryEdit(t *testing.T) {
	t.Parallel()

	s := newTestSession(t, newTestEngines())
	if s.debounce != nil {
		t.Error("debouncer built with a zero delay")
	}
}

func TestRenderConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     RenderConfig
		wantErr bool
	}{
		{"default", DefaultRenderConfig, false},
		{"gomarkdown mathjax", RenderConfig{Markup: MarkupGoMarkdown, Math: MathMathJax}, false},
		{"no math", RenderConfig{Markup: MarkupGoldmark, Math: MathNone}, false},
		{"unknown markup", RenderConfig{Markup: "rst", Math: MathKaTeX}, true},
		{"unknown math", RenderConfig{Markup: MarkupGoldmark, Math: "eqn"}, true},
		{"empty", RenderConfig{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.cfg.Validate()
			if tt.wantErr != (err != nil) {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrUnknownEngine) {
				t.Errorf("Validate() error = %v, want ErrUnknownEngine", err)
			}
		})
	}
}

func TestState_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		s    State
		want string
	}{
		{Idle, "idle"},
		{Parsing, "parsing"},
		{MathProcessing, "math"},
		{DiagramProcessing, "diagrams"},
		{ScrollRestoring, "scroll"},
		{Committed, "committed"},
		{Error, "error"},
		{State(99), "unknown"},
		{State(-1), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", int(tt.s), got, tt.want)
		}
	}
}
