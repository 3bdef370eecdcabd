package assets

// Notes:
// - Embedded assets are checked for the markers other packages rely on
//   (#print-root, the websocket client) rather than for exact content.
// - Symlink escape is covered on platforms where os.Symlink works; the test
//   skips otherwise.

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// TestValidateAssetName
// ---------------------------------------------------------------------------

func TestValidateAssetName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"simple name", "preview", nil},
		{"hyphen", "my-style", nil},
		{"underscore", "my_style", nil},
		{"digits", "style2", nil},
		{"empty", "", ErrInvalidAssetName},
		{"forward slash", "a/b", ErrInvalidAssetName},
		{"backslash", "a\\b", ErrInvalidAssetName},
		{"traversal", "..", ErrInvalidAssetName},
		{"extension", "print.css", ErrInvalidAssetName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := ValidateAssetName(tt.input)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateAssetName(%q) = %v, want %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestEmbeddedLoader
// ---------------------------------------------------------------------------

func TestEmbeddedLoader_BuiltIns(t *testing.T) {
	t.Parallel()

	l := NewEmbeddedLoader()

	for _, name := range []string{PreviewStyle, PrintStyle, HighlightStyle} {
		css, err := l.LoadStyle(name)
		if err != nil {
			t.Fatalf("LoadStyle(%q) error = %v", name, err)
		}
		if strings.TrimSpace(css) == "" {
			t.Errorf("LoadStyle(%q) is empty", name)
		}
	}

	printTmpl, err := l.LoadTemplate(PrintTemplate)
	if err != nil {
		t.Fatalf("LoadTemplate(print) error = %v", err)
	}
	if !strings.Contains(printTmpl, `id="print-root"`) {
		t.Error("print template lacks the print root")
	}

	preview, err := l.LoadTemplate(PreviewTemplate)
	if err != nil {
		t.Fatalf("LoadTemplate(preview) error = %v", err)
	}
	if !strings.Contains(preview, `"/ws"`) {
		t.Error("preview template lacks the websocket client")
	}
}

func TestEmbeddedLoader_Errors(t *testing.T) {
	t.Parallel()

	l := NewEmbeddedLoader()

	if _, err := l.LoadStyle("missing"); !errors.Is(err, ErrStyleNotFound) {
		t.Errorf("LoadStyle(missing) error = %v, want ErrStyleNotFound", err)
	}
	if _, err := l.LoadTemplate("missing"); !errors.Is(err, ErrTemplateNotFound) {
		t.Errorf("LoadTemplate(missing) error = %v, want ErrTemplateNotFound", err)
	}
	if _, err := l.LoadStyle("../print"); !errors.Is(err, ErrInvalidAssetName) {
		t.Errorf("LoadStyle(../print) error = %v, want ErrInvalidAssetName", err)
	}
}

// ---------------------------------------------------------------------------
// TestFilesystemLoader
// ---------------------------------------------------------------------------

func writeAsset(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("creating %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

func TestNewFilesystemLoader(t *testing.T) {
	t.Parallel()

	t.Run("valid directory", func(t *testing.T) {
		t.Parallel()

		if _, err := NewFilesystemLoader(t.TempDir()); err != nil {
			t.Fatalf("NewFilesystemLoader() error = %v", err)
		}
	})

	t.Run("empty path", func(t *testing.T) {
		t.Parallel()

		if _, err := NewFilesystemLoader(""); !errors.Is(err, ErrInvalidBasePath) {
			t.Errorf("error = %v, want ErrInvalidBasePath", err)
		}
	})

	t.Run("missing directory", func(t *testing.T) {
		t.Parallel()

		_, err := NewFilesystemLoader(filepath.Join(t.TempDir(), "nope"))
		if !errors.Is(err, ErrInvalidBasePath) {
			t.Errorf("error = %v, want ErrInvalidBasePath", err)
		}
	})

	t.Run("file instead of directory", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		writeAsset(t, dir, "file.txt", "x")
		_, err := NewFilesystemLoader(filepath.Join(dir, "file.txt"))
		if !errors.Is(err, ErrInvalidBasePath) {
			t.Errorf("error = %v, want ErrInvalidBasePath", err)
		}
	})
}

func TestFilesystemLoader_Load(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeAsset(t, dir, "styles/print.css", "body { color: red; }")
	writeAsset(t, dir, "templates/print.html", "<p>{{.Title}}</p>")

	l, err := NewFilesystemLoader(dir)
	if err != nil {
		t.Fatalf("NewFilesystemLoader() error = %v", err)
	}

	css, err := l.LoadStyle("print")
	if err != nil || css != "body { color: red; }" {
		t.Errorf("LoadStyle(print) = %q, %v", css, err)
	}
	tmpl, err := l.LoadTemplate("print")
	if err != nil || tmpl != "<p>{{.Title}}</p>" {
		t.Errorf("LoadTemplate(print) = %q, %v", tmpl, err)
	}
	if _, err := l.LoadStyle("preview"); !errors.Is(err, ErrStyleNotFound) {
		t.Errorf("LoadStyle(preview) error = %v, want ErrStyleNotFound", err)
	}
	if _, err := l.LoadTemplate("a.b"); !errors.Is(err, ErrInvalidAssetName) {
		t.Errorf("LoadTemplate(a.b) error = %v, want ErrInvalidAssetName", err)
	}
}

func TestFilesystemLoader_SymlinkEscape(t *testing.T) {
	t.Parallel()

	outside := t.TempDir()
	writeAsset(t, outside, "secret.css", "leak")

	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "styles"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(filepath.Join(outside, "secret.css"), filepath.Join(dir, "styles", "evil.css")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	l, err := NewFilesystemLoader(dir)
	if err != nil {
		t.Fatalf("NewFilesystemLoader() error = %v", err)
	}
	if _, err := l.LoadStyle("evil"); !errors.Is(err, ErrPathTraversal) {
		t.Errorf("LoadStyle(evil) error = %v, want ErrPathTraversal", err)
	}
}

// ---------------------------------------------------------------------------
// TestAssetResolver
// ---------------------------------------------------------------------------

func TestAssetResolver(t *testing.T) {
	t.Parallel()

	t.Run("embedded only", func(t *testing.T) {
		t.Parallel()

		r, err := NewAssetResolver("")
		if err != nil {
			t.Fatalf("NewAssetResolver() error = %v", err)
		}
		if r.HasCustomLoader() {
			t.Error("HasCustomLoader() = true, want false")
		}
		if _, err := r.LoadStyle(PrintStyle); err != nil {
			t.Errorf("LoadStyle(print) error = %v", err)
		}
	})

	t.Run("custom overrides and falls back", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		writeAsset(t, dir, "styles/print.css", "custom")

		r, err := NewAssetResolver(dir)
		if err != nil {
			t.Fatalf("NewAssetResolver() error = %v", err)
		}
		got, err := r.LoadStyle(PrintStyle)
		if err != nil || got != "custom" {
			t.Errorf("LoadStyle(print) = %q, %v, want custom", got, err)
		}
		got, err = r.LoadStyle(PreviewStyle)
		if err != nil || got == "" {
			t.Errorf("LoadStyle(preview) = %q, %v, want embedded", got, err)
		}
		if _, err := r.LoadTemplate(PrintTemplate); err != nil {
			t.Errorf("LoadTemplate(print) error = %v", err)
		}
	})

	t.Run("validation errors do not fall back", func(t *testing.T) {
		t.Parallel()

		r, err := NewAssetResolver(t.TempDir())
		if err != nil {
			t.Fatalf("NewAssetResolver() error = %v", err)
		}
		if _, err := r.LoadStyle("../x"); !errors.Is(err, ErrInvalidAssetName) {
			t.Errorf("error = %v, want ErrInvalidAssetName", err)
		}
	})

	t.Run("invalid custom path", func(t *testing.T) {
		t.Parallel()

		if _, err := NewAssetResolver(filepath.Join(t.TempDir(), "nope")); !errors.Is(err, ErrInvalidBasePath) {
			t.Errorf("error = %v, want ErrInvalidBasePath", err)
		}
	})
}

// ---------------------------------------------------------------------------
// TestStylesheet, TestExecute
// ---------------------------------------------------------------------------

func TestStylesheet(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeAsset(t, dir, "styles/a.css", "a{}")
	writeAsset(t, dir, "styles/b.css", "b{}\n")
	l, err := NewFilesystemLoader(dir)
	if err != nil {
		t.Fatal(err)
	}

	got, err := Stylesheet(l, "a", "b")
	if err != nil {
		t.Fatalf("Stylesheet() error = %v", err)
	}
	if got != "a{}\nb{}\n" {
		t.Errorf("Stylesheet() = %q", got)
	}
	if _, err := Stylesheet(l, "a", "missing"); !errors.Is(err, ErrStyleNotFound) {
		t.Errorf("error = %v, want ErrStyleNotFound", err)
	}
}

func TestExecute(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeAsset(t, dir, "templates/page.html", "<h1>{{.Title}}</h1>")
	writeAsset(t, dir, "templates/broken.html", "{{.Title")
	l, err := NewFilesystemLoader(dir)
	if err != nil {
		t.Fatal(err)
	}

	got, err := Execute(l, "page", struct{ Title string }{"a < b"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if got != "<h1>a &lt; b</h1>" {
		t.Errorf("Execute() = %q", got)
	}
	if _, err := Execute(l, "broken", nil); !errors.Is(err, ErrTemplateExecute) {
		t.Errorf("error = %v, want ErrTemplateExecute", err)
	}
}
