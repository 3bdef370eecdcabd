package markup

// Notes:
// - Path traversal tests verify the observable behavior (path not rewritten)
//   rather than the isPathUnderDir implementation alone

import (
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func testSourceDir() string {
	if runtime.GOOS == "windows" {
		return `C:\docs`
	}
	return "/docs"
}

// ---------------------------------------------------------------------------
// TestRewriteRelativePaths - Main Function Tests
// ---------------------------------------------------------------------------

func TestRewriteRelativePaths(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		html         string
		sourceDir    string
		wantContains []string
	}{
		{
			name:         "relative image with dot slash",
			html:         `<img src="./images/logo.png"/>`,
			sourceDir:    testSourceDir(),
			wantContains: []string{`src="file://`, "logo.png"},
		},
		{
			name:         "relative link",
			html:         `<a href="notes/other.md">other</a>`,
			sourceDir:    testSourceDir(),
			wantContains: []string{`href="file://`},
		},
		{
			name:         "anchor unchanged",
			html:         `<a href="#section">jump</a>`,
			sourceDir:    testSourceDir(),
			wantContains: []string{`href="#section"`},
		},
		{
			name:         "http URL unchanged",
			html:         `<img src="https://example.com/logo.png"/>`,
			sourceDir:    testSourceDir(),
			wantContains: []string{`src="https://example.com/logo.png"`},
		},
		{
			name:         "data URI unchanged",
			html:         `<img src="data:image/png;base64,ABC123"/>`,
			sourceDir:    testSourceDir(),
			wantContains: []string{`src="data:image/png;base64,ABC123"`},
		},
		{
			name:         "empty sourceDir returns unchanged",
			html:         `<img src="./logo.png">`,
			sourceDir:    "",
			wantContains: []string{`<img src="./logo.png">`},
		},
		{
			name:         "other attributes preserved",
			html:         `<img src="./logo.png" alt="Logo" width="100"/>`,
			sourceDir:    testSourceDir(),
			wantContains: []string{`alt="Logo"`, `width="100"`},
		},
		{
			name:         "fragment is not wrapped",
			html:         `<p>Hello</p><img src="./logo.png"/>`,
			sourceDir:    testSourceDir(),
			wantContains: []string{"<p>Hello</p><img"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := RewriteRelativePaths(tt.html, tt.sourceDir)
			if err != nil {
				t.Fatalf("RewriteRelativePaths() error = %v", err)
			}
			for _, want := range tt.wantContains {
				if !strings.Contains(got, want) {
					t.Errorf("RewriteRelativePaths() = %q, want to contain %q", got, want)
				}
			}
		})
	}
}

func TestRewriteRelativePaths_PathTraversal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		html         string
		wantContains string
	}{
		{"parent directory traversal blocked", `<img src="../../../etc/passwd"/>`, `src="../../../etc/passwd"`},
		{"double dot in middle blocked", `<img src="images/../../../etc/passwd"/>`, `src="images/../../../etc/passwd"`},
		{"nested valid path allowed", `<img src="images/sub/deep/file.png"/>`, `src="file://`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := RewriteRelativePaths(tt.html, testSourceDir())
			if err != nil {
				t.Fatalf("RewriteRelativePaths() error = %v", err)
			}
			if !strings.Contains(got, tt.wantContains) {
				t.Errorf("RewriteRelativePaths() = %q, want to contain %q", got, tt.wantContains)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func TestIsRelativePath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want bool
	}{
		{"./image.png", true},
		{"images/logo.png", true},
		{"../parent.png", true},
		{"", false},
		{"http://example.com/img.png", false},
		{"file:///abs/path.png", false},
		{"data:image/png;base64,ABC", false},
		{"mailto:someone@example.com", false},
		{"//cdn.example.com/img.png", false},
		{"#anchor", false},
		{"/absolute/path.png", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()

			if got := isRelativePath(tt.path); got != tt.want {
				t.Errorf("isRelativePath(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestIsPathUnderDir(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		absPath string
		dir     string
		want    bool
	}{
		{"direct child", "/docs/image.png", "/docs", true},
		{"parent directory", "/etc/passwd", "/docs", false},
		{"dir with trailing slash", "/docs/image.png", "/docs/", true},
		{"similar prefix", "/docs-other/image.png", "/docs", false},
		{"exact match", "/docs", "/docs", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			absPath := filepath.FromSlash(tt.absPath)
			dir := filepath.FromSlash(tt.dir)
			if got := isPathUnderDir(absPath, dir); got != tt.want {
				t.Errorf("isPathUnderDir(%q, %q) = %v, want %v", absPath, dir, got, tt.want)
			}
		})
	}
}

func TestPathToFileURL(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("unix paths")
	}

	tests := []struct {
		absPath string
		want    string
	}{
		{"/docs/images/logo.png", "file:///docs/images/logo.png"},
		{"/docs/my images/logo.png", "file:///docs/my%20images/logo.png"},
	}

	for _, tt := range tests {
		t.Run(tt.absPath, func(t *testing.T) {
			t.Parallel()

			if got := pathToFileURL(tt.absPath); got != tt.want {
				t.Errorf("pathToFileURL(%q) = %q, want %q", tt.absPath, got, tt.want)
			}
		})
	}
}
