package markup

import (
	"net/url"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/alnah/go-mdpreview/internal/dom"
)

// RewriteRelativePaths turns relative img src and a href values of an HTML
// fragment into absolute file:// URLs under sourceDir, so a document loaded
// from a temporary file still finds its images. Paths escaping sourceDir,
// URLs, anchors and absolute paths are left alone. An empty sourceDir
// returns the fragment unchanged.
func RewriteRelativePaths(fragment, sourceDir string) (string, error) {
	if sourceDir == "" {
		return fragment, nil
	}

	absDir, err := filepath.Abs(sourceDir)
	if err != nil {
		return "", err
	}

	c := dom.NewContainer()
	if err := c.SetInnerHTML(fragment); err != nil {
		return "", err
	}
	rewriteNode(c.Root(), absDir)
	return c.InnerHTML()
}

func rewriteNode(n *html.Node, dir string) {
	if n.Type == html.ElementNode {
		switch n.DataAtom {
		case atom.Img:
			rewriteAttr(n, "src", dir)
		case atom.A:
			rewriteAttr(n, "href", dir)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		rewriteNode(c, dir)
	}
}

func rewriteAttr(n *html.Node, key, dir string) {
	for i, a := range n.Attr {
		if a.Key != key || !isRelativePath(a.Val) {
			continue
		}
		abs := filepath.Join(dir, a.Val)
		if !isPathUnderDir(abs, dir) {
			continue
		}
		n.Attr[i].Val = pathToFileURL(abs)
	}
}

// isRelativePath reports whether p is a relative filesystem path.
func isRelativePath(p string) bool {
	if p == "" || strings.HasPrefix(p, "#") || strings.HasPrefix(p, "//") {
		return false
	}
	if u, err := url.Parse(p); err == nil && u.Scheme != "" && len(u.Scheme) > 1 {
		return false // http:, https:, file:, data:, mailto:
	}
	return !filepath.IsAbs(p)
}

func isPathUnderDir(abs, dir string) bool {
	cleanDir := filepath.Clean(dir)
	if !strings.HasSuffix(cleanDir, string(filepath.Separator)) {
		cleanDir += string(filepath.Separator)
	}
	return strings.HasPrefix(filepath.Clean(abs)+string(filepath.Separator), cleanDir)
}

func pathToFileURL(abs string) string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return u.String()
}
