// Package assets provides the stylesheets and HTML page templates of the
// preview page and the print document.
//
// Assets come from the binary (go:embed) or from a directory on disk that
// overrides them one by one:
//
//	{basePath}/
//	├── styles/
//	│   └── {name}.css       # preview, print, highlight
//	└── templates/
//	    └── {name}.html      # preview, print
//
// Names are validated so they cannot leave their directory, and the
// filesystem loader re-checks the resolved path after following symlinks.
package assets
