// Package mdpreview renders live previews of Markdown documents with math
// and diagrams, and exports what was last shown.
//
// # Quick Start
//
// Create a session, attach a surface, start it and feed it edits:
//
//	sess, err := mdpreview.NewSession(
//	    mdpreview.WithSurface(surface),
//	    mdpreview.WithSource("# Hello\n\n$E = mc^2$"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer sess.Close()
//
//	if err := sess.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	sess.Edit("# Hello again")
//
// The surface receives every frame, scroll request and notice. Edits are
// debounced (300ms by default); engine switches render at once.
//
// # Render Cycle
//
// A cycle snapshots the source, the engine selection and the scroll
// position, then runs one of two orderings:
//
//  1. In-place math (KaTeX, or MathJax under goldmark): the markup engine
//     parses the source, the HTML is committed to the display, math is
//     typeset inside it, then diagrams are rendered.
//  2. Queue-based math (MathJax under gomarkdown): the escaped source is
//     typeset offscreen first and the result is parsed and committed.
//     Only one such job runs at a time; triggers arriving meanwhile are
//     dropped, or re-run once with WithCoalesceDropped.
//
// A parse failure replaces the preview with an error panel. A formula that
// does not convert is shown inline in red. A math engine failure keeps the
// content and shows a banner above it. A diagram failure only
// affects its own block. A cycle that finishes after a newer one already
// committed is discarded.
//
// After committing, the session waits for the surface to report the layout
// of the new frame with ReportLayout, tagged with the frame's CycleID, and
// scrolls to the same fraction of the scrollable range the reader was at.
//
// # Export
//
// Export writes the last committed snapshot:
//
//	out, err := sess.Export(ctx, mdpreview.FormatPDF)
//	os.WriteFile(out.Filename, out.Data, 0644)
//
// Text formats return the source as typed. PDF rasterizes the committed
// HTML with headless Chrome and slices the image across pages. Share
// browsers between sessions with a RasterizerPool.
//
// # Browser Requirements
//
// PDF export requires Chrome/Chromium. The go-rod library automatically
// downloads a managed Chromium instance on first run (~/.cache/rod/browser/).
//
// For containers and CI environments, set ROD_NO_SANDBOX=1 to disable the
// Chrome sandbox. Use ROD_BROWSER_BIN to specify a custom Chrome binary.
package mdpreview
