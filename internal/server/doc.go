// Package server serves the live preview to browsers.
//
// Each websocket connection gets its own mdpreview.Session; the browser tab
// is the session's Surface. Routes:
//
//	GET /                      preview page
//	GET /ws                    websocket
//	GET /export/{format}       download, ?session=<id>
//	GET /healthz               liveness
//
// Messages are JSON objects with a "type" field. The browser sends edit,
// markup, math and layout; the server sends hello, source, render, scroll,
// notice and error.
package server
