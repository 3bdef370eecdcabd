package server

// Notes:
// - Sessions use the built-in engines, which are in-process and ready at
//   once; export tests stay on the text formats so no browser is launched.
// - Every websocket read has a deadline, so a missing message fails the
//   test instead of hanging it.

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alnah/go-mdpreview"
	"github.com/alnah/go-mdpreview/internal/paginate"
)

const readTimeout = 5 * time.Second

type received map[string]any

func (m received) str(key string) string {
	s, _ := m[key].(string)
	return s
}

func newTestServer(t *testing.T, cfg Config, source string) (*Server, *httptest.Server) {
	t.Helper()

	cfg.SessionOptions = append([]mdpreview.Option{
		mdpreview.WithDebounce(0),
		mdpreview.WithReadiness(10*time.Millisecond, 10),
		mdpreview.WithLayoutWait(2 * time.Second),
	}, cfg.SessionOptions...)

	s, err := New(cfg, source)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		s.Close()
		ts.Close()
	})
	return s, ts
}

func dial(t *testing.T, ts *httptest.Server, header http.Header) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("Dial() error = %v (status %d)", err, status)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readUntil returns the first message of type typ accepted by match.
func readUntil(t *testing.T, conn *websocket.Conn, typ string, match func(received) bool) received {
	t.Helper()

	deadline := time.Now().Add(readTimeout)
	for {
		_ = conn.SetReadDeadline(deadline)
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %q: %v", typ, err)
		}
		var msg received
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("server sent invalid JSON %q: %v", data, err)
		}
		if msg.str("type") == typ && (match == nil || match(msg)) {
			return msg
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, msg any) {
	t.Helper()
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
}

func htmlContains(s string) func(received) bool {
	return func(m received) bool { return strings.Contains(m.str("html"), s) }
}

// ---------------------------------------------------------------------------
// HTTP routes
// ---------------------------------------------------------------------------

func TestPreviewPage(t *testing.T) {
	t.Parallel()

	_, ts := newTestServer(t, Config{
		Title:     "notes.md",
		ReadOnly:  true,
		CustomCSS: "p { color: red; }</style><script>alert(1)</script>",
	}, "")

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	page := string(body)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	for _, want := range []string{"<title>notes.md</title>", `id="preview"`, "readonly", "p { color: red; }"} {
		if !strings.Contains(page, want) {
			t.Errorf("page lacks %q", want)
		}
	}
	if strings.Contains(page, "</style><script>alert(1)") {
		t.Error("custom CSS closed the style element")
	}
}

func TestUnknownPath(t *testing.T) {
	t.Parallel()

	_, ts := newTestServer(t, Config{}, "")
	resp, err := http.Get(ts.URL + "/nope")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	_, ts := newTestServer(t, Config{}, "")
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var body struct {
		Status  string `json:"status"`
		Clients int    `json:"clients"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "ok" || body.Clients != 0 {
		t.Errorf("health = %+v", body)
	}
}

func TestExport_Errors(t *testing.T) {
	t.Parallel()

	_, ts := newTestServer(t, Config{}, "# Hi")
	conn := dial(t, ts, nil)
	hello := readUntil(t, conn, msgHello, nil)
	id := hello.str("session")

	tests := []struct {
		name string
		path string
		want int
	}{
		{"unsupported format", "/export/docx?session=" + id, http.StatusBadRequest},
		{"unknown session", "/export/md?session=nope", http.StatusNotFound},
		{"missing session", "/export/md", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(ts.URL + tt.path)
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

// brokenRasterizer fails every capture.
type brokenRasterizer struct{}

var errNoBrowser = errors.New("no browser here")

func (brokenRasterizer) Rasterize(context.Context, mdpreview.PrintPage) (paginate.Image, error) {
	return paginate.Image{}, errNoBrowser
}

func (brokenRasterizer) Close() error { return nil }

func TestExport_FailureKeepsSession(t *testing.T) {
	t.Parallel()

	_, ts := newTestServer(t, Config{
		Rasterizer:     brokenRasterizer{},
		SessionOptions: []mdpreview.Option{mdpreview.WithSettleDelay(0)},
	}, "# Hi")
	conn := dial(t, ts, nil)
	id := readUntil(t, conn, msgHello, nil).str("session")
	readUntil(t, conn, msgRender, htmlContains("Hi"))

	resp, err := http.Get(ts.URL + "/export/pdf?session=" + id)
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	if !strings.Contains(string(body), errNoBrowser.Error()) {
		t.Errorf("body = %q, want the cause for the alert", body)
	}
	if resp.Header.Get("Content-Disposition") != "" {
		t.Error("failed export sent as an attachment")
	}

	// The websocket session still renders and exports.
	send(t, conn, map[string]any{"type": msgEdit, "text": "# Again"})
	readUntil(t, conn, msgRender, htmlContains("Again"))

	resp, err = http.Get(ts.URL + "/export/md?session=" + id)
	if err != nil {
		t.Fatal(err)
	}
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "# Again" {
		t.Errorf("retry export = %d %q, want 200 with the new source", resp.StatusCode, body)
	}
}

func TestPreviewPage_ExportStaysOnPage(t *testing.T) {
	t.Parallel()

	_, ts := newTestServer(t, Config{}, "")
	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	page := string(body)
	for _, want := range []string{"fetch(\"/export/\"", "if (!resp.ok)", "alert(", "button.disabled = false", "cycle: shown"} {
		if !strings.Contains(page, want) {
			t.Errorf("preview page missing %q", want)
		}
	}
	if strings.Contains(page, "location.href") {
		t.Error("preview page navigates away to export")
	}
}

// ---------------------------------------------------------------------------
// Websocket sessions
// ---------------------------------------------------------------------------

func TestSession_HelloRenderEditExport(t *testing.T) {
	t.Parallel()

	s, ts := newTestServer(t, Config{}, "# Hello")
	conn := dial(t, ts, nil)

	hello := readUntil(t, conn, msgHello, nil)
	if hello.str("session") == "" {
		t.Fatal("hello without session id")
	}
	if hello.str("text") != "# Hello" || hello.str("markup") != "goldmark" || hello.str("math") != "katex" {
		t.Errorf("hello = %v", hello)
	}

	first := readUntil(t, conn, msgRender, htmlContains("Hello"))
	if first.str("state") != "committed" {
		t.Errorf("state = %q, want committed", first.str("state"))
	}
	if first.str("digest") == "" {
		t.Error("render without digest")
	}
	if s.Clients() != 1 {
		t.Errorf("Clients() = %d, want 1", s.Clients())
	}

	send(t, conn, map[string]any{"type": msgEdit, "text": "## Changed"})
	readUntil(t, conn, msgRender, htmlContains("Changed"))

	resp, err := http.Get(ts.URL + "/export/md?session=" + hello.str("session"))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("export status = %d: %s", resp.StatusCode, body)
	}
	if string(body) != "## Changed" {
		t.Errorf("export body = %q, want the committed source", body)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/markdown") {
		t.Errorf("Content-Type = %q", ct)
	}
	cd := resp.Header.Get("Content-Disposition")
	if !strings.HasPrefix(cd, "attachment; filename=export_") || !strings.HasSuffix(cd, ".md") {
		t.Errorf("Content-Disposition = %q", cd)
	}
}

func TestSession_ScrollPreserved(t *testing.T) {
	t.Parallel()

	_, ts := newTestServer(t, Config{}, "# Long")
	conn := dial(t, ts, nil)
	first := readUntil(t, conn, msgRender, nil)
	firstCycle, _ := first["cycle"].(float64)

	// Halfway down a 2000px document in a 500px pane.
	send(t, conn, map[string]any{
		"type":     msgLayout,
		"cycle":    firstCycle,
		"viewport": map[string]float64{"scrollTop": 750, "scrollHeight": 2000, "clientHeight": 500},
	})
	readUntil(t, conn, msgScroll, nil)

	send(t, conn, map[string]any{"type": msgEdit, "text": "# Longer"})
	second := readUntil(t, conn, msgRender, htmlContains("Longer"))
	secondCycle, _ := second["cycle"].(float64)

	// A report measured on the old frame is still in flight.
	send(t, conn, map[string]any{
		"type":     msgLayout,
		"cycle":    firstCycle,
		"viewport": map[string]float64{"scrollTop": 750, "scrollHeight": 2000, "clientHeight": 500},
	})
	// The new content is 2100px tall.
	send(t, conn, map[string]any{
		"type":     msgLayout,
		"cycle":    secondCycle,
		"viewport": map[string]float64{"scrollTop": 0, "scrollHeight": 2100, "clientHeight": 500},
	})
	msg := readUntil(t, conn, msgScroll, nil)
	if got, _ := msg["offset"].(float64); got != 800 {
		t.Errorf("scroll offset = %v, want 800 from the new frame's layout", got)
	}
}

func TestSession_EngineSwitch(t *testing.T) {
	t.Parallel()

	_, ts := newTestServer(t, Config{}, "$x$")
	conn := dial(t, ts, nil)
	readUntil(t, conn, msgRender, nil)

	send(t, conn, map[string]any{"type": msgMarkup, "engine": "GoMarkdown"})
	readUntil(t, conn, msgRender, nil)

	send(t, conn, map[string]any{"type": msgMath, "engine": "asciimath"})
	msg := readUntil(t, conn, msgError, nil)
	if !strings.Contains(msg.str("message"), "asciimath") {
		t.Errorf("error = %q, want the unknown engine named", msg.str("message"))
	}
}

func TestSession_ProtocolErrors(t *testing.T) {
	t.Parallel()

	_, ts := newTestServer(t, Config{}, "")
	conn := dial(t, ts, nil)
	readUntil(t, conn, msgHello, nil)

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"malformed JSON", "{", "malformed message"},
		{"unknown type", `{"type":"shout"}`, "unknown message type"},
		{"edit without text", `{"type":"edit"}`, "without text"},
		{"layout without viewport", `{"type":"layout"}`, "without viewport"},
	}

	for _, tt := range tests {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(tt.raw)); err != nil {
			t.Fatal(err)
		}
		msg := readUntil(t, conn, msgError, nil)
		if !strings.Contains(msg.str("message"), tt.want) {
			t.Errorf("%s: error = %q, want %q", tt.name, msg.str("message"), tt.want)
		}
	}
}

func TestSession_ReadOnly(t *testing.T) {
	t.Parallel()

	s, ts := newTestServer(t, Config{ReadOnly: true}, "# From file")
	conn := dial(t, ts, nil)
	readUntil(t, conn, msgRender, htmlContains("From file"))

	send(t, conn, map[string]any{"type": msgEdit, "text": "typed"})
	msg := readUntil(t, conn, msgError, nil)
	if !strings.Contains(msg.str("message"), "read-only") {
		t.Errorf("error = %q", msg.str("message"))
	}

	s.SetSource("# Saved again")
	src := readUntil(t, conn, msgSource, nil)
	if src.str("text") != "# Saved again" {
		t.Errorf("source = %q", src.str("text"))
	}
	readUntil(t, conn, msgRender, htmlContains("Saved again"))
}

func TestSession_MessageLimit(t *testing.T) {
	t.Parallel()

	_, ts := newTestServer(t, Config{MaxMessageBytes: 1024}, "")
	conn := dial(t, ts, nil)
	readUntil(t, conn, msgHello, nil)

	send(t, conn, map[string]any{"type": msgEdit, "text": strings.Repeat("x", 4096)})

	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	for {
		_, _, err := conn.ReadMessage()
		if err == nil {
			continue
		}
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			t.Fatal("server kept an oversized message's connection open")
		}
		return
	}
}

func TestOriginRejected(t *testing.T) {
	t.Parallel()

	_, ts := newTestServer(t, Config{AllowedOrigins: []string{"http://localhost:3000"}}, "")

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"http://evil.example"}})
	if err == nil {
		t.Fatal("Dial() succeeded from a foreign origin")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("response = %v, want 403", resp)
	}

	dial(t, ts, http.Header{"Origin": {"http://localhost:3000"}})
}

func TestClose_DisconnectsClients(t *testing.T) {
	t.Parallel()

	s, ts := newTestServer(t, Config{}, "# Bye")
	conn := dial(t, ts, nil)
	readUntil(t, conn, msgRender, nil)

	s.Close()

	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	if n := s.Clients(); n != 0 {
		t.Errorf("Clients() = %d after Close, want 0", n)
	}
}

// ---------------------------------------------------------------------------
// originAllowed
// ---------------------------------------------------------------------------

func TestOriginAllowed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		host    string
		origin  string
		allowed []string
		want    bool
	}{
		{"no origin header", "localhost:8080", "", nil, true},
		{"same host", "localhost:8080", "http://localhost:8080", nil, true},
		{"other host", "localhost:8080", "http://evil.example", nil, false},
		{"listed", "localhost:8080", "http://localhost:3000", []string{"http://localhost:3000"}, true},
		{"not listed", "localhost:8080", "http://localhost:8080", []string{"http://localhost:3000"}, false},
		{"wildcard", "x", "https://anything", []string{"*"}, true},
		{"subdomain wildcard", "x", "https://docs.example.com", []string{"*.example.com"}, true},
		{"suffix trick", "x", "https://evilexample.com", []string{"*.example.com"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := httptest.NewRequest(http.MethodGet, "http://"+tt.host+"/ws", nil)
			r.Host = tt.host
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			if got := originAllowed(r, tt.allowed); got != tt.want {
				t.Errorf("originAllowed(%q) = %v, want %v", tt.origin, got, tt.want)
			}
		})
	}
}

func TestListen_AddrInUse(t *testing.T) {
	t.Parallel()

	ln, err := Listen("127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	if _, err := Listen(ln.Addr().String()); err == nil {
		t.Fatal("second Listen on the same address succeeded")
	}
}
