package server

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"slices"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alnah/go-mdpreview"
	"github.com/alnah/go-mdpreview/internal/assets"
	"github.com/alnah/go-mdpreview/internal/logging"
	"github.com/alnah/go-mdpreview/internal/markup"
)

// Server defaults.
const (
	DefaultMaxMessageBytes = 1 << 20
	DefaultStartTimeout    = 30 * time.Second
	DefaultTitle           = "mdpreview"

	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 10 * time.Second
)

// ErrAddrInUse reports a listen address taken by another process.
var ErrAddrInUse = errors.New("address already in use")

// Config configures a Server. Zero values use the defaults above.
type Config struct {
	AllowedOrigins  []string // empty = same host only
	MaxMessageBytes int64
	StartTimeout    time.Duration
	Title           string
	ReadOnly        bool // the source comes from a watched file
	CustomCSS       string
	AssetPath       string

	// SessionOptions apply to every session, before the per-connection
	// surface, source and logger.
	SessionOptions []mdpreview.Option

	// Rasterizer is shared by all sessions for document export. Sessions
	// never close it.
	Rasterizer mdpreview.Rasterizer

	Logger *slog.Logger
}

// Server hosts one preview session per websocket connection.
type Server struct {
	cfg      Config
	logger   *slog.Logger
	loader   assets.AssetLoader
	upgrader websocket.Upgrader
	handler  http.Handler
	wg       sync.WaitGroup

	mu      sync.Mutex
	source  string
	clients map[string]*client
	closed  bool
}

// New creates a server whose sessions start from source.
// Returns an error when the asset directory is invalid.
func New(cfg Config, source string) (*Server, error) {
	if cfg.MaxMessageBytes <= 0 {
		cfg.MaxMessageBytes = DefaultMaxMessageBytes
	}
	if cfg.StartTimeout <= 0 {
		cfg.StartTimeout = DefaultStartTimeout
	}
	if cfg.Title == "" {
		cfg.Title = DefaultTitle
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}

	loader, err := assets.NewAssetResolver(cfg.AssetPath)
	if err != nil {
		return nil, fmt.Errorf("loading assets: %w", err)
	}

	s := &Server{
		cfg:     cfg,
		logger:  cfg.Logger,
		loader:  loader,
		source:  source,
		clients: make(map[string]*client),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			ok := originAllowed(r, s.cfg.AllowedOrigins)
			if !ok {
				logging.SecurityEvent(s.logger, "origin rejected", "origin", r.Header.Get("Origin"), "remote", r.RemoteAddr)
			}
			return ok
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handlePage)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("GET /export/{format}", s.handleExport)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	s.handler = logRequests(s.logger, mux)
	return s, nil
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Listen opens a TCP listener on addr.
func Listen(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			return nil, fmt.Errorf("%w: %s", ErrAddrInUse, addr)
		}
		return nil, err
	}
	return ln, nil
}

// Serve serves on ln until ctx is done, then shuts down gracefully and
// closes every session.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	select {
	case err := <-errc:
		s.Close()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Close()
	return err
}

// Close disconnects every client and waits for their sessions to end.
func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	clients := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		_ = c.conn.Close()
	}
	s.wg.Wait()
}

// SetSource replaces the source of every session, as when the watched
// file changes. New connections start from it too.
func (s *Server) SetSource(text string) {
	s.mu.Lock()
	s.source = text
	clients := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		c.session.Edit(text)
		ctx, cancel := context.WithTimeout(c.ctx, writeWait)
		if err := c.enqueue(ctx, sourceMessage{Type: msgSource, Text: text}); err != nil {
			c.logger.Debug("source not sent", "session", c.session.ID(), "error", err)
		}
		cancel()
	}
}

// Clients returns the number of connected browsers.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// register adds c unless the server is closing. A registered client
// holds the wait group until its handler returns.
func (s *Server) register(c *client) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return len(s.clients), false
	}
	s.clients[c.session.ID()] = c
	s.wg.Add(1)
	return len(s.clients), true
}

func (s *Server) unregister(c *client) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, c.session.ID())
	return len(s.clients)
}

func (s *Server) lookup(id string) *client {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clients[id]
}

func (s *Server) currentSource() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

// pageData feeds the preview template.
type pageData struct {
	Title    string
	CSS      template.CSS
	ReadOnly bool
}

func (s *Server) handlePage(w http.ResponseWriter, _ *http.Request) {
	css, err := assets.Stylesheet(s.loader, assets.PreviewStyle, assets.HighlightStyle)
	if err != nil {
		s.logger.Error("loading preview styles", "error", err)
		http.Error(w, "preview unavailable", http.StatusInternalServerError)
		return
	}
	page, err := assets.Execute(s.loader, assets.PreviewTemplate, pageData{
		Title:    s.cfg.Title,
		CSS:      template.CSS(markup.SanitizeCSS(css + s.cfg.CustomCSS)), // #nosec G203 -- sanitized against </style>
		ReadOnly: s.cfg.ReadOnly,
	})
	if err != nil {
		s.logger.Error("rendering preview page", "error", err)
		http.Error(w, "preview unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = io.WriteString(w, page)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = fmt.Fprintf(w, "{\"status\":\"ok\",\"clients\":%d}\n", s.Clients())
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	f, err := mdpreview.ParseFormat(r.PathValue("format"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	c := s.lookup(r.URL.Query().Get("session"))
	if c == nil {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}

	out, err := c.session.Export(r.Context(), f)
	switch {
	case errors.Is(err, mdpreview.ErrNothingCommitted):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case errors.Is(err, mdpreview.ErrSessionClosed):
		http.Error(w, err.Error(), http.StatusGone)
		return
	case err != nil:
		s.logger.Error("export failed", "session", c.session.ID(), "format", string(f), "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", out.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": out.Filename}))
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(out.Data)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	c := newClient(conn, s.cfg.ReadOnly, s.logger)
	opts := append(slices.Clone(s.cfg.SessionOptions),
		mdpreview.WithSurface(c),
		mdpreview.WithSource(s.currentSource()),
		mdpreview.WithLogger(s.logger),
	)
	if s.cfg.Rasterizer != nil {
		opts = append(opts, mdpreview.WithRasterizer(s.cfg.Rasterizer))
	}
	sess, err := mdpreview.NewSession(opts...)
	if err != nil {
		s.logger.Error("creating session", "error", err)
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "session unavailable"))
		_ = conn.Close()
		return
	}
	c.session = sess

	n, ok := s.register(c)
	if !ok {
		_ = sess.Close()
		_ = conn.Close()
		return
	}
	defer s.wg.Done()
	logging.WebSocketEvent(s.logger, "connect", n, "session", sess.ID(), "origin", r.Header.Get("Origin"))

	cfg := sess.Config()
	_ = c.enqueue(c.ctx, helloMessage{
		Type:    msgHello,
		Session: sess.ID(),
		Text:    sess.Source(),
		Markup:  string(cfg.Markup),
		Math:    string(cfg.Math),
	})
	go c.writePump()

	started := make(chan struct{})
	go func() {
		defer close(started)
		ctx, cancel := context.WithTimeout(c.ctx, s.cfg.StartTimeout)
		defer cancel()
		if err := sess.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			// Start has already sent a notice for unavailable engines.
			if !errors.Is(err, mdpreview.ErrEngineUnavailable) {
				c.sendError(err.Error())
			}
		}
	}()

	c.readPump(s.cfg.MaxMessageBytes)

	n = s.unregister(c)
	c.close()
	<-started
	if err := sess.Close(); err != nil {
		s.logger.Warn("closing session", "session", sess.ID(), "error", err)
	}
	logging.WebSocketEvent(s.logger, "disconnect", n, "session", sess.ID())
}
