// Package watch follows a source file on disk and reports its text each
// time it changes.
package watch

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/alnah/go-mdpreview/internal/fileutil"
	"github.com/alnah/go-mdpreview/internal/logging"
)

// Sentinel errors.
var (
	ErrPathNotExist = errors.New("watched file does not exist")
	ErrNotRegular   = errors.New("watched path is not a regular file")
)

// Option configures a FileWatcher.
type Option func(*FileWatcher)

// WithLogger sets the logger. Watchers log nothing by default.
func WithLogger(l *slog.Logger) Option {
	if l == nil {
		panic("watch: WithLogger logger must not be nil")
	}
	return func(w *FileWatcher) {
		w.logger = l
	}
}

// WithErrorHandler receives read and watch errors. They are only logged
// by default.
func WithErrorHandler(fn func(error)) Option {
	return func(w *FileWatcher) {
		w.onError = fn
	}
}

// FileWatcher watches the directory of one file, so saves that replace the
// file through a rename are seen too. Events for other files are ignored,
// and a change that leaves the text as it was is not reported.
type FileWatcher struct {
	path     string
	watcher  *fsnotify.Watcher
	onChange func(text string)
	onError  func(error)
	logger   *slog.Logger

	last    string
	closeCh chan struct{}
	wg      sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// New starts watching path. initial is the text already shown, so the
// first save that changes nothing is not reported. onChange runs on the
// watcher goroutine, one call at a time.
func New(path, initial string, onChange func(text string), opts ...Option) (*FileWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrPathNotExist, path)
		}
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s", ErrNotRegular, path)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("starting watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}

	w := &FileWatcher{
		path:     abs,
		watcher:  fsw,
		onChange: onChange,
		logger:   logging.Discard(),
		last:     initial,
		closeCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// Path returns the absolute path of the watched file.
func (w *FileWatcher) Path() string {
	return w.path
}

// Close stops the watcher and waits for a running onChange to return.
func (w *FileWatcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	w.mu.Unlock()

	err := w.watcher.Close()
	w.wg.Wait()
	return err
}

func (w *FileWatcher) loop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			// Remove and Rename-away leave nothing to read; the save that
			// follows arrives as Create.
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				w.reload(ev.Op)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.fail(fmt.Errorf("watching %s: %w", w.path, err))
		}
	}
}

func (w *FileWatcher) reload(op fsnotify.Op) {
	text, err := fileutil.ReadText(w.path)
	if err != nil {
		// The file may be gone between the event and the read.
		if errors.Is(err, os.ErrNotExist) {
			return
		}
		w.fail(err)
		return
	}
	if text == w.last {
		return
	}
	w.last = text
	w.logger.Debug("source changed", "path", w.path, "op", op.String(), "bytes", len(text))
	w.onChange(text)
}

func (w *FileWatcher) fail(err error) {
	w.logger.Warn("watch error", "error", err)
	if w.onError != nil {
		w.onError(err)
	}
}
