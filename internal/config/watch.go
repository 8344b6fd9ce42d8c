package config

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	logx "nowplaying/pkg/logx"
)

const defaultWatchDebounce = 250 * time.Millisecond

// ErrWatcherClosed is returned when fsnotify closes its channels under us.
// Callers run Watch under a restart loop.
var ErrWatcherClosed = errors.New("config watcher closed")

// Watcher reports edits to a config file.
//
// It watches the parent directory (editors often replace files via rename)
// and matches events by basename. Bursts of events are debounced into one
// OnChange call. Watcher never loads or applies settings itself.
type Watcher struct {
	Path     string
	Debounce time.Duration
	OnChange func(ev fsnotify.Event)

	log logx.Logger
}

func NewWatcher(path string, log logx.Logger, onChange func(ev fsnotify.Event)) *Watcher {
	return &Watcher{Path: path, Debounce: defaultWatchDebounce, OnChange: onChange, log: log}
}

// Watch blocks until ctx is canceled (returns nil) or the underlying
// watcher breaks (returns an error).
func (w *Watcher) Watch(ctx context.Context) error {
	dir := filepath.Dir(w.Path)
	file := filepath.Base(w.Path)

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = fw.Close() }()

	if err := fw.Add(dir); err != nil {
		return err
	}
	w.log.Debug("config watcher started", logx.String("dir", dir), logx.String("file", file))

	wait := w.Debounce
	if wait <= 0 {
		wait = defaultWatchDebounce
	}
	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	defer func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timerMu.Unlock()
	}()
	debounce := func(ev fsnotify.Event) {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(wait, func() {
			if ctx.Err() != nil {
				return
			}
			if w.OnChange != nil {
				w.OnChange(ev)
			}
		})
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return ErrWatcherClosed
			}
			// Compare by basename (robust across absolute/relative paths).
			if !strings.EqualFold(filepath.Base(ev.Name), file) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				debounce(ev)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return ErrWatcherClosed
			}
			if err == nil {
				continue
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				w.log.Warn("config watch overflow", logx.Err(err), logx.String("dir", dir))
				debounce(fsnotify.Event{Name: w.Path, Op: fsnotify.Write})
				continue
			}
			w.log.Warn("config watch error", logx.Err(err), logx.String("dir", dir))
		}
	}
}
