// Package intake feeds the job worker pool from the asynchronous sources:
// an MQTT jobs topic and a watched inbox directory. The synchronous HTTP
// path submits to the processor directly and does not pass through here.
package intake

import (
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/snarg/sherpa-serve/internal/job"
)

// audioExtensions lists the input containers ffmpeg normalization accepts
// from the inbox. Anything else in the watch directory is ignored.
var audioExtensions = map[string]bool{
	".wav":  true,
	".mp3":  true,
	".flac": true,
	".ogg":  true,
	".opus": true,
	".m4a":  true,
	".aac":  true,
	".wma":  true,
}

// Watcher monitors an inbox directory and enqueues every completed audio
// file as a job with default options.
type Watcher struct {
	pool     *job.Pool
	watchDir string
	log      zerolog.Logger

	watcher *fsnotify.Watcher
	done    chan struct{}

	// Coalesce rapid Create+Write events on the same file.
	debounceMu     sync.Mutex
	debounceTimers map[string]*time.Timer

	enqueued atomic.Int64
	dropped  atomic.Int64
}

// NewWatcher creates an inbox watcher over watchDir.
func NewWatcher(pool *job.Pool, watchDir string, log zerolog.Logger) *Watcher {
	return &Watcher{
		pool:           pool,
		watchDir:       watchDir,
		log:            log.With().Str("component", "watcher").Logger(),
		done:           make(chan struct{}),
		debounceTimers: make(map[string]*time.Timer),
	}
}

// Start begins watching the inbox directory. Files already present at
// startup are not replayed; the inbox is a live drop target, not a backlog.
func (w *Watcher) Start() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(w.watchDir); err != nil {
		fsw.Close()
		return err
	}
	w.watcher = fsw

	go w.loop()
	w.log.Info().Str("watch_dir", w.watchDir).Msg("inbox watcher started")
	return nil
}

// Stop closes the watcher and cancels pending debounce timers.
func (w *Watcher) Stop() {
	close(w.done)
	if w.watcher != nil {
		w.watcher.Close()
	}

	w.debounceMu.Lock()
	for path, t := range w.debounceTimers {
		t.Stop()
		delete(w.debounceTimers, path)
	}
	w.debounceMu.Unlock()

	w.log.Info().
		Int64("enqueued", w.enqueued.Load()).
		Int64("dropped", w.dropped.Load()).
		Msg("inbox watcher stopped")
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !isAudioFile(event.Name) {
				continue
			}
			w.schedule(event.Name)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error().Err(err).Msg("fsnotify error")
		}
	}
}

// schedule debounces enqueueing by 500ms so a file still being written is
// picked up once, after its last write event.
func (w *Watcher) schedule(path string) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if t, ok := w.debounceTimers[path]; ok {
		t.Reset(500 * time.Millisecond)
		return
	}

	w.debounceTimers[path] = time.AfterFunc(500*time.Millisecond, func() {
		w.debounceMu.Lock()
		delete(w.debounceTimers, path)
		w.debounceMu.Unlock()

		w.enqueue(path)
	})
}

func (w *Watcher) enqueue(path string) {
	q := job.Queued{
		Request: job.Request{AudioPath: path},
		Source:  "watch",
	}
	if !w.pool.Enqueue(q) {
		w.dropped.Add(1)
		w.log.Warn().Str("audio", path).Msg("job queue full, dropping inbox file")
		return
	}
	w.enqueued.Add(1)
	w.log.Info().Str("audio", path).Msg("inbox file queued")
}

func isAudioFile(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	return audioExtensions[strings.ToLower(filepath.Ext(base))]
}
