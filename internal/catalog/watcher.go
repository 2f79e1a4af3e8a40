package catalog

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const watchDebounce = 500 * time.Millisecond

// Watcher triggers onChange after the storage root settles following a
// create, remove or rename of a top-level entry.
type Watcher struct {
	fw       *fsnotify.Watcher
	ignore   map[string]bool
	onChange func()
	debounce time.Duration
	log      zerolog.Logger

	mu    sync.Mutex
	timer *time.Timer
	done  chan struct{}
	wg    sync.WaitGroup
}

// NewWatcher starts watching root. Entries named in ignore and hidden
// entries never trigger a rescan.
func NewWatcher(root string, onChange func(), log zerolog.Logger, ignore ...string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(root); err != nil {
		_ = fw.Close()
		return nil, err
	}
	ig := make(map[string]bool, len(ignore))
	for _, n := range ignore {
		ig[n] = true
	}
	w := &Watcher{
		fw:       fw,
		ignore:   ig,
		onChange: onChange,
		debounce: watchDebounce,
		log:      log,
		done:     make(chan struct{}),
	}
	w.wg.Add(1)
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if !w.relevant(ev) {
				continue
			}
			w.log.Debug().Str("path", ev.Name).Str("op", ev.Op.String()).Msg("storage root changed")
			w.schedule()
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.log.Error().Err(err).Msg("watcher error")
		}
	}
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	name := filepath.Base(ev.Name)
	if strings.HasPrefix(name, ".") || w.ignore[name] {
		return false
	}
	return ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename)
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.onChange)
}

// Close stops the watcher and any pending trigger.
func (w *Watcher) Close() error {
	close(w.done)
	err := w.fw.Close()
	w.wg.Wait()
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	return err
}
