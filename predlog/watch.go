package predlog

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher notices the CSV log being removed or renamed by an outside tool
// and makes the next append recreate it with a header instead of writing to
// the orphaned descriptor.
type Watcher struct {
	log     *CSVLog
	logger  *zap.Logger
	watcher *fsnotify.Watcher
	done    chan struct{}
}

func Watch(log *CSVLog, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// the file may not exist yet, so watch its directory
	if err := fw.Add(filepath.Dir(log.Path())); err != nil {
		fw.Close()
		return nil, err
	}
	w := &Watcher{
		log:     log,
		logger:  logger,
		watcher: fw,
		done:    make(chan struct{}),
	}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	defer close(w.done)
	target := filepath.Clean(w.log.Path())
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				w.logger.Warn("prediction log moved or removed externally, will recreate",
					zap.String("path", target), zap.String("op", event.Op.String()))
				w.log.reset()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("prediction log watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) Close() error {
	err := w.watcher.Close()
	<-w.done
	return err
}
