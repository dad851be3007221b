// Package watch provides a filesystem watcher that is used to revalidate a pipeline when
// it or the BUILD files it refers to change.
package watch

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/zachgrayio/bkvalidate/src/cli/logging"
)

var log = logging.Log

const debounceInterval = 50 * time.Millisecond

// A Func is called each time the watched files change. It returns the files to watch from
// then on, since a change to the pipeline can change which BUILD files matter.
type Func func() []string

// Watch calls f, then watches the files it returns and calls it again whenever they change.
// It returns when stop is closed, or immediately if the watcher can't be set up.
func Watch(f Func, stop <-chan struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("Error setting up watcher: %w", err)
	}
	defer watcher.Close()
	files := map[string]struct{}{}
	dirs := map[string]struct{}{}
	update := func() {
		files = map[string]struct{}{}
		for _, file := range f() {
			addFile(watcher, file, files, dirs)
		}
		log.Notice("Watching %d files for changes...", len(files))
	}
	update()

	for {
		select {
		case <-stop:
			return nil
		case event := <-watcher.Events:
			if _, present := files[filepath.Clean(event.Name)]; !present {
				log.Debug("Skipping notification for %s", event.Name)
				continue
			}
			log.Info("Event: %s", event)
			// Quick debounce; poll and discard all events for the next brief period.
		outer:
			for {
				select {
				case <-watcher.Events:
				case <-time.After(debounceInterval):
					break outer
				}
			}
			update()
		case err := <-watcher.Errors:
			log.Error("Error watching files: %s", err)
		}
	}
}

// addFile adds a watch for a single file. We watch its directory rather than the file itself
// since editors often replace files by renaming over them, which loses a watch on the file.
func addFile(watcher *fsnotify.Watcher, file string, files, dirs map[string]struct{}) {
	file = filepath.Clean(file)
	files[file] = struct{}{}
	dir := filepath.Dir(file)
	if _, present := dirs[dir]; present {
		return
	}
	if err := watcher.Add(dir); err != nil {
		log.Error("Failed to add watch on %s: %s", dir, err)
		return
	}
	log.Debug("Adding watch on %s", dir)
	dirs[dir] = struct{}{}
}
