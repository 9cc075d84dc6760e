package config

import (
	"context"
	"log"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the config file on change and hands the result to
// onChange. Falls back to polling when fsnotify cannot watch the
// path (e.g. the file does not exist yet). onChange runs on the
// watcher goroutine; callers swap the config under their own lock.
func Watch(ctx context.Context, path string, onChange func(Config)) {
	if path == "" {
		return
	}

	reload := func() {
		c, err := Load(path)
		if err != nil {
			log.Printf("config: reload failed: %v", err)
			return
		}
		onChange(c)
	}

	watcher, err := fsnotify.NewWatcher()
	usePolling := false
	if err != nil {
		log.Printf("config: fsnotify failed (%v), falling back to polling", err)
		usePolling = true
	} else if err := watcher.Add(path); err != nil {
		log.Printf("config: cannot watch %s (%v), falling back to polling", path, err)
		usePolling = true
		watcher.Close()
	}

	if usePolling {
		go poll(ctx, reload)
		return
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
					// Editors often write in two steps; a short pause
					// avoids reading the half-written file.
					time.Sleep(100 * time.Millisecond)
					log.Printf("config: %s changed, reloading", path)
					reload()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("config: watcher error: %v", err)
			}
		}
	}()
}

func poll(ctx context.Context, reload func()) {
	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reload()
		}
	}
}
