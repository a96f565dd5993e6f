package wallet

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Event reports the identity held by the watched keystore. An empty Address
// means the wallet is gone; Err is set when the new file cannot be loaded.
type Event struct {
	Address string
	Err     error
}

// Watch delivers an Event each time the identity in the keystore at path
// changes. The directory is watched rather than the file so that a wallet
// replaced by rename is still seen. The channel closes when ctx is done.
func Watch(ctx context.Context, path string) (<-chan Event, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close() //nolint:errcheck
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(path), err)
	}

	current := ""
	if w, err := Load(path); err == nil {
		current = w.Address
	}

	events := make(chan Event)
	go func() {
		defer close(events)
		defer watcher.Close() //nolint:errcheck
		target := filepath.Clean(path)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) &&
					!ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
					continue
				}
				next := Event{}
				if w, err := Load(path); err == nil {
					next.Address = w.Address
				} else if !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
					next.Err = err
				}
				if next.Err == nil && next.Address == current {
					continue
				}
				if next.Err == nil {
					current = next.Address
				}
				select {
				case events <- next:
				case <-ctx.Done():
					return
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				select {
				case events <- Event{Address: current, Err: err}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return events, nil
}
