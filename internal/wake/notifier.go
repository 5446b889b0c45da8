// Package wake shortens the tail reader's idle wait when the rotation family
// of the tailed file changes on disk.
package wake

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/SteelMorgan/autometrics-agent/internal/clock"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Notifier implements tail.Waiter. Wait returns at the end of the interval
// or as soon as a file of the rotation family is written, created, renamed
// or removed, whichever comes first. The poll interval stays the upper bound,
// so missed or coalesced events only cost latency.
type Notifier struct {
	watcher *fsnotify.Watcher
	prefix  string
	clock   clock.Clock
}

// NewNotifier watches the directory containing base
func NewNotifier(base string, clk clock.Clock) (*Notifier, error) {
	if clk == nil {
		clk = clock.Real()
	}

	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", base, err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	log.Debug().Str("dir", filepath.Dir(abs)).Msg("Watching for file changes")

	return &Notifier{
		watcher: w,
		prefix:  abs,
		clock:   clk,
	}, nil
}

// Wait blocks for at most d
func (n *Notifier) Wait(ctx context.Context, d time.Duration) error {
	timeout := n.clock.After(d)
	events := n.watcher.Events
	errs := n.watcher.Errors

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeout:
			return nil
		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if n.relevant(event) {
				return nil
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			log.Debug().Err(err).Msg("File watcher error")
		}
	}
}

func (n *Notifier) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
		return false
	}
	name, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	return strings.HasPrefix(name, n.prefix)
}

// Close stops watching
func (n *Notifier) Close() error {
	return n.watcher.Close()
}
