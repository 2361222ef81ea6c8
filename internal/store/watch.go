package store

import (
	"sync"

	"github.com/docshare/docsync/internal/record"
)

// hub fans out change signals to reactive readers.
//
// Every committed write to a domain arms the signal channel of each
// watcher registered for that domain. Watchers re-run their query on each
// signal, so a signal never carries data, only "something changed". The
// channel is buffered with capacity one and armed with a non-blocking
// send: a slow reader coalesces bursts into a single re-query instead of
// backing up writers.
type hub struct {
	mu   sync.Mutex
	subs map[record.Domain]map[chan struct{}]struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[record.Domain]map[chan struct{}]struct{})}
}

// Watch registers a reactive reader for the domain. The returned cancel
// function unregisters it and is safe to call more than once.
func (db *DB) Watch(domain record.Domain) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	db.hub.mu.Lock()
	if db.hub.subs[domain] == nil {
		db.hub.subs[domain] = make(map[chan struct{}]struct{})
	}
	db.hub.subs[domain][ch] = struct{}{}
	db.hub.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			db.hub.mu.Lock()
			delete(db.hub.subs[domain], ch)
			db.hub.mu.Unlock()
		})
	}

	return ch, cancel
}

// notify arms every watcher of the domain. Called after a write commits,
// never inside a transaction, so watchers that re-query immediately see
// the committed state and a replaceAll is observed as a single step.
func (db *DB) notify(domain record.Domain) {
	db.hub.mu.Lock()
	defer db.hub.mu.Unlock()

	for ch := range db.hub.subs[domain] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
