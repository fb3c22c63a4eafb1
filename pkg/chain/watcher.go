package chain

import (
	"context"
	"sync"

	"reportchain/pkg/models"
	"reportchain/pkg/store"
)

type lastEntry struct {
	action  models.ReportAction
	ok      bool
	version uint64
}

type watch struct {
	unsub func()
}

// LastVisibleWatcher caches the last visible action of watched conversations
// and refreshes it from store notifications.
type LastVisibleWatcher struct {
	store  store.ConversationActionStore
	policy VisibilityPolicy

	mu      sync.RWMutex
	entries map[string]lastEntry
	watches map[string]*watch
}

func NewLastVisibleWatcher(s store.ConversationActionStore, policy VisibilityPolicy) *LastVisibleWatcher {
	return &LastVisibleWatcher{
		store:   s,
		policy:  policy,
		entries: make(map[string]lastEntry),
		watches: make(map[string]*watch),
	}
}

// Watch loads the current value and keeps it fresh until ctx is done or the
// watcher is closed. Watching a conversation twice is a no-op. A conversation
// with no actions is not held; callers read it directly.
func (w *LastVisibleWatcher) Watch(ctx context.Context, reportID string) error {
	w.mu.Lock()
	if _, ok := w.watches[reportID]; ok {
		w.mu.Unlock()
		return nil
	}
	// pending entry so concurrent Watch calls do not double-subscribe
	pending := &watch{}
	w.watches[reportID] = pending
	w.mu.Unlock()

	unsub := w.store.Subscribe(reportID, w.apply)

	snap, err := w.store.Current(ctx, reportID)
	if err != nil || len(snap.Actions) == 0 {
		unsub()
		w.mu.Lock()
		if w.watches[reportID] == pending {
			delete(w.watches, reportID)
			delete(w.entries, reportID)
		}
		w.mu.Unlock()
		return err
	}
	last, ok := lastVisible(store.Values(snap.Actions), w.policy)

	w.mu.Lock()
	if w.watches[reportID] != pending {
		// unwatched or closed while loading
		w.mu.Unlock()
		unsub()
		return nil
	}
	if cur, seen := w.entries[reportID]; !seen || cur.version < snap.Version {
		w.entries[reportID] = lastEntry{action: last, ok: ok, version: snap.Version}
	}
	pending.unsub = unsub
	w.mu.Unlock()

	context.AfterFunc(ctx, func() { w.drop(reportID, pending) })
	return nil
}

func (w *LastVisibleWatcher) apply(snap store.Snapshot) {
	last, ok := lastVisible(store.Values(snap.Actions), w.policy)
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, watching := w.watches[snap.ReportID]; !watching {
		return
	}
	if cur, seen := w.entries[snap.ReportID]; seen && cur.version > snap.Version {
		return
	}
	w.entries[snap.ReportID] = lastEntry{action: last, ok: ok, version: snap.Version}
}

// Get returns the cached last visible action. ok is false when the
// conversation has no visible action or is not watched.
func (w *LastVisibleWatcher) Get(reportID string) (models.ReportAction, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	e := w.entries[reportID]
	return e.action, e.ok
}

// Cached reports whether a value for reportID has been loaded.
func (w *LastVisibleWatcher) Cached(reportID string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.entries[reportID]
	return ok
}

// Unwatch stops tracking one conversation.
func (w *LastVisibleWatcher) Unwatch(reportID string) {
	w.drop(reportID, nil)
}

// drop removes the watch on reportID; a non-nil only limits it to that watch.
func (w *LastVisibleWatcher) drop(reportID string, only *watch) {
	w.mu.Lock()
	cur, ok := w.watches[reportID]
	if !ok || (only != nil && cur != only) {
		w.mu.Unlock()
		return
	}
	delete(w.watches, reportID)
	delete(w.entries, reportID)
	unsub := cur.unsub
	w.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

// Close stops tracking every conversation.
func (w *LastVisibleWatcher) Close() {
	w.mu.Lock()
	watches := w.watches
	w.watches = make(map[string]*watch)
	w.entries = make(map[string]lastEntry)
	w.mu.Unlock()
	for _, wt := range watches {
		if wt.unsub != nil {
			wt.unsub()
		}
	}
}
