package store

import (
	"context"
	"errors"
	"maps"
	"sync"

	"reportchain/pkg/models"
)

// ErrNotOpen is returned by a Pebble store used before Open or after Close.
var ErrNotOpen = errors.New("store not opened")

// Snapshot is the state of one conversation after a write.
type Snapshot struct {
	ReportID string
	Version  uint64
	Actions  map[string]models.ReportAction
}

// ConversationActionStore is the read side used by the chain component.
// GetActions returns a copy keyed by reportActionID; an unknown conversation
// yields an empty map and no error.
type ConversationActionStore interface {
	GetActions(ctx context.Context, reportID string) (map[string]models.ReportAction, error)
	// Current returns the actions together with the version they were read at.
	Current(ctx context.Context, reportID string) (Snapshot, error)
	Subscribe(reportID string, fn func(Snapshot)) (unsubscribe func())
	Conversations(ctx context.Context) ([]string, error)
}

// Writer is the write side used by the sync layer.
type Writer interface {
	PutActions(ctx context.Context, reportID string, actions ...models.ReportAction) error
	RemoveAction(ctx context.Context, reportID, actionID string) error
}

// ReadWriter is both sides; the API and the CLI work against it.
type ReadWriter interface {
	ConversationActionStore
	Writer
}

// Values flattens a snapshot map in unspecified order.
func Values(m map[string]models.ReportAction) []models.ReportAction {
	out := make([]models.ReportAction, 0, len(m))
	for _, a := range m {
		out = append(out, a)
	}
	return out
}

type subscriber struct {
	id uint64
	fn func(Snapshot)
}

// hub fans snapshots out to per-conversation subscribers. Callbacks run on the
// writer's goroutine after the hub lock is released.
type hub struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[string][]subscriber
}

func (h *hub) subscribe(reportID string, fn func(Snapshot)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs == nil {
		h.subs = make(map[string][]subscriber)
	}
	h.nextID++
	id := h.nextID
	h.subs[reportID] = append(h.subs[reportID], subscriber{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() { h.unsubscribe(reportID, id) })
	}
}

func (h *hub) unsubscribe(reportID string, id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	list := h.subs[reportID]
	for i, s := range list {
		if s.id == id {
			list = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(h.subs, reportID)
		return
	}
	h.subs[reportID] = list
}

func (h *hub) publish(snap Snapshot) {
	h.mu.Lock()
	list := append([]subscriber(nil), h.subs[snap.ReportID]...)
	h.mu.Unlock()
	for _, s := range list {
		// each subscriber gets its own copy
		s.fn(Snapshot{ReportID: snap.ReportID, Version: snap.Version, Actions: maps.Clone(snap.Actions)})
	}
}
