package store

import (
	"context"
	"maps"
	"slices"
	"sync"

	"reportchain/pkg/models"
	"reportchain/pkg/store/keys"
)

// Memory keeps conversations in process memory. It backs tests and the
// "memory" store mode.
type Memory struct {
	mu       sync.RWMutex
	actions  map[string]map[string]models.ReportAction
	versions map[string]uint64
	hub      hub
}

func NewMemory() *Memory {
	return &Memory{
		actions:  make(map[string]map[string]models.ReportAction),
		versions: make(map[string]uint64),
	}
}

func (m *Memory) GetActions(_ context.Context, reportID string) (map[string]models.ReportAction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := maps.Clone(m.actions[reportID])
	if out == nil {
		out = make(map[string]models.ReportAction)
	}
	return out, nil
}

func (m *Memory) Current(_ context.Context, reportID string) (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := maps.Clone(m.actions[reportID])
	if out == nil {
		out = make(map[string]models.ReportAction)
	}
	return Snapshot{ReportID: reportID, Version: m.versions[reportID], Actions: out}, nil
}

func (m *Memory) Subscribe(reportID string, fn func(Snapshot)) func() {
	return m.hub.subscribe(reportID, fn)
}

func (m *Memory) Conversations(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := slices.Collect(maps.Keys(m.actions))
	slices.Sort(out)
	return out, nil
}

// Version returns the number of writes applied to the conversation.
func (m *Memory) Version(reportID string) uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.versions[reportID]
}

func (m *Memory) PutActions(_ context.Context, reportID string, actions ...models.ReportAction) error {
	if err := keys.ValidateID(reportID); err != nil {
		return err
	}
	for _, a := range actions {
		if err := keys.ValidateID(a.ReportActionID); err != nil {
			return err
		}
	}
	if len(actions) == 0 {
		return nil
	}

	m.mu.Lock()
	conv := m.actions[reportID]
	if conv == nil {
		conv = make(map[string]models.ReportAction)
		m.actions[reportID] = conv
	}
	for _, a := range actions {
		a.ReportID = reportID
		conv[a.ReportActionID] = a
	}
	m.versions[reportID]++
	snap := Snapshot{ReportID: reportID, Version: m.versions[reportID], Actions: maps.Clone(conv)}
	m.mu.Unlock()

	m.hub.publish(snap)
	return nil
}

func (m *Memory) RemoveAction(_ context.Context, reportID, actionID string) error {
	m.mu.Lock()
	conv, ok := m.actions[reportID]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	if _, ok := conv[actionID]; !ok {
		m.mu.Unlock()
		return nil
	}
	delete(conv, actionID)
	if len(conv) == 0 {
		delete(m.actions, reportID)
	}
	m.versions[reportID]++
	snap := Snapshot{ReportID: reportID, Version: m.versions[reportID], Actions: maps.Clone(conv)}
	m.mu.Unlock()

	m.hub.publish(snap)
	return nil
}
