package store

import (
	"sort"
	"strings"
	"sync"
	"time"

	"FinBoard/internal/model"
	"FinBoard/internal/symbol"
)

// MemoryStore keeps everything in process memory. Used by tests and as a
// fallback when SQLite cannot be opened; nothing survives a restart.
type MemoryStore struct {
	mu        sync.Mutex
	nextID    int64
	watchlist map[int64]model.WatchlistEntry
	alerts    map[int64]model.Alert
	triggers  []model.TriggerEvent
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID:    1,
		watchlist: make(map[int64]model.WatchlistEntry),
		alerts:    make(map[int64]model.Alert),
	}
}

func (m *MemoryStore) Watchlist() ([]model.WatchlistEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := make([]model.WatchlistEntry, 0, len(m.watchlist))
	for _, e := range m.watchlist {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID > entries[j].ID })
	return entries, nil
}

func (m *MemoryStore) AddWatchlist(sym, label string) (model.WatchlistEntry, error) {
	sym = strings.TrimSpace(sym)
	if sym == "" {
		return model.WatchlistEntry{}, ErrSymbolRequired
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	e := model.WatchlistEntry{
		ID:           m.nextID,
		Symbol:       sym,
		InstrumentID: symbol.Normalize(sym),
		Label:        label,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.nextID++
	m.watchlist[e.ID] = e
	return e, nil
}

func (m *MemoryStore) DeleteWatchlist(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.watchlist[id]; !ok {
		return ErrNotFound
	}
	delete(m.watchlist, id)
	return nil
}

func (m *MemoryStore) Alerts() ([]model.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	alerts := make([]model.Alert, 0, len(m.alerts))
	for _, a := range m.alerts {
		alerts = append(alerts, a)
	}
	sort.Slice(alerts, func(i, j int) bool { return alerts[i].ID > alerts[j].ID })
	return alerts, nil
}

func (m *MemoryStore) EnabledAlerts() ([]model.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var alerts []model.Alert
	for _, a := range m.alerts {
		if a.Enabled {
			alerts = append(alerts, a)
		}
	}
	sort.Slice(alerts, func(i, j int) bool { return alerts[i].ID < alerts[j].ID })
	return alerts, nil
}

func (m *MemoryStore) CreateAlert(sym, name, cond string, enabled bool) (model.Alert, error) {
	sym = strings.TrimSpace(sym)
	if sym == "" {
		return model.Alert{}, ErrSymbolRequired
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	a := model.Alert{
		ID:           m.nextID,
		Symbol:       sym,
		InstrumentID: symbol.Normalize(sym),
		Name:         name,
		Condition:    cond,
		Enabled:      enabled,
		Armed:        true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.nextID++
	m.alerts[a.ID] = a
	return a, nil
}

func (m *MemoryStore) PatchAlert(id int64, patch AlertPatch) (model.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.alerts[id]
	if !ok {
		return model.Alert{}, ErrNotFound
	}
	if patch.Name != nil {
		a.Name = *patch.Name
	}
	if patch.Condition != nil {
		a.Condition = *patch.Condition
	}
	if patch.Enabled != nil {
		a.Enabled = *patch.Enabled
		if a.Enabled {
			a.Armed = true
		}
	}
	a.UpdatedAt = time.Now().UTC()
	m.alerts[id] = a
	return a, nil
}

func (m *MemoryStore) MarkTriggered(id int64, _ float64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.alerts[id]
	if !ok {
		return ErrNotFound
	}
	a.LastTriggeredAt = at
	a.Armed = false
	a.UpdatedAt = time.Now().UTC()
	m.alerts[id] = a
	return nil
}

func (m *MemoryStore) Rearm(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.alerts[id]
	if !ok {
		return ErrNotFound
	}
	a.Armed = true
	a.UpdatedAt = time.Now().UTC()
	m.alerts[id] = a
	return nil
}

func (m *MemoryStore) RecordTrigger(ev model.TriggerEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.triggers = append(m.triggers, ev)
	return nil
}

func (m *MemoryStore) RecentTriggers(limit int) ([]model.TriggerEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit <= 0 {
		limit = 50
	}
	events := make([]model.TriggerEvent, len(m.triggers))
	copy(events, m.triggers)
	sort.Slice(events, func(i, j int) bool { return events[i].EvaluatedAt.After(events[j].EvaluatedAt) })
	if len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

func (m *MemoryStore) Close() error { return nil }
