package storage

import "sync"

type watchKey struct {
	userID    string
	periodKey string
}

// watchHub fans out in-process change notifications per (user, period).
// Notifications are coalesced: a subscriber that has not drained its
// channel sees one pending signal, not a backlog.
type watchHub struct {
	mu   sync.Mutex
	subs map[watchKey]map[int]chan struct{}
	next int
}

func newWatchHub() *watchHub {
	return &watchHub{subs: make(map[watchKey]map[int]chan struct{})}
}

func (h *watchHub) subscribe(key watchKey) (<-chan struct{}, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan struct{}, 1)
	if h.subs[key] == nil {
		h.subs[key] = make(map[int]chan struct{})
	}
	id := h.next
	h.next++
	h.subs[key][id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if set, ok := h.subs[key]; ok {
			delete(set, id)
			if len(set) == 0 {
				delete(h.subs, key)
			}
		}
	}
	return ch, cancel
}

func (h *watchHub) notify(userID, periodKey string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs[watchKey{userID, periodKey}] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Watch returns a channel that receives a signal whenever an entry for the
// given user and period is inserted, updated, or deleted in this process.
// Call cancel when the view goes away.
func (s *SQLiteStore) Watch(userID, periodKey string) (<-chan struct{}, func()) {
	return s.hub.subscribe(watchKey{userID, periodKey})
}
