// Package memory is an in-process remote store fake. It mirrors the
// firestore adapter's behavior (per-user documents, generated ids, parse
// skipping) closely enough for tests and local development.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/CSwithChetan123/GhareluDiary/internal/core"
	"github.com/CSwithChetan123/GhareluDiary/internal/identity"
	"github.com/CSwithChetan123/GhareluDiary/internal/remote"
)

type document struct {
	entry      core.Entry
	projection remote.Projection
	// malformed marks a document that fails to parse on pull, for
	// exercising the skip-and-continue path.
	malformed bool
}

// Store is an in-memory remote store keyed by user id then document id.
type Store struct {
	id identity.Provider

	mu   sync.Mutex
	docs map[string]map[string]document

	// Failure injection. When set, the corresponding operation returns
	// remote.ErrUnavailable without touching state.
	FailPush   bool
	FailPull   bool
	FailDelete bool
	// FailCategory makes ListCategory fail for one category only.
	FailCategory map[core.Category]bool
}

var _ remote.Client = (*Store)(nil)

func New(id identity.Provider) *Store {
	return &Store{
		id:           id,
		docs:         make(map[string]map[string]document),
		FailCategory: make(map[core.Category]bool),
	}
}

func (s *Store) checkIdentity() error {
	if !s.id.IsBound() {
		return remote.ErrNotAuthenticated
	}
	return nil
}

func (s *Store) userDocs(userID string) map[string]document {
	if s.docs[userID] == nil {
		s.docs[userID] = make(map[string]document)
	}
	return s.docs[userID]
}

func (s *Store) Push(_ context.Context, e core.Entry) (string, error) {
	if err := s.checkIdentity(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailPush {
		return "", remote.ErrUnavailable
	}

	remoteID := e.RemoteID
	if remoteID == "" {
		remoteID = uuid.NewString()
	}
	e.RemoteID = remoteID
	e.Synced = true
	s.userDocs(e.UserID)[remoteID] = document{
		entry:      e,
		projection: remote.Project(e),
	}
	return remoteID, nil
}

func (s *Store) Pull(_ context.Context, userID, periodKey string) ([]core.Entry, error) {
	if err := s.checkIdentity(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailPull {
		return nil, remote.ErrUnavailable
	}

	var out []core.Entry
	for _, doc := range s.docs[userID] {
		if doc.malformed || doc.entry.PeriodKey != periodKey {
			continue
		}
		out = append(out, doc.entry)
	}
	sortByDate(out)
	return out, nil
}

func (s *Store) ListCategory(_ context.Context, userID string, cat core.Category, periodKey string) ([]core.Entry, error) {
	if err := s.checkIdentity(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailCategory[cat] {
		return nil, remote.ErrUnavailable
	}

	var out []core.Entry
	for _, doc := range s.docs[userID] {
		if doc.malformed || doc.entry.Category != cat || doc.entry.PeriodKey != periodKey {
			continue
		}
		out = append(out, doc.entry)
	}
	sortByDate(out)
	return out, nil
}

func (s *Store) Delete(_ context.Context, userID, remoteID string) error {
	if err := s.checkIdentity(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailDelete {
		return remote.ErrUnavailable
	}
	delete(s.docs[userID], remoteID)
	return nil
}

// Seed inserts an entry directly, bypassing identity checks and failure
// injection. Returns the generated remote id.
func (s *Store) Seed(e core.Entry) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	remoteID := e.RemoteID
	if remoteID == "" {
		remoteID = uuid.NewString()
	}
	e.RemoteID = remoteID
	s.userDocs(e.UserID)[remoteID] = document{entry: e, projection: remote.Project(e)}
	return remoteID
}

// SeedMalformed inserts a document that every pull skips as unparseable.
func (s *Store) SeedMalformed(userID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	remoteID := uuid.NewString()
	s.userDocs(userID)[remoteID] = document{malformed: true}
	return remoteID
}

// Len reports the number of documents stored for a user.
func (s *Store) Len(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs[userID])
}

// Projection returns the display projection written with a document.
func (s *Store) Projection(userID, remoteID string) (remote.Projection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[userID][remoteID]
	return doc.projection, ok
}

func sortByDate(entries []core.Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Date.Equal(entries[j].Date) {
			return entries[i].CreatedAt.Before(entries[j].CreatedAt)
		}
		return entries[i].Date.Before(entries[j].Date)
	})
}
