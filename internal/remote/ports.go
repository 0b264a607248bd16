// Package remote defines the ports for the cloud entry store. Adapters live
// in the firestore and memory subpackages.
package remote

import (
	"context"
	"errors"

	"github.com/CSwithChetan123/GhareluDiary/internal/core"
)

var (
	// ErrNotAuthenticated means no identity is bound. It blocks remote
	// operations only; local operations proceed regardless.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrUnavailable wraps transport or server failures. Always retryable;
	// callers degrade to "stay unsynced" instead of failing the user action.
	ErrUnavailable = errors.New("remote store unavailable")

	// ErrParse marks a single malformed remote document. Pulls skip such
	// documents and keep going.
	ErrParse = errors.New("malformed remote document")
)

// Client is the per-user-scoped document store.
type Client interface {
	// Push creates or overwrites the remote document for e and returns its
	// remote id. When e.RemoteID is empty a new document id is assigned.
	Push(ctx context.Context, e core.Entry) (string, error)

	// Pull fetches all entries for the period. Individual documents that
	// fail to parse are skipped, not fatal.
	Pull(ctx context.Context, userID, periodKey string) ([]core.Entry, error)

	// ListCategory fetches the period's entries for one category, used by
	// the duplicate cleanup pass.
	ListCategory(ctx context.Context, userID string, cat core.Category, periodKey string) ([]core.Entry, error)

	// Delete removes a remote document. Only the duplicate cleanup pass
	// deletes remotely; user deletes are local-only.
	Delete(ctx context.Context, userID, remoteID string) error
}

// Retryable reports whether err is one of the transient remote failures
// that the next sync trigger will heal.
func Retryable(err error) bool {
	return errors.Is(err, ErrNotAuthenticated) || errors.Is(err, ErrUnavailable)
}
