// Package firestore adapts the remote store ports to Google Cloud
// Firestore. Entries live under users/{uid}/entries with server-assigned
// document ids, the layout the mobile clients already use.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	gfirestore "cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	goption "google.golang.org/api/option"

	"github.com/CSwithChetan123/GhareluDiary/internal/core"
	"github.com/CSwithChetan123/GhareluDiary/internal/identity"
	"github.com/CSwithChetan123/GhareluDiary/internal/remote"
)

const (
	usersCollection   = "users"
	entriesCollection = "entries"
)

// entryDoc is the remote document layout. The formatted*/status/description
// fields are the write-only display projection.
type entryDoc struct {
	UserID    string  `firestore:"userId"`
	Category  string  `firestore:"category"`
	Amount    float64 `firestore:"amount"`
	Quantity  float64 `firestore:"quantity"`
	Date      int64   `firestore:"date"` // unix millis of the normalized day
	PeriodKey string  `firestore:"monthYear"`
	Remark    string  `firestore:"remark"`
	RemoteID  string  `firestore:"remoteId"`
	Synced    bool    `firestore:"isSynced"`
	CreatedAt int64   `firestore:"createdAt"`
	UpdatedAt int64   `firestore:"updatedAt"`

	FormattedDate      string `firestore:"formattedDate"`
	FormattedCreatedAt string `firestore:"formattedCreatedAt"`
	FormattedUpdatedAt string `firestore:"formattedUpdatedAt"`
	Status             string `firestore:"status"`
	Description        string `firestore:"description"`
}

type Client struct {
	fs *gfirestore.Client
	id identity.Provider
}

var _ remote.Client = (*Client)(nil)

// NewFromEnv creates a Firestore-backed client.
// Required: FIRESTORE_PROJECT_ID.
// Optional auth: GOOGLE_CREDENTIALS_JSON or GOOGLE_APPLICATION_CREDENTIALS;
// with neither set, Application Default Credentials are used.
func NewFromEnv(ctx context.Context, id identity.Provider) (*Client, error) {
	projectID := strings.TrimSpace(os.Getenv("FIRESTORE_PROJECT_ID"))
	if projectID == "" {
		return nil, errors.New("missing FIRESTORE_PROJECT_ID")
	}

	var opts []goption.ClientOption
	if inline := strings.TrimSpace(os.Getenv("GOOGLE_CREDENTIALS_JSON")); inline != "" {
		opts = append(opts, goption.WithCredentialsJSON([]byte(inline)))
	} else if file := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")); file != "" {
		opts = append(opts, goption.WithCredentialsFile(file))
	}

	fs, err := gfirestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create firestore client: %w", err)
	}

	slog.InfoContext(ctx, "Firestore client initialized", "project_id", projectID)

	return &Client{fs: fs, id: id}, nil
}

func (c *Client) Close() error {
	return c.fs.Close()
}

func (c *Client) entries(userID string) *gfirestore.CollectionRef {
	return c.fs.Collection(usersCollection).Doc(userID).Collection(entriesCollection)
}

func (c *Client) Push(ctx context.Context, e core.Entry) (string, error) {
	if !c.id.IsBound() {
		return "", remote.ErrNotAuthenticated
	}

	var ref *gfirestore.DocumentRef
	if e.RemoteID != "" {
		ref = c.entries(e.UserID).Doc(e.RemoteID)
	} else {
		ref = c.entries(e.UserID).NewDoc()
	}

	proj := remote.Project(e)
	doc := entryDoc{
		UserID:    e.UserID,
		Category:  e.Category.String(),
		Amount:    e.Amount,
		Quantity:  e.Quantity,
		Date:      e.Date.UnixMilli(),
		PeriodKey: e.PeriodKey,
		Remark:    e.Remark,
		RemoteID:  ref.ID,
		Synced:    true,
		CreatedAt: e.CreatedAt.UnixMilli(),
		UpdatedAt: e.UpdatedAt.UnixMilli(),

		FormattedDate:      proj.FormattedDate,
		FormattedCreatedAt: proj.FormattedCreatedAt,
		FormattedUpdatedAt: proj.FormattedUpdatedAt,
		Status:             proj.Status,
		Description:        proj.Description,
	}

	if _, err := ref.Set(ctx, doc); err != nil {
		return "", fmt.Errorf("%w: set entry document: %v", remote.ErrUnavailable, err)
	}

	slog.DebugContext(ctx, "Pushed entry to Firestore",
		"remote_id", ref.ID,
		"category", doc.Category,
		"period_key", doc.PeriodKey)

	return ref.ID, nil
}

func (c *Client) Pull(ctx context.Context, userID, periodKey string) ([]core.Entry, error) {
	return c.query(ctx, userID, c.entries(userID).Where("monthYear", "==", periodKey))
}

func (c *Client) ListCategory(ctx context.Context, userID string, cat core.Category, periodKey string) ([]core.Entry, error) {
	q := c.entries(userID).
		Where("monthYear", "==", periodKey).
		Where("category", "==", cat.String())
	return c.query(ctx, userID, q)
}

func (c *Client) query(ctx context.Context, userID string, q gfirestore.Query) ([]core.Entry, error) {
	if !c.id.IsBound() {
		return nil, remote.ErrNotAuthenticated
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var (
		out     []core.Entry
		skipped int
	)
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: iterate entries: %v", remote.ErrUnavailable, err)
		}

		entry, err := parseSnapshot(userID, snap.Ref.ID, snap)
		if err != nil {
			// One bad document never fails the batch.
			skipped++
			slog.WarnContext(ctx, "Skipping malformed remote document",
				"remote_id", snap.Ref.ID, "error", err)
			continue
		}
		out = append(out, entry)
	}

	if skipped > 0 {
		slog.WarnContext(ctx, "Pull completed with skipped documents",
			"returned", len(out), "skipped", skipped)
	}
	return out, nil
}

type snapshotData interface {
	DataTo(p any) error
}

func parseSnapshot(userID, docID string, snap snapshotData) (core.Entry, error) {
	var doc entryDoc
	if err := snap.DataTo(&doc); err != nil {
		return core.Entry{}, fmt.Errorf("%w: %v", remote.ErrParse, err)
	}

	cat, err := core.ParseCategory(doc.Category)
	if err != nil {
		return core.Entry{}, fmt.Errorf("%w: %v", remote.ErrParse, err)
	}
	if doc.Date == 0 {
		return core.Entry{}, fmt.Errorf("%w: missing date", remote.ErrParse)
	}

	date := core.NormalizeDate(time.UnixMilli(doc.Date))
	return core.Entry{
		UserID:    userID,
		Category:  cat,
		Date:      date,
		PeriodKey: core.PeriodKeyFor(date),
		Quantity:  doc.Quantity,
		Amount:    doc.Amount,
		Remark:    doc.Remark,
		RemoteID:  docID,
		Synced:    true,
		CreatedAt: time.UnixMilli(doc.CreatedAt),
		UpdatedAt: time.UnixMilli(doc.UpdatedAt),
	}, nil
}

func (c *Client) Delete(ctx context.Context, userID, remoteID string) error {
	if !c.id.IsBound() {
		return remote.ErrNotAuthenticated
	}
	if _, err := c.entries(userID).Doc(remoteID).Delete(ctx); err != nil {
		return fmt.Errorf("%w: delete entry document: %v", remote.ErrUnavailable, err)
	}
	return nil
}
