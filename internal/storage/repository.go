// Package storage is the durable local entry store: SQLite with embedded
// migrations, queryable by user and period, with in-process change
// notifications for live views.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/CSwithChetan123/GhareluDiary/internal/core"

	_ "modernc.org/sqlite"
)

// FlagRemoteDuplicatesCleaned gates the one-time remote duplicate cleanup.
const FlagRemoteDuplicatesCleaned = "remote_duplicates_cleaned"

type SQLiteStore struct {
	db  *sql.DB
	hub *watchHub
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db, hub: newWatchHub()}, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping reports whether the underlying database is reachable
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const entryColumns = "id, user_id, category, date, period_key, quantity, amount, remark, remote_id, is_synced, created_at, updated_at"

func scanEntry(row interface{ Scan(...any) error }) (core.Entry, error) {
	var (
		e                 core.Entry
		category          string
		dateMs, createdMs int64
		updatedMs         int64
		synced            int
	)
	err := row.Scan(&e.ID, &e.UserID, &category, &dateMs, &e.PeriodKey,
		&e.Quantity, &e.Amount, &e.Remark, &e.RemoteID, &synced,
		&createdMs, &updatedMs)
	if err != nil {
		return core.Entry{}, err
	}

	cat, err := core.ParseCategory(category)
	if err != nil {
		return core.Entry{}, fmt.Errorf("corrupt entry row %d: %w", e.ID, err)
	}
	e.Category = cat
	e.Date = core.NormalizeDate(time.UnixMilli(dateMs))
	e.Synced = synced != 0
	e.CreatedAt = time.UnixMilli(createdMs)
	e.UpdatedAt = time.UnixMilli(updatedMs)
	return e, nil
}

// InsertEntry persists a new entry and returns its assigned id. The store
// does not enforce the one-entry-per-day rule; the save path owns that.
func (s *SQLiteStore) InsertEntry(ctx context.Context, e core.Entry) (int64, error) {
	if err := e.Validate(); err != nil {
		return 0, fmt.Errorf("%w: %v", core.ErrInvalidEntry, err)
	}

	now := time.Now()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = now
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO entries (user_id, category, date, period_key, quantity, amount, remark, remote_id, is_synced, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.UserID, e.Category.String(), e.Date.UnixMilli(), e.PeriodKey,
		e.Quantity, e.Amount, e.Remark, e.RemoteID, boolToInt(e.Synced),
		e.CreatedAt.UnixMilli(), e.UpdatedAt.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("insert entry: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}

	slog.DebugContext(ctx, "Entry inserted",
		"id", id,
		"category", e.Category.String(),
		"period_key", e.PeriodKey)

	s.hub.notify(e.UserID, e.PeriodKey)
	return id, nil
}

// UpdateEntry replaces the row identified by e.ID.
func (s *SQLiteStore) UpdateEntry(ctx context.Context, e core.Entry) error {
	if e.ID == 0 {
		return core.ErrNotFound
	}
	if err := e.Validate(); err != nil {
		return fmt.Errorf("%w: %v", core.ErrInvalidEntry, err)
	}

	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = time.Now()
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE entries
		SET user_id = ?, category = ?, date = ?, period_key = ?, quantity = ?,
		    amount = ?, remark = ?, remote_id = ?, is_synced = ?, updated_at = ?
		WHERE id = ?`,
		e.UserID, e.Category.String(), e.Date.UnixMilli(), e.PeriodKey,
		e.Quantity, e.Amount, e.Remark, e.RemoteID, boolToInt(e.Synced),
		e.UpdatedAt.UnixMilli(), e.ID)
	if err != nil {
		return fmt.Errorf("update entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}

	s.hub.notify(e.UserID, e.PeriodKey)
	return nil
}

// DeleteEntry removes an entry by id.
func (s *SQLiteStore) DeleteEntry(ctx context.Context, id int64) error {
	existing, err := s.GetEntry(ctx, id)
	if err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}

	s.hub.notify(existing.UserID, existing.PeriodKey)
	return nil
}

func (s *SQLiteStore) GetEntry(ctx context.Context, id int64) (core.Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM entries WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Entry{}, core.ErrNotFound
	}
	if err != nil {
		return core.Entry{}, fmt.Errorf("get entry: %w", err)
	}
	return e, nil
}

// EntriesForPeriod returns a user's entries for one period, newest day first.
func (s *SQLiteStore) EntriesForPeriod(ctx context.Context, userID, periodKey string) ([]core.Entry, error) {
	return s.queryEntries(ctx, `
		SELECT `+entryColumns+` FROM entries
		WHERE user_id = ? AND period_key = ?
		ORDER BY date DESC`, userID, periodKey)
}

// EntriesByCategory narrows EntriesForPeriod to one category.
func (s *SQLiteStore) EntriesByCategory(ctx context.Context, userID string, cat core.Category, periodKey string) ([]core.Entry, error) {
	return s.queryEntries(ctx, `
		SELECT `+entryColumns+` FROM entries
		WHERE user_id = ? AND category = ? AND period_key = ?
		ORDER BY date DESC`, userID, cat.String(), periodKey)
}

// UnsyncedEntries returns every entry not yet confirmed on the remote store.
func (s *SQLiteStore) UnsyncedEntries(ctx context.Context, userID string) ([]core.Entry, error) {
	return s.queryEntries(ctx, `
		SELECT `+entryColumns+` FROM entries
		WHERE user_id = ? AND is_synced = 0
		ORDER BY date ASC`, userID)
}

func (s *SQLiteStore) queryEntries(ctx context.Context, query string, args ...any) ([]core.Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var out []core.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return out, nil
}

// MarkSynced records the remote id and flips the synced flag after a
// confirmed push. Watchers are notified so views can refresh sync badges.
func (s *SQLiteStore) MarkSynced(ctx context.Context, id int64, remoteID string) error {
	existing, err := s.GetEntry(ctx, id)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE entries SET remote_id = ?, is_synced = 1, updated_at = ? WHERE id = ?`,
		remoteID, time.Now().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("mark synced: %w", err)
	}

	slog.DebugContext(ctx, "Entry marked synced", "id", id, "remote_id", remoteID)
	s.hub.notify(existing.UserID, existing.PeriodKey)
	return nil
}

// MonthlySummary aggregates one period's entries per category.
func (s *SQLiteStore) MonthlySummary(ctx context.Context, userID, periodKey string) (core.MonthlySummary, error) {
	summary := core.MonthlySummary{
		PeriodKey:  periodKey,
		ByCategory: make(map[core.Category]core.CategoryStats),
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT category,
		       COALESCE(SUM(CASE WHEN amount >= 0 THEN amount ELSE 0 END), 0),
		       COALESCE(SUM(quantity), 0),
		       COALESCE(SUM(CASE WHEN amount >= 0 THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN amount < 0 THEN 1 ELSE 0 END), 0),
		       COALESCE(MAX(date), 0)
		FROM entries
		WHERE user_id = ? AND period_key = ?
		GROUP BY category`, userID, periodKey)
	if err != nil {
		return summary, fmt.Errorf("query summary: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			category string
			st       core.CategoryStats
			lastMs   int64
		)
		if err := rows.Scan(&category, &st.TotalAmount, &st.TotalQuantity,
			&st.EntryCount, &st.MissedCount, &lastMs); err != nil {
			return summary, fmt.Errorf("scan summary row: %w", err)
		}
		cat, err := core.ParseCategory(category)
		if err != nil {
			return summary, fmt.Errorf("corrupt summary row: %w", err)
		}
		st.Category = cat
		if lastMs > 0 {
			st.LastEntryDate = core.NormalizeDate(time.UnixMilli(lastMs))
		}
		summary.ByCategory[cat] = st
	}
	if err := rows.Err(); err != nil {
		return summary, fmt.Errorf("iterate summary: %w", err)
	}
	return summary, nil
}

// AllPeriodKeys lists the distinct periods a user has entries in, newest first.
func (s *SQLiteStore) AllPeriodKeys(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT period_key FROM entries
		WHERE user_id = ?
		GROUP BY period_key
		ORDER BY MAX(date) DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query period keys: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan period key: %w", err)
		}
		out = append(out, key)
	}
	return out, rows.Err()
}

// DeleteAllForUser wipes a user's local entries and profile (sign-out path).
func (s *SQLiteStore) DeleteAllForUser(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("delete entries for user: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM user_profiles WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("delete profile for user: %w", err)
	}
	slog.InfoContext(ctx, "Deleted all local data for user", "user_id", userID)
	return nil
}

// Profile returns the user's profile row.
func (s *SQLiteStore) Profile(ctx context.Context, userID string) (core.UserProfile, error) {
	var (
		p         core.UserProfile
		createdMs int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, name, email, created_at FROM user_profiles WHERE user_id = ?`,
		userID).Scan(&p.UserID, &p.Name, &p.Email, &createdMs)
	if errors.Is(err, sql.ErrNoRows) {
		return core.UserProfile{}, core.ErrNotFound
	}
	if err != nil {
		return core.UserProfile{}, fmt.Errorf("get profile: %w", err)
	}
	p.CreatedAt = time.UnixMilli(createdMs)
	return p, nil
}

// SaveProfile inserts or replaces the user's profile row.
func (s *SQLiteStore) SaveProfile(ctx context.Context, p core.UserProfile) error {
	if p.UserID == "" {
		return core.ErrEmptyUserID
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_profiles (user_id, name, email, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET name = excluded.name, email = excluded.email`,
		p.UserID, p.Name, p.Email, p.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

// Flag reads a persisted boolean setting; missing flags read false.
func (s *SQLiteStore) Flag(ctx context.Context, name string) (bool, error) {
	var value int
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE name = ?`, name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get flag %s: %w", name, err)
	}
	return value != 0, nil
}

// SetFlag persists a boolean setting.
func (s *SQLiteStore) SetFlag(ctx context.Context, name string, value bool) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (name, value) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value`,
		name, boolToInt(value))
	if err != nil {
		return fmt.Errorf("set flag %s: %w", name, err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
