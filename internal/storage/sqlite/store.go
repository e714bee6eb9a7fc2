// Package sqlite provides an embedded SQLite List Store for single-node
// deployments.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Togather-Foundation/favorites/internal/domain/favorites"
	"github.com/Togather-Foundation/favorites/internal/metrics"
	"github.com/Togather-Foundation/favorites/internal/storage/sqlite/migrations"
	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Store persists favorite lists in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

func applyMigrations(sqlDB *sql.DB) error {
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("open embedded migrations: %w", err)
	}
	driver, err := migratesqlite.WithInstance(sqlDB, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("init sqlite migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("init migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// DB exposes the handle for pool metrics.
func (s *Store) DB() *sql.DB {
	return s.sqlDB
}

// Ping reports whether the database file is usable.
func (s *Store) Ping(ctx context.Context) error {
	return s.sqlDB.PingContext(ctx)
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

const listColumns = `id, owner_id, name, visibility, event_ids, shared_with,
       shared_by_user_id, capability_token, version, created_at, updated_at`

// Create inserts one list, recording a PUBLIC list's token in the issued-token
// ledger in the same transaction.
func (s *Store) Create(ctx context.Context, list *favorites.List) (err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("create_list", start, err) }()

	eventIDs, sharedWith, err := encodeArrays(list)
	if err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if list.CapabilityToken != "" {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO capability_tokens (token, list_id, issued_at) VALUES (?, ?, ?)`,
				list.CapabilityToken, list.ID, toMillis(list.CreatedAt),
			); err != nil {
				return mapWriteError(err)
			}
		}

		_, err := tx.ExecContext(ctx, `
INSERT INTO favorite_lists (
    id, owner_id, name, visibility, event_ids, shared_with,
    shared_by_user_id, capability_token, version, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			list.ID,
			list.OwnerID,
			list.Name,
			string(list.Visibility),
			eventIDs,
			sharedWith,
			nullInt64(list.SharedByUserID),
			nullString(list.CapabilityToken),
			list.Version,
			toMillis(list.CreatedAt),
			toMillis(list.UpdatedAt),
		)
		if err != nil {
			return mapWriteError(err)
		}
		return nil
	})
}

func (s *Store) GetByID(ctx context.Context, id string) (*favorites.List, error) {
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+listColumns+` FROM favorite_lists WHERE id = ?`, id)
	return scanList(row)
}

func (s *Store) GetByCapabilityToken(ctx context.Context, token string) (*favorites.List, error) {
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+listColumns+` FROM favorite_lists WHERE capability_token = ?`, token)
	return scanList(row)
}

func (s *Store) ListByOwner(ctx context.Context, ownerID int64) ([]*favorites.List, error) {
	return s.queryLists(ctx, `
SELECT `+listColumns+`
  FROM favorite_lists
 WHERE owner_id = ?
 ORDER BY created_at, id`, ownerID)
}

func (s *Store) ListBySharedWith(ctx context.Context, userID int64) ([]*favorites.List, error) {
	return s.queryLists(ctx, `
SELECT `+listColumns+`
  FROM favorite_lists
 WHERE EXISTS (SELECT 1 FROM json_each(favorite_lists.shared_with) WHERE json_each.value = ?)
 ORDER BY created_at, id`, userID)
}

func (s *Store) ListByVisibility(ctx context.Context, visibility favorites.Visibility) ([]*favorites.List, error) {
	return s.queryLists(ctx, `
SELECT `+listColumns+`
  FROM favorite_lists
 WHERE visibility = ?
 ORDER BY created_at, id`, string(visibility))
}

// Update writes the mutable columns when the stored version still matches.
func (s *Store) Update(ctx context.Context, list *favorites.List) (err error) {
	start := time.Now()
	defer func() {
		if errors.Is(err, favorites.ErrVersionConflict) || errors.Is(err, favorites.ErrListNotFound) {
			metrics.RecordQuery("update_list", start, nil)
			return
		}
		metrics.RecordQuery("update_list", start, err)
	}()

	eventIDs, sharedWith, err := encodeArrays(list)
	if err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE favorite_lists
   SET name = ?,
       event_ids = ?,
       shared_with = ?,
       shared_by_user_id = ?,
       updated_at = ?,
       version = version + 1
 WHERE id = ? AND version = ?`,
			list.Name,
			eventIDs,
			sharedWith,
			nullInt64(list.SharedByUserID),
			toMillis(list.UpdatedAt),
			list.ID,
			list.Version,
		)
		if err != nil {
			return fmt.Errorf("update list %s: %w", list.ID, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("update list %s: %w", list.ID, err)
		}
		if affected == 1 {
			list.Version++
			return nil
		}

		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM favorite_lists WHERE id = ?)`, list.ID).Scan(&exists); err != nil {
			return fmt.Errorf("check list %s: %w", list.ID, err)
		}
		if !exists {
			return favorites.ErrListNotFound
		}
		return favorites.ErrVersionConflict
	})
}

// Delete removes the list and retires its token.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM favorite_lists WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete list %s: %w", id, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete list %s: %w", id, err)
		}
		if affected == 0 {
			return favorites.ErrListNotFound
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE capability_tokens SET retired_at = ? WHERE list_id = ?`,
			toMillis(time.Now()), id,
		); err != nil {
			return fmt.Errorf("retire token for list %s: %w", id, err)
		}
		return nil
	})
}

func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *Store) queryLists(ctx context.Context, query string, args ...any) ([]*favorites.List, error) {
	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query lists: %w", err)
	}
	defer rows.Close()

	lists := []*favorites.List{}
	for rows.Next() {
		list, err := scanList(rows)
		if err != nil {
			return nil, err
		}
		lists = append(lists, list)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lists: %w", err)
	}
	return lists, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanList(row rowScanner) (*favorites.List, error) {
	var (
		list       favorites.List
		visibility string
		eventIDs   string
		sharedWith string
		sharer     sql.NullInt64
		token      sql.NullString
		createdAt  int64
		updatedAt  int64
	)
	err := row.Scan(
		&list.ID,
		&list.OwnerID,
		&list.Name,
		&visibility,
		&eventIDs,
		&sharedWith,
		&sharer,
		&token,
		&list.Version,
		&createdAt,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, favorites.ErrListNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan list: %w", err)
	}
	if err := json.Unmarshal([]byte(eventIDs), &list.EventIDs); err != nil {
		return nil, fmt.Errorf("decode event_ids for list %s: %w", list.ID, err)
	}
	if err := json.Unmarshal([]byte(sharedWith), &list.SharedWith); err != nil {
		return nil, fmt.Errorf("decode shared_with for list %s: %w", list.ID, err)
	}
	list.Visibility = favorites.Visibility(visibility)
	if sharer.Valid {
		id := sharer.Int64
		list.SharedByUserID = &id
	}
	list.CapabilityToken = token.String
	list.CreatedAt = fromMillis(createdAt)
	list.UpdatedAt = fromMillis(updatedAt)
	return &list, nil
}

func encodeArrays(list *favorites.List) (string, string, error) {
	eventIDs, err := json.Marshal(nonNil(list.EventIDs))
	if err != nil {
		return "", "", fmt.Errorf("encode event_ids: %w", err)
	}
	sharedWith, err := json.Marshal(nonNil(list.SharedWith))
	if err != nil {
		return "", "", fmt.Errorf("encode shared_with: %w", err)
	}
	return string(eventIDs), string(sharedWith), nil
}

func nonNil(values []int64) []int64 {
	if values == nil {
		return []int64{}
	}
	return values
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}

func nullInt64(value *int64) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *value, Valid: true}
}

// mapWriteError translates unique violations into domain sentinels.
func mapWriteError(err error) error {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			message := strings.ToLower(err.Error())
			switch {
			case strings.Contains(message, "capability_tokens.token"),
				strings.Contains(message, "favorite_lists.capability_token"):
				return favorites.ErrTokenTaken
			case strings.Contains(message, "favorite_lists.id"):
				return favorites.ErrListExists
			}
		}
	}
	return fmt.Errorf("insert list: %w", err)
}

var _ favorites.Repository = (*Store)(nil)
