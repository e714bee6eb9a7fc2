package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Togather-Foundation/favorites/internal/domain/favorites"
	"github.com/Togather-Foundation/favorites/internal/metrics"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	uniqueViolation = "23505"

	listsPrimaryKey      = "favorite_lists_pkey"
	listsTokenKey        = "favorite_lists_capability_token_key"
	capabilityTokensPkey = "capability_tokens_pkey"
)

const listColumns = `id, owner_id, name, visibility, event_ids, shared_with,
       shared_by_user_id, capability_token, version, created_at, updated_at`

// Create inserts the list and, for PUBLIC lists, records the token in the
// issued-token ledger within one transaction.
func (r *ListRepository) Create(ctx context.Context, list *favorites.List) (err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("create_list", start, err) }()

	return r.WithTx(ctx, func(ctx context.Context, txRepo *ListRepository) error {
		q := txRepo.queryer()
		if list.CapabilityToken != "" {
			_, err := q.Exec(ctx,
				`INSERT INTO capability_tokens (token, list_id, issued_at) VALUES ($1, $2, $3)`,
				list.CapabilityToken, list.ID, list.CreatedAt,
			)
			if err != nil {
				return mapWriteError(err)
			}
		}

		_, err := q.Exec(ctx, `
INSERT INTO favorite_lists (
    id, owner_id, name, visibility, event_ids, shared_with,
    shared_by_user_id, capability_token, version, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			list.ID,
			list.OwnerID,
			list.Name,
			string(list.Visibility),
			nonNil(list.EventIDs),
			nonNil(list.SharedWith),
			list.SharedByUserID,
			nullString(list.CapabilityToken),
			list.Version,
			list.CreatedAt,
			list.UpdatedAt,
		)
		if err != nil {
			return mapWriteError(err)
		}
		return nil
	})
}

func (r *ListRepository) GetByID(ctx context.Context, id string) (list *favorites.List, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("get_list", start, ignoreNotFound(err)) }()

	row := r.queryer().QueryRow(ctx, `SELECT `+listColumns+` FROM favorite_lists WHERE id = $1`, id)
	return scanList(row)
}

func (r *ListRepository) GetByCapabilityToken(ctx context.Context, token string) (list *favorites.List, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("get_list_by_token", start, ignoreNotFound(err)) }()

	row := r.queryer().QueryRow(ctx, `SELECT `+listColumns+` FROM favorite_lists WHERE capability_token = $1`, token)
	return scanList(row)
}

func (r *ListRepository) ListByOwner(ctx context.Context, ownerID int64) (lists []*favorites.List, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("list_by_owner", start, err) }()

	return r.queryLists(ctx, `
SELECT `+listColumns+`
  FROM favorite_lists
 WHERE owner_id = $1
 ORDER BY created_at, id`, ownerID)
}

func (r *ListRepository) ListBySharedWith(ctx context.Context, userID int64) (lists []*favorites.List, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("list_by_shared_with", start, err) }()

	return r.queryLists(ctx, `
SELECT `+listColumns+`
  FROM favorite_lists
 WHERE shared_with @> ARRAY[$1::BIGINT]
 ORDER BY created_at, id`, userID)
}

func (r *ListRepository) ListByVisibility(ctx context.Context, visibility favorites.Visibility) (lists []*favorites.List, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("list_by_visibility", start, err) }()

	return r.queryLists(ctx, `
SELECT `+listColumns+`
  FROM favorite_lists
 WHERE visibility = $1
 ORDER BY created_at, id`, string(visibility))
}

// Update writes the mutable columns when the stored version still matches.
// Owner, visibility, token and created_at are never rewritten.
func (r *ListRepository) Update(ctx context.Context, list *favorites.List) (err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("update_list", start, ignoreConflict(err)) }()

	q := r.queryer()
	var version int64
	err = q.QueryRow(ctx, `
UPDATE favorite_lists
   SET name = $3,
       event_ids = $4,
       shared_with = $5,
       shared_by_user_id = $6,
       updated_at = $7,
       version = version + 1
 WHERE id = $1 AND version = $2
RETURNING version`,
		list.ID,
		list.Version,
		list.Name,
		nonNil(list.EventIDs),
		nonNil(list.SharedWith),
		list.SharedByUserID,
		list.UpdatedAt,
	).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM favorite_lists WHERE id = $1)`, list.ID).Scan(&exists); err != nil {
			return fmt.Errorf("check list %s: %w", list.ID, err)
		}
		if !exists {
			return favorites.ErrListNotFound
		}
		return favorites.ErrVersionConflict
	}
	if err != nil {
		return fmt.Errorf("update list %s: %w", list.ID, err)
	}
	list.Version = version
	return nil
}

// Delete removes the list and retires its token in the ledger.
func (r *ListRepository) Delete(ctx context.Context, id string) (err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("delete_list", start, ignoreNotFound(err)) }()

	return r.WithTx(ctx, func(ctx context.Context, txRepo *ListRepository) error {
		q := txRepo.queryer()
		tag, err := q.Exec(ctx, `DELETE FROM favorite_lists WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete list %s: %w", id, err)
		}
		if tag.RowsAffected() == 0 {
			return favorites.ErrListNotFound
		}
		if _, err := q.Exec(ctx, `UPDATE capability_tokens SET retired_at = now() WHERE list_id = $1`, id); err != nil {
			return fmt.Errorf("retire token for list %s: %w", id, err)
		}
		return nil
	})
}

func (r *ListRepository) queryLists(ctx context.Context, sql string, args ...any) ([]*favorites.List, error) {
	rows, err := r.queryer().Query(ctx, sql, args...)
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

func scanList(row pgx.Row) (*favorites.List, error) {
	var (
		list       favorites.List
		visibility string
		token      *string
	)
	err := row.Scan(
		&list.ID,
		&list.OwnerID,
		&list.Name,
		&visibility,
		&list.EventIDs,
		&list.SharedWith,
		&list.SharedByUserID,
		&token,
		&list.Version,
		&list.CreatedAt,
		&list.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, favorites.ErrListNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan list: %w", err)
	}
	list.Visibility = favorites.Visibility(visibility)
	list.CapabilityToken = derefString(token)
	list.CreatedAt = list.CreatedAt.UTC()
	list.UpdatedAt = list.UpdatedAt.UTC()
	return &list, nil
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		switch pgErr.ConstraintName {
		case listsTokenKey, capabilityTokensPkey:
			return favorites.ErrTokenTaken
		case listsPrimaryKey:
			return favorites.ErrListExists
		}
	}
	return fmt.Errorf("insert list: %w", err)
}

func ignoreNotFound(err error) error {
	if errors.Is(err, favorites.ErrListNotFound) {
		return nil
	}
	return err
}

func ignoreConflict(err error) error {
	if errors.Is(err, favorites.ErrVersionConflict) {
		return nil
	}
	return ignoreNotFound(err)
}

var _ favorites.Repository = (*ListRepository)(nil)
