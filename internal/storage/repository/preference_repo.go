package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

const preferencesTable = "preferences"

// builder produces SQLite-style "?" placeholders.
var builder = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// PreferenceRepository stores preference slots as raw JSON documents in the
// preferences table. It satisfies preferences.Persistence.
type PreferenceRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewPreferenceRepository creates a new preference repository.
func NewPreferenceRepository(db *sql.DB) *PreferenceRepository {
	return &PreferenceRepository{db: db, now: time.Now}
}

// Get returns the stored value for key and whether it exists.
func (r *PreferenceRepository) Get(ctx context.Context, key string) ([]byte, bool, error) {
	query, args, err := builder.
		Select("value").
		From(preferencesTable).
		Where(sq.Eq{"key": key}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, false, fmt.Errorf("failed to build query: %w", err)
	}

	var value string
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get preference %s: %w", key, err)
	}
	return []byte(value), true, nil
}

// Set stores value under key, replacing any previous value.
func (r *PreferenceRepository) Set(ctx context.Context, key string, value []byte) error {
	query, args, err := builder.
		Insert(preferencesTable).
		Columns("key", "value", "updated_at").
		Values(key, string(value), r.now().UTC()).
		Suffix("ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to set preference %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (r *PreferenceRepository) Delete(ctx context.Context, key string) error {
	query, args, err := builder.
		Delete(preferencesTable).
		Where(sq.Eq{"key": key}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete preference %s: %w", key, err)
	}
	return nil
}
