package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"volunteer-attendance/internal/config"

	"github.com/jmoiron/sqlx"
)

// SQLProvider stores list items as JSON documents in a single table.
type SQLProvider struct {
	db *sqlx.DB

	config *config.Storage

	logger *slog.Logger
	now    func() time.Time
}

type itemRow struct {
	ID         int64     `db:"id"`
	Fields     string    `db:"fields"`
	CreatedAt  time.Time `db:"created_at"`
	ModifiedAt time.Time `db:"modified_at"`
}

func NewSQLProvider(config *config.Storage, driverName string, dataSource string) (*SQLProvider, error) {
	db, err := sqlx.Open(driverName, dataSource)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driverName, err)
	}
	return newSQLProviderFromDB(config, db), nil
}

func newSQLProviderFromDB(config *config.Storage, db *sqlx.DB) *SQLProvider {
	return &SQLProvider{
		db:     db,
		config: config,
		logger: slog.With("component", "storage", "driver", db.DriverName()),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (p *SQLProvider) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

func (p *SQLProvider) GetSchemaVersion(ctx context.Context) (int, error) {
	var version int
	err := p.db.GetContext(ctx, &version, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

func (p *SQLProvider) listExists(ctx context.Context, q sqlx.QueryerContext, list string) (bool, error) {
	var count int
	if err := sqlx.GetContext(ctx, q, &count, p.db.Rebind("SELECT COUNT(*) FROM lists WHERE name = ?"), list); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (p *SQLProvider) ListAll(ctx context.Context, list string, fields []string) ([]Item, error) {
	exists, err := p.listExists(ctx, p.db, list)
	if err != nil {
		return nil, fmt.Errorf("failed to look up list %s: %w", list, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrListNotFound, list)
	}

	var rows []itemRow
	query := p.db.Rebind("SELECT id, fields, created_at, modified_at FROM list_items WHERE list = ? ORDER BY id")
	if err := p.db.SelectContext(ctx, &rows, query, list); err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", list, err)
	}

	items := make([]Item, 0, len(rows))
	for _, row := range rows {
		var values Fields
		if err := json.Unmarshal([]byte(row.Fields), &values); err != nil {
			return nil, fmt.Errorf("failed to decode %s item %d: %w", list, row.ID, err)
		}
		items = append(items, Item{
			ID:       row.ID,
			Fields:   selectFields(values, fields),
			Created:  row.CreatedAt,
			Modified: row.ModifiedAt,
		})
	}
	return items, nil
}

func (p *SQLProvider) Create(ctx context.Context, list string, fields Fields) (int64, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return 0, fmt.Errorf("failed to encode fields: %w", err)
	}

	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Bumping the counter first holds the row lock for the rest of the transaction.
	res, err := tx.ExecContext(ctx, tx.Rebind("UPDATE lists SET next_id = next_id + 1, version = version + 1 WHERE name = ?"), list)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate id in %s: %w", list, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return 0, err
	} else if n == 0 {
		return 0, fmt.Errorf("%w: %s", ErrListNotFound, list)
	}

	var id int64
	if err := tx.GetContext(ctx, &id, tx.Rebind("SELECT next_id - 1 FROM lists WHERE name = ?"), list); err != nil {
		return 0, fmt.Errorf("failed to read allocated id in %s: %w", list, err)
	}

	now := p.now()
	_, err = tx.ExecContext(ctx,
		tx.Rebind("INSERT INTO list_items (list, id, fields, created_at, modified_at) VALUES (?, ?, ?, ?, ?)"),
		list, id, string(data), now, now)
	if err != nil {
		return 0, fmt.Errorf("failed to insert into %s: %w", list, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}

	p.logger.Debug("Created list item", "list", list, "id", id)
	return id, nil
}

func (p *SQLProvider) Update(ctx context.Context, list string, id int64, fields Fields) error {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var raw string
	err = tx.GetContext(ctx, &raw, tx.Rebind("SELECT fields FROM list_items WHERE list = ? AND id = ?"), list, id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s/%d", ErrItemNotFound, list, id)
	} else if err != nil {
		return fmt.Errorf("failed to read %s item %d: %w", list, id, err)
	}

	var current Fields
	if err := json.Unmarshal([]byte(raw), &current); err != nil {
		return fmt.Errorf("failed to decode %s item %d: %w", list, id, err)
	}
	if current == nil {
		current = Fields{}
	}
	for k, v := range fields {
		current[k] = v
	}

	data, err := json.Marshal(current)
	if err != nil {
		return fmt.Errorf("failed to encode fields: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		tx.Rebind("UPDATE list_items SET fields = ?, modified_at = ? WHERE list = ? AND id = ?"),
		string(data), p.now(), list, id)
	if err != nil {
		return fmt.Errorf("failed to update %s item %d: %w", list, id, err)
	}
	if err := bumpVersion(ctx, tx, list); err != nil {
		return err
	}

	return tx.Commit()
}

func bumpVersion(ctx context.Context, tx *sqlx.Tx, list string) error {
	if _, err := tx.ExecContext(ctx, tx.Rebind("UPDATE lists SET version = version + 1 WHERE name = ?"), list); err != nil {
		return fmt.Errorf("failed to bump %s version: %w", list, err)
	}
	return nil
}

func (p *SQLProvider) Delete(ctx context.Context, list string, id int64) error {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM list_items WHERE list = ? AND id = ?"), list, id)
	if err != nil {
		return fmt.Errorf("failed to delete %s item %d: %w", list, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s/%d", ErrItemNotFound, list, id)
	}
	if err := bumpVersion(ctx, tx, list); err != nil {
		return err
	}
	return tx.Commit()
}

func (p *SQLProvider) ListVersion(ctx context.Context, list string) (int64, error) {
	var version int64
	err := p.db.GetContext(ctx, &version, p.db.Rebind("SELECT version FROM lists WHERE name = ?"), list)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", ErrListNotFound, list)
	} else if err != nil {
		return 0, fmt.Errorf("failed to read %s version: %w", list, err)
	}
	return version, nil
}

// The upsert only replaces a row held by the same owner or one that expired.
const tryLockQuery = `INSERT INTO run_locks (name, owner, expires_at) VALUES (?, ?, ?)
ON CONFLICT (name) DO UPDATE SET owner = excluded.owner, expires_at = excluded.expires_at
WHERE run_locks.owner = excluded.owner OR run_locks.expires_at < ?`

func (p *SQLProvider) TryLock(ctx context.Context, name, owner string, ttl time.Duration) (bool, error) {
	now := p.now()
	res, err := p.db.ExecContext(ctx, p.db.Rebind(tryLockQuery), name, owner, now.Add(ttl).UnixMilli(), now.UnixMilli())
	if err != nil {
		return false, fmt.Errorf("failed to take lock %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (p *SQLProvider) Unlock(ctx context.Context, name, owner string) error {
	if _, err := p.db.ExecContext(ctx, p.db.Rebind("DELETE FROM run_locks WHERE name = ? AND owner = ?"), name, owner); err != nil {
		return fmt.Errorf("failed to release lock %s: %w", name, err)
	}
	return nil
}
