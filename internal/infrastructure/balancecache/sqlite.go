package balancecache

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sort"

	"balance_pool/internal/domain/entity"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// SQLiteStore keeps the snapshot in a single SQLite table.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and migrates it.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read embedded migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		raw, err := migrationFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, string(raw)); err != nil {
			return fmt.Errorf("exec migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// Persist implements port.BalanceCache. The table is replaced in one transaction.
func (s *SQLiteStore) Persist(ctx context.Context, balances []entity.CachedBalance) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin persist: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM balances`); err != nil {
		return fmt.Errorf("clear balances: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO balances(source, network, token_id, address, free, reserved, frozen)
		VALUES(?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source, network, token_id, address) DO UPDATE SET
			free=excluded.free,
			reserved=excluded.reserved,
			frozen=excluded.frozen
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, b := range balances {
		if _, err := stmt.ExecContext(ctx, b.Source, b.Network, b.TokenID, b.Address, b.Free, b.Reserved, b.Frozen); err != nil {
			return fmt.Errorf("insert balance %s/%s/%s: %w", b.Network, b.TokenID, b.Address, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit persist: %w", err)
	}
	return nil
}

// Retrieve implements port.BalanceCache.
func (s *SQLiteStore) Retrieve(ctx context.Context) ([]entity.CachedBalance, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source, network, token_id, address, free, reserved, frozen
		FROM balances
		ORDER BY source, network, token_id, address
	`)
	if err != nil {
		return nil, fmt.Errorf("query balances: %w", err)
	}
	defer rows.Close()

	var out []entity.CachedBalance
	for rows.Next() {
		var b entity.CachedBalance
		if err := rows.Scan(&b.Source, &b.Network, &b.TokenID, &b.Address, &b.Free, &b.Reserved, &b.Frozen); err != nil {
			return nil, fmt.Errorf("scan balance: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate balances: %w", err)
	}
	return out, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
