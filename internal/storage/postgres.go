package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/org/creditledger/pkg/models"
)

// PostgresBackend is a Backend backed by PostgreSQL.
type PostgresBackend struct {
	pool *pgxpool.Pool
}

// NewPostgresBackend opens a pgxpool connection and returns a ready backend.
func NewPostgresBackend(ctx context.Context, connStr string) (*PostgresBackend, error) {
	cfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &PostgresBackend{pool: pool}, nil
}

func (p *PostgresBackend) Close() {
	p.pool.Close()
}

func (p *PostgresBackend) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// --- Entries ---

func (p *PostgresBackend) GetEntry(ctx context.Context, key string) (*models.Entry, error) {
	var e models.Entry
	err := p.pool.QueryRow(ctx,
		`SELECT key, value, block, updated_at FROM ledger_entries WHERE key = $1`,
		key,
	).Scan(&e.Key, &e.Value, &e.Block, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

func (p *PostgresBackend) CountEntries(ctx context.Context) (int64, error) {
	var count int64
	err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM ledger_entries`).Scan(&count)
	return count, err
}

// --- Blocks ---

func (p *PostgresBackend) CommitBlock(ctx context.Context, block *models.Block) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx,
		`INSERT INTO ledger_blocks (number, committed_at) VALUES ($1, $2)`,
		block.Number, block.CommittedAt,
	); err != nil {
		return fmt.Errorf("inserting block %d: %w", block.Number, err)
	}

	for i, pt := range block.Txs {
		_, err = tx.Exec(ctx,
			`INSERT INTO ledger_entries (key, value, block, updated_at)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (key) DO UPDATE
			 SET value = EXCLUDED.value, block = EXCLUDED.block, updated_at = EXCLUDED.updated_at`,
			pt.Tx.Key, pt.Tx.Value, block.Number, block.CommittedAt,
		)
		if err != nil {
			return fmt.Errorf("upserting entry %q: %w", pt.Tx.Key, err)
		}
		r := pt.Receipt
		_, err = tx.Exec(ctx,
			`INSERT INTO ledger_transactions (tx_hash, block_number, position, key, signer, value_size, submitted_at, confirmed_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			r.TxHash, block.Number, i, r.Key, r.From, r.ValueSize, r.SubmittedAt, block.CommittedAt,
		)
		if err != nil {
			return fmt.Errorf("inserting receipt %s: %w", r.TxHash, err)
		}
	}
	return tx.Commit(ctx)
}

func (p *PostgresBackend) LatestBlock(ctx context.Context) (uint64, error) {
	var n int64
	err := p.pool.QueryRow(ctx, `SELECT COALESCE(MAX(number), 0) FROM ledger_blocks`).Scan(&n)
	return uint64(n), err
}

// --- Receipts ---

const receiptColumns = `tx_hash, block_number, key, signer, value_size, submitted_at, confirmed_at`

func (p *PostgresBackend) GetReceipt(ctx context.Context, txHash string) (*models.Receipt, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT `+receiptColumns+` FROM ledger_transactions WHERE tx_hash = $1`,
		txHash,
	)
	return scanReceipt(row)
}

func scanReceipt(row pgx.Row) (*models.Receipt, error) {
	var r models.Receipt
	var confirmedAt time.Time
	err := row.Scan(&r.TxHash, &r.BlockNumber, &r.Key, &r.From, &r.ValueSize, &r.SubmittedAt, &confirmedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	r.Status = models.TxConfirmed
	r.ConfirmedAt = &confirmedAt
	return &r, nil
}

func (p *PostgresBackend) QueryTransactions(ctx context.Context, filter TxFilter) ([]*models.Receipt, error) {
	query := strings.Builder{}
	query.WriteString(`SELECT ` + receiptColumns + ` FROM ledger_transactions WHERE 1=1`)
	args := []any{}
	n := 1
	if filter.KeyPrefix != "" {
		fmt.Fprintf(&query, ` AND starts_with(key, $%d)`, n)
		args = append(args, filter.KeyPrefix)
		n++
	}
	if filter.Signer != "" {
		fmt.Fprintf(&query, ` AND lower(signer) = lower($%d)`, n)
		args = append(args, filter.Signer)
		n++
	}
	if filter.Since != nil {
		fmt.Fprintf(&query, ` AND submitted_at >= $%d`, n)
		args = append(args, *filter.Since)
		n++
	}
	query.WriteString(` ORDER BY block_number DESC, position DESC`)
	if filter.Limit > 0 {
		fmt.Fprintf(&query, ` LIMIT $%d`, n)
		args = append(args, filter.Limit)
		n++
	}
	if filter.Offset > 0 {
		fmt.Fprintf(&query, ` OFFSET $%d`, n)
		args = append(args, filter.Offset)
	}

	rows, err := p.pool.Query(ctx, query.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var receipts []*models.Receipt
	for rows.Next() {
		r, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		receipts = append(receipts, r)
	}
	return receipts, rows.Err()
}
