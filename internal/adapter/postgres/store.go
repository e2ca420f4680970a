// Package postgres persists canonical transactions and serves the
// database-backed sales channels.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"

	"github.com/couchcryptid/retail-sales-etl/internal/domain"
	"github.com/couchcryptid/retail-sales-etl/internal/refdata"
)

//go:embed schema.sql
var schema string

// Store wraps the Postgres connection pool used by every channel and by the
// canonical transactions table.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open connects to Postgres and verifies the connection.
func Open(dsn string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable. The readiness probe uses it.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// EnsureSchema creates every table the pipeline reads or writes if it does
// not already exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

const upsertTransaction = `
INSERT INTO transactions (
    transaction_id, created_at, location, sku, source, payment_method,
    unit_price, quantity, tax, total, product_name, additional_data
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (transaction_id) DO UPDATE SET
    created_at = EXCLUDED.created_at,
    location = EXCLUDED.location,
    sku = EXCLUDED.sku,
    source = EXCLUDED.source,
    payment_method = EXCLUDED.payment_method,
    unit_price = EXCLUDED.unit_price,
    quantity = EXCLUDED.quantity,
    tax = EXCLUDED.tax,
    total = EXCLUDED.total,
    product_name = EXCLUDED.product_name,
    additional_data = EXCLUDED.additional_data`

// LoadTransactions upserts canonical transactions in one database
// transaction. Replaying a batch overwrites rows with the same ID, so loads
// are idempotent.
func (s *Store) LoadTransactions(ctx context.Context, txns []domain.Transaction) error {
	if len(txns) == 0 {
		s.logger.Info("no transactions to load")
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, upsertTransaction)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, t := range txns {
		extra, err := marshalAdditionalData(t.AdditionalData)
		if err != nil {
			return fmt.Errorf("transaction %s: %w", t.TransactionID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			t.TransactionID, t.CreatedAt, t.Location, t.SKU, t.Source, t.PaymentMethod,
			t.UnitPrice, t.Quantity, t.Tax, t.Total, t.ProductName, extra,
		); err != nil {
			return fmt.Errorf("upsert transaction %s: %w", t.TransactionID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transactions: %w", err)
	}

	s.logger.Info("loaded records", "count", len(txns), "table", "transactions")
	return nil
}

// OnlineTransactions returns every raw Stripe payload awaiting
// reconciliation. NULL payloads surface as empty strings for the transform
// step to flag.
func (s *Store) OnlineTransactions(ctx context.Context) ([]domain.RawOnlineRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT stripe_data FROM online_transactions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query online transactions: %w", err)
	}
	defer rows.Close()

	var records []domain.RawOnlineRecord
	for rows.Next() {
		var data sql.NullString
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan online transaction: %w", err)
		}
		records = append(records, domain.RawOnlineRecord{StripeData: data.String})
	}
	return records, rows.Err()
}

// CryptoTransactions returns every raw crypto ledger row.
func (s *Store) CryptoTransactions(ctx context.Context) ([]domain.RawCryptoRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT transaction_id, created_at, location, sku, payment_method, quantity, total
FROM crypto_transactions ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("query crypto transactions: %w", err)
	}
	defer rows.Close()

	var records []domain.RawCryptoRecord
	for rows.Next() {
		var rec domain.RawCryptoRecord
		if err := rows.Scan(&rec.TransactionID, &rec.CreatedAt, &rec.Location,
			&rec.SKU, &rec.PaymentMethod, &rec.Quantity, &rec.Total); err != nil {
			return nil, fmt.Errorf("scan crypto transaction: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// POSTransactions returns every raw point-of-sale row.
func (s *Store) POSTransactions(ctx context.Context) ([]domain.RawPOSRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT transaction_id, created_at, location, sku, payment_method, unit_price, quantity, tax, total
FROM pos_transactions ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("query pos transactions: %w", err)
	}
	defer rows.Close()

	var records []domain.RawPOSRecord
	for rows.Next() {
		var rec domain.RawPOSRecord
		if err := rows.Scan(&rec.TransactionID, &rec.CreatedAt, &rec.Location, &rec.SKU,
			&rec.PaymentMethod, &rec.UnitPrice, &rec.Quantity, &rec.Tax, &rec.Total); err != nil {
			return nil, fmt.Errorf("scan pos transaction: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// LoadProducts upserts the product reference table.
func (s *Store) LoadProducts(ctx context.Context, products []refdata.Product) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO products (sku, name, unit_price) VALUES ($1, $2, $3)
ON CONFLICT (sku) DO UPDATE SET name = EXCLUDED.name, unit_price = EXCLUDED.unit_price`)
	if err != nil {
		return fmt.Errorf("prepare product upsert: %w", err)
	}
	defer stmt.Close()

	for _, p := range products {
		if _, err := stmt.ExecContext(ctx, p.SKU, p.Name, p.UnitPrice); err != nil {
			return fmt.Errorf("upsert product %d: %w", p.SKU, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit products: %w", err)
	}
	s.logger.Info("loaded records", "count", len(products), "table", "products")
	return nil
}

// InsertOnlineTransactions appends raw Stripe payloads to the online channel
// table. The seed tool uses it to stage fixture data.
func (s *Store) InsertOnlineTransactions(ctx context.Context, records []domain.RawOnlineRecord) error {
	return s.insertBatch(ctx, "online_transactions", len(records),
		`INSERT INTO online_transactions (stripe_data) VALUES ($1)`,
		func(stmt *sql.Stmt, i int) error {
			_, err := stmt.ExecContext(ctx, records[i].StripeData)
			return err
		})
}

// InsertCryptoTransactions appends raw crypto ledger rows.
func (s *Store) InsertCryptoTransactions(ctx context.Context, records []domain.RawCryptoRecord) error {
	return s.insertBatch(ctx, "crypto_transactions", len(records),
		`INSERT INTO crypto_transactions (transaction_id, created_at, location, sku, payment_method, quantity, total)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		func(stmt *sql.Stmt, i int) error {
			rec := records[i]
			_, err := stmt.ExecContext(ctx, rec.TransactionID, rec.CreatedAt, rec.Location,
				rec.SKU, rec.PaymentMethod, rec.Quantity, rec.Total)
			return err
		})
}

// InsertPOSTransactions appends raw point-of-sale rows.
func (s *Store) InsertPOSTransactions(ctx context.Context, records []domain.RawPOSRecord) error {
	return s.insertBatch(ctx, "pos_transactions", len(records),
		`INSERT INTO pos_transactions (transaction_id, created_at, location, sku, payment_method, unit_price, quantity, tax, total)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		func(stmt *sql.Stmt, i int) error {
			rec := records[i]
			_, err := stmt.ExecContext(ctx, rec.TransactionID, rec.CreatedAt, rec.Location, rec.SKU,
				rec.PaymentMethod, rec.UnitPrice, rec.Quantity, rec.Tax, rec.Total)
			return err
		})
}

func (s *Store) insertBatch(ctx context.Context, table string, n int, query string, exec func(*sql.Stmt, int) error) error {
	if n == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare insert for %s: %w", table, err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if err := exec(stmt, i); err != nil {
			return fmt.Errorf("insert into %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit inserts for %s: %w", table, err)
	}
	s.logger.Info("loaded records", "count", n, "table", table)
	return nil
}

// marshalAdditionalData renders the market enrichment as JSON for the JSONB
// column, or nil for channels without it so the column stays NULL.
func marshalAdditionalData(d *domain.AdditionalData) (any, error) {
	if d == nil {
		return nil, nil
	}
	b, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshal additional data: %w", err)
	}
	return string(b), nil
}
