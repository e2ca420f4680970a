package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/retail-sales-etl/internal/domain"
	"github.com/couchcryptid/retail-sales-etl/internal/refdata"
)

// CryptoChannel turns staged crypto ledger rows into canonical transactions.
// Ledger totals are in ETH; one price fetch covering the ledger's date range
// converts them to dollars at each sale day's opening price.
type CryptoChannel struct {
	source  CryptoSource
	prices  PriceSource
	catalog *refdata.Catalog
	logger  *slog.Logger
}

// NewCryptoChannel creates the crypto channel over the staged ledger rows.
func NewCryptoChannel(source CryptoSource, prices PriceSource, catalog *refdata.Catalog, logger *slog.Logger) *CryptoChannel {
	return &CryptoChannel{
		source:  source,
		prices:  prices,
		catalog: catalog,
		logger:  logger,
	}
}

func (c *CryptoChannel) Name() string {
	return "crypto"
}

func (c *CryptoChannel) Process(ctx context.Context) ([]domain.Transaction, Stats, error) {
	records, err := c.source.CryptoTransactions(ctx)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("fetch crypto data: %w", err)
	}
	if len(records) == 0 {
		c.logger.Info("transformed transactions", "count", 0)
		return nil, Stats{}, nil
	}

	from, to := createdAtRange(records)
	prices, err := c.prices.DailyOpen(ctx, from, to)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("fetch ETH prices: %w", err)
	}

	txns := make([]domain.Transaction, 0, len(records))
	for _, rec := range records {
		txn, err := c.transformRecord(rec, prices)
		if err != nil {
			return nil, Stats{}, err
		}
		txns = append(txns, txn)
	}

	c.logger.Info("transformed transactions", "count", len(txns))
	return txns, Stats{Extracted: len(records)}, nil
}

// transformRecord converts one ledger row at the opening price of its UTC
// sale day. A day missing from the price series aborts the run; silently
// keeping ETH amounts would corrupt revenue.
func (c *CryptoChannel) transformRecord(rec domain.RawCryptoRecord, prices map[string]float64) (domain.Transaction, error) {
	day := rec.CreatedAt.UTC().Format("2006-01-02")
	open, ok := prices[day]
	if !ok {
		return domain.Transaction{}, fmt.Errorf("no ETH price for %s", day)
	}

	name, err := c.catalog.NameBySKU(rec.SKU)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("crypto transaction %s: %w", rec.TransactionID, err)
	}

	usd := open * rec.Total

	return domain.Transaction{
		TransactionID: domain.HashID(rec.TransactionID),
		CreatedAt:     rec.CreatedAt,
		Location:      rec.Location,
		SKU:           rec.SKU,
		Source:        domain.SourceCrypto,
		PaymentMethod: rec.PaymentMethod,
		UnitPrice:     domain.Round2(usd / (1 + refdata.TaxRate) / float64(rec.Quantity)),
		Quantity:      rec.Quantity,
		Tax:           domain.Round2(usd * refdata.TaxRate),
		Total:         domain.Round2(usd),
		ProductName:   name,
	}, nil
}

// createdAtRange returns the earliest and latest sale times in the ledger.
func createdAtRange(records []domain.RawCryptoRecord) (time.Time, time.Time) {
	from, to := records[0].CreatedAt, records[0].CreatedAt
	for _, rec := range records[1:] {
		if rec.CreatedAt.Before(from) {
			from = rec.CreatedAt
		}
		if rec.CreatedAt.After(to) {
			to = rec.CreatedAt
		}
	}
	return from, to
}
