package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/retail-sales-etl/internal/domain"
	"github.com/couchcryptid/retail-sales-etl/internal/refdata"
)

// POSChannel turns staged point-of-sale rows into canonical transactions.
// POS rows arrive already priced and taxed; the transform hashes the source
// ID and attaches the product name.
type POSChannel struct {
	source  POSSource
	catalog *refdata.Catalog
	logger  *slog.Logger
}

// NewPOSChannel creates the POS channel over the staged register rows.
func NewPOSChannel(source POSSource, catalog *refdata.Catalog, logger *slog.Logger) *POSChannel {
	return &POSChannel{
		source:  source,
		catalog: catalog,
		logger:  logger,
	}
}

func (c *POSChannel) Name() string {
	return "pos"
}

func (c *POSChannel) Process(ctx context.Context) ([]domain.Transaction, Stats, error) {
	records, err := c.source.POSTransactions(ctx)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("fetch pos data: %w", err)
	}

	txns := make([]domain.Transaction, 0, len(records))
	for _, rec := range records {
		name, err := c.catalog.NameBySKU(rec.SKU)
		if err != nil {
			return nil, Stats{}, fmt.Errorf("pos transaction %s: %w", rec.TransactionID, err)
		}

		txns = append(txns, domain.Transaction{
			TransactionID: domain.HashID(rec.TransactionID),
			CreatedAt:     rec.CreatedAt,
			Location:      rec.Location,
			SKU:           rec.SKU,
			Source:        domain.SourcePOS,
			PaymentMethod: rec.PaymentMethod,
			UnitPrice:     rec.UnitPrice,
			Quantity:      rec.Quantity,
			Tax:           rec.Tax,
			Total:         rec.Total,
			ProductName:   name,
		})
	}

	c.logger.Info("transformed transactions", "count", len(txns))
	return txns, Stats{Extracted: len(records)}, nil
}
