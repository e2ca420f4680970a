package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/couchcryptid/retail-sales-etl/internal/domain"
	"github.com/couchcryptid/retail-sales-etl/internal/refdata"
)

// stripePayload is the slice of a Stripe charge object the pipeline
// consumes. Amounts are gross, tax included.
type stripePayload struct {
	ID          string  `json:"id"`
	Object      string  `json:"object"`
	Amount      float64 `json:"amount"`
	Created     int64   `json:"created"`
	Description string  `json:"description"`
}

// OnlineChannel turns staged Stripe payloads into canonical transactions.
// Rows without a payload are skipped; a payload that fails to decode or
// names an unknown product aborts the run, since that means the feed itself
// is broken.
type OnlineChannel struct {
	source  OnlineSource
	catalog *refdata.Catalog
	logger  *slog.Logger
}

// NewOnlineChannel creates the online channel over the staged Stripe rows.
func NewOnlineChannel(source OnlineSource, catalog *refdata.Catalog, logger *slog.Logger) *OnlineChannel {
	return &OnlineChannel{
		source:  source,
		catalog: catalog,
		logger:  logger,
	}
}

func (c *OnlineChannel) Name() string {
	return "online"
}

func (c *OnlineChannel) Process(ctx context.Context) ([]domain.Transaction, Stats, error) {
	records, err := c.source.OnlineTransactions(ctx)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("fetch online data: %w", err)
	}

	var rejected int
	txns := make([]domain.Transaction, 0, len(records))
	for i, rec := range records {
		if rec.StripeData == "" {
			c.logger.Warn("skipping online transaction without stripe data", "row", i+1)
			rejected++
			continue
		}

		var payload stripePayload
		if err := json.Unmarshal([]byte(rec.StripeData), &payload); err != nil {
			return nil, Stats{}, fmt.Errorf("decode stripe data: %w", err)
		}

		txn, err := c.transformPayload(payload)
		if err != nil {
			return nil, Stats{}, err
		}
		txns = append(txns, txn)
	}

	c.logger.Info("transformed transactions", "count", len(txns))
	return txns, Stats{Extracted: len(records), Rejected: rejected}, nil
}

// transformPayload derives the canonical fields from a charge. The charged
// amount is gross; the net amount implies the quantity at the catalog unit
// price, truncated since partial bundles are not sold.
func (c *OnlineChannel) transformPayload(p stripePayload) (domain.Transaction, error) {
	unitPrice, err := c.catalog.PriceByName(p.Description)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("online transaction %s: %w", p.ID, err)
	}
	sku, err := c.catalog.SKUByName(p.Description)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("online transaction %s: %w", p.ID, err)
	}

	net := p.Amount / (1 + refdata.TaxRate)

	return domain.Transaction{
		TransactionID: domain.HashID(p.ID),
		CreatedAt:     time.Unix(p.Created, 0).UTC(),
		Location:      "online",
		SKU:           sku,
		Source:        domain.SourceOnline,
		PaymentMethod: strings.TrimPrefix(p.Object, "treasury.received_"),
		UnitPrice:     unitPrice,
		Quantity:      int64(net / unitPrice),
		Tax:           domain.Round2(p.Amount * refdata.TaxRate),
		Total:         p.Amount,
		ProductName:   p.Description,
	}, nil
}
