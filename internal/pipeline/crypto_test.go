package pipeline_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/retail-sales-etl/internal/domain"
	"github.com/couchcryptid/retail-sales-etl/internal/pipeline"
	"github.com/couchcryptid/retail-sales-etl/internal/refdata"
)

func cryptoRecord() domain.RawCryptoRecord {
	return domain.RawCryptoRecord{
		TransactionID: "crypto-0001",
		CreatedAt:     time.Date(2023, 1, 15, 9, 30, 0, 0, time.UTC),
		Location:      "online",
		SKU:           24625356,
		PaymentMethod: "crypto",
		Quantity:      3,
		Total:         0.01255,
	}
}

func cryptoChannel(source pipeline.CryptoSource, prices pipeline.PriceSource) *pipeline.CryptoChannel {
	return pipeline.NewCryptoChannel(source, prices, refdata.DefaultCatalog(), slog.Default())
}

func TestCryptoChannel_Process(t *testing.T) {
	late := cryptoRecord()
	late.TransactionID = "crypto-0002"
	late.CreatedAt = time.Date(2023, 1, 16, 8, 0, 0, 0, time.UTC)

	source := &mockCryptoSource{records: []domain.RawCryptoRecord{late, cryptoRecord()}}
	prices := &mockPriceSource{prices: map[string]float64{
		"2023-01-15": 1550.0,
		"2023-01-16": 1600.0,
	}}
	ch := cryptoChannel(source, prices)

	txns, stats, err := ch.Process(context.Background())
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, 2, stats.Extracted)

	// One price fetch spans the ledger regardless of row order.
	assert.Equal(t, 1, prices.calls)
	assert.Equal(t, time.Date(2023, 1, 15, 9, 30, 0, 0, time.UTC), prices.from)
	assert.Equal(t, time.Date(2023, 1, 16, 8, 0, 0, 0, time.UTC), prices.to)

	txn := txns[1]
	assert.Equal(t, domain.HashID("crypto-0001"), txn.TransactionID)
	assert.Equal(t, time.Date(2023, 1, 15, 9, 30, 0, 0, time.UTC), txn.CreatedAt)
	assert.Equal(t, "online", txn.Location)
	assert.Equal(t, int64(24625356), txn.SKU)
	assert.Equal(t, domain.SourceCrypto, txn.Source)
	assert.Equal(t, "crypto", txn.PaymentMethod)
	assert.Equal(t, int64(3), txn.Quantity)
	assert.Equal(t, "strawberries", txn.ProductName)

	// 0.01255 ETH at 1550 USD opens to 19.4525 USD gross.
	assert.Equal(t, 19.45, txn.Total)
	assert.Equal(t, 0.97, txn.Tax)
	assert.Equal(t, 6.18, txn.UnitPrice)
}

func TestCryptoChannel_EmptyLedger(t *testing.T) {
	prices := &mockPriceSource{}
	ch := cryptoChannel(&mockCryptoSource{}, prices)

	txns, stats, err := ch.Process(context.Background())
	require.NoError(t, err)
	assert.Empty(t, txns)
	assert.Equal(t, 0, stats.Extracted)
	assert.Equal(t, 0, prices.calls)
}

func TestCryptoChannel_MissingDayAborts(t *testing.T) {
	source := &mockCryptoSource{records: []domain.RawCryptoRecord{cryptoRecord()}}
	prices := &mockPriceSource{prices: map[string]float64{"2023-01-14": 1500.0}}
	ch := cryptoChannel(source, prices)

	_, _, err := ch.Process(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no ETH price for 2023-01-15")
}

func TestCryptoChannel_UnknownSKUAborts(t *testing.T) {
	rec := cryptoRecord()
	rec.SKU = 42
	source := &mockCryptoSource{records: []domain.RawCryptoRecord{rec}}
	prices := &mockPriceSource{prices: map[string]float64{"2023-01-15": 1550.0}}
	ch := cryptoChannel(source, prices)

	_, _, err := ch.Process(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "crypto transaction crypto-0001")
	assert.ErrorIs(t, err, refdata.ErrUnknownKey)
}

func TestCryptoChannel_PriceFetchFailure(t *testing.T) {
	source := &mockCryptoSource{records: []domain.RawCryptoRecord{cryptoRecord()}}
	prices := &mockPriceSource{err: errors.New("chart: Too Many Requests")}
	ch := cryptoChannel(source, prices)

	_, _, err := ch.Process(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch ETH prices")
}

func TestCryptoChannel_FetchFailure(t *testing.T) {
	source := &mockCryptoSource{err: errors.New("relation does not exist")}
	ch := cryptoChannel(source, &mockPriceSource{})

	_, _, err := ch.Process(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch crypto data")
}
