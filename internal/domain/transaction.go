package domain

import (
	"math"
	"time"
)

// Source tags, one per sales channel. Stored on every canonical row so
// downstream queries can tell the channels apart.
const (
	SourceMarket = "market"
	SourceOnline = "online"
	SourceCrypto = "crypto_sale"
	SourcePOS    = "POS"
)

// RawMarketRecord is one row of a market stall spreadsheet, untouched.
// Location, Date, and Employee repeat the filename parts; SourceFile is the
// filename stem ("<location>__<date>__<employee>") the row came from, used to
// key the run report.
type RawMarketRecord struct {
	SourceFile string
	Location   string
	Date       string
	Employee   string
	SaleNumber int64
	Product    string
	UnitPrice  float64
	Quantity   int64
	SoldAt     string
}

// RawOnlineRecord is one staged row from the online channel: the unparsed
// Stripe payload as collected.
type RawOnlineRecord struct {
	StripeData string
}

// RawCryptoRecord is one staged row from the crypto ledger. Total is
// denominated in ETH until the transform converts it to USD.
type RawCryptoRecord struct {
	TransactionID string
	CreatedAt     time.Time
	Location      string
	SKU           int64
	PaymentMethod string
	Quantity      int64
	Total         float64
}

// RawPOSRecord is one staged row from a point-of-sale terminal. POS rows
// arrive already priced and taxed; the transform only rewrites identity and
// enriches the product name.
type RawPOSRecord struct {
	TransactionID string
	CreatedAt     time.Time
	Location      string
	SKU           int64
	PaymentMethod string
	UnitPrice     float64
	Quantity      int64
	Tax           float64
	Total         float64
}

// AdditionalData carries channel-specific enrichment stored as JSONB next to
// the fixed columns. Only market rows populate it today.
type AdditionalData struct {
	Employee    string  `json:"employee"`
	Temperature float64 `json:"temperature"`
	WeatherType string  `json:"weather_type"`
}

// Transaction is one canonical reconciled sale, the unit every channel
// transform produces and the transactions table stores.
type Transaction struct {
	TransactionID  string
	CreatedAt      time.Time
	Location       string
	SKU            int64
	Source         string
	PaymentMethod  string
	UnitPrice      float64
	Quantity       int64
	Tax            float64
	Total          float64
	ProductName    string
	AdditionalData *AdditionalData
}

// Round2 rounds a money amount to two decimal places, the fixed rounding
// policy for tax and total columns.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
