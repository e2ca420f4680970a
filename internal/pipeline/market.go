package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/retail-sales-etl/internal/domain"
	"github.com/couchcryptid/retail-sales-etl/internal/refdata"
)

// marketDateLayouts are the date formats seen in spreadsheet file names, in
// match order.
var marketDateLayouts = []string{"2006-01-02", "06-01-02", "06 01 02"}

// createdAtLayout combines a normalized date with a sale time.
const createdAtLayout = "2006-01-02 15:04"

// MarketChannel turns farmers market spreadsheets into canonical
// transactions. Rows with unrepairable fields are dropped one by one and
// reported; weather enrichment failures abort the whole run since every row
// of a day needs the same lookup.
type MarketChannel struct {
	source   MarketSource
	catalog  *refdata.Catalog
	geocoder domain.Geocoder
	weather  domain.WeatherClient
	logger   *slog.Logger

	locations []string
	employees []string
}

// NewMarketChannel creates the market channel over a spreadsheet source.
func NewMarketChannel(source MarketSource, catalog *refdata.Catalog, geocoder domain.Geocoder, weather domain.WeatherClient, logger *slog.Logger) *MarketChannel {
	return &MarketChannel{
		source:    source,
		catalog:   catalog,
		geocoder:  geocoder,
		weather:   weather,
		logger:    logger,
		locations: refdata.Locations,
		employees: refdata.Employees,
	}
}

func (c *MarketChannel) Name() string {
	return "market"
}

// Process fetches all market spreadsheets, repairs and validates each row,
// and enriches accepted rows with the day's weather. The enricher is built
// fresh per run so its memo never spans runs.
func (c *MarketChannel) Process(ctx context.Context) ([]domain.Transaction, Stats, error) {
	records, malformed, err := c.source.Fetch(ctx)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("fetch market data: %w", err)
	}

	enricher := domain.NewEnricher(c.geocoder, c.weather, c.logger)
	report := domain.NewReport()

	var rejected int
	txns := make([]domain.Transaction, 0, len(records))
	for _, rec := range records {
		txn, ok, err := c.transformRecord(ctx, rec, enricher, report)
		if err != nil {
			return nil, Stats{}, err
		}
		if !ok {
			rejected++
			continue
		}
		txns = append(txns, txn)
	}

	c.logRejected(report)
	c.logger.Info("transformed transactions", "count", len(txns))

	return txns, Stats{
		Extracted:      len(records),
		Rejected:       rejected,
		MalformedFiles: malformed,
		Report:         report,
	}, nil
}

// transformRecord validates one row. All five repairable fields are checked
// before deciding, so a rejected row reports every problem it has. A false
// second return means the row was registered and skipped.
func (c *MarketChannel) transformRecord(ctx context.Context, rec domain.RawMarketRecord, enricher *domain.Enricher, report *domain.Report) (domain.Transaction, bool, error) {
	var fieldErrs []*domain.FieldError

	location, ferr := domain.RepairCategory("location", rec.Location, c.locations)
	fieldErrs = append(fieldErrs, ferr)
	date, ferr := domain.NormalizeDate(rec.Date, marketDateLayouts)
	fieldErrs = append(fieldErrs, ferr)
	employee, ferr := domain.RepairCategory("employee", rec.Employee, c.employees)
	fieldErrs = append(fieldErrs, ferr)
	product, ferr := domain.RepairCategory("product", rec.Product, c.catalog.Names())
	fieldErrs = append(fieldErrs, ferr)
	soldAt, ferr := domain.NormalizeTime(rec.SoldAt)
	fieldErrs = append(fieldErrs, ferr)

	rejected := false
	for _, fe := range fieldErrs {
		if fe != nil {
			report.Record(rec.SourceFile, rec.SaleNumber, fe.Message)
			rejected = true
		}
	}
	if rejected {
		return domain.Transaction{}, false, nil
	}

	weather, err := enricher.Lookup(ctx, date, location)
	if err != nil {
		return domain.Transaction{}, false, err
	}

	sku, err := c.catalog.SKUByName(product)
	if err != nil {
		return domain.Transaction{}, false, err
	}

	createdAt, err := time.Parse(createdAtLayout, date+" "+soldAt)
	if err != nil {
		return domain.Transaction{}, false, fmt.Errorf("combine date and time: %w", err)
	}

	gross := rec.UnitPrice * float64(rec.Quantity)
	id := fmt.Sprintf("%s%s%s%s%d", domain.SourceMarket, location, employee, rec.Date, rec.SaleNumber)

	return domain.Transaction{
		TransactionID: domain.HashID(id),
		CreatedAt:     createdAt,
		Location:      "market_" + location,
		SKU:           sku,
		Source:        domain.SourceMarket,
		PaymentMethod: "cash",
		UnitPrice:     rec.UnitPrice,
		Quantity:      rec.Quantity,
		Tax:           domain.Round2(gross * refdata.TaxRate),
		Total:         domain.Round2(gross * (1 + refdata.TaxRate)),
		ProductName:   product,
		AdditionalData: &domain.AdditionalData{
			Employee:    employee,
			Temperature: weather.MaxTemperature,
			WeatherType: weather.Category,
		},
	}, true, nil
}

func (c *MarketChannel) logRejected(report *domain.Report) {
	for _, file := range report.Files() {
		for _, e := range report.Entries()[file] {
			c.logger.Warn("rejected market row",
				"file", file, "sale_number", e.SaleNumber, "error", e.Message)
		}
	}
}
