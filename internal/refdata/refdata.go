// Package refdata holds the fixed reference data the reconciliation runs
// against: the product catalog, the canonical categorical values used to
// repair market spreadsheets, and the tax policy. The values here are business
// policy, not configuration — changing them is a code change.
package refdata

import (
	"errors"
	"fmt"
)

// TaxRate is the flat sales tax applied across all channels.
const TaxRate = 0.05

// Canonical categorical values for market spreadsheet repair.
var (
	Locations = []string{"Bangor, ME", "Concord, NH", "Portland, ME", "Portsmouth, NH"}
	Employees = []string{"james", "sarah", "carmen", "peter"}

	PaymentMethods = []string{"cash", "credit", "debit"}
)

// ErrUnknownKey is returned by catalog lookups for keys outside the reference
// data. Lookups are strict on purpose: an unknown SKU or product name means
// the reference data and the source data have drifted apart, which needs an
// operator, not a silent default.
var ErrUnknownKey = errors.New("unknown reference key")

// Product is one catalog entry.
type Product struct {
	SKU       int64
	Name      string
	UnitPrice float64
}

// defaultProducts is the built-in catalog, mirrored by the products table in
// Postgres.
var defaultProducts = []Product{
	{SKU: 24625356, Name: "strawberries", UnitPrice: 6.99},
	{SKU: 98320088, Name: "blueberries", UnitPrice: 8.99},
	{SKU: 83846512, Name: "blackberries", UnitPrice: 4.99},
	{SKU: 98623454, Name: "blackcurrants", UnitPrice: 3.49},
	{SKU: 87245676, Name: "salmonberries", UnitPrice: 10.99},
	{SKU: 12635273, Name: "raspberries", UnitPrice: 10.49},
}

// Catalog provides strict lookups over the product reference table.
type Catalog struct {
	products []Product
	byName   map[string]Product
	bySKU    map[int64]Product
}

// NewCatalog builds lookup indexes over the given products.
func NewCatalog(products []Product) *Catalog {
	c := &Catalog{
		products: products,
		byName:   make(map[string]Product, len(products)),
		bySKU:    make(map[int64]Product, len(products)),
	}
	for _, p := range products {
		c.byName[p.Name] = p
		c.bySKU[p.SKU] = p
	}
	return c
}

// DefaultCatalog returns a catalog over the built-in product set.
func DefaultCatalog() *Catalog {
	return NewCatalog(defaultProducts)
}

// Products returns the catalog entries in their defined order.
func (c *Catalog) Products() []Product {
	return c.products
}

// Names returns all product names in catalog order. Used as the allowed-value
// set when repairing the product column of market spreadsheets.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.products))
	for i, p := range c.products {
		names[i] = p.Name
	}
	return names
}

// SKUByName resolves a product name to its SKU.
func (c *Catalog) SKUByName(name string) (int64, error) {
	p, ok := c.byName[name]
	if !ok {
		return 0, fmt.Errorf("product name %q: %w", name, ErrUnknownKey)
	}
	return p.SKU, nil
}

// NameBySKU resolves a SKU to its product name.
func (c *Catalog) NameBySKU(sku int64) (string, error) {
	p, ok := c.bySKU[sku]
	if !ok {
		return "", fmt.Errorf("sku %d: %w", sku, ErrUnknownKey)
	}
	return p.Name, nil
}

// PriceByName resolves a product name to its unit price.
func (c *Catalog) PriceByName(name string) (float64, error) {
	p, ok := c.byName[name]
	if !ok {
		return 0, fmt.Errorf("product name %q: %w", name, ErrUnknownKey)
	}
	return p.UnitPrice, nil
}
