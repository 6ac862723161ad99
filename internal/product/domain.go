package product

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/filmledger/filmledger/internal/stock"
)

// Default catalog prices in FCFA per kilogram, used until an admin sets one.
const (
	DefaultPriceVirgin  = 1500.0
	DefaultPriceColored = 1200.0
)

// Product is a sellable batch of finished film created from a cycle's output.
type Product struct {
	ID         uuid.UUID     `json:"id"`
	Name       string        `json:"name"`
	FilmType   stock.Variant `json:"filmType"`
	Quantity   float64       `json:"quantity"`
	PricePerKg float64       `json:"pricePerKg"`
	ProcessID  string        `json:"processId,omitempty"`
	Source     stock.Pool    `json:"source"`
	CreatedAt  time.Time     `json:"createdAt"`
}

// CatalogProduct is the per-variant price reference the sale flow and new
// batches read their unit price from.
type CatalogProduct struct {
	Name       string        `json:"name"`
	FilmType   stock.Variant `json:"filmType"`
	PricePerKg float64       `json:"pricePerKg"`
	UpdatedAt  time.Time     `json:"updatedAt"`
}

// PriceChange records one catalog price update.
type PriceChange struct {
	ID        int64         `json:"id"`
	FilmType  stock.Variant `json:"filmType"`
	OldValue  float64       `json:"oldValue"`
	NewValue  float64       `json:"newValue"`
	ChangedAt time.Time     `json:"timestamp"`
}

// CreateInput describes a batch creation request. A nil PricePerKg means
// "price from the catalog"; an explicit zero is a valid override.
type CreateInput struct {
	FilmType   stock.Variant
	Quantity   float64
	Source     stock.Pool
	ProcessID  string
	PricePerKg *float64
}

// ErrProductNotFound indicates an unknown batch id.
var ErrProductNotFound = errors.New("product: not found")

// ErrInvalidSource indicates a batch sourced from a pool that is not a
// processing stage.
var ErrInvalidSource = errors.New("product: source must be inProcess or outsourcing")

// ErrInvalidPrice indicates a negative price.
var ErrInvalidPrice = errors.New("product: price must not be negative")

// BatchNameFor returns the display name given to finished batches.
func BatchNameFor(v stock.Variant) string {
	if v == stock.VariantColored {
		return "Colored Films"
	}
	return "Virgin Films"
}

// CatalogNameFor returns the catalog entry name for a variant.
func CatalogNameFor(v stock.Variant) string {
	if v == stock.VariantColored {
		return "Colored Film"
	}
	return "Virgin Film"
}

// DefaultPriceFor returns the fallback price for a variant.
func DefaultPriceFor(v stock.Variant) float64 {
	if v == stock.VariantColored {
		return DefaultPriceColored
	}
	return DefaultPriceVirgin
}
