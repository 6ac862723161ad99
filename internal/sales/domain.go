package sales

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/filmledger/filmledger/internal/stock"
)

// Sale is one ledger entry for a quantity of finished film sold.
type Sale struct {
	ID           uuid.UUID     `json:"id"`
	ProductID    *uuid.UUID    `json:"productId,omitempty"`
	ProductName  string        `json:"productName"`
	FilmType     stock.Variant `json:"filmType"`
	Quantity     float64       `json:"quantity"`
	UnitPrice    float64       `json:"unitPrice"`
	TotalAmount  float64       `json:"totalAmount"`
	CustomerName string        `json:"customerName,omitempty"`
	SaleDate     time.Time     `json:"saleDate"`
	CashInflowID string        `json:"cashInflowId,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
}

// RecordInput describes a sale. Either ProductID selects a specific batch, or
// FilmType alone sells against the catalog entry for that variant. A nil
// UnitPrice means "use the batch/catalog price"; an explicit zero is a valid
// override.
type RecordInput struct {
	ProductID    *uuid.UUID
	FilmType     stock.Variant
	Quantity     float64
	UnitPrice    *float64
	CustomerName string
	SaleDate     time.Time
}

// ErrProductRequired indicates a sale naming neither a batch nor a film type.
var ErrProductRequired = errors.New("sales: product id or film type required")

// ErrInvalidPrice indicates a negative unit price override.
var ErrInvalidPrice = errors.New("sales: unit price must not be negative")
