package stock

import (
	"errors"
	"fmt"
	"time"
)

// Pool names one of the four stock stages material flows through.
type Pool string

const (
	// PoolRawMaterial holds film collected but not yet processed.
	PoolRawMaterial Pool = "rawMaterial"
	// PoolInProcess holds film inside an in-house recycling cycle.
	PoolInProcess Pool = "inProcess"
	// PoolOutsourcing holds film handed to an outsourcing partner.
	PoolOutsourcing Pool = "outsourcing"
	// PoolFinished holds sellable finished goods.
	PoolFinished Pool = "finished"
)

// Pools lists every pool in flow order.
var Pools = []Pool{PoolRawMaterial, PoolInProcess, PoolOutsourcing, PoolFinished}

// Valid reports whether the pool is one of the four stages.
func (p Pool) Valid() bool {
	switch p {
	case PoolRawMaterial, PoolInProcess, PoolOutsourcing, PoolFinished:
		return true
	}
	return false
}

// ParsePool converts a raw string into a Pool.
func ParsePool(s string) (Pool, error) {
	p := Pool(s)
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownPool, s)
	}
	return p, nil
}

// Variant is the material subtype tracked within every pool.
type Variant string

const (
	VariantVirgin  Variant = "virgin"
	VariantColored Variant = "colored"
)

// Valid reports whether the variant is known.
func (v Variant) Valid() bool {
	return v == VariantVirgin || v == VariantColored
}

// ParseVariant converts a raw string into a Variant.
func ParseVariant(s string) (Variant, error) {
	v := Variant(s)
	if !v.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownVariant, s)
	}
	return v, nil
}

// Levels holds the current quantity per variant of one pool, in kilograms.
type Levels struct {
	Virgin  float64 `json:"virgin"`
	Colored float64 `json:"colored"`
}

// Get returns the quantity of one variant.
func (l Levels) Get(v Variant) float64 {
	if v == VariantColored {
		return l.Colored
	}
	return l.Virgin
}

// Add returns a copy with delta applied to the given variant.
func (l Levels) Add(v Variant, delta float64) Levels {
	if v == VariantColored {
		l.Colored += delta
	} else {
		l.Virgin += delta
	}
	return l
}

// Snapshot maps every pool to its current levels. Uninitialised pools read as zero.
type Snapshot map[Pool]Levels

// HistoryKind classifies a pool history entry.
type HistoryKind string

const (
	HistoryIncrement HistoryKind = "increment"
	HistoryDecrement HistoryKind = "decrement"
	HistoryUpdate    HistoryKind = "update"
)

// HistoryEntry is the immutable record appended to a pool's history on every
// mutation. Virgin/Colored carry the resulting totals, AddedVirgin/AddedColored
// the signed delta of the mutation.
type HistoryEntry struct {
	ID           int64       `json:"id"`
	Pool         Pool        `json:"pool"`
	Virgin       float64     `json:"virgin"`
	Colored      float64     `json:"colored"`
	AddedVirgin  float64     `json:"addedVirgin"`
	AddedColored float64     `json:"addedColored"`
	Kind         HistoryKind `json:"kind"`
	RecordedAt   time.Time   `json:"recordedAt"`
}

// MovementKind classifies a movement journal record.
type MovementKind string

const (
	MovementInput    MovementKind = "input"
	MovementOutput   MovementKind = "output"
	MovementTransfer MovementKind = "transfer"
)

// Movement is the append-only audit record written alongside every
// stock-affecting operation.
type Movement struct {
	ID          int64        `json:"id"`
	Kind        MovementKind `json:"kind"`
	Quantity    float64      `json:"quantity"`
	Description string       `json:"description"`
	FilmType    Variant      `json:"filmType"`
	FromSection Pool         `json:"fromSection,omitempty"`
	ToSection   Pool         `json:"toSection,omitempty"`
	ProcessID   string       `json:"processId,omitempty"`
	ProductID   string       `json:"productId,omitempty"`
	OccurredAt  time.Time    `json:"date"`
}

// MovementRef carries the caller's reference data into the movement record.
type MovementRef struct {
	Description string
	ProcessID   string
	ProductID   string
}

// ErrInvalidQuantity indicates a non-positive quantity.
var ErrInvalidQuantity = errors.New("stock: quantity must be positive")

// ErrUnknownPool indicates a pool name outside the four stages.
var ErrUnknownPool = errors.New("stock: unknown pool")

// ErrUnknownVariant indicates a film type outside virgin/colored.
var ErrUnknownVariant = errors.New("stock: unknown film type")

// ErrSamePool indicates a move with identical source and destination.
var ErrSamePool = errors.New("stock: source and destination pool must differ")

// ErrInsufficientStock is the sentinel wrapped by InsufficientStockError.
var ErrInsufficientStock = errors.New("stock: insufficient quantity")

// InsufficientStockError reports a requested quantity exceeding the
// authoritative level at commit time. Recoverable and user facing.
type InsufficientStockError struct {
	Pool      Pool
	Variant   Variant
	Available float64
	Requested float64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("stock: insufficient %s in %s: have %.2fkg, need %.2fkg", e.Variant, e.Pool, e.Available, e.Requested)
}

// Unwrap lets callers match with errors.Is(err, ErrInsufficientStock).
func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}
