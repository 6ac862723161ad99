package process

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/filmledger/filmledger/internal/stock"
)

// Status tracks the lifecycle of a recycling cycle.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
)

// Yield rate conventions per film type, informational only.
const (
	YieldRateVirgin  = 95.0
	YieldRateColored = 92.0
)

// RecyclingProcess models one recycling or outsourcing cycle. Input quantity
// is drawn from raw material when the cycle starts; the output side is
// informational until completion.
type RecyclingProcess struct {
	ID                 uuid.UUID     `json:"id"`
	CycleNumber        string        `json:"cycleNumber"`
	FilmType           stock.Variant `json:"filmType"`
	InputQuantity      float64       `json:"inputQuantity"`
	OutputQuantity     *float64      `json:"outputQuantity,omitempty"`
	Status             Status        `json:"status"`
	Outsourced         bool          `json:"outsourced"`
	OutsourcingPartner string        `json:"outsourcingPartner,omitempty"`
	StartDate          time.Time     `json:"startDate"`
	EndDate            *time.Time    `json:"endDate,omitempty"`
	ExpectedCompletion time.Time     `json:"expectedCompletion"`
	YieldRate          float64       `json:"yieldRate"`
	Source             string        `json:"source"`
	CreatedAt          time.Time     `json:"createdAt"`
}

// StartInput describes a cycle start request.
type StartInput struct {
	FilmType      stock.Variant
	InputQuantity float64
	StartDate     time.Time
	ExpectedDays  int
	Outsourced    bool
	Partner       string
}

// CompleteInput closes a processing cycle.
type CompleteInput struct {
	ID             uuid.UUID
	OutputQuantity float64
	EndDate        time.Time
}

// ErrPartnerRequired indicates an outsourced cycle without a partner name.
var ErrPartnerRequired = errors.New("process: outsourcing partner required")

// ErrNotProcessing indicates a completion on a cycle that is not processing.
var ErrNotProcessing = errors.New("process: cycle is not processing")

// ErrProcessNotFound indicates an unknown cycle id.
var ErrProcessNotFound = errors.New("process: cycle not found")

// YieldRateFor returns the conventional yield rate for a film type.
func YieldRateFor(v stock.Variant) float64 {
	if v == stock.VariantColored {
		return YieldRateColored
	}
	return YieldRateVirgin
}
