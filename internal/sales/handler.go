package sales

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/filmledger/filmledger/internal/platform/httpx"
	"github.com/filmledger/filmledger/internal/product"
	"github.com/filmledger/filmledger/internal/stock"
)

// Handler wires HTTP endpoints for the sales module.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs sales handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers sales routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Post("/", h.handleRecord)
}

type recordRequest struct {
	ProductID string  `json:"product_id" validate:"omitempty,uuid"`
	FilmType  string  `json:"film_type" validate:"omitempty,oneof=virgin colored"`
	Quantity  float64 `json:"quantity" validate:"required,gt=0"`
	// Pointer so an explicit zero-price override is distinguishable from
	// "price it from the batch/catalog".
	UnitPrice    *float64  `json:"unit_price" validate:"omitempty,gte=0"`
	CustomerName string    `json:"customer_name" validate:"max=200"`
	SaleDate     time.Time `json:"sale_date"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	sales, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list sales", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, sales)
}

func (h *Handler) handleRecord(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	input := RecordInput{
		FilmType:     stock.Variant(req.FilmType),
		Quantity:     req.Quantity,
		UnitPrice:    req.UnitPrice,
		CustomerName: req.CustomerName,
		SaleDate:     req.SaleDate,
	}
	if req.ProductID != "" {
		id, err := uuid.Parse(req.ProductID)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid product id")
			return
		}
		input.ProductID = &id
	}

	sale, err := h.service.Record(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sale)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var insufficient *stock.InsufficientStockError
	switch {
	case errors.As(err, &insufficient):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Insufficient Stock", insufficient.Error())
	case errors.Is(err, product.ErrProductNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrProductRequired),
		errors.Is(err, ErrInvalidPrice),
		errors.Is(err, stock.ErrInvalidQuantity),
		errors.Is(err, stock.ErrUnknownVariant):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("sale operation failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
