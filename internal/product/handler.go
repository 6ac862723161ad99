package product

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/filmledger/filmledger/internal/platform/httpx"
	"github.com/filmledger/filmledger/internal/stock"
)

// Handler wires HTTP endpoints for the product module.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs product handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers product routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Post("/", h.handleCreate)
	r.Delete("/{id}", h.handleDelete)
	r.Get("/catalog", h.handleCatalog)
	r.Get("/catalog/{filmType}/price", h.handlePrice)
	r.Put("/catalog/{filmType}/price", h.handleSetPrice)
	r.Get("/catalog/price-history", h.handlePriceHistory)
}

type createRequest struct {
	FilmType   string   `json:"film_type" validate:"required,oneof=virgin colored"`
	Quantity   float64  `json:"quantity" validate:"required,gt=0"`
	Source     string   `json:"source" validate:"omitempty,oneof=inProcess outsourcing"`
	ProcessID  string   `json:"process_id" validate:"omitempty,uuid"`
	PricePerKg *float64 `json:"price_per_kg" validate:"omitempty,gte=0"`
}

type setPriceRequest struct {
	// Pointer so an explicit zero price survives the required check.
	PricePerKg *float64 `json:"price_per_kg" validate:"required,gte=0"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list products", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, products)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	p, err := h.service.Create(r.Context(), CreateInput{
		FilmType:   stock.Variant(req.FilmType),
		Quantity:   req.Quantity,
		Source:     stock.Pool(req.Source),
		ProcessID:  req.ProcessID,
		PricePerKg: req.PricePerKg,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid product id")
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCatalog(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.Catalog(r.Context())
	if err != nil {
		h.logger.Error("list catalog", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *Handler) handlePrice(w http.ResponseWriter, r *http.Request) {
	variant, err := stock.ParseVariant(chi.URLParam(r, "filmType"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	price, err := h.service.PriceFor(r.Context(), variant)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"filmType": variant, "pricePerKg": price})
}

func (h *Handler) handleSetPrice(w http.ResponseWriter, r *http.Request) {
	variant, err := stock.ParseVariant(chi.URLParam(r, "filmType"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	var req setPriceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	entry, err := h.service.SetPrice(r.Context(), variant, *req.PricePerKg)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) handlePriceHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}
	changes, err := h.service.PriceHistory(r.Context(), limit)
	if err != nil {
		h.logger.Error("list price history", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, changes)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var insufficient *stock.InsufficientStockError
	switch {
	case errors.As(err, &insufficient):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Insufficient Stock", insufficient.Error())
	case errors.Is(err, ErrProductNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidSource),
		errors.Is(err, ErrInvalidPrice),
		errors.Is(err, stock.ErrInvalidQuantity),
		errors.Is(err, stock.ErrUnknownVariant):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("product operation failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
