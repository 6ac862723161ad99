package process

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/filmledger/filmledger/internal/platform/httpx"
	"github.com/filmledger/filmledger/internal/stock"
)

// Handler wires HTTP endpoints for the process module.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs process handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers process routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Post("/", h.handleStart)
	r.Post("/{id}/complete", h.handleComplete)
}

type startRequest struct {
	FilmType      string    `json:"film_type" validate:"required,oneof=virgin colored"`
	InputQuantity float64   `json:"input_quantity" validate:"required,gt=0"`
	StartDate     time.Time `json:"start_date"`
	ExpectedDays  int       `json:"expected_days" validate:"gte=0,lte=365"`
	Outsourced    bool      `json:"outsourced"`
	Partner       string    `json:"partner" validate:"required_if=Outsourced true,max=200"`
}

type completeRequest struct {
	OutputQuantity float64   `json:"output_quantity" validate:"required,gt=0"`
	EndDate        time.Time `json:"end_date"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	processes, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list cycles", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, processes)
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	p, err := h.service.Start(r.Context(), StartInput{
		FilmType:      stock.Variant(req.FilmType),
		InputQuantity: req.InputQuantity,
		StartDate:     req.StartDate,
		ExpectedDays:  req.ExpectedDays,
		Outsourced:    req.Outsourced,
		Partner:       req.Partner,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) handleComplete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid cycle id")
		return
	}
	var req completeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	p, err := h.service.Complete(r.Context(), CompleteInput{ID: id, OutputQuantity: req.OutputQuantity, EndDate: req.EndDate})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var insufficient *stock.InsufficientStockError
	switch {
	case errors.As(err, &insufficient):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Insufficient Stock", insufficient.Error())
	case errors.Is(err, ErrProcessNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrNotProcessing):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrPartnerRequired),
		errors.Is(err, stock.ErrInvalidQuantity),
		errors.Is(err, stock.ErrUnknownVariant):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("process operation failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
