package stock

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/filmledger/filmledger/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the stock ledger.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs stock handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers stock routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleSnapshot)
	r.Get("/movements", h.handleMovements)
	r.Post("/moves", h.handleMove)
	r.Get("/{pool}/history", h.handleHistory)
	r.Post("/{pool}/adjustments", h.handleAdjust)
}

type moveRequest struct {
	From        string  `json:"from" validate:"required,oneof=rawMaterial inProcess outsourcing finished"`
	To          string  `json:"to" validate:"required,oneof=rawMaterial inProcess outsourcing finished"`
	FilmType    string  `json:"film_type" validate:"required,oneof=virgin colored"`
	Quantity    float64 `json:"quantity" validate:"required,gt=0"`
	Description string  `json:"description" validate:"max=500"`
}

type adjustRequest struct {
	FilmType    string  `json:"film_type" validate:"required,oneof=virgin colored"`
	Added       float64 `json:"added" validate:"gte=0"`
	Description string  `json:"description" validate:"max=500"`
}

func (h *Handler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Snapshot(r.Context())
	if err != nil {
		h.logger.Error("load stock snapshot", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, snap)
}

func (h *Handler) handleMovements(w http.ResponseWriter, r *http.Request) {
	movements, err := h.service.Movements(r.Context(), queryLimit(r))
	if err != nil {
		h.logger.Error("list movements", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, movements)
}

func (h *Handler) handleMove(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	mv, err := h.service.Move(r.Context(), MoveInput{
		From:     Pool(req.From),
		To:       Pool(req.To),
		Variant:  Variant(req.FilmType),
		Quantity: req.Quantity,
		Ref:      MovementRef{Description: req.Description},
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, mv)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	pool, err := ParsePool(chi.URLParam(r, "pool"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	entries, err := h.service.History(r.Context(), pool, queryLimit(r))
	if err != nil {
		h.logger.Error("list stock history", slog.Any("error", err), slog.String("pool", string(pool)))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *Handler) handleAdjust(w http.ResponseWriter, r *http.Request) {
	pool, err := ParsePool(chi.URLParam(r, "pool"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	var req adjustRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	entry, err := h.service.Adjust(r.Context(), AdjustInput{
		Pool:    pool,
		Variant: Variant(req.FilmType),
		Added:   req.Added,
		Ref:     MovementRef{Description: req.Description},
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var insufficient *InsufficientStockError
	switch {
	case errors.As(err, &insufficient):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Insufficient Stock", insufficient.Error())
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrUnknownPool), errors.Is(err, ErrUnknownVariant), errors.Is(err, ErrSamePool):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("stock operation failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func queryLimit(r *http.Request) int {
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
	}
	return 0
}
