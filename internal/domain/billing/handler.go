package billing

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medcore/hims/internal/domain/episode"
	"github.com/medcore/hims/internal/platform/money"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/episodes/:kind/:id/billing/items", h.AddItem)
	api.POST("/episodes/:kind/:id/billing/items/:itemId/cancel", h.CancelItem)
	api.POST("/episodes/:kind/:id/payments", h.CollectPayment)
	api.GET("/episodes/:kind/:id/ledger", h.GetLedger)
	api.GET("/episodes/:kind/:id/ledger/summary", h.GetSummary)
	api.POST("/episodes/:kind/:id/ledger/refresh", h.Refresh)
}

type addItemRequest struct {
	PatientID   uuid.UUID     `json:"patient_id"`
	Department  string        `json:"department"`
	ItemType    string        `json:"item_type"`
	Description string        `json:"description"`
	Quantity    int           `json:"quantity"`
	UnitPrice   money.Amount  `json:"unit_price"`
	Amount      *money.Amount `json:"amount,omitempty"`
}

func (h *Handler) AddItem(c echo.Context) error {
	kind, id, err := pathRef(c)
	if err != nil {
		return err
	}
	var req addItemRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	item, err := h.svc.AddItem(c.Request().Context(), kind, id, AddItemInput{
		PatientID:   req.PatientID,
		Department:  Department(req.Department),
		ItemType:    ItemType(req.ItemType),
		Description: req.Description,
		Quantity:    req.Quantity,
		UnitPrice:   req.UnitPrice,
		Amount:      req.Amount,
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, item)
}

func (h *Handler) CancelItem(c echo.Context) error {
	kind, id, err := pathRef(c)
	if err != nil {
		return err
	}
	itemID, err := uuid.Parse(c.Param("itemId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid item id")
	}
	item, err := h.svc.CancelItem(c.Request().Context(), kind, id, itemID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, item)
}

type collectPaymentRequest struct {
	PatientID      uuid.UUID    `json:"patient_id"`
	Amount         money.Amount `json:"amount"`
	Mode           string       `json:"mode"`
	Status         string       `json:"payment_status,omitempty"`
	TransactionRef *string      `json:"transaction_ref,omitempty"`
}

func (h *Handler) CollectPayment(c echo.Context) error {
	kind, id, err := pathRef(c)
	if err != nil {
		return err
	}
	var req collectPaymentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.CollectPayment(c.Request().Context(), kind, id, CollectPaymentInput{
		PatientID:      req.PatientID,
		Amount:         req.Amount,
		Mode:           PaymentMode(req.Mode),
		Status:         PaymentStatus(req.Status),
		TransactionRef: req.TransactionRef,
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetLedger(c echo.Context) error {
	kind, id, err := pathRef(c)
	if err != nil {
		return err
	}
	ledger, err := h.svc.GetLedger(c.Request().Context(), kind, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, ledger)
}

func (h *Handler) GetSummary(c echo.Context) error {
	kind, id, err := pathRef(c)
	if err != nil {
		return err
	}
	summary, err := h.svc.Summary(c.Request().Context(), kind, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, summary)
}

func (h *Handler) Refresh(c echo.Context) error {
	kind, id, err := pathRef(c)
	if err != nil {
		return err
	}
	summary, err := h.svc.RefreshStatuses(c.Request().Context(), kind, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, summary)
}

func pathRef(c echo.Context) (episode.Kind, uuid.UUID, error) {
	kind, err := episode.ParseKind(strings.ToLower(c.Param("kind")))
	if err != nil {
		return "", uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return "", uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return kind, id, nil
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrNotFound), errors.Is(err, episode.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, episode.ErrInvalidKind), errors.Is(err, episode.ErrPatientMismatch):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, episode.ErrEpisodeClosed):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
