package episode

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/episodes", h.Register)
	api.GET("/episodes/:kind/:id", h.Get)
	api.POST("/episodes/:kind/:id/status", h.SetStatus)
	api.GET("/patients/:patientId/episodes", h.ListByPatient)
}

type registerRequest struct {
	Kind      string    `json:"kind"`
	PatientID uuid.UUID `json:"patient_id"`
}

func (h *Handler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	kind, err := ParseKind(req.Kind)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	e, err := h.svc.Register(c.Request().Context(), kind, req.PatientID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, e)
}

func (h *Handler) Get(c echo.Context) error {
	kind, id, err := pathRef(c)
	if err != nil {
		return err
	}
	e, err := h.svc.Get(c.Request().Context(), kind, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, e)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) SetStatus(c echo.Context) error {
	kind, id, err := pathRef(c)
	if err != nil {
		return err
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	// Completed and discharged are reached through the closure and
	// discharge endpoints, which check dues and clearances first.
	if GateControlled(req.Status) {
		return httpError(ErrGatedStatus)
	}
	e, err := h.svc.SetStatus(c.Request().Context(), kind, id, req.Status)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) ListByPatient(c echo.Context) error {
	pid, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	items, total, err := h.svc.ListByPatient(c.Request().Context(), pid, 50, 0)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"items": items, "total": total})
}

func pathRef(c echo.Context) (Kind, uuid.UUID, error) {
	kind, err := ParseKind(strings.ToLower(c.Param("kind")))
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
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidKind), errors.Is(err, ErrPatientMismatch):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrEpisodeClosed), errors.Is(err, ErrGatedStatus):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
