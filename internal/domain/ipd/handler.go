package ipd

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medcore/hims/internal/domain/episode"
	"github.com/medcore/hims/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the discharge gate. The override route is fenced at
// the router as well; the service re-checks the role so a misconfigured
// route cannot widen access.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/ipd/admissions/:id/discharge", h.Evaluate)
	api.PATCH("/ipd/admissions/:id/discharge/clearances", h.UpdateClearances)
	api.POST("/ipd/admissions/:id/discharge/override",
		h.ApproveOverride, auth.RequireRole(auth.RoleAdmin, auth.RoleAccountant))
}

func (h *Handler) Evaluate(c echo.Context) error {
	id, err := admissionID(c)
	if err != nil {
		return err
	}
	ev, err := h.svc.Evaluate(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, ev)
}

func (h *Handler) UpdateClearances(c echo.Context) error {
	id, err := admissionID(c)
	if err != nil {
		return err
	}
	var upd ClearanceUpdate
	if err := c.Bind(&upd); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ev, err := h.svc.UpdateClearances(c.Request().Context(), id, upd)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, ev)
}

func (h *Handler) ApproveOverride(c echo.Context) error {
	id, err := admissionID(c)
	if err != nil {
		return err
	}
	var req OverrideRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ev, err := h.svc.ApproveOverride(c.Request().Context(), id, req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, ev)
}

func admissionID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid admission id")
	}
	return id, nil
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrReasonRequired):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrNotFound), errors.Is(err, episode.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, episode.ErrEpisodeClosed):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
