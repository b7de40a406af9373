package handler

import (
	"errors"
	"io"
	"net/http"

	"membership-sync/internal/service"

	"github.com/labstack/echo/v4"
)

type HookHandler struct {
	hookService service.HookService
}

func NewHookHandler(hookService service.HookService) *HookHandler {
	return &HookHandler{
		hookService: hookService,
	}
}

func (h *HookHandler) Receive(c echo.Context) error {
	ctx := c.Request().Context()

	eventType := c.Param("event")
	eventID := c.Request().Header.Get("X-Event-Id")

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	resp, err := h.hookService.Handle(ctx, eventType, eventID, body)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, resp)
	case errors.Is(err, service.ErrUnknownEvent), errors.Is(err, service.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidPayload):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		// the host redelivers on 5xx
		return echo.NewHTTPError(http.StatusInternalServerError, "event not processed")
	}
}
