package server

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/seoforge/seoforge/internal/store"
	"github.com/seoforge/seoforge/models"
)

type SettingsHandler struct {
	Store *store.Store
}

func (h *SettingsHandler) Register(g *echo.Group, mw echo.MiddlewareFunc) {
	g.Use(mw)
	g.GET("", h.get)
	g.PUT("", h.update)
}

// get returns the user's settings, or the zero defaults when none were
// saved yet.
func (h *SettingsHandler) get(c echo.Context) error {
	userID := c.Get("user_id").(string)
	settings, err := h.Store.GetSettings(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, settings)
}

func (h *SettingsHandler) update(c echo.Context) error {
	userID := c.Get("user_id").(string)
	var req UpdateSettingsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	settings, err := h.Store.UpsertSettings(c.Request().Context(), models.Settings{
		UserID:               userID,
		Name:                 strings.TrimSpace(req.Name),
		BrandName:            strings.TrimSpace(req.BrandName),
		BrandURL:             strings.TrimSpace(req.BrandURL),
		BriefPromptOverride:  strings.TrimSpace(req.BriefPromptOverride),
		WriterPromptOverride: strings.TrimSpace(req.WriterPromptOverride),
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, settings)
}
