package server

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/seoforge/seoforge/internal/pipeline"
	"github.com/seoforge/seoforge/internal/store"
	"github.com/seoforge/seoforge/models"
)

type RunsHandler struct {
	Store      *store.Store
	Controller *pipeline.Controller
	Logger     *log.Logger
}

func (h *RunsHandler) Register(g *echo.Group, mw echo.MiddlewareFunc) {
	g.Use(mw)
	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.POST("/:id/cancel", h.cancel)
}

func (h *RunsHandler) create(c echo.Context) error {
	userID := c.Get("user_id").(string)
	var req CreateRunRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	inputs := models.RunInputs{
		SeedURLs:      req.SeedURLs,
		CitationsText: req.CitationsText,
		OverviewText:  req.OverviewText,
		PastedBrief:   req.PastedBrief,
	}
	run, err := h.Controller.CreateRun(c.Request().Context(), userID, req.Query, models.RunMode(req.Mode), inputs)
	if err != nil {
		if errors.Is(err, pipeline.ErrInvalidInput) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	// execution outlives the request
	go h.Controller.Execute(context.Background(), run.ID)
	h.Logger.Printf("run %s started (mode %s) for user %s", run.ID, run.Mode, userID)
	return c.JSON(http.StatusAccepted, run)
}

func (h *RunsHandler) list(c echo.Context) error {
	userID := c.Get("user_id").(string)
	runs, err := h.Store.ListRuns(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if runs == nil {
		runs = []models.Run{}
	}
	return c.JSON(http.StatusOK, runs)
}

func (h *RunsHandler) get(c echo.Context) error {
	userID := c.Get("user_id").(string)
	run, err := h.Store.GetRun(c.Request().Context(), c.Param("id"), userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return echo.NewHTTPError(http.StatusNotFound, "run not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	sources, err := h.Store.ListSources(c.Request().Context(), run.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if sources == nil {
		sources = []models.Source{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"run": run, "sources": sources})
}

func (h *RunsHandler) cancel(c echo.Context) error {
	userID := c.Get("user_id").(string)
	ok, err := h.Store.RequestCancel(c.Request().Context(), c.Param("id"), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !ok {
		return echo.NewHTTPError(http.StatusConflict, "run not found or already terminal")
	}
	return c.NoContent(http.StatusAccepted)
}
