package server

import (
	"database/sql"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/seoforge/seoforge/internal/pipeline"
	"github.com/seoforge/seoforge/internal/search"
	"github.com/seoforge/seoforge/internal/store"
	"github.com/seoforge/seoforge/models"
)

type BriefsHandler struct {
	Store      *store.Store
	Controller *pipeline.Controller
	Index      *search.Index
	Logger     *log.Logger
}

func (h *BriefsHandler) Register(g *echo.Group, mw echo.MiddlewareFunc) {
	g.Use(mw)
	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.PATCH("/:id", h.update)
}

func (h *BriefsHandler) create(c echo.Context) error {
	userID := c.Get("user_id").(string)
	var req CreateBriefRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	inputs := models.RunInputs{
		SeedURLs:      req.SeedURLs,
		CitationsText: req.CitationsText,
		OverviewText:  req.OverviewText,
	}
	brief, err := h.Controller.GenerateBrief(c.Request().Context(), userID, req.Query, inputs)
	if err != nil {
		if errors.Is(err, pipeline.ErrInvalidInput) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	h.indexBrief(brief)
	return c.JSON(http.StatusCreated, brief)
}

func (h *BriefsHandler) list(c echo.Context) error {
	userID := c.Get("user_id").(string)
	briefs, err := h.Store.ListBriefs(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if briefs == nil {
		briefs = []models.Brief{}
	}
	return c.JSON(http.StatusOK, briefs)
}

func (h *BriefsHandler) get(c echo.Context) error {
	userID := c.Get("user_id").(string)
	brief, err := h.Store.GetBrief(c.Request().Context(), c.Param("id"), userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return echo.NewHTTPError(http.StatusNotFound, "brief not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, brief)
}

func (h *BriefsHandler) update(c echo.Context) error {
	userID := c.Get("user_id").(string)
	var req UpdateBriefRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Content) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "content is required")
	}
	brief, err := h.Store.UpdateBriefContent(c.Request().Context(), c.Param("id"), userID, req.Content)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return echo.NewHTTPError(http.StatusNotFound, "brief not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	h.indexBrief(brief)
	return c.JSON(http.StatusOK, brief)
}

func (h *BriefsHandler) indexBrief(brief models.Brief) {
	if h.Index == nil {
		return
	}
	doc := search.Doc{ID: brief.ID, UserID: brief.UserID, Kind: "brief", Query: brief.Query, Content: brief.Content}
	if err := h.Index.Add(doc); err != nil {
		h.Logger.Printf("index brief %s: %v", brief.ID, err)
	}
}
