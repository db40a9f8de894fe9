package server

import (
	"database/sql"
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/seoforge/seoforge/internal/pipeline"
	"github.com/seoforge/seoforge/internal/search"
	"github.com/seoforge/seoforge/internal/store"
	"github.com/seoforge/seoforge/models"
)

type ArticlesHandler struct {
	Store      *store.Store
	Controller *pipeline.Controller
	Index      *search.Index
	Logger     *log.Logger
}

func (h *ArticlesHandler) Register(g *echo.Group, mw echo.MiddlewareFunc) {
	g.Use(mw)
	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/:id", h.get)
}

func (h *ArticlesHandler) create(c echo.Context) error {
	userID := c.Get("user_id").(string)
	var req CreateArticleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	var briefID *string
	var briefContent string
	mode := models.ArticleMode(req.Mode)
	switch mode {
	case models.ArticleFromBrief:
		if req.BriefID == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "from_brief mode requires brief_id")
		}
		brief, err := h.Store.GetBrief(c.Request().Context(), req.BriefID, userID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return echo.NewHTTPError(http.StatusNotFound, "brief not found")
			}
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		briefID = &brief.ID
		briefContent = brief.Content
		if req.Query == "" {
			req.Query = brief.Query
		}
	case models.ArticlePastedBrief:
		if req.PastedBrief == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "pasted_brief mode requires brief content")
		}
		briefContent = req.PastedBrief
	case models.ArticleQuickDraft:
		// bare query; the controller builds the provisional brief
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "unknown article mode")
	}

	article, err := h.Controller.GenerateArticle(c.Request().Context(), userID, req.Query, mode, briefID, briefContent)
	if err != nil {
		switch {
		case errors.Is(err, pipeline.ErrInvalidInput):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, pipeline.ErrWriterUnavailable):
			return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	if h.Index != nil {
		doc := search.Doc{ID: article.ID, UserID: article.UserID, Kind: "article", Query: article.Query, Content: article.Content}
		if err := h.Index.Add(doc); err != nil {
			h.Logger.Printf("index article %s: %v", article.ID, err)
		}
	}
	return c.JSON(http.StatusCreated, article)
}

func (h *ArticlesHandler) list(c echo.Context) error {
	userID := c.Get("user_id").(string)
	articles, err := h.Store.ListArticles(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if articles == nil {
		articles = []models.Article{}
	}
	return c.JSON(http.StatusOK, articles)
}

func (h *ArticlesHandler) get(c echo.Context) error {
	userID := c.Get("user_id").(string)
	article, err := h.Store.GetArticle(c.Request().Context(), c.Param("id"), userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return echo.NewHTTPError(http.StatusNotFound, "article not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, article)
}
