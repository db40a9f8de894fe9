package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/seoforge/seoforge/config"
	"github.com/seoforge/seoforge/internal/export"
	"github.com/seoforge/seoforge/internal/fetch"
	"github.com/seoforge/seoforge/internal/pipeline"
	"github.com/seoforge/seoforge/internal/runtime"
	"github.com/seoforge/seoforge/internal/search"
	"github.com/seoforge/seoforge/internal/store"
	"github.com/seoforge/seoforge/provider"
)

// Run wires every dependency and serves the API until the process
// exits.
func Run(cfg *config.Config, addr string) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	// Unified HTTP error handler with structured JSON and logging
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Cookie", "Authorization"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(200, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	ctx := context.Background()
	dsn, err := cfg.Storage.Postgres.DSN()
	if err != nil {
		return err
	}
	if err := Migrate("file://migrations", dsn, "up", 0); err != nil {
		log.Printf("migrate: %v", err)
	}
	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		return err
	}

	secret, err := runtime.LoadJWTSecret(cfg)
	if err != nil {
		return err
	}
	authMW := runtime.EchoAuthMiddleware(secret)

	prov := provider.New(cfg.LLM)
	if !prov.Enabled() {
		log.Printf("llm provider disabled: summaries degrade, quick drafts fail")
	}
	fetcher, err := fetch.New(fetch.FetcherType(cfg.Pipeline.Fetcher), cfg.Pipeline.FetchTimeout)
	if err != nil {
		return err
	}
	var exporter *export.Exporter
	if cfg.Export.Enabled {
		exporter = export.New(cfg.Export.Dir)
	}
	pipeLogger := log.New(log.Writer(), "[PIPE] ", log.LstdFlags)
	ctrl := pipeline.NewController(st, prov, fetcher, exporter, cfg.Pipeline, pipeLogger)

	idx, err := search.NewIndex()
	if err != nil {
		return err
	}
	if err := rebuildIndex(ctx, st, idx); err != nil {
		log.Printf("rebuild search index: %v", err)
	}

	api := e.Group("/api")
	auth := &AuthHandler{Store: st, Secret: secret}
	auth.Register(api.Group("/auth"))

	me := api.Group("/me")
	me.Use(authMW)
	me.GET("", func(c echo.Context) error {
		return c.JSON(200, MeResponse{UserID: c.Get("user_id").(string)})
	})

	runsLogger := log.New(log.Writer(), "[RUNS] ", log.LstdFlags)
	rh := &RunsHandler{Store: st, Controller: ctrl, Logger: runsLogger}
	rh.Register(api.Group("/runs"), authMW)

	bh := &BriefsHandler{Store: st, Controller: ctrl, Index: idx, Logger: runsLogger}
	bh.Register(api.Group("/briefs"), authMW)

	ah := &ArticlesHandler{Store: st, Controller: ctrl, Index: idx, Logger: runsLogger}
	ah.Register(api.Group("/articles"), authMW)

	sh := &SearchHandler{Index: idx}
	sh.Register(api.Group("/search"), authMW)

	uh := &SettingsHandler{Store: st}
	uh.Register(api.Group("/settings"), authMW)

	// janitor requeues runs stranded in pending; redis lock is optional
	var rdb *redis.Client
	if raddr := cfg.Storage.Redis.Addr(); raddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: raddr, Password: cfg.Storage.Redis.Password, DB: cfg.Storage.Redis.DB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis connection failed (%s): %w", raddr, err)
		}
	}
	janitor := &Janitor{Store: st, Controller: ctrl, Rdb: rdb, Stop: make(chan struct{})}
	janitor.Start()

	if addr == "" {
		addr = cfg.Server.Listen
		if addr != "" && addr[0] != ':' {
			addr = ":" + addr
		}
		if addr == "" {
			addr = ":10020"
		}
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}

func rebuildIndex(ctx context.Context, st *store.Store, idx *search.Index) error {
	briefs, err := st.ListAllBriefs(ctx)
	if err != nil {
		return err
	}
	for _, b := range briefs {
		if err := idx.Add(search.Doc{ID: b.ID, UserID: b.UserID, Kind: "brief", Query: b.Query, Content: b.Content}); err != nil {
			return err
		}
	}
	articles, err := st.ListAllArticles(ctx)
	if err != nil {
		return err
	}
	for _, a := range articles {
		if err := idx.Add(search.Doc{ID: a.ID, UserID: a.UserID, Kind: "article", Query: a.Query, Content: a.Content}); err != nil {
			return err
		}
	}
	return nil
}
