package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	slogecho "github.com/samber/slog-echo"

	"github.com/chatwarden/warden"
	"github.com/chatwarden/warden/admincache"
	"github.com/chatwarden/warden/approvals"
	"github.com/chatwarden/warden/blacklist"
	"github.com/chatwarden/warden/store"
	"github.com/chatwarden/warden/warns"
)

type Server struct {
	logger *slog.Logger
	engine *warden.Engine
	echo   *echo.Echo
}

type Config struct {
	RedisURL        string
	SupportStaff    []int64
	RosterRateLimit int
	Logger          *slog.Logger
}

func NewServer(config Config) (*Server, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	var db store.Store
	if config.RedisURL != "" {
		rdb, err := store.NewRedisStore(config.RedisURL)
		if err != nil {
			return nil, err
		}
		db = rdb
		logger.Info("using redis persistence")
	} else {
		db = store.NewMemStore()
		logger.Info("no redis URL configured, using in-memory stores")
	}

	staff := make(map[int64]bool, len(config.SupportStaff))
	for _, id := range config.SupportStaff {
		staff[id] = true
	}

	// the real messaging transport lives out of process; the noop client
	// stands in behind the same rate limit the real one would get
	client := warden.NewRateLimitedClient(warden.NoopClient{}, config.RosterRateLimit)

	engine := &warden.Engine{
		Logger:    logger,
		Client:    client,
		Admins:    admincache.New(client, logger),
		Blacklist: blacklist.NewStore(db, logger),
		Warns:     warns.NewStore(db, logger),
		Approvals: approvals.NewStore(db, logger),
		Staff:     staff,
	}

	s := &Server{
		logger: logger,
		engine: engine,
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(slogecho.New(logger))

	e.GET("/_health", s.handleHealthCheck)
	e.GET("/mod/exempt", s.handleExempt)
	e.POST("/mod/message", s.handleMessage)
	e.GET("/mod/check", s.handleCheckBlacklist)
	e.POST("/mod/warn", s.handleWarn)
	e.DELETE("/mod/warn", s.handleRemoveLastWarn)
	e.DELETE("/mod/warns", s.handleResetWarns)
	e.GET("/mod/warns", s.handleWarnings)
	e.POST("/mod/warns/limit", s.handleSetWarnLimit)
	e.POST("/mod/warns/mode", s.handleSetWarnMode)
	e.POST("/mod/admins/reload", s.handleReloadAdmins)
	e.GET("/mod/blacklist", s.handleGetBlacklist)
	e.POST("/mod/blacklist/trigger", s.handleAddTrigger)
	e.DELETE("/mod/blacklist/trigger", s.handleRemoveTrigger)
	e.POST("/mod/blacklist/action", s.handleSetBlacklistAction)
	e.POST("/mod/approvals", s.handleApprove)
	e.DELETE("/mod/approvals", s.handleUnapprove)
	s.echo = e

	return s, nil
}

func (s *Server) RunMetrics(listen string) error {
	http.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(listen, nil)
}

// RunAPI serves the admin/debug API until SIGINT or SIGTERM.
func (s *Server) RunAPI(listen string) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.echo.Start(listen)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		s.logger.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.echo.Shutdown(ctx)
	}
}

func (s *Server) handleHealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func chatUserParams(c echo.Context) (int64, int64, error) {
	chatID, err := strconv.ParseInt(c.QueryParam("chat"), 10, 64)
	if err != nil {
		return 0, 0, echo.NewHTTPError(http.StatusBadRequest, "invalid or missing chat param")
	}
	userID, err := strconv.ParseInt(c.QueryParam("user"), 10, 64)
	if err != nil {
		return 0, 0, echo.NewHTTPError(http.StatusBadRequest, "invalid or missing user param")
	}
	return chatID, userID, nil
}

func chatParam(c echo.Context) (int64, error) {
	chatID, err := strconv.ParseInt(c.QueryParam("chat"), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid or missing chat param")
	}
	return chatID, nil
}

func mapEngineError(err error) error {
	switch {
	case errors.Is(err, warden.ErrThrottled):
		return echo.NewHTTPError(http.StatusTooManyRequests, err.Error())
	case errors.Is(err, warden.ErrNoWarnings):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, warden.ErrInsufficientRights):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	}
	return err
}

func (s *Server) handleExempt(c echo.Context) error {
	chatID, userID, err := chatUserParams(c)
	if err != nil {
		return err
	}
	exempt, err := s.engine.IsExempt(c.Request().Context(), chatID, userID)
	if err != nil {
		return mapEngineError(err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"exempt": exempt})
}

func (s *Server) handleMessage(c echo.Context) error {
	var evt warden.MessageEvent
	if err := c.Bind(&evt); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid message event")
	}
	out, err := s.engine.ProcessMessage(c.Request().Context(), &evt)
	if err != nil {
		return mapEngineError(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleCheckBlacklist(c echo.Context) error {
	chatID, err := chatParam(c)
	if err != nil {
		return err
	}
	match, err := s.engine.CheckBlacklist(c.Request().Context(), chatID, c.QueryParam("text"))
	if err != nil {
		return mapEngineError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"match": match})
}

func (s *Server) handleWarn(c echo.Context) error {
	chatID, userID, err := chatUserParams(c)
	if err != nil {
		return err
	}
	res, err := s.engine.Warn(c.Request().Context(), chatID, userID, c.QueryParam("reason"))
	if err != nil {
		return mapEngineError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) handleRemoveLastWarn(c echo.Context) error {
	chatID, userID, err := chatUserParams(c)
	if err != nil {
		return err
	}
	rec, err := s.engine.RemoveLastWarn(c.Request().Context(), chatID, userID)
	if err != nil {
		return mapEngineError(err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (s *Server) handleResetWarns(c echo.Context) error {
	chatID, userID, err := chatUserParams(c)
	if err != nil {
		return err
	}
	if err := s.engine.ResetWarns(c.Request().Context(), chatID, userID); err != nil {
		return mapEngineError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleWarnings(c echo.Context) error {
	chatID, userID, err := chatUserParams(c)
	if err != nil {
		return err
	}
	rec, err := s.engine.Warnings(c.Request().Context(), chatID, userID)
	if err != nil {
		return mapEngineError(err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (s *Server) handleSetWarnLimit(c echo.Context) error {
	chatID, err := chatParam(c)
	if err != nil {
		return err
	}
	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid limit param")
	}
	st, err := s.engine.Warns.SetLimit(c.Request().Context(), chatID, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, st)
}

func (s *Server) handleSetWarnMode(c echo.Context) error {
	chatID, err := chatParam(c)
	if err != nil {
		return err
	}
	mode, err := warns.ParseMode(c.QueryParam("mode"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	st, err := s.engine.Warns.SetMode(c.Request().Context(), chatID, mode)
	if err != nil {
		return mapEngineError(err)
	}
	return c.JSON(http.StatusOK, st)
}

func (s *Server) handleReloadAdmins(c echo.Context) error {
	chatID, err := chatParam(c)
	if err != nil {
		return err
	}
	manual := c.QueryParam("manual") == "true"
	snap, err := s.engine.ReloadAdmins(c.Request().Context(), chatID, manual)
	if err != nil {
		return mapEngineError(err)
	}
	return c.JSON(http.StatusOK, snap)
}

func (s *Server) handleGetBlacklist(c echo.Context) error {
	chatID, err := chatParam(c)
	if err != nil {
		return err
	}
	rule, ok, err := s.engine.Blacklist.Get(c.Request().Context(), chatID)
	if err != nil {
		return mapEngineError(err)
	}
	if !ok {
		return c.JSON(http.StatusOK, map[string]any{"rule": nil})
	}
	return c.JSON(http.StatusOK, map[string]any{"rule": rule})
}

func (s *Server) handleAddTrigger(c echo.Context) error {
	chatID, err := chatParam(c)
	if err != nil {
		return err
	}
	added, err := s.engine.Blacklist.AddTrigger(c.Request().Context(), chatID, c.QueryParam("trigger"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]bool{"added": added})
}

func (s *Server) handleRemoveTrigger(c echo.Context) error {
	chatID, err := chatParam(c)
	if err != nil {
		return err
	}
	removed, err := s.engine.Blacklist.RemoveTrigger(c.Request().Context(), chatID, c.QueryParam("trigger"))
	if err != nil {
		return mapEngineError(err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"removed": removed})
}

func (s *Server) handleSetBlacklistAction(c echo.Context) error {
	chatID, err := chatParam(c)
	if err != nil {
		return err
	}
	action, err := blacklist.ParseAction(c.QueryParam("action"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := s.engine.Blacklist.SetAction(c.Request().Context(), chatID, action); err != nil {
		return mapEngineError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleApprove(c echo.Context) error {
	chatID, userID, err := chatUserParams(c)
	if err != nil {
		return err
	}
	added, err := s.engine.Approvals.Approve(c.Request().Context(), chatID, userID)
	if err != nil {
		return mapEngineError(err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"approved": added})
}

func (s *Server) handleUnapprove(c echo.Context) error {
	chatID, userID, err := chatUserParams(c)
	if err != nil {
		return err
	}
	removed, err := s.engine.Approvals.Unapprove(c.Request().Context(), chatID, userID)
	if err != nil {
		return mapEngineError(err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"removed": removed})
}
