package main

import (
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/guildwarden/warden/auditlog"
	"github.com/guildwarden/warden/filter"
	"github.com/guildwarden/warden/settings"

	"github.com/carlmjohnson/versioninfo"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	slogecho "github.com/samber/slog-echo"
)

type GenericStatus struct {
	Daemon  string `json:"daemon"`
	Status  string `json:"status"`
	Message string `json:"msg,omitempty"`
	Version string `json:"version,omitempty"`
}

// collectors register with the default registry, so this is created once per process
var httpMetrics = echoprometheus.NewMiddleware("warden")

type bindRequest struct {
	ChannelID string `json:"channel_id"`
}

type messageCacheStatus struct {
	Capacity int `json:"capacity"`
	Guilds   int `json:"guilds"`
}

func (s *Server) setupEcho() {
	e := echo.New()
	e.HideBanner = true
	e.Use(slogecho.New(s.logger))
	e.Use(httpMetrics)
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("1M"))
	e.HTTPErrorHandler = s.errorHandler

	e.GET("/_health", s.HandleHealthCheck)

	// admin API is only mounted when a token is configured
	if s.adminToken != "" {
		admin := e.Group("/admin", s.checkAdminAuth)
		admin.GET("/guilds/:guild/settings", s.HandleGetSettings)
		admin.PUT("/guilds/:guild/settings", s.HandlePutSettings)
		admin.DELETE("/guilds/:guild/settings", s.HandleDeleteSettings)
		admin.GET("/guilds/:guild/audit", s.HandleListBindings)
		admin.PUT("/guilds/:guild/audit/:category", s.HandleBind)
		admin.DELETE("/guilds/:guild/audit/:category", s.HandleUnbind)
		admin.GET("/message-cache", s.HandleGetMessageCache)
		admin.PUT("/message-cache", s.HandleResizeMessageCache)
	}
	s.echo = e
}

func (s *Server) errorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	var errorMessage string
	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		errorMessage = fmt.Sprintf("%s", he.Message)
	}
	if code >= 500 {
		slog.Warn("warden-http-internal-error", "err", err)
	}
	c.JSON(code, GenericStatus{Status: "error", Daemon: "warden", Message: errorMessage})
}

func (s *Server) checkAdminAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authheader := c.Request().Header.Get("Authorization")
		pref := "Bearer "
		if !strings.HasPrefix(authheader, pref) {
			return echo.ErrForbidden
		}
		token := authheader[len(pref):]
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.adminToken)) != 1 {
			return echo.ErrForbidden
		}
		return next(c)
	}
}

func (s *Server) HandleHealthCheck(c echo.Context) error {
	if s.db != nil {
		if sqlDB, err := s.db.DB(); err != nil || sqlDB.PingContext(c.Request().Context()) != nil {
			return c.JSON(http.StatusServiceUnavailable, GenericStatus{Status: "error", Daemon: "warden", Message: "database unavailable"})
		}
	}
	return c.JSON(http.StatusOK, GenericStatus{Status: "ok", Daemon: "warden", Version: versioninfo.Short()})
}

func (s *Server) HandleGetSettings(c echo.Context) error {
	gs, err := s.settings.Get(c.Request().Context(), c.Param("guild"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, gs)
}

// Replaces the whole settings document for a guild. Rules which would be skipped at compile time are rejected here, so mistakes surface to the operator instead of the log.
func (s *Server) HandlePutSettings(c echo.Context) error {
	guildID := c.Param("guild")
	gs := settings.Default(guildID)
	if err := c.Bind(gs); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid settings document")
	}
	gs.GuildID = guildID
	if err := filter.Validate(gs); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := s.settings.Upsert(c.Request().Context(), gs); err != nil {
		return err
	}
	s.logger.Info("updated guild settings", "guild", guildID)
	return c.JSON(http.StatusOK, gs)
}

func (s *Server) HandleDeleteSettings(c echo.Context) error {
	guildID := c.Param("guild")
	if err := s.settings.Delete(c.Request().Context(), guildID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, GenericStatus{Status: "ok", Daemon: "warden"})
}

func (s *Server) HandleListBindings(c echo.Context) error {
	out, err := s.sink.Store.List(c.Request().Context(), c.Param("guild"))
	if err != nil {
		return err
	}
	// tokens are credentials
	for i := range out {
		out[i].SinkToken = ""
	}
	return c.JSON(http.StatusOK, out)
}

func parseCategory(raw string) (auditlog.Category, error) {
	cat := auditlog.Category(raw)
	if !slices.Contains(auditlog.AllCategories, cat) {
		return "", echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("unknown audit category: %s", raw))
	}
	return cat, nil
}

// Points an audit category at a channel. The webhook endpoint is created on first delivery.
func (s *Server) HandleBind(c echo.Context) error {
	cat, err := parseCategory(c.Param("category"))
	if err != nil {
		return err
	}
	var req bindRequest
	if err := c.Bind(&req); err != nil || req.ChannelID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "channel_id is required")
	}
	b := auditlog.Binding{
		GuildID:   c.Param("guild"),
		Category:  cat,
		ChannelID: req.ChannelID,
		IsActive:  true,
	}
	if err := s.sink.Bind(c.Request().Context(), b); err != nil {
		return err
	}
	s.logger.Info("bound audit category", "guild", b.GuildID, "category", cat, "channel", b.ChannelID)
	return c.JSON(http.StatusOK, b)
}

func (s *Server) HandleUnbind(c echo.Context) error {
	cat, err := parseCategory(c.Param("category"))
	if err != nil {
		return err
	}
	if err := s.sink.Unbind(c.Request().Context(), c.Param("guild"), cat); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, GenericStatus{Status: "ok", Daemon: "warden"})
}

func (s *Server) HandleGetMessageCache(c echo.Context) error {
	return c.JSON(http.StatusOK, messageCacheStatus{Capacity: s.messages.Capacity(), Guilds: s.messages.Guilds()})
}

// Changes the per-guild message cache capacity at runtime. Shrinking drops the oldest cached messages, which only degrades later delete records.
func (s *Server) HandleResizeMessageCache(c echo.Context) error {
	var req messageCacheStatus
	if err := c.Bind(&req); err != nil || req.Capacity <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "capacity must be a positive integer")
	}
	s.messages.Resize(req.Capacity)
	s.logger.Info("resized message cache", "capacity", req.Capacity)
	return c.JSON(http.StatusOK, messageCacheStatus{Capacity: s.messages.Capacity(), Guilds: s.messages.Guilds()})
}
