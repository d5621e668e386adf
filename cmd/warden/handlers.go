package main

import (
	"crypto/subtle"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/wardenchat/warden/automod/auditlog"
	"github.com/wardenchat/warden/automod/config"
	"github.com/wardenchat/warden/automod/countstore"

	"github.com/labstack/echo/v4"
)

type GenericError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type GenericStatus struct {
	Daemon  string `json:"daemon"`
	Status  string `json:"status"`
	Message string `json:"msg,omitempty"`
}

type ConfigUpdateOutput struct {
	Config config.TenantConfig `json:"config"`
	// fields in the update which were rejected and left unchanged
	Warnings []string `json:"warnings"`
}

type ViolationsOutput struct {
	TenantID   string `json:"tenantId,omitempty"`
	AuthorID   string `json:"authorId"`
	Violations int    `json:"violations"`
}

type ResetOutput struct {
	Reset bool `json:"reset"`
}

type CountOutput struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Period string `json:"period"`
	Count  int    `json:"count"`
}

type AuditOutput struct {
	Entries []auditlog.AuditEntry `json:"entries"`
}

func (srv *Server) errorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	var errorMessage string
	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		errorMessage = fmt.Sprintf("%s", he.Message)
	}
	if code >= 500 {
		srv.logger.Warn("warden-http-internal-error", "err", err)
	}
	if !c.Response().Committed {
		c.JSON(code, GenericStatus{Status: "error", Daemon: "warden", Message: errorMessage})
	}
}

func (srv *Server) checkAdminAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authheader := c.Request().Header.Get("Authorization")
		token, ok := strings.CutPrefix(authheader, "Bearer ")
		if !ok {
			return echo.ErrUnauthorized
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(srv.adminToken)) != 1 {
			return echo.ErrForbidden
		}
		return next(c)
	}
}

func (srv *Server) HandleHealthCheck(c echo.Context) error {
	if srv.engine.GetStats().Closed {
		return c.JSON(http.StatusServiceUnavailable, GenericStatus{Status: "error", Daemon: "warden", Message: "engine shut down"})
	}
	return c.JSON(http.StatusOK, GenericStatus{Status: "ok", Daemon: "warden"})
}

func (srv *Server) HandleStats(c echo.Context) error {
	return c.JSON(http.StatusOK, srv.engine.GetStats())
}

func (srv *Server) HandleGetCount(c echo.Context) error {
	name := c.QueryParam("name")
	val := c.QueryParam("value")
	period := c.QueryParam("period")
	if period == "" {
		period = countstore.PeriodTotal
	}
	if name == "" || val == "" {
		return c.JSON(http.StatusBadRequest, GenericError{
			Error:   "InvalidRequest",
			Message: "name and value query parameters are required",
		})
	}
	if !countstore.ValidPeriod(period) {
		return c.JSON(http.StatusBadRequest, GenericError{
			Error:   "InvalidRequest",
			Message: "period must be one of total, day, hour",
		})
	}
	var (
		count int
		err   error
	)
	if c.QueryParam("distinct") == "true" {
		count, err = srv.engine.GetCountDistinct(c.Request().Context(), name, val, period)
	} else {
		count, err = srv.engine.GetCount(c.Request().Context(), name, val, period)
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, CountOutput{Name: name, Value: val, Period: period, Count: count})
}

func (srv *Server) HandleCleanup(c echo.Context) error {
	return c.JSON(http.StatusOK, srv.engine.ForceCleanup())
}

func (srv *Server) HandleGetTenantConfig(c echo.Context) error {
	return c.JSON(http.StatusOK, srv.engine.GetTenantConfig(c.Request().Context(), c.Param("tenant")))
}

func (srv *Server) HandleUpdateTenantConfig(c echo.Context) error {
	raw, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return err
	}
	tc, warnings, err := srv.engine.UpdateTenantConfigJSON(c.Request().Context(), c.Param("tenant"), raw)
	if err != nil {
		return c.JSON(http.StatusBadRequest, GenericError{
			Error:   "InvalidConfig",
			Message: err.Error(),
		})
	}
	if warnings == nil {
		warnings = []string{}
	}
	return c.JSON(http.StatusOK, ConfigUpdateOutput{Config: tc, Warnings: warnings})
}

func (srv *Server) HandleTenantAudit(c echo.Context) error {
	if srv.auditDB == nil {
		return c.JSON(http.StatusNotFound, GenericError{
			Error:   "AuditLogDisabled",
			Message: "no audit database configured",
		})
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	entries, err := srv.auditDB.Recent(c.Request().Context(), c.Param("tenant"), c.QueryParam("author"), limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, AuditOutput{Entries: entries})
}

func (srv *Server) HandleGetTenantViolations(c echo.Context) error {
	tenant, author := c.Param("tenant"), c.Param("author")
	return c.JSON(http.StatusOK, ViolationsOutput{
		TenantID:   tenant,
		AuthorID:   author,
		Violations: srv.engine.GetTenantUserViolations(tenant, author),
	})
}

func (srv *Server) HandleResetTenantViolations(c echo.Context) error {
	ok := srv.engine.ResetTenantUserViolations(c.Param("tenant"), c.Param("author"))
	return c.JSON(http.StatusOK, ResetOutput{Reset: ok})
}

func (srv *Server) HandleGetViolations(c echo.Context) error {
	author := c.Param("author")
	return c.JSON(http.StatusOK, ViolationsOutput{
		AuthorID:   author,
		Violations: srv.engine.GetUserViolations(author),
	})
}

func (srv *Server) HandleResetViolations(c echo.Context) error {
	return c.JSON(http.StatusOK, ResetOutput{Reset: srv.engine.ResetUserViolations(c.Param("author"))})
}
