package main

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	"github.com/hearthmod/bailiff/moderation/command"

	"github.com/labstack/echo/v4"
)

type GenericStatus struct {
	Daemon  string `json:"daemon"`
	Status  string `json:"status"`
	Message string `json:"msg,omitempty"`
}

type TrackedRolesOutput struct {
	Member string   `json:"member"`
	Roles  []string `json:"roles"`
}

func (srv *Server) errorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	var errorMessage string
	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		errorMessage = fmt.Sprintf("%s", he.Message)
	}
	if code >= 500 {
		srv.logger.Warn("bailiff-http-internal-error", "err", err)
	}
	c.JSON(code, GenericStatus{Status: "error", Daemon: "bailiff", Message: errorMessage})
}

func (srv *Server) checkAdminAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, span := tracer.Start(c.Request().Context(), "checkAdminAuth")
		defer span.End()
		c.SetRequest(c.Request().WithContext(ctx))

		authheader := c.Request().Header.Get("Authorization")
		pref := "Bearer "
		if !strings.HasPrefix(authheader, pref) {
			return echo.ErrUnauthorized
		}
		token := authheader[len(pref):]
		if subtle.ConstantTimeCompare([]byte(token), []byte(srv.adminToken)) != 1 {
			return echo.ErrForbidden
		}
		return next(c)
	}
}

func (srv *Server) HandleHealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, GenericStatus{Status: "ok", Daemon: "bailiff"})
}

// Read-only view of the tracked roles recorded for a member.
func (srv *Server) HandleTrackedLookup(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "HandleTrackedLookup")
	defer span.End()

	member := command.NormalizeMemberRef(c.Param("member"))
	if member == "" {
		adminLookups.WithLabelValues("invalid").Inc()
		return echo.NewHTTPError(http.StatusBadRequest, "member ID required")
	}
	roles, err := srv.store.Lookup(ctx, member)
	if err != nil {
		adminLookups.WithLabelValues("error").Inc()
		return fmt.Errorf("looking up tracked roles: %w", err)
	}
	adminLookups.WithLabelValues("ok").Inc()
	return c.JSON(http.StatusOK, TrackedRolesOutput{Member: member, Roles: roles})
}
