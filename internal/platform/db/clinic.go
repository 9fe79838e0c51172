package db

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/clinicplus/api/internal/domain/clinic"
)

type contextKey string

const ClinicKey contextKey = "clinic"

// ClinicMiddleware resolves the tenant clinic for the request and stores it
// in the request context. Resolution order: Host subdomain, X-Clinic header,
// then the configured default subdomain. Requests whose host is an IP
// literal, localhost, or a bare domain carry no subdomain and fall through
// to the header / default. A request may legitimately resolve to no clinic;
// handlers that need one enforce that themselves.
func ClinicMiddleware(repo clinic.Repository, defaultSubdomain string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sub := SubdomainFromHost(c.Request().Host)
			if sub == "" {
				sub = c.Request().Header.Get("X-Clinic")
			}
			if sub == "" {
				sub = defaultSubdomain
			}
			if sub == "" {
				return next(c)
			}

			ctx := c.Request().Context()
			cl, err := repo.GetBySubdomain(ctx, sub)
			if err != nil {
				if err == clinic.ErrNotFound {
					return echo.NewHTTPError(http.StatusNotFound, "clinic not found")
				}
				return echo.NewHTTPError(http.StatusServiceUnavailable, "clinic resolution failed")
			}

			ctx = context.WithValue(ctx, ClinicKey, cl)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set("clinic", cl)

			return next(c)
		}
	}
}

// SubdomainFromHost extracts the leftmost DNS label from a request host.
// IP literals, localhost and hosts with fewer than three labels yield "".
func SubdomainFromHost(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if host == "" || host == "localhost" || net.ParseIP(host) != nil {
		return ""
	}
	labels := strings.Split(host, ".")
	if len(labels) < 3 {
		return ""
	}
	return labels[0]
}

// ClinicFromContext retrieves the resolved clinic from context, or nil.
func ClinicFromContext(ctx context.Context) *clinic.Clinic {
	cl, _ := ctx.Value(ClinicKey).(*clinic.Clinic)
	return cl
}
