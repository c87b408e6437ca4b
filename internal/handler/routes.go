package handler

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes wires all route handlers onto the Echo instance. The signed
// image route matches everything else, since the digest and encoded URL live
// in the path itself rather than behind a fixed prefix (§4.6 splitPath).
func RegisterRoutes(e *echo.Echo, proxy *ProxyHandler, health *HealthHandler) {
	e.GET("/healthz", health.Healthz)

	e.Any("/*", proxy.Handle)
}
