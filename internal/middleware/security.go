package middleware

import (
	"github.com/labstack/echo/v4"

	"camoproxy-go/internal/security"
)

// hopByHopHeaders are headers that should not be forwarded by proxies.
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"TE",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// SecurityHeaders returns an Echo middleware that strips hop-by-hop headers
// from the inbound request and stamps every response with the proxy's fixed
// hardening set (§6.4), regardless of which handler ultimately serves it.
// Headers are set before next runs so they are present even if the handler
// writes the status line itself.
func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			for _, h := range hopByHopHeaders {
				c.Request().Header.Del(h)
			}

			resp := c.Response()
			for k, v := range security.Headers {
				resp.Header().Set(k, v)
			}

			return next(c)
		}
	}
}
