// Package security holds the process-wide constant tables that the proxy
// enforces on every request and response: the inbound/outbound header
// allow-lists, the hardened security header set, and the allowed image
// MIME set. All three are read-only after package init (§3, §9 "Global
// constants"), modeled on cactus-go-camo's ValidReqHeaders/ValidRespHeaders
// tables.
package security

import "net/http"

// RequestHeaderAllowList are the only inbound headers forwarded upstream
// (§6.2). Accept-Encoding and X-Forwarded-For are deliberately absent:
// forwarding Accept-Encoding would let a client demand an encoding the
// byte-counting fetcher doesn't account for, and X-Forwarded-For would
// leak the end user's address to the origin.
var RequestHeaderAllowList = []string{
	"Accept",
	"Accept-Charset",
	"Accept-Language",
	"Cache-Control",
	"If-None-Match",
	"If-Modified-Since",
	"Range",
}

// ResponseHeaderAllowList are the only upstream response headers forwarded
// to the client (§6.3). Server is deliberately absent.
var ResponseHeaderAllowList = []string{
	"Accept-Ranges",
	"Cache-Control",
	"Content-Length",
	"Content-Encoding",
	"Content-Range",
	"Content-Type",
	"ETag",
	"Expires",
	"Last-Modified",
	"Transfer-Encoding",
}

// Headers is the fixed hardening set emitted on every response the proxy
// originates, success or error (§6.4).
var Headers = map[string]string{
	"X-Frame-Options":           "deny",
	"X-XSS-Protection":          "1; mode=block",
	"X-Content-Type-Options":    "nosniff",
	"Content-Security-Policy":   "default-src 'none'; img-src data:; style-src 'unsafe-inline'",
	"Strict-Transport-Security": "max-age=31536000; includeSubDomains",
}

// AllowedMimeTypes is the exact-match set of lowercase image media types
// the fetcher will accept from an origin (§6.5).
var AllowedMimeTypes = map[string]bool{
	"image/bmp":                       true,
	"image/cgm":                       true,
	"image/g3fax":                     true,
	"image/gif":                       true,
	"image/ief":                       true,
	"image/jp2":                       true,
	"image/jpeg":                      true,
	"image/jpg":                       true,
	"image/pict":                      true,
	"image/png":                       true,
	"image/prs.btif":                  true,
	"image/svg+xml":                   true,
	"image/tiff":                      true,
	"image/vnd.adobe.photoshop":       true,
	"image/vnd.djvu":                  true,
	"image/vnd.dwg":                   true,
	"image/vnd.dxf":                   true,
	"image/vnd.fastbidsheet":          true,
	"image/vnd.fpx":                   true,
	"image/vnd.fst":                   true,
	"image/vnd.fujixerox.edmics-mmr":  true,
	"image/vnd.fujixerox.edmics-rlc":  true,
	"image/vnd.microsoft.icon":        true,
	"image/vnd.ms-modi":               true,
	"image/vnd.net-fpx":               true,
	"image/vnd.wap.wbmp":              true,
	"image/vnd.xiff":                  true,
	"image/webp":                      true,
	"image/x-cmu-raster":              true,
	"image/x-cmx":                     true,
	"image/x-icon":                    true,
	"image/x-macpaint":                true,
	"image/x-pcx":                     true,
	"image/x-pict":                    true,
	"image/x-portable-anymap":         true,
	"image/x-portable-bitmap":         true,
	"image/x-portable-graymap":        true,
	"image/x-portable-pixmap":         true,
	"image/x-quicktime":               true,
	"image/x-rgb":                     true,
	"image/x-xbitmap":                 true,
	"image/x-xpixmap":                 true,
	"image/x-xwindowdump":             true,
}

// FilterHeaders returns a new header map containing only the keys in
// allow (§4.3). Each allow-list name is looked up in src under its Go
// canonical form (http.CanonicalHeaderKey), and the output is keyed by
// that same canonical form; values are copied verbatim from src. Keys are
// therefore never taken from src's casing, but they are not the allow
// list's literal spelling either: "ETag" is emitted as "Etag". A src map
// whose keys were written directly in non-canonical form (e.g. "etag")
// is not matched.
func FilterHeaders(src http.Header, allow []string) http.Header {
	out := make(http.Header, len(allow))
	for _, name := range allow {
		if vals, ok := src[http.CanonicalHeaderKey(name)]; ok {
			out[http.CanonicalHeaderKey(name)] = vals
		}
	}
	return out
}
