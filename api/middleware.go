package api

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// RequestIDMiddleware tags every request and response with an X-Request-ID,
// keeping the caller's value when one is supplied.
func RequestIDMiddleware() echo.MiddlewareFunc {
	return middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	})
}

// GzipRequestMiddleware inflates gzip-encoded task payloads and caps the
// inflated stream at the task body limit. Encodings other than gzip and
// identity get a 415.
func GzipRequestMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			gzipped, ok := requestEncoding(req.Header.Get(echo.HeaderContentEncoding))
			if !ok {
				_ = req.Body.Close()
				return c.JSON(http.StatusUnsupportedMediaType, errorResponse{
					Message: msgInvalid,
					Error:   "unsupported content encoding " + req.Header.Get(echo.HeaderContentEncoding),
				})
			}
			if !gzipped {
				return next(c)
			}

			gr, err := gzip.NewReader(req.Body)
			if err != nil {
				_ = req.Body.Close()
				return c.JSON(http.StatusBadRequest, errorResponse{Message: msgInvalid, Error: "invalid gzip body"})
			}

			req.Body = &inflatedBody{
				Reader: io.LimitReader(gr, taskBodyMaxSize+1),
				gz:     gr,
				raw:    req.Body,
			}
			req.ContentLength = -1
			req.Header.Del(echo.HeaderContentEncoding)
			req.Header.Del(echo.HeaderContentLength)
			return next(c)
		}
	}
}

// requestEncoding reports whether the body is gzipped and whether the
// encoding is one the API reads at all.
func requestEncoding(header string) (gzipped, ok bool) {
	for _, enc := range strings.Split(header, ",") {
		switch strings.ToLower(strings.TrimSpace(enc)) {
		case "", "identity":
		case "gzip", "x-gzip":
			if gzipped {
				return false, false
			}
			gzipped = true
		default:
			return false, false
		}
	}
	return gzipped, true
}

// inflatedBody reads at most one byte past the body limit so decodeBody can
// tell an oversized payload from a truncated one.
type inflatedBody struct {
	io.Reader
	gz  *gzip.Reader
	raw io.Closer
}

func (b *inflatedBody) Close() error {
	err := b.gz.Close()
	if cerr := b.raw.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
