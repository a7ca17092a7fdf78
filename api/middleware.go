package api

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// DecodeRequestMiddleware inflates gzip request bodies so handlers always read
// plain JSON. The inflated stream is capped at limit bytes. Encodings other
// than gzip and identity are refused with 415.
func DecodeRequestMiddleware(limit int64) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			gz, ok := requestEncoding(req.Header.Get(echo.HeaderContentEncoding))
			if !ok {
				return echo.NewHTTPError(http.StatusUnsupportedMediaType, "unsupported content encoding")
			}
			if !gz {
				return next(c)
			}

			body := req.Body
			gr, err := gzip.NewReader(body)
			if err != nil {
				_ = body.Close()
				return echo.NewHTTPError(http.StatusBadRequest, "invalid gzip body")
			}

			req.Body = &inflatedBody{Reader: io.LimitReader(gr, limit), gz: gr, body: body}
			req.ContentLength = -1
			req.Header.Del(echo.HeaderContentEncoding)
			req.Header.Del(echo.HeaderContentLength)

			return next(c)
		}
	}
}

// requestEncoding reports whether header asks for gzip decoding and whether
// every listed coding is supported.
func requestEncoding(header string) (gz, ok bool) {
	if strings.TrimSpace(header) == "" {
		return false, true
	}
	for _, enc := range strings.Split(header, ",") {
		switch strings.ToLower(strings.TrimSpace(enc)) {
		case "gzip", "x-gzip":
			gz = true
		case "identity", "":
		default:
			return false, false
		}
	}
	return gz, true
}

type inflatedBody struct {
	io.Reader
	gz   *gzip.Reader
	body io.Closer
}

func (b *inflatedBody) Close() error {
	err := b.gz.Close()
	if cerr := b.body.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
