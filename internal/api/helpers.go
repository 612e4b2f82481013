package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v5"
)

func writeJSON(c *echo.Context, status int, v any) error {
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	res.WriteHeader(status)
	return json.NewEncoder(res).Encode(v)
}

func writeError(c *echo.Context, status int, errType, msg, param string) error {
	return writeJSON(c, status, ErrorResponse{Error: ResponseError{
		Message: msg,
		Type:    errType,
		Param:   param,
	}})
}

func writeBadRequest(c *echo.Context, err error) error {
	var ire invalidRequestError
	if errors.As(err, &ire) {
		return writeError(c, http.StatusBadRequest, "invalid_request_error", ire.msg, ire.param)
	}
	return writeError(c, http.StatusBadRequest, "invalid_request_error", err.Error(), "")
}

func writeTooLarge(c *echo.Context, limit int64) error {
	return writeError(c, http.StatusRequestEntityTooLarge, "request_too_large",
		"request body exceeds "+humanBytes(limit), "")
}

func isTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}

// formBytes returns a multipart field given either as a plain value or as
// an uploaded file part.
func formBytes(form *multipart.Form, name string, limit int64) ([]byte, error) {
	if vs := form.Value[name]; len(vs) > 0 {
		return []byte(vs[0]), nil
	}
	fhs := form.File[name]
	if len(fhs) == 0 {
		return nil, newInvalidRequest(name, "missing form field "+name)
	}
	if fhs[0].Size > limit {
		return nil, &http.MaxBytesError{Limit: limit}
	}
	f, err := fhs[0].Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return io.ReadAll(io.LimitReader(f, limit))
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
