package api

import (
	"errors"
	"net/http"

	"github.com/samcharles93/weightdecode/pkg/weights"
)

var ErrInvalidRequest = errors.New("invalid_request")

type invalidRequestError struct {
	msg   string
	param string
}

func (e invalidRequestError) Error() string {
	return e.msg
}

func (e invalidRequestError) Unwrap() error {
	return ErrInvalidRequest
}

func newInvalidRequest(param, msg string) error {
	return invalidRequestError{msg: msg, param: param}
}

// decodeStatus maps a decode failure to its HTTP status. Failures caused by
// the submitted layout or stream are 422; anything else is the server's.
func decodeStatus(err error) int {
	if weights.Kind(err) == "internal" {
		return http.StatusInternalServerError
	}
	return http.StatusUnprocessableEntity
}
