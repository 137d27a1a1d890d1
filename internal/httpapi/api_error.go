package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/convkit/convertor/internal/fetch"
	"github.com/convkit/convertor/internal/model"
	"github.com/convkit/convertor/internal/provider"
	"github.com/convkit/convertor/internal/urlbuilder"
)

// APIError is used by the HTTP layer for request validation and a few
// HTTP-specific errors.
type APIError struct {
	Status  int
	Code    string
	Message string
	Cause   error
}

func (e *APIError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
}

func (e *APIError) Unwrap() error { return e.Cause }

func requestError(code, message string) error {
	return &APIError{Status: http.StatusBadRequest, Code: code, Message: message}
}

func writeErrorFromErr(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	var ae *APIError
	if errors.As(err, &ae) {
		WriteError(w, ae.Status, ae.Code, ae.Message)
		return
	}

	var fe *fetch.Error
	if errors.As(err, &fe) {
		WriteError(w, fe.Status, fe.Code, fe.Message)
		return
	}

	var qe *urlbuilder.QueryError
	if errors.As(err, &qe) {
		WriteError(w, http.StatusBadRequest, "INVALID_ARGUMENT", qe.Error())
		return
	}

	var ue *urlbuilder.Error
	if errors.As(err, &ue) {
		WriteError(w, http.StatusBadRequest, "INVALID_ARGUMENT", ue.Error())
		return
	}

	// Profile content the upstream handed us failed to parse => 422.
	var pe *model.ParseError
	if errors.As(err, &pe) {
		WriteError(w, http.StatusUnprocessableEntity, "PARSE_FAILED", pe.Error())
		return
	}

	var re *model.RenderError
	if errors.As(err, &re) {
		WriteError(w, http.StatusUnprocessableEntity, "RENDER_FAILED", re.Error())
		return
	}

	var pre *provider.Error
	if errors.As(err, &pre) {
		WriteError(w, http.StatusBadGateway, "PROVIDER_FAILED", pre.Error())
		return
	}

	// Fallback: internal bug.
	WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "服务端内部错误")
}
