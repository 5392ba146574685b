package controller

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sharetube/listenroom/internal/service/room"
	"github.com/sharetube/listenroom/pkg/rest"
	"github.com/sharetube/listenroom/pkg/validator"
	"github.com/sharetube/listenroom/pkg/wsrouter"
)

const codeInvalidInput = "INVALID_INPUT"

var errInvalidInput = errors.New("invalid input")

type inputError struct {
	errors []validator.ValidationError
}

func (e *inputError) Error() string {
	msgs := make([]string, len(e.errors))
	for i, ve := range e.errors {
		msgs[i] = ve.Message
	}
	return strings.Join(msgs, "; ")
}

func (e *inputError) Unwrap() error {
	return errInvalidInput
}

func (c controller) validateInput(input any) error {
	if verrs, ok := c.validate.Validate(input); !ok {
		return &inputError{errors: verrs}
	}
	return nil
}

// errorCode is the client-facing classification of err.
func errorCode(err error) string {
	if errors.Is(err, errInvalidInput) || errors.Is(err, wsrouter.ErrInvalidPayload) {
		return codeInvalidInput
	}
	return string(room.KindOf(err))
}

// errorMessage hides internal details from clients.
func errorMessage(err error) string {
	if errorCode(err) == string(room.KindInternal) {
		return "internal error"
	}
	return err.Error()
}

func statusOf(code string) int {
	switch code {
	case codeInvalidInput:
		return http.StatusBadRequest
	case string(room.KindUnauthenticated):
		return http.StatusUnauthorized
	case string(room.KindUnauthorized):
		return http.StatusForbidden
	case string(room.KindPolicyRejected):
		return http.StatusUnprocessableEntity
	case string(room.KindNotFound):
		return http.StatusNotFound
	case string(room.KindUpstreamUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (c controller) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := errorCode(err)
	status := statusOf(code)
	if status == http.StatusInternalServerError {
		c.logger.ErrorContext(r.Context(), "request failed", "error", err)
	} else {
		c.logger.DebugContext(r.Context(), "request rejected", "code", code, "error", err)
	}

	var ie *inputError
	if errors.As(err, &ie) {
		rest.WriteJSON(w, status, rest.Envelope{"error": fmt.Sprintf("%s: %s", errInvalidInput, ie), "errors": ie.errors, "code": code})
		return
	}

	rest.WriteJSON(w, status, rest.Envelope{"error": errorMessage(err), "code": code})
}
