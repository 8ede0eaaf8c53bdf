package apierror

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"agrolime/liming-portal-backend/internal/agronomy"
	"agrolime/liming-portal-backend/pkg/workflows"
)

var (
	// ErrNotFound is wrapped by every missing-record error
	ErrNotFound = errors.New("not found")
	// ErrConflict is wrapped by errors caused by the current record state
	ErrConflict = errors.New("conflict")
	// ErrBadRequest is wrapped by malformed requests that are not field errors
	ErrBadRequest = errors.New("bad request")
)

type kindError struct {
	msg  string
	kind error
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

// NewConflict returns a sentinel-style error that maps to 409
func NewConflict(msg string) error { return &kindError{msg: msg, kind: ErrConflict} }

// NewBadRequest returns a sentinel-style error that maps to 400
func NewBadRequest(msg string) error { return &kindError{msg: msg, kind: ErrBadRequest} }

// PartialFailure is implemented by errors reporting per-item outcomes
type PartialFailure interface {
	error
	Items() (succeeded []string, failed map[string]string)
}

// Status maps an error to its HTTP status code
func Status(err error) int {
	var fe *agronomy.FieldError
	var te *workflows.TransitionError
	var pf PartialFailure
	switch {
	case errors.As(err, &pf):
		return http.StatusMultiStatus
	case errors.As(err, &fe), errors.Is(err, agronomy.ErrInputOutOfRange), errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, agronomy.ErrInconsistentSequence), errors.Is(err, ErrConflict), errors.As(err, &te):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// Respond writes err as JSON. Field errors carry field and reason, partial
// failures carry the per-item outcome, and server errors are logged.
func Respond(c *gin.Context, logger *zap.Logger, err error) {
	status := Status(err)
	body := gin.H{"error": err.Error()}

	var fe *agronomy.FieldError
	if errors.As(err, &fe) {
		body["field"] = fe.Field
		body["reason"] = fe.Reason
	}
	var pf PartialFailure
	if errors.As(err, &pf) {
		succeeded, failed := pf.Items()
		body["succeeded"] = succeeded
		body["failed"] = failed
	}

	if status >= http.StatusInternalServerError {
		logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}
	c.JSON(status, body)
}

// Validation writes a full validation result as 400
func Validation(c *gin.Context, res *agronomy.ValidationResults) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":    "validation failed",
		"errors":   res.Errors,
		"warnings": res.Warnings,
	})
}
