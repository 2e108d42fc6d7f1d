package api

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/labsuite/labops/internal/httputil"
	"github.com/labsuite/labops/internal/metrics"
	"github.com/labsuite/labops/internal/models"
	"github.com/labsuite/labops/internal/push"
	"github.com/labsuite/labops/internal/service"
)

// Error code constants for standardized API responses.
const (
	ErrCodeInvalidRequest  = "invalid_request"
	ErrCodeNotFound        = "not_found"
	ErrCodeInternalError   = "internal_error"
	ErrCodeUnauthorized    = "unauthorized"
	ErrCodeForbidden       = "forbidden"
	ErrCodeConflict        = "conflict"
	ErrCodeRateLimited     = "rate_limited"
	ErrCodeValidationError = "validation_error"
	ErrCodeTooLarge        = "payload_too_large"
	ErrCodeUnavailable     = "service_unavailable"
)

// respondError writes a standardized JSON error response, pulling the request
// ID from the Gin context (set by the request ID middleware).
func respondError(c *gin.Context, status int, code, message string) {
	metrics.ErrorsTotal.WithLabelValues(code).Inc()
	httputil.RespondError(c, status, code, message)
}

func respondValidation(c *gin.Context, problems []string) {
	metrics.ErrorsTotal.WithLabelValues(ErrCodeValidationError).Inc()
	httputil.RespondValidation(c, http.StatusBadRequest, ErrCodeValidationError, "validation failed", problems)
}

// responder maps service errors onto HTTP responses. Only internal errors
// are logged at error level; their detail is hidden unless dev is set.
type responder struct {
	log *logrus.Logger
	dev bool
}

func (r responder) fail(c *gin.Context, err error) {
	var verr *models.ValidationError
	var maxBytes *http.MaxBytesError

	switch {
	case errors.As(err, &verr):
		respondValidation(c, verr.Problems)
	case errors.As(err, &maxBytes):
		respondError(c, http.StatusRequestEntityTooLarge, ErrCodeTooLarge, "request body too large")
	case errors.Is(err, service.ErrLoginLocked):
		respondError(c, http.StatusTooManyRequests, ErrCodeRateLimited, err.Error())
	case errors.Is(err, models.ErrUnauthorized):
		respondError(c, http.StatusUnauthorized, ErrCodeUnauthorized, err.Error())
	case errors.Is(err, models.ErrForbidden):
		respondError(c, http.StatusForbidden, ErrCodeForbidden, err.Error())
	case errors.Is(err, models.ErrNotFound):
		respondError(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, models.ErrConflict):
		respondError(c, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, push.ErrTooManyConnections), errors.Is(err, push.ErrHubClosed):
		respondError(c, http.StatusServiceUnavailable, ErrCodeUnavailable, err.Error())
	default:
		r.log.WithError(err).WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"request_id": c.GetString("request_id"),
		}).Error("request failed")

		msg := "internal server error"
		if r.dev {
			msg = err.Error()
		}
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, msg)
	}
}

// bindJSON decodes the body into dst and runs its binding tags. On failure
// the error response has already been written.
func (r responder) bindJSON(c *gin.Context, dst any) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return true
	}

	var verrs validator.ValidationErrors
	var maxBytes *http.MaxBytesError

	switch {
	case errors.As(err, &verrs):
		respondValidation(c, describeValidation(verrs))
	case errors.As(err, &maxBytes):
		respondError(c, http.StatusRequestEntityTooLarge, ErrCodeTooLarge, "request body too large")
	default:
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body")
	}

	return false
}

func describeValidation(verrs validator.ValidationErrors) []string {
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, describeField(fe))
	}

	return out
}

func describeField(fe validator.FieldError) string {
	name := fe.Namespace()
	if i := strings.IndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}

	unit := "characters"
	if k := fe.Kind(); k == reflect.Slice || k == reflect.Array || k == reflect.Map {
		unit = "items"
	}

	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "email":
		return name + " must be a valid email address"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", name, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "min":
		return fmt.Sprintf("%s must be at least %s %s", name, fe.Param(), unit)
	case "max":
		return fmt.Sprintf("%s must be at most %s %s", name, fe.Param(), unit)
	default:
		return fmt.Sprintf("%s is invalid (%s)", name, fe.Tag())
	}
}

var jsonNamesOnce sync.Once

// useJSONFieldNames makes validator report fields by their JSON names.
func useJSONFieldNames() {
	jsonNamesOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}

		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}

			return name
		})
	})
}
