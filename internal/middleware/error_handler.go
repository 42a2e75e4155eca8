package middleware

import (
	"context"
	"errors"
	"net/http"

	"adBudgetEngine/domain"
	"adBudgetEngine/pkg/logger"
	jsonres "adBudgetEngine/pkg/response"

	"github.com/labstack/echo/v4"
)

// StatusFor maps engine errors onto HTTP.
func StatusFor(err error) (int, string) {
	var failure *domain.ExternalCallFailure
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "BAD_REQUEST"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrInvalidState):
		return http.StatusConflict, "INVALID_STATE"
	case errors.Is(err, domain.ErrStaleData):
		return http.StatusConflict, "STALE_DATA"
	case errors.Is(err, domain.ErrOrphanEvent):
		return http.StatusUnprocessableEntity, "ORPHAN_EVENT"
	case errors.Is(err, domain.ErrConstraintViolation):
		return http.StatusUnprocessableEntity, "CONSTRAINT_VIOLATION"
	case errors.Is(err, domain.ErrLowConfidence):
		return http.StatusUnprocessableEntity, "LOW_CONFIDENCE"
	case errors.As(err, &failure),
		errors.Is(err, domain.ErrRateLimited),
		errors.Is(err, domain.ErrAuth),
		errors.Is(err, domain.ErrInvalidSpec):
		return http.StatusBadGateway, "EXTERNAL_CALL_FAILURE"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "TIMEOUT"
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR"
}

// ErrorHandler is installed as echo's HTTPErrorHandler.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if m, ok := he.Message.(string); ok {
			msg = m
		}
		_ = c.JSON(he.Code, jsonres.Error(http.StatusText(he.Code), msg, nil))
		return
	}

	status, code := StatusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request_failed", "method", c.Request().Method, "path", c.Path(), "status", status, "error", err)
	}
	_ = c.JSON(status, jsonres.Error(code, err.Error(), nil))
}
