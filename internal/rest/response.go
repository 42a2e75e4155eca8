package rest

import (
	"errors"
	"net/http"

	"adBudgetEngine/internal/middleware"
	"adBudgetEngine/pkg/logger"

	"github.com/labstack/echo/v4"
)

// ResponseError represent the response error struct
type ResponseError struct {
	Message string `json:"message"`
}

var errMissingID = errors.New("id is required")

func respondError(c echo.Context, msg string, err error) error {
	status, _ := middleware.StatusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error(msg, "path", c.Path(), "error", err)
	} else {
		logger.Warn(msg, "path", c.Path(), "error", err)
	}
	return c.JSON(status, ResponseError{Message: err.Error()})
}
