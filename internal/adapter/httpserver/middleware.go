package httpserver

import (
	"errors"
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/hearth/internal/platform/correlation"
	apperrors "github.com/pscheid92/hearth/internal/platform/errors"
)

const correlationHeader = "X-Correlation-ID"

// correlationMiddleware tags the request context with a correlation ID,
// reusing one sent by the client when it is safe to log.
func correlationMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Request().Header.Get(correlationHeader)
		if !correlation.Valid(id) {
			id = correlation.NewID()
		}
		ctx := correlation.WithID(c.Request().Context(), id)
		c.SetRequest(c.Request().WithContext(ctx))
		c.Response().Header().Set(correlationHeader, id)
		return next(c)
	}
}

// httpErrorHandler renders Echo's own errors (unknown route, body limit,
// missing admin token) in the same JSON shape as handler errors.
func httpErrorHandler(errorsTotal *prometheus.CounterVec) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		httpErr, ok := errors.AsType[*echo.HTTPError](err)
		if !ok {
			_ = apperrors.HandleError(c, errorsTotal, err)
			return
		}

		structuredErr := apperrors.WrapHTTPError(httpErr)
		if err := c.JSON(httpErr.Code, structuredErr.ToResponse()); err != nil {
			slog.WarnContext(c.Request().Context(), "Failed to write error response", "error", err)
		}
	}
}
