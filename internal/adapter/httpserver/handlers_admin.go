package httpserver

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pscheid92/hearth/internal/app"
	"github.com/pscheid92/hearth/internal/domain"
	apperrors "github.com/pscheid92/hearth/internal/platform/errors"
)

type grantRequest struct {
	Units int64 `json:"units"`
}

type grantResponse struct {
	ContributorID string `json:"contributor_id"`
	Units         int64  `json:"units"`
}

// registerAdminRoutes mounts the ops endpoints behind a bearer token.
// Without ADMIN_TOKEN the routes do not exist.
func (s *Server) registerAdminRoutes(api *echo.Group) {
	if s.config.AdminToken == "" {
		return
	}

	token := []byte(s.config.AdminToken)
	admin := api.Group("/admin", middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
		KeyLookup:  "header:Authorization",
		AuthScheme: "Bearer",
		Validator: func(key string, _ echo.Context) (bool, error) {
			return subtle.ConstantTimeCompare([]byte(key), token) == 1, nil
		},
	}))

	admin.POST("/season-reset", s.handleSeasonReset)
	admin.POST("/inventory/:contributor_id", s.handleGrantUnits)
}

func (s *Server) handleSeasonReset(c echo.Context) error {
	view, err := s.app.ResetSeason(c.Request().Context())
	if errors.Is(err, app.ErrUnsupported) {
		return apperrors.NotFoundError("season reset is not available")
	}
	if err != nil {
		return apperrors.InternalError("failed to reset season", err)
	}

	if err := c.JSON(http.StatusOK, view); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleGrantUnits(c echo.Context) error {
	contributorID := c.Param("contributor_id")

	var req grantRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if req.Units <= 0 {
		return apperrors.ValidationError("units must be positive").WithField("units", req.Units)
	}

	units, err := s.app.GrantUnits(c.Request().Context(), contributorID, req.Units)
	switch {
	case errors.Is(err, domain.ErrInvalidContributor):
		return apperrors.ValidationError("contributor_id is required")
	case errors.Is(err, app.ErrUnsupported):
		return apperrors.NotFoundError("inventory grants are not available for this backend")
	case err != nil:
		return apperrors.ExternalError("failed to grant units", err).WithField("contributor_id", contributorID)
	}

	if err := c.JSON(http.StatusOK, grantResponse{ContributorID: contributorID, Units: units}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}
