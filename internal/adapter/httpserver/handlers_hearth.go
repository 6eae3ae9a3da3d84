package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/hearth/internal/domain"
	apperrors "github.com/pscheid92/hearth/internal/platform/errors"
)

const (
	maxContributorIDLength = 128
	maxLabelLength         = 100
	maxProtectionDuration  = 7 * 24 * time.Hour
)

type contributionRequest struct {
	ContributorID string `json:"contributor_id"`
	Label         string `json:"label"`
}

type protectionRequest struct {
	ContributorID   string `json:"contributor_id"`
	Label           string `json:"label"`
	DurationSeconds int64  `json:"duration_seconds"`
}

func (s *Server) registerHearthRoutes(api *echo.Group) {
	api.GET("/hearth", s.handleStatus)
	api.GET("/hearth/multiplier", s.handleMultiplier)
	api.POST("/hearth/contributions", s.handleContribute)
	api.POST("/hearth/protections", s.handleProtect)
}

func (s *Server) handleStatus(c echo.Context) error {
	if err := c.JSON(http.StatusOK, s.app.Status(c.Request().Context())); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleMultiplier(c echo.Context) error {
	multiplier := s.app.CurrentMultiplier(c.Request().Context())
	if err := c.JSON(http.StatusOK, map[string]float64{"multiplier": multiplier}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleContribute(c echo.Context) error {
	var req contributionRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if err := validateContributor(req.ContributorID, req.Label); err != nil {
		return err
	}

	result := s.app.AddContribution(c.Request().Context(), req.ContributorID, labelOrID(req.Label, req.ContributorID))
	return writeResult(c, result)
}

func (s *Server) handleProtect(c echo.Context) error {
	var req protectionRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if err := validateContributor(req.ContributorID, req.Label); err != nil {
		return err
	}

	// Bound the seconds before converting so huge values cannot overflow into
	// a short duration. Non-positive values reach the engine as 0 and are
	// rejected there as invalid_duration.
	maxSeconds := int64(maxProtectionDuration / time.Second)
	if req.DurationSeconds > maxSeconds {
		return apperrors.ValidationError("protection duration too long").WithField("max_seconds", maxSeconds)
	}
	duration := time.Duration(max(req.DurationSeconds, 0)) * time.Second

	result := s.app.ActivateProtection(c.Request().Context(), req.ContributorID, labelOrID(req.Label, req.ContributorID), duration)
	return writeResult(c, result)
}

func validateContributor(contributorID, label string) error {
	if len(contributorID) > maxContributorIDLength {
		return apperrors.ValidationError("contributor_id too long").WithField("max_length", maxContributorIDLength)
	}
	if len(label) > maxLabelLength {
		return apperrors.ValidationError("label too long").WithField("max_length", maxLabelLength)
	}
	return nil
}

func labelOrID(label, contributorID string) string {
	if label = strings.TrimSpace(label); label != "" {
		return label
	}
	return contributorID
}

// writeResult sends the engine result with a status derived from its reason.
// Rejections still carry the full result body.
func writeResult(c echo.Context, result domain.Result) error {
	if err := c.JSON(resultStatus(result), result); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func resultStatus(result domain.Result) int {
	if result.OK {
		return http.StatusOK
	}
	if !result.Rejected() {
		return http.StatusInternalServerError
	}

	err := result.Reason.Err()
	switch {
	case errors.Is(err, domain.ErrCooldownActive), errors.Is(err, domain.ErrCapacityReached), errors.Is(err, domain.ErrNoUnit):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidDuration), errors.Is(err, domain.ErrInvalidContributor):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrPersistence):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
