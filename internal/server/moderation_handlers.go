package server

import (
	"errors"
	"log/slog"
	"strconv"

	"github.com/faireye-hive/hive-cache/internal/featureflags"
	"github.com/faireye-hive/hive-cache/internal/models"
	"github.com/faireye-hive/hive-cache/internal/notifications"

	"github.com/gofiber/fiber/v2"
)

// GetMutes handles GET /api/mutes
func (s *Server) GetMutes(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"authors": s.moderation.Mutes()})
}

// MuteAuthor handles POST /api/mutes/:author
func (s *Server) MuteAuthor(c *fiber.Ctx) error {
	author := c.Params("author")
	changed, err := s.moderation.Mute(c.UserContext(), author)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(fiber.Map{"author": author, "muted": true, "changed": changed})
}

// UnmuteAuthor handles DELETE /api/mutes/:author
func (s *Server) UnmuteAuthor(c *fiber.Ctx) error {
	author := c.Params("author")
	changed, err := s.moderation.Unmute(c.UserContext(), author)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(fiber.Map{"author": author, "muted": false, "changed": changed})
}

// GetScans handles GET /api/scans
func (s *Server) GetScans(c *fiber.Ctx) error {
	return c.JSON(s.moderation.LastScans())
}

// ScanSpam handles POST /api/scans/spam. The sweep runs after the configured
// delay; progress arrives as alerts.
func (s *Server) ScanSpam(c *fiber.Ctx) error {
	s.moderation.ScanSpam(c.UserContext())
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"scanner": "spam", "scheduled": true})
}

// ScanPlagiarism handles POST /api/scans/plagiarism
func (s *Server) ScanPlagiarism(c *fiber.Ctx) error {
	s.moderation.ScanPlagiarism(c.UserContext())
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"scanner": "plagiarism", "scheduled": true})
}

// AdvancedRequired rejects requests while the advanced_scan flag is off for
// the acting moderator.
func (s *Server) AdvancedRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		enabled := s.moderation.AdvancedEnabled()
		if mod := moderator(c); mod != "" && s.featureFlags != nil {
			enabled = s.featureFlags.Enabled(featureflags.AdvancedScan, mod)
		}
		if !enabled {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("advanced scan is not enabled"))
		}
		return c.Next()
	}
}

// AdvancedScan handles GET /api/scans/advanced?threshold=
func (s *Server) AdvancedScan(c *fiber.Ctx) error {
	threshold := 0.0
	if raw := c.Query("threshold"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 || v > 1 {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("threshold must be a number between 0 and 1"))
		}
		threshold = v
	}
	scores, err := s.moderation.AdvancedScan(c.UserContext(), threshold)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(fiber.Map{"results": scores, "total": len(scores)})
}

// AdvancedScanPost handles GET /api/scans/advanced/:id
func (s *Server) AdvancedScanPost(c *fiber.Ctx) error {
	score, err := s.moderation.AdvancedScanPost(c.Params("id"))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(score)
}

// GetConfirmations handles GET /api/confirmations
func (s *Server) GetConfirmations(c *fiber.Ctx) error {
	return c.JSON(s.confirmations.Pending())
}

// AnswerConfirmation handles POST /api/confirmations/:id {"approve": bool}
func (s *Server) AnswerConfirmation(c *fiber.Ctx) error {
	var req struct {
		Approve bool `json:"approve"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	id := c.Params("id")
	if err := s.confirmations.Answer(id, req.Approve); err != nil {
		if errors.Is(err, notifications.ErrUnknownPrompt) {
			return models.RespondWithError(c, fiber.StatusNotFound,
				models.NewNotFoundError("Confirmation", id))
		}
		return respond(c, err)
	}
	s.logger.InfoContext(c.UserContext(), "confirmation answered",
		slog.String("prompt", id),
		slog.Bool("approve", req.Approve),
	)
	return c.JSON(fiber.Map{"id": id, "approve": req.Approve})
}
