package server

import (
	"github.com/faireye-hive/hive-cache/internal/models"
	"github.com/faireye-hive/hive-cache/internal/stats"

	"github.com/gofiber/fiber/v2"
)

// GetSettings handles GET /api/settings
func (s *Server) GetSettings(c *fiber.Ctx) error {
	return c.JSON(s.moderation.Settings())
}

// UpdateSettings handles PUT /api/settings. Omitted fields keep their
// current value.
func (s *Server) UpdateSettings(c *fiber.Ctx) error {
	req := s.moderation.Settings()
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	updated, err := s.moderation.UpdateSettings(c.UserContext(), req)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(updated)
}

// GetSession handles GET /api/session
func (s *Server) GetSession(c *fiber.Ctx) error {
	sess := s.moderation.Session()
	if sess == nil {
		return c.JSON(fiber.Map{"loggedIn": false})
	}
	return c.JSON(fiber.Map{"loggedIn": true, "session": sess})
}

// Login handles PUT /api/session {"username": "..."}
func (s *Server) Login(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	sess, err := s.moderation.Login(c.UserContext(), req.Username)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(fiber.Map{"loggedIn": true, "session": sess})
}

// Logout handles DELETE /api/session
func (s *Server) Logout(c *fiber.Ctx) error {
	s.moderation.Logout(c.UserContext())
	return c.SendStatus(fiber.StatusNoContent)
}

// GetSummary handles GET /api/stats/summary
func (s *Server) GetSummary(c *fiber.Ctx) error {
	out, err := s.moderation.Summary(c.UserContext())
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(out)
}

// GetApps handles GET /api/stats/apps
func (s *Server) GetApps(c *fiber.Ctx) error {
	out, err := s.moderation.Apps(c.UserContext())
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(out)
}

// GetPanel handles GET /api/stats/panel
func (s *Server) GetPanel(c *fiber.Ctx) error {
	return c.JSON(s.moderation.Panel())
}

// GetPostRankings handles GET /api/rankings/posts?hours=
func (s *Server) GetPostRankings(c *fiber.Ctx) error {
	return s.rankings(c, stats.RankByPosts)
}

// GetPayoutRankings handles GET /api/rankings/payout?hours=
func (s *Server) GetPayoutRankings(c *fiber.Ctx) error {
	return s.rankings(c, stats.RankByPayout)
}

func (s *Server) rankings(c *fiber.Ctx, by stats.RankBy) error {
	hours := c.QueryInt("hours", 0)
	out, err := s.moderation.Rankings(c.UserContext(), by, hours)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(fiber.Map{"by": by, "hours": hours, "authors": out})
}

// GetCurrentNotification handles GET /api/notifications/current. Without a
// displayed notification it answers 204.
func (s *Server) GetCurrentNotification(c *fiber.Ctx) error {
	n := s.queue.Current()
	if n == nil {
		return c.SendStatus(fiber.StatusNoContent)
	}
	return c.JSON(fiber.Map{"notification": n, "queued": s.queue.Len()})
}

// DismissNotification handles DELETE /api/notifications/current
func (s *Server) DismissNotification(c *fiber.Ctx) error {
	s.queue.Dismiss()
	return c.SendStatus(fiber.StatusNoContent)
}

// GetCacheStats handles GET /api/cache/stats
func (s *Server) GetCacheStats(c *fiber.Ctx) error {
	return c.JSON(s.moderation.CacheStats(c.UserContext()))
}

// ClearCache handles DELETE /api/cache
func (s *Server) ClearCache(c *fiber.Ctx) error {
	if err := s.moderation.ClearCache(c.UserContext()); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetFeatureFlags returns configured flags and their evaluation for the
// acting moderator.
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	mod := moderator(c)
	return c.JSON(fiber.Map{
		"moderator": mod,
		"raw":       s.featureFlags.Raw(),
		"evaluated": s.featureFlags.Snapshot(mod),
	})
}
