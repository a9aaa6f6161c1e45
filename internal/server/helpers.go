package server

import (
	"strings"

	"github.com/faireye-hive/hive-cache/internal/models"
	"github.com/faireye-hive/hive-cache/internal/observability"
	"github.com/faireye-hive/hive-cache/internal/pipeline"

	"github.com/gofiber/fiber/v2"
)

const maxPageSize = 200

// sessionUser is the logged-in moderator, or "" without a session.
func (s *Server) sessionUser() string {
	if sess := s.moderation.Session(); sess != nil {
		return sess.Username
	}
	return ""
}

// moderator is the acting moderator of the request.
func moderator(c *fiber.Ctx) string {
	if m, ok := c.Locals("moderator").(string); ok && m != "" {
		return m
	}
	return observability.ModeratorFrom(c.UserContext())
}

// respond writes err with the status its code maps to.
func respond(c *fiber.Ctx, err error) error {
	return models.RespondWithError(c, models.StatusFor(err), err)
}

// parseView reads ?type, ?sort, ?page and ?pageSize. Unknown values are
// rejected; a missing page size uses the moderator's settings.
func parseView(c *fiber.Ctx) (pipeline.View, error) {
	t, ok := pipeline.ParsePostType(c.Query("type"))
	if !ok {
		return pipeline.View{}, models.NewValidationError("unknown post type " + quote(c.Query("type")))
	}
	order, ok := pipeline.ParseSortOrder(c.Query("sort"))
	if !ok {
		return pipeline.View{}, models.NewValidationError("unknown sort order " + quote(c.Query("sort")))
	}
	size := c.QueryInt("pageSize", 0)
	if size < 0 {
		size = 0
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return pipeline.View{
		Type:     t,
		Sort:     order,
		Page:     c.QueryInt("page", 1),
		PageSize: size,
	}, nil
}

func quote(s string) string {
	return "\"" + strings.ReplaceAll(s, "\"", "'") + "\""
}
