package server

import (
	"strings"
	"time"

	"github.com/faireye-hive/hive-cache/internal/models"
	"github.com/faireye-hive/hive-cache/internal/pipeline"

	"github.com/gofiber/fiber/v2"
)

// ImportFeed handles POST /api/feed/import
func (s *Server) ImportFeed(c *fiber.Ctx) error {
	res, err := s.moderation.Reload(c.UserContext())
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(res)
}

// UploadFeed handles POST /api/feed/upload with an NDJSON body.
func (s *Server) UploadFeed(c *fiber.Ctx) error {
	body := c.Body()
	if len(body) == 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Request body is empty"))
	}
	res, err := s.moderation.Upload(c.UserContext(), append([]byte(nil), body...))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(res)
}

// GetPosts handles GET /api/posts
func (s *Server) GetPosts(c *fiber.Ctx) error {
	view, err := parseView(c)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(s.moderation.Page(view))
}

// SearchPosts handles POST /api/posts/search. With "debounce" set the search
// is applied after the debounce window and the request returns 202.
func (s *Server) SearchPosts(c *fiber.Ctx) error {
	var req struct {
		Query    string `json:"query"`
		Field    string `json:"field"`
		Debounce bool   `json:"debounce"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	field, ok := pipeline.ParseField(req.Field)
	if !ok {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("unknown search field "+quote(req.Field)))
	}
	view, err := parseView(c)
	if err != nil {
		return respond(c, err)
	}

	if req.Debounce {
		s.moderation.SearchAsync(req.Query, field)
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"pending": true})
	}
	return c.JSON(s.moderation.Search(req.Query, field, view))
}

// FilterPosts handles POST /api/posts/filter
func (s *Server) FilterPosts(c *fiber.Ctx) error {
	var req struct {
		Filter string `json:"filter"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	f, ok := pipeline.ParseQuickFilter(req.Filter)
	if !ok {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("unknown filter "+quote(req.Filter)))
	}
	view, err := parseView(c)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(s.moderation.Filter(f, view))
}

// AdvancedSearch handles POST /api/posts/advanced-search. Dates are
// YYYY-MM-DD or RFC 3339; dateTo covers the whole day.
func (s *Server) AdvancedSearch(c *fiber.Ctx) error {
	var req struct {
		Author    string  `json:"author"`
		Title     string  `json:"title"`
		Tags      string  `json:"tags"`
		Content   string  `json:"content"`
		DateFrom  string  `json:"dateFrom"`
		DateTo    string  `json:"dateTo"`
		MinPayout float64 `json:"minPayout"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	criteria := pipeline.Criteria{
		Author:    req.Author,
		Title:     req.Title,
		Tags:      req.Tags,
		Content:   req.Content,
		MinPayout: req.MinPayout,
	}
	var err error
	if criteria.DateFrom, err = parseDate(req.DateFrom, false); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("invalid dateFrom"))
	}
	if criteria.DateTo, err = parseDate(req.DateTo, true); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("invalid dateTo"))
	}
	return c.JSON(s.moderation.AdvancedSearch(criteria))
}

func parseDate(s string, endOfDay bool) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

// GetPost handles GET /api/posts/:id
func (s *Server) GetPost(c *fiber.Ctx) error {
	detail, err := s.moderation.Post(c.Params("id"))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(detail)
}

// GetAuthorPosts handles GET /api/authors/:author/posts
func (s *Server) GetAuthorPosts(c *fiber.Ctx) error {
	return c.JSON(s.moderation.AuthorPosts(c.Params("author")))
}

// ToggleFlag handles POST /api/posts/:id/flag
func (s *Server) ToggleFlag(c *fiber.Ctx) error {
	res, err := s.moderation.ToggleFlag(c.UserContext(), c.Params("id"))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(res)
}

// GetFlagged handles GET /api/flags
func (s *Server) GetFlagged(c *fiber.Ctx) error {
	return c.JSON(s.moderation.Flagged(c.QueryInt("page", 1)))
}
