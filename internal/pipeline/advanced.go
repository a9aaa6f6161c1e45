package pipeline

import (
	"regexp"
	"strings"
	"time"

	"github.com/faireye-hive/hive-cache/internal/models"
	"github.com/faireye-hive/hive-cache/internal/sanitize"
)

// AdvancedResultLimit caps the posts returned by AdvancedSearch.
const AdvancedResultLimit = 50

// Criteria is a conjunctive advanced search. Zero values disable a clause.
type Criteria struct {
	Author    string    `json:"author"`
	Title     string    `json:"title"`
	Tags      string    `json:"tags"`
	Content   string    `json:"content"`
	DateFrom  time.Time `json:"dateFrom"`
	DateTo    time.Time `json:"dateTo"`
	MinPayout float64   `json:"minPayout"`
}

// AdvancedResult holds the capped matches and the full match count.
type AdvancedResult struct {
	Posts []models.Post `json:"posts"`
	Total int           `json:"total"`
	Regex bool          `json:"regex"`
}

// contentMatcher returns a predicate over the post body. Queries containing
// '*', '[' or '(' are compiled as case-insensitive patterns; a pattern that
// does not compile falls back to substring matching.
func contentMatcher(query string) (func(string) bool, bool) {
	q := strings.ToLower(query)
	if strings.ContainsAny(q, "*[(") {
		if re, err := regexp.Compile("(?i)" + q); err == nil {
			return re.MatchString, true
		}
	}
	return func(body string) bool { return strings.Contains(strings.ToLower(body), q) }, false
}

// AdvancedSearch applies every non-empty clause of c over posts.
func AdvancedSearch(posts []models.Post, c Criteria) AdvancedResult {
	author := strings.ToLower(strings.TrimSpace(c.Author))
	title := strings.ToLower(strings.TrimSpace(c.Title))

	var tagTerms []string
	for _, t := range strings.Split(strings.ToLower(c.Tags), ",") {
		if t = strings.TrimSpace(t); t != "" {
			tagTerms = append(tagTerms, t)
		}
	}

	var content func(string) bool
	regex := false
	if q := strings.TrimSpace(c.Content); q != "" {
		content, regex = contentMatcher(q)
	}

	matches := where(posts, func(p *models.Post) bool {
		if author != "" && !strings.Contains(strings.ToLower(p.Author), author) {
			return false
		}
		if title != "" && !strings.Contains(strings.ToLower(sanitize.Text(p.Title)), title) {
			return false
		}
		if len(tagTerms) > 0 && !anyTag(p.TagString(), tagTerms) {
			return false
		}
		if content != nil && !content(sanitize.Text(p.Body)) {
			return false
		}
		if !c.DateFrom.IsZero() && p.Created.Before(c.DateFrom) {
			return false
		}
		if !c.DateTo.IsZero() && p.Created.After(c.DateTo) {
			return false
		}
		if c.MinPayout > 0 && p.PendingPayout < c.MinPayout {
			return false
		}
		return true
	})

	res := AdvancedResult{Total: len(matches), Regex: regex, Posts: matches}
	if len(matches) > AdvancedResultLimit {
		res.Posts = matches[:AdvancedResultLimit]
	}
	return res
}

func anyTag(tags string, terms []string) bool {
	if tags == "" {
		return false
	}
	for _, t := range terms {
		if strings.Contains(tags, t) {
			return true
		}
	}
	return false
}
