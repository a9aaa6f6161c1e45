// Package scanner implements the batch spam, plagiarism and multi-signal
// detectors and the machinery that runs them in the background.
package scanner

import (
	"strings"

	"github.com/faireye-hive/hive-cache/internal/models"
	"github.com/faireye-hive/hive-cache/internal/rules"
	"github.com/faireye-hive/hive-cache/internal/sanitize"
	"github.com/faireye-hive/hive-cache/internal/stats"
)

// Scanner names, used for metrics labels and notifications.
const (
	NameSpam       = "spam"
	NamePlagiarism = "plagiarism"
	NameAdvanced   = "advanced"
)

// Spam returns the posts matching any spam criterion, in input order:
// a configured phrase in the sanitized body or title, an author above
// MaxAuthorPosts posts, or an author with more than MaxShortPosts posts
// whose sanitized body is shorter than ShortBodyLength.
func Spam(posts []models.Post, r rules.SpamRules) []models.Post {
	phrases := make([]string, 0, len(r.Phrases))
	for _, p := range r.Phrases {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			phrases = append(phrases, p)
		}
	}

	counts := stats.Build(posts)
	short := stats.CountShort(posts, r.ShortBodyLength)

	out := make([]models.Post, 0)
	for i := range posts {
		p := &posts[i]
		if counts.Get(p.Author).PostCount > r.MaxAuthorPosts || short[p.Author] > r.MaxShortPosts {
			out = append(out, *p)
			continue
		}
		if containsAny(strings.ToLower(sanitize.Text(p.Body)), phrases) ||
			containsAny(strings.ToLower(sanitize.Text(p.Title)), phrases) {
			out = append(out, *p)
		}
	}
	return out
}

// Plagiarism returns every post whose sanitized body prefix repeats an
// earlier post's. The first occurrence is never a suspect.
func Plagiarism(posts []models.Post, r rules.PlagiarismRules) []models.Post {
	seen := make(map[string]struct{})
	out := make([]models.Post, 0)
	for i := range posts {
		p := &posts[i]
		if len(p.Body) < r.MinBodyLength {
			continue
		}
		key := strings.ToLower(sanitize.Prefix(p.Body, r.PrefixLength))
		if _, dup := seen[key]; dup {
			out = append(out, *p)
			continue
		}
		seen[key] = struct{}{}
	}
	return out
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
