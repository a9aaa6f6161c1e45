package stats

import (
	"regexp"
	"sort"
	"strings"

	"github.com/faireye-hive/hive-cache/internal/models"
)

// HighPayoutThreshold is the pending payout above which a post is counted
// as high payout.
const HighPayoutThreshold = 100

// Summary is the statistics panel of the dashboard.
type Summary struct {
	TotalPosts        int             `json:"totalPosts"`
	UniqueAuthors     int             `json:"uniqueAuthors"`
	AvgPostsPerAuthor float64         `json:"avgPostsPerAuthor"`
	DeletionRate      float64         `json:"deletionRate"`
	FlagRate          float64         `json:"flagRate"`
	HighPayoutPosts   int             `json:"highPayoutPosts"`
	MultiPostAuthors  int             `json:"multiPostAuthors"`
	AveragePayout     float64         `json:"averagePayout"`
	Categories        []CategoryCount `json:"categories"`
}

// CategoryCount is one slice of the category distribution.
type CategoryCount struct {
	Category string `json:"category"`
	Posts    int    `json:"posts"`
}

// Summarize computes the statistics panel. Rates are percentages.
func Summarize(posts []models.Post, flagCount int) Summary {
	s := Summary{TotalPosts: len(posts)}
	if len(posts) == 0 {
		return s
	}

	perAuthor := make(map[string]int)
	deleted := 0
	total := 0.0
	for i := range posts {
		p := &posts[i]
		perAuthor[p.Author]++
		if p.Deleted {
			deleted++
		}
		if p.PendingPayout > HighPayoutThreshold {
			s.HighPayoutPosts++
		}
		total += p.PendingPayout
	}
	for _, n := range perAuthor {
		if n > 3 {
			s.MultiPostAuthors++
		}
	}

	n := float64(len(posts))
	s.UniqueAuthors = len(perAuthor)
	s.AvgPostsPerAuthor = n / float64(len(perAuthor))
	s.DeletionRate = float64(deleted) / n * 100
	s.FlagRate = float64(flagCount) / n * 100
	s.AveragePayout = total / n
	s.Categories = TopCategories(posts, 8)
	return s
}

// TopCategories returns the most used categories, empty ones grouped under
// "outros".
func TopCategories(posts []models.Post, limit int) []CategoryCount {
	index := make(map[string]int)
	var out []CategoryCount
	for i := range posts {
		cat := posts[i].Category
		if cat == "" {
			cat = "outros"
		}
		pos, ok := index[cat]
		if !ok {
			pos = len(out)
			index[cat] = pos
			out = append(out, CategoryCount{Category: cat})
		}
		out[pos].Posts++
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Posts > out[j].Posts })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

var appPrefix = regexp.MustCompile(`^([a-zA-Z0-9\-]+)/`)

// AppCount is the number of distinct authors publishing through one client.
type AppCount struct {
	App     string `json:"app"`
	Authors int    `json:"authors"`
}

// CountApps counts client apps once per author. The app is the prefix
// before the first slash ("peakd/2024.1" → "peakd"), lowercased.
func CountApps(posts []models.Post) []AppCount {
	seen := make(map[string]map[string]struct{})
	index := make(map[string]int)
	var out []AppCount

	for i := range posts {
		p := &posts[i]
		raw := p.App
		if raw == "" {
			raw = models.UnknownApp
		}
		app := strings.ToLower(raw)
		if m := appPrefix.FindStringSubmatch(raw); m != nil {
			app = strings.ToLower(m[1])
		}

		apps, ok := seen[p.Author]
		if !ok {
			apps = make(map[string]struct{})
			seen[p.Author] = apps
		}
		if _, dup := apps[app]; dup {
			continue
		}
		apps[app] = struct{}{}

		pos, ok := index[app]
		if !ok {
			pos = len(out)
			index[app] = pos
			out = append(out, AppCount{App: app})
		}
		out[pos].Authors++
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Authors > out[j].Authors })
	return out
}
