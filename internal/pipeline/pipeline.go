// Package pipeline implements search, filtering, sorting and pagination over
// the imported post set. Every function is pure and returns a new slice.
package pipeline

import (
	"sort"
	"strings"
	"time"

	"github.com/faireye-hive/hive-cache/internal/models"
	"github.com/faireye-hive/hive-cache/internal/sanitize"
)

// Field selects what a text search matches against.
type Field string

const (
	FieldAuthor  Field = "author"
	FieldTitle   Field = "title"
	FieldContent Field = "content"
	FieldTags    Field = "tags"
	FieldAll     Field = "all"
)

// QuickFilter names a predefined working-set filter.
type QuickFilter string

const (
	FilterAll        QuickFilter = "all"
	FilterLastHour   QuickFilter = "last-hour"
	FilterLast6Hours QuickFilter = "last-6h"
	FilterHighPayout QuickFilter = "high-payout"
	FilterFlagged    QuickFilter = "flagged"
	FilterDeleted    QuickFilter = "deleted"
)

// PostType restricts the page to top-level posts or replies.
type PostType string

const (
	TypeAll          PostType = "all"
	TypeOnlyPosts    PostType = "only-posts"
	TypeOnlyComments PostType = "only-comments"
)

// SortOrder is the page ordering.
type SortOrder string

const (
	SortCreatedDesc SortOrder = "created-desc"
	SortPayoutDesc  SortOrder = "payout-desc"
	SortRiskDesc    SortOrder = "risk-desc"
)

// HighPayoutThreshold is the pending payout above which high-payout applies.
const HighPayoutThreshold = 100

// ParseField returns the field for s, defaulting to FieldAll.
func ParseField(s string) (Field, bool) {
	switch f := Field(strings.ToLower(s)); f {
	case FieldAuthor, FieldTitle, FieldContent, FieldTags, FieldAll:
		return f, true
	case "":
		return FieldAll, true
	}
	return FieldAll, false
}

// ParseQuickFilter validates a quick filter name.
func ParseQuickFilter(s string) (QuickFilter, bool) {
	switch f := QuickFilter(strings.ToLower(s)); f {
	case FilterAll, FilterLastHour, FilterLast6Hours, FilterHighPayout, FilterFlagged, FilterDeleted:
		return f, true
	case "":
		return FilterAll, true
	}
	return FilterAll, false
}

// ParsePostType validates a post type, defaulting to TypeAll.
func ParsePostType(s string) (PostType, bool) {
	switch t := PostType(strings.ToLower(s)); t {
	case TypeAll, TypeOnlyPosts, TypeOnlyComments:
		return t, true
	case "":
		return TypeAll, true
	}
	return TypeAll, false
}

// ParseSortOrder validates a sort order, defaulting to SortCreatedDesc.
func ParseSortOrder(s string) (SortOrder, bool) {
	switch o := SortOrder(strings.ToLower(s)); o {
	case SortCreatedDesc, SortPayoutDesc, SortRiskDesc:
		return o, true
	case "":
		return SortCreatedDesc, true
	}
	return SortCreatedDesc, false
}

// Search returns the posts whose field contains query, case-insensitively.
// An empty query returns the full set.
func Search(posts []models.Post, query string, field Field) []models.Post {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return append([]models.Post(nil), posts...)
	}
	out := make([]models.Post, 0)
	for i := range posts {
		if matchField(&posts[i], q, field) {
			out = append(out, posts[i])
		}
	}
	return out
}

func matchField(p *models.Post, q string, field Field) bool {
	switch field {
	case FieldAuthor:
		return strings.Contains(strings.ToLower(p.Author), q)
	case FieldTitle:
		return strings.Contains(strings.ToLower(sanitize.Text(p.Title)), q)
	case FieldContent:
		return strings.Contains(strings.ToLower(sanitize.Text(p.Body)), q)
	case FieldTags:
		return strings.Contains(p.TagString(), q)
	default:
		return matchField(p, q, FieldAuthor) ||
			matchField(p, q, FieldTitle) ||
			matchField(p, q, FieldContent) ||
			matchField(p, q, FieldTags)
	}
}

// Filter applies a quick filter. flagged reports whether a post id is in
// the flag store; now anchors the relative time windows.
func Filter(posts []models.Post, f QuickFilter, flagged func(id string) bool, now time.Time) []models.Post {
	var keep func(p *models.Post) bool
	switch f {
	case FilterLastHour:
		cutoff := now.Add(-time.Hour)
		keep = func(p *models.Post) bool { return p.Created.After(cutoff) }
	case FilterLast6Hours:
		cutoff := now.Add(-6 * time.Hour)
		keep = func(p *models.Post) bool { return p.Created.After(cutoff) }
	case FilterHighPayout:
		keep = func(p *models.Post) bool { return p.PendingPayout > HighPayoutThreshold }
	case FilterFlagged:
		keep = func(p *models.Post) bool { return flagged != nil && flagged(p.ID) }
	case FilterDeleted:
		keep = func(p *models.Post) bool { return p.Deleted }
	default:
		return append([]models.Post(nil), posts...)
	}
	return where(posts, keep)
}

// ByType keeps only top-level posts or only replies.
func ByType(posts []models.Post, t PostType) []models.Post {
	switch t {
	case TypeOnlyPosts:
		return where(posts, func(p *models.Post) bool { return !p.IsReply() })
	case TypeOnlyComments:
		return where(posts, func(p *models.Post) bool { return p.IsReply() })
	default:
		return append([]models.Post(nil), posts...)
	}
}

// WithoutMuted drops posts by muted authors.
func WithoutMuted(posts []models.Post, muted map[string]struct{}) []models.Post {
	if len(muted) == 0 {
		return append([]models.Post(nil), posts...)
	}
	return where(posts, func(p *models.Post) bool {
		_, ok := muted[p.Author]
		return !ok
	})
}

// Sort orders posts stably, descending by the requested key. SortCreatedDesc
// keeps the incoming order. tier is called at most once per post.
func Sort(posts []models.Post, order SortOrder, tier func(*models.Post) models.RiskTier) []models.Post {
	out := append([]models.Post(nil), posts...)
	switch order {
	case SortPayoutDesc:
		sort.SliceStable(out, func(i, j int) bool { return out[i].PendingPayout > out[j].PendingPayout })
	case SortRiskDesc:
		if tier == nil {
			return out
		}
		keys := make([]int, len(out))
		for i := range out {
			keys[i] = tier(&out[i]).Rank()
		}
		idx := make([]int, len(out))
		for i := range idx {
			idx[i] = i
		}
		sort.SliceStable(idx, func(a, b int) bool { return keys[idx[a]] > keys[idx[b]] })
		sorted := make([]models.Post, len(out))
		for i, k := range idx {
			sorted[i] = out[k]
		}
		return sorted
	}
	return out
}

// Page is one window of an ordered result.
type Page struct {
	Posts      []models.Post `json:"posts"`
	Page       int           `json:"page"`
	TotalPages int           `json:"totalPages"`
	Total      int           `json:"total"`
	PageSize   int           `json:"pageSize"`
}

// Paginate clamps page into [1, totalPages] and slices out that window. An
// empty input yields page 0 of 0.
func Paginate(posts []models.Post, page, size int) Page {
	if size < 1 {
		size = 1
	}
	total := len(posts)
	totalPages := (total + size - 1) / size
	if totalPages == 0 {
		return Page{Posts: []models.Post{}, PageSize: size}
	}
	if page > totalPages {
		page = totalPages
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * size
	end := start + size
	if end > total {
		end = total
	}
	return Page{
		Posts:      append([]models.Post(nil), posts[start:end]...),
		Page:       page,
		TotalPages: totalPages,
		Total:      total,
		PageSize:   size,
	}
}

// View describes the post-type, sort and page of one request.
type View struct {
	Type     PostType
	Sort     SortOrder
	Page     int
	PageSize int
}

// Run applies post type, mute filter, sort and pagination, in that order,
// to the base selection.
func Run(base []models.Post, v View, muted map[string]struct{}, tier func(*models.Post) models.RiskTier) Page {
	posts := ByType(base, v.Type)
	posts = WithoutMuted(posts, muted)
	posts = Sort(posts, v.Sort, tier)
	return Paginate(posts, v.Page, v.PageSize)
}

func where(posts []models.Post, keep func(p *models.Post) bool) []models.Post {
	out := make([]models.Post, 0, len(posts))
	for i := range posts {
		if keep(&posts[i]) {
			out = append(out, posts[i])
		}
	}
	return out
}
