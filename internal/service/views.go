package service

import (
	"strings"

	"github.com/faireye-hive/hive-cache/internal/models"
	"github.com/faireye-hive/hive-cache/internal/pipeline"
)

// FlaggedPageSize is the page size of the flagged posts view.
const FlaggedPageSize = 25

// PostSummary is one row of a post listing.
type PostSummary struct {
	models.Post
	RiskScore int             `json:"riskScore"`
	RiskTier  models.RiskTier `json:"riskTier"`
	Reasons   []string        `json:"reasons,omitempty"`
	Flagged   bool            `json:"flagged"`
	Muted     bool            `json:"muted"`
}

// PostPage is a paginated listing.
type PostPage struct {
	Posts      []PostSummary `json:"posts"`
	Page       int           `json:"page"`
	TotalPages int           `json:"totalPages"`
	Total      int           `json:"total"`
	PageSize   int           `json:"pageSize"`
	Selection  string        `json:"selection,omitempty"`
}

// PostDetail is the single post view.
type PostDetail struct {
	PostSummary
	Payouts    models.PayoutBreakdown `json:"payouts"`
	FlagRecord *models.FlagRecord     `json:"flagRecord,omitempty"`
	AuthorInfo models.AuthorStats     `json:"authorStats"`
}

// FlaggedEntry is one row of the flagged posts view.
type FlaggedEntry struct {
	Post        models.Post       `json:"post"`
	Record      models.FlagRecord `json:"record"`
	PostCount   int               `json:"postCount"`
	TotalPayout float64           `json:"totalPayout"`
}

// FlaggedPage is the flagged view, one post per author.
type FlaggedPage struct {
	Entries    []FlaggedEntry `json:"entries"`
	Page       int            `json:"page"`
	TotalPages int            `json:"totalPages"`
	Total      int            `json:"total"`
}

// Panel is the moderation panel: tier counts over the first PanelSample
// posts plus the flag count.
type Panel struct {
	High    int `json:"high"`
	Medium  int `json:"medium"`
	Low     int `json:"low"`
	Flagged int `json:"flagged"`
	Sampled int `json:"sampled"`
}

// PanelSample bounds the posts sampled by the moderation panel.
const PanelSample = 100

func (m *Moderation) summaryLocked(p *models.Post) PostSummary {
	a := m.assessLocked(p)
	return PostSummary{
		Post:      *p,
		RiskScore: a.Score,
		RiskTier:  a.Tier,
		Reasons:   a.Reasons,
		Flagged:   m.flags.Has(p.ID),
		Muted:     m.mutes.Has(p.Author),
	}
}

func (m *Moderation) pageLocked(pg pipeline.Page) PostPage {
	out := PostPage{
		Posts:      make([]PostSummary, 0, len(pg.Posts)),
		Page:       pg.Page,
		TotalPages: pg.TotalPages,
		Total:      pg.Total,
		PageSize:   pg.PageSize,
	}
	for i := range pg.Posts {
		out.Posts = append(out.Posts, m.summaryLocked(&pg.Posts[i]))
	}
	if m.working != nil {
		out.Selection = m.working.kind + ":" + m.working.label
	}
	return out
}

// Page runs the listing pipeline over the base selection.
func (m *Moderation) Page(v pipeline.View) PostPage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pageLocked(m.runLocked(v))
}

func (m *Moderation) runLocked(v pipeline.View) pipeline.Page {
	if v.PageSize < 1 {
		v.PageSize = m.settings.PostsPerPage
	}
	base := m.posts
	if m.working != nil {
		base = m.working.posts
	}
	return pipeline.Run(base, v, m.mutes.Set(), m.tierLocked)
}

// Search replaces the working set with the posts matching query and
// returns the first page. An empty query restores the full set.
func (m *Moderation) Search(query string, field pipeline.Field, v pipeline.View) PostPage {
	m.debounce.Cancel()
	m.mu.Lock()
	m.applySearchLocked(query, field)
	m.mu.Unlock()

	v.Page = 1
	return m.Page(v)
}

// SearchAsync debounces a search. Only the last call inside the window is
// applied; the result is read with Page.
func (m *Moderation) SearchAsync(query string, field pipeline.Field) {
	m.debounce.Do(func() {
		m.mu.Lock()
		m.applySearchLocked(query, field)
		m.mu.Unlock()
	})
}

// SearchPending reports whether a debounced search has not run yet.
func (m *Moderation) SearchPending() bool { return m.debounce.Pending() }

func (m *Moderation) applySearchLocked(query string, field pipeline.Field) {
	if strings.TrimSpace(query) == "" {
		m.working = nil
		return
	}
	m.working = &selection{
		kind:  "search",
		label: string(field) + "=" + query,
		posts: pipeline.Search(m.posts, query, field),
	}
}

// Filter replaces the working set with a quick filter and returns page 1.
func (m *Moderation) Filter(f pipeline.QuickFilter, v pipeline.View) PostPage {
	m.debounce.Cancel()
	m.mu.Lock()
	if f == pipeline.FilterAll {
		m.working = nil
	} else {
		m.working = &selection{
			kind:  "filter",
			label: string(f),
			posts: pipeline.Filter(m.posts, f, m.flags.Has, m.now()),
		}
	}
	m.mu.Unlock()

	v.Page = 1
	return m.Page(v)
}

// AdvancedSearch runs a conjunctive search over the full set. It does not
// touch the working set.
func (m *Moderation) AdvancedSearch(c pipeline.Criteria) pipeline.AdvancedResult {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return pipeline.AdvancedSearch(m.posts, c)
}

// Post returns the detail view of one post.
func (m *Moderation) Post(id string) (*PostDetail, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i, ok := m.index[id]
	if !ok {
		return nil, models.NewNotFoundError("Post", id)
	}
	p := &m.posts[i]
	d := &PostDetail{
		PostSummary: m.summaryLocked(p),
		Payouts:     p.Payouts(),
		AuthorInfo:  m.authors.Get(p.Author),
	}
	if rec, ok := m.flags.Get(id); ok {
		d.FlagRecord = &rec
	}
	return d, nil
}

// AuthorPosts lists every post by author in import order.
func (m *Moderation) AuthorPosts(author string) []PostSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]PostSummary, 0)
	for i := range m.posts {
		if m.posts[i].Author == author {
			out = append(out, m.summaryLocked(&m.posts[i]))
		}
	}
	return out
}

// Flagged lists flagged posts, keeping the first flagged post of each
// author in import order.
func (m *Moderation) Flagged(page int) FlaggedPage {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]struct{})
	var entries []FlaggedEntry
	for i := range m.posts {
		p := &m.posts[i]
		rec, ok := m.flags.Get(p.ID)
		if !ok {
			continue
		}
		if _, dup := seen[p.Author]; dup {
			continue
		}
		seen[p.Author] = struct{}{}
		st := m.authors.Get(p.Author)
		entries = append(entries, FlaggedEntry{
			Post:        *p,
			Record:      rec,
			PostCount:   st.PostCount,
			TotalPayout: st.TotalPayout,
		})
	}

	total := len(entries)
	totalPages := (total + FlaggedPageSize - 1) / FlaggedPageSize
	if totalPages == 0 {
		return FlaggedPage{Entries: []FlaggedEntry{}}
	}
	if page > totalPages {
		page = totalPages
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * FlaggedPageSize
	end := min(start+FlaggedPageSize, total)
	return FlaggedPage{
		Entries:    entries[start:end],
		Page:       page,
		TotalPages: totalPages,
		Total:      total,
	}
}

// Panel counts risk tiers over the first PanelSample posts.
func (m *Moderation) Panel() Panel {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := min(len(m.posts), PanelSample)
	out := Panel{Flagged: m.flags.Len(), Sampled: n}
	for i := 0; i < n; i++ {
		switch m.tierLocked(&m.posts[i]) {
		case models.RiskHigh:
			out.High++
		case models.RiskMedium:
			out.Medium++
		default:
			out.Low++
		}
	}
	return out
}
