package scanner

import (
	"fmt"
	"math"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/faireye-hive/hive-cache/internal/models"
	"github.com/faireye-hive/hive-cache/internal/rules"
)

var (
	urlPattern  = regexp.MustCompile(`https?://[^\s]+`)
	wordPattern = regexp.MustCompile(`\b[\w']+\b`)
)

// Signal is one detector's verdict.
type Signal struct {
	Detector string  `json:"detector"`
	Score    float64 `json:"score"`
	Reason   string  `json:"reason,omitempty"`
}

// AdvancedScore is the combined multi-signal verdict for one post.
type AdvancedScore struct {
	PostID  string   `json:"postId"`
	Author  string   `json:"author"`
	Title   string   `json:"title"`
	Score   float64  `json:"score"`
	Reasons []string `json:"reasons"`
	Signals []Signal `json:"signals"`
}

// Advanced combines the keyword, link and writing-style detectors.
type Advanced struct {
	r           rules.AdvancedRules
	domains     map[string]struct{}
	stopwords   map[string]struct{}
	transitions map[string]struct{}
}

// NewAdvanced builds the detector set from r.
func NewAdvanced(r rules.AdvancedRules) *Advanced {
	return &Advanced{
		r:           r,
		domains:     toSet(r.BlacklistDomains),
		stopwords:   toSet(r.Stopwords),
		transitions: toSet(r.Transitions),
	}
}

func toSet(items []string) map[string]struct{} {
	out := make(map[string]struct{}, len(items))
	for _, s := range items {
		out[strings.ToLower(s)] = struct{}{}
	}
	return out
}

func text(p *models.Post) string {
	return p.Title + " " + p.Body
}

// Keyword scores watch-list hits in title and body, saturating at
// MinKeywordMatches hits.
func (a *Advanced) Keyword(p *models.Post) Signal {
	t := strings.ToLower(text(p))
	var hits []string
	for _, k := range a.r.WatchKeywords {
		if strings.Contains(t, strings.ToLower(k)) {
			hits = append(hits, k)
		}
	}
	s := Signal{Detector: "keyword"}
	s.Score = math.Min(1, float64(len(hits))/float64(max(1, a.r.MinKeywordMatches)))
	if len(hits) > 0 {
		s.Reason = "keywords:" + strings.Join(hits, ",")
	}
	return s
}

// Link scores link density, plus 0.7 when any link points at a blacklisted
// domain.
func (a *Advanced) Link(p *models.Post) Signal {
	urls := urlPattern.FindAllString(text(p), -1)
	blacklisted := 0
	for _, raw := range urls {
		u, err := url.Parse(raw)
		if err != nil {
			continue
		}
		host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
		if _, ok := a.domains[host]; ok && host != "" {
			blacklisted++
		}
	}

	density := 1.0
	if len(urls) <= a.r.MaxLinks {
		density = float64(len(urls)) / float64(a.r.MaxLinks)
	}
	if blacklisted > 0 {
		density += 0.7
	}
	s := Signal{Detector: "link", Score: math.Min(1, density)}
	if len(urls) > 0 {
		s.Reason = fmt.Sprintf("links:%d", len(urls))
	}
	return s
}

// AIHeuristic flags machine-like writing: a high stopword ratio, repeated
// 3-grams and dense formal transitions. Texts under MinWords words score 0.
func (a *Advanced) AIHeuristic(p *models.Post) Signal {
	words := wordPattern.FindAllString(strings.ToLower(text(p)), -1)
	s := Signal{Detector: "ai-heuristic"}
	if len(words) < a.r.MinWords {
		return s
	}

	stop, trans := 0, 0
	for _, w := range words {
		if _, ok := a.stopwords[w]; ok {
			stop++
		}
		if _, ok := a.transitions[w]; ok {
			trans++
		}
	}
	stopRatio := float64(stop) / float64(len(words))

	ngrams := make(map[string]int)
	for i := 0; i+2 < len(words); i++ {
		ngrams[words[i]+" "+words[i+1]+" "+words[i+2]]++
	}
	repeats := 0
	for _, n := range ngrams {
		if n > 1 {
			repeats++
		}
	}

	n := float64(len(words))
	if stopRatio > 0.5 {
		s.Score += 0.1
	}
	if float64(repeats) > math.Max(1, n/100) {
		s.Score += 0.4
	}
	if float64(trans) > math.Max(1, n/200) {
		s.Score += 0.2
	}
	s.Score = math.Min(1, s.Score)
	s.Reason = fmt.Sprintf("aiHeuristics stopRatio:%.2f repeats:%d", stopRatio, repeats)
	return s
}

// Score returns the weighted average of the three detectors, in [0, 1].
func (a *Advanced) Score(p *models.Post) AdvancedScore {
	signals := []Signal{a.Keyword(p), a.Link(p), a.AIHeuristic(p)}
	var total, weight float64
	reasons := make([]string, 0, len(signals))
	for i, s := range signals {
		w := a.r.Weights[i]
		total += s.Score * w
		weight += w
		if s.Reason != "" {
			reasons = append(reasons, s.Reason)
		}
	}
	score := 0.0
	if weight > 0 {
		score = total / weight
	}
	return AdvancedScore{
		PostID:  p.ID,
		Author:  p.Author,
		Title:   p.Title,
		Score:   score,
		Reasons: reasons,
		Signals: signals,
	}
}

// Sweep scores every post and returns those at or above threshold, highest
// first. Ties keep input order.
func (a *Advanced) Sweep(posts []models.Post, threshold float64) []AdvancedScore {
	out := make([]AdvancedScore, 0)
	for i := range posts {
		if s := a.Score(&posts[i]); s.Score >= threshold {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}
