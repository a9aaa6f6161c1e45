// Package risk scores posts for abuse risk with an additive rule model.
//
// Every rule returns a non-negative contribution and the contributions are
// summed, so rules are independent and can be audited one by one. The tier
// thresholds are fixed constants of the rule set, not relative to the corpus.
package risk

import (
	"regexp"
	"strings"

	"github.com/faireye-hive/hive-cache/internal/models"
	"github.com/faireye-hive/hive-cache/internal/rules"
	"github.com/faireye-hive/hive-cache/internal/sanitize"
)

// Rule point values.
const (
	PointsCommand        = 2
	PointsHighPayout     = 3
	PointsElevatedPayout = 1
	PointsShortBody      = 2
	PointsBlacklisted    = 8
	PointsFarmer         = 8
	PointsProlific       = 4
	PointsSuspiciousTag  = 3
	PointsFlagged        = 4
	PointsSensitive      = 2
	PointsRiskyApp       = 7
)

// Inputs is the side state a post is scored against.
type Inputs struct {
	Author      models.AuthorStats
	Flagged     bool
	Blacklisted bool
}

// Assessment is the outcome of scoring one post.
type Assessment struct {
	Score   int             `json:"score"`
	Tier    models.RiskTier `json:"tier"`
	Reasons []string        `json:"reasons,omitempty"`
}

// Engine evaluates the rule set. It is immutable and safe for concurrent use.
type Engine struct {
	set        *rules.Set
	command    *regexp.Regexp
	suspicious map[string]struct{}
	sensitive  map[string]struct{}
}

// NewEngine compiles set into an engine. A nil set uses rules.Default().
func NewEngine(set *rules.Set) *Engine {
	if set == nil {
		set = rules.Default()
	}
	return &Engine{
		set:        set,
		command:    set.CommandPattern(),
		suspicious: lowerSet(set.SuspiciousTags),
		sensitive:  lowerSet(set.SensitiveCategories),
	}
}

// Rules returns the rule set the engine was built from.
func (e *Engine) Rules() *rules.Set { return e.set }

// Score evaluates every rule against p.
func (e *Engine) Score(p *models.Post, in Inputs) Assessment {
	a := e.base(p, in.Author, in.Blacklisted)
	if in.Flagged {
		a.add(PointsFlagged, "flagged")
	}
	a.Tier = e.Tier(a.Score)
	return a
}

// Tier thresholds a score.
func (e *Engine) Tier(score int) models.RiskTier {
	switch {
	case score >= e.set.HighThreshold:
		return models.RiskHigh
	case score >= e.set.MediumThreshold:
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}

// base applies every rule that does not depend on the flag store. Its
// result only changes when the post set is replaced.
func (e *Engine) base(p *models.Post, author models.AuthorStats, blacklisted bool) Assessment {
	var a Assessment
	body := sanitize.Text(p.Body)

	if e.command != nil && e.command.MatchString(body) {
		a.add(PointsCommand, "bot-command")
	}

	switch {
	case p.PendingPayout > e.set.HighPayout:
		a.add(PointsHighPayout, "high-payout")
	case p.PendingPayout > e.set.ElevatedPayout:
		a.add(PointsElevatedPayout, "elevated-payout")
	}

	if author.PostCount > e.set.ShortBodyAuthors && len([]rune(body)) < e.set.ShortBodyLength {
		a.add(PointsShortBody, "short-body")
	}

	if blacklisted {
		a.add(PointsBlacklisted, "blacklisted")
	}

	switch {
	case author.PostCount > e.set.FarmerPosts:
		a.add(PointsFarmer, "farmer")
	case author.PostCount > e.set.ProlificPosts:
		a.add(PointsProlific, "prolific")
	}

	for _, tag := range p.NormalizedTags() {
		if _, ok := e.suspicious[tag]; ok {
			a.add(PointsSuspiciousTag, "suspicious-tag")
			break
		}
	}

	if _, ok := e.sensitive[strings.ToLower(strings.TrimSpace(p.Category))]; ok {
		a.add(PointsSensitive, "sensitive-category")
	}

	if pts, reason := e.appRisk(p, body); pts > 0 {
		a.add(pts, reason)
	}
	return a
}

// appRisk scores the origin client. A known abuse-prone client scores
// immediately; an unknown client scores only when the post was never edited
// and carries no mitigation keyword in its visible text.
func (e *Engine) appRisk(p *models.Post, body string) (int, string) {
	app := p.AppName()
	for _, marker := range e.set.HighRiskApps {
		if marker != "" && strings.Contains(app, strings.ToLower(marker)) {
			return PointsRiskyApp, "risky-app"
		}
	}
	if !strings.Contains(app, models.UnknownApp) {
		return 0, ""
	}
	body = strings.ToLower(body)
	for _, kw := range e.set.MitigationKeywords {
		if kw != "" && strings.Contains(body, strings.ToLower(kw)) {
			return 0, ""
		}
	}
	if p.LastEdited == "" {
		return PointsRiskyApp, "unknown-app"
	}
	return 0, ""
}

func (a *Assessment) add(points int, reason string) {
	a.Score += points
	a.Reasons = append(a.Reasons, reason)
}

func lowerSet(items []string) map[string]struct{} {
	out := make(map[string]struct{}, len(items))
	for _, it := range items {
		out[strings.ToLower(strings.TrimSpace(it))] = struct{}{}
	}
	return out
}
