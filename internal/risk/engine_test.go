package risk

import (
	"strings"
	"testing"

	"github.com/faireye-hive/hive-cache/internal/models"
	"github.com/faireye-hive/hive-cache/internal/rules"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// neutral returns a post that triggers no rule: a known app, a long body.
func neutral() models.Post {
	return models.Post{
		ID:     "1",
		Author: "bob",
		Body:   strings.Repeat("plain words here ", 5),
		Tags:   []string{"life"},
		App:    "peakd/2024.1",
	}
}

func TestScoreNeutralPost(t *testing.T) {
	e := NewEngine(nil)
	p := neutral()

	a := e.Score(&p, Inputs{})
	assert.Equal(t, 0, a.Score)
	assert.Equal(t, models.RiskLow, a.Tier)
	assert.Empty(t, a.Reasons)
}

func TestPayoutMonotonic(t *testing.T) {
	e := NewEngine(nil)
	scores := make([]int, 0, 5)
	for _, payout := range []float64{0, 100, 100.01, 500, 500.01} {
		p := neutral()
		p.PendingPayout = payout
		scores = append(scores, e.Score(&p, Inputs{}).Score)
	}
	assert.Equal(t, []int{0, 0, 1, 1, 3}, scores)
	for i := 1; i < len(scores); i++ {
		assert.GreaterOrEqual(t, scores[i], scores[i-1])
	}
}

func TestFlagIsStrictlyAdditive(t *testing.T) {
	e := NewEngine(nil)
	p := neutral()
	p.PendingPayout = 250
	p.Category = "NSFW"

	unflagged := e.Score(&p, Inputs{})
	flagged := e.Score(&p, Inputs{Flagged: true})

	assert.Equal(t, unflagged.Score+PointsFlagged, flagged.Score)
}

func TestBlacklistedAlwaysHigh(t *testing.T) {
	e := NewEngine(nil)
	for _, p := range []models.Post{neutral(), {ID: "2", Author: "x"}, {ID: "3", Author: "y", LastEdited: "2024"}} {
		p := p
		a := e.Score(&p, Inputs{Blacklisted: true})
		assert.GreaterOrEqual(t, a.Score, 8)
		assert.Equal(t, models.RiskHigh, a.Tier)
	}
}

func TestScenarioBob(t *testing.T) {
	e := NewEngine(nil)
	p := models.Post{
		ID:            "1",
		Author:        "bob",
		PendingPayout: 600,
		Body:          "normal text here",
		Tags:          []string{"life"},
		App:           "peakd",
	}

	a := e.Score(&p, Inputs{Author: models.AuthorStats{PostCount: 1}})
	assert.Equal(t, 3, a.Score)
	assert.Equal(t, models.RiskLow, a.Tier)

	// 250 posts: farmer +8, and the short body adds +2 for authors above 15 posts.
	a = e.Score(&p, Inputs{Author: models.AuthorStats{PostCount: 250}})
	assert.Equal(t, 3+8+2, a.Score)
	assert.Equal(t, models.RiskHigh, a.Tier)

	// With a long body only the payout and farmer rules apply.
	p.Body = strings.Repeat("normal text here ", 5)
	a = e.Score(&p, Inputs{Author: models.AuthorStats{PostCount: 250}})
	assert.Equal(t, 11, a.Score)
	assert.Equal(t, models.RiskHigh, a.Tier)
}

func TestIndividualRules(t *testing.T) {
	e := NewEngine(nil)
	tests := []struct {
		name   string
		mutate func(p *models.Post)
		in     Inputs
		want   int
		reason string
	}{
		{"command token", func(p *models.Post) { p.Body += " !PIZZA" }, Inputs{}, PointsCommand, "bot-command"},
		{"command only in markup", func(p *models.Post) { p.Body += ` <a title="!PIZZA" href="https://x.io/!vote">link</a>` }, Inputs{}, 0, ""},
		{"short body prolific", func(p *models.Post) { p.Body = "<p>hi</p>" }, Inputs{Author: models.AuthorStats{PostCount: 16}}, PointsShortBody, "short-body"},
		{"short body casual", func(p *models.Post) { p.Body = "hi" }, Inputs{Author: models.AuthorStats{PostCount: 15}}, 0, ""},
		{"prolific author", nil, Inputs{Author: models.AuthorStats{PostCount: 101}}, PointsProlific, "prolific"},
		{"farmer author", nil, Inputs{Author: models.AuthorStats{PostCount: 201}}, PointsFarmer, "farmer"},
		{"suspicious tag", func(p *models.Post) { p.Tags = []string{"Life", "GET-RICH"} }, Inputs{}, PointsSuspiciousTag, "suspicious-tag"},
		{"suspicious tags once", func(p *models.Post) { p.Tags = []string{"get-rich", "earn-fast"} }, Inputs{}, PointsSuspiciousTag, "suspicious-tag"},
		{"sensitive category", func(p *models.Post) { p.Category = "Gambling" }, Inputs{}, PointsSensitive, "sensitive-category"},
		{"risky app", func(p *models.Post) { p.App = "InLeo/1.0" }, Inputs{}, PointsRiskyApp, "risky-app"},
		{"tip bot app", func(p *models.Post) { p.App = "universaltipbot" }, Inputs{}, PointsRiskyApp, "risky-app"},
		{"unknown app unedited", func(p *models.Post) { p.App = "" }, Inputs{}, PointsRiskyApp, "unknown-app"},
		{"unknown app edited", func(p *models.Post) { p.App = ""; p.LastEdited = "2024-01-01T00:00:00" }, Inputs{}, 0, ""},
		{"unknown app mitigated", func(p *models.Post) { p.App = ""; p.Body += " posted via Strava2Hive" }, Inputs{}, 0, ""},
		{"mitigation only in markup", func(p *models.Post) { p.App = ""; p.Body += ` <img alt="strava2hive" src="a.png">` }, Inputs{}, PointsRiskyApp, "unknown-app"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := neutral()
			if tt.mutate != nil {
				tt.mutate(&p)
			}
			a := e.Score(&p, tt.in)
			assert.Equal(t, tt.want, a.Score)
			if tt.reason != "" {
				assert.Contains(t, a.Reasons, tt.reason)
			}
		})
	}
}

func TestRulesCompound(t *testing.T) {
	e := NewEngine(nil)
	p := neutral()
	p.Tags = []string{"make-money"}
	p.App = "inleo"

	a := e.Score(&p, Inputs{Blacklisted: true, Author: models.AuthorStats{PostCount: 300}, Flagged: true})
	assert.Equal(t, PointsSuspiciousTag+PointsRiskyApp+PointsBlacklisted+PointsFarmer+PointsFlagged, a.Score)
}

func TestTierThresholds(t *testing.T) {
	e := NewEngine(nil)
	assert.Equal(t, models.RiskLow, e.Tier(3))
	assert.Equal(t, models.RiskMedium, e.Tier(4))
	assert.Equal(t, models.RiskMedium, e.Tier(6))
	assert.Equal(t, models.RiskHigh, e.Tier(7))
}

func TestCustomRuleSet(t *testing.T) {
	set := rules.Default()
	set.HighRiskApps = []string{"spamclient"}
	e := NewEngine(set)

	p := neutral()
	p.App = "inleo"
	assert.Equal(t, 0, e.Score(&p, Inputs{}).Score)

	p.App = "SpamClient/2"
	assert.Equal(t, PointsRiskyApp, e.Score(&p, Inputs{}).Score)
}

func TestCachedEngineMatchesEngine(t *testing.T) {
	e := NewEngine(nil)
	c, err := NewCachedEngine(e, 2)
	require.NoError(t, err)

	p := neutral()
	p.PendingPayout = 700
	in := Inputs{Author: models.AuthorStats{PostCount: 120}}

	assert.Equal(t, e.Score(&p, in), c.Score(&p, in))
	assert.Equal(t, 1, c.Len())

	// flag toggles are never served stale
	in.Flagged = true
	assert.Equal(t, e.Score(&p, in), c.Score(&p, in))
	in.Flagged = false
	assert.Equal(t, e.Score(&p, in), c.Score(&p, in))
}

func TestCachedEngineBoundedAndPurged(t *testing.T) {
	c, err := NewCachedEngine(NewEngine(nil), 2)
	require.NoError(t, err)

	for _, id := range []string{"a", "b", "c"} {
		p := neutral()
		p.ID = id
		c.Score(&p, Inputs{})
	}
	assert.Equal(t, 2, c.Len())

	c.Purge()
	assert.Equal(t, 0, c.Len())
}

func TestCachedEngineServesGenerationUntilPurge(t *testing.T) {
	c, err := NewCachedEngine(NewEngine(nil), 0)
	require.NoError(t, err)
	p := neutral()

	first := c.Score(&p, Inputs{Author: models.AuthorStats{PostCount: 1}})
	// new author stats are only visible after the import boundary purges
	cached := c.Score(&p, Inputs{Author: models.AuthorStats{PostCount: 500}})
	assert.Equal(t, first.Score, cached.Score)

	c.Purge()
	fresh := c.Score(&p, Inputs{Author: models.AuthorStats{PostCount: 500}})
	assert.Equal(t, PointsFarmer, fresh.Score)
}
