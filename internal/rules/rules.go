// Package rules holds the tunable constants of the risk engine and scanners.
//
// Two historical rule sets disagree on spam phrases; Default ships the
// Hive-specific list and keeps the generic one in GenericSpamPhrases so a
// deployment can pick either through a rules file.
package rules

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Set is the full parameterization of scoring and scanning.
type Set struct {
	CommandTokens       []string `yaml:"command_tokens"`
	SuspiciousTags      []string `yaml:"suspicious_tags"`
	SensitiveCategories []string `yaml:"sensitive_categories"`
	HighRiskApps        []string `yaml:"high_risk_apps"`
	MitigationKeywords  []string `yaml:"mitigation_keywords"`

	HighPayout       float64 `yaml:"high_payout"`
	ElevatedPayout   float64 `yaml:"elevated_payout"`
	ShortBodyLength  int     `yaml:"short_body_length"`
	ShortBodyAuthors int     `yaml:"short_body_authors"`
	FarmerPosts      int     `yaml:"farmer_posts"`
	ProlificPosts    int     `yaml:"prolific_posts"`

	HighThreshold   int `yaml:"high_threshold"`
	MediumThreshold int `yaml:"medium_threshold"`

	Spam       SpamRules       `yaml:"spam"`
	Plagiarism PlagiarismRules `yaml:"plagiarism"`
	Advanced   AdvancedRules   `yaml:"advanced"`
}

// SpamRules parameterizes the spam sweep.
type SpamRules struct {
	Phrases         []string `yaml:"phrases"`
	MaxAuthorPosts  int      `yaml:"max_author_posts"`
	MaxShortPosts   int      `yaml:"max_short_posts"`
	ShortBodyLength int      `yaml:"short_body_length"`
	FlaggedBy       string   `yaml:"flagged_by"`
	Reason          string   `yaml:"reason"`
}

// PlagiarismRules parameterizes the duplicate-content sweep.
type PlagiarismRules struct {
	MinBodyLength int    `yaml:"min_body_length"`
	PrefixLength  int    `yaml:"prefix_length"`
	FlaggedBy     string `yaml:"flagged_by"`
	Reason        string `yaml:"reason"`
}

// AdvancedRules parameterizes the multi-signal scan.
type AdvancedRules struct {
	WatchKeywords     []string  `yaml:"watch_keywords"`
	MinKeywordMatches int       `yaml:"min_keyword_matches"`
	MaxLinks          int       `yaml:"max_links"`
	BlacklistDomains  []string  `yaml:"blacklist_domains"`
	Stopwords         []string  `yaml:"stopwords"`
	Transitions       []string  `yaml:"transitions"`
	MinWords          int       `yaml:"min_words"`
	Weights           []float64 `yaml:"weights"`
	Threshold         float64   `yaml:"threshold"`
}

// HiveSpamPhrases are the spam phrases seen on Hive comment farms.
var HiveSpamPhrases = []string{
	"vote for delegating HP",
	"additional vote",
	"steemit.com",
	"blurt.blog",
	"blurt.world",
	"Delagate HP",
}

// GenericSpamPhrases are the generic marketing phrases from the earlier rule set.
var GenericSpamPhrases = []string{
	"make money fast",
	"get rich quick",
	"click here",
	"buy now",
	"limited offer",
	"guaranteed profit",
	"work from home",
	"earn $1000 daily",
}

// Default returns the rule set the dashboard shipped with.
func Default() *Set {
	return &Set{
		CommandTokens:       []string{"bbh", "lady", "vote", "gif", "pizza", "beer", "pepe", "meme", "cpt", "summarize"},
		SuspiciousTags:      []string{"make-money", "earn-fast", "crypto-scam", "get-rich", "instant-cash"},
		SensitiveCategories: []string{"nsfw", "adult", "gambling"},
		HighRiskApps:        []string{"inleo", "universaltipbot"},
		MitigationKeywords:  []string{"strava2hive"},

		HighPayout:       500,
		ElevatedPayout:   100,
		ShortBodyLength:  50,
		ShortBodyAuthors: 15,
		FarmerPosts:      200,
		ProlificPosts:    100,

		HighThreshold:   7,
		MediumThreshold: 4,

		Spam: SpamRules{
			Phrases:         append([]string(nil), HiveSpamPhrases...),
			MaxAuthorPosts:  50,
			MaxShortPosts:   20,
			ShortBodyLength: 15,
			FlaggedBy:       "spam-scanner",
			Reason:          "Potencial spam",
		},
		Plagiarism: PlagiarismRules{
			MinBodyLength: 50,
			PrefixLength:  100,
			FlaggedBy:     "plagiarism-scanner",
			Reason:        "Possível plágio",
		},
		Advanced: AdvancedRules{
			WatchKeywords:     []string{"transfer", "whatsapp", "contact", "buy now"},
			MinKeywordMatches: 1,
			MaxLinks:          2,
			BlacklistDomains:  []string{"bit.ly", "tinyurl.com", "spamdomain.com"},
			Stopwords:         []string{"the", "and", "a", "to", "of", "in", "is", "that", "it", "on", "for"},
			Transitions:       []string{"however", "moreover", "furthermore", "therefore", "consequently"},
			MinWords:          30,
			Weights:           []float64{0.6, 0.5, 0.6},
			Threshold:         0.5,
		},
	}
}

// Load reads a YAML rules file over the defaults. Keys absent from the file
// keep their default values. An empty path returns Default().
func Load(path string) (*Set, error) {
	set := Default()
	if path == "" {
		return set, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	if err := yaml.Unmarshal(raw, set); err != nil {
		return nil, fmt.Errorf("parse rules file %s: %w", path, err)
	}
	if err := set.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rules file %s: %w", path, err)
	}
	return set, nil
}

// Validate checks the invariants scoring depends on.
func (s *Set) Validate() error {
	if s.HighThreshold <= s.MediumThreshold {
		return errors.New("high_threshold must exceed medium_threshold")
	}
	if s.HighPayout < s.ElevatedPayout {
		return errors.New("high_payout must not be below elevated_payout")
	}
	if s.Plagiarism.PrefixLength <= 0 {
		return errors.New("plagiarism.prefix_length must be positive")
	}
	if len(s.Advanced.Weights) < 3 {
		return errors.New("advanced.weights needs one weight per detector")
	}
	for _, w := range s.Advanced.Weights[:3] {
		if w < 0 {
			return errors.New("advanced.weights must not be negative")
		}
	}
	if s.Advanced.MaxLinks <= 0 {
		return errors.New("advanced.max_links must be positive")
	}
	return nil
}

// CommandPattern compiles the bot command tokens into one word-bounded,
// case-insensitive expression such as `(?i)!(vote|gif)\b`.
func (s *Set) CommandPattern() *regexp.Regexp {
	if len(s.CommandTokens) == 0 {
		return nil
	}
	quoted := make([]string, len(s.CommandTokens))
	for i, t := range s.CommandTokens {
		quoted[i] = regexp.QuoteMeta(strings.ToLower(t))
	}
	return regexp.MustCompile(`(?i)!(` + strings.Join(quoted, "|") + `)\b`)
}
