// Package models contains the data types shared across the moderation engine.
package models

import (
	"strings"
	"time"
)

// UnknownApp is the sentinel used when a post carries no origin client.
const UnknownApp = "desconhecido"

// Post is one imported feed record. Optional source fields are resolved to
// their defaults at the import boundary, so every field is safe to read.
type Post struct {
	ID                string    `json:"id"`
	Author            string    `json:"author"`
	Permlink          string    `json:"permlink,omitempty"`
	Title             string    `json:"title"`
	Body              string    `json:"body"`
	Tags              []string  `json:"tags,omitempty"`
	Created           time.Time `json:"created"`
	PendingPayout     float64   `json:"pending_payout_value"`
	TotalPayout       float64   `json:"total_payout_value"`
	CuratorPayout     float64   `json:"curator_payout_value"`
	BeneficiaryPayout float64   `json:"beneficiary_payout_value"`
	Category          string    `json:"category,omitempty"`
	ParentAuthor      string    `json:"parent_author,omitempty"`
	App               string    `json:"app,omitempty"`
	Deleted           bool      `json:"deleted"`
	LastEdited        string    `json:"last_edited,omitempty"`
}

// IsReply reports whether the record is a comment rather than a top-level post.
func (p *Post) IsReply() bool {
	return p.ParentAuthor != ""
}

// AppName returns the lowercased origin client, or UnknownApp.
func (p *Post) AppName() string {
	app := strings.ToLower(strings.TrimSpace(p.App))
	if app == "" {
		return UnknownApp
	}
	return app
}

// TagString is the normalized tag representation used for matching:
// tags lowercased and joined by single spaces.
func (p *Post) TagString() string {
	return strings.ToLower(strings.Join(p.Tags, " "))
}

// NormalizedTags returns the lowercased tags. Entries containing whitespace
// are split so "a b" and ["a", "b"] compare equal.
func (p *Post) NormalizedTags() []string {
	out := make([]string, 0, len(p.Tags))
	for _, t := range p.Tags {
		out = append(out, strings.Fields(strings.ToLower(t))...)
	}
	return out
}

// PayoutBreakdown is the detail view of the four payout fields.
type PayoutBreakdown struct {
	Pending     float64 `json:"pending"`
	Total       float64 `json:"total"`
	Curator     float64 `json:"curator"`
	Beneficiary float64 `json:"beneficiary"`
}

// Payouts returns the payout breakdown of the post.
func (p *Post) Payouts() PayoutBreakdown {
	return PayoutBreakdown{
		Pending:     p.PendingPayout,
		Total:       p.TotalPayout,
		Curator:     p.CuratorPayout,
		Beneficiary: p.BeneficiaryPayout,
	}
}
