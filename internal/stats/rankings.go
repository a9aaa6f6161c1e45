package stats

import (
	"sort"
	"time"

	"github.com/faireye-hive/hive-cache/internal/models"
)

// RankingLimit caps ranking lists.
const RankingLimit = 100

// RankingEntry is one row of an author ranking.
type RankingEntry struct {
	Author      string    `json:"author"`
	Posts       int       `json:"posts"`
	TotalPayout float64   `json:"totalPayout"`
	LastPost    time.Time `json:"lastPost"`
}

// RankBy selects the ranking key.
type RankBy string

const (
	RankByPosts  RankBy = "posts"
	RankByPayout RankBy = "payout"
)

// Rankings aggregates authors with posts created after now-window and
// returns the top RankingLimit by the chosen key. A zero window ranks the
// whole set. Ties keep first-appearance order.
func Rankings(posts []models.Post, by RankBy, window time.Duration, now time.Time) []RankingEntry {
	var cutoff time.Time
	if window > 0 {
		cutoff = now.Add(-window)
	}

	index := make(map[string]int)
	var entries []RankingEntry
	for i := range posts {
		p := &posts[i]
		if window > 0 && !p.Created.After(cutoff) {
			continue
		}
		pos, ok := index[p.Author]
		if !ok {
			pos = len(entries)
			index[p.Author] = pos
			entries = append(entries, RankingEntry{Author: p.Author})
		}
		e := &entries[pos]
		e.Posts++
		e.TotalPayout += p.PendingPayout
		if p.Created.After(e.LastPost) {
			e.LastPost = p.Created
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if by == RankByPayout {
			return entries[i].TotalPayout > entries[j].TotalPayout
		}
		return entries[i].Posts > entries[j].Posts
	})
	if len(entries) > RankingLimit {
		entries = entries[:RankingLimit]
	}
	return entries
}
