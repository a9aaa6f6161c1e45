// Package stats derives per-author aggregates and dashboard statistics
// from the post store.
package stats

import (
	"github.com/faireye-hive/hive-cache/internal/models"
	"github.com/faireye-hive/hive-cache/internal/sanitize"
)

// ShortBodyLength is the sanitized body length below which a post counts
// toward AuthorStats.ShortPostCount.
const ShortBodyLength = 50

// Index maps author handles to their aggregates. It is rebuilt from scratch
// on every import and never patched.
type Index map[string]models.AuthorStats

// Build aggregates posts in one pass.
func Build(posts []models.Post) Index {
	idx := make(Index)
	for i := range posts {
		p := &posts[i]
		st := idx[p.Author]
		st.PostCount++
		if sanitize.Len(p.Body) < ShortBodyLength {
			st.ShortPostCount++
		}
		st.TotalPayout += p.PendingPayout
		if p.Created.After(st.LastPost) {
			st.LastPost = p.Created
		}
		idx[p.Author] = st
	}
	return idx
}

// Get returns the stats of author, zero-valued when unknown.
func (idx Index) Get(author string) models.AuthorStats {
	return idx[author]
}

// CountShort counts, per author, posts whose sanitized body is shorter than
// n characters.
func CountShort(posts []models.Post, n int) map[string]int {
	out := make(map[string]int)
	for i := range posts {
		if sanitize.Len(posts[i].Body) < n {
			out[posts[i].Author]++
		}
	}
	return out
}
