package stats

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/faireye-hive/hive-cache/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func post(id, author, body string, payout float64, age time.Duration) models.Post {
	return models.Post{
		ID:            id,
		Author:        author,
		Body:          body,
		PendingPayout: payout,
		Created:       now.Add(-age),
	}
}

func TestBuild(t *testing.T) {
	long := strings.Repeat("x", 60)
	posts := []models.Post{
		post("1", "alice", long, 10, time.Hour),
		post("2", "alice", "<b>short</b>", 5, 2*time.Hour),
		post("3", "bob", "<p>"+strings.Repeat("y", 49)+"</p>", 1, time.Minute),
	}

	idx := Build(posts)

	require.Len(t, idx, 2)
	assert.Equal(t, 2, idx["alice"].PostCount)
	assert.Equal(t, 1, idx["alice"].ShortPostCount)
	assert.InDelta(t, 15.0, idx["alice"].TotalPayout, 1e-9)
	assert.Equal(t, now.Add(-time.Hour), idx["alice"].LastPost)
	// markup does not count toward length
	assert.Equal(t, 1, idx["bob"].ShortPostCount)
	assert.Zero(t, idx.Get("nobody").PostCount)
}

func TestBuildIsFullRecompute(t *testing.T) {
	first := Build([]models.Post{post("1", "alice", "a", 0, 0)})
	second := Build([]models.Post{post("2", "bob", "b", 0, 0)})

	assert.Equal(t, 1, first["alice"].PostCount)
	_, stale := second["alice"]
	assert.False(t, stale)
}

func TestCountShort(t *testing.T) {
	posts := []models.Post{
		post("1", "a", "tiny", 0, 0),
		post("2", "a", strings.Repeat("z", 20), 0, 0),
		post("3", "b", "", 0, 0),
	}
	counts := CountShort(posts, 15)
	assert.Equal(t, 1, counts["a"])
	assert.Equal(t, 1, counts["b"])
}

func TestRankings(t *testing.T) {
	posts := []models.Post{
		post("1", "alice", "", 1, time.Hour),
		post("2", "bob", "", 50, time.Hour),
		post("3", "alice", "", 2, 2*time.Hour),
		post("4", "carol", "", 1000, 48*time.Hour),
	}

	byPosts := Rankings(posts, RankByPosts, 24*time.Hour, now)
	require.Len(t, byPosts, 2)
	assert.Equal(t, "alice", byPosts[0].Author)
	assert.Equal(t, 2, byPosts[0].Posts)
	assert.InDelta(t, 3.0, byPosts[0].TotalPayout, 1e-9)

	byPayout := Rankings(posts, RankByPayout, 0, now)
	require.Len(t, byPayout, 3)
	assert.Equal(t, "carol", byPayout[0].Author)
	assert.Equal(t, "bob", byPayout[1].Author)
}

func TestRankingsLimit(t *testing.T) {
	var posts []models.Post
	for i := 0; i < 150; i++ {
		posts = append(posts, post(fmt.Sprint(i), fmt.Sprintf("author%d", i), "", 0, 0))
	}
	assert.Len(t, Rankings(posts, RankByPosts, 0, now), RankingLimit)
}

func TestSummarize(t *testing.T) {
	posts := []models.Post{
		post("1", "alice", "", 150, 0),
		post("2", "alice", "", 50, 0),
		post("3", "alice", "", 0, 0),
		post("4", "alice", "", 0, 0),
		post("5", "bob", "", 0, 0),
	}
	posts[4].Deleted = true
	posts[0].Category = "hive"

	s := Summarize(posts, 1)

	assert.Equal(t, 5, s.TotalPosts)
	assert.Equal(t, 2, s.UniqueAuthors)
	assert.InDelta(t, 2.5, s.AvgPostsPerAuthor, 1e-9)
	assert.InDelta(t, 20.0, s.DeletionRate, 1e-9)
	assert.InDelta(t, 20.0, s.FlagRate, 1e-9)
	assert.Equal(t, 1, s.HighPayoutPosts)
	assert.Equal(t, 1, s.MultiPostAuthors)
	assert.InDelta(t, 40.0, s.AveragePayout, 1e-9)
	require.Len(t, s.Categories, 2)
	assert.Equal(t, CategoryCount{Category: "outros", Posts: 4}, s.Categories[0])
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil, 3)
	assert.Equal(t, Summary{}, s)
}

func TestCountApps(t *testing.T) {
	posts := []models.Post{
		{ID: "1", Author: "alice", App: "PeakD/2024.1"},
		{ID: "2", Author: "alice", App: "peakd/2024.2"},
		{ID: "3", Author: "bob", App: "peakd/1"},
		{ID: "4", Author: "bob", App: "ecency"},
		{ID: "5", Author: "carol"},
	}

	apps := CountApps(posts)

	require.Len(t, apps, 3)
	assert.Equal(t, AppCount{App: "peakd", Authors: 2}, apps[0])
	assert.Equal(t, AppCount{App: "ecency", Authors: 1}, apps[1])
	assert.Equal(t, AppCount{App: "desconhecido", Authors: 1}, apps[2])
}
