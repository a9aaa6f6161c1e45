package scanner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/faireye-hive/hive-cache/internal/models"
	"github.com/faireye-hive/hive-cache/internal/rules"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postIDs(posts []models.Post) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.ID
	}
	return out
}

func longBody(s string) string {
	return s + " " + strings.Repeat("filler text ", 10)
}

func TestSpamPhrases(t *testing.T) {
	r := rules.Default().Spam
	posts := []models.Post{
		{ID: "1", Author: "a", Body: longBody("please <b>Vote for delegating HP</b>")},
		{ID: "2", Author: "b", Title: "Visit steemit.com", Body: longBody("hello")},
		{ID: "3", Author: "c", Body: longBody("nothing to see")},
	}
	assert.Equal(t, []string{"1", "2"}, postIDs(Spam(posts, r)))

	r.Phrases = rules.GenericSpamPhrases
	posts[2].Body = longBody("CLICK HERE")
	assert.Equal(t, []string{"3"}, postIDs(Spam(posts, r)))
}

func TestSpamAuthorVolume(t *testing.T) {
	r := rules.Default().Spam
	var posts []models.Post
	for i := 0; i < 51; i++ {
		posts = append(posts, models.Post{ID: fmt.Sprintf("f%d", i), Author: "farmer", Body: longBody("ok")})
	}
	posts = append(posts, models.Post{ID: "x", Author: "casual", Body: longBody("ok")})

	got := Spam(posts, r)
	assert.Len(t, got, 51)
	for _, p := range got {
		assert.Equal(t, "farmer", p.Author)
	}
}

func TestSpamShortPosts(t *testing.T) {
	r := rules.Default().Spam
	var posts []models.Post
	for i := 0; i < 21; i++ {
		posts = append(posts, models.Post{ID: fmt.Sprintf("s%d", i), Author: "shorty", Body: "<p>tiny</p>"})
	}
	for i := 0; i < 20; i++ {
		posts = append(posts, models.Post{ID: fmt.Sprintf("t%d", i), Author: "terse", Body: "tiny"})
	}
	got := Spam(posts, r)
	assert.Len(t, got, 21)
	assert.Equal(t, "shorty", got[0].Author)
}

func TestPlagiarism(t *testing.T) {
	r := rules.Default().Plagiarism
	shared := strings.Repeat("copied paragraph ", 8)
	posts := []models.Post{
		{ID: "orig", Body: "<p>" + shared + "</p>"},
		{ID: "copy", Body: strings.ToUpper(shared) + " with a different ending"},
		{ID: "short", Body: "tiny"},
		{ID: "shortcopy", Body: "tiny"},
		{ID: "unique", Body: strings.Repeat("something else entirely ", 4)},
		{ID: "copy2", Body: shared},
	}
	assert.Equal(t, []string{"copy", "copy2"}, postIDs(Plagiarism(posts, r)))
}

func TestKeywordDetector(t *testing.T) {
	a := NewAdvanced(rules.Default().Advanced)
	s := a.Keyword(&models.Post{Title: "Contact me", Body: "on WhatsApp"})
	assert.Equal(t, 1.0, s.Score)
	assert.Equal(t, "keywords:whatsapp,contact", s.Reason)

	s = a.Keyword(&models.Post{Body: "clean"})
	assert.Equal(t, 0.0, s.Score)
	assert.Empty(t, s.Reason)
}

func TestLinkDetector(t *testing.T) {
	a := NewAdvanced(rules.Default().Advanced)
	tests := []struct {
		name string
		body string
		want float64
	}{
		{"no links", "plain", 0},
		{"one link", "see https://peakd.com/x", 0.5},
		{"two links", "http://a.com http://b.com", 1},
		{"three links", "http://a.com http://b.com http://c.com", 1},
		{"blacklisted", "go https://www.bit.ly/abc", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, a.Link(&models.Post{Body: tt.body}).Score, 1e-9)
		})
	}
}

func TestAIHeuristicDetector(t *testing.T) {
	a := NewAdvanced(rules.Default().Advanced)

	assert.Equal(t, 0.0, a.AIHeuristic(&models.Post{Body: "too short"}).Score)

	repetitive := strings.Repeat("the market is on the rise and ", 10) +
		"however moreover furthermore therefore"
	s := a.AIHeuristic(&models.Post{Body: repetitive})
	assert.InDelta(t, 0.7, s.Score, 1e-9)
	assert.Contains(t, s.Reason, "aiHeuristics stopRatio:")
}

func TestAdvancedScoreWeightedAverage(t *testing.T) {
	a := NewAdvanced(rules.Default().Advanced)
	p := models.Post{ID: "9", Author: "eve", Body: "buy now at https://bit.ly/x"}

	s := a.Score(&p)
	// keyword 1 * 0.6 + link 1 * 0.5 + ai 0 * 0.6, over 1.7
	assert.InDelta(t, 1.1/1.7, s.Score, 1e-9)
	assert.Equal(t, []string{"keywords:buy now", "links:1"}, s.Reasons)
	assert.Len(t, s.Signals, 3)

	clean := models.Post{ID: "10", Body: "hello"}
	assert.Equal(t, 0.0, a.Score(&clean).Score)
}

func TestAdvancedSweep(t *testing.T) {
	a := NewAdvanced(rules.Default().Advanced)
	posts := []models.Post{
		{ID: "clean", Body: "hello"},
		{ID: "kw", Body: "contact me"},
		{ID: "both", Body: "contact https://bit.ly/x"},
	}
	got := a.Sweep(posts, 0.3)
	require.Len(t, got, 2)
	assert.Equal(t, "both", got[0].PostID)
	assert.Equal(t, "kw", got[1].PostID)

	assert.Len(t, a.Sweep(posts, 0), 3)
}

func TestRunnerRecoversPanics(t *testing.T) {
	r := NewRunner(nil)
	err := r.RunNow(context.Background(), "boom", func(context.Context) error {
		panic("detector crashed")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "detector crashed")
}

func TestRunnerScheduleIgnoresCancellation(t *testing.T) {
	r := NewRunner(nil)
	ctx, cancel := context.WithCancel(context.Background())

	var ran atomic.Bool
	start := time.Now()
	r.Schedule(ctx, "delayed", 20*time.Millisecond, func(ctx context.Context) error {
		ran.Store(ctx.Err() == nil)
		return nil
	})
	cancel()
	r.Wait()

	assert.True(t, ran.Load())
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestRunnerPropagatesErrors(t *testing.T) {
	r := NewRunner(nil)
	err := r.RunNow(context.Background(), "fail", func(context.Context) error {
		return errors.New("nope")
	})
	assert.EqualError(t, err, "nope")
}

func TestConfirmFunc(t *testing.T) {
	var c Confirmer = ConfirmFunc(func(_ context.Context, prompt string) (bool, error) {
		return prompt == "yes?", nil
	})
	ok, err := c.Confirm(context.Background(), "yes?")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestScheduler(t *testing.T) {
	_, err := NewScheduler("not a schedule", NewRunner(nil), nil)
	assert.Error(t, err)

	s, err := NewScheduler("@every 10ms", NewRunner(nil), nil)
	require.NoError(t, err)

	var runs atomic.Int32
	require.NoError(t, s.Add("tick", func(context.Context) error {
		runs.Add(1)
		return nil
	}))
	assert.Equal(t, 1, s.Jobs())

	s.Start()
	require.Eventually(t, func() bool { return runs.Load() > 0 }, 3*time.Second, 10*time.Millisecond)
	s.Stop()
}
