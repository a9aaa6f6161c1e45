// Package seed generates demo feeds for local development and tests. The
// output is NDJSON in the same shape the feed loader reads.
package seed

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v6"
)

// Record is one generated feed line.
type Record struct {
	ID                string   `json:"id"`
	Author            string   `json:"author"`
	Permlink          string   `json:"permlink"`
	Title             string   `json:"title"`
	Body              string   `json:"body"`
	Tags              []string `json:"tags,omitempty"`
	Created           string   `json:"created"`
	PendingPayout     string   `json:"pending_payout_value"`
	TotalPayout       string   `json:"total_payout_value"`
	CuratorPayout     string   `json:"curator_payout_value"`
	BeneficiaryPayout string   `json:"beneficiary_payout_value"`
	Category          string   `json:"category,omitempty"`
	ParentAuthor      string   `json:"parent_author,omitempty"`
	JSONMetadata      string   `json:"json_metadata,omitempty"`
	Deleted           bool     `json:"deleted"`
	LastEdited        string   `json:"last_edited,omitempty"`
}

// Options tunes the generated feed.
type Options struct {
	Authors int
	Posts   int
	// Seed makes output reproducible; 0 picks a random seed.
	Seed int64
	// MaxHours spreads creation times over the last MaxHours hours.
	MaxHours int
	// SpamRatio, ReplyRatio and CopyRatio are probabilities in [0, 1].
	SpamRatio  float64
	ReplyRatio float64
	CopyRatio  float64
	Now        time.Time
}

// DefaultOptions is a small mixed feed.
func DefaultOptions() Options {
	return Options{
		Authors:    40,
		Posts:      300,
		MaxHours:   48,
		SpamRatio:  0.05,
		ReplyRatio: 0.3,
		CopyRatio:  0.03,
	}
}

var (
	apps        = []string{"peakd/2024.5.1", "ecency/3.1.0", "hiveblog/0.1", "leothreads/1.0", "inleo/2.0", "3speak/1.2"}
	categories  = []string{"hive", "photography", "travel", "crypto", "nsfw", "gambling", "life", "gaming"}
	normalTags  = []string{"hive", "life", "photography", "travel", "food", "art", "music", "blog"}
	shadyTags   = []string{"make-money", "earn-fast", "crypto-scam", "get-rich", "instant-cash"}
	spamBodies  = []string{"Thanks for the additional vote!", "Please vote for delegating HP to us.", "Check steemit.com for more.", "Follow me on blurt.blog", "!LOLZ !PIZZA"}
	botCommands = []string{"!PIZZA", "!LOL", "!BEER", "!giphy", "!MEME"}
)

// Factory builds feed records from fake content.
type Factory struct {
	faker   *gofakeit.Faker
	opts    Options
	authors []string
	nextID  int
}

// NewFactory creates a new Factory.
func NewFactory(opts Options) *Factory {
	if opts.Authors <= 0 {
		opts.Authors = 1
	}
	if opts.MaxHours <= 0 {
		opts.MaxHours = 24
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now().UTC()
	}
	f := &Factory{faker: gofakeit.New(opts.Seed), opts: opts, nextID: 1}

	seen := make(map[string]struct{}, opts.Authors)
	for len(f.authors) < opts.Authors {
		name := f.faker.Username()
		if _, dup := seen[name]; dup {
			name = name + strconv.Itoa(len(f.authors))
		}
		seen[name] = struct{}{}
		f.authors = append(f.authors, name)
	}
	return f
}

// Authors lists the generated author handles.
func (f *Factory) Authors() []string { return append([]string(nil), f.authors...) }

func (f *Factory) chance(p float64) bool {
	return p > 0 && f.faker.Float64Range(0, 1) < p
}

func amount(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64) + " HBD"
}

// BuildPost constructs one record. overrides run last.
func (f *Factory) BuildPost(overrides ...func(*Record)) Record {
	author := f.authors[f.faker.IntRange(0, len(f.authors)-1)]
	created := f.opts.Now.Add(-time.Duration(f.faker.IntRange(0, f.opts.MaxHours*60)) * time.Minute)
	title := f.faker.Sentence(5)

	r := Record{
		ID:                strconv.Itoa(f.nextID),
		Author:            author,
		Permlink:          fmt.Sprintf("%s-%d", f.faker.Word(), f.nextID),
		Title:             title,
		Body:              f.faker.Paragraph(1, 3, 12, "\n\n"),
		Tags:              []string{f.faker.RandomString(normalTags), f.faker.RandomString(normalTags)},
		Created:           created.Format("2006-01-02T15:04:05"),
		PendingPayout:     amount(f.faker.Float64Range(0, 60)),
		TotalPayout:       amount(0),
		CuratorPayout:     amount(0),
		BeneficiaryPayout: amount(0),
		Category:          f.faker.RandomString(categories),
		JSONMetadata:      fmt.Sprintf(`{"app":%q}`, f.faker.RandomString(apps)),
	}
	f.nextID++

	if f.chance(0.02) {
		r.PendingPayout = amount(f.faker.Float64Range(100, 900))
	}
	if f.chance(0.03) {
		r.Tags = append(r.Tags, f.faker.RandomString(shadyTags))
	}
	if f.chance(f.opts.ReplyRatio) {
		r.ParentAuthor = f.authors[f.faker.IntRange(0, len(f.authors)-1)]
		r.Title = ""
		r.Body = f.faker.Sentence(8)
		if f.chance(0.2) {
			r.Body += " " + f.faker.RandomString(botCommands)
		}
	}
	if f.chance(0.01) {
		r.Deleted = true
	}

	for _, o := range overrides {
		o(&r)
	}
	return r
}

// Generate builds the feed described by the options: regular posts with a
// share of spam lines and bodies copied from earlier posts.
func (f *Factory) Generate() []Record {
	out := make([]Record, 0, f.opts.Posts)
	for len(out) < f.opts.Posts {
		switch {
		case len(out) > 0 && f.chance(f.opts.CopyRatio):
			src := out[f.faker.IntRange(0, len(out)-1)]
			out = append(out, f.BuildPost(func(r *Record) {
				r.Body = src.Body
				r.ParentAuthor = ""
			}))
		case f.chance(f.opts.SpamRatio):
			out = append(out, f.BuildPost(func(r *Record) {
				r.Body = f.faker.RandomString(spamBodies)
			}))
		default:
			out = append(out, f.BuildPost())
		}
	}
	return out
}

// Farm adds one prolific author posting n short replies, the pattern the
// spam sweep and the risk engine look for.
func (f *Factory) Farm(n int) []Record {
	handle := "farm-" + f.faker.Username()
	out := make([]Record, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, f.BuildPost(func(r *Record) {
			r.Author = handle
			r.ParentAuthor = f.authors[i%len(f.authors)]
			r.Title = ""
			r.Body = f.faker.RandomString(botCommands)
		}))
	}
	return out
}

// WriteNDJSON writes one JSON object per line.
func WriteNDJSON(w io.Writer, records []Record) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	for i := range records {
		if err := enc.Encode(&records[i]); err != nil {
			return fmt.Errorf("encode record %s: %w", records[i].ID, err)
		}
	}
	return bw.Flush()
}
