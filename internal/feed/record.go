package feed

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/faireye-hive/hive-cache/internal/models"
)

// ErrMissingIdentity rejects records without an id or author.
var ErrMissingIdentity = errors.New("record has no id or author")

// record mirrors one feed line. Fields whose upstream type varies are kept
// raw and resolved in toPost.
type record struct {
	ID                json.RawMessage `json:"id"`
	Author            string          `json:"author"`
	Permlink          string          `json:"permlink"`
	Title             string          `json:"title"`
	Body              string          `json:"body"`
	Tags              json.RawMessage `json:"tags"`
	Created           string          `json:"created"`
	PendingPayout     json.RawMessage `json:"pending_payout_value"`
	TotalPayout       json.RawMessage `json:"total_payout_value"`
	CuratorPayout     json.RawMessage `json:"curator_payout_value"`
	BeneficiaryPayout json.RawMessage `json:"beneficiary_payout_value"`
	Category          string          `json:"category"`
	ParentAuthor      string          `json:"parent_author"`
	JSONMetadata      json.RawMessage `json:"json_metadata"`
	Deleted           bool            `json:"deleted"`
	LastEdited        string          `json:"last_edited"`
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func (r *record) toPost() (models.Post, error) {
	id := rawString(r.ID)
	author := strings.TrimSpace(r.Author)
	if id == "" || author == "" {
		return models.Post{}, ErrMissingIdentity
	}
	return models.Post{
		ID:                id,
		Author:            author,
		Permlink:          r.Permlink,
		Title:             r.Title,
		Body:              r.Body,
		Tags:              parseTags(r.Tags),
		Created:           parseTime(r.Created),
		PendingPayout:     parseAmount(r.PendingPayout),
		TotalPayout:       parseAmount(r.TotalPayout),
		CuratorPayout:     parseAmount(r.CuratorPayout),
		BeneficiaryPayout: parseAmount(r.BeneficiaryPayout),
		Category:          r.Category,
		ParentAuthor:      strings.TrimSpace(r.ParentAuthor),
		App:               appFromMetadata(r.JSONMetadata),
		Deleted:           r.Deleted,
		LastEdited:        r.LastEdited,
	}, nil
}

// rawString accepts a JSON string or number.
func rawString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// parseAmount reads values like "12.345 HBD", "7" or 7. Anything else is 0.
func parseAmount(raw json.RawMessage) float64 {
	s := rawString(raw)
	if s == "" {
		return 0
	}
	if i := strings.IndexByte(s, ' '); i >= 0 {
		s = s[:i]
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// parseTags accepts an array of strings or a single whitespace separated string.
func parseTags(raw json.RawMessage) []string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.Fields(s)
	}
	return nil
}

func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// appFromMetadata extracts json_metadata.app. Hive nodes ship the metadata
// either as an object or as a JSON-encoded string.
func appFromMetadata(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	if raw[0] == '"' {
		var encoded string
		if err := json.Unmarshal(raw, &encoded); err != nil {
			return ""
		}
		raw = []byte(encoded)
	}
	var meta struct {
		App json.RawMessage `json:"app"`
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return ""
	}
	return rawString(meta.App)
}
