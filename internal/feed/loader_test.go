package feed

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bufferLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestParseSkipsCorruptLine(t *testing.T) {
	var lines []string
	for i := 1; i <= 10; i++ {
		lines = append(lines, fmt.Sprintf(`{"id":%d,"author":"user%d","title":"t","body":"b"}`, i, i))
		if i == 5 {
			lines = append(lines, `{"id":99,"author":`)
		}
	}
	var logs bytes.Buffer

	res, err := Parse(context.Background(), []byte(strings.Join(lines, "\n")), bufferLogger(&logs))
	require.NoError(t, err)

	assert.Len(t, res.Posts, 10)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 11, res.Lines)
	assert.Contains(t, logs.String(), "skipping malformed feed line")
	// import order preserved
	assert.Equal(t, "1", res.Posts[0].ID)
	assert.Equal(t, "10", res.Posts[9].ID)
}

func TestParseSkipsBlankMissingIdentityAndDuplicates(t *testing.T) {
	payload := strings.Join([]string{
		`{"id":"a","author":"alice"}`,
		``,
		`   `,
		`{"id":"b"}`,
		`{"author":"carol"}`,
		`{"id":"a","author":"mallory"}`,
		`{"id":"c","author":"carol"}`,
	}, "\n")

	res, err := Parse(context.Background(), []byte(payload), bufferLogger(&bytes.Buffer{}))
	require.NoError(t, err)

	require.Len(t, res.Posts, 2)
	assert.Equal(t, "alice", res.Posts[0].Author)
	assert.Equal(t, "carol", res.Posts[1].Author)
	assert.Equal(t, 3, res.Skipped)
}

func TestParseAllLinesBroken(t *testing.T) {
	_, err := Parse(context.Background(), []byte("not json\n{also not"), nil)
	assert.ErrorIs(t, err, ErrEmptyFeed)

	_, err = Parse(context.Background(), nil, nil)
	assert.ErrorIs(t, err, ErrEmptyFeed)
}

func TestParseSkipsOversizedLine(t *testing.T) {
	huge := `{"id":"2","author":"b","body":"` + strings.Repeat("x", maxLineSize) + `"}`
	payload := strings.Join([]string{
		`{"id":"1","author":"a","body":"first"}`,
		huge,
		`{"id":"3","author":"c","body":"last"}`,
	}, "\n")
	var logs bytes.Buffer

	res, err := Parse(context.Background(), []byte(payload), bufferLogger(&logs))
	require.NoError(t, err)
	require.Len(t, res.Posts, 2)
	assert.Equal(t, "1", res.Posts[0].ID)
	assert.Equal(t, "3", res.Posts[1].ID)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 3, res.Lines)
	assert.Contains(t, logs.String(), "skipping oversized feed line")
}

func TestParseDigestFollowsContent(t *testing.T) {
	a := []byte(`{"id":"1","author":"a","body":"one"}`)
	b := []byte(`{"id":"1","author":"a","body":"two"}`)

	first, err := Parse(context.Background(), a, nil)
	require.NoError(t, err)
	again, err := Parse(context.Background(), a, nil)
	require.NoError(t, err)
	other, err := Parse(context.Background(), b, nil)
	require.NoError(t, err)

	assert.NotEmpty(t, first.Digest)
	assert.Equal(t, first.Digest, again.Digest)
	assert.NotEqual(t, first.Digest, other.Digest)
}

func TestParseCollapsesDoubledBackslashes(t *testing.T) {
	// Over-escaped quote: \\" becomes \" and the line decodes.
	payload := `{"id":"1","author":"a","body":"say \\"hi\\""}`

	res, err := Parse(context.Background(), []byte(payload), nil)
	require.NoError(t, err)
	require.Len(t, res.Posts, 1)
	assert.Equal(t, `say "hi"`, res.Posts[0].Body)
}

func TestRecordDefaults(t *testing.T) {
	payload := `{"id":"7","author":"bob","body":"x"}`

	res, err := Parse(context.Background(), []byte(payload), nil)
	require.NoError(t, err)
	p := res.Posts[0]

	assert.Zero(t, p.PendingPayout)
	assert.Nil(t, p.Tags)
	assert.True(t, p.Created.IsZero())
	assert.Equal(t, "", p.App)
	assert.False(t, p.IsReply())
	assert.Equal(t, "desconhecido", p.AppName())
}

func TestRecordFieldParsing(t *testing.T) {
	payload := `{"id":12,"author":"bob","tags":"Life  Photography","created":"2024-03-01T10:20:30",` +
		`"pending_payout_value":"612.500 HBD","total_payout_value":3.5,"curator_payout_value":"bad",` +
		`"parent_author":"alice","json_metadata":"{\"app\":\"PeakD/2024.1\"}","deleted":true,"last_edited":"2024-03-02"}`

	res, err := Parse(context.Background(), []byte(payload), nil)
	require.NoError(t, err)
	p := res.Posts[0]

	assert.Equal(t, "12", p.ID)
	assert.Equal(t, []string{"Life", "Photography"}, p.Tags)
	assert.Equal(t, "life photography", p.TagString())
	assert.Equal(t, time.Date(2024, 3, 1, 10, 20, 30, 0, time.UTC), p.Created)
	assert.InDelta(t, 612.5, p.PendingPayout, 1e-9)
	assert.InDelta(t, 3.5, p.TotalPayout, 1e-9)
	assert.Zero(t, p.CuratorPayout)
	assert.True(t, p.IsReply())
	assert.Equal(t, "peakd/2024.1", p.AppName())
	assert.True(t, p.Deleted)
	assert.Equal(t, "2024-03-02", p.LastEdited)
}

func TestRecordMetadataObject(t *testing.T) {
	payload := `{"id":"1","author":"a","json_metadata":{"app":"inleo/1.0","tags":["x"]}}`

	res, err := Parse(context.Background(), []byte(payload), nil)
	require.NoError(t, err)
	assert.Equal(t, "inleo/1.0", res.Posts[0].App)
}

func TestLoadFromFileAndHTTP(t *testing.T) {
	payload := []byte(`{"id":"1","author":"a"}` + "\n" + `{"id":"2","author":"b"}`)

	dir := t.TempDir()
	path := filepath.Join(dir, "data.json")
	require.NoError(t, os.WriteFile(path, payload, 0o600))

	res, err := Load(context.Background(), FileSource{Path: path}, nil)
	require.NoError(t, err)
	assert.Len(t, res.Posts, 2)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	res, err = Load(context.Background(), HTTPSource{URL: srv.URL}, nil)
	require.NoError(t, err)
	assert.Len(t, res.Posts, 2)
}

func TestLoadUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := Load(context.Background(), HTTPSource{URL: srv.URL}, nil)
	assert.Error(t, err)

	_, err = Load(context.Background(), FileSource{Path: "/nonexistent/feed.json"}, nil)
	assert.Error(t, err)
}

func TestNewSource(t *testing.T) {
	assert.IsType(t, HTTPSource{}, NewSource("http://x", "/tmp/y"))
	assert.IsType(t, FileSource{}, NewSource("", "/tmp/y"))
	assert.Nil(t, NewSource("", ""))
}
