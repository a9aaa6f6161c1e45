// Package feed imports the NDJSON post batch and the author blacklist.
package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/faireye-hive/hive-cache/internal/models"
	"github.com/faireye-hive/hive-cache/internal/observability"

	"github.com/cespare/xxhash/v2"
)

// ErrEmptyFeed is returned when no line of the feed could be parsed.
var ErrEmptyFeed = errors.New("feed contains no parsable posts")

const maxLineSize = 8 << 20

// Source yields the raw bytes of a feed.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
	String() string
}

// FileSource reads a feed from the local filesystem.
type FileSource struct {
	Path string
}

func (s FileSource) Open(_ context.Context) (io.ReadCloser, error) {
	return os.Open(s.Path)
}

func (s FileSource) String() string { return "file:" + s.Path }

// HTTPSource fetches a feed with a GET request.
type HTTPSource struct {
	URL    string
	Client *http.Client
}

func (s HTTPSource) Open(ctx context.Context) (io.ReadCloser, error) {
	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, s.URL)
	}
	return resp.Body, nil
}

func (s HTTPSource) String() string { return s.URL }

// BytesSource serves an in-memory payload, e.g. an uploaded feed.
type BytesSource []byte

func (s BytesSource) Open(_ context.Context) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(s)), nil
}

func (s BytesSource) String() string { return "upload" }

// NewSource picks an HTTP source when url is set, otherwise a file source.
// It returns nil when neither is configured.
func NewSource(url, path string) Source {
	switch {
	case url != "":
		return HTTPSource{URL: url}
	case path != "":
		return FileSource{Path: path}
	default:
		return nil
	}
}

// Result summarizes one import.
type Result struct {
	Posts   []models.Post
	Skipped int
	Lines   int
	// Digest identifies the payload content. Equal feeds share a digest
	// across restarts and instances.
	Digest string
}

// Load reads and parses the whole feed from src.
func Load(ctx context.Context, src Source, logger *slog.Logger) (*Result, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open feed %s: %w", src, err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read feed %s: %w", src, err)
	}
	return Parse(ctx, raw, logger)
}

// Parse decodes an NDJSON payload. Doubled backslashes from the export
// pipeline are collapsed to one before splitting. Malformed or oversized
// lines, lines without id or author and duplicate ids are skipped and
// logged; only a payload with no usable line fails.
func Parse(ctx context.Context, raw []byte, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	raw = bytes.ReplaceAll(raw, []byte(`\\`), []byte(`\`))

	res := &Result{Digest: strconv.FormatUint(xxhash.Sum64(raw), 16)}
	seen := make(map[string]struct{})

	lineNo := 0
	for rest := raw; len(rest) > 0; {
		var next []byte
		if i := bytes.IndexByte(rest, '\n'); i >= 0 {
			next, rest = rest[:i], rest[i+1:]
		} else {
			next, rest = rest, nil
		}
		lineNo++
		line := bytes.TrimSpace(next)
		if len(line) == 0 {
			continue
		}
		res.Lines++

		if len(line) > maxLineSize {
			res.Skipped++
			observability.FeedLinesSkipped.WithLabelValues("oversize").Inc()
			logger.WarnContext(ctx, "skipping oversized feed line",
				slog.Int("line", lineNo),
				slog.Int("bytes", len(line)),
			)
			continue
		}

		var rec record
		if err := json.Unmarshal(line, &rec); err != nil {
			res.Skipped++
			observability.FeedLinesSkipped.WithLabelValues("malformed").Inc()
			logger.WarnContext(ctx, "skipping malformed feed line",
				slog.Int("line", lineNo),
				slog.String("error", err.Error()),
			)
			continue
		}
		post, err := rec.toPost()
		if err != nil {
			res.Skipped++
			observability.FeedLinesSkipped.WithLabelValues("identity").Inc()
			logger.WarnContext(ctx, "skipping feed line without identity", slog.Int("line", lineNo))
			continue
		}
		if _, dup := seen[post.ID]; dup {
			res.Skipped++
			observability.FeedLinesSkipped.WithLabelValues("duplicate").Inc()
			logger.WarnContext(ctx, "skipping duplicate post id",
				slog.Int("line", lineNo),
				slog.String("post_id", post.ID),
			)
			continue
		}
		seen[post.ID] = struct{}{}
		res.Posts = append(res.Posts, post)
	}

	if len(res.Posts) == 0 {
		return nil, ErrEmptyFeed
	}
	return res, nil
}
