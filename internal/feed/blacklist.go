package feed

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
)

// Blacklist is a read-only set of author handles.
type Blacklist map[string]struct{}

// NewBlacklist builds a set from handles, trimming blanks.
func NewBlacklist(handles ...string) Blacklist {
	b := make(Blacklist, len(handles))
	for _, h := range handles {
		h = strings.TrimSpace(h)
		if h != "" {
			b[h] = struct{}{}
		}
	}
	return b
}

// Contains reports whether author is blacklisted. A nil set contains nothing.
func (b Blacklist) Contains(author string) bool {
	_, ok := b[author]
	return ok
}

// LoadBlacklist fetches a JSON array of handles. Any failure degrades to an
// empty set and is only logged; scoring never waits on it.
func LoadBlacklist(ctx context.Context, src Source, logger *slog.Logger) Blacklist {
	if logger == nil {
		logger = slog.Default()
	}
	if src == nil {
		return Blacklist{}
	}
	rc, err := src.Open(ctx)
	if err != nil {
		logger.WarnContext(ctx, "blacklist unavailable, continuing with empty set",
			slog.String("source", src.String()),
			slog.String("error", err.Error()),
		)
		return Blacklist{}
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		logger.WarnContext(ctx, "blacklist read failed", slog.String("error", err.Error()))
		return Blacklist{}
	}
	var handles []string
	if err := json.Unmarshal(raw, &handles); err != nil {
		logger.WarnContext(ctx, "blacklist is not a JSON array of strings", slog.String("error", err.Error()))
		return Blacklist{}
	}
	b := NewBlacklist(handles...)
	logger.InfoContext(ctx, "blacklist loaded", slog.Int("authors", len(b)))
	return b
}
