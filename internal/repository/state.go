package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/faireye-hive/hive-cache/internal/models"
	"github.com/faireye-hive/hive-cache/internal/observability"
)

// Keys of the persisted blobs.
const (
	KeyFlags    = "flags"
	KeyMutes    = "mutes"
	KeySettings = "settings"
	KeySession  = "session"
)

// StateRepository reads and writes the moderation state blobs. Missing or
// corrupt blobs load as defaults; only backend failures are returned.
type StateRepository struct {
	kv     KV
	logger *slog.Logger
}

// NewStateRepository wraps kv.
func NewStateRepository(kv KV, logger *slog.Logger) *StateRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &StateRepository{kv: kv, logger: logger}
}

// Backend names the underlying store.
func (r *StateRepository) Backend() string { return r.kv.Backend() }

// Ping checks the underlying store.
func (r *StateRepository) Ping(ctx context.Context) error { return r.kv.Ping(ctx) }

// load decodes key into dest. It reports false when the blob is missing or
// corrupt, in which case dest must be treated as unset.
func (r *StateRepository) load(ctx context.Context, key string, dest any) (bool, error) {
	defer observability.TrackStore("get", r.kv.Backend())()

	raw, err := r.kv.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		r.logger.WarnContext(ctx, "corrupt persisted state, using defaults",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return false, nil
	}
	return true, nil
}

func (r *StateRepository) save(ctx context.Context, key string, v any) error {
	defer observability.TrackStore("set", r.kv.Backend())()

	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := r.kv.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	observability.StoreWrites.WithLabelValues(key, r.kv.Backend()).Inc()
	return nil
}

// LoadFlags returns the persisted flag map, never nil.
func (r *StateRepository) LoadFlags(ctx context.Context) (map[string]models.FlagRecord, error) {
	var flags map[string]models.FlagRecord
	ok, err := r.load(ctx, KeyFlags, &flags)
	if err != nil || !ok || flags == nil {
		return map[string]models.FlagRecord{}, err
	}
	return flags, nil
}

// SaveFlags replaces the persisted flag map.
func (r *StateRepository) SaveFlags(ctx context.Context, flags map[string]models.FlagRecord) error {
	if flags == nil {
		flags = map[string]models.FlagRecord{}
	}
	return r.save(ctx, KeyFlags, flags)
}

// LoadMutes returns the persisted mute list, deduplicated.
func (r *StateRepository) LoadMutes(ctx context.Context) ([]string, error) {
	var mutes []string
	ok, err := r.load(ctx, KeyMutes, &mutes)
	if err != nil || !ok {
		return []string{}, err
	}
	return dedupe(mutes), nil
}

// SaveMutes replaces the persisted mute list. The list is stored sorted.
func (r *StateRepository) SaveMutes(ctx context.Context, mutes []string) error {
	out := dedupe(mutes)
	sort.Strings(out)
	return r.save(ctx, KeyMutes, out)
}

// LoadSettings returns saved settings merged over the defaults. Saved
// settings that fail validation are discarded.
func (r *StateRepository) LoadSettings(ctx context.Context) (models.Settings, error) {
	s := models.DefaultSettings()
	ok, err := r.load(ctx, KeySettings, &s)
	if err != nil || !ok {
		return models.DefaultSettings(), err
	}
	if verr := s.Validate(); verr != nil {
		r.logger.WarnContext(ctx, "persisted settings invalid, using defaults", slog.String("error", verr.Error()))
		return models.DefaultSettings(), nil
	}
	return s, nil
}

// SaveSettings persists s.
func (r *StateRepository) SaveSettings(ctx context.Context, s models.Settings) error {
	return r.save(ctx, KeySettings, s)
}

// LoadSession returns the stored session. A corrupt blob is removed and the
// session is reported as anonymous (nil).
func (r *StateRepository) LoadSession(ctx context.Context) (*models.Session, error) {
	defer observability.TrackStore("get", r.kv.Backend())()

	raw, err := r.kv.Get(ctx, KeySession)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", KeySession, err)
	}
	var s models.Session
	if err := json.Unmarshal(raw, &s); err != nil || s.Username == "" {
		r.logger.WarnContext(ctx, "corrupt session blob removed")
		if derr := r.kv.Delete(ctx, KeySession); derr != nil {
			return nil, fmt.Errorf("remove corrupt session: %w", derr)
		}
		return nil, nil
	}
	return &s, nil
}

// SaveSession persists the current moderator.
func (r *StateRepository) SaveSession(ctx context.Context, s models.Session) error {
	return r.save(ctx, KeySession, s)
}

// ClearSession removes the current moderator.
func (r *StateRepository) ClearSession(ctx context.Context) error {
	return r.kv.Delete(ctx, KeySession)
}

// Clear removes flags, mutes and settings. The session survives.
func (r *StateRepository) Clear(ctx context.Context) error {
	defer observability.TrackStore("delete", r.kv.Backend())()
	return r.kv.Delete(ctx, KeyFlags, KeyMutes, KeySettings)
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
