package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/faireye-hive/hive-cache/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingKV struct{ *MemoryKV }

func (failingKV) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("backend down")
}

func TestFlagsRoundTrip(t *testing.T) {
	repo := NewStateRepository(NewMemoryKV(), nil)
	ctx := context.Background()

	flags, err := repo.LoadFlags(ctx)
	require.NoError(t, err)
	assert.NotNil(t, flags)
	assert.Empty(t, flags)

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	in := map[string]models.FlagRecord{
		"42": {Timestamp: at, FlaggedBy: "alice", Reason: "Moderação manual"},
	}
	require.NoError(t, repo.SaveFlags(ctx, in))

	out, err := repo.LoadFlags(ctx)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestFlagsTimestampIsRFC3339(t *testing.T) {
	kv := NewMemoryKV()
	repo := NewStateRepository(kv, nil)
	ctx := context.Background()

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.SaveFlags(ctx, map[string]models.FlagRecord{"1": {Timestamp: at, FlaggedBy: "system"}}))

	raw, err := kv.Get(ctx, KeyFlags)
	require.NoError(t, err)
	assert.JSONEq(t, `{"1":{"timestamp":"2024-05-01T12:00:00Z","flaggedBy":"system","reason":""}}`, string(raw))
}

func TestCorruptBlobsFallBackToDefaults(t *testing.T) {
	kv := NewMemoryKV()
	repo := NewStateRepository(kv, nil)
	ctx := context.Background()

	for _, key := range []string{KeyFlags, KeyMutes, KeySettings} {
		require.NoError(t, kv.Set(ctx, key, []byte("{not json")))
	}

	flags, err := repo.LoadFlags(ctx)
	require.NoError(t, err)
	assert.Empty(t, flags)

	mutes, err := repo.LoadMutes(ctx)
	require.NoError(t, err)
	assert.Empty(t, mutes)

	settings, err := repo.LoadSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultSettings(), settings)
}

func TestMutesDedupedAndSorted(t *testing.T) {
	kv := NewMemoryKV()
	repo := NewStateRepository(kv, nil)
	ctx := context.Background()

	require.NoError(t, repo.SaveMutes(ctx, []string{"carol", "bob", "carol", ""}))
	mutes, err := repo.LoadMutes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob", "carol"}, mutes)
}

func TestSettingsMergedOverDefaults(t *testing.T) {
	kv := NewMemoryKV()
	repo := NewStateRepository(kv, nil)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, KeySettings, []byte(`{"theme":"dark","postsPerPage":50}`)))
	s, err := repo.LoadSettings(ctx)
	require.NoError(t, err)

	want := models.DefaultSettings()
	want.Theme = "dark"
	want.PostsPerPage = 50
	assert.Equal(t, want, s)
}

func TestInvalidSettingsDiscarded(t *testing.T) {
	kv := NewMemoryKV()
	repo := NewStateRepository(kv, nil)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, KeySettings, []byte(`{"postsPerPage":0}`)))
	s, err := repo.LoadSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultSettings(), s)
}

func TestSession(t *testing.T) {
	kv := NewMemoryKV()
	repo := NewStateRepository(kv, nil)
	ctx := context.Background()

	s, err := repo.LoadSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, s)

	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.SaveSession(ctx, models.Session{Username: "alice", Since: since}))
	s, err = repo.LoadSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "alice", s.Username)

	require.NoError(t, repo.ClearSession(ctx))
	s, err = repo.LoadSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestCorruptSessionRemoved(t *testing.T) {
	kv := NewMemoryKV()
	repo := NewStateRepository(kv, nil)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, KeySession, []byte("alice")))
	s, err := repo.LoadSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, s)

	_, err = kv.Get(ctx, KeySession)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClearKeepsSession(t *testing.T) {
	kv := NewMemoryKV()
	repo := NewStateRepository(kv, nil)
	ctx := context.Background()

	require.NoError(t, repo.SaveFlags(ctx, map[string]models.FlagRecord{"1": {FlaggedBy: "x"}}))
	require.NoError(t, repo.SaveMutes(ctx, []string{"bob"}))
	require.NoError(t, repo.SaveSettings(ctx, models.Settings{Theme: "dark", PostsPerPage: 10}))
	require.NoError(t, repo.SaveSession(ctx, models.Session{Username: "alice"}))

	require.NoError(t, repo.Clear(ctx))

	flags, _ := repo.LoadFlags(ctx)
	assert.Empty(t, flags)
	mutes, _ := repo.LoadMutes(ctx)
	assert.Empty(t, mutes)
	s, _ := repo.LoadSettings(ctx)
	assert.Equal(t, models.DefaultSettings(), s)

	sess, err := repo.LoadSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, "alice", sess.Username)
}

func TestBackendErrorsReturned(t *testing.T) {
	repo := NewStateRepository(failingKV{NewMemoryKV()}, nil)
	ctx := context.Background()

	flags, err := repo.LoadFlags(ctx)
	assert.Error(t, err)
	assert.NotNil(t, flags)

	s, err := repo.LoadSettings(ctx)
	assert.Error(t, err)
	assert.Equal(t, models.DefaultSettings(), s)

	_, err = repo.LoadSession(ctx)
	assert.Error(t, err)
	assert.Equal(t, "memory", repo.Backend())
}
