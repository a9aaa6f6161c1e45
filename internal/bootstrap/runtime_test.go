package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/faireye-hive/hive-cache/internal/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitRuntimeMemory(t *testing.T) {
	rt, err := InitRuntime(context.Background(), &config.Config{
		StoreDriver: config.DriverMemory,
		RedisURL:    "redis://:bad url",
	}, nil)
	require.NoError(t, err)
	defer rt.Close()

	assert.Nil(t, rt.Redis)
	assert.Nil(t, rt.DB)
	assert.Equal(t, "memory", rt.KV.Backend())
	assert.Nil(t, rt.Source)
	assert.NotNil(t, rt.Rules)
	assert.Empty(t, rt.Blacklist)
}

func TestInitRuntimeRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	rt, err := InitRuntime(context.Background(), &config.Config{
		StoreDriver: config.DriverRedis,
		RedisURL:    mr.Addr(),
	}, nil)
	require.NoError(t, err)
	defer rt.Close()

	require.NotNil(t, rt.Redis)
	assert.Equal(t, "redis", rt.KV.Backend())
	assert.NoError(t, rt.KV.Ping(context.Background()))
}

func TestInitRuntimeSQLiteWithFiles(t *testing.T) {
	dir := t.TempDir()
	feedPath := filepath.Join(dir, "feed.ndjson")
	blacklistPath := filepath.Join(dir, "blacklist.json")
	require.NoError(t, os.WriteFile(feedPath, []byte(`{"id":"1","author":"alice"}`+"\n"), 0o600))
	require.NoError(t, os.WriteFile(blacklistPath, []byte(`["spammer","Farmer"]`), 0o600))

	rt, err := InitRuntime(context.Background(), &config.Config{
		StoreDriver:   config.DriverSQLite,
		SQLitePath:    ":memory:",
		RedisURL:      "redis://:bad url",
		FeedPath:      feedPath,
		BlacklistPath: blacklistPath,
	}, nil)
	require.NoError(t, err)
	defer rt.Close()

	require.NotNil(t, rt.DB)
	assert.Equal(t, "sqlite", rt.KV.Backend())
	require.NotNil(t, rt.Source)
	assert.Equal(t, "file:"+feedPath, rt.Source.String())
	assert.True(t, rt.Blacklist.Contains("spammer"))
	assert.Len(t, rt.Blacklist, 2)
}

func TestInitRuntimeRejectsBadRules(t *testing.T) {
	_, err := InitRuntime(context.Background(), &config.Config{
		StoreDriver: config.DriverMemory,
		RulesPath:   filepath.Join(t.TempDir(), "missing.yml"),
	}, nil)
	assert.Error(t, err)

	_, err = InitRuntime(context.Background(), nil, nil)
	assert.Error(t, err)
}
