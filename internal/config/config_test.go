package config

import (
	"os"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Port:               "8375",
		Env:                "development",
		StoreDriver:        DriverRedis,
		SpamScanDelay:      2 * time.Second,
		TracingSampleRatio: 1,
		TracingExporter:    "stdout",
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *Config)
		expectError bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"missing port", func(c *Config) { c.Port = "" }, true},
		{"sqlite driver", func(c *Config) { c.StoreDriver = DriverSQLite }, false},
		{"memory driver", func(c *Config) { c.StoreDriver = DriverMemory }, false},
		{"postgres without url", func(c *Config) { c.StoreDriver = DriverPostgres }, true},
		{"postgres with url", func(c *Config) {
			c.StoreDriver = DriverPostgres
			c.DatabaseURL = "postgres://u:p@localhost/hive"
		}, false},
		{"unknown driver", func(c *Config) { c.StoreDriver = "mongo" }, true},
		{"negative delay", func(c *Config) { c.SpamScanDelay = -time.Second }, true},
		{"sample ratio above one", func(c *Config) { c.TracingSampleRatio = 1.5 }, true},
		{"unknown exporter", func(c *Config) {
			c.TracingEnabled = true
			c.TracingExporter = "jaeger"
		}, true},
		{"otlp exporter", func(c *Config) {
			c.TracingEnabled = true
			c.TracingExporter = "otlp"
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	defer viper.Reset()

	c, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "8375", c.Port)
	assert.Equal(t, DriverRedis, c.StoreDriver)
	assert.Equal(t, 2*time.Second, c.SpamScanDelay)
	assert.Equal(t, 3*time.Second, c.PlagiarismScanDelay)
	assert.Equal(t, 300*time.Millisecond, c.SearchDebounce)
	assert.Equal(t, 5*time.Second, c.NotificationTTL)
	assert.Equal(t, 10000, c.RiskCacheSize)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	defer viper.Reset()
	defer os.Unsetenv("STORE_DRIVER")
	defer os.Unsetenv("SPAM_SCAN_DELAY")

	os.Setenv("STORE_DRIVER", "  SQLite ")
	os.Setenv("SPAM_SCAN_DELAY", "750ms")

	c, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, c.StoreDriver)
	assert.Equal(t, 750*time.Millisecond, c.SpamScanDelay)
}

func TestIsProduction(t *testing.T) {
	assert.True(t, (&Config{Env: "production"}).IsProduction())
	assert.True(t, (&Config{Env: "prod"}).IsProduction())
	assert.False(t, (&Config{Env: "test"}).IsProduction())
}
