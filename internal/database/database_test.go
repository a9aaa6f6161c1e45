package database

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/faireye-hive/hive-cache/internal/config"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestConnectSQLiteMemory(t *testing.T) {
	cfg := &config.Config{StoreDriver: config.DriverSQLite, SQLitePath: ":memory:", DBMaxOpenConns: 1}
	db, err := Connect(cfg, slog.Default())
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
	assert.NoError(t, Ping(context.Background(), db))
}

func TestDialectorRejectsNonSQLDrivers(t *testing.T) {
	_, err := Dialector(&config.Config{StoreDriver: config.DriverRedis})
	assert.Error(t, err)
}

func TestDialectorPostgres(t *testing.T) {
	d, err := Dialector(&config.Config{StoreDriver: config.DriverPostgres, DatabaseURL: "postgres://u:p@localhost:5432/hive"})
	require.NoError(t, err)
	assert.Equal(t, "postgres", d.Name())
}

func TestPing(t *testing.T) {
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer sqlDB.Close()

	mock.ExpectPing()
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	require.NoError(t, err)

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	assert.Error(t, Ping(context.Background(), db))

	assert.Error(t, Ping(context.Background(), nil))
}

func TestGormLoggerLevels(t *testing.T) {
	l := NewGormLogger(slog.Default())
	silent := l.LogMode(logger.Silent).(*CustomGormLogger)
	assert.Equal(t, logger.Silent, silent.Config.LogLevel)
	assert.Equal(t, logger.Warn, l.Config.LogLevel)

	called := false
	silent.Trace(context.Background(), time.Now(), func() (string, int64) {
		called = true
		return "SELECT 1", 1
	}, nil)
	assert.False(t, called)

	l.Trace(context.Background(), time.Now().Add(-time.Second), func() (string, int64) {
		called = true
		return "SELECT 1", 1
	}, nil)
	assert.True(t, called)
}
