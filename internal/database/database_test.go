package database

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"matchday/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestConfigurePool(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	cfg := &config.Config{
		DBMaxOpenConns:           10,
		DBMaxIdleConns:           5,
		DBConnMaxLifetimeMinutes: 15,
	}
	require.NoError(t, configurePool(db, cfg))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 10, sqlDB.Stats().MaxOpenConnections)
}

func TestBuildDSN_DefaultsSSLMode(t *testing.T) {
	dsn := buildDSN("db", "5432", "matchday", "pw", "matchday", "")
	assert.Contains(t, dsn, "sslmode=disable")
	assert.Contains(t, dsn, "host=db")
}

func TestPlanSchema(t *testing.T) {
	tests := []struct {
		name     string
		mode     string
		env      string
		allow    bool
		wantSQL  bool
		wantAuto bool
		wantErr  bool
	}{
		{name: "hybrid dev", mode: "", env: "development", wantSQL: true, wantAuto: true},
		{name: "hybrid prod", mode: "hybrid", env: "production", wantSQL: true},
		{name: "sql only", mode: "SQL", env: "development", wantSQL: true},
		{name: "auto dev", mode: "auto", env: "test", wantAuto: true},
		{name: "auto prod refused", mode: "auto", env: "production", wantErr: true},
		{name: "auto prod allowed", mode: "auto", env: "staging", allow: true, wantAuto: true},
		{name: "unknown", mode: "yolo", env: "development", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{DBSchemaMode: tt.mode, Env: tt.env, DBAutoMigrateAllowDestructive: tt.allow}
			plan, err := PlanSchema(cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, plan.SQL)
			assert.Equal(t, tt.wantAuto, plan.AutoMigrate)
		})
	}
}

func TestMigrationsRegistered(t *testing.T) {
	require.NotEmpty(t, GetMigrations())
	m := GetMigrationByVersion(1)
	require.NotNil(t, m)
	assert.Equal(t, "000001_init", m.String())
	assert.Contains(t, m.UpScript, "CREATE TABLE IF NOT EXISTS comment_reports")
	assert.Contains(t, m.DownScript, "DROP TABLE IF EXISTS comments")
}

func TestValidateAppliedVersions(t *testing.T) {
	assert.NoError(t, validateAppliedVersions(nil, GetMigrations()))
	assert.NoError(t, validateAppliedVersions([]int{1}, GetMigrations()))
	err := validateAppliedVersions([]int{1, 42}, GetMigrations())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "000042")
}

func TestParseMigrationName(t *testing.T) {
	tests := []struct {
		file    string
		version int
		name    string
		ok      bool
	}{
		{"000001_init.up.sql", 1, "init", true},
		{"000012_add_report_index.up.sql", 12, "add_report_index", true},
		{"000001_init.down.sql", 0, "", false},
		{"init.up.sql", 0, "", false},
		{"abc_init.up.sql", 0, "", false},
		{"000003_.up.sql", 0, "", false},
	}
	for _, tt := range tests {
		version, name, ok := parseMigrationName(tt.file)
		assert.Equal(t, tt.ok, ok, tt.file)
		assert.Equal(t, tt.version, version, tt.file)
		assert.Equal(t, tt.name, name, tt.file)
	}
}

func TestPendingMigrations(t *testing.T) {
	registered := []Migration{{Version: 1, Name: "init"}, {Version: 2, Name: "reports"}, {Version: 3, Name: "indexes"}}
	pending := pendingMigrations([]int{1, 3}, registered)
	require.Len(t, pending, 1)
	assert.Equal(t, 2, pending[0].Version)
	assert.Len(t, pendingMigrations(nil, registered), 3)
}

func TestGetSchemaStatus_EmptyLedger(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	status, err := GetSchemaStatus(context.Background(), db, &config.Config{DBSchemaMode: SchemaModeSQL, Env: "test"})
	require.NoError(t, err)
	assert.True(t, status.SQL)
	assert.False(t, status.AutoMigrate)
	assert.Empty(t, status.AppliedVersions)
	assert.Len(t, status.PendingMigrations, len(GetMigrations()))
}

func TestApplySchema_AutoModeOnSQLite(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	cfg := &config.Config{DBSchemaMode: SchemaModeAuto, Env: "test"}
	require.NoError(t, ApplySchema(context.Background(), db, cfg))

	for _, table := range []string{"profiles", "posts", "comments", "comment_likes", "post_reports", "comment_reports", "notifications", "bookmarks"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
	assert.False(t, db.Migrator().HasColumn("posts", "comments_count"))
}

func TestConfigurePool_Defaults(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, configurePool(db, &config.Config{DBMaxOpenConns: -3}))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, defaultMaxOpen, sqlDB.Stats().MaxOpenConnections)
}

func TestGormLogger_Trace(t *testing.T) {
	var buf bytes.Buffer
	l := &gormLogger{log: slog.New(slog.NewJSONHandler(&buf, nil)), level: logger.Warn}
	query := func() (string, int64) { return "SELECT 1", 1 }

	l.Trace(context.Background(), time.Now(), query, nil)
	assert.Zero(t, buf.Len(), "fast queries are quiet at warn")

	l.Trace(context.Background(), time.Now(), query, gorm.ErrRecordNotFound)
	assert.Zero(t, buf.Len(), "not found is not an error")

	l.Trace(context.Background(), time.Now().Add(-time.Second), query, nil)
	assert.Contains(t, buf.String(), `"msg":"slow query"`)
	buf.Reset()

	l.Trace(context.Background(), time.Now(), query, errors.New("boom"))
	assert.Contains(t, buf.String(), `"level":"ERROR"`)
	assert.Contains(t, buf.String(), `"error":"boom"`)
	buf.Reset()

	l.LogMode(logger.Silent).Trace(context.Background(), time.Now(), query, errors.New("boom"))
	assert.Zero(t, buf.Len())
}
