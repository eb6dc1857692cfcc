package repository

import (
	"testing"
	"time"

	"matchday/internal/database"
	"matchday/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return gormDB, mock
}

// setupTestDB opens a private in-memory SQLite database with the full schema.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))
	return db
}

func seedProfile(t *testing.T, db *gorm.DB, username string) *models.Profile {
	t.Helper()
	p := &models.Profile{Username: username}
	require.NoError(t, db.Create(p).Error)
	return p
}

func seedPost(t *testing.T, db *gorm.DB, author *models.Profile, title string) *models.Post {
	t.Helper()
	now := time.Now()
	p := &models.Post{Title: title, Content: "Full report of " + title, AuthorID: author.ID, Category: "football", PublishedAt: &now}
	require.NoError(t, db.Create(p).Error)
	return p
}

func seedComment(t *testing.T, db *gorm.DB, post *models.Post, author *models.Profile, parent *models.Comment, content string) *models.Comment {
	t.Helper()
	c := &models.Comment{PostID: post.ID, AuthorID: author.ID, Content: content}
	if parent != nil {
		c.ParentCommentID = &parent.ID
	}
	require.NoError(t, db.Create(c).Error)
	return c
}
