// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Post statuses.
const (
	PostStatusDraft     = "draft"
	PostStatusPublished = "published"
)

// Post is a news article.
type Post struct {
	ID          string     `gorm:"primaryKey;type:uuid" json:"id"`
	Title       string     `gorm:"not null" json:"title"`
	Summary     string     `json:"summary"`
	Content     string     `gorm:"type:text;not null" json:"content"`
	Category    string     `gorm:"size:40;index" json:"category"`
	ImageURL    string     `json:"image_url"`
	AuthorID    string     `gorm:"type:uuid;not null;index" json:"author_id"`
	Author      *Profile   `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Status      string     `gorm:"size:20;not null;default:published;index" json:"status"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	// LikesCount is the total of likes on the post's comments (computed)
	LikesCount int `gorm:"->;-:migration" json:"likes_count"`
	// CommentsCount is not persisted; computed at query time
	CommentsCount int `gorm:"->;-:migration" json:"comments_count"`
	// BookmarksCount is not persisted; computed at query time
	BookmarksCount int `gorm:"->;-:migration" json:"bookmarks_count"`
	// Bookmarked indicates whether the requesting viewer bookmarked this post (computed)
	Bookmarked bool      `gorm:"->;-:migration" json:"bookmarked"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// BeforeCreate assigns a UUID when the caller did not provide one.
func (p *Post) BeforeCreate(_ *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = PostStatusPublished
	}
	return nil
}

// Bookmark marks a post as saved by a user. Existence means bookmarked.
type Bookmark struct {
	PostID    string    `gorm:"primaryKey;type:uuid" json:"post_id"`
	UserID    string    `gorm:"primaryKey;type:uuid;index" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// PostMetrics are the aggregate counters shown on an article page.
type PostMetrics struct {
	Views     int64 `json:"views"`
	Comments  int64 `json:"comments"`
	Likes     int64 `json:"likes"`
	Bookmarks int64 `json:"bookmarks"`
}

// PostDetail is a post together with its metrics.
type PostDetail struct {
	*Post
	Metrics PostMetrics `json:"metrics"`
}
