package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Comment is a row of a post's discussion. A nil ParentCommentID marks a root comment.
type Comment struct {
	ID              string    `gorm:"primaryKey;type:uuid" json:"id"`
	Content         string    `gorm:"type:text;not null" json:"content"`
	AuthorID        string    `gorm:"type:uuid;not null;index" json:"author_id"`
	Author          *Profile  `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	PostID          string    `gorm:"type:uuid;not null;index" json:"post_id"`
	ParentCommentID *string   `gorm:"type:uuid;index" json:"parent_comment_id"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// BeforeCreate assigns a UUID when the caller did not provide one.
func (c *Comment) BeforeCreate(_ *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// IsRoot reports whether the comment sits at the top level of the discussion.
func (c *Comment) IsRoot() bool {
	return c.ParentCommentID == nil || *c.ParentCommentID == ""
}

// CommentLike records that a user liked a comment. Existence means liked.
type CommentLike struct {
	CommentID string    `gorm:"primaryKey;type:uuid" json:"comment_id"`
	UserID    string    `gorm:"primaryKey;type:uuid;index" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// CommentNode is one entry of an assembled comment tree.
type CommentNode struct {
	ID              string         `json:"id"`
	PostID          string         `json:"post_id"`
	ParentCommentID *string        `json:"parent_comment_id"`
	Content         string         `json:"content"`
	ContentHTML     string         `json:"content_html"`
	Author          AuthorInfo     `json:"author"`
	LikeCount       int64          `json:"like_count"`
	LikedByViewer   bool           `json:"liked_by_viewer"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	Replies         []*CommentNode `json:"replies"`
}

// LikeState is the result of a like toggle.
type LikeState struct {
	CommentID string `json:"comment_id"`
	Liked     bool   `json:"liked"`
	LikeCount int64  `json:"like_count"`
}

// Comment tree sort orders.
const (
	CommentSortRecent  = "recent"
	CommentSortPopular = "popular"
)
