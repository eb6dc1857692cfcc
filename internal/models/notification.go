package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NotificationType identifies what happened.
type NotificationType string

const (
	NotificationLike          NotificationType = "like"
	NotificationComment       NotificationType = "comment"
	NotificationMention       NotificationType = "mention"
	NotificationNewFollower   NotificationType = "new_follower"
	NotificationPostPublished NotificationType = "post_published"
)

// Notification is a stored event addressed to one recipient.
type Notification struct {
	ID            string           `gorm:"primaryKey;type:uuid" json:"id"`
	Type          NotificationType `gorm:"size:30;not null" json:"type"`
	RecipientID   string           `gorm:"type:uuid;not null;index:idx_notifications_recipient_created,priority:1" json:"recipient_id"`
	ActorID       *string          `gorm:"type:uuid" json:"actor_id"`
	Actor         *Profile         `gorm:"foreignKey:ActorID" json:"actor,omitempty"`
	RelatedPostID *string          `gorm:"type:uuid" json:"related_post_id"`
	RelatedPost   *Post            `gorm:"foreignKey:RelatedPostID" json:"related_post,omitempty"`
	IsRead        bool             `gorm:"not null;default:false;index" json:"is_read"`
	CreatedAt     time.Time        `gorm:"index:idx_notifications_recipient_created,priority:2,sort:desc" json:"created_at"`
}

// BeforeCreate assigns a UUID when the caller did not provide one.
func (n *Notification) BeforeCreate(_ *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return nil
}

// PresentedNotification is a notification rendered for display.
type PresentedNotification struct {
	ID            string           `json:"id"`
	Type          NotificationType `json:"type"`
	Message       string           `json:"message"`
	Icon          string           `json:"icon"`
	Category      string           `json:"category"`
	Actor         AuthorInfo       `json:"actor"`
	RelatedPostID *string          `json:"related_post_id,omitempty"`
	IsRead        bool             `json:"is_read"`
	CreatedAt     time.Time        `json:"created_at"`
}
