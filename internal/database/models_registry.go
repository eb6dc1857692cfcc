package database

import "matchday/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.Profile{},
		&models.Post{},
		&models.Bookmark{},
		&models.Comment{},
		&models.CommentLike{},
		&models.PostReport{},
		&models.CommentReport{},
		&models.Notification{},
	}
}
