// Package repository provides data access layer implementations for the application.
package repository

import (
	"errors"

	"matchday/internal/database"
	"matchday/internal/models"

	"gorm.io/gorm"
)

// readDB routes read-only queries to the replica when one is configured.
func readDB(primary *gorm.DB) *gorm.DB {
	if database.ReadDB != nil {
		return database.ReadDB
	}
	return primary
}

// notFound maps gorm.ErrRecordNotFound to a NOT_FOUND AppError and passes other errors through.
func notFound(err error, resource string, id interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError(resource, id)
	}
	return err
}
