package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Content limits.
const (
	MaxCommentLength     = 5000
	MaxReportReason      = 100
	MaxReportDescription = 1000
	MaxSearchQuery       = 100
)

// ValidateID requires a UUID.
func ValidateID(field, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%s is required", field)
	}
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%s must be a valid UUID", field)
	}
	return nil
}

// ValidateComment checks trimmed comment content.
func ValidateComment(content string) error {
	if content == "" {
		return fmt.Errorf("content is required")
	}
	if utf8.RuneCountInString(content) > MaxCommentLength {
		return fmt.Errorf("comment too long (max %d characters)", MaxCommentLength)
	}
	return nil
}

// ValidateReport checks trimmed report fields.
func ValidateReport(reason, description string) error {
	if reason == "" {
		return fmt.Errorf("reason is required")
	}
	if utf8.RuneCountInString(reason) > MaxReportReason {
		return fmt.Errorf("reason must not exceed %d characters", MaxReportReason)
	}
	if utf8.RuneCountInString(description) > MaxReportDescription {
		return fmt.Errorf("description must not exceed %d characters", MaxReportDescription)
	}
	return nil
}

// ValidateSearchQuery bounds the free-text part of a search.
func ValidateSearchQuery(q string) error {
	if utf8.RuneCountInString(q) > MaxSearchQuery {
		return fmt.Errorf("search query must not exceed %d characters", MaxSearchQuery)
	}
	return nil
}
