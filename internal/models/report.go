package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReportStatus is the review state of a report.
type ReportStatus string

const (
	ReportStatusPending   ReportStatus = "pending"
	ReportStatusResolved  ReportStatus = "resolved"
	ReportStatusApproved  ReportStatus = "approved"
	ReportStatusDismissed ReportStatus = "dismissed"
)

// IsTerminal reports whether no further transition is exposed from s.
func (s ReportStatus) IsTerminal() bool {
	return s != ReportStatusPending
}

// ReportKind selects the reported entity.
type ReportKind string

const (
	ReportKindPost    ReportKind = "post"
	ReportKindComment ReportKind = "comment"
)

// ParseReportKind validates a kind taken from a request.
func ParseReportKind(s string) (ReportKind, bool) {
	switch ReportKind(strings.ToLower(strings.TrimSpace(s))) {
	case ReportKindPost:
		return ReportKindPost, true
	case ReportKindComment:
		return ReportKindComment, true
	}
	return "", false
}

// ApprovedStatus is the status a report of this kind moves to when a moderator upholds it.
func (k ReportKind) ApprovedStatus() ReportStatus {
	if k == ReportKindPost {
		return ReportStatusApproved
	}
	return ReportStatusResolved
}

// Table is the backing table for reports of this kind.
func (k ReportKind) Table() string {
	if k == ReportKindPost {
		return "post_reports"
	}
	return "comment_reports"
}

// PostReport flags a post for moderator review.
type PostReport struct {
	ID          string       `gorm:"primaryKey;type:uuid" json:"id"`
	PostID      string       `gorm:"type:uuid;not null;index;uniqueIndex:idx_post_reports_pending,where:status = 'pending'" json:"post_id"`
	ReporterID  string       `gorm:"type:uuid;not null;index;uniqueIndex:idx_post_reports_pending,where:status = 'pending'" json:"reporter_id"`
	Reporter    *Profile     `gorm:"foreignKey:ReporterID" json:"reporter,omitempty"`
	Reason      string       `gorm:"size:100;not null" json:"reason"`
	Description string       `gorm:"size:1000" json:"description"`
	Status      ReportStatus `gorm:"size:20;not null;default:pending;index" json:"status"`
	ReviewedBy  *string      `gorm:"type:uuid" json:"reviewed_by,omitempty"`
	ReviewedAt  *time.Time   `json:"reviewed_at,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// BeforeCreate assigns a UUID and the initial status.
func (r *PostReport) BeforeCreate(_ *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Status == "" {
		r.Status = ReportStatusPending
	}
	return nil
}

// CommentReport flags a comment for moderator review.
type CommentReport struct {
	ID          string       `gorm:"primaryKey;type:uuid" json:"id"`
	CommentID   string       `gorm:"type:uuid;not null;index;uniqueIndex:idx_comment_reports_pending,where:status = 'pending'" json:"comment_id"`
	ReporterID  string       `gorm:"type:uuid;not null;index;uniqueIndex:idx_comment_reports_pending,where:status = 'pending'" json:"reporter_id"`
	Reporter    *Profile     `gorm:"foreignKey:ReporterID" json:"reporter,omitempty"`
	Reason      string       `gorm:"size:100;not null" json:"reason"`
	Description string       `gorm:"size:1000" json:"description"`
	Status      ReportStatus `gorm:"size:20;not null;default:pending;index" json:"status"`
	ReviewedBy  *string      `gorm:"type:uuid" json:"reviewed_by,omitempty"`
	ReviewedAt  *time.Time   `json:"reviewed_at,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// BeforeCreate assigns a UUID and the initial status.
func (r *CommentReport) BeforeCreate(_ *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Status == "" {
		r.Status = ReportStatusPending
	}
	return nil
}

// ReportRow is the moderator-facing view of either report variant.
type ReportRow struct {
	ID               string       `json:"id"`
	Kind             ReportKind   `json:"kind"`
	TargetID         string       `json:"target_id"`
	Reason           string       `json:"reason"`
	Description      string       `json:"description"`
	Status           ReportStatus `json:"status"`
	ReporterID       string       `json:"reporter_id"`
	ReporterUsername string       `json:"reporter_username"`
	ReviewedBy       *string      `json:"reviewed_by,omitempty"`
	ReviewedAt       *time.Time   `json:"reviewed_at,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
}

// RowFromPostReport converts a post report into a ReportRow.
func RowFromPostReport(r *PostReport) ReportRow {
	row := ReportRow{
		ID:          r.ID,
		Kind:        ReportKindPost,
		TargetID:    r.PostID,
		Reason:      r.Reason,
		Description: r.Description,
		Status:      r.Status,
		ReporterID:  r.ReporterID,
		ReviewedBy:  r.ReviewedBy,
		ReviewedAt:  r.ReviewedAt,
		CreatedAt:   r.CreatedAt,
	}
	row.ReporterUsername = AuthorInfoFor(r.ReporterID, r.Reporter).Username
	return row
}

// RowFromCommentReport converts a comment report into a ReportRow.
func RowFromCommentReport(r *CommentReport) ReportRow {
	row := ReportRow{
		ID:          r.ID,
		Kind:        ReportKindComment,
		TargetID:    r.CommentID,
		Reason:      r.Reason,
		Description: r.Description,
		Status:      r.Status,
		ReporterID:  r.ReporterID,
		ReviewedBy:  r.ReviewedBy,
		ReviewedAt:  r.ReviewedAt,
		CreatedAt:   r.CreatedAt,
	}
	row.ReporterUsername = AuthorInfoFor(r.ReporterID, r.Reporter).Username
	return row
}
