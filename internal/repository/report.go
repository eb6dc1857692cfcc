package repository

import (
	"context"
	"errors"
	"time"

	"matchday/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReportRepository persists post and comment reports and their review transitions.
type ReportRepository interface {
	CreatePostReport(ctx context.Context, report *models.PostReport) error
	CreateCommentReport(ctx context.Context, report *models.CommentReport) error
	HasPendingReport(ctx context.Context, kind models.ReportKind, targetID, reporterID string) (bool, error)
	ListPostReports(ctx context.Context, statuses []models.ReportStatus, limit int) ([]*models.PostReport, error)
	ListCommentReports(ctx context.Context, statuses []models.ReportStatus, limit int) ([]*models.CommentReport, error)
	GetReport(ctx context.Context, kind models.ReportKind, id string) (*models.ReportRow, error)
	Transition(ctx context.Context, kind models.ReportKind, id string, to models.ReportStatus, moderatorID string, at time.Time) error
	DeleteCommentAndResolve(ctx context.Context, reportID, moderatorID string, at time.Time) error
	DeletePostAndApprove(ctx context.Context, reportID, moderatorID string, at time.Time) error
}

type reportRepository struct {
	db *gorm.DB
}

// NewReportRepository returns a new ReportRepository implementation.
func NewReportRepository(db *gorm.DB) ReportRepository {
	return &reportRepository{db: db}
}

// CreatePostReport inserts a pending report. A second pending report from the
// same reporter is a conflict.
func (r *reportRepository) CreatePostReport(ctx context.Context, report *models.PostReport) error {
	err := r.db.WithContext(ctx).Omit(clause.Associations).Create(report).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return models.NewConflictError("You already reported this post")
	}
	return err
}

func (r *reportRepository) CreateCommentReport(ctx context.Context, report *models.CommentReport) error {
	err := r.db.WithContext(ctx).Omit(clause.Associations).Create(report).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return models.NewConflictError("You already reported this comment")
	}
	return err
}

func (r *reportRepository) HasPendingReport(ctx context.Context, kind models.ReportKind, targetID, reporterID string) (bool, error) {
	column := "comment_id"
	if kind == models.ReportKindPost {
		column = "post_id"
	}
	var count int64
	err := r.db.WithContext(ctx).Table(kind.Table()).
		Where(column+" = ? AND reporter_id = ? AND status = ?", targetID, reporterID, models.ReportStatusPending).
		Count(&count).Error
	return count > 0, err
}

// ListPostReports returns post reports newest first. An empty status list means all.
func (r *reportRepository) ListPostReports(ctx context.Context, statuses []models.ReportStatus, limit int) ([]*models.PostReport, error) {
	var reports []*models.PostReport
	err := r.listQuery(ctx, statuses, limit).Find(&reports).Error
	return reports, err
}

// ListCommentReports returns comment reports newest first. An empty status list means all.
func (r *reportRepository) ListCommentReports(ctx context.Context, statuses []models.ReportStatus, limit int) ([]*models.CommentReport, error) {
	var reports []*models.CommentReport
	err := r.listQuery(ctx, statuses, limit).Find(&reports).Error
	return reports, err
}

func (r *reportRepository) listQuery(ctx context.Context, statuses []models.ReportStatus, limit int) *gorm.DB {
	q := readDB(r.db).WithContext(ctx).Preload("Reporter").Order("created_at DESC, id DESC")
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	return q
}

func (r *reportRepository) GetReport(ctx context.Context, kind models.ReportKind, id string) (*models.ReportRow, error) {
	return getReport(r.db.WithContext(ctx).Preload("Reporter"), kind, id)
}

func getReport(db *gorm.DB, kind models.ReportKind, id string) (*models.ReportRow, error) {
	var row models.ReportRow
	switch kind {
	case models.ReportKindPost:
		var report models.PostReport
		if err := db.Where("id = ?", id).First(&report).Error; err != nil {
			return nil, notFound(err, "Report", id)
		}
		row = models.RowFromPostReport(&report)
	case models.ReportKindComment:
		var report models.CommentReport
		if err := db.Where("id = ?", id).First(&report).Error; err != nil {
			return nil, notFound(err, "Report", id)
		}
		row = models.RowFromCommentReport(&report)
	default:
		return nil, models.NewValidationError("unknown report kind")
	}
	return &row, nil
}

// Transition closes a pending report. The update only matches pending rows, so
// of two concurrent reviewers exactly one wins and the other gets REPORT_CLOSED.
func (r *reportRepository) Transition(ctx context.Context, kind models.ReportKind, id string, to models.ReportStatus, moderatorID string, at time.Time) error {
	return transitionTx(r.db.WithContext(ctx), kind, id, to, moderatorID, at)
}

func transitionTx(db *gorm.DB, kind models.ReportKind, id string, to models.ReportStatus, moderatorID string, at time.Time) error {
	res := db.Table(kind.Table()).
		Where("id = ? AND status = ?", id, models.ReportStatusPending).
		Updates(map[string]interface{}{
			"status":      to,
			"reviewed_by": moderatorID,
			"reviewed_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	current, err := getReport(db, kind, id)
	if err != nil {
		return err
	}
	return models.NewReportClosedError(current.Status)
}

// DeleteCommentAndResolve removes the reported comment and resolves the report
// in one transaction. Any failure leaves both rows untouched.
func (r *reportRepository) DeleteCommentAndResolve(ctx context.Context, reportID, moderatorID string, at time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		report, err := pendingReport(tx, models.ReportKindComment, reportID)
		if err != nil {
			return err
		}
		if err := deleteCommentTx(tx, report.TargetID); err != nil && !models.HasCode(err, models.CodeNotFound) {
			return err
		}
		return transitionTx(tx, models.ReportKindComment, reportID, models.ReportStatusResolved, moderatorID, at)
	})
}

// DeletePostAndApprove removes the reported post with its discussion and
// bookmarks and approves the report in one transaction.
func (r *reportRepository) DeletePostAndApprove(ctx context.Context, reportID, moderatorID string, at time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		report, err := pendingReport(tx, models.ReportKindPost, reportID)
		if err != nil {
			return err
		}
		if err := deletePostTx(tx, report.TargetID); err != nil {
			return err
		}
		return transitionTx(tx, models.ReportKindPost, reportID, models.ReportStatusApproved, moderatorID, at)
	})
}

func pendingReport(tx *gorm.DB, kind models.ReportKind, id string) (*models.ReportRow, error) {
	report, err := getReport(tx, kind, id)
	if err != nil {
		return nil, err
	}
	if report.Status.IsTerminal() {
		return nil, models.NewReportClosedError(report.Status)
	}
	return report, nil
}

func deletePostTx(tx *gorm.DB, postID string) error {
	commentIDs := tx.Model(&models.Comment{}).Select("id").Where("post_id = ?", postID)
	if err := tx.Where("comment_id IN (?)", commentIDs).Delete(&models.CommentLike{}).Error; err != nil {
		return err
	}
	// Replies first so the self-referencing parent key never dangles.
	if err := tx.Where("post_id = ? AND parent_comment_id IS NOT NULL", postID).Delete(&models.Comment{}).Error; err != nil {
		return err
	}
	if err := tx.Where("post_id = ?", postID).Delete(&models.Comment{}).Error; err != nil {
		return err
	}
	if err := tx.Where("post_id = ?", postID).Delete(&models.Bookmark{}).Error; err != nil {
		return err
	}
	if err := tx.Model(&models.Notification{}).Where("related_post_id = ?", postID).Update("related_post_id", nil).Error; err != nil {
		return err
	}
	return tx.Where("id = ?", postID).Delete(&models.Post{}).Error
}
