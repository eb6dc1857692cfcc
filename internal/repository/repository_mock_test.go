package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"matchday/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommentRepository_Create(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCommentRepository(db)

	comment := &models.Comment{Content: "Great match!", PostID: "p1", AuthorID: "u1"}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "comments"`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Create(context.Background(), comment))
	assert.NotEmpty(t, comment.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommentRepository_LikeCounts(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCommentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT comment_id, COUNT(*) AS total FROM "comment_likes" WHERE comment_id IN ($1,$2)`)).
		WithArgs("c1", "c2").
		WillReturnRows(sqlmock.NewRows([]string{"comment_id", "total"}).AddRow("c1", 3))

	counts, err := repo.LikeCounts(context.Background(), []string{"c1", "c2"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), counts["c1"])
	assert.Zero(t, counts["c2"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommentRepository_LikedSetWithoutViewer(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCommentRepository(db)

	liked, err := repo.LikedSet(context.Background(), "", []string{"c1"})
	require.NoError(t, err)
	assert.Empty(t, liked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileRepository_GetByIDNotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewProfileRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "profiles" WHERE id = $1`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByID(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, models.HasCode(err, models.CodeNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepository_TransitionPending(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewReportRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "comment_reports" SET "reviewed_at"=$1,"reviewed_by"=$2,"status"=$3 WHERE id = $4 AND status = $5`)).
		WithArgs(sqlmock.AnyArg(), "mod1", models.ReportStatusDismissed, "r1", models.ReportStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Transition(context.Background(), models.ReportKindComment, "r1", models.ReportStatusDismissed, "mod1", time.Now())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepository_TransitionClosed(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewReportRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "post_reports" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "post_reports" WHERE id = $1`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "post_id", "reporter_id", "reason", "status"}).
			AddRow("r1", "p1", "u1", "spam", "dismissed"))

	err := repo.Transition(context.Background(), models.ReportKindPost, "r1", models.ReportStatusApproved, "mod1", time.Now())
	require.Error(t, err)
	assert.True(t, models.HasCode(err, models.CodeReportClosed))
	assert.Contains(t, err.Error(), "dismissed")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepository_MarkAllRead(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewNotificationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "notifications" SET "is_read"=$1 WHERE recipient_id = $2 AND is_read = $3`)).
		WithArgs(true, "u1", false).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	n, err := repo.MarkAllRead(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
