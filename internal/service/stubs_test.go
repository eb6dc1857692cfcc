package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"matchday/internal/models"
	"matchday/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// commentRepoStub is a stub for repository.CommentRepository.
type commentRepoStub struct {
	createFn     func(context.Context, *models.Comment) error
	getByIDFn    func(context.Context, string) (*models.Comment, error)
	listByPostFn func(context.Context, string) ([]*models.Comment, error)
	updateFn     func(context.Context, *models.Comment) error
	deleteFn     func(context.Context, string) error
	countLikesFn func(context.Context, string) (int64, error)
	isLikedFn    func(context.Context, string, string) (bool, error)
	likeCountsFn func(context.Context, []string) (map[string]int64, error)
	likedSetFn   func(context.Context, string, []string) (map[string]bool, error)
	addLikeFn    func(context.Context, string, string) error
	removeLikeFn func(context.Context, string, string) error
}

func (s *commentRepoStub) Create(ctx context.Context, comment *models.Comment) error {
	return s.createFn(ctx, comment)
}
func (s *commentRepoStub) GetByID(ctx context.Context, id string) (*models.Comment, error) {
	return s.getByIDFn(ctx, id)
}
func (s *commentRepoStub) ListByPost(ctx context.Context, postID string) ([]*models.Comment, error) {
	return s.listByPostFn(ctx, postID)
}
func (s *commentRepoStub) Update(ctx context.Context, comment *models.Comment) error {
	return s.updateFn(ctx, comment)
}
func (s *commentRepoStub) Delete(ctx context.Context, id string) error {
	return s.deleteFn(ctx, id)
}
func (s *commentRepoStub) CountLikes(ctx context.Context, commentID string) (int64, error) {
	return s.countLikesFn(ctx, commentID)
}
func (s *commentRepoStub) IsLiked(ctx context.Context, commentID, userID string) (bool, error) {
	return s.isLikedFn(ctx, commentID, userID)
}
func (s *commentRepoStub) LikeCounts(ctx context.Context, ids []string) (map[string]int64, error) {
	return s.likeCountsFn(ctx, ids)
}
func (s *commentRepoStub) LikedSet(ctx context.Context, userID string, ids []string) (map[string]bool, error) {
	return s.likedSetFn(ctx, userID, ids)
}
func (s *commentRepoStub) AddLike(ctx context.Context, commentID, userID string) error {
	return s.addLikeFn(ctx, commentID, userID)
}
func (s *commentRepoStub) RemoveLike(ctx context.Context, commentID, userID string) error {
	return s.removeLikeFn(ctx, commentID, userID)
}

func noopCommentRepo() *commentRepoStub {
	return &commentRepoStub{
		createFn: func(_ context.Context, _ *models.Comment) error { return nil },
		getByIDFn: func(_ context.Context, id string) (*models.Comment, error) {
			return &models.Comment{ID: id}, nil
		},
		listByPostFn: func(_ context.Context, _ string) ([]*models.Comment, error) { return nil, nil },
		updateFn:     func(_ context.Context, _ *models.Comment) error { return nil },
		deleteFn:     func(_ context.Context, _ string) error { return nil },
		countLikesFn: func(_ context.Context, _ string) (int64, error) { return 0, nil },
		isLikedFn:    func(_ context.Context, _, _ string) (bool, error) { return false, nil },
		likeCountsFn: func(_ context.Context, _ []string) (map[string]int64, error) {
			return map[string]int64{}, nil
		},
		likedSetFn: func(_ context.Context, _ string, _ []string) (map[string]bool, error) {
			return map[string]bool{}, nil
		},
		addLikeFn:    func(_ context.Context, _, _ string) error { return nil },
		removeLikeFn: func(_ context.Context, _, _ string) error { return nil },
	}
}

// postRepoStub is a stub for repository.PostRepository.
type postRepoStub struct {
	createFn         func(context.Context, *models.Post) error
	getByIDFn        func(context.Context, string, string) (*models.Post, error)
	listFn           func(context.Context, repository.PostFilter) ([]*models.Post, error)
	searchFn         func(context.Context, repository.PostFilter) ([]*models.Post, error)
	localMetricsFn   func(context.Context, string) (*models.PostMetrics, error)
	isBookmarkedFn   func(context.Context, string, string) (bool, error)
	addBookmarkFn    func(context.Context, string, string) error
	removeBookmarkFn func(context.Context, string, string) error
}

func (s *postRepoStub) Create(ctx context.Context, post *models.Post) error {
	return s.createFn(ctx, post)
}
func (s *postRepoStub) GetByID(ctx context.Context, id, viewerID string) (*models.Post, error) {
	return s.getByIDFn(ctx, id, viewerID)
}
func (s *postRepoStub) List(ctx context.Context, filter repository.PostFilter) ([]*models.Post, error) {
	return s.listFn(ctx, filter)
}
func (s *postRepoStub) Search(ctx context.Context, filter repository.PostFilter) ([]*models.Post, error) {
	return s.searchFn(ctx, filter)
}
func (s *postRepoStub) LocalMetrics(ctx context.Context, postID string) (*models.PostMetrics, error) {
	return s.localMetricsFn(ctx, postID)
}
func (s *postRepoStub) IsBookmarked(ctx context.Context, postID, userID string) (bool, error) {
	return s.isBookmarkedFn(ctx, postID, userID)
}
func (s *postRepoStub) AddBookmark(ctx context.Context, postID, userID string) error {
	return s.addBookmarkFn(ctx, postID, userID)
}
func (s *postRepoStub) RemoveBookmark(ctx context.Context, postID, userID string) error {
	return s.removeBookmarkFn(ctx, postID, userID)
}

func noopPostRepo() *postRepoStub {
	return &postRepoStub{
		createFn: func(_ context.Context, _ *models.Post) error { return nil },
		getByIDFn: func(_ context.Context, id, _ string) (*models.Post, error) {
			return &models.Post{ID: id, AuthorID: testPostAuthor, Title: "Derby day", Status: models.PostStatusPublished}, nil
		},
		listFn:   func(_ context.Context, _ repository.PostFilter) ([]*models.Post, error) { return nil, nil },
		searchFn: func(_ context.Context, _ repository.PostFilter) ([]*models.Post, error) { return nil, nil },
		localMetricsFn: func(_ context.Context, _ string) (*models.PostMetrics, error) {
			return &models.PostMetrics{}, nil
		},
		isBookmarkedFn:   func(_ context.Context, _, _ string) (bool, error) { return false, nil },
		addBookmarkFn:    func(_ context.Context, _, _ string) error { return nil },
		removeBookmarkFn: func(_ context.Context, _, _ string) error { return nil },
	}
}

// profileRepoStub is a stub for repository.ProfileRepository.
type profileRepoStub struct {
	getByIDFn        func(context.Context, string) (*models.Profile, error)
	getByUsernameFn  func(context.Context, string) (*models.Profile, error)
	getByIDsFn       func(context.Context, []string) (map[string]*models.Profile, error)
	getByUsernamesFn func(context.Context, []string) ([]*models.Profile, error)
	usernameTakenFn  func(context.Context, string, string) (bool, error)
	createFn         func(context.Context, *models.Profile) error
	updateFn         func(context.Context, *models.Profile) error
}

func (s *profileRepoStub) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	return s.getByIDFn(ctx, id)
}
func (s *profileRepoStub) GetByUsername(ctx context.Context, username string) (*models.Profile, error) {
	return s.getByUsernameFn(ctx, username)
}
func (s *profileRepoStub) GetByIDs(ctx context.Context, ids []string) (map[string]*models.Profile, error) {
	return s.getByIDsFn(ctx, ids)
}
func (s *profileRepoStub) GetByUsernames(ctx context.Context, usernames []string) ([]*models.Profile, error) {
	return s.getByUsernamesFn(ctx, usernames)
}
func (s *profileRepoStub) UsernameTaken(ctx context.Context, username, excludeID string) (bool, error) {
	return s.usernameTakenFn(ctx, username, excludeID)
}
func (s *profileRepoStub) Create(ctx context.Context, profile *models.Profile) error {
	return s.createFn(ctx, profile)
}
func (s *profileRepoStub) Update(ctx context.Context, profile *models.Profile) error {
	return s.updateFn(ctx, profile)
}

func noopProfileRepo() *profileRepoStub {
	return &profileRepoStub{
		getByIDFn: func(_ context.Context, id string) (*models.Profile, error) {
			return &models.Profile{ID: id, Username: "member", Role: models.RoleRegisteredUser}, nil
		},
		getByUsernameFn: func(_ context.Context, username string) (*models.Profile, error) {
			return nil, models.NewNotFoundError("Profile", username)
		},
		getByIDsFn: func(_ context.Context, _ []string) (map[string]*models.Profile, error) {
			return map[string]*models.Profile{}, nil
		},
		getByUsernamesFn: func(_ context.Context, _ []string) ([]*models.Profile, error) { return nil, nil },
		usernameTakenFn:  func(_ context.Context, _, _ string) (bool, error) { return false, nil },
		createFn:         func(_ context.Context, _ *models.Profile) error { return nil },
		updateFn:         func(_ context.Context, _ *models.Profile) error { return nil },
	}
}

// reportRepoStub is a stub for repository.ReportRepository.
type reportRepoStub struct {
	createPostReportFn    func(context.Context, *models.PostReport) error
	createCommentReportFn func(context.Context, *models.CommentReport) error
	hasPendingFn          func(context.Context, models.ReportKind, string, string) (bool, error)
	listPostReportsFn     func(context.Context, []models.ReportStatus, int) ([]*models.PostReport, error)
	listCommentReportsFn  func(context.Context, []models.ReportStatus, int) ([]*models.CommentReport, error)
	getReportFn           func(context.Context, models.ReportKind, string) (*models.ReportRow, error)
	transitionFn          func(context.Context, models.ReportKind, string, models.ReportStatus, string, time.Time) error
	deleteCommentFn       func(context.Context, string, string, time.Time) error
	deletePostFn          func(context.Context, string, string, time.Time) error
}

func (s *reportRepoStub) CreatePostReport(ctx context.Context, r *models.PostReport) error {
	return s.createPostReportFn(ctx, r)
}
func (s *reportRepoStub) CreateCommentReport(ctx context.Context, r *models.CommentReport) error {
	return s.createCommentReportFn(ctx, r)
}
func (s *reportRepoStub) HasPendingReport(ctx context.Context, kind models.ReportKind, targetID, reporterID string) (bool, error) {
	return s.hasPendingFn(ctx, kind, targetID, reporterID)
}
func (s *reportRepoStub) ListPostReports(ctx context.Context, statuses []models.ReportStatus, limit int) ([]*models.PostReport, error) {
	return s.listPostReportsFn(ctx, statuses, limit)
}
func (s *reportRepoStub) ListCommentReports(ctx context.Context, statuses []models.ReportStatus, limit int) ([]*models.CommentReport, error) {
	return s.listCommentReportsFn(ctx, statuses, limit)
}
func (s *reportRepoStub) GetReport(ctx context.Context, kind models.ReportKind, id string) (*models.ReportRow, error) {
	return s.getReportFn(ctx, kind, id)
}
func (s *reportRepoStub) Transition(ctx context.Context, kind models.ReportKind, id string, to models.ReportStatus, moderatorID string, at time.Time) error {
	return s.transitionFn(ctx, kind, id, to, moderatorID, at)
}
func (s *reportRepoStub) DeleteCommentAndResolve(ctx context.Context, reportID, moderatorID string, at time.Time) error {
	return s.deleteCommentFn(ctx, reportID, moderatorID, at)
}
func (s *reportRepoStub) DeletePostAndApprove(ctx context.Context, reportID, moderatorID string, at time.Time) error {
	return s.deletePostFn(ctx, reportID, moderatorID, at)
}

func noopReportRepo() *reportRepoStub {
	return &reportRepoStub{
		createPostReportFn:    func(_ context.Context, _ *models.PostReport) error { return nil },
		createCommentReportFn: func(_ context.Context, _ *models.CommentReport) error { return nil },
		hasPendingFn: func(_ context.Context, _ models.ReportKind, _, _ string) (bool, error) {
			return false, nil
		},
		listPostReportsFn: func(_ context.Context, _ []models.ReportStatus, _ int) ([]*models.PostReport, error) {
			return nil, nil
		},
		listCommentReportsFn: func(_ context.Context, _ []models.ReportStatus, _ int) ([]*models.CommentReport, error) {
			return nil, nil
		},
		getReportFn: func(_ context.Context, kind models.ReportKind, id string) (*models.ReportRow, error) {
			return &models.ReportRow{ID: id, Kind: kind, Status: models.ReportStatusPending}, nil
		},
		transitionFn: func(_ context.Context, _ models.ReportKind, _ string, _ models.ReportStatus, _ string, _ time.Time) error {
			return nil
		},
		deleteCommentFn: func(_ context.Context, _, _ string, _ time.Time) error { return nil },
		deletePostFn:    func(_ context.Context, _, _ string, _ time.Time) error { return nil },
	}
}

// notificationRepoStub is a stub for repository.NotificationRepository.
type notificationRepoStub struct {
	createFn      func(context.Context, *models.Notification) error
	listFn        func(context.Context, string, int) ([]*models.Notification, error)
	markReadFn    func(context.Context, string, string) error
	markAllReadFn func(context.Context, string) (int64, error)
	deleteFn      func(context.Context, string, string) error
	countUnreadFn func(context.Context, string) (int64, error)
}

func (s *notificationRepoStub) Create(ctx context.Context, n *models.Notification) error {
	return s.createFn(ctx, n)
}
func (s *notificationRepoStub) ListForRecipient(ctx context.Context, recipientID string, limit int) ([]*models.Notification, error) {
	return s.listFn(ctx, recipientID, limit)
}
func (s *notificationRepoStub) MarkRead(ctx context.Context, id, recipientID string) error {
	return s.markReadFn(ctx, id, recipientID)
}
func (s *notificationRepoStub) MarkAllRead(ctx context.Context, recipientID string) (int64, error) {
	return s.markAllReadFn(ctx, recipientID)
}
func (s *notificationRepoStub) Delete(ctx context.Context, id, recipientID string) error {
	return s.deleteFn(ctx, id, recipientID)
}
func (s *notificationRepoStub) CountUnread(ctx context.Context, recipientID string) (int64, error) {
	return s.countUnreadFn(ctx, recipientID)
}

func noopNotificationRepo() *notificationRepoStub {
	return &notificationRepoStub{
		createFn: func(_ context.Context, _ *models.Notification) error { return nil },
		listFn: func(_ context.Context, _ string, _ int) ([]*models.Notification, error) {
			return nil, nil
		},
		markReadFn:    func(_ context.Context, _, _ string) error { return nil },
		markAllReadFn: func(_ context.Context, _ string) (int64, error) { return 0, nil },
		deleteFn:      func(_ context.Context, _, _ string) error { return nil },
		countUnreadFn: func(_ context.Context, _ string) (int64, error) { return 0, nil },
	}
}

// recordingEmitter collects emitted notifications.
type recordingEmitter struct {
	mu   sync.Mutex
	sent []*models.Notification
	err  error
}

func (e *recordingEmitter) Emit(_ context.Context, n *models.Notification) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sent = append(e.sent, n)
	return e.err
}

func (e *recordingEmitter) notifications() []*models.Notification {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*models.Notification(nil), e.sent...)
}

// Fixed identifiers shared by the service tests.
const (
	testPostID     = "7b0f2f52-7c5c-4f8b-9a64-3f1f7c1d2a01"
	testPostAuthor = "0c9a1f7e-51a4-4b7e-8a2f-9d3c4e5f6a02"
	testViewer     = "5e2d8c41-3b6a-4d9e-b1f0-7a8c9d0e1f03"
	testModerator  = "9f8e7d6c-5b4a-4938-8271-6a5b4c3d2e04"
	testCommentID  = "3a4b5c6d-7e8f-4a0b-9c1d-2e3f4a5b6c05"
	testReportID   = "1d2e3f4a-5b6c-4d7e-8f9a-0b1c2d3e4f06"
)

// assertValidationError asserts that err is an AppError with code VALIDATION_ERROR.
func assertValidationError(t *testing.T, err error) {
	t.Helper()
	assertAppError(t, err, models.CodeValidation)
}

// assertForbiddenError asserts that err is an AppError with code FORBIDDEN.
func assertForbiddenError(t *testing.T, err error) {
	t.Helper()
	assertAppError(t, err, models.CodeForbidden)
}

func assertAppError(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
}
