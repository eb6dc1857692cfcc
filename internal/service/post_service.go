package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"matchday/internal/cache"
	"matchday/internal/models"
	"matchday/internal/repository"
	"matchday/internal/validation"
)

// Post list paging bounds.
const (
	DefaultPostLimit = 20
	MaxPostLimit     = 100
)

// MetricsSource supplies aggregate post metrics from outside the database.
type MetricsSource interface {
	PostMetrics(ctx context.Context, postID string) (*models.PostMetrics, error)
}

// SearchHistory records and returns a user's recent searches.
type SearchHistory interface {
	Push(ctx context.Context, userID, query string) error
	List(ctx context.Context, userID string) ([]string, error)
	Clear(ctx context.Context, userID string) error
}

type PostService struct {
	postRepo repository.PostRepository
	metrics  MetricsSource
	history  SearchHistory
}

type ListPostsInput struct {
	Category string
	Sort     string
	Limit    int
	Offset   int
	ViewerID string
}

type SearchPostsInput struct {
	Query    string
	Category string
	Author   string
	From     *time.Time
	To       *time.Time
	Sort     string
	Limit    int
	Offset   int
	ViewerID string
}

func NewPostService(postRepo repository.PostRepository, metrics MetricsSource, history SearchHistory) *PostService {
	return &PostService{
		postRepo: postRepo,
		metrics:  metrics,
		history:  history,
	}
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPostLimit
	}
	if limit > MaxPostLimit {
		limit = MaxPostLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func normalizeSort(sort string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(sort)) {
	case "", repository.PostSortRecent:
		return repository.PostSortRecent, nil
	case repository.PostSortPopular:
		return repository.PostSortPopular, nil
	}
	return "", models.NewValidationError("sort must be recent or popular")
}

func (s *PostService) ListPosts(ctx context.Context, in ListPostsInput) ([]*models.Post, error) {
	sort, err := normalizeSort(in.Sort)
	if err != nil {
		return nil, err
	}
	limit, offset := normalizePage(in.Limit, in.Offset)
	return s.postRepo.List(ctx, repository.PostFilter{
		Category: strings.ToLower(strings.TrimSpace(in.Category)),
		Sort:     sort,
		Limit:    limit,
		Offset:   offset,
		ViewerID: in.ViewerID,
	})
}

// Search composes every given filter into one query. A non-empty query from
// an authenticated viewer is added to their recent searches.
func (s *PostService) Search(ctx context.Context, in SearchPostsInput) ([]*models.Post, error) {
	query := strings.TrimSpace(in.Query)
	if err := validation.ValidateSearchQuery(query); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if in.From != nil && in.To != nil && in.From.After(*in.To) {
		return nil, models.NewValidationError("from must not be after to")
	}
	sort, err := normalizeSort(in.Sort)
	if err != nil {
		return nil, err
	}
	limit, offset := normalizePage(in.Limit, in.Offset)

	posts, err := s.postRepo.Search(ctx, repository.PostFilter{
		Query:    query,
		Category: strings.ToLower(strings.TrimSpace(in.Category)),
		Author:   strings.TrimPrefix(strings.ToLower(strings.TrimSpace(in.Author)), "@"),
		From:     in.From,
		To:       in.To,
		Sort:     sort,
		Limit:    limit,
		Offset:   offset,
		ViewerID: in.ViewerID,
	})
	if err != nil {
		return nil, err
	}

	if query != "" && in.ViewerID != "" && s.history != nil {
		if err := s.history.Push(ctx, in.ViewerID, query); err != nil && !errors.Is(err, cache.ErrUnavailable) {
			slog.WarnContext(ctx, "failed to record recent search", "user_id", in.ViewerID, "error", err)
		}
	}
	return posts, nil
}

// GetPost returns a published post with its metrics. Hosted metrics are
// preferred; local counts are used when the hosted function fails.
func (s *PostService) GetPost(ctx context.Context, id, viewerID string) (*models.PostDetail, error) {
	if err := validation.ValidateID("post_id", id); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	post, err := s.postRepo.GetByID(ctx, id, viewerID)
	if err != nil {
		return nil, err
	}
	return &models.PostDetail{Post: post, Metrics: s.postMetrics(ctx, post)}, nil
}

func (s *PostService) postMetrics(ctx context.Context, post *models.Post) models.PostMetrics {
	if s.metrics != nil {
		m, err := s.metrics.PostMetrics(ctx, post.ID)
		if err == nil && m != nil {
			return *m
		}
		slog.WarnContext(ctx, "post metrics function failed, using local counts", "post_id", post.ID, "error", err)
	}

	m, err := s.postRepo.LocalMetrics(ctx, post.ID)
	if err != nil {
		slog.WarnContext(ctx, "local post metrics failed", "post_id", post.ID, "error", err)
		return models.PostMetrics{
			Comments:  int64(post.CommentsCount),
			Likes:     int64(post.LikesCount),
			Bookmarks: int64(post.BookmarksCount),
		}
	}
	return *m
}

// ToggleBookmark flips the viewer's bookmark and reports the new state.
func (s *PostService) ToggleBookmark(ctx context.Context, postID, viewerID string) (bool, error) {
	if err := validation.ValidateID("post_id", postID); err != nil {
		return false, models.NewValidationError(err.Error())
	}
	if _, err := s.postRepo.GetByID(ctx, postID, viewerID); err != nil {
		return false, err
	}

	bookmarked, err := s.postRepo.IsBookmarked(ctx, postID, viewerID)
	if err != nil {
		return false, err
	}
	if bookmarked {
		err = s.postRepo.RemoveBookmark(ctx, postID, viewerID)
	} else {
		err = s.postRepo.AddBookmark(ctx, postID, viewerID)
	}
	if err != nil {
		return false, err
	}
	cache.Invalidate(ctx, cache.PostKey(postID))
	return !bookmarked, nil
}

func (s *PostService) RecentSearches(ctx context.Context, viewerID string) ([]string, error) {
	if s.history == nil {
		return []string{}, nil
	}
	return s.history.List(ctx, viewerID)
}

func (s *PostService) ClearRecentSearches(ctx context.Context, viewerID string) error {
	if s.history == nil {
		return nil
	}
	if err := s.history.Clear(ctx, viewerID); err != nil {
		if errors.Is(err, cache.ErrUnavailable) {
			return models.NewUnavailableError("Search history is unavailable", err)
		}
		return err
	}
	return nil
}
