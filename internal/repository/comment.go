package repository

import (
	"context"

	"matchday/internal/models"
	"matchday/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CommentRepository defines interface for comment operations
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id string) (*models.Comment, error)
	ListByPost(ctx context.Context, postID string) ([]*models.Comment, error)
	Update(ctx context.Context, comment *models.Comment) error
	Delete(ctx context.Context, id string) error

	CountLikes(ctx context.Context, commentID string) (int64, error)
	IsLiked(ctx context.Context, commentID, userID string) (bool, error)
	LikeCounts(ctx context.Context, commentIDs []string) (map[string]int64, error)
	LikedSet(ctx context.Context, userID string, commentIDs []string) (map[string]bool, error)
	AddLike(ctx context.Context, commentID, userID string) error
	RemoveLike(ctx context.Context, commentID, userID string) error
}

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(comment).Error
}

func (r *commentRepository) GetByID(ctx context.Context, id string) (*models.Comment, error) {
	var comment models.Comment
	if err := r.db.WithContext(ctx).Preload("Author").Where("id = ?", id).First(&comment).Error; err != nil {
		return nil, notFound(err, "Comment", id)
	}
	return &comment, nil
}

// ListByPost returns every comment of a post in insertion order.
func (r *commentRepository) ListByPost(ctx context.Context, postID string) ([]*models.Comment, error) {
	defer observability.TrackQuery("select", "comments")()
	var comments []*models.Comment
	err := readDB(r.db).WithContext(ctx).
		Preload("Author").
		Where("post_id = ?", postID).
		Order("created_at ASC, id ASC").
		Find(&comments).Error
	return comments, err
}

func (r *commentRepository) Update(ctx context.Context, comment *models.Comment) error {
	return r.db.WithContext(ctx).
		Model(&models.Comment{ID: comment.ID}).
		Select("content", "updated_at").
		Updates(comment).Error
}

// Delete removes a comment together with its replies and their likes.
func (r *commentRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteCommentTx(tx, id)
	})
}

// deleteCommentTx removes a comment, every reply below it and all their likes.
// Each comment is visited once, so a corrupt parent cycle still terminates.
func deleteCommentTx(tx *gorm.DB, id string) error {
	ids := []string{id}
	seen := map[string]bool{id: true}
	frontier := []string{id}
	for len(frontier) > 0 {
		var children []string
		if err := tx.Model(&models.Comment{}).Where("parent_comment_id IN ?", frontier).Pluck("id", &children).Error; err != nil {
			return err
		}
		frontier = frontier[:0]
		for _, child := range children {
			if !seen[child] {
				seen[child] = true
				frontier = append(frontier, child)
			}
		}
		ids = append(ids, frontier...)
	}

	if err := tx.Where("comment_id IN ?", ids).Delete(&models.CommentLike{}).Error; err != nil {
		return err
	}
	res := tx.Where("id IN ?", ids).Delete(&models.Comment{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Comment", id)
	}
	return nil
}

func (r *commentRepository) CountLikes(ctx context.Context, commentID string) (int64, error) {
	defer observability.TrackQuery("count", "comment_likes")()
	var count int64
	err := readDB(r.db).WithContext(ctx).Model(&models.CommentLike{}).
		Where("comment_id = ?", commentID).
		Count(&count).Error
	return count, err
}

func (r *commentRepository) IsLiked(ctx context.Context, commentID, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.CommentLike{}).
		Where("comment_id = ? AND user_id = ?", commentID, userID).
		Count(&count).Error
	return count > 0, err
}

type likeCountRow struct {
	CommentID string
	Total     int64
}

// LikeCounts aggregates like rows for a set of comments in one query.
// Comments without likes are absent from the map.
func (r *commentRepository) LikeCounts(ctx context.Context, commentIDs []string) (map[string]int64, error) {
	counts := make(map[string]int64, len(commentIDs))
	if len(commentIDs) == 0 {
		return counts, nil
	}
	defer observability.TrackQuery("aggregate", "comment_likes")()
	var rows []likeCountRow
	err := readDB(r.db).WithContext(ctx).Model(&models.CommentLike{}).
		Select("comment_id, COUNT(*) AS total").
		Where("comment_id IN ?", commentIDs).
		Group("comment_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.CommentID] = row.Total
	}
	return counts, nil
}

// LikedSet returns which of the given comments userID has liked.
func (r *commentRepository) LikedSet(ctx context.Context, userID string, commentIDs []string) (map[string]bool, error) {
	liked := make(map[string]bool)
	if userID == "" || len(commentIDs) == 0 {
		return liked, nil
	}
	defer observability.TrackQuery("select", "comment_likes")()
	var ids []string
	err := readDB(r.db).WithContext(ctx).Model(&models.CommentLike{}).
		Where("user_id = ? AND comment_id IN ?", userID, commentIDs).
		Pluck("comment_id", &ids).Error
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		liked[id] = true
	}
	return liked, nil
}

func (r *commentRepository) AddLike(ctx context.Context, commentID, userID string) error {
	return r.db.WithContext(ctx).Create(&models.CommentLike{CommentID: commentID, UserID: userID}).Error
}

func (r *commentRepository) RemoveLike(ctx context.Context, commentID, userID string) error {
	return r.db.WithContext(ctx).
		Where("comment_id = ? AND user_id = ?", commentID, userID).
		Delete(&models.CommentLike{}).Error
}
