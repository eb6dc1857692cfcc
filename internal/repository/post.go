package repository

import (
	"context"
	"strings"
	"time"

	"matchday/internal/cache"
	"matchday/internal/models"

	"gorm.io/gorm"
)

// Post list sort orders.
const (
	PostSortRecent  = "recent"
	PostSortPopular = "popular"
)

// PostFilter narrows a post listing or search.
type PostFilter struct {
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

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id, viewerID string) (*models.Post, error)
	List(ctx context.Context, filter PostFilter) ([]*models.Post, error)
	Search(ctx context.Context, filter PostFilter) ([]*models.Post, error)
	LocalMetrics(ctx context.Context, postID string) (*models.PostMetrics, error)
	IsBookmarked(ctx context.Context, postID, userID string) (bool, error)
	AddBookmark(ctx context.Context, postID, userID string) error
	RemoveBookmark(ctx context.Context, postID, userID string) error
}

type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

const (
	commentsCountExpr  = "(SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id)"
	bookmarksCountExpr = "(SELECT COUNT(*) FROM bookmarks WHERE bookmarks.post_id = posts.id)"
	likesCountExpr     = "(SELECT COUNT(*) FROM comment_likes JOIN comments ON comments.id = comment_likes.comment_id WHERE comments.post_id = posts.id)"
)

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Create(post).Error
}

// GetByID loads a published post. Anonymous reads go through the Redis cache.
func (r *postRepository) GetByID(ctx context.Context, id, viewerID string) (*models.Post, error) {
	var post models.Post
	load := func() error {
		return r.applyPostDetails(readDB(r.db).WithContext(ctx), viewerID).
			Preload("Author").
			Where("posts.id = ? AND posts.status = ?", id, models.PostStatusPublished).
			First(&post).Error
	}

	var err error
	if viewerID == "" {
		err = cache.Aside(ctx, cache.PostKey(id), &post, cache.PostTTL, load)
	} else {
		err = load()
	}
	if err != nil {
		return nil, notFound(err, "Post", id)
	}
	return &post, nil
}

func (r *postRepository) List(ctx context.Context, filter PostFilter) ([]*models.Post, error) {
	var posts []*models.Post
	q := r.applyPostDetails(readDB(r.db).WithContext(ctx), filter.ViewerID).
		Preload("Author").
		Where("posts.status = ?", models.PostStatusPublished)
	if filter.Category != "" {
		q = q.Where("posts.category = ?", filter.Category)
	}
	err := applySort(q, filter.Sort).
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&posts).Error
	return posts, err
}

// Search composes every non-empty filter into a single query.
func (r *postRepository) Search(ctx context.Context, filter PostFilter) ([]*models.Post, error) {
	var posts []*models.Post
	q := r.applyPostDetails(readDB(r.db).WithContext(ctx), filter.ViewerID).
		Preload("Author").
		Where("posts.status = ?", models.PostStatusPublished)

	if text := strings.ToLower(strings.TrimSpace(filter.Query)); text != "" {
		like := containsPattern(text)
		q = q.Where(`(LOWER(posts.title) LIKE ? ESCAPE '\' OR LOWER(posts.summary) LIKE ? ESCAPE '\' OR LOWER(posts.content) LIKE ? ESCAPE '\')`, like, like, like)
	}
	if filter.Category != "" {
		q = q.Where("posts.category = ?", filter.Category)
	}
	if author := strings.ToLower(strings.TrimSpace(filter.Author)); author != "" {
		q = q.Where(`posts.author_id IN (SELECT id FROM profiles WHERE LOWER(username) LIKE ? ESCAPE '\')`, containsPattern(author))
	}
	if filter.From != nil {
		q = q.Where("posts.created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("posts.created_at <= ?", *filter.To)
	}

	err := applySort(q, filter.Sort).
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&posts).Error
	return posts, err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// containsPattern builds a LIKE pattern matching text literally anywhere.
// Queries using it must declare ESCAPE '\'.
func containsPattern(text string) string {
	return "%" + likeEscaper.Replace(text) + "%"
}

// applySort appends the ORDER BY for the requested sort. Popularity repeats the
// count subqueries because PostgreSQL does not resolve select aliases inside
// ORDER BY expressions.
func applySort(db *gorm.DB, sort string) *gorm.DB {
	if sort == PostSortPopular {
		return db.Order(gorm.Expr("(" + commentsCountExpr + " + " + bookmarksCountExpr + ") DESC, posts.created_at DESC"))
	}
	return db.Order("posts.created_at DESC")
}

// applyPostDetails adds subqueries to fetch counts and bookmarked status in a single query.
func (r *postRepository) applyPostDetails(db *gorm.DB, viewerID string) *gorm.DB {
	selectQuery := "posts.*, " +
		commentsCountExpr + " AS comments_count, " +
		bookmarksCountExpr + " AS bookmarks_count, " +
		likesCountExpr + " AS likes_count"

	if viewerID != "" {
		return db.Select(selectQuery+", EXISTS(SELECT 1 FROM bookmarks WHERE bookmarks.post_id = posts.id AND bookmarks.user_id = ?) AS bookmarked", viewerID)
	}
	return db.Select(selectQuery + ", false AS bookmarked")
}

// LocalMetrics counts what the store knows about a post. Views are tracked by
// the hosted aggregation only and stay zero here.
func (r *postRepository) LocalMetrics(ctx context.Context, postID string) (*models.PostMetrics, error) {
	var m models.PostMetrics
	db := readDB(r.db).WithContext(ctx)

	if err := db.Model(&models.Comment{}).Where("post_id = ?", postID).Count(&m.Comments).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Bookmark{}).Where("post_id = ?", postID).Count(&m.Bookmarks).Error; err != nil {
		return nil, err
	}
	err := db.Model(&models.CommentLike{}).
		Joins("JOIN comments ON comments.id = comment_likes.comment_id").
		Where("comments.post_id = ?", postID).
		Count(&m.Likes).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *postRepository) IsBookmarked(ctx context.Context, postID, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Bookmark{}).
		Where("post_id = ? AND user_id = ?", postID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *postRepository) AddBookmark(ctx context.Context, postID, userID string) error {
	return r.db.WithContext(ctx).Create(&models.Bookmark{PostID: postID, UserID: userID}).Error
}

func (r *postRepository) RemoveBookmark(ctx context.Context, postID, userID string) error {
	return r.db.WithContext(ctx).
		Where("post_id = ? AND user_id = ?", postID, userID).
		Delete(&models.Bookmark{}).Error
}
