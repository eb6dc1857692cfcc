package service

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"matchday/internal/cache"
	"matchday/internal/content"
	"matchday/internal/featureflags"
	"matchday/internal/models"
	"matchday/internal/observability"
	"matchday/internal/repository"
	"matchday/internal/validation"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
)

// Like lookup modes for the comment tree.
const (
	treeModeBatched    = "batched"
	treeModePerComment = "per_comment"
)

type CommentService struct {
	commentRepo repository.CommentRepository
	postRepo    repository.PostRepository
	profileRepo repository.ProfileRepository
	notifier    NotificationEmitter
	flags       *featureflags.Manager
	likes       *cache.LikeStateCache
	renderer    *content.Renderer
}

type CreateCommentInput struct {
	AuthorID        string
	PostID          string
	Content         string
	ParentCommentID *string
}

type UpdateCommentInput struct {
	UserID    string
	CommentID string
	Content   string
}

type DeleteCommentInput struct {
	UserID    string
	CommentID string
}

func NewCommentService(
	commentRepo repository.CommentRepository,
	postRepo repository.PostRepository,
	profileRepo repository.ProfileRepository,
	notifier NotificationEmitter,
	flags *featureflags.Manager,
	likes *cache.LikeStateCache,
	renderer *content.Renderer,
) *CommentService {
	if likes == nil {
		likes = cache.NewLikeStateCache(cache.DefaultLikeStateSize, cache.DefaultLikeStateTTL)
	}
	if renderer == nil {
		renderer = content.NewRenderer()
	}
	return &CommentService{
		commentRepo: commentRepo,
		postRepo:    postRepo,
		profileRepo: profileRepo,
		notifier:    notifier,
		flags:       flags,
		likes:       likes,
		renderer:    renderer,
	}
}

// Likes exposes the like-state cache so live views can subscribe to toggles.
func (s *CommentService) Likes() *cache.LikeStateCache {
	return s.likes
}

// BuildTree assembles the two-level discussion of a post. Any store failure
// fails the whole build; callers never see a partial tree.
func (s *CommentService) BuildTree(ctx context.Context, postID, viewerID, sort string) (nodes []*models.CommentNode, err error) {
	if err := validation.ValidateID("post_id", postID); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if sort != models.CommentSortPopular {
		sort = models.CommentSortRecent
	}

	mode := treeModeBatched
	if !s.flags.EnabledOr(featureflags.CommentLikeBatching, viewerID, true) {
		mode = treeModePerComment
	}
	defer observability.TrackTreeBuild(mode)()
	ctx, span := observability.StartSpan(ctx, "service", "BuildTree",
		attribute.String("post_id", postID),
		attribute.String("mode", mode),
	)
	defer func() { observability.EndSpan(span, err) }()

	comments, err := s.commentRepo.ListByPost(ctx, postID)
	if err != nil {
		return nil, s.treeFailure(ctx, postID, err)
	}

	ids := lo.Map(comments, func(c *models.Comment, _ int) string { return c.ID })
	var counts map[string]int64
	var liked map[string]bool
	if mode == treeModeBatched {
		counts, liked, err = s.batchedLikes(ctx, viewerID, ids)
	} else {
		counts, liked, err = s.perCommentLikes(ctx, viewerID, ids)
	}
	if err != nil {
		return nil, s.treeFailure(ctx, postID, err)
	}

	return s.assemble(ctx, comments, counts, liked, sort), nil
}

func (s *CommentService) treeFailure(ctx context.Context, postID string, err error) error {
	observability.CommentTreeFailures.Inc()
	slog.ErrorContext(ctx, "comment tree build failed", "post_id", postID, "error", err)
	return models.NewCommentsUnavailableError(err)
}

// batchedLikes loads every count with one query and the viewer's likes with another.
func (s *CommentService) batchedLikes(ctx context.Context, viewerID string, ids []string) (map[string]int64, map[string]bool, error) {
	counts, err := s.commentRepo.LikeCounts(ctx, ids)
	if err != nil {
		return nil, nil, err
	}
	liked, err := s.commentRepo.LikedSet(ctx, viewerID, ids)
	if err != nil {
		return nil, nil, err
	}
	for _, id := range ids {
		s.likes.Store(id, counts[id])
	}
	return counts, liked, nil
}

// perCommentLikes issues one count and one existence lookup per comment,
// always against the database. Fresh counts refresh the like-state cache.
func (s *CommentService) perCommentLikes(ctx context.Context, viewerID string, ids []string) (map[string]int64, map[string]bool, error) {
	counts := make(map[string]int64, len(ids))
	liked := make(map[string]bool)
	for _, id := range ids {
		count, err := s.commentRepo.CountLikes(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		s.likes.Store(id, count)
		counts[id] = count

		if viewerID == "" {
			continue
		}
		isLiked, err := s.commentRepo.IsLiked(ctx, id, viewerID)
		if err != nil {
			return nil, nil, err
		}
		if isLiked {
			liked[id] = true
		}
	}
	return counts, liked, nil
}

// assemble attaches every non-root comment to its root ancestor. comments must
// be in insertion order.
func (s *CommentService) assemble(
	ctx context.Context,
	comments []*models.Comment,
	counts map[string]int64,
	liked map[string]bool,
	sort string,
) []*models.CommentNode {
	byID := lo.KeyBy(comments, func(c *models.Comment) string { return c.ID })
	rootNodes := make(map[string]*models.CommentNode)
	roots := make([]*models.CommentNode, 0)

	for _, c := range comments {
		if c.IsRoot() {
			node := s.node(c, counts, liked)
			rootNodes[c.ID] = node
			roots = append(roots, node)
		}
	}

	for _, c := range comments {
		if c.IsRoot() {
			continue
		}
		rootID, ok := rootOf(c, byID)
		if !ok {
			slog.WarnContext(ctx, "dropping comment with unresolvable parent",
				"comment_id", c.ID,
				"post_id", c.PostID,
				"parent_comment_id", lo.FromPtr(c.ParentCommentID),
			)
			continue
		}
		root := rootNodes[rootID]
		root.Replies = append(root.Replies, s.node(c, counts, liked))
	}

	for _, root := range roots {
		slices.SortStableFunc(root.Replies, func(a, b *models.CommentNode) int {
			return a.CreatedAt.Compare(b.CreatedAt)
		})
	}

	if sort == models.CommentSortPopular {
		slices.SortStableFunc(roots, func(a, b *models.CommentNode) int {
			switch {
			case a.LikeCount > b.LikeCount:
				return -1
			case a.LikeCount < b.LikeCount:
				return 1
			}
			return 0
		})
	} else {
		slices.SortStableFunc(roots, func(a, b *models.CommentNode) int {
			return b.CreatedAt.Compare(a.CreatedAt)
		})
	}
	return roots
}

// rootOf follows the parent chain of c within the post. It fails when an
// ancestor is missing, belongs to another post or the chain loops.
func rootOf(c *models.Comment, byID map[string]*models.Comment) (string, bool) {
	seen := map[string]struct{}{c.ID: {}}
	cur := c
	for !cur.IsRoot() {
		parent, ok := byID[*cur.ParentCommentID]
		if !ok || parent.PostID != c.PostID {
			return "", false
		}
		if _, loop := seen[parent.ID]; loop {
			return "", false
		}
		seen[parent.ID] = struct{}{}
		cur = parent
	}
	return cur.ID, true
}

func (s *CommentService) node(c *models.Comment, counts map[string]int64, liked map[string]bool) *models.CommentNode {
	return &models.CommentNode{
		ID:              c.ID,
		PostID:          c.PostID,
		ParentCommentID: c.ParentCommentID,
		Content:         c.Content,
		ContentHTML:     s.renderer.Render(c.Content),
		Author:          models.AuthorInfoFor(c.AuthorID, c.Author),
		LikeCount:       counts[c.ID],
		LikedByViewer:   liked[c.ID],
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
		Replies:         make([]*models.CommentNode, 0),
	}
}

func (s *CommentService) CreateComment(ctx context.Context, in CreateCommentInput) (*models.Comment, error) {
	text := strings.TrimSpace(in.Content)
	if err := validation.ValidateComment(text); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateID("post_id", in.PostID); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	parentID := strings.TrimSpace(lo.FromPtr(in.ParentCommentID))
	if parentID != "" {
		if err := validation.ValidateID("parent_comment_id", parentID); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
	}

	author, err := s.activeProfile(ctx, in.AuthorID, "Create your profile before commenting")
	if err != nil {
		return nil, err
	}

	post, err := s.postRepo.GetByID(ctx, in.PostID, author.ID)
	if err != nil {
		return nil, err
	}

	comment := &models.Comment{
		Content:  text,
		AuthorID: author.ID,
		PostID:   post.ID,
	}
	if parentID != "" {
		rootID, err := s.replyTarget(ctx, parentID, post.ID)
		if err != nil {
			return nil, err
		}
		comment.ParentCommentID = &rootID
	}

	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, err
	}
	cache.Invalidate(ctx, cache.PostKey(post.ID))

	s.notifyNewComment(ctx, author, post, text)

	return s.commentRepo.GetByID(ctx, comment.ID)
}

// activeProfile loads the acting profile. A missing profile is forbidden with
// missing as the message; a suspended one is always forbidden.
func (s *CommentService) activeProfile(ctx context.Context, id, missing string) (*models.Profile, error) {
	p, err := s.profileRepo.GetByID(ctx, id)
	if err != nil {
		if models.HasCode(err, models.CodeNotFound) {
			return nil, models.NewForbiddenError(missing)
		}
		return nil, err
	}
	if p.IsBanned {
		return nil, models.NewForbiddenError("Your account is suspended")
	}
	return p, nil
}

// replyTarget resolves the root a reply is stored against. Replying to a
// reply attaches to that reply's root.
func (s *CommentService) replyTarget(ctx context.Context, parentID, postID string) (string, error) {
	const maxHops = 8
	id := parentID
	for i := 0; i < maxHops; i++ {
		parent, err := s.commentRepo.GetByID(ctx, id)
		if err != nil {
			if models.HasCode(err, models.CodeNotFound) {
				return "", models.NewValidationError("Parent comment does not exist")
			}
			return "", err
		}
		if parent.PostID != postID {
			return "", models.NewValidationError("Parent comment belongs to another post")
		}
		if parent.IsRoot() {
			return parent.ID, nil
		}
		id = *parent.ParentCommentID
	}
	return "", models.NewValidationError("Parent comment is nested too deeply")
}

// notifyNewComment tells the post author about the comment and every
// mentioned profile about the mention. Failures are logged; the comment stands.
func (s *CommentService) notifyNewComment(ctx context.Context, author *models.Profile, post *models.Post, text string) {
	if s.notifier == nil {
		return
	}
	notified := map[string]struct{}{author.ID: {}}

	if post.AuthorID != author.ID {
		s.emit(ctx, &models.Notification{
			Type:          models.NotificationComment,
			RecipientID:   post.AuthorID,
			ActorID:       &author.ID,
			Actor:         author,
			RelatedPostID: &post.ID,
			RelatedPost:   post,
		})
		notified[post.AuthorID] = struct{}{}
	}

	names := content.Mentions(text)
	if len(names) == 0 {
		return
	}
	mentioned, err := s.profileRepo.GetByUsernames(ctx, names)
	if err != nil {
		slog.WarnContext(ctx, "failed to resolve mentions", "post_id", post.ID, "error", err)
		return
	}
	for _, p := range mentioned {
		if _, done := notified[p.ID]; done {
			continue
		}
		notified[p.ID] = struct{}{}
		s.emit(ctx, &models.Notification{
			Type:          models.NotificationMention,
			RecipientID:   p.ID,
			ActorID:       &author.ID,
			Actor:         author,
			RelatedPostID: &post.ID,
			RelatedPost:   post,
		})
	}
}

func (s *CommentService) emit(ctx context.Context, n *models.Notification) {
	if err := s.notifier.Emit(ctx, n); err != nil {
		slog.WarnContext(ctx, "failed to emit notification",
			"type", n.Type,
			"recipient_id", n.RecipientID,
			"error", err,
		)
	}
}

func (s *CommentService) UpdateComment(ctx context.Context, in UpdateCommentInput) (*models.Comment, error) {
	text := strings.TrimSpace(in.Content)
	if err := validation.ValidateComment(text); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	comment, err := s.commentRepo.GetByID(ctx, in.CommentID)
	if err != nil {
		return nil, err
	}
	if comment.AuthorID != in.UserID {
		return nil, models.NewForbiddenError("You can only edit your own comments")
	}
	if _, err := s.activeProfile(ctx, in.UserID, "You can only edit your own comments"); err != nil {
		return nil, err
	}

	comment.Content = text
	if err := s.commentRepo.Update(ctx, comment); err != nil {
		return nil, err
	}
	return s.commentRepo.GetByID(ctx, comment.ID)
}

// DeleteComment removes a comment and its replies. Authors may delete their
// own comments; moderators may delete any.
func (s *CommentService) DeleteComment(ctx context.Context, in DeleteCommentInput) (*models.Comment, error) {
	comment, err := s.commentRepo.GetByID(ctx, in.CommentID)
	if err != nil {
		return nil, err
	}

	if comment.AuthorID != in.UserID {
		actor, err := s.profileRepo.GetByID(ctx, in.UserID)
		if err != nil && !models.HasCode(err, models.CodeNotFound) {
			return nil, err
		}
		if actor == nil || !actor.Role.CanModerate() {
			return nil, models.NewForbiddenError("You can only delete your own comments")
		}
	}

	if err := s.commentRepo.Delete(ctx, comment.ID); err != nil {
		return nil, err
	}
	s.likes.Invalidate(comment.ID)
	cache.Invalidate(ctx, cache.PostKey(comment.PostID))
	return comment, nil
}

// ToggleLike flips the viewer's like on a comment. The current state is read
// first, then the like row is inserted or deleted.
func (s *CommentService) ToggleLike(ctx context.Context, commentID, viewerID string) (*models.LikeState, error) {
	if err := validation.ValidateID("comment_id", commentID); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if _, err := s.activeProfile(ctx, viewerID, "Create your profile before liking"); err != nil {
		return nil, err
	}
	comment, err := s.commentRepo.GetByID(ctx, commentID)
	if err != nil {
		return nil, err
	}

	liked, err := s.commentRepo.IsLiked(ctx, comment.ID, viewerID)
	if err != nil {
		return nil, err
	}
	if liked {
		err = s.commentRepo.RemoveLike(ctx, comment.ID, viewerID)
	} else {
		err = s.commentRepo.AddLike(ctx, comment.ID, viewerID)
	}
	if err != nil {
		return nil, err
	}

	count, err := s.commentRepo.CountLikes(ctx, comment.ID)
	if err != nil {
		s.likes.Invalidate(comment.ID)
		return nil, err
	}

	cache.Invalidate(ctx, cache.PostKey(comment.PostID))

	state := models.LikeState{CommentID: comment.ID, Liked: !liked, LikeCount: count}
	s.likes.Publish(state)
	return &state, nil
}
