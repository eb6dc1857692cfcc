package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"matchday/internal/cache"
	"matchday/internal/featureflags"
	"matchday/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memComments backs a commentRepoStub with an in-memory table so scenarios
// can create comments and read the tree back.
type memComments struct {
	mu       sync.Mutex
	clock    time.Time
	comments []*models.Comment
	likes    map[string]map[string]bool
}

func newMemComments() *memComments {
	return &memComments{
		clock: time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC),
		likes: make(map[string]map[string]bool),
	}
}

func (m *memComments) add(postID, authorID string, parentID *string) *models.Comment {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock = m.clock.Add(time.Minute)
	c := &models.Comment{
		ID:              uuid.NewString(),
		PostID:          postID,
		AuthorID:        authorID,
		Content:         "comment",
		ParentCommentID: parentID,
		CreatedAt:       m.clock,
		UpdatedAt:       m.clock,
	}
	m.comments = append(m.comments, c)
	return c
}

func (m *memComments) like(commentID string, users ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.likes[commentID] == nil {
		m.likes[commentID] = make(map[string]bool)
	}
	for _, u := range users {
		m.likes[commentID][u] = true
	}
}

func (m *memComments) repo() *commentRepoStub {
	r := noopCommentRepo()
	r.createFn = func(_ context.Context, c *models.Comment) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.clock = m.clock.Add(time.Minute)
		c.ID = uuid.NewString()
		c.CreatedAt = m.clock
		c.UpdatedAt = m.clock
		m.comments = append(m.comments, c)
		return nil
	}
	r.getByIDFn = func(_ context.Context, id string) (*models.Comment, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		for _, c := range m.comments {
			if c.ID == id {
				return c, nil
			}
		}
		return nil, models.NewNotFoundError("Comment", id)
	}
	r.listByPostFn = func(_ context.Context, postID string) ([]*models.Comment, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		var out []*models.Comment
		for _, c := range m.comments {
			if c.PostID == postID {
				out = append(out, c)
			}
		}
		return out, nil
	}
	r.countLikesFn = func(_ context.Context, id string) (int64, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		return int64(len(m.likes[id])), nil
	}
	r.isLikedFn = func(_ context.Context, id, userID string) (bool, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.likes[id][userID], nil
	}
	r.likeCountsFn = func(_ context.Context, ids []string) (map[string]int64, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		out := make(map[string]int64)
		for _, id := range ids {
			if n := len(m.likes[id]); n > 0 {
				out[id] = int64(n)
			}
		}
		return out, nil
	}
	r.likedSetFn = func(_ context.Context, userID string, ids []string) (map[string]bool, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		out := make(map[string]bool)
		for _, id := range ids {
			if m.likes[id][userID] {
				out[id] = true
			}
		}
		return out, nil
	}
	r.addLikeFn = func(_ context.Context, id, userID string) error {
		m.like(id, userID)
		return nil
	}
	r.removeLikeFn = func(_ context.Context, id, userID string) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.likes[id], userID)
		return nil
	}
	return r
}

func newTestCommentService(comments *commentRepoStub, profiles *profileRepoStub, emitter NotificationEmitter, flags string) *CommentService {
	return NewCommentService(
		comments,
		noopPostRepo(),
		profiles,
		emitter,
		featureflags.NewManager(flags),
		cache.NewLikeStateCache(64, time.Minute),
		nil,
	)
}

func flatten(nodes []*models.CommentNode) []string {
	var ids []string
	for _, n := range nodes {
		ids = append(ids, n.ID)
		ids = append(ids, flatten(n.Replies)...)
	}
	return ids
}

func TestCommentService_BuildTree_Shape(t *testing.T) {
	t.Parallel()

	mem := newMemComments()
	root1 := mem.add(testPostID, testViewer, nil)
	root2 := mem.add(testPostID, testViewer, nil)
	reply := mem.add(testPostID, testViewer, &root1.ID)
	nested := mem.add(testPostID, testViewer, &reply.ID)
	missing := uuid.NewString()
	orphan := mem.add(testPostID, testViewer, &missing)
	mem.add(uuid.NewString(), testViewer, nil)

	svc := newTestCommentService(mem.repo(), noopProfileRepo(), nil, "")
	tree, err := svc.BuildTree(context.Background(), testPostID, "", models.CommentSortRecent)
	require.NoError(t, err)

	require.Len(t, tree, 2)
	assert.Equal(t, root2.ID, tree[0].ID, "recent sort puts the newest root first")
	assert.Equal(t, root1.ID, tree[1].ID)
	assert.Empty(t, tree[0].Replies)
	assert.NotNil(t, tree[0].Replies)

	require.Len(t, tree[1].Replies, 2)
	assert.Equal(t, reply.ID, tree[1].Replies[0].ID)
	assert.Equal(t, nested.ID, tree[1].Replies[1].ID, "a reply to a reply sits under the root")
	for _, r := range tree[1].Replies {
		assert.Empty(t, r.Replies)
	}

	ids := flatten(tree)
	assert.NotContains(t, ids, orphan.ID)
	assert.Len(t, ids, 4)
	seen := make(map[string]bool)
	for _, id := range ids {
		assert.False(t, seen[id], "comment %s appears twice", id)
		seen[id] = true
	}
}

func TestCommentService_BuildTree_PopularSortIsStable(t *testing.T) {
	t.Parallel()

	mem := newMemComments()
	first := mem.add(testPostID, testViewer, nil)
	second := mem.add(testPostID, testViewer, nil)
	third := mem.add(testPostID, testViewer, nil)
	mem.like(first.ID, "a", "b")
	mem.like(second.ID, "c", "d")
	mem.like(third.ID, "a", "b", "c", "d", "e")

	svc := newTestCommentService(mem.repo(), noopProfileRepo(), nil, "")
	for i := 0; i < 5; i++ {
		tree, err := svc.BuildTree(context.Background(), testPostID, "", models.CommentSortPopular)
		require.NoError(t, err)
		require.Len(t, tree, 3)
		assert.Equal(t, []string{third.ID, first.ID, second.ID}, flatten(tree))
		assert.Equal(t, int64(5), tree[0].LikeCount)
	}
}

func TestCommentService_BuildTree_PerCommentModeMatchesBatched(t *testing.T) {
	t.Parallel()

	mem := newMemComments()
	root := mem.add(testPostID, testViewer, nil)
	reply := mem.add(testPostID, testPostAuthor, &root.ID)
	mem.like(root.ID, testViewer, testPostAuthor)
	mem.like(reply.ID, testPostAuthor)

	batchedRepo := mem.repo()
	batchedCalls := 0
	countLikes := batchedRepo.countLikesFn
	batchedRepo.countLikesFn = func(ctx context.Context, id string) (int64, error) {
		batchedCalls++
		return countLikes(ctx, id)
	}
	batched := newTestCommentService(batchedRepo, noopProfileRepo(), nil, "")

	perRepo := mem.repo()
	perRepo.likeCountsFn = func(context.Context, []string) (map[string]int64, error) {
		t.Fatal("per-comment mode must not batch")
		return nil, nil
	}
	parity := newTestCommentService(perRepo, noopProfileRepo(), nil, "comment_like_batching=off")

	want, err := batched.BuildTree(context.Background(), testPostID, testViewer, models.CommentSortRecent)
	require.NoError(t, err)
	got, err := parity.BuildTree(context.Background(), testPostID, testViewer, models.CommentSortRecent)
	require.NoError(t, err)

	assert.Zero(t, batchedCalls)
	assert.Equal(t, want, got)
	require.Len(t, got, 1)
	assert.True(t, got[0].LikedByViewer)
	assert.Equal(t, int64(2), got[0].LikeCount)
	assert.False(t, got[0].Replies[0].LikedByViewer)
}

func TestCommentService_BuildTree_Unavailable(t *testing.T) {
	t.Parallel()

	t.Run("list fails", func(t *testing.T) {
		t.Parallel()
		repo := noopCommentRepo()
		repo.listByPostFn = func(context.Context, string) ([]*models.Comment, error) {
			return nil, errors.New("connection reset by peer")
		}
		svc := newTestCommentService(repo, noopProfileRepo(), nil, "")
		tree, err := svc.BuildTree(context.Background(), testPostID, "", "")
		assert.Nil(t, tree)
		assertAppError(t, err, models.CodeCommentsUnavailable)
	})

	t.Run("like counts fail", func(t *testing.T) {
		t.Parallel()
		mem := newMemComments()
		mem.add(testPostID, testViewer, nil)
		repo := mem.repo()
		repo.likeCountsFn = func(context.Context, []string) (map[string]int64, error) {
			return nil, errors.New("timeout")
		}
		svc := newTestCommentService(repo, noopProfileRepo(), nil, "")
		tree, err := svc.BuildTree(context.Background(), testPostID, "", "")
		assert.Nil(t, tree)
		assertAppError(t, err, models.CodeCommentsUnavailable)
	})

	t.Run("invalid post id", func(t *testing.T) {
		t.Parallel()
		svc := newTestCommentService(noopCommentRepo(), noopProfileRepo(), nil, "")
		_, err := svc.BuildTree(context.Background(), "not-a-uuid", "", "")
		assertValidationError(t, err)
	})
}

func TestCommentService_CreateComment_Validation(t *testing.T) {
	t.Parallel()

	svc := newTestCommentService(noopCommentRepo(), noopProfileRepo(), nil, "")
	ctx := context.Background()

	t.Run("empty content", func(t *testing.T) {
		t.Parallel()
		_, err := svc.CreateComment(ctx, CreateCommentInput{AuthorID: testViewer, PostID: testPostID, Content: "   "})
		assertValidationError(t, err)
	})

	t.Run("content too long", func(t *testing.T) {
		t.Parallel()
		_, err := svc.CreateComment(ctx, CreateCommentInput{
			AuthorID: testViewer,
			PostID:   testPostID,
			Content:  strings.Repeat("x", 5001),
		})
		assertValidationError(t, err)
	})

	t.Run("banned author", func(t *testing.T) {
		t.Parallel()
		profiles := noopProfileRepo()
		profiles.getByIDFn = func(_ context.Context, id string) (*models.Profile, error) {
			return &models.Profile{ID: id, Username: "troll", IsBanned: true}, nil
		}
		svc := newTestCommentService(noopCommentRepo(), profiles, nil, "")
		_, err := svc.CreateComment(ctx, CreateCommentInput{AuthorID: testViewer, PostID: testPostID, Content: "hi"})
		assertForbiddenError(t, err)
	})

	t.Run("parent on another post", func(t *testing.T) {
		t.Parallel()
		mem := newMemComments()
		other := mem.add(uuid.NewString(), testViewer, nil)
		svc := newTestCommentService(mem.repo(), noopProfileRepo(), nil, "")
		_, err := svc.CreateComment(ctx, CreateCommentInput{
			AuthorID:        testViewer,
			PostID:          testPostID,
			Content:         "hi",
			ParentCommentID: &other.ID,
		})
		assertValidationError(t, err)
	})
}

func TestCommentService_NewRootCommentScenario(t *testing.T) {
	t.Parallel()

	mem := newMemComments()
	emitter := &recordingEmitter{}
	svc := newTestCommentService(mem.repo(), noopProfileRepo(), emitter, "")
	ctx := context.Background()

	created, err := svc.CreateComment(ctx, CreateCommentInput{
		AuthorID: testViewer,
		PostID:   testPostID,
		Content:  "  What a finish!  ",
	})
	require.NoError(t, err)
	assert.Nil(t, created.ParentCommentID)
	assert.Equal(t, "What a finish!", created.Content)

	tree, err := svc.BuildTree(ctx, testPostID, testViewer, models.CommentSortRecent)
	require.NoError(t, err)
	require.Len(t, tree, 1)
	assert.Equal(t, created.ID, tree[0].ID)
	assert.Equal(t, int64(0), tree[0].LikeCount)
	assert.Empty(t, tree[0].Replies)
	assert.Contains(t, tree[0].ContentHTML, "What a finish!")

	sent := emitter.notifications()
	require.Len(t, sent, 1)
	assert.Equal(t, models.NotificationComment, sent[0].Type)
	assert.Equal(t, testPostAuthor, sent[0].RecipientID)
	assert.Equal(t, testViewer, *sent[0].ActorID)
}

func TestCommentService_ReplyNestingScenario(t *testing.T) {
	t.Parallel()

	mem := newMemComments()
	svc := newTestCommentService(mem.repo(), noopProfileRepo(), nil, "")
	ctx := context.Background()

	root, err := svc.CreateComment(ctx, CreateCommentInput{AuthorID: testViewer, PostID: testPostID, Content: "root"})
	require.NoError(t, err)
	reply, err := svc.CreateComment(ctx, CreateCommentInput{
		AuthorID:        testPostAuthor,
		PostID:          testPostID,
		Content:         "reply",
		ParentCommentID: &root.ID,
	})
	require.NoError(t, err)
	deeper, err := svc.CreateComment(ctx, CreateCommentInput{
		AuthorID:        testViewer,
		PostID:          testPostID,
		Content:         "reply to reply",
		ParentCommentID: &reply.ID,
	})
	require.NoError(t, err)
	require.NotNil(t, deeper.ParentCommentID)
	assert.Equal(t, root.ID, *deeper.ParentCommentID)

	tree, err := svc.BuildTree(ctx, testPostID, "", models.CommentSortRecent)
	require.NoError(t, err)
	require.Len(t, tree, 1)
	require.Len(t, tree[0].Replies, 2)
	assert.Equal(t, reply.ID, tree[0].Replies[0].ID)
	assert.Equal(t, deeper.ID, tree[0].Replies[1].ID)
}

func TestCommentService_CreateComment_Mentions(t *testing.T) {
	t.Parallel()

	keeper := &models.Profile{ID: uuid.NewString(), Username: "keeper"}
	profiles := noopProfileRepo()
	profiles.getByIDFn = func(_ context.Context, id string) (*models.Profile, error) {
		return &models.Profile{ID: id, Username: "striker"}, nil
	}
	profiles.getByUsernamesFn = func(_ context.Context, names []string) ([]*models.Profile, error) {
		assert.ElementsMatch(t, []string{"keeper", "striker"}, names)
		return []*models.Profile{keeper, {ID: testViewer, Username: "striker"}}, nil
	}

	emitter := &recordingEmitter{err: errors.New("publish failed")}
	svc := newTestCommentService(newMemComments().repo(), profiles, emitter, "")
	_, err := svc.CreateComment(context.Background(), CreateCommentInput{
		AuthorID: testViewer,
		PostID:   testPostID,
		Content:  "great save @keeper, said @striker",
	})
	require.NoError(t, err, "notification failures do not fail the comment")

	sent := emitter.notifications()
	require.Len(t, sent, 2)
	assert.Equal(t, models.NotificationComment, sent[0].Type)
	assert.Equal(t, models.NotificationMention, sent[1].Type)
	assert.Equal(t, keeper.ID, sent[1].RecipientID)
}

func TestCommentService_ToggleLikeRoundTrip(t *testing.T) {
	t.Parallel()

	mem := newMemComments()
	c := mem.add(testPostID, testPostAuthor, nil)
	mem.like(c.ID, "someone-else")

	svc := newTestCommentService(mem.repo(), noopProfileRepo(), nil, "")
	var published []models.LikeState
	unsubscribe := svc.Likes().Subscribe(func(s models.LikeState) { published = append(published, s) })
	defer unsubscribe()

	ctx := context.Background()
	on, err := svc.ToggleLike(ctx, c.ID, testViewer)
	require.NoError(t, err)
	assert.True(t, on.Liked)
	assert.Equal(t, int64(2), on.LikeCount)

	off, err := svc.ToggleLike(ctx, c.ID, testViewer)
	require.NoError(t, err)
	assert.False(t, off.Liked)
	assert.Equal(t, int64(1), off.LikeCount)

	require.Len(t, published, 2)
	count, ok := svc.Likes().Count(c.ID)
	require.True(t, ok)
	assert.Equal(t, int64(1), count)
}

func TestCommentService_UpdateComment_Ownership(t *testing.T) {
	t.Parallel()

	repo := noopCommentRepo()
	repo.getByIDFn = func(_ context.Context, id string) (*models.Comment, error) {
		return &models.Comment{ID: id, AuthorID: testPostAuthor, PostID: testPostID}, nil
	}
	svc := newTestCommentService(repo, noopProfileRepo(), nil, "")

	_, err := svc.UpdateComment(context.Background(), UpdateCommentInput{UserID: testViewer, CommentID: testCommentID, Content: "edit"})
	assertForbiddenError(t, err)

	updated, err := svc.UpdateComment(context.Background(), UpdateCommentInput{UserID: testPostAuthor, CommentID: testCommentID, Content: "edit"})
	require.NoError(t, err)
	assert.Equal(t, testCommentID, updated.ID)
}

func TestCommentService_DeleteComment_Permissions(t *testing.T) {
	t.Parallel()

	newRepo := func(deleted *bool) *commentRepoStub {
		repo := noopCommentRepo()
		repo.getByIDFn = func(_ context.Context, id string) (*models.Comment, error) {
			return &models.Comment{ID: id, AuthorID: testPostAuthor, PostID: testPostID}, nil
		}
		repo.deleteFn = func(context.Context, string) error {
			*deleted = true
			return nil
		}
		return repo
	}

	t.Run("registered user cannot delete others", func(t *testing.T) {
		t.Parallel()
		var deleted bool
		svc := newTestCommentService(newRepo(&deleted), noopProfileRepo(), nil, "")
		_, err := svc.DeleteComment(context.Background(), DeleteCommentInput{UserID: testViewer, CommentID: testCommentID})
		assertForbiddenError(t, err)
		assert.False(t, deleted)
	})

	t.Run("editor can delete others", func(t *testing.T) {
		t.Parallel()
		var deleted bool
		profiles := noopProfileRepo()
		profiles.getByIDFn = func(_ context.Context, id string) (*models.Profile, error) {
			return &models.Profile{ID: id, Username: "desk", Role: models.RoleEditor}, nil
		}
		svc := newTestCommentService(newRepo(&deleted), profiles, nil, "")
		_, err := svc.DeleteComment(context.Background(), DeleteCommentInput{UserID: testModerator, CommentID: testCommentID})
		require.NoError(t, err)
		assert.True(t, deleted)
	})

	t.Run("author can delete own", func(t *testing.T) {
		t.Parallel()
		var deleted bool
		svc := newTestCommentService(newRepo(&deleted), noopProfileRepo(), nil, "")
		_, err := svc.DeleteComment(context.Background(), DeleteCommentInput{UserID: testPostAuthor, CommentID: testCommentID})
		require.NoError(t, err)
		assert.True(t, deleted)
	})
}

func bannedProfiles() *profileRepoStub {
	profiles := noopProfileRepo()
	profiles.getByIDFn = func(_ context.Context, id string) (*models.Profile, error) {
		return &models.Profile{ID: id, Username: "sentoff", IsBanned: true}, nil
	}
	return profiles
}

func TestCommentService_UpdateComment_BannedAuthor(t *testing.T) {
	t.Parallel()

	repo := noopCommentRepo()
	repo.getByIDFn = func(_ context.Context, id string) (*models.Comment, error) {
		return &models.Comment{ID: id, AuthorID: testViewer, PostID: testPostID, Content: "original"}, nil
	}
	repo.updateFn = func(context.Context, *models.Comment) error {
		t.Fatal("suspended authors must not rewrite comments")
		return nil
	}
	svc := newTestCommentService(repo, bannedProfiles(), nil, "")

	_, err := svc.UpdateComment(context.Background(), UpdateCommentInput{UserID: testViewer, CommentID: testCommentID, Content: "rewritten"})
	assertForbiddenError(t, err)
	assert.Contains(t, err.Error(), "suspended")
}

func TestCommentService_ToggleLike_BannedViewer(t *testing.T) {
	t.Parallel()

	mem := newMemComments()
	c := mem.add(testPostID, testPostAuthor, nil)
	svc := newTestCommentService(mem.repo(), bannedProfiles(), nil, "")

	_, err := svc.ToggleLike(context.Background(), c.ID, testViewer)
	assertForbiddenError(t, err)
	assert.Empty(t, mem.likes[c.ID])
}

func TestCommentService_BuildTree_PerCommentModeReadsDatabase(t *testing.T) {
	t.Parallel()

	mem := newMemComments()
	c := mem.add(testPostID, testPostAuthor, nil)
	mem.like(c.ID, testViewer, testPostAuthor)

	repo := mem.repo()
	lookups := 0
	countLikes := repo.countLikesFn
	repo.countLikesFn = func(ctx context.Context, id string) (int64, error) {
		lookups++
		return countLikes(ctx, id)
	}
	svc := newTestCommentService(repo, noopProfileRepo(), nil, "comment_like_batching=off")
	svc.Likes().Store(c.ID, 40)

	tree, err := svc.BuildTree(context.Background(), testPostID, "", models.CommentSortRecent)
	require.NoError(t, err)
	require.Len(t, tree, 1)
	assert.Equal(t, int64(2), tree[0].LikeCount, "stale cached counts are not served")
	assert.Equal(t, 1, lookups)

	count, ok := svc.Likes().Count(c.ID)
	require.True(t, ok)
	assert.Equal(t, int64(2), count)
}

func TestCommentService_ToggleLike_DropsCachedPostView(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	cache.SetClient(rdb)
	t.Cleanup(func() { cache.SetClient(nil) })

	mem := newMemComments()
	c := mem.add(testPostID, testPostAuthor, nil)
	svc := newTestCommentService(mem.repo(), noopProfileRepo(), nil, "")

	require.NoError(t, mr.Set(cache.PostKey(testPostID), `{"likes_count":0}`))
	_, err := svc.ToggleLike(context.Background(), c.ID, testViewer)
	require.NoError(t, err)
	assert.False(t, mr.Exists(cache.PostKey(testPostID)))
}
