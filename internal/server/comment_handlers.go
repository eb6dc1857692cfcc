package server

import (
	"strings"
	"time"

	"matchday/internal/models"
	"matchday/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetComments handles GET /api/posts/:id/comments
// Query: sort (recent|popular)
func (s *Server) GetComments(c *fiber.Ctx) error {
	postID, err := parseID(c, "id", "postId")
	if err != nil {
		return nil
	}

	tree, err := s.commentService.BuildTree(c.UserContext(), postID, viewerID(c), c.Query("sort"))
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(tree)
}

// CreateComment creates a comment on a post (protected)
func (s *Server) CreateComment(c *fiber.Ctx) error {
	ctx := c.UserContext()

	postID, err := parseID(c, "id", "postId")
	if err != nil {
		return nil
	}

	var req struct {
		Content         string  `json:"content"`
		ParentCommentID *string `json:"parent_comment_id"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	if req.ParentCommentID != nil && strings.TrimSpace(*req.ParentCommentID) == "" {
		req.ParentCommentID = nil
	}

	created, err := s.commentService.CreateComment(ctx, service.CreateCommentInput{
		AuthorID:        viewerID(c),
		PostID:          postID,
		Content:         req.Content,
		ParentCommentID: req.ParentCommentID,
	})
	if err != nil {
		return models.Respond(c, err)
	}

	payload := commentEventPayload(created)
	payload["created_at"] = created.CreatedAt.UTC().Format(time.RFC3339Nano)
	s.publishBroadcastEvent(ctx, EventCommentCreated, payload)

	return c.Status(fiber.StatusCreated).JSON(created)
}

// UpdateComment handles PUT /api/comments/:id
func (s *Server) UpdateComment(c *fiber.Ctx) error {
	ctx := c.UserContext()

	commentID, err := parseID(c, "id", "commentId")
	if err != nil {
		return nil
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	updated, err := s.commentService.UpdateComment(ctx, service.UpdateCommentInput{
		UserID:    viewerID(c),
		CommentID: commentID,
		Content:   req.Content,
	})
	if err != nil {
		return models.Respond(c, err)
	}

	s.publishBroadcastEvent(ctx, EventCommentUpdated, commentEventPayload(updated))
	return c.JSON(updated)
}

// DeleteComment handles DELETE /api/comments/:id. Replies go with it.
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	ctx := c.UserContext()

	commentID, err := parseID(c, "id", "commentId")
	if err != nil {
		return nil
	}

	deleted, err := s.commentService.DeleteComment(ctx, service.DeleteCommentInput{
		UserID:    viewerID(c),
		CommentID: commentID,
	})
	if err != nil {
		return models.Respond(c, err)
	}

	s.publishBroadcastEvent(ctx, EventCommentDeleted, commentEventPayload(deleted))
	return c.SendStatus(fiber.StatusNoContent)
}

// ToggleCommentLike handles POST /api/comments/:id/like. The response carries
// the confirmed state; other viewers get the new count over the websocket.
func (s *Server) ToggleCommentLike(c *fiber.Ctx) error {
	commentID, err := parseID(c, "id", "commentId")
	if err != nil {
		return nil
	}

	state, err := s.commentService.ToggleLike(c.UserContext(), commentID, viewerID(c))
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(state)
}
