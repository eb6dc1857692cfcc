package server

import (
	"context"
	"encoding/json"

	"matchday/internal/middleware"
	"matchday/internal/models"
	"matchday/internal/notifications"
)

// Event type constants prevent typos in event names.
const (
	EventNotification       = "notification"
	EventCommentCreated     = "comment_created"
	EventCommentUpdated     = "comment_updated"
	EventCommentDeleted     = "comment_deleted"
	EventCommentLikeUpdated = "comment_like_updated"
)

// realtimePublisher goes through Redis when it is configured so every API
// instance sees the event, and straight to the local hub otherwise.
type realtimePublisher struct {
	notifier *notifications.Notifier
	hub      *notifications.Hub
}

func (p *realtimePublisher) PublishUser(ctx context.Context, userID string, payload string) error {
	if p.notifier != nil {
		return p.notifier.PublishUser(ctx, userID, payload)
	}
	p.hub.Broadcast(userID, payload)
	return nil
}

func (p *realtimePublisher) PublishBroadcast(ctx context.Context, payload string) error {
	if p.notifier != nil {
		return p.notifier.PublishBroadcast(ctx, payload)
	}
	p.hub.BroadcastAll(payload)
	return nil
}

func (s *Server) publishBroadcastEvent(ctx context.Context, eventType string, payload any) {
	event := map[string]any{
		"type":    eventType,
		"payload": payload,
	}
	eventJSON, err := json.Marshal(event)
	if err != nil {
		middleware.Logger.ErrorContext(ctx, "failed to marshal event", "type", eventType, "error", err)
		return
	}
	if err := s.publisher.PublishBroadcast(ctx, string(eventJSON)); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to publish broadcast event", "type", eventType, "error", err)
	}
}

// publishLikeState fans a confirmed like toggle out to every open view. The
// viewer-specific liked flag is left out; other viewers only need the count.
func (s *Server) publishLikeState(state models.LikeState) {
	s.publishBroadcastEvent(context.Background(), EventCommentLikeUpdated, map[string]any{
		"comment_id": state.CommentID,
		"like_count": state.LikeCount,
	})
}

func commentEventPayload(comment *models.Comment) map[string]any {
	return map[string]any{
		"id":                comment.ID,
		"post_id":           comment.PostID,
		"parent_comment_id": comment.ParentCommentID,
		"author_id":         comment.AuthorID,
	}
}
