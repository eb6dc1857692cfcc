package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"matchday/internal/featureflags"
	"matchday/internal/models"
	"matchday/internal/observability"
	"matchday/internal/repository"

	"golang.org/x/text/language"
)

// DefaultNotificationWindow is how many notifications a listing returns.
const DefaultNotificationWindow = 50

// Publisher delivers realtime payloads to a user's live connections.
type Publisher interface {
	PublishUser(ctx context.Context, userID string, payload string) error
}

// NotificationEmitter stores and fans out a new notification.
type NotificationEmitter interface {
	Emit(ctx context.Context, n *models.Notification) error
}

// NotificationService lists notifications, tracks read state and emits new ones.
type NotificationService struct {
	repo      repository.NotificationRepository
	publisher Publisher
	flags     *featureflags.Manager
	window    int
}

// NewNotificationService returns a NotificationService. publisher may be nil.
func NewNotificationService(
	repo repository.NotificationRepository,
	publisher Publisher,
	flags *featureflags.Manager,
	window int,
) *NotificationService {
	if window <= 0 {
		window = DefaultNotificationWindow
	}
	return &NotificationService{repo: repo, publisher: publisher, flags: flags, window: window}
}

// realtimeLocale renders pushed notifications. The recipient's locale is only
// known per request, so the payload names it and keeps the raw type and ids;
// clients in another locale re-fetch the listing.
var realtimeLocale = language.English

type realtimeEvent struct {
	Type    string                       `json:"type"`
	Locale  string                       `json:"locale"`
	Payload models.PresentedNotification `json:"payload"`
}

// Emit stores n and pushes it to the recipient's open connections. A failed
// push is logged; the stored row is what clients re-fetch.
func (s *NotificationService) Emit(ctx context.Context, n *models.Notification) error {
	if err := s.repo.Create(ctx, n); err != nil {
		return err
	}
	observability.NotificationsEmitted.WithLabelValues(string(n.Type)).Inc()

	if s.publisher == nil || !s.flags.EnabledOr(featureflags.RealtimeNotifications, n.RecipientID, true) {
		return nil
	}
	payload, err := json.Marshal(realtimeEvent{
		Type:    "notification",
		Locale:  realtimeLocale.String(),
		Payload: PresentNotification(n, realtimeLocale),
	})
	if err == nil {
		err = s.publisher.PublishUser(ctx, n.RecipientID, string(payload))
	}
	if err != nil {
		slog.WarnContext(ctx, "failed to publish notification",
			"notification_id", n.ID,
			"recipient_id", n.RecipientID,
			"error", err,
		)
	}
	return nil
}

// List returns the recipient's newest notifications rendered for locale.
func (s *NotificationService) List(ctx context.Context, recipientID string, locale language.Tag) ([]models.PresentedNotification, error) {
	rows, err := s.repo.ListForRecipient(ctx, recipientID, s.window)
	if err != nil {
		return nil, err
	}
	out := make([]models.PresentedNotification, 0, len(rows))
	for _, n := range rows {
		out = append(out, PresentNotification(n, locale))
	}
	return out, nil
}

// MarkRead marks one notification read. Marking a read row again is a no-op.
func (s *NotificationService) MarkRead(ctx context.Context, id, recipientID string) error {
	return s.repo.MarkRead(ctx, id, recipientID)
}

// MarkAllRead marks every unread notification of the recipient and returns how many changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, recipientID string) (int64, error) {
	return s.repo.MarkAllRead(ctx, recipientID)
}

func (s *NotificationService) Delete(ctx context.Context, id, recipientID string) error {
	return s.repo.Delete(ctx, id, recipientID)
}

func (s *NotificationService) UnreadCount(ctx context.Context, recipientID string) (int64, error) {
	return s.repo.CountUnread(ctx, recipientID)
}
