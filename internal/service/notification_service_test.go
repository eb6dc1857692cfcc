package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"matchday/internal/featureflags"
	"matchday/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

type publisherStub struct {
	userID  string
	payload string
	err     error
	calls   int
}

func (p *publisherStub) PublishUser(_ context.Context, userID, payload string) error {
	p.calls++
	p.userID = userID
	p.payload = payload
	return p.err
}

func TestPresentNotification_Templates(t *testing.T) {
	t.Parallel()

	actorID := testViewer
	postID := testPostID
	actor := &models.Profile{ID: actorID, Username: "striker", DisplayName: "Sam Striker", Role: models.RoleJournalist}
	post := &models.Post{ID: postID, Title: "Derby day"}

	tests := []struct {
		name     string
		n        *models.Notification
		locale   language.Tag
		message  string
		icon     string
		category string
	}{
		{
			name:     "like",
			n:        &models.Notification{Type: models.NotificationLike, ActorID: &actorID, Actor: actor, RelatedPostID: &postID, RelatedPost: post},
			locale:   language.English,
			message:  `Sam Striker liked your post "Derby day"`,
			icon:     "heart",
			category: "engagement",
		},
		{
			name:     "comment",
			n:        &models.Notification{Type: models.NotificationComment, ActorID: &actorID, Actor: actor, RelatedPostID: &postID, RelatedPost: post},
			locale:   language.English,
			message:  `Sam Striker commented on your post "Derby day"`,
			icon:     "message-circle",
			category: "engagement",
		},
		{
			name:     "follower",
			n:        &models.Notification{Type: models.NotificationNewFollower, ActorID: &actorID, Actor: actor},
			locale:   language.English,
			message:  "Sam Striker started following you",
			icon:     "user-plus",
			category: "social",
		},
		{
			name:     "mention",
			n:        &models.Notification{Type: models.NotificationMention, ActorID: &actorID, Actor: actor},
			locale:   language.English,
			message:  "Sam Striker mentioned you",
			icon:     "at-sign",
			category: "engagement",
		},
		{
			name:     "published",
			n:        &models.Notification{Type: models.NotificationPostPublished, ActorID: &actorID, Actor: actor, RelatedPost: post},
			locale:   language.English,
			message:  `Sam Striker published "Derby day"`,
			icon:     "newspaper",
			category: "content",
		},
		{
			name:     "missing actor and post",
			n:        &models.Notification{Type: models.NotificationLike},
			locale:   language.English,
			message:  `unknown user liked your post "post"`,
			icon:     "heart",
			category: "engagement",
		},
		{
			name:     "unknown type",
			n:        &models.Notification{Type: "trophy"},
			locale:   language.English,
			message:  "You have a new notification",
			icon:     "bell",
			category: "general",
		},
		{
			name:     "spanish",
			n:        &models.Notification{Type: models.NotificationComment, RelatedPost: post},
			locale:   language.Spanish,
			message:  `usuario desconocido comentó tu publicación "Derby day"`,
			icon:     "message-circle",
			category: "engagement",
		},
		{
			name:     "unsupported locale falls back to english",
			n:        &models.Notification{Type: models.NotificationMention, Actor: actor},
			locale:   language.German,
			message:  "Sam Striker mentioned you",
			icon:     "at-sign",
			category: "engagement",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := PresentNotification(tt.n, tt.locale)
			assert.Equal(t, tt.message, got.Message)
			assert.Equal(t, tt.icon, got.Icon)
			assert.Equal(t, tt.category, got.Category)
		})
	}
}

func TestPresentNotification_ActorInfo(t *testing.T) {
	t.Parallel()

	actorID := testModerator
	got := PresentNotification(&models.Notification{Type: models.NotificationMention, ActorID: &actorID}, language.English)
	assert.Equal(t, actorID, got.Actor.ID)
	assert.Equal(t, models.UnknownUser, got.Actor.DisplayName)

	editor := &models.Profile{ID: actorID, Username: "desk", Role: models.RoleEditor}
	got = PresentNotification(&models.Notification{Type: models.NotificationMention, ActorID: &actorID, Actor: editor}, language.English)
	assert.Equal(t, "Editor", got.Actor.Badge)
	assert.Equal(t, "desk mentioned you", got.Message)
}

func TestMatchLocale(t *testing.T) {
	t.Parallel()

	tests := []struct {
		header string
		want   language.Tag
	}{
		{"", language.English},
		{"es-MX,es;q=0.9,en;q=0.8", language.Spanish},
		{"en-GB,en;q=0.9", language.English},
		{"fr-FR", language.English},
		{"de;q=0.9,es;q=0.5", language.Spanish},
		{"not a header;;;", language.English},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, MatchLocale(tt.header))
		})
	}
}

func TestNotificationService_ListUsesWindow(t *testing.T) {
	t.Parallel()

	var gotLimit int
	repo := noopNotificationRepo()
	repo.listFn = func(_ context.Context, recipient string, limit int) ([]*models.Notification, error) {
		gotLimit = limit
		return []*models.Notification{
			{ID: "n2", Type: models.NotificationMention, RecipientID: recipient, CreatedAt: time.Now()},
			{ID: "n1", Type: models.NotificationNewFollower, RecipientID: recipient, IsRead: true},
		}, nil
	}

	svc := NewNotificationService(repo, nil, nil, 0)
	items, err := svc.List(context.Background(), testViewer, language.English)
	require.NoError(t, err)
	assert.Equal(t, DefaultNotificationWindow, gotLimit)
	require.Len(t, items, 2)
	assert.Equal(t, "n2", items[0].ID)
	assert.True(t, items[1].IsRead)

	_, err = NewNotificationService(repo, nil, nil, 5).List(context.Background(), testViewer, language.English)
	require.NoError(t, err)
	assert.Equal(t, 5, gotLimit)
}

func TestNotificationService_EmitPublishes(t *testing.T) {
	t.Parallel()

	repo := noopNotificationRepo()
	repo.createFn = func(_ context.Context, n *models.Notification) error {
		n.ID = "n1"
		return nil
	}
	pub := &publisherStub{}
	svc := NewNotificationService(repo, pub, featureflags.NewManager(""), 0)

	actorID := testViewer
	err := svc.Emit(context.Background(), &models.Notification{
		Type:        models.NotificationMention,
		RecipientID: testPostAuthor,
		ActorID:     &actorID,
		Actor:       &models.Profile{ID: actorID, Username: "striker"},
	})
	require.NoError(t, err)
	assert.Equal(t, testPostAuthor, pub.userID)

	var event struct {
		Type    string                       `json:"type"`
		Locale  string                       `json:"locale"`
		Payload models.PresentedNotification `json:"payload"`
	}
	require.NoError(t, json.Unmarshal([]byte(pub.payload), &event))
	assert.Equal(t, "notification", event.Type)
	assert.Equal(t, "en", event.Locale)
	assert.Equal(t, "n1", event.Payload.ID)
	assert.Equal(t, models.NotificationMention, event.Payload.Type)
	assert.Equal(t, actorID, event.Payload.Actor.ID)
	assert.Equal(t, "striker mentioned you", event.Payload.Message)
}

func TestNotificationService_EmitPublishFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	pub := &publisherStub{err: errors.New("redis down")}
	svc := NewNotificationService(noopNotificationRepo(), pub, nil, 0)
	require.NoError(t, svc.Emit(context.Background(), &models.Notification{Type: models.NotificationLike, RecipientID: testViewer}))
	assert.Equal(t, 1, pub.calls)
}

func TestNotificationService_EmitRespectsFlagAndStoreErrors(t *testing.T) {
	t.Parallel()

	pub := &publisherStub{}
	off := NewNotificationService(noopNotificationRepo(), pub, featureflags.NewManager("realtime_notifications=off"), 0)
	require.NoError(t, off.Emit(context.Background(), &models.Notification{Type: models.NotificationLike, RecipientID: testViewer}))
	assert.Zero(t, pub.calls)

	repo := noopNotificationRepo()
	repo.createFn = func(context.Context, *models.Notification) error { return errors.New("insert failed") }
	failing := NewNotificationService(repo, pub, nil, 0)
	assert.Error(t, failing.Emit(context.Background(), &models.Notification{Type: models.NotificationLike, RecipientID: testViewer}))
	assert.Zero(t, pub.calls)
}
