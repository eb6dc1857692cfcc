package service

import (
	"fmt"
	"strings"

	"matchday/internal/models"

	"golang.org/x/text/language"
)

type messageFunc func(actor, post string) string

type localeTemplates struct {
	unknownActor string
	unknownPost  string
	fallback     string
	messages     map[models.NotificationType]messageFunc
}

type notificationStyle struct {
	icon     string
	category string
}

var supportedLocales = []language.Tag{language.English, language.Spanish}

var localeMatcher = language.NewMatcher(supportedLocales)

var notificationTemplates = map[language.Tag]localeTemplates{
	language.English: {
		unknownActor: models.UnknownUser,
		unknownPost:  "post",
		fallback:     "You have a new notification",
		messages: map[models.NotificationType]messageFunc{
			models.NotificationLike: func(actor, post string) string {
				return fmt.Sprintf(`%s liked your post "%s"`, actor, post)
			},
			models.NotificationComment: func(actor, post string) string {
				return fmt.Sprintf(`%s commented on your post "%s"`, actor, post)
			},
			models.NotificationNewFollower: func(actor, _ string) string {
				return actor + " started following you"
			},
			models.NotificationMention: func(actor, _ string) string {
				return actor + " mentioned you"
			},
			models.NotificationPostPublished: func(actor, post string) string {
				return fmt.Sprintf(`%s published "%s"`, actor, post)
			},
		},
	},
	language.Spanish: {
		unknownActor: "usuario desconocido",
		unknownPost:  "publicación",
		fallback:     "Tienes una nueva notificación",
		messages: map[models.NotificationType]messageFunc{
			models.NotificationLike: func(actor, post string) string {
				return fmt.Sprintf(`A %s le gustó tu publicación "%s"`, actor, post)
			},
			models.NotificationComment: func(actor, post string) string {
				return fmt.Sprintf(`%s comentó tu publicación "%s"`, actor, post)
			},
			models.NotificationNewFollower: func(actor, _ string) string {
				return actor + " comenzó a seguirte"
			},
			models.NotificationMention: func(actor, _ string) string {
				return actor + " te mencionó"
			},
			models.NotificationPostPublished: func(actor, post string) string {
				return fmt.Sprintf(`%s publicó "%s"`, actor, post)
			},
		},
	},
}

var notificationStyles = map[models.NotificationType]notificationStyle{
	models.NotificationLike:          {icon: "heart", category: "engagement"},
	models.NotificationComment:       {icon: "message-circle", category: "engagement"},
	models.NotificationMention:       {icon: "at-sign", category: "engagement"},
	models.NotificationNewFollower:   {icon: "user-plus", category: "social"},
	models.NotificationPostPublished: {icon: "newspaper", category: "content"},
}

var defaultStyle = notificationStyle{icon: "bell", category: "general"}

// MatchLocale picks the supported locale closest to an Accept-Language header.
// Anything unparseable or unsupported yields English.
func MatchLocale(acceptLanguage string) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return language.English
	}
	_, index, confidence := localeMatcher.Match(tags...)
	if confidence == language.No {
		return language.English
	}
	return supportedLocales[index]
}

// PresentNotification renders a stored notification for the given locale.
func PresentNotification(n *models.Notification, locale language.Tag) models.PresentedNotification {
	tpl, ok := notificationTemplates[locale]
	if !ok {
		tpl = notificationTemplates[language.English]
	}

	actor := tpl.unknownActor
	actorID := ""
	if n.ActorID != nil {
		actorID = *n.ActorID
	}
	if n.Actor != nil {
		actor = n.Actor.Name()
	}
	post := tpl.unknownPost
	if n.RelatedPost != nil && strings.TrimSpace(n.RelatedPost.Title) != "" {
		post = n.RelatedPost.Title
	}

	message := tpl.fallback
	if render, ok := tpl.messages[n.Type]; ok {
		message = render(actor, post)
	}

	style, ok := notificationStyles[n.Type]
	if !ok {
		style = defaultStyle
	}

	info := models.AuthorInfoFor(actorID, n.Actor)
	if n.Actor == nil {
		info.Username = tpl.unknownActor
		info.DisplayName = tpl.unknownActor
	}

	return models.PresentedNotification{
		ID:            n.ID,
		Type:          n.Type,
		Message:       message,
		Icon:          style.icon,
		Category:      style.category,
		Actor:         info,
		RelatedPostID: n.RelatedPostID,
		IsRead:        n.IsRead,
		CreatedAt:     n.CreatedAt,
	}
}
