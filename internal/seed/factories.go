// Package seed provides helpers to create demo data for the application
// database. These helpers are intended for development and testing only.
package seed

import (
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"matchday/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var usernameStrip = regexp.MustCompile(`[^a-z0-9_]+`)

// Factory builds domain entities and persists them to the database.
// It is a thin helper used by the seeder and tests.
type Factory struct {
	db    *gorm.DB
	opts  Options
	faker *gofakeit.Faker
	seq   int
}

// NewFactory creates a new Factory bound to the provided Gorm DB. db may be
// nil when opts.DryRun is set.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Factory{db: db, opts: opts, faker: gofakeit.New(seed)}
}

func (f *Factory) persist(kind string, v any) error {
	if f.opts.DryRun {
		log.Printf("[dry-run] create %s", kind)
		return nil
	}
	return f.db.Create(v).Error
}

// createdWithin spreads timestamps over the last MaxDays days.
func (f *Factory) createdWithin() time.Time {
	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 30
	}
	back := time.Duration(f.faker.Number(0, maxDays*24*60-1)) * time.Minute
	return time.Now().Add(-back)
}

// username derives a valid, unique handle from a generated name.
func (f *Factory) username() string {
	f.seq++
	base := usernameStrip.ReplaceAllString(strings.ToLower(f.faker.Username()), "")
	suffix := fmt.Sprintf("_%d", f.seq)
	if len(base) < 3 {
		base = "fan" + base
	}
	if len(base)+len(suffix) > 24 {
		base = base[:24-len(suffix)]
	}
	return base + suffix
}

// CreateProfile constructs and persists a sample profile.
func (f *Factory) CreateProfile(overrides ...func(*models.Profile)) (*models.Profile, error) {
	first, last := f.faker.FirstName(), f.faker.LastName()
	profile := &models.Profile{
		ID:          uuid.NewString(),
		Username:    f.username(),
		DisplayName: first + " " + last,
		AvatarURL:   fmt.Sprintf("https://i.pravatar.cc/150?u=%s", f.faker.UUID()),
		Bio:         f.faker.Sentence(10),
		Role:        models.RoleRegisteredUser,
	}
	for _, override := range overrides {
		override(profile)
	}
	if err := f.persist("profile", profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// BuildPost constructs an article in category without persisting it.
func (f *Factory) BuildPost(author *models.Profile, category string, overrides ...func(*models.Post)) *models.Post {
	home, away := f.faker.City(), f.faker.City()
	created := f.createdWithin()
	post := &models.Post{
		ID:          uuid.NewString(),
		Title:       fmt.Sprintf("%s %s %s", home, f.faker.RandomString(headlineVerbs), away),
		Summary:     f.faker.Sentence(14),
		Content:     f.faker.Paragraph(3, 4, 14, "\n\n"),
		Category:    category,
		ImageURL:    fmt.Sprintf("https://picsum.photos/seed/%s/1200/675", f.faker.UUID()),
		AuthorID:    author.ID,
		Status:      models.PostStatusPublished,
		PublishedAt: &created,
		CreatedAt:   created,
	}
	for _, override := range overrides {
		override(post)
	}
	return post
}

// CreatePost builds and persists an article.
func (f *Factory) CreatePost(author *models.Profile, category string, overrides ...func(*models.Post)) (*models.Post, error) {
	post := f.BuildPost(author, category, overrides...)
	if err := f.persist("post", post); err != nil {
		return nil, err
	}
	return post, nil
}

// CreateComment persists a comment on post. A non-nil parent makes it a reply.
func (f *Factory) CreateComment(author *models.Profile, post *models.Post, parent *models.Comment, overrides ...func(*models.Comment)) (*models.Comment, error) {
	created := post.CreatedAt.Add(time.Duration(f.faker.Number(1, 48*60)) * time.Minute)
	if parent != nil {
		created = parent.CreatedAt.Add(time.Duration(f.faker.Number(1, 12*60)) * time.Minute)
	}
	if now := time.Now(); created.After(now) {
		created = now
	}
	comment := &models.Comment{
		ID:        uuid.NewString(),
		Content:   f.faker.Sentence(f.faker.Number(4, 18)),
		AuthorID:  author.ID,
		PostID:    post.ID,
		CreatedAt: created,
		UpdatedAt: created,
	}
	if parent != nil {
		comment.ParentCommentID = &parent.ID
	}
	for _, override := range overrides {
		override(comment)
	}
	if err := f.persist("comment", comment); err != nil {
		return nil, err
	}
	return comment, nil
}

// CreateCommentLike persists a like from user on comment.
func (f *Factory) CreateCommentLike(user *models.Profile, comment *models.Comment) error {
	return f.persist("comment like", &models.CommentLike{CommentID: comment.ID, UserID: user.ID})
}

// CreateBookmark persists a bookmark from user on post.
func (f *Factory) CreateBookmark(user *models.Profile, post *models.Post) error {
	return f.persist("bookmark", &models.Bookmark{PostID: post.ID, UserID: user.ID})
}

// CreateCommentNotification records that actor commented on recipient's post.
func (f *Factory) CreateCommentNotification(actor *models.Profile, post *models.Post, at time.Time) error {
	return f.persist("notification", &models.Notification{
		ID:            uuid.NewString(),
		Type:          models.NotificationComment,
		RecipientID:   post.AuthorID,
		ActorID:       &actor.ID,
		RelatedPostID: &post.ID,
		IsRead:        f.faker.Bool(),
		CreatedAt:     at,
	})
}

// CreateCommentReport persists a pending report on comment. A non-nil
// reviewer closes it as dismissed.
func (f *Factory) CreateCommentReport(reporter *models.Profile, comment *models.Comment, reviewer *models.Profile) (*models.CommentReport, error) {
	report := &models.CommentReport{
		ID:          uuid.NewString(),
		CommentID:   comment.ID,
		ReporterID:  reporter.ID,
		Reason:      f.faker.RandomString(reportReasons),
		Description: f.faker.Sentence(8),
		Status:      models.ReportStatusPending,
	}
	closeReport(&report.Status, &report.ReviewedBy, &report.ReviewedAt, reviewer)
	if err := f.persist("comment report", report); err != nil {
		return nil, err
	}
	return report, nil
}

// CreatePostReport persists a pending report on post. A non-nil reviewer
// closes it as dismissed.
func (f *Factory) CreatePostReport(reporter *models.Profile, post *models.Post, reviewer *models.Profile) (*models.PostReport, error) {
	report := &models.PostReport{
		ID:          uuid.NewString(),
		PostID:      post.ID,
		ReporterID:  reporter.ID,
		Reason:      f.faker.RandomString(reportReasons),
		Description: f.faker.Sentence(8),
		Status:      models.ReportStatusPending,
	}
	closeReport(&report.Status, &report.ReviewedBy, &report.ReviewedAt, reviewer)
	if err := f.persist("post report", report); err != nil {
		return nil, err
	}
	return report, nil
}

func closeReport(status *models.ReportStatus, by **string, at **time.Time, reviewer *models.Profile) {
	if reviewer == nil {
		return
	}
	now := time.Now().UTC()
	*status = models.ReportStatusDismissed
	*by = &reviewer.ID
	*at = &now
}

var (
	headlineVerbs = []string{"edge", "stun", "hold", "thrash", "outlast", "draw with", "fall to", "rally past"}
	reportReasons = []string{"spam", "harassment", "misinformation", "off-topic", "hate speech"}
)
