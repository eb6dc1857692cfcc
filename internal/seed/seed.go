package seed

import (
	"fmt"
	"log"

	"matchday/internal/models"

	"gorm.io/gorm"
)

// Options configure the seeder.
type Options struct {
	// DryRun builds every entity but writes nothing.
	DryRun bool
	// MaxDays bounds how far back article timestamps are spread.
	MaxDays int
	// Seed fixes the generator for reproducible data. Zero uses the clock.
	Seed int64
}

// Counts size a seeding run.
type Counts struct {
	Fans              int
	Posts             int
	CommentsPerPost   int
	RepliesPerComment int
	Reports           int
}

// DefaultCounts is a small newsroom suitable for local development.
var DefaultCounts = Counts{Fans: 20, Posts: 30, CommentsPerPost: 4, RepliesPerComment: 2, Reports: 8}

// Category weights for generated articles.
type categoryWeight struct {
	Category string
	Weight   int
}

var defaultDistribution = []categoryWeight{
	{"football", 50},
	{"basketball", 20},
	{"tennis", 15},
	{"formula1", 10},
	{"cycling", 5},
}

// Result lists what a run created.
type Result struct {
	Staff         []*models.Profile
	Fans          []*models.Profile
	Posts         []*models.Post
	Comments      []*models.Comment
	Reports       int
	Notifications int
}

// Seeder populates the database through a Factory.
type Seeder struct {
	db      *gorm.DB
	factory *Factory
	opts    Options
}

// NewSeeder returns a seeder writing to db.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	return &Seeder{db: db, factory: NewFactory(db, opts), opts: opts}
}

// staff are the fixed newsroom accounts, one per elevated role.
var staff = []struct {
	Username string
	Display  string
	Role     models.Role
}{
	{"chief_editor", "Chief Editor", models.RoleAdministrator},
	{"desk_editor", "Desk Editor", models.RoleEditor},
	{"match_reporter", "Match Reporter", models.RoleJournalist},
}

// Run seeds staff, fans, articles, two-level discussions with likes,
// notifications for article authors, bookmarks and a mix of reports.
func (s *Seeder) Run(c Counts) (*Result, error) {
	log.Printf("🌱 Seeding %d fans and %d posts...", c.Fans, c.Posts)
	f := s.factory
	res := &Result{}

	for _, st := range staff {
		p, err := f.CreateProfile(func(p *models.Profile) {
			p.Username = st.Username
			p.DisplayName = st.Display
			p.Role = st.Role
		})
		if err != nil {
			return nil, fmt.Errorf("create staff %s: %w", st.Username, err)
		}
		res.Staff = append(res.Staff, p)
	}

	for i := 0; i < c.Fans; i++ {
		p, err := f.CreateProfile()
		if err != nil {
			return nil, fmt.Errorf("create fan: %w", err)
		}
		res.Fans = append(res.Fans, p)
	}
	log.Printf("✓ %d profiles created", len(res.Staff)+len(res.Fans))
	if len(res.Fans) == 0 {
		return res, nil
	}

	counts := computeCounts(c.Posts, defaultDistribution)
	for i, cw := range defaultDistribution {
		for j := 0; j < counts[i]; j++ {
			author := res.Staff[(i+j)%len(res.Staff)]
			post, err := f.CreatePost(author, cw.Category)
			if err != nil {
				return nil, fmt.Errorf("create post: %w", err)
			}
			res.Posts = append(res.Posts, post)
		}
	}
	log.Printf("✓ %d posts created", len(res.Posts))

	for _, post := range res.Posts {
		if err := s.seedDiscussion(res, post, c); err != nil {
			return nil, err
		}
		for _, fan := range f.pick(res.Fans, 3) {
			if err := f.CreateBookmark(fan, post); err != nil {
				return nil, fmt.Errorf("create bookmark: %w", err)
			}
		}
	}
	log.Printf("✓ %d comments and %d notifications created", len(res.Comments), res.Notifications)

	if err := s.seedReports(res, c.Reports); err != nil {
		return nil, err
	}
	log.Printf("✓ %d reports created", res.Reports)

	log.Println("🎉 Database seeding completed successfully!")
	return res, nil
}

func (s *Seeder) seedDiscussion(res *Result, post *models.Post, c Counts) error {
	for i := 0; i < c.CommentsPerPost; i++ {
		root, err := s.comment(res, post, nil)
		if err != nil {
			return err
		}
		for j := 0; j < c.RepliesPerComment; j++ {
			if _, err := s.comment(res, post, root); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Seeder) comment(res *Result, post *models.Post, parent *models.Comment) (*models.Comment, error) {
	f := s.factory
	author := res.Fans[f.faker.Number(0, len(res.Fans)-1)]
	comment, err := f.CreateComment(author, post, parent)
	if err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}
	res.Comments = append(res.Comments, comment)

	for _, fan := range f.pick(res.Fans, 5) {
		if err := f.CreateCommentLike(fan, comment); err != nil {
			return nil, fmt.Errorf("create like: %w", err)
		}
	}
	if author.ID != post.AuthorID {
		if err := f.CreateCommentNotification(author, post, comment.CreatedAt); err != nil {
			return nil, fmt.Errorf("create notification: %w", err)
		}
		res.Notifications++
	}
	return comment, nil
}

// seedReports alternates comment and post reports. Every third report is
// already dismissed by the desk editor. A reporter holds at most one pending
// report per target; repeats are skipped.
func (s *Seeder) seedReports(res *Result, n int) error {
	f := s.factory
	reviewer := res.Staff[1]
	pending := make(map[string]bool)
	for i := 0; i < n; i++ {
		var closedBy *models.Profile
		if i%3 == 2 {
			closedBy = reviewer
		}
		reporter := res.Fans[i%len(res.Fans)]

		if i%2 == 0 && len(res.Comments) > 0 {
			target := res.Comments[(i/2)%len(res.Comments)]
			if closedBy == nil {
				key := "comment:" + target.ID + ":" + reporter.ID
				if pending[key] {
					continue
				}
				pending[key] = true
			}
			if _, err := f.CreateCommentReport(reporter, target, closedBy); err != nil {
				return fmt.Errorf("create comment report: %w", err)
			}
		} else if len(res.Posts) > 0 {
			target := res.Posts[(i/2)%len(res.Posts)]
			if closedBy == nil {
				key := "post:" + target.ID + ":" + reporter.ID
				if pending[key] {
					continue
				}
				pending[key] = true
			}
			if _, err := f.CreatePostReport(reporter, target, closedBy); err != nil {
				return fmt.Errorf("create post report: %w", err)
			}
		} else {
			continue
		}
		res.Reports++
	}
	return nil
}

// pick returns up to k distinct entries of from in random order.
func (f *Factory) pick(from []*models.Profile, k int) []*models.Profile {
	k = f.faker.Number(0, min(k, len(from)))
	idx := make([]int, len(from))
	for i := range idx {
		idx[i] = i
	}
	out := make([]*models.Profile, 0, k)
	for i := 0; i < k; i++ {
		j := f.faker.Number(i, len(idx)-1)
		idx[i], idx[j] = idx[j], idx[i]
		out = append(out, from[idx[i]])
	}
	return out
}

// computeCounts splits total across the weights by largest remainder. Ties
// go to the earlier category.
func computeCounts(total int, dist []categoryWeight) []int {
	counts := make([]int, len(dist))
	if total <= 0 || len(dist) == 0 {
		return counts
	}
	sum := 0
	for _, d := range dist {
		sum += d.Weight
	}
	if sum <= 0 {
		return counts
	}

	assigned := 0
	remainders := make([]int, len(dist))
	for i, d := range dist {
		counts[i] = total * d.Weight / sum
		remainders[i] = total * d.Weight % sum
		assigned += counts[i]
	}
	for ; assigned < total; assigned++ {
		best := 0
		for i := range remainders {
			if remainders[i] > remainders[best] {
				best = i
			}
		}
		counts[best]++
		remainders[best] = -1
	}
	return counts
}

// ClearAll removes every row the seeder can create, children first.
func (s *Seeder) ClearAll() error {
	log.Println("🗑️  Clearing existing data...")
	tx := s.db.Session(&gorm.Session{AllowGlobalUpdate: true})
	for _, m := range []any{
		&models.Notification{},
		&models.CommentReport{},
		&models.PostReport{},
		&models.CommentLike{},
		&models.Bookmark{},
	} {
		if err := tx.Delete(m).Error; err != nil {
			return err
		}
	}
	if err := tx.Where("parent_comment_id IS NOT NULL").Delete(&models.Comment{}).Error; err != nil {
		return err
	}
	for _, m := range []any{&models.Comment{}, &models.Post{}, &models.Profile{}} {
		if err := tx.Delete(m).Error; err != nil {
			return err
		}
	}
	return nil
}

// IsEmpty reports whether the store holds no posts yet.
func IsEmpty(db *gorm.DB) (bool, error) {
	var n int64
	if err := db.Model(&models.Post{}).Count(&n).Error; err != nil {
		return false, err
	}
	return n == 0, nil
}
