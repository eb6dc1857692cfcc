package repository

import (
	"context"
	"fmt"
	"strings"

	"matchday/internal/models"

	"gorm.io/gorm"
)

// ProfileRepository defines persistence operations for profiles.
type ProfileRepository interface {
	GetByID(ctx context.Context, id string) (*models.Profile, error)
	GetByUsername(ctx context.Context, username string) (*models.Profile, error)
	GetByIDs(ctx context.Context, ids []string) (map[string]*models.Profile, error)
	GetByUsernames(ctx context.Context, usernames []string) ([]*models.Profile, error)
	UsernameTaken(ctx context.Context, username, excludeID string) (bool, error)
	Create(ctx context.Context, profile *models.Profile) error
	Update(ctx context.Context, profile *models.Profile) error
}

type profileRepository struct {
	db *gorm.DB
}

// NewProfileRepository returns a new ProfileRepository implementation.
func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	var profile models.Profile
	if err := readDB(r.db).WithContext(ctx).Where("id = ?", id).First(&profile).Error; err != nil {
		return nil, notFound(err, "Profile", id)
	}
	return &profile, nil
}

func (r *profileRepository) GetByUsername(ctx context.Context, username string) (*models.Profile, error) {
	var profile models.Profile
	name := strings.ToLower(strings.TrimSpace(username))
	if err := readDB(r.db).WithContext(ctx).Where("username = ?", name).First(&profile).Error; err != nil {
		return nil, notFound(err, "Profile", username)
	}
	return &profile, nil
}

func (r *profileRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*models.Profile, error) {
	out := make(map[string]*models.Profile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var profiles []*models.Profile
	if err := readDB(r.db).WithContext(ctx).Where("id IN ?", ids).Find(&profiles).Error; err != nil {
		return nil, fmt.Errorf("load profiles: %w", err)
	}
	for _, p := range profiles {
		out[p.ID] = p
	}
	return out, nil
}

func (r *profileRepository) GetByUsernames(ctx context.Context, usernames []string) ([]*models.Profile, error) {
	if len(usernames) == 0 {
		return nil, nil
	}
	var profiles []*models.Profile
	err := readDB(r.db).WithContext(ctx).
		Where("username IN ?", usernames).
		Order("username ASC").
		Find(&profiles).Error
	return profiles, err
}

func (r *profileRepository) UsernameTaken(ctx context.Context, username, excludeID string) (bool, error) {
	var count int64
	q := r.db.WithContext(ctx).Model(&models.Profile{}).Where("username = ?", username)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *profileRepository) Create(ctx context.Context, profile *models.Profile) error {
	return r.db.WithContext(ctx).Create(profile).Error
}

func (r *profileRepository) Update(ctx context.Context, profile *models.Profile) error {
	return r.db.WithContext(ctx).
		Model(&models.Profile{ID: profile.ID}).
		Select("username", "display_name", "avatar_url", "bio", "website", "twitter", "instagram", "role", "updated_at").
		Updates(profile).Error
}
