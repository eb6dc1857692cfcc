package service

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"
	"syscall"
	"time"

	"matchday/internal/models"
	"matchday/internal/repository"
	"matchday/internal/validation"

	"github.com/cenkalti/backoff/v5"
)

// Profile reads are retried at most this many times after the first attempt.
const profileMaxRetries = 3

type ProfileService struct {
	repo    repository.ProfileRepository
	backoff func() backoff.BackOff
}

// UpdateProfileInput is a partial update. Nil fields keep their stored value.
type UpdateProfileInput struct {
	UserID      string
	Username    *string
	DisplayName *string
	AvatarURL   *string
	Bio         *string
	Website     *string
	Twitter     *string
	Instagram   *string
}

func NewProfileService(repo repository.ProfileRepository) *ProfileService {
	return &ProfileService{repo: repo, backoff: profileBackOff}
}

// profileBackOff waits 1s, 2s and 4s between attempts.
func profileBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = 4 * time.Second
	return b
}

// WithBackOff replaces the retry schedule. Tests use it to avoid sleeping.
func (s *ProfileService) WithBackOff(fn func() backoff.BackOff) *ProfileService {
	s.backoff = fn
	return s
}

// GetProfile loads a profile, retrying transient store failures.
func (s *ProfileService) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	if err := validation.ValidateID("id", id); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	attempt := 0
	return backoff.Retry(ctx, func() (*models.Profile, error) {
		attempt++
		p, err := s.repo.GetByID(ctx, id)
		if err == nil {
			return p, nil
		}
		if !isTransient(err) {
			return nil, backoff.Permanent(err)
		}
		slog.WarnContext(ctx, "transient profile read failure", "user_id", id, "attempt", attempt, "error", err)
		return nil, err
	},
		backoff.WithBackOff(s.backoff()),
		backoff.WithMaxTries(profileMaxRetries+1),
	)
}

// isTransient reports whether err is worth retrying: dropped or refused
// connections, timeouts and serialization failures.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) && appErr.Err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"timeout",
		"could not serialize",
		"sqlstate 40001",
		"sqlstate 40p01",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// UpdateProfile validates the merged profile before anything is written.
func (s *ProfileService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*models.Profile, error) {
	profile, err := s.GetProfile(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	fields := validation.ProfileFields{
		Username:    pick(in.Username, profile.Username),
		DisplayName: pick(in.DisplayName, profile.DisplayName),
		Bio:         pick(in.Bio, profile.Bio),
		Website:     pick(in.Website, profile.Website),
		Twitter:     pick(in.Twitter, profile.Twitter),
		Instagram:   pick(in.Instagram, profile.Instagram),
	}.Normalize()
	if err := validation.ValidateProfile(fields); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	if fields.Username != profile.Username {
		taken, err := s.repo.UsernameTaken(ctx, fields.Username, profile.ID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, models.NewConflictError("Username is already taken")
		}
	}

	profile.Username = fields.Username
	profile.DisplayName = fields.DisplayName
	profile.Bio = fields.Bio
	profile.Website = fields.Website
	profile.Twitter = fields.Twitter
	profile.Instagram = fields.Instagram
	if in.AvatarURL != nil {
		profile.AvatarURL = strings.TrimSpace(*in.AvatarURL)
	}

	if err := s.repo.Update(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// SetRole changes the editorial role of the profile with the given username.
func (s *ProfileService) SetRole(ctx context.Context, username string, role models.Role) (*models.Profile, error) {
	profile, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	profile.Role = role
	if err := s.repo.Update(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

func pick(v *string, fallback string) string {
	if v == nil {
		return fallback
	}
	return *v
}
