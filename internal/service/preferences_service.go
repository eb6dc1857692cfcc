package service

import (
	"context"
	"errors"
	"strings"

	"matchday/internal/cache"
	"matchday/internal/models"
)

// Preference keys and their allowed values.
const (
	PrefTheme         = "theme"
	PrefCookieConsent = "cookie_consent"

	DefaultTheme = "system"
)

var allowedPreferences = map[string]map[string]struct{}{
	PrefTheme:         {"light": {}, "dark": {}, "system": {}},
	PrefCookieConsent: {"accepted": {}, "rejected": {}, "essential": {}},
}

// PreferenceStore persists per-user preferences.
type PreferenceStore interface {
	Get(ctx context.Context, userID string) (map[string]string, error)
	Set(ctx context.Context, userID string, values map[string]string) error
}

// Preferences are the display settings kept per user.
type Preferences struct {
	Theme         string `json:"theme"`
	CookieConsent string `json:"cookie_consent,omitempty"`
}

type UpdatePreferencesInput struct {
	Theme         *string
	CookieConsent *string
}

type PreferencesService struct {
	store PreferenceStore
}

func NewPreferencesService(store PreferenceStore) *PreferencesService {
	return &PreferencesService{store: store}
}

func (s *PreferencesService) Get(ctx context.Context, userID string) (*Preferences, error) {
	values, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, preferencesError(err)
	}
	prefs := &Preferences{Theme: DefaultTheme}
	if v, ok := values[PrefTheme]; ok && allowed(PrefTheme, v) {
		prefs.Theme = v
	}
	if v, ok := values[PrefCookieConsent]; ok && allowed(PrefCookieConsent, v) {
		prefs.CookieConsent = v
	}
	return prefs, nil
}

// Update writes the given fields after validating them; omitted fields are kept.
func (s *PreferencesService) Update(ctx context.Context, userID string, in UpdatePreferencesInput) (*Preferences, error) {
	values := make(map[string]string, 2)
	for key, v := range map[string]*string{PrefTheme: in.Theme, PrefCookieConsent: in.CookieConsent} {
		if v == nil {
			continue
		}
		value := strings.ToLower(strings.TrimSpace(*v))
		if !allowed(key, value) {
			return nil, models.NewValidationError("invalid value for " + key)
		}
		values[key] = value
	}

	if err := s.store.Set(ctx, userID, values); err != nil {
		return nil, preferencesError(err)
	}
	return s.Get(ctx, userID)
}

func allowed(key, value string) bool {
	_, ok := allowedPreferences[key][value]
	return ok
}

func preferencesError(err error) error {
	if errors.Is(err, cache.ErrUnavailable) {
		return models.NewUnavailableError("Preferences are unavailable", err)
	}
	return err
}
