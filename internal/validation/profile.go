package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Profile field limits.
const (
	MaxDisplayName = 50
	MaxBio         = 280
	MaxSocial      = 30
)

var usernameRegex = regexp.MustCompile(`^[a-z0-9_]{3,24}$`)

var reservedUsernames = map[string]struct{}{
	"admin":         {},
	"administrator": {},
	"api":           {},
	"auth":          {},
	"editor":        {},
	"me":            {},
	"metrics":       {},
	"moderation":    {},
	"notifications": {},
	"posts":         {},
	"comments":      {},
	"search":        {},
	"settings":      {},
	"support":       {},
	"ws":            {},
}

// ValidateUsername checks the username format and reserved names.
func ValidateUsername(username string) error {
	if !usernameRegex.MatchString(username) {
		return fmt.Errorf("username must be 3-24 characters and contain only lowercase letters, numbers, and underscores")
	}
	if _, exists := reservedUsernames[username]; exists {
		return fmt.Errorf("username is reserved")
	}
	return nil
}

// ProfileFields is the editable part of a profile.
type ProfileFields struct {
	Username    string
	DisplayName string
	Bio         string
	Website     string
	Twitter     string
	Instagram   string
}

// Normalize trims every field, lowercases the username and strips a leading @ from handles.
func (f ProfileFields) Normalize() ProfileFields {
	return ProfileFields{
		Username:    strings.ToLower(strings.TrimSpace(f.Username)),
		DisplayName: strings.TrimSpace(f.DisplayName),
		Bio:         strings.TrimSpace(f.Bio),
		Website:     strings.TrimSpace(f.Website),
		Twitter:     strings.TrimPrefix(strings.TrimSpace(f.Twitter), "@"),
		Instagram:   strings.TrimPrefix(strings.TrimSpace(f.Instagram), "@"),
	}
}

// ValidateProfile checks normalized profile fields. Empty optional fields are allowed.
func ValidateProfile(f ProfileFields) error {
	if err := ValidateUsername(f.Username); err != nil {
		return err
	}
	if utf8.RuneCountInString(f.DisplayName) > MaxDisplayName {
		return fmt.Errorf("display name must not exceed %d characters", MaxDisplayName)
	}
	if utf8.RuneCountInString(f.Bio) > MaxBio {
		return fmt.Errorf("bio must not exceed %d characters", MaxBio)
	}
	if f.Website != "" {
		if err := ValidateWebsite(f.Website); err != nil {
			return err
		}
	}
	if utf8.RuneCountInString(f.Twitter) > MaxSocial {
		return fmt.Errorf("twitter handle must not exceed %d characters", MaxSocial)
	}
	if utf8.RuneCountInString(f.Instagram) > MaxSocial {
		return fmt.Errorf("instagram handle must not exceed %d characters", MaxSocial)
	}
	return nil
}

// ValidateWebsite requires an absolute http or https URL.
func ValidateWebsite(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("website must be a valid http(s) URL")
	}
	return nil
}
