package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role is a profile's editorial role. Roles are ordered; a higher rank
// includes everything a lower rank can see.
type Role string

const (
	RoleRegisteredUser Role = "registered_user"
	RoleEditor         Role = "editor"
	RoleJournalist     Role = "journalist"
	RoleAdministrator  Role = "administrator"
)

var roleRank = map[Role]int{
	RoleRegisteredUser: 0,
	RoleEditor:         1,
	RoleJournalist:     2,
	RoleAdministrator:  3,
}

// ParseRole normalizes s into a known role. Unknown values map to RoleRegisteredUser.
func ParseRole(s string) Role {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := roleRank[r]; ok {
		return r
	}
	return RoleRegisteredUser
}

// Rank returns the position of r in the role order.
func (r Role) Rank() int {
	return roleRank[ParseRole(string(r))]
}

// AtLeast reports whether r ranks at or above other.
func (r Role) AtLeast(other Role) bool {
	return r.Rank() >= other.Rank()
}

// CanModerate reports whether the role may review reports and remove other people's content.
func (r Role) CanModerate() bool {
	return r.AtLeast(RoleEditor)
}

// Badge is the short label rendered next to a profile name. Registered users have none.
func (r Role) Badge() string {
	switch ParseRole(string(r)) {
	case RoleEditor:
		return "Editor"
	case RoleJournalist:
		return "Journalist"
	case RoleAdministrator:
		return "Admin"
	default:
		return ""
	}
}

// Profile is the user-facing identity of an account.
type Profile struct {
	ID          string    `gorm:"primaryKey;type:uuid" json:"id"`
	Username    string    `gorm:"size:24;uniqueIndex;not null" json:"username"`
	DisplayName string    `gorm:"size:50" json:"display_name"`
	AvatarURL   string    `json:"avatar_url"`
	Bio         string    `gorm:"size:280" json:"bio"`
	Website     string    `json:"website"`
	Twitter     string    `gorm:"size:30" json:"twitter"`
	Instagram   string    `gorm:"size:30" json:"instagram"`
	Role        Role      `gorm:"size:20;not null;default:registered_user" json:"role"`
	IsBanned    bool      `gorm:"not null;default:false" json:"is_banned"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// BeforeCreate assigns a UUID when the caller did not provide one.
func (p *Profile) BeforeCreate(_ *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Role == "" {
		p.Role = RoleRegisteredUser
	}
	return nil
}

// Name returns the display name, falling back to the username.
func (p *Profile) Name() string {
	if p == nil {
		return ""
	}
	if strings.TrimSpace(p.DisplayName) != "" {
		return p.DisplayName
	}
	return p.Username
}

// AuthorInfo is the compact author block attached to comments and notifications.
type AuthorInfo struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
	Badge       string `json:"badge,omitempty"`
}

// UnknownUser is the placeholder shown when a profile row is missing.
const UnknownUser = "unknown user"

// AuthorInfoFor builds the author block, tolerating a missing profile.
func AuthorInfoFor(id string, p *Profile) AuthorInfo {
	if p == nil {
		return AuthorInfo{ID: id, Username: UnknownUser, DisplayName: UnknownUser}
	}
	return AuthorInfo{
		ID:          p.ID,
		Username:    p.Username,
		DisplayName: p.Name(),
		AvatarURL:   p.AvatarURL,
		Badge:       p.Role.Badge(),
	}
}
