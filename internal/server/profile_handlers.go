package server

import (
	"matchday/internal/models"
	"matchday/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetProfile handles GET /api/profiles/:id
func (s *Server) GetProfile(c *fiber.Ctx) error {
	id, err := parseID(c, "id", "profileId")
	if err != nil {
		return nil
	}

	profile, err := s.profileService.GetProfile(c.UserContext(), id)
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(profile)
}

// GetMyProfile handles GET /api/me
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	profile, err := s.profileService.GetProfile(c.UserContext(), viewerID(c))
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(profile)
}

// UpdateMyProfile handles PUT /api/me. Omitted fields keep their value.
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	var req struct {
		Username    *string `json:"username"`
		DisplayName *string `json:"display_name"`
		AvatarURL   *string `json:"avatar_url"`
		Bio         *string `json:"bio"`
		Website     *string `json:"website"`
		Twitter     *string `json:"twitter"`
		Instagram   *string `json:"instagram"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	profile, err := s.profileService.UpdateProfile(c.UserContext(), service.UpdateProfileInput{
		UserID:      viewerID(c),
		Username:    req.Username,
		DisplayName: req.DisplayName,
		AvatarURL:   req.AvatarURL,
		Bio:         req.Bio,
		Website:     req.Website,
		Twitter:     req.Twitter,
		Instagram:   req.Instagram,
	})
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(profile)
}

// ProvisionAccount handles POST /api/me/provision, called once after sign-up.
func (s *Server) ProvisionAccount(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	profile, err := s.accountService.ProvisionAccount(c.UserContext(), viewerID(c), req.Username)
	if err != nil {
		return models.Respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(profile)
}

// ChangePassword handles POST /api/me/password
func (s *Server) ChangePassword(c *fiber.Ctx) error {
	var req struct {
		Password        string `json:"password"`
		ConfirmPassword string `json:"confirm_password"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	if err := s.accountService.ChangePassword(c.UserContext(), accessToken(c), req.Password, req.ConfirmPassword); err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(fiber.Map{"message": "Password updated"})
}

// GetPreferences handles GET /api/me/preferences
func (s *Server) GetPreferences(c *fiber.Ctx) error {
	prefs, err := s.preferencesService.Get(c.UserContext(), viewerID(c))
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(prefs)
}

// UpdatePreferences handles PUT /api/me/preferences
func (s *Server) UpdatePreferences(c *fiber.Ctx) error {
	var req struct {
		Theme         *string `json:"theme"`
		CookieConsent *string `json:"cookie_consent"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	prefs, err := s.preferencesService.Update(c.UserContext(), viewerID(c), service.UpdatePreferencesInput{
		Theme:         req.Theme,
		CookieConsent: req.CookieConsent,
	})
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(prefs)
}
