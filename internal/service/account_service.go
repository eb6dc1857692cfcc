package service

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"matchday/internal/edge"
	"matchday/internal/models"
	"matchday/internal/validation"
)

// AccountEdge is the hosted side of account management.
type AccountEdge interface {
	ProvisionAccount(ctx context.Context, userID, username string) error
	UpdatePassword(ctx context.Context, accessToken, password string) error
}

// AccountService handles sign-up provisioning and security settings. Passwords
// live with the hosted auth service; nothing here stores them.
type AccountService struct {
	edge     AccountEdge
	profiles *ProfileService
}

func NewAccountService(edge AccountEdge, profiles *ProfileService) *AccountService {
	return &AccountService{edge: edge, profiles: profiles}
}

// ProvisionAccount asks the hosted function to create the profile row for a
// new user, then returns the stored profile.
func (s *AccountService) ProvisionAccount(ctx context.Context, userID, username string) (*models.Profile, error) {
	if err := validation.ValidateID("user_id", userID); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	username = strings.ToLower(strings.TrimSpace(username))
	if err := validation.ValidateUsername(username); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	taken, err := s.profiles.repo.UsernameTaken(ctx, username, userID)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, models.NewConflictError("Username is already taken")
	}

	if err := s.edge.ProvisionAccount(ctx, userID, username); err != nil {
		return nil, edgeError("Could not provision account", err)
	}
	return s.profiles.GetProfile(ctx, userID)
}

// ChangePassword validates locally and only then forwards to the auth service.
func (s *AccountService) ChangePassword(ctx context.Context, accessToken, password, confirm string) error {
	if strings.TrimSpace(accessToken) == "" {
		return models.NewUnauthorizedError("Session token required")
	}
	if err := validation.ValidatePasswordChange(password, confirm); err != nil {
		return models.NewValidationError(err.Error())
	}
	if err := s.edge.UpdatePassword(ctx, accessToken, password); err != nil {
		return edgeError("Could not change password", err)
	}
	return nil
}

// edgeError maps a hosted service failure onto an API error.
func edgeError(message string, err error) error {
	var edgeErr *edge.Error
	if errors.As(err, &edgeErr) {
		switch {
		case edgeErr.Status == http.StatusUnauthorized:
			return models.NewUnauthorizedError("Session expired")
		case edgeErr.Status == http.StatusConflict:
			return models.NewConflictError(message)
		case edgeErr.Status >= 400 && edgeErr.Status < 500:
			if edgeErr.Message != "" {
				return models.NewValidationError(edgeErr.Message)
			}
			return models.NewValidationError(message)
		}
	}
	return models.NewUnavailableError(message, err)
}
