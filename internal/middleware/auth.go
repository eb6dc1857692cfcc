// Package middleware provides authentication, logging, tracing and rate limiting middleware.
package middleware

import (
	"context"
	"errors"
	"strings"

	"matchday/internal/config"
	"matchday/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var cfg *config.Config

// InitMiddleware initializes authentication middleware with the given config.
func InitMiddleware(c *config.Config) {
	cfg = c
}

var (
	errMissingToken   = errors.New("Authorization header required")
	errInvalidFormat  = errors.New("Invalid authorization header format")
	errInvalidToken   = errors.New("Invalid or expired token")
	errInvalidSubject = errors.New("Invalid user ID in token")
)

// bearerToken extracts the token from "Bearer <token>". An empty header yields errMissingToken.
func bearerToken(header string) (string, error) {
	if header == "" {
		return "", errMissingToken
	}
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", errInvalidFormat
	}
	return parts[1], nil
}

// verifyToken validates an HS256 session token issued by the hosted auth
// service and returns its subject, which must be a profile UUID.
func verifyToken(tokenString string) (string, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if cfg.JWTAudience != "" {
		opts = append(opts, jwt.WithAudience(cfg.JWTAudience))
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid signing method")
		}
		return []byte(cfg.JWTSecret), nil
	}, opts...)
	if err != nil || !token.Valid {
		return "", errInvalidToken
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", errInvalidSubject
	}
	if _, err := uuid.Parse(sub); err != nil {
		return "", errInvalidSubject
	}
	return sub, nil
}

func unauthorized(c *fiber.Ctx, err error) error {
	return models.RespondWithError(c, fiber.StatusUnauthorized, models.NewUnauthorizedError(err.Error()))
}

// AuthRequired is a middleware that enforces authentication for protected routes.
// It stores the subject in Locals("userID") and the raw token in Locals("accessToken").
func AuthRequired(c *fiber.Ctx) error {
	tokenString, err := bearerToken(c.Get("Authorization"))
	if err != nil {
		return unauthorized(c, err)
	}

	userID, err := verifyToken(tokenString)
	if err != nil {
		return unauthorized(c, err)
	}

	c.Locals("userID", userID)
	c.Locals("accessToken", tokenString)
	// Sync to UserContext for logging and downstream services
	c.SetUserContext(context.WithValue(c.UserContext(), UserIDKey, userID))
	return c.Next()
}

// OptionalAuth identifies the viewer when a token is sent and lets anonymous
// requests through. A token that is present but invalid is still rejected.
func OptionalAuth(c *fiber.Ctx) error {
	header := c.Get("Authorization")
	if header == "" {
		return c.Next()
	}
	return AuthRequired(c)
}

// WebSocketAuthRequired is middleware that validates JWT tokens from query parameters for WebSocket connections.
func WebSocketAuthRequired(c *fiber.Ctx) error {
	token := c.Query("token")
	if token == "" {
		var err error
		token, err = bearerToken(c.Get("Authorization"))
		if err != nil {
			return unauthorized(c, err)
		}
	}

	userID, err := verifyToken(token)
	if err != nil {
		return unauthorized(c, err)
	}

	c.Locals("userID", userID)
	return c.Next()
}

// UserID returns the authenticated viewer, or "" for anonymous requests.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals("userID").(string)
	return id
}
