// Package main provides newsroom role management for Matchday.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"matchday/internal/config"
	"matchday/internal/database"
	"matchday/internal/models"
	"matchday/internal/repository"
	"matchday/internal/service"

	"gorm.io/gorm"
)

func usage() {
	fmt.Println("Usage:")
	fmt.Println("  go run ./cmd/admin/main.go set-role <username> <role>  - Assign registered_user|editor|journalist|administrator")
	fmt.Println("  go run ./cmd/admin/main.go list-staff                  - List every profile above registered_user")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	switch os.Args[1] {
	case "set-role":
		if len(os.Args) < 4 {
			usage()
			os.Exit(1)
		}
		setRole(db, os.Args[2], os.Args[3])

	case "list-staff":
		listStaff(db)

	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(1)
	}
}

func setRole(db *gorm.DB, username, rawRole string) {
	role := models.ParseRole(rawRole)
	if string(role) != strings.ToLower(strings.TrimSpace(rawRole)) {
		fmt.Printf("Unknown role %q\n", rawRole)
		os.Exit(1)
	}

	profiles := service.NewProfileService(repository.NewProfileRepository(db))
	profile, err := profiles.SetRole(context.Background(), strings.ToLower(username), role)
	if err != nil {
		if models.HasCode(err, models.CodeNotFound) {
			fmt.Printf("Profile %s not found\n", username)
			os.Exit(1)
		}
		log.Fatalf("Failed to update role: %v", err)
	}

	fmt.Printf("✅ %s is now %s\n", profile.Username, profile.Role)
}

func listStaff(db *gorm.DB) {
	var staff []models.Profile
	err := db.Where("role <> ?", models.RoleRegisteredUser).
		Order("username ASC").
		Find(&staff).Error
	if err != nil {
		log.Fatalf("Failed to fetch staff: %v", err)
	}

	if len(staff) == 0 {
		fmt.Println("No staff profiles found")
		return
	}

	fmt.Println("\n📋 Newsroom staff:")
	fmt.Println("─────────────────────────────────────")
	for _, p := range staff {
		fmt.Printf("%-24s %-15s %s\n", p.Username, p.Role, p.ID)
	}
	fmt.Println("─────────────────────────────────────")
}
