// Command main runs the database seeder for Matchday.
package main

import (
	"context"
	"flag"
	"log"

	"matchday/internal/config"
	"matchday/internal/database"
	"matchday/internal/seed"
)

func main() {
	counts := seed.DefaultCounts
	flag.IntVar(&counts.Fans, "fans", counts.Fans, "Number of fan profiles to create")
	flag.IntVar(&counts.Posts, "posts", counts.Posts, "Number of articles to create")
	flag.IntVar(&counts.CommentsPerPost, "comments", counts.CommentsPerPost, "Root comments per article")
	flag.IntVar(&counts.RepliesPerComment, "replies", counts.RepliesPerComment, "Replies per root comment")
	flag.IntVar(&counts.Reports, "reports", counts.Reports, "Number of moderation reports")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	dryRun := flag.Bool("dry-run", false, "Build the data set without writing it")
	maxDays := flag.Int("days", 30, "Spread articles over the last N days")
	rngSeed := flag.Int64("seed", 0, "Random seed for reproducible data (0 = time based)")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Println("==================")
	log.Printf("Target: %d fans, %d posts, clean=%v, dry-run=%v\n", counts.Fans, counts.Posts, *shouldClean, *dryRun)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.ApplySchema(context.Background(), db, cfg); err != nil {
		log.Fatalf("Failed to apply schema: %v", err)
	}

	s := seed.NewSeeder(db, seed.Options{DryRun: *dryRun, MaxDays: *maxDays, Seed: *rngSeed})

	if *shouldClean && !*dryRun {
		if err := s.ClearAll(); err != nil {
			log.Fatalf("❌ Cleanup failed: %v", err)
		}
	}

	res, err := s.Run(counts)
	if err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Printf("✨ All done! %d profiles, %d posts, %d comments, %d reports.",
		len(res.Staff)+len(res.Fans), len(res.Posts), len(res.Comments), res.Reports)
	log.Println("🔑 Staff accounts: chief_editor, desk_editor, match_reporter")
}
