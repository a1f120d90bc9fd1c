// Command seed populates the forum database with demo data.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"agora/internal/bootstrap"
	"agora/internal/config"
	"agora/internal/middleware"
	"agora/internal/seed"
)

func main() {
	defaults := seed.DefaultOptions()
	numUsers := flag.Int("users", defaults.NumUsers, "Number of author profiles to create")
	numTopics := flag.Int("topics", defaults.NumTopics, "Number of topics to create")
	maxReplies := flag.Int("replies", defaults.MaxRepliesPerTopic, "Maximum replies per topic")
	votePercent := flag.Int("vote-percent", defaults.VotePercent, "Chance (0-100) that a user votes on a post")
	shouldClean := flag.Bool("clean", true, "Clean forum tables before seeding")
	randSeed := flag.Int64("seed", 0, "Random seed for reproducible data (0 = time based)")
	flag.Parse()

	log.Println("🌱 Forum Seeder")
	log.Printf("Target: %d users, %d topics, up to %d replies each, clean=%v\n", *numUsers, *numTopics, *maxReplies, *shouldClean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("❌ Refusing to seed a production database")
	}
	logger := middleware.NewLogger(os.Stderr, cfg.Env, cfg.LogLevel)

	ctx := context.Background()
	db, _, err := bootstrap.InitRuntime(ctx, cfg, logger, bootstrap.Options{ApplySchema: true, SkipRedis: true})
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	res, err := seed.Seed(ctx, db, seed.Options{
		NumUsers:           *numUsers,
		NumTopics:          *numTopics,
		MaxRepliesPerTopic: *maxReplies,
		VotePercent:        *votePercent,
		ShouldClean:        *shouldClean,
		RandSeed:           *randSeed,
		Logger:             logger,
	})
	if err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Printf("✨ All done! %d profiles, %d topics, %d replies, %d votes.", res.Profiles, res.Topics, res.Replies, res.Votes)
}
