// Command main seeds the Quad database with built-in forums and demo data.
package main

import (
	"context"
	"flag"
	"log"

	"quad/internal/config"
	"quad/internal/database"
	"quad/internal/seed"

	"gorm.io/gorm"
)

func main() {
	numUsers := flag.Int("users", 30, "Number of demo users to create (0 seeds forums only)")
	postsPerForum := flag.Int("posts", 3, "Demo posts per built-in forum")
	dryRun := flag.Bool("dry-run", false, "Generate data without writing to the database")
	fast := flag.Bool("fast", false, "Skip bcrypt for demo passwords (local databases only)")
	flag.Parse()

	log.Println("Quad database seeder")
	log.Printf("Target: %d users, %d posts per forum, dry-run=%v", *numUsers, *postsPerForum, *dryRun)

	var db *gorm.DB
	if !*dryRun {
		cfg, err := config.LoadConfig()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
		if cfg.IsProduction() {
			log.Fatal("Refusing to seed demo data into a production database")
		}
		db, err = database.Connect(cfg)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
	}

	s := seed.NewSeeder(db, seed.Options{
		NumUsers:      *numUsers,
		PostsPerForum: *postsPerForum,
		DryRun:        *dryRun,
		SkipBcrypt:    *fast,
	})
	sum, err := s.Run(context.Background())
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Seeded %d forums, %d users, %d connections, %d posts, %d comments, %d books, %d resources",
		sum.Forums, sum.Users, sum.Connections, sum.Posts, sum.Comments, sum.Books, sum.Resources)
	if sum.Users > 0 && !*fast {
		log.Printf("All demo users have the password: %s", seed.DemoPassword)
	}
}
