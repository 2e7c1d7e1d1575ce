package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/fingrow/fingrow/internal/config"
	"github.com/fingrow/fingrow/internal/logger"
	mongostore "github.com/fingrow/fingrow/internal/store/mongo"
)

// seedFile is the on-disk shape: lessons and challenges in a single document.
type seedFile struct {
	Lessons    []mongostore.Lesson    `json:"lessons"`
	Challenges []mongostore.Challenge `json:"challenges"`
}

func main() {
	file := flag.String("file", "seed.json", "Path to the seed JSON file")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)

	data, err := os.ReadFile(*file)
	if err != nil {
		log.Fatal().Err(err).Str("file", *file).Msg("Failed to read seed file")
	}

	var seed seedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		log.Fatal().Err(err).Msg("Failed to parse seed file")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, closeDB, err := mongostore.Connect(ctx, cfg.MongoURI)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to MongoDB")
	}
	defer closeDB()

	lessonRepo := mongostore.NewLessonRepository(db)
	challengeRepo := mongostore.NewChallengeRepository(db)

	// Upserts key on title, so re-running the seed never duplicates content.
	for i := range seed.Lessons {
		lesson := &seed.Lessons[i]
		if lesson.Title == "" {
			log.Fatal().Int("index", i).Msg("Lesson is missing a title")
		}
		if lesson.ID == "" {
			lesson.ID = uuid.New().String()
		}
		if err := lessonRepo.UpsertByTitle(ctx, lesson); err != nil {
			log.Fatal().Err(err).Str("title", lesson.Title).Msg("Failed to seed lesson")
		}
		log.Info().Str("title", lesson.Title).Msg("Seeded lesson")
	}

	for i := range seed.Challenges {
		challenge := &seed.Challenges[i]
		if challenge.Title == "" {
			log.Fatal().Int("index", i).Msg("Challenge is missing a title")
		}
		if challenge.ID == "" {
			challenge.ID = uuid.New().String()
		}
		if err := challengeRepo.UpsertByTitle(ctx, challenge); err != nil {
			log.Fatal().Err(err).Str("title", challenge.Title).Msg("Failed to seed challenge")
		}
		log.Info().Str("title", challenge.Title).Msg("Seeded challenge")
	}

	fmt.Printf("Seeded %d lessons and %d challenges.\n", len(seed.Lessons), len(seed.Challenges))
}
