package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/haulpass/cdl-backend/internal/config"
	"github.com/haulpass/cdl-backend/internal/database"
	"github.com/haulpass/cdl-backend/internal/logger"
	"github.com/haulpass/cdl-backend/internal/model"
	"github.com/haulpass/cdl-backend/internal/repository"
)

func main() {
	var catalogPath string
	flag.StringVar(&catalogPath, "catalog", "catalog.json", "Path to the question catalog JSON file")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	raw, err := os.ReadFile(catalogPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", catalogPath).Msg("Failed to read catalog file")
	}

	var questions []model.Question
	if err := json.Unmarshal(raw, &questions); err != nil {
		log.Fatal().Err(err).Msg("Failed to parse catalog file")
	}
	if len(questions) == 0 {
		log.Fatal().Msg("Catalog file contains no questions")
	}

	// Sanity-check the catalog before touching the database.
	seen := make(map[int]bool, len(questions))
	for _, q := range questions {
		if seen[q.ID] {
			log.Fatal().Int("id", q.ID).Msg("Duplicate question id in catalog")
		}
		seen[q.ID] = true
		if len(q.Options) < 2 || q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
			log.Fatal().Int("id", q.ID).Msg("Question has invalid options or correct index")
		}
		if q.Category == "" || len(q.LicenseClasses) == 0 {
			log.Fatal().Int("id", q.ID).Msg("Question missing category or license classes")
		}
	}

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	questionRepo := repository.NewQuestionRepository(pool)
	if err := questionRepo.ReplaceAll(ctx, questions); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed questions")
	}

	fmt.Printf("Seeded %d questions from %s\n", len(questions), catalogPath)
}
