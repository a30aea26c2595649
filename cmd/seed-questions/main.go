package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sinaptika/tryout-backend/internal/config"
	"github.com/sinaptika/tryout-backend/internal/database"
	"github.com/sinaptika/tryout-backend/internal/logger"
	"github.com/sinaptika/tryout-backend/internal/model"
	"github.com/sinaptika/tryout-backend/internal/repository"
)

// seedQuestion is one entry in the question bank JSON file.
type seedQuestion struct {
	Part          int               `json:"part"`
	Number        int               `json:"number"`
	PromptText    string            `json:"prompt_text"`
	PromptImage   *string           `json:"prompt_image,omitempty"`
	Choices       map[string]string `json:"choices"`
	CorrectChoice string            `json:"correct_choice"`
}

func main() {
	var file string
	flag.StringVar(&file, "file", "questions.json", "Path to question bank JSON file")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	questionRepo := repository.NewQuestionRepository(pool)

	data, err := os.ReadFile(file)
	if err != nil {
		log.Fatal().Err(err).Str("file", file).Msg("Failed to read question bank")
	}

	var seeds []seedQuestion
	if err := json.Unmarshal(data, &seeds); err != nil {
		log.Fatal().Err(err).Msg("Failed to parse question bank")
	}

	fmt.Printf("=== Seeding %d Questions ===\n", len(seeds))

	created := 0
	for _, s := range seeds {
		if s.Part < model.FirstPart || s.Part > model.LastPart {
			log.Warn().Int("part", s.Part).Int("number", s.Number).Msg("Skipping question with invalid part")
			continue
		}
		if !model.IsValidChoice(s.CorrectChoice) {
			log.Warn().Int("part", s.Part).Int("number", s.Number).Msg("Skipping question with invalid correct choice")
			continue
		}

		q := &model.Question{
			Part:          s.Part,
			Number:        s.Number,
			PromptText:    s.PromptText,
			PromptImage:   s.PromptImage,
			Choices:       s.Choices,
			CorrectChoice: s.CorrectChoice,
		}
		if err := questionRepo.Create(ctx, q); err != nil {
			log.Fatal().Err(err).Int("part", s.Part).Int("number", s.Number).Msg("Failed to insert question")
		}
		created++
	}

	fmt.Printf("Done. Inserted %d questions.\n", created)
}
