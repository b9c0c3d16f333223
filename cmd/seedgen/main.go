package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/entheodex/entheodex-backend/internal/clients/cache"
	"github.com/entheodex/entheodex-backend/internal/clients/wikidata"
	"github.com/entheodex/entheodex-backend/internal/pkg/logger"
	"github.com/entheodex/entheodex-backend/internal/services"
	"github.com/entheodex/entheodex-backend/internal/types"
)

// seedgen paginates the external knowledge graph and writes a deduplicated
// candidate seed file for later feeding into preview, dry-run or commit.
func main() {
	limit := flag.Int("limit", 200, "number of candidates to collect")
	out := flag.String("out", "seed.yaml", "output file path")
	flag.Parse()

	log, err := logger.New(os.Getenv("LOG_MODE"))
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	lookupCache, err := cache.NewRedisCache(log)
	if err != nil {
		log.Warn("Redis cache init failed, continuing without lookup cache", "error", err)
		lookupCache = nil
	}

	source := wikidata.NewClient(log, lookupCache)
	seeder := services.NewSeederService(log, source, services.DefaultSeederConfig())

	candidates, err := seeder.Generate(context.Background(), *limit)
	if err != nil {
		log.Error("Seed generation failed", "error", err)
		os.Exit(1)
	}

	raw, err := yaml.Marshal(struct {
		Candidates []types.Candidate `yaml:"candidates"`
	}{Candidates: candidates})
	if err != nil {
		log.Error("Seed file encode failed", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, raw, 0o644); err != nil {
		log.Error("Seed file write failed", "path", *out, "error", err)
		os.Exit(1)
	}
	log.Info("Seed file written", "path", *out, "candidates", len(candidates))
}
