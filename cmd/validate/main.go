package main

import (
	"context"
	"fmt"
	"os"

	"github.com/entheodex/entheodex-backend/internal/db"
	"github.com/entheodex/entheodex-backend/internal/pkg/logger"
	"github.com/entheodex/entheodex-backend/internal/repos"
	"github.com/entheodex/entheodex-backend/internal/services"
)

// validate is the pre-publish gate: it checks catalog invariants and exits
// non-zero when any violation is found, listing every violation.
func main() {
	log, err := logger.New(os.Getenv("LOG_MODE"))
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	database, err := db.New(log)
	if err != nil {
		log.Error("Database init failed", "error", err)
		os.Exit(1)
	}

	catalog := repos.NewCatalogRepo(database.DB(), log)
	validator := services.NewValidatorService(log, catalog)

	violations, err := validator.Validate(context.Background())
	if err != nil {
		log.Error("Validation run failed", "error", err)
		os.Exit(1)
	}

	if len(violations) == 0 {
		fmt.Println("catalog OK")
		return
	}
	for _, v := range violations {
		fmt.Println(v.String())
	}
	fmt.Printf("%d violation(s) found\n", len(violations))
	os.Exit(1)
}
