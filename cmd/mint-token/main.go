package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/angelmondragon/allocations-backend/pkg/auth"
	"github.com/angelmondragon/allocations-backend/pkg/config"
	"github.com/angelmondragon/allocations-backend/pkg/enums"
	"github.com/angelmondragon/allocations-backend/pkg/logger"
)

// mint-token issues an operator token for local development and smoke tests.
func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "mint-token", Format: "console", Output: os.Stderr})

	_ = godotenv.Load()

	operator := flag.String("operator", "", "operator id (uuid); generated when empty")
	email := flag.String("email", "", "operator email")
	role := flag.String("role", string(enums.OperatorRoleEditor), "operator role: admin|editor|viewer")
	tenant := flag.String("tenant", "", "tenant id")
	flag.Parse()

	cfg, err := config.LoadJWT()
	if err != nil {
		logg.Error(ctx, "failed to load jwt config", err)
		os.Exit(1)
	}

	parsedRole, err := enums.ParseOperatorRole(*role)
	if err != nil {
		logg.Error(ctx, "invalid role", err)
		os.Exit(1)
	}

	operatorID := uuid.New()
	if *operator != "" {
		operatorID, err = uuid.Parse(*operator)
		if err != nil {
			logg.Error(ctx, "invalid operator id", err)
			os.Exit(1)
		}
	}

	token, err := auth.MintOperatorToken(*cfg, time.Now(), auth.OperatorTokenPayload{
		OperatorID: operatorID,
		Email:      *email,
		Role:       parsedRole,
		TenantID:   *tenant,
	})
	if err != nil {
		logg.Error(ctx, "failed to mint token", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
