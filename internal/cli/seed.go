package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.opentelemetry.io/otel/attribute"

	"user-registry/internal/application/dto"
	"user-registry/internal/application/service"
	"user-registry/internal/infrastructure/telemetry"
)

// loadSeedFile reads a JSON array of {"id","name","email"} objects
func loadSeedFile(path string) ([]dto.SeedUser, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var users []dto.SeedUser
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	return users, nil
}

// seedUsers loads path into the registry. An empty path is a no-op.
func seedUsers(ctx context.Context, users *service.UserService, path string) error {
	if path == "" {
		return nil
	}

	seeds, err := loadSeedFile(path)
	if err != nil {
		return err
	}
	if err := users.SeedUsers(ctx, seeds); err != nil {
		return fmt.Errorf("seed users from %s: %w", path, err)
	}

	telemetry.Log(ctx, telemetry.LevelInfo, "Seeded users", nil,
		attribute.String("seed.file", path),
		attribute.Int("seed.count", len(seeds)),
	)
	return nil
}
