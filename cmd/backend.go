package cmd

import (
	"context"
	"fmt"

	"github.com/kozaktomas/signet/internal/config"
	"github.com/kozaktomas/signet/internal/database"
	"github.com/kozaktomas/signet/internal/database/mariadb"
	"github.com/kozaktomas/signet/internal/database/postgres"
	"github.com/kozaktomas/signet/internal/siamese"
	"github.com/kozaktomas/signet/internal/signature"
	"github.com/kozaktomas/signet/internal/weights"
)

// loadConfig loads and validates the environment configuration.
func loadConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// initBackend connects the configured database and registers its repositories.
// MariaDB wins when both are configured. The returned func closes the pool.
func initBackend(ctx context.Context, cfg *config.Config, verbose bool) (func(), error) {
	if cfg.MariaDB.DSN != "" {
		if verbose {
			fmt.Printf("Connecting to MariaDB database...\n")
		}
		pool, err := mariadb.NewPool(cfg.MariaDB.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize MariaDB: %w", err)
		}
		if err := pool.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		mariadb.Register(pool)
		if verbose {
			fmt.Printf("Using MariaDB backend\n")
		}
		return func() { pool.Close() }, nil
	}

	if verbose {
		fmt.Printf("Connecting to PostgreSQL database...\n")
	}
	if err := postgres.Initialize(&cfg.Database); err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	pool := postgres.GetGlobalPool()
	postgres.Register(pool)
	if verbose {
		fmt.Printf("Using PostgreSQL backend\n")
	}
	return func() { pool.Close() }, nil
}

// policyFromConfig picks the decision and training parameters out of the config.
func policyFromConfig(p config.PolicyConfig) signature.Policy {
	return signature.Policy{
		Threshold:          p.Threshold,
		RecognitionScale:   p.RecognitionScale,
		BatchFraction:      p.BatchFraction,
		IterationsPerBatch: p.IterationsPerBatch,
	}
}

// newService builds the matching service over the registered backend.
func newService(ctx context.Context, cfg *config.Config) (*signature.Service, *weights.FileStore, error) {
	signatures, err := database.GetSignatureStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	rooms, err := database.GetRoomStore(ctx)
	if err != nil {
		return nil, nil, err
	}

	store, err := weights.NewFileStore(cfg.Model.WeightsDir, cfg.Model.BaselinePath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening weights directory: %w", err)
	}
	factory, err := siamese.NewFactory(cfg.Model, cfg.Policy)
	if err != nil {
		return nil, nil, err
	}

	service := signature.NewService(signature.Dependencies{
		References:   signatures,
		Weights:      store,
		Participants: rooms,
		Status:       rooms,
		NewModel:     factory,
	}, policyFromConfig(cfg.Policy))
	return service, store, nil
}

// setup loads config, connects the backend and builds the service in one go.
func setup(ctx context.Context, verbose bool) (*config.Config, *signature.Service, *weights.FileStore, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, nil, err
	}
	closeBackend, err := initBackend(ctx, cfg, verbose)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	service, store, err := newService(ctx, cfg)
	if err != nil {
		closeBackend()
		return nil, nil, nil, nil, err
	}
	return cfg, service, store, closeBackend, nil
}
