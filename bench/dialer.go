package bench

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/TFMV/mongoload/config"
	"github.com/TFMV/mongoload/integrations"
	"github.com/TFMV/mongoload/integrations/memory"
	"github.com/TFMV/mongoload/integrations/mongodb"
)

// Dialer opens the backend named by the configuration.
type Dialer func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (integrations.Database, error)

// DefaultDialer connects to MongoDB, or returns a fresh in-process store for
// the memory backend.
func DefaultDialer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (integrations.Database, error) {
	switch cfg.Backend {
	case "mongo", "":
		return mongodb.NewMongoDB(ctx,
			mongodb.WithURI(cfg.Mongo.URI),
			mongodb.WithConnectTimeout(cfg.Mongo.ConnectTimeout),
			mongodb.WithMaxPoolSize(cfg.Mongo.MaxPoolSize),
			mongodb.WithLogger(logger),
		)
	case "memory":
		return memory.NewStore(), nil
	default:
		return nil, fmt.Errorf("unsupported backend: %s", cfg.Backend)
	}
}

// address returns the redacted address a run targets, for messages
// produced before a connection exists.
func address(cfg *config.Config) string {
	if cfg.Backend == "memory" {
		return memory.Address
	}
	return mongodb.RedactURI(cfg.Mongo.URI)
}
