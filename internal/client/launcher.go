package client

import (
	"context"
	"fmt"
	"time"

	"github.com/SahanWeerasiri/genApp/internal/config"
	"github.com/SahanWeerasiri/genApp/internal/model"
	"github.com/SahanWeerasiri/genApp/internal/pool"
	"github.com/rs/zerolog"
)

// NewLauncher returns the setup routine for generation workers. Each worker
// gets its own client; setup probes the backend and runs one warm-up
// generation so the first user request does not pay for a cold start. An
// empty base URL selects the mock generator.
func NewLauncher(cfg *config.GeneratorConfig, logger zerolog.Logger) pool.Launcher {
	return func(ctx context.Context, workerID string) (pool.Capability, error) {
		log := logger.With().Str("worker_id", workerID).Logger()

		if cfg.BaseURL == "" {
			log.Warn().Msg("generator.base_url not set, using mock generator")
			return NewMockGenerator(time.Duration(cfg.MockDelayMs) * time.Millisecond), nil
		}

		c := NewGeneratorClient(cfg, workerID, logger)
		if err := c.Health(ctx); err != nil {
			return nil, fmt.Errorf("generator health check failed: %w", err)
		}

		if cfg.WarmupPrompt != "" {
			start := time.Now()
			if _, err := c.Generate(ctx, cfg.WarmupPrompt, model.DefaultStyle()); err != nil {
				return nil, fmt.Errorf("warm-up generation failed: %w", err)
			}
			log.Info().Dur("elapsed", time.Since(start)).Msg("warm-up generation done")
		}

		return c, nil
	}
}
