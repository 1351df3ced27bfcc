package main

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mzhirov/quizhall/internal/auth"
	"github.com/mzhirov/quizhall/internal/events"
	"github.com/mzhirov/quizhall/internal/game"
	"github.com/mzhirov/quizhall/internal/gateway"
	"github.com/mzhirov/quizhall/internal/live"
)

// Services holds the wired component graph.
type Services struct {
	Registry    *live.Registry
	Coordinator *live.Coordinator
	Gateway     *gateway.Service
	Publisher   events.Publisher
}

func setupServices(pool *pgxpool.Pool, cfg *Config) (*Services, error) {
	// Store and auth collaborators on the shared pool.
	store := game.NewRepository(pool)
	authenticator := auth.NewRepository(pool)

	// Event mirror is optional; without NATS the sessions run standalone.
	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.NATS.Enabled {
		jsCfg := events.DefaultJetStreamConfig()
		if cfg.NATS.URL != "" {
			jsCfg.URL = cfg.NATS.URL
		}
		if cfg.NATS.StreamName != "" {
			jsCfg.StreamName = cfg.NATS.StreamName
		}
		if cfg.NATS.SubjectPrefix != "" {
			jsCfg.SubjectPrefix = cfg.NATS.SubjectPrefix
		}
		js, err := events.NewJetStreamPublisher(jsCfg)
		if err != nil {
			return nil, err
		}
		publisher = js
		log.Info().Str("url", jsCfg.URL).Str("stream", jsCfg.StreamName).Msg("event mirror enabled")
	}

	registry := live.NewRegistry(live.DefaultRegistryConfig())
	coordinator := live.NewCoordinator(registry, store, publisher, clockwork.NewRealClock(), coordinatorConfig(cfg))
	gatewayService := gateway.NewService(registry, coordinator, authenticator, store)

	return &Services{
		Registry:    registry,
		Coordinator: coordinator,
		Gateway:     gatewayService,
		Publisher:   publisher,
	}, nil
}
