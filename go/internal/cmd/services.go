package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/quizparty/go/internal/events"
	"github.com/mcdev12/quizparty/go/internal/gateway"
	"github.com/mcdev12/quizparty/go/internal/questions"
	"github.com/mcdev12/quizparty/go/internal/snapshot"
	"github.com/rs/zerolog/log"
)

type Services struct {
	Gateway *gateway.Service

	closers []func() error
}

// Close releases the database and NATS connections in reverse order.
func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			log.Error().Err(err).Msg("failed to close resource")
		}
	}
}

func setupServices(ctx context.Context, config *Config) (*Services, error) {
	// Wire up dependency injection chain
	// Dataset → Snapshot store → Event publisher → Gateway
	services := &Services{}

	qs, err := setupQuestions(config)
	if err != nil {
		return nil, err
	}

	saves, err := setupSnapshotStore(ctx, config, services)
	if err != nil {
		services.Close()
		return nil, err
	}

	publisher, err := setupPublisher(ctx, config, services)
	if err != nil {
		services.Close()
		return nil, err
	}

	services.Gateway = gateway.NewService(gateway.DefaultConnectionConfig(), gateway.Dependencies{
		Clock:     clockwork.NewRealClock(),
		Questions: qs,
		Saves:     saves,
		Events:    publisher,
	})
	return services, nil
}

func setupQuestions(config *Config) (*questions.Set, error) {
	qs := questions.Default()
	if config.Quiz.QuestionsFile != "" {
		loaded, err := questions.LoadFile(config.Quiz.QuestionsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load questions: %w", err)
		}
		qs = loaded
	}
	if config.Quiz.TimeLimitSec > 0 {
		qs.TimeLimit = time.Duration(config.Quiz.TimeLimitSec) * time.Second
	}

	log.Info().
		Int("questions", qs.Len()).
		Dur("time_limit", qs.TimeLimit).
		Msg("question set loaded")
	return qs, nil
}

func setupSnapshotStore(ctx context.Context, config *Config, services *Services) (snapshot.Store, error) {
	if config.Snapshots.Store == storePostgres {
		database, err := setupDatabase(ctx)
		if err != nil {
			return nil, err
		}
		services.closers = append(services.closers, database.Close)

		store := snapshot.NewPostgresStore(database)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("failed to prepare snapshot table: %w", err)
		}
		log.Info().Msg("snapshots stored in postgres")
		return store, nil
	}

	store, err := snapshot.NewFileStore(config.Snapshots.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open saves directory: %w", err)
	}
	log.Info().Str("dir", config.Snapshots.Dir).Msg("snapshots stored on disk")
	return store, nil
}

func setupPublisher(ctx context.Context, config *Config, services *Services) (events.Publisher, error) {
	if config.Events.NatsURL == "" {
		log.Info().Msg("NATS_URL not set, domain events are logged only")
		return events.LogPublisher{}, nil
	}

	jsCfg := events.DefaultJetStreamConfig()
	jsCfg.URL = config.Events.NatsURL
	jsCfg.StreamName = config.Events.Stream
	jsCfg.SubjectPrefix = config.Events.SubjectPrefix

	publisher, err := events.NewJetStreamPublisher(ctx, jsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create event publisher: %w", err)
	}
	services.closers = append(services.closers, publisher.Close)
	return publisher, nil
}
