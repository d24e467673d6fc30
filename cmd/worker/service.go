package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/linkedge-backend/internal/consumers"
	"github.com/angelmondragon/linkedge-backend/pkg/config"
	"github.com/angelmondragon/linkedge-backend/pkg/eventbus"
	"github.com/angelmondragon/linkedge-backend/pkg/logger"
)

type pinger interface {
	Ping(context.Context) error
}

// Runners groups the consumers hosted by the worker.
type Runners struct {
	Connections *consumers.Runner
	Content     *consumers.Runner
	People      *consumers.Runner
}

type ServiceParams struct {
	Config *config.Config
	Logger *logger.Logger
	DB     pinger
	Redis  pinger
	Bus    eventbus.Bus
	// Graph is pinged only when set.
	Graph   pinger
	Runners Runners
}

type Service struct {
	cfg      *config.Config
	logg     *logger.Logger
	db       pinger
	redis    pinger
	bus      eventbus.Bus
	graph    pinger
	bindings []consumers.Binding
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.Redis == nil {
		return nil, errors.New("redis client is required")
	}
	if params.Bus == nil {
		return nil, errors.New("event bus is required")
	}
	bindings, err := buildBindings(params.Config, params.Runners)
	if err != nil {
		return nil, err
	}

	return &Service{
		cfg:      params.Config,
		logg:     params.Logger,
		db:       params.DB,
		redis:    params.Redis,
		bus:      params.Bus,
		graph:    params.Graph,
		bindings: bindings,
	}, nil
}

// buildBindings pairs each runner with the subscriptions for the event types
// it consumes. Pub/Sub resolves Name; Kafka joins group Name on Topic.
func buildBindings(cfg *config.Config, r Runners) ([]consumers.Binding, error) {
	if r.Connections == nil || r.Content == nil || r.People == nil {
		return nil, errors.New("all consumer runners are required")
	}
	ev, ps := cfg.Eventing, cfg.PubSub
	bindings := []consumers.Binding{
		{Subscription: eventbus.Subscription{Topic: ev.ConnectionRequestedTopic, Name: ps.ConnectionRequestedSubscription}, Runner: r.Connections},
		{Subscription: eventbus.Subscription{Topic: ev.ConnectionAcceptedTopic, Name: ps.ConnectionAcceptedSubscription}, Runner: r.Connections},
		{Subscription: eventbus.Subscription{Topic: ev.PostCreatedTopic, Name: ps.PostCreatedSubscription}, Runner: r.Content},
		{Subscription: eventbus.Subscription{Topic: ev.PostLikedTopic, Name: ps.PostLikedSubscription}, Runner: r.Content},
		{Subscription: eventbus.Subscription{Topic: ev.UserCreatedTopic, Name: ps.UserCreatedSubscription}, Runner: r.People},
	}
	for _, b := range bindings {
		if b.Subscription.Topic == "" || b.Subscription.Name == "" {
			return nil, fmt.Errorf("%s binding is missing a topic or subscription", b.Runner.Name())
		}
	}
	return bindings, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	deps := []struct {
		name string
		p    pinger
	}{
		{"database", s.db},
		{"redis", s.redis},
		{"event bus", s.bus},
		{"graph", s.graph},
	}
	for _, d := range deps {
		if d.p == nil {
			continue
		}
		if err := pingDependency(ctx, s.logg, d.name, d.p.Ping); err != nil {
			return err
		}
	}
	s.logg.Info(ctx, "all worker dependencies are ready")
	return nil
}

func pingDependency(ctx context.Context, logg *logger.Logger, name string, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
		return fmt.Errorf("%s ping failed: %w", name, err)
	}
	return nil
}

// Run blocks until ctx is canceled or a subscription fails.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	err := consumers.Run(ctx, s.bus, s.bindings, s.logg)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logg.Error(ctx, "consumer stopped unexpectedly", err)
		return err
	}
	s.logg.Info(ctx, "worker context canceled")
	return ctx.Err()
}
