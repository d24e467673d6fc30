// Package driver opens the event bus selected by LINKEDGE_EVENTBUS_DRIVER.
package driver

import (
	"context"
	"fmt"

	"github.com/angelmondragon/linkedge-backend/pkg/config"
	"github.com/angelmondragon/linkedge-backend/pkg/eventbus"
	"github.com/angelmondragon/linkedge-backend/pkg/kafka"
	"github.com/angelmondragon/linkedge-backend/pkg/logger"
	"github.com/angelmondragon/linkedge-backend/pkg/pubsub"
)

// Open connects to the configured transport.
func Open(ctx context.Context, cfg *config.Config, logg *logger.Logger) (eventbus.Bus, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config required")
	}
	switch cfg.Eventing.Driver {
	case config.EventBusPubSub:
		return pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	case config.EventBusKafka:
		return kafka.NewClient(ctx, cfg.Kafka, logg)
	default:
		return nil, fmt.Errorf("unsupported event bus driver %q", cfg.Eventing.Driver)
	}
}
