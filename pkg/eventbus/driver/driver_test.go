package driver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/linkedge-backend/pkg/config"
)

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), &config.Config{Eventing: config.EventingConfig{Driver: "nats"}}, nil)
	require.ErrorContains(t, err, "nats")
}

func TestOpenRequiresConfig(t *testing.T) {
	_, err := Open(context.Background(), nil, nil)
	require.Error(t, err)
}

func TestOpenKafkaWithoutBrokers(t *testing.T) {
	_, err := Open(context.Background(), &config.Config{Eventing: config.EventingConfig{Driver: config.EventBusKafka}}, nil)
	require.Error(t, err)
}
