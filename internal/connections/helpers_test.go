package connections

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/linkedge-backend/pkg/db/models"
	"github.com/angelmondragon/linkedge-backend/pkg/outbox"
)

func newConnectionsDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, conn.AutoMigrate(&models.ConnectionRequest{}, &models.ConnectionEdge{}, &models.Person{}))
	require.NoError(t, conn.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS ux_connection_requests_pending_pair
		ON connection_requests (min(requester_id, target_id), max(requester_id, target_id))
		WHERE state = 'PENDING'`).Error)
	return conn
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []outbox.DomainEvent
	err    error
}

func (e *recordingEmitter) Emit(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.events = append(e.events, event)
	return nil
}

func (e *recordingEmitter) recorded() []outbox.DomainEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]outbox.DomainEvent(nil), e.events...)
}

type fakeMirror struct {
	mu     sync.Mutex
	edges  [][2]uuid.UUID
	people map[uuid.UUID]string
	err    error
}

func (m *fakeMirror) MirrorEdge(_ context.Context, a, b uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.edges = append(m.edges, [2]uuid.UUID{a, b})
	return nil
}

func (m *fakeMirror) UpsertPerson(_ context.Context, userID uuid.UUID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.people == nil {
		m.people = map[uuid.UUID]string{}
	}
	m.people[userID] = name
	return nil
}
