package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/linkedge-backend/internal/connections"
	"github.com/angelmondragon/linkedge-backend/internal/notifications"
	"github.com/angelmondragon/linkedge-backend/internal/posts"
	"github.com/angelmondragon/linkedge-backend/internal/users"
	pkgAuth "github.com/angelmondragon/linkedge-backend/pkg/auth"
	"github.com/angelmondragon/linkedge-backend/pkg/config"
	"github.com/angelmondragon/linkedge-backend/pkg/db/models"
	"github.com/angelmondragon/linkedge-backend/pkg/logger"
	"github.com/angelmondragon/linkedge-backend/pkg/pagination"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error {
	return s.err
}

type stubUsersService struct{}

func (stubUsersService) Register(ctx context.Context, input users.RegisterInput) (*users.UserDTO, error) {
	return &users.UserDTO{ID: uuid.New(), Name: input.Name, Email: input.Email}, nil
}

func (stubUsersService) Get(ctx context.Context, id uuid.UUID) (*users.UserDTO, error) {
	return &users.UserDTO{ID: id}, nil
}

type stubConnectionsService struct {
	lastActor uuid.UUID
}

func (s *stubConnectionsService) Send(ctx context.Context, input connections.SendInput) (*models.ConnectionRequest, error) {
	s.lastActor = input.RequesterID
	return &models.ConnectionRequest{ID: uuid.New(), RequesterID: input.RequesterID, TargetID: input.TargetID}, nil
}

func (s *stubConnectionsService) Accept(ctx context.Context, input connections.DecisionInput) (*models.ConnectionRequest, error) {
	s.lastActor = input.ActorUserID
	return &models.ConnectionRequest{ID: input.RequestID}, nil
}

func (s *stubConnectionsService) Reject(ctx context.Context, input connections.DecisionInput) (*models.ConnectionRequest, error) {
	s.lastActor = input.ActorUserID
	return &models.ConnectionRequest{ID: input.RequestID}, nil
}

func (s *stubConnectionsService) AcceptFrom(ctx context.Context, requesterID, actorID uuid.UUID) (*models.ConnectionRequest, error) {
	s.lastActor = actorID
	return &models.ConnectionRequest{ID: uuid.New()}, nil
}

func (s *stubConnectionsService) RejectFrom(ctx context.Context, requesterID, actorID uuid.UUID) (*models.ConnectionRequest, error) {
	s.lastActor = actorID
	return &models.ConnectionRequest{ID: uuid.New()}, nil
}

func (s *stubConnectionsService) FirstDegree(ctx context.Context, userID uuid.UUID) ([]connections.Person, error) {
	s.lastActor = userID
	return []connections.Person{}, nil
}

func (s *stubConnectionsService) ListIncoming(ctx context.Context, userID uuid.UUID) ([]models.ConnectionRequest, error) {
	s.lastActor = userID
	return nil, nil
}

type stubPostsService struct {
	creates int
}

func (s *stubPostsService) Create(ctx context.Context, input posts.CreateInput) (*models.Post, error) {
	s.creates++
	return &models.Post{ID: uuid.New(), CreatorID: input.CreatorID, Content: input.Content}, nil
}

func (s *stubPostsService) Get(ctx context.Context, postID uuid.UUID) (*models.Post, error) {
	return &models.Post{ID: postID}, nil
}

func (s *stubPostsService) ListByUser(ctx context.Context, params posts.ListParams) (pagination.Page[models.Post], error) {
	return pagination.Page[models.Post]{}, nil
}

func (s *stubPostsService) Like(ctx context.Context, postID, userID uuid.UUID) error {
	return nil
}

func (s *stubPostsService) Unlike(ctx context.Context, postID, userID uuid.UUID) error {
	return nil
}

type stubNotificationsService struct{}

func (stubNotificationsService) List(ctx context.Context, params notifications.ListParams) (pagination.Page[models.Notification], error) {
	return pagination.Page[models.Notification]{}, nil
}

func (stubNotificationsService) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	return nil
}

func (stubNotificationsService) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	return 0, nil
}

type memoryIdempotencyStore struct {
	data map[string]string
}

func (m *memoryIdempotencyStore) Get(_ context.Context, key string) (string, error) {
	return m.data[key], nil
}

func (m *memoryIdempotencyStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key], _ = value.(string)
	return true, nil
}

func (m *memoryIdempotencyStore) IdempotencyKey(scope, id string) string {
	return "idem:" + scope + ":" + id
}

func testConfig() *config.Config {
	return &config.Config{
		App:  config.AppConfig{Env: "test", Port: "0"},
		JWT:  config.JWTConfig{Secret: "secret", Issuer: "linkedge", ExpirationMinutes: 60},
		Auth: config.AuthConfig{TrustUserHeader: true, UserHeader: "X-User-Id"},
	}
}

type testRouter struct {
	handler     http.Handler
	connections *stubConnectionsService
	posts       *stubPostsService
}

func newTestRouter(cfg *config.Config) testRouter {
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: "debug", Output: io.Discard})
	conns := &stubConnectionsService{}
	postsSvc := &stubPostsService{}
	h := NewRouter(RouterParams{
		Config:         cfg,
		Logger:         logg,
		DB:             stubPinger{},
		Redis:          stubPinger{},
		Idempotency:    &memoryIdempotencyStore{data: map[string]string{}},
		Users:          stubUsersService{},
		Connections:    conns,
		Posts:          postsSvc,
		Notifications:  stubNotificationsService{},
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }),
	})
	return testRouter{handler: h, connections: conns, posts: postsSvc}
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	return resp
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	router := newTestRouter(testConfig())
	for _, path := range []string{"/health/live", "/health/ready", "/metrics"} {
		resp := serve(router.handler, httptest.NewRequest(http.MethodGet, path, nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", path, resp.Code)
		}
	}
}

func TestRegisterIsPublic(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users", strings.NewReader(`{"name":"Ada","email":"ada@example.com"}`))
	resp := serve(router.handler, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestProtectedRoutesRejectMissingIdentity(t *testing.T) {
	router := newTestRouter(testConfig())
	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/connections/first-degree"},
		{http.MethodPost, "/api/v1/connections/request/" + uuid.NewString()},
		{http.MethodPost, "/api/v1/posts"},
		{http.MethodGet, "/api/v1/notifications"},
	}
	for _, p := range paths {
		resp := serve(router.handler, httptest.NewRequest(p.method, p.path, nil))
		if resp.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected 401 got %d", p.method, p.path, resp.Code)
		}
	}
}

func TestUserHeaderResolvesActingUser(t *testing.T) {
	router := newTestRouter(testConfig())
	actor := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/connections/request/"+uuid.NewString(), nil)
	req.Header.Set("X-User-Id", actor.String())
	resp := serve(router.handler, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if router.connections.lastActor != actor {
		t.Fatalf("expected actor %s got %s", actor, router.connections.lastActor)
	}
}

func TestBearerTokenResolvesActingUser(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.TrustUserHeader = false
	router := newTestRouter(cfg)
	actor := uuid.New()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), actor, "Ada")
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/connections/requests/"+uuid.NewString()+"/accept", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := serve(router.handler, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if router.connections.lastActor != actor {
		t.Fatalf("expected actor %s got %s", actor, router.connections.lastActor)
	}
}

func TestCreatePostReplaysWithIdempotencyKey(t *testing.T) {
	router := newTestRouter(testConfig())
	actor := uuid.NewString()
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/posts", strings.NewReader(`{"content":"hello"}`))
		req.Header.Set("X-User-Id", actor)
		req.Header.Set("Idempotency-Key", "post-1")
		resp := serve(router.handler, req)
		if resp.Code != http.StatusCreated {
			t.Fatalf("attempt %d: expected 201 got %d", i, resp.Code)
		}
	}
	if router.posts.creates != 1 {
		t.Fatalf("expected one create, got %d", router.posts.creates)
	}
}
