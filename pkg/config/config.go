package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Auth          AuthConfig
	FeatureFlags  FeatureFlagsConfig
	Eventing      EventingConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Kafka         KafkaConfig
	Outbox        OutboxConfig
	Graph         GraphConfig
	Neo4j         Neo4jConfig
	GraphClient   GraphClientConfig
	Notifications NotificationsConfig
	Connections   ConnectionsConfig
	Cron          CronConfig
	Metrics       MetricsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Eventing.Driver {
	case EventBusPubSub:
		if strings.TrimSpace(c.GCP.ProjectID) == "" {
			return fmt.Errorf("%s is required when %s=%s", EnvGCPProjectID, EnvEventBusDriver, EventBusPubSub)
		}
	case EventBusKafka:
		if len(c.Kafka.BrokerList()) == 0 {
			return fmt.Errorf("%s is required when %s=%s", EnvKafkaBrokers, EnvEventBusDriver, EventBusKafka)
		}
	default:
		return fmt.Errorf("unsupported %s %q", EnvEventBusDriver, c.Eventing.Driver)
	}
	switch c.Graph.Backend {
	case GraphBackendPostgres:
	case GraphBackendNeo4j:
		if strings.TrimSpace(c.Neo4j.URI) == "" {
			return fmt.Errorf("%s is required when %s=%s", EnvNeo4jURI, EnvGraphBackend, GraphBackendNeo4j)
		}
	default:
		return fmt.Errorf("unsupported %s %q", EnvGraphBackend, c.Graph.Backend)
	}
	switch c.Connections.ReRequestPolicy {
	case ReRequestAllow, ReRequestBlock:
	default:
		return fmt.Errorf("unsupported %s %q", EnvReRequestPolicy, c.Connections.ReRequestPolicy)
	}
	return nil
}

type AppConfig struct {
	Env          string `envconfig:"LINKEDGE_APP_ENV" required:"true"`
	Port         string `envconfig:"LINKEDGE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"LINKEDGE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"LINKEDGE_LOG_WARN_STACK" default:"false"`
	// CORSOrigins is a comma separated allow list; empty means local dev origins.
	CORSOrigins string `envconfig:"LINKEDGE_CORS_ORIGINS"`
}

// AllowedOrigins splits CORSOrigins into trimmed, non-empty entries.
func (a AppConfig) AllowedOrigins() []string {
	var out []string
	for _, origin := range strings.Split(a.CORSOrigins, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type ServiceConfig struct {
	Kind string `envconfig:"LINKEDGE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"LINKEDGE_DB_DSN"`
	Driver string `envconfig:"LINKEDGE_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"LINKEDGE_DB_HOST"`
	Port     int    `envconfig:"LINKEDGE_DB_PORT" default:"5432"`
	User     string `envconfig:"LINKEDGE_DB_USER"`
	Password string `envconfig:"LINKEDGE_DB_PASSWORD"`
	Name     string `envconfig:"LINKEDGE_DB_NAME"`
	SSLMode  string `envconfig:"LINKEDGE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LINKEDGE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LINKEDGE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LINKEDGE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LINKEDGE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"LINKEDGE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"LINKEDGE_REDIS_ADDR"`
	Password     string        `envconfig:"LINKEDGE_REDIS_PASSWORD"`
	DB           int           `envconfig:"LINKEDGE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LINKEDGE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LINKEDGE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LINKEDGE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LINKEDGE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LINKEDGE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"LINKEDGE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"LINKEDGE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"LINKEDGE_JWT_EXPIRATION_MINUTES" default:"60"`
}

// AuthConfig controls how the acting user is resolved on inbound requests.
type AuthConfig struct {
	TrustUserHeader bool   `envconfig:"LINKEDGE_AUTH_TRUST_USER_HEADER" default:"true"`
	UserHeader      string `envconfig:"LINKEDGE_AUTH_USER_HEADER" default:"X-User-Id"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"LINKEDGE_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	Driver               string        `envconfig:"LINKEDGE_EVENTBUS_DRIVER" default:"pubsub"`
	OutboxIdempotencyTTL time.Duration `envconfig:"LINKEDGE_EVENTING_IDEMPOTENCY_TTL" default:"720h"`

	ConnectionRequestedTopic string `envconfig:"LINKEDGE_TOPIC_CONNECTION_REQUESTED" default:"send-connection-request-topic"`
	ConnectionAcceptedTopic  string `envconfig:"LINKEDGE_TOPIC_CONNECTION_ACCEPTED" default:"accept-connection-request-topic"`
	PostCreatedTopic         string `envconfig:"LINKEDGE_TOPIC_POST_CREATED" default:"post-created-topic"`
	PostLikedTopic           string `envconfig:"LINKEDGE_TOPIC_POST_LIKED" default:"post-liked-topic"`
	UserCreatedTopic         string `envconfig:"LINKEDGE_TOPIC_USER_CREATED" default:"user-created-topic"`
}

// Topics lists every configured topic in a stable order.
func (e EventingConfig) Topics() []string {
	return []string{
		e.ConnectionRequestedTopic,
		e.ConnectionAcceptedTopic,
		e.PostCreatedTopic,
		e.PostLikedTopic,
		e.UserCreatedTopic,
	}
}

type GCPConfig struct {
	ProjectID string `envconfig:"LINKEDGE_GCP_PROJECT_ID"`
}

// PubSubConfig names one subscription per (consumer, topic) pair.
type PubSubConfig struct {
	ConnectionRequestedSubscription string `envconfig:"LINKEDGE_PUBSUB_CONNECTION_REQUESTED_SUBSCRIPTION" default:"connection-notifier-requested"`
	ConnectionAcceptedSubscription  string `envconfig:"LINKEDGE_PUBSUB_CONNECTION_ACCEPTED_SUBSCRIPTION" default:"connection-notifier-accepted"`
	PostCreatedSubscription         string `envconfig:"LINKEDGE_PUBSUB_POST_CREATED_SUBSCRIPTION" default:"content-notifier-post-created"`
	PostLikedSubscription           string `envconfig:"LINKEDGE_PUBSUB_POST_LIKED_SUBSCRIPTION" default:"content-notifier-post-liked"`
	UserCreatedSubscription         string `envconfig:"LINKEDGE_PUBSUB_USER_CREATED_SUBSCRIPTION" default:"people-projector-user-created"`
	MaxOutstandingMessages          int    `envconfig:"LINKEDGE_PUBSUB_MAX_OUTSTANDING" default:"100"`
}

// Subscriptions lists every configured subscription id.
func (p PubSubConfig) Subscriptions() []string {
	return []string{
		p.ConnectionRequestedSubscription,
		p.ConnectionAcceptedSubscription,
		p.PostCreatedSubscription,
		p.PostLikedSubscription,
		p.UserCreatedSubscription,
	}
}

type KafkaConfig struct {
	Brokers          string        `envconfig:"LINKEDGE_KAFKA_BROKERS"`
	ClientID         string        `envconfig:"LINKEDGE_KAFKA_CLIENT_ID" default:"linkedge"`
	GroupPrefix      string        `envconfig:"LINKEDGE_KAFKA_GROUP_PREFIX" default:"linkedge"`
	Version          string        `envconfig:"LINKEDGE_KAFKA_VERSION" default:"2.8.0"`
	MaxRedeliveries  int           `envconfig:"LINKEDGE_KAFKA_MAX_REDELIVERIES" default:"5"`
	RedeliveryDelay  time.Duration `envconfig:"LINKEDGE_KAFKA_REDELIVERY_DELAY" default:"1s"`
	SessionTimeout   time.Duration `envconfig:"LINKEDGE_KAFKA_SESSION_TIMEOUT" default:"30s"`
	HeartbeatTimeout time.Duration `envconfig:"LINKEDGE_KAFKA_HEARTBEAT_INTERVAL" default:"10s"`
	// PublishTimeout bounds broker acks and network round trips for one send.
	PublishTimeout time.Duration `envconfig:"LINKEDGE_KAFKA_PUBLISH_TIMEOUT" default:"10s"`
}

// BrokerList splits the comma separated broker list.
func (k KafkaConfig) BrokerList() []string {
	var brokers []string
	for _, b := range strings.Split(k.Brokers, ",") {
		if trimmed := strings.TrimSpace(b); trimmed != "" {
			brokers = append(brokers, trimmed)
		}
	}
	return brokers
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"LINKEDGE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"LINKEDGE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"LINKEDGE_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type GraphConfig struct {
	Backend string `envconfig:"LINKEDGE_GRAPH_BACKEND" default:"postgres"`
}

func (g GraphConfig) UsesNeo4j() bool {
	return strings.EqualFold(g.Backend, GraphBackendNeo4j)
}

type Neo4jConfig struct {
	URI      string `envconfig:"LINKEDGE_NEO4J_URI"`
	User     string `envconfig:"LINKEDGE_NEO4J_USER" default:"neo4j"`
	Password string `envconfig:"LINKEDGE_NEO4J_PASSWORD"`
	Database string `envconfig:"LINKEDGE_NEO4J_DATABASE" default:"neo4j"`
}

type GraphClientConfig struct {
	BaseURL    string        `envconfig:"LINKEDGE_GRAPH_CLIENT_BASE_URL" default:"http://localhost:8080"`
	UserHeader string        `envconfig:"LINKEDGE_GRAPH_CLIENT_USER_HEADER" default:"X-User-Id"`
	Timeout    time.Duration `envconfig:"LINKEDGE_GRAPH_CLIENT_TIMEOUT" default:"3s"`
	CacheTTL   time.Duration `envconfig:"LINKEDGE_GRAPH_CLIENT_CACHE_TTL" default:"0s"`
}

type NotificationsConfig struct {
	Dispatcher         string        `envconfig:"LINKEDGE_NOTIFICATIONS_DISPATCHER" default:"store"`
	DispatchTimeout    time.Duration `envconfig:"LINKEDGE_NOTIFICATIONS_DISPATCH_TIMEOUT" default:"2s"`
	DispatchAttempts   int           `envconfig:"LINKEDGE_NOTIFICATIONS_DISPATCH_ATTEMPTS" default:"3"`
	FanoutConcurrency  int           `envconfig:"LINKEDGE_NOTIFICATIONS_FANOUT_CONCURRENCY" default:"8"`
	LookupAttempts     int           `envconfig:"LINKEDGE_NOTIFICATIONS_LOOKUP_ATTEMPTS" default:"4"`
	LookupBackoff      time.Duration `envconfig:"LINKEDGE_NOTIFICATIONS_LOOKUP_BACKOFF" default:"250ms"`
	LookupBackoffLimit time.Duration `envconfig:"LINKEDGE_NOTIFICATIONS_LOOKUP_BACKOFF_MAX" default:"5s"`
}

type ConnectionsConfig struct {
	ReRequestPolicy string `envconfig:"LINKEDGE_CONNECTIONS_REREQUEST_POLICY" default:"allow"`
}

type CronConfig struct {
	Interval               time.Duration `envconfig:"LINKEDGE_CRON_INTERVAL" default:"1h"`
	OutboxRetentionDays    int           `envconfig:"LINKEDGE_CRON_OUTBOX_RETENTION_DAYS" default:"30"`
	NotificationRetentionD int           `envconfig:"LINKEDGE_CRON_NOTIFICATION_RETENTION_DAYS" default:"90"`
	ReconcileLookback      time.Duration `envconfig:"LINKEDGE_CRON_RECONCILE_LOOKBACK" default:"48h"`
}

type MetricsConfig struct {
	Addr string `envconfig:"LINKEDGE_METRICS_ADDR" default:":9090"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if strings.EqualFold(db.Driver, DBDriverSQLite) {
		return fmt.Errorf("%s is required for the sqlite driver", EnvDBDSN)
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range discreteDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
