package config

// EnvPrefix namespaces every environment variable read by Load.
const EnvPrefix = "LINKEDGE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	EventBusPubSub = "pubsub"
	EventBusKafka  = "kafka"

	GraphBackendPostgres = "postgres"
	GraphBackendNeo4j    = "neo4j"

	ReRequestAllow = "allow"
	ReRequestBlock = "block"

	DispatcherStore = "store"
	DispatcherLog   = "log"
)

const (
	EnvAppEnv       = "LINKEDGE_APP_ENV"
	EnvPort         = "LINKEDGE_APP_PORT"
	EnvLogLevel     = "LINKEDGE_LOG_LEVEL"
	EnvLogWarnStack = "LINKEDGE_LOG_WARN_STACK"
	EnvServiceKind  = "LINKEDGE_SERVICE_KIND"

	EnvDBDSN    = "LINKEDGE_DB_DSN"
	EnvDBDriver = "LINKEDGE_DB_DRIVER"
	EnvDBHost   = "LINKEDGE_DB_HOST"
	EnvDBUser   = "LINKEDGE_DB_USER"
	EnvDBName   = "LINKEDGE_DB_NAME"

	EnvRedisURL = "LINKEDGE_REDIS_URL"

	EnvJWTSecret  = "LINKEDGE_JWT_SECRET"
	EnvJWTIssuer  = "LINKEDGE_JWT_ISSUER"
	EnvJWTExpMins = "LINKEDGE_JWT_EXPIRATION_MINUTES"

	EnvAuthTrustUserHeader = "LINKEDGE_AUTH_TRUST_USER_HEADER"

	EnvEventBusDriver = "LINKEDGE_EVENTBUS_DRIVER"
	EnvGCPProjectID   = "LINKEDGE_GCP_PROJECT_ID"
	EnvKafkaBrokers   = "LINKEDGE_KAFKA_BROKERS"

	EnvTopicConnectionRequested = "LINKEDGE_TOPIC_CONNECTION_REQUESTED"
	EnvTopicPostCreated         = "LINKEDGE_TOPIC_POST_CREATED"

	EnvGraphBackend = "LINKEDGE_GRAPH_BACKEND"
	EnvNeo4jURI     = "LINKEDGE_NEO4J_URI"

	EnvGraphClientBaseURL  = "LINKEDGE_GRAPH_CLIENT_BASE_URL"
	EnvGraphClientCacheTTL = "LINKEDGE_GRAPH_CLIENT_CACHE_TTL"

	EnvReRequestPolicy = "LINKEDGE_CONNECTIONS_REREQUEST_POLICY"
)

var discreteDBEnvVars = []string{
	EnvDBHost,
	EnvDBUser,
	EnvDBName,
}
