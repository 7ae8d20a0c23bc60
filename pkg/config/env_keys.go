package config

// EnvPrefix namespaces every environment variable the service reads.
const EnvPrefix = "LEARNHUB"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

const (
	EnvAppEnv   = "LEARNHUB_APP_ENV"
	EnvPort     = "LEARNHUB_APP_PORT"
	EnvDBDSN    = "LEARNHUB_DB_DSN"
	EnvDBHost   = "LEARNHUB_DB_HOST"
	EnvDBUser   = "LEARNHUB_DB_USER"
	EnvDBName   = "LEARNHUB_DB_NAME"
	EnvRedisURL = "LEARNHUB_REDIS_URL"

	EnvJWTSecret = "LEARNHUB_JWT_SECRET"
	EnvJWTIssuer = "LEARNHUB_JWT_ISSUER"

	EnvStripeAPIKey        = "LEARNHUB_STRIPE_API_KEY"
	EnvStripeWebhookSecret = "LEARNHUB_STRIPE_WEBHOOK_SECRET"
	EnvPaystackSecretKey   = "LEARNHUB_PAYSTACK_SECRET_KEY"
	EnvPaystackWebhook     = "LEARNHUB_PAYSTACK_WEBHOOK_SECRET"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
