package config

// EnvPrefix scopes every environment variable read by envconfig.
const EnvPrefix = "ZEVAR"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "ZEVAR_DB_DSN"
	EnvDBHost = "ZEVAR_DB_HOST"
	EnvDBUser = "ZEVAR_DB_USER"
	EnvDBName = "ZEVAR_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
