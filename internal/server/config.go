package server

import "time"

const productionEnv = "production"

type Config struct {
	StoreURI        string        `env:"FILES_VAULT_STORE_URI" envDefault:"sqlite://files-vault.db"`
	RSAKeyBits      int           `env:"FILES_VAULT_RSA_KEY_BITS" envDefault:"512"`
	Port            int           `env:"FILES_VAULT_PORT" envDefault:"3001"`
	Environment     string        `env:"FILES_VAULT_ENV" envDefault:"development"`
	MaxFileSize     int64         `env:"FILES_VAULT_MAX_FILE_SIZE" envDefault:"16777216"`
	MaxRequestSize  int64         `env:"FILES_VAULT_MAX_REQUEST_SIZE" envDefault:"67108864"`
	RetentionDays   int           `env:"FILES_VAULT_RETENTION_DAYS" envDefault:"30"`
	Workers         int           `env:"FILES_VAULT_WORKERS" envDefault:"1"`
	ShutdownTimeout time.Duration `env:"FILES_VAULT_SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// IsProduction hides error details from responses.
func (c *Config) IsProduction() bool {
	return c.Environment == productionEnv
}
