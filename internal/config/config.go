package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/dtroode/journal-exchange/internal/model"
)

// Storage backends.
const (
	BackendLocal = "local"
	BackendMinIO = "minio"
)

// Config contains server configuration parameters.
type Config struct {
	LogLevel         int           `env:"LOG_LEVEL" envDefault:"0"`
	LogFormat        string        `env:"LOG_FORMAT" envDefault:"text"`
	DefaultAvatarURL string        `env:"DEFAULT_AVATAR_URL" envDefault:"/static/default-avatar.png"`
	HealthInterval   time.Duration `env:"HEALTH_INTERVAL" envDefault:"15s"`

	HTTP       HTTP       `envPrefix:"HTTP_"`
	GRPC       GRPC       `envPrefix:"GRPC_"`
	Database   Database   `envPrefix:"DATABASE_"`
	JWT        JWT        `envPrefix:"JWT_"`
	Instance   Instance   `envPrefix:"INSTANCE_"`
	Federation Federation `envPrefix:"FEDERATION_"`
	Storage    Storage    `envPrefix:"STORAGE_"`
	MinIO      MinIO      `envPrefix:"MINIO_"`
}

// HTTP contains parameters of the federation HTTP server.
type HTTP struct {
	Port               string        `env:"PORT" envDefault:"8080"`
	EnableHTTPS        bool          `env:"ENABLE_HTTPS" envDefault:"false"`
	CertFileName       string        `env:"CERT_FILE_NAME" envDefault:"cert.pem"`
	PrivateKeyFileName string        `env:"PRIVATE_KEY_FILE_NAME" envDefault:"key.pem"`
	ShutdownTimeout    time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// GRPC contains parameters of the operational gRPC server.
type GRPC struct {
	Port string `env:"PORT" envDefault:"50051"`
}

// Database contains database connection parameters. An empty DSN selects
// the in-memory store.
type Database struct {
	DSN string `env:"DSN"`
}

// JWT contains JWT-related parameters.
type JWT struct {
	Secret string `env:"SECRET" envDefault:"devsecret"`
}

// Instance identifies this deployment to its peers.
type Instance struct {
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:8080"`
	Code    string `env:"CODE" envDefault:"LOC"`
}

// Federation contains outbound federation parameters.
type Federation struct {
	Timeout         time.Duration `env:"TIMEOUT" envDefault:"30s"`
	MaxArchiveBytes int64         `env:"MAX_ARCHIVE_BYTES" envDefault:"67108864"`
	PeersFile       string        `env:"PEERS_FILE"`
}

// Storage selects the archive blob backend.
type Storage struct {
	Backend string `env:"BACKEND" envDefault:"local"`
	Dir     string `env:"DIR" envDefault:"./data/submissions"`
}

// MinIO contains object storage parameters.
type MinIO struct {
	Endpoint  string `env:"ENDPOINT" envDefault:"localhost:9000"`
	AccessKey string `env:"ACCESS_KEY" envDefault:"journal-access-key"`
	SecretKey string `env:"SECRET_KEY" envDefault:"journal-secret-key"`
	Bucket    string `env:"BUCKET_NAME" envDefault:"journal-submissions"`
	UseSSL    bool   `env:"USE_SSL" envDefault:"false"`
}

// NewConfig loads configuration from environment variables.
func NewConfig() (*Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Validate checks values env tags cannot express.
func (c *Config) Validate() error {
	var errs []error

	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat))
	}
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("JWT_SECRET must not be empty"))
	}
	if len(c.Instance.Code) != model.InstanceCodeLength || !isAlnum(c.Instance.Code) {
		errs = append(errs, fmt.Errorf("INSTANCE_CODE must be %d letters or digits, got %q", model.InstanceCodeLength, c.Instance.Code))
	}
	if u, err := url.Parse(c.Instance.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("INSTANCE_BASE_URL must be an absolute http(s) url, got %q", c.Instance.BaseURL))
	}
	if c.Federation.Timeout <= 0 {
		errs = append(errs, errors.New("FEDERATION_TIMEOUT must be positive"))
	}
	if c.Federation.MaxArchiveBytes <= 0 {
		errs = append(errs, errors.New("FEDERATION_MAX_ARCHIVE_BYTES must be positive"))
	}
	if c.HealthInterval <= 0 {
		errs = append(errs, errors.New("HEALTH_INTERVAL must be positive"))
	}
	switch c.Storage.Backend {
	case BackendLocal:
		if c.Storage.Dir == "" {
			errs = append(errs, errors.New("STORAGE_DIR must not be empty"))
		}
	case BackendMinIO:
	default:
		errs = append(errs, fmt.Errorf("STORAGE_BACKEND must be %s or %s, got %q", BackendLocal, BackendMinIO, c.Storage.Backend))
	}

	return errors.Join(errs...)
}

func isAlnum(s string) bool {
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}
