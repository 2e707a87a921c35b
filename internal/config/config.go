package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
)

// Store drivers
const (
	DriverFS        = "fs"
	DriverSQLite    = "sqlite"
	DriverPostgres  = "postgres"
	DriverDatastore = "datastore"
)

// Config contains server configuration parameters.
type Config struct {
	LogLevel  string    `env:"LOG_LEVEL" envDefault:"info"`
	Server    Server    `envPrefix:"SERVER_"`
	Store     Store     `envPrefix:"STORE_"`
	Postgres  Postgres  `envPrefix:"PG_"`
	Datastore Datastore `envPrefix:"DATASTORE_"`
	Session   Session   `envPrefix:"SESSION_"`
	Google    Google    `envPrefix:"GOOGLE_"`
	Hash      Hash      `envPrefix:"HASH_"`
	Federated Federated `envPrefix:"FEDERATED_"`
}

// Server contains HTTP listener parameters.
type Server struct {
	Port            int           `env:"PORT" envDefault:"3000"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Store selects the credential and session backend.
type Store struct {
	Driver string `env:"DRIVER" envDefault:"fs"`
	// Data directory for the fs and sqlite drivers
	Path string `env:"PATH" envDefault:"./data"`
}

// Postgres contains database connection parameters.
type Postgres struct {
	Host         string `env:"HOST" envDefault:"localhost"`
	Port         int    `env:"PORT" envDefault:"5432"`
	User         string `env:"USER"`
	Password     string `env:"PASSWORD"`
	Database     string `env:"DATABASE"`
	SSLMode      string `env:"SSLMODE" envDefault:"require"`
	MaxOpenConns int    `env:"MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns int    `env:"MAX_IDLE_CONNS" envDefault:"5"`
}

// DSN returns a postgres:// connection URL.  Credentials are percent-encoded so
// any password survives parsing.
func (p Postgres) DSN() string {
	u := &url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(p.Host, strconv.Itoa(p.Port)),
		Path:   "/" + p.Database,
	}
	if p.User != "" {
		u.User = url.UserPassword(p.User, p.Password)
	}
	if p.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {p.SSLMode}}.Encode()
	}
	return u.String()
}

// Datastore contains Cloud Datastore parameters.
type Datastore struct {
	ProjectID string `env:"PROJECT_ID"`
	Namespace string `env:"NAMESPACE"`
}

// Session contains session manager and cookie parameters.
type Session struct {
	Secret       string        `env:"SECRET"`
	Lifetime     time.Duration `env:"LIFETIME" envDefault:"24h"`
	CookieSecure bool          `env:"COOKIE_SECURE" envDefault:"false"`
}

// Google contains OAuth2 client parameters.  Federated login is disabled when
// ClientID is empty.
type Google struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	CallbackURL  string `env:"CALLBACK_URL" envDefault:"http://localhost:3000/auth/google/welcome"`
}

// Hash contains password hashing parameters.
type Hash struct {
	Cost int `env:"COST" envDefault:"10"`
}

// Federated contains federated account resolution parameters.
type Federated struct {
	MergePolicy          string `env:"MERGE_POLICY" envDefault:"merge_by_email"`
	RequireVerifiedEmail bool   `env:"REQUIRE_VERIFIED_EMAIL" envDefault:"false"`
}

// NewConfig loads configuration from environment variables.
func NewConfig() (*Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values env parsing cannot.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverFS, DriverSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("STORE_PATH is required for driver %q", c.Store.Driver)
		}
	case DriverPostgres:
		if c.Postgres.Database == "" {
			return fmt.Errorf("PG_DATABASE is required for driver %q", c.Store.Driver)
		}
	case DriverDatastore:
		if c.Datastore.ProjectID == "" {
			return fmt.Errorf("DATASTORE_PROJECT_ID is required for driver %q", c.Store.Driver)
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid SERVER_PORT %d", c.Server.Port)
	}
	if c.Session.Lifetime <= 0 {
		return fmt.Errorf("SESSION_LIFETIME must be positive")
	}
	return nil
}
