package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds the full runtime configuration, loaded from the environment
// with an optional .env file underneath.
type Config struct {
	Service  ServiceConfig
	Products ProductsConfig
	Paths    PathsConfig
	Engine   EngineConfig
	Server   ServerConfig
	Database DatabaseConfig
	Logging  LoggingConfig
}

// ServiceConfig identifies the running binary in logs and metrics
type ServiceConfig struct {
	Name    string `env:"HIDROCL_SERVICE_NAME" envDefault:"hidrocl-platform"`
	Version string `env:"HIDROCL_SERVICE_VERSION" envDefault:"dev"`
}

// ProductsConfig points at the raw satellite archives
type ProductsConfig struct {
	Mod13q1Dir string `env:"HIDROCL_MOD13Q1_DIR"`
	Mod10a2Dir string `env:"HIDROCL_MOD10A2_DIR"`
	Mcd43a3Dir string `env:"HIDROCL_MCD43A3_DIR"`
	ImergDir   string `env:"HIDROCL_IMERG_DIR"`
}

// PathsConfig locates the tables, polygons and scratch space
type PathsConfig struct {
	TablesDir          string `env:"HIDROCL_TABLES_DIR" envDefault:"./tables"`
	PolygonsSinusoidal string `env:"HIDROCL_POLYGONS_SINUSOIDAL"`
	PolygonsGeographic string `env:"HIDROCL_POLYGONS_GEOGRAPHIC"`
	PolygonsNorth      string `env:"HIDROCL_POLYGONS_NORTH"`
	PolygonsSouth      string `env:"HIDROCL_POLYGONS_SOUTH"`
	CatchmentField     string `env:"HIDROCL_CATCHMENT_FIELD" envDefault:"gauge_id"`
	ScratchDir         string `env:"HIDROCL_SCRATCH_DIR"`
	LogFile            string `env:"HIDROCL_LOG_FILE"`
}

// EngineConfig configures the zonal statistics subprocess
type EngineConfig struct {
	RscriptBinary string        `env:"HIDROCL_RSCRIPT_BINARY" envDefault:"Rscript"`
	ScriptsDir    string        `env:"HIDROCL_SCRIPTS_DIR" envDefault:"./scripts"`
	Timeout       time.Duration `env:"HIDROCL_ENGINE_TIMEOUT" envDefault:"15m"`
	SceneLimit    int           `env:"HIDROCL_SCENE_LIMIT" envDefault:"0"`
}

// ServerConfig configures the status HTTP server
type ServerConfig struct {
	Host            string        `env:"HIDROCL_SERVER_HOST" envDefault:"0.0.0.0"`
	Port            int           `env:"HIDROCL_SERVER_PORT" envDefault:"8080"`
	MetricsPort     int           `env:"HIDROCL_METRICS_PORT" envDefault:"9090"`
	ReadTimeout     time.Duration `env:"HIDROCL_SERVER_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"HIDROCL_SERVER_WRITE_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"HIDROCL_SERVER_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// DatabaseConfig configures the optional run journal. The journal is
// disabled when no host is set; extraction then runs on the CSV tables
// alone.
type DatabaseConfig struct {
	Host            string        `env:"HIDROCL_DB_HOST"`
	Port            int           `env:"HIDROCL_DB_PORT" envDefault:"5432"`
	User            string        `env:"HIDROCL_DB_USER" envDefault:"hidrocl"`
	Password        string        `env:"HIDROCL_DB_PASSWORD"`
	Name            string        `env:"HIDROCL_DB_NAME" envDefault:"hidrocl"`
	SSLMode         string        `env:"HIDROCL_DB_SSLMODE" envDefault:"disable"`
	MaxOpenConns    int           `env:"HIDROCL_DB_MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns    int           `env:"HIDROCL_DB_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"HIDROCL_DB_CONN_MAX_LIFETIME" envDefault:"30m"`
	ConnMaxIdleTime time.Duration `env:"HIDROCL_DB_CONN_MAX_IDLE_TIME" envDefault:"5m"`
}

// Enabled reports whether a journal database is configured
func (d DatabaseConfig) Enabled() bool {
	return d.Host != ""
}

// LoggingConfig configures log verbosity
type LoggingConfig struct {
	Level string `env:"HIDROCL_LOG_LEVEL" envDefault:"info"`
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}
