package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"

	"github.com/c0x65o/hit-feature-pack-erp-shell-core-sub000/internal/db"
)

// Config is the full server configuration.
type Config struct {
	Database   db.Config
	Server     ServerConfig
	Catalog    CatalogConfig
	Engine     EngineConfig
	Migrations MigrationsConfig
}

type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
	MetricsPath    string
}

type CatalogConfig struct {
	// Path is a catalog YAML file or a directory of them.
	Path string
}

type EngineConfig struct {
	RowWorkers      int
	DefaultPageSize int
}

type MigrationsConfig struct {
	Enabled bool
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Database: db.DefaultConfig(),
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"http://localhost:3000"},
			MetricsPath:    "/metrics",
		},
		Catalog: CatalogConfig{Path: "./catalog"},
		Engine: EngineConfig{
			RowWorkers:      4,
			DefaultPageSize: 10000,
		},
	}
}

// Load reads config.yaml from configPath. Environment variables prefixed with
// DASH override file values, e.g. DASH_DATABASE_HOST or DASH_SERVER_ADDR.
func Load(configPath string) (Config, error) {
	// Start with default
	cfg := Default()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.SetEnvPrefix("DASH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, key := range []string{
		"database.host", "database.port", "database.user", "database.password",
		"database.dbname", "database.sslmode", "database.maxconns",
		"server.addr", "server.allowedorigins", "server.metricspath",
		"catalog.path", "engine.rowworkers", "engine.defaultpagesize", "migrations.enabled",
	} {
		_ = v.BindEnv(key)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return cfg, err
		}
		// Config file not found? Use defaults + env
		log.Println("[CONFIG] no config.yaml found, using defaults and env vars")
	} else {
		log.Printf("[CONFIG] loaded %s", v.ConfigFileUsed())
	}

	// Override defaults if values exist
	if v.IsSet("database.host") {
		cfg.Database.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.Database.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.Database.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.Database.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.Database.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.Database.SSLMode = v.GetString("database.sslmode")
	}
	if v.IsSet("database.maxconns") {
		cfg.Database.MaxConns = int32(v.GetInt("database.maxconns"))
	}
	if v.IsSet("server.addr") {
		cfg.Server.Addr = v.GetString("server.addr")
	}
	if v.IsSet("server.allowedorigins") {
		cfg.Server.AllowedOrigins = v.GetStringSlice("server.allowedorigins")
	}
	if v.IsSet("server.metricspath") {
		cfg.Server.MetricsPath = v.GetString("server.metricspath")
	}
	if v.IsSet("catalog.path") {
		cfg.Catalog.Path = v.GetString("catalog.path")
	}
	if v.IsSet("engine.rowworkers") {
		cfg.Engine.RowWorkers = v.GetInt("engine.rowworkers")
	}
	if v.IsSet("engine.defaultpagesize") {
		cfg.Engine.DefaultPageSize = v.GetInt("engine.defaultpagesize")
	}
	if v.IsSet("migrations.enabled") {
		cfg.Migrations.Enabled = v.GetBool("migrations.enabled")
	}

	return cfg, nil
}
