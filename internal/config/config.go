package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// BaseConfig holds base configuration
type BaseConfig struct {
	Debug     bool   `mapstructure:"debug"`
	SentryDSN string `mapstructure:"sentry_dsn"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// NATSConfig holds NATS JetStream configuration
type NATSConfig struct {
	URL            string        `mapstructure:"url"`
	MaxReconnects  int           `mapstructure:"max_reconnects"`
	ReconnectWait  time.Duration `mapstructure:"reconnect_wait"`
	ConnectionName string        `mapstructure:"connection_name"`
}

// POAConfig holds the legacy proof-of-authority chain configuration
type POAConfig struct {
	RPCURL          string `mapstructure:"rpc_url"`
	ContractAddress string `mapstructure:"contract_address"`
	CutoverOffset   uint64 `mapstructure:"cutover_offset"`
	// FinalHeight is the last adjusted height this chain owns
	FinalHeight uint64 `mapstructure:"final_height"`
}

// SolanaConfig holds the Solana chain era configuration
type SolanaConfig struct {
	RPCURL        string        `mapstructure:"rpc_url"`
	CutoverOffset uint64        `mapstructure:"cutover_offset"`
	FinalHeight   uint64        `mapstructure:"final_height"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// CoreConfig holds the core chain configuration
type CoreConfig struct {
	Endpoint      string        `mapstructure:"endpoint"`
	CutoverOffset uint64        `mapstructure:"cutover_offset"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// ConsensusConfig holds the peer consensus check configuration
type ConsensusConfig struct {
	Peers   []string      `mapstructure:"peers"`
	Quorum  float64       `mapstructure:"quorum"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// WorkerConfig holds the indexing loop configuration
type WorkerConfig struct {
	Stream              string        `mapstructure:"stream"`
	StartHeight         uint64        `mapstructure:"start_height"`
	PollInterval        time.Duration `mapstructure:"poll_interval"`
	MaintenanceInterval time.Duration `mapstructure:"maintenance_interval"`
	LockTTL             time.Duration `mapstructure:"lock_ttl"`
	// RPCRateLimit is the per-adapter fetch budget in requests per second
	RPCRateLimit int `mapstructure:"rpc_rate_limit"`
	// MetricsAddr is where the Prometheus endpoint listens
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`  // in seconds
	WriteTimeout int    `mapstructure:"write_timeout"` // in seconds
	IdleTimeout  int    `mapstructure:"idle_timeout"`  // in seconds
}

// IndexerConfig holds configuration for the indexer worker
type IndexerConfig struct {
	BaseConfig `mapstructure:",squash"`
	Database   DatabaseConfig  `mapstructure:"database"`
	Redis      RedisConfig     `mapstructure:"redis"`
	POA        POAConfig       `mapstructure:"poa"`
	Solana     SolanaConfig    `mapstructure:"solana"`
	Core       CoreConfig      `mapstructure:"core"`
	Consensus  ConsensusConfig `mapstructure:"consensus"`
	Worker     WorkerConfig    `mapstructure:"worker"`
}

// RelayConfig holds configuration for the challenge relay
type RelayConfig struct {
	BaseConfig    `mapstructure:",squash"`
	Database      DatabaseConfig `mapstructure:"database"`
	NATS          NATSConfig     `mapstructure:"nats"`
	DrainInterval time.Duration  `mapstructure:"drain_interval"`
}

// StatusAPIConfig holds configuration for the status API server
type StatusAPIConfig struct {
	BaseConfig `mapstructure:",squash"`
	Database   DatabaseConfig `mapstructure:"database"`
	Server     ServerConfig   `mapstructure:"server"`
}

// LoadIndexerConfig loads configuration for the indexer worker
func LoadIndexerConfig(configFile string, envPath string) (*IndexerConfig, error) {
	v := configureViper("indexer", configFile, envPath)

	// Set defaults
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "5m")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("solana.timeout", "30s")
	v.SetDefault("core.timeout", "30s")
	v.SetDefault("consensus.quorum", 0.8)
	v.SetDefault("consensus.timeout", "10s")
	v.SetDefault("worker.stream", "entity_manager")
	v.SetDefault("worker.poll_interval", "2s")
	v.SetDefault("worker.maintenance_interval", "30s")
	v.SetDefault("worker.lock_ttl", "1m")
	v.SetDefault("worker.rpc_rate_limit", 20)
	v.SetDefault("worker.metrics_addr", ":9090")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config IndexerConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.Database.Host == "" {
		return nil, errors.New("database.host is required")
	}
	if config.Database.DBName == "" {
		return nil, errors.New("database.dbname is required")
	}

	return &config, nil
}

// LoadRelayConfig loads configuration for the challenge relay
func LoadRelayConfig(configFile string, envPath string) (*RelayConfig, error) {
	v := configureViper("challenge-relay", configFile, envPath)

	// Set defaults
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.max_reconnects", 10)
	v.SetDefault("nats.reconnect_wait", "2s")
	v.SetDefault("nats.connection_name", "challenge-relay")
	v.SetDefault("drain_interval", "1s")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config RelayConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

// LoadStatusAPIConfig loads configuration for the status API server
func LoadStatusAPIConfig(configFile string, envPath string) (*StatusAPIConfig, error) {
	v := configureViper("status-api", configFile, envPath)

	// Set defaults
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("server.idle_timeout", 120)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config StatusAPIConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

// configureViper returns a viper instance with the config file and environment variables set
func configureViper(service string, configFile string, envPath string) *viper.Viper {
	v := viper.New()

	// Load environment variables
	loadEnv(envPath, service)

	// Set config file
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(fmt.Sprintf("cmd/%s/", service))
		v.AddConfigPath("config/")
	}

	// Set environment variables
	v.SetEnvPrefix("DISCOVERY_INDEXER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicitly bind all environment variables
	bindAllEnvVars(v)
	return v
}

// bindAllEnvVars explicitly binds all possible environment variables.
// This is required for viper to map env vars to config struct fields
// when no config file exists.
func bindAllEnvVars(v *viper.Viper) {
	keys := []string{
		"debug",
		"sentry_dsn",
		// Database
		"database.host",
		"database.port",
		"database.user",
		"database.password",
		"database.dbname",
		"database.sslmode",
		"database.max_open_conns",
		"database.max_idle_conns",
		"database.conn_max_lifetime",
		// Redis
		"redis.addr",
		"redis.password",
		"redis.db",
		// NATS
		"nats.url",
		"nats.max_reconnects",
		"nats.reconnect_wait",
		"nats.connection_name",
		// POA chain
		"poa.rpc_url",
		"poa.contract_address",
		"poa.cutover_offset",
		"poa.final_height",
		// Solana chain
		"solana.rpc_url",
		"solana.cutover_offset",
		"solana.final_height",
		"solana.timeout",
		// Core chain
		"core.endpoint",
		"core.cutover_offset",
		"core.timeout",
		// Consensus
		"consensus.peers",
		"consensus.quorum",
		"consensus.timeout",
		// Worker
		"worker.stream",
		"worker.start_height",
		"worker.poll_interval",
		"worker.maintenance_interval",
		"worker.lock_ttl",
		"worker.rpc_rate_limit",
		"worker.metrics_addr",
		// Server
		"server.host",
		"server.port",
		"server.read_timeout",
		"server.write_timeout",
		"server.idle_timeout",
		// Relay
		"drain_interval",
	}

	for _, key := range keys {
		_ = v.BindEnv(key)
	}
}

// loadEnv loads environment variables from the config directory
func loadEnv(envPath string, service string) {
	envFiles := []string{".env", ".env.local"}
	if service != "" {
		envFiles = append(envFiles, ".env."+service+".local")
	}

	if envPath == "" {
		envPath = "config/"
	}

	for _, envFile := range envFiles {
		candidate := filepath.Join(envPath, envFile)
		_ = godotenv.Overload(candidate) // Overload lets later files override earlier ones
	}
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}
