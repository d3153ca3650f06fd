// Package config loads read-model configuration from defaults, an optional
// YAML file, a .env file and READMODEL_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "READMODEL_"

// Config holds all read-model configuration.
type Config struct {
	Network     string `yaml:"network" validate:"required,oneof=mainnet testnet devnet localnet"`
	RPCEndpoint string `yaml:"rpc_endpoint" validate:"required,url"`

	Events  EventTypes `yaml:"events"`
	Objects Objects    `yaml:"objects"`

	// DefaultEpochDuration is used when the locker object cannot be read.
	DefaultEpochDuration time.Duration `yaml:"default_epoch_duration" validate:"gt=0"`
	FetchConcurrency     int           `yaml:"fetch_concurrency" validate:"min=1,max=64"`

	Storage Storage `yaml:"storage"`
	Redis   Redis   `yaml:"redis"`
	Server  Server  `yaml:"server"`
	Logging Logging `yaml:"logging"`
}

// EventTypes are fully qualified Move event types.
type EventTypes struct {
	PoolCreated               string `yaml:"pool_created" validate:"required"`
	PoolConfigUpdated         string `yaml:"pool_config_updated" validate:"required"`
	VictoryAllocationsUpdated string `yaml:"victory_allocations_updated" validate:"required"`
	SUIAllocationsUpdated     string `yaml:"sui_allocations_updated" validate:"required"`
	WeeklyRevenueAdded        string `yaml:"weekly_revenue_added" validate:"required"`
}

// Pool returns the pool lifecycle event types.
func (e EventTypes) Pool() []string {
	return []string{e.PoolCreated, e.PoolConfigUpdated}
}

// Allocation returns the allocation event types.
func (e EventTypes) Allocation() []string {
	return []string{e.VictoryAllocationsUpdated, e.SUIAllocationsUpdated}
}

// Revenue returns the revenue event types.
func (e EventTypes) Revenue() []string {
	return []string{e.WeeklyRevenueAdded}
}

// All returns every configured event type.
func (e EventTypes) All() []string {
	out := append(e.Pool(), e.Allocation()...)
	return append(out, e.Revenue()...)
}

// Objects are ledger object ids. Empty ids are reported as fetch failures.
type Objects struct {
	Locker       string `yaml:"locker"`
	VictoryVault string `yaml:"victory_vault"`
	SUIVault     string `yaml:"sui_vault"`
}

// Storage selects the archive and history backends.
type Storage struct {
	UseMemory     bool   `yaml:"use_memory"`
	PostgresDSN   string `yaml:"postgres_dsn" validate:"required_unless=UseMemory true"`
	ClickhouseDSN string `yaml:"clickhouse_dsn" validate:"required_unless=UseMemory true"`
}

// Redis configures snapshot publishing. An empty Addr disables it.
type Redis struct {
	Addr     string `yaml:"addr" validate:"omitempty,hostname_port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" validate:"min=0,max=15"`
	Channel  string `yaml:"channel" validate:"required_with=Addr"`
	Key      string `yaml:"key" validate:"required_with=Addr"`
}

// Server configures the HTTP API and refresh loop.
type Server struct {
	Addr            string `yaml:"addr" validate:"required"`
	RefreshSchedule string `yaml:"refresh_schedule" validate:"required"`
}

// Logging configures the zap logger.
type Logging struct {
	Level    string `yaml:"level" validate:"oneof=debug info warn error"`
	Encoding string `yaml:"encoding" validate:"oneof=json console"`
}

// Default returns the configuration used before any file or environment
// override is applied.
func Default() Config {
	return Config{
		Network:              "mainnet",
		RPCEndpoint:          "https://fullnode.mainnet.sui.io:443",
		DefaultEpochDuration: 7 * 24 * time.Hour,
		FetchConcurrency:     8,
		Redis: Redis{
			Channel: "victory:snapshot",
			Key:     "victory:snapshot:latest",
		},
		Server: Server{
			Addr:            ":8080",
			RefreshSchedule: "@every 30s",
		},
		Logging: Logging{
			Level:    "info",
			Encoding: "json",
		},
	}
}

// Load reads configuration from path (optional) and ./.env.
func Load(path string) (*Config, error) {
	return LoadWithEnvFile(path, ".env")
}

// LoadWithEnvFile is Load with an explicit .env location. Variables already
// set in the process environment win over the file.
func LoadWithEnvFile(path, envFile string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and the refresh schedule syntax.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := cron.ParseStandard(c.Server.RefreshSchedule); err != nil {
		return fmt.Errorf("invalid config: refresh schedule %q: %w", c.Server.RefreshSchedule, err)
	}
	return nil
}

func applyEnv(c *Config) error {
	setString(&c.Network, "NETWORK")
	setString(&c.RPCEndpoint, "RPC_ENDPOINT")

	setString(&c.Events.PoolCreated, "EVENT_POOL_CREATED")
	setString(&c.Events.PoolConfigUpdated, "EVENT_POOL_CONFIG_UPDATED")
	setString(&c.Events.VictoryAllocationsUpdated, "EVENT_VICTORY_ALLOCATIONS_UPDATED")
	setString(&c.Events.SUIAllocationsUpdated, "EVENT_SUI_ALLOCATIONS_UPDATED")
	setString(&c.Events.WeeklyRevenueAdded, "EVENT_WEEKLY_REVENUE_ADDED")

	setString(&c.Objects.Locker, "LOCKER_OBJECT_ID")
	setString(&c.Objects.VictoryVault, "VICTORY_VAULT_ID")
	setString(&c.Objects.SUIVault, "SUI_VAULT_ID")

	setString(&c.Storage.PostgresDSN, "POSTGRES_DSN")
	setString(&c.Storage.ClickhouseDSN, "CLICKHOUSE_DSN")

	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	setString(&c.Redis.Channel, "REDIS_CHANNEL")
	setString(&c.Redis.Key, "REDIS_KEY")

	setString(&c.Server.Addr, "SERVER_ADDR")
	setString(&c.Server.RefreshSchedule, "REFRESH_SCHEDULE")

	setString(&c.Logging.Level, "LOG_LEVEL")
	setString(&c.Logging.Encoding, "LOG_ENCODING")

	if err := setDuration(&c.DefaultEpochDuration, "DEFAULT_EPOCH_DURATION"); err != nil {
		return err
	}
	if err := setInt(&c.FetchConcurrency, "FETCH_CONCURRENCY"); err != nil {
		return err
	}
	if err := setInt(&c.Redis.DB, "REDIS_DB"); err != nil {
		return err
	}
	return setBool(&c.Storage.UseMemory, "USE_MEMORY")
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + key)
	return strings.TrimSpace(v), ok && strings.TrimSpace(v) != ""
}

func setString(dst *string, key string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, key string) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
	}
	*dst = b
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
	}
	*dst = d
	return nil
}
