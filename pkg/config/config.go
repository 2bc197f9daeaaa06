package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required,oneof=development staging production test"`
	Timezone    string `yaml:"timezone" default:"Asia/Seoul" validate:"required"`

	Log        LogConfig        `yaml:"log"`
	Server     ServerConfig     `yaml:"server"`
	Backend    BackendConfig    `yaml:"backend"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	Redis      RedisConfig      `yaml:"redis"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Queue      QueueConfig      `yaml:"queue"`
	Schedule   ScheduleConfig   `yaml:"schedule"`
	Workers    WorkersConfig    `yaml:"workers"`
	Settlement SettlementConfig `yaml:"settlement"`
	Holding    HoldingConfig    `yaml:"holding"`
	Analytics  AnalyticsConfig  `yaml:"analytics"`
	Portfolio  PortfolioConfig  `yaml:"portfolio"`
	Profile    ProfileConfig    `yaml:"profile"`
}

type LogConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" default:"console" validate:"oneof=console json"`
	Output string `yaml:"output" default:"stdout"`
}

type ServerConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host" default:"0.0.0.0"`
	Port            int           `yaml:"port" default:"8080" validate:"gt=0,lt=65536"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`

	// Job triggers allowed per client: a burst, then TriggerPerMinute.
	TriggerBurst     int     `yaml:"trigger_burst" default:"5" validate:"gte=1"`
	TriggerPerMinute float64 `yaml:"trigger_per_minute" default:"6" validate:"gt=0"`
}

type BackendConfig struct {
	// clickhouse persists to ClickHouse; memory keeps everything in process.
	Type string `yaml:"type" default:"clickhouse" validate:"oneof=clickhouse memory"`
}

type ClickHouseConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port" default:"9000"`
	Database         string        `yaml:"database" default:"pasture"`
	User             string        `yaml:"user" default:"default"`
	Password         string        `yaml:"password"`
	UseHTTP          bool          `yaml:"use_http"`
	AsyncInsert      bool          `yaml:"async_insert"`
	WaitForAsync     bool          `yaml:"wait_for_async_insert"`
	MaxOpenConns     int           `yaml:"max_open_conns" default:"10"`
	MaxIdleConns     int           `yaml:"max_idle_conns" default:"5"`
	DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
}

type RedisConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Host          string        `yaml:"host" default:"localhost"`
	Port          int           `yaml:"port" default:"6379"`
	Password      string        `yaml:"password"`
	DB            int           `yaml:"db"`
	PoolSize      int           `yaml:"pool_size" default:"10"`
	Prefix        string        `yaml:"prefix" default:"pasture"`
	PriceCacheTTL time.Duration `yaml:"price_cache_ttl" default:"30m"`
	LockTTL       time.Duration `yaml:"lock_ttl" default:"10m"`
}

type KafkaConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Brokers      []string `yaml:"brokers"`
	EventsTopic  string   `yaml:"events_topic" default:"pasture.records"`
	IngestTopic  string   `yaml:"ingest_topic" default:"pasture.ingest"`
	RequiredAcks int      `yaml:"required_acks" default:"-1"`
	Compression  string   `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd"`
	Producer     struct {
		MaxAttempts  int           `yaml:"max_attempts" default:"3"`
		Linger       time.Duration `yaml:"linger" default:"200ms"`
		BatchSize    int           `yaml:"batch_size" default:"100"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
	} `yaml:"producer"`
	Consumer struct {
		GroupID    string        `yaml:"group_id" default:"pasture"`
		Workers    int           `yaml:"workers" default:"2"`
		BufferSize int           `yaml:"buffer_size" default:"64"`
		RetryMax   int           `yaml:"retry_max" default:"3"`
		BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
		BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
		DLQTopic   string        `yaml:"dlq_topic"`
	} `yaml:"consumer"`
}

type QueueConfig struct {
	// local runs jobs in process; redis shares them between replicas.
	Driver     string        `yaml:"driver" default:"local" validate:"oneof=local redis"`
	Workers    int           `yaml:"workers" default:"2" validate:"gt=0"`
	QueueSize  int           `yaml:"queue_size" default:"128" validate:"gt=0"`
	RetryLimit int           `yaml:"retry_limit"`
	RetryDelay time.Duration `yaml:"retry_delay" default:"30s"`
}

type ScheduleConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Settlement  time.Duration `yaml:"settlement" default:"1h"`
	Holding     time.Duration `yaml:"holding" default:"1h"`
	Portfolio   time.Duration `yaml:"portfolio" default:"24h"`
	Profile     time.Duration `yaml:"profile" default:"24h"`
	Correlation time.Duration `yaml:"correlation" default:"24h"`
}

type WorkersConfig struct {
	// Accounts bounds how many accounts are rebuilt concurrently.
	Accounts int `yaml:"accounts" default:"4" validate:"gt=0"`
}

type SettlementConfig struct {
	Currency         string   `yaml:"currency" default:"USD" validate:"required"`
	RateLookbackDays int      `yaml:"rate_lookback_days" default:"5" validate:"gte=1"`
	TradeTypes       []string `yaml:"trade_types" default:"[\"DEPOSIT_INTEREST\",\"DEPOSIT_KRW\",\"WITHDRAW_KRW\",\"DEPOSIT_USD\",\"WITHDRAW_USD\",\"DIVIDEND_INPUT_USD\",\"EXCHANGE_USD\"]" validate:"min=1"`
}

type HoldingConfig struct {
	PriceLookbackDays int `yaml:"price_lookback_days" default:"10" validate:"gte=0"`
}

type AnalyticsConfig struct {
	CorrMethod   string  `yaml:"corr_method" default:"pearson" validate:"oneof=pearson spearman"`
	CorrPeriods  int     `yaml:"corr_periods" default:"5" validate:"gte=1"`
	MinPeriods   int     `yaml:"min_periods" default:"20" validate:"gte=1"`
	Linkage      string  `yaml:"linkage" default:"single" validate:"oneof=single average complete"`
	Temperature  float64 `yaml:"temperature" default:"0.5" validate:"gt=0"`
	RiskFreeRate float64 `yaml:"risk_free_rate"`
	TradingDays  int     `yaml:"trading_days" default:"252" validate:"gt=0"`
}

type PortfolioConfig struct {
	Model        string   `yaml:"model" default:"SAHRP" validate:"oneof=HRP AHRP SAHRP"`
	Symbols      []string `yaml:"symbols"`
	Universe     string   `yaml:"universe"`
	LookbackDays int      `yaml:"lookback_days" default:"180" validate:"gt=1"`
	MinDays      int      `yaml:"min_days" default:"20" validate:"gte=0"`
	Years        int      `yaml:"years" default:"2" validate:"gt=0"`
}

type ProfileConfig struct {
	Periods           []string `yaml:"periods" default:"[\"1M\",\"3M\",\"6M\",\"1Y\",\"3Y\"]" validate:"dive,oneof=1M 3M 6M 1Y 3Y 5Y"`
	AssetType         string   `yaml:"asset_type" default:"E"`
	CorrelationPeriod string   `yaml:"correlation_period" default:"1Y" validate:"oneof=1M 3M 6M 1Y 3Y 5Y"`
}

var validate = validator.New()

// Load reads a YAML file, applies defaults and validates the result.
func Load(path string) (*Config, error) {
	c, err := parse(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv is Load with environment overrides applied before validation.
func LoadWithEnv(path string) (*Config, error) {
	c, err := parse(path)
	if err != nil {
		return nil, err
	}
	c.applyEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Default returns a configuration built purely from struct defaults.
func Default() *Config {
	var c Config
	_ = defaults.Set(&c)
	return &c
}

func parse(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	return &c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("PASTURE_ENV"); v != "" {
		c.Environment = v
	}
	if v := getenv("PASTURE_BACKEND"); v != "" {
		c.Backend.Type = v
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
		c.Redis.Enabled = true
	}
	if v := getenv("REDIS_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Redis.Port = p
		}
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := getenv("PORTFOLIO_SYMBOLS"); v != "" {
		c.Portfolio.Symbols = strings.Split(v, ",")
	}
}

// Validate checks field constraints and cross-section requirements.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Backend.Type == "clickhouse" && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required for backend %q", c.Backend.Type)
	}
	if c.Queue.Driver == "redis" && !c.Redis.Enabled {
		return fmt.Errorf("queue.driver redis requires redis.enabled")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("timezone: %w", err)
	}
	return nil
}

// Location returns the configured business timezone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
