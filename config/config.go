package config

import (
	"fmt"
	"net/url"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/juju/errors"
	"gopkg.in/yaml.v3"

	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/apperr"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Logger    LoggerConfig    `yaml:"logger"`
	Database  DatabaseConfig  `yaml:"database"`
	API       APIConfig       `yaml:"api"`
	Sync      SyncConfig      `yaml:"sync"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

type ServerConfig struct {
	Environment  string `yaml:"environment"`
	GRPCPort     string `yaml:"grpc_port"`
	MetricsAddr  string `yaml:"metrics_addr"`
	ControlToken string `yaml:"control_token"`
}

type LoggerConfig struct {
	Level             string `yaml:"level"`
	Encoding          string `yaml:"encoding"`
	DisableCaller     bool   `yaml:"disable_caller"`
	DisableStacktrace bool   `yaml:"disable_stacktrace"`
}

type DatabaseConfig struct {
	URL         string        `yaml:"url"`
	Host        string        `yaml:"host"`
	Port        int           `yaml:"port"`
	User        string        `yaml:"user"`
	Password    string        `yaml:"password"`
	Database    string        `yaml:"database"`
	SSLMode     string        `yaml:"sslmode"`
	PoolSize    int           `yaml:"pool_size"`
	PoolTimeout time.Duration `yaml:"pool_timeout"`
	PoolRecycle time.Duration `yaml:"pool_recycle"`
}

type APIConfig struct {
	BaseURL           string        `yaml:"base_url"`
	ClientID          string        `yaml:"client_id"`
	ClientSecret      string        `yaml:"client_secret"`
	Timeout           time.Duration `yaml:"timeout"`
	RetryCount        int           `yaml:"retry_count"`
	RetryDelay        time.Duration `yaml:"retry_delay"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	BurstSize         int           `yaml:"burst_size"`
	PageDelay         time.Duration `yaml:"page_delay"`
	RateLimitPause    time.Duration `yaml:"rate_limit_pause"`
	PageSize          int           `yaml:"page_size"`
}

type TaskTimes struct {
	DailySyncTime     string `yaml:"daily_sync_time"`
	HistoryUpdateTime string `yaml:"history_update_time"`
	SyncTime          string `yaml:"sync_time"`
}

type SyncConfig struct {
	BatchSize           int           `yaml:"batch_size"`
	MaxHistoryDays      int           `yaml:"max_history_days"`
	HistoryRefreshDays  int           `yaml:"history_refresh_days"`
	EnableValidation    bool          `yaml:"enable_validation"`
	ParallelWorkers     int           `yaml:"parallel_workers"`
	JobTimeout          time.Duration `yaml:"job_timeout"`
	MergeAfterAnalytics bool          `yaml:"merge_after_analytics"`
	KeepDays            int           `yaml:"keep_days"`
	Debug               bool          `yaml:"debug"`
	ProductAnalytics    TaskTimes     `yaml:"product_analytics"`
	FbaInventory        TaskTimes     `yaml:"fba_inventory"`
	InventoryDetails    TaskTimes     `yaml:"inventory_details"`
}

type SchedulerConfig struct {
	Timezone         string        `yaml:"timezone"`
	MaxInstances     int           `yaml:"max_instances"`
	Coalesce         bool          `yaml:"coalesce"`
	MisfireGraceTime time.Duration `yaml:"misfire_grace_time"`
	Workers          int           `yaml:"workers"`
	ShutdownTimeout  time.Duration `yaml:"shutdown_timeout"`
	OverdueAfter     time.Duration `yaml:"overdue_after"`
	CleanupSpec      string        `yaml:"cleanup_spec"`
	SweeperSpec      string        `yaml:"sweeper_spec"`
}

// APICredentials is the immutable credential snapshot handed to the ERP client.
type APICredentials struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
}

// SyncSettings is the immutable tunables snapshot.
type SyncSettings struct {
	MaxRetries     int
	BatchSize      int
	Timeout        time.Duration
	RateLimitDelay time.Duration
	Validate       bool
	Debug          bool
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Environment: "production",
			GRPCPort:    ":9090",
			MetricsAddr: ":9102",
		},
		Logger: LoggerConfig{
			Level:             "info",
			Encoding:          "json",
			DisableStacktrace: true,
		},
		Database: DatabaseConfig{
			Host:        "localhost",
			Port:        5432,
			User:        "postgres",
			Database:    "sellfox",
			SSLMode:     "disable",
			PoolSize:    10,
			PoolTimeout: 30 * time.Second,
			PoolRecycle: time.Hour,
		},
		API: APIConfig{
			BaseURL:           "https://openapi.sellfox.com",
			Timeout:           30 * time.Second,
			RetryCount:        3,
			RetryDelay:        time.Second,
			RequestsPerMinute: 60,
			BurstSize:         1,
			PageDelay:         400 * time.Millisecond,
			RateLimitPause:    10 * time.Second,
			PageSize:          200,
		},
		Sync: SyncConfig{
			BatchSize:           200,
			MaxHistoryDays:      30,
			HistoryRefreshDays:  7,
			EnableValidation:    true,
			ParallelWorkers:     2,
			JobTimeout:          2 * time.Hour,
			MergeAfterAnalytics: true,
			KeepDays:            90,
			ProductAnalytics:    TaskTimes{DailySyncTime: "01:00", HistoryUpdateTime: "02:00"},
			FbaInventory:        TaskTimes{SyncTime: "06:00"},
			InventoryDetails:    TaskTimes{SyncTime: "06:30"},
		},
		Scheduler: SchedulerConfig{
			Timezone:         "Local",
			MaxInstances:     1,
			Coalesce:         true,
			MisfireGraceTime: 300 * time.Second,
			Workers:          4,
			ShutdownTimeout:  60 * time.Second,
			OverdueAfter:     3 * time.Hour,
			CleanupSpec:      "0 3 * * 0",
			SweeperSpec:      "@hourly",
		},
	}
}

// Load resolves configuration with precedence environment > .env > YAML > defaults.
// A missing YAML file is not an error; an unreadable or malformed one is.
func Load(yamlPath, envPath string) (*Config, error) {
	cfg := Default()

	if yamlPath != "" {
		raw, err := os.ReadFile(yamlPath)
		switch {
		case err == nil:
			if err := decodeYAML(raw, cfg); err != nil {
				return nil, &apperr.ConfigError{Problems: []string{fmt.Sprintf("parse %s: %v", yamlPath, err)}}
			}
		case !os.IsNotExist(err):
			return nil, errors.Annotatef(err, "read %s", yamlPath)
		}
	}

	// godotenv.Load never overrides variables already present in the environment.
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
			return nil, errors.Annotatef(err, "load %s", envPath)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func decodeYAML(raw []byte, cfg *Config) error {
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return err
	}
	if doc.Kind == 0 {
		return nil
	}
	secondsAsDurations(&doc, reflect.TypeOf(cfg).Elem())
	return doc.Decode(cfg)
}

var durationType = reflect.TypeOf(time.Duration(0))

// secondsAsDurations rewrites bare numbers under time.Duration fields as
// seconds, matching how the environment variables read.
func secondsAsDurations(n *yaml.Node, t reflect.Type) {
	switch n.Kind {
	case yaml.DocumentNode:
		for _, c := range n.Content {
			secondsAsDurations(c, t)
		}
	case yaml.MappingNode:
		if t.Kind() != reflect.Struct {
			return
		}
		for i := 0; i+1 < len(n.Content); i += 2 {
			f, ok := fieldByYAMLName(t, n.Content[i].Value)
			if !ok {
				continue
			}
			v := n.Content[i+1]
			if f.Type != durationType {
				secondsAsDurations(v, f.Type)
				continue
			}
			if v.Kind == yaml.ScalarNode {
				switch v.ShortTag() {
				case "!!int", "!!float":
					v.Value += "s"
					v.Tag = "!!str"
				}
			}
		}
	}
}

func fieldByYAMLName(t reflect.Type, name string) (reflect.StructField, bool) {
	for i := range t.NumField() {
		f := t.Field(i)
		if tag, _, _ := strings.Cut(f.Tag.Get("yaml"), ","); tag == name {
			return f, true
		}
	}
	return reflect.StructField{}, false
}

func applyEnv(cfg *Config) {
	cfg.API.ClientID = getEnv("SELLFOX_CLIENT_ID", cfg.API.ClientID)
	cfg.API.ClientSecret = getEnv("SELLFOX_CLIENT_SECRET", cfg.API.ClientSecret)
	cfg.API.BaseURL = getEnv("API_BASE_URL", cfg.API.BaseURL)
	cfg.Database.URL = getEnv("DATABASE_URL", cfg.Database.URL)
	cfg.Server.Environment = getEnv("ENVIRONMENT", cfg.Server.Environment)
	cfg.API.RetryCount = getEnvInt("MAX_RETRY_ATTEMPTS", cfg.API.RetryCount)
	cfg.Sync.BatchSize = getEnvInt("SYNC_BATCH_SIZE", cfg.Sync.BatchSize)
	cfg.Sync.JobTimeout = getEnvSeconds("SYNC_TIMEOUT", cfg.Sync.JobTimeout)
	cfg.API.PageDelay = getEnvSeconds("RATE_LIMIT_DELAY", cfg.API.PageDelay)

	cfg.Server.GRPCPort = getEnv("GRPC_PORT", cfg.Server.GRPCPort)
	cfg.Server.MetricsAddr = getEnv("METRICS_ADDR", cfg.Server.MetricsAddr)
	cfg.Server.ControlToken = getEnv("CONTROL_TOKEN", cfg.Server.ControlToken)
	cfg.Logger.Level = getEnv("LOGGER_LEVEL", cfg.Logger.Level)
	cfg.Logger.Encoding = getEnv("LOGGER_ENCODING", cfg.Logger.Encoding)
	cfg.Sync.Debug = getEnvBool("SYNC_DEBUG", cfg.Sync.Debug)
	cfg.Scheduler.Timezone = getEnv("SCHEDULER_TIMEZONE", cfg.Scheduler.Timezone)
}

func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "development"
}

// Validate checks every field and reports all problems at once.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.API.ClientID == "" && c.API.ClientSecret == "" {
		add("SELLFOX_CLIENT_ID and SELLFOX_CLIENT_SECRET are both empty")
	} else {
		if c.API.ClientID == "" {
			add("SELLFOX_CLIENT_ID is empty")
		}
		if c.API.ClientSecret == "" {
			add("SELLFOX_CLIENT_SECRET is empty")
		}
	}
	if u, err := url.Parse(c.API.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		add("api.base_url %q is not an absolute URL", c.API.BaseURL)
	}
	switch c.Server.Environment {
	case "development", "production":
	default:
		add("ENVIRONMENT must be development or production, got %q", c.Server.Environment)
	}
	if c.Database.URL == "" && c.Database.Host == "" {
		add("database url or host is required")
	}
	if c.Database.PoolSize <= 0 {
		add("database.pool_size must be positive")
	}
	if c.API.RetryCount < 0 {
		add("api.retry_count must not be negative")
	}
	if c.API.RequestsPerMinute <= 0 {
		add("api.requests_per_minute must be positive")
	}
	if c.API.BurstSize <= 0 {
		add("api.burst_size must be positive")
	}
	if c.API.PageSize < 1 || c.API.PageSize > 200 {
		add("api.page_size must be within 1..200")
	}
	if c.Sync.BatchSize <= 0 {
		add("sync.batch_size must be positive")
	}
	if c.Sync.ParallelWorkers <= 0 {
		add("sync.parallel_workers must be positive")
	}
	if c.Scheduler.Workers <= 0 {
		add("scheduler.workers must be positive")
	}
	// The scheduler skips a firing while the same job still runs.
	if c.Scheduler.MaxInstances != 1 {
		add("scheduler.max_instances must be 1, got %d", c.Scheduler.MaxInstances)
	}
	if _, err := c.Location(); err != nil {
		add("scheduler.timezone: %v", err)
	}
	for name, v := range map[string]string{
		"sync.product_analytics.daily_sync_time":     c.Sync.ProductAnalytics.DailySyncTime,
		"sync.product_analytics.history_update_time": c.Sync.ProductAnalytics.HistoryUpdateTime,
		"sync.fba_inventory.sync_time":               c.Sync.FbaInventory.SyncTime,
		"sync.inventory_details.sync_time":           c.Sync.InventoryDetails.SyncTime,
	} {
		if _, err := DailySpec(v); err != nil {
			add("%s: %v", name, err)
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return &apperr.ConfigError{Problems: problems}
}

func (c *Config) Location() (*time.Location, error) {
	if c.Scheduler.Timezone == "" || c.Scheduler.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Scheduler.Timezone)
}

func (c *Config) Credentials() APICredentials {
	return APICredentials{
		ClientID:     c.API.ClientID,
		ClientSecret: c.API.ClientSecret,
		BaseURL:      strings.TrimRight(c.API.BaseURL, "/"),
	}
}

func (c *Config) SyncSettings() SyncSettings {
	return SyncSettings{
		MaxRetries:     c.API.RetryCount,
		BatchSize:      c.Sync.BatchSize,
		Timeout:        c.Sync.JobTimeout,
		RateLimitDelay: c.API.PageDelay,
		Validate:       c.Sync.EnableValidation,
		Debug:          c.Sync.Debug,
	}
}

// DSN returns DATABASE_URL when set, otherwise a keyword/value string built
// from the discrete fields.
func (c *Config) DSN() string {
	if c.Database.URL != "" {
		return c.Database.URL
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host, c.Database.Port, c.Database.User, c.Database.Password,
		c.Database.Database, c.Database.SSLMode)
}

// Sanitized is safe to log: secrets are masked.
func (c *Config) Sanitized() map[string]any {
	return map[string]any{
		"environment":        c.Server.Environment,
		"api_base_url":       c.API.BaseURL,
		"client_id":          mask(c.API.ClientID),
		"client_secret":      mask(c.API.ClientSecret),
		"database":           redactURL(c.Database.URL, c.Database.Host, c.Database.Database),
		"pool_size":          c.Database.PoolSize,
		"retry_count":        c.API.RetryCount,
		"requests_per_min":   c.API.RequestsPerMinute,
		"batch_size":         c.Sync.BatchSize,
		"job_timeout":        c.Sync.JobTimeout.String(),
		"parallel_workers":   c.Sync.ParallelWorkers,
		"scheduler_timezone": c.Scheduler.Timezone,
		"scheduler_workers":  c.Scheduler.Workers,
		"debug":              c.Sync.Debug,
	}
}

// DailySpec converts "HH:MM" into a cron expression firing once a day.
func DailySpec(hhmm string) (string, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(hhmm))
	if err != nil {
		return "", errors.Errorf("time %q is not HH:MM", hhmm)
	}
	return fmt.Sprintf("%d %d * * *", t.Minute(), t.Hour()), nil
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + "****" + s[len(s)-2:]
}

func redactURL(raw, host, db string) string {
	if raw == "" {
		return host + "/" + db
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "<unparseable>"
	}
	if u.User != nil {
		u.User = url.User(u.User.Username())
	}
	return u.String()
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvSeconds accepts either a Go duration ("1.5s") or a bare number of seconds.
func getEnvSeconds(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return time.Duration(f * float64(time.Second))
	}
	return fallback
}
