package conf

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/devricklin/feishu-vault/internal/logging"
)

// Defaults
const (
	defaultAPIAddr          = "127.0.0.1:9876"
	defaultBroadcastRate    = 5
	defaultTimeoutSeconds   = 15
	defaultDeepLinkTemplate = "https://applink.feishu.cn/client/bot/open?appId=%s"
)

// Config represents application configuration
type Config struct {
	// Feishu configuration
	Feishu FeishuConfig

	// Vault configuration
	Vault VaultConfig

	// Operator HTTP API
	API APIConfig

	// Logging
	Log LogConfig

	// Reply texts (loaded from YAML)
	Replies *RepliesConfig

	// Debug mode
	Debug bool
}

// FeishuConfig contains Feishu configuration
type FeishuConfig struct {
	AppID     string `env:"FEISHU_APP_ID" validate:"required"`
	AppSecret string `env:"FEISHU_APP_SECRET" validate:"required"`
}

// VaultConfig contains the vault bot configuration
type VaultConfig struct {
	OperatorID    string        `env:"VAULT_OPERATOR_ID" validate:"required"`
	DBPath        string        `env:"VAULT_DB_PATH" validate:"required"`
	DeepLinkBase  string        `env:"DEEP_LINK_BASE" validate:"required,url"`
	BroadcastRate float64       `env:"BROADCAST_RATE" validate:"gte=0"`
	SendTimeout   time.Duration `env:"SEND_TIMEOUT_SECONDS" validate:"gt=0"`
	DeleteTimeout time.Duration `env:"DELETE_TIMEOUT_SECONDS" validate:"gt=0"`
}

// APIConfig contains the operator HTTP API configuration
type APIConfig struct {
	Addr string `env:"API_ADDR" validate:"required,hostname_port"`
}

// LogConfig contains logging configuration
type LogConfig struct {
	Level  string `env:"LOG_LEVEL" validate:"omitempty,oneof=trace debug info warn warning error disabled off"`
	Format string `env:"LOG_FORMAT" validate:"omitempty,oneof=json console"`
}

// LoadFromEnv loads configuration from environment variables.
// Malformed numbers are reported as *ConfigError; call Validate afterwards.
func LoadFromEnv() (*Config, error) {
	dbPath := os.Getenv("VAULT_DB_PATH")
	if dbPath == "" {
		homeDir, _ := os.UserHomeDir()
		dbPath = filepath.Join(homeDir, ".feishu-vault", "vault.db")
	}

	appID := os.Getenv("FEISHU_APP_ID")
	deepLinkBase := os.Getenv("DEEP_LINK_BASE")
	if deepLinkBase == "" && appID != "" {
		deepLinkBase = fmt.Sprintf(defaultDeepLinkTemplate, url.QueryEscape(appID))
	}

	apiAddr := os.Getenv("API_ADDR")
	if apiAddr == "" {
		apiAddr = defaultAPIAddr
	}

	broadcastRate := float64(defaultBroadcastRate)
	if val := os.Getenv("BROADCAST_RATE"); val != "" {
		parsed, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return nil, &ConfigError{Field: "BROADCAST_RATE", Message: "must be a number"}
		}
		broadcastRate = parsed
	}

	sendTimeout, err := secondsFromEnv("SEND_TIMEOUT_SECONDS", defaultTimeoutSeconds)
	if err != nil {
		return nil, err
	}
	deleteTimeout, err := secondsFromEnv("DELETE_TIMEOUT_SECONDS", defaultTimeoutSeconds)
	if err != nil {
		return nil, err
	}

	replies, loadedPath, err := LoadRepliesConfig(os.Getenv("REPLIES_CONFIG_PATH"))
	if err != nil {
		return nil, &ConfigError{Field: "REPLIES_CONFIG_PATH", Message: err.Error()}
	}
	if loadedPath != "" {
		log := logging.Logger("config")
		log.Info().Str("path", loadedPath).Msg("loaded reply texts")
	}

	debug := os.Getenv("DEBUG") == "true"
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" && debug {
		logLevel = "debug"
	}

	return &Config{
		Feishu: FeishuConfig{
			AppID:     appID,
			AppSecret: os.Getenv("FEISHU_APP_SECRET"),
		},
		Vault: VaultConfig{
			OperatorID:    os.Getenv("VAULT_OPERATOR_ID"),
			DBPath:        dbPath,
			DeepLinkBase:  deepLinkBase,
			BroadcastRate: broadcastRate,
			SendTimeout:   sendTimeout,
			DeleteTimeout: deleteTimeout,
		},
		API: APIConfig{
			Addr: apiAddr,
		},
		Log: LogConfig{
			Level:  logLevel,
			Format: os.Getenv("LOG_FORMAT"),
		},
		Replies: replies,
		Debug:   debug,
	}, nil
}

func secondsFromEnv(key string, def int) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return time.Duration(def) * time.Second, nil
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return 0, &ConfigError{Field: key, Message: "must be whole seconds"}
	}
	return time.Duration(parsed) * time.Second, nil
}

// ToLoggingConfig converts to logging configuration
func (c *LogConfig) ToLoggingConfig() logging.Config {
	return logging.Config{Level: c.Level, Format: c.Format}
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// getValidator returns the shared validator. Field names in errors are the
// environment variable names from the env tag.
func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			return f.Tag.Get("env")
		})
	})
	return validate
}

// Validate validates the configuration and reports the first failure
func (c *Config) Validate() error {
	err := getValidator().Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &ConfigError{Field: "config", Message: err.Error()}
	}
	fe := verrs[0]
	return &ConfigError{Field: fe.Field(), Message: describe(fe)}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "url":
		return "must be an absolute URL"
	case "hostname_port":
		return "must be host:port"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	}
	return "failed " + fe.Tag() + " check"
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
