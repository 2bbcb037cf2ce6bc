package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"go.yaml.in/yaml/v4"
)

// DefaultClientURL is the storefront origin allowed by CORS when none is configured.
const DefaultClientURL = "http://localhost:3000"

type Config struct {
	App       AppConfig       `yaml:"app"`
	Database  DatabaseConfig  `yaml:"database"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	Shipping  ShippingConfig  `yaml:"shipping"`
	Payment   PaymentConfig   `yaml:"payment"`
	KeepAlive KeepAliveConfig `yaml:"keepalive"`
	Worker    WorkerConfig    `yaml:"worker"`
}

type AppConfig struct {
	Env       string `yaml:"env"`
	HTTPAddr  string `yaml:"http_addr"`
	LogLevel  string `yaml:"log_level"`
	ClientURL string `yaml:"client_url"`
	Version   string `yaml:"version"`

	KafkaConsumerGroup      string `yaml:"kafka_consumer_group"`
	TrackingCacheTTLSeconds int    `yaml:"tracking_cache_ttl_seconds"`
	RateLimitPerMinute      int    `yaml:"rate_limit_per_minute"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

type KafkaConfig struct {
	Host                     string `yaml:"host"`
	Port                     int    `yaml:"port"`
	ShippingUpdatedTopicName string `yaml:"shipping_updated_topic_name"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type ShippingConfig struct {
	BaseURL         string `yaml:"base_url"`
	Email           string `yaml:"email"`
	Password        string `yaml:"password"`
	PickupPincode   string `yaml:"pickup_pincode"`
	PickupLocation  string `yaml:"pickup_location"`
	ProductCategory string `yaml:"product_category"`
	HSN             int    `yaml:"hsn"`
	OrderNotes      string `yaml:"order_notes"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
	// "shiprocket" | "fake"; empty picks shiprocket when credentials are present.
	Mode string `yaml:"mode"`
}

type PaymentConfig struct {
	BaseURL        string `yaml:"base_url"`
	KeyID          string `yaml:"key_id"`
	KeySecret      string `yaml:"key_secret"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type KeepAliveConfig struct {
	Enabled               bool   `yaml:"enabled"`
	BackendURL            string `yaml:"backend_url"`
	PingIntervalMs        int    `yaml:"ping_interval_ms"`
	HealthCheckIntervalMs int    `yaml:"health_check_interval_ms"`
}

type WorkerConfig struct {
	HTTPAddr            string `yaml:"http_addr"`
	PollIntervalSeconds int    `yaml:"poll_interval_seconds"`
	BatchSize           int    `yaml:"batch_size"`
	LeaseSeconds        int    `yaml:"lease_seconds"`
	RateLimitPerMinute  int    `yaml:"rate_limit_per_minute"`

	// Next-sync scheduling (optional). Defaults: IN_TRANSIT 30..120 minutes, other 90 minutes,
	// backoff 5/15/30/60 minutes.
	NextSyncInTransitMinSeconds int `yaml:"next_sync_in_transit_min_seconds"`
	NextSyncInTransitMaxSeconds int `yaml:"next_sync_in_transit_max_seconds"`
	NextSyncUnknownSeconds      int `yaml:"next_sync_unknown_seconds"`
	Backoff1Seconds             int `yaml:"backoff_1_seconds"`
	Backoff2Seconds             int `yaml:"backoff_2_seconds"`
	Backoff3Seconds             int `yaml:"backoff_3_seconds"`
	Backoff4Seconds             int `yaml:"backoff_4_seconds"`
}

// LoadConfig reads the YAML file (when filename is set) and then applies environment overrides.
func LoadConfig(filename string) (*Config, error) {
	var config Config
	if filename != "" {
		data, err := os.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
		}
	}

	applyEnv(&config, viper.New())
	if config.App.ClientURL == "" {
		config.App.ClientURL = DefaultClientURL
	}
	return &config, nil
}

// applyEnv lets deploy-specific values and secrets come from the environment.
func applyEnv(cfg *Config, v *viper.Viper) {
	v.AutomaticEnv()

	str := func(key string, dst *string) {
		if val := strings.TrimSpace(v.GetString(key)); val != "" {
			*dst = val
		}
	}
	num := func(key string, dst *int) {
		if v.IsSet(key) {
			if n := v.GetInt(key); n > 0 {
				*dst = n
			}
		}
	}

	str("APP_ENV", &cfg.App.Env)
	str("LOG_LEVEL", &cfg.App.LogLevel)
	str("CLIENT_URL", &cfg.App.ClientURL)
	if port := strings.TrimSpace(v.GetString("PORT")); port != "" {
		cfg.App.HTTPAddr = ":" + port
	}

	str("SHIPROCKET_EMAIL", &cfg.Shipping.Email)
	str("SHIPROCKET_PASSWORD", &cfg.Shipping.Password)
	str("SHIPROCKET_PICKUP_PINCODE", &cfg.Shipping.PickupPincode)

	str("RAZORPAY_KEY_ID", &cfg.Payment.KeyID)
	str("RAZORPAY_KEY_SECRET", &cfg.Payment.KeySecret)

	str("BACKEND_URL", &cfg.KeepAlive.BackendURL)
	if cfg.KeepAlive.BackendURL == "" {
		str("RENDER_EXTERNAL_URL", &cfg.KeepAlive.BackendURL)
	}
	if v.GetString("ENABLE_WAKEUP") == "true" {
		cfg.KeepAlive.Enabled = true
	}
	num("WAKEUP_INTERVAL_MS", &cfg.KeepAlive.PingIntervalMs)
	num("HEALTH_CHECK_INTERVAL_MS", &cfg.KeepAlive.HealthCheckIntervalMs)
}
