package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-emergency-notifier/internal/delivery"
	"github.com/tinywideclouds/go-emergency-notifier/internal/payload"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
)

const (
	defaultListenAddr  = ":8080"
	defaultIdentityURL = "http://localhost:3000"
	defaultCacheTTL    = 24 * time.Hour
)

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

type VapidConfig struct {
	PublicKey       string
	PrivateKey      string
	SubscriberEmail string
	TTL             int
}

// APNsConfig enables direct delivery to raw APNs device tokens using a
// token-based (.p8) provider key.
type APNsConfig struct {
	Enabled    bool
	KeyFile    string
	KeyID      string
	TeamID     string
	Topic      string
	Production bool
}

type DeliveryConfig struct {
	BatchSize    int
	BatchTimeout time.Duration
}

type BreakerConfig struct {
	Enabled             bool
	MaxRequests         uint32
	Interval            time.Duration
	Timeout             time.Duration
	ConsecutiveFailures uint32
}

// Config defines the *single*, authoritative configuration.
type Config struct {
	ProjectID              string
	ListenAddr             string
	SubscriptionID         string
	SubscriptionDLQTopicID string
	NumPipelineWorkers     int
	IdentityServiceURL     string

	CorsConfig middleware.CorsConfig
	Redis      RedisConfig
	Vapid      VapidConfig
	APNs       APNsConfig
	Delivery   DeliveryConfig
	Breaker    BreakerConfig

	BrandName   string
	WelcomeText string

	TopicID              string
	PubsubConsumerConfig *messagepipeline.GooglePubsubConsumerConfig
}

// UpdateConfigWithEnvOverrides applies environment variables and final validation.
func UpdateConfigWithEnvOverrides(cfg *Config, logger *slog.Logger) (*Config, error) {
	logger.Debug("Applying environment variable overrides...")

	// 1. Apply Environment Overrides
	if val := os.Getenv("PROJECT_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "PROJECT_ID", "source", "env")
		cfg.ProjectID = val
	}
	if val := os.Getenv("PORT"); val != "" {
		logger.Debug("Overriding config value", "key", "PORT", "source", "env")
		cfg.ListenAddr = ":" + val
	}
	if val := os.Getenv("SUBSCRIPTION_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "SUBSCRIPTION_ID", "source", "env")
		cfg.SubscriptionID = val
		cfg.PubsubConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(val)
	}
	if val := os.Getenv("TOPIC_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "TOPIC_ID", "source", "env")
		cfg.TopicID = val
	}
	if val := os.Getenv("SUBSCRIPTION_DLQ_TOPIC_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "SUBSCRIPTION_DLQ_TOPIC_ID", "source", "env")
		cfg.SubscriptionDLQTopicID = val
	}
	if val := os.Getenv("NUM_PIPELINE_WORKERS"); val != "" {
		if workers, err := strconv.Atoi(val); err == nil && workers > 0 {
			logger.Debug("Overriding config value", "key", "NUM_PIPELINE_WORKERS", "source", "env")
			cfg.NumPipelineWorkers = workers
		}
	}
	if val := os.Getenv("IDENTITY_SERVICE_URL"); val != "" {
		logger.Debug("Overriding config value", "key", "IDENTITY_SERVICE_URL", "source", "env")
		cfg.IdentityServiceURL = val
	}

	// Redis Overrides
	if val := os.Getenv("REDIS_ADDR"); val != "" {
		cfg.Redis.Addr = val
		cfg.Redis.Enabled = true
	}
	if val := os.Getenv("REDIS_PASSWORD"); val != "" {
		cfg.Redis.Password = val
	}
	if val := os.Getenv("REDIS_DB"); val != "" {
		if db, err := strconv.Atoi(val); err == nil {
			cfg.Redis.DB = db
		}
	}
	if val := os.Getenv("REDIS_ENABLED"); val != "" {
		enabled, _ := strconv.ParseBool(val)
		cfg.Redis.Enabled = enabled
	}

	// VAPID Overrides
	if val := os.Getenv("VAPID_PUBLIC_KEY"); val != "" {
		logger.Debug("Overriding config value", "key", "VAPID_PUBLIC_KEY", "source", "env")
		cfg.Vapid.PublicKey = val
	}
	if val := os.Getenv("VAPID_PRIVATE_KEY"); val != "" {
		logger.Debug("Overriding config value", "key", "VAPID_PRIVATE_KEY", "source", "env")
		cfg.Vapid.PrivateKey = val
	}
	if val := os.Getenv("VAPID_SUB_EMAIL"); val != "" {
		logger.Debug("Overriding config value", "key", "VAPID_SUB_EMAIL", "source", "env")
		cfg.Vapid.SubscriberEmail = val
	}

	// APNs Overrides
	if val := os.Getenv("APNS_KEY_FILE"); val != "" {
		logger.Debug("Overriding config value", "key", "APNS_KEY_FILE", "source", "env")
		cfg.APNs.KeyFile = val
		cfg.APNs.Enabled = true
	}
	if val := os.Getenv("APNS_KEY_ID"); val != "" {
		cfg.APNs.KeyID = val
	}
	if val := os.Getenv("APNS_TEAM_ID"); val != "" {
		cfg.APNs.TeamID = val
	}
	if val := os.Getenv("APNS_TOPIC"); val != "" {
		cfg.APNs.Topic = val
	}
	if val := os.Getenv("APNS_PRODUCTION"); val != "" {
		prod, _ := strconv.ParseBool(val)
		cfg.APNs.Production = prod
	}

	// Delivery Overrides
	if val := os.Getenv("DELIVERY_BATCH_SIZE"); val != "" {
		if size, err := strconv.Atoi(val); err == nil {
			logger.Debug("Overriding config value", "key", "DELIVERY_BATCH_SIZE", "source", "env")
			cfg.Delivery.BatchSize = size
		}
	}
	if val := os.Getenv("DELIVERY_BATCH_TIMEOUT"); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return nil, fmt.Errorf("invalid DELIVERY_BATCH_TIMEOUT %q: %w", val, err)
		}
		cfg.Delivery.BatchTimeout = d
	}
	if val := os.Getenv("BREAKER_ENABLED"); val != "" {
		enabled, _ := strconv.ParseBool(val)
		cfg.Breaker.Enabled = enabled
	}

	if val := os.Getenv("BRAND_NAME"); val != "" {
		cfg.BrandName = val
	}
	if val := os.Getenv("WELCOME_TEXT"); val != "" {
		cfg.WelcomeText = val
	}

	// CORS Overrides
	if corsOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); corsOrigins != "" {
		logger.Debug("Overriding config value", "key", "CORS_ALLOWED_ORIGINS", "source", "env")
		rawOrigins := strings.Split(corsOrigins, ",")
		var cleanOrigins []string
		for _, o := range rawOrigins {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				cleanOrigins = append(cleanOrigins, trimmed)
			}
		}
		cfg.CorsConfig.AllowedOrigins = cleanOrigins
	}

	// 2. Final Validation
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("project_id is required (set via YAML or PROJECT_ID env var)")
	}
	if cfg.SubscriptionID == "" {
		return nil, fmt.Errorf("subscription_id is required (set via YAML or SUBSCRIPTION_ID env var)")
	}
	if cfg.Delivery.BatchSize > delivery.MaxBatchSize {
		return nil, fmt.Errorf("delivery batch_size %d exceeds the gateway limit of %d", cfg.Delivery.BatchSize, delivery.MaxBatchSize)
	}
	if cfg.APNs.Enabled && (cfg.APNs.KeyID == "" || cfg.APNs.TeamID == "" || cfg.APNs.Topic == "") {
		return nil, fmt.Errorf("apns requires key_id, team_id and topic when enabled")
	}

	// 3. Defaults
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultListenAddr
	}
	if cfg.NumPipelineWorkers <= 0 {
		cfg.NumPipelineWorkers = 1
	}
	if cfg.IdentityServiceURL == "" {
		cfg.IdentityServiceURL = defaultIdentityURL
	}
	if cfg.Delivery.BatchSize <= 0 {
		cfg.Delivery.BatchSize = delivery.MaxBatchSize
	}
	if cfg.Delivery.BatchTimeout <= 0 {
		cfg.Delivery.BatchTimeout = delivery.DefaultBatchTimeout
	}
	if cfg.Redis.TTL <= 0 {
		cfg.Redis.TTL = defaultCacheTTL
	}
	if cfg.BrandName == "" {
		cfg.BrandName = payload.DefaultBrand
	}

	if cfg.PubsubConsumerConfig == nil && cfg.SubscriptionID != "" {
		cfg.PubsubConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(cfg.SubscriptionID)
	}

	logger.Debug("Configuration finalized and validated successfully")
	return cfg, nil
}
