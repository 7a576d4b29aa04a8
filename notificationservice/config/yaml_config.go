package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
)

type YamlCorsConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	Role           string   `yaml:"role"`
}

type YamlRedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Enabled  bool   `yaml:"enabled"`
	TTL      string `yaml:"ttl"`
}

type YamlVapidConfig struct {
	PublicKey       string `yaml:"public_key"`
	PrivateKey      string `yaml:"private_key"`
	SubscriberEmail string `yaml:"subscriber_email"`
	TTL             int    `yaml:"ttl_seconds"`
}

type YamlAPNsConfig struct {
	Enabled    bool   `yaml:"enabled"`
	KeyFile    string `yaml:"key_file"`
	KeyID      string `yaml:"key_id"`
	TeamID     string `yaml:"team_id"`
	Topic      string `yaml:"topic"`
	Production bool   `yaml:"production"`
}

type YamlDeliveryConfig struct {
	BatchSize    int    `yaml:"batch_size"`
	BatchTimeout string `yaml:"batch_timeout"`
}

type YamlBreakerConfig struct {
	Enabled             bool   `yaml:"enabled"`
	MaxRequests         uint32 `yaml:"max_requests"`
	Interval            string `yaml:"interval"`
	Timeout             string `yaml:"timeout"`
	ConsecutiveFailures uint32 `yaml:"consecutive_failures"`
}

// YamlConfig is the structure that mirrors the raw config.yaml file.
type YamlConfig struct {
	ProjectID              string             `yaml:"project_id"`
	ListenAddr             string             `yaml:"listen_addr"`
	IdentityServiceURL     string             `yaml:"identity_service_url"`
	TopicID                string             `yaml:"topic_id"`
	SubscriptionID         string             `yaml:"subscription_id"`
	SubscriptionDLQTopicID string             `yaml:"subscription_dlq_topic_id"`
	CorsConfig             YamlCorsConfig     `yaml:"cors"`
	RedisConfig            YamlRedisConfig    `yaml:"redis"`
	VapidConfig            YamlVapidConfig    `yaml:"vapid"`
	APNsConfig             YamlAPNsConfig     `yaml:"apns"`
	DeliveryConfig         YamlDeliveryConfig `yaml:"delivery"`
	BreakerConfig          YamlBreakerConfig  `yaml:"breaker"`
	NumPipelineWorkers     int                `yaml:"num_pipeline_workers"`
	BrandName              string             `yaml:"brand_name"`
	WelcomeText            string             `yaml:"welcome_text"`
}

// NewConfigFromYaml converts the YamlConfig into a clean, base Config struct.
func NewConfigFromYaml(baseCfg *YamlConfig, logger *slog.Logger) (*Config, error) {
	logger.Debug("Mapping YAML config to base config struct")

	redisTTL, err := parseDuration("redis.ttl", baseCfg.RedisConfig.TTL)
	if err != nil {
		return nil, err
	}
	batchTimeout, err := parseDuration("delivery.batch_timeout", baseCfg.DeliveryConfig.BatchTimeout)
	if err != nil {
		return nil, err
	}
	breakerInterval, err := parseDuration("breaker.interval", baseCfg.BreakerConfig.Interval)
	if err != nil {
		return nil, err
	}
	breakerTimeout, err := parseDuration("breaker.timeout", baseCfg.BreakerConfig.Timeout)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ProjectID:          baseCfg.ProjectID,
		ListenAddr:         baseCfg.ListenAddr,
		IdentityServiceURL: baseCfg.IdentityServiceURL,
		TopicID:            baseCfg.TopicID,
		SubscriptionID:     baseCfg.SubscriptionID,
		CorsConfig: middleware.CorsConfig{
			AllowedOrigins: baseCfg.CorsConfig.AllowedOrigins,
			Role:           middleware.CorsRole(baseCfg.CorsConfig.Role),
		},
		Redis: RedisConfig{
			Addr:     baseCfg.RedisConfig.Addr,
			Password: baseCfg.RedisConfig.Password,
			DB:       baseCfg.RedisConfig.DB,
			Enabled:  baseCfg.RedisConfig.Enabled,
			TTL:      redisTTL,
		},
		Vapid: VapidConfig{
			PublicKey:       baseCfg.VapidConfig.PublicKey,
			PrivateKey:      baseCfg.VapidConfig.PrivateKey,
			SubscriberEmail: baseCfg.VapidConfig.SubscriberEmail,
			TTL:             baseCfg.VapidConfig.TTL,
		},
		APNs: APNsConfig{
			Enabled:    baseCfg.APNsConfig.Enabled,
			KeyFile:    baseCfg.APNsConfig.KeyFile,
			KeyID:      baseCfg.APNsConfig.KeyID,
			TeamID:     baseCfg.APNsConfig.TeamID,
			Topic:      baseCfg.APNsConfig.Topic,
			Production: baseCfg.APNsConfig.Production,
		},
		Delivery: DeliveryConfig{
			BatchSize:    baseCfg.DeliveryConfig.BatchSize,
			BatchTimeout: batchTimeout,
		},
		Breaker: BreakerConfig{
			Enabled:             baseCfg.BreakerConfig.Enabled,
			MaxRequests:         baseCfg.BreakerConfig.MaxRequests,
			Interval:            breakerInterval,
			Timeout:             breakerTimeout,
			ConsecutiveFailures: baseCfg.BreakerConfig.ConsecutiveFailures,
		},
		BrandName:              baseCfg.BrandName,
		WelcomeText:            baseCfg.WelcomeText,
		SubscriptionDLQTopicID: baseCfg.SubscriptionDLQTopicID,
		NumPipelineWorkers:     baseCfg.NumPipelineWorkers,
	}

	if cfg.SubscriptionID != "" {
		cfg.PubsubConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(cfg.SubscriptionID)
	}

	logger.Debug("YAML config mapping complete",
		"project_id", cfg.ProjectID,
		"listen_addr", cfg.ListenAddr,
		"subscription_id", cfg.SubscriptionID,
		"batch_size", cfg.Delivery.BatchSize,
	)

	return cfg, nil
}

// parseDuration treats an empty value as unset.
func parseDuration(key, val string) (time.Duration, error) {
	if val == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	return d, nil
}
