// Package config loads service configuration from a yaml file with
// environment overrides.
package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	Env       string `mapstructure:"env"`
	Port      int    `mapstructure:"port"`
	JWTSecret string `mapstructure:"jwt_secret"`
	Storage   string `mapstructure:"storage"` // "mongo" or "memory"
}

type MongoConfig struct {
	URI string `mapstructure:"uri"`
	DB  string `mapstructure:"db"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type KafkaConfig struct {
	Brokers              []string `mapstructure:"brokers"`
	TopicMessageAppended string   `mapstructure:"topic_message_appended"`
}

type WSConfig struct {
	PingIntervalSeconds  int   `mapstructure:"ping_interval_seconds"`
	WriteDeadlineSeconds int   `mapstructure:"write_deadline_seconds"`
	MaxMessageSizeBytes  int64 `mapstructure:"max_message_size_bytes"`
}

type Config struct {
	App      AppConfig   `mapstructure:"app"`
	Mongo    MongoConfig `mapstructure:"mongo"`
	Redis    RedisConfig `mapstructure:"redis"`
	Kafka    KafkaConfig `mapstructure:"kafka"`
	WS       WSConfig    `mapstructure:"ws"`
	LogLevel string      `mapstructure:"log_level"`

	// derived timeouts
	PingInterval  time.Duration
	WriteDeadline time.Duration
}

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", 8084)
	v.SetDefault("app.storage", "mongo")
	v.SetDefault("mongo.db", "vichola")
	v.SetDefault("redis.prefix", "chat")
	v.SetDefault("kafka.topic_message_appended", "chat.message.appended")

	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}

	if c.WS.PingIntervalSeconds == 0 {
		c.WS.PingIntervalSeconds = 25
	}
	if c.WS.WriteDeadlineSeconds == 0 {
		c.WS.WriteDeadlineSeconds = 10
	}
	if c.WS.MaxMessageSizeBytes == 0 {
		c.WS.MaxMessageSizeBytes = 65536
	}
	c.PingInterval = time.Duration(c.WS.PingIntervalSeconds) * time.Second
	c.WriteDeadline = time.Duration(c.WS.WriteDeadlineSeconds) * time.Second

	if err := validate(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

func validate(c *Config) error {
	if c.App.JWTSecret == "" {
		return errors.New("app.jwt_secret missing")
	}
	switch c.App.Storage {
	case "mongo":
		if c.Mongo.URI == "" {
			return errors.New("mongo.uri missing")
		}
	case "memory":
	default:
		return errors.New("app.storage must be mongo or memory")
	}
	return nil
}
