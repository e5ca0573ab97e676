package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"seq-aggregator/server/controller/aggregation_engine"
	"seq-aggregator/shared/middleware"
	"seq-aggregator/shared/status_server"
)

// ServerConfig is everything the aggregation server needs for one job
type ServerConfig struct {
	Host           string
	Port           string
	DownstreamAddr string
	TargetCount    int
	MaxBuffer      int
	PollInterval   time.Duration
	IdleTimeout    time.Duration
	ReduceMode     string
	DBPath         string
	StatusPort     string
	SampleInterval time.Duration

	// RabbitMQ is nil unless RABBITMQ_URL or RABBITMQ_HOST is set
	RabbitMQ         *middleware.ConnectionConfig
	RabbitMQExchange string
	KafkaBrokers     []string
	KafkaTopic       string
}

// ListenAddr is the worker listener address
func (c *ServerConfig) ListenAddr() string {
	return c.Host + ":" + c.Port
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", "23456")
	v.SetDefault("MAX_BUFFER", "4096")
	v.SetDefault("POLL_INTERVAL", aggregation_engine.DefaultPollInterval.String())
	v.SetDefault("IDLE_TIMEOUT", "0s")
	v.SetDefault("REDUCE_MODE", aggregation_engine.ReduceList)
	v.SetDefault("DB_PATH", "data/result_data.db")
	v.SetDefault("SAMPLE_INTERVAL", status_server.DefaultSampleInterval.String())
	rabbit := middleware.DefaultConnectionConfig()
	v.SetDefault("RABBITMQ_USER", rabbit.Username)
	v.SetDefault("RABBITMQ_PASSWORD", rabbit.Password)
	v.SetDefault("RABBITMQ_PORT", strconv.Itoa(rabbit.Port))
	v.SetDefault("RABBITMQ_VHOST", rabbit.VHost)
	v.SetDefault("RABBITMQ_EXCHANGE", "aggregation-results")
	v.SetDefault("KAFKA_TOPIC", "aggregation-results")
	return v
}

// LoadConfig reads the configuration from the environment, a .env file and the
// optional file named by CONFIG_FILE
func LoadConfig() (*ServerConfig, error) {
	_ = godotenv.Load()

	v := newViper()
	if file := v.GetString("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read CONFIG_FILE %s: %w", file, err)
		}
	}

	downstreamAddr := v.GetString("DOWNSTREAM_ADDR")
	if downstreamAddr == "" {
		return nil, fmt.Errorf("DOWNSTREAM_ADDR is required")
	}

	targetCount, err := parsePositive(v, "TARGET_COUNT")
	if err != nil {
		return nil, err
	}
	maxBuffer, err := parsePositive(v, "MAX_BUFFER")
	if err != nil {
		return nil, err
	}

	pollInterval, err := parseDuration(v, "POLL_INTERVAL")
	if err != nil {
		return nil, err
	}
	idleTimeout, err := parseDuration(v, "IDLE_TIMEOUT")
	if err != nil {
		return nil, err
	}
	sampleInterval, err := parseDuration(v, "SAMPLE_INTERVAL")
	if err != nil {
		return nil, err
	}

	reduceMode := strings.ToLower(v.GetString("REDUCE_MODE"))
	if _, err := aggregation_engine.ReducerFor(reduceMode); err != nil {
		return nil, fmt.Errorf("invalid REDUCE_MODE: %w", err)
	}

	rabbitMQ, err := loadRabbitMQ(v)
	if err != nil {
		return nil, err
	}

	return &ServerConfig{
		Host:             v.GetString("SERVER_HOST"),
		Port:             v.GetString("SERVER_PORT"),
		DownstreamAddr:   downstreamAddr,
		TargetCount:      targetCount,
		MaxBuffer:        maxBuffer,
		PollInterval:     pollInterval,
		IdleTimeout:      idleTimeout,
		ReduceMode:       reduceMode,
		DBPath:           v.GetString("DB_PATH"),
		StatusPort:       v.GetString("STATUS_PORT"),
		SampleInterval:   sampleInterval,
		RabbitMQ:         rabbitMQ,
		RabbitMQExchange: v.GetString("RABBITMQ_EXCHANGE"),
		KafkaBrokers:     parseList(v.GetString("KAFKA_BROKERS")),
		KafkaTopic:       v.GetString("KAFKA_TOPIC"),
	}, nil
}

func loadRabbitMQ(v *viper.Viper) (*middleware.ConnectionConfig, error) {
	url := v.GetString("RABBITMQ_URL")
	host := v.GetString("RABBITMQ_HOST")
	if url == "" && host == "" {
		return nil, nil
	}
	port, err := parsePositive(v, "RABBITMQ_PORT")
	if err != nil {
		return nil, err
	}
	return &middleware.ConnectionConfig{
		URL:      url,
		Username: v.GetString("RABBITMQ_USER"),
		Password: v.GetString("RABBITMQ_PASSWORD"),
		Host:     host,
		Port:     port,
		VHost:    v.GetString("RABBITMQ_VHOST"),
	}, nil
}

func parsePositive(v *viper.Viper, key string) (int, error) {
	raw := v.GetString(key)
	if raw == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %d", key, n)
	}
	return n, nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative, got %s", key, d)
	}
	return d, nil
}

func parseList(raw string) []string {
	var items []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
