package config

import (
	"os"
	"strconv"
	"strings"
)

// ApplyEnv overrides configuration from PLANTPULSE_* environment
// variables. Only the settings that differ per deployment are exposed
// this way; anything else belongs in the YAML file.
func ApplyEnv(cfg *Config) {
	if port := os.Getenv("PLANTPULSE_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if level := os.Getenv("PLANTPULSE_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if dir := os.Getenv("PLANTPULSE_BRONZE_DIR"); dir != "" {
		cfg.Paths.Bronze = dir
	}
	if dir := os.Getenv("PLANTPULSE_SILVER_DIR"); dir != "" {
		cfg.Paths.Silver = dir
	}
	if dir := os.Getenv("PLANTPULSE_GOLD_DIR"); dir != "" {
		cfg.Paths.Gold = dir
	}
	if dir := os.Getenv("PLANTPULSE_REPORTS_DIR"); dir != "" {
		cfg.Paths.Reports = dir
	}
	if mode := os.Getenv("PLANTPULSE_PERIOD_MODE"); mode != "" {
		cfg.Period.Mode = mode
	}
	if addr := os.Getenv("PLANTPULSE_REDIS_ADDR"); addr != "" {
		cfg.Alerting.RedisAddr = addr
	}
	if url := os.Getenv("PLANTPULSE_WEBHOOK_URL"); url != "" {
		cfg.Alerting.WebhookURL = url
	}
	if brokers := os.Getenv("PLANTPULSE_KAFKA_BROKERS"); brokers != "" {
		cfg.Alerting.KafkaBrokers = strings.Split(brokers, ",")
	}
	if topic := os.Getenv("PLANTPULSE_KAFKA_TOPIC"); topic != "" {
		cfg.Alerting.KafkaTopic = topic
	}
	if host := os.Getenv("PLANTPULSE_PG_HOST"); host != "" {
		cfg.Gold.PostgresEnabled = true
		cfg.Gold.Postgres.Host = host
	}
	if port := os.Getenv("PLANTPULSE_PG_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Gold.Postgres.Port = p
		}
	}
	if db := os.Getenv("PLANTPULSE_PG_DATABASE"); db != "" {
		cfg.Gold.Postgres.Database = db
	}
	if user := os.Getenv("PLANTPULSE_PG_USER"); user != "" {
		cfg.Gold.Postgres.User = user
	}
	if pass := os.Getenv("PLANTPULSE_PG_PASSWORD"); pass != "" {
		cfg.Gold.Postgres.Password = pass
	}
	if codec := os.Getenv("PLANTPULSE_SILVER_CODEC"); codec != "" {
		cfg.Silver.Codec = codec
	}
}
