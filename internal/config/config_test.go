package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecodata/plantpulse/internal/period"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, period.ModeAuto, cfg.Period.Mode)
	assert.Equal(t, 500, cfg.Period.MinDailyPieces)
	assert.Equal(t, 1000, cfg.KPI.NominalCapacityPerHour)
	assert.Equal(t, 0.75, cfg.KPI.EnergyCostPerKWh)
	assert.Equal(t, 3.0, cfg.Alerting.Detection.Sigma)
	assert.Equal(t, 15*time.Minute, cfg.Alerting.Detection.Cooldown)
	assert.Equal(t, "snappy", cfg.Silver.Codec)
}

func TestLoad(t *testing.T) {
	t.Run("empty path uses defaults", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, Default().Paths, cfg.Paths)
	})

	t.Run("file overrides defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "plantpulse.yaml")
		body := `
server:
  port: 9000
period:
  mode: rolling_24h
silver:
  codec: zstd
quality:
  pressure:
    min: 9
    max: 17
`
		require.NoError(t, os.WriteFile(path, []byte(body), 0600))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 9000, cfg.Server.Port)
		assert.Equal(t, period.ModeRolling24, cfg.Period.Mode)
		assert.Equal(t, "zstd", cfg.Silver.Codec)
		assert.Equal(t, 9.0, cfg.Quality.Pressure.Min)
		// untouched settings keep their defaults
		assert.Equal(t, 500, cfg.Period.MinDailyPieces)
	})

	t.Run("missing file is an error", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})

	t.Run("invalid yaml is an error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("server: ["), 0600))
		_, err := Load(path)
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	t.Run("rejects unknown period mode", func(t *testing.T) {
		cfg := Default()
		cfg.Period.Mode = "fortnight"
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "period mode")
	})

	t.Run("rejects unknown codec", func(t *testing.T) {
		cfg := Default()
		cfg.Silver.Codec = "lz4"
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects postgres without host", func(t *testing.T) {
		cfg := Default()
		cfg.Gold.PostgresEnabled = true
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "postgres")
	})

	t.Run("rejects kafka brokers without topic", func(t *testing.T) {
		cfg := Default()
		cfg.Alerting.KafkaBrokers = []string{"localhost:9092"}
		cfg.Alerting.KafkaTopic = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects bad webhook url", func(t *testing.T) {
		cfg := Default()
		cfg.Alerting.WebhookURL = "not a url"
		assert.Error(t, cfg.Validate())
	})
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("PLANTPULSE_PORT", "9100")
	t.Setenv("PLANTPULSE_BRONZE_DIR", "/srv/bronze")
	t.Setenv("PLANTPULSE_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("PLANTPULSE_PG_HOST", "db.internal")

	cfg := Default()
	ApplyEnv(&cfg)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "/srv/bronze", cfg.Paths.Bronze)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Alerting.KafkaBrokers)
	assert.True(t, cfg.Gold.PostgresEnabled)
	assert.Equal(t, "db.internal", cfg.Gold.Postgres.Host)
}
