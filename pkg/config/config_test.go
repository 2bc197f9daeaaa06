package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
environment: test
backend:
  type: memory
portfolio:
  symbols: [SPY, TLT]
`)
	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "Asia/Seoul", c.Timezone)
	assert.Equal(t, 5, c.Settlement.RateLookbackDays)
	assert.Len(t, c.Settlement.TradeTypes, 7)
	assert.Equal(t, "SAHRP", c.Portfolio.Model)
	assert.Equal(t, 180, c.Portfolio.LookbackDays)
	assert.Equal(t, 20, c.Portfolio.MinDays)
	assert.Equal(t, 5, c.Analytics.CorrPeriods)
	assert.Equal(t, time.Hour, c.Schedule.Settlement)
	assert.Equal(t, []string{"1M", "3M", "6M", "1Y", "3Y"}, c.Profile.Periods)
	assert.Equal(t, "local", c.Queue.Driver)
}

func TestLoadRejectsClickHouseWithoutHost(t *testing.T) {
	path := writeConfig(t, "environment: test\n")
	_, err := Load(path)
	assert.ErrorContains(t, err, "clickhouse.host")
}

func TestLoadRejectsUnknownModel(t *testing.T) {
	path := writeConfig(t, `
environment: test
backend: {type: memory}
portfolio: {model: MVO}
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestRedisQueueNeedsRedis(t *testing.T) {
	path := writeConfig(t, `
environment: test
backend: {type: memory}
queue: {driver: redis}
`)
	_, err := Load(path)
	assert.ErrorContains(t, err, "redis.enabled")
}

func TestApplyEnvOverrides(t *testing.T) {
	c := Default()
	env := map[string]string{
		"PASTURE_BACKEND":   "memory",
		"KAFKA_BROKERS":     "k1:9092,k2:9092",
		"REDIS_HOST":        "cache",
		"PORTFOLIO_SYMBOLS": "QQQ,GLD",
	}
	c.applyEnv(func(k string) string { return env[k] })

	assert.Equal(t, "memory", c.Backend.Type)
	assert.True(t, c.Kafka.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.True(t, c.Redis.Enabled)
	assert.Equal(t, "cache", c.Redis.Host)
	assert.Equal(t, []string{"QQQ", "GLD"}, c.Portfolio.Symbols)
	require.NoError(t, c.Validate())
}
