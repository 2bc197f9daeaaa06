package clickhouse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBuildDSN(t *testing.T) {
	dsn := buildDSN(ClientConfig{
		Host:         "ch",
		Port:         9000,
		Database:     "pasture",
		User:         "u",
		Password:     "p",
		DialTimeout:  5 * time.Second,
		AsyncInsert:  true,
		WaitForAsync: true,
	})
	assert.Equal(t, "clickhouse://u:p@ch:9000/pasture?dial_timeout=5s&async_insert=1&wait_for_async_insert=1", dsn)

	assert.Equal(t, "http://:@ch:8123/db", buildDSN(ClientConfig{Host: "ch", Port: 8123, Database: "db", UseHTTP: true}))
}

func TestNewClientRequiresHost(t *testing.T) {
	_, err := NewClient()
	assert.Error(t, err)
}
