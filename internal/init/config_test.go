package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInit_Defaults(t *testing.T) {
	req := require.New(t)

	c := Init()
	req.Same(c, Get())
	req.Equal("server", c.Mode)
	req.Equal(":8080", c.ServerAddr)
	req.Equal(24*time.Hour, c.JWTTTL)
	req.False(c.JournalEnabled)
	req.Equal("openchat-events", c.KafkaTopic)
	req.Equal(10*time.Second, c.KafkaWriteTO)
	req.Equal("openchat", c.CassandraKeyspace)
}

func TestInit_Environment(t *testing.T) {
	req := require.New(t)
	t.Setenv("MODE", "worker")
	t.Setenv("JOURNAL_ENABLED", "true")
	t.Setenv("JWT_TTL", "90m")
	t.Setenv("KAFKA_READ_TIMEOUT", "not-a-duration")
	t.Setenv("WORKER_COUNT", "4")

	c := Init()
	req.Equal("worker", c.Mode)
	req.True(c.JournalEnabled)
	req.Equal(90*time.Minute, c.JWTTTL)
	req.Equal(10*time.Second, c.KafkaReadTO)
	req.Equal(4, c.WorkerCount)
}
