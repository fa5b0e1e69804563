package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "STORE_DRIVER", "HEARTBEAT_INTERVAL", "MAX_PLAYERS", "CHILD_GAMES", "DATABASE_URL", "LOG_LEVEL", "PARTYROOM_ENV",
		"POSTGRES_USER", "POSTGRES_PASSWORD", "PG_HOST", "PG_PORT", "PG_DATABASE"} {
		t.Setenv(k, "")
	}
	c := Load()
	assert.Equal(t, "8080", c.Port)
	assert.Equal(t, "memory", c.StoreDriver)
	assert.Equal(t, 10*time.Second, c.HeartbeatInterval)
	assert.Equal(t, 8, c.MaxPlayers)
	assert.NotEmpty(t, c.ChildGames)
	assert.Equal(t, logrus.DebugLevel, c.Level())
	assert.Equal(t, "postgres://postgres:@localhost:5432/partyroom", c.DSN())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HEARTBEAT_INTERVAL", "3")
	t.Setenv("MAX_PLAYERS", "4")
	t.Setenv("CHILD_GAMES", " kids , ,tots")
	t.Setenv("DATABASE_URL", "postgres://u:p@db/x")
	t.Setenv("PARTYROOM_ENV", "production")
	t.Setenv("LOG_LEVEL", "")

	c := Load()
	assert.Equal(t, 3*time.Second, c.HeartbeatInterval)
	assert.Equal(t, 4, c.MaxPlayers)
	assert.Equal(t, []string{"kids", "tots"}, c.ChildGames)
	assert.Equal(t, "postgres://u:p@db/x", c.DSN())
	assert.Equal(t, logrus.InfoLevel, c.Level())

	t.Setenv("HEARTBEAT_INTERVAL", "250ms")
	assert.Equal(t, 250*time.Millisecond, Load().HeartbeatInterval)
}
