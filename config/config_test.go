package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "session-secret")
	t.Setenv("INVITE_SECRET", "")
	t.Setenv("INVITE_TTL_HOURS", "")
	t.Setenv("BASE_URL", "https://app.example.com/main/")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "session-secret", cfg.Invite.Secret)
	assert.Equal(t, 7*24*time.Hour, cfg.Invite.TTL())
	assert.Equal(t, "https://app.example.com/main", cfg.Invite.BaseURL)
}

func TestLoad_InviteOverrides(t *testing.T) {
	t.Setenv("INVITE_SECRET", "invite-secret")
	t.Setenv("INVITE_TTL_HOURS", "48")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "invite-secret", cfg.Invite.Secret)
	assert.Equal(t, 48*time.Hour, cfg.Invite.TTL())
}

func TestDatabaseConfig_DSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: "5432", User: "u", Password: "p", DBName: "taskboard", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@db:5432/taskboard?sslmode=disable", c.DSN())

	c.URL = "postgres://override"
	assert.Equal(t, "postgres://override", c.DSN())
}
