package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.WorkerCount)
	assert.Equal(t, 1000, cfg.QueueSize)
	assert.Equal(t, "8080", cfg.APIPort)
	assert.Equal(t, "http://localhost:8080/api/tracking/open", cfg.TrackingURL)
}

func TestLoad_PostgresNeedsDatabaseURL(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			WorkerCount: 2,
			QueueSize:   10,
			RateLimit:   1,
			SMTPTimeout: 1,
			TrackingURL: "https://track.example.com/open",
			StoreDriver: "memory",
		}
	}

	cfg := base()
	assert.NoError(t, cfg.Validate())

	cfg = base()
	cfg.WorkerCount = 0
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.TrackingURL = "/relative/path"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.StoreDriver = "sqlite"
	assert.Error(t, cfg.Validate())
}

func TestLoad_CORSOrigins(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("CORS_ORIGINS", "https://a.example.com,https://b.example.com")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSOrigins)
	assert.Equal(t, 1000, cfg.MaxCSVRows)
}
