package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsAndEnv(t *testing.T) {
	t.Setenv("POLLING_INTERVAL_MS", "1500")
	t.Setenv("BACKEND_BASE_URL", "https://planner.internal")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, 1500*time.Millisecond, cfg.Polling.Interval())
	require.Equal(t, 2*time.Second, cfg.Polling.RetryDelay())
	require.Equal(t, 3, cfg.Polling.MaxRetries)
	require.Equal(t, 5*time.Minute, cfg.Polling.Timeout())
	require.Equal(t, 10*time.Second, cfg.Transcription.DedupWindow())
	require.Equal(t, time.Second, cfg.Transcription.TrackFallback())
	require.Equal(t, 200, cfg.EventLog.Size)
	require.Equal(t, "https://planner.internal", cfg.Backend.BaseURL)
}

func TestReadSecretFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret")
	require.NoError(t, os.WriteFile(path, []byte("s3cr3t\n"), 0o600))

	t.Setenv("BACKEND_API_KEY", "")
	t.Setenv("BACKEND_API_KEY_FILE", path)

	readSecret("BACKEND_API_KEY")
	require.Equal(t, "s3cr3t", os.Getenv("BACKEND_API_KEY"))
}

func TestReadSecretPrefersDirectValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret")
	require.NoError(t, os.WriteFile(path, []byte("from-file"), 0o600))

	t.Setenv("GROQ_API_KEY", "direct")
	t.Setenv("GROQ_API_KEY_FILE", path)

	readSecret("GROQ_API_KEY")
	require.Equal(t, "direct", os.Getenv("GROQ_API_KEY"))
}
