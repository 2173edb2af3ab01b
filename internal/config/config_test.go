package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/arthurzam/securevote/internal/config"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir string, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old, had := os.LookupEnv(key)
	require.NoError(t, os.Setenv(key, value))
	t.Cleanup(func() {
		if had {
			_ = os.Setenv(key, old)
		} else {
			_ = os.Unsetenv(key)
		}
	})
}

func TestLoadSuccess(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `{
		"p": 2147483647,
		"candidates": ["alice", "bob"],
		"talliers": [{"host": "127.0.0.1", "port": 9001}, {"host": "127.0.0.1", "port": 9002}],
		"winner_count": 1,
		"voters": ["voter@example.com"],
		"self_id": 0
	}`)
	setEnv(t, "CONFIG_PATH", path)
	setEnv(t, "TALLIERD_TLS_CERT_FILE", "/tmp/cert.pem")
	setEnv(t, "TALLIERD_TLS_KEY_FILE", "/tmp/key.pem")
	setEnv(t, "TALLIERD_TLS_CA_FILE", "/tmp/ca.pem")

	c, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, uint64(2147483647), c.P)
	require.Len(t, c.Peers(), 2)
	require.Equal(t, "/tmp/cert.pem", c.TLSCertFile)
}

func TestLoadMissingTLSEnv(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `{
		"p": 2147483647,
		"candidates": ["alice", "bob"],
		"talliers": [{"host": "127.0.0.1", "port": 9001}],
		"winner_count": 1,
		"self_id": 0
	}`)
	setEnv(t, "CONFIG_PATH", path)
	os.Unsetenv("TALLIERD_TLS_CERT_FILE")
	os.Unsetenv("TALLIERD_TLS_KEY_FILE")
	os.Unsetenv("TALLIERD_TLS_CA_FILE")

	_, err := config.Load()
	require.Error(t, err)
}

func TestLoadBadSelfID(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `{
		"p": 2147483647,
		"candidates": ["alice"],
		"talliers": [{"host": "127.0.0.1", "port": 9001}],
		"winner_count": 1,
		"self_id": 5
	}`)
	setEnv(t, "CONFIG_PATH", path)
	setEnv(t, "TALLIERD_TLS_CERT_FILE", "/tmp/cert.pem")
	setEnv(t, "TALLIERD_TLS_KEY_FILE", "/tmp/key.pem")
	setEnv(t, "TALLIERD_TLS_CA_FILE", "/tmp/ca.pem")

	_, err := config.Load()
	require.Error(t, err)
}
