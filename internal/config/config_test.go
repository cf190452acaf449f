package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultHTTPAddr, cfg.Server.Addr)
	assert.Equal(t, DefaultMongoURI, cfg.Mongo.URI)
	assert.Equal(t, DefaultMongoDatabase, cfg.Mongo.Database)
	assert.Equal(t, DefaultGatewayURL, cfg.Gateway.BaseURL)
	assert.Equal(t, DefaultBlobDir, cfg.Blobs.Dir)
	assert.Equal(t, DefaultContextWindow, cfg.Reply.ContextWindow)
	assert.Equal(t, DefaultFetchWindow, cfg.Sync.FetchWindow)
	assert.Equal(t, DefaultSyncParallel, cfg.Sync.Parallel)
	assert.True(t, cfg.Reply.Enabled)
	assert.True(t, cfg.Sync.OnStart)
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
[server]
addr = ":9090"

[mongo]
uri = "mongodb://db:27017"
database = "custom"

[reply]
enabled = false
context_window = 25
trigger_phrases = ["bot", "oye asistente"]

[sync]
fetch_window = 100
schedule = "0 */6 * * *"
parallel = 8
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "mongodb://db:27017", cfg.Mongo.URI)
	assert.Equal(t, "custom", cfg.Mongo.Database)
	assert.False(t, cfg.Reply.Enabled)
	assert.Equal(t, 25, cfg.Reply.ContextWindow)
	assert.Equal(t, []string{"bot", "oye asistente"}, cfg.Reply.TriggerPhrases)
	assert.Equal(t, 100, cfg.Sync.FetchWindow)
	assert.Equal(t, "0 */6 * * *", cfg.Sync.Schedule)
	assert.Equal(t, 8, cfg.Sync.Parallel)
}

func TestLoadInvalidValues(t *testing.T) {
	path := writeConfig(t, `
[reply]
context_window = -1
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestLoadMalformedTOML(t *testing.T) {
	path := writeConfig(t, "[server\naddr=")
	_, err := Load(path)
	assert.Error(t, err)
}
