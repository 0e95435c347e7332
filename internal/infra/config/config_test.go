package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope", "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "Juno", cfg.Agent.Name)
	assert.Equal(t, 30*time.Minute, cfg.Daemon.HeartbeatInterval)
	assert.Equal(t, "info", cfg.Logger.Level)
}

func TestSaveLoadRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := Defaults()
	cfg.Provider.ID = "openai"
	cfg.Provider.Model = "gpt-4o"
	cfg.Provider.CustomModels = map[string][]string{"openai": {"my-tuned"}}
	cfg.Messaging.Platform = "telegram"
	cfg.Messaging.Handle = "@juno_bot"
	cfg.Messaging.Fields = map[string]string{"bot_token": "t", "chat_id": "42"}
	require.NoError(t, Save(cfg, path))

	// Owner-only permissions; the messaging fields can hold tokens.
	st, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), st.Mode().Perm())

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "openai", got.Provider.ID)
	assert.Equal(t, "gpt-4o", got.Provider.Model)
	assert.Equal(t, []string{"my-tuned"}, got.Provider.CustomModels["openai"])
	assert.Equal(t, "telegram", got.Messaging.Platform)
	assert.Equal(t, "42", got.Messaging.Fields["chat_id"])
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("provider: [unclosed"), 0600))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("JUNOAI_AGENT_NAME", "Scout")
	t.Setenv("JUNOAI_LOG_LEVEL", "debug")
	t.Setenv("JUNOAI_TRACER_ENABLED", "true")
	t.Setenv("JUNOAI_OLLAMA_HOST", "http://box:11434")

	cfg, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "Scout", cfg.Agent.Name)
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.True(t, cfg.Tracer.Enabled)
	assert.Equal(t, "http://box:11434", cfg.Provider.OllamaHost)
}

func TestEncryptDecryptRoundtrip(t *testing.T) {
	enc, err := EncryptValue("hunter2", "sk-super-secret")
	require.NoError(t, err)
	assert.True(t, IsEncrypted(enc))
	assert.NotContains(t, enc, "sk-super-secret")

	// Each encryption uses a fresh salt and nonce.
	enc2, err := EncryptValue("hunter2", "sk-super-secret")
	require.NoError(t, err)
	assert.NotEqual(t, enc, enc2)

	dec, err := DecryptValue("hunter2", enc)
	require.NoError(t, err)
	assert.Equal(t, "sk-super-secret", dec)
}

func TestDecryptPlaintextPassthrough(t *testing.T) {
	// Unencrypted credential files keep working without a passphrase.
	dec, err := DecryptValue("", "sk-plaintext")
	require.NoError(t, err)
	assert.Equal(t, "sk-plaintext", dec)
	assert.False(t, IsEncrypted("sk-plaintext"))
}

func TestDecryptWrongPassphrase(t *testing.T) {
	enc, err := EncryptValue("right", "secret")
	require.NoError(t, err)

	_, err = DecryptValue("wrong", enc)
	assert.Error(t, err)
	_, err = DecryptValue("", enc)
	assert.Error(t, err)
}

func TestDecryptGarbage(t *testing.T) {
	_, err := DecryptValue("pw", "enc:!!!not-base64!!!")
	assert.Error(t, err)
	_, err = DecryptValue("pw", "enc:QUJD") // too short for salt+nonce
	assert.Error(t, err)
}

func TestEncryptRequiresPassphrase(t *testing.T) {
	_, err := EncryptValue("", "secret")
	assert.Error(t, err)
}
