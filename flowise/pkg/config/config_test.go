package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/architect-ai/flowise-go/flowise/pkg/logger"
)

func writeGlobalSettings(t *testing.T, root, content string) {
	t.Helper()
	configsDir := filepath.Join(root, "configs")
	require.NoError(t, os.MkdirAll(configsDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(configsDir, "global_settings.yaml"), []byte(content), 0o644))
}

func TestLoader(t *testing.T) {
	log := logger.NewLogger(logger.TestConfig(nil))

	t.Run("Should resolve a top-level section", func(t *testing.T) {
		root := t.TempDir()
		writeGlobalSettings(t, root, `
flowise:
  enabled: true
  base_url: http://engine:3100
  default_timeout: 30
`)
		loader := NewLoader(root, log)
		section := loader.GetSection("flowise")
		assert.Equal(t, true, GetBool(section, "enabled", false))
		assert.Equal(t, "http://engine:3100", GetString(section, "base_url", ""))
		assert.Equal(t, 30, GetInt(section, "default_timeout", 0))
	})

	t.Run("Should resolve a nested section by dotted path", func(t *testing.T) {
		root := t.TempDir()
		writeGlobalSettings(t, root, `
integrations:
  flowise:
    enabled: true
`)
		loader := NewLoader(root, log)
		section := loader.GetSection("integrations.flowise")
		assert.True(t, GetBool(section, "enabled", false))
	})

	t.Run("Should return an empty section when the file is missing", func(t *testing.T) {
		loader := NewLoader(t.TempDir(), log)
		section := loader.GetSection("flowise")
		assert.NotNil(t, section)
		assert.Empty(t, section)
	})

	t.Run("Should return an empty section for unparsable YAML", func(t *testing.T) {
		root := t.TempDir()
		writeGlobalSettings(t, root, "flowise: [unterminated")
		loader := NewLoader(root, log)
		assert.Empty(t, loader.GetSection("flowise"))
	})

	t.Run("Should expand environment variable references", func(t *testing.T) {
		t.Setenv("FLOWISE_CFG_TEST_URL", "http://expanded:3000")
		root := t.TempDir()
		writeGlobalSettings(t, root, `
flowise:
  base_url: ${FLOWISE_CFG_TEST_URL}
`)
		loader := NewLoader(root, log)
		section := loader.GetSection("flowise")
		assert.Equal(t, "http://expanded:3000", GetString(section, "base_url", ""))
	})

	t.Run("Should keep references to unset variables literal", func(t *testing.T) {
		root := t.TempDir()
		writeGlobalSettings(t, root, `
flowise:
  base_url: ${FLOWISE_CFG_TEST_NEVER_SET}
`)
		loader := NewLoader(root, log)
		section := loader.GetSection("flowise")
		assert.Equal(t, "${FLOWISE_CFG_TEST_NEVER_SET}", GetString(section, "base_url", ""))
	})

	t.Run("Should load a .env file under the root before expansion", func(t *testing.T) {
		root := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(root, ".env"), []byte("FLOWISE_CFG_TEST_DOTENV=from-dotenv\n"), 0o644))
		writeGlobalSettings(t, root, `
flowise:
  api_key_env: ${FLOWISE_CFG_TEST_DOTENV}
`)
		loader := NewLoader(root, log)
		section := loader.GetSection("flowise")
		assert.Equal(t, "from-dotenv", GetString(section, "api_key_env", ""))
	})
}

func TestAccessors(t *testing.T) {
	t.Run("Should coerce numeric and string representations", func(t *testing.T) {
		section := map[string]any{
			"a": int64(7),
			"b": uint64(8),
			"c": float64(9),
			"d": "10",
			"e": "true",
		}
		assert.Equal(t, 7, GetInt(section, "a", 0))
		assert.Equal(t, 8, GetInt(section, "b", 0))
		assert.Equal(t, 9, GetInt(section, "c", 0))
		assert.Equal(t, 10, GetInt(section, "d", 0))
		assert.True(t, GetBool(section, "e", false))
	})

	t.Run("Should fall back to defaults for absent or mistyped keys", func(t *testing.T) {
		section := map[string]any{"x": []any{}}
		assert.Equal(t, 42, GetInt(section, "missing", 42))
		assert.Equal(t, "def", GetString(section, "x", "def"))
		assert.True(t, GetBool(section, "missing", true))
	})
}

func TestStatic(t *testing.T) {
	t.Run("Should walk nested maps", func(t *testing.T) {
		provider := Static{"flowise": map[string]any{"enabled": true}}
		assert.True(t, GetBool(provider.GetSection("flowise"), "enabled", false))
		assert.Empty(t, provider.GetSection("missing"))
	})
}
