package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "<B>", cfg.Highlight.PreTag)
	assert.Equal(t, "</B>", cfg.Highlight.PostTag)
	assert.False(t, cfg.Highlight.ShiftSentenceBoundaries)
	assert.Equal(t, "memory", cfg.Highlight.Store)
	assert.True(t, cfg.Kafka.Enabled)
	assert.Equal(t, "ingress", cfg.Highlight.Mappings["ingress.snippet"].Source)
}

func TestLoadYAMLAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  port: 9000
highlight:
  preTag: "<em>"
  postTag: "</em>"
  store: postgres
  encoder: html
  hitTimeout: 500ms
  mappings:
    body:
      termVector: true
      store: true
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("SP_SERVER_PORT", "9100")
	t.Setenv("SP_HIGHLIGHT_SHIFT_SENTENCE_BOUNDARIES", "true")
	t.Setenv("SP_KAFKA_ENABLED", "false")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "<em>", cfg.Highlight.PreTag)
	assert.Equal(t, "postgres", cfg.Highlight.Store)
	assert.Equal(t, 500*time.Millisecond, cfg.Highlight.HitTimeout)
	assert.True(t, cfg.Highlight.ShiftSentenceBoundaries)
	assert.False(t, cfg.Kafka.Enabled)
	assert.True(t, cfg.Highlight.Mappings["body"].TermVector)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"store":   "highlight:\n  store: sqlite\n",
		"encoder": "highlight:\n  encoder: xml\n",
		"source":  "highlight:\n  mappings:\n    a:\n      source: missing\n",
		"frags":   "highlight:\n  numberOfFragments: -1\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestShippedConfigsLoad(t *testing.T) {
	dev, err := Load("../../configs/development.yaml")
	require.NoError(t, err)
	assert.Equal(t, "postgres", dev.Highlight.Store)
	assert.True(t, dev.Kafka.Enabled)
	assert.Equal(t, "snippet", dev.Highlight.Mappings["ingress.snippet"].Analyzer)

	standalone, err := Load("../../configs/standalone.yaml")
	require.NoError(t, err)
	assert.False(t, standalone.Kafka.Enabled)
	assert.Equal(t, "memory", standalone.Highlight.Store)
	assert.Contains(t, standalone.Highlight.Mappings, "content")
}
