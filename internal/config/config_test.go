package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, 25, cfg.Detection.MaxHoverElements)
	assert.Equal(t, 10, cfg.Detection.MaxPopupTriggers)
	assert.Equal(t, 5, cfg.Detection.HoverProbeLimit)
	assert.Equal(t, 3, cfg.Detection.PopupProbeLimit)
	assert.Equal(t, time.Second, cfg.Detection.SettleDelay)
	assert.Equal(t, 5*time.Second, cfg.Detection.HoverActionTimeout)
	assert.Equal(t, 0.95, cfg.Detection.FooterCutoffRatio)
	assert.Equal(t, 50, cfg.Detection.LabelMaxLength)
	assert.Equal(t, 100, cfg.Detection.PopupLabelMaxLength)
	assert.Equal(t, 10, cfg.Detection.LoadPopupMaxButtons)
	assert.False(t, cfg.Detection.AdvancedHover)
	assert.False(t, cfg.Detection.AdvancedPopup)
	assert.Equal(t, 24*time.Hour, cfg.Cache.Expiry)
	assert.Equal(t, 30*time.Second, cfg.Browser.NavigationTimeout)
	require.NoError(t, cfg.Validate())
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bddgen.yaml")
	yaml := []byte("detection:\n  max_hover_elements: 7\n  settle_delay: 250ms\nllm:\n  provider: openai\n")
	require.NoError(t, os.WriteFile(path, yaml, 0o644))

	t.Setenv("BDDGEN_DETECTION_POPUP_PROBE_LIMIT", "1")

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Detection.MaxHoverElements)
	assert.Equal(t, 250*time.Millisecond, cfg.Detection.SettleDelay)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, 1, cfg.Detection.PopupProbeLimit)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Run("footer ratio out of range", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.Detection.FooterCutoffRatio = 1.5
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "footer_cutoff_ratio")
	})

	t.Run("non-positive caps", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.Detection.MaxHoverElements = 0
		cfg.Detection.MaxPopupTriggers = -1
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_hover_elements")
		assert.Contains(t, err.Error(), "max_popup_triggers")
	})

	t.Run("cache expiry only checked when enabled", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.Cache.Expiry = 0
		cfg.Cache.Enabled = false
		assert.NoError(t, cfg.Validate())
		cfg.Cache.Enabled = true
		assert.Error(t, cfg.Validate())
	})
}
