package logger

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/lpg-storefront/internal/config"
)

func TestNewHonoursLevelAndFormat(t *testing.T) {
	cfg := &config.Config{Logging: config.LoggingConfig{Level: "warn", Format: "json"}}

	log, err := New(cfg)
	require.NoError(t, err)
	assert.Equal(t, logrus.WarnLevel, log.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, log.Formatter)

	var buf bytes.Buffer
	log.SetOutput(&buf)
	log.Info("dropped")
	log.WithField("order_id", 7).Warn("kept")
	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), `"order_id":7`)
}

func TestNewFallsBackToInfoOnBadLevel(t *testing.T) {
	cfg := &config.Config{Logging: config.LoggingConfig{Level: "loud", Format: "text"}}

	log, err := New(cfg)
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, log.Formatter)
}

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	cfg := &config.Config{Logging: config.LoggingConfig{Level: "info", Format: "json", File: path}}

	log, err := New(cfg)
	require.NoError(t, err)
	log.Info("hello")

	assert.FileExists(t, path)
}
