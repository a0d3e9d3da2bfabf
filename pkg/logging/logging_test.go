package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigure(t *testing.T) {
	defer Close()

	path := filepath.Join(t.TempDir(), "mcgraph.log")

	require.NoError(t, Configure("DEBUG", "json", path))
	assert.Equal(t, log.DebugLevel, log.GetLevel())

	log.Info("ingested model card", "id", "mc1")
	Close()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"id":"mc1"`)
}

func TestConfigureRejectsUnknownValues(t *testing.T) {
	assert.Error(t, Configure("loud", "text", ""))
	assert.Error(t, Configure("info", "yaml", ""))
	require.NoError(t, Configure("info", "", ""))
	assert.Equal(t, log.InfoLevel, log.GetLevel())
}
