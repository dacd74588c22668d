package logger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNamedBeforeInit(t *testing.T) {
	l := Named("test")
	require.NotNil(t, l)
	l.Infow("dropped", "key", "value")
}

func TestInitWritesFile(t *testing.T) {
	dir := t.TempDir()
	loc, err := time.LoadLocation("Africa/Addis_Ababa")
	require.NoError(t, err)

	require.NoError(t, Init(Config{Debug: true, Location: loc, LogToFile: true, LogsDir: dir}))
	Named("scheduler").Infow("armed timer", "user_id", 42)
	Sync()

	matches, err := filepath.Glob(filepath.Join(dir, "pulsebot-*.log"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "armed timer")
	assert.Contains(t, string(data), "pulsebot.scheduler")
}
