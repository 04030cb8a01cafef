package logger

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
		wantErr  bool
	}{
		{
			name:     "console",
			settings: Settings{Level: LevelInfo, Type: TypeConsole},
		},
		{
			name: "file",
			settings: Settings{
				Level:      LevelDebug,
				Type:       TypeFile,
				FilePath:   filepath.Join(t.TempDir(), "run.log"),
				MaxSize:    10,
				MaxBackups: 3,
				MaxAge:     28,
			},
		},
		{
			name:     "invalid level",
			settings: Settings{Level: "verbose", Type: TypeConsole},
			wantErr:  true,
		},
		{
			name:     "invalid type",
			settings: Settings{Level: LevelInfo, Type: "syslog"},
			wantErr:  true,
		},
		{
			name:     "file without path",
			settings: Settings{Level: LevelInfo, Type: TypeFile},
			wantErr:  true,
		},
		{
			name: "file with too many backups",
			settings: Settings{
				Level:      LevelInfo,
				Type:       TypeFile,
				FilePath:   "run.log",
				MaxBackups: 50,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := New(tt.settings)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, log)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, log)
		})
	}
}

func TestFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	log := NewFile(LevelInfo, path, 1, 1, 1)

	log.Debug("hidden message")
	log.Info("episode complete", "episode", 3, "return", 21.5)
	log.Warn("warn message")

	content, err := os.ReadFile(path)
	require.NoError(t, err)

	out := string(content)
	assert.Contains(t, out, `"msg":"episode complete"`)
	assert.Contains(t, out, `"episode":3`)
	assert.Contains(t, out, `"return":21.5`)
	assert.Contains(t, out, "WARN")
	assert.NotContains(t, out, "hidden message")
}

func TestConsoleLogger(t *testing.T) {
	var buf bytes.Buffer
	log := newWriter(&buf, LevelWarning, false)

	log.Info("info message")
	log.Error("error message", "err", "boom")

	out := buf.String()
	assert.NotContains(t, out, "info message")
	assert.Contains(t, out, "error message")
	assert.Contains(t, out, "err=boom")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel(LevelDebug))
	assert.Equal(t, slog.LevelWarn, parseLevel(LevelWarning))
	assert.Equal(t, slog.LevelInfo, parseLevel("unknown"))
}

func TestNop(t *testing.T) {
	assert.NotPanics(t, func() {
		Nop().Error("nothing", "key", "value")
	})
}
