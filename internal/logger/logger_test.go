package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor/models"
	"github.com/ternarybob/promptline/internal/config"
)

func TestParseSinks(t *testing.T) {
	tests := []struct {
		outputs []string
		want    sinks
	}{
		{nil, sinks{}},
		{[]string{"file"}, sinks{file: true}},
		{[]string{"stdout"}, sinks{console: true}},
		{[]string{"console", "file"}, sinks{file: true, console: true}},
		{[]string{"both"}, sinks{file: true, console: true}},
		{[]string{"syslog"}, sinks{}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseSinks(tt.outputs), "%v", tt.outputs)
	}
}

func TestWriterConfigDefaults(t *testing.T) {
	wc := writerConfig(config.LoggingConfig{}, models.LogWriterTypeConsole, "")
	assert.Equal(t, "15:04:05.000", wc.TimeFormat)
	assert.Equal(t, int64(10*1024*1024), wc.MaxSize)
	assert.Equal(t, 3, wc.MaxBackups)

	wc = writerConfig(config.LoggingConfig{MaxSizeMB: 2, MaxBackups: 7, TimeFormat: "15:04"}, models.LogWriterTypeFile, "x.log")
	assert.Equal(t, int64(2*1024*1024), wc.MaxSize)
	assert.Equal(t, 7, wc.MaxBackups)
	assert.Equal(t, "15:04", wc.TimeFormat)
}

func TestSetupLoggerCreatesLogsDir(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Service.DataDir = t.TempDir()
	cfg.Logging.Output = []string{"file"}

	log := SetupLogger(cfg)
	require.NotNil(t, log)
	log.Info().Msg("hello")
	assert.DirExists(t, cfg.LogsDir())
}
