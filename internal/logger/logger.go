// Package logger builds the arbor logger the daemon components receive.
package logger

import (
	"os"
	"path/filepath"

	"github.com/ternarybob/arbor"
	arborcommon "github.com/ternarybob/arbor/common"
	"github.com/ternarybob/arbor/models"
	"github.com/ternarybob/promptline/internal/config"
)

// FileName is the log file written under the logs directory.
const FileName = "promptline.log"

// sinks is the parsed form of logging.output.
type sinks struct {
	file    bool
	console bool
}

func parseSinks(outputs []string) sinks {
	var s sinks
	for _, output := range outputs {
		switch output {
		case "file":
			s.file = true
		case "stdout", "console":
			s.console = true
		case "both":
			s.file, s.console = true, true
		}
	}
	return s
}

// Discard returns a logger with no writers, for tests and one-shot commands.
func Discard() arbor.ILogger {
	return arbor.NewLogger()
}

// SetupLogger builds a logger from the logging section of cfg. A file sink
// that cannot be opened degrades to console output.
func SetupLogger(cfg *config.Config) arbor.ILogger {
	log := arbor.NewLogger()
	s := parseSinks(cfg.Logging.Output)

	if s.file {
		logsDir := cfg.LogsDir()
		if err := os.MkdirAll(logsDir, 0755); err != nil {
			s.file, s.console = false, true
			defer func() {
				log.Warn().Err(err).Str("logs_dir", logsDir).Msg("Log directory unavailable, logging to console")
			}()
		} else {
			log = log.WithFileWriter(writerConfig(cfg.Logging, models.LogWriterTypeFile, filepath.Join(logsDir, FileName)))
		}
	}

	if !s.file && !s.console {
		s.console = true
		defer func() {
			log.Warn().Strs("configured_outputs", cfg.Logging.Output).Msg("No log outputs configured, logging to console")
		}()
	}
	if s.console {
		log = log.WithConsoleWriter(writerConfig(cfg.Logging, models.LogWriterTypeConsole, ""))
	}

	return log.WithLevelFromString(cfg.Logging.Level)
}

func writerConfig(lc config.LoggingConfig, writerType models.LogWriterType, filename string) models.WriterConfiguration {
	wc := models.WriterConfiguration{
		Type:       writerType,
		FileName:   filename,
		TimeFormat: "15:04:05.000",
		OutputType: models.OutputFormatLogfmt,
		MaxSize:    10 * 1024 * 1024,
		MaxBackups: 3,
	}
	if lc.TimeFormat != "" {
		wc.TimeFormat = lc.TimeFormat
	}
	if lc.Format == "json" {
		wc.OutputType = models.OutputFormatJSON
	}
	if lc.MaxSizeMB > 0 {
		wc.MaxSize = int64(lc.MaxSizeMB) * 1024 * 1024
	}
	if lc.MaxBackups > 0 {
		wc.MaxBackups = lc.MaxBackups
	}
	return wc
}

// Stop flushes buffered writers before exit.
func Stop() {
	arborcommon.Stop()
}
