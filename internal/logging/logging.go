// Package logging configures the process-wide logrus logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/amsel-crm/memberportal/internal/config"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const timestampFormat = "2006-01-02 15:04:05.000"

// Setup applies level, format and output to the standard logger.
// The returned closer flushes the rotating file, if any.
func Setup(cfg config.LoggingConfig) (io.Closer, error) {
	return Configure(log.StandardLogger(), cfg, os.Stdout)
}

// Configure applies cfg to logger, writing to stdout and the optional rotating file.
func Configure(logger *log.Logger, cfg config.LoggingConfig, stdout io.Writer) (io.Closer, error) {
	level, errLevel := log.ParseLevel(strings.TrimSpace(cfg.Level))
	if errLevel != nil {
		return nil, fmt.Errorf("logging: %w", errLevel)
	}
	logger.SetLevel(level)

	if strings.EqualFold(cfg.Format, "json") {
		logger.SetFormatter(&log.JSONFormatter{TimestampFormat: timestampFormat})
	} else {
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true, TimestampFormat: timestampFormat})
	}

	if strings.TrimSpace(cfg.File) == "" {
		logger.SetOutput(stdout)
		return nopCloser{}, nil
	}

	if errMkdir := os.MkdirAll(filepath.Dir(cfg.File), 0o755); errMkdir != nil {
		return nil, fmt.Errorf("logging: create log dir: %w", errMkdir)
	}
	file := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	logger.SetOutput(io.MultiWriter(stdout, file))
	return file, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
