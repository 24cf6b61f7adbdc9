// Package logging configures logrus for the process and provides gin request logging.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mono-ai/aiproxy/internal/config"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Setup applies level, format and output from cfg to the standard logrus logger.
// When cfg.File is set, output goes to stdout and a rotating file.
func Setup(cfg config.LogConfig) error {
	level := log.InfoLevel
	if raw := strings.TrimSpace(cfg.Level); raw != "" {
		parsed, errParse := log.ParseLevel(raw)
		if errParse != nil {
			return fmt.Errorf("logging: %w", errParse)
		}
		level = parsed
	}
	log.SetLevel(level)

	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "", "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("logging: unknown format %q", cfg.Format)
	}

	var out io.Writer = os.Stdout
	if file := strings.TrimSpace(cfg.File); file != "" {
		if errMkdir := os.MkdirAll(filepath.Dir(file), 0o755); errMkdir != nil {
			return fmt.Errorf("logging: create log dir: %w", errMkdir)
		}
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   file,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		})
	}
	log.SetOutput(out)
	return nil
}
