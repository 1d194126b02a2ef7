// Package logging builds the log writers used by the server and background jobs.
// File output is rotated by lumberjack.
package logging

import (
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/jashub/parcelhub/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Flags used by every logger in the process
const Flags = log.LstdFlags | log.Lmicroseconds | log.LUTC

// Writer returns the destination for a log stream. name selects a file next to
// the configured log file, e.g. "scheduler.log"; empty uses the file itself.
func Writer(cfg config.LoggingConfig, name string) io.Writer {
	switch cfg.Output {
	case "file":
		return rotating(cfg, name)
	case "both":
		return io.MultiWriter(os.Stdout, rotating(cfg, name))
	default:
		return os.Stdout
	}
}

// New returns a logger writing to Writer(cfg, name) with the given prefix
func New(cfg config.LoggingConfig, name, prefix string) *log.Logger {
	return log.New(Writer(cfg, name), prefix, Flags)
}

// Setup points the standard logger at the configured output
func Setup(cfg config.LoggingConfig) {
	log.SetOutput(Writer(cfg, ""))
	log.SetFlags(Flags)
}

func rotating(cfg config.LoggingConfig, name string) *lumberjack.Logger {
	path := cfg.FilePath
	if path == "" {
		path = filepath.Join("logs", "parcelhub.log")
	}
	if name != "" {
		path = filepath.Join(filepath.Dir(path), name)
	}
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}
}
