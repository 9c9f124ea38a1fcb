package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"fand/internal/config"
)

// setupLogging configures the global logrus logger. The returned file, if
// any, is the log.file sink and must be closed by the caller.
func setupLogging(c config.LogConfig) (*os.File, error) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetOutput(os.Stderr)

	lvl, err := log.ParseLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}
	log.SetLevel(lvl)

	if c.File == "" {
		return nil, nil
	}
	f, err := os.OpenFile(c.File, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	log.SetOutput(f)
	return f, nil
}
