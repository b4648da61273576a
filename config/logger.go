package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ternarybob/arbor"
	arbormodels "github.com/ternarybob/arbor/models"
)

// NewLogger builds the process logger from the logging section.
func NewLogger(cfg LoggingConfig) arbor.ILogger {
	logger := arbor.NewLogger()

	hasConsole, hasFile := false, false
	for _, out := range cfg.Output {
		switch out {
		case "console", "stdout":
			hasConsole = true
		case "file":
			hasFile = true
		}
	}
	if !hasConsole && !hasFile {
		hasConsole = true
	}

	if hasFile && cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "warning: create log directory: %v\n", err)
		} else {
			logger = logger.WithFileWriter(arbormodels.WriterConfiguration{
				Type:       arbormodels.LogWriterTypeFile,
				FileName:   cfg.File,
				TimeFormat: "2006-01-02 15:04:05",
				MaxSize:    10 * 1024 * 1024,
				MaxBackups: 3,
				TextOutput: true,
			})
		}
	}
	if hasConsole {
		logger = logger.WithConsoleWriter(arbormodels.WriterConfiguration{
			Type:       arbormodels.LogWriterTypeConsole,
			TimeFormat: "15:04:05",
			TextOutput: true,
		})
	}

	level := cfg.Level
	if level == "" {
		level = "info"
	}
	return logger.WithLevelFromString(level)
}
