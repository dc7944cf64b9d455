package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/Wikid82/phishguard/internal/config"
	"github.com/Wikid82/phishguard/internal/logger"
	"github.com/Wikid82/phishguard/internal/version"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "phishguard",
		Short:        "URL and file threat inspection service",
		Version:      version.Full(),
		SilenceUsage: true,
	}
	cmd.AddCommand(
		newServeCmd(),
		newWorkerCmd(),
		newResetPasswordCmd(),
		newIssueTokenCmd(),
	)
	return cmd
}

// setupLogging sends log output to stdout and a rotated file under
// cfg.LogDir. The returned closer flushes the file.
func setupLogging(cfg config.Config, name string) (io.Closer, error) {
	logDir := cfg.LogDir
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		// fall back to a local directory when the configured one is not writable
		logDir = filepath.Join("data", "logs")
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
	}

	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, name+".log"),
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}

	mw := io.MultiWriter(os.Stdout, rotator)
	log.SetOutput(mw)
	logger.Init(cfg.Debug, mw)
	return rotator, nil
}

// loadConfig reads the environment and starts logging for a command.
func loadConfig(name string) (config.Config, io.Closer, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	closer, err := setupLogging(cfg, name)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, closer, nil
}
