// Command taskmanager runs the batch scheduler: it loads the configured batches, resumes batch
// runs interrupted by a previous shutdown and fires batches on their cron schedules until stopped.
package main

import (
	"context"
	_ "embed"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"

	"github.com/tigerroll/taskmanager/pkg/taskmanager/support/util/logger"
)

// embeddedConfig is loaded at startup and layered over the built-in defaults.
//
//go:embed resources/application.yaml
var embeddedConfig []byte

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Warnf("Received signal '%v'. Shutting down...", sig)
		cancel()
	}()

	envFilePath := os.Getenv("ENV_FILE_PATH")
	if envFilePath == "" {
		envFilePath = ".env"
	}

	if err := RunApplication(ctx, envFilePath, embeddedConfig); err != nil {
		logger.Fatalf("Application run failed: %v", err)
	}
}
