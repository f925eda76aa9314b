// Package main is the entry point for the CropCure web client
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"cropcure/internal/cli"
	"cropcure/internal/logging"
)

func main() {
	// Load .env file if it exists (for development)
	if err := godotenv.Load(); err != nil && os.Getenv("DEBUG") == "true" {
		logging.Debugf("No .env file found or error loading it: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := cli.Execute(ctx, os.Args[1:], newApp, os.Stdout, os.Stderr)
	stop()

	_ = logging.Close()
	os.Exit(code)
}
