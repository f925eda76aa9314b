package cli

import (
	"context"

	"cropcure/internal/diagnosis"
	"cropcure/internal/health"
)

// Exit codes returned by Execute
const (
	ExitSuccess      = 0
	ExitRuntimeError = 1
	ExitInvalidUsage = 2
)

// Runner abstracts the operations behind the commands.
type Runner interface {
	Serve(ctx context.Context) error
	Classify(ctx context.Context, imagePath string) (diagnosis.Result, error)
	Health(ctx context.Context) health.Status
}

// RunnerFactory builds a Runner once flags are parsed
type RunnerFactory func(configPath string) (Runner, error)

// Event is one line of command output. With --json it is written as JSONL.
type Event struct {
	Type    string      `json:"type"`
	Message string      `json:"message,omitempty"`
	Code    string      `json:"code,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}
