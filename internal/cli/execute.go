package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"cropcure/internal/config"
	"cropcure/internal/display"
	"cropcure/internal/version"
)

// Execute runs the CLI with the provided args and returns the exit code.
// Cancelling ctx stops a running server.
func Execute(ctx context.Context, args []string, newRunner RunnerFactory, out, errOut io.Writer) int {
	cmd := NewRootCommand(newRunner, out, errOut)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		var usageErr *usageError
		if errors.As(err, &usageErr) {
			_, _ = fmt.Fprintln(errOut, "Error:", usageErr.Error())
			return ExitInvalidUsage
		}
		var runtimeErr *runtimeError
		if !errors.As(err, &runtimeErr) {
			// cobra's own flag and command errors
			_, _ = fmt.Fprintln(errOut, "Error:", err.Error())
			return ExitInvalidUsage
		}
		_, _ = fmt.Fprintln(errOut, "Error:", err.Error())
		return ExitRuntimeError
	}
	return ExitSuccess
}

// NewRootCommand builds the root CLI command tree. Running it without a
// subcommand starts the web server.
func NewRootCommand(newRunner RunnerFactory, out, errOut io.Writer) *cobra.Command {
	var configPath string
	var runner Runner

	root := &cobra.Command{
		Use:           "cropcure",
		Short:         "Potato leaf disease classification web client",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			r, err := newRunner(configPath)
			if err != nil {
				return &runtimeError{err: err}
			}
			runner = r
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd, runner)
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	root.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultConfigPath, "config file path")
	root.PersistentFlags().Bool("json", false, "output JSONL")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "start the web server",
			Args:  noArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return serve(cmd, runner)
			},
		},
		&cobra.Command{
			Use:   "classify <image>",
			Short: "diagnose a leaf image from disk",
			Args:  requireArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return classify(cmd, runner, args[0])
			},
		},
		&cobra.Command{
			Use:   "health",
			Short: "check the classification backend",
			Args:  noArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return checkHealth(cmd, runner)
			},
		},
		newVersionCommand(),
	)

	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print build information",
		Args:  noArgs,
		// Needs no configuration
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := version.Get()
			return writeEvent(cmd, Event{
				Type:    "result",
				Message: fmt.Sprintf("%s\n  commit: %s\n  built: %s\n  go: %s\n  platform: %s", info.String(), info.Commit, info.BuildDate, info.GoVersion, info.Platform),
				Data:    info,
			})
		},
	}
}

func serve(cmd *cobra.Command, runner Runner) error {
	if err := runner.Serve(cmd.Context()); err != nil {
		return writeError(cmd, err)
	}
	return nil
}

func classify(cmd *cobra.Command, runner Runner, path string) error {
	result, err := runner.Classify(cmd.Context(), path)
	if err != nil {
		return writeError(cmd, err)
	}

	card := display.NewCard(result)
	lines := []string{
		fmt.Sprintf("%s %s", card.Icon, card.Disease),
		fmt.Sprintf("Confidence: %s (%s)", card.ConfidenceText(), card.Band),
	}
	switch {
	case card.HasSolution():
		lines = append(lines, "", "Solution:", card.Solution)
	case card.SolutionUnavailable:
		lines = append(lines, "", "Treatment advice is unavailable right now.")
	}
	if card.Meaning != "" {
		lines = append(lines, "", "What this means:", card.Meaning)
	}

	return writeEvent(cmd, Event{Type: "result", Message: strings.Join(lines, "\n"), Data: result})
}

func checkHealth(cmd *cobra.Command, runner Runner) error {
	status := runner.Health(cmd.Context())
	event := Event{Type: "result", Message: status.Summary(), Data: status}
	if !status.Ready() {
		event.Type = "error"
		event.Code = "backend_unavailable"
		if status.Error != "" {
			event.Message += ": " + status.Error
		}
	}
	if err := writeEvent(cmd, event); err != nil {
		return err
	}
	if !status.Ready() {
		return &runtimeError{err: fmt.Errorf("%s", status.Summary())}
	}
	return nil
}

type usageError struct {
	err error
}

func (u *usageError) Error() string {
	if u.err == nil {
		return "invalid usage"
	}
	return u.err.Error()
}

func requireArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return &usageError{err: fmt.Errorf("%s requires %d argument(s)", cmd.Name(), n)}
		}
		return nil
	}
}

func noArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return &usageError{err: fmt.Errorf("%s takes no arguments", cmd.Name())}
	}
	return nil
}

type runtimeError struct {
	err error
}

func (r *runtimeError) Error() string {
	if r.err == nil {
		return "runtime error"
	}
	return r.err.Error()
}

func (r *runtimeError) Unwrap() error {
	return r.err
}

func writeError(cmd *cobra.Command, err error) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		_ = writeEventWithContext(cmd.Context(), cmd, Event{
			Type:    "error",
			Message: err.Error(),
		}, true)
	}
	return &runtimeError{err: err}
}

func writeEvent(cmd *cobra.Command, event Event) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	return writeEventWithContext(cmd.Context(), cmd, event, jsonOutput)
}

func writeEventWithContext(ctx context.Context, cmd *cobra.Command, event Event, jsonOutput bool) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if jsonOutput {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		return encoder.Encode(event)
	}
	if event.Message != "" {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), event.Message)
		return err
	}
	return nil
}
