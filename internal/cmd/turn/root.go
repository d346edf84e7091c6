package turn

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	platformcmd "github.com/louisbranch/euroturn/internal/platform/cmd"
	apperrors "github.com/louisbranch/euroturn/internal/platform/errors"
	"github.com/louisbranch/euroturn/internal/platform/logging"
	"github.com/louisbranch/euroturn/internal/random"
	"github.com/louisbranch/euroturn/internal/services/turn/app"
	"github.com/louisbranch/euroturn/internal/services/turn/domain/content"
	"github.com/louisbranch/euroturn/internal/services/turn/mcpserver"
)

// Version is reported by the MCP server.
var Version = "dev"

// Runner executes euroturn commands.
type Runner struct {
	Config Config
	Out    io.Writer

	// Provider and Random replace the configured collaborators when set.
	Provider content.Provider
	Random   random.Source
}

// Command returns the root command with every subcommand attached.
func (r *Runner) Command() *cobra.Command {
	root := &cobra.Command{
		Use:           "euroturn",
		Short:         "Run the EU geopolitics turn engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := root.PersistentFlags()
	flags.StringVar(&r.Config.DBPath, "db", r.Config.DBPath, "SQLite database path")
	flags.StringVar(&r.Config.CatalogPath, "catalog", r.Config.CatalogPath, "YAML country catalog (default: embedded)")
	flags.StringVar(&r.Config.LogLevel, "log-level", r.Config.LogLevel, "log level")

	var reset bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Seed a new game from the catalog",
		Args:  cobra.NoArgs,
		RunE: r.run(platformcmd.ServiceCLI, func(ctx context.Context, a *app.App) (any, error) {
			if err := a.Engine.Init(ctx, reset); err != nil {
				return nil, err
			}
			return call(ctx, mcpserver.StatusHandler(a.Engine), mcpserver.NoInput{})
		}),
	}
	initCmd.Flags().BoolVar(&reset, "reset", false, "wipe the existing game first")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the current round, EU state and standings",
		Args:  cobra.NoArgs,
		RunE: r.run(platformcmd.ServiceCLI, func(ctx context.Context, a *app.App) (any, error) {
			return call(ctx, mcpserver.StatusHandler(a.Engine), mcpserver.NoInput{})
		}),
	}

	var round int
	readinessCmd := &cobra.Command{
		Use:   "readiness",
		Short: "List legal commands and rejection reasons",
		Args:  cobra.NoArgs,
		RunE: r.run(platformcmd.ServiceCLI, func(ctx context.Context, a *app.App) (any, error) {
			return call(ctx, mcpserver.ReadinessHandler(a.Engine), mcpserver.ReadinessInput{Round: round})
		}),
	}
	readinessCmd.Flags().IntVar(&round, "round", 0, "round to evaluate (default: current)")

	externalCmd := &cobra.Command{
		Use:   "external",
		Short: "Generate external moves and domestic events",
		Args:  cobra.NoArgs,
		RunE: r.run(platformcmd.ServiceCLI, func(ctx context.Context, a *app.App) (any, error) {
			return call(ctx, mcpserver.AdvanceExternalHandler(a.Engine), mcpserver.NoInput{})
		}),
	}

	actionsCmd := &cobra.Command{
		Use:   "actions",
		Short: "Generate action variants for every country",
		Args:  cobra.NoArgs,
		RunE: r.run(platformcmd.ServiceCLI, func(ctx context.Context, a *app.App) (any, error) {
			return call(ctx, mcpserver.GenerateActionsHandler(a.Engine), mcpserver.NoInput{})
		}),
	}

	publishCmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish generated actions for locking",
		Args:  cobra.NoArgs,
		RunE: r.run(platformcmd.ServiceCLI, func(ctx context.Context, a *app.App) (any, error) {
			return call(ctx, mcpserver.PublishHandler(a.Engine), mcpserver.NoInput{})
		}),
	}

	lockCmd := &cobra.Command{
		Use:   "lock <country> <variant>",
		Short: "Commit a country's chosen variant",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := mcpserver.CommitLockInput{Country: args[0], Variant: args[1]}
			return r.run(platformcmd.ServiceCLI, func(ctx context.Context, a *app.App) (any, error) {
				return call(ctx, mcpserver.CommitLockHandler(a.Engine), input)
			})(cmd, args)
		},
	}

	resolveCmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve the round once every country is locked",
		Args:  cobra.NoArgs,
		RunE: r.run(platformcmd.ServiceCLI, func(ctx context.Context, a *app.App) (any, error) {
			return call(ctx, mcpserver.ResolveHandler(a.Engine), mcpserver.NoInput{})
		}),
	}

	mcpCmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the turn tools over MCP on stdio",
		Args:  cobra.NoArgs,
		RunE: r.run(platformcmd.ServiceMCP, func(ctx context.Context, a *app.App) (any, error) {
			return nil, mcpserver.New(a.Engine, Version).Serve(ctx)
		}),
	}

	root.AddCommand(initCmd, statusCmd, readinessCmd, externalCmd, actionsCmd, publishCmd, lockCmd, resolveCmd, mcpCmd)
	return root
}

// run opens the app under telemetry, runs fn and prints its result as JSON.
func (r *Runner) run(service string, fn func(ctx context.Context, a *app.App) (any, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		logger, err := logging.New(r.Config.LogLevel, r.Config.logFormat())
		if err != nil {
			return apperrors.Wrap(apperrors.CodeInvalidArgument, "configure logging", err)
		}
		defer func() { _ = logger.Sync() }()

		options := platformcmd.RunOptions{Logger: logger}
		return platformcmd.RunWithTelemetryAndOptions(cmd.Context(), service, options, func(ctx context.Context) error {
			cfg := r.Config.appConfig()
			cfg.Provider = r.Provider
			cfg.Random = r.Random
			a, err := app.Open(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					logger.Warn("close store", zap.Error(err))
				}
			}()

			result, err := fn(ctx, a)
			if err != nil || result == nil {
				return err
			}
			return r.write(result)
		})
	}
}

// call invokes a tool handler directly so CLI output matches the MCP tools.
func call[I, O any](ctx context.Context, handler mcp.ToolHandlerFor[I, O], input I) (any, error) {
	_, out, err := handler(ctx, nil, input)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Runner) write(v any) error {
	enc := json.NewEncoder(r.Out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

// ExitCode maps a command error to a process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return apperrors.CodeOf(err).ExitCode()
}
