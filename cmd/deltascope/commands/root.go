// Package commands implements CLI command handlers for deltascope.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/deltascope/internal/config"
	"github.com/Sumatoshi-tech/deltascope/internal/deltalog"
	"github.com/Sumatoshi-tech/deltascope/internal/inspector"
	"github.com/Sumatoshi-tech/deltascope/internal/render"
	"github.com/Sumatoshi-tech/deltascope/internal/state"
	"github.com/Sumatoshi-tech/deltascope/pkg/alg/lru"
	"github.com/Sumatoshi-tech/deltascope/pkg/observability"
	"github.com/Sumatoshi-tech/deltascope/pkg/version"
)

// latestVersion is the --version flag value meaning "newest commit".
const latestVersion = -1

// ErrUnsupportedFormat is returned for an unknown --format value.
var ErrUnsupportedFormat = errors.New("unsupported format (want text, json or yaml)")

// app is the state shared by every subcommand of one invocation.
type app struct {
	configPath string
	logLevel   string
	logJSON    bool
	noColor    bool

	out io.Writer
	now func() time.Time

	cfg        *config.Config
	logger     *slog.Logger
	providers  observability.Providers
	red        *observability.REDMetrics
	inspection *observability.InspectionMetrics

	// cache is shared by every table opened in a long-running session.
	cache *lru.Cache[string, []byte]
}

// NewRootCommand creates the deltascope command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&app{out: os.Stdout, now: time.Now})
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "deltascope",
		Short: "Inspect Delta Lake tables",
		Long: `deltascope reconstructs the state of a Delta Lake table from its transaction
log and reports statistics, history, configuration and health insights.

Tables are addressed by local path, file://, gs://, s3://, abfss:// or az:// URL.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	root.SetOut(a.out)

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "Config file (default: .deltascope.yaml in CWD or $HOME)")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.BoolVar(&a.logJSON, "log-json", false, "Write logs as JSON")
	flags.BoolVar(&a.noColor, "no-color", false, "Disable colored output")

	root.AddCommand(
		newInspectCommand(a),
		newHistoryCommand(a),
		newInsightsCommand(a),
		newConfigCommand(a),
		newTimelineCommand(a),
		newFilesCommand(a),
		newSchemaCommand(a),
		newPlotCommand(a),
		newMCPCommand(a),
		newVersionCommand(a),
	)

	return root
}

// setup loads configuration and applies the global flag overrides.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("log-level") {
		if _, levelErr := config.ParseLevel(a.logLevel); levelErr != nil {
			return levelErr
		}

		cfg.Log.Level = a.logLevel
	}

	if a.logJSON {
		cfg.Log.JSON = true
	}

	if a.noColor {
		cfg.Output.Color = false
	}

	a.cfg = cfg

	return nil
}

// initObservability starts telemetry for mode. Callers must call a.shutdown.
func (a *app) initObservability(mode observability.AppMode, metricsAddr string) error {
	obsCfg := a.cfg.Telemetry(mode, version.Version)
	if metricsAddr != "" {
		obsCfg.Export.Prometheus = true
	}

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}

	a.providers = providers
	a.logger = providers.Logger

	a.red, err = observability.NewREDMetrics(providers.Meter)
	if err != nil {
		return errors.Join(err, a.shutdown())
	}

	a.inspection, err = observability.NewInspectionMetrics(providers.Meter)
	if err != nil {
		return errors.Join(err, a.shutdown())
	}

	return nil
}

func (a *app) shutdown() error {
	if a.providers.Shutdown == nil {
		return nil
	}

	err := a.providers.Shutdown(context.Background())
	if err != nil {
		a.logger.Warn("observability shutdown failed", "error", err)
	}

	return err
}

// instrument wraps a command body with telemetry setup, a span and RED metrics.
func (a *app) instrument(name string, run func(ctx context.Context, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		initErr := a.initObservability(observability.ModeCLI, "")
		if initErr != nil {
			return initErr
		}

		defer func() { _ = a.shutdown() }()

		ctx, span := a.providers.Tracer.Start(cmd.Context(), "deltascope.command."+name,
			trace.WithAttributes(attribute.String("deltascope.command", name)))
		defer span.End()

		call := a.red.Begin(ctx, name)
		err := run(ctx, cmd, args)
		call.End(err != nil)

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "command failed")
		}

		return err
	}
}

// open resolves a table location with the configured credentials and reader options.
func (a *app) open(ctx context.Context, location string) (inspector.LogSource, error) {
	caps, err := a.cfg.Capabilities(ctx)
	if err != nil {
		return nil, err
	}

	opts, err := a.cfg.ReaderOptions(a.logger)
	if err != nil {
		return nil, err
	}

	if a.cache != nil {
		opts = append(opts, deltalog.WithObjectCache(a.cache))
	}

	return deltalog.Open(ctx, location, caps, opts...)
}

func (a *app) newInspector() *inspector.Inspector {
	return inspector.New(
		inspector.WithLogger(a.logger),
		inspector.WithStateBuilder(state.NewBuilder(a.cfg.BuilderOptions(a.logger)...)),
		inspector.WithMetrics(a.inspection),
		inspector.WithTracer(a.providers.Tracer),
	)
}

// inspect performs one analysis pass. version < 0 means latest.
func (a *app) inspect(ctx context.Context, location string, version int64) (*inspector.Report, error) {
	source, err := a.open(ctx, location)
	if err != nil {
		return nil, err
	}

	var opts []inspector.InspectOption
	if version >= 0 {
		opts = append(opts, inspector.AtVersion(version))
	}

	return a.newInspector().Inspect(ctx, source, opts...)
}

func (a *app) renderer() (*render.Renderer, error) {
	loc, err := a.cfg.Location()
	if err != nil {
		return nil, err
	}

	opts := []render.Option{render.WithLocation(loc), render.WithClock(a.now)}
	if !a.cfg.Output.Color {
		opts = append(opts, render.WithColor(false))
	}

	return render.New(a.out, opts...), nil
}

// emit writes v in a structured format, or calls text for the text format.
func (a *app) emit(format string, v any, text func(r *render.Renderer)) error {
	switch format {
	case config.FormatText:
		r, err := a.renderer()
		if err != nil {
			return err
		}

		text(r)

		return nil
	case config.FormatJSON, config.FormatYAML:
		return render.Encode(a.out, format, v)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// formatFlag registers --format; an empty value falls back to output.format.
func formatFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVarP(target, "format", "f", "", "Output format: text, json, yaml (default from output.format)")
}

func versionFlag(cmd *cobra.Command, target *int64) {
	cmd.Flags().Int64Var(target, "version", latestVersion, "Inspect this table version instead of the latest")
}

func (a *app) format(flag string) string {
	if flag != "" {
		return flag
	}

	return a.cfg.Output.Format
}
