// Command housingctl moves the housing registries between CSV files, the
// configured persistent store, and the snapshot archive, and checks them
// against the invariant rules.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"housingcore/internal/config"
	"housingcore/internal/core"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

var exitFunc = os.Exit

const usage = `usage: housingctl <command> [flags]

commands:
  check     load CSV records and report invariant violations
  import    load CSV records into the configured store
  export    write the configured store out as CSV records
  archive   archive the configured store to the blob store
  restore   restore an archived snapshot into the configured store
  projects  list the projects a user may apply to
`

func main() {
	code := cli(context.Background(), os.Args[1:], os.Stdout, os.Stderr)
	exitFunc(code)
}

type command func(ctx context.Context, a *app, args []string) error

var commands = map[string]command{
	"check":    runCheck,
	"import":   runImport,
	"export":   runExport,
	"archive":  runArchive,
	"restore":  runRestore,
	"projects": runProjects,
}

// app carries the resolved configuration and ambient services shared by
// every command.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	stdout   io.Writer
	stderr   io.Writer
	metrics  core.MetricsRecorder
	registry *prometheus.Registry
	expvar   *core.ExpvarMetricsRecorder
	tracer   *core.JSONTraceTracer
	closers  []io.Closer
}

func cli(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "help" {
		_, _ = fmt.Fprint(stderr, usage)
		return 2
	}
	run, ok := commands[args[0]]
	if !ok {
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return 2
	}
	cfg, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}
	a, err := newApp(cfg, stdout, stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}
	defer a.close()
	err = run(ctx, a, args[1:])
	if dumpErr := a.dumpMetrics(); dumpErr != nil {
		a.logger.Warn("metrics dump failed", "error", dumpErr)
	}
	switch {
	case err == nil:
		return 0
	case errors.Is(err, flag.ErrHelp):
		return 2
	case isUsage(err):
		if ue, _ := asUsage(err); !ue.reported {
			_, _ = fmt.Fprintf(stderr, "%v\n", err)
		}
		return 2
	default:
		_, _ = fmt.Fprintf(stderr, "%s: %v\n", args[0], err)
		return 1
	}
}

func newApp(cfg config.Config, stdout, stderr io.Writer) (*app, error) {
	logger, err := newLogger(cfg.Log, stderr)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger, stdout: stdout, stderr: stderr}
	switch strings.ToLower(cfg.Metrics) {
	case "prometheus":
		a.registry = prometheus.NewRegistry()
		rec, err := core.NewPrometheusMetricsRecorder(a.registry)
		if err != nil {
			return nil, fmt.Errorf("metrics: %w", err)
		}
		a.metrics = rec
	case "expvar":
		a.expvar = core.NewExpvarMetricsRecorder("")
		a.metrics = a.expvar
	}
	switch cfg.TraceFile {
	case "":
	case "-":
		a.tracer = core.NewJSONTracer(stderr)
	default:
		f, err := os.OpenFile(cfg.TraceFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
		if err != nil {
			return nil, fmt.Errorf("trace file: %w", err)
		}
		a.closers = append(a.closers, f)
		a.tracer = core.NewJSONTracer(f)
	}
	return a, nil
}

func (a *app) close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
}

func newLogger(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

// dumpMetrics writes the collected operation metrics to stderr once the
// command has finished.
func (a *app) dumpMetrics() error {
	switch {
	case a.registry != nil:
		families, err := a.registry.Gather()
		if err != nil {
			return err
		}
		enc := expfmt.NewEncoder(a.stderr, expfmt.NewFormat(expfmt.TypeTextPlain))
		for _, mf := range families {
			if err := enc.Encode(mf); err != nil {
				return err
			}
		}
	case a.expvar != nil:
		data, err := json.Marshal(a.expvar.Snapshot())
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(a.stderr, "%s\n", data)
		return err
	}
	return nil
}

func (a *app) serviceOptions(extra ...core.Option) []core.Option {
	opts := []core.Option{
		core.WithLogger(a.logger),
		core.WithAuditRecorder(core.NewLoggerAuditRecorder(a.logger)),
	}
	if a.metrics != nil {
		opts = append(opts, core.WithMetricsRecorder(a.metrics))
	}
	if a.tracer != nil {
		opts = append(opts, core.WithTracer(a.tracer))
	}
	return append(opts, extra...)
}

// usageError marks a bad invocation. reported is set when the flag package
// already printed the message.
type usageError struct {
	msg      string
	reported bool
}

func (e usageError) Error() string { return e.msg }

func asUsage(err error) (usageError, bool) {
	var target usageError
	ok := errors.As(err, &target)
	return target, ok
}

func isUsage(err error) bool {
	_, ok := asUsage(err)
	return ok
}

// parseFlags parses args into fs and turns flag errors into usage errors.
func parseFlags(fs *flag.FlagSet, args []string) error {
	err := fs.Parse(args)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, flag.ErrHelp):
		return err
	default:
		return usageError{msg: err.Error(), reported: true}
	}
}
