package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"

	"github.com/smazurov/superprocess/cmd"
	"github.com/smazurov/superprocess/internal/api"
	"github.com/smazurov/superprocess/internal/config"
	"github.com/smazurov/superprocess/internal/events"
	"github.com/smazurov/superprocess/internal/jobs"
	"github.com/smazurov/superprocess/internal/logging"
	"github.com/smazurov/superprocess/internal/metrics/exporters"
	"github.com/smazurov/superprocess/internal/supervisor"
	"github.com/smazurov/superprocess/internal/systemd"
	"github.com/smazurov/superprocess/internal/version"
)

const shutdownTimeout = 15 * time.Second

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config  string `help:"Path to configuration file" short:"c" default:"config.toml"`
	EnvFile string `help:"Path to .env file" default:".env"`

	// Server settings
	Port string `help:"Port to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`

	// Jobs settings
	JobsFile     string `help:"Job definitions file (.toml, .yaml)" short:"j" default:"jobs.toml" toml:"jobs.file" env:"JOBS_FILE"`
	JobsWatch    bool   `help:"Reload the jobs file when it changes" default:"true" toml:"jobs.watch" env:"JOBS_WATCH"`
	JobsDebounce string `help:"Wait for writes to settle before reloading" default:"500ms" toml:"jobs.debounce" env:"JOBS_DEBOUNCE"`

	// systemd settings
	SystemdEnabled bool   `help:"Connect to systemd for unit jobs" default:"true" toml:"systemd.enabled" env:"SYSTEMD_ENABLED"`
	SystemdBus     string `help:"systemd bus (system, user)" default:"system" toml:"systemd.bus" env:"SYSTEMD_BUS"`

	// Tuner settings
	TunerMaxInterval    string `help:"Upper bound for tuned intervals" default:"5m" toml:"tuner.max_interval" env:"TUNER_MAX_INTERVAL"`
	TunerMaxBaseBackoff string `help:"Upper bound for tuned base backoff" default:"30s" toml:"tuner.max_base_backoff" env:"TUNER_MAX_BASE_BACKOFF"`

	// Metrics settings
	MetricsPrometheusEnabled bool   `help:"Serve Prometheus metrics on /metrics" default:"true" toml:"metrics.prometheus_enabled" env:"METRICS_PROMETHEUS_ENABLED"`
	MetricsSSEInterval       string `help:"Interval of metrics snapshots on /api/events, 0 disables" default:"5s" toml:"metrics.sse_interval" env:"METRICS_SSE_INTERVAL"`

	// Auth settings, empty disables auth
	AuthUsername string `help:"Basic auth username" default:"" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Logging settings
	LoggingLevel      string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat     string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingBufferSize int    `help:"Log entries kept for /api/logs/stream" default:"1000" toml:"logging.buffer_size" env:"LOGGING_BUFFER_SIZE"`
}

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		// Per-module levels come from [logging.modules]; flags win for the rest.
		loggingConfig := config.LoadLoggingConfig(opts.Config)
		loggingConfig.Level = opts.LoggingLevel
		loggingConfig.Format = opts.LoggingFormat
		loggingConfig.BufferSize = opts.LoggingBufferSize
		logging.Initialize(loggingConfig)

		logger := logging.GetLogger("main")

		var (
			server   *api.Server
			service  *supervisor.Service
			units    *systemd.Manager
			watcher  *config.Watcher[*jobs.File]
			exporter *exporters.SSEExporter
		)

		hooks.OnStart(func() {
			ctx := context.Background()
			logger.Info("Starting superprocess", "version", version.String(), "jobs", opts.JobsFile)

			eventBus := events.New()
			var logSeq atomic.Uint64
			logging.SetLogCallback(func(entry logging.LogEntry) {
				eventBus.Publish(api.LogEvent(entry, logSeq.Add(1)))
			})

			svcOpts := supervisor.Options{
				EventBus: eventBus,
				Optimizer: supervisor.NewBackoffTuner(supervisor.TunerConfig{
					MaxInterval:    parseDuration(logger, "tuner.max_interval", opts.TunerMaxInterval, supervisor.DefaultMaxInterval),
					MaxBaseBackoff: parseDuration(logger, "tuner.max_base_backoff", opts.TunerMaxBaseBackoff, supervisor.DefaultMaxBaseBackoff),
				}),
			}
			if opts.SystemdEnabled {
				mgr, err := systemd.NewManager(ctx, systemd.Bus(opts.SystemdBus))
				if err != nil {
					logger.Warn("systemd unavailable, unit jobs will be skipped", "error", err)
				} else {
					units = mgr
					svcOpts.Units = mgr
				}
			}
			service = supervisor.New(svcOpts)

			file, err := jobs.Load(opts.JobsFile)
			switch {
			case errors.Is(err, fs.ErrNotExist):
				logger.Warn("Jobs file not found, starting with no jobs", "path", opts.JobsFile)
			case err != nil:
				logger.Error("Failed to load jobs file", "path", opts.JobsFile, "error", err)
				os.Exit(1)
			default:
				if _, syncErr := service.Sync(file); syncErr != nil {
					logger.Warn("Some jobs could not be started", "error", syncErr)
				}
			}

			if opts.JobsWatch {
				watcher = config.NewConfigWatcher(opts.JobsFile, jobs.Load, logging.GetLogger("config"),
					config.WithDebounce[*jobs.File](parseDuration(logger, "jobs.debounce", opts.JobsDebounce, config.DefaultDebounce)))
				watcher.OnReload(service.Reload)
				if startErr := watcher.Start(); startErr != nil {
					logger.Warn("Failed to watch jobs file", "path", opts.JobsFile, "error", startErr)
					watcher = nil
				}
			}

			if interval := parseDuration(logger, "metrics.sse_interval", opts.MetricsSSEInterval, exporters.DefaultSSEInterval); interval > 0 {
				exporter = exporters.NewSSEExporter(eventBus, interval)
				exporter.Start(ctx)
			}

			apiOpts := &api.Options{
				AuthUsername: opts.AuthUsername,
				AuthPassword: opts.AuthPassword,
				Processes:    service,
				EventBus:     eventBus,
			}
			if opts.MetricsPrometheusEnabled {
				apiOpts.PrometheusHandler = exporters.HTTPHandler()
			}
			server = api.NewServer(apiOpts)

			logger.Info("Starting HTTP server", "port", opts.Port)
			if startErr := server.Start(opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down")
			if server != nil {
				if stopErr := server.Stop(); stopErr != nil {
					logger.Error("Error stopping HTTP server", "error", stopErr)
				}
			}

			// Stop reacting to file changes before tearing processes down.
			if watcher != nil {
				if stopErr := watcher.Stop(); stopErr != nil {
					logger.Warn("Error stopping jobs watcher", "error", stopErr)
				}
			}
			if exporter != nil {
				exporter.Stop()
			}

			if service != nil {
				ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				if stopErr := service.Shutdown(ctx); stopErr != nil {
					logger.Warn("Processes did not stop in time", "error", stopErr)
				}
				cancel()
			}

			if units != nil {
				units.Close()
			}
			logging.SetLogCallback(nil)
		})
	})

	cli.Root().Use = "superprocess"
	cli.Root().Short = "Supervise jobs with retries, metrics and self-tuning"
	cli.Root().Version = version.Long()

	cli.Root().AddCommand(cmd.CreateExecCmd())
	cli.Root().AddCommand(cmd.CreateValidateCmd())

	cli.Run()
}

// parseDuration parses a duration option, logging and falling back on error.
func parseDuration(logger *slog.Logger, key, value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		logger.Warn("Invalid duration, using default", "option", key, "value", value, "default", fallback)
		return fallback
	}
	return d
}
