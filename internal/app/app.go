package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/fsnotify/fsnotify"

	"nowplaying/internal/broadcaster"
	"nowplaying/internal/config"
	"nowplaying/internal/observability/metrics"
	"nowplaying/internal/rpc"
	rtsup "nowplaying/internal/runtime/supervisor"
	logx "nowplaying/pkg/logx"
)

const (
	dialTimeout     = 15 * time.Second
	stopStepTimeout = 3 * time.Second
)

// Options are process-level settings that do not live in the config file.
type Options struct {
	// ConfigPath pins the config file; empty resolves "config.<ext>" in the working directory.
	ConfigPath string
	// Endpoint overrides rpc.DefaultEndpoint.
	Endpoint string
	// LogLevel overrides logging.level from the config file when set.
	LogLevel string
}

type App struct {
	opts Options

	src  config.Source
	base *config.Settings

	log  logx.Logger
	logs *logx.Service

	conn    *rpc.Conn
	bc      *broadcaster.Broadcaster
	metrics *metrics.Service
	sup     *rtsup.Supervisor
}

// New loads the base settings and sets up logging.
// Failures wrap broadcaster.ErrConfig.
func New(opts Options) (*App, error) {
	if strings.TrimSpace(opts.Endpoint) == "" {
		opts.Endpoint = rpc.DefaultEndpoint
	}
	src := config.NewSource(opts.ConfigPath)
	base, err := src.Load()
	if err != nil {
		// Logging settings live in the file that failed; report on stderr.
		logx.NewConsole(logx.Stderr(), "error").Error("config load failed",
			logx.String("reason", string(StopConfigFailed)), logx.Err(err))
		return nil, fmt.Errorf("%w: %w", broadcaster.ErrConfig, err)
	}

	logSvc, log := logx.New(mapLogConfig(base, opts.LogLevel))
	log = log.With(logx.String("comp", "app"))

	return &App{
		opts: opts,
		src:  src,
		base: base,
		log:  log,
		logs: logSvc,
		metrics: metrics.New(metrics.Config{
			Enabled: base.Metrics.Enabled,
			Addr:    base.Metrics.Addr,
		}, log.With(logx.String("comp", "metrics"))),
	}, nil
}

func mapLogConfig(s *config.Settings, levelOverride string) logx.Config {
	level := s.Logging.Level
	if strings.TrimSpace(levelOverride) != "" {
		level = levelOverride
	}
	return logx.Config{
		Level:   level,
		Console: s.Logging.Console,
		File: logx.FileConfig{
			Enabled: s.Logging.File.Enabled,
			Path:    s.Logging.File.Path,
		},
	}
}

// Settings returns the base settings loaded at startup.
func (a *App) Settings() *config.Settings { return a.base }

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Start opens the connection once and launches the broadcaster.
// A dial failure wraps broadcaster.ErrConnect.
func (a *App) Start(ctx context.Context) error {
	dctx, cancel := context.WithTimeout(ctx, dialTimeout)
	conn, err := rpc.Dial(dctx, a.opts.Endpoint, rpc.DialOptions{
		Logger: a.log.With(logx.String("comp", "rpc")),
	})
	cancel()
	if err != nil {
		a.log.Error("connect failed", logx.String("endpoint", a.opts.Endpoint), logx.String("reason", string(StopConnectFailed)), logx.Err(err))
		return fmt.Errorf("%w: %w", broadcaster.ErrConnect, err)
	}
	a.conn = conn
	a.log.Info("connected", logx.String("endpoint", a.opts.Endpoint))

	a.sup = rtsup.NewSupervisor(ctx,
		rtsup.WithLogger(a.log.With(logx.String("comp", "supervisor"))),
		rtsup.WithCancelOnError(true),
	)

	a.bc = broadcaster.New(a.base, a.src, conn,
		broadcaster.WithLogger(a.log.With(logx.String("comp", "broadcaster"))),
		broadcaster.WithReloadHook(a.onReload),
	)
	a.sup.Go("broadcaster", a.bc.Run)

	if a.base.Reload {
		a.startWatcher()
	}
	if a.metrics.Enabled() {
		// Metrics are optional observability; never hard-kill the app.
		a.sup.GoRestart("metrics", a.metrics.Serve, rtsup.WithRestartBackoff(500*time.Millisecond, 10*time.Second))
	}

	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Warn("sd_notify ready failed", logx.Err(err))
	} else if ok {
		a.log.Debug("sd_notify ready sent")
	}
	return nil
}

func (a *App) startWatcher() {
	path, err := a.src.Resolve()
	if err != nil {
		a.log.Warn("config watch disabled", logx.Err(err))
		return
	}
	w := config.NewWatcher(path, a.log.With(logx.String("comp", "config")), func(ev fsnotify.Event) {
		a.log.Info("config file changed; applies at next pass", logx.String("path", path), logx.String("op", ev.Op.String()))
	})
	a.sup.GoRestart("config.watch", w.Watch)
}

// onReload runs on the broadcaster goroutine after each successful reload.
func (a *App) onReload(prev, next *config.Settings) {
	changed, attrs := config.SummarizeChange(prev, next)
	if len(changed) == 0 {
		return
	}
	a.log.Info("config changed", append([]logx.Field{logx.Strs("sections", changed)}, attrs...)...)

	for _, c := range changed {
		switch c {
		case "logging":
			a.logs.Apply(mapLogConfig(next, a.opts.LogLevel))
		case "lyrics":
			a.log.Warn("lyrics changes take effect after restart")
		}
	}
}

// StopReason reports why the broadcaster stopped ("" while running).
func (a *App) StopReason() StopReason {
	if a.bc == nil {
		return broadcaster.StopNone
	}
	return a.bc.StopReason()
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return a.logs.Close()
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	wctx, cancel := context.WithTimeout(ctx, stopStepTimeout)
	err := a.sup.Stop(wctx)
	cancel()
	if n := a.sup.Active(); n > 0 {
		a.log.Warn("goroutines still running after stop", logx.Int("active", int(n)))
	}

	if a.conn != nil {
		if cerr := a.conn.Close(); cerr != nil {
			a.log.Debug("connection close", logx.Err(cerr))
		}
	}
	a.log.Info("stopped", logx.String("broadcaster", string(a.StopReason())))
	_ = a.logs.Close()
	return err
}
