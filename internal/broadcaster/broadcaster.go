package broadcaster

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"

	"nowplaying/internal/config"
	"nowplaying/internal/observability/metrics"
	"nowplaying/internal/rpc"
	logx "nowplaying/pkg/logx"
)

// Loader re-reads settings from the same resource the base settings came from.
type Loader interface {
	Load() (*config.Settings, error)
}

// Channel is an open, ordered, text-frame output.
type Channel interface {
	SendText(ctx context.Context, text string) error
}

type Option func(*Broadcaster)

func WithLogger(log logx.Logger) Option { return func(b *Broadcaster) { b.log = log } }

func WithClock(clock clockwork.Clock) Option { return func(b *Broadcaster) { b.clock = clock } }

// WithReloadHook is called after every successful reload, before the pass starts.
func WithReloadHook(fn func(prev, next *config.Settings)) Option {
	return func(b *Broadcaster) { b.onReload = fn }
}

// effective holds the values used for one pass.
type effective struct {
	interval time.Duration
	prefix   string
	suffix   string
}

type Broadcaster struct {
	base   *config.Settings
	lyrics []string
	loader Loader
	ch     Channel

	clock    clockwork.Clock
	log      logx.Logger
	onReload func(prev, next *config.Settings)

	// idle paces passes that sent nothing; nil means no pacing.
	idle *rate.Limiter
	last *config.Settings

	running  atomic.Bool
	state    atomic.Int32
	reasonMu sync.Mutex
	reason   StopReason
}

// New builds a broadcaster over already-loaded base settings and an open channel.
// The lyrics sequence is taken from base and never replaced by reloads.
func New(base *config.Settings, loader Loader, ch Channel, opts ...Option) *Broadcaster {
	if base == nil {
		base = &config.Settings{}
	}
	b := &Broadcaster{
		base:   base,
		lyrics: append([]string(nil), base.Lyrics...),
		loader: loader,
		ch:     ch,
		clock:  clockwork.NewRealClock(),
		last:   base,
	}
	for _, o := range opts {
		o(b)
	}

	idle, err := base.IdleDuration()
	if err != nil {
		b.log.Warn("invalid idle_wait; using default", logx.Err(err), logx.Duration("default", config.DefaultIdleWait))
		idle = config.DefaultIdleWait
	}
	if idle > 0 {
		b.idle = rate.NewLimiter(rate.Every(idle), 1)
	}
	return b
}

func (b *Broadcaster) State() State { return State(b.state.Load()) }

func (b *Broadcaster) StopReason() StopReason {
	b.reasonMu.Lock()
	defer b.reasonMu.Unlock()
	return b.reason
}

// Run loops until a fatal error or ctx cancellation.
// Cancellation returns nil; every other exit returns an error wrapping one of
// ErrReload, ErrSend or ErrEncode. A broadcaster runs at most once: it is the
// channel's only writer.
func (b *Broadcaster) Run(ctx context.Context) error {
	if b.State() == StateTerminated {
		return ErrTerminated
	}
	if !b.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	metrics.BroadcasterState.Set(1)
	b.log.Info("broadcaster started",
		logx.Int("lyrics", len(b.lyrics)),
		logx.Duration("interval", b.base.Interval()),
		logx.Bool("reload", b.base.Reload),
	)

	for {
		if ctx.Err() != nil {
			return b.terminate(StopCanceled, nil)
		}

		eff, err := b.beginPass()
		if err != nil {
			return b.terminate(StopReloadFailed, err)
		}

		for _, lyric := range b.lyrics {
			if err := b.send(ctx, eff, lyric); err != nil {
				if ctx.Err() != nil {
					return b.terminate(StopCanceled, nil)
				}
				if errors.Is(err, ErrEncode) {
					return b.terminate(StopEncodeFailed, err)
				}
				return b.terminate(StopSendFailed, err)
			}
			if err := b.sleep(ctx, eff.interval); err != nil {
				return b.terminate(StopCanceled, nil)
			}
		}
		metrics.Passes.Inc()

		if len(b.lyrics) == 0 {
			if err := b.idleWait(ctx); err != nil {
				return b.terminate(StopCanceled, nil)
			}
		}
	}
}

// beginPass computes the effective values for the next pass, reloading when
// the base settings ask for it.
func (b *Broadcaster) beginPass() (effective, error) {
	eff := effective{
		interval: b.base.Interval(),
		prefix:   b.base.PrefixText(),
		suffix:   b.base.SuffixText(),
	}
	if !b.base.Reload {
		return eff, nil
	}

	next, err := b.loader.Load()
	if err == nil && next == nil {
		err = errors.New("loader returned no settings")
	}
	if err != nil {
		metrics.ConfigReloads.WithLabelValues(metrics.ResultError).Inc()
		return effective{}, fmt.Errorf("%w: %w", ErrReload, err)
	}
	metrics.ConfigReloads.WithLabelValues(metrics.ResultOK).Inc()

	if b.onReload != nil {
		b.onReload(b.last, next)
	}
	b.last = next

	eff.interval = next.Interval()
	eff.prefix = next.PrefixText()
	eff.suffix = next.SuffixText()
	b.log.Debug("config reloaded",
		logx.Duration("interval", eff.interval),
		logx.String("prefix", eff.prefix),
		logx.String("suffix", eff.suffix),
	)
	return eff, nil
}

func (b *Broadcaster) send(ctx context.Context, eff effective, lyric string) error {
	payload, err := rpc.TextStatus(rpc.FormatText(eff.prefix, lyric, eff.suffix)).Encode()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEncode, err)
	}
	if err := b.ch.SendText(ctx, payload); err != nil {
		metrics.SendErrors.Inc()
		return fmt.Errorf("%w: %w", ErrSend, err)
	}
	metrics.MessagesSent.Inc()
	metrics.LastSendTimestamp.Set(float64(b.clock.Now().Unix()))
	b.log.Info("sent message: " + payload)
	return nil
}

func (b *Broadcaster) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := b.clock.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.Chan():
		return nil
	}
}

// idleWait keeps an empty lyrics list from spinning: at most one pass per
// idle_wait. Reservations are taken at the injected clock's time so tests
// can drive it with a fake clock.
func (b *Broadcaster) idleWait(ctx context.Context) error {
	if b.idle == nil {
		return ctx.Err()
	}
	now := b.clock.Now()
	r := b.idle.ReserveN(now, 1)
	if !r.OK() {
		return ctx.Err()
	}
	return b.sleep(ctx, r.DelayFrom(now))
}

func (b *Broadcaster) terminate(reason StopReason, err error) error {
	b.state.Store(int32(StateTerminated))
	b.reasonMu.Lock()
	b.reason = reason
	b.reasonMu.Unlock()
	metrics.BroadcasterState.Set(0)

	if err != nil {
		b.log.Error("broadcaster terminated", logx.String("reason", string(reason)), logx.Err(err))
		return err
	}
	b.log.Info("broadcaster stopped", logx.String("reason", string(reason)))
	return nil
}
