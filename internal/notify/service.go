// Package notify delivers reminder messages through per-medium senders
// behind a single dispatch entry point. Sends are fire-and-forget on a
// bounded worker pool: no retry, no coupling back into the scheduler.
package notify

import (
	"context"
	"runtime/debug"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"vitaremind/internal/domain"
)

type sender interface {
	send(ctx context.Context, p Payload) error
}

// Dispatcher is the async notification pipeline: queue + worker pool + rate
// limit. Safe for concurrent use.
type Dispatcher struct {
	mu sync.Mutex

	log     zerolog.Logger
	cfg     Config
	limiter *rate.Limiter

	email sender
	text  sender
	voice sender

	onFailure FailureHandler

	accepting bool
	queue     chan Payload
	runCtx    context.Context
	runCancel context.CancelFunc
	workerWG  sync.WaitGroup
}

func New(cfg Config, log zerolog.Logger) *Dispatcher {
	cfg = cfg.withDefaults()
	return &Dispatcher{
		log:     log,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
		email:   &emailSender{cfg: cfg.Email},
		text:    newGatewaySender(cfg.Gateway, EnvTextToken, "messageBody"),
		voice:   newGatewaySender(cfg.Gateway, EnvVoiceToken, "msg"),
	}
}

// SetFailureHandler installs the operator-facing error surface. Must be
// called before Start.
func (d *Dispatcher) SetFailureHandler(fn FailureHandler) {
	d.mu.Lock()
	d.onFailure = fn
	d.mu.Unlock()
}

func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	if d.queue != nil {
		d.mu.Unlock()
		return
	}
	d.queue = make(chan Payload, d.cfg.QueueSize)
	d.accepting = true
	d.runCtx, d.runCancel = context.WithCancel(ctx)
	workers := d.cfg.Workers
	d.mu.Unlock()

	for i := 0; i < workers; i++ {
		i := i
		d.workerWG.Add(1)
		go func() {
			defer d.workerWG.Done()
			defer func() {
				if r := recover(); r != nil {
					d.log.Error().Int("worker", i).Any("panic", r).Str("stack", string(debug.Stack())).Msg("panic in notify worker")
				}
			}()
			d.workerLoop()
		}()
	}
	d.log.Info().Int("workers", workers).Msg("notify dispatcher started")
}

// Stop halts intake and cancels workers. Queued and in-flight sends are
// abandoned rather than drained; a missed reminder is preferable to a
// shutdown that blocks on a slow SMTP dial.
func (d *Dispatcher) Stop(ctx context.Context) {
	d.mu.Lock()
	if d.queue == nil {
		d.mu.Unlock()
		return
	}
	d.accepting = false
	cancel := d.runCancel
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		d.workerWG.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
	case <-done:
	}

	d.mu.Lock()
	d.queue = nil
	d.runCtx = nil
	d.runCancel = nil
	d.mu.Unlock()
	d.log.Info().Msg("notify dispatcher stopped")
}

// Dispatch enqueues one send and returns immediately. The scheduler's fire
// handler is the main caller; it must never block on transmission.
func (d *Dispatcher) Dispatch(ctx context.Context, p Payload) error {
	if !p.Channel.Valid() {
		return ErrUnknownChannel
	}
	if ctx != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}

	d.mu.Lock()
	if !d.accepting || d.queue == nil {
		d.mu.Unlock()
		return ErrStopped
	}
	q := d.queue
	d.mu.Unlock()

	select {
	case q <- p:
		return nil
	default:
		return ErrQueueFull
	}
}

func (d *Dispatcher) workerLoop() {
	d.mu.Lock()
	q := d.queue
	runCtx := d.runCtx
	d.mu.Unlock()

	for {
		select {
		case <-runCtx.Done():
			return
		case p := <-q:
			d.sendOne(runCtx, p)
		}
	}
}

// sendOne performs exactly one delivery attempt. Failures are logged, handed
// to the operator surface once, and dropped.
func (d *Dispatcher) sendOne(runCtx context.Context, p Payload) {
	if err := d.limiter.Wait(runCtx); err != nil {
		return
	}

	snd := d.senderFor(p.Channel)
	if snd == nil {
		d.log.Error().Str("channel", p.Channel.String()).Msg("no sender for channel")
		return
	}

	ctx, cancel := context.WithTimeout(runCtx, d.cfg.SendTimeout)
	err := snd.send(ctx, p)
	cancel()
	if err == nil {
		d.log.Info().Str("channel", p.Channel.String()).Msg("reminder sent")
		return
	}

	d.log.Warn().Str("channel", p.Channel.String()).Err(err).Msg("reminder send failed")
	d.mu.Lock()
	fn := d.onFailure
	d.mu.Unlock()
	if fn != nil {
		fn(p, err)
	}
}

func (d *Dispatcher) senderFor(c domain.Channel) sender {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch c {
	case domain.ChannelEmail:
		return d.email
	case domain.ChannelText:
		return d.text
	case domain.ChannelVoice:
		return d.voice
	}
	return nil
}
