package notify

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"vitaremind/internal/domain"
)

// blockingSender parks every send until release is closed, so tests can hold
// the single worker busy and fill the queue deterministically.
type blockingSender struct {
	started chan struct{}
	release chan struct{}
}

func (s *blockingSender) send(ctx context.Context, _ Payload) error {
	s.started <- struct{}{}
	select {
	case <-s.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type countingSender struct {
	calls atomic.Int32
	err   error
}

func (s *countingSender) send(context.Context, Payload) error {
	s.calls.Add(1)
	return s.err
}

func emailPayload() Payload {
	return Payload{Channel: domain.ChannelEmail, Destination: "user@example.com", Subject: "VitaReminder", Message: "hi"}
}

func TestDispatchBeforeStart(t *testing.T) {
	t.Parallel()
	d := New(Config{}, zerolog.Nop())
	if err := d.Dispatch(context.Background(), emailPayload()); !errors.Is(err, ErrStopped) {
		t.Fatalf("err = %v, want ErrStopped", err)
	}
}

func TestDispatchUnknownChannel(t *testing.T) {
	t.Parallel()
	d := New(Config{}, zerolog.Nop())
	d.Start(context.Background())
	defer d.Stop(context.Background())

	err := d.Dispatch(context.Background(), Payload{Channel: domain.Channel("fax")})
	if !errors.Is(err, ErrUnknownChannel) {
		t.Fatalf("err = %v, want ErrUnknownChannel", err)
	}
}

func TestDispatchAfterStop(t *testing.T) {
	t.Parallel()
	d := New(Config{}, zerolog.Nop())
	d.Start(context.Background())
	d.Stop(context.Background())

	if err := d.Dispatch(context.Background(), emailPayload()); !errors.Is(err, ErrStopped) {
		t.Fatalf("err = %v, want ErrStopped", err)
	}
}

func TestDispatchQueueFull(t *testing.T) {
	t.Parallel()
	d := New(Config{Workers: 1, QueueSize: 1, RatePerSec: 1000}, zerolog.Nop())
	blocker := &blockingSender{started: make(chan struct{}, 4), release: make(chan struct{})}
	d.email = blocker

	d.Start(context.Background())
	defer func() {
		close(blocker.release)
		d.Stop(context.Background())
	}()

	// First payload is taken by the worker and parked inside the sender.
	if err := d.Dispatch(context.Background(), emailPayload()); err != nil {
		t.Fatal(err)
	}
	select {
	case <-blocker.started:
	case <-time.After(2 * time.Second):
		t.Fatal("worker never picked up the first payload")
	}

	// Second fills the queue; third must be rejected, not block the caller.
	if err := d.Dispatch(context.Background(), emailPayload()); err != nil {
		t.Fatal(err)
	}
	if err := d.Dispatch(context.Background(), emailPayload()); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("err = %v, want ErrQueueFull", err)
	}
}

func TestFailureHandlerCalledOnceNoRetry(t *testing.T) {
	t.Parallel()
	d := New(Config{Workers: 1, RatePerSec: 1000}, zerolog.Nop())
	snd := &countingSender{err: errors.New("smtp down")}
	d.email = snd

	failures := make(chan error, 4)
	d.SetFailureHandler(func(_ Payload, err error) { failures <- err })

	d.Start(context.Background())
	defer d.Stop(context.Background())

	if err := d.Dispatch(context.Background(), emailPayload()); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-failures:
		if err == nil {
			t.Fatal("failure handler received nil error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("failure handler never called")
	}

	// One delivery attempt only; a failed send is dropped, never requeued.
	time.Sleep(100 * time.Millisecond)
	if n := snd.calls.Load(); n != 1 {
		t.Fatalf("send attempts = %d, want 1", n)
	}
	select {
	case <-failures:
		t.Fatal("failure handler called more than once")
	default:
	}
}

func TestSuccessfulSendSkipsFailureHandler(t *testing.T) {
	t.Parallel()
	d := New(Config{Workers: 1, RatePerSec: 1000}, zerolog.Nop())
	snd := &countingSender{}
	d.text = snd

	var failed atomic.Bool
	d.SetFailureHandler(func(Payload, error) { failed.Store(true) })

	d.Start(context.Background())
	defer d.Stop(context.Background())

	p := Payload{Channel: domain.ChannelText, Destination: "+15550001111", Message: "hi"}
	if err := d.Dispatch(context.Background(), p); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for snd.calls.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("send never attempted")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if failed.Load() {
		t.Fatal("failure handler called for a successful send")
	}
}

func TestStartTwiceIsNoop(t *testing.T) {
	t.Parallel()
	d := New(Config{Workers: 1}, zerolog.Nop())
	d.Start(context.Background())
	d.Start(context.Background())
	d.Stop(context.Background())
	// Stop is also idempotent.
	d.Stop(context.Background())
}

func TestConfigDefaults(t *testing.T) {
	t.Parallel()
	c := Config{}.withDefaults()
	if c.Workers != 2 || c.QueueSize != 64 || c.RatePerSec != 3 {
		t.Fatalf("pool defaults wrong: %+v", c)
	}
	if c.Email.Host != "smtp.gmail.com" || c.Email.Port != 587 {
		t.Fatalf("email defaults wrong: %+v", c.Email)
	}
	if c.Gateway.SessionURL != "https://api.tropo.com/1.0/sessions" {
		t.Fatalf("gateway default wrong: %+v", c.Gateway)
	}
}
