package bus_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"screensolve/internal/bus"
	"screensolve/internal/host"
	"screensolve/internal/notify"
)

func TestSendToSurfaceWithoutReceiver(t *testing.T) {
	b := bus.New()
	err := b.SendToSurface(context.Background(), "win-1", notify.Started{})
	if !errors.Is(err, host.ErrNoReceiver) {
		t.Fatalf("expected ErrNoReceiver, got %v", err)
	}
}

func TestSendToSurfaceWaitsForHandler(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var handled atomic.Int32
	mb := bus.NewMailbox("agent", func(_ context.Context, msg any) (any, error) {
		if _, ok := msg.(notify.Notification); ok {
			handled.Add(1)
		}
		return nil, nil
	})
	mb.Start(ctx)

	b := bus.New()
	if err := b.Attach("win-1", mb); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if err := b.SendToSurface(ctx, "win-1", notify.Failure{Message: "x"}); err != nil {
		t.Fatalf("SendToSurface: %v", err)
	}
	if handled.Load() != 1 {
		t.Fatalf("expected handler to run before acknowledgement, got %d", handled.Load())
	}
	if got := b.Surfaces(); len(got) != 1 || got[0] != "win-1" {
		t.Fatalf("unexpected surfaces: %v", got)
	}
}

func TestAttachRejectsLiveReceiver(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	first := bus.NewMailbox("a", func(context.Context, any) (any, error) { return nil, nil })
	first.Start(ctx)
	b := bus.New()
	if err := b.Attach("s", first); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	second := bus.NewMailbox("b", func(context.Context, any) (any, error) { return nil, nil })
	if err := b.Attach("s", second); !errors.Is(err, bus.ErrAttached) {
		t.Fatalf("expected ErrAttached, got %v", err)
	}

	first.Close()
	<-first.Done()
	if err := b.Attach("s", second); err != nil {
		t.Fatalf("expected dead receiver to be replaced, got %v", err)
	}
}

func TestClosedReceiverIsTreatedAsAbsent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mb := bus.NewMailbox("agent", func(context.Context, any) (any, error) { return nil, nil })
	mb.Start(ctx)
	b := bus.New()
	if err := b.Attach("s", mb); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	mb.Close()
	<-mb.Done()

	if err := b.SendToSurface(ctx, "s", notify.Started{}); !errors.Is(err, host.ErrNoReceiver) {
		t.Fatalf("expected ErrNoReceiver, got %v", err)
	}
}

func TestMailboxIdleTimeoutClosesContext(t *testing.T) {
	closed := make(chan struct{})
	mb := bus.NewMailbox("worker", func(context.Context, any) (any, error) { return "pong", nil },
		bus.WithIdleTimeout(20*time.Millisecond),
		bus.OnClose(func() { close(closed) }),
	)
	mb.Start(context.Background())

	value, err := mb.Request(context.Background(), "ping")
	if err != nil || value != "pong" {
		t.Fatalf("Request = %v, %v", value, err)
	}

	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("expected idle mailbox to close")
	}
	if _, err := mb.Request(context.Background(), "ping"); !errors.Is(err, host.ErrNoReceiver) {
		t.Fatalf("expected closed mailbox to report ErrNoReceiver, got %v", err)
	}
}

func TestMailboxRecoversHandlerPanic(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mb := bus.NewMailbox("p", func(context.Context, any) (any, error) { panic("boom") })
	mb.Start(ctx)
	if _, err := mb.Request(ctx, 1); err == nil {
		t.Fatal("expected panic to surface as error")
	}
	if !mb.Alive() {
		t.Fatal("expected mailbox to survive handler panic")
	}
}

func TestOnceDeliversFirstMatchOnly(t *testing.T) {
	b := bus.New()
	msgs, cancel := b.Once(func(msg any) bool { return msg == "ready" })
	defer cancel()

	b.Broadcast("noise")
	b.Broadcast("ready")
	b.Broadcast("ready")

	select {
	case msg := <-msgs:
		if msg != "ready" {
			t.Fatalf("unexpected message %v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("expected readiness message")
	}
	select {
	case msg := <-msgs:
		t.Fatalf("expected a single delivery, got extra %v", msg)
	default:
	}
}
