package bus

import (
	"context"
	"errors"
	"testing"
	"time"

	"screensolve/internal/host"
)

func TestIdleTimeoutWaitsForAdmittedSender(t *testing.T) {
	mb := NewMailbox("worker", func(context.Context, any) (any, error) { return "pong", nil },
		WithIdleTimeout(5*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mb.Start(ctx)

	// A sender that passed admission but has not enqueued yet.
	if !mb.admit() {
		t.Fatal("fresh mailbox refused admission")
	}
	time.Sleep(40 * time.Millisecond)
	if !mb.Alive() {
		t.Fatal("idle timeout closed the mailbox with an admitted sender")
	}

	env := envelope{ctx: context.Background(), msg: "ping", reply: make(chan reply, 1)}
	mb.inbox <- env
	select {
	case r := <-env.reply:
		if r.err != nil || r.value != "pong" {
			t.Fatalf("reply = %v, %v", r.value, r.err)
		}
	case <-time.After(time.Second):
		t.Fatal("admitted message never handled")
	}

	select {
	case <-mb.Done():
	case <-time.After(time.Second):
		t.Fatal("mailbox did not idle out after the admitted message")
	}
	if _, err := mb.Request(context.Background(), "ping"); !errors.Is(err, host.ErrNoReceiver) {
		t.Fatalf("expected ErrNoReceiver after idle close, got %v", err)
	}
}
