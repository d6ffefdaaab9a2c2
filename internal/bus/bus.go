package bus

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"screensolve/internal/host"
	"screensolve/internal/notify"
)

// ErrAttached reports a surface that already has a live receiver.
var ErrAttached = errors.New("surface already has a receiver")

// Bus routes messages between execution contexts.
type Bus struct {
	mu        sync.RWMutex
	surfaces  map[host.SurfaceID]*Mailbox
	listeners map[uint64]func(any)
	nextID    uint64
}

// New returns an empty bus.
func New() *Bus {
	return &Bus{
		surfaces:  make(map[host.SurfaceID]*Mailbox),
		listeners: make(map[uint64]func(any)),
	}
}

// Attach registers mb as the receiver for surface id. A dead previous receiver
// is replaced; a live one yields ErrAttached.
func (b *Bus) Attach(id host.SurfaceID, mb *Mailbox) error {
	if mb == nil {
		return errors.New("attach: mailbox is nil")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if existing, ok := b.surfaces[id]; ok && existing.Alive() {
		return fmt.Errorf("attach %s: %w", id, ErrAttached)
	}
	b.surfaces[id] = mb
	return nil
}

// Detach removes the receiver for surface id, if it is still mb.
func (b *Bus) Detach(id host.SurfaceID, mb *Mailbox) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if existing, ok := b.surfaces[id]; ok && (mb == nil || existing == mb) {
		delete(b.surfaces, id)
	}
}

// Receiver returns the live receiver attached to surface id.
func (b *Bus) Receiver(id host.SurfaceID) (*Mailbox, bool) {
	b.mu.RLock()
	mb, ok := b.surfaces[id]
	b.mu.RUnlock()
	if !ok || !mb.Alive() {
		return nil, false
	}
	return mb, true
}

// Surfaces lists surfaces with a live receiver.
func (b *Bus) Surfaces() []host.SurfaceID {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]host.SurfaceID, 0, len(b.surfaces))
	for id, mb := range b.surfaces {
		if mb.Alive() {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SendToSurface delivers n to the surface's receiver and waits for the
// acknowledgement. It returns host.ErrNoReceiver when nothing is attached.
func (b *Bus) SendToSurface(ctx context.Context, id host.SurfaceID, n notify.Notification) error {
	mb, ok := b.Receiver(id)
	if !ok {
		return fmt.Errorf("send to surface %s: %w", id, host.ErrNoReceiver)
	}
	if _, err := mb.Request(ctx, n); err != nil {
		if errors.Is(err, host.ErrNoReceiver) {
			b.Detach(id, mb)
		}
		return fmt.Errorf("send to surface %s: %w", id, err)
	}
	return nil
}

// PostToSurface enqueues msg for the surface's receiver without waiting.
func (b *Bus) PostToSurface(id host.SurfaceID, msg any) error {
	mb, ok := b.Receiver(id)
	if !ok {
		return fmt.Errorf("post to surface %s: %w", id, host.ErrNoReceiver)
	}
	return mb.Post(msg)
}

// Listen registers fn for every runtime broadcast until the returned function
// is called. fn runs on the broadcaster's goroutine and must not block.
func (b *Bus) Listen(fn func(msg any)) (remove func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = fn
	b.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.listeners, id)
			b.mu.Unlock()
		})
	}
}

// Once returns a channel that receives the first broadcast accepted by match,
// after which the listener removes itself. cancel releases the listener early.
func (b *Bus) Once(match func(msg any) bool) (msgs <-chan any, cancel func()) {
	ch := make(chan any, 1)
	var (
		mu     sync.Mutex
		fired  bool
		remove func()
	)
	mu.Lock()
	remove = b.Listen(func(msg any) {
		if !match(msg) {
			return
		}
		mu.Lock()
		if fired {
			mu.Unlock()
			return
		}
		fired = true
		ch <- msg
		release := remove
		mu.Unlock()
		go release()
	})
	mu.Unlock()
	return ch, remove
}

// Broadcast delivers msg to every runtime listener.
func (b *Bus) Broadcast(msg any) {
	b.mu.RLock()
	fns := make([]func(any), 0, len(b.listeners))
	for _, fn := range b.listeners {
		fns = append(fns, fn)
	}
	b.mu.RUnlock()
	for _, fn := range fns {
		fn(msg)
	}
}
