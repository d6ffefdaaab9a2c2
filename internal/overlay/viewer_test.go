package overlay

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"screensolve/internal/host"
	"screensolve/internal/logging"
	"screensolve/internal/notifications"
	"screensolve/internal/notify"
)

func TestViewerStreamsFramesAndDismisses(t *testing.T) {
	dismissed := make(chan host.SurfaceID, 1)
	v := NewViewer(logging.NewNop(), func(_ context.Context, s host.SurfaceID) error {
		dismissed <- s
		return nil
	})
	_ = v.Present(context.Background(), Frame{Surface: "w0", State: "visible", HTML: "<div>old</div>"})

	srv := httptest.NewServer(v.Handler())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/overlay/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first Frame
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read initial frame: %v", err)
	}
	if first.Surface != "w0" || first.HTML != "<div>old</div>" {
		t.Fatalf("initial frame = %+v", first)
	}

	deadline := time.Now().Add(2 * time.Second)
	for v.Clients() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	_ = v.Present(context.Background(), Frame{Surface: "w1", State: "visible", Kind: "result", HTML: "<p>42</p>"})
	var next Frame
	if err := conn.ReadJSON(&next); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if next.Surface != "w1" || next.Kind != "result" {
		t.Fatalf("frame = %+v", next)
	}

	if err := conn.WriteJSON(map[string]string{"type": "dismiss", "surface": "w1"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	select {
	case s := <-dismissed:
		if s != "w1" {
			t.Fatalf("dismissed %q", s)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("dismiss not received")
	}
}

func TestViewerDismissEndpoint(t *testing.T) {
	v := NewViewer(logging.NewNop(), func(_ context.Context, s host.SurfaceID) error {
		if s != "known" {
			return host.ErrNoReceiver
		}
		return nil
	})
	srv := httptest.NewServer(v.Handler())
	defer srv.Close()

	cases := map[string]int{
		"/overlay/dismiss?surface=known":   http.StatusNoContent,
		"/overlay/dismiss?surface=missing": http.StatusNotFound,
		"/overlay/dismiss":                 http.StatusBadRequest,
	}
	for path, want := range cases {
		resp, err := http.Post(srv.URL+path, "text/plain", nil)
		if err != nil {
			t.Fatalf("post %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != want {
			t.Errorf("%s status = %d, want %d", path, resp.StatusCode, want)
		}
	}
}

func TestViewerPageAndAbsentFrames(t *testing.T) {
	v := NewViewer(logging.NewNop(), nil)
	_ = v.Present(context.Background(), Frame{Surface: "a", State: "visible"})
	_ = v.Present(context.Background(), Frame{Surface: "a", State: "absent"})
	if n := len(v.Frames()); n != 0 {
		t.Fatalf("absent frame retained, %d frames", n)
	}

	srv := httptest.NewServer(v.Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL + "/overlay")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "/overlay/ws") {
		t.Fatal("overlay page does not reference the websocket endpoint")
	}
}

func TestViewerPageKeepsDismissControlOnUpdate(t *testing.T) {
	widget := RenderWidget("tab-1", PhaseVisible, RenderContent(notify.Started{}))
	content := strings.Index(widget, `class="ss-content"`)
	dismiss := strings.Index(widget, `class="ss-dismiss"`)
	if content < 0 || dismiss < 0 || dismiss > content {
		t.Fatalf("dismiss control must sit outside the content node: %s", widget)
	}

	srv := httptest.NewServer(NewViewer(logging.NewNop(), nil).Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL + "/overlay")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	page := string(body)
	// Once mounted, frames replace only the content node and the phase class.
	for _, want := range []string{`querySelector(".ss-widget")`, `widget.querySelector(".ss-content").innerHTML`, "widget.className = next.className"} {
		if !strings.Contains(page, want) {
			t.Errorf("overlay page missing in-place update %q", want)
		}
	}
}

type fakeService struct {
	mu     sync.Mutex
	events []notifications.Event
	done   chan struct{}
}

func (f *fakeService) Publish(_ context.Context, e notifications.Event, _ notifications.Payload) error {
	f.mu.Lock()
	f.events = append(f.events, e)
	f.mu.Unlock()
	f.done <- struct{}{}
	return errors.New("offline")
}

func TestNtfyPresenterPublishesFinalOutcomes(t *testing.T) {
	svc := &fakeService{done: make(chan struct{}, 4)}
	p := NtfyPresenter{Service: svc, Logger: logging.NewNop()}

	_ = p.Present(context.Background(), Frame{Surface: "w", Notification: notify.Started{}})
	_ = p.Present(context.Background(), Frame{Surface: "w"})
	_ = p.Present(context.Background(), Frame{Surface: "w", Notification: notify.Result{Answer: "42", Confidence: 0.9}})
	_ = p.Present(context.Background(), Frame{Surface: "w", Notification: notify.Failure{Message: "x"}})

	for i := 0; i < 2; i++ {
		select {
		case <-svc.done:
		case <-time.After(2 * time.Second):
			t.Fatal("publish not called")
		}
	}
	svc.mu.Lock()
	defer svc.mu.Unlock()
	if len(svc.events) != 2 {
		t.Fatalf("events = %v", svc.events)
	}
}
