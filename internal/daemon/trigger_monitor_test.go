package daemon

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pilebones/go-udev/netlink"

	"screensolve/internal/config"
)

func monitorConfig(subsystem, device string) *config.Config {
	cfg := &config.Config{}
	cfg.Trigger.UdevSubsystem = subsystem
	cfg.Trigger.UdevDevice = device
	cfg.Trigger.UdevAction = "add"
	return cfg
}

func TestNewTriggerMonitor(t *testing.T) {
	t.Run("nil config returns nil", func(t *testing.T) {
		if m := newTriggerMonitor(nil, nil, nil); m != nil {
			t.Error("expected nil monitor for nil config")
		}
	})

	t.Run("empty subsystem returns nil", func(t *testing.T) {
		if m := newTriggerMonitor(monitorConfig("", "/devices/x"), nil, nil); m != nil {
			t.Error("expected nil monitor without a subsystem")
		}
	})

	t.Run("valid config creates monitor", func(t *testing.T) {
		m := newTriggerMonitor(monitorConfig("input", "/devices/usb1/1-2"), nil, nil)
		if m == nil {
			t.Fatal("expected non-nil monitor")
		}
		if m.subsystem != "input" || m.device != "/devices/usb1/1-2" || m.action != "add" {
			t.Errorf("unexpected monitor fields %+v", m)
		}
	})
}

func TestTriggerMonitorNilSafety(t *testing.T) {
	var m *triggerMonitor
	if m.Running() {
		t.Error("expected Running() to return false for nil monitor")
	}
	m.Stop()
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start on nil monitor should return nil, got: %v", err)
	}

	m = newTriggerMonitor(monitorConfig("input", ""), nil, nil)
	m.Stop()
	m.Stop()
	if m.Running() {
		t.Error("expected unstarted monitor to report not running")
	}
}

func TestTriggerMatcher(t *testing.T) {
	m := newTriggerMonitor(monitorConfig("input", ""), nil, nil)
	matcher := m.buildMatcher()

	add := netlink.UEvent{Action: netlink.ADD, Env: map[string]string{"SUBSYSTEM": "input"}}
	if !matcher.Evaluate(add) {
		t.Error("expected matcher to accept add event for the subsystem")
	}
	remove := netlink.UEvent{Action: netlink.REMOVE, Env: map[string]string{"SUBSYSTEM": "input"}}
	if matcher.Evaluate(remove) {
		t.Error("expected matcher to reject remove event")
	}
	other := netlink.UEvent{Action: netlink.ADD, Env: map[string]string{"SUBSYSTEM": "block"}}
	if matcher.Evaluate(other) {
		t.Error("expected matcher to reject other subsystems")
	}
}

func TestTriggerHandleEvent(t *testing.T) {
	const device = "/devices/pci0000:00/0000:00:14.0/usb1/1-2"

	newMonitor := func(calls *int, err error) (*triggerMonitor, *time.Time) {
		clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		m := newTriggerMonitor(monitorConfig("input", device), nil, func(context.Context) error {
			*calls++
			return err
		})
		m.now = func() time.Time { return clock }
		return m, &clock
	}

	t.Run("ignores other devices", func(t *testing.T) {
		var calls int
		m, _ := newMonitor(&calls, nil)
		m.handleEvent(context.Background(), netlink.UEvent{
			Action: netlink.ADD,
			Env:    map[string]string{"DEVPATH": "/devices/pci0000:00/0000:00:14.0/usb1/1-3"},
		})
		if calls != 0 {
			t.Errorf("expected no trigger, got %d", calls)
		}
	})

	t.Run("accepts child interfaces of the device", func(t *testing.T) {
		var calls int
		m, _ := newMonitor(&calls, nil)
		m.handleEvent(context.Background(), netlink.UEvent{
			Action: netlink.ADD,
			Env:    map[string]string{"DEVPATH": device + "/1-2:1.0/input/input42"},
		})
		if calls != 1 {
			t.Errorf("expected 1 trigger, got %d", calls)
		}
	})

	t.Run("debounces bursts", func(t *testing.T) {
		var calls int
		m, clock := newMonitor(&calls, nil)
		event := netlink.UEvent{Action: netlink.ADD, KObj: device}
		m.handleEvent(context.Background(), event)
		*clock = clock.Add(500 * time.Millisecond)
		m.handleEvent(context.Background(), event)
		if calls != 1 {
			t.Errorf("expected burst to collapse into 1 trigger, got %d", calls)
		}
		*clock = clock.Add(triggerDebounce)
		m.handleEvent(context.Background(), event)
		if calls != 2 {
			t.Errorf("expected a second trigger after the debounce window, got %d", calls)
		}
	})

	t.Run("handler errors are logged only", func(t *testing.T) {
		var calls int
		m, _ := newMonitor(&calls, errors.New("busy"))
		m.handleEvent(context.Background(), netlink.UEvent{Action: netlink.ADD, KObj: device})
		if calls != 1 {
			t.Errorf("expected handler call, got %d", calls)
		}
	})
}
