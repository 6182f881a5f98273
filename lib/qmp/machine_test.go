// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package qmp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/digitalocean/go-qemu/qmp"

	"github.com/bureau-foundation/vmchat/lib/machine"
	"github.com/bureau-foundation/vmchat/lib/testutil"
)

// fakeMonitor answers QMP commands from a handler table and records
// every command it receives.
type fakeMonitor struct {
	status   string
	handlers map[string]func(args json.RawMessage) (string, error)

	commands []recorded
}

type recorded struct {
	Execute string
	Args    json.RawMessage
}

func (f *fakeMonitor) Connect() error    { return nil }
func (f *fakeMonitor) Disconnect() error { return nil }

func (f *fakeMonitor) Events(context.Context) (<-chan qmp.Event, error) {
	events := make(chan qmp.Event)
	close(events)
	return events, nil
}

func (f *fakeMonitor) Run(command []byte) ([]byte, error) {
	var parsed struct {
		Execute   string          `json:"execute"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(command, &parsed); err != nil {
		return nil, err
	}
	f.commands = append(f.commands, recorded{Execute: parsed.Execute, Args: parsed.Arguments})

	if handler, ok := f.handlers[parsed.Execute]; ok {
		result, err := handler(parsed.Arguments)
		if err != nil {
			return nil, err
		}
		return []byte(`{"return":` + result + `}`), nil
	}
	if parsed.Execute == "query-status" {
		return []byte(`{"return":{"status":"` + f.status + `","running":true}}`), nil
	}
	return []byte(`{"return":{}}`), nil
}

// requireArgs compares command arguments as JSON values, ignoring key
// order.
func requireArgs(t *testing.T, got json.RawMessage, want string) {
	t.Helper()
	var gotValue, wantValue any
	if err := json.Unmarshal(got, &gotValue); err != nil {
		t.Fatalf("decoding args %s: %v", got, err)
	}
	if err := json.Unmarshal([]byte(want), &wantValue); err != nil {
		t.Fatalf("decoding expected args: %v", err)
	}
	if !reflect.DeepEqual(gotValue, wantValue) {
		t.Errorf("args = %s\nwant %s", got, want)
	}
}

func (f *fakeMonitor) executed() []string {
	var names []string
	for _, command := range f.commands {
		names = append(names, command.Execute)
	}
	return names
}

type fixture struct {
	machine *Machine
	monitor *fakeMonitor
	// reachable controls whether dialing succeeds.
	reachable bool
	dials     int
	starts    [][]string
}

func newFixture(t *testing.T, monitor *fakeMonitor, reachable bool) *fixture {
	t.Helper()
	f := &fixture{monitor: monitor, reachable: reachable}
	m, err := New(Config{
		Name:   "chatbox",
		Binary: "qemu-system-x86_64",
		Args:   []string{"-m", "512"},
		Socket: filepath.Join(t.TempDir(), "qmp.sock"),
		Dial: func(string, time.Duration) (Monitor, error) {
			f.dials++
			if !f.reachable {
				return nil, errors.New("connection refused")
			}
			return f.monitor, nil
		},
		Start: func(_ context.Context, binary string, args []string) error {
			f.starts = append(f.starts, append([]string{binary}, args...))
			f.reachable = true
			return nil
		},
		Clock: testutil.Instant(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	f.machine = m
	return f
}

func TestStateMapping(t *testing.T) {
	tests := []struct {
		status string
		want   machine.State
	}{
		{"running", machine.Running},
		{"paused", machine.Saved},
		{"suspended", machine.Saved},
		{"shutdown", machine.PoweredOff},
		{"internal-error", machine.Stuck},
		{"guest-panicked", machine.Stuck},
		{"io-error", machine.Stuck},
		{"prelaunch", machine.Starting},
		{"inmigrate", machine.Starting},
		{"debug", machine.Paused},
		{"colo", machine.Unknown},
	}
	for _, test := range tests {
		t.Run(test.status, func(t *testing.T) {
			f := newFixture(t, &fakeMonitor{status: test.status}, true)
			got, err := f.machine.State(context.Background())
			if err != nil {
				t.Fatalf("State: %v", err)
			}
			if got != test.want {
				t.Errorf("State = %v, want %v", got, test.want)
			}
		})
	}
}

func TestUnreachableMonitorIsPoweredOff(t *testing.T) {
	f := newFixture(t, &fakeMonitor{}, false)
	got, err := f.machine.State(context.Background())
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if got != machine.PoweredOff {
		t.Errorf("State = %v, want powered_off", got)
	}
}

func TestDisconnectedMonitorIsPoweredOff(t *testing.T) {
	monitor := &fakeMonitor{handlers: map[string]func(json.RawMessage) (string, error){
		"query-status": func(json.RawMessage) (string, error) { return "", io.EOF },
	}}
	f := newFixture(t, monitor, true)

	got, err := f.machine.State(context.Background())
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if got != machine.PoweredOff {
		t.Errorf("State = %v, want powered_off", got)
	}
	if f.machine.monitor != nil {
		t.Error("monitor kept after disconnect")
	}
}

func TestLaunchStartsQemu(t *testing.T) {
	f := newFixture(t, &fakeMonitor{status: "running"}, false)
	if err := f.machine.Launch(context.Background()); err != nil {
		t.Fatalf("Launch: %v", err)
	}

	if len(f.starts) != 1 {
		t.Fatalf("starts = %d, want 1", len(f.starts))
	}
	want := []string{
		"qemu-system-x86_64",
		"-name", "chatbox",
		"-qmp", "unix:" + f.machine.config.Socket + ",server=on,wait=off",
		"-m", "512",
	}
	if !reflect.DeepEqual(f.starts[0], want) {
		t.Errorf("command line = %q, want %q", f.starts[0], want)
	}
	if state, _ := f.machine.State(context.Background()); state != machine.Running {
		t.Errorf("state after launch = %v, want running", state)
	}
}

func TestLaunchTimesOutWaitingForMonitor(t *testing.T) {
	f := newFixture(t, &fakeMonitor{}, false)
	f.machine.config.Start = func(context.Context, string, []string) error { return nil }

	err := f.machine.Launch(context.Background())
	if err == nil {
		t.Fatal("Launch succeeded with a monitor that never comes up")
	}
	if f.dials < 2 {
		t.Errorf("dials = %d, want repeated polling", f.dials)
	}
}

func TestLaunchResumesPausedGuest(t *testing.T) {
	f := newFixture(t, &fakeMonitor{status: "paused"}, true)
	if _, err := f.machine.State(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := f.machine.Launch(context.Background()); err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if len(f.starts) != 0 {
		t.Errorf("starts = %d, want 0 for a paused guest", len(f.starts))
	}
	commands := f.monitor.executed()
	if commands[len(commands)-1] != "cont" {
		t.Errorf("commands = %v, want cont last", commands)
	}
}

func TestLaunchQuitsShutDownGuest(t *testing.T) {
	f := newFixture(t, &fakeMonitor{status: "shutdown"}, true)
	if _, err := f.machine.State(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := f.machine.Launch(context.Background()); err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if len(f.starts) != 1 {
		t.Errorf("starts = %d, want 1", len(f.starts))
	}
	found := false
	for _, name := range f.monitor.executed() {
		if name == "quit" {
			found = true
		}
	}
	if !found {
		t.Errorf("commands = %v, want quit before relaunch", f.monitor.executed())
	}
}

func TestKeyEventPayload(t *testing.T) {
	f := newFixture(t, &fakeMonitor{status: "running"}, true)
	session, err := f.machine.Session(context.Background())
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if err := session.KeyEvent(context.Background(), 0xc8, true); err != nil {
		t.Fatalf("KeyEvent: %v", err)
	}

	command := f.monitor.commands[len(f.monitor.commands)-1]
	if command.Execute != "input-send-event" {
		t.Fatalf("command = %q, want input-send-event", command.Execute)
	}
	requireArgs(t, command.Args, `{"events":[{"type":"key","data":{"down":true,"key":{"type":"number","data":200}}}]}`)
}

func TestMouseEventPayload(t *testing.T) {
	f := newFixture(t, &fakeMonitor{status: "running"}, true)
	session, err := f.machine.Session(context.Background())
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if err := session.MouseEvent(context.Background(), -10, 0, machine.ButtonLeft); err != nil {
		t.Fatalf("MouseEvent: %v", err)
	}

	command := f.monitor.commands[len(f.monitor.commands)-1]
	requireArgs(t, command.Args, `{"events":[`+
		`{"type":"rel","data":{"axis":"x","value":-10}},`+
		`{"type":"btn","data":{"down":true,"button":"left"}},`+
		`{"type":"btn","data":{"down":false,"button":"right"}},`+
		`{"type":"btn","data":{"down":false,"button":"middle"}}]}`)
}

func TestSendInterruptPayload(t *testing.T) {
	f := newFixture(t, &fakeMonitor{status: "running"}, true)
	session, err := f.machine.Session(context.Background())
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if err := session.SendInterrupt(context.Background()); err != nil {
		t.Fatalf("SendInterrupt: %v", err)
	}

	command := f.monitor.commands[len(f.monitor.commands)-1]
	if command.Execute != "send-key" {
		t.Fatalf("command = %q, want send-key", command.Execute)
	}
	requireArgs(t, command.Args, `{"keys":[`+
		`{"type":"qcode","data":"ctrl"},`+
		`{"type":"qcode","data":"alt"},`+
		`{"type":"qcode","data":"delete"}]}`)
}

func TestScreenshotAndResolution(t *testing.T) {
	frame := testutil.WritePNG(64, 48, 0, 0, 0)
	monitor := &fakeMonitor{status: "running", handlers: map[string]func(json.RawMessage) (string, error){
		"screendump": func(args json.RawMessage) (string, error) {
			var parsed struct {
				Filename string `json:"filename"`
				Format   string `json:"format"`
			}
			if err := json.Unmarshal(args, &parsed); err != nil {
				return "", err
			}
			if parsed.Format != "png" {
				return "", errors.New("unexpected format " + parsed.Format)
			}
			return "{}", os.WriteFile(parsed.Filename, frame, 0o644)
		},
	}}
	f := newFixture(t, monitor, true)
	session, err := f.machine.Session(context.Background())
	if err != nil {
		t.Fatalf("Session: %v", err)
	}

	data, err := session.Screenshot(context.Background())
	if err != nil {
		t.Fatalf("Screenshot: %v", err)
	}
	if string(data) != string(frame) {
		t.Error("screenshot bytes differ from screendump output")
	}

	width, height, err := session.ScreenResolution(context.Background())
	if err != nil {
		t.Fatalf("ScreenResolution: %v", err)
	}
	if width != 64 || height != 48 {
		t.Errorf("resolution = %dx%d, want 64x48", width, height)
	}
}

func TestSessionCommandAfterQemuExit(t *testing.T) {
	monitor := &fakeMonitor{status: "running", handlers: map[string]func(json.RawMessage) (string, error){
		"system_reset": func(json.RawMessage) (string, error) { return "", io.EOF },
	}}
	f := newFixture(t, monitor, true)
	session, err := f.machine.Session(context.Background())
	if err != nil {
		t.Fatalf("Session: %v", err)
	}

	err = session.Reset(context.Background())
	if !errors.Is(err, machine.ErrNotRunning) {
		t.Fatalf("Reset = %v, want ErrNotRunning", err)
	}
	if f.machine.session != nil {
		t.Error("session kept after QEMU went away")
	}
}

func TestNewValidates(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("New with empty config succeeded")
	}
}
