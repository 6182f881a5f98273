// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package dispatcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/vmchat/lib/action"
	"github.com/bureau-foundation/vmchat/lib/inputlog"
	"github.com/bureau-foundation/vmchat/lib/interpreter"
	"github.com/bureau-foundation/vmchat/lib/liveness"
	"github.com/bureau-foundation/vmchat/lib/machine"
	"github.com/bureau-foundation/vmchat/lib/machine/machinetest"
	"github.com/bureau-foundation/vmchat/lib/queue"
	"github.com/bureau-foundation/vmchat/lib/testutil"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	dispatcher *Dispatcher
	queue      *queue.Queue[action.ChatEvent]
	monitor    *liveness.Monitor
	log        *inputlog.Writer
	dir        string
}

func newHarness(t *testing.T, m machine.Machine) *harness {
	t.Helper()
	clk := testutil.Instant(epoch)
	dir := t.TempDir()
	h := &harness{
		queue:   queue.New[action.ChatEvent](queue.DefaultCapacity, clk),
		monitor: liveness.New(nil),
		log:     inputlog.NewWriter(dir, clk, nil),
		dir:     dir,
	}
	t.Cleanup(func() { h.log.Close() })

	d, err := New(Config{
		Machine:     m,
		Queue:       h.queue,
		Interpreter: interpreter.New(1),
		Monitor:     h.monitor,
		Log:         h.log,
		Clock:       clk,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.dispatcher = d
	return h
}

func (h *harness) send(sender, text string) {
	h.queue.Push(action.ChatEvent{Sender: sender, Text: text, ReceivedAt: epoch})
}

func (h *harness) logRows(t *testing.T) []string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(h.dir, "2026-03-01.csv"))
	if err != nil {
		t.Fatalf("reading input log: %v", err)
	}
	var rows []string
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		// Drop the timestamp column.
		_, rest, _ := strings.Cut(line, ",")
		rows = append(rows, rest)
	}
	return rows
}

func running(session *machinetest.Session) *machinetest.Machine {
	return &machinetest.Machine{States: []machine.State{machine.Running}, Sess: session}
}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("New with empty config succeeded")
	}
}

func TestDirectKeyIsLoggedThenExecuted(t *testing.T) {
	session := &machinetest.Session{}
	h := newHarness(t, running(session))
	h.send("Viewer1", "up")

	h.dispatcher.tick(context.Background())

	if rows := h.logRows(t); len(rows) != 1 || rows[0] != "viewer1,E_UP" {
		t.Errorf("log rows = %q, want [viewer1,E_UP]", rows)
	}
	want := []machinetest.KeyEvent{{Code: 0xc8, Down: true}, {Code: 0xc8, Down: false}}
	if len(session.Keys) != 2 || session.Keys[0] != want[0] || session.Keys[1] != want[1] {
		t.Errorf("keys = %v, want %v", session.Keys, want)
	}
	if got := h.dispatcher.State().InputCounter; got != 1 {
		t.Errorf("InputCounter = %d, want 1", got)
	}
}

func TestPoweredOffMachineIsLaunchedBeforeDispatch(t *testing.T) {
	session := &machinetest.Session{}
	m := &machinetest.Machine{
		States:        []machine.State{machine.PoweredOff},
		LaunchedState: machine.Running,
		Sess:          session,
	}
	h := newHarness(t, m)
	h.send("viewer1", "up")

	h.dispatcher.tick(context.Background())
	if launches, _, _ := m.Counts(); launches != 1 {
		t.Fatalf("launches = %d, want 1", launches)
	}
	if h.queue.Len() != 1 {
		t.Fatalf("queue length = %d after launch tick, want event still queued", h.queue.Len())
	}

	h.dispatcher.tick(context.Background())
	if h.queue.Len() != 0 || len(session.Keys) != 2 {
		t.Errorf("after running tick: queue=%d keys=%d, want 0 and 2", h.queue.Len(), len(session.Keys))
	}
}

func TestStaleSessionReleasedBeforeRelaunch(t *testing.T) {
	session := &machinetest.Session{}
	m := &machinetest.Machine{
		States: []machine.State{machine.Running, machine.Aborted},
		Sess:   session,
	}
	h := newHarness(t, m)

	h.dispatcher.tick(context.Background())
	h.dispatcher.tick(context.Background())

	launches, releases, _ := m.Counts()
	if releases != 1 || launches != 1 {
		t.Errorf("releases=%d launches=%d, want 1 and 1", releases, launches)
	}
}

func TestStuckMachineIsPoweredDown(t *testing.T) {
	session := &machinetest.Session{}
	m := &machinetest.Machine{States: []machine.State{machine.Stuck}, Sess: session}
	h := newHarness(t, m)
	h.send("viewer1", "up")

	h.dispatcher.tick(context.Background())

	if session.PowerDowns != 1 {
		t.Errorf("power downs = %d, want 1", session.PowerDowns)
	}
	if h.queue.Len() != 1 {
		t.Errorf("queue length = %d, want event left queued", h.queue.Len())
	}
}

func TestStartingMachineIsWaitedOut(t *testing.T) {
	session := &machinetest.Session{}
	m := &machinetest.Machine{States: []machine.State{machine.Starting}, Sess: session}
	h := newHarness(t, m)
	h.send("viewer1", "up")

	h.dispatcher.tick(context.Background())

	if launches, _, _ := m.Counts(); launches != 0 {
		t.Errorf("launches = %d, want 0", launches)
	}
	if len(session.Calls) != 0 {
		t.Errorf("session calls = %v, want none", session.Calls)
	}
}

func TestScreenshotCadence(t *testing.T) {
	session := &machinetest.Session{Screens: [][]byte{testutil.WritePNG(4, 4, 10, 10, 0)}}
	h := newHarness(t, running(session))

	for i := 0; i < 4; i++ {
		h.send("viewer1", "up")
		h.dispatcher.tick(context.Background())
	}
	if session.Screenshots != 0 {
		t.Fatalf("screenshots after 4 inputs = %d, want 0", session.Screenshots)
	}

	h.send("viewer1", "up")
	h.dispatcher.tick(context.Background())
	if session.Screenshots != 1 {
		t.Fatalf("screenshots after 5 inputs = %d, want 1", session.Screenshots)
	}
	entries, err := os.ReadDir(filepath.Join(h.dir, "2026-03-01"))
	if err != nil || len(entries) != 1 {
		t.Errorf("screenshot directory entries = %d, %v; want 1", len(entries), err)
	}
	if h.monitor.Samples() != 1 {
		t.Errorf("monitor samples = %d, want 1", h.monitor.Samples())
	}
	if session.Resets != 0 {
		t.Errorf("resets = %d, want 0 with a single sample", session.Resets)
	}
}

func TestEmptyMessageDoesNotAdvanceCadence(t *testing.T) {
	session := &machinetest.Session{Screens: [][]byte{testutil.WritePNG(4, 4, 10, 10, 0)}}
	h := newHarness(t, running(session))
	h.dispatcher.state.InputCounter = 4

	h.send("viewer1", "   ")
	h.dispatcher.tick(context.Background())

	if session.Screenshots != 0 || h.dispatcher.State().InputCounter != 4 {
		t.Errorf("screenshots=%d counter=%d, want 0 and 4", session.Screenshots, h.dispatcher.State().InputCounter)
	}
}

func TestFrozenScreenTriggersReset(t *testing.T) {
	frame := testutil.WritePNG(4, 4, 10, 10, 0)
	session := &machinetest.Session{Screens: [][]byte{frame}}
	h := newHarness(t, running(session))
	if err := h.monitor.AddSample(frame); err != nil {
		t.Fatal(err)
	}
	h.dispatcher.state.InputCounter = 4

	h.send("viewer1", "up")
	h.dispatcher.tick(context.Background())

	if session.Resets != 1 {
		t.Fatalf("resets = %d, want 1", session.Resets)
	}
	rows := h.logRows(t)
	if rows[len(rows)-1] != LivenessSender+",Reset" {
		t.Errorf("last log row = %q, want liveness reset", rows[len(rows)-1])
	}
}

func TestChangingScreenDoesNotReset(t *testing.T) {
	session := &machinetest.Session{Screens: [][]byte{testutil.WritePNG(4, 4, 10, 200, 1)}}
	h := newHarness(t, running(session))
	if err := h.monitor.AddSample(testutil.WritePNG(4, 4, 10, 10, 0)); err != nil {
		t.Fatal(err)
	}
	h.dispatcher.state.InputCounter = 99

	h.send("viewer1", "up")
	h.dispatcher.tick(context.Background())

	if session.Screenshots != 1 || session.Resets != 0 {
		t.Errorf("screenshots=%d resets=%d, want 1 and 0", session.Screenshots, session.Resets)
	}
}

func TestRepeatedCaptureErrorsTriggerReset(t *testing.T) {
	session := &machinetest.Session{ScreenshotErr: errors.New("display wedged")}
	h := newHarness(t, running(session))
	for i := 0; i < liveness.MaxCaptureErrors; i++ {
		h.monitor.AddCaptureError()
	}
	h.dispatcher.state.InputCounter = 99

	h.send("viewer1", "up")
	h.dispatcher.tick(context.Background())

	if session.Resets != 1 {
		t.Errorf("resets = %d, want 1 after %d capture errors", session.Resets, liveness.MaxCaptureErrors+1)
	}
}

// wrappedMachine hands out a substitute session, such as one whose
// key events panic.
type wrappedMachine struct {
	*machinetest.Machine
	session machine.Session
}

type panickingSession struct {
	*machinetest.Session
}

func (panickingSession) KeyEvent(context.Context, uint16, bool) error {
	panic("scancode table corrupted")
}

func (m wrappedMachine) Session(context.Context) (machine.Session, error) {
	return m.session, nil
}

// failingSession rejects every key event.
type failingSession struct {
	*machinetest.Session
}

func (failingSession) KeyEvent(context.Context, uint16, bool) error {
	return errors.New("input-send-event: device busy")
}

func TestFailedActionStillTakesDueSample(t *testing.T) {
	inner := &machinetest.Session{Screens: [][]byte{testutil.WritePNG(4, 4, 10, 10, 0)}}
	m := wrappedMachine{
		Machine: running(inner),
		session: failingSession{Session: inner},
	}
	h := newHarness(t, m)
	h.dispatcher.state.InputCounter = 4

	h.send("viewer1", "up")
	h.dispatcher.tick(context.Background())

	if got := h.dispatcher.State().InputCounter; got != 5 {
		t.Fatalf("InputCounter = %d, want 5", got)
	}
	if inner.Screenshots != 1 {
		t.Errorf("screenshots = %d, want 1 at counter 5 despite the failed key", inner.Screenshots)
	}
	if h.monitor.Samples() != 1 {
		t.Errorf("monitor samples = %d, want 1", h.monitor.Samples())
	}
}

func TestPanicWhileExecutingIsContained(t *testing.T) {
	inner := &machinetest.Session{}
	m := wrappedMachine{
		Machine: running(inner),
		session: panickingSession{Session: inner},
	}
	h := newHarness(t, m)
	h.send("viewer1", "up")
	h.send("viewer1", "!a")

	h.dispatcher.tick(context.Background())
	h.dispatcher.tick(context.Background())

	// The second event (a click plus a typed word) got as far as the
	// mouse before the typed word hit the panicking keyboard.
	if len(inner.Mouse) != 2 {
		t.Errorf("mouse events = %d, want 2", len(inner.Mouse))
	}
	if got := h.dispatcher.State().InputCounter; got != 2 {
		t.Errorf("InputCounter = %d, want 2", got)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	m := running(&machinetest.Session{})
	h := newHarness(t, m)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.dispatcher.Run(ctx) }()

	h.send("viewer1", "up")
	cancel()

	err := testutil.RequireReceive(t, done, 5*time.Second, "dispatcher to stop")
	if err != nil {
		t.Fatalf("Run = %v, want nil", err)
	}
}
