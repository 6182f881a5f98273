// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/bureau-foundation/vmchat/lib/testutil"
	"github.com/bureau-foundation/vmchat/lib/watchdog"
)

var epoch = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

type outcome struct {
	code     int
	err      error
	duration time.Duration
}

// scriptedRunner replays outcomes, advancing the clock by each run's
// duration and recording when each run started.
type scriptedRunner struct {
	clock    *testutil.InstantClock
	outcomes []outcome
	starts   []time.Time
}

func (r *scriptedRunner) Run(ctx context.Context, command []string) (int, error) {
	r.starts = append(r.starts, r.clock.Now())
	if len(r.outcomes) == 0 {
		return 0, nil
	}
	next := r.outcomes[0]
	r.outcomes = r.outcomes[1:]
	r.clock.Advance(next.duration)
	return next.code, next.err
}

func TestRestartSchedule(t *testing.T) {
	clk := testutil.Instant(epoch)
	crash := func(d time.Duration) outcome { return outcome{code: 1, duration: d} }
	runner := &scriptedRunner{clock: clk, outcomes: []outcome{
		crash(time.Second),
		crash(time.Second),
		{code: -1, err: errors.New("child killed by killed"), duration: time.Second},
		crash(11 * time.Minute),
		crash(time.Second),
		{code: 0, duration: time.Second},
	}}
	statePath := filepath.Join(t.TempDir(), "supervisor.json")

	supervisor, err := New(Config{
		Command:   []string{"vmchat", "config.yaml"},
		Runner:    runner,
		StateFile: statePath,
		Clock:     clk,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := supervisor.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Sleep before each restart: doubling from a minute, back to a
	// minute after the long run.
	wantSleeps := []time.Duration{
		60 * time.Second, 120 * time.Second, 240 * time.Second,
		60 * time.Second, 120 * time.Second,
	}
	durations := []time.Duration{time.Second, time.Second, time.Second, 11 * time.Minute, time.Second}
	if len(runner.starts) != len(wantSleeps)+1 {
		t.Fatalf("runs = %d, want %d", len(runner.starts), len(wantSleeps)+1)
	}
	for i, want := range wantSleeps {
		gap := runner.starts[i+1].Sub(runner.starts[i]) - durations[i]
		if gap != want {
			t.Errorf("sleep before run %d = %v, want %v", i+2, gap, want)
		}
	}
	if supervisor.Restarts() != 5 {
		t.Errorf("Restarts = %d, want 5", supervisor.Restarts())
	}

	state, err := watchdog.Read(statePath)
	if err != nil {
		t.Fatalf("reading state file: %v", err)
	}
	if state.LastExitCode != 0 || state.Restarts != 5 || state.NextSleep != 0 {
		t.Errorf("final state = %+v, want clean exit after 5 restarts", state)
	}
}

func TestStateFileRecordsFailure(t *testing.T) {
	clk := testutil.Instant(epoch)
	runner := &scriptedRunner{clock: clk, outcomes: []outcome{{code: 2, duration: 3 * time.Second}}}
	statePath := filepath.Join(t.TempDir(), "supervisor.json")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	supervisor, err := New(Config{
		Command:   []string{"vmchat"},
		Runner:    stopAfter{runner: runner, cancel: cancel, runs: 1},
		StateFile: statePath,
		Clock:     clk,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := supervisor.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	state, err := watchdog.Read(statePath)
	if err != nil {
		t.Fatalf("reading state file: %v", err)
	}
	if state.LastExitCode != 2 || time.Duration(state.LastRunDuration) != 3*time.Second ||
		time.Duration(state.NextSleep) != time.Minute {
		t.Errorf("state = %+v", state)
	}
}

// stopAfter cancels the supervisor's context once the given number of
// runs have completed and the supervisor is sleeping.
type stopAfter struct {
	runner *scriptedRunner
	cancel context.CancelFunc
	runs   int
}

func (s stopAfter) Run(ctx context.Context, command []string) (int, error) {
	if len(s.runner.starts) >= s.runs {
		s.cancel()
		<-ctx.Done()
		return -1, ctx.Err()
	}
	return s.runner.Run(ctx, command)
}

func TestCancelStopsSupervision(t *testing.T) {
	clk := testutil.Instant(epoch)
	runner := &scriptedRunner{clock: clk}
	ctx, cancel := context.WithCancel(context.Background())

	supervisor, err := New(Config{
		Command: []string{"vmchat"},
		Runner:  stopAfter{runner: runner, cancel: cancel, runs: 0},
		Clock:   clk,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := supervisor.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if supervisor.Restarts() != 0 {
		t.Errorf("Restarts = %d after cancel, want 0", supervisor.Restarts())
	}
}

func TestNewValidates(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("New accepted an empty config")
	}
}
