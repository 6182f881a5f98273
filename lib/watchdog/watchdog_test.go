// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package watchdog

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

var recorded = time.Date(2026, 3, 1, 15, 30, 0, 0, time.UTC)

func sampleState() State {
	return State{
		Command:         []string{"vmchat", "/etc/vmchat.yaml"},
		SupervisorPID:   4242,
		Restarts:        3,
		LastExitCode:    1,
		LastError:       "exit status 1",
		LastRunDuration: Duration(90 * time.Second),
		NextSleep:       Duration(4 * time.Minute),
		Timestamp:       recorded,
	}
}

func TestWriteRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "supervisor.json")
	state := sampleState()

	if err := Write(path, state); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !got.Timestamp.Equal(state.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", got.Timestamp, state.Timestamp)
	}
	got.Timestamp = state.Timestamp
	if !reflect.DeepEqual(got, state) {
		t.Errorf("Read = %+v, want %+v", got, state)
	}
}

func TestDurationsAreHumanReadable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "supervisor.json")
	if err := Write(path, sampleState()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`"last_run_duration": "1m30s"`, `"next_sleep": "4m0s"`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("state file missing %s:\n%s", want, data)
		}
	}
}

func TestWriteLeavesNoTemporaryFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "supervisor.json")
	for i := 0; i < 2; i++ {
		state := sampleState()
		state.Restarts = i
		if err := Write(path, state); err != nil {
			t.Fatalf("Write #%d: %v", i, err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("directory holds %d entries, want only the state file", len(entries))
	}
	got, err := Read(path)
	if err != nil || got.Restarts != 1 {
		t.Errorf("Read = %+v, %v; want the second write", got, err)
	}
}

func TestReadMissing(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "absent.json"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("Read error = %v, want fs.ErrNotExist", err)
	}
}

func TestCheck(t *testing.T) {
	path := filepath.Join(t.TempDir(), "supervisor.json")

	if _, ok, err := Check(path, time.Hour, recorded); ok || err != nil {
		t.Fatalf("Check on missing file = %v, %v; want false, nil", ok, err)
	}

	if err := Write(path, sampleState()); err != nil {
		t.Fatal(err)
	}
	state, ok, err := Check(path, time.Hour, recorded.Add(30*time.Minute))
	if err != nil || !ok || state.Restarts != 3 {
		t.Errorf("Check fresh = %+v, %v, %v", state, ok, err)
	}
	if _, ok, err := Check(path, time.Hour, recorded.Add(2*time.Hour)); ok || err != nil {
		t.Errorf("Check stale = %v, %v; want false, nil", ok, err)
	}
}

func TestCheckCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "supervisor.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := Check(path, time.Hour, recorded); err == nil {
		t.Fatal("Check accepted a corrupt file")
	}
}

func TestClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "supervisor.json")
	if err := Write(path, sampleState()); err != nil {
		t.Fatal(err)
	}
	if err := Clear(path); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if err := Clear(path); err != nil {
		t.Fatalf("second Clear: %v", err)
	}
}
