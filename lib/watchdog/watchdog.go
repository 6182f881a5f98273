// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package watchdog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// State is the supervisor's view of its child.
type State struct {
	// Command is the supervised command line.
	Command []string `json:"command"`

	// SupervisorPID identifies the supervisor that wrote the file.
	SupervisorPID int `json:"supervisor_pid"`

	// Restarts counts child starts after the first.
	Restarts int `json:"restarts"`

	// LastExitCode is the exit status of the most recent run, or -1
	// when it was killed by a signal or could not be started.
	LastExitCode int `json:"last_exit_code"`

	// LastError describes why the most recent run failed, if it did.
	LastError string `json:"last_error,omitempty"`

	// LastRunDuration is how long the most recent run lasted.
	LastRunDuration Duration `json:"last_run_duration"`

	// NextSleep is the delay before the next start.
	NextSleep Duration `json:"next_sleep"`

	// Timestamp is when the state was recorded.
	Timestamp time.Time `json:"timestamp"`
}

// Duration marshals as a Go duration string ("1m30s").
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	parsed, err := time.ParseDuration(text)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Write atomically replaces the state file at path. The parent
// directory must exist. The file is readable by everyone, since it
// holds nothing secret.
func Write(path string, state State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling watchdog state: %w", err)
	}
	data = append(data, '\n')

	temporaryPath := path + ".tmp"
	if err := writeSynced(temporaryPath, data); err != nil {
		os.Remove(temporaryPath)
		return err
	}
	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("renaming watchdog file into place: %w", err)
	}

	// Make the rename itself durable.
	if directory, err := os.Open(filepath.Dir(path)); err == nil {
		directory.Sync()
		directory.Close()
	}
	return nil
}

func writeSynced(path string, data []byte) error {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("creating temporary watchdog file: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		return fmt.Errorf("writing temporary watchdog file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return fmt.Errorf("syncing temporary watchdog file: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing temporary watchdog file: %w", err)
	}
	return nil
}

// Read parses the state file at path. A missing file yields an error
// satisfying errors.Is(err, fs.ErrNotExist).
func Read(path string) (State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return State{}, err
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, fmt.Errorf("parsing watchdog file %s: %w", path, err)
	}
	return state, nil
}

// Check returns the state at path if it exists and was recorded no
// more than maxAge before now. A missing or stale file returns false
// with a nil error; anything else wrong with the file is an error.
func Check(path string, maxAge time.Duration, now time.Time) (State, bool, error) {
	state, err := Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, err
	}
	if now.Sub(state.Timestamp) > maxAge {
		return State{}, false, nil
	}
	return state, true, nil
}

// Clear removes the state file. A missing file is not an error.
func Clear(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing watchdog file: %w", err)
	}
	return nil
}
