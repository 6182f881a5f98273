// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/bureau-foundation/vmchat/lib/backoff"
	"github.com/bureau-foundation/vmchat/lib/clock"
	"github.com/bureau-foundation/vmchat/lib/watchdog"
)

// DefaultHealthyRun is the run length after which a failure no longer
// counts toward the backoff.
const DefaultHealthyRun = 10 * time.Minute

// Config describes what to supervise and how.
type Config struct {
	Command []string
	Runner  Runner

	// Backoff defaults to [backoff.Default].
	Backoff *backoff.Backoff

	// HealthyRun defaults to DefaultHealthyRun.
	HealthyRun time.Duration

	// StateFile, if set, receives a [watchdog.State] after every run.
	StateFile string

	Clock  clock.Clock
	Logger *slog.Logger
}

// Supervisor is the restart loop.
type Supervisor struct {
	config   Config
	logger   *slog.Logger
	restarts int
}

// New validates config and returns a Supervisor.
func New(config Config) (*Supervisor, error) {
	var errs []error
	if len(config.Command) == 0 {
		errs = append(errs, errors.New("command is required"))
	}
	if config.Runner == nil {
		errs = append(errs, errors.New("runner is required"))
	}
	if config.Clock == nil {
		errs = append(errs, errors.New("clock is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("supervisor config: %w", err)
	}

	if config.Backoff == nil {
		config.Backoff = backoff.Default()
	}
	if config.HealthyRun <= 0 {
		config.HealthyRun = DefaultHealthyRun
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	return &Supervisor{config: config, logger: config.Logger}, nil
}

// Restarts returns how many times the child has been restarted.
func (s *Supervisor) Restarts() int { return s.restarts }

// Run supervises until the child exits cleanly or ctx is canceled.
func (s *Supervisor) Run(ctx context.Context) error {
	s.reportPrevious()

	for {
		s.logger.Info("starting child", "command", s.config.Command, "restarts", s.restarts)
		started := s.config.Clock.Now()
		code, err := s.config.Runner.Run(ctx, s.config.Command)
		duration := s.config.Clock.Now().Sub(started)

		if ctx.Err() != nil {
			s.logger.Info("supervisor stopping", "exit_code", code)
			return nil
		}
		if err == nil && code == 0 {
			s.logger.Info("child exited cleanly", "duration", duration)
			s.record(code, nil, duration, 0)
			return nil
		}

		if duration > s.config.HealthyRun {
			s.config.Backoff.Reset()
		}
		sleep := s.config.Backoff.Next()
		s.logger.Warn("child failed",
			"exit_code", code,
			"error", err,
			"duration", duration,
			"sleep", sleep,
		)
		s.record(code, err, duration, sleep)

		select {
		case <-s.config.Clock.After(sleep):
		case <-ctx.Done():
			s.logger.Info("supervisor stopping during backoff")
			return nil
		}
		s.restarts++
	}
}

func (s *Supervisor) record(code int, runErr error, duration, sleep time.Duration) {
	if s.config.StateFile == "" {
		return
	}
	state := watchdog.State{
		Command:         s.config.Command,
		SupervisorPID:   os.Getpid(),
		Restarts:        s.restarts,
		LastExitCode:    code,
		LastRunDuration: watchdog.Duration(duration),
		NextSleep:       watchdog.Duration(sleep),
		Timestamp:       s.config.Clock.Now(),
	}
	if runErr != nil {
		state.LastError = runErr.Error()
	}
	if err := watchdog.Write(s.config.StateFile, state); err != nil {
		s.logger.Error("writing supervisor state", "path", s.config.StateFile, "error", err)
	}
}

// reportPrevious logs the state left by an earlier supervisor, if it
// is recent enough to matter.
func (s *Supervisor) reportPrevious() {
	if s.config.StateFile == "" {
		return
	}
	previous, ok, err := watchdog.Check(s.config.StateFile, backoff.DefaultMax, s.config.Clock.Now())
	if err != nil {
		s.logger.Warn("reading previous supervisor state", "path", s.config.StateFile, "error", err)
		return
	}
	if ok {
		s.logger.Info("previous supervisor state",
			"pid", previous.SupervisorPID,
			"restarts", previous.Restarts,
			"last_exit_code", previous.LastExitCode,
			"recorded", previous.Timestamp,
		)
	}
}
