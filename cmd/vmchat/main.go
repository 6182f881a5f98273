// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/vmchat/lib/action"
	"github.com/bureau-foundation/vmchat/lib/catalog"
	"github.com/bureau-foundation/vmchat/lib/chat"
	"github.com/bureau-foundation/vmchat/lib/clock"
	"github.com/bureau-foundation/vmchat/lib/config"
	"github.com/bureau-foundation/vmchat/lib/dispatcher"
	"github.com/bureau-foundation/vmchat/lib/inputlog"
	"github.com/bureau-foundation/vmchat/lib/interpreter"
	"github.com/bureau-foundation/vmchat/lib/liveness"
	"github.com/bureau-foundation/vmchat/lib/logging"
	"github.com/bureau-foundation/vmchat/lib/maintenance"
	"github.com/bureau-foundation/vmchat/lib/process"
	"github.com/bureau-foundation/vmchat/lib/qmp"
	"github.com/bureau-foundation/vmchat/lib/queue"
	"github.com/bureau-foundation/vmchat/lib/version"
)

// shutdownGrace bounds the wait for loops after a stop signal.
const shutdownGrace = 5 * time.Second

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var debug, showVersion bool
	flagSet := pflag.NewFlagSet("vmchat", pflag.ContinueOnError)
	flagSet.BoolVar(&debug, "debug", false, "enable debug logging (overrides the config file)")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	flagSet.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: vmchat [flags] [config-file]\n\nFlags:\n")
		flagSet.PrintDefaults()
	}
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("%w: %v", process.ErrUsage, err)
	}
	if showVersion {
		fmt.Printf("vmchat %s\n", version.Full())
		return nil
	}

	cfg, err := loadConfig(flagSet.Args())
	if err != nil {
		return err
	}
	if debug {
		cfg.Debug = true
	}

	logger, logCloser, err := logging.Setup(logging.Options{Debug: cfg.Debug, Dir: cfg.LogDir})
	if err != nil {
		return fmt.Errorf("setting up logging: %w", err)
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("vmchat starting",
		"version", version.Info(),
		"channel", cfg.Channel,
		"virtual_machine", cfg.VirtualMachine,
		"log_dir", cfg.LogDir,
	)
	return runDaemon(ctx, cfg, clock.Real(), logger)
}

func loadConfig(args []string) (*config.Config, error) {
	var cfg *config.Config
	var err error
	switch len(args) {
	case 0:
		cfg, err = config.Load()
	case 1:
		cfg, err = config.LoadFile(args[0])
	default:
		return nil, fmt.Errorf("%w: expected one config file, got %d arguments", process.ErrUsage, len(args))
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.EnsurePaths(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runDaemon(ctx context.Context, cfg *config.Config, clk clock.Clock, logger *slog.Logger) error {
	binary, err := cfg.QEMUBinaryPath()
	if err != nil {
		return err
	}
	seed, err := randomSeed()
	if err != nil {
		return err
	}

	// A loop abandoned at shutdown may still be using the input log or
	// the machine; they are then left for process exit to reclaim.
	stopped := true

	inputLog := inputlog.NewWriter(cfg.LogDir, clk, logger)
	defer func() {
		if !stopped {
			return
		}
		if err := inputLog.Close(); err != nil {
			logger.Error("closing input log", "error", err)
		}
	}()

	vm, err := qmp.New(qmp.Config{
		Name:          cfg.VirtualMachine,
		Binary:        binary,
		Args:          cfg.QEMU.Args,
		Socket:        cfg.QEMU.QMPSocket,
		LaunchTimeout: cfg.QEMU.LaunchTimeout.Std(),
		Minimize:      cfg.MinimizedGUI,
		Clock:         clk,
		Logger:        logger.With("component", "qmp"),
	})
	if err != nil {
		return err
	}
	defer func() {
		if stopped {
			vm.Close()
		}
	}()

	events := queue.New[action.ChatEvent](queue.DefaultCapacity, clk)
	dispatch, err := dispatcher.New(dispatcher.Config{
		Machine:     vm,
		Queue:       events,
		Interpreter: interpreter.New(seed),
		Monitor:     liveness.New(logger.With("component", "liveness")),
		Log:         inputLog,
		Clock:       clk,
		Logger:      logger.With("component", "dispatcher"),
	})
	if err != nil {
		return err
	}

	listener, err := chat.NewListener(chat.Config{
		Server:  cfg.Server,
		Channel: cfg.Channel,
		Submit:  events.Push,
		Clock:   clk,
		Logger:  logger.With("component", "chat"),
	})
	if err != nil {
		return err
	}

	loops := []loop{
		{name: "chat", run: listener.Run},
		{name: "dispatcher", run: dispatch.Run},
	}
	if cfg.Maintenance.Enabled {
		maintainer, err := maintenance.New(maintenance.Config{
			Dir:       cfg.LogDir,
			Interval:  cfg.Maintenance.Interval.Std(),
			AfterPass: catalogRefresher(cfg.LogDir, logger),
			Clock:     clk,
			Logger:    logger.With("component", "maintenance"),
		})
		if err != nil {
			return err
		}
		loops = append(loops, loop{name: "maintenance", run: maintainer.Run})
	}

	stopped, err = runLoops(ctx, loops, clk, shutdownGrace, logger)
	return err
}

// catalogRefresher brings the screenshot catalog up to date after each
// maintenance pass so the gallery command only has to render.
func catalogRefresher(logDir string, logger *slog.Logger) func(context.Context, maintenance.Stats) {
	return func(ctx context.Context, _ maintenance.Stats) {
		index, err := catalog.Open(logDir, logger.With("component", "catalog"))
		if err != nil {
			logger.Warn("opening screenshot catalog", "error", err)
			return
		}
		defer index.Close()
		if err := index.Populate(ctx); err != nil && ctx.Err() == nil {
			logger.Warn("populating screenshot catalog", "error", err, "path", filepath.Join(logDir, catalog.DatabaseName))
		}
	}
}

func randomSeed() (uint64, error) {
	var buffer [8]byte
	if _, err := rand.Read(buffer[:]); err != nil {
		return 0, fmt.Errorf("seeding interpreter: %w", err)
	}
	return binary.LittleEndian.Uint64(buffer[:]), nil
}

// loop is one long-running component of the daemon.
type loop struct {
	name string
	run  func(context.Context) error
}

// runLoops runs every loop until ctx is cancelled or one of them
// returns. A loop returning before shutdown was requested is fatal:
// the others are cancelled and its error (or a "stopped unexpectedly"
// error) is returned. After cancellation the loops get grace to
// finish; stragglers are logged and abandoned, and the returned
// bool is false.
func runLoops(ctx context.Context, loops []loop, clk clock.Clock, grace time.Duration, logger *slog.Logger) (bool, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		name string
		err  error
	}
	results := make(chan result, len(loops))
	for _, l := range loops {
		go func() {
			err := l.run(loopCtx)
			results <- result{name: l.name, err: err}
		}()
	}

	var fatal error
	remaining := len(loops)
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case first := <-results:
		remaining--
		fatal = first.err
		if fatal == nil {
			fatal = errors.New("stopped unexpectedly")
		}
		fatal = fmt.Errorf("%s loop: %w", first.name, fatal)
		logger.Error("loop failed, shutting down", "loop", first.name, "error", first.err)
	}
	cancel()

	deadline := clk.After(grace)
	for remaining > 0 {
		select {
		case finished := <-results:
			remaining--
			if finished.err != nil && fatal == nil {
				logger.Warn("loop returned error during shutdown", "loop", finished.name, "error", finished.err)
			}
		case <-deadline:
			logger.Warn("loops did not stop within grace period", "remaining", remaining, "grace", grace)
			return false, fatal
		}
	}
	return true, fatal
}
