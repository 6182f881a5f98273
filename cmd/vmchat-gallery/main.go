// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// vmchat-gallery updates the screenshot catalog of a vmchat log
// directory and renders the static gallery from it.
//
// Usage:
//
//	vmchat-gallery [--output DIR] [--image-base URL] <config-file>
//
// The log directory, output directory and page title come from the
// vmchat config file; flags override the output location.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/vmchat/lib/catalog"
	"github.com/bureau-foundation/vmchat/lib/config"
	"github.com/bureau-foundation/vmchat/lib/gallery"
	"github.com/bureau-foundation/vmchat/lib/logging"
	"github.com/bureau-foundation/vmchat/lib/process"
	"github.com/bureau-foundation/vmchat/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var outputDir, imageBase string
	var debug, showVersion bool
	flagSet := pflag.NewFlagSet("vmchat-gallery", pflag.ContinueOnError)
	flagSet.StringVar(&outputDir, "output", "", "directory for the generated pages (default: gallery.output_dir)")
	flagSet.StringVar(&imageBase, "image-base", "", "URL prefix of the log directory as served (default: relative path from output to log dir)")
	flagSet.BoolVar(&debug, "debug", false, "enable debug logging")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("%w: %v", process.ErrUsage, err)
	}
	if showVersion {
		fmt.Printf("vmchat-gallery %s\n", version.Full())
		return nil
	}
	if flagSet.NArg() != 1 {
		return fmt.Errorf("%w: expected one config file", process.ErrUsage)
	}

	cfg, err := config.LoadFile(flagSet.Arg(0))
	if err != nil {
		return err
	}
	if cfg.LogDir == "" {
		return errors.New("config has no log_dir")
	}
	if outputDir == "" {
		outputDir = cfg.Gallery.OutputDir
	}
	if imageBase == "" {
		imageBase, err = filepath.Rel(outputDir, cfg.LogDir)
		if err != nil {
			return fmt.Errorf("computing image path: %w", err)
		}
		imageBase = filepath.ToSlash(imageBase)
	}

	logger, closer, err := logging.Setup(logging.Options{Debug: debug || cfg.Debug})
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	index, err := catalog.Open(cfg.LogDir, logger)
	if err != nil {
		return err
	}
	defer index.Close()

	if err := index.Populate(ctx); err != nil {
		return err
	}
	return gallery.Render(ctx, gallery.Config{
		Source:    index,
		OutputDir: outputDir,
		Title:     cfg.Gallery.Title,
		ImageBase: imageBase,
		Logger:    logger,
	})
}
