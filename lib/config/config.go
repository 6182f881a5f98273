// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the variable [Load] reads the config path
// from.
const EnvironmentVariable = "VMCHAT_CONFIG"

// DefaultServer is Twitch's IRC-over-WebSocket gateway.
const DefaultServer = "wss://irc-ws.chat.twitch.tv:443"

// Config is the daemon configuration.
type Config struct {
	// Channel is the chat channel to listen to, with or without the
	// leading '#'.
	Channel string `yaml:"channel" json:"channel"`

	// Server is the chat server URL (ws://, wss://, irc://, ircs://)
	// or a bare host[:port].
	Server string `yaml:"server" json:"server"`

	// VirtualMachine is the guest name.
	VirtualMachine string `yaml:"virtual_machine" json:"virtual_machine"`

	// LogDir holds input logs, screenshots, the daemon log, the
	// catalog database and by default the QMP socket.
	LogDir string `yaml:"log_dir" json:"log_dir"`

	// MinimizedGUI minimizes the guest window after launch.
	MinimizedGUI bool `yaml:"minimized_gui" json:"minimized_gui"`

	// Debug enables debug logging.
	Debug bool `yaml:"debug" json:"debug"`

	QEMU        QEMUConfig        `yaml:"qemu" json:"qemu"`
	Maintenance MaintenanceConfig `yaml:"maintenance" json:"maintenance"`
	Gallery     GalleryConfig     `yaml:"gallery" json:"gallery"`
}

// QEMUConfig describes how the guest is started.
type QEMUConfig struct {
	// Binary is the emulator, looked up in PATH when not absolute.
	// Default: qemu-system-x86_64
	Binary string `yaml:"binary" json:"binary"`

	// Args are passed after the -name and -qmp options, typically
	// the disk image, memory size and display.
	Args []string `yaml:"args" json:"args"`

	// QMPSocket is the monitor socket path.
	// Default: ${LOG_DIR}/qmp.sock
	QMPSocket string `yaml:"qmp_socket" json:"qmp_socket"`

	// LaunchTimeout bounds the wait for the monitor after starting.
	// Default: 60s
	LaunchTimeout Duration `yaml:"launch_timeout" json:"launch_timeout"`
}

// MaintenanceConfig controls the periodic log compression pass.
type MaintenanceConfig struct {
	// Enabled defaults to true.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Interval between passes. Default: 1h
	Interval Duration `yaml:"interval" json:"interval"`
}

// GalleryConfig controls the static screenshot gallery.
type GalleryConfig struct {
	// OutputDir receives the generated pages.
	// Default: ${LOG_DIR}/gallery
	OutputDir string `yaml:"output_dir" json:"output_dir"`

	// Title heads the index page. Default: the channel name.
	Title string `yaml:"title" json:"title"`
}

// Duration is a time.Duration written as a Go duration string ("90s",
// "1h") in both YAML and JSON.
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Default returns the configuration every file is merged onto. The
// channel, virtual machine and log directory have no defaults.
func Default() *Config {
	return &Config{
		Server: DefaultServer,
		QEMU: QEMUConfig{
			Binary:        "qemu-system-x86_64",
			QMPSocket:     "${LOG_DIR}/qmp.sock",
			LaunchTimeout: Duration(60 * time.Second),
		},
		Maintenance: MaintenanceConfig{
			Enabled:  true,
			Interval: Duration(time.Hour),
		},
		Gallery: GalleryConfig{
			OutputDir: "${LOG_DIR}/gallery",
		},
	}
}

// Load loads the file named by VMCHAT_CONFIG.
func Load() (*Config, error) {
	path := os.Getenv(EnvironmentVariable)
	if path == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your config file or pass the path as an argument", EnvironmentVariable)
	}
	return LoadFile(path)
}

// LoadFile loads the configuration at path over [Default] and expands
// path variables. It does not validate; call [Config.Validate].
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}
	cfg.expandVariables()
	if cfg.Gallery.Title == "" {
		cfg.Gallery.Title = strings.TrimPrefix(cfg.Channel, "#")
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		return json.Unmarshal(jsonc.ToJSON(data), c)
	default:
		return yaml.Unmarshal(data, c)
	}
}

func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.LogDir = expandVars(c.LogDir, vars)
	vars["LOG_DIR"] = c.LogDir

	c.QEMU.QMPSocket = expandVars(c.QEMU.QMPSocket, vars)
	c.Gallery.OutputDir = expandVars(c.Gallery.OutputDir, vars)
	for i, arg := range c.QEMU.Args {
		c.QEMU.Args[i] = expandVars(arg, vars)
	}
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default}, consulting vars
// before the process environment.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		name, defaultValue := parts[1], parts[2]

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimPrefix(c.Channel, "#") == "" {
		errs = append(errs, errors.New("channel is required"))
	}
	if c.VirtualMachine == "" {
		errs = append(errs, errors.New("virtual_machine is required"))
	}
	if c.LogDir == "" {
		errs = append(errs, errors.New("log_dir is required"))
	}
	if c.Server == "" {
		errs = append(errs, errors.New("server is required"))
	} else if err := validateServer(c.Server); err != nil {
		errs = append(errs, err)
	}
	if c.QEMU.Binary == "" {
		errs = append(errs, errors.New("qemu.binary is required"))
	}
	if c.QEMU.QMPSocket == "" {
		errs = append(errs, errors.New("qemu.qmp_socket is required"))
	}
	if c.QEMU.LaunchTimeout <= 0 {
		errs = append(errs, errors.New("qemu.launch_timeout must be positive"))
	}
	if c.Maintenance.Enabled && c.Maintenance.Interval <= 0 {
		errs = append(errs, errors.New("maintenance.interval must be positive"))
	}

	return errors.Join(errs...)
}

func validateServer(server string) error {
	if !strings.Contains(server, "://") {
		return nil
	}
	parsed, err := url.Parse(server)
	if err != nil {
		return fmt.Errorf("server: %w", err)
	}
	switch parsed.Scheme {
	case "ws", "wss", "irc", "ircs":
		return nil
	}
	return fmt.Errorf("server: unsupported scheme %q", parsed.Scheme)
}

// EnsurePaths creates the log directory and the directory holding the
// monitor socket.
func (c *Config) EnsurePaths() error {
	for _, path := range []string{c.LogDir, filepath.Dir(c.QEMU.QMPSocket)} {
		if path == "" || path == "." {
			continue
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}
	return nil
}

// QEMUBinaryPath resolves the emulator binary through PATH unless it is
// already a path.
func (c *Config) QEMUBinaryPath() (string, error) {
	if strings.ContainsRune(c.QEMU.Binary, filepath.Separator) {
		if _, err := os.Stat(c.QEMU.Binary); err != nil {
			return "", fmt.Errorf("qemu binary: %w", err)
		}
		return c.QEMU.Binary, nil
	}
	path, err := exec.LookPath(c.QEMU.Binary)
	if err != nil {
		return "", fmt.Errorf("%s not found in PATH", c.QEMU.Binary)
	}
	return path, nil
}
