// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"gopkg.in/irc.v4"

	"github.com/bureau-foundation/vmchat/lib/action"
	"github.com/bureau-foundation/vmchat/lib/backoff"
	"github.com/bureau-foundation/vmchat/lib/clock"
	"github.com/bureau-foundation/vmchat/lib/netutil"
)

const ctcpAction = "\x01ACTION"

// Config holds the listener's settings and collaborators.
type Config struct {
	Server  string
	Channel string

	// Nick defaults to an anonymous justinfan nickname.
	Nick string

	// Submit hands an event to the dispatcher without blocking. It
	// reports whether the event was accepted.
	Submit func(action.ChatEvent) bool

	// Dial defaults to [Dial].
	Dial DialFunc

	// Backoff defaults to [backoff.Default].
	Backoff *backoff.Backoff

	Clock  clock.Clock
	Logger *slog.Logger
}

// Listener is the chat connection loop.
type Listener struct {
	config  Config
	channel string
	backoff *backoff.Backoff
	logger  *slog.Logger
}

// AnonymousNick returns a nickname Twitch accepts without credentials.
func AnonymousNick() string {
	return fmt.Sprintf("justinfan%d", 1000+rand.IntN(1000000-1000+1))
}

// NewListener validates config and returns a Listener.
func NewListener(config Config) (*Listener, error) {
	var errs []error
	if config.Channel == "" {
		errs = append(errs, errors.New("channel is required"))
	}
	if _, err := ParseServer(config.Server); err != nil {
		errs = append(errs, err)
	}
	if config.Submit == nil {
		errs = append(errs, errors.New("submit function is required"))
	}
	if config.Clock == nil {
		errs = append(errs, errors.New("clock is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("chat listener config: %w", err)
	}

	if config.Nick == "" {
		config.Nick = AnonymousNick()
	}
	if config.Dial == nil {
		config.Dial = Dial
	}
	if config.Backoff == nil {
		config.Backoff = backoff.Default()
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}

	channel := strings.ToLower(config.Channel)
	if !strings.HasPrefix(channel, "#") {
		channel = "#" + channel
	}
	return &Listener{
		config:  config,
		channel: channel,
		backoff: config.Backoff,
		logger:  config.Logger.With("channel", channel),
	}, nil
}

// Run connects and reconnects until ctx is canceled.
func (l *Listener) Run(ctx context.Context) error {
	l.logger.Info("chat listener started", "server", l.config.Server, "nick", l.config.Nick)
	defer l.logger.Info("chat listener stopped")

	for {
		connected, err := l.session(ctx)
		if ctx.Err() != nil {
			return nil
		}

		var delay time.Duration
		if connected {
			l.logger.Warn("disconnected from chat", "error", err)
			delay = l.backoff.Current()
		} else {
			l.logger.Error("connecting to chat", "error", err)
			delay = l.backoff.Fail()
		}
		l.logger.Info("reconnecting", "delay", delay)

		select {
		case <-l.config.Clock.After(delay):
		case <-ctx.Done():
			return nil
		}
	}
}

// session runs one connection. connected reports whether the dial
// succeeded; the error says why the connection ended.
func (l *Listener) session(ctx context.Context) (connected bool, err error) {
	l.logger.Info("connecting to chat", "server", l.config.Server)
	transport, err := l.config.Dial(ctx, l.config.Server)
	if err != nil {
		return false, err
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-sessionCtx.Done()
		transport.Close()
	}()

	if err := l.register(transport); err != nil {
		return true, err
	}
	for {
		line, err := transport.ReadLine()
		if netutil.IsClosed(err) {
			return true, fmt.Errorf("chat server closed the connection: %w", err)
		}
		if err != nil {
			return true, fmt.Errorf("reading from chat server: %w", err)
		}
		if err := l.handle(transport, line); err != nil {
			return true, err
		}
	}
}

func (l *Listener) register(transport Transport) error {
	nick := l.config.Nick
	for _, message := range []*irc.Message{
		{Command: "NICK", Params: []string{nick}},
		{Command: "USER", Params: []string{nick, "0", "*", nick}},
	} {
		if err := transport.WriteLine(message.String()); err != nil {
			return fmt.Errorf("registering with chat server: %w", err)
		}
	}
	return nil
}

var errServerReconnect = errors.New("server requested reconnect")

func (l *Listener) handle(transport Transport, line string) error {
	message, err := irc.ParseMessage(line)
	if err != nil {
		l.logger.Debug("unparseable chat line", "line", line, "error", err)
		return nil
	}

	switch message.Command {
	case "001":
		l.backoff.Reset()
		l.logger.Info("joining channel")
		join := &irc.Message{Command: "JOIN", Params: []string{l.channel}}
		if err := transport.WriteLine(join.String()); err != nil {
			return fmt.Errorf("joining %s: %w", l.channel, err)
		}
	case "PING":
		pong := &irc.Message{Command: "PONG", Params: message.Params}
		if err := transport.WriteLine(pong.String()); err != nil {
			return fmt.Errorf("answering ping: %w", err)
		}
	case "RECONNECT":
		return errServerReconnect
	case "PRIVMSG":
		l.privmsg(message)
	}
	return nil
}

func (l *Listener) privmsg(message *irc.Message) {
	if len(message.Params) < 2 || !strings.EqualFold(message.Params[0], l.channel) {
		return
	}
	if message.Prefix == nil || message.Prefix.Name == "" {
		return
	}

	text := message.Trailing()
	if strings.HasPrefix(text, ctcpAction) {
		text = strings.TrimSuffix(strings.TrimPrefix(text, ctcpAction), "\x01")
	}

	event := action.ChatEvent{
		Sender:     message.Prefix.Name,
		Text:       text,
		ReceivedAt: l.config.Clock.Now(),
	}
	if !l.config.Submit(event) {
		l.logger.Debug("queue full, dropped chat message", "sender", event.Sender)
		return
	}
	l.logger.Debug("queued chat message", "sender", event.Sender, "text", event.Text)
}
