// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package chat listens to a public chat channel and submits each
// message as an [action.ChatEvent].
//
// The [Listener] speaks IRC, which is what Twitch chat is. It logs in
// anonymously with a random justinfan nickname, joins the channel once
// the server sends its welcome (001), answers PING, and turns every
// PRIVMSG to the channel into an event. CTCP ACTION messages (/me) are
// unwrapped so the interpreter sees their text.
//
// Servers are addressed by URL: ws:// and wss:// use the IRC-over-
// WebSocket gateway, irc:// and ircs:// a raw TCP (or TLS) stream. A
// bare host:port is treated as irc://.
//
// After a disconnect the listener waits before reconnecting: one minute
// after a session that was welcomed, doubling after each failed dial up
// to one hour.
package chat
