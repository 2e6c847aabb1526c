// Package state provides per-user conversation sessions and per-user locks for Telegram bots.
// It is domain-agnostic: the session payload is a type parameter.
package state
