// Package broadcaster drives the status loop: it walks the lyrics, sends one
// status frame per entry over an already-open channel, and sleeps the
// configured interval between sends.
//
// The loop is a two-state machine. It starts Loaded and only ever moves to
// Terminated: on a reload failure, a send or encode failure, or when its
// context is canceled. There is no reconnect state.
package broadcaster
