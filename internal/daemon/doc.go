// Package daemon coordinates the long-running Lectern process.
//
// It wires configuration, the run history store, the run controller, and
// the notifier into a single lifecycle with flock-based locking to prevent
// multiple instances. The daemon fills run request defaults from
// configuration, exposes run history and notification tests, and decides
// when a shutdown request may proceed.
//
// Keep orchestration logic here: the run supervision loop lives in runner
// while the daemon focuses on startup, shutdown, and high level
// coordination.
package daemon
