// Package cli provides the interactive page application for the game store.
//
// It wires configuration, local storage, the store API client, the worker
// client, and an interactive REPL that keeps working while offline. Typical
// flow: probe the worker, register the default periodic refreshes, start a
// background connectivity watcher, and execute user commands.
//
// Key features:
//   - Browse the catalog (served through the worker's caching gateway)
//   - Buy games, with offline purchases queued for background sync
//   - Inspect pending purchases and the worker's status
//   - Manage periodic sync registrations and cache lifecycle
//
// Without a reachable worker the app falls back to in-process refresh timers
// and a local catalog snapshot; queued purchases then need the worker back.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See App, runREPL, and the periodicsync package for details.
package cli
