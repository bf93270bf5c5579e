package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	hasWorker() bool
	Games(ctx context.Context) error
	Buy(ctx context.Context, id string) error
	Pending(ctx context.Context) error
	Sync(ctx context.Context) error
	Refresh(ctx context.Context, tag string) error
	SyncAll(ctx context.Context) error
	SyncStatus(ctx context.Context) error
	Status(ctx context.Context) error
	Syncs(ctx context.Context) error
	Wishlist(ctx context.Context, action, id string) error
	RegisterSync(ctx context.Context, tag, seconds string) error
	UnregisterSync(ctx context.Context, tag string) error
	ClearCache(ctx context.Context) error
	SkipWaiting(ctx context.Context) error
}

// runREPL starts a simple read–eval–print loop for the page application.
//
// It reads a line from the provided scanner, parses the first token as the
// command, and dispatches to methods on 'a'. Unknown commands are reported
// back to the user. The loop exits on scanner EOF or when the user types
// "exit" or "quit".
//
// Prompt & Commands
//
// The prompt shows the current status (from statusFn) and accepts commands:
//
//   - help                          — show available commands
//   - games | g                     — list the catalog
//   - buy <id>                      — purchase a game, queue when offline
//   - pending                       — list purchases waiting for sync
//   - sync                          — request a purchase sync pass
//   - refresh <tag>                 — run one background refresh now
//   - sync-all                      — run all four refreshes once
//   - sync-status                   — show each refresh's last-run age
//   - status                        — show the worker's status
//   - syncs                         — list periodic sync registrations
//   - wishlist [add|remove <id>]    — show or edit the wishlist
//   - register-sync <tag> <seconds> — add a periodic sync registration
//   - unregister-sync <tag>         — remove a periodic sync registration
//   - clear-cache                   — drop every worker cache (worker only)
//   - skip-waiting                  — let a waiting worker activate (worker only)
//   - exit | quit                   — leave the program
//
// Any errors returned by command handlers are ignored here; handlers should
// log their own errors. This keeps the REPL loop resilient and focused on I/O.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("store %s > ", statusFn()))
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]
		args := parts[1:]

		switch cmd {
		case "help":
			printlnFn("Available commands: (g)ames, buy <id>, pending, sync, refresh <tag>, sync-all, sync-status, status, syncs, wishlist, register-sync, unregister-sync, exit")
			if a.hasWorker() {
				printlnFn("Worker commands: clear-cache, skip-waiting")
			}

		case "g", "games":
			_ = a.Games(ctx)

		case "buy":
			if len(args) == 0 {
				printlnFn("Usage: buy <id>")
				continue
			}
			_ = a.Buy(ctx, args[0])

		case "pending":
			_ = a.Pending(ctx)

		case "sync":
			_ = a.Sync(ctx)

		case "refresh":
			if len(args) == 0 {
				printlnFn("Usage: refresh <tag>")
				continue
			}
			_ = a.Refresh(ctx, args[0])

		case "sync-all":
			_ = a.SyncAll(ctx)

		case "sync-status":
			_ = a.SyncStatus(ctx)

		case "status":
			_ = a.Status(ctx)

		case "syncs":
			_ = a.Syncs(ctx)

		case "wishlist":
			switch len(args) {
			case 0:
				_ = a.Wishlist(ctx, "", "")
			case 2:
				_ = a.Wishlist(ctx, args[0], args[1])
			default:
				printlnFn("Usage: wishlist [add|remove <id>]")
			}

		case "register-sync":
			if len(args) < 2 {
				printlnFn("Usage: register-sync <tag> <seconds>")
				continue
			}
			_ = a.RegisterSync(ctx, args[0], args[1])

		case "unregister-sync":
			if len(args) == 0 {
				printlnFn("Usage: unregister-sync <tag>")
				continue
			}
			_ = a.UnregisterSync(ctx, args[0])

		case "clear-cache":
			_ = a.ClearCache(ctx)

		case "skip-waiting":
			_ = a.SkipWaiting(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
