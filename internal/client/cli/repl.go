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
	isLoggedIn() bool
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Add(ctx context.Context) error
	List(ctx context.Context) error
	Failed(ctx context.Context) error
	Requeue(ctx context.Context, id string) error
	Discard(ctx context.Context, id string) error
	Sync(ctx context.Context) error
	Stats(ctx context.Context, args []string) error
}

// runREPL starts a simple read–eval–print loop for the snaptrack CLI.
//
// It reads a line from in, parses the first token as the command, and
// dispatches to methods on 'a'. Unknown commands are reported back to the
// user. The loop exits on EOF or when the user types "exit" or "quit".
//
// Prompt & Commands
//
// The prompt shows the current status (from statusFn) and accepts commands:
//
//	Not logged in:
//	  - help               show available commands
//	  - login              sign in with an access token
//	  - add                queue a receipt (uploaded after sign-in)
//	  - list               list queued uploads
//	  - exit | quit        leave the program
//
//	Logged in, additionally:
//	  - failed             list uploads that ran out of retries
//	  - requeue <id>       put a failed upload back in the queue
//	  - discard <id>       delete a failed upload
//	  - sync               upload queued receipts now
//	  - stats [from] [to]  spending summary, dates as YYYY-MM-DD
//	  - logout             sign out
//
// Errors returned by command handlers are printed and the loop continues.
func runREPL(ctx context.Context, a execIface, statusFn func() string, in *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("snaptrack %s> ", statusFn()))
		line, err := in.ReadString('\n')
		if err != nil && line == "" {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var cmdErr error
		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: add, (l)ist, failed, requeue <id>, discard <id>, sync, stats [from] [to], logout, exit")
			} else {
				printlnFn("Available commands: login, add, (l)ist, failed, exit")
			}

		case "login":
			cmdErr = a.Login(ctx)

		case "logout":
			cmdErr = a.Logout(ctx)

		case "add":
			cmdErr = a.Add(ctx)

		case "l", "list":
			cmdErr = a.List(ctx)

		case "failed":
			cmdErr = a.Failed(ctx)

		case "requeue", "discard":
			if len(args) == 0 {
				printlnFn(fmt.Sprintf("Usage: %s <id>", cmd))
				continue
			}
			if cmd == "requeue" {
				cmdErr = a.Requeue(ctx, args[0])
			} else {
				cmdErr = a.Discard(ctx, args[0])
			}

		case "sync":
			cmdErr = a.Sync(ctx)

		case "stats":
			cmdErr = a.Stats(ctx, args)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if cmdErr != nil {
			printlnFn(describeError(cmdErr))
		}
	}
}
