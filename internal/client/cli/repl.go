package cli

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/shopsync/internal/records"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Add(ctx context.Context, kind records.Kind) error
	Edit(ctx context.Context, kind records.Kind, localID int64) error
	Delete(ctx context.Context, kind records.Kind, localID int64) error
	List(ctx context.Context, kind records.Kind) error
	Sync(ctx context.Context) error
	Status(ctx context.Context) error
}

const (
	helpLoggedOut = "Available commands: register, login, status, exit"
	helpLoggedIn  = "Available commands: add|list <kind>, edit|delete <kind> <id>, sync, status, logout, exit\n" +
		"Kinds: transaction, product, service"
)

// parseKind accepts singular and plural kind names.
func parseKind(s string) (records.Kind, error) {
	s = strings.ToLower(s)
	if k, err := records.ParseKind(s); err == nil {
		return k, nil
	}
	return records.ParseKind(strings.TrimSuffix(s, "s"))
}

// runREPL reads commands line by line from reader and dispatches them to a.
// Handler errors are printed and the loop goes on. It returns on EOF or
// when the user types "exit" or "quit".
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("shop %s> ", statusFn()))
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn(helpLoggedIn)
			} else {
				printlnFn(helpLoggedOut)
			}

		case "register":
			report(a.Register(ctx))

		case "login":
			report(a.Login(ctx))

		case "logout":
			report(a.Logout(ctx))

		case "add", "list", "l":
			if len(args) != 1 {
				printlnFn("Usage:", cmd, "<kind>")
				continue
			}
			kind, err := parseKind(args[0])
			if err != nil {
				report(err)
				continue
			}
			if cmd == "add" {
				report(a.Add(ctx, kind))
			} else {
				report(a.List(ctx, kind))
			}

		case "edit", "delete":
			if len(args) != 2 {
				printlnFn("Usage:", cmd, "<kind> <id>")
				continue
			}
			kind, err := parseKind(args[0])
			if err != nil {
				report(err)
				continue
			}
			id, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil || id <= 0 {
				printlnFn("Invalid id:", args[1])
				continue
			}
			if cmd == "edit" {
				report(a.Edit(ctx, kind, id))
			} else {
				report(a.Delete(ctx, kind, id))
			}

		case "sync":
			report(a.Sync(ctx))

		case "status":
			report(a.Status(ctx))

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}

func report(err error) {
	if err != nil {
		printlnFn("Error:", err)
	}
}

func (a *App) getStatus() string {
	s := ""
	if a.identity != nil {
		s = a.identity.UserName + " "
	}
	s += string(a.mode())
	return fmt.Sprintf("(%s)", s)
}

// Root resumes the cached session if there is one and runs the REPL until
// the user exits or ctx is cancelled.
func (a *App) Root(ctx context.Context) {
	fmt.Fprintln(a.out, "Welcome to shopsync (type 'help' for commands)")
	if !a.resume(ctx) {
		fmt.Fprintln(a.out, "Log in or register to start")
	}
	runREPL(ctx, a, a.getStatus, a.reader)
}
