package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

type handler func(ctx context.Context, args []string) error

// execIface defines the command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isUnlocked() bool

	Register(ctx context.Context, args []string) error
	Login(ctx context.Context, args []string) error
	Unlock(ctx context.Context, args []string) error
	Lock(ctx context.Context, args []string) error
	Logout(ctx context.Context, args []string) error
	Passwd(ctx context.Context, args []string) error

	New(ctx context.Context, args []string) error
	Edit(ctx context.Context, args []string) error
	Remove(ctx context.Context, args []string) error
	List(ctx context.Context, args []string) error
	Show(ctx context.Context, args []string) error
	Move(ctx context.Context, args []string) error
	Pin(ctx context.Context, args []string) error
	Unpin(ctx context.Context, args []string) error
	Undo(ctx context.Context, args []string) error
	Redo(ctx context.Context, args []string) error

	Sessions(ctx context.Context, args []string) error
	Revoke(ctx context.Context, args []string) error
	Backup(ctx context.Context, args []string) error
	Restore(ctx context.Context, args []string) error
}

const (
	helpLocked   = "Available commands: register, login [user], unlock, logout, exit"
	helpUnlocked = "Available commands: (l)s, show <n>, new [title], edit <n>, rm <n>, pin <n>, unpin <n>, " +
		"mv <pinned|other> <from> <to>, undo, redo, sessions, revoke <id|others>, passwd, " +
		"backup, restore <key>, lock, logout, exit"
)

// runREPL reads commands from in until EOF, ctx cancellation or "exit".
//
// The first token selects the command, the rest are its arguments. Note
// commands need an unlocked vault. Errors of command handlers are printed
// and the loop continues.
func runREPL(ctx context.Context, a execIface, statusFn func() string, in *bufio.Reader) {
	open := map[string]handler{
		"register": a.Register,
		"login":    a.Login,
		"unlock":   a.Unlock,
		"logout":   a.Logout,
	}
	unlocked := map[string]handler{
		"lock":     a.Lock,
		"passwd":   a.Passwd,
		"new":      a.New,
		"edit":     a.Edit,
		"rm":       a.Remove,
		"l":        a.List,
		"ls":       a.List,
		"show":     a.Show,
		"mv":       a.Move,
		"pin":      a.Pin,
		"unpin":    a.Unpin,
		"undo":     a.Undo,
		"redo":     a.Redo,
		"sessions": a.Sessions,
		"revoke":   a.Revoke,
		"backup":   a.Backup,
		"restore":  a.Restore,
	}

	for {
		if ctx.Err() != nil {
			return
		}
		printlnFn(fmt.Sprintf("gnotes %s> ", statusFn()))

		line, err := in.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			if a.isUnlocked() {
				printlnFn(helpUnlocked)
			} else {
				printlnFn(helpLocked)
			}
			continue
		case "exit", "quit":
			printlnFn("Bye!")
			return
		}

		h, ok := open[cmd]
		if !ok {
			if h, ok = unlocked[cmd]; ok && !a.isUnlocked() {
				printlnFn("Vault is locked. Use 'login' or 'unlock' first.")
				continue
			}
		}
		if !ok {
			printlnFn("Unknown command:", cmd)
			continue
		}

		if err := h(ctx, args); err != nil {
			printlnFn("Error:", err)
		}
	}
}
