package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = func(a ...any) { fmt.Println(a...) }

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isConnected() bool
	Msg(ctx context.Context, receiver, text string) error
	GroupMsg(ctx context.Context, group, text string) error
	SendFile(ctx context.Context, path, target string, isGroup bool) error
	CreateGroup(ctx context.Context, name string) error
	JoinGroup(ctx context.Context, name string) error
	ListUsers(ctx context.Context) error
	ListGroups(ctx context.Context) error
	History(ctx context.Context, peer string, isGroup bool) error
}

const helpText = `Available commands:
  msg <user> <text>             send a private message
  group <name> <text>           send a message to a group
  file <path> <target> [group]  send a file to a user, or to a group
  create <name>                 create a group
  join <name>                   join a group
  users                         list online users
  groups                        list groups
  history <peer> [group]        show recent messages
  exit | quit                   leave`

// runREPL starts a simple read–eval–print loop for the chat CLI.
//
// It reads a line from the provided scanner, parses the first token as the
// command, and dispatches to methods on 'a'. Unknown commands are reported
// back to the user. The loop exits on scanner EOF, when the user types
// "exit" or "quit", or when the connection drops.
//
// Any errors returned by command handlers are printed and the loop
// continues; a failed command never ends the session.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner, interactive bool) {
	for {
		if !a.isConnected() {
			printlnFn("Connection lost.")
			return
		}
		if interactive {
			fmt.Printf("chat %s> ", statusFn())
		}
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

		var err error
		switch cmd {
		case "help":
			printlnFn(helpText)

		case "msg":
			if len(args) < 2 {
				printlnFn("Usage: msg <user> <text>")
				continue
			}
			err = a.Msg(ctx, args[0], strings.Join(args[1:], " "))

		case "group":
			if len(args) < 2 {
				printlnFn("Usage: group <name> <text>")
				continue
			}
			err = a.GroupMsg(ctx, args[0], strings.Join(args[1:], " "))

		case "file":
			if len(args) < 2 {
				printlnFn("Usage: file <path> <target> [group]")
				continue
			}
			isGroup := len(args) > 2 && args[2] == "group"
			err = a.SendFile(ctx, args[0], args[1], isGroup)

		case "create":
			if len(args) != 1 {
				printlnFn("Usage: create <name>")
				continue
			}
			err = a.CreateGroup(ctx, args[0])

		case "join":
			if len(args) != 1 {
				printlnFn("Usage: join <name>")
				continue
			}
			err = a.JoinGroup(ctx, args[0])

		case "users":
			err = a.ListUsers(ctx)

		case "groups":
			err = a.ListGroups(ctx)

		case "history":
			if len(args) < 1 {
				printlnFn("Usage: history <peer> [group]")
				continue
			}
			err = a.History(ctx, args[0], len(args) > 1 && args[1] == "group")

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			printlnFn("Error:", err.Error())
		}
	}
}
