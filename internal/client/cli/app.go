// Package cli implements the interactive chat REPL: it dials the server,
// runs the handshake, renders incoming messages in the background and
// dispatches user commands.
package cli

import (
	"bufio"
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"golang.org/x/term"

	"github.com/classchat-io/classchat/internal/client/client"
	"github.com/classchat-io/classchat/internal/client/config"
	"github.com/classchat-io/classchat/internal/protocol"
)

// downloadDir is where received files are stored, relative to the working
// directory.
const downloadDir = "downloads"

type App struct {
	config *config.Config
	client *client.Client
	reader *bufio.Reader
}

func NewApp(c *config.Config) (*App, error) {
	cl, err := client.Dial(c)
	if err != nil {
		return nil, err
	}
	return &App{config: c, client: cl, reader: bufio.NewReader(os.Stdin)}, nil
}

// interactive reports whether stdin is a terminal; prompts are suppressed
// when input is piped in.
func (a *App) interactive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func (a *App) Run(ctx context.Context) {
	defer a.client.Close()

	username, err := GetSimpleText(a.reader, "Choose a username", os.Stdout)
	if err != nil || username == "" {
		log.Println("no username, exiting")
		return
	}

	if err := a.client.Handshake(username); err != nil {
		log.Printf("could not connect: %v", err)
		return
	}
	printlnFn(fmt.Sprintf("Connected as %s. Type 'help' for commands.", username))

	a.client.Start(a.handleEnvelope)

	scanner := bufio.NewScanner(os.Stdin)
	runREPL(ctx, a, a.getStatus, scanner, a.interactive())
}

func (a *App) getStatus() string {
	return a.client.Username()
}

func (a *App) isConnected() bool {
	return a.client.Running()
}

// handleEnvelope renders one incoming envelope. It runs on the receive-loop
// goroutine.
func (a *App) handleEnvelope(env *protocol.Envelope) {
	if env.Type == protocol.TypeFile {
		a.saveFile(env)
		return
	}
	if out := formatEnvelope(env); out != "" {
		printlnFn(out)
	}
}

// saveFile decodes an incoming file payload into the downloads directory.
func (a *App) saveFile(env *protocol.Envelope) {
	d, err := env.FileData()
	if err != nil {
		printlnFn("received an unreadable file message")
		return
	}
	data, err := base64.StdEncoding.DecodeString(d.FileContent)
	if err != nil {
		printlnFn("received a corrupt file payload")
		return
	}

	if err := os.MkdirAll(downloadDir, 0o755); err != nil {
		printlnFn(fmt.Sprintf("cannot create %s: %v", downloadDir, err))
		return
	}
	name := filepath.Base(d.Filename)
	path := filepath.Join(downloadDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		printlnFn(fmt.Sprintf("cannot save %s: %v", name, err))
		return
	}
	printlnFn(fmt.Sprintf("[file] %s sent %q (saved to %s)", env.Sender, name, path))
}

func (a *App) Msg(ctx context.Context, receiver, text string) error {
	return a.client.SendPrivate(receiver, text)
}

func (a *App) GroupMsg(ctx context.Context, group, text string) error {
	return a.client.SendGroup(group, text)
}

func (a *App) SendFile(ctx context.Context, path, target string, isGroup bool) error {
	return a.client.SendFile(path, target, isGroup)
}

func (a *App) CreateGroup(ctx context.Context, name string) error {
	return a.client.CreateGroup(name)
}

func (a *App) JoinGroup(ctx context.Context, name string) error {
	return a.client.JoinGroup(name)
}

func (a *App) ListUsers(ctx context.Context) error {
	return a.client.ListUsers()
}

func (a *App) ListGroups(ctx context.Context) error {
	return a.client.ListGroups()
}

func (a *App) History(ctx context.Context, peer string, isGroup bool) error {
	return a.client.RequestHistory(peer, isGroup)
}
