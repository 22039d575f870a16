package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// stubExec records every dispatched command.
type stubExec struct {
	connected bool
	calls     []string
}

func (s *stubExec) isConnected() bool { return s.connected }

func (s *stubExec) Msg(_ context.Context, receiver, text string) error {
	s.calls = append(s.calls, fmt.Sprintf("msg %s %s", receiver, text))
	return nil
}

func (s *stubExec) GroupMsg(_ context.Context, group, text string) error {
	s.calls = append(s.calls, fmt.Sprintf("group %s %s", group, text))
	return nil
}

func (s *stubExec) SendFile(_ context.Context, path, target string, isGroup bool) error {
	s.calls = append(s.calls, fmt.Sprintf("file %s %s %v", path, target, isGroup))
	return nil
}

func (s *stubExec) CreateGroup(_ context.Context, name string) error {
	s.calls = append(s.calls, "create "+name)
	return nil
}

func (s *stubExec) JoinGroup(_ context.Context, name string) error {
	s.calls = append(s.calls, "join "+name)
	return nil
}

func (s *stubExec) ListUsers(_ context.Context) error {
	s.calls = append(s.calls, "users")
	return nil
}

func (s *stubExec) ListGroups(_ context.Context) error {
	s.calls = append(s.calls, "groups")
	return nil
}

func (s *stubExec) History(_ context.Context, peer string, isGroup bool) error {
	s.calls = append(s.calls, fmt.Sprintf("history %s %v", peer, isGroup))
	return nil
}

func runWithInput(t *testing.T, a execIface, input string) []string {
	t.Helper()

	var out []string
	orig := printlnFn
	printlnFn = func(args ...any) { out = append(out, fmt.Sprintln(args...)) }
	t.Cleanup(func() { printlnFn = orig })

	scanner := bufio.NewScanner(strings.NewReader(input))
	runREPL(context.Background(), a, func() string { return "tester" }, scanner, false)
	return out
}

func TestRunREPL_DispatchesCommands(t *testing.T) {
	a := &stubExec{connected: true}

	runWithInput(t, a, strings.Join([]string{
		"msg bob hello there",
		"group cs101 lecture moved",
		"file notes.pdf bob",
		"file slides.pdf cs101 group",
		"create cs101",
		"join cs101",
		"users",
		"groups",
		"history bob",
		"history cs101 group",
		"exit",
	}, "\n"))

	assert.Equal(t, []string{
		"msg bob hello there",
		"group cs101 lecture moved",
		"file notes.pdf bob false",
		"file slides.pdf cs101 true",
		"create cs101",
		"join cs101",
		"users",
		"groups",
		"history bob false",
		"history cs101 true",
	}, a.calls)
}

func TestRunREPL_UnknownCommand(t *testing.T) {
	a := &stubExec{connected: true}

	out := runWithInput(t, a, "frobnicate\nexit\n")

	assert.Empty(t, a.calls)
	assert.Contains(t, strings.Join(out, ""), "Unknown command")
}

func TestRunREPL_UsageErrors(t *testing.T) {
	a := &stubExec{connected: true}

	out := runWithInput(t, a, "msg bob\ncreate\nexit\n")

	assert.Empty(t, a.calls)
	joined := strings.Join(out, "")
	assert.Contains(t, joined, "Usage: msg")
	assert.Contains(t, joined, "Usage: create")
}

func TestRunREPL_StopsWhenDisconnected(t *testing.T) {
	a := &stubExec{connected: false}

	out := runWithInput(t, a, "users\n")

	assert.Empty(t, a.calls)
	assert.Contains(t, strings.Join(out, ""), "Connection lost")
}
