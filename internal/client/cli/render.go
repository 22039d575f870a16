package cli

import (
	"fmt"
	"strings"

	"github.com/classchat-io/classchat/internal/protocol"
)

// formatEnvelope turns an incoming envelope into its terminal
// representation. An empty string means nothing should be printed.
func formatEnvelope(env *protocol.Envelope) string {
	switch env.Type {
	case protocol.TypePrivate:
		return fmt.Sprintf("[%s] %s", env.Sender, env.Text)

	case protocol.TypeGroup:
		group := env.Receiver
		if d, err := env.GroupData(); err == nil && d.GroupName != "" {
			group = d.GroupName
		}
		return fmt.Sprintf("[%s/%s] %s", group, env.Sender, env.Text)

	case protocol.TypeSuccess:
		return "✓ " + env.Text

	case protocol.TypeError:
		return "✗ " + env.Text

	case protocol.TypeOffline:
		return "… " + env.Text

	case protocol.TypeListUsers:
		d, err := env.UserListData()
		if err != nil {
			return ""
		}
		if len(d.Users) == 0 {
			return "No users online."
		}
		var b strings.Builder
		b.WriteString("Online users:")
		for _, u := range d.Users {
			fmt.Fprintf(&b, "\n  %s (%s)", u.Username, u.Status)
		}
		return b.String()

	case protocol.TypeListGroups:
		d, err := env.GroupListData()
		if err != nil {
			return ""
		}
		if len(d.Groups) == 0 {
			return "No groups."
		}
		var b strings.Builder
		b.WriteString("Groups:")
		for _, g := range d.Groups {
			fmt.Fprintf(&b, "\n  %s (created by %s)", g.Name, g.Creator)
		}
		return b.String()

	case protocol.TypeHistoryResponse:
		d, err := env.HistoryResponseData()
		if err != nil {
			return ""
		}
		if len(d.Messages) == 0 {
			return fmt.Sprintf("No history with %s.", d.Peer)
		}
		var b strings.Builder
		fmt.Fprintf(&b, "History with %s:", d.Peer)
		for _, m := range d.Messages {
			fmt.Fprintf(&b, "\n  %s %s: %s", m.Timestamp, m.Sender, m.Text)
		}
		return b.String()

	default:
		return ""
	}
}
