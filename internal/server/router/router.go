// Package router owns the shared live-session registries and every routing
// decision. One mutex guards both registries for the full span of each
// read-decide-act sequence, so a "recipient is live" check and the resulting
// deliver-or-enqueue action are atomic relative to concurrent connects and
// disconnects. Persistence calls happen while holding the lock: store access
// is deliberately serialized in exchange for simpler correctness.
package router

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/classchat-io/classchat/internal/common"
	"github.com/classchat-io/classchat/internal/logging"
	"github.com/classchat-io/classchat/internal/protocol"
	"github.com/classchat-io/classchat/internal/server/models"
)

// Peer is one live, handshake-complete connection endpoint. Send encodes
// and encrypts an envelope; SendEncoded transmits an already-serialized
// envelope (used to flush queued offline payloads verbatim).
type Peer interface {
	Send(env *protocol.Envelope) error
	SendEncoded(frame []byte) error
}

// Store is the persistence surface the router routes against.
// *store.Service implements it.
type Store interface {
	TouchUser(ctx context.Context, username string) error
	UserExists(ctx context.Context, username string) (bool, error)

	AppendHistory(ctx context.Context, m *models.HistoryMessage) error
	Conversation(ctx context.Context, a, b string, limit int) ([]models.HistoryMessage, error)
	GroupHistory(ctx context.Context, group string, limit int) ([]models.HistoryMessage, error)

	EnqueueOffline(ctx context.Context, m *models.OfflineMessage) error
	UndeliveredFor(ctx context.Context, receiver string) ([]models.OfflineMessage, error)
	MarkDelivered(ctx context.Context, receiver string) error

	CreateGroup(ctx context.Context, name, creator string) error
	JoinGroup(ctx context.Context, group, username string) error
	GroupMembers(ctx context.Context, group string) ([]string, error)
	GroupExists(ctx context.Context, name string) (bool, error)
	ListGroups(ctx context.Context) ([]models.Group, error)
}

// Router registers live sessions and applies the live-or-offline delivery
// decision for every message.
type Router struct {
	mu         sync.Mutex
	peers      map[string]Peer
	pending    map[string]struct{}
	liveGroups map[string]map[string]struct{}

	store        Store
	logger       logging.Logger
	historyLimit int
	flushPacing  time.Duration

	// sleep is a seam so tests can skip the flush pacing delay.
	sleep func(time.Duration)
}

func New(store Store, logger logging.Logger, historyLimit int, flushPacing time.Duration) *Router {
	return &Router{
		peers:        make(map[string]Peer),
		pending:      make(map[string]struct{}),
		liveGroups:   make(map[string]map[string]struct{}),
		store:        store,
		logger:       logger.With("module", "router"),
		historyLimit: historyLimit,
		flushPacing:  flushPacing,
		sleep:        time.Sleep,
	}
}

// Reserve claims a username for a connection whose key exchange has not
// finished yet. Uniqueness is enforced atomically against both live peers
// and other open reservations: a second connect for the same name fails
// with ErrUsernameTaken and leaves the original untouched. The user row is
// persisted (or its last_seen touched) as part of the same critical
// section. The session is not routable until Register; until then senders
// see the user as offline and their messages are queued.
func (r *Router) Reserve(ctx context.Context, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, live := r.peers[username]; live {
		return fmt.Errorf("%q: %w", username, common.ErrUsernameTaken)
	}
	if _, held := r.pending[username]; held {
		return fmt.Errorf("%q: %w", username, common.ErrUsernameTaken)
	}
	if err := r.store.TouchUser(ctx, username); err != nil {
		return fmt.Errorf("register user: %w", err)
	}
	r.pending[username] = struct{}{}
	return nil
}

// Register makes a reserved session routable. The peer must have payload
// encryption established before it is registered: everything delivered
// through the registry assumes an encrypted channel.
func (r *Router) Register(ctx context.Context, username string, peer Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.pending, username)
	r.peers[username] = peer
	r.logger.Info(ctx, "client connected", "username", username)
}

// Release frees a reservation whose handshake did not complete.
func (r *Router) Release(ctx context.Context, username string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.pending, username)
}

// Disconnect removes the session from the live registry. Terminal for that
// connection; the caller discards the session key by closing the socket.
func (r *Router) Disconnect(ctx context.Context, username string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, live := r.peers[username]; !live {
		return
	}
	delete(r.peers, username)
	r.logger.Info(ctx, "client disconnected", "username", username)
}

// FlushOffline delivers the user's queued messages: a count notification
// first, then each payload in enqueue order with a pacing delay to preserve
// order on the single stream. Rows are marked delivered only if every
// payload was transmitted; a mid-flush failure leaves the whole batch
// queued for the next connect.
func (r *Router) FlushOffline(ctx context.Context, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	peer, live := r.peers[username]
	if !live {
		return nil
	}

	queued, err := r.store.UndeliveredFor(ctx, username)
	if err != nil {
		return fmt.Errorf("fetch offline queue: %w", err)
	}
	if len(queued) == 0 {
		return nil
	}

	notice := protocol.NewOffline(username, fmt.Sprintf("You have %d offline message(s)", len(queued)))
	if err := peer.Send(notice); err != nil {
		return fmt.Errorf("send offline notice: %w", err)
	}

	for i, m := range queued {
		if err := peer.SendEncoded([]byte(m.Content)); err != nil {
			r.logger.Warn(ctx, "offline flush interrupted",
				"username", username, "delivered", i, "queued", len(queued))
			return fmt.Errorf("flush offline message: %w", err)
		}
		if i < len(queued)-1 {
			r.sleep(r.flushPacing)
		}
	}

	if err := r.store.MarkDelivered(ctx, username); err != nil {
		return fmt.Errorf("mark delivered: %w", err)
	}
	r.logger.Info(ctx, "offline queue flushed", "username", username, "count", len(queued))
	return nil
}

// RoutePrivate delivers a private text message. Unknown recipients yield a
// soft error to the sender and persist nothing. Otherwise the message is
// written to history unconditionally, then delivered live (with a
// confirmation to the sender) or enqueued offline (with an OFFLINE notice
// to the sender).
func (r *Router) RoutePrivate(ctx context.Context, sender, receiver, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	known, err := r.store.UserExists(ctx, receiver)
	if err != nil {
		r.sendTo(ctx, sender, protocol.NewError("Internal error, message not sent"))
		return fmt.Errorf("check recipient: %w", err)
	}
	if !known {
		r.sendTo(ctx, sender, protocol.NewError(fmt.Sprintf("User %q does not exist. Cannot send message.", receiver)))
		return nil
	}

	if err := r.store.AppendHistory(ctx, &models.HistoryMessage{
		Sender:   sender,
		Receiver: receiver,
		Type:     string(protocol.TypePrivate),
		Text:     text,
	}); err != nil {
		r.sendTo(ctx, sender, protocol.NewError("Internal error, message not sent"))
		return fmt.Errorf("append history: %w", err)
	}

	env := protocol.NewPrivate(sender, receiver, text)

	if peer, live := r.peers[receiver]; live {
		if err := peer.Send(env); err != nil {
			r.logger.Warn(ctx, "live delivery failed", "receiver", receiver, "error", err)
			return nil
		}
		r.sendTo(ctx, sender, protocol.NewSuccess(fmt.Sprintf("Message delivered to %s", receiver)))
		return nil
	}

	if err := r.enqueue(ctx, env, receiver, sender, false, ""); err != nil {
		r.sendTo(ctx, sender, protocol.NewError("Internal error, message not sent"))
		return err
	}
	r.sendTo(ctx, sender, protocol.NewOffline(sender,
		fmt.Sprintf("%q is offline. Message will be delivered when they connect.", receiver)))
	return nil
}

// RouteGroup fans a group text message out to the group's recipient set:
// live in-memory members united with persisted members, minus the sender.
// Live recipients get immediate delivery, offline-but-registered recipients
// are enqueued, unregistered entries are skipped.
func (r *Router) RouteGroup(ctx context.Context, sender, group, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	known, err := r.groupKnown(ctx, group)
	if err != nil {
		r.sendTo(ctx, sender, protocol.NewError("Internal error, message not sent"))
		return err
	}
	if !known {
		r.sendTo(ctx, sender, protocol.NewError(fmt.Sprintf("Group %q not found", group)))
		return nil
	}

	if err := r.store.AppendHistory(ctx, &models.HistoryMessage{
		Sender:    sender,
		Receiver:  group,
		Type:      string(protocol.TypeGroup),
		Text:      text,
		IsGroup:   true,
		GroupName: group,
	}); err != nil {
		r.sendTo(ctx, sender, protocol.NewError("Internal error, message not sent"))
		return fmt.Errorf("append history: %w", err)
	}

	members, err := r.recipients(ctx, group, sender)
	if err != nil {
		r.sendTo(ctx, sender, protocol.NewError("Internal error, message not sent"))
		return err
	}

	env := protocol.NewGroupMessage(sender, group, text)

	delivered, enqueued := 0, 0
	for _, member := range members {
		if peer, live := r.peers[member]; live {
			if err := peer.Send(env); err != nil {
				r.logger.Warn(ctx, "group delivery failed", "group", group, "member", member, "error", err)
				continue
			}
			delivered++
			continue
		}

		registered, err := r.store.UserExists(ctx, member)
		if err != nil {
			r.sendTo(ctx, sender, protocol.NewError("Internal error, message not sent"))
			return fmt.Errorf("check member: %w", err)
		}
		if !registered {
			continue
		}
		if err := r.enqueue(ctx, env, member, sender, true, group); err != nil {
			r.sendTo(ctx, sender, protocol.NewError("Internal error, message not sent"))
			return err
		}
		enqueued++
	}

	r.logger.Info(ctx, "group message routed",
		"group", group, "sender", sender, "delivered", delivered, "enqueued", enqueued)
	return nil
}

// RouteFile delivers an inline file payload. Files are ephemeral: they are
// never written to history and never enqueued, so only currently-live
// recipients receive them. The sender still gets a terminal signal either
// way.
func (r *Router) RouteFile(ctx context.Context, sender, target string, d protocol.FileData) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	env := protocol.NewFile(sender, target, d)

	if d.IsGroup {
		known, err := r.groupKnown(ctx, target)
		if err != nil {
			r.sendTo(ctx, sender, protocol.NewError("Internal error, file not sent"))
			return err
		}
		if !known {
			r.sendTo(ctx, sender, protocol.NewError(fmt.Sprintf("Group %q not found", target)))
			return nil
		}

		members, err := r.recipients(ctx, target, sender)
		if err != nil {
			r.sendTo(ctx, sender, protocol.NewError("Internal error, file not sent"))
			return err
		}
		sent := 0
		for _, member := range members {
			peer, live := r.peers[member]
			if !live {
				continue
			}
			if err := peer.Send(env); err != nil {
				r.logger.Warn(ctx, "file delivery failed", "group", target, "member", member, "error", err)
				continue
			}
			sent++
		}
		r.sendTo(ctx, sender, protocol.NewSuccess(
			fmt.Sprintf("File %q sent to %d live member(s) of %s", d.Filename, sent, target)))
		return nil
	}

	known, err := r.store.UserExists(ctx, target)
	if err != nil {
		r.sendTo(ctx, sender, protocol.NewError("Internal error, file not sent"))
		return fmt.Errorf("check recipient: %w", err)
	}
	if !known {
		r.sendTo(ctx, sender, protocol.NewError(fmt.Sprintf("User %q does not exist. Cannot send file.", target)))
		return nil
	}

	peer, live := r.peers[target]
	if !live {
		r.sendTo(ctx, sender, protocol.NewOffline(sender,
			fmt.Sprintf("%q is offline. Files are not queued for later delivery.", target)))
		return nil
	}
	if err := peer.Send(env); err != nil {
		r.logger.Warn(ctx, "file delivery failed", "receiver", target, "error", err)
		return nil
	}
	r.sendTo(ctx, sender, protocol.NewSuccess(fmt.Sprintf("File %q delivered to %s", d.Filename, target)))
	return nil
}

// CreateGroup creates a group with the creator as its sole initial member.
func (r *Router) CreateGroup(ctx context.Context, creator, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.store.CreateGroup(ctx, name, creator); err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			r.sendTo(ctx, creator, protocol.NewError(fmt.Sprintf("Group %q already exists", name)))
			return nil
		}
		r.sendTo(ctx, creator, protocol.NewError("Internal error, group not created"))
		return fmt.Errorf("create group: %w", err)
	}

	r.liveGroups[name] = map[string]struct{}{creator: {}}
	r.logger.Info(ctx, "group created", "group", name, "creator", creator)
	r.sendTo(ctx, creator, protocol.NewSuccess(fmt.Sprintf("Group %q created successfully", name)))
	return nil
}

// JoinGroup adds a user to a group. Idempotent: re-joining is a no-op
// success.
func (r *Router) JoinGroup(ctx context.Context, username, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.store.JoinGroup(ctx, name, username); err != nil {
		r.sendTo(ctx, username, protocol.NewError("Internal error, join failed"))
		return fmt.Errorf("join group: %w", err)
	}

	if _, ok := r.liveGroups[name]; !ok {
		r.liveGroups[name] = make(map[string]struct{})
	}
	r.liveGroups[name][username] = struct{}{}

	r.logger.Info(ctx, "group joined", "group", name, "username", username)
	r.sendTo(ctx, username, protocol.NewSuccess(fmt.Sprintf("Joined group %q", name)))
	return nil
}

// ListUsers sends the requester a snapshot of currently live users.
func (r *Router) ListUsers(ctx context.Context, requester string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.peers))
	for name := range r.peers {
		names = append(names, name)
	}
	sort.Strings(names)

	d := protocol.UserListData{Users: make([]protocol.UserStatus, 0, len(names))}
	for _, name := range names {
		d.Users = append(d.Users, protocol.UserStatus{Username: name, Status: "online"})
	}

	r.sendTo(ctx, requester, protocol.NewUserList(requester, d))
	return nil
}

// ListGroups sends the requester a snapshot of all groups.
func (r *Router) ListGroups(ctx context.Context, requester string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	all, err := r.store.ListGroups(ctx)
	if err != nil {
		r.sendTo(ctx, requester, protocol.NewError("Internal error, group list unavailable"))
		return fmt.Errorf("list groups: %w", err)
	}

	d := protocol.GroupListData{Groups: make([]protocol.GroupInfo, 0, len(all))}
	for _, g := range all {
		d.Groups = append(d.Groups, protocol.GroupInfo{Name: g.Name, Creator: g.Creator})
	}

	r.sendTo(ctx, requester, protocol.NewGroupList(requester, d))
	return nil
}

// History sends the requester up to the configured limit of most-recent
// messages for a private pair or a group, oldest-first. No history is an
// empty response, not an error.
func (r *Router) History(ctx context.Context, requester, peerName string, isGroup bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		rows []models.HistoryMessage
		err  error
	)
	if isGroup {
		rows, err = r.store.GroupHistory(ctx, peerName, r.historyLimit)
	} else {
		rows, err = r.store.Conversation(ctx, requester, peerName, r.historyLimit)
	}
	if err != nil {
		r.sendTo(ctx, requester, protocol.NewError("Internal error, history unavailable"))
		return fmt.Errorf("load history: %w", err)
	}

	d := protocol.HistoryResponseData{
		Peer:     peerName,
		IsGroup:  isGroup,
		Messages: make([]protocol.HistoryEntry, 0, len(rows)),
	}
	for _, m := range rows {
		d.Messages = append(d.Messages, protocol.HistoryEntry{
			Sender:    m.Sender,
			Receiver:  m.Receiver,
			Text:      m.Text,
			Type:      m.Type,
			Timestamp: m.Timestamp.Format(time.RFC3339),
		})
	}

	r.sendTo(ctx, requester, protocol.NewHistoryResponse(requester, d))
	return nil
}

// LiveUsers returns the usernames of currently registered sessions.
func (r *Router) LiveUsers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.peers))
	for name := range r.peers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// recipients computes a group's fan-out set: live cache united with
// persisted membership, minus the sender. Callers must hold r.mu.
func (r *Router) recipients(ctx context.Context, group, sender string) ([]string, error) {
	set := make(map[string]struct{})
	for member := range r.liveGroups[group] {
		set[member] = struct{}{}
	}

	persisted, err := r.store.GroupMembers(ctx, group)
	if err != nil {
		return nil, fmt.Errorf("load group members: %w", err)
	}
	for _, member := range persisted {
		set[member] = struct{}{}
	}
	delete(set, sender)

	result := make([]string, 0, len(set))
	for member := range set {
		result = append(result, member)
	}
	sort.Strings(result)
	return result, nil
}

// groupKnown checks the live cache first, then the store. Callers must hold
// r.mu.
func (r *Router) groupKnown(ctx context.Context, group string) (bool, error) {
	if _, ok := r.liveGroups[group]; ok {
		return true, nil
	}
	known, err := r.store.GroupExists(ctx, group)
	if err != nil {
		return false, fmt.Errorf("check group: %w", err)
	}
	return known, nil
}

// enqueue serializes the envelope and stores it on the receiver's offline
// queue. Callers must hold r.mu.
func (r *Router) enqueue(ctx context.Context, env *protocol.Envelope, receiver, sender string, isGroup bool, group string) error {
	frame, err := env.Encode()
	if err != nil {
		return fmt.Errorf("encode offline payload: %w", err)
	}
	if err := r.store.EnqueueOffline(ctx, &models.OfflineMessage{
		Receiver:  receiver,
		Sender:    sender,
		Type:      string(env.Type),
		Content:   string(frame),
		IsGroup:   isGroup,
		GroupName: group,
	}); err != nil {
		return fmt.Errorf("enqueue offline: %w", err)
	}
	return nil
}

// sendTo delivers an envelope to a live user, logging delivery failures.
// Callers must hold r.mu.
func (r *Router) sendTo(ctx context.Context, username string, env *protocol.Envelope) {
	peer, live := r.peers[username]
	if !live {
		return
	}
	if err := peer.Send(env); err != nil {
		r.logger.Warn(ctx, "send failed", "username", username, "type", env.Type, "error", err)
	}
}
