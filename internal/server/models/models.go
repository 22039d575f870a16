// Package models defines the server-side data model: registered users,
// durable message history, the offline queue, and groups.
package models

import "time"

// User is a registered account, created on first successful connect.
// LastSeen is touched on every reconnect.
type User struct {
	ID           int64
	Username     string
	RegisteredAt time.Time
	LastSeen     time.Time
}

// HistoryMessage is one append-only row of conversation history. Rows are
// never mutated or deleted. For group messages IsGroup is set, Receiver
// carries the group name and GroupName duplicates it for the group-history
// index.
type HistoryMessage struct {
	ID        int64
	Sender    string
	Receiver  string
	Type      string
	Text      string
	Timestamp time.Time
	IsGroup   bool
	GroupName string
}

// OfflineMessage is a queued delivery for a currently disconnected user.
// Content is the serialized envelope exactly as it would have been sent
// live. Delivered transitions false→true once and never reverts.
type OfflineMessage struct {
	ID        int64
	Receiver  string
	Sender    string
	Type      string
	Content   string
	Timestamp time.Time
	Delivered bool
	IsGroup   bool
	GroupName string
}

// Group is a named chat group. Membership only grows; there is no leave
// operation.
type Group struct {
	ID        int64
	Name      string
	Creator   string
	CreatedAt time.Time
}
