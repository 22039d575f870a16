package protocol

import "github.com/classchat-io/classchat/internal/common"

// NewConnect announces a username to the server. It is the only envelope a
// client may send before the handshake completes.
func NewConnect(username string) *Envelope {
	return &Envelope{Type: TypeConnect, Sender: username}
}

// NewDisconnect ends the session cleanly.
func NewDisconnect(username string) *Envelope {
	return &Envelope{Type: TypeDisconnect, Sender: username}
}

// NewPrivate builds a private text message.
func NewPrivate(sender, receiver, text string) *Envelope {
	return &Envelope{Type: TypePrivate, Sender: sender, Receiver: receiver, Text: text}
}

// NewGroupMessage builds a group text message; receiver carries the group name.
func NewGroupMessage(sender, group, text string) *Envelope {
	return &Envelope{Type: TypeGroup, Sender: sender, Receiver: group, Text: text, Data: mustData(GroupData{GroupName: group})}
}

// NewFile builds an inline file transfer to a user or, when d.IsGroup is
// set, to a group named by receiver.
func NewFile(sender, receiver string, d FileData) *Envelope {
	return &Envelope{Type: TypeFile, Sender: sender, Receiver: receiver, Data: mustData(d)}
}

// NewCreateGroup asks the server to create a group with sender as creator.
func NewCreateGroup(sender, group string) *Envelope {
	return &Envelope{Type: TypeCreateGroup, Sender: sender, Data: mustData(GroupData{GroupName: group})}
}

// NewJoinGroup asks the server to add sender to a group.
func NewJoinGroup(sender, group string) *Envelope {
	return &Envelope{Type: TypeJoinGroup, Sender: sender, Data: mustData(GroupData{GroupName: group})}
}

// NewListUsers requests the live-user snapshot.
func NewListUsers(sender string) *Envelope {
	return &Envelope{Type: TypeListUsers, Sender: sender}
}

// NewListGroups requests the group snapshot.
func NewListGroups(sender string) *Envelope {
	return &Envelope{Type: TypeListGroups, Sender: sender}
}

// NewHistoryRequest asks for recent conversation or group history.
func NewHistoryRequest(sender, peer string, isGroup bool) *Envelope {
	return &Envelope{Type: TypeHistoryRequest, Sender: sender, Data: mustData(HistoryRequestData{Peer: peer, IsGroup: isGroup})}
}

// NewHistoryResponse carries history back to the requester.
func NewHistoryResponse(receiver string, d HistoryResponseData) *Envelope {
	return &Envelope{Type: TypeHistoryResponse, Sender: common.ServerName, Receiver: receiver, Data: mustData(d)}
}

// NewKeyExchange carries one handshake step from the server to receiver.
func NewKeyExchange(receiver string, d KeyExchangeData) *Envelope {
	return &Envelope{Type: TypeKeyExchange, Sender: common.ServerName, Receiver: receiver, Data: mustData(d)}
}

// NewClientKeyExchange carries the client's encrypted session key.
func NewClientKeyExchange(sender string, d KeyExchangeData) *Envelope {
	return &Envelope{Type: TypeKeyExchange, Sender: sender, Data: mustData(d)}
}

// NewUserList carries the live-user snapshot to receiver.
func NewUserList(receiver string, d UserListData) *Envelope {
	return &Envelope{Type: TypeListUsers, Sender: common.ServerName, Receiver: receiver, Data: mustData(d)}
}

// NewGroupList carries the group snapshot to receiver.
func NewGroupList(receiver string, d GroupListData) *Envelope {
	return &Envelope{Type: TypeListGroups, Sender: common.ServerName, Receiver: receiver, Data: mustData(d)}
}

// NewSuccess builds a server success notice.
func NewSuccess(text string) *Envelope {
	return &Envelope{Type: TypeSuccess, Sender: common.ServerName, Text: text}
}

// NewError builds a server soft-error notice.
func NewError(text string) *Envelope {
	return &Envelope{Type: TypeError, Sender: common.ServerName, Text: text}
}

// NewOffline notifies receiver that a message was queued for later delivery,
// or announces the queued-message count at connect time.
func NewOffline(receiver, text string) *Envelope {
	return &Envelope{Type: TypeOffline, Sender: common.ServerName, Receiver: receiver, Text: text}
}
