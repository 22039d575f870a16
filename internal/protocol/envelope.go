// Package protocol defines the wire envelope exchanged between client and
// server, its closed set of message types, and the typed payloads carried in
// the data field.
//
// Every envelope is encoded as a single JSON document and sent in one
// transmit call; there is no length-prefix framing. Payload encryption
// happens above this package: the codec only ever sees plaintext JSON.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/classchat-io/classchat/internal/common"
)

// Type identifies the kind of an envelope. The set is closed: Decode rejects
// anything outside it.
type Type string

const (
	TypeConnect         Type = "CONNECT"
	TypeDisconnect      Type = "DISCONNECT"
	TypePrivate         Type = "PRIVATE"
	TypeGroup           Type = "GROUP"
	TypeFile            Type = "FILE"
	TypeCreateGroup     Type = "CREATE_GROUP"
	TypeJoinGroup       Type = "JOIN_GROUP"
	TypeListUsers       Type = "LIST_USERS"
	TypeListGroups      Type = "LIST_GROUPS"
	TypeHistoryRequest  Type = "HISTORY_REQUEST"
	TypeHistoryResponse Type = "HISTORY_RESPONSE"
	TypeKeyExchange     Type = "KEY_EXCHANGE"
	TypeSuccess         Type = "SUCCESS"
	TypeError           Type = "ERROR"
	TypeOffline         Type = "OFFLINE"
)

var validTypes = map[Type]struct{}{
	TypeConnect: {}, TypeDisconnect: {}, TypePrivate: {}, TypeGroup: {},
	TypeFile: {}, TypeCreateGroup: {}, TypeJoinGroup: {}, TypeListUsers: {},
	TypeListGroups: {}, TypeHistoryRequest: {}, TypeHistoryResponse: {},
	TypeKeyExchange: {}, TypeSuccess: {}, TypeError: {}, TypeOffline: {},
}

// Valid reports whether t belongs to the closed type set.
func (t Type) Valid() bool {
	_, ok := validTypes[t]
	return ok
}

// Envelope is the unit exchanged over the wire. Receiver, Text and Data are
// optional depending on the type. Data holds a type-specific payload; use
// the typed accessors below instead of inspecting it directly.
type Envelope struct {
	Type     Type            `json:"type"`
	Sender   string          `json:"sender"`
	Receiver string          `json:"receiver,omitempty"`
	Text     string          `json:"text,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// Encode serializes the envelope to its wire form.
func (e *Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Decode parses a wire frame into an Envelope. Garbage input or an unknown
// type yields common.ErrMalformedEnvelope; the caller is expected to drop
// the frame and continue.
func Decode(frame []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(frame, &e); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrMalformedEnvelope, err)
	}
	if !e.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown type %q", common.ErrMalformedEnvelope, e.Type)
	}
	return &e, nil
}

// mustData marshals a payload struct into a raw data field. The payload
// types in this package contain only JSON-safe fields, so a marshal failure
// is a programming error.
func mustData(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("protocol: marshal payload: %v", err))
	}
	return b
}

func decodeData(e *Envelope, v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("%w: missing data payload", common.ErrMalformedEnvelope)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("%w: %v", common.ErrMalformedEnvelope, err)
	}
	return nil
}
