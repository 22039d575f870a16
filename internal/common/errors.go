// Package common defines shared constants and sentinel errors used across
// client and server layers of ClassChat. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// Handshake and session-crypto errors. ErrHandshakeFailed is fatal to
	// the connection; ErrDecryptionFailed after an established handshake is
	// not (the frame is dropped).
	ErrHandshakeFailed  = errors.New("handshake failed")
	ErrNoSessionKey     = errors.New("no session key established")
	ErrDecryptionFailed = errors.New("decryption failed")

	// Protocol errors.
	ErrMalformedEnvelope = errors.New("malformed envelope")

	// Routing errors returned to the sender as soft errors.
	ErrUsernameTaken    = errors.New("username already taken")
	ErrUnknownRecipient = errors.New("unknown recipient")
	ErrUnknownGroup     = errors.New("unknown group")
)

// ServerName is the sender field used on envelopes originated by the server.
const ServerName = "SERVER"
