package cryptox

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/classchat-io/classchat/internal/common"
)

// State tracks the handshake progress of one connection.
type State int

const (
	// StateNoKey is the initial state: no handshake traffic yet.
	StateNoKey State = iota
	// StateAwaitingPeerKey means the server public key went out and the
	// encrypted session key has not come back.
	StateAwaitingPeerKey
	// StateEstablished means the session key is bound and payload
	// encryption is active.
	StateEstablished
)

func (s State) String() string {
	switch s {
	case StateNoKey:
		return "no_key"
	case StateAwaitingPeerKey:
		return "awaiting_peer_key"
	case StateEstablished:
		return "established"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Session is the per-connection crypto state machine. Transitions are
// validated: out-of-order handshake steps are rejected rather than silently
// accepted. A Session is confined to its connection goroutine and needs no
// locking.
type Session struct {
	state State
	key   []byte
}

// NewSession returns a session in StateNoKey.
func NewSession() *Session {
	return &Session{state: StateNoKey}
}

// State returns the current handshake state.
func (s *Session) State() State {
	return s.state
}

// Established reports whether payload encryption is active.
func (s *Session) Established() bool {
	return s.state == StateEstablished
}

// Begin marks the public key as sent, moving NoKey → AwaitingPeerKey.
func (s *Session) Begin() error {
	if s.state != StateNoKey {
		return fmt.Errorf("%w: begin in state %s", common.ErrHandshakeFailed, s.state)
	}
	s.state = StateAwaitingPeerKey
	return nil
}

// Establish binds the decrypted session key, moving AwaitingPeerKey →
// Established.
func (s *Session) Establish(key []byte) error {
	if s.state != StateAwaitingPeerKey {
		return fmt.Errorf("%w: establish in state %s", common.ErrHandshakeFailed, s.state)
	}
	if len(key) != SessionKeySize {
		return fmt.Errorf("%w: session key must be %d bytes", common.ErrHandshakeFailed, SessionKeySize)
	}
	s.key = key
	s.state = StateEstablished
	return nil
}

// Reset discards the session key, e.g. on disconnect.
func (s *Session) Reset() {
	s.state = StateNoKey
	s.key = nil
}

// EncryptPayload encrypts plaintext with AES-256-CBC under the session key.
// A fresh random 16-byte IV is generated per call, the plaintext is PKCS7
// padded, and the result is base64(iv || ciphertext).
func (s *Session) EncryptPayload(plaintext []byte) (string, error) {
	if !s.Established() {
		return "", common.ErrNoSessionKey
	}

	block, err := aes.NewCipher(s.key)
	if err != nil {
		return "", fmt.Errorf("new cipher: %w", err)
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("generate iv: %w", err)
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ct := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ct, padded)

	return base64.StdEncoding.EncodeToString(append(iv, ct...)), nil
}

// DecryptPayload reverses EncryptPayload. Corrupt or undecryptable frames
// yield common.ErrDecryptionFailed; after the handshake that is non-fatal
// and the caller drops the frame.
func (s *Session) DecryptPayload(encoded string) ([]byte, error) {
	if !s.Established() {
		return nil, common.ErrNoSessionKey
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDecryptionFailed, err)
	}
	if len(raw) < aes.BlockSize || len(raw)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: bad frame length %d", common.ErrDecryptionFailed, len(raw))
	}

	iv, ct := raw[:aes.BlockSize], raw[aes.BlockSize:]
	if len(ct) == 0 {
		return nil, fmt.Errorf("%w: empty ciphertext", common.ErrDecryptionFailed)
	}

	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}

	padded := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(padded, ct)

	plaintext, err := pkcs7Unpad(padded, aes.BlockSize)
	if err != nil {
		return nil, err
	}
	return plaintext, nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("%w: bad padded length", common.ErrDecryptionFailed)
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, fmt.Errorf("%w: bad padding", common.ErrDecryptionFailed)
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("%w: bad padding", common.ErrDecryptionFailed)
		}
	}
	return data[:len(data)-n], nil
}
