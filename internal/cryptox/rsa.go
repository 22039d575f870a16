// Package cryptox implements the hybrid transport crypto: a long-lived
// server RSA-2048 keypair used to receive each client's AES session key, and
// per-connection AES-256-CBC payload encryption once the handshake is done.
package cryptox

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"

	"github.com/classchat-io/classchat/internal/common"
)

// SessionKeySize is the AES-256 key length in bytes.
const SessionKeySize = 32

// ServerKeys holds the server-wide RSA keypair. One instance is shared by
// every connection; only the session-key exchange uses it.
type ServerKeys struct {
	priv *rsa.PrivateKey
}

// GenerateServerKeys creates a fresh RSA-2048 keypair.
func GenerateServerKeys() (*ServerKeys, error) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("generate rsa keypair: %w", err)
	}
	return &ServerKeys{priv: priv}, nil
}

// PublicKeyPEM exports the public key as base64-wrapped PKIX PEM, the form
// sent to clients in the server_public_key handshake step.
func (k *ServerKeys) PublicKeyPEM() (string, error) {
	der, err := x509.MarshalPKIXPublicKey(&k.priv.PublicKey)
	if err != nil {
		return "", fmt.Errorf("marshal public key: %w", err)
	}
	block := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
	return base64.StdEncoding.EncodeToString(block), nil
}

// DecryptSessionKey recovers a client's AES session key from its RSA-OAEP
// ciphertext. Any failure is a handshake failure: the key material cannot be
// trusted and the connection must be closed.
func (k *ServerKeys) DecryptSessionKey(encryptedB64 string) ([]byte, error) {
	ct, err := base64.StdEncoding.DecodeString(encryptedB64)
	if err != nil {
		return nil, fmt.Errorf("%w: decode session key: %v", common.ErrHandshakeFailed, err)
	}
	key, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, k.priv, ct, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: decrypt session key: %v", common.ErrHandshakeFailed, err)
	}
	if len(key) != SessionKeySize {
		return nil, fmt.Errorf("%w: session key must be %d bytes, got %d", common.ErrHandshakeFailed, SessionKeySize, len(key))
	}
	return key, nil
}

// ParsePublicKeyPEM loads a server public key from its base64-wrapped PEM
// form (client side).
func ParsePublicKeyPEM(pemB64 string) (*rsa.PublicKey, error) {
	raw, err := base64.StdEncoding.DecodeString(pemB64)
	if err != nil {
		return nil, fmt.Errorf("%w: decode public key: %v", common.ErrHandshakeFailed, err)
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block in public key", common.ErrHandshakeFailed)
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: parse public key: %v", common.ErrHandshakeFailed, err)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: public key is not RSA", common.ErrHandshakeFailed)
	}
	return rsaPub, nil
}

// GenerateSessionKey creates a random AES-256 session key (client side).
func GenerateSessionKey() ([]byte, error) {
	key := make([]byte, SessionKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate session key: %w", err)
	}
	return key, nil
}

// EncryptSessionKey encrypts a session key with the server's public key
// using RSA-OAEP/SHA-256 (client side).
func EncryptSessionKey(pub *rsa.PublicKey, key []byte) (string, error) {
	ct, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, key, nil)
	if err != nil {
		return "", fmt.Errorf("encrypt session key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(ct), nil
}
