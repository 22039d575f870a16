// Package client implements the chat client transport: dialing, the
// connect/key-exchange handshake, the background receive loop and the typed
// send operations.
package client

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/classchat-io/classchat/internal/client/config"
	"github.com/classchat-io/classchat/internal/common"
	"github.com/classchat-io/classchat/internal/cryptox"
	"github.com/classchat-io/classchat/internal/netx"
	"github.com/classchat-io/classchat/internal/protocol"
)

// Handler consumes envelopes delivered by the receive loop.
type Handler func(env *protocol.Envelope)

// Client is one connection to the chat server. Reads happen on the receive
// loop goroutine; sends can come from any goroutine and are serialized.
type Client struct {
	cfg  *config.Config
	conn net.Conn
	sess *cryptox.Session

	username string
	running  atomic.Bool

	writeMu sync.Mutex
	wg      sync.WaitGroup
}

// Dial connects to the configured server address.
func Dial(cfg *config.Config) (*Client, error) {
	conn, err := net.DialTimeout("tcp", cfg.ServerAddr, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.ServerAddr, err)
	}
	return NewClient(conn, cfg), nil
}

// NewClient wraps an established connection. Used directly by tests.
func NewClient(conn net.Conn, cfg *config.Config) *Client {
	return &Client{cfg: cfg, conn: conn, sess: cryptox.NewSession()}
}

// Username returns the name registered during the handshake.
func (c *Client) Username() string {
	return c.username
}

// Handshake announces the username and runs the key exchange:
//
//	→ CONNECT                              (plaintext)
//	← SUCCESS welcome                      (plaintext)
//	← KEY_EXCHANGE server_public_key       (plaintext)
//	→ KEY_EXCHANGE client_session_key      (plaintext, RSA-protected key)
//	← KEY_EXCHANGE complete                (encrypted)
//
// A taken username comes back as an ERROR envelope before the key exchange
// and yields common.ErrUsernameTaken. Any other deviation is a handshake
// failure.
func (c *Client) Handshake(username string) error {
	if err := c.writePlain(protocol.NewConnect(username)); err != nil {
		return err
	}

	env, err := c.readPlain()
	if err != nil {
		return fmt.Errorf("%w: read welcome: %v", common.ErrHandshakeFailed, err)
	}
	if env.Type == protocol.TypeError {
		return fmt.Errorf("%w: %s", common.ErrUsernameTaken, env.Text)
	}
	if env.Type != protocol.TypeSuccess {
		return fmt.Errorf("%w: expected welcome, got %s", common.ErrHandshakeFailed, env.Type)
	}

	if err := c.sess.Begin(); err != nil {
		return err
	}

	env, err = c.readPlain()
	if err != nil {
		return fmt.Errorf("%w: read public key: %v", common.ErrHandshakeFailed, err)
	}
	if env.Type != protocol.TypeKeyExchange {
		return fmt.Errorf("%w: expected KEY_EXCHANGE, got %s", common.ErrHandshakeFailed, env.Type)
	}
	kx, err := env.KeyExchangeData()
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrHandshakeFailed, err)
	}
	if kx.Step != protocol.StepServerPublicKey {
		return fmt.Errorf("%w: expected step %s, got %s", common.ErrHandshakeFailed, protocol.StepServerPublicKey, kx.Step)
	}

	pub, err := cryptox.ParsePublicKeyPEM(kx.PublicKey)
	if err != nil {
		return err
	}
	key, err := cryptox.GenerateSessionKey()
	if err != nil {
		return err
	}
	encKey, err := cryptox.EncryptSessionKey(pub, key)
	if err != nil {
		return err
	}

	if err := c.sess.Establish(key); err != nil {
		return err
	}

	if err := c.writePlain(protocol.NewClientKeyExchange(username, protocol.KeyExchangeData{
		Step:                protocol.StepClientSessionKey,
		EncryptedSessionKey: encKey,
	})); err != nil {
		return err
	}

	frame, err := c.readFrame()
	if err != nil {
		return fmt.Errorf("%w: read completion: %v", common.ErrHandshakeFailed, err)
	}
	plaintext, err := c.sess.DecryptPayload(string(frame))
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrHandshakeFailed, err)
	}
	env, err = protocol.Decode(plaintext)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrHandshakeFailed, err)
	}
	done, err := env.KeyExchangeData()
	if err != nil || env.Type != protocol.TypeKeyExchange || done.Step != protocol.StepComplete {
		return fmt.Errorf("%w: key exchange did not complete", common.ErrHandshakeFailed)
	}

	c.username = username
	return nil
}

// Start launches the receive loop. Incoming envelopes are handed to the
// handler on the loop goroutine. Undecryptable and malformed frames are
// dropped; a socket error or Close ends the loop.
func (c *Client) Start(handler Handler) {
	c.running.Store(true)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		buf := make([]byte, c.cfg.BufferSize)
		for c.running.Load() {
			n, err := netx.ReadFrame(c.conn, buf, c.cfg.ReadTimeout)
			if err != nil {
				if errors.Is(err, netx.ErrWaitTimeout) {
					continue
				}
				c.running.Store(false)
				return
			}

			plaintext, err := c.sess.DecryptPayload(string(buf[:n]))
			if err != nil {
				continue
			}
			env, err := protocol.Decode(plaintext)
			if err != nil {
				continue
			}
			handler(env)
		}
	}()
}

// Running reports whether the receive loop is still active.
func (c *Client) Running() bool {
	return c.running.Load()
}

// Close sends DISCONNECT, stops the receive loop and closes the socket.
func (c *Client) Close() error {
	if c.username != "" && c.sess.Established() {
		// Best effort: the server also handles an abrupt close.
		_ = c.send(protocol.NewDisconnect(c.username))
	}
	c.running.Store(false)
	err := c.conn.Close()
	c.wg.Wait()
	c.sess.Reset()
	return err
}

// SendPrivate sends a private text message.
func (c *Client) SendPrivate(receiver, text string) error {
	return c.send(protocol.NewPrivate(c.username, receiver, text))
}

// SendGroup sends a text message to a group.
func (c *Client) SendGroup(group, text string) error {
	return c.send(protocol.NewGroupMessage(c.username, group, text))
}

// SendFile reads the file at path and sends it inline, base64-encoded, to a
// user or group. Files larger than the configured limit are refused locally.
func (c *Client) SendFile(path, target string, isGroup bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(data)
	if len(encoded) > c.cfg.MaxFileSize {
		return fmt.Errorf("file %q exceeds the %d byte limit", path, c.cfg.MaxFileSize)
	}
	return c.send(protocol.NewFile(c.username, target, protocol.FileData{
		Filename:    filepath.Base(path),
		FileContent: encoded,
		IsGroup:     isGroup,
	}))
}

// CreateGroup asks the server to create a group.
func (c *Client) CreateGroup(name string) error {
	return c.send(protocol.NewCreateGroup(c.username, name))
}

// JoinGroup asks the server to add this user to a group.
func (c *Client) JoinGroup(name string) error {
	return c.send(protocol.NewJoinGroup(c.username, name))
}

// ListUsers requests the live-user snapshot.
func (c *Client) ListUsers() error {
	return c.send(protocol.NewListUsers(c.username))
}

// ListGroups requests the group snapshot.
func (c *Client) ListGroups() error {
	return c.send(protocol.NewListGroups(c.username))
}

// RequestHistory asks for recent private or group history.
func (c *Client) RequestHistory(peer string, isGroup bool) error {
	return c.send(protocol.NewHistoryRequest(c.username, peer, isGroup))
}

// send encrypts and transmits one envelope.
func (c *Client) send(env *protocol.Envelope) error {
	frame, err := env.Encode()
	if err != nil {
		return err
	}
	enc, err := c.sess.EncryptPayload(frame)
	if err != nil {
		return err
	}
	return c.write([]byte(enc))
}

func (c *Client) writePlain(env *protocol.Envelope) error {
	frame, err := env.Encode()
	if err != nil {
		return err
	}
	return c.write(frame)
}

func (c *Client) write(frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := c.conn.Write(frame); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

func (c *Client) readFrame() ([]byte, error) {
	buf := make([]byte, c.cfg.BufferSize)
	n, err := c.conn.Read(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

func (c *Client) readPlain() (*protocol.Envelope, error) {
	frame, err := c.readFrame()
	if err != nil {
		return nil, err
	}
	return protocol.Decode(frame)
}
