package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/classchat-io/classchat/internal/common"
	"github.com/classchat-io/classchat/internal/cryptox"
	"github.com/classchat-io/classchat/internal/logging"
	"github.com/classchat-io/classchat/internal/protocol"
	"github.com/classchat-io/classchat/internal/server/router"
)

// session is one client connection: its socket, crypto state machine and
// registered username. It implements router.Peer so the router can deliver
// to it. Reads happen only on the session goroutine; writes can come from
// any sender's goroutine, so they are serialized by writeMu.
type session struct {
	id   string
	conn net.Conn
	sess *cryptox.Session
	keys *cryptox.ServerKeys

	router      *router.Router
	logger      logging.Logger
	bufSize     int
	maxFileSize int

	username string

	writeMu sync.Mutex
}

func newSession(conn net.Conn, r *router.Router, keys *cryptox.ServerKeys, logger logging.Logger, bufSize, maxFileSize int) *session {
	id := sessionID()
	return &session{
		id:          id,
		conn:        conn,
		sess:        cryptox.NewSession(),
		keys:        keys,
		router:      r,
		logger:      logger.With("session_id", id, "remote", conn.RemoteAddr().String()),
		bufSize:     bufSize,
		maxFileSize: maxFileSize,
	}
}

// Send encodes the envelope and writes it, encrypting once the handshake is
// complete. Pre-handshake traffic (the welcome, the key exchange itself, a
// username-taken rejection) goes out in plaintext.
func (s *session) Send(env *protocol.Envelope) error {
	frame, err := env.Encode()
	if err != nil {
		return err
	}
	return s.SendEncoded(frame)
}

// SendEncoded transmits an already-serialized envelope, encrypting it when
// the session key is established. Offline-queue payloads arrive here
// verbatim from storage.
func (s *session) SendEncoded(frame []byte) error {
	out := frame
	if s.sess.Established() {
		enc, err := s.sess.EncryptPayload(frame)
		if err != nil {
			return err
		}
		out = []byte(enc)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.conn.Write(out); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// run drives the session: handshake, offline flush, then the dispatch loop.
// Any fatal error tears down only this connection.
func (s *session) run(ctx context.Context) {
	defer s.conn.Close()
	defer s.sess.Reset()

	if err := s.handshake(ctx); err != nil {
		s.logger.Warn(ctx, "handshake failed", "error", err)
		return
	}
	defer s.router.Disconnect(ctx, s.username)

	if err := s.router.FlushOffline(ctx, s.username); err != nil {
		s.logger.Warn(ctx, "offline flush failed", "username", s.username, "error", err)
	}

	s.loop(ctx)
}

// handshake performs the connect + key-exchange sequence:
//
//	client → CONNECT (plaintext)
//	server → SUCCESS welcome (plaintext)
//	server → KEY_EXCHANGE server_public_key (plaintext)
//	client → KEY_EXCHANGE client_session_key (plaintext, RSA-protected key)
//	server → KEY_EXCHANGE complete (encrypted)
//
// Any deviation is fatal. The username is only reserved at the CONNECT
// step; the session does not become routable until the key exchange has
// established payload encryption, so nothing can be delivered to this
// socket in plaintext. Messages sent to the username during the gap are
// queued offline and arrive in the post-handshake flush.
func (s *session) handshake(ctx context.Context) error {
	buf := make([]byte, s.bufSize)

	frame, err := s.read(buf)
	if err != nil {
		return fmt.Errorf("read connect: %w", err)
	}
	env, err := protocol.Decode(frame)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrHandshakeFailed, err)
	}
	if env.Type != protocol.TypeConnect || env.Sender == "" {
		return fmt.Errorf("%w: expected CONNECT, got %s", common.ErrHandshakeFailed, env.Type)
	}
	username := env.Sender

	if err := s.router.Reserve(ctx, username); err != nil {
		if errors.Is(err, common.ErrUsernameTaken) {
			s.Send(protocol.NewError(fmt.Sprintf("Username %q is already taken", username)))
		}
		return err
	}
	s.username = username
	s.logger = s.logger.With("username", username)

	// Free the reservation if the key exchange does not complete.
	completed := false
	defer func() {
		if !completed {
			s.router.Release(ctx, username)
			s.username = ""
		}
	}()

	if err := s.Send(protocol.NewSuccess(fmt.Sprintf("Welcome to the chat server, %s!", username))); err != nil {
		return fmt.Errorf("send welcome: %w", err)
	}

	pubPEM, err := s.keys.PublicKeyPEM()
	if err != nil {
		return err
	}
	if err := s.Send(protocol.NewKeyExchange(username, protocol.KeyExchangeData{
		Step:      protocol.StepServerPublicKey,
		PublicKey: pubPEM,
	})); err != nil {
		return fmt.Errorf("send public key: %w", err)
	}
	if err := s.sess.Begin(); err != nil {
		return err
	}

	frame, err = s.read(buf)
	if err != nil {
		return fmt.Errorf("read session key: %w", err)
	}
	env, err = protocol.Decode(frame)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrHandshakeFailed, err)
	}
	if env.Type != protocol.TypeKeyExchange {
		return fmt.Errorf("%w: expected KEY_EXCHANGE, got %s", common.ErrHandshakeFailed, env.Type)
	}
	kx, err := env.KeyExchangeData()
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrHandshakeFailed, err)
	}
	if kx.Step != protocol.StepClientSessionKey {
		return fmt.Errorf("%w: expected step %s, got %s", common.ErrHandshakeFailed, protocol.StepClientSessionKey, kx.Step)
	}

	key, err := s.keys.DecryptSessionKey(kx.EncryptedSessionKey)
	if err != nil {
		return err
	}
	if err := s.sess.Establish(key); err != nil {
		return err
	}

	if err := s.Send(protocol.NewKeyExchange(username, protocol.KeyExchangeData{
		Step: protocol.StepComplete,
	})); err != nil {
		return fmt.Errorf("send handshake complete: %w", err)
	}

	s.router.Register(ctx, username, s)
	completed = true
	s.logger.Info(ctx, "handshake complete")
	return nil
}

// loop reads, decrypts and dispatches envelopes until the client
// disconnects or the socket fails. Undecryptable and malformed frames are
// dropped with a notice; they never end the session.
func (s *session) loop(ctx context.Context) {
	buf := make([]byte, s.bufSize)

	for {
		frame, err := s.read(buf)
		if err != nil {
			s.logger.Info(ctx, "connection closed", "error", err)
			return
		}

		plaintext, err := s.sess.DecryptPayload(string(frame))
		if err != nil {
			s.logger.Warn(ctx, "dropping undecryptable frame", "error", err)
			continue
		}

		env, err := protocol.Decode(plaintext)
		if err != nil {
			s.logger.Warn(ctx, "dropping malformed envelope", "error", err)
			s.Send(protocol.NewError("Malformed message"))
			continue
		}

		if env.Type == protocol.TypeDisconnect {
			s.logger.Info(ctx, "client requested disconnect")
			return
		}
		if err := s.dispatch(ctx, env); err != nil {
			s.logger.Error(ctx, "dispatch failed", "type", env.Type, "error", err)
		}
	}
}

// dispatch routes one decrypted envelope. The registered username is always
// used as the sender, regardless of what the envelope claims.
func (s *session) dispatch(ctx context.Context, env *protocol.Envelope) error {
	switch env.Type {
	case protocol.TypeConnect:
		s.logger.Warn(ctx, "ignoring CONNECT on established session")
		return nil

	case protocol.TypePrivate:
		return s.router.RoutePrivate(ctx, s.username, env.Receiver, env.Text)

	case protocol.TypeGroup:
		group := env.Receiver
		if d, err := env.GroupData(); err == nil && d.GroupName != "" {
			group = d.GroupName
		}
		return s.router.RouteGroup(ctx, s.username, group, env.Text)

	case protocol.TypeFile:
		d, err := env.FileData()
		if err != nil {
			s.Send(protocol.NewError("Malformed file message"))
			return nil
		}
		if len(d.FileContent) > s.maxFileSize {
			s.Send(protocol.NewError("File too large"))
			return nil
		}
		return s.router.RouteFile(ctx, s.username, env.Receiver, *d)

	case protocol.TypeCreateGroup:
		d, err := env.GroupData()
		if err != nil {
			s.Send(protocol.NewError("Malformed group message"))
			return nil
		}
		return s.router.CreateGroup(ctx, s.username, d.GroupName)

	case protocol.TypeJoinGroup:
		d, err := env.GroupData()
		if err != nil {
			s.Send(protocol.NewError("Malformed group message"))
			return nil
		}
		return s.router.JoinGroup(ctx, s.username, d.GroupName)

	case protocol.TypeListUsers:
		return s.router.ListUsers(ctx, s.username)

	case protocol.TypeListGroups:
		return s.router.ListGroups(ctx, s.username)

	case protocol.TypeHistoryRequest:
		d, err := env.HistoryRequestData()
		if err != nil {
			s.Send(protocol.NewError("Malformed history request"))
			return nil
		}
		return s.router.History(ctx, s.username, d.Peer, d.IsGroup)

	default:
		s.logger.Warn(ctx, "ignoring unexpected envelope", "type", env.Type)
		return nil
	}
}

// read blocks for one frame. Message boundaries are assumed to survive a
// single read, which holds for envelope-sized writes on a quiet connection.
func (s *session) read(buf []byte) ([]byte, error) {
	n, err := s.conn.Read(buf)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, buf[:n])
	return out, nil
}
