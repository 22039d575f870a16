package client

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classchat-io/classchat/internal/client/config"
	"github.com/classchat-io/classchat/internal/common"
	"github.com/classchat-io/classchat/internal/cryptox"
	"github.com/classchat-io/classchat/internal/protocol"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.ReadTimeout = 20 * time.Millisecond
	return cfg
}

// scriptedServer plays the server half of a net.Pipe connection.
type scriptedServer struct {
	t    *testing.T
	conn net.Conn
	keys *cryptox.ServerKeys
	sess *cryptox.Session
	buf  []byte
}

func newScriptedServer(t *testing.T, conn net.Conn) *scriptedServer {
	t.Helper()
	keys, err := cryptox.GenerateServerKeys()
	require.NoError(t, err)
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))
	return &scriptedServer{t: t, conn: conn, keys: keys, sess: cryptox.NewSession(), buf: make([]byte, 64*1024)}
}

func (s *scriptedServer) readFrame() []byte {
	s.t.Helper()
	n, err := s.conn.Read(s.buf)
	require.NoError(s.t, err)
	out := make([]byte, n)
	copy(out, s.buf[:n])
	return out
}

func (s *scriptedServer) writePlain(env *protocol.Envelope) {
	s.t.Helper()
	frame, err := env.Encode()
	require.NoError(s.t, err)
	_, err = s.conn.Write(frame)
	require.NoError(s.t, err)
}

func (s *scriptedServer) writeEncrypted(env *protocol.Envelope) {
	s.t.Helper()
	frame, err := env.Encode()
	require.NoError(s.t, err)
	enc, err := s.sess.EncryptPayload(frame)
	require.NoError(s.t, err)
	_, err = s.conn.Write([]byte(enc))
	require.NoError(s.t, err)
}

func (s *scriptedServer) readEncrypted() *protocol.Envelope {
	s.t.Helper()
	plaintext, err := s.sess.DecryptPayload(string(s.readFrame()))
	require.NoError(s.t, err)
	env, err := protocol.Decode(plaintext)
	require.NoError(s.t, err)
	return env
}

// handshake accepts the client's connect sequence for the given username.
func (s *scriptedServer) handshake(username string) {
	s.t.Helper()

	env, err := protocol.Decode(s.readFrame())
	require.NoError(s.t, err)
	require.Equal(s.t, protocol.TypeConnect, env.Type)
	require.Equal(s.t, username, env.Sender)

	s.writePlain(protocol.NewSuccess("Welcome to the chat server, " + username + "!"))

	pubPEM, err := s.keys.PublicKeyPEM()
	require.NoError(s.t, err)
	s.writePlain(protocol.NewKeyExchange(username, protocol.KeyExchangeData{
		Step:      protocol.StepServerPublicKey,
		PublicKey: pubPEM,
	}))

	env, err = protocol.Decode(s.readFrame())
	require.NoError(s.t, err)
	require.Equal(s.t, protocol.TypeKeyExchange, env.Type)
	kx, err := env.KeyExchangeData()
	require.NoError(s.t, err)
	require.Equal(s.t, protocol.StepClientSessionKey, kx.Step)

	key, err := s.keys.DecryptSessionKey(kx.EncryptedSessionKey)
	require.NoError(s.t, err)
	require.NoError(s.t, s.sess.Begin())
	require.NoError(s.t, s.sess.Establish(key))

	s.writeEncrypted(protocol.NewKeyExchange(username, protocol.KeyExchangeData{Step: protocol.StepComplete}))
}

func TestHandshake_EstablishesSession(t *testing.T) {
	serverSide, clientSide := net.Pipe()
	defer serverSide.Close()

	c := NewClient(clientSide, testConfig())
	defer clientSide.Close()

	srv := newScriptedServer(t, serverSide)
	done := make(chan struct{})
	go func() {
		defer close(done)
		srv.handshake("alice")
	}()

	require.NoError(t, c.Handshake("alice"))
	<-done
	assert.Equal(t, "alice", c.Username())
}

func TestHandshake_UsernameTaken(t *testing.T) {
	serverSide, clientSide := net.Pipe()
	defer serverSide.Close()

	c := NewClient(clientSide, testConfig())
	defer clientSide.Close()

	srv := newScriptedServer(t, serverSide)
	go func() {
		env, err := protocol.Decode(srv.readFrame())
		require.NoError(t, err)
		require.Equal(t, protocol.TypeConnect, env.Type)
		srv.writePlain(protocol.NewError(`Username "alice" is already taken`))
	}()

	err := c.Handshake("alice")
	assert.ErrorIs(t, err, common.ErrUsernameTaken)
}

func TestHandshake_AwaitsKeyAfterWelcome(t *testing.T) {
	serverSide, clientSide := net.Pipe()
	defer serverSide.Close()

	c := NewClient(clientSide, testConfig())
	defer clientSide.Close()

	srv := newScriptedServer(t, serverSide)
	go func() {
		env, err := protocol.Decode(srv.readFrame())
		require.NoError(t, err)
		require.Equal(t, protocol.TypeConnect, env.Type)
		srv.writePlain(protocol.NewSuccess("Welcome to the chat server, alice!"))
		// Out-of-order step instead of the public key.
		srv.writePlain(protocol.NewKeyExchange("alice", protocol.KeyExchangeData{Step: protocol.StepComplete}))
	}()

	err := c.Handshake("alice")
	require.ErrorIs(t, err, common.ErrHandshakeFailed)
	assert.Equal(t, cryptox.StateAwaitingPeerKey, c.sess.State(),
		"after the welcome the session must be waiting for the server key")
}

func TestStart_DeliversIncomingEnvelopes(t *testing.T) {
	serverSide, clientSide := net.Pipe()
	defer serverSide.Close()

	c := NewClient(clientSide, testConfig())
	defer clientSide.Close()

	srv := newScriptedServer(t, serverSide)
	go srv.handshake("bob")
	require.NoError(t, c.Handshake("bob"))

	received := make(chan *protocol.Envelope, 1)
	c.Start(func(env *protocol.Envelope) { received <- env })

	srv.writeEncrypted(protocol.NewPrivate("alice", "bob", "hi bob"))

	select {
	case env := <-received:
		assert.Equal(t, protocol.TypePrivate, env.Type)
		assert.Equal(t, "hi bob", env.Text)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for envelope")
	}

	c.running.Store(false)
	clientSide.Close()
}

func TestSendPrivate_IsEncryptedOnTheWire(t *testing.T) {
	serverSide, clientSide := net.Pipe()
	defer serverSide.Close()

	c := NewClient(clientSide, testConfig())
	defer clientSide.Close()

	srv := newScriptedServer(t, serverSide)
	go srv.handshake("alice")
	require.NoError(t, c.Handshake("alice"))

	go func() {
		require.NoError(t, c.SendPrivate("bob", "secret plans"))
	}()

	env := srv.readEncrypted()
	assert.Equal(t, protocol.TypePrivate, env.Type)
	assert.Equal(t, "bob", env.Receiver)
	assert.Equal(t, "secret plans", env.Text)
}
