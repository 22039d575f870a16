package tcp

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classchat-io/classchat/internal/cryptox"
	"github.com/classchat-io/classchat/internal/logging"
	"github.com/classchat-io/classchat/internal/protocol"
	"github.com/classchat-io/classchat/internal/server/models"
	"github.com/classchat-io/classchat/internal/server/router"
)

// memStore is the minimal in-memory persistence needed to drive a session.
type memStore struct {
	users   map[string]bool
	groups  map[string]models.Group
	offline []models.OfflineMessage
}

func newMemStore() *memStore {
	return &memStore{users: make(map[string]bool), groups: make(map[string]models.Group)}
}

func (s *memStore) TouchUser(_ context.Context, username string) error {
	s.users[username] = true
	return nil
}

func (s *memStore) UserExists(_ context.Context, username string) (bool, error) {
	return s.users[username], nil
}

func (s *memStore) AppendHistory(context.Context, *models.HistoryMessage) error { return nil }

func (s *memStore) Conversation(context.Context, string, string, int) ([]models.HistoryMessage, error) {
	return nil, nil
}

func (s *memStore) GroupHistory(context.Context, string, int) ([]models.HistoryMessage, error) {
	return nil, nil
}

func (s *memStore) EnqueueOffline(_ context.Context, m *models.OfflineMessage) error {
	s.offline = append(s.offline, *m)
	return nil
}

func (s *memStore) UndeliveredFor(_ context.Context, receiver string) ([]models.OfflineMessage, error) {
	var out []models.OfflineMessage
	for _, m := range s.offline {
		if m.Receiver == receiver && !m.Delivered {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *memStore) MarkDelivered(_ context.Context, receiver string) error {
	for i := range s.offline {
		if s.offline[i].Receiver == receiver {
			s.offline[i].Delivered = true
		}
	}
	return nil
}

func (s *memStore) CreateGroup(_ context.Context, name, creator string) error {
	s.groups[name] = models.Group{Name: name, Creator: creator}
	return nil
}

func (s *memStore) JoinGroup(context.Context, string, string) error { return nil }

func (s *memStore) GroupMembers(context.Context, string) ([]string, error) { return nil, nil }

func (s *memStore) GroupExists(_ context.Context, name string) (bool, error) {
	_, ok := s.groups[name]
	return ok, nil
}

func (s *memStore) ListGroups(_ context.Context) ([]models.Group, error) {
	var out []models.Group
	for _, g := range s.groups {
		out = append(out, g)
	}
	return out, nil
}

// testClient drives the client half of a net.Pipe connection.
type testClient struct {
	t    *testing.T
	conn net.Conn
	sess *cryptox.Session
	buf  []byte
}

func newTestClient(t *testing.T, conn net.Conn) *testClient {
	t.Helper()
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))
	return &testClient{t: t, conn: conn, sess: cryptox.NewSession(), buf: make([]byte, 64*1024)}
}

func (c *testClient) readFrame() []byte {
	c.t.Helper()
	n, err := c.conn.Read(c.buf)
	require.NoError(c.t, err)
	out := make([]byte, n)
	copy(out, c.buf[:n])
	return out
}

func (c *testClient) readPlain() *protocol.Envelope {
	c.t.Helper()
	env, err := protocol.Decode(c.readFrame())
	require.NoError(c.t, err)
	return env
}

func (c *testClient) readEncrypted() *protocol.Envelope {
	c.t.Helper()
	plaintext, err := c.sess.DecryptPayload(string(c.readFrame()))
	require.NoError(c.t, err)
	env, err := protocol.Decode(plaintext)
	require.NoError(c.t, err)
	return env
}

func (c *testClient) writePlain(env *protocol.Envelope) {
	c.t.Helper()
	frame, err := env.Encode()
	require.NoError(c.t, err)
	_, err = c.conn.Write(frame)
	require.NoError(c.t, err)
}

func (c *testClient) writeEncrypted(env *protocol.Envelope) {
	c.t.Helper()
	frame, err := env.Encode()
	require.NoError(c.t, err)
	enc, err := c.sess.EncryptPayload(frame)
	require.NoError(c.t, err)
	_, err = c.conn.Write([]byte(enc))
	require.NoError(c.t, err)
}

// handshake runs the client half of the connect sequence.
func (c *testClient) handshake(username string) {
	c.t.Helper()

	c.writePlain(protocol.NewConnect(username))

	welcome := c.readPlain()
	require.Equal(c.t, protocol.TypeSuccess, welcome.Type)

	kxEnv := c.readPlain()
	require.Equal(c.t, protocol.TypeKeyExchange, kxEnv.Type)
	kx, err := kxEnv.KeyExchangeData()
	require.NoError(c.t, err)
	require.Equal(c.t, protocol.StepServerPublicKey, kx.Step)

	pub, err := cryptox.ParsePublicKeyPEM(kx.PublicKey)
	require.NoError(c.t, err)
	key, err := cryptox.GenerateSessionKey()
	require.NoError(c.t, err)
	encKey, err := cryptox.EncryptSessionKey(pub, key)
	require.NoError(c.t, err)

	require.NoError(c.t, c.sess.Begin())
	require.NoError(c.t, c.sess.Establish(key))

	c.writePlain(protocol.NewClientKeyExchange(username, protocol.KeyExchangeData{
		Step:                protocol.StepClientSessionKey,
		EncryptedSessionKey: encKey,
	}))

	complete := c.readEncrypted()
	require.Equal(c.t, protocol.TypeKeyExchange, complete.Type)
	done, err := complete.KeyExchangeData()
	require.NoError(c.t, err)
	require.Equal(c.t, protocol.StepComplete, done.Step)
}

func startSession(t *testing.T, r *router.Router) (*testClient, chan struct{}) {
	t.Helper()
	serverSide, clientSide := net.Pipe()

	keys, err := cryptox.GenerateServerKeys()
	require.NoError(t, err)
	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

	done := make(chan struct{})
	go func() {
		defer close(done)
		sess := newSession(serverSide, r, keys, log, 64*1024, 1<<20)
		sess.run(context.Background())
	}()

	return newTestClient(t, clientSide), done
}

func newSessionRouter(store router.Store) *router.Router {
	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	return router.New(store, log, 20, time.Millisecond)
}

func TestSession_HandshakeAndDispatch(t *testing.T) {
	r := newSessionRouter(newMemStore())
	client, done := startSession(t, r)
	defer client.conn.Close()

	client.handshake("alice")
	assert.Equal(t, []string{"alice"}, r.LiveUsers())

	client.writeEncrypted(protocol.NewListUsers("alice"))
	resp := client.readEncrypted()
	require.Equal(t, protocol.TypeListUsers, resp.Type)
	users, err := resp.UserListData()
	require.NoError(t, err)
	require.Len(t, users.Users, 1)
	assert.Equal(t, "alice", users.Users[0].Username)

	client.writeEncrypted(protocol.NewDisconnect("alice"))
	<-done
	assert.Empty(t, r.LiveUsers())
}

func TestSession_CreateGroupRoundTrip(t *testing.T) {
	store := newMemStore()
	r := newSessionRouter(store)
	client, done := startSession(t, r)
	defer client.conn.Close()

	client.handshake("alice")

	client.writeEncrypted(protocol.NewCreateGroup("alice", "cs101"))
	resp := client.readEncrypted()
	assert.Equal(t, protocol.TypeSuccess, resp.Type)
	assert.Contains(t, store.groups, "cs101")

	client.writeEncrypted(protocol.NewDisconnect("alice"))
	<-done
}

func TestSession_UndecryptableFrameIsDropped(t *testing.T) {
	r := newSessionRouter(newMemStore())
	client, done := startSession(t, r)
	defer client.conn.Close()

	client.handshake("alice")

	// Garbage is dropped without ending the session.
	_, err := client.conn.Write([]byte("not base64 ciphertext!!"))
	require.NoError(t, err)

	client.writeEncrypted(protocol.NewListUsers("alice"))
	resp := client.readEncrypted()
	assert.Equal(t, protocol.TypeListUsers, resp.Type)

	client.writeEncrypted(protocol.NewDisconnect("alice"))
	<-done
}

func TestSession_MidHandshakePeerIsNotRoutable(t *testing.T) {
	store := newMemStore()
	r := newSessionRouter(store)
	client, done := startSession(t, r)
	defer client.conn.Close()

	client.writePlain(protocol.NewConnect("bob"))
	require.Equal(t, protocol.TypeSuccess, client.readPlain().Type)

	kxEnv := client.readPlain()
	require.Equal(t, protocol.TypeKeyExchange, kxEnv.Type)
	kx, err := kxEnv.KeyExchangeData()
	require.NoError(t, err)

	// The key exchange is still open; a message routed to bob must be
	// queued, never written to the unkeyed socket.
	require.NoError(t, r.RoutePrivate(context.Background(), "alice", "bob", "launch code 0000"))

	require.NoError(t, client.conn.SetReadDeadline(time.Now().Add(50*time.Millisecond)))
	_, rerr := client.conn.Read(make([]byte, 1024))
	require.Error(t, rerr, "nothing may reach the socket before the key exchange completes")
	require.NoError(t, client.conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	require.Len(t, store.offline, 1)
	assert.Equal(t, "bob", store.offline[0].Receiver)
	assert.Empty(t, r.LiveUsers())

	// Finish the handshake; the queued message arrives in the encrypted flush.
	pub, err := cryptox.ParsePublicKeyPEM(kx.PublicKey)
	require.NoError(t, err)
	key, err := cryptox.GenerateSessionKey()
	require.NoError(t, err)
	encKey, err := cryptox.EncryptSessionKey(pub, key)
	require.NoError(t, err)
	require.NoError(t, client.sess.Begin())
	require.NoError(t, client.sess.Establish(key))
	client.writePlain(protocol.NewClientKeyExchange("bob", protocol.KeyExchangeData{
		Step:                protocol.StepClientSessionKey,
		EncryptedSessionKey: encKey,
	}))

	require.Equal(t, protocol.TypeKeyExchange, client.readEncrypted().Type)
	require.Equal(t, protocol.TypeOffline, client.readEncrypted().Type)

	msg := client.readEncrypted()
	require.Equal(t, protocol.TypePrivate, msg.Type)
	assert.Equal(t, "launch code 0000", msg.Text)

	client.writeEncrypted(protocol.NewDisconnect("bob"))
	<-done
}

func TestSession_GarbageBeforeConnectIsFatal(t *testing.T) {
	r := newSessionRouter(newMemStore())
	client, done := startSession(t, r)
	defer client.conn.Close()

	_, err := client.conn.Write([]byte("hello"))
	require.NoError(t, err)

	<-done
	assert.Empty(t, r.LiveUsers())
}

func TestSession_DuplicateUsernameIsRejected(t *testing.T) {
	r := newSessionRouter(newMemStore())

	first, _ := startSession(t, r)
	defer first.conn.Close()
	first.handshake("alice")

	second, done := startSession(t, r)
	defer second.conn.Close()

	second.writePlain(protocol.NewConnect("alice"))
	resp := second.readPlain()
	assert.Equal(t, protocol.TypeError, resp.Type)

	<-done
	assert.Equal(t, []string{"alice"}, r.LiveUsers())
}
