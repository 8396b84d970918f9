package highlights

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var connected = Message{Kind: MessageConnect}

type fakeConn struct {
	in       chan Message
	hangOnce sync.Once
	closes   int32
}

func newFakeConn() *fakeConn {
	return &fakeConn{in: make(chan Message)}
}

// push só retorna quando o stream recebeu a mensagem; a seguinte garante que esta foi tratada.
func (c *fakeConn) push(t *testing.T, msg Message) {
	t.Helper()
	select {
	case c.in <- msg:
	case <-time.After(2 * time.Second):
		t.Fatalf("stream did not read %s", msg.Kind)
	}
}

func (c *fakeConn) hangUp() {
	c.hangOnce.Do(func() { close(c.in) })
}

func (c *fakeConn) Messages() <-chan Message { return c.in }

func (c *fakeConn) Close() error {
	atomic.AddInt32(&c.closes, 1)
	return nil
}

func (c *fakeConn) Closes() int { return int(atomic.LoadInt32(&c.closes)) }

type fakeDialer struct {
	mu     sync.Mutex
	conns  []*fakeConn
	dials  int
	target Target
}

func (d *fakeDialer) Dial(_ context.Context, target Target) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.target = target
	if d.dials >= len(d.conns) {
		d.dials++
		return nil, errors.New("fake: sem conexão disponível")
	}
	c := d.conns[d.dials]
	d.dials++
	return c, nil
}

func (d *fakeDialer) Target() Target {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.target
}

func (d *fakeDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func startStream(t *testing.T, opts Options) (*Stream, <-chan error) {
	t.Helper()
	s := NewStream(opts)
	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()
	return s, done
}

func waitRun(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatalf("stream did not stop")
		return nil
	}
}

func highlightsMsg(t *testing.T, snap any) Message {
	t.Helper()
	body, err := json.Marshal(map[string]any{"data": snap})
	require.NoError(t, err)
	return Message{Kind: MessageEvent, Event: EventHighlights, Args: []json.RawMessage{body}}
}

func TestStreamConnectsWithTokenAndReplacesSnapshot(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{conns: []*fakeConn{conn}}
	s, done := startStream(t, Options{Endpoint: "http://socket/socket.io/", Token: "abc", Dialer: dialer})
	defer func() {
		s.Close()
		waitRun(t, done)
	}()

	conn.push(t, connected)
	require.Eventually(t, func() bool { return s.State().Connected }, time.Second, 5*time.Millisecond)
	assert.Equal(t, Target{Endpoint: "http://socket/socket.io/", Namespace: "/", Token: "abc", Timeout: 10 * time.Second}, dialer.Target())
	assert.False(t, s.State().HasData())
	assert.True(t, s.State().Loading)

	conn.push(t, highlightsMsg(t, Snapshot{ActiveReporters: 3, TotalReporters: 4, MachinesNotInUse: 2}))
	require.Eventually(t, func() bool { return s.State().HasData() }, time.Second, 5*time.Millisecond)
	assert.False(t, s.State().Loading)

	// sem merge: campos ausentes na nova mensagem voltam a zero
	conn.push(t, highlightsMsg(t, map[string]int{"totalReporters": 9}))
	require.Eventually(t, func() bool { return s.State().Snapshot.TotalReporters == 9 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, Snapshot{TotalReporters: 9}, *s.State().Snapshot)
}

func TestStreamIgnoresHighlightsWithoutData(t *testing.T) {
	conn := newFakeConn()
	s, done := startStream(t, Options{Endpoint: "http://socket", Dialer: &fakeDialer{conns: []*fakeConn{conn}}})
	defer func() {
		s.Close()
		waitRun(t, done)
	}()

	conn.push(t, connected)
	conn.push(t, highlightsMsg(t, Snapshot{TotalReporters: 5}))
	conn.push(t, Message{Kind: MessageEvent, Event: EventHighlights, Args: []json.RawMessage{json.RawMessage(`{}`)}})
	conn.push(t, Message{Kind: MessageEvent, Event: EventHighlights})
	conn.push(t, Message{Kind: MessageEvent, Event: "outro", Args: []json.RawMessage{json.RawMessage(`{"data":{"totalReporters":1}}`)}})
	conn.push(t, connected)

	assert.Equal(t, 5, s.State().Snapshot.TotalReporters)
}

func TestStreamIgnoresOtherNamespaces(t *testing.T) {
	conn := newFakeConn()
	s, done := startStream(t, Options{Endpoint: "http://socket", Namespace: "fabrica", Dialer: &fakeDialer{conns: []*fakeConn{conn}}})
	defer func() {
		s.Close()
		waitRun(t, done)
	}()

	conn.push(t, Message{Kind: MessageConnect, Namespace: "/outro"})
	assert.False(t, s.State().Connected)

	own := highlightsMsg(t, Snapshot{TotalReporters: 5})
	own.Namespace = "/fabrica"
	foreign := highlightsMsg(t, Snapshot{TotalReporters: 1})
	foreign.Namespace = "/outro"

	conn.push(t, Message{Kind: MessageConnect, Namespace: "/fabrica"})
	conn.push(t, own)
	conn.push(t, foreign)
	conn.push(t, Message{Kind: MessageDisconnect, Namespace: "/outro", Reason: "io server disconnect"})
	conn.push(t, Message{Kind: MessageConnect, Namespace: "/fabrica"})

	st := s.State()
	assert.True(t, st.Connected)
	require.NotNil(t, st.Snapshot)
	assert.Equal(t, 5, st.Snapshot.TotalReporters)
	select {
	case err := <-done:
		t.Fatalf("stream stopped on a foreign namespace packet: %v", err)
	default:
	}
}

func TestStreamDisconnectKeepsLastSnapshot(t *testing.T) {
	conn := newFakeConn()
	s, done := startStream(t, Options{Endpoint: "http://socket", Dialer: &fakeDialer{conns: []*fakeConn{conn}}})

	conn.push(t, connected)
	conn.push(t, highlightsMsg(t, Snapshot{ActiveReporters: 2, TotalReporters: 2}))
	conn.push(t, Message{Kind: MessageDisconnect, Reason: "transport close"})

	err := waitRun(t, done)
	require.ErrorIs(t, err, ErrServerClosed)

	st := s.State()
	require.NotNil(t, st.Snapshot)
	assert.Equal(t, 2, st.Snapshot.ActiveReporters)
	assert.False(t, st.Loading)
	assert.False(t, st.Connected)
	assert.True(t, st.Stale)
	s.Close()
}

func TestStreamErrorBeforeDataClearsLoading(t *testing.T) {
	s, done := startStream(t, Options{Endpoint: "http://socket", Dialer: &fakeDialer{}})
	require.Error(t, waitRun(t, done))

	st := s.State()
	assert.False(t, st.Loading)
	assert.False(t, st.HasData())
	assert.False(t, st.Stale)
}

func TestStreamHandshakeTimeout(t *testing.T) {
	conn := newFakeConn()
	s, done := startStream(t, Options{
		Endpoint:         "http://socket",
		HandshakeTimeout: 20 * time.Millisecond,
		Dialer:           &fakeDialer{conns: []*fakeConn{conn}},
	})
	defer s.Close()

	require.ErrorIs(t, waitRun(t, done), ErrHandshakeTimeout)
	assert.Equal(t, 1, conn.Closes())
}

func TestStreamConnectErrorIsReported(t *testing.T) {
	conn := newFakeConn()
	s, done := startStream(t, Options{Endpoint: "http://socket", Dialer: &fakeDialer{conns: []*fakeConn{conn}}})

	conn.push(t, Message{Kind: MessageConnectError, Reason: "not authorized"})
	err := waitRun(t, done)
	require.ErrorIs(t, err, ErrConnectRejected)
	assert.Contains(t, err.Error(), "not authorized")
	assert.Equal(t, 1, conn.Closes())
	s.Close()
	assert.Equal(t, 1, conn.Closes())
}

func TestStreamCloseDisconnectsExactlyOnce(t *testing.T) {
	conn := newFakeConn()
	s, done := startStream(t, Options{Endpoint: "http://socket", Dialer: &fakeDialer{conns: []*fakeConn{conn}}})
	conn.push(t, connected)
	require.Eventually(t, func() bool { return s.State().Connected }, time.Second, 5*time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Close()
		}()
	}
	wg.Wait()

	require.NoError(t, waitRun(t, done))
	assert.Equal(t, 1, conn.Closes())
	assert.False(t, s.State().Stale)
}

func TestStreamReconnectsWithBackoffWhenEnabled(t *testing.T) {
	first := newFakeConn()
	second := newFakeConn()
	dialer := &fakeDialer{conns: []*fakeConn{first, second}}
	s, done := startStream(t, Options{
		Endpoint:    "http://socket",
		Dialer:      dialer,
		Reconnect:   true,
		MaxRetries:  3,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  4 * time.Millisecond,
	})

	first.push(t, connected)
	first.push(t, highlightsMsg(t, Snapshot{TotalReporters: 7}))
	require.Eventually(t, func() bool { return s.State().HasData() }, time.Second, 5*time.Millisecond)
	first.hangUp()

	second.push(t, connected)
	require.Eventually(t, func() bool { return dialer.Dials() == 2 && s.State().Connected }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 7, s.State().Snapshot.TotalReporters)

	s.Close()
	require.NoError(t, waitRun(t, done))
	assert.Equal(t, 1, first.Closes())
	assert.Equal(t, 1, second.Closes())
}

func TestStreamGivesUpAfterMaxRetries(t *testing.T) {
	dialer := &fakeDialer{}
	s, done := startStream(t, Options{
		Endpoint:    "http://socket",
		Dialer:      dialer,
		Reconnect:   true,
		MaxRetries:  2,
		BaseBackoff: time.Millisecond,
	})
	defer s.Close()

	require.Error(t, waitRun(t, done))
	assert.Equal(t, 3, dialer.Dials())
}

func TestBackoffIsCapped(t *testing.T) {
	s := NewStream(Options{BaseBackoff: time.Second, MaxBackoff: 30 * time.Second})
	assert.Equal(t, time.Second, s.backoff(0))
	assert.Equal(t, 8*time.Second, s.backoff(3))
	assert.Equal(t, 30*time.Second, s.backoff(10))
}

func TestEndpointURLNormalizesSchemeAndPath(t *testing.T) {
	got, err := EndpointURL("https://api.fabrica.local")
	require.NoError(t, err)
	assert.Equal(t, "https://api.fabrica.local/socket.io/", got)

	got, err = EndpointURL("ws://localhost:4000/realtime/?EIO=3")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:4000/realtime/", got)

	_, err = EndpointURL("ftp://x")
	assert.Error(t, err)
}

// engineServer responde o handshake Engine.IO v4 e repassa o que o cliente envia.
func engineServer(t *testing.T, received chan<- string, events ...string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("transport") != "websocket" || r.URL.Query().Get("EIO") != "4" {
			http.Error(w, "transport", http.StatusBadRequest)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_ = conn.WriteMessage(websocket.TextMessage, []byte(`0{"sid":"eio-1","upgrades":[],"pingInterval":25000,"pingTimeout":20000,"maxPayload":1000000}`))
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			text := string(msg)
			received <- text
			if strings.HasPrefix(text, "40") {
				_ = conn.WriteMessage(websocket.TextMessage, []byte(`40{"sid":"sio-1"}`))
				for _, ev := range events {
					_ = conn.WriteMessage(websocket.TextMessage, []byte(ev))
				}
			}
		}
	}))
}

func TestSocketIODialerStreamsHighlights(t *testing.T) {
	received := make(chan string, 16)
	srv := engineServer(t, received, `42["highlights",{"data":{"activeReporters":1,"totalReporters":4}}]`)
	defer srv.Close()

	endpoint, err := EndpointURL(srv.URL)
	require.NoError(t, err)
	s, done := startStream(t, Options{Endpoint: endpoint, Token: "abc", HandshakeTimeout: 2 * time.Second})

	select {
	case msg := <-received:
		assert.True(t, strings.HasPrefix(msg, "40"))
		assert.Contains(t, msg, `"token":"abc"`)
	case <-time.After(3 * time.Second):
		t.Fatalf("client never sent the namespace connect")
	}

	require.Eventually(t, func() bool { return s.State().HasData() }, 3*time.Second, 10*time.Millisecond)
	assert.True(t, s.State().Connected)
	assert.Equal(t, 4, s.State().Snapshot.TotalReporters)

	s.Close()
	require.NoError(t, waitRun(t, done))
}
