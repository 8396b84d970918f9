package highlights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Brandon-Online01/w-f-sub001/internal/metrics"
)

// EventHighlights é o único canal consumido do socket.
const EventHighlights = "highlights"

var (
	ErrClosed           = errors.New("highlights: stream encerrado")
	ErrServerClosed     = errors.New("highlights: servidor encerrou a conexão")
	ErrConnectRejected  = errors.New("highlights: conexão recusada pelo servidor")
	ErrHandshakeTimeout = errors.New("highlights: namespace não confirmou a conexão a tempo")
)

// MessageKind classifica o que a conexão entrega ao stream.
type MessageKind int

const (
	MessageConnect MessageKind = iota
	MessageDisconnect
	MessageConnectError
	MessageEvent
)

func (k MessageKind) String() string {
	switch k {
	case MessageConnect:
		return "connect"
	case MessageDisconnect:
		return "disconnect"
	case MessageConnectError:
		return "connect_error"
	case MessageEvent:
		return "event"
	default:
		return "unknown"
	}
}

// Message é um pacote Socket.IO já decodificado. Event e Args só existem em MessageEvent.
type Message struct {
	Kind      MessageKind
	Namespace string
	Event     string
	Args      []json.RawMessage
	Reason    string
}

// Target é o que o Dialer recebe para abrir uma conexão.
type Target struct {
	Endpoint  string
	Namespace string
	Token     string
	Timeout   time.Duration
}

// Conn é uma conexão Socket.IO aberta. Close sai do namespace e libera o transporte.
type Conn interface {
	Messages() <-chan Message
	Close() error
}

// Dialer abre a conexão com o servidor de socket.
type Dialer interface {
	Dial(ctx context.Context, target Target) (Conn, error)
}

// EndpointURL normaliza a URL base do socket: esquema http(s) e caminho do Engine.IO.
func EndpointURL(base string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(base))
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("highlights: url do socket inválida: %q", base)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "http"
	case "https", "wss":
		u.Scheme = "https"
	default:
		return "", fmt.Errorf("highlights: esquema não suportado: %q", u.Scheme)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/socket.io/"
	}
	u.RawQuery = ""
	return u.String(), nil
}

func normalizeNamespace(ns string) string {
	if ns == "" {
		return "/"
	}
	if !strings.HasPrefix(ns, "/") {
		return "/" + ns
	}
	return ns
}

// Options configura um Stream.
type Options struct {
	Endpoint         string
	Token            string
	Namespace        string
	HandshakeTimeout time.Duration
	Reconnect        bool
	MaxRetries       int
	BaseBackoff      time.Duration
	MaxBackoff       time.Duration
	Dialer           Dialer
}

// State é o que as telas consomem. Snapshot nil significa que nada chegou ainda.
type State struct {
	Snapshot   *Snapshot `json:"snapshot"`
	Loading    bool      `json:"loading"`
	Connecting bool      `json:"connecting"`
	Connected  bool      `json:"connected"`
	Stale      bool      `json:"stale"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// HasData separa "nunca recebeu" (skeleton) de "tem dados, talvez antigos".
func (s State) HasData() bool {
	return s.Snapshot != nil
}

// Stream mantém uma conexão com o canal de destaques para uma tela.
type Stream struct {
	opts   Options
	logger zerolog.Logger

	mu    sync.RWMutex
	state State
	conn  *onceConn

	updates   chan State
	closed    chan struct{}
	closeOnce sync.Once
}

// NewStream prepara o stream sem conectar; a conexão começa em Run.
func NewStream(opts Options) *Stream {
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = time.Second
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 30 * time.Second
	}
	if opts.Dialer == nil {
		opts.Dialer = SocketIODialer{}
	}
	opts.Namespace = normalizeNamespace(opts.Namespace)
	return &Stream{
		opts:    opts,
		logger:  log.With().Str("component", "highlights").Logger(),
		state:   State{Loading: true, Connecting: true},
		updates: make(chan State, 1),
		closed:  make(chan struct{}),
	}
}

// State devolve uma cópia do estado atual.
func (s *Stream) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Updates entrega sempre o estado mais recente; estados intermediários podem ser descartados.
func (s *Stream) Updates() <-chan State {
	return s.updates
}

// Done fecha quando Close é chamado.
func (s *Stream) Done() <-chan struct{} {
	return s.closed
}

// Close encerra o stream. Chamadas repetidas não têm efeito.
func (s *Stream) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		conn := s.conn
		s.conn = nil
		close(s.closed)
		s.mu.Unlock()

		if conn != nil {
			_ = conn.Close()
		}
	})
}

func (s *Stream) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// Run conecta e processa mensagens até Close, cancelamento do ctx ou falha sem reconexão.
func (s *Stream) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.closed:
			cancel()
		case <-ctx.Done():
		}
	}()

	attempt := 0
	for {
		connected, err := s.session(ctx)
		if ctx.Err() != nil || s.isClosed() {
			s.markDisconnected()
			return nil
		}
		s.markDisconnected()
		if err != nil {
			s.logger.Warn().Err(err).Msg("highlights: conexão perdida")
		}

		if connected {
			attempt = 0
		}
		if !s.opts.Reconnect || (s.opts.MaxRetries > 0 && attempt >= s.opts.MaxRetries) {
			if err == nil {
				err = ErrServerClosed
			}
			return err
		}

		wait := s.backoff(attempt)
		attempt++
		s.logger.Info().Int("attempt", attempt).Dur("wait", wait).Msg("highlights: reconectando")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
		s.update(func(st *State) { st.Connecting = true })
	}
}

func (s *Stream) backoff(attempt int) time.Duration {
	wait := s.opts.BaseBackoff
	for i := 0; i < attempt && wait < s.opts.MaxBackoff; i++ {
		wait *= 2
	}
	if wait > s.opts.MaxBackoff {
		wait = s.opts.MaxBackoff
	}
	return wait
}

// session cuida de uma conexão completa. connected indica se o namespace chegou a aceitar.
func (s *Stream) session(ctx context.Context) (connected bool, err error) {
	dialCtx, cancel := context.WithTimeout(ctx, s.opts.HandshakeTimeout)
	raw, err := s.opts.Dialer.Dial(dialCtx, Target{
		Endpoint:  s.opts.Endpoint,
		Namespace: s.opts.Namespace,
		Token:     s.opts.Token,
		Timeout:   s.opts.HandshakeTimeout,
	})
	cancel()
	if err != nil {
		return false, fmt.Errorf("conectar: %w", err)
	}

	conn := &onceConn{Conn: raw}
	if !s.attach(conn) {
		_ = conn.Close()
		return false, ErrClosed
	}
	defer s.detach(conn)

	metrics.StreamConnections.Inc()
	defer metrics.StreamConnections.Dec()

	handshake := time.NewTimer(s.opts.HandshakeTimeout)
	defer handshake.Stop()

	for {
		select {
		case <-ctx.Done():
			return connected, ctx.Err()
		case <-handshake.C:
			if !connected {
				return false, ErrHandshakeTimeout
			}
		case msg, ok := <-conn.Messages():
			if !ok {
				return connected, ErrServerClosed
			}
			if normalizeNamespace(msg.Namespace) != s.opts.Namespace {
				s.logger.Debug().Str("namespace", msg.Namespace).Msg("highlights: pacote de outro namespace ignorado")
				continue
			}
			metrics.StreamMessages.WithLabelValues(msg.Kind.String()).Inc()

			switch msg.Kind {
			case MessageConnect:
				connected = true
				s.update(func(st *State) {
					st.Connecting = false
					st.Connected = true
				})
			case MessageEvent:
				if msg.Event == EventHighlights {
					s.handleHighlights(msg.Args)
				}
			case MessageConnectError:
				return connected, fmt.Errorf("%w: %s", ErrConnectRejected, msg.Reason)
			case MessageDisconnect:
				if msg.Reason == "" {
					return connected, ErrServerClosed
				}
				return connected, fmt.Errorf("%w: %s", ErrServerClosed, msg.Reason)
			}
		}
	}
}

// handleHighlights substitui o snapshot inteiro; mensagens sem data mantêm o anterior.
func (s *Stream) handleHighlights(args []json.RawMessage) {
	if len(args) == 0 {
		return
	}
	var msg struct {
		Data *Snapshot `json:"data"`
	}
	if err := json.Unmarshal(args[0], &msg); err != nil || msg.Data == nil {
		s.logger.Debug().Err(err).Msg("highlights: mensagem sem data")
		return
	}
	snap := *msg.Data
	s.update(func(st *State) {
		st.Snapshot = &snap
		st.Loading = false
		st.Stale = false
		st.UpdatedAt = time.Now()
	})
}

func (s *Stream) markDisconnected() {
	s.update(func(st *State) {
		st.Loading = false
		st.Connecting = false
		st.Connected = false
		st.Stale = st.Snapshot != nil
	})
}

func (s *Stream) attach(conn *onceConn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isClosed() {
		return false
	}
	s.conn = conn
	return true
}

func (s *Stream) detach(conn *onceConn) {
	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	s.mu.Unlock()
	_ = conn.Close()
}

func (s *Stream) update(fn func(*State)) {
	s.mu.Lock()
	fn(&s.state)
	st := s.state
	s.mu.Unlock()

	select {
	case <-s.updates:
	default:
	}
	select {
	case s.updates <- st:
	default:
	}
}

// onceConn garante um único Close na conexão subjacente.
type onceConn struct {
	Conn
	once sync.Once
	err  error
}

func (c *onceConn) Close() error {
	c.once.Do(func() {
		c.err = c.Conn.Close()
	})
	return c.err
}
