package highlights

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// View é a mensagem enviada ao navegador a cada mudança de estado.
type View struct {
	Event string `json:"event"`
	State
	Derived *Derived `json:"derived,omitempty"`
}

// NewView anexa os percentuais calculados quando há snapshot.
func NewView(st State) View {
	v := View{Event: EventHighlights, State: st}
	if st.Snapshot != nil {
		d := Derive(*st.Snapshot)
		v.Derived = &d
	}
	return v
}

// RelayOptions configura o repasse do socket de destaques para o navegador.
type RelayOptions struct {
	Stream       Options
	CheckOrigin  func(r *http.Request) bool
	WriteTimeout time.Duration
}

// Relay abre um Stream por tela conectada e o encerra quando a tela sai.
type Relay struct {
	opts     RelayOptions
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

func NewRelay(opts RelayOptions) *Relay {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	return &Relay{
		opts: opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     opts.CheckOrigin,
		},
		logger: log.With().Str("component", "highlights_relay").Logger(),
	}
}

// Serve faz o upgrade e bloqueia até o navegador desconectar ou o contexto da
// requisição terminar. O Stream upstream é fechado uma única vez na saída.
func (r *Relay) Serve(w http.ResponseWriter, req *http.Request, token string) error {
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	opts := r.opts.Stream
	opts.Token = token
	stream := NewStream(opts)

	ctx, cancel := context.WithCancel(req.Context())
	defer cancel()

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		if err := stream.Run(ctx); err != nil {
			r.logger.Warn().Err(err).Msg("highlights: stream encerrado com erro")
		}
	}()

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// Close avisa o servidor e fecha a conexão upstream antes de Run ser cancelado
	finish := func() error {
		stream.Close()
		<-runDone
		return nil
	}

	if err := r.write(conn, stream.State()); err != nil {
		return finish()
	}

	running := runDone
	for {
		select {
		case <-gone:
			return finish()
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "tela encerrada"),
				time.Now().Add(time.Second))
			return finish()
		case st := <-stream.Updates():
			if err := r.write(conn, st); err != nil {
				return finish()
			}
		case <-running:
			// sem reconexão: a tela fica com o último snapshot até sair
			running = nil
		}
	}
}

func (r *Relay) write(conn *websocket.Conn, st State) error {
	_ = conn.SetWriteDeadline(time.Now().Add(r.opts.WriteTimeout))
	return conn.WriteJSON(NewView(st))
}
