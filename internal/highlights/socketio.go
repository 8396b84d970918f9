package highlights

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/zishang520/socket.io/clients/socket/v3"
	"github.com/zishang520/socket.io/v3/pkg/types"
)

// SocketIODialer conecta com o cliente Socket.IO v4 usando só o transporte websocket.
// A reconexão fica com o Stream; o cliente nunca tenta sozinho.
type SocketIODialer struct{}

func (SocketIODialer) Dial(ctx context.Context, target Target) (Conn, error) {
	u, err := url.Parse(target.Endpoint)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("highlights: endpoint inválido: %q", target.Endpoint)
	}
	namespace := normalizeNamespace(target.Namespace)

	opts := socket.DefaultOptions()
	opts.SetTransports(types.NewSet(socket.WebSocket))
	opts.SetForceNew(true)
	opts.SetMultiplex(false)
	opts.SetReconnection(false)
	opts.SetAutoConnect(false)
	if path := strings.TrimSuffix(u.Path, "/"); path != "" {
		opts.SetPath(path)
	}
	if target.Timeout > 0 {
		opts.SetTimeout(target.Timeout)
	}
	if target.Token != "" {
		opts.SetAuth(map[string]any{"token": target.Token})
	}

	client, err := socket.Connect(u.Scheme+"://"+u.Host+namespace, opts)
	if err != nil {
		return nil, err
	}

	c := &socketConn{
		client:    client,
		namespace: namespace,
		messages:  make(chan Message, 16),
		done:      make(chan struct{}),
	}
	c.listen()
	client.Connect()

	select {
	case <-ctx.Done():
		_ = c.Close()
		return nil, ctx.Err()
	default:
	}
	return c, nil
}

// socketConn traduz os eventos do cliente Socket.IO em Messages.
type socketConn struct {
	client    *socket.Socket
	namespace string
	messages  chan Message
	done      chan struct{}
	once      sync.Once
}

func (c *socketConn) listen() {
	_ = c.client.On("connect", func(...any) {
		c.deliver(Message{Kind: MessageConnect, Namespace: c.namespace})
	})
	_ = c.client.On("connect_error", func(args ...any) {
		c.deliver(Message{Kind: MessageConnectError, Namespace: c.namespace, Reason: reason(args)})
	})
	_ = c.client.On("disconnect", func(args ...any) {
		c.deliver(Message{Kind: MessageDisconnect, Namespace: c.namespace, Reason: reason(args)})
	})
	_ = c.client.On(EventHighlights, func(args ...any) {
		raw := make([]json.RawMessage, 0, len(args))
		for _, arg := range args {
			body, err := json.Marshal(arg)
			if err != nil {
				continue
			}
			raw = append(raw, body)
		}
		c.deliver(Message{Kind: MessageEvent, Namespace: c.namespace, Event: EventHighlights, Args: raw})
	})
}

// deliver bloqueia até o stream ler ou a conexão fechar.
func (c *socketConn) deliver(msg Message) {
	select {
	case c.messages <- msg:
	case <-c.done:
	}
}

func (c *socketConn) Messages() <-chan Message {
	return c.messages
}

// Close sai do namespace; sendo o único socket do manager, o transporte fecha junto.
func (c *socketConn) Close() error {
	c.once.Do(func() {
		close(c.done)
		c.client.Disconnect()
	})
	return nil
}

func reason(args []any) string {
	if len(args) == 0 {
		return ""
	}
	switch v := args[0].(type) {
	case string:
		return v
	case error:
		return v.Error()
	default:
		return fmt.Sprint(v)
	}
}
