package query

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Brandon-Online01/w-f-sub001/internal/metrics"
)

// ErrUnsubscribed indica espera em assinatura já encerrada.
var ErrUnsubscribed = errors.New("query: assinatura encerrada")

// Options configura o cache.
type Options struct {
	Interval     time.Duration
	FetchTimeout time.Duration
}

// Cache mantém uma tarefa de polling por chave enquanto houver assinantes.
type Cache struct {
	interval     time.Duration
	fetchTimeout time.Duration
	logger       zerolog.Logger

	mu     sync.Mutex
	tasks  map[Key]*task
	states map[Key]State
}

type task struct {
	key    Key
	fetch  Fetcher
	subs   map[*Subscription]struct{}
	kick   chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
}

func New(opts Options) *Cache {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 10 * time.Second
	}
	return &Cache{
		interval:     opts.Interval,
		fetchTimeout: opts.FetchTimeout,
		logger:       log.With().Str("component", "query").Logger(),
		tasks:        make(map[Key]*task),
		states:       make(map[Key]State),
	}
}

// Interval devolve o intervalo de refetch em uso.
func (c *Cache) Interval() time.Duration { return c.interval }

// Subscribe registra um assinante para key. O primeiro assinante inicia o polling;
// os seguintes disparam um refetch imediato. Cancelar ctx equivale a Unsubscribe.
func (c *Cache) Subscribe(ctx context.Context, key Key, fetch Fetcher) (*Subscription, error) {
	if fetch == nil {
		return nil, ErrNoFetcher
	}

	sub := &Subscription{
		cache:   c,
		key:     key,
		updates: make(chan State, 1),
		done:    make(chan struct{}),
	}

	c.mu.Lock()
	t, ok := c.tasks[key]
	if !ok {
		taskCtx, cancel := context.WithCancel(context.Background())
		t = &task{
			key:    key,
			fetch:  fetch,
			subs:   make(map[*Subscription]struct{}),
			kick:   make(chan struct{}, 1),
			cancel: cancel,
			done:   make(chan struct{}),
		}
		c.tasks[key] = t
		metrics.QueryTasksActive.Inc()
		go c.run(taskCtx, t)
	} else {
		select {
		case t.kick <- struct{}{}:
		default:
		}
	}
	t.subs[sub] = struct{}{}

	current, seen := c.states[key]
	if !seen {
		current = State{Status: StatusLoading}
	}
	sub.push(current)
	c.mu.Unlock()

	if ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				sub.Unsubscribe()
			case <-sub.done:
			}
		}()
	}
	return sub, nil
}

// Get devolve o último estado conhecido da chave.
func (c *Cache) Get(key Key) (State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.states[key]
	return st, ok
}

// Active informa quantas tarefas de polling estão rodando.
func (c *Cache) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tasks)
}

// Forget encerra as tarefas de um dono e descarta os estados guardados dele.
// Assinaturas ainda abertas têm Updates fechado. Chamado em login e logout para
// que a nova sessão não herde buscas feitas com o token anterior.
func (c *Cache) Forget(owner string) {
	c.mu.Lock()
	var stopped []*task
	for key, t := range c.tasks {
		if key.Owner != owner {
			continue
		}
		delete(c.tasks, key)
		for sub := range t.subs {
			delete(t.subs, sub)
			close(sub.updates)
		}
		stopped = append(stopped, t)
	}
	for key := range c.states {
		if key.Owner == owner {
			delete(c.states, key)
		}
	}
	c.mu.Unlock()

	for _, t := range stopped {
		metrics.QueryTasksActive.Dec()
		t.cancel()
		<-t.done
	}
}

func (c *Cache) run(ctx context.Context, t *task) {
	defer close(t.done)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.fetch(ctx, t)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.fetch(ctx, t)
		case <-t.kick:
			c.fetch(ctx, t)
		}
	}
}

func (c *Cache) fetch(ctx context.Context, t *task) {
	fetchCtx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	data, err := t.fetch(fetchCtx)
	cancel()
	if ctx.Err() != nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// tarefa substituída por outra da mesma chave: resultado descartado
	if c.tasks[t.key] != t {
		return
	}

	next := State{UpdatedAt: time.Now()}
	switch {
	case err != nil:
		next.Status = StatusError
		next.Err = err
		next.Data = c.states[t.key].Data
		c.logger.Debug().Err(err).Str("key", t.key.String()).Msg("query: busca falhou")
	case IsEmpty(data):
		next.Status = StatusEmpty
	default:
		next.Status = StatusSuccess
		next.Data = data
	}
	metrics.QueryFetches.WithLabelValues(t.key.Resource, string(next.Status)).Inc()

	c.states[t.key] = next
	for sub := range t.subs {
		sub.push(next)
	}
}

func (c *Cache) release(sub *Subscription) {
	c.mu.Lock()
	t, ok := c.tasks[sub.key]
	if ok {
		// Forget já fechou esta assinatura; a tarefa atual da chave pode ser outra
		_, ok = t.subs[sub]
	}
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(t.subs, sub)
	close(sub.updates)
	if len(t.subs) > 0 {
		c.mu.Unlock()
		return
	}
	delete(c.tasks, sub.key)
	c.mu.Unlock()

	metrics.QueryTasksActive.Dec()
	t.cancel()
	<-t.done
}

// Subscription é o vínculo de uma tela com uma chave.
type Subscription struct {
	cache   *Cache
	key     Key
	updates chan State
	done    chan struct{}
	once    sync.Once
}

// Key devolve a chave assinada.
func (s *Subscription) Key() Key { return s.key }

// Updates entrega o estado mais recente; fecha após Unsubscribe.
func (s *Subscription) Updates() <-chan State { return s.updates }

// State devolve o último estado da chave.
func (s *Subscription) State() State {
	st, ok := s.cache.Get(s.key)
	if !ok {
		return State{Status: StatusLoading}
	}
	return st
}

// Settled espera o primeiro estado diferente de loading.
func (s *Subscription) Settled(ctx context.Context) (State, error) {
	for {
		select {
		case st, ok := <-s.updates:
			if !ok {
				return s.State(), ErrUnsubscribed
			}
			if st.Settled() {
				return st, nil
			}
		case <-ctx.Done():
			return State{Status: StatusLoading}, ctx.Err()
		}
	}
}

// Unsubscribe encerra a assinatura. Quando é a última da chave, o polling para
// antes do retorno.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.cache.release(s)
		close(s.done)
	})
}

// push é chamado com cache.mu travado.
func (s *Subscription) push(st State) {
	select {
	case <-s.updates:
	default:
	}
	select {
	case s.updates <- st:
	default:
	}
}
