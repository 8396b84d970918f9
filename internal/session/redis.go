package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisCommander interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisPersister grava sessões no Redis com TTL de inatividade renovado a cada escrita.
type RedisPersister struct {
	client  redisCommander
	idleTTL time.Duration
}

// NewRedisPersister cria o persister; idleTTL <= 0 mantém a chave sem expiração.
func NewRedisPersister(client *redis.Client, idleTTL time.Duration) *RedisPersister {
	return &RedisPersister{client: client, idleTTL: idleTTL}
}

func (p *RedisPersister) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := p.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return raw, err
}

func (p *RedisPersister) Set(ctx context.Context, key string, value []byte) error {
	ttl := p.idleTTL
	if ttl < 0 {
		ttl = 0
	}
	return p.client.Set(ctx, key, value, ttl).Err()
}

func (p *RedisPersister) Del(ctx context.Context, keys ...string) error {
	if err := p.client.Del(ctx, keys...).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

// MemoryPersister mantém sessões em memória do processo (CLI e testes).
type MemoryPersister struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryPersister cria persister vazio.
func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{data: make(map[string][]byte)}
}

func (p *MemoryPersister) Get(ctx context.Context, key string) ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	raw, ok := p.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(raw))
	copy(out, raw)
	return out, nil
}

func (p *MemoryPersister) Set(ctx context.Context, key string, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	stored := make([]byte, len(value))
	copy(stored, value)
	p.data[key] = stored
	return nil
}

func (p *MemoryPersister) Del(ctx context.Context, keys ...string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, key := range keys {
		delete(p.data, key)
	}
	return nil
}
