package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	// ErrNotFound indica chave ausente no armazenamento.
	ErrNotFound = errors.New("sessão: registro não encontrado")
	// ErrFactoryUnresolved indica que não há fábrica selecionada nem padrão do usuário.
	ErrFactoryUnresolved = errors.New("sessão: fábrica não definida")
	// ErrMissingID indica requisição sem identificador de sessão.
	ErrMissingID = errors.New("sessão: id ausente")
)

// Persister guarda bytes por chave; implementações devem expirar com a sessão do navegador.
type Persister interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Del(ctx context.Context, keys ...string) error
}

// Store concentra leitura e mutação das sessões persistidas.
type Store struct {
	persister Persister

	mu       sync.Mutex
	watchers map[string]*generation
}

// generation é a credencial vigente de uma sessão, vista pelas telas abertas com ela.
type generation struct {
	revoked chan struct{}
	refs    int
}

// NewStore cria o store sobre o persister informado.
func NewStore(p Persister) *Store {
	return &Store{persister: p, watchers: make(map[string]*generation)}
}

// Watch devolve um canal que fecha na próxima troca de credencial da sessão
// (login ou logout). release deve ser chamado quando a tela fechar.
func (s *Store) Watch(id string) (revoked <-chan struct{}, release func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.watchers[id]
	if !ok {
		g = &generation{revoked: make(chan struct{})}
		s.watchers[id] = g
	}
	g.refs++

	var once sync.Once
	return g.revoked, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			g.refs--
			if g.refs == 0 && s.watchers[id] == g {
				delete(s.watchers, id)
			}
		})
	}
}

func (s *Store) revoke(id string) {
	s.mu.Lock()
	g, ok := s.watchers[id]
	delete(s.watchers, id)
	s.mu.Unlock()
	if ok {
		close(g.revoked)
	}
}

// SessionKey monta a chave da sessão.
func SessionKey(id string) string {
	return "sessao:" + id
}

// FactoryKey monta a chave do seletor de fábrica.
func FactoryKey(id string) string {
	return "fabrica:" + id
}

// Load devolve a sessão persistida ou Initial quando não existe.
func (s *Store) Load(ctx context.Context, id string) (Session, error) {
	if id == "" {
		return Initial(), ErrMissingID
	}
	raw, err := s.persister.Get(ctx, SessionKey(id))
	if errors.Is(err, ErrNotFound) {
		return Initial(), nil
	}
	if err != nil {
		return Initial(), fmt.Errorf("carregar sessão: %w", err)
	}

	var out Session
	if err := json.Unmarshal(raw, &out); err != nil {
		return Initial(), fmt.Errorf("decodificar sessão: %w", err)
	}
	// registros antigos ou corrompidos não podem quebrar a invariante
	if out.Status != StatusAuthenticated || out.Token == nil {
		out.Status = StatusUnauthenticated
	}
	return out, nil
}

// Dispatch aplica a ação e grava o resultado antes de retornar.
func (s *Store) Dispatch(ctx context.Context, id string, action Action) (Session, error) {
	current, err := s.Load(ctx, id)
	if err != nil {
		return current, err
	}

	next := Reduce(current, action)
	raw, err := json.Marshal(next)
	if err != nil {
		return current, fmt.Errorf("codificar sessão: %w", err)
	}
	if err := s.persister.Set(ctx, SessionKey(id), raw); err != nil {
		return current, fmt.Errorf("salvar sessão: %w", err)
	}
	s.revoke(id)
	return next, nil
}

// SignIn substitui usuário, token, status e mensagem de uma vez.
func (s *Store) SignIn(ctx context.Context, id string, data SignInData) (Session, error) {
	return s.Dispatch(ctx, id, SignIn(data))
}

// SignOut limpa a sessão e a seleção de fábrica.
func (s *Store) SignOut(ctx context.Context, id string) (Session, error) {
	next, err := s.Dispatch(ctx, id, SignOut())
	if err != nil {
		return next, err
	}
	if err := s.persister.Del(ctx, FactoryKey(id)); err != nil && !errors.Is(err, ErrNotFound) {
		return next, fmt.Errorf("limpar fábrica: %w", err)
	}
	return next, nil
}

// SelectFactory grava a fábrica escolhida pelo usuário.
func (s *Store) SelectFactory(ctx context.Context, id, factoryID string) error {
	if id == "" {
		return ErrMissingID
	}
	factoryID = strings.TrimSpace(factoryID)
	if factoryID == "" {
		return s.persister.Del(ctx, FactoryKey(id))
	}
	if err := s.persister.Set(ctx, FactoryKey(id), []byte(factoryID)); err != nil {
		return fmt.Errorf("salvar fábrica: %w", err)
	}
	return nil
}

// Factory resolve a fábrica ativa: seleção explícita, senão padrão do usuário.
func (s *Store) Factory(ctx context.Context, id string, user *User) (string, error) {
	if id != "" {
		raw, err := s.persister.Get(ctx, FactoryKey(id))
		switch {
		case err == nil && len(raw) > 0:
			return string(raw), nil
		case err != nil && !errors.Is(err, ErrNotFound):
			return "", fmt.Errorf("carregar fábrica: %w", err)
		}
	}
	if user != nil && user.FactoryReferenceID != nil && *user.FactoryReferenceID != "" {
		return *user.FactoryReferenceID, nil
	}
	return "", ErrFactoryUnresolved
}
