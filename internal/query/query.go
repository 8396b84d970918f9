package query

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"time"
)

// DefaultInterval é o intervalo de refetch dos resumos do dashboard.
const DefaultInterval = 5 * time.Second

// ErrNoFetcher indica assinatura sem função de busca.
var ErrNoFetcher = errors.New("query: fetcher obrigatório")

// Key identifica um recurso REST no escopo de uma fábrica.
// Owner separa tarefas de sessões diferentes e Credential separa tokens do mesmo dono,
// já que cada busca usa o token de quem assinou primeiro.
type Key struct {
	Resource   string
	Factory    string
	Owner      string
	Credential string
}

func (k Key) String() string {
	if k.Factory == "" {
		return k.Resource
	}
	return k.Resource + "@" + k.Factory
}

// Status é o estado observável de uma consulta.
type Status string

const (
	StatusLoading Status = "loading"
	StatusError   Status = "error"
	StatusEmpty   Status = "empty"
	StatusSuccess Status = "success"
)

// State é o último resultado conhecido de uma chave.
// Em erro, Data mantém o último dado válido.
type State struct {
	Status    Status          `json:"status"`
	Data      json.RawMessage `json:"data,omitempty"`
	Err       error           `json:"-"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Settled informa se a primeira busca terminou.
func (s State) Settled() bool {
	return s.Status != StatusLoading
}

// Fetcher busca o recurso no backend.
type Fetcher func(ctx context.Context) (json.RawMessage, error)

// IsEmpty reconhece respostas sem conteúdo útil, inclusive o envelope {"data": ...} vazio.
func IsEmpty(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return true
	}
	switch string(trimmed) {
	case "null", "{}", "[]", `""`:
		return true
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return false
	}
	data, ok := envelope["data"]
	if !ok {
		return false
	}
	return IsEmpty(data)
}

// Widget é o que um componente de destaque recebe: nunca o texto do erro.
type Widget struct {
	Skeleton  bool            `json:"skeleton"`
	Status    Status          `json:"status"`
	Data      json.RawMessage `json:"data,omitempty"`
	UpdatedAt *time.Time      `json:"updatedAt,omitempty"`
}

// Render converte o estado em widget. loading, error e empty exibem skeleton.
func Render(s State) Widget {
	w := Widget{Status: s.Status}
	if s.Status != StatusSuccess {
		w.Skeleton = true
		return w
	}
	w.Data = s.Data
	if !s.UpdatedAt.IsZero() {
		at := s.UpdatedAt
		w.UpdatedAt = &at
	}
	return w
}
