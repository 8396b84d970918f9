package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrAuthFailure       = errors.New("api: credenciais inválidas")
	ErrUnauthorized      = errors.New("api: token recusado pelo backend")
	ErrFactoryUnresolved = errors.New("api: fábrica não definida para a consulta")
	ErrUnknownResource   = errors.New("api: recurso desconhecido")
)

// AuthError é a recusa de login com a mensagem do backend, exibida em toast.
type AuthError struct {
	Status  string
	Message string
}

func (e *AuthError) Error() string {
	if strings.TrimSpace(e.Message) == "" {
		return ErrAuthFailure.Error()
	}
	return "api: " + e.Message
}

func (e *AuthError) Unwrap() error { return ErrAuthFailure }

// NetworkError cobre falhas de transporte e respostas não 2xx.
type NetworkError struct {
	Op     string
	Status int
	Err    error
}

func (e *NetworkError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("api: %s: status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("api: %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Is permite errors.Is(err, ErrUnauthorized) para 401 e 403.
func (e *NetworkError) Is(target error) bool {
	return target == ErrUnauthorized && (e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden)
}

// FieldError é um problema de validação ligado a um campo.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError indica payload fora do schema esperado.
type ValidationError struct {
	Kind   string
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "api: " + e.Kind + " inválido"
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "api: " + e.Kind + " inválido: " + strings.Join(parts, "; ")
}

// Details devolve os campos no formato do envelope de erro HTTP.
func (e *ValidationError) Details() map[string]string {
	out := make(map[string]string, len(e.Fields))
	for _, f := range e.Fields {
		out[f.Field] = f.Message
	}
	return out
}
