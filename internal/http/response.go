package http

import (
	"encoding/json"
	"net/http"
)

// Toast é a notificação transitória mostrada após ações do usuário.
type Toast struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

const (
	ToastSuccess = "success"
	ToastError   = "error"
	ToastInfo    = "info"
)

// SuccessEnvelope padroniza respostas com dados.
type SuccessEnvelope struct {
	Data  any    `json:"data"`
	Error any    `json:"error"`
	Toast *Toast `json:"toast,omitempty"`
}

// ErrorEnvelope padroniza respostas de erro.
type ErrorEnvelope struct {
	Data  any        `json:"data"`
	Error *ErrorBody `json:"error"`
	Toast *Toast     `json:"toast,omitempty"`
}

// ErrorBody descreve falhas normalizadas.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// WriteJSON escreve envelope de sucesso.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	writeEnvelope(w, status, SuccessEnvelope{Data: data})
}

// WriteJSONToast escreve envelope de sucesso com notificação.
func WriteJSONToast(w http.ResponseWriter, status int, data any, toast Toast) {
	writeEnvelope(w, status, SuccessEnvelope{Data: data, Toast: &toast})
}

// WriteError escreve envelope de erro e mantém formato consistente.
func WriteError(w http.ResponseWriter, status int, code, message string, details any) {
	writeEnvelope(w, status, ErrorEnvelope{
		Error: &ErrorBody{Code: code, Message: message, Details: details},
	})
}

// WriteErrorToast escreve erro de uma ação iniciada pelo usuário, com toast.
func WriteErrorToast(w http.ResponseWriter, status int, code, message string, details any) {
	writeEnvelope(w, status, ErrorEnvelope{
		Error: &ErrorBody{Code: code, Message: message, Details: details},
		Toast: &Toast{Kind: ToastError, Message: message},
	})
}

func writeEnvelope(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
