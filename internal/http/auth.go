package http

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/Brandon-Online01/w-f-sub001/internal/api"
	"github.com/Brandon-Online01/w-f-sub001/internal/metrics"
	"github.com/Brandon-Online01/w-f-sub001/internal/session"
)

type signInPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// sessionView é a sessão como o navegador a enxerga: sem o token.
type sessionView struct {
	Status        session.Status `json:"status"`
	Authenticated bool           `json:"authenticated"`
	User          *session.User  `json:"user"`
	Message       *string        `json:"message"`
}

func newSessionView(s session.Session) sessionView {
	return sessionView{
		Status:        s.Status,
		Authenticated: s.Authenticated(),
		User:          s.User,
		Message:       s.Message,
	}
}

type authResult struct {
	Session  sessionView `json:"session"`
	Redirect string      `json:"redirect"`
}

// SignIn autentica no backend e grava a sessão do navegador.
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	payload, err := decodeSignIn(w, r)
	if err != nil {
		WriteErrorToast(w, http.StatusBadRequest, "VALIDATION", "Dados de login inválidos", nil)
		return
	}

	resp, err := h.api.SignIn(r.Context(), payload.Username, payload.Password)
	if err != nil {
		h.writeSignInError(w, err)
		return
	}

	id, _, _ := session.FromContext(r.Context())
	next, err := h.sessions.SignIn(r.Context(), id, session.SignInData{
		User:    resp.User,
		Token:   resp.Token,
		Status:  session.StatusAuthenticated,
		Message: resp.Message,
	})
	if err != nil {
		log.Error().Err(err).Msg("auth: falha ao gravar sessão")
		metrics.SignIns.WithLabelValues("error").Inc()
		WriteErrorToast(w, http.StatusServiceUnavailable, "SESSION", "Não foi possível iniciar a sessão", nil)
		return
	}

	metrics.SignIns.WithLabelValues("success").Inc()
	message := strings.TrimSpace(resp.Message)
	if message == "" {
		message = "Login realizado"
	}
	WriteJSONToast(w, http.StatusOK, authResult{
		Session:  newSessionView(next),
		Redirect: h.guard.LandingPath(),
	}, Toast{Kind: ToastSuccess, Message: message})
}

func (h *Handler) writeSignInError(w http.ResponseWriter, err error) {
	var (
		authErr *api.AuthError
		valErr  *api.ValidationError
		netErr  *api.NetworkError
	)
	switch {
	case errors.As(err, &authErr):
		metrics.SignIns.WithLabelValues("rejected").Inc()
		message := strings.TrimSpace(authErr.Message)
		if message == "" {
			message = "Usuário ou senha incorretos"
		}
		WriteErrorToast(w, http.StatusUnauthorized, "AUTH", message, nil)
	case errors.As(err, &valErr):
		metrics.SignIns.WithLabelValues("invalid").Inc()
		WriteErrorToast(w, http.StatusBadRequest, "VALIDATION", "Informe usuário e senha", valErr.Details())
	case errors.As(err, &netErr):
		metrics.SignIns.WithLabelValues("unavailable").Inc()
		log.Warn().Err(err).Msg("auth: backend indisponível")
		WriteErrorToast(w, http.StatusBadGateway, "UPSTREAM", "Serviço indisponível, tente novamente", nil)
	default:
		metrics.SignIns.WithLabelValues("error").Inc()
		log.Error().Err(err).Msg("auth: falha inesperada no login")
		WriteErrorToast(w, http.StatusInternalServerError, "INTERNAL", "Não foi possível entrar", nil)
	}
}

func decodeSignIn(w http.ResponseWriter, r *http.Request) (signInPayload, error) {
	var payload signInPayload
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&payload); err != nil {
			return payload, err
		}
		return payload, nil
	}
	if err := r.ParseForm(); err != nil {
		return payload, err
	}
	payload.Username = r.PostFormValue("username")
	payload.Password = r.PostFormValue("password")
	return payload, nil
}

// SignOut volta a sessão ao estado inicial.
func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	id, _, _ := session.FromContext(r.Context())
	next, err := h.sessions.SignOut(r.Context(), id)
	if err != nil {
		log.Error().Err(err).Msg("auth: falha ao encerrar sessão")
		WriteErrorToast(w, http.StatusServiceUnavailable, "SESSION", "Não foi possível sair", nil)
		return
	}
	WriteJSONToast(w, http.StatusOK, authResult{
		Session:  newSessionView(next),
		Redirect: h.guard.SignInPath(),
	}, Toast{Kind: ToastInfo, Message: "Sessão encerrada"})
}

// GetSession devolve a sessão atual sem expor o token.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	_, current, _ := session.FromContext(r.Context())
	WriteJSON(w, http.StatusOK, newSessionView(current))
}

type guardView struct {
	State    string      `json:"state"`
	Render   bool        `json:"render"`
	Redirect string      `json:"redirect,omitempty"`
	SignOut  bool        `json:"signOut"`
	Session  sessionView `json:"session"`
}

// GuardDecision avalia a guarda para um caminho informado pelo cliente.
// Aplica o logout quando a decisão exigir, como a navegação faria.
func (h *Handler) GuardDecision(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSpace(r.URL.Query().Get("path"))
	if path == "" {
		path = h.guard.LandingPath()
	}
	if !strings.HasPrefix(path, "/") {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "path deve começar com /", nil)
		return
	}

	id, current, _ := session.FromContext(r.Context())
	d := h.guard.Evaluate(current, path)
	metrics.GuardDecisions.WithLabelValues(d.State.String()).Inc()

	if d.SignOut {
		metrics.GuardSignOuts.WithLabelValues(d.Token.String()).Inc()
		cleared, err := h.sessions.SignOut(r.Context(), id)
		if err != nil {
			log.Warn().Err(err).Msg("guard: falha ao encerrar sessão")
		} else {
			current = cleared
		}
	}

	WriteJSON(w, http.StatusOK, guardView{
		State:    d.State.String(),
		Render:   d.Render,
		Redirect: d.Redirect,
		SignOut:  d.SignOut,
		Session:  newSessionView(current),
	})
}
