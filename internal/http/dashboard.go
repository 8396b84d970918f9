package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/Brandon-Online01/w-f-sub001/internal/api"
	"github.com/Brandon-Online01/w-f-sub001/internal/auth"
	httpmiddleware "github.com/Brandon-Online01/w-f-sub001/internal/http/middleware"
	"github.com/Brandon-Online01/w-f-sub001/internal/metrics"
	"github.com/Brandon-Online01/w-f-sub001/internal/query"
	"github.com/Brandon-Online01/w-f-sub001/internal/session"
)

const socketWriteTimeout = 10 * time.Second

type factoryPayload struct {
	FactoryID string `json:"factoryId"`
}

// SelectFactory grava a fábrica escolhida no seletor.
func (h *Handler) SelectFactory(w http.ResponseWriter, r *http.Request) {
	var payload factoryPayload
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<10)).Decode(&payload); err != nil {
		WriteErrorToast(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}

	id, _, _ := session.FromContext(r.Context())
	factoryID := strings.TrimSpace(payload.FactoryID)
	if err := h.sessions.SelectFactory(r.Context(), id, factoryID); err != nil {
		log.Error().Err(err).Msg("factory: falha ao gravar seleção")
		WriteErrorToast(w, http.StatusServiceUnavailable, "SESSION", "Não foi possível trocar de fábrica", nil)
		return
	}

	message := "Fábrica selecionada"
	if factoryID == "" {
		message = "Seleção de fábrica removida"
	}
	WriteJSONToast(w, http.StatusOK, map[string]string{"factoryId": factoryID}, Toast{Kind: ToastSuccess, Message: message})
}

// ListFactories alimenta o seletor com as fábricas e a seleção atual.
func (h *Handler) ListFactories(w http.ResponseWriter, r *http.Request) {
	factories, err := h.api.Factories(r.Context(), httpmiddleware.GetToken(r.Context()))
	if err != nil {
		h.writeUpstreamError(w, r, err)
		return
	}

	id, current, _ := session.FromContext(r.Context())
	selected, err := h.sessions.Factory(r.Context(), id, current.User)
	if err != nil && !errors.Is(err, session.ErrFactoryUnresolved) {
		WriteError(w, http.StatusServiceUnavailable, "SESSION", "sessão indisponível", nil)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"factories": factories,
		"selected":  selected,
	})
}

// Inventory repassa as listas do inventário já validadas pelo schema.
func (h *Handler) Inventory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token := httpmiddleware.GetToken(ctx)
	factory := httpmiddleware.GetFactory(ctx)

	var (
		items any
		err   error
	)
	switch kind := strings.ToLower(chi.URLParam(r, "kind")); kind {
	case api.KindComponents:
		var list []api.Component
		if list, err = h.api.Components(ctx, token, factory); err == nil {
			for i := range list {
				list[i].Photo = h.api.FileURL(list[i].Photo)
			}
		}
		items = list
	case api.KindMoulds:
		items, err = h.api.Moulds(ctx, token, factory)
	case api.KindMachines:
		items, err = h.api.Machines(ctx, token, factory)
	case api.KindUsers:
		var list []api.StaffUser
		if list, err = h.api.Users(ctx, token, factory); err == nil {
			for i := range list {
				list[i].Photo = h.api.FileURL(list[i].Photo)
			}
		}
		items = list
	case api.KindFactories:
		items, err = h.api.Factories(ctx, token)
	default:
		WriteError(w, http.StatusNotFound, "NOT_FOUND", "inventário desconhecido", map[string]any{"kinds": api.RecordKinds()})
		return
	}
	if err != nil {
		h.writeUpstreamError(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"items": items, "factory": factory})
}

// DashboardWidget assina a consulta durante a requisição e devolve o primeiro
// estado resolvido. Se o prazo acabar, devolve o skeleton de carregamento.
func (h *Handler) DashboardWidget(w http.ResponseWriter, r *http.Request) {
	key, fetch, ok := h.dashboardQuery(w, r)
	if !ok {
		return
	}

	sub, err := h.queries.Subscribe(r.Context(), key, fetch)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "consulta indisponível", nil)
		return
	}
	defer sub.Unsubscribe()

	ctx, cancel := context.WithTimeout(r.Context(), h.settleTimeout())
	defer cancel()

	st, err := sub.Settled(ctx)
	if err != nil && r.Context().Err() != nil {
		return
	}
	if h.expireOnUnauthorized(r, st) {
		WriteError(w, http.StatusUnauthorized, "AUTH", "sessão expirada", nil)
		return
	}

	WriteJSON(w, http.StatusOK, query.Render(st))
}

// DashboardSocket mantém a consulta viva enquanto o socket da tela estiver aberto
// e envia cada novo estado como widget. Login ou logout na sessão fecha o socket.
func (h *Handler) DashboardSocket(w http.ResponseWriter, r *http.Request) {
	key, fetch, ok := h.dashboardQuery(w, r)
	if !ok {
		return
	}
	ctx, end, ok := h.viewContext(r)
	if !ok {
		WriteError(w, http.StatusUnauthorized, "AUTH", "sessão encerrada", nil)
		return
	}
	defer end()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sub, err := h.queries.Subscribe(ctx, key, fetch)
	if err != nil {
		return
	}
	defer sub.Unsubscribe()

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case <-ctx.Done():
			if r.Context().Err() == nil {
				closeSocket(conn, "sessão encerrada")
			}
			return
		case st, open := <-sub.Updates():
			if !open {
				closeSocket(conn, "sessão encerrada")
				return
			}
			if h.expireOnUnauthorized(r, st) {
				closeSocket(conn, "sessão expirada")
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(socketWriteTimeout))
			if err := conn.WriteJSON(widgetMessage{Resource: key.Resource, Widget: query.Render(st)}); err != nil {
				return
			}
		}
	}
}

func closeSocket(conn *websocket.Conn, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason),
		time.Now().Add(time.Second))
}

type widgetMessage struct {
	Resource string `json:"resource"`
	query.Widget
}

// HighlightsSocket repassa o socket de destaques autenticado pela sessão.
// O repasse termina quando a sessão troca de credencial.
func (h *Handler) HighlightsSocket(w http.ResponseWriter, r *http.Request) {
	ctx, end, ok := h.viewContext(r)
	if !ok {
		WriteError(w, http.StatusUnauthorized, "AUTH", "sessão encerrada", nil)
		return
	}
	defer end()

	if err := h.relay.Serve(w, r.WithContext(ctx), httpmiddleware.GetToken(r.Context())); err != nil {
		log.Debug().Err(err).Msg("highlights: upgrade recusado")
	}
}

// viewContext amarra uma tela longa à credencial atual da sessão: o contexto
// termina no próximo login ou logout. ok é false se a troca já aconteceu.
func (h *Handler) viewContext(r *http.Request) (context.Context, func(), bool) {
	id, current, _ := session.FromContext(r.Context())
	revoked, release := h.sessions.Watch(id)

	latest, err := h.sessions.Load(r.Context(), id)
	if err != nil || !latest.Authenticated() || latest.TokenValue() != current.TokenValue() {
		release()
		return nil, nil, false
	}

	ctx, cancel := context.WithCancel(r.Context())
	go func() {
		select {
		case <-revoked:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, func() {
		cancel()
		release()
	}, true
}

func (h *Handler) dashboardQuery(w http.ResponseWriter, r *http.Request) (query.Key, query.Fetcher, bool) {
	resource := strings.ToLower(chi.URLParam(r, "resource"))
	if !slices.Contains(api.DashboardResources(), resource) {
		WriteError(w, http.StatusNotFound, "NOT_FOUND", "recurso desconhecido", map[string]any{"resources": api.DashboardResources()})
		return query.Key{}, nil, false
	}

	id, _, _ := session.FromContext(r.Context())
	factory := httpmiddleware.GetFactory(r.Context())
	token := httpmiddleware.GetToken(r.Context())

	key := query.Key{Resource: resource, Factory: factory, Owner: id, Credential: auth.Fingerprint(token)}
	fetch := func(ctx context.Context) (json.RawMessage, error) {
		return h.api.Fetch(ctx, token, resource, factory)
	}
	return key, fetch, true
}

// expireOnUnauthorized encerra a sessão quando o backend recusou o token.
func (h *Handler) expireOnUnauthorized(r *http.Request, st query.State) bool {
	if st.Status != query.StatusError || !errors.Is(st.Err, api.ErrUnauthorized) {
		return false
	}
	id, _, _ := session.FromContext(r.Context())
	metrics.GuardSignOuts.WithLabelValues("upstream").Inc()
	if _, err := h.sessions.SignOut(context.WithoutCancel(r.Context()), id); err != nil {
		log.Warn().Err(err).Msg("query: falha ao encerrar sessão recusada")
	}
	return true
}

func (h *Handler) settleTimeout() time.Duration {
	if h.cfg.Upstream.Timeout > 0 {
		return h.cfg.Upstream.Timeout
	}
	return 10 * time.Second
}

func (h *Handler) writeUpstreamError(w http.ResponseWriter, r *http.Request, err error) {
	var valErr *api.ValidationError
	switch {
	case errors.Is(err, api.ErrUnauthorized):
		id, _, _ := session.FromContext(r.Context())
		metrics.GuardSignOuts.WithLabelValues("upstream").Inc()
		if _, signErr := h.sessions.SignOut(r.Context(), id); signErr != nil {
			log.Warn().Err(signErr).Msg("api: falha ao encerrar sessão recusada")
		}
		WriteError(w, http.StatusUnauthorized, "AUTH", "sessão expirada", nil)
	case errors.Is(err, api.ErrFactoryUnresolved):
		WriteError(w, http.StatusConflict, "FACTORY", "Fábrica não selecionada", nil)
	case errors.As(err, &valErr):
		log.Warn().Err(err).Msg("api: resposta fora do schema")
		WriteError(w, http.StatusBadGateway, "UPSTREAM_INVALID", "resposta inválida do backend", valErr.Details())
	default:
		log.Warn().Err(err).Msg("api: backend indisponível")
		WriteError(w, http.StatusBadGateway, "UPSTREAM", "backend indisponível", nil)
	}
}
