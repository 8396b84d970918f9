package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GuardDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "painel_guard_decisions_total",
			Help: "Decisões da guarda de rotas por estado",
		},
		[]string{"state"},
	)

	GuardSignOuts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "painel_guard_sign_outs_total",
			Help: "Logouts forçados por token inválido ou expirado",
		},
		[]string{"reason"},
	)

	SignIns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "painel_sign_in_total",
			Help: "Tentativas de login por resultado",
		},
		[]string{"result"},
	)

	QueryFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "painel_query_fetch_total",
			Help: "Consultas periódicas à API por recurso e resultado",
		},
		[]string{"resource", "result"},
	)

	QueryTasksActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "painel_query_tasks_active",
			Help: "Tarefas de polling em execução",
		},
	)

	StreamConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "painel_highlights_connections",
			Help: "Conexões abertas com o socket de destaques",
		},
	)

	StreamMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "painel_highlights_events_total",
			Help: "Eventos recebidos do socket de destaques",
		},
		[]string{"event"},
	)

	RateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "painel_rate_limited_total",
			Help: "Requisições recusadas pelo limitador por escopo",
		},
		[]string{"scope"},
	)
)
