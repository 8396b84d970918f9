package http

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/Brandon-Online01/w-f-sub001/internal/api"
	"github.com/Brandon-Online01/w-f-sub001/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type navItem struct {
	Path   string
	Label  string
	Active bool
}

type pageData struct {
	Title      string
	Path       string
	Kind       string
	Session    sessionView
	Nav        []navItem
	Resources  []string
	Kinds      []string
	SignInPath string
	Landing    string
}

var navigation = []navItem{
	{Path: "/dashboard", Label: "Dashboard"},
	{Path: "/inventory", Label: "Inventário"},
	{Path: "/staff", Label: "Equipe"},
	{Path: "/reports", Label: "Relatórios"},
}

func (h *Handler) page(r *http.Request, title string) pageData {
	_, current, _ := session.FromContext(r.Context())
	nav := make([]navItem, len(navigation))
	for i, item := range navigation {
		item.Active = item.Path == r.URL.Path || (item.Path == "/inventory" && chi.URLParam(r, "kind") != "")
		nav[i] = item
	}
	return pageData{
		Title:      title,
		Path:       r.URL.Path,
		Kind:       chi.URLParam(r, "kind"),
		Session:    newSessionView(current),
		Nav:        nav,
		Resources:  api.DashboardResources(),
		Kinds:      api.RecordKinds(),
		SignInPath: h.guard.SignInPath(),
		Landing:    h.guard.LandingPath(),
	}
}

// Home leva a sessão válida para a página inicial.
func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.guard.LandingPath(), http.StatusSeeOther)
}

// SignInPage renderiza o formulário de login.
func (h *Handler) SignInPage(w http.ResponseWriter, r *http.Request) {
	render(w, "sign-in.html", h.page(r, "Entrar"))
}

// AppPage renderiza a casca do painel para as rotas protegidas.
func (h *Handler) AppPage(w http.ResponseWriter, r *http.Request) {
	render(w, "app.html", h.page(r, "Painel da fábrica"))
}

func render(w http.ResponseWriter, name string, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := pageTemplates.ExecuteTemplate(w, name, data); err != nil {
		log.Error().Err(err).Str("template", name).Msg("pages: falha ao renderizar")
	}
}
