package session

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
)

const (
	// CookieName é o cookie que carrega o id da sessão do navegador.
	CookieName = "painel_sessao"
	cookieIDKey = "sid"
)

// CookieCodec emite e lê o id de sessão em cookie assinado sem expiração,
// descartado pelo navegador ao fim da sessão.
type CookieCodec struct {
	store *sessions.CookieStore
}

// NewCookieCodec cria o codec; secure deve ser falso apenas em desenvolvimento.
func NewCookieCodec(secret string, secure bool) *CookieCodec {
	store := sessions.NewCookieStore([]byte(secret))
	store.MaxAge(0)
	store.Options.Path = "/"
	store.Options.HttpOnly = true
	store.Options.Secure = secure
	store.Options.SameSite = http.SameSiteLaxMode
	return &CookieCodec{store: store}
}

// ID lê o id da sessão, se houver cookie válido.
func (c *CookieCodec) ID(r *http.Request) (string, bool) {
	sess, err := c.store.Get(r, CookieName)
	if err != nil {
		return "", false
	}
	id, ok := sess.Values[cookieIDKey].(string)
	return id, ok && id != ""
}

// Ensure devolve o id existente ou emite um novo cookie de sessão.
func (c *CookieCodec) Ensure(w http.ResponseWriter, r *http.Request) (string, error) {
	if id, ok := c.ID(r); ok {
		return id, nil
	}

	// cookie ausente ou com assinatura inválida: começa outra sessão
	sess, _ := c.store.New(r, CookieName)
	id := uuid.NewString()
	sess.Values[cookieIDKey] = id
	if err := c.store.Save(r, w, sess); err != nil {
		return "", err
	}
	return id, nil
}
