package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brandon-Online01/w-f-sub001/internal/auth"
	"github.com/Brandon-Online01/w-f-sub001/internal/session"
)

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type stubStore struct {
	sessions map[string]session.Session
	factory  map[string]string
	signOuts []string
}

func newStubStore() *stubStore {
	return &stubStore{sessions: map[string]session.Session{}, factory: map[string]string{}}
}

func (s *stubStore) Load(ctx context.Context, id string) (session.Session, error) {
	if cur, ok := s.sessions[id]; ok {
		return cur, nil
	}
	return session.Initial(), nil
}

func (s *stubStore) SignOut(ctx context.Context, id string) (session.Session, error) {
	s.signOuts = append(s.signOuts, id)
	s.sessions[id] = session.Initial()
	delete(s.factory, id)
	return session.Initial(), nil
}

func (s *stubStore) Factory(ctx context.Context, id string, user *session.User) (string, error) {
	if f, ok := s.factory[id]; ok {
		return f, nil
	}
	if user != nil && user.FactoryReferenceID != nil {
		return *user.FactoryReferenceID, nil
	}
	return "", session.ErrFactoryUnresolved
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": exp.Unix()})
	s, err := tok.SignedString([]byte("qualquer"))
	require.NoError(t, err)
	return s
}

func authenticated(token string, factory *string) session.Session {
	return session.Reduce(session.Initial(), session.SignIn(session.SignInData{
		User:   &session.User{UID: 1, Name: "Ana", FactoryReferenceID: factory},
		Token:  token,
		Status: session.StatusAuthenticated,
	}))
}

func withSession(r *http.Request, id string, s session.Session) *http.Request {
	return r.WithContext(session.WithContext(r.Context(), id, s))
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

func TestRequireSession(t *testing.T) {
	validator := auth.NewValidatorWithClock(func() time.Time { return fixedNow })

	t.Run("sem sessão", func(t *testing.T) {
		store := newStubStore()
		rec := httptest.NewRecorder()
		req := withSession(httptest.NewRequest(http.MethodGet, "/api/factories", nil), "s1", session.Initial())

		RequireSession(store, validator)(okHandler).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Empty(t, store.signOuts)
	})

	t.Run("token expirado encerra a sessão", func(t *testing.T) {
		store := newStubStore()
		rec := httptest.NewRecorder()
		cur := authenticated(signedToken(t, fixedNow.Add(-time.Minute)), nil)
		req := withSession(httptest.NewRequest(http.MethodGet, "/api/factories", nil), "s1", cur)

		RequireSession(store, validator)(okHandler).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "sessão expirada")
		assert.Equal(t, []string{"s1"}, store.signOuts)
	})

	t.Run("token válido segue", func(t *testing.T) {
		store := newStubStore()
		rec := httptest.NewRecorder()
		cur := authenticated(signedToken(t, fixedNow.Add(time.Hour)), nil)
		req := withSession(httptest.NewRequest(http.MethodGet, "/api/factories", nil), "s1", cur)

		RequireSession(store, validator)(okHandler).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}

func TestFactoryScope(t *testing.T) {
	store := newStubStore()
	def := "F-1"

	var got string
	h := FactoryScope(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetFactory(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, withSession(httptest.NewRequest(http.MethodGet, "/", nil), "s1", authenticated("x", &def)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "F-1", got)

	store.factory["s1"] = "F-9"
	h.ServeHTTP(httptest.NewRecorder(), withSession(httptest.NewRequest(http.MethodGet, "/", nil), "s1", authenticated("x", &def)))
	assert.Equal(t, "F-9", got)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, withSession(httptest.NewRequest(http.MethodGet, "/", nil), "s2", authenticated("x", nil)))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "FACTORY")
}

func TestOriginMatcher(t *testing.T) {
	match := OriginMatcher([]string{"https://painel.fabrica.local/", "*.fabrica.dev"})

	assert.True(t, match("https://painel.fabrica.local"))
	assert.True(t, match("https://a.fabrica.dev"))
	assert.False(t, match("https://fabrica.dev"))
	assert.False(t, match("https://outra.local"))
	assert.False(t, match(""))
}

func TestSameOriginOr(t *testing.T) {
	check := SameOriginOr(OriginMatcher(nil))

	req := httptest.NewRequest(http.MethodGet, "http://painel.local/ws/highlights", nil)
	assert.True(t, check(req))

	req.Header.Set("Origin", "http://painel.local")
	assert.True(t, check(req))

	req.Header.Set("Origin", "http://intruso.local")
	assert.False(t, check(req))
}

func TestCORSPreflight(t *testing.T) {
	h := CORS([]string{"https://painel.fabrica.local"})(okHandler)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/session", nil)
	req.Header.Set("Origin", "https://painel.fabrica.local")
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://painel.fabrica.local", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestSessionRateLimit(t *testing.T) {
	limiter := NewRateLimiter("sessao", 0.5, 1)
	limiter.now = func() time.Time { return fixedNow }
	h := SessionRateLimit(limiter)(okHandler)
	req := withSession(httptest.NewRequest(http.MethodGet, "/api/factories", nil), "s1", session.Initial())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, withSession(httptest.NewRequest(http.MethodGet, "/api/factories", nil), "s2", session.Initial()))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// nova credencial na mesma sessão começa com o balde cheio
	limiter.ForgetSession("s1")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRateLimiterRefusalDoesNotConsume(t *testing.T) {
	now := fixedNow
	limiter := NewRateLimiter("ip", 1, 1)
	limiter.now = func() time.Time { return now }

	ok, _ := limiter.Allow("10.0.0.1")
	require.True(t, ok)
	for i := 0; i < 3; i++ {
		ok, wait := limiter.Allow("10.0.0.1")
		require.False(t, ok)
		assert.Equal(t, time.Second, wait)
	}

	now = now.Add(time.Second)
	ok, _ = limiter.Allow("10.0.0.1")
	assert.True(t, ok)
}

func TestRateLimiterSweepsIdleBuckets(t *testing.T) {
	now := fixedNow
	limiter := NewRateLimiter("ip", 1, 1)
	limiter.now = func() time.Time { return now }

	limiter.Allow("10.0.0.1")
	limiter.Allow("10.0.0.2")
	require.Len(t, limiter.buckets, 2)

	now = now.Add(limiter.maxAge + time.Minute)
	limiter.Allow("10.0.0.3")
	assert.Len(t, limiter.buckets, 1)
	assert.Contains(t, limiter.buckets, "10.0.0.3")
}

func TestIPRateLimitUsesRemoteAddr(t *testing.T) {
	limiter := NewRateLimiter("ip", 0.001, 1)
	h := IPRateLimit(limiter)(okHandler)

	req := httptest.NewRequest(http.MethodPost, "/auth/sign-in", nil)
	req.RemoteAddr = "10.1.1.1:5555"
	h.ServeHTTP(httptest.NewRecorder(), req)

	rec := httptest.NewRecorder()
	req.RemoteAddr = "10.1.1.1:6666"
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, limiter.buckets, "10.1.1.1")
}

func TestRecover(t *testing.T) {
	h := Recover(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("falhou")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL")
}
